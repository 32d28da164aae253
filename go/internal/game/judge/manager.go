package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	// ErrJudgeInFlight is returned when a challenge already has an active run.
	ErrJudgeInFlight = errors.New("a submission for this challenge is already being judged")
	// ErrEmptyFlag is returned for blank submissions.
	ErrEmptyFlag = errors.New("flag is empty")
	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("judge manager stopped")
)

// Client is the submission and judge status collaborator.
type Client interface {
	SubmitFlag(ctx context.Context, gameID, challengeID int64, flag string) (string, error)
	GetJudgeStatus(ctx context.Context, gameID int64, judgeID string) (models.JudgeStatus, error)
}

// SolveMarker receives optimistic solves.
type SolveMarker interface {
	MarkAccepted(challengeID int64)
}

// Config holds the workflow cadence.
type Config struct {
	PollInterval time.Duration
	CloseGrace   time.Duration
}

// DefaultConfig returns the default workflow cadence.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		CloseGrace:   200 * time.Millisecond,
	}
}

// Outcome is published once per finished run.
type Outcome struct {
	ChallengeID int64              `json:"challenge_id"`
	JudgeID     string             `json:"judge_id"`
	Result      models.JudgeResult `json:"result"`
	Polls       int                `json:"polls"`
	Kind        models.ErrorKind   `json:"error_kind,omitempty"`
	Err         error              `json:"-"`
}

// Form is the submission form view of one challenge.
type Form struct {
	ChallengeID int64              `json:"challenge_id"`
	Open        bool               `json:"open"`
	Input       string             `json:"input"`
	InlineError bool               `json:"inline_error"`
	State       State              `json:"state"`
	Result      models.JudgeResult `json:"result,omitempty"`
	JudgeID     string             `json:"judge_id,omitempty"`
	Polls       int                `json:"polls"`
}

type run struct {
	machine     Machine
	gen         uint64
	ctx         context.Context
	cancel      context.CancelFunc
	pollTimer   clockwork.Timer
	closeTimer  clockwork.Timer
	open        bool
	input       string
	inlineError bool
}

// Manager runs at most one judge workflow per challenge.
type Manager struct {
	gameID int64
	client Client
	store  SolveMarker
	clock  clockwork.Clock
	config Config

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	gen     uint64
	runs    map[int64]*run
	stopped bool
	pending []Outcome

	subsMu    sync.RWMutex
	onOutcome []func(Outcome)
}

// NewManager creates a manager bound to ctx. Cancelling ctx has the same
// effect as Stop.
func NewManager(ctx context.Context, gameID int64, client Client, store SolveMarker, clock clockwork.Clock, config Config) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		gameID: gameID,
		client: client,
		store:  store,
		clock:  clock,
		config: config,
		ctx:    ctx,
		cancel: cancel,
		runs:   make(map[int64]*run),
	}
}

// OnOutcome registers a subscriber for finished runs.
func (m *Manager) OnOutcome(fn func(Outcome)) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.onOutcome = append(m.onOutcome, fn)
}

func (m *Manager) runFor(challengeID int64) *run {
	r, ok := m.runs[challengeID]
	if !ok {
		r = &run{machine: Machine{State: StateIdle, ChallengeID: challengeID}}
		m.runs[challengeID] = r
	}
	return r
}

// Open shows the submission form with a clean input and no error.
func (m *Manager) Open(challengeID int64) Form {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.runFor(challengeID)
	if r.closeTimer != nil {
		r.closeTimer.Stop()
		r.closeTimer = nil
	}
	r.open = true
	r.input = ""
	r.inlineError = false
	return formOf(challengeID, r)
}

// Focus clears the inline error indicator.
func (m *Manager) Focus(challengeID int64) Form {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.runFor(challengeID)
	r.inlineError = false
	return formOf(challengeID, r)
}

// View returns the form of a challenge.
func (m *Manager) View(challengeID int64) Form {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.runs[challengeID]; ok {
		return formOf(challengeID, r)
	}
	return Form{ChallengeID: challengeID, State: StateIdle}
}

// Submit starts a judge run for flag.
func (m *Manager) Submit(challengeID int64, flag string) error {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return ErrEmptyFlag
	}

	m.mu.Lock()
	if m.stopped || m.ctx.Err() != nil {
		m.mu.Unlock()
		return ErrStopped
	}

	r := m.runFor(challengeID)
	if r.machine.State != StateIdle {
		m.mu.Unlock()
		return fmt.Errorf("challenge %d: %w", challengeID, ErrJudgeInFlight)
	}

	if r.closeTimer != nil {
		r.closeTimer.Stop()
		r.closeTimer = nil
	}
	m.gen++
	r.gen = m.gen
	r.ctx, r.cancel = context.WithCancel(m.ctx)
	r.open = true
	r.input = flag
	r.inlineError = false
	m.step(challengeID, r, Event{Kind: EventSubmit, Flag: flag})
	m.unlockAndNotify()
	return nil
}

// Dismiss closes the form. A run that has not reached a result is cancelled
// and its late responses are ignored.
func (m *Manager) Dismiss(challengeID int64) {
	m.mu.Lock()
	r, ok := m.runs[challengeID]
	if !ok {
		m.mu.Unlock()
		return
	}

	r.open = false
	r.input = ""
	r.inlineError = false
	if r.machine.State != StateIdle {
		log.Info().Int64("challenge_id", challengeID).Str("state", string(r.machine.State)).Msg("judge run dismissed")
		m.step(challengeID, r, Event{Kind: EventDismiss})
		m.invalidate(r)
	}
	m.unlockAndNotify()
}

// ActivePolls returns the number of live poll timers.
func (m *Manager) ActivePolls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := 0
	for _, r := range m.runs {
		if r.pollTimer != nil {
			active++
		}
	}
	return active
}

// Stop cancels every run and timer.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	m.cancel()
	for _, r := range m.runs {
		m.invalidate(r)
		if r.closeTimer != nil {
			r.closeTimer.Stop()
			r.closeTimer = nil
		}
		r.machine = Machine{State: StateIdle, ChallengeID: r.machine.ChallengeID}
	}
}

// invalidate drops the run's token so in-flight results are ignored.
func (m *Manager) invalidate(r *run) {
	if r.pollTimer != nil {
		r.pollTimer.Stop()
		r.pollTimer = nil
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	m.gen++
	r.gen = m.gen
}

// step feeds ev through the machine and performs its effects. Caller holds mu.
func (m *Manager) step(challengeID int64, r *run, ev Event) {
	next, effects := Transition(r.machine, ev)
	r.machine = next

	for _, eff := range effects {
		m.perform(challengeID, r, eff)
	}

	if r.machine.State.IsTerminal() {
		m.pending = append(m.pending, Outcome{
			ChallengeID: challengeID,
			JudgeID:     r.machine.Submission.JudgeID,
			Result:      r.machine.Result,
			Polls:       r.machine.Polls,
			Kind:        models.Classify(r.machine.Err),
			Err:         r.machine.Err,
		})
		if r.cancel != nil {
			r.cancel()
			r.cancel = nil
		}
		settled, _ := Transition(r.machine, Event{Kind: EventSettle})
		// keep the last result visible on the form
		settled.Result = r.machine.Result
		settled.Polls = r.machine.Polls
		settled.Submission = r.machine.Submission
		r.machine = settled
	}
}

func (m *Manager) perform(challengeID int64, r *run, eff Effect) {
	gen := r.gen
	switch eff.Kind {
	case EffectPostSubmission:
		go m.submit(r.ctx, challengeID, gen, r.machine.Submission.Flag)

	case EffectSchedulePoll:
		r.pollTimer = m.clock.AfterFunc(m.config.PollInterval, func() { m.pollDue(challengeID, gen) })

	case EffectQueryStatus:
		go m.query(r.ctx, challengeID, gen, r.machine.Submission.JudgeID)

	case EffectStopPoll:
		if r.pollTimer != nil {
			r.pollTimer.Stop()
			r.pollTimer = nil
		}

	case EffectMarkSolved:
		if m.store != nil {
			m.store.MarkAccepted(challengeID)
		}

	case EffectCloseFormAfterGrace:
		r.closeTimer = m.clock.AfterFunc(m.config.CloseGrace, func() { m.closeForm(challengeID, gen) })

	case EffectShowInlineError:
		r.inlineError = true

	case EffectToastError:
		log.Warn().
			Err(eff.Err).
			Int64("challenge_id", challengeID).
			Str("result", string(eff.Result)).
			Msg("judge run failed")
	}
}

func (m *Manager) submit(ctx context.Context, challengeID int64, gen uint64, flag string) {
	judgeID, err := m.client.SubmitFlag(ctx, m.gameID, challengeID, flag)

	m.mu.Lock()
	r, ok := m.runs[challengeID]
	if !ok || r.gen != gen {
		m.mu.Unlock()
		log.Debug().Int64("challenge_id", challengeID).Msg("ignoring stale submission response")
		return
	}

	if err != nil {
		m.step(challengeID, r, Event{Kind: EventSubmitFailed, Err: fmt.Errorf("submit flag: %w", err)})
	} else {
		log.Info().Int64("challenge_id", challengeID).Str("judge_id", judgeID).Msg("flag submitted")
		m.step(challengeID, r, Event{Kind: EventSubmitted, JudgeID: judgeID})
	}
	m.unlockAndNotify()
}

func (m *Manager) pollDue(challengeID int64, gen uint64) {
	m.mu.Lock()
	r, ok := m.runs[challengeID]
	if !ok || r.gen != gen {
		m.mu.Unlock()
		return
	}
	r.pollTimer = nil
	m.step(challengeID, r, Event{Kind: EventPollDue})
	m.unlockAndNotify()
}

func (m *Manager) query(ctx context.Context, challengeID int64, gen uint64, judgeID string) {
	status, err := m.client.GetJudgeStatus(ctx, m.gameID, judgeID)

	m.mu.Lock()
	r, ok := m.runs[challengeID]
	if !ok || r.gen != gen {
		m.mu.Unlock()
		log.Debug().Int64("challenge_id", challengeID).Str("judge_id", judgeID).Msg("ignoring stale judge status")
		return
	}

	if err != nil {
		m.step(challengeID, r, Event{Kind: EventQueryFailed, Err: fmt.Errorf("get judge status: %w", err)})
	} else {
		log.Debug().Int64("challenge_id", challengeID).Str("judge_id", judgeID).Str("status", string(status)).Msg("judge status")
		m.step(challengeID, r, Event{Kind: EventStatus, Status: status})
	}
	m.unlockAndNotify()
}

func (m *Manager) closeForm(challengeID int64, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[challengeID]
	if !ok || r.gen != gen {
		return
	}
	r.closeTimer = nil
	r.open = false
	r.input = ""
}

func (m *Manager) unlockAndNotify() {
	outcomes := m.pending
	m.pending = nil
	m.mu.Unlock()

	if len(outcomes) == 0 {
		return
	}

	m.subsMu.RLock()
	subs := append([]func(Outcome){}, m.onOutcome...)
	m.subsMu.RUnlock()

	for _, o := range outcomes {
		for _, fn := range subs {
			fn(o)
		}
	}
}

func formOf(challengeID int64, r *run) Form {
	return Form{
		ChallengeID: challengeID,
		Open:        r.open,
		Input:       r.input,
		InlineError: r.inlineError,
		State:       r.machine.State,
		Result:      r.machine.Result,
		JudgeID:     r.machine.Submission.JudgeID,
		Polls:       r.machine.Polls,
	}
}
