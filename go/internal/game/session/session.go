package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/a1ctf/gamesync/go/internal/game/challenges"
	"github.com/a1ctf/gamesync/go/internal/game/channel"
	"github.com/a1ctf/gamesync/go/internal/game/jitter"
	"github.com/a1ctf/gamesync/go/internal/game/judge"
	"github.com/a1ctf/gamesync/go/internal/game/notices"
	"github.com/a1ctf/gamesync/go/internal/game/phase"
	"github.com/a1ctf/gamesync/go/internal/game/scoreboard"
	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/a1ctf/gamesync/go/internal/relay"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotLive is returned for actions that need a running game.
	ErrNotLive = errors.New("game is not live")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session already started")
)

// Client is every server collaborator a session needs.
type Client interface {
	phase.InfoFetcher
	challenges.Fetcher
	scoreboard.Fetcher
	judge.Client
	ListNotices(ctx context.Context, gameID int64) ([]models.Notice, error)
}

// Emitter receives relayed session events.
type Emitter interface {
	Emit(event relay.Event)
}

// Emitters fans every event out to each emitter in order.
type Emitters []Emitter

func (e Emitters) Emit(event relay.Event) {
	for _, em := range e {
		if em != nil {
			em.Emit(event)
		}
	}
}

// Config is the cadence and policy of a session.
type Config struct {
	Phase            phase.Config
	Channel          channel.Config
	Judge            judge.Config
	ChallengeBand    jitter.Band
	ScoreboardBand   jitter.Band
	Policy           challenges.Policy
	NoticeRetryLimit int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Phase:            phase.DefaultConfig(),
		Channel:          channel.DefaultConfig(),
		Judge:            judge.DefaultConfig(),
		ChallengeBand:    challenges.DefaultBand(),
		ScoreboardBand:   scoreboard.DefaultBand(),
		Policy:           challenges.MonotonicMerge,
		NoticeRetryLimit: 3,
	}
}

// Deps are the collaborators injected into a session.
type Deps struct {
	Client  Client
	Dialer  channel.Dialer
	HubURL  string
	Emitter Emitter
	Clock   clockwork.Clock
}

// liveGroup owns the loops of the running phases.
type liveGroup struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Session owns every loop, timer and connection of one game view.
type Session struct {
	gameID  int64
	viewer  models.Viewer
	client  Client
	emitter Emitter
	clock   clockwork.Clock
	config  Config

	phase      *phase.Controller
	channel    *channel.Channel
	notices    *notices.Aggregator
	store      *challenges.Store
	refresher  *challenges.Refresher
	scoreboard *scoreboard.Refresher
	judges     *judge.Manager

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	live    *liveGroup
	started bool
	wg      sync.WaitGroup
	toasts  *toastFeed
}

// New wires a session for gameID. Nothing runs until Start.
func New(gameID int64, viewer models.Viewer, deps Deps, config Config) *Session {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Session{
		gameID:  gameID,
		viewer:  viewer,
		client:  deps.Client,
		emitter: deps.Emitter,
		clock:   clock,
		config:  config,
		notices: notices.NewAggregator(),
		store:   challenges.NewStore(viewer, config.Policy),
		toasts:  newToastFeed(50),
	}

	s.phase = phase.NewController(gameID, deps.Client, clock, config.Phase)
	s.channel = channel.New(deps.HubURL, deps.Dialer, clock, config.Channel)
	s.refresher = challenges.NewRefresher(gameID, deps.Client, s.store, clock, config.ChallengeBand)
	s.scoreboard = scoreboard.NewRefresher(gameID, deps.Client, clock, config.ScoreboardBand)

	s.phase.Subscribe(s.onTransition)
	s.channel.OnNotice(s.onNotice)
	s.channel.OnStatus(s.onChannelStatus)
	s.refresher.OnBadRequest = s.phase.Recheck
	s.refresher.OnError = s.onRefreshError

	return s
}

// Start launches the phase controller. Live loops follow the phase.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.judges = judge.NewManager(s.ctx, s.gameID, s.client, s.store, s.clock, s.config.Judge)
	s.judges.OnOutcome(s.onJudgeOutcome)

	log.Info().
		Int64("game_id", s.gameID).
		Str("user_id", s.viewer.UserID).
		Str("role", s.viewer.Role).
		Msg("session started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.phase.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Int64("game_id", s.gameID).Msg("phase controller failed")
		}
	}()

	return nil
}

// Run starts the session and blocks until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop cancels every loop, timer, judge run and the push connection, and
// waits for the loops to return.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.started || s.cancel == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	live := s.live
	s.live = nil
	judges := s.judges
	s.mu.Unlock()

	s.channel.Close()
	if judges != nil {
		judges.Stop()
	}
	if live != nil {
		live.cancel()
		live.wg.Wait()
	}

	log.Info().Int64("game_id", s.gameID).Msg("session stopped")
}

// onTransition runs on the phase controller goroutine.
func (s *Session) onTransition(t phase.Transition) {
	s.emit(relay.EventTypePhaseChanged, relay.PhaseChangedPayload{From: t.From.String(), To: t.To.String()})
	s.notices.SetTeamName(t.Info.TeamName())

	switch {
	case t.To.AllowsLiveSync() && !t.From.AllowsLiveSync():
		s.startLive(t)
	case !t.To.AllowsLiveSync() && t.From.AllowsLiveSync():
		s.stopLive()
	}

	if t.To.StopsSync() {
		s.mu.Lock()
		judges := s.judges
		s.mu.Unlock()
		if judges != nil {
			judges.Stop()
		}
		if t.To == models.PhaseBanned {
			s.toasts.push(s.clock.Now(), Toast{Kind: ToastError, Title: "banned", Message: "your team has been banned from this game"})
		}
	}
}

func (s *Session) startLive(t phase.Transition) {
	s.mu.Lock()
	if s.live != nil || s.ctx == nil || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	live := &liveGroup{cancel: cancel}
	s.live = live
	s.mu.Unlock()

	log.Info().Int64("game_id", s.gameID).Str("phase", t.To.String()).Msg("starting live sync")

	live.wg.Add(3)
	go func() {
		defer live.wg.Done()
		s.loadNotices(ctx)
	}()
	go func() {
		defer live.wg.Done()
		_ = s.refresher.Run(ctx)
	}()
	go func() {
		defer live.wg.Done()
		_ = s.scoreboard.Run(ctx)
	}()

	var status models.ParticipationStatus
	if t.Info != nil {
		status = t.Info.TeamStatus
	}
	if err := s.channel.Connect(ctx, t.To, status); err != nil {
		log.Info().Err(err).Int64("game_id", s.gameID).Msg("push channel not opened")
	}
}

func (s *Session) stopLive() {
	s.mu.Lock()
	live := s.live
	s.live = nil
	s.mu.Unlock()

	if live == nil {
		return
	}

	log.Info().Int64("game_id", s.gameID).Msg("stopping live sync")
	live.cancel()
	s.channel.Close()
	live.wg.Wait()
}

// loadNotices runs the bulk notice load, retrying a few times on failure.
func (s *Session) loadNotices(ctx context.Context) {
	for attempt := 0; ; attempt++ {
		fetched, err := s.client.ListNotices(ctx, s.gameID)
		if err == nil {
			if ctx.Err() == nil {
				s.notices.Load(fetched)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if attempt >= s.config.NoticeRetryLimit {
			log.Error().Err(err).Int64("game_id", s.gameID).Msg("giving up loading notices")
			return
		}

		log.Warn().Err(err).Int("retry", attempt+1).Int64("game_id", s.gameID).Msg("failed to load notices, retrying")
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(time.Second * time.Duration(attempt+1)):
		}
	}
}

// onNotice runs on the push connection's read goroutine.
func (s *Session) onNotice(n models.Notice) {
	s.emit(relay.EventTypeNoticeReceived, n)

	for _, intent := range s.notices.Push(n) {
		s.applyIntent(intent)
	}
}

func (s *Session) applyIntent(intent notices.Intent) {
	now := s.clock.Now()

	switch intent.Kind {
	case notices.IntentToastAnnouncement:
		s.toasts.push(now, Toast{Kind: ToastInfo, Title: intent.Title, Message: "new announcement"})

	case notices.IntentToastHint:
		s.toasts.push(now, Toast{Kind: ToastHint, Title: "new hint", Message: joinNames(intent.Challenges)})

	case notices.IntentRefreshChallenges:
		s.refresher.RefreshNow()

	case notices.IntentCelebrateBlood:
		s.toasts.push(now, Toast{Kind: ToastBlood, Title: intent.ChallengeName, Medal: string(intent.Medal)})
		s.emit(relay.EventTypeBloodCelebrated, intent)

	case notices.IntentConfirmSolve:
		if s.store.ConfirmSolved(intent.ChallengeName) {
			s.emit(relay.EventTypeChallengeSolved, relay.ChallengeSolvedPayload{ChallengeName: intent.ChallengeName, Source: "blood"})
		}
	}
}

func (s *Session) onChannelStatus(status channel.Status) {
	payload := relay.RealtimeStatusPayload{
		State:               string(status.State),
		Attempt:             status.Attempt,
		NextAttemptAt:       status.NextAttemptAt,
		RealtimeUnavailable: status.RealtimeUnavailable,
	}
	if status.Err != nil {
		payload.Error = status.Err.Error()
	}
	s.emit(relay.EventTypeRealtimeStatus, payload)

	if status.RealtimeUnavailable {
		s.toasts.push(s.clock.Now(), Toast{
			Kind:    ToastWarning,
			Title:   "realtime updates unavailable",
			Message: "notices will not update until the page is reloaded",
		})
	}
}

func (s *Session) onRefreshError(err error) {
	s.toasts.push(s.clock.Now(), Toast{Kind: ToastError, Title: "refresh failed", Message: string(models.Classify(err))})
}

func (s *Session) onJudgeOutcome(o judge.Outcome) {
	s.emit(relay.EventTypeJudgeFinished, o)
	now := s.clock.Now()

	switch o.Result {
	case models.JudgeResultAccepted:
		s.toasts.push(now, Toast{Kind: ToastSuccess, Title: "flag accepted"})
		s.emit(relay.EventTypeChallengeSolved, relay.ChallengeSolvedPayload{ChallengeID: o.ChallengeID, Source: "judge"})
	case models.JudgeResultWrong:
		// shown inline on the form
	default:
		s.toasts.push(now, Toast{Kind: ToastError, Title: "judge failed", Message: string(o.Kind)})
	}
}

func (s *Session) emit(eventType relay.EventType, payload interface{}) {
	if s.emitter == nil {
		return
	}
	event, err := relay.NewEvent(s.gameID, eventType, payload, s.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build relay event")
		return
	}
	s.emitter.Emit(event)
}

func (s *Session) judgeManager() (*judge.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.judges == nil {
		return nil, fmt.Errorf("session %d: %w", s.gameID, ErrNotLive)
	}
	return s.judges, nil
}
