package judge

import (
	"github.com/a1ctf/gamesync/go/internal/models"
)

// State is the judge workflow state of one challenge.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateAccepted   State = "accepted"
	StateRejected   State = "rejected"
	StateErrored    State = "errored"
)

// IsTerminal reports whether the run has a final result.
func (s State) IsTerminal() bool {
	return s == StateAccepted || s == StateRejected || s == StateErrored
}

// EventKind is an input to the workflow machine.
type EventKind int

const (
	EventSubmit EventKind = iota
	EventSubmitted
	EventSubmitFailed
	EventPollDue
	EventStatus
	EventQueryFailed
	EventDismiss
	EventSettle
)

// Event carries the data of one input.
type Event struct {
	Kind    EventKind
	Flag    string
	JudgeID string
	Status  models.JudgeStatus
	Err     error
}

// EffectKind is an output of the workflow machine.
type EffectKind int

const (
	EffectPostSubmission EffectKind = iota
	EffectSchedulePoll
	EffectQueryStatus
	EffectStopPoll
	EffectMarkSolved
	EffectCloseFormAfterGrace
	EffectShowInlineError
	EffectToastError
)

// Effect is a side effect for the manager to perform.
type Effect struct {
	Kind   EffectKind
	Result models.JudgeResult
	Err    error
}

// Machine is the pure state of one run.
type Machine struct {
	State       State
	ChallengeID int64
	Submission  models.Submission
	Polls       int
	Result      models.JudgeResult
	Err         error
}

// Transition applies ev to m and returns the effects to perform. Events that
// do not apply to the current state leave it unchanged.
func Transition(m Machine, ev Event) (Machine, []Effect) {
	switch ev.Kind {
	case EventSubmit:
		if m.State != StateIdle {
			return m, nil
		}
		return Machine{
			State:       StateSubmitting,
			ChallengeID: m.ChallengeID,
			Submission:  models.Submission{ChallengeID: m.ChallengeID, Flag: ev.Flag},
			Result:      models.JudgeResultPending,
		}, []Effect{{Kind: EffectPostSubmission}}

	case EventSubmitted:
		if m.State != StateSubmitting {
			return m, nil
		}
		m.State = StatePolling
		m.Submission.JudgeID = ev.JudgeID
		return m, []Effect{{Kind: EffectSchedulePoll}}

	case EventSubmitFailed:
		if m.State != StateSubmitting {
			return m, nil
		}
		m.State = StateErrored
		m.Result = models.JudgeResultError
		m.Err = ev.Err
		return m, []Effect{{Kind: EffectToastError, Result: m.Result, Err: ev.Err}}

	case EventPollDue:
		if m.State != StatePolling {
			return m, nil
		}
		m.Polls++
		return m, []Effect{{Kind: EffectQueryStatus}}

	case EventStatus:
		if m.State != StatePolling {
			return m, nil
		}
		return onStatus(m, ev.Status)

	case EventQueryFailed:
		if m.State != StatePolling {
			return m, nil
		}
		m.State = StateErrored
		m.Result = models.JudgeResultError
		m.Err = ev.Err
		return m, []Effect{{Kind: EffectStopPoll}, {Kind: EffectToastError, Result: m.Result, Err: ev.Err}}

	case EventDismiss:
		if m.State == StateIdle {
			return m, nil
		}
		wasPolling := m.State == StatePolling
		m = Machine{State: StateIdle, ChallengeID: m.ChallengeID}
		if wasPolling {
			return m, []Effect{{Kind: EffectStopPoll}}
		}
		return m, nil

	case EventSettle:
		if !m.State.IsTerminal() {
			return m, nil
		}
		m.State = StateIdle
		return m, nil
	}

	return m, nil
}

func onStatus(m Machine, status models.JudgeStatus) (Machine, []Effect) {
	result := status.Result()
	m.Result = result

	switch result {
	case models.JudgeResultAccepted:
		m.State = StateAccepted
		return m, []Effect{
			{Kind: EffectStopPoll},
			{Kind: EffectMarkSolved, Result: result},
			{Kind: EffectCloseFormAfterGrace, Result: result},
		}

	case models.JudgeResultWrong:
		m.State = StateRejected
		return m, []Effect{
			{Kind: EffectStopPoll},
			{Kind: EffectShowInlineError, Result: result},
		}

	case models.JudgeResultError:
		m.State = StateErrored
		m.Err = models.ErrJudgeError
		return m, []Effect{
			{Kind: EffectStopPoll},
			{Kind: EffectToastError, Result: result, Err: models.ErrJudgeError},
		}

	case models.JudgeResultTimeout:
		m.State = StateErrored
		m.Err = models.ErrJudgeTimeout
		return m, []Effect{
			{Kind: EffectStopPoll},
			{Kind: EffectToastError, Result: result, Err: models.ErrJudgeTimeout},
		}

	default:
		return m, []Effect{{Kind: EffectSchedulePoll}}
	}
}
