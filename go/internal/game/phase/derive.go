package phase

import (
	"time"

	"github.com/a1ctf/gamesync/go/internal/models"
)

// Inputs is everything phase derivation depends on.
type Inputs struct {
	Found        bool
	Status       models.ParticipationStatus
	Start        time.Time
	End          time.Time
	PracticeMode bool
	Now          time.Time
}

// InputsFrom builds Inputs from a fetched game info. A nil info means the
// game was not found.
func InputsFrom(info *models.GameInfo, now time.Time) Inputs {
	if info == nil {
		return Inputs{Now: now}
	}
	return Inputs{
		Found:        true,
		Status:       info.TeamStatus,
		Start:        info.StartTime,
		End:          info.EndTime,
		PracticeMode: info.PracticeMode,
		Now:          now,
	}
}

// Derive maps participation status and time onto a phase. It is pure.
func Derive(in Inputs) models.Phase {
	if !in.Found {
		return models.PhaseNoSuchGame
	}

	switch in.Status {
	case models.ParticipationUnLogin:
		return models.PhaseUnknownLogin
	case models.ParticipationBanned:
		return models.PhaseBanned
	case models.ParticipationUnRegistered, models.ParticipationRejected:
		return models.PhaseUnregistered
	case models.ParticipationPending:
		// only a status poll moves a pending team forward
		return models.PhasePending
	case models.ParticipationApproved, models.ParticipationParticipated:
		return deriveFromTime(in)
	default:
		return models.PhaseUnknownLogin
	}
}

func deriveFromTime(in Inputs) models.Phase {
	switch {
	case in.Now.Before(in.Start):
		return models.PhaseWaitingStart
	case in.Now.Before(in.End):
		return models.PhaseRunning
	case in.PracticeMode:
		return models.PhasePracticeMode
	default:
		return models.PhaseEnded
	}
}

// CountdownTarget names what a countdown runs towards.
type CountdownTarget string

const (
	CountdownNone  CountdownTarget = ""
	CountdownStart CountdownTarget = "start"
	CountdownEnd   CountdownTarget = "end"
)

// Countdown is the display countdown for a phase.
type Countdown struct {
	Target    CountdownTarget `json:"target"`
	Remaining time.Duration   `json:"remaining"`
}

// ComputeCountdown returns the time left until the next boundary relevant to
// phase p. Banned teams still see the countdown to the end of the game.
func ComputeCountdown(p models.Phase, info *models.GameInfo, now time.Time) Countdown {
	if info == nil {
		return Countdown{}
	}

	switch p {
	case models.PhaseWaitingStart:
		return Countdown{Target: CountdownStart, Remaining: positive(info.StartTime.Sub(now))}
	case models.PhaseRunning:
		return Countdown{Target: CountdownEnd, Remaining: positive(info.EndTime.Sub(now))}
	case models.PhaseBanned:
		if now.Before(info.StartTime) {
			return Countdown{Target: CountdownStart, Remaining: info.StartTime.Sub(now)}
		}
		return Countdown{Target: CountdownEnd, Remaining: positive(info.EndTime.Sub(now))}
	default:
		return Countdown{}
	}
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
