package models

// Phase is the participant-visible stage of a game.
type Phase string

const (
	PhaseUnknownLogin Phase = "unknownLogin"
	PhaseUnregistered Phase = "unregistered"
	PhasePending      Phase = "pending"
	PhaseWaitingStart Phase = "waitingStart"
	PhaseRunning      Phase = "running"
	PhasePracticeMode Phase = "practiceMode"
	PhaseBanned       Phase = "banned"
	PhaseEnded        Phase = "ended"
	PhaseNoSuchGame   Phase = "noSuchGame"
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// IsTerminal reports whether no further phase can follow.
func (p Phase) IsTerminal() bool {
	return p == PhaseEnded || p == PhaseNoSuchGame
}

// StopsSync reports whether polling and connection attempts must stop for good.
// Banned is terminal for interaction, the end countdown is still shown.
func (p Phase) StopsSync() bool {
	return p.IsTerminal() || p == PhaseBanned
}

// AllowsLiveSync reports whether the live loops (push channel, challenge and
// scoreboard refresh) may run in this phase.
func (p Phase) AllowsLiveSync() bool {
	return p == PhaseRunning || p == PhasePracticeMode
}

// IsTimeSensitive reports whether the phase can change purely by the clock.
func (p Phase) IsTimeSensitive() bool {
	return p == PhaseWaitingStart || p == PhaseRunning
}

// ParticipationStatus is the server's record of a team's standing in a game.
type ParticipationStatus string

const (
	ParticipationUnLogin      ParticipationStatus = "UnLogin"
	ParticipationUnRegistered ParticipationStatus = "UnRegistered"
	ParticipationPending      ParticipationStatus = "Pending"
	ParticipationApproved     ParticipationStatus = "Approved"
	ParticipationRejected     ParticipationStatus = "Rejected"
	ParticipationParticipated ParticipationStatus = "Participated"
	ParticipationBanned       ParticipationStatus = "Banned"
)
