package session

import (
	"github.com/a1ctf/gamesync/go/internal/game/challenges"
	"github.com/a1ctf/gamesync/go/internal/game/channel"
	"github.com/a1ctf/gamesync/go/internal/game/judge"
	"github.com/a1ctf/gamesync/go/internal/game/phase"
	"github.com/a1ctf/gamesync/go/internal/models"
)

// Snapshot is the session overview.
type Snapshot struct {
	GameID     int64                      `json:"game_id"`
	Viewer     models.Viewer              `json:"viewer"`
	Phase      models.Phase               `json:"phase"`
	TeamStatus models.ParticipationStatus `json:"team_status,omitempty"`
	TeamName   string                     `json:"team_name,omitempty"`
	Game       *models.GameInfo           `json:"game,omitempty"`
	Countdown  phase.Countdown            `json:"countdown"`
	Realtime   channel.Status             `json:"realtime"`
	Toasts     []Toast                    `json:"toasts"`
}

// NoticesView is the notice list with its counters.
type NoticesView struct {
	Loaded bool                          `json:"loaded"`
	Items  []models.Notice               `json:"items"`
	Counts map[models.NoticeCategory]int `json:"counts"`
	Unread int                           `json:"unread"`
}

// ChallengesView is the grouped challenge list with solve projections.
type ChallengesView struct {
	Version    uint64                       `json:"version"`
	Categories []string                     `json:"categories"`
	Groups     challenges.Grouping          `json:"groups"`
	Statuses   map[int64]models.SolveStatus `json:"statuses"`
	Selected   *models.ChallengeSummary     `json:"selected,omitempty"`
}

// Snapshot returns the current overview.
func (s *Session) Snapshot() Snapshot {
	info := s.phase.Info()
	snap := Snapshot{
		GameID:    s.gameID,
		Viewer:    s.viewer,
		Phase:     s.phase.Phase(),
		Game:      info,
		TeamName:  info.TeamName(),
		Countdown: s.phase.Countdown(),
		Realtime:  s.channel.Status(),
		Toasts:    s.toasts.list(),
	}
	if info != nil {
		snap.TeamStatus = info.TeamStatus
	}
	return snap
}

// Phase returns the current phase.
func (s *Session) Phase() models.Phase {
	return s.phase.Phase()
}

// Toasts returns the toast feed, oldest first.
func (s *Session) Toasts() []Toast {
	return s.toasts.list()
}

// Notices returns the notice view.
func (s *Session) Notices() NoticesView {
	return NoticesView{
		Loaded: s.notices.Loaded(),
		Items:  s.notices.List(),
		Counts: s.notices.CountByCategory(),
		Unread: s.notices.Unread(),
	}
}

// MarkNoticesRead marks every notice up to now as read.
func (s *Session) MarkNoticesRead() {
	s.notices.MarkRead(s.clock.Now())
}

// Challenges returns the challenge view.
func (s *Session) Challenges() ChallengesView {
	groups := s.store.Grouping()
	view := ChallengesView{
		Version:    s.store.Version(),
		Categories: groups.Categories(),
		Groups:     groups,
		Statuses:   s.store.Statuses(),
	}
	if selected, ok := s.store.Selected(); ok {
		view.Selected = &selected
	}
	return view
}

// SelectChallenge marks a challenge as the current selection.
func (s *Session) SelectChallenge(challengeID int64) error {
	return s.store.Select(challengeID)
}

// Scoreboard returns the last scoreboard snapshot, or nil.
func (s *Session) Scoreboard() *models.ScoreboardSnapshot {
	return s.scoreboard.Latest()
}

// OpenForm opens the submission form of a challenge.
func (s *Session) OpenForm(challengeID int64) (judge.Form, error) {
	judges, err := s.judgeManager()
	if err != nil {
		return judge.Form{}, err
	}
	return judges.Open(challengeID), nil
}

// FocusForm clears the inline error of a form.
func (s *Session) FocusForm(challengeID int64) (judge.Form, error) {
	judges, err := s.judgeManager()
	if err != nil {
		return judge.Form{}, err
	}
	return judges.Focus(challengeID), nil
}

// Form returns the form view of a challenge.
func (s *Session) Form(challengeID int64) (judge.Form, error) {
	judges, err := s.judgeManager()
	if err != nil {
		return judge.Form{}, err
	}
	return judges.View(challengeID), nil
}

// SubmitFlag starts a judge run. Only allowed while the game is live.
func (s *Session) SubmitFlag(challengeID int64, flag string) error {
	if !s.phase.Phase().AllowsLiveSync() {
		return ErrNotLive
	}
	judges, err := s.judgeManager()
	if err != nil {
		return err
	}
	return judges.Submit(challengeID, flag)
}

// DismissForm closes a form and abandons its run.
func (s *Session) DismissForm(challengeID int64) error {
	judges, err := s.judgeManager()
	if err != nil {
		return err
	}
	judges.Dismiss(challengeID)
	return nil
}
