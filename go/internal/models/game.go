package models

import "time"

// TeamInfo is the viewer's team as reported with the game info.
type TeamInfo struct {
	TeamID   int64  `json:"team_id"`
	TeamName string `json:"team_name"`
}

// GameInfo is the team/game view used for phase derivation.
type GameInfo struct {
	GameID       int64               `json:"game_id"`
	Name         string              `json:"name"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	PracticeMode bool                `json:"practice_mode"`
	TeamStatus   ParticipationStatus `json:"team_status"`
	TeamInfo     *TeamInfo           `json:"team_info,omitempty"`
}

// TeamName returns the viewer's team name, or "" without a team.
func (g *GameInfo) TeamName() string {
	if g == nil || g.TeamInfo == nil {
		return ""
	}
	return g.TeamInfo.TeamName
}

// Viewer is the read-only identity context supplied by the external identity
// collaborator.
type Viewer struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RoleMonitor = "monitor"
)

// IsPrivileged reports whether the viewer's actions are not counted
// (admins and observers).
func (v Viewer) IsPrivileged() bool {
	return v.Role == RoleAdmin || v.Role == RoleMonitor
}
