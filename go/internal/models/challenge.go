package models

import "time"

// ChallengeSummary is one entry of the game challenge list.
type ChallengeSummary struct {
	ID         int64   `json:"challenge_id"`
	Name       string  `json:"challenge_name"`
	Category   string  `json:"category"`
	TotalScore float64 `json:"total_score"`
	CurScore   float64 `json:"cur_score"`
	SolveCount int32   `json:"solve_count"`
}

// SolvedChallenge is an entry of the requesting team's solved set.
type SolvedChallenge struct {
	ID        int64     `json:"challenge_id"`
	Name      string    `json:"challenge_name"`
	SolveTime time.Time `json:"solve_time"`
	Rank      int32     `json:"rank"`
}

// ChallengeList is the challenge list response.
type ChallengeList struct {
	Challenges []ChallengeSummary `json:"challenges"`
	Solved     []SolvedChallenge  `json:"solved_challenges"`
}

// SolveStatus is the per-challenge solve projection.
type SolveStatus struct {
	Solved     bool    `json:"solved"`
	SolveCount int32   `json:"solve_count"`
	CurScore   float64 `json:"cur_score"`
}
