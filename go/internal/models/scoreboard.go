package models

import (
	"encoding/json"
	"time"
)

// ScoreboardSnapshot is an opaque ranked snapshot. Only GameID and Name are
// decoded, the rest is passed through untouched.
type ScoreboardSnapshot struct {
	GameID    int64           `json:"game_id"`
	Name      string          `json:"name"`
	Raw       json.RawMessage `json:"raw"`
	FetchedAt time.Time       `json:"fetched_at"`
}
