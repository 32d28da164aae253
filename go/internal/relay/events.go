package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a relayed session event.
type EventType string

const (
	EventTypePhaseChanged    EventType = "phase_changed"
	EventTypeNoticeReceived  EventType = "notice_received"
	EventTypeChallengeSolved EventType = "challenge_solved"
	EventTypeJudgeFinished   EventType = "judge_finished"
	EventTypeRealtimeStatus  EventType = "realtime_status"
	EventTypeBloodCelebrated EventType = "blood_celebrated"
)

// Event is the envelope published for every session event.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	GameID    int64           `json:"game_id"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEvent marshals payload into a new event.
func NewEvent(gameID int64, eventType EventType, payload interface{}, at time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		GameID:    gameID,
		EventType: eventType,
		Payload:   data,
		CreatedAt: at.UTC(),
	}, nil
}

// PhaseChangedPayload is published on phase transitions.
type PhaseChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ChallengeSolvedPayload is published for optimistic and confirmed solves.
type ChallengeSolvedPayload struct {
	ChallengeID   int64  `json:"challenge_id,omitempty"`
	ChallengeName string `json:"challenge_name,omitempty"`
	Source        string `json:"source"`
}

// RealtimeStatusPayload mirrors the push connection status.
type RealtimeStatusPayload struct {
	State               string    `json:"state"`
	Attempt             int       `json:"attempt"`
	NextAttemptAt       time.Time `json:"next_attempt_at,omitempty"`
	RealtimeUnavailable bool      `json:"realtime_unavailable"`
	Error               string    `json:"error,omitempty"`
}
