package channel

import (
	"encoding/json"
	"fmt"

	"github.com/a1ctf/gamesync/go/internal/models"
)

// Envelope is the frame pushed by the hub
type Envelope struct {
	Type    EventType       `json:"type"`
	Message json.RawMessage `json:"message"`
}

// EventType represents the type of pushed event
type EventType string

const (
	EventTypeNotice EventType = "Notice"
)

// Event is one parsed frame. NoticeEvent is the only variant today.
type Event interface {
	eventType() EventType
}

// NoticeEvent carries one game notice.
type NoticeEvent struct {
	Notice models.Notice
}

func (NoticeEvent) eventType() EventType { return EventTypeNotice }

// ParseEvent parses a raw frame. Unknown event types return a nil event and
// a nil error.
func ParseEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	switch env.Type {
	case EventTypeNotice:
		var notice models.Notice
		if err := json.Unmarshal(env.Message, &notice); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notice: %w", err)
		}
		if !notice.Category.Valid() {
			return nil, fmt.Errorf("unknown notice category %q", notice.Category)
		}
		return NoticeEvent{Notice: notice}, nil

	default:
		return nil, nil
	}
}
