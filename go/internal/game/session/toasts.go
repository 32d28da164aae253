package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ToastKind classifies a transient user-facing message.
type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastHint    ToastKind = "hint"
	ToastBlood   ToastKind = "blood"
	ToastSuccess ToastKind = "success"
	ToastWarning ToastKind = "warning"
	ToastError   ToastKind = "error"
)

// Toast is one entry of the session's toast feed.
type Toast struct {
	ID      uuid.UUID `json:"id"`
	Kind    ToastKind `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message,omitempty"`
	Medal   string    `json:"medal,omitempty"`
	At      time.Time `json:"at"`
}

// toastFeed is a bounded, newest-last list of toasts.
type toastFeed struct {
	mu    sync.Mutex
	limit int
	items []Toast
}

func newToastFeed(limit int) *toastFeed {
	return &toastFeed{limit: limit}
}

func (f *toastFeed) push(at time.Time, t Toast) Toast {
	t.ID = uuid.New()
	t.At = at

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, t)
	if over := len(f.items) - f.limit; over > 0 {
		f.items = append([]Toast(nil), f.items[over:]...)
	}
	return t
}

func (f *toastFeed) list() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Toast(nil), f.items...)
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
