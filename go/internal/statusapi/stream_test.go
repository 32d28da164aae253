package statusapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/a1ctf/gamesync/go/internal/relay"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStreamBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(DefaultStreamConfig())
	go hub.Run(ctx)

	srv := httptest.NewServer(Handler(newFakeSession(), hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connections() == 1 }, 2*time.Second, 5*time.Millisecond)

	event, err := relay.NewEvent(7, relay.EventTypePhaseChanged, relay.PhaseChangedPayload{From: "waitingStart", To: "running"}, time.Now())
	require.NoError(t, err)
	hub.Emit(event)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got relay.Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, relay.EventTypePhaseChanged, got.EventType)

	cancel()
	require.Eventually(t, func() bool { return hub.Connections() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestEventStreamRouteNeedsHub(t *testing.T) {
	rec := do(t, Handler(newFakeSession(), nil), "GET", "/api/events", "")
	assert.Equal(t, 404, rec.Code)
}
