package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor   = 2 * time.Second
	tickEvery = 5 * time.Millisecond
)

type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.frames:
		return websocket.TextMessage, f, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// fakeDialer answers dials from a script; past the script it fails, or
// blocks until the dial is cancelled when block is set.
type fakeDialer struct {
	clock clockwork.Clock
	block bool

	mu    sync.Mutex
	conns []*fakeConn
	times []time.Time
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	idx := len(d.times)
	d.times = append(d.times, d.clock.Now())
	var conn *fakeConn
	if idx < len(d.conns) {
		conn = d.conns[idx]
	}
	d.mu.Unlock()

	if conn != nil {
		return conn, nil
	}
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, errors.New("connection refused")
}

func (d *fakeDialer) Dials() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time{}, d.times...)
}

type statusLog struct {
	mu       sync.Mutex
	statuses []Status
}

func (l *statusLog) record(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, s)
}

func (l *statusLog) all() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Status{}, l.statuses...)
}

func noDelayConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = 0
	return cfg
}

func waitStatus(t *testing.T, ch *Channel, state State, attempt int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := ch.Status()
		return s.State == state && s.Attempt == attempt
	}, waitFor, tickEvery, "want %s/%d, have %+v", state, attempt, ch.Status())
}

func TestConnectRequiresEligibility(t *testing.T) {
	ch := New("ws://hub", &fakeDialer{clock: clockwork.NewFakeClock()}, clockwork.NewFakeClock(), DefaultConfig())

	err := ch.Connect(context.Background(), models.PhaseWaitingStart, models.ParticipationApproved)
	assert.ErrorIs(t, err, ErrNotEligible)

	err = ch.Connect(context.Background(), models.PhaseRunning, models.ParticipationParticipated)
	assert.ErrorIs(t, err, ErrNotEligible)

	assert.Equal(t, StateIdle, ch.Status().State)
	assert.True(t, Eligible(models.PhasePracticeMode, models.ParticipationApproved))
}

func TestInitialDelayBeforeFirstDial(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dialer := &fakeDialer{clock: clock, conns: []*fakeConn{newFakeConn()}}
	ch := New("ws://hub", dialer, clock, DefaultConfig())
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background(), models.PhaseRunning, models.ParticipationApproved))
	assert.Equal(t, StateConnecting, ch.Status().State)

	clock.Advance(999 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, dialer.Dials())

	clock.Advance(time.Millisecond)
	waitStatus(t, ch, StateConnected, 0)
	assert.Len(t, dialer.Dials(), 1)
}

func TestDropSchedulesReconnectAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	first, second := newFakeConn(), newFakeConn()
	dialer := &fakeDialer{clock: clock, conns: []*fakeConn{first, second}}
	ch := New("ws://hub", dialer, clock, noDelayConfig())
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background(), models.PhaseRunning, models.ParticipationApproved))
	waitStatus(t, ch, StateConnected, 0)

	clock.Advance(1200 * time.Millisecond)
	_ = first.Close()

	waitStatus(t, ch, StateDisconnected, 1)
	status := ch.Status()
	assert.Equal(t, start.Add(4200*time.Millisecond), status.NextAttemptAt)
	assert.Equal(t, models.ErrorKindConnection, models.Classify(status.Err))

	clock.Advance(2999 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, dialer.Dials(), 1)

	clock.Advance(time.Millisecond)
	waitStatus(t, ch, StateConnected, 0)
	dials := dialer.Dials()
	require.Len(t, dials, 2)
	assert.Equal(t, start.Add(4200*time.Millisecond), dials[1])
}

func TestReconnectsAreBounded(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dialer := &fakeDialer{clock: clock}
	ch := New("ws://hub", dialer, clock, noDelayConfig())
	defer ch.Close()

	log := &statusLog{}
	ch.OnStatus(log.record)

	require.NoError(t, ch.Connect(context.Background(), models.PhaseRunning, models.ParticipationApproved))
	for attempt := 1; attempt <= 5; attempt++ {
		waitStatus(t, ch, StateDisconnected, attempt)
		clock.Advance(3 * time.Second)
	}

	require.Eventually(t, func() bool { return ch.Status().RealtimeUnavailable }, waitFor, tickEvery)

	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)

	dials := dialer.Dials()
	require.Len(t, dials, 6, "initial dial plus five reconnects")
	for i := 1; i < len(dials); i++ {
		assert.Equal(t, 3*time.Second, dials[i].Sub(dials[i-1]))
	}

	statuses := log.all()
	last := statuses[len(statuses)-1]
	assert.True(t, last.RealtimeUnavailable)
	assert.Equal(t, StateDisconnected, last.State)
	for _, s := range statuses {
		assert.LessOrEqual(t, s.Attempt, 5)
	}
}

func TestManualCloseCancelsReconnect(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dialer := &fakeDialer{clock: clock}
	ch := New("ws://hub", dialer, clock, noDelayConfig())

	require.NoError(t, ch.Connect(context.Background(), models.PhaseRunning, models.ParticipationApproved))
	waitStatus(t, ch, StateDisconnected, 1)

	ch.Close()
	assert.Equal(t, StateIdle, ch.Status().State)

	clock.Advance(30 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, dialer.Dials(), 1)
	assert.Equal(t, StateIdle, ch.Status().State)
}

func TestManualCloseWhileConnected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	conn := newFakeConn()
	dialer := &fakeDialer{clock: clock, conns: []*fakeConn{conn}}
	ch := New("ws://hub", dialer, clock, noDelayConfig())

	require.NoError(t, ch.Connect(context.Background(), models.PhaseRunning, models.ParticipationApproved))
	waitStatus(t, ch, StateConnected, 0)

	ch.Close()
	select {
	case <-conn.closed:
	case <-time.After(waitFor):
		t.Fatal("socket not closed")
	}

	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, dialer.Dials(), 1)
	assert.Equal(t, StateIdle, ch.Status().State)
}

func TestOpenTimeoutCountsAsFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dialer := &fakeDialer{clock: clock, block: true}
	ch := New("ws://hub", dialer, clock, noDelayConfig())
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background(), models.PhaseRunning, models.ParticipationApproved))
	require.Eventually(t, func() bool { return len(dialer.Dials()) == 1 }, waitFor, tickEvery)

	clock.Advance(10 * time.Second)
	waitStatus(t, ch, StateDisconnected, 1)
	assert.True(t, errors.Is(ch.Status().Err, models.ErrConnectTimeout))
	assert.Equal(t, models.ErrorKindConnectTimeout, models.Classify(ch.Status().Err))
}

func TestNoticesDispatchedInOrderOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := []string{
		`{"type":"Notice","message":{"notice_id":1,"notice_category":"NewAnnouncement","data":["A"],"create_time":"2026-03-01T10:00:00Z"}}`,
		`{"type":"Heartbeat"}`,
		`not json`,
		`{"type":"Notice","message":{"notice_id":2,"notice_category":"NewHint","data":["web1"],"create_time":"2026-03-01T10:01:00Z"}}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/hub", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("game"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/hub?game=3"
	ch := New(url, NewWebsocketDialer(DefaultDialerConfig()), clockwork.NewFakeClock(), noDelayConfig())
	defer ch.Close()

	var mu sync.Mutex
	var got []models.Notice
	ch.OnNotice(func(n models.Notice) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n)
	})

	require.NoError(t, ch.Connect(context.Background(), models.PhaseRunning, models.ParticipationApproved))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, waitFor, tickEvery)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, models.NoticeNewHint, got[1].Category)
	assert.Equal(t, StateConnected, ch.Status().State)
}
