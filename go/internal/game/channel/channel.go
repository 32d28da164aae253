package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrNotEligible is returned by Connect outside the live phases or without
// an approved team.
var ErrNotEligible = errors.New("push channel not eligible in current phase")

// Conn is an open push connection.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens push connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Config holds the reconnection policy.
type Config struct {
	OpenTimeout    time.Duration
	ReconnectDelay time.Duration
	MaxReconnects  int
	InitialDelay   time.Duration
}

// DefaultConfig returns the default reconnection policy.
func DefaultConfig() Config {
	return Config{
		OpenTimeout:    10 * time.Second,
		ReconnectDelay: 3 * time.Second,
		MaxReconnects:  5,
		InitialDelay:   time.Second,
	}
}

// Status is published on every lifecycle change.
type Status struct {
	State               State     `json:"state"`
	Attempt             int       `json:"attempt"`
	NextAttemptAt       time.Time `json:"next_attempt_at,omitempty"`
	RealtimeUnavailable bool      `json:"realtime_unavailable"`
	Err                 error     `json:"-"`
	At                  time.Time `json:"at"`
}

// Eligible reports whether a push connection may be opened.
func Eligible(phase models.Phase, status models.ParticipationStatus) bool {
	return phase.AllowsLiveSync() && status == models.ParticipationApproved
}

// Channel owns one push connection per game session.
type Channel struct {
	url    string
	dialer Dialer
	clock  clockwork.Clock
	config Config

	mu         sync.Mutex
	m          machine
	gen        uint64
	ctx        context.Context
	conn       Conn
	cancelDial context.CancelFunc
	openTimer  clockwork.Timer
	retryTimer clockwork.Timer
	status     Status
	pending    []Status

	// emitMu keeps status delivery in transition order
	emitMu   sync.Mutex
	subsMu   sync.RWMutex
	onStatus []func(Status)
	onNotice []func(models.Notice)
}

// New creates an idle channel for the hub at url.
func New(url string, dialer Dialer, clock clockwork.Clock, config Config) *Channel {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Channel{
		url:    url,
		dialer: dialer,
		clock:  clock,
		config: config,
		m:      machine{state: StateIdle},
		status: Status{State: StateIdle},
	}
}

// OnStatus registers a status subscriber. Subscribers must not call Connect
// or Close synchronously.
func (c *Channel) OnStatus(fn func(Status)) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.onStatus = append(c.onStatus, fn)
}

// OnNotice registers a notice subscriber. Notices arrive in send order.
func (c *Channel) OnNotice(fn func(models.Notice)) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.onNotice = append(c.onNotice, fn)
}

// Status returns the latest status.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect starts the connection lifecycle. It is a no-op when a lifecycle is
// already active.
func (c *Channel) Connect(ctx context.Context, phase models.Phase, status models.ParticipationStatus) error {
	if !Eligible(phase, status) {
		return fmt.Errorf("%w: phase=%s status=%s", ErrNotEligible, phase, status)
	}

	c.mu.Lock()
	c.ctx = ctx
	c.handleLocked(evConnect, nil)
	c.unlockAndEmit()
	return nil
}

// Close ends the lifecycle. No reconnect is attempted afterwards.
func (c *Channel) Close() {
	c.mu.Lock()
	c.handleLocked(evClose, nil)
	c.unlockAndEmit()
}

// handleLocked feeds ev through the machine and performs its effect.
func (c *Channel) handleLocked(ev eventKind, cause error) {
	prev := c.m
	next, eff := transition(c.m, ev, c.config.MaxReconnects)
	c.m = next

	now := c.clock.Now()
	switch eff {
	case effectDialInitial:
		c.gen++
		gen := c.gen
		if c.config.InitialDelay <= 0 {
			c.dialLocked(gen)
			break
		}
		c.retryTimer = c.clock.AfterFunc(c.config.InitialDelay, func() { c.dialDue(gen) })
		c.status.NextAttemptAt = now.Add(c.config.InitialDelay)

	case effectDial:
		c.dialLocked(c.gen)

	case effectScheduleReconnect:
		c.teardownLocked()
		c.gen++
		gen := c.gen
		c.retryTimer = c.clock.AfterFunc(c.config.ReconnectDelay, func() { c.reconnectDue(gen) })
		c.status.NextAttemptAt = now.Add(c.config.ReconnectDelay)
		log.Warn().
			Err(cause).
			Str("url", c.url).
			Int("attempt", next.attempts).
			Dur("delay", c.config.ReconnectDelay).
			Msg("push connection lost, reconnect scheduled")

	case effectGiveUp:
		c.teardownLocked()
		c.gen++
		log.Error().
			Err(cause).
			Str("url", c.url).
			Int("attempts", next.attempts).
			Msg("push connection gave up, realtime updates unavailable")

	case effectShutdown:
		c.teardownLocked()
		c.gen++
		log.Info().Str("url", c.url).Msg("push connection closed")
	}

	if prev == next && eff == effectNone {
		return
	}

	c.status.State = next.state
	c.status.Attempt = next.attempts
	c.status.RealtimeUnavailable = next.exhausted
	c.status.Err = cause
	c.status.At = now
	if eff != effectScheduleReconnect && eff != effectDialInitial {
		c.status.NextAttemptAt = time.Time{}
	}
	c.pending = append(c.pending, c.status)
}

// unlockAndEmit releases mu and delivers queued statuses in order.
func (c *Channel) unlockAndEmit() {
	statuses := c.pending
	c.pending = nil
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()

	if len(statuses) == 0 {
		return
	}

	c.subsMu.RLock()
	subs := append([]func(Status){}, c.onStatus...)
	c.subsMu.RUnlock()

	for _, s := range statuses {
		for _, fn := range subs {
			fn(s)
		}
	}
}

// dialLocked starts a dial guarded by the open timeout.
func (c *Channel) dialLocked(gen uint64) {
	parent := c.ctx
	if parent == nil {
		parent = context.Background()
	}
	dialCtx, cancel := context.WithCancel(parent)
	c.cancelDial = cancel
	// teardown on failure cancels the dial and force-closes a late socket
	c.openTimer = c.clock.AfterFunc(c.config.OpenTimeout, func() {
		c.fail(gen, fmt.Errorf("%w after %s", models.ErrConnectTimeout, c.config.OpenTimeout))
	})

	log.Debug().Str("url", c.url).Int("attempt", c.m.attempts).Msg("dialing push connection")

	go func() {
		conn, err := c.dialer.Dial(dialCtx, c.url)
		if err != nil {
			c.fail(gen, fmt.Errorf("%w: %v", models.ErrConnection, err))
			return
		}
		if !c.opened(gen, conn) {
			_ = conn.Close()
			return
		}
		c.readLoop(gen, conn)
	}()
}

// teardownLocked releases the socket and every timer.
func (c *Channel) teardownLocked() {
	if c.openTimer != nil {
		c.openTimer.Stop()
		c.openTimer = nil
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Channel) opened(gen uint64, conn Conn) bool {
	c.mu.Lock()
	if gen != c.gen || c.m.state != StateConnecting {
		c.mu.Unlock()
		return false
	}

	if c.openTimer != nil {
		c.openTimer.Stop()
		c.openTimer = nil
	}
	c.conn = conn
	c.handleLocked(evOpened, nil)
	log.Info().Str("url", c.url).Msg("push connection established")
	c.unlockAndEmit()
	return true
}

func (c *Channel) fail(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.handleLocked(evFailed, err)
	c.unlockAndEmit()
}

func (c *Channel) dialDue(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.m.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	c.dialLocked(gen)
	c.unlockAndEmit()
}

func (c *Channel) reconnectDue(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	c.handleLocked(evReconnectDue, nil)
	c.unlockAndEmit()
}

func (c *Channel) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func (c *Channel) readLoop(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.fail(gen, fmt.Errorf("%w: %v", models.ErrConnection, err))
			return
		}
		if !c.current(gen) {
			return
		}

		event, err := ParseEvent(data)
		if err != nil {
			log.Warn().Err(err).Str("url", c.url).Msg("skipping malformed push frame")
			continue
		}

		switch e := event.(type) {
		case NoticeEvent:
			c.dispatchNotice(e.Notice)
		case nil:
			log.Debug().Str("url", c.url).Msg("ignoring unknown push event type")
		}
	}
}

func (c *Channel) dispatchNotice(n models.Notice) {
	c.subsMu.RLock()
	subs := append([]func(models.Notice){}, c.onNotice...)
	c.subsMu.RUnlock()

	for _, fn := range subs {
		fn(n)
	}
}
