package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	ids      []string
}

func (p *flakyPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.ids = append(p.ids, event.ID.String())
	if p.failures > 0 {
		p.failures--
		return errors.New("nats: timeout")
	}
	return nil
}

func (p *flakyPublisher) Close() error { return nil }

func (p *flakyPublisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestRelayRetriesWithSameEventID(t *testing.T) {
	clock := clockwork.NewFakeClock()
	pub := &flakyPublisher{failures: 1}
	r := New(pub, clock, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	event, err := NewEvent(1, EventTypeChallengeSolved, ChallengeSolvedPayload{ChallengeID: 3, Source: "judge"}, clock.Now())
	require.NoError(t, err)
	r.Emit(event)

	bctx, bcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer bcancel()
	require.NoError(t, clock.BlockUntilContext(bctx, 1))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		published, _ := r.Stats()
		return published == 1
	}, 2*time.Second, 5*time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.ids, 2)
	assert.Equal(t, pub.ids[0], pub.ids[1])
}

func TestRelayDropsWhenQueueFull(t *testing.T) {
	r := New(NoopPublisher{}, clockwork.NewFakeClock(), Config{QueueSize: 1, MaxRetries: 0})

	event, err := NewEvent(1, EventTypeNoticeReceived, struct{}{}, time.Now())
	require.NoError(t, err)
	r.Emit(event)
	r.Emit(event)

	_, dropped := r.Stats()
	assert.Equal(t, 1, dropped)
}

func TestRelayGivesUpAfterRetries(t *testing.T) {
	pub := &flakyPublisher{failures: 10}
	r := New(pub, clockwork.NewRealClock(), Config{QueueSize: 4, MaxRetries: 2, RetryDelay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	event, err := NewEvent(1, EventTypeNoticeReceived, struct{}{}, time.Now())
	require.NoError(t, err)
	r.Emit(event)

	require.Eventually(t, func() bool {
		_, dropped := r.Stats()
		return dropped == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, pub.Calls())
}
