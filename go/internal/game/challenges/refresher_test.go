package challenges

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a1ctf/gamesync/go/clients"
	"github.com/a1ctf/gamesync/go/internal/game/jitter"
	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor   = 2 * time.Second
	tickEvery = 5 * time.Millisecond
)

type fakeFetcher struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeFetcher) ListChallenges(ctx context.Context, gameID int64) (*models.ChallengeList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return sampleList(), nil
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func startRefresher(t *testing.T, r *Refresher) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestRefresherImmediateThenBand(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{}
	store := NewStore(player, MonotonicMerge)
	r := NewRefresher(1, fetcher, store, clock, DefaultBand())

	var changes atomic.Int32
	r.OnChange = func() { changes.Add(1) }

	startRefresher(t, r)
	blockUntil(t, clock, 1)
	assert.Equal(t, 1, fetcher.Calls())
	assert.Equal(t, int32(1), changes.Load())
	assert.Len(t, store.Grouping(), 3)

	clock.Advance(3999 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, fetcher.Calls())

	clock.Advance(1001 * time.Millisecond)
	require.Eventually(t, func() bool { return fetcher.Calls() == 2 }, waitFor, tickEvery)

	// same list, grouping untouched
	assert.Equal(t, int32(1), changes.Load())
}

func TestRefresherRefreshNow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{}
	r := NewRefresher(1, fetcher, NewStore(player, MonotonicMerge), clock, DefaultBand())

	startRefresher(t, r)
	blockUntil(t, clock, 1)

	r.RefreshNow()
	require.Eventually(t, func() bool { return fetcher.Calls() == 2 }, waitFor, tickEvery)
}

func TestRefresherBadRequestTriggersRecheck(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{err: &clients.HTTPError{StatusCode: http.StatusBadRequest}}
	r := NewRefresher(1, fetcher, NewStore(player, MonotonicMerge), clock, DefaultBand())

	var rechecks, failures atomic.Int32
	r.OnBadRequest = func() { rechecks.Add(1) }
	r.OnError = func(error) { failures.Add(1) }

	startRefresher(t, r)
	blockUntil(t, clock, 1)
	assert.Equal(t, int32(1), rechecks.Load())
	assert.Equal(t, int32(0), failures.Load())
}

func TestRefresherContinuesAfterErrors(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{err: &clients.HTTPError{StatusCode: http.StatusInternalServerError}}
	store := NewStore(player, MonotonicMerge)
	r := NewRefresher(1, fetcher, store, clock, jitter.Band{Min: 4 * time.Second, Max: 4 * time.Second})

	var failures atomic.Int32
	r.OnError = func(error) { failures.Add(1) }

	startRefresher(t, r)
	blockUntil(t, clock, 1)
	assert.Equal(t, int32(1), failures.Load())

	fetcher.setErr(nil)
	clock.Advance(4 * time.Second)
	require.Eventually(t, func() bool { return len(store.Grouping()) == 3 }, waitFor, tickEvery)
	assert.Equal(t, int32(1), failures.Load())
}

func TestRefresherStopsWithContext(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{err: errors.New("boom")}
	r := NewRefresher(1, fetcher, NewStore(player, MonotonicMerge), clock, DefaultBand())

	cancel, done := startRefresher(t, r)
	blockUntil(t, clock, 1)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("refresher did not stop")
	}

	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, fetcher.Calls())
}
