package judge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor   = 2 * time.Second
	tickEvery = 5 * time.Millisecond
)

// fakeClient answers status queries from a script; the last entry repeats.
type fakeClient struct {
	mu        sync.Mutex
	script    []models.JudgeStatus
	submitErr error
	queryErr  error
	queries   int
	submits   int
	hold      chan struct{}
}

func (c *fakeClient) SubmitFlag(ctx context.Context, gameID, challengeID int64, flag string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits++
	if c.submitErr != nil {
		return "", c.submitErr
	}
	return "3f2b8c1e-4b7a-4c8e-9a55-0d7c2b1f6e10", nil
}

func (c *fakeClient) GetJudgeStatus(ctx context.Context, gameID int64, judgeID string) (models.JudgeStatus, error) {
	c.mu.Lock()
	c.queries++
	idx := c.queries - 1
	hold := c.hold
	c.mu.Unlock()

	if hold != nil {
		<-hold
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queryErr != nil {
		return "", c.queryErr
	}
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	return c.script[idx], nil
}

func (c *fakeClient) Queries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queries
}

type fakeStore struct {
	mu       sync.Mutex
	accepted []int64
}

func (s *fakeStore) MarkAccepted(challengeID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted = append(s.accepted, challengeID)
}

func (s *fakeStore) Accepted() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64{}, s.accepted...)
}

type outcomes struct {
	mu   sync.Mutex
	list []Outcome
}

func (o *outcomes) record(out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, out)
}

func (o *outcomes) all() []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Outcome{}, o.list...)
}

func newManager(t *testing.T, client Client) (*Manager, *clockwork.FakeClock, *fakeStore, *outcomes) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := &fakeStore{}
	mgr := NewManager(context.Background(), 1, client, store, clock, DefaultConfig())
	t.Cleanup(mgr.Stop)
	out := &outcomes{}
	mgr.OnOutcome(out.record)
	return mgr, clock, store, out
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestAcceptedOnNthPoll(t *testing.T) {
	const n = 3
	client := &fakeClient{script: []models.JudgeStatus{models.JudgeQueueing, models.JudgeRunning, models.JudgeAC}}
	mgr, clock, store, out := newManager(t, client)

	mgr.Open(5)
	require.NoError(t, mgr.Submit(5, "flag{right}"))

	for i := 1; i <= n; i++ {
		blockUntil(t, clock, 1)
		assert.Equal(t, 1, mgr.ActivePolls())
		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return client.Queries() == i }, waitFor, tickEvery)
	}

	require.Eventually(t, func() bool { return len(out.all()) == 1 }, waitFor, tickEvery)
	result := out.all()[0]
	assert.Equal(t, models.JudgeResultAccepted, result.Result)
	assert.Equal(t, n, result.Polls)
	assert.Equal(t, []int64{5}, store.Accepted())
	assert.Equal(t, 0, mgr.ActivePolls())

	clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, client.Queries(), "poll loop must stop after the verdict")

	// the grace timer already fired during the advance above
	require.Eventually(t, func() bool { return !mgr.View(5).Open }, waitFor, tickEvery)
	assert.Equal(t, StateIdle, mgr.View(5).State)
}

func TestFormClosesAfterGrace(t *testing.T) {
	client := &fakeClient{script: []models.JudgeStatus{models.JudgeAC}}
	mgr, clock, _, out := newManager(t, client)

	mgr.Open(5)
	require.NoError(t, mgr.Submit(5, "flag{right}"))
	blockUntil(t, clock, 1)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(out.all()) == 1 }, waitFor, tickEvery)

	blockUntil(t, clock, 1)
	clock.Advance(199 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, mgr.View(5).Open)

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return !mgr.View(5).Open }, waitFor, tickEvery)
}

func TestWrongAnswerShowsInlineError(t *testing.T) {
	client := &fakeClient{script: []models.JudgeStatus{models.JudgeWA}}
	mgr, clock, store, out := newManager(t, client)

	mgr.Open(5)
	require.NoError(t, mgr.Submit(5, "wrong{}"))
	blockUntil(t, clock, 1)
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return len(out.all()) == 1 }, waitFor, tickEvery)
	assert.Equal(t, models.JudgeResultWrong, out.all()[0].Result)
	assert.Equal(t, 1, client.Queries())
	assert.Empty(t, store.Accepted())

	form := mgr.View(5)
	assert.True(t, form.InlineError)
	assert.True(t, form.Open)
	assert.Equal(t, StateIdle, form.State)

	assert.False(t, mgr.Focus(5).InlineError)

	// a retry is allowed once idle
	require.NoError(t, mgr.Submit(5, "flag{retry}"))
}

func TestJudgeTimeoutSurfacesError(t *testing.T) {
	client := &fakeClient{script: []models.JudgeStatus{models.JudgeTimeout}}
	mgr, clock, _, out := newManager(t, client)

	require.NoError(t, mgr.Submit(5, "flag{slow}"))
	blockUntil(t, clock, 1)
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return len(out.all()) == 1 }, waitFor, tickEvery)
	assert.Equal(t, models.ErrorKindJudgeTimeout, out.all()[0].Kind)
	assert.False(t, mgr.View(5).InlineError)
}

func TestSubmitFailureErrors(t *testing.T) {
	client := &fakeClient{submitErr: errors.New("connection reset")}
	mgr, _, _, out := newManager(t, client)

	require.NoError(t, mgr.Submit(5, "flag{x}"))
	require.Eventually(t, func() bool { return len(out.all()) == 1 }, waitFor, tickEvery)
	assert.Equal(t, models.JudgeResultError, out.all()[0].Result)
	assert.Equal(t, 0, client.Queries())
	assert.Equal(t, StateIdle, mgr.View(5).State)
}

func TestQueryFailureErrors(t *testing.T) {
	client := &fakeClient{queryErr: errors.New("503")}
	mgr, clock, _, out := newManager(t, client)

	require.NoError(t, mgr.Submit(5, "flag{x}"))
	blockUntil(t, clock, 1)
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return len(out.all()) == 1 }, waitFor, tickEvery)
	assert.Equal(t, models.JudgeResultError, out.all()[0].Result)
	assert.Equal(t, 0, mgr.ActivePolls())
}

func TestOneRunPerChallenge(t *testing.T) {
	client := &fakeClient{script: []models.JudgeStatus{models.JudgeRunning}}
	mgr, clock, _, _ := newManager(t, client)

	require.NoError(t, mgr.Submit(5, "flag{a}"))
	err := mgr.Submit(5, "flag{b}")
	assert.ErrorIs(t, err, ErrJudgeInFlight)

	// another challenge is independent
	require.NoError(t, mgr.Submit(6, "flag{c}"))
	blockUntil(t, clock, 2)
	assert.Equal(t, 2, mgr.ActivePolls())

	assert.ErrorIs(t, mgr.Submit(7, "   "), ErrEmptyFlag)
}

func TestDismissCancelsPollTimer(t *testing.T) {
	client := &fakeClient{script: []models.JudgeStatus{models.JudgeRunning}}
	mgr, clock, _, out := newManager(t, client)

	mgr.Open(5)
	require.NoError(t, mgr.Submit(5, "flag{x}"))
	blockUntil(t, clock, 1)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return client.Queries() == 1 }, waitFor, tickEvery)
	blockUntil(t, clock, 1)

	mgr.Dismiss(5)
	assert.Equal(t, 0, mgr.ActivePolls())

	clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, client.Queries())
	assert.Empty(t, out.all())

	form := mgr.Open(5)
	assert.Empty(t, form.Input)
	assert.False(t, form.InlineError)
	assert.Equal(t, StateIdle, form.State)
}

func TestLateResponseAfterDismissIgnored(t *testing.T) {
	hold := make(chan struct{})
	client := &fakeClient{script: []models.JudgeStatus{models.JudgeAC}, hold: hold}
	mgr, clock, store, out := newManager(t, client)

	require.NoError(t, mgr.Submit(5, "flag{x}"))
	blockUntil(t, clock, 1)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return client.Queries() == 1 }, waitFor, tickEvery)

	mgr.Dismiss(5)
	close(hold)
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, out.all())
	assert.Empty(t, store.Accepted())
	assert.Equal(t, StateIdle, mgr.View(5).State)
}

func TestStopCancelsEverything(t *testing.T) {
	client := &fakeClient{script: []models.JudgeStatus{models.JudgeRunning}}
	mgr, clock, _, _ := newManager(t, client)

	require.NoError(t, mgr.Submit(5, "flag{x}"))
	require.NoError(t, mgr.Submit(6, "flag{y}"))
	blockUntil(t, clock, 2)

	mgr.Stop()
	assert.Equal(t, 0, mgr.ActivePolls())
	assert.ErrorIs(t, mgr.Submit(7, "flag{z}"), ErrStopped)

	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, client.Queries())
}
