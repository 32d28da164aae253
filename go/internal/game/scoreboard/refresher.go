package scoreboard

import (
	"context"
	"sync"
	"time"

	"github.com/a1ctf/gamesync/go/internal/game/jitter"
	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Fetcher loads a scoreboard snapshot.
type Fetcher interface {
	GetScoreboard(ctx context.Context, gameID int64) (*models.ScoreboardSnapshot, error)
}

// DefaultBand is the default pull interval band.
func DefaultBand() jitter.Band {
	return jitter.Band{Min: 2000 * time.Millisecond, Max: 4000 * time.Millisecond}
}

// Refresher pulls scoreboard snapshots. Failures are swallowed; the latest
// successful snapshot wins.
type Refresher struct {
	gameID  int64
	fetcher Fetcher
	clock   clockwork.Clock
	band    jitter.Band

	mu       sync.RWMutex
	latest   *models.ScoreboardSnapshot
	failures int

	// OnSnapshot is called after every successful pull.
	OnSnapshot func(*models.ScoreboardSnapshot)
}

func NewRefresher(gameID int64, fetcher Fetcher, clock clockwork.Clock, band jitter.Band) *Refresher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Refresher{gameID: gameID, fetcher: fetcher, clock: clock, band: band}
}

// Latest returns the last successful snapshot, nil before the first.
func (r *Refresher) Latest() *models.ScoreboardSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Failures returns the number of consecutive failed pulls.
func (r *Refresher) Failures() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failures
}

// Run pulls immediately, then on a jittered interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	log.Info().Int64("game_id", r.gameID).Msg("scoreboard refresher started")
	defer log.Info().Int64("game_id", r.gameID).Msg("scoreboard refresher stopped")

	for {
		r.pull(ctx)

		timer := r.clock.NewTimer(r.band.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.Chan():
		}
	}
}

func (r *Refresher) pull(ctx context.Context) {
	snapshot, err := r.fetcher.GetScoreboard(ctx, r.gameID)
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	if err != nil {
		r.failures++
		r.mu.Unlock()
		log.Debug().Err(err).Int64("game_id", r.gameID).Msg("scoreboard pull failed, retrying on next tick")
		return
	}
	snapshot.FetchedAt = r.clock.Now()
	r.latest = snapshot
	r.failures = 0
	r.mu.Unlock()

	if r.OnSnapshot != nil {
		r.OnSnapshot(snapshot)
	}
}
