package challenges

import (
	"context"
	"net/http"
	"time"

	"github.com/a1ctf/gamesync/go/internal/game/jitter"
	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Fetcher loads the challenge list of a game.
type Fetcher interface {
	ListChallenges(ctx context.Context, gameID int64) (*models.ChallengeList, error)
}

// DefaultBand is the default refresh interval band.
func DefaultBand() jitter.Band {
	return jitter.Band{Min: 4000 * time.Millisecond, Max: 5000 * time.Millisecond}
}

// Refresher periodically pulls the challenge list into a Store.
type Refresher struct {
	gameID  int64
	fetcher Fetcher
	store   *Store
	clock   clockwork.Clock
	band    jitter.Band
	wakeCh  chan struct{}

	// OnBadRequest is called for a 400 answer, which usually means the team
	// status changed.
	OnBadRequest func()
	// OnError is called for every other failed refresh.
	OnError func(error)
	// OnChange is called when the grouping was replaced.
	OnChange func()
}

// NewRefresher creates a refresher feeding store.
func NewRefresher(gameID int64, fetcher Fetcher, store *Store, clock clockwork.Clock, band jitter.Band) *Refresher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Refresher{
		gameID:  gameID,
		fetcher: fetcher,
		store:   store,
		clock:   clock,
		band:    band,
		wakeCh:  make(chan struct{}, 1),
	}
}

// RefreshNow wakes the loop for an early refresh. It never blocks.
func (r *Refresher) RefreshNow() {
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
}

// Run refreshes immediately, then on a jittered interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	log.Info().Int64("game_id", r.gameID).Msg("challenge refresher started")
	defer log.Info().Int64("game_id", r.gameID).Msg("challenge refresher stopped")

	r.refresh(ctx)

	timer := r.clock.NewTimer(r.band.Next())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.Chan():
		case <-r.wakeCh:
			log.Debug().Int64("game_id", r.gameID).Msg("early challenge refresh requested")
			stopAndDrainTimer(timer)
		}

		r.refresh(ctx)
		timer.Reset(r.band.Next())
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	list, err := r.fetcher.ListChallenges(ctx, r.gameID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if models.HTTPStatusOf(err) == http.StatusBadRequest {
			log.Warn().Err(err).Int64("game_id", r.gameID).Msg("challenge refresh rejected, rechecking team status")
			if r.OnBadRequest != nil {
				r.OnBadRequest()
			}
			return
		}
		log.Error().Err(err).Int64("game_id", r.gameID).Msg("failed to refresh challenges")
		if r.OnError != nil {
			r.OnError(err)
		}
		return
	}

	if ctx.Err() != nil {
		return
	}

	if r.store.Apply(list) {
		log.Debug().Int64("game_id", r.gameID).Int("challenges", len(list.Challenges)).Msg("challenge grouping updated")
		if r.OnChange != nil {
			r.OnChange()
		}
	}
}

// stopAndDrainTimer stops a timer and drains a pending fire.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
