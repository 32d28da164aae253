package phase

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

// InfoFetcher loads the team/game info of one game.
type InfoFetcher interface {
	GetGameInfo(ctx context.Context, gameID int64) (*models.GameInfo, error)
}

// Config holds the controller's cadence.
type Config struct {
	// Tick is how often a time-sensitive phase is re-derived.
	Tick time.Duration
	// PendingPoll is how often game info is re-fetched while pending.
	PendingPoll time.Duration
}

// DefaultConfig returns the default controller cadence.
func DefaultConfig() Config {
	return Config{
		Tick:        500 * time.Millisecond,
		PendingPoll: 2 * time.Second,
	}
}

// Transition is published whenever the derived phase changes.
type Transition struct {
	From models.Phase
	To   models.Phase
	At   time.Time
	Info *models.GameInfo
}

// Controller derives and tracks the phase of one game.
type Controller struct {
	gameID  int64
	fetcher InfoFetcher
	clock   clockwork.Clock
	config  Config
	wakeCh  chan struct{}

	mu     sync.RWMutex
	phase  models.Phase
	info   *models.GameInfo
	subs   []func(Transition)
	subsMu sync.Mutex
}

// NewController creates a controller for gameID.
func NewController(gameID int64, fetcher InfoFetcher, clock clockwork.Clock, config Config) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		gameID:  gameID,
		fetcher: fetcher,
		clock:   clock,
		config:  config,
		wakeCh:  make(chan struct{}, 1),
	}
}

// Subscribe registers fn for every transition. Subscribers run synchronously
// on the controller goroutine, in registration order.
func (c *Controller) Subscribe(fn func(Transition)) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs = append(c.subs, fn)
}

// Phase returns the current phase, "" before the first fetch completes.
func (c *Controller) Phase() models.Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Info returns the last fetched game info.
func (c *Controller) Info() *models.GameInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// Countdown returns the display countdown at the current clock time.
func (c *Controller) Countdown() Countdown {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ComputeCountdown(c.phase, c.info, c.clock.Now())
}

// Recheck asks the controller to re-fetch game info as soon as possible.
// It never blocks.
func (c *Controller) Recheck() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// Run fetches game info and keeps the phase current until the context is
// cancelled or a phase that stops synchronization is reached.
func (c *Controller) Run(ctx context.Context) error {
	log.Info().Int64("game_id", c.gameID).Msg("phase controller started")
	defer log.Info().Int64("game_id", c.gameID).Str("phase", c.Phase().String()).Msg("phase controller stopped")

	fetched := c.refresh(ctx)
	nextStatusPoll := c.clock.Now().Add(c.config.PendingPoll)

	ticker := c.clock.NewTicker(c.config.Tick)
	defer ticker.Stop()

	for {
		if c.Phase().StopsSync() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-c.wakeCh:
			log.Debug().Int64("game_id", c.gameID).Msg("status recheck requested")
			fetched = c.refresh(ctx)
			nextStatusPoll = c.clock.Now().Add(c.config.PendingPoll)

		case now := <-ticker.Chan():
			switch {
			case !fetched:
				fetched = c.refresh(ctx)
			case c.Phase() == models.PhasePending:
				if !now.Before(nextStatusPoll) {
					fetched = c.refresh(ctx)
					nextStatusPoll = c.clock.Now().Add(c.config.PendingPoll)
				}
			case c.Phase().IsTimeSensitive():
				c.apply(c.Info(), c.clock.Now())
			}
		}
	}
}

// refresh fetches game info and applies it. It reports whether a usable
// answer (including "not found") was obtained.
func (c *Controller) refresh(ctx context.Context) bool {
	info, err := c.fetch(ctx)
	if err != nil {
		if errors.Is(err, models.ErrGameNotFound) {
			c.apply(nil, c.clock.Now())
			return true
		}
		if ctx.Err() == nil {
			log.Error().Err(err).Int64("game_id", c.gameID).Msg("failed to fetch game info, retrying on next tick")
		}
		return false
	}

	c.apply(info, c.clock.Now())
	return true
}

func (c *Controller) fetch(ctx context.Context) (*models.GameInfo, error) {
	info, err := c.fetcher.GetGameInfo(ctx, c.gameID)
	if err != nil {
		return nil, fmt.Errorf("get game info: %w", err)
	}
	if info == nil {
		return nil, models.ErrGameNotFound
	}
	return info, nil
}

func (c *Controller) apply(info *models.GameInfo, now time.Time) {
	next := Derive(InputsFrom(info, now))

	c.mu.Lock()
	prev := c.phase
	c.info = info
	c.phase = next
	c.mu.Unlock()

	if prev == next {
		return
	}

	log.Info().
		Int64("game_id", c.gameID).
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("phase transition")

	c.subsMu.Lock()
	subs := append([]func(Transition){}, c.subs...)
	c.subsMu.Unlock()

	t := Transition{From: prev, To: next, At: now, Info: info}
	for _, fn := range subs {
		fn(t)
	}
}
