package relay

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type Config struct {
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:  256,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Relay publishes events in the background so session loops never block on
// the bus.
type Relay struct {
	publisher Publisher
	clock     clockwork.Clock
	config    Config
	queue     chan Event

	mu        sync.Mutex
	published int
	dropped   int
}

func New(publisher Publisher, clock clockwork.Clock, config Config) *Relay {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Relay{
		publisher: publisher,
		clock:     clock,
		config:    config,
		queue:     make(chan Event, config.QueueSize),
	}
}

// Emit queues event. A full queue drops it.
func (r *Relay) Emit(event Event) {
	select {
	case r.queue <- event:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		log.Warn().Str("event_type", string(event.EventType)).Msg("relay queue full, dropping event")
	}
}

// Stats returns the number of published and dropped events.
func (r *Relay) Stats() (published, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published, r.dropped
}

// Run publishes queued events until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	log.Info().Msg("event relay started")
	defer log.Info().Msg("event relay stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-r.queue:
			r.publish(ctx, event)
		}
	}
}

func (r *Relay) publish(ctx context.Context, event Event) {
	for attempt := 0; ; attempt++ {
		err := r.publisher.Publish(ctx, event)
		if err == nil {
			r.mu.Lock()
			r.published++
			r.mu.Unlock()
			return
		}

		if attempt >= r.config.MaxRetries || ctx.Err() != nil {
			r.mu.Lock()
			r.dropped++
			r.mu.Unlock()
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", string(event.EventType)).
				Int("attempts", attempt+1).
				Msg("failed to publish event, dropping")
			return
		}

		log.Warn().Err(err).Str("event_id", event.ID.String()).Int("retry", attempt+1).Msg("publish failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(r.config.RetryDelay * time.Duration(attempt+1)):
		}
	}
}
