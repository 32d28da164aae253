package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Handler processes one relayed event. A returned error naks the message.
type Handler func(ctx context.Context, event Event) error

// ConsumerConfig describes a durable consumer of the session stream.
type ConsumerConfig struct {
	Durable       string
	GameID        int64 // 0 consumes every game
	DeliverPolicy jetstream.DeliverPolicy
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Durable:       "gamesync-tail",
		DeliverPolicy: jetstream.DeliverNewPolicy,
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
	}
}

// ackMsg is the part of jetstream.Msg a handler run needs.
type ackMsg interface {
	Data() []byte
	Subject() string
	Ack() error
	Nak() error
}

// Consumer reads session events back from JetStream.
type Consumer struct {
	nc       *nats.Conn
	consumer jetstream.Consumer
	config   ConsumerConfig
}

func NewConsumer(ctx context.Context, jsCfg JetStreamConfig, cfg ConsumerConfig) (*Consumer, error) {
	nc, js, err := connect(jsCfg, cfg.Durable)
	if err != nil {
		return nil, err
	}

	stream, err := js.Stream(ctx, jsCfg.StreamName)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          cfg.Durable,
		Durable:       cfg.Durable,
		Description:   "Game session event consumer",
		FilterSubject: FilterSubject(jsCfg.SubjectPrefix, cfg.GameID),
		DeliverPolicy: cfg.DeliverPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    cfg.MaxDeliver,
		AckWait:       cfg.AckWait,
		MaxAckPending: cfg.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("stream", jsCfg.StreamName).
		Str("durable", cfg.Durable).
		Int64("game_id", cfg.GameID).
		Msg("JetStream consumer ready")

	return &Consumer{nc: nc, consumer: consumer, config: cfg}, nil
}

// FilterSubject returns the subject filter for one game, or all games when
// gameID is 0.
func FilterSubject(prefix string, gameID int64) string {
	if gameID == 0 {
		return prefix + ".>"
	}
	return fmt.Sprintf("%s.%d.>", prefix, gameID)
}

// Run hands every event to handler until ctx is done.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	log.Info().Str("durable", c.config.Durable).Msg("event consumer started")
	defer log.Info().Str("durable", c.config.Durable).Msg("event consumer stopped")

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-messageCh:
			process(ctx, msg, handler)
		}
	}
}

func (c *Consumer) Close() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}

func process(ctx context.Context, msg ackMsg, handler Handler) {
	var event Event
	err := json.Unmarshal(msg.Data(), &event)
	if err != nil {
		err = fmt.Errorf("unmarshal event: %w", err)
	} else {
		err = handler(ctx, event)
	}

	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process event")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error().Err(nakErr).Msg("failed to NAK message")
		}
		return
	}

	if ackErr := msg.Ack(); ackErr != nil {
		log.Error().Err(ackErr).Msg("failed to ACK message")
	}
}
