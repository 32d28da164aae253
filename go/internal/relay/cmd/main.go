package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/a1ctf/gamesync/go/internal/relay"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type tailConfig struct {
	NatsURL string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	GameID  int64  `env:"A1_GAME_ID"`
	Durable string `env:"TAIL_DURABLE" envDefault:"gamesync-tail"`
}

// Prints every relayed session event of one game, or of all games.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := env.ParseAs[tailConfig]()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	jsCfg := relay.DefaultJetStreamConfig()
	jsCfg.URL = cfg.NatsURL

	consumerCfg := relay.DefaultConsumerConfig()
	consumerCfg.Durable = cfg.Durable
	consumerCfg.GameID = cfg.GameID

	consumer, err := relay.NewConsumer(ctx, jsCfg, consumerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create consumer")
	}
	defer consumer.Close()

	err = consumer.Run(ctx, func(ctx context.Context, event relay.Event) error {
		log.Info().
			Str("event_id", event.ID.String()).
			Int64("game_id", event.GameID).
			Str("event_type", string(event.EventType)).
			Time("created_at", event.CreatedAt).
			RawJSON("payload", event.Payload).
			Msg("event")
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("consumer failed")
	}
}
