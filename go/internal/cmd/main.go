package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/a1ctf/gamesync/go/clients/a1ctf_client"
	"github.com/a1ctf/gamesync/go/internal/config"
	"github.com/a1ctf/gamesync/go/internal/game/channel"
	"github.com/a1ctf/gamesync/go/internal/game/session"
	"github.com/a1ctf/gamesync/go/internal/relay"
	"github.com/a1ctf/gamesync/go/internal/statusapi"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("gamesync failed")
	}
	log.Info().Msg("gamesync shutdown complete")
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	zerolog.SetGlobalLevel(cfg.Level())

	timings := config.DefaultTimings()
	if cfg.TimingsFile != "" {
		if timings, err = config.LoadTimings(cfg.TimingsFile); err != nil {
			return fmt.Errorf("loading timings: %w", err)
		}
	}

	client := a1ctf_client.NewClient(cfg.BaseURL, cfg.AuthToken)
	hubURL, err := client.HubURL(cfg.GameID)
	if err != nil {
		return fmt.Errorf("building hub url: %w", err)
	}

	publisher, err := setupPublisher(ctx, cfg.NatsURL)
	if err != nil {
		return fmt.Errorf("setting up relay: %w", err)
	}
	defer publisher.Close()

	clock := clockwork.NewRealClock()
	events := relay.New(publisher, clock, relay.DefaultConfig())
	hub := statusapi.NewHub(statusapi.DefaultStreamConfig())

	dialerCfg := channel.DefaultDialerConfig()
	dialerCfg.Header = client.Headers()
	dialer := channel.NewWebsocketDialer(dialerCfg)

	sess := session.New(cfg.GameID, cfg.Viewer(), session.Deps{
		Client:  client,
		Dialer:  dialer,
		HubURL:  hubURL,
		Emitter: session.Emitters{events, hub},
		Clock:   clock,
	}, sessionConfig(cfg, timings))

	srv := statusapi.New(cfg.ListenAddr, sess, hub)

	log.Info().
		Str("base_url", cfg.BaseURL).
		Int64("game_id", cfg.GameID).
		Str("listen_addr", cfg.ListenAddr).
		Bool("relay", cfg.NatsURL != "").
		Msg("starting gamesync")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return events.Run(gctx)
	})

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		return sess.Run(gctx)
	})

	g.Go(func() error {
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down status api")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func setupPublisher(ctx context.Context, natsURL string) (relay.Publisher, error) {
	if natsURL == "" {
		log.Info().Msg("NATS_URL not set, session events are not relayed")
		return relay.NoopPublisher{}, nil
	}

	jsCfg := relay.DefaultJetStreamConfig()
	jsCfg.URL = natsURL
	return relay.NewJetStreamPublisher(ctx, jsCfg)
}

func sessionConfig(cfg *config.Config, t config.Timings) session.Config {
	sc := session.DefaultConfig()
	sc.Phase = t.Phase()
	sc.Channel = t.Channel()
	sc.Judge = t.Judge()
	sc.ChallengeBand = t.ChallengeRefresh
	sc.ScoreboardBand = t.ScoreboardRefresh
	sc.Policy = cfg.ReconcilePolicy
	return sc
}
