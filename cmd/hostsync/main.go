package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/quizfund/hostsync/internal/config"
	"github.com/quizfund/hostsync/internal/httpapi"
	"github.com/quizfund/hostsync/internal/session"
	"github.com/quizfund/hostsync/internal/transport"
	"github.com/quizfund/hostsync/internal/transport/natsbus"
	"github.com/quizfund/hostsync/internal/transport/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctrlCfg := session.Config{
		RoomID:   cfg.RoomID,
		Identity: cfg.Identity,
		Role:     "host",
		Rounds: session.RoundConfig{
			ReplayThreshold: cfg.ReplayThreshold,
		},
	}
	if cfg.RoomDefaultsPath != "" {
		defaults, err := config.LoadRoomDefaults(cfg.RoomDefaultsPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.RoomDefaultsPath).Msg("failed to load room defaults")
		}
		ctrlCfg.Rounds.QuestionsPerRound = make(map[session.RoundType]int, len(defaults.QuestionsPerRound))
		for name, count := range defaults.QuestionsPerRound {
			ctrlCfg.Rounds.QuestionsPerRound[session.RoundType(name)] = count
		}
		ctrlCfg.Prizes = session.PrizeStructure{
			FirstPlacePct:  defaults.Prizes.FirstPlacePct,
			SecondPlacePct: defaults.Prizes.SecondPlacePct,
			ThirdPlacePct:  defaults.Prizes.ThirdPlacePct,
		}
	}

	bus, err := setupBus(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up room channel")
	}
	defer bus.Close()

	controller := session.NewController(ctrlCfg, bus, clockwork.NewRealClock())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewHandler(controller, controller).Routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return controller.Run(ctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("state API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("state API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("host console terminated")
	}
	log.Info().Msg("host console stopped")
}

func setupBus(cfg config.Config) (transport.Bus, error) {
	switch cfg.Transport {
	case "nats":
		natsCfg := natsbus.DefaultConfig(cfg.RoomID)
		natsCfg.URL = cfg.NATSURL
		return natsbus.New(natsCfg)
	case "websocket":
		return ws.New(ws.DefaultConfig(cfg.WSURL)), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
