package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dardasha/relay/internal/adapters/http"
	wssignal "github.com/dardasha/relay/internal/adapters/signal"
	"github.com/dardasha/relay/internal/app"
	"github.com/dardasha/relay/internal/app/audit"
	"github.com/dardasha/relay/internal/app/orch"
	"github.com/dardasha/relay/internal/config"
	"github.com/dardasha/relay/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	store, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect storage")
	}
	defer store.Close()

	rdb, err := storage.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	recorder, err := audit.NewAsynqRecorder(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build audit recorder")
	}
	defer recorder.Close()

	worker, mux, err := audit.NewWorker(cfg.RedisURL, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build audit worker")
	}
	go func() {
		if err := worker.Run(mux); err != nil {
			log.Error().Err(err).Msg("audit worker stopped")
		}
	}()
	defer worker.Shutdown()

	gate := app.NewGate(store, recorder)
	if err := gate.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load filtered words")
	}
	go storage.WatchFilterReload(ctx, rdb, gate.Load)

	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Gate:     gate,
		Store:    store,
		Audit:    recorder,
	}
	o.Broker = app.NewBroker(cfg.NegotiationTimeout, o.PeerEnded)

	ctl := wssignal.NewController(o, store, cfg)
	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("relay server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
