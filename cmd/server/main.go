package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"medpredict/internal/api"
	"medpredict/internal/cfg"
	"medpredict/internal/domain"
	"medpredict/internal/history"
	"medpredict/internal/metrics"
	"medpredict/internal/model"
	"medpredict/internal/pipeline"
)

func main() {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	configureLogging(c.LogLevel)

	m := metrics.New()
	cache := model.NewCache(c.ModelsDir)
	cache.OnLoad(func(d domain.Domain) { m.ModelLoadedSet(d, true) })

	var (
		store *history.Store
		sink  pipeline.HistorySink
		reads api.HistoryStore
	)
	if c.DataPath != "" {
		store, err = history.New(c.DataPath)
		if err != nil {
			log.Fatal().Err(err).Str("data_path", c.DataPath).Msg("history store open failed")
		}
		defer store.Close()
		sink = store
		reads = store
	} else {
		log.Warn().Msg("DATA_PATH not set, prediction history disabled")
	}

	p := pipeline.New(cache, sink, m)
	auth := api.NewAuth(c.JWTSecret)
	server := api.New(p, cache, reads, m, auth, c.MaxImageBytes)

	srv := &http.Server{
		Addr:         c.ListenAddr,
		Handler:      server.Handler(),
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", c.ListenAddr).Str("models_dir", c.ModelsDir).Msg("starting prediction server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func configureLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if parsed, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(parsed)
	}
}
