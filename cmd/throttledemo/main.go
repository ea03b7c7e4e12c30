// Command throttledemo wires the throttlecore engine up to a real
// HTTP server: config bootstrap, store selection, a chi router with
// the ingress middleware installed, and graceful shutdown. It
// generalizes the teacher's gateway entry point (main.go) — config →
// logger → store → engine → router → HTTP server with OS signal
// handling — onto this module's rate-limiting core instead of an LLM
// proxy.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AlfredDev/throttlecore/config"
	"github.com/AlfredDev/throttlecore/engine"
	"github.com/AlfredDev/throttlecore/httpmw"
	"github.com/AlfredDev/throttlecore/logger"
	"github.com/AlfredDev/throttlecore/memstore"
	"github.com/AlfredDev/throttlecore/redisstore"
	"github.com/AlfredDev/throttlecore/store"
)

func main() {
	boot := config.LoadBootstrap()
	log := logger.New(boot.Env)

	log.Info().Str("env", boot.Env).Msg("throttlecore demo starting")

	st := buildStore(log)

	mgr := config.NewManager(config.FileLoader{Path: boot.RulesPath}, boot.ReloadInterval, log)
	if err := mgr.Start(context.Background()); err != nil {
		log.Warn().Err(err).Str("path", boot.RulesPath).Msg("initial rule load failed, starting with an empty rule set")
	}
	defer mgr.Dispose()

	eng := engine.New(mgr, st, log)
	mw := httpmw.New(eng, httpmw.DefaultResponseFabric{}, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mw.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         boot.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", boot.Addr).Msg("throttlecore demo listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), boot.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("throttlecore demo stopped gracefully")
	}
}

func buildStore(log zerolog.Logger) store.Store {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Info().Msg("REDIS_URL not set, using the in-memory store")
		return memstore.New()
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("invalid REDIS_URL, falling back to the in-memory store")
		return memstore.New()
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Msg("redis ping failed, falling back to the in-memory store")
		return memstore.New()
	}

	log.Info().Msg("redis connected")
	return redisstore.New(client)
}
