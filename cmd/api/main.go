package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"rentchain.org/internal/anchor"
	"rentchain.org/internal/config"
	"rentchain.org/internal/httpapi"
	"rentchain.org/internal/market"
	"rentchain.org/internal/market/pg"
	"rentchain.org/internal/obs"
	"rentchain.org/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("RENTCHAIN_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Метрики и логгер
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		store market.Store
		probe httpapi.ReadyProbe
	)
	switch cfg.Store {
	case "pg":
		pgStore, err := pg.Open(ctx, cfg.PGDSN)
		if err != nil {
			log.Fatalf("open pg store: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		probe = httpapi.ReadyProbe{Ping: pgStore.Ping}
	default:
		store = market.NewMemStore()
	}

	sim := anchor.NewSimulated()
	svc := market.NewService(store, sim, sim)

	if cfg.SeedDemo {
		if err := market.SeedDemo(ctx, svc); err != nil {
			log.Fatalf("seed demo data: %v", err)
		}
	}

	events := stream.New()
	api := httpapi.New(probe, version, svc, events).
		Tune(int(cfg.RateRPS), cfg.RateBurst, cfg.MaxBodyBytes, cfg.CORSOrigin, cfg.TokenTTL)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	obs.Info("starting rentchain-api", map[string]any{
		"version": version,
		"addr":    cfg.Addr,
		"store":   cfg.Store,
	})

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Info("shutting down", nil)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	_ = srv.Shutdown(shutdownCtx)
	obs.Info("stopped", nil)
}
