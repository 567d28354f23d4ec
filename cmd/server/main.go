package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"amm-backend/internal/api"
	"amm-backend/internal/config"
	"amm-backend/internal/engine"
	"amm-backend/internal/identity"
	"amm-backend/internal/market"
	"amm-backend/internal/state"
	"amm-backend/internal/store"
	"amm-backend/internal/store/postgres"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Info("Starting AMM Backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Errorf("Server failed: %v", err)
		os.Exit(1)
	}
	log.Info("Shut down cleanly")
}

func run(ctx context.Context, cfg *config.Config) error {
	journal, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	markets := market.NewManager()
	ledger := state.NewLedger(nil)
	eng := engine.New(markets, ledger, identity.AddressMatcher{}, engine.SystemClock{}, engine.Options{
		CurrencyScale:      cfg.Defaults.CurrencyScale,
		ClaimDecimals:      cfg.Defaults.ClaimDecimals,
		MinTrade:           cfg.MinTrade,
		MaxTrade:           cfg.MaxTrade,
		ResolveAfterExpiry: cfg.ResolveAfterExpiry,
	})
	log.Info("Market engine initialized")

	recorder := store.NewRecorder(journal, eng.Market, 1024)
	eng.Subscribe(recorder.Record)

	lifecycle := market.NewLifecycleManager(markets, cfg.LifecycleInterval, nil)
	lifecycle.OnDeactivate(eng.MarketDeactivated)

	server := api.NewServer(cfg, eng, journal)
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Hub().Run(gctx) })
	g.Go(func() error { return recorder.Run(gctx) })
	g.Go(func() error {
		lifecycle.Start(gctx)
		<-gctx.Done()
		lifecycle.Stop()
		return nil
	})
	g.Go(func() error {
		log.Infof("Server starting on port %s", cfg.ServerPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openJournal connects to Postgres when DATABASE_URL is set and falls back
// to an in-memory journal otherwise.
func openJournal(ctx context.Context, cfg *config.Config) (store.Journal, error) {
	if cfg.DatabaseURL == "" {
		log.Info("Event journal kept in memory (no DATABASE_URL set)")
		return store.NewMemoryJournal(), nil
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, 10)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("Event journal connected to Postgres")
	return postgres.NewJournal(pool), nil
}
