package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jjenkins/billwatch/internal/config"
	"github.com/jjenkins/billwatch/internal/logger"
	"github.com/jjenkins/billwatch/internal/service"
	"github.com/jjenkins/billwatch/internal/store"
)

// app is the wiring shared by every command
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *sql.DB
	redis  *service.RedisLocker
	bills  *store.BillStore
	syncer *service.Syncer
	// enricher is nil when no AI key is configured
	enricher *service.Enricher
}

func newApp(cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	log.Info("Connecting to database...")
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db, bills: store.NewBillStore(db)}

	var locks service.Locker = service.NewKeyedMutex()
	if cfg.RedisURL != "" {
		a.redis, err = service.NewRedisLocker(cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		locks = a.redis
		log.Info("Using redis bill locks", "ttl", cfg.LockTTL)
	}

	if cfg.AIAPIKey != "" {
		mode, err := service.ParseEnrichMode(cfg.EnrichMode)
		if err != nil {
			a.Close()
			return nil, err
		}
		extractor := service.NewExtractor(cfg.DocumentTimeout, log.With("component", "extractor"))
		summarizer := service.NewAIClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout)
		a.enricher = service.NewEnricher(a.bills, extractor, summarizer, mode, log.With("component", "enricher"))
	} else {
		log.Warn("AI_API_KEY not set, bill enrichment is disabled")
	}

	client := service.NewLegiScanClient(cfg.LegiScanBaseURL, cfg.LegiScanAPIKey, cfg.UpstreamTimeout)
	reconciler := service.NewReconciler(a.bills, locks, a.enricher, log.With("component", "reconciler"))
	a.syncer = service.NewSyncer(client, a.bills, reconciler, cfg.SyncConcurrency, log.With("component", "syncer"))

	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
	a.log.Sync()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(log *logger.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Info("Received interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
