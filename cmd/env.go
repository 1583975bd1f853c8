package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arda-labs/reorder-cli/internal/archive"
	"github.com/arda-labs/reorder-cli/internal/jobstore"
	"github.com/arda-labs/reorder-cli/internal/orchestrator"
	"github.com/arda-labs/reorder-cli/internal/suppliers"
	"github.com/arda-labs/reorder-cli/pkg/extraction"
	"github.com/arda-labs/reorder-cli/pkg/mailbox"
)

// appEnv holds the wired ingestion components shared by the ingest, status,
// and serve commands.
type appEnv struct {
	Store        *jobstore.Store
	Orchestrator *orchestrator.Orchestrator
	Archive      *archive.Archive
	Catalog      *suppliers.Catalog

	stopJanitor context.CancelFunc
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.stopJanitor != nil {
		e.stopJanitor()
	}
	if e.Archive != nil {
		_ = e.Archive.Close()
	}
}

// initEnv validates the config for the given command mode, wires the relay
// client, extractor, archive, job store, and orchestrator, and starts the
// eviction janitor. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}

	arc, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		return nil, err
	}
	if err := arc.Migrate(ctx); err != nil {
		_ = arc.Close()
		return nil, eris.Wrap(err, "migrate archive")
	}

	provider := mailbox.NewClient(cfg.Relay.Token,
		mailbox.WithBaseURL(cfg.Relay.BaseURL),
		mailbox.WithRateLimit(cfg.Relay.RatePerSecond, cfg.Relay.Burst),
	)
	extractor := extraction.NewExtractor(extraction.NewClient(cfg.Anthropic.Key), extraction.Config{
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
	})

	store := jobstore.New(jobstore.Options{
		Retention: time.Duration(cfg.Job.RetentionMins) * time.Minute,
	})

	janitorCtx, stopJanitor := context.WithCancel(context.WithoutCancel(ctx))
	go store.Janitor(janitorCtx, time.Duration(cfg.Job.SweepIntervalMins)*time.Minute)

	orch := orchestrator.New(store, provider, extractor, catalog, arc, orchestrator.Config{
		MaxCandidates:     cfg.Job.MaxCandidates,
		FallbackThreshold: cfg.Job.FallbackThreshold,
	})

	return &appEnv{
		Store:        store,
		Orchestrator: orch,
		Archive:      arc,
		Catalog:      catalog,
		stopJanitor:  stopJanitor,
	}, nil
}

func loadCatalog() (*suppliers.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return suppliers.DefaultCatalog(), nil
	}
	catalog, err := suppliers.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	zap.L().Info("loaded supplier catalog", zap.String("path", cfg.Catalog.Path))
	return catalog, nil
}
