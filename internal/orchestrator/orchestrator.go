// Package orchestrator drives ingestion jobs through their lifecycle: build
// the provider query, list candidate emails, then fetch and extract each
// candidate while recording progress into the job store.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/arda-labs/reorder-cli/internal/jobstore"
	"github.com/arda-labs/reorder-cli/internal/model"
	"github.com/arda-labs/reorder-cli/internal/query"
	"github.com/arda-labs/reorder-cli/internal/resilience"
	"github.com/arda-labs/reorder-cli/internal/suppliers"
	"github.com/arda-labs/reorder-cli/pkg/extraction"
	"github.com/arda-labs/reorder-cli/pkg/mailbox"
)

// startRetryAttempts bounds retries of the initial candidate search when the
// provider reports a rate limit.
const startRetryAttempts = 3

// retryBaseUnits is the linear backoff base per category, in units of
// Config.RetryUnit. Distinct bases keep staggered categories from retrying
// in lockstep against the same provider.
var retryBaseUnits = map[model.JobCategory]int{
	model.CategoryMarketplace:       3,
	model.CategoryPrioritySuppliers: 4,
	model.CategoryOtherSuppliers:    5,
}

// Archiver persists orders from completed jobs. Optional.
type Archiver interface {
	SaveOrders(ctx context.Context, orders []model.ExtractedOrder) (int, error)
}

// Config tunes orchestrator behavior. Zero values select the defaults.
type Config struct {
	// MaxCandidates caps how many candidate emails one job processes.
	// Default: 50.
	MaxCandidates int

	// FallbackThreshold triggers a fallback re-query when the strict query
	// returns fewer candidates. Default: 5.
	FallbackThreshold int

	// RetryUnit scales the per-category linear backoff bases. Default: 1s,
	// giving bases of 3s/4s/5s. Tests shrink it.
	RetryUnit time.Duration

	// StaggerDelay is the gap between consecutive category starts in
	// StartStaggered. Default: 2s.
	StaggerDelay time.Duration

	// BreakerThreshold is the consecutive extraction failure count that
	// makes the extraction service count as unreachable. Default: 5.
	BreakerThreshold int

	// BreakerCooldown is the probe window after a trip. Default: 30s.
	BreakerCooldown time.Duration

	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 50
	}
	if c.FallbackThreshold <= 0 {
		c.FallbackThreshold = 5
	}
	if c.RetryUnit <= 0 {
		c.RetryUnit = time.Second
	}
	if c.StaggerDelay <= 0 {
		c.StaggerDelay = 2 * time.Second
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Orchestrator owns the write side of the job store. One goroutine drives
// each job; pollers read through the store concurrently.
type Orchestrator struct {
	store     *jobstore.Store
	provider  mailbox.Provider
	extractor extraction.Extractor
	catalog   *suppliers.Catalog
	archive   Archiver
	cfg       Config
}

// New wires an orchestrator. archive may be nil when completed orders should
// not be persisted.
func New(store *jobstore.Store, provider mailbox.Provider, extractor extraction.Extractor, catalog *suppliers.Catalog, archive Archiver, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:     store,
		provider:  provider,
		extractor: extractor,
		catalog:   catalog,
		archive:   archive,
		cfg:       cfg.withDefaults(),
	}
}

// Start creates a job for the owner and begins ingestion. The candidate
// search runs synchronously so start failures surface to the caller: a
// rate-limited search is retried with the category's linear backoff before
// failing, an auth failure is immediate and carries a re-authenticate
// message. On success the per-email pipeline continues asynchronously and
// the returned snapshot is already running.
func (o *Orchestrator) Start(ctx context.Context, ownerKey string, domains []string, category model.JobCategory) (model.Job, error) {
	job := o.store.Create(ownerKey, category)
	log := zap.L().With(
		zap.String("job_id", job.ID),
		zap.String("owner", ownerKey),
		zap.String("category", string(category)),
	)

	refs, err := o.listCandidates(ctx, domains, category, log)
	if err != nil {
		o.store.Fail(job.ID, startFailureReason(err)) //nolint:errcheck
		return model.Job{}, eris.Wrapf(err, "start %s job", category)
	}

	if len(refs) > o.cfg.MaxCandidates {
		refs = refs[:o.cfg.MaxCandidates]
	}

	task := fmt.Sprintf("scanning %d candidate emails", len(refs))
	if err := o.store.MarkRunning(job.ID, len(refs), task); err != nil {
		return model.Job{}, err
	}
	log.Info("job started", zap.Int("candidates", len(refs)))

	// The pipeline outlives the caller's request context; only values
	// (not cancellation) carry over.
	go o.run(context.WithoutCancel(ctx), job.ID, refs, log)

	started, err := o.store.Get(job.ID)
	if err != nil {
		return model.Job{}, err
	}
	return started, nil
}

// listCandidates issues the strict query, retrying rate limits, and falls
// back to the broader query when the strict one returns too few results.
func (o *Orchestrator) listCandidates(ctx context.Context, domains []string, category model.JobCategory, log *zap.Logger) ([]mailbox.EmailRef, error) {
	now := o.cfg.Clock()

	strict, err := query.Build(o.catalog, domains, category, query.ModeStrict, now)
	if err != nil {
		return nil, err
	}

	refs, err := o.searchWithRetry(ctx, strict, category)
	if err != nil {
		return nil, err
	}

	if len(refs) >= o.cfg.FallbackThreshold {
		return refs, nil
	}

	// Too few hits: the subject filter may be excluding real orders.
	fallback, err := query.Build(o.catalog, domains, category, query.ModeFallback, now)
	if err != nil {
		return nil, err
	}
	log.Info("strict query below threshold, re-querying without subject filter",
		zap.Int("strict_results", len(refs)),
	)
	wider, err := o.searchWithRetry(ctx, fallback, category)
	if err != nil {
		return nil, err
	}
	if len(wider) > len(refs) {
		return wider, nil
	}
	return refs, nil
}

func (o *Orchestrator) searchWithRetry(ctx context.Context, q string, category model.JobCategory) ([]mailbox.EmailRef, error) {
	base := time.Duration(retryBaseUnits[category])
	if base == 0 {
		base = time.Duration(retryBaseUnits[model.CategoryOtherSuppliers])
	}
	cfg := resilience.RetryConfig{
		MaxAttempts: startRetryAttempts,
		BaseDelay:   base * o.cfg.RetryUnit,
		Strategy:    resilience.BackoffLinear,
		ShouldRetry: resilience.IsRateLimit,
		OnRetry:     resilience.RetryLogger("mailbox", "search"),
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]mailbox.EmailRef, error) {
		return o.provider.Search(ctx, q, o.cfg.MaxCandidates)
	})
}

// run is the per-job pipeline. It is the only writer for its job id; every
// store call applies atomically, and once the job turns terminal (typically
// supersession) remaining work is discarded.
func (o *Orchestrator) run(ctx context.Context, jobID string, refs []mailbox.EmailRef, log *zap.Logger) {
	breaker := resilience.NewBreaker(o.cfg.BreakerThreshold, o.cfg.BreakerCooldown)
	total := len(refs)

	for i, ref := range refs {
		snap, err := o.store.Get(jobID)
		if err != nil || snap.Status.Terminal() {
			log.Info("job no longer running, discarding remaining candidates",
				zap.Int("remaining", total-i),
			)
			return
		}
		if ctx.Err() != nil {
			o.store.Fail(jobID, "ingestion cancelled") //nolint:errcheck
			return
		}

		o.store.SetTask(jobID, fmt.Sprintf("processing email %d of %d", i+1, total)) //nolint:errcheck

		email, err := o.fetchWithRetry(ctx, ref.ID)
		if err != nil {
			if resilience.IsAuth(err) {
				o.store.Fail(jobID, "email provider rejected credentials: re-authenticate") //nolint:errcheck
				return
			}
			o.store.RecordStep(jobID, jobstore.StepFailed, nil, //nolint:errcheck
				fmt.Sprintf("fetch failed for email %s: %v", ref.ID, eris.Cause(err)))
			continue
		}

		if err := breaker.Allow(); err != nil {
			o.store.Fail(jobID, "extraction service unreachable") //nolint:errcheck
			return
		}

		order, err := o.extractor.Extract(ctx, email)
		breaker.Record(err)
		if err != nil {
			if breaker.Tripped() {
				o.store.Fail(jobID, "extraction service unreachable") //nolint:errcheck
				return
			}
			o.store.RecordStep(jobID, jobstore.StepFailed, nil, //nolint:errcheck
				fmt.Sprintf("extraction failed for email %s: %v", email.ID, eris.Cause(err)))
			continue
		}

		if order == nil {
			o.store.RecordStep(jobID, jobstore.StepSkipped, nil, //nolint:errcheck
				fmt.Sprintf("email %s is not an order", email.ID))
			continue
		}

		o.store.RecordStep(jobID, jobstore.StepOrder, order, //nolint:errcheck
			fmt.Sprintf("extracted order from %s (%d items)", order.Supplier, len(order.Items)))
	}

	o.finish(ctx, jobID, log)
}

func (o *Orchestrator) finish(ctx context.Context, jobID string, log *zap.Logger) {
	snap, err := o.store.Get(jobID)
	if err != nil || snap.Status.Terminal() {
		return
	}

	o.store.Complete(jobID, fmt.Sprintf( //nolint:errcheck
		"scan complete: %d orders from %d emails", snap.Progress.Success, snap.Progress.Processed))
	log.Info("job completed",
		zap.Int("processed", snap.Progress.Processed),
		zap.Int("orders", snap.Progress.Success),
		zap.Int("failed", snap.Progress.Failed),
	)

	if o.archive == nil || len(snap.Orders) == 0 {
		return
	}
	inserted, err := o.archive.SaveOrders(ctx, snap.Orders)
	if err != nil {
		log.Warn("failed to archive orders", zap.Error(err))
		return
	}
	log.Info("archived orders", zap.Int("inserted", inserted), zap.Int("total", len(snap.Orders)))
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, id string) (*mailbox.Email, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = func(err error) bool {
		return resilience.IsTransient(err) || resilience.IsRateLimit(err)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*mailbox.Email, error) {
		return o.provider.Fetch(ctx, id)
	})
}

// startFailureReason maps a start error onto the terminal reason shown to
// pollers.
func startFailureReason(err error) string {
	switch {
	case resilience.IsAuth(err):
		return "email provider rejected credentials: re-authenticate"
	case resilience.IsRateLimit(err):
		return "email provider rate limit exceeded after retries"
	default:
		return fmt.Sprintf("failed to list candidate emails: %v", eris.Cause(err))
	}
}
