package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arda-labs/reorder-cli/internal/model"
)

// StartRequest names one category to ingest and the supplier domains it
// should scan.
type StartRequest struct {
	Category model.JobCategory
	Domains  []string
}

// categoryOrder fixes the stagger sequence: the marketplace scan goes first,
// then priority suppliers, then the rest.
var categoryOrder = map[model.JobCategory]int{
	model.CategoryMarketplace:       0,
	model.CategoryPrioritySuppliers: 1,
	model.CategoryOtherSuppliers:    2,
}

// StartStaggered starts several category jobs for one owner with a fixed
// delay between consecutive starts, so the bursts against the provider do
// not land simultaneously. Jobs are keyed per (owner, category) so sibling
// categories started together do not supersede each other; starting the
// same category again does.
//
// All requested jobs are started even if some fail; the first start error is
// returned alongside the jobs that did start.
func (o *Orchestrator) StartStaggered(ctx context.Context, ownerKey string, reqs []StartRequest) ([]model.Job, error) {
	ordered := make([]StartRequest, len(reqs))
	copy(ordered, reqs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return categoryOrder[ordered[i].Category] < categoryOrder[ordered[j].Category]
	})

	var (
		g    errgroup.Group
		mu   sync.Mutex
		jobs []model.Job
	)
	for i, req := range ordered {
		req := req
		delay := time.Duration(i) * o.cfg.StaggerDelay
		g.Go(func() error {
			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
				}
			}

			job, err := o.Start(ctx, ownerKey+"/"+string(req.Category), req.Domains, req.Category)
			if err != nil {
				zap.L().Warn("staggered start failed",
					zap.String("category", string(req.Category)),
					zap.Error(err),
				)
				return err
			}
			mu.Lock()
			jobs = append(jobs, job)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	sort.SliceStable(jobs, func(i, j int) bool {
		return categoryOrder[jobs[i].Category] < categoryOrder[jobs[j].Category]
	})
	return jobs, err
}
