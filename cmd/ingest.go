package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arda-labs/reorder-cli/internal/model"
	"github.com/arda-labs/reorder-cli/internal/orchestrator"
)

var (
	ingestOwner      string
	ingestCategories []string
	ingestDomains    []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scan supplier emails and extract orders",
	Long:  "Starts one staggered ingestion job per requested category, polls until every job is terminal, and archives the extracted orders.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		reqs, err := buildStartRequests(env)
		if err != nil {
			return err
		}

		jobs, err := env.Orchestrator.StartStaggered(ctx, ingestOwner, reqs)
		if err != nil && len(jobs) == 0 {
			return err
		}
		if err != nil {
			zap.L().Warn("some categories failed to start", zap.Error(err))
		}
		for _, j := range jobs {
			fmt.Printf("started %-18s job %s (%d candidates)\n", j.Category, j.ID, j.Progress.Total)
		}

		if err := pollJobs(ctx, env, jobs); err != nil {
			return err
		}
		return nil
	},
}

// buildStartRequests maps the requested category names onto domain lists:
// the marketplace category scans the catalog's marketplace domain, the
// priority category scans the catalog's priority suppliers, and the other
// category scans the domains given with --domains.
func buildStartRequests(env *appEnv) ([]orchestrator.StartRequest, error) {
	var reqs []orchestrator.StartRequest
	for _, name := range ingestCategories {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "marketplace":
			reqs = append(reqs, orchestrator.StartRequest{
				Category: model.CategoryMarketplace,
				Domains:  []string{env.Catalog.Marketplace},
			})
		case "priority":
			domains := make([]string, 0, len(env.Catalog.Priority))
			for _, s := range env.Catalog.Priority {
				domains = append(domains, s.Domain)
			}
			reqs = append(reqs, orchestrator.StartRequest{
				Category: model.CategoryPrioritySuppliers,
				Domains:  domains,
			})
		case "other":
			if len(ingestDomains) == 0 {
				return nil, eris.New("the other category requires --domains")
			}
			reqs = append(reqs, orchestrator.StartRequest{
				Category: model.CategoryOtherSuppliers,
				Domains:  ingestDomains,
			})
		default:
			return nil, eris.Errorf("unknown category %q (want marketplace, priority, or other)", name)
		}
	}
	if len(reqs) == 0 {
		return nil, eris.New("no categories requested")
	}
	return reqs, nil
}

// pollJobs watches the store until every started job is terminal, printing
// progress transitions as they happen.
func pollJobs(ctx context.Context, env *appEnv, jobs []model.Job) error {
	lastProcessed := make(map[string]int, len(jobs))
	pending := make(map[string]model.JobCategory, len(jobs))
	for _, j := range jobs {
		pending[j.ID] = j.Category
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var totalOrders int
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for id, category := range pending {
			job, err := env.Store.Get(id)
			if err != nil {
				delete(pending, id)
				continue
			}
			if job.Progress.Processed != lastProcessed[id] {
				lastProcessed[id] = job.Progress.Processed
				fmt.Printf("%-18s %d/%d processed, %d orders\n",
					category, job.Progress.Processed, job.Progress.Total, job.Progress.Success)
			}
			if !job.Status.Terminal() {
				continue
			}
			delete(pending, id)
			totalOrders += job.Progress.Success
			if job.Status == model.JobStatusFailed {
				fmt.Printf("%-18s failed: %s\n", category, job.Error)
			} else {
				fmt.Printf("%-18s completed: %d orders from %d emails\n",
					category, job.Progress.Success, job.Progress.Processed)
			}
		}
	}

	fmt.Printf("done: %d orders extracted\n", totalOrders)
	return nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOwner, "owner", "local", "owner key for the started jobs")
	ingestCmd.Flags().StringSliceVar(&ingestCategories, "categories", []string{"marketplace", "priority"}, "categories to ingest: marketplace, priority, other")
	ingestCmd.Flags().StringSliceVar(&ingestDomains, "domains", nil, "supplier domains for the other category")
	rootCmd.AddCommand(ingestCmd)
}
