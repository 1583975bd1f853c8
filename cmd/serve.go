package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arda-labs/reorder-cli/internal/inventory"
	"github.com/arda-labs/reorder-cli/internal/jobstore"
	"github.com/arda-labs/reorder-cli/internal/model"
	"github.com/arda-labs/reorder-cli/internal/resilience"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP API. Split out so handler tests can exercise it
// without binding a port.
func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/jobs", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OwnerKey string   `json:"owner_key"`
			Category string   `json:"category"`
			Domains  []string `json:"domains"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.OwnerKey == "" {
			writeError(w, http.StatusBadRequest, "owner_key is required")
			return
		}
		category := model.JobCategory(req.Category)
		switch category {
		case model.CategoryMarketplace, model.CategoryPrioritySuppliers, model.CategoryOtherSuppliers:
		default:
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}

		job, err := env.Orchestrator.Start(r.Context(), req.OwnerKey, req.Domains, category)
		if err != nil {
			status := http.StatusBadGateway
			switch {
			case resilience.IsRateLimit(err):
				status = http.StatusTooManyRequests
			case resilience.IsAuth(err):
				status = http.StatusUnauthorized
			}
			zap.L().Warn("job start failed", zap.Error(err))
			writeError(w, status, eris.Cause(err).Error())
			return
		}
		writeJSON(w, http.StatusAccepted, job)
	})

	r.Get("/jobs/latest", func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			writeError(w, http.StatusBadRequest, "owner is required")
			return
		}
		job, err := env.Store.LatestFor(owner)
		if err != nil {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, err := env.Store.Get(chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, jobstore.ErrNotFound) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	r.Get("/report", func(w http.ResponseWriter, r *http.Request) {
		orders, err := env.Archive.LoadAll(r.Context())
		if err != nil {
			zap.L().Error("report query failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "report query failed")
			return
		}
		writeJSON(w, http.StatusOK, inventory.Aggregate(orders))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
