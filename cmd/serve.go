package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/briefing"
	"github.com/sells-group/account-intel/internal/classify"
	"github.com/sells-group/account-intel/internal/embed"
	"github.com/sells-group/account-intel/internal/ingest"
	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/monitoring"
	"github.com/sells-group/account-intel/internal/resilience"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		checker := monitoring.NewChecker(
			monitoring.NewCollector(env.Store),
			monitoring.NewAlerter(cfg.Monitoring),
			env.Metrics,
			cfg.Monitoring,
		)
		go checker.Run(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the trigger API. Jobs run synchronously and respond with
// their structured result.
func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: env.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &handlers{env: env}
	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", env.Metrics.Handler())
	r.Get("/runs", h.listRuns)
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/ingest", h.ingest)
		r.Post("/news", h.news)
		r.Post("/classify", h.classify)
		r.Post("/embed", h.embed)
		r.Post("/briefing", h.briefing)
	})
	return r
}

type handlers struct {
	env *appEnv
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	circuits := make(map[string]string)
	status := "ok"
	for name, state := range h.env.Breakers.States() {
		circuits[name] = state.String()
		if state == resilience.CircuitOpen {
			status = "degraded"
		}
	}

	backlog, err := h.env.Store.CountDocumentsMissingEmbedding(r.Context())
	if err != nil {
		zap.L().Error("health: store check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": "store unreachable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            status,
		"circuits":          circuits,
		"embedding_backlog": backlog,
	})
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.RunFilter{
		Kind:        model.RunKind(q.Get("kind")),
		AccountSlug: q.Get("account"),
		Status:      model.RunStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := h.env.Store.ListRunLogs(r.Context(), filter)
	if err != nil {
		zap.L().Error("runs: list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.PipelineRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handlers) ingest(w http.ResponseWriter, r *http.Request) {
	if slug := r.URL.Query().Get("account"); slug != "" {
		rep, err := h.env.IngestAccount(r.Context(), slug)
		respondJob(w, rep, err)
		return
	}
	summary, err := h.env.IngestAll(r.Context())
	logSummary(summary)
	respondJob(w, summary, err)
}

func (h *handlers) news(w http.ResponseWriter, r *http.Request) {
	rep, err := h.env.FetchNews(r.Context())
	respondJob(w, rep, err)
}

func (h *handlers) classify(w http.ResponseWriter, r *http.Request) {
	rep, err := h.env.ClassifyNews(r.Context())
	respondJob(w, rep, err)
}

func (h *handlers) embed(w http.ResponseWriter, r *http.Request) {
	batchSize := 0
	if v := r.URL.Query().Get("batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "batch_size must be a positive integer")
			return
		}
		batchSize = n
	}
	rep, err := h.env.EmbedPending(r.Context(), batchSize)
	respondJob(w, rep, err)
}

func (h *handlers) briefing(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if slug := r.URL.Query().Get("account"); slug != "" {
		rep, err := h.env.BriefAccount(r.Context(), slug, date)
		respondJob(w, rep, err)
		return
	}
	summary, err := h.env.BriefAll(r.Context(), date)
	logSummary(summary)
	respondJob(w, summary, err)
}

// respondJob writes a job result. Failures keep the partial result in the
// body next to the error.
func respondJob(w http.ResponseWriter, result any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}
	status := jobErrorStatus(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("job failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]any{"error": err.Error(), "result": result})
}

func jobErrorStatus(err error) int {
	switch {
	case errors.Is(err, ingest.ErrAccountNotFound), errors.Is(err, briefing.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrNoActiveSeeds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrServiceMisconfigured),
		errors.Is(err, classify.ErrServiceMisconfigured),
		errors.Is(err, embed.ErrServiceMisconfigured),
		errors.Is(err, briefing.ErrServiceMisconfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
