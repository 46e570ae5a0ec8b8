package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/quarrylabs/sediment/internal/api/handlers"
	mw "github.com/quarrylabs/sediment/internal/api/middleware"
	"github.com/quarrylabs/sediment/internal/config"
	"github.com/quarrylabs/sediment/internal/domain"
	"github.com/quarrylabs/sediment/internal/service"
	"github.com/quarrylabs/sediment/internal/store"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router    *chi.Mux
	Decay     *service.DecayService
	Alignment *service.AlignmentService

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	fragmentStore := store.NewFragmentStore(db)
	knowledgeStore := store.NewKnowledgeStore(db)
	ledgerStore := store.NewLedgerStore(db)
	edgeStore := store.NewEdgeStore(db)
	runLocks := store.NewRunLockStore(db)

	// Services
	decaySvc := service.NewDecayService(fragmentStore, knowledgeStore, logger)
	decaySvc.SetInterval(config.DecayInterval())
	plannerSvc := service.NewPlannerService(fragmentStore, runLocks, logger)
	plannerSvc.SetScanWindow(config.ConsolidationScanWindow())
	executorSvc := service.NewExecutorService(fragmentStore, knowledgeStore, ledgerStore, logger)
	ledgerSvc := service.NewLedgerService(knowledgeStore, ledgerStore, logger)
	alignmentSvc := service.NewAlignmentService(fragmentStore, edgeStore, runLocks, logger)
	alignmentSvc.SetInterval(config.AlignmentInterval())
	statsSvc := service.NewStatsService(fragmentStore, knowledgeStore, ledgerStore, logger)

	// Handlers
	fragmentHandler := handlers.NewFragmentHandler(fragmentStore, decaySvc, logger)
	knowledgeHandler := handlers.NewKnowledgeHandler(knowledgeStore, ledgerSvc, decaySvc, logger)
	lifecycleHandler := handlers.NewLifecycleHandler(decaySvc, plannerSvc, executorSvc, alignmentSvc)
	statsHandler := handlers.NewStatsHandler(statsSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Decay:     decaySvc,
		Alignment: alignmentSvc,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		r.Route("/fragments", func(r chi.Router) {
			r.Post("/", fragmentHandler.Create)
			r.Get("/{id}", fragmentHandler.GetByID)
		})

		r.Route("/knowledge", func(r chi.Router) {
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", knowledgeHandler.GetByID)
				r.Get("/log", knowledgeHandler.GetAuditLog)
				r.Post("/strengthen", knowledgeHandler.Strengthen)
				r.Post("/contradict", knowledgeHandler.Contradict)
				r.Post("/supersede", knowledgeHandler.Supersede)
			})
		})

		r.Route("/lifecycle", func(r chi.Router) {
			r.Post("/decay", lifecycleHandler.TriggerDecay)
			r.Post("/align", lifecycleHandler.TriggerAlign)
			r.Get("/candidates", lifecycleHandler.GetCandidates)
			r.Post("/consolidate", lifecycleHandler.Consolidate)
			r.Post("/promote", lifecycleHandler.Promote)
		})

		r.Get("/stats", statsHandler.Get)
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that manage workers
// themselves.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.FragmentStore  = (*store.FragmentStore)(nil)
	_ domain.KnowledgeStore = (*store.KnowledgeStore)(nil)
	_ domain.LedgerStore    = (*store.LedgerStore)(nil)
	_ domain.EdgeStore      = (*store.EdgeStore)(nil)
	_ domain.RunLocker      = (*store.RunLockStore)(nil)
)
