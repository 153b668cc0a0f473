// Package server implements the planner's REST API: registering sample
// tables and reference registries, building plans from them, answering the
// read-only query surface (§5.4) over the most recently built plan, and the
// checkout/complete endpoints a worker polls for dispatch tasks.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spacemake-go/mapplan/internal/config"
	"github.com/spacemake-go/mapplan/internal/executor"
	"github.com/spacemake-go/mapplan/internal/planner"
	"github.com/spacemake-go/mapplan/internal/scheduler"
	"github.com/spacemake-go/mapplan/internal/store"
)

// Server is the planner's REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	scheduler scheduler.Scheduler
	registry  *executor.Registry // optional; stored on the Server, not read by any handler

	mu               sync.RWMutex
	currentQuery     *planner.Query
	currentPlanRunID string
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithExecutorRegistry sets the executor registry held by the Server. Plan
// builds do not consult it.
func WithExecutorRegistry(reg *executor.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New creates a new Server with all routes registered. sched may be nil if
// no in-process scheduling loop is desired (e.g. when workers poll over
// HTTP instead).
func New(cfg config.ServerConfig, st store.Store, sched scheduler.Scheduler, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		scheduler: sched,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// StartScheduler begins the scheduling loop in a background goroutine.
func (s *Server) StartScheduler(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	go func() {
		if err := s.scheduler.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setCurrentPlan installs the most recently built plan's query surface,
// the one GET /api/v1/plans/{project}/{sample}/... answers from.
func (s *Server) setCurrentPlan(planRunID string, q *planner.Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPlanRunID = planRunID
	s.currentQuery = q
}

func (s *Server) currentQueryOrNil() *planner.Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentQuery
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sample-tables", func(r chi.Router) {
			r.Post("/", s.handleCreateSampleTable)
		})

		r.Route("/reference-registries", func(r chi.Router) {
			r.Post("/", s.handleCreateReferenceRegistry)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Post("/", s.handleCreatePlan)
			r.Route("/{project}/{sample}", func(r chi.Router) {
				r.Get("/inputs", s.handlePlanInputs)
				r.Get("/params", s.handlePlanParams)
				r.Get("/symlink-source", s.handlePlanSymlinkSource)
				r.Get("/ribo-log", s.handlePlanRiboLog)
			})
		})

		r.Route("/plan-runs", func(r chi.Router) {
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPlanRun)
				r.Get("/tasks", s.handleListPlanRunTasks)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/checkout", s.handleCheckoutTask)
			r.Route("/{id}", func(r chi.Router) {
				r.Put("/complete", s.handleCompleteTask)
			})
		})
	})
}
