package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/domain"
	apimw "github.com/hamed0406/netdetective/internal/httpapi/middleware"
	"github.com/hamed0406/netdetective/internal/repo"
	"github.com/hamed0406/netdetective/internal/scheduler"
)

// Scheduler is the part of *scheduler.Scheduler the API mutates.
type Scheduler interface {
	Upsert(t domain.Target) error
	Remove(id domain.TargetID)
	Jobs() []scheduler.JobInfo
}

type Options struct {
	AllowedOrigins  []string      // empty allows every origin
	DashboardWindow time.Duration // overview aggregation window
	RateLimitPerMin int           // per-IP limit on target mutations; 0 disables
	RateLimitBurst  int
	RequestTimeout  time.Duration
}

type Server struct {
	Logger  *zap.Logger
	Targets repo.TargetStore
	Results repo.ResultStore
	Sched   Scheduler
	opts    Options
	now     func() time.Time
	locks   targetLocks
}

func NewServer(l *zap.Logger, ts repo.TargetStore, rs repo.ResultStore, sched Scheduler, opts Options) *Server {
	if opts.DashboardWindow <= 0 {
		opts.DashboardWindow = time.Hour
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	return &Server{
		Logger:  l,
		Targets: ts,
		Results: rs,
		Sched:   sched,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(s.opts.RequestTimeout))
	r.Use(s.corsHandler())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/targets", s.handleListTargets)
		r.Get("/targets/{id}", s.handleGetTarget)

		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(s.opts.RateLimitPerMin, s.opts.RateLimitBurst))
			r.Post("/targets", s.handleCreateTarget)
			r.Put("/targets/{id}", s.handleUpdateTarget)
			r.Delete("/targets/{id}", s.handleDeleteTarget)
		})

		r.Get("/alerts", s.handleListAlerts)
		r.Get("/dashboard/overview", s.handleOverview)
		r.Get("/dashboard/timeseries", s.handleTimeseries)
		r.Get("/dashboard/availability", s.handleAvailability)
		r.Get("/jobs", s.handleJobs)
	})

	return r
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	if len(s.opts.AllowedOrigins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
