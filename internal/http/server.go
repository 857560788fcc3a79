// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pocket/internal/auth"
	"pocket/internal/log"
	"pocket/internal/middleware/ratelimit"
	"pocket/internal/middleware/security"
	"pocket/internal/services"
)

// Config wires a Server. Tokens may be nil, in which case every request is
// served signed-out.
type Config struct {
	Addr            string
	Ledger          *services.LedgerService
	Tokens          *auth.TokenService
	RateLimitPerMin int
	Logger          *log.Logger
}

type Server struct {
	http.Server
	ledger   *services.LedgerService
	tokens   *auth.TokenService
	limiter  *ratelimit.Limiter
	detector *security.Detector
	validate *validator.Validate
	logger   *log.Logger

	shutdownOnce sync.Once
}

func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	detector, err := security.NewDetector()
	if err != nil {
		return nil, err
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		ledger:   cfg.Ledger,
		tokens:   cfg.Tokens,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMin}),
		detector: detector,
		validate: newValidator(),
		logger:   logger.WithComponent(log.ComponentHTTP),
	}
	s.Handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Use(s.withMetrics)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.withIdentity)

	writes := s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
	})
	write := func(h http.HandlerFunc) http.Handler { return writes(h) }

	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.Handle("/transactions", write(s.handleCreateTransaction)).Methods(http.MethodPost)
	api.Handle("/transactions/{id}", write(s.handleDeleteTransaction)).Methods(http.MethodDelete)

	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)

	api.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.Handle("/accounts", write(s.handleAddAccount)).Methods(http.MethodPost)
	api.Handle("/accounts/{name}", write(s.handleRemoveAccount)).Methods(http.MethodDelete)
	api.Handle("/accounts/{name}/primary", write(s.handleSetPrimary)).Methods(http.MethodPut)
	api.Handle("/accounts/{name}/move", write(s.handleMoveAccount)).Methods(http.MethodPost)

	api.HandleFunc("/rules", s.handleListRules).Methods(http.MethodGet)
	api.Handle("/rules", write(s.handleAddRule)).Methods(http.MethodPost)
	api.Handle("/rules/{id}", write(s.handleDeleteRule)).Methods(http.MethodDelete)

	var h http.Handler = r
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.withRequestLogging(h)
	return h
}

// Shutdown stops background work and drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ready(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "remote store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
