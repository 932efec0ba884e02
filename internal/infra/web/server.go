package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-weather-bot/internal/domain"
	"telegram-weather-bot/internal/infra/logging"
	"telegram-weather-bot/internal/infra/metrics"
	"telegram-weather-bot/internal/usecase"
)

const (
	dispatchRoute     = "/api/v1/dispatch"
	healthTimeout     = 2 * time.Second
	dispatchTimeout   = 2 * time.Minute
	readHeaderTimeout = 5 * time.Second
)

// Dispatcher runs one dispatch pass; overrideTime may be empty.
type Dispatcher interface {
	Dispatch(ctx context.Context, overrideTime string) (*usecase.DispatchReport, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server is the admin HTTP surface: health, metrics and manual dispatch.
type Server struct {
	addr       string
	dispatcher Dispatcher
	auth       *AuthManager
	checks     map[string]HealthCheck
	log        *zerolog.Logger
	srv        *http.Server
}

// NewServer builds the admin server. A nil auth disables the dispatch endpoint.
func NewServer(addr string, dispatcher Dispatcher, auth *AuthManager, checks map[string]HealthCheck, logger *zerolog.Logger) *Server {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	s := &Server{
		addr:       addr,
		dispatcher: dispatcher,
		auth:       auth,
		checks:     checks,
		log:        logging.Component(logger, "admin_http"),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID, Recover(s.log), RequestLog(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.With(Timeout(dispatchTimeout), s.requireAdmin).Post(dispatchRoute, s.handleDispatch)
	return r
}

// Start blocks serving until Shutdown. After Shutdown it returns nil at once.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.addr).Msg("admin http listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			metrics.IncAdminRequest(dispatchRoute, "disabled")
			writeError(w, http.StatusForbidden, "admin api is disabled")
			return
		}
		claims, err := s.auth.ParseFromRequest(r)
		switch {
		case errors.Is(err, ErrForbidden):
			metrics.IncAdminRequest(dispatchRoute, "forbidden")
			writeError(w, http.StatusForbidden, err.Error())
			return
		case err != nil:
			metrics.IncAdminRequest(dispatchRoute, "unauthorized")
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		metrics.IncAdminRequest(dispatchRoute, "authorized")
		logging.With(r.Context(), s.log).Info().Str("subject", claims.Subject).Msg("admin request")
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	code := http.StatusOK
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	report, err := s.dispatcher.Dispatch(r.Context(), r.URL.Query().Get("time"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, "time must be HH:MM")
			return
		}
		logging.With(r.Context(), s.log).Error().Err(err).Msg("manual dispatch failed")
		writeError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
