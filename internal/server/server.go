// Package server exposes the auction over HTTP: the public item and
// bid endpoints, the cron-triggered close-check, and the admin surface.
package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stepweaver/silent-auction/internal/clock"
	"github.com/stepweaver/silent-auction/internal/closing"
	"github.com/stepweaver/silent-auction/internal/health"
	"github.com/stepweaver/silent-auction/internal/ratelimit"
	"github.com/stepweaver/silent-auction/internal/store"
)

// cronSecretHeader authenticates external scheduler calls. The query
// parameter fallback exists for schedulers that cannot set headers.
const cronSecretHeader = "x-auction-cron-secret"

// BidService accepts bids. Satisfied by *bidding.Service.
type BidService interface {
	PlaceBid(ctx context.Context, slug, email, alias string, amount int64) (*store.Bid, error)
}

// ClosingService runs the closing workflow. Satisfied by
// *closing.Orchestrator.
type ClosingService interface {
	CloseCheck(ctx context.Context, triggeredBy string) closing.Result
	ToggleAuction(ctx context.Context, force, desiredClosed bool) closing.Result
	SendClosingEmailsOnly(ctx context.Context, triggeredBy string) closing.Result
}

// AuthConfig holds the server's authentication material.
type AuthConfig struct {
	CronSecret    string
	AdminUser     string
	AdminPassword string
}

// Server wires the HTTP surface to the domain services.
type Server struct {
	items    store.ItemRepository
	bids     store.BidRepository
	settings store.SettingsRepository
	bidding  BidService
	closing  ClosingService
	limiter  ratelimit.Limiter
	health   *health.Handler
	auth     AuthConfig
	logger   *slog.Logger
	tracer   trace.Tracer
	clock    clock.Clock
}

// New returns a Server.
func New(items store.ItemRepository, bids store.BidRepository, settings store.SettingsRepository, bidSvc BidService, closingSvc ClosingService, limiter ratelimit.Limiter, healthHandler *health.Handler, auth AuthConfig, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Server {
	return &Server{
		items:    items,
		bids:     bids,
		settings: settings,
		bidding:  bidSvc,
		closing:  closingSvc,
		limiter:  limiter,
		health:   healthHandler,
		auth:     auth,
		logger:   logger,
		tracer:   tp.Tracer("github.com/stepweaver/silent-auction/internal/server"),
		clock:    clk,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/healthz", s.health.Live).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.health.Ready).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/items", s.listItems).Methods(http.MethodGet)
	api.HandleFunc("/items/{slug}", s.getItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{slug}/bids", s.placeBid).Methods(http.MethodPost)

	r.HandleFunc("/internal/close-check", s.closeCheck).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/items", s.createItem).Methods(http.MethodPost)
	admin.HandleFunc("/items/{slug}", s.patchItem).Methods(http.MethodPatch)
	admin.HandleFunc("/settings", s.putSettings).Methods(http.MethodPut)
	admin.HandleFunc("/toggle-auction", s.toggleAuction).Methods(http.MethodPost)
	admin.HandleFunc("/send-closing-emails", s.sendClosingEmails).Methods(http.MethodPost)

	return r
}

// observe wraps every request in a span and an access log line.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
			),
		)
		defer span.End()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", sw.status))
		s.logger.InfoContext(ctx, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// requireAdmin enforces HTTP Basic auth on the admin surface.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.auth.AdminUser)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.auth.AdminPassword)) == 1
		if !ok || !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", `Basic realm="auction admin"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cronAuthorized checks the scheduler secret, header first.
func (s *Server) cronAuthorized(r *http.Request) bool {
	secret := r.Header.Get(cronSecretHeader)
	if secret == "" {
		secret = r.URL.Query().Get("secret")
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(s.auth.CronSecret)) == 1
}

// clientIP is the rate-limit identifier: the first forwarded address
// when behind a proxy, otherwise the connection peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
