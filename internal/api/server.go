// Package api exposes the guard over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"WalletGuard/internal/guard"
	"WalletGuard/internal/metrics"
	"WalletGuard/internal/payment"
)

// Server holds the handlers' dependencies.
type Server struct {
	guard   *guard.Guard
	sender  *payment.Sender
	metrics *metrics.Metrics
	logger  *zap.Logger
	legacy  map[string]legacyHandler
}

// NewServer creates a Server. sender and m may be nil; the routes that need
// them are then not mounted.
func NewServer(g *guard.Guard, sender *payment.Sender, m *metrics.Metrics, logger *zap.Logger) *Server {
	s := &Server{guard: g, sender: sender, metrics: m, logger: logger}
	s.legacy = s.legacyActions()
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(s.logger))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/smart-limit", s.handleLegacy)

		r.Route("/wallets/{walletKey}", func(r chi.Router) {
			r.Get("/spending", s.getSpending)
			r.Put("/limits/daily", s.setDailyLimit)
			r.Put("/limits/monthly", s.setMonthlyLimit)
			r.Post("/freeze", s.freeze)
			r.Post("/unfreeze", s.unfreeze)
			r.Post("/emergency-freeze", s.emergencyFreeze)
			r.Post("/reset", s.resetSpending)

			r.Post("/validate", s.validate)
			r.Post("/can-spend", s.canSpend)
			r.Post("/release", s.release)
			r.Get("/analytics", s.analytics)

			r.Get("/settings", s.getSettings)
			r.Put("/settings", s.putSettings)

			r.Get("/contacts", s.listContacts)
			r.Post("/contacts", s.addContact)
			r.Get("/contacts/{name}", s.getContact)
			r.Delete("/contacts/{name}", s.removeContact)
			r.Put("/contacts/{name}/trusted", s.setContactTrusted)

			r.Get("/transactions", s.transactionHistory)
			r.Post("/transactions", s.logTransaction)

			if s.sender != nil {
				r.Post("/send", s.send)
				r.Get("/account", s.account)
			}
		})
	})

	return r
}

// LoggerMiddleware logs HTTP requests.
func LoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr))
		})
	}
}
