// Package api exposes the ledger service over a thin JSON HTTP surface.
// All rules live in the service; handlers only adapt HTTP to it.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mvisser/groupledger/internal/service"
	"github.com/mvisser/groupledger/internal/storage"
)

// Server holds the HTTP handlers for the ledger service.
type Server struct {
	ledger *service.LedgerService
}

// NewServer creates a Server for the given ledger service.
func NewServer(ledger *service.LedgerService) *Server {
	return &Server{ledger: ledger}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts", s.handleCreateAccount)
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/", s.handleGetAccount)
			r.Get("/balance", s.handleTotalBalance)
			r.Get("/expenses", s.handleMonthlyExpenses)
			r.Get("/members", s.handleListMembers)
			r.Post("/members", s.handleGrantMembership)
			r.Delete("/members/{userID}", s.handleRevokeMembership)
			r.Get("/members/{userID}/balance", s.handleMemberBalance)
			r.Get("/transactions", s.handleRecentTransactions)
			r.Post("/transactions", s.handleRecordTransaction)
		})
		r.Post("/transactions/{txID}/confirm", s.handleConfirmTransaction)
		r.Post("/transactions/{txID}/cancel", s.handleCancelTransaction)
		r.Post("/transactions/{txID}/fail", s.handleFailTransaction)
	})

	return r
}

// requestLogger logs all incoming requests.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInapplicableSplit),
		errors.Is(err, service.ErrMissingMembership):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrTerminalStatus),
		errors.Is(err, service.ErrLastAdmin):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
