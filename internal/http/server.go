// Package http exposes the ledger core over a small JSON API.
package http

import (
	"net/http"
	"time"

	"condoledger/internal/ident"
	"condoledger/internal/ledger"
	"condoledger/internal/log"
	"condoledger/internal/metrics"
	"condoledger/internal/middleware/ratelimit"
	"condoledger/internal/reporting"
)

type Server struct {
	ledger  *ledger.Service
	reports *reporting.Aggregator
	ids     *ident.Formatter
	metrics *metrics.Collector
	limiter *ratelimit.Limiter
}

// NewServer wires the API routes and returns a configured http.Server.
// The metrics collector and rate limiter are optional.
func NewServer(addr string, svc *ledger.Service, reports *reporting.Aggregator, ids *ident.Formatter, collector *metrics.Collector, limiter *ratelimit.Limiter) *http.Server {
	s := &Server{
		ledger:  svc,
		reports: reports,
		ids:     ids,
		metrics: collector,
		limiter: limiter,
	}

	return &http.Server{
		Addr:           addr,
		Handler:        log.RequestLogger(s.routes()),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("GET /api/v1/accounts/{clientID}/{unitID}/balance", s.handleGetBalance)
	mux.HandleFunc("POST /api/v1/accounts/{clientID}/{unitID}/deltas", s.handleApplyDelta)
	mux.HandleFunc("POST /api/v1/accounts/{clientID}/{unitID}/manual-entries", s.handleAppendManualEntry)
	mux.HandleFunc("GET /api/v1/accounts/{clientID}/{unitID}/entries", s.handleGetHistory)
	mux.HandleFunc("GET /api/v1/accounts/{clientID}/{unitID}/quarters/{fiscalYear}/{quarter}", s.handleQuarterSummary)

	if s.limiter != nil {
		return s.limiter.Middleware(handleRateLimited)(mux)
	}
	return mux
}

func handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, retry with the same transaction ref")
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
