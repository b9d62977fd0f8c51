package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"webbudget/internal/backend"
	applog "webbudget/internal/log"
	"webbudget/internal/metrics"
	"webbudget/internal/middleware/ratelimit"
	"webbudget/internal/middleware/security"
	"webbudget/internal/middleware/trace"
)

type Server struct {
	http.Server
	svc     *backend.Services
	metrics *metrics.Recorder
	ping    func(context.Context) error
}

// NewServer builds the JSON API. ping backs /readyz; ping, rec and limiter
// may be nil.
func NewServer(addr string, svc *backend.Services, rec *metrics.Recorder, ping func(context.Context) error, logger *applog.Logger, limiter *ratelimit.Limiter) *Server {
	s := &Server{svc: svc, metrics: rec, ping: ping}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if rec != nil {
		mux.Handle("GET /metrics", rec.Handler())
	}

	mux.HandleFunc("POST /api/cost-centers", s.handleCreateCostCenter)
	mux.HandleFunc("GET /api/cost-centers", s.handleListCostCenters)
	mux.HandleFunc("GET /api/cost-centers/{id}", s.handleGetCostCenter)
	mux.HandleFunc("PUT /api/cost-centers/{id}", s.handleUpdateCostCenter)
	mux.HandleFunc("DELETE /api/cost-centers/{id}", s.handleDeleteCostCenter)
	mux.HandleFunc("GET /api/cost-centers/{id}/overview", s.handlePeriodOverview)

	mux.HandleFunc("POST /api/movement-classes", s.handleCreateMovementClass)
	mux.HandleFunc("GET /api/movement-classes", s.handleListMovementClasses)
	mux.HandleFunc("PUT /api/movement-classes/{id}", s.handleUpdateMovementClass)
	mux.HandleFunc("DELETE /api/movement-classes/{id}", s.handleDeleteMovementClass)
	mux.HandleFunc("GET /api/movement-classes/{id}/usage", s.handleMovementClassUsage)

	mux.HandleFunc("POST /api/movements", s.handleCreateMovement)
	mux.HandleFunc("GET /api/movements", s.handleListMovements)
	mux.HandleFunc("GET /api/movements/{code}", s.handleGetMovement)
	mux.HandleFunc("PUT /api/movements/{code}", s.handleUpdateMovement)
	mux.HandleFunc("DELETE /api/movements/{code}", s.handleDeleteMovement)
	mux.HandleFunc("POST /api/movements/{code}/pay", s.handlePayMovement)
	mux.HandleFunc("POST /api/movements/{code}/cancel", s.handleCancelMovement)
	mux.HandleFunc("DELETE /api/movements/{code}/card-invoice", s.handleDeleteCardInvoice)

	mux.HandleFunc("POST /api/fixed-movements", s.handleSaveFixedMovement)
	mux.HandleFunc("GET /api/fixed-movements", s.handleListFixedMovements)
	mux.HandleFunc("POST /api/fixed-movements/launch", s.handleLaunchFixedMovements)
	mux.HandleFunc("GET /api/fixed-movements/{id}", s.handleGetFixedMovement)
	mux.HandleFunc("PUT /api/fixed-movements/{id}", s.handleSaveFixedMovement)
	mux.HandleFunc("DELETE /api/fixed-movements/{id}", s.handleDeleteFixedMovement)
	mux.HandleFunc("GET /api/fixed-movements/{id}/launches", s.handleListLaunches)

	mux.HandleFunc("POST /api/wallets", s.handleSaveWallet)
	mux.HandleFunc("GET /api/wallets", s.handleListWallets)
	mux.HandleFunc("GET /api/wallets/{id}", s.handleGetWallet)
	mux.HandleFunc("PUT /api/wallets/{id}", s.handleSaveWallet)
	mux.HandleFunc("POST /api/wallets/{id}/adjust", s.handleAdjustBalance)
	mux.HandleFunc("GET /api/wallets/{id}/ledger", s.handleLedger)
	mux.HandleFunc("POST /api/cards", s.handleSaveCard)
	mux.HandleFunc("GET /api/cards", s.handleListCards)

	mux.HandleFunc("POST /api/periods", s.handleOpenPeriod)
	mux.HandleFunc("GET /api/periods", s.handleListPeriods)
	mux.HandleFunc("GET /api/periods/active", s.handleActivePeriod)
	mux.HandleFunc("POST /api/periods/{id}/close", s.handleClosePeriod)

	var handler http.Handler = mux
	if rec != nil {
		handler = rec.Instrument(handler)
	}
	if limiter != nil {
		handler = limiter.Middleware(handler)
	}
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = applog.Middleware(logger, trace.RequestID)(handler)
	handler = trace.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.InfoContext(ctx, "Shutting down HTTP server")
	return s.Server.Shutdown(ctx)
}
