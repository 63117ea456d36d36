package service

import (
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/api"
	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/paycode"
	"github.com/mmynk/settleup/internal/reconcile"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/webhook"
)

// WebhookPath is where bank notifications are delivered.
const WebhookPath = "/webhooks/bank"

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Store         storage.Store
	Authenticator auth.Authenticator
	JWT           *auth.JWTManager
	Codec         *paycode.Codec
	Webhook       webhook.Config
	Location      *time.Location
	Logger        *slog.Logger
}

// NewMux registers every RPC service, the bank webhook and /metrics.
func NewMux(d Deps) *http.ServeMux {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}

	// Auth runs first so the logging interceptor sees the user.
	public := connect.WithInterceptors(middleware.OptionalAuth(d.JWT), middleware.LoggingInterceptor(logger))
	private := connect.WithInterceptors(middleware.RequireAuth(d.JWT), middleware.LoggingInterceptor(logger))

	mux := http.NewServeMux()

	authPath, authHandler := api.NewAuthServiceHandler(
		NewAuthService(d.Authenticator, d.JWT, d.Store, logger), public)
	mux.Handle(authPath, authHandler)

	groupPath, groupHandler := api.NewGroupServiceHandler(NewGroupService(d.Store, logger), private)
	mux.Handle(groupPath, groupHandler)

	expensePath, expenseHandler := api.NewExpenseServiceHandler(NewExpenseService(d.Store, logger), private)
	mux.Handle(expensePath, expenseHandler)

	ledgerPath, ledgerHandler := api.NewLedgerServiceHandler(
		NewLedgerService(d.Store, d.Codec, loc, logger), private)
	mux.Handle(ledgerPath, ledgerHandler)

	reconciler := reconcile.New(d.Store, d.Codec,
		reconcile.WithLogger(logger),
		reconcile.WithLocation(loc),
		reconcile.WithObserver(func(o reconcile.Outcome) { metrics.IncReconcileOutcome(string(o)) }),
	)
	mux.Handle(WebhookPath, NewWebhookHandler(d.Webhook, reconciler, logger))

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}
