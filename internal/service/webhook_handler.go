package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/reconcile"
	"github.com/mmynk/settleup/internal/webhook"
)

const maxWebhookBody = 1 << 20

// Reconciler records a delivery's transactions.
type Reconciler interface {
	ProcessWebhook(ctx context.Context, txns []webhook.Transaction) *reconcile.BatchResult
}

// WebhookHandler receives bank transfer notifications.
//
// A delivery is authenticated by the signature header, or else by the legacy
// static token header. A delivery carrying neither is a provider probe: it is
// acknowledged and nothing is recorded.
type WebhookHandler struct {
	cfg        webhook.Config
	verifier   *webhook.Verifier
	reconciler Reconciler
	logger     *slog.Logger
}

// NewWebhookHandler creates the handler for POST /webhooks/bank.
func NewWebhookHandler(cfg webhook.Config, reconciler Reconciler, logger *slog.Logger) *WebhookHandler {
	cfg = cfg.WithDefaults()
	return &WebhookHandler{
		cfg:        cfg,
		verifier:   cfg.Verifier(),
		reconciler: reconciler,
		logger:     logger,
	}
}

// WebhookResponse is the JSON body returned to the provider.
type WebhookResponse struct {
	Success bool               `json:"success"`
	BatchID string             `json:"batch_id,omitempty"`
	Message string             `json:"message,omitempty"`
	Results []reconcile.Result `json:"results"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, status, resp := h.handle(w, r)
	metrics.ObserveWebhook(result, time.Since(start))
	writeJSON(w, status, resp)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) (string, int, WebhookResponse) {
	if r.Method != http.MethodPost {
		return "rejected", http.StatusMethodNotAllowed, WebhookResponse{Message: "method not allowed"}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		return "invalid", http.StatusRequestEntityTooLarge, WebhookResponse{Message: "payload too large"}
	}

	signature := r.Header.Get(h.cfg.SignatureHeader)
	token := r.Header.Get(h.cfg.LegacyHeader)

	switch {
	case signature != "":
		if err := h.verifier.Verify(signature, body); err != nil {
			h.logger.Warn("Webhook signature rejected", "error", err, "remote_addr", r.RemoteAddr)
			if errors.Is(err, webhook.ErrMissingSecret) {
				return "rejected", http.StatusServiceUnavailable, WebhookResponse{Message: "signing secret not configured"}
			}
			return "unauthorized", http.StatusUnauthorized, WebhookResponse{Message: "invalid signature"}
		}
	case token != "":
		if !webhook.LegacyTokenMatches(h.cfg.LegacyToken, token) {
			h.logger.Warn("Webhook token rejected", "remote_addr", r.RemoteAddr)
			return "unauthorized", http.StatusUnauthorized, WebhookResponse{Message: "invalid token"}
		}
	default:
		h.logger.Info("Webhook probe acknowledged", "remote_addr", r.RemoteAddr)
		return "probe", http.StatusOK, WebhookResponse{Success: true, Message: "ok", Results: []reconcile.Result{}}
	}

	txns, err := webhook.DecodeTransactions(body)
	if errors.Is(err, webhook.ErrNoTransactions) {
		return "empty", http.StatusOK, WebhookResponse{Success: true, Message: "no transactions", Results: []reconcile.Result{}}
	}
	if err != nil {
		h.logger.Warn("Webhook payload rejected", "error", err)
		return "invalid", http.StatusBadRequest, WebhookResponse{Message: err.Error()}
	}

	batch := h.reconciler.ProcessWebhook(r.Context(), txns)
	return "processed", http.StatusOK, WebhookResponse{
		Success: true,
		BatchID: batch.BatchID,
		Results: batch.Results,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
