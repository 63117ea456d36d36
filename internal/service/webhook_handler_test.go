package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/paycode"
	"github.com/mmynk/settleup/internal/reconcile"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/webhook"
)

func postWebhook(t *testing.T, env *testEnv, body []byte, headers map[string]string) (int, WebhookResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, env.server.URL+WebhookPath, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	var out WebhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.StatusCode, out
}

func signed(t *testing.T, body []byte) map[string]string {
	t.Helper()
	header, err := webhook.Sign([]byte(testWebhookSecret), time.Now(), body)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return map[string]string{webhook.DefaultSignatureHeader: header}
}

func transferPayload(reference, description string, amount int) []byte {
	return fmt.Appendf(nil, `{
		"error": 0,
		"data": [{
			"id": 1,
			"reference": %q,
			"description": %q,
			"amount": %d,
			"transactionDateTime": "2024-03-10 09:00:00",
			"accountNumber": "9990001",
			"counterAccountName": "BOB",
			"counterAccountNumber": "0004445556",
			"counterAccountBankName": "ACB"
		}]
	}`, reference, description, amount)
}

func TestWebhookSignedDelivery(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "alice@example.com", "Alice", "0001112223")
	bob := env.register(t, "bob@example.com", "Bob", "0004445556")

	memo := "IBFT " + env.codec.Encode(paycode.Token{
		CreditorID: alice.user.ID,
		DebtorID:   bob.user.ID,
		Year:       2024,
		Month:      3,
	}) + " chuyen tien"
	body := transferPayload("FT24070001", memo, 100000)

	status, resp := postWebhook(t, env, body, signed(t, body))
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("expected success, got %d %+v", status, resp)
	}
	if resp.BatchID == "" {
		t.Error("expected a batch id")
	}
	if len(resp.Results) != 1 || resp.Results[0].Outcome != reconcile.Recorded {
		t.Fatalf("expected one recorded result, got %+v", resp.Results)
	}

	payments, err := env.store.ListPayments(context.Background(), storage.PaymentFilter{DebtorID: &bob.user.ID})
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}
	p := payments[0]
	if p.CreditorID == nil || *p.CreditorID != alice.user.ID {
		t.Errorf("expected creditor %d, got %v", alice.user.ID, p.CreditorID)
	}
	if p.Year != 2024 || p.Month != 3 {
		t.Errorf("expected period 2024-03, got %d-%02d", p.Year, p.Month)
	}
	if p.Status != models.PaymentConfirmed {
		t.Errorf("expected confirmed, got %s", p.Status)
	}

	// The provider retries the same delivery.
	status, resp = postWebhook(t, env, body, signed(t, body))
	if status != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", status)
	}
	if len(resp.Results) != 1 || resp.Results[0].Outcome != reconcile.Duplicate {
		t.Errorf("replay: expected duplicate, got %+v", resp.Results)
	}
}

func TestWebhookFallbackToBankAccount(t *testing.T) {
	env := setupTestServer(t)
	bob := env.register(t, "bob@example.com", "Bob", "0004445556")

	body := transferPayload("FT24070002", "tien dien thang 3", 50000)
	status, resp := postWebhook(t, env, body, signed(t, body))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(resp.Results) != 1 || resp.Results[0].Outcome != reconcile.Recorded {
		t.Fatalf("expected recorded, got %+v", resp.Results)
	}
	if resp.Results[0].DebtorID != bob.user.ID {
		t.Errorf("expected debtor %d, got %d", bob.user.ID, resp.Results[0].DebtorID)
	}
}

func TestWebhookMixedDelivery(t *testing.T) {
	env := setupTestServer(t)
	bob := env.register(t, "bob@example.com", "Bob", "0004445556")

	body := []byte(`{"error":0,"data":[
		{"id":"TX-1","reference":"FT1","description":"rent","amount":100000,
		 "transactionDateTime":"2024-03-10 09:00:00","counterAccountNumber":"0004445556"},
		{"id":"TX-2","reference":"FT2","description":"rent","amount":"abc",
		 "transactionDateTime":"2024-03-10 09:05:00","counterAccountNumber":"0004445556"}]}`)

	status, resp := postWebhook(t, env, body, signed(t, body))
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("expected success, got %d %+v", status, resp)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", resp.Results)
	}
	if r := resp.Results[0]; r.Outcome != reconcile.Recorded || r.Reference != "FT1" {
		t.Errorf("valid transaction: expected recorded, got %+v", r)
	}
	if r := resp.Results[1]; r.Outcome != reconcile.Failed || r.Reference != "FT2" || r.Error == "" {
		t.Errorf("malformed transaction: expected failed, got %+v", r)
	}

	payments, err := env.store.ListPayments(context.Background(), storage.PaymentFilter{DebtorID: &bob.user.ID})
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(payments) != 1 {
		t.Errorf("expected 1 payment, got %d", len(payments))
	}
}

func TestWebhookAuthentication(t *testing.T) {
	env := setupTestServer(t)
	body := transferPayload("FT1", "memo", 1000)

	tests := []struct {
		name       string
		body       []byte
		headers    map[string]string
		wantStatus int
		wantOK     bool
	}{
		{
			name:       "bad signature",
			body:       body,
			headers:    map[string]string{webhook.DefaultSignatureHeader: "t=1700000000,v1=abcdef"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed signature header",
			body:       body,
			headers:    map[string]string{webhook.DefaultSignatureHeader: "garbage"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong legacy token",
			body:       body,
			headers:    map[string]string{webhook.DefaultLegacyHeader: "nope"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "probe without credentials",
			body:       []byte(`{}`),
			wantStatus: http.StatusOK,
			wantOK:     true,
		},
		{
			name:       "legacy token with invalid payload",
			body:       []byte(`not json`),
			headers:    map[string]string{webhook.DefaultLegacyHeader: testLegacyToken},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "legacy token without transactions",
			body:       []byte(`{"error":0,"data":[]}`),
			headers:    map[string]string{webhook.DefaultLegacyHeader: testLegacyToken},
			wantStatus: http.StatusOK,
			wantOK:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := postWebhook(t, env, tt.body, tt.headers)
			if status != tt.wantStatus {
				t.Errorf("expected status %d, got %d (%+v)", tt.wantStatus, status, resp)
			}
			if resp.Success != tt.wantOK {
				t.Errorf("expected success=%v, got %v", tt.wantOK, resp.Success)
			}
		})
	}

	payments, err := env.store.ListPayments(context.Background(), storage.PaymentFilter{})
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(payments) != 0 {
		t.Errorf("rejected deliveries must not record payments, got %d", len(payments))
	}
}

func TestWebhookLegacyTokenDelivery(t *testing.T) {
	env := setupTestServer(t)
	env.register(t, "bob@example.com", "Bob", "0004445556")

	body := []byte(`{"error":0,"data":{"tid":"TX-9","description":"rent","amount":20000,"when":"2024-03-11 10:00:00","counterAccountNumber":"0004445556"}}`)
	status, resp := postWebhook(t, env, body, map[string]string{webhook.DefaultLegacyHeader: testLegacyToken})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	if r := resp.Results[0]; r.Outcome != reconcile.Recorded || r.Reference != "TX-9" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	env := setupTestServer(t)
	resp, err := http.Get(env.server.URL + WebhookPath)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}
