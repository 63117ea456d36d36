package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/settleup/internal/api"
	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/paycode"
	"github.com/mmynk/settleup/internal/storage/sqlite"
	"github.com/mmynk/settleup/internal/webhook"
)

const (
	testWebhookSecret = "test-webhook-secret"
	testLegacyToken   = "legacy-token"
	testPassword      = "password123"
)

type testEnv struct {
	server   *httptest.Server
	store    *sqlite.SQLiteStore
	codec    *paycode.Codec
	auth     *api.AuthServiceClient
	groups   *api.GroupServiceClient
	expenses *api.ExpenseServiceClient
	ledger   *api.LedgerServiceClient
}

// setupTestServer starts the full HTTP surface on a temp database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec := paycode.New(paycode.Config{Suffix: ".CK"})

	mux := NewMux(Deps{
		Store:         store,
		Authenticator: auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost),
		JWT:           auth.NewJWTManager("test-jwt-secret-0123456789", time.Hour),
		Codec:         codec,
		Webhook: webhook.Config{
			Secret:      testWebhookSecret,
			LegacyToken: testLegacyToken,
		},
		Location: time.UTC,
		Logger:   logger,
	})
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testEnv{
		server:   server,
		store:    store,
		codec:    codec,
		auth:     api.NewAuthServiceClient(http.DefaultClient, server.URL),
		groups:   api.NewGroupServiceClient(http.DefaultClient, server.URL),
		expenses: api.NewExpenseServiceClient(http.DefaultClient, server.URL),
		ledger:   api.NewLedgerServiceClient(http.DefaultClient, server.URL),
	}
}

type session struct {
	user  *api.User
	token string
}

// register creates a user through the API and returns its session.
func (e *testEnv) register(t *testing.T, email, name, bankAccount string) session {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		DisplayName: name,
		Password:    testPassword,
		BankAccount: bankAccount,
	}))
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return session{user: resp.Msg.User, token: resp.Msg.Token}
}

// admin creates an administrator directly in the store and logs in.
func (e *testEnv) admin(t *testing.T) session {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	user := models.NewUser("admin@example.com", "Admin", string(hash))
	user.IsAdmin = true
	if err := e.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	resp, err := e.auth.Login(context.Background(), connect.NewRequest(&api.LoginRequest{
		Email:    "admin@example.com",
		Password: testPassword,
	}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return session{user: resp.Msg.User, token: resp.Msg.Token}
}

// as wraps msg in a request authenticated as s.
func as[T any](s session, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+s.token)
	return req
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Fatalf("expected code %v, got %v (%v)", want, got, err)
	}
}
