package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/paycode"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/storage/sqlite"
	"github.com/mmynk/settleup/internal/webhook"
)

type fixture struct {
	store    *sqlite.SQLiteStore
	codec    *paycode.Codec
	debtor   *models.User
	creditor *models.User
	inactive *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	mk := func(email, name, account string, active bool) *models.User {
		u := models.NewUser(email, name, "hash")
		u.BankAccount = account
		u.IsActive = active
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		return u
	}

	return &fixture{
		store:    store,
		codec:    paycode.New(paycode.Config{Suffix: ".CK"}),
		creditor: mk("an@example.com", "An", "1111", true),
		debtor:   mk("binh@example.com", "Binh", "2222", true),
		inactive: mk("cuong@example.com", "Cuong", "3333", false),
	}
}

func (f *fixture) code(creditor, debtor int64, year, month int) string {
	return f.codec.Encode(paycode.Token{CreditorID: creditor, DebtorID: debtor, Year: year, Month: month})
}

func (f *fixture) payments(t *testing.T) []*models.Payment {
	t.Helper()
	got, err := f.store.ListPayments(context.Background(), storage.PaymentFilter{})
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	return got
}

var march10 = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func TestProcessDecodedTransaction(t *testing.T) {
	f := setup(t)
	r := New(f.store, f.codec)

	txn := Transaction{
		Reference:            "FT24070",
		Description:          "IBFT " + f.code(f.creditor.ID, f.debtor.ID, 2024, 2) + " chuyen tien",
		Amount:               decimal.RequireFromString("124999.2"),
		Date:                 march10,
		CounterAccountName:   "NGUYEN VAN BINH",
		CounterAccountNumber: "2222",
		CounterBankName:      "VCB",
	}

	res := r.Process(context.Background(), txn)
	if res.Outcome != Recorded {
		t.Fatalf("Expected recorded, got %s (%s)", res.Outcome, res.Error)
	}

	payments := f.payments(t)
	if len(payments) != 1 {
		t.Fatalf("Expected 1 payment, got %d", len(payments))
	}
	p := payments[0]
	if p.DebtorID != f.debtor.ID || p.CreditorID == nil || *p.CreditorID != f.creditor.ID {
		t.Errorf("Unexpected parties: debtor=%d creditor=%v", p.DebtorID, p.CreditorID)
	}
	if p.Year != 2024 || p.Month != 2 {
		t.Errorf("Expected period from token 2024-02, got %d-%02d", p.Year, p.Month)
	}
	if !p.Amount.Equal(decimal.NewFromInt(125000)) {
		t.Errorf("Expected amount rounded up to 125000, got %s", p.Amount)
	}
	if !p.IsConfirmed() {
		t.Errorf("Expected confirmed payment, got %s", p.Status)
	}
	if p.IdempotencyKey != "txn:FT24070" {
		t.Errorf("Unexpected idempotency key %q", p.IdempotencyKey)
	}

	want := "Bank transfer from Binh to An | ref: FT24070 | from account: NGUYEN VAN BINH 2222 (VCB)"
	if p.Notes != want {
		t.Errorf("Notes mismatch:\n got %q\nwant %q", p.Notes, want)
	}
}

func TestProcessFallsBackToBankAccount(t *testing.T) {
	f := setup(t)
	r := New(f.store, f.codec)

	res := r.Process(context.Background(), Transaction{
		Reference:     "FT1",
		Description:   "tien dien thang 3",
		Amount:        decimal.NewFromInt(50000),
		Date:          march10,
		AccountNumber: " 2222 ",
	})
	if res.Outcome != Recorded {
		t.Fatalf("Expected recorded, got %s (%s)", res.Outcome, res.Error)
	}

	p := f.payments(t)[0]
	if p.DebtorID != f.debtor.ID {
		t.Errorf("Expected debtor %d, got %d", f.debtor.ID, p.DebtorID)
	}
	if p.CreditorID != nil {
		t.Errorf("Expected untargeted payment, got creditor %d", *p.CreditorID)
	}
	if p.Year != 2024 || p.Month != 3 {
		t.Errorf("Expected period from transaction date, got %d-%02d", p.Year, p.Month)
	}
	if !strings.Contains(p.Notes, "memo: tien dien thang 3") {
		t.Errorf("Expected memo in notes, got %q", p.Notes)
	}
}

func TestProcessPeriodUsesLocation(t *testing.T) {
	f := setup(t)
	loc := time.FixedZone("ICT", 7*3600)
	r := New(f.store, f.codec, WithLocation(loc))

	// 2024-03-31 20:00 UTC is already April in UTC+7.
	res := r.Process(context.Background(), Transaction{
		Amount:        decimal.NewFromInt(1000),
		Date:          time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC),
		AccountNumber: "2222",
	})
	if res.Outcome != Recorded {
		t.Fatalf("Expected recorded, got %s (%s)", res.Outcome, res.Error)
	}
	if p := f.payments(t)[0]; p.Month != 4 {
		t.Errorf("Expected month 4, got %d", p.Month)
	}
}

func TestProcessDebtorNotFound(t *testing.T) {
	f := setup(t)
	r := New(f.store, f.codec)

	tests := []struct {
		name string
		txn  Transaction
	}{
		{"unknown decoded debtor", Transaction{
			Description: f.code(f.creditor.ID, 999, 2024, 3),
			Amount:      decimal.NewFromInt(1000),
			Date:        march10,
		}},
		{"inactive decoded debtor", Transaction{
			Description: f.code(f.creditor.ID, f.inactive.ID, 2024, 3),
			Amount:      decimal.NewFromInt(1000),
			Date:        march10,
		}},
		{"unknown account", Transaction{
			Description:   "no code",
			Amount:        decimal.NewFromInt(1000),
			Date:          march10,
			AccountNumber: "9999",
		}},
		{"inactive account", Transaction{
			Amount:        decimal.NewFromInt(1000),
			Date:          march10,
			AccountNumber: "3333",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.process(context.Background(), tt.txn)
			if !errors.Is(err, ErrDebtorNotFound) {
				t.Errorf("Expected ErrDebtorNotFound, got %v", err)
			}
		})
	}

	if n := len(f.payments(t)); n != 0 {
		t.Errorf("Expected no payments, got %d", n)
	}
}

func TestProcessToleratesInactiveCreditor(t *testing.T) {
	f := setup(t)
	r := New(f.store, f.codec)

	for _, creditor := range []int64{f.inactive.ID, 4242} {
		res := r.Process(context.Background(), Transaction{
			Reference:   "REF" + decimal.NewFromInt(creditor).String(),
			Description: f.code(creditor, f.debtor.ID, 2024, 3),
			Amount:      decimal.NewFromInt(1000),
			Date:        march10,
		})
		if res.Outcome != Recorded {
			t.Errorf("creditor %d: expected recorded, got %s (%s)", creditor, res.Outcome, res.Error)
		}
	}

	payments := f.payments(t)
	if len(payments) != 2 {
		t.Fatalf("Expected 2 payments, got %d", len(payments))
	}
	if !strings.Contains(payments[1].Notes, "to user #4242") {
		t.Errorf("Expected unknown creditor to be named by id, got %q", payments[1].Notes)
	}
}

func TestProcessDeduplicates(t *testing.T) {
	f := setup(t)
	r := New(f.store, f.codec)
	ctx := context.Background()

	txn := Transaction{
		Reference:   "FT-DUP",
		Description: f.code(f.creditor.ID, f.debtor.ID, 2024, 3),
		Amount:      decimal.RequireFromString("99999.01"),
		Date:        march10,
	}

	first := r.Process(ctx, txn)
	if first.Outcome != Recorded {
		t.Fatalf("Expected recorded, got %s (%s)", first.Outcome, first.Error)
	}

	t.Run("replay is a duplicate", func(t *testing.T) {
		again := r.Process(ctx, txn)
		if again.Outcome != Duplicate || again.PaymentID != first.PaymentID {
			t.Errorf("Expected duplicate of %d, got %+v", first.PaymentID, again)
		}
	})

	t.Run("same reference on another day hits the idempotency key", func(t *testing.T) {
		later := txn
		later.Date = march10.AddDate(0, 0, 1)
		res := r.Process(ctx, later)
		if res.Outcome != Duplicate {
			t.Errorf("Expected duplicate, got %+v", res)
		}
	})

	t.Run("different reference is recorded", func(t *testing.T) {
		other := txn
		other.Reference = "FT-OTHER"
		res := r.Process(ctx, other)
		if res.Outcome != Recorded {
			t.Errorf("Expected recorded, got %+v", res)
		}
	})

	if n := len(f.payments(t)); n != 2 {
		t.Errorf("Expected 2 payments, got %d", n)
	}
}

func TestProcessDeduplicatesWithoutReference(t *testing.T) {
	f := setup(t)
	r := New(f.store, f.codec)
	ctx := context.Background()

	txn := Transaction{
		Amount:        decimal.NewFromInt(70000),
		Date:          march10,
		AccountNumber: "2222",
	}
	if res := r.Process(ctx, txn); res.Outcome != Recorded {
		t.Fatalf("Expected recorded, got %+v", res)
	}

	// Same day, later time.
	txn.Date = march10.Add(3 * time.Hour)
	if res := r.Process(ctx, txn); res.Outcome != Duplicate {
		t.Errorf("Expected duplicate, got %+v", res)
	}

	// Next day is a new transfer.
	txn.Date = march10.AddDate(0, 0, 1)
	if res := r.Process(ctx, txn); res.Outcome != Recorded {
		t.Errorf("Expected recorded, got %+v", res)
	}
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	f := setup(t)

	var observed []Outcome
	r := New(f.store, f.codec, WithObserver(func(o Outcome) { observed = append(observed, o) }))

	good := Transaction{
		Reference:   "A",
		Description: f.code(f.creditor.ID, f.debtor.ID, 2024, 3),
		Amount:      decimal.NewFromInt(1000),
		Date:        march10,
	}
	bad := Transaction{Reference: "B", Description: "???", Amount: decimal.NewFromInt(1000), Date: march10}
	zero := Transaction{Reference: "C", Description: good.Description, Amount: decimal.Zero, Date: march10}

	batch := r.ProcessBatch(context.Background(), []Transaction{bad, good, zero, good})

	if batch.BatchID == "" {
		t.Error("Expected batch ID")
	}
	want := []Outcome{Failed, Recorded, Failed, Duplicate}
	if len(batch.Results) != len(want) {
		t.Fatalf("Expected %d results, got %d", len(want), len(batch.Results))
	}
	for i, w := range want {
		if batch.Results[i].Outcome != w {
			t.Errorf("result %d: got %s, want %s", i, batch.Results[i].Outcome, w)
		}
	}
	if batch.Results[0].Error == "" {
		t.Error("Expected error message on failed result")
	}
	if batch.Count(Failed) != 2 || batch.Count(Recorded) != 1 {
		t.Errorf("Unexpected counts: %+v", batch.Results)
	}
	if len(observed) != 4 {
		t.Errorf("Expected observer to be called 4 times, got %d", len(observed))
	}
}

type panicStore struct{ Store }

func (panicStore) GetUserByBankAccount(context.Context, string) (*models.User, error) {
	panic("boom")
}

func TestProcessRecoversFromPanic(t *testing.T) {
	r := New(panicStore{}, paycode.New(paycode.Config{}))
	batch := r.ProcessBatch(context.Background(), []Transaction{{
		Reference: "X",
		Amount:    decimal.NewFromInt(1),
		Date:      march10,
	}})
	if got := batch.Results[0]; got.Outcome != Failed || !strings.Contains(got.Error, "boom") {
		t.Errorf("Expected recovered failure, got %+v", got)
	}
}

func TestFromWebhook(t *testing.T) {
	txn, err := FromWebhook(webhook.Transaction{
		ID:                   "42",
		Description:          "hello",
		Amount:               decimal.NewFromInt(5000),
		TransactionDateTime:  "2024-03-10 09:30:00",
		AccountNumber:        "RECEIVER",
		CounterAccountNumber: "2222",
	}, time.UTC)
	if err != nil {
		t.Fatalf("FromWebhook failed: %v", err)
	}
	if txn.Reference != "42" {
		t.Errorf("Expected reference to fall back to id, got %q", txn.Reference)
	}
	if txn.AccountNumber != "2222" {
		t.Errorf("Expected sender account 2222, got %q", txn.AccountNumber)
	}
	if !txn.Date.Equal(march10) {
		t.Errorf("Expected %v, got %v", march10, txn.Date)
	}

	if _, err := FromWebhook(webhook.Transaction{TransactionDateTime: "yesterday"}, time.UTC); err == nil {
		t.Error("Expected error for unparseable date")
	}
}

func TestComposeNotes(t *testing.T) {
	debtor := &models.User{DisplayName: "Binh"}
	creditor := &models.User{Email: "an@example.com"}

	tests := []struct {
		name string
		txn  Transaction
		p    *parties
		want string
	}{
		{
			name: "decoded omits memo",
			txn:  Transaction{Description: "ThanToanXYZ", Reference: "R1"},
			p:    &parties{debtor: debtor, creditor: creditor, decoded: true},
			want: "Bank transfer from Binh to an@example.com | ref: R1",
		},
		{
			name: "fallback keeps memo and bank only",
			txn:  Transaction{Description: " rent ", CounterBankName: "ACB"},
			p:    &parties{debtor: debtor},
			want: "Bank transfer from Binh | memo: rent | from account: (ACB)",
		},
		{
			name: "account number only",
			txn:  Transaction{CounterAccountNumber: "0001"},
			p:    &parties{debtor: debtor},
			want: "Bank transfer from Binh | from account: 0001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := composeNotes(tt.txn, tt.p); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessWebhookConvertsEachTransaction(t *testing.T) {
	f := setup(t)
	r := New(f.store, f.codec)

	batch := r.ProcessWebhook(context.Background(), []webhook.Transaction{
		{
			Reference:           "W1",
			Description:         f.code(f.creditor.ID, f.debtor.ID, 2024, 3),
			Amount:              decimal.NewFromInt(20000),
			TransactionDateTime: "2024-03-10 09:30:00",
		},
		{
			Reference:           "W2",
			Description:         f.code(f.creditor.ID, f.debtor.ID, 2024, 3),
			Amount:              decimal.NewFromInt(20000),
			TransactionDateTime: "not a date",
		},
		{
			Reference: "W3",
			Err:       errors.New("webhook: invalid transaction: bad amount"),
		},
	})

	if got := batch.Results[0].Outcome; got != Recorded {
		t.Errorf("W1: expected recorded, got %s (%s)", got, batch.Results[0].Error)
	}
	if got := batch.Results[1]; got.Outcome != Failed || got.Reference != "W2" {
		t.Errorf("W2: expected failed, got %+v", got)
	}
	if got := batch.Results[2]; got.Outcome != Failed || !strings.Contains(got.Error, "bad amount") {
		t.Errorf("W3: expected undecodable transaction to fail, got %+v", got)
	}
}
