// Package reconcile turns inbound bank transfers into confirmed payments.
//
// For each transaction the Reconciler:
//
//  1. decodes the payment code in the description
//  2. resolves debtor and creditor (by decoded ids, or by the sender's bank
//     account when the description carries no code)
//  3. rounds the amount up to a whole unit
//  4. skips transfers that were already recorded
//  5. records a confirmed payment with a readable note
//
// Transactions in a batch are independent: one failure never aborts the rest.
package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/paycode"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/webhook"
)

// ErrDebtorNotFound is returned when no active user can be matched as the payer.
var ErrDebtorNotFound = errors.New("reconcile: debtor not found")

// Store is the subset of storage the Reconciler needs.
type Store interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByBankAccount(ctx context.Context, account string) (*models.User, error)
	ListPayments(ctx context.Context, filter storage.PaymentFilter) ([]*models.Payment, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
}

// Outcome is the result of processing one transaction.
type Outcome string

const (
	Recorded  Outcome = "recorded"
	Duplicate Outcome = "duplicate"
	Failed    Outcome = "failed"
)

// Transaction is one inbound bank transfer.
type Transaction struct {
	Reference   string
	Description string
	Amount      decimal.Decimal
	Date        time.Time

	// AccountNumber is the sender's account, used when Description has no code.
	AccountNumber string

	CounterAccountName   string
	CounterAccountNumber string
	CounterBankName      string
}

// FromWebhook converts a provider transaction. Dates without a zone are read in loc.
func FromWebhook(t webhook.Transaction, loc *time.Location) (Transaction, error) {
	if t.Err != nil {
		return Transaction{}, t.Err
	}
	t.Normalize()
	date, err := t.Time(loc)
	if err != nil {
		return Transaction{}, err
	}

	// The provider reports the sender as the counter account.
	account := t.CounterAccountNumber
	if account == "" {
		account = t.AccountNumber
	}

	return Transaction{
		Reference:            strings.TrimSpace(t.Reference),
		Description:          t.Description,
		Amount:               t.Amount,
		Date:                 date,
		AccountNumber:        account,
		CounterAccountName:   t.CounterAccountName,
		CounterAccountNumber: t.CounterAccountNumber,
		CounterBankName:      t.CounterAccountBankName,
	}, nil
}

// Result reports what happened to one transaction.
type Result struct {
	Reference string  `json:"reference"`
	Outcome   Outcome `json:"outcome"`
	PaymentID int64   `json:"payment_id,omitempty"`
	DebtorID  int64   `json:"debtor_id,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// BatchResult collects the results of one delivery.
type BatchResult struct {
	BatchID string   `json:"batch_id"`
	Results []Result `json:"results"`
}

// Count returns the number of results with the given outcome.
func (b *BatchResult) Count(o Outcome) int {
	n := 0
	for _, r := range b.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithLocation sets the zone used for period defaults and same-day checks.
func WithLocation(loc *time.Location) Option {
	return func(r *Reconciler) { r.loc = loc }
}

// WithObserver registers a callback invoked once per processed transaction.
func WithObserver(fn func(Outcome)) Option {
	return func(r *Reconciler) { r.observe = fn }
}

// Reconciler records bank transfers as payments.
type Reconciler struct {
	store   Store
	codec   *paycode.Codec
	logger  *slog.Logger
	loc     *time.Location
	observe func(Outcome)
}

// New creates a Reconciler.
func New(store Store, codec *paycode.Codec, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		codec:  codec,
		logger: slog.Default(),
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProcessBatch processes every transaction independently.
func (r *Reconciler) ProcessBatch(ctx context.Context, txns []Transaction) *BatchResult {
	return r.runBatch(len(txns), func(logger *slog.Logger, i int) Result {
		return r.processSafe(ctx, logger, txns[i])
	})
}

// ProcessWebhook converts and processes provider transactions. A transaction
// that cannot be converted fails on its own without affecting the others.
func (r *Reconciler) ProcessWebhook(ctx context.Context, txns []webhook.Transaction) *BatchResult {
	return r.runBatch(len(txns), func(logger *slog.Logger, i int) Result {
		txn, err := FromWebhook(txns[i], r.loc)
		if err != nil {
			logger.Warn("Invalid bank transaction", "reference", txns[i].Reference, "error", err)
			return Result{Reference: txns[i].Reference, Outcome: Failed, Error: err.Error()}
		}
		return r.processSafe(ctx, logger, txn)
	})
}

func (r *Reconciler) runBatch(n int, process func(*slog.Logger, int) Result) *BatchResult {
	batch := &BatchResult{
		BatchID: uuid.New().String(),
		Results: make([]Result, 0, n),
	}
	logger := r.logger.With("batch_id", batch.BatchID)
	logger.Info("Processing bank transactions", "count", n)

	for i := 0; i < n; i++ {
		res := process(logger, i)
		batch.Results = append(batch.Results, res)
		if r.observe != nil {
			r.observe(res.Outcome)
		}
	}

	logger.Info("Bank transactions processed",
		"recorded", batch.Count(Recorded),
		"duplicate", batch.Count(Duplicate),
		"failed", batch.Count(Failed))
	return batch
}

// Process handles a single transaction.
func (r *Reconciler) Process(ctx context.Context, txn Transaction) Result {
	return r.processSafe(ctx, r.logger, txn)
}

func (r *Reconciler) processSafe(ctx context.Context, logger *slog.Logger, txn Transaction) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Panic while reconciling transaction", "reference", txn.Reference, "panic", p)
			res = Result{Reference: txn.Reference, Outcome: Failed, Error: fmt.Sprintf("internal error: %v", p)}
		}
	}()

	res, err := r.process(ctx, txn)
	if err != nil {
		logger.Warn("Failed to reconcile transaction", "reference", txn.Reference, "error", err)
		res.Outcome = Failed
		res.Error = err.Error()
		return res
	}
	logger.Info("Reconciled transaction",
		"reference", txn.Reference,
		"outcome", res.Outcome,
		"payment_id", res.PaymentID,
		"debtor_id", res.DebtorID)
	return res
}

func (r *Reconciler) process(ctx context.Context, txn Transaction) (Result, error) {
	res := Result{Reference: txn.Reference}

	if !txn.Amount.IsPositive() {
		return res, fmt.Errorf("non-positive amount %s", txn.Amount)
	}

	p, err := r.resolve(ctx, txn)
	if err != nil {
		return res, err
	}
	res.DebtorID = p.debtor.ID

	amount := txn.Amount.Ceil()
	paidAt := txn.Date
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	payment := &models.Payment{
		DebtorID:       p.debtor.ID,
		CreditorID:     p.creditorID,
		GroupID:        p.debtor.GroupID,
		Year:           p.year,
		Month:          p.month,
		Amount:         amount,
		PaidAt:         paidAt,
		Notes:          composeNotes(txn, p),
		Status:         models.PaymentConfirmed,
		IdempotencyKey: idempotencyKey(txn, p, amount, r.day(paidAt)),
	}

	dup, err := r.alreadyRecorded(ctx, payment, txn.Reference)
	if err != nil {
		return res, err
	}
	if dup != nil {
		res.Outcome = Duplicate
		res.PaymentID = dup.ID
		return res, nil
	}

	if err := r.store.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			res.Outcome = Duplicate
			return res, nil
		}
		return res, fmt.Errorf("failed to record payment: %w", err)
	}

	res.Outcome = Recorded
	res.PaymentID = payment.ID
	return res, nil
}

// parties is the resolved side of a transaction.
type parties struct {
	debtor     *models.User
	creditor   *models.User // nil when unknown or not targeted
	creditorID *int64
	year       int
	month      int
	decoded    bool
}

func (r *Reconciler) resolve(ctx context.Context, txn Transaction) (*parties, error) {
	if tok, ok := r.codec.Decode(txn.Description); ok {
		debtor, err := r.store.GetUserByID(ctx, tok.DebtorID)
		if err != nil {
			return nil, fmt.Errorf("failed to load debtor: %w", err)
		}
		if debtor == nil || !debtor.IsActive {
			return nil, fmt.Errorf("user %d: %w", tok.DebtorID, ErrDebtorNotFound)
		}

		// An unknown or inactive creditor is still recorded by id.
		creditor, err := r.store.GetUserByID(ctx, tok.CreditorID)
		if err != nil {
			return nil, fmt.Errorf("failed to load creditor: %w", err)
		}
		creditorID := tok.CreditorID

		return &parties{
			debtor:     debtor,
			creditor:   creditor,
			creditorID: &creditorID,
			year:       tok.Year,
			month:      tok.Month,
			decoded:    true,
		}, nil
	}

	debtor, err := r.store.GetUserByBankAccount(ctx, txn.AccountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load debtor: %w", err)
	}
	if debtor == nil || !debtor.IsActive {
		return nil, fmt.Errorf("account %q: %w", txn.AccountNumber, ErrDebtorNotFound)
	}

	date := txn.Date
	if date.IsZero() {
		date = time.Now()
	}
	date = date.In(r.loc)
	return &parties{
		debtor: debtor,
		year:   date.Year(),
		month:  int(date.Month()),
	}, nil
}

// alreadyRecorded finds an existing payment for the same transfer.
func (r *Reconciler) alreadyRecorded(ctx context.Context, p *models.Payment, reference string) (*models.Payment, error) {
	existing, err := r.store.ListPayments(ctx, storage.PaymentFilter{
		DebtorID: &p.DebtorID,
		Year:     p.Year,
		Month:    p.Month,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicates: %w", err)
	}

	day := r.day(p.PaidAt)
	for _, e := range existing {
		if !e.Amount.Equal(p.Amount) || r.day(e.PaidAt) != day {
			continue
		}
		if reference != "" && !strings.Contains(e.Notes, reference) {
			continue
		}
		if !e.SameCreditor(p.CreditorID) {
			continue
		}
		return e, nil
	}
	return nil, nil
}

func (r *Reconciler) day(t time.Time) string {
	return t.In(r.loc).Format(time.DateOnly)
}

// idempotencyKey identifies a transfer. The bank reference is preferred;
// without one the key hashes the fields the duplicate check compares.
func idempotencyKey(txn Transaction, p *parties, amount decimal.Decimal, day string) string {
	if txn.Reference != "" {
		return "txn:" + txn.Reference
	}
	creditor := "-"
	if p.creditorID != nil {
		creditor = fmt.Sprint(*p.creditorID)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%d|%d|%s|%s",
		p.debtor.ID, creditor, p.year, p.month, amount.String(), day)))
	return "tuple:" + hex.EncodeToString(sum[:16])
}

func composeNotes(txn Transaction, p *parties) string {
	head := "Bank transfer from " + p.debtor.Name()
	switch {
	case p.creditor != nil:
		head += " to " + p.creditor.Name()
	case p.creditorID != nil:
		head += fmt.Sprintf(" to user #%d", *p.creditorID)
	}
	parts := []string{head}

	if memo := strings.TrimSpace(txn.Description); memo != "" && !p.decoded {
		parts = append(parts, "memo: "+memo)
	}
	if txn.Reference != "" {
		parts = append(parts, "ref: "+txn.Reference)
	}

	account := strings.TrimSpace(strings.Join([]string{
		strings.TrimSpace(txn.CounterAccountName),
		strings.TrimSpace(txn.CounterAccountNumber),
	}, " "))
	if bank := strings.TrimSpace(txn.CounterBankName); bank != "" {
		account = strings.TrimSpace(account + " (" + bank + ")")
	}
	if account != "" {
		parts = append(parts, "from account: "+account)
	}

	return strings.Join(parts, " | ")
}
