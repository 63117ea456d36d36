package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/api"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/paycode"
	"github.com/mmynk/settleup/internal/storage"
)

// LedgerService implements the Connect LedgerService.
// Every report is recomputed from the stored expenses and payments.
type LedgerService struct {
	store  storage.Store
	codec  *paycode.Codec
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

var _ api.LedgerServiceHandler = (*LedgerService)(nil)

// NewLedgerService creates a LedgerService. loc decides which month a date falls in.
func NewLedgerService(store storage.Store, codec *paycode.Codec, loc *time.Location, logger *slog.Logger) *LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerService{
		store:  store,
		codec:  codec,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// GetDebtReport computes debts, net balances and summaries.
func (s *LedgerService) GetDebtReport(ctx context.Context, req *connect.Request[api.GetDebtReportRequest]) (*connect.Response[api.GetDebtReportResponse], error) {
	s.logger.Info("GetDebtReport request received", "group_id", req.Msg.GroupID)

	start := time.Now()
	report, err := s.buildReport(ctx, req.Msg.GroupID)
	metrics.ObserveReport(err, time.Since(start))
	if err != nil {
		s.logger.Error("GetDebtReport failed", "error", err)
		return nil, storageError(err)
	}

	s.logger.Info("GetDebtReport successful",
		"debts", len(report.Debts),
		"net_debts", len(report.Net),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return connect.NewResponse(reportToAPI(report)), nil
}

func (s *LedgerService) buildReport(ctx context.Context, groupID *int64) (*calculator.Report, error) {
	expenses, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{GroupID: groupID})
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, storage.PaymentFilter{
		GroupID: groupID,
		Status:  models.PaymentConfirmed,
	})
	if err != nil {
		return nil, err
	}
	return calculator.BuildReport(expenses, payments), nil
}

// CreatePayment records a payment.
//
// Payments recorded by the creditor or an admin are confirmed immediately.
// A debtor reporting their own payment creates a pending payment that the
// creditor (or an admin) confirms later.
func (s *LedgerService) CreatePayment(ctx context.Context, req *connect.Request[api.CreatePaymentRequest]) (*connect.Response[api.CreatePaymentResponse], error) {
	callerID := middleware.GetUserID(ctx)
	msg := req.Msg
	s.logger.Info("CreatePayment request received",
		"user_id", callerID,
		"debtor_id", msg.DebtorID,
		"creditor_id", msg.CreditorID,
		"amount", msg.Amount,
	)

	debtorID := msg.DebtorID
	if debtorID == 0 {
		debtorID = callerID
	}
	if !msg.Amount.IsPositive() {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("amount must be positive"))
	}
	if msg.CreditorID != nil && *msg.CreditorID == debtorID {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("debtor and creditor must differ"))
	}

	admin := middleware.IsAdmin(ctx)
	isCreditor := msg.CreditorID != nil && *msg.CreditorID == callerID
	status := models.PaymentPending
	switch {
	case admin || isCreditor:
		status = models.PaymentConfirmed
	case debtorID != callerID:
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("cannot record payments for other users"))
	}

	debtor, err := s.store.GetUserByID(ctx, debtorID)
	if err != nil {
		return nil, storageError(err)
	}
	if debtor == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("user %d not found", debtorID))
	}

	paidAt := msg.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	year, month := msg.Year, msg.Month
	if year == 0 || month == 0 {
		local := paidAt.In(s.loc)
		year, month = local.Year(), int(local.Month())
	}
	if month < 1 || month > 12 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid month %d", month))
	}

	groupID := msg.GroupID
	if groupID == nil {
		groupID = debtor.GroupID
	}

	payment := &models.Payment{
		DebtorID:   debtorID,
		CreditorID: msg.CreditorID,
		GroupID:    groupID,
		Year:       year,
		Month:      month,
		Amount:     msg.Amount,
		PaidAt:     paidAt,
		Notes:      strings.TrimSpace(msg.Notes),
		Status:     status,
		CreatedBy:  &callerID,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		s.logger.Error("CreatePayment failed", "error", err)
		return nil, storageError(err)
	}

	s.logger.Info("Payment recorded", "payment_id", payment.ID, "status", payment.Status)
	return connect.NewResponse(&api.CreatePaymentResponse{Payment: paymentToAPI(payment)}), nil
}

// ConfirmPayment confirms a pending payment. Only its creditor or an admin may
// confirm; untargeted payments need an admin.
func (s *LedgerService) ConfirmPayment(ctx context.Context, req *connect.Request[api.ConfirmPaymentRequest]) (*connect.Response[api.ConfirmPaymentResponse], error) {
	callerID := middleware.GetUserID(ctx)
	s.logger.Info("ConfirmPayment request received", "payment_id", req.Msg.PaymentID, "user_id", callerID)

	payment, err := s.store.GetPayment(ctx, req.Msg.PaymentID)
	if err != nil {
		return nil, storageError(err)
	}
	if payment == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("payment %d not found", req.Msg.PaymentID))
	}

	isCreditor := payment.CreditorID != nil && *payment.CreditorID == callerID
	if !isCreditor && !middleware.IsAdmin(ctx) {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("only the creditor or an admin can confirm"))
	}

	if !payment.IsConfirmed() {
		if err := s.store.ConfirmPayment(ctx, payment.ID); err != nil {
			s.logger.Error("ConfirmPayment failed", "payment_id", payment.ID, "error", err)
			return nil, storageError(err)
		}
		payment.Status = models.PaymentConfirmed
	}

	return connect.NewResponse(&api.ConfirmPaymentResponse{Payment: paymentToAPI(payment)}), nil
}

// ListPayments lists payments matching the filter.
func (s *LedgerService) ListPayments(ctx context.Context, req *connect.Request[api.ListPaymentsRequest]) (*connect.Response[api.ListPaymentsResponse], error) {
	msg := req.Msg
	status := models.PaymentStatus(strings.ToLower(msg.Status))
	if status != "" && status != models.PaymentPending && status != models.PaymentConfirmed {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown status %q", msg.Status))
	}

	payments, err := s.store.ListPayments(ctx, storage.PaymentFilter{
		GroupID:  msg.GroupID,
		DebtorID: msg.DebtorID,
		Year:     msg.Year,
		Month:    msg.Month,
		Status:   status,
	})
	if err != nil {
		s.logger.Error("ListPayments failed", "error", err)
		return nil, storageError(err)
	}

	out := make([]*api.Payment, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentToAPI(p))
	}
	return connect.NewResponse(&api.ListPaymentsResponse{Payments: out}), nil
}

// GetPaymentRequest returns what a debtor should transfer to settle with a creditor:
// the encoded memo, the net amount rounded up, and the creditor's bank account.
func (s *LedgerService) GetPaymentRequest(ctx context.Context, req *connect.Request[api.GetPaymentRequestRequest]) (*connect.Response[api.GetPaymentRequestResponse], error) {
	msg := req.Msg
	debtorID := msg.DebtorID
	if debtorID == 0 {
		debtorID = middleware.GetUserID(ctx)
	}
	s.logger.Info("GetPaymentRequest request received", "debtor_id", debtorID, "creditor_id", msg.CreditorID)

	if msg.CreditorID == 0 || msg.CreditorID == debtorID {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("a different creditor is required"))
	}

	users, err := s.store.GetUsersByIDs(ctx, []int64{debtorID, msg.CreditorID})
	if err != nil {
		return nil, storageError(err)
	}
	debtor, creditor := users[debtorID], users[msg.CreditorID]
	if debtor == nil || creditor == nil {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("debtor or creditor not found"))
	}
	if strings.TrimSpace(creditor.BankAccount) == "" {
		return nil, connect.NewError(connect.CodeFailedPrecondition,
			fmt.Errorf("creditor %d has no bank account", creditor.ID))
	}

	groupID := msg.GroupID
	if groupID == nil {
		groupID = debtor.GroupID
	}
	report, err := s.buildReport(ctx, groupID)
	if err != nil {
		s.logger.Error("GetPaymentRequest failed", "error", err)
		return nil, storageError(err)
	}

	year, month := msg.Year, msg.Month
	if year == 0 || month == 0 {
		now := s.now().In(s.loc)
		year, month = now.Year(), int(now.Month())
	}

	description := s.codec.Encode(paycode.Token{
		CreditorID: creditor.ID,
		DebtorID:   debtor.ID,
		Year:       year,
		Month:      month,
	})

	return connect.NewResponse(&api.GetPaymentRequestResponse{
		Description:  description,
		Amount:       report.Owed(debtor.ID, creditor.ID).Ceil(),
		CreditorName: creditor.Name(),
		BankAccount:  strings.TrimSpace(creditor.BankAccount),
		BankName:     creditor.BankName,
		Year:         year,
		Month:        month,
	}), nil
}
