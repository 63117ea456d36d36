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
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

var _ api.ExpenseServiceHandler = (*ExpenseService)(nil)

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(store storage.Store, logger *slog.Logger) *ExpenseService {
	return &ExpenseService{store: store, logger: logger, now: time.Now}
}

// CreateExpense records an expense paid by one user for the participants.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	callerID := middleware.GetUserID(ctx)
	msg := req.Msg
	s.logger.Info("CreateExpense request received",
		"user_id", callerID,
		"amount", msg.Amount,
		"participants_count", len(msg.Participants),
	)

	payerID := msg.PayerID
	if payerID == 0 {
		payerID = callerID
	}
	if payerID != callerID && !middleware.IsAdmin(ctx) {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("only admins can record expenses paid by others"))
	}

	expense := &models.Expense{
		GroupID:     msg.GroupID,
		PayerID:     payerID,
		Amount:      msg.Amount,
		Description: strings.TrimSpace(msg.Description),
		Date:        msg.Date,
	}
	if expense.Date.IsZero() {
		expense.Date = s.now()
	}
	for _, p := range msg.Participants {
		expense.Participants = append(expense.Participants, models.ExpenseParticipant{
			UserID: p.UserID,
			Amount: p.Amount,
		})
	}

	if err := validateExpense(expense); err != nil {
		s.logger.Warn("CreateExpense validation failed", "error", err)
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	ids := []int64{payerID}
	for _, p := range expense.Participants {
		ids = append(ids, p.UserID)
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storageError(err)
	}
	for _, id := range ids {
		if users[id] == nil {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("user %d not found", id))
		}
	}
	if expense.GroupID == nil {
		expense.GroupID = users[payerID].GroupID
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		s.logger.Error("CreateExpense failed", "error", err)
		return nil, storageError(err)
	}

	s.logger.Info("Expense created", "expense_id", expense.ID, "payer_id", payerID)
	return connect.NewResponse(&api.CreateExpenseResponse{Expense: expenseToAPI(expense)}), nil
}

// GetExpense retrieves an expense by ID.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	expense, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		s.logger.Error("GetExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, storageError(err)
	}
	if expense == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("expense %d not found", req.Msg.ExpenseID))
	}
	return connect.NewResponse(&api.GetExpenseResponse{Expense: expenseToAPI(expense)}), nil
}

// ListExpenses lists expenses, optionally for one group.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	expenses, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{GroupID: req.Msg.GroupID})
	if err != nil {
		s.logger.Error("ListExpenses failed", "error", err)
		return nil, storageError(err)
	}

	out := make([]*api.Expense, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expenseToAPI(e))
	}
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// DeleteExpense removes an expense. Only its payer or an admin may delete it.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	callerID := middleware.GetUserID(ctx)
	s.logger.Info("DeleteExpense request received", "expense_id", req.Msg.ExpenseID, "user_id", callerID)

	expense, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, storageError(err)
	}
	if expense == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("expense %d not found", req.Msg.ExpenseID))
	}
	if expense.PayerID != callerID && !middleware.IsAdmin(ctx) {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("only the payer can delete an expense"))
	}

	if err := s.store.DeleteExpense(ctx, expense.ID); err != nil {
		s.logger.Error("DeleteExpense failed", "expense_id", expense.ID, "error", err)
		return nil, storageError(err)
	}
	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// validateExpense checks the amount and the participant shares.
// Explicit shares may not exceed the amount; an all-explicit split may leave
// part of the amount with the payer.
func validateExpense(e *models.Expense) error {
	if !e.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if e.Description == "" {
		return errors.New("description is required")
	}
	if len(e.Participants) == 0 {
		return errors.New("at least one participant is required")
	}

	seen := make(map[int64]bool, len(e.Participants))
	for _, p := range e.Participants {
		if p.UserID == 0 {
			return errors.New("participant user id is required")
		}
		if seen[p.UserID] {
			return fmt.Errorf("participant %d listed twice", p.UserID)
		}
		seen[p.UserID] = true
		if p.Amount != nil && p.Amount.IsNegative() {
			return fmt.Errorf("participant %d has a negative amount", p.UserID)
		}
	}

	if total := e.ExplicitTotal(); total.GreaterThan(e.Amount) {
		return fmt.Errorf("explicit shares %s exceed amount %s", total, e.Amount)
	}
	return nil
}
