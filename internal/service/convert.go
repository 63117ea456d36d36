package service

import (
	"errors"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/api"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

// storageError maps storage sentinels to Connect codes.
func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrDuplicate):
		return connect.NewError(connect.CodeAlreadyExists, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func userToAPI(u *models.User) *api.User {
	if u == nil {
		return nil
	}
	return &api.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		BankAccount: u.BankAccount,
		BankName:    u.BankName,
		GroupID:     u.GroupID,
		IsActive:    u.IsActive,
		IsAdmin:     u.IsAdmin,
		CreatedAt:   time.Unix(u.CreatedAt, 0).UTC(),
	}
}

func groupToAPI(g *models.Group, members []*models.User) *api.Group {
	out := &api.Group{
		ID:        g.ID,
		Name:      g.Name,
		CreatedAt: time.Unix(g.CreatedAt, 0).UTC(),
	}
	for _, m := range members {
		out.Members = append(out.Members, userToAPI(m))
	}
	return out
}

func expenseToAPI(e *models.Expense) *api.Expense {
	out := &api.Expense{
		ID:           e.ID,
		GroupID:      e.GroupID,
		PayerID:      e.PayerID,
		Amount:       e.Amount,
		Description:  e.Description,
		Date:         e.Date,
		Participants: make([]api.Participant, 0, len(e.Participants)),
	}
	for _, p := range e.Participants {
		out.Participants = append(out.Participants, api.Participant{UserID: p.UserID, Amount: p.Amount})
	}
	return out
}

func paymentToAPI(p *models.Payment) *api.Payment {
	return &api.Payment{
		ID:         p.ID,
		DebtorID:   p.DebtorID,
		CreditorID: p.CreditorID,
		GroupID:    p.GroupID,
		Year:       p.Year,
		Month:      p.Month,
		Amount:     p.Amount,
		PaidAt:     p.PaidAt,
		Notes:      p.Notes,
		Status:     string(p.Status),
		CreatedBy:  p.CreatedBy,
	}
}

func reportToAPI(r *calculator.Report) *api.GetDebtReportResponse {
	out := &api.GetDebtReportResponse{
		Debts:        make([]api.DebtDetail, 0, len(r.Debts)),
		NetDebts:     make([]api.NetDebt, 0, len(r.Net)),
		Users:        make([]api.UserSummary, 0, len(r.Users)),
		Creditors:    make([]api.CreditorSummary, 0, len(r.Creditors)),
		Applications: make([]api.PaymentApplication, 0, len(r.Applications)),
	}
	for _, d := range r.Debts {
		out.Debts = append(out.Debts, api.DebtDetail{
			DebtorID:    d.DebtorID,
			CreditorID:  d.CreditorID,
			ExpenseID:   d.ExpenseID,
			ExpenseDate: d.ExpenseDate,
			Description: d.Description,
			Amount:      d.Amount,
			Remaining:   d.Remaining,
		})
	}
	for _, n := range r.Net {
		out.NetDebts = append(out.NetDebts, api.NetDebt{
			DebtorID:   n.DebtorID,
			CreditorID: n.CreditorID,
			Amount:     n.Amount,
		})
	}
	for _, u := range r.Users {
		out.Users = append(out.Users, api.UserSummary{
			UserID:            u.UserID,
			TotalOwed:         u.TotalOwed,
			TotalPaid:         u.TotalPaid,
			TotalExpensesPaid: u.TotalExpensesPaid,
			Remaining:         u.Remaining,
		})
	}
	for _, c := range r.Creditors {
		out.Creditors = append(out.Creditors, api.CreditorSummary{
			CreditorID:      c.CreditorID,
			TotalReceivable: c.TotalReceivable,
			DebtorCount:     c.DebtorCount,
		})
	}
	for _, a := range r.Applications {
		out.Applications = append(out.Applications, api.PaymentApplication{
			PaymentID:  a.PaymentID,
			DebtorID:   a.DebtorID,
			CreditorID: a.CreditorID,
			Amount:     a.Amount,
			Applied:    a.Applied,
			Unapplied:  a.Unapplied,
		})
	}
	return out
}
