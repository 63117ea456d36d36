package calculator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func idPtr(id int64) *int64 {
	return &id
}

func day(n int) time.Time {
	return time.Date(2024, time.March, n, 12, 0, 0, 0, time.UTC)
}

// expense builds an expense where every participant takes an equal share.
func expense(id, payer int64, amount string, date time.Time, participants ...int64) *models.Expense {
	e := &models.Expense{ID: id, PayerID: payer, Amount: dec(amount), Date: date}
	for _, p := range participants {
		e.Participants = append(e.Participants, models.ExpenseParticipant{ExpenseID: id, UserID: p})
	}
	return e
}

func payment(id, debtor int64, creditor *int64, amount string, paidAt time.Time) *models.Payment {
	return &models.Payment{
		ID:         id,
		DebtorID:   debtor,
		CreditorID: creditor,
		Amount:     dec(amount),
		PaidAt:     paidAt,
		Year:       paidAt.Year(),
		Month:      int(paidAt.Month()),
		Status:     models.PaymentConfirmed,
	}
}

func assertAmount(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}

func findDebt(t *testing.T, debts []DebtDetail, debtor, creditor, expenseID int64) DebtDetail {
	t.Helper()
	for _, d := range debts {
		if d.DebtorID == debtor && d.CreditorID == creditor && d.ExpenseID == expenseID {
			return d
		}
	}
	t.Fatalf("no debt %d->%d for expense %d", debtor, creditor, expenseID)
	return DebtDetail{}
}

func assertRemainingInRange(t *testing.T, debts []DebtDetail) {
	t.Helper()
	for _, d := range debts {
		if d.Remaining.IsNegative() || d.Remaining.GreaterThan(d.Amount) {
			t.Errorf("debt %d->%d (expense %d): remaining %s outside [0, %s]",
				d.DebtorID, d.CreditorID, d.ExpenseID, d.Remaining, d.Amount)
		}
	}
}
