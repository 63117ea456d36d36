package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense represents an amount paid by one user on behalf of the participants.
type Expense struct {
	// ID is the store-assigned identifier.
	ID int64

	// GroupID is the owning group, if any.
	GroupID *int64

	// PayerID is the user who paid the full amount.
	PayerID int64

	// Amount is the total paid. Always positive.
	Amount decimal.Decimal

	// Description is a free-text label (e.g., "Electricity March").
	Description string

	// Date is when the expense happened. Ledger ordering uses it.
	Date time.Time

	// Participants are the users sharing the expense.
	// The payer may or may not be listed; a listed payer never owes themselves.
	Participants []ExpenseParticipant

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64
}

// ExpenseParticipant is one user's share of an expense.
type ExpenseParticipant struct {
	ExpenseID int64
	UserID    int64

	// Amount is the explicit share. Nil means the user takes an equal part
	// of whatever the explicit shares leave over.
	Amount *decimal.Decimal
}

// ExplicitTotal sums the explicit participant amounts.
func (e *Expense) ExplicitTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range e.Participants {
		if p.Amount != nil {
			total = total.Add(*p.Amount)
		}
	}
	return total
}
