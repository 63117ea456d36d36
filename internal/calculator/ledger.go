// Package calculator turns expenses and payments into debts.
//
// The pipeline is pure and recomputed from scratch on every call:
//
//	BuildLedger -> AllocatePayments -> NetMutualDebts -> SummarizeNet
//
// BuildReport runs all of it.
package calculator

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/models"
)

// roundingNoise is the tolerance below which a remaining amount counts as zero.
var roundingNoise = decimal.New(1, -2)

// DebtDetail is what one debtor owes one creditor for one expense.
type DebtDetail struct {
	DebtorID    int64
	CreditorID  int64
	ExpenseID   int64
	ExpenseDate time.Time
	Description string

	// Amount is the original share. Never changes after BuildLedger.
	Amount decimal.Decimal

	// Remaining is reduced by allocation and netting; 0 <= Remaining <= Amount.
	Remaining decimal.Decimal
}

// BuildLedger creates one DebtDetail per (debtor, creditor, expense).
//
// A participant owes their explicit amount when set, otherwise an equal part
// (rounded to 2 decimals) of what the explicit amounts leave over. The payer
// never owes themselves but does count towards the equal split when listed.
//
// The result is grouped by debtor (ascending id) and sorted oldest-first
// within each debtor by (expense date, expense id).
func BuildLedger(expenses []*models.Expense) []DebtDetail {
	type debtKey struct{ debtor, creditor, expense int64 }
	seen := make(map[debtKey]bool)

	var debts []DebtDetail
	for _, expense := range expenses {
		if expense == nil {
			continue
		}
		share := equalShare(expense)

		for _, p := range expense.Participants {
			if p.UserID == expense.PayerID {
				continue
			}
			key := debtKey{p.UserID, expense.PayerID, expense.ID}
			if seen[key] {
				continue
			}
			seen[key] = true

			owed := share
			if p.Amount != nil {
				owed = *p.Amount
			}
			if owed.IsNegative() {
				owed = decimal.Zero
			}

			debts = append(debts, DebtDetail{
				DebtorID:    p.UserID,
				CreditorID:  expense.PayerID,
				ExpenseID:   expense.ID,
				ExpenseDate: expense.Date,
				Description: expense.Description,
				Amount:      owed,
				Remaining:   owed,
			})
		}
	}

	slices.SortStableFunc(debts, compareLedger)
	return debts
}

// equalShare is the amount owed by each participant without an explicit amount.
func equalShare(expense *models.Expense) decimal.Decimal {
	var n int64
	for _, p := range expense.Participants {
		if p.Amount == nil {
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	rest := expense.Amount.Sub(expense.ExplicitTotal())
	return rest.Div(decimal.NewFromInt(n)).Round(2)
}

func compareLedger(a, b DebtDetail) int {
	if c := cmp.Compare(a.DebtorID, b.DebtorID); c != 0 {
		return c
	}
	return compareAge(a, b)
}

// compareAge orders debts oldest-first.
func compareAge(a, b DebtDetail) int {
	if c := a.ExpenseDate.Compare(b.ExpenseDate); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ExpenseID, b.ExpenseID); c != 0 {
		return c
	}
	return cmp.Compare(a.CreditorID, b.CreditorID)
}

// sumRemaining adds up the remaining amounts of the debts at the given indexes.
func sumRemaining(debts []DebtDetail, idx []int) decimal.Decimal {
	total := decimal.Zero
	for _, i := range idx {
		total = total.Add(debts[i].Remaining)
	}
	return total
}

// deductOldestFirst takes up to amount off the debts at idx, in order,
// and returns what could not be taken.
func deductOldestFirst(debts []DebtDetail, idx []int, amount decimal.Decimal, match func(DebtDetail) bool) decimal.Decimal {
	left := amount
	for _, i := range idx {
		if !left.IsPositive() {
			break
		}
		d := &debts[i]
		if !d.Remaining.IsPositive() || (match != nil && !match(*d)) {
			continue
		}
		take := decimal.Min(left, d.Remaining)
		d.Remaining = d.Remaining.Sub(take)
		left = left.Sub(take)
	}
	return left
}
