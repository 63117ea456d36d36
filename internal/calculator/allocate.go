package calculator

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/models"
)

// PaymentApplication reports how much of one payment reduced debts.
type PaymentApplication struct {
	PaymentID  int64
	DebtorID   int64
	CreditorID *int64
	Amount     decimal.Decimal
	Applied    decimal.Decimal

	// Unapplied is what was left after every matching debt reached zero.
	// A payment targeted at one creditor never spills over to others.
	Unapplied decimal.Decimal
}

// UserSummary aggregates one user's position.
type UserSummary struct {
	UserID int64

	// TotalOwed is the sum of the user's original debts.
	TotalOwed decimal.Decimal

	// TotalPaid is the sum of the user's confirmed payments as a debtor.
	TotalPaid decimal.Decimal

	// TotalExpensesPaid is the sum of expenses the user paid for the group.
	// Filled by BuildReport; AllocatePayments alone leaves it zero.
	TotalExpensesPaid decimal.Decimal

	// Remaining is what the user still owes after allocation (before netting).
	Remaining decimal.Decimal
}

// Allocation is the result of applying payments to a ledger.
type Allocation struct {
	Debts        []DebtDetail
	Applications []PaymentApplication
	Users        []UserSummary
}

// AllocatePayments reduces debt remainders by confirmed payments.
//
// Each debtor's payments are applied by paid date (then id). A payment with a
// creditor only touches that creditor's debts, oldest-first; a payment without
// one is spread oldest-first across all of the debtor's debts. In both cases
// the payment stops when exhausted or when no matching debt has a remainder.
// The input slice is not modified.
func AllocatePayments(debts []DebtDetail, payments []*models.Payment) *Allocation {
	out := slices.Clone(debts)

	byDebtor := make(map[int64][]int)
	for i := range out {
		byDebtor[out[i].DebtorID] = append(byDebtor[out[i].DebtorID], i)
	}
	for _, idx := range byDebtor {
		slices.SortStableFunc(idx, func(a, b int) int { return compareAge(out[a], out[b]) })
	}

	confirmed := make([]*models.Payment, 0, len(payments))
	for _, p := range payments {
		if p != nil && p.IsConfirmed() {
			confirmed = append(confirmed, p)
		}
	}
	slices.SortStableFunc(confirmed, func(a, b *models.Payment) int {
		if c := cmp.Compare(a.DebtorID, b.DebtorID); c != 0 {
			return c
		}
		if c := a.PaidAt.Compare(b.PaidAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	applications := make([]PaymentApplication, 0, len(confirmed))
	for _, p := range confirmed {
		amount := p.Amount
		if amount.IsNegative() {
			amount = decimal.Zero
		}

		var match func(DebtDetail) bool
		if p.CreditorID != nil {
			creditorID := *p.CreditorID
			match = func(d DebtDetail) bool { return d.CreditorID == creditorID }
		}
		left := deductOldestFirst(out, byDebtor[p.DebtorID], amount, match)

		applications = append(applications, PaymentApplication{
			PaymentID:  p.ID,
			DebtorID:   p.DebtorID,
			CreditorID: p.CreditorID,
			Amount:     amount,
			Applied:    amount.Sub(left),
			Unapplied:  left,
		})
	}

	return &Allocation{
		Debts:        out,
		Applications: applications,
		Users:        summarizeUsers(out, confirmed),
	}
}

func summarizeUsers(debts []DebtDetail, payments []*models.Payment) []UserSummary {
	users := make(map[int64]*UserSummary)
	get := func(id int64) *UserSummary {
		if u, ok := users[id]; ok {
			return u
		}
		u := &UserSummary{
			UserID:            id,
			TotalOwed:         decimal.Zero,
			TotalPaid:         decimal.Zero,
			TotalExpensesPaid: decimal.Zero,
			Remaining:         decimal.Zero,
		}
		users[id] = u
		return u
	}

	for _, d := range debts {
		debtor := get(d.DebtorID)
		debtor.TotalOwed = debtor.TotalOwed.Add(d.Amount)
		debtor.Remaining = debtor.Remaining.Add(d.Remaining)
		get(d.CreditorID)
	}
	for _, p := range payments {
		debtor := get(p.DebtorID)
		debtor.TotalPaid = debtor.TotalPaid.Add(p.Amount)
	}

	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, *u)
	}
	sortUsers(out)
	return out
}

func sortUsers(users []UserSummary) {
	slices.SortFunc(users, func(a, b UserSummary) int { return cmp.Compare(a.UserID, b.UserID) })
}
