package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/models"
)

// Report is the full debt picture for a set of expenses and payments.
type Report struct {
	// Debts are the per-expense debts after allocation and netting.
	Debts []DebtDetail

	// Net is Debts aggregated per (debtor, creditor), positive amounts only.
	Net []NetDebt

	Users        []UserSummary
	Creditors    []CreditorSummary
	Applications []PaymentApplication
}

// BuildReport runs the ledger, allocation and netting pipeline.
//
// Algorithm:
//   - Ledger: one debt per (debtor, creditor, expense)
//   - Allocation: confirmed payments reduce remainders (targeted or oldest-first)
//   - Netting: reciprocal remainders cancel out per pair
//   - Summaries: per user, per (debtor, creditor), per creditor
func BuildReport(expenses []*models.Expense, payments []*models.Payment) *Report {
	allocation := AllocatePayments(BuildLedger(expenses), payments)
	netted := NetMutualDebts(allocation.Debts)
	net := SummarizeNet(netted)

	return &Report{
		Debts:        netted,
		Net:          net,
		Users:        withExpensesPaid(allocation.Users, expenses),
		Creditors:    SummarizeCreditors(net),
		Applications: allocation.Applications,
	}
}

// Owed returns the net amount debtor still owes creditor.
func (r *Report) Owed(debtorID, creditorID int64) decimal.Decimal {
	for _, n := range r.Net {
		if n.DebtorID == debtorID && n.CreditorID == creditorID {
			return n.Amount
		}
	}
	return decimal.Zero
}

// User returns the summary for a user, or a zero summary if the user has no activity.
func (r *Report) User(userID int64) UserSummary {
	for _, u := range r.Users {
		if u.UserID == userID {
			return u
		}
	}
	return UserSummary{
		UserID:            userID,
		TotalOwed:         decimal.Zero,
		TotalPaid:         decimal.Zero,
		TotalExpensesPaid: decimal.Zero,
		Remaining:         decimal.Zero,
	}
}

func withExpensesPaid(users []UserSummary, expenses []*models.Expense) []UserSummary {
	paid := make(map[int64]decimal.Decimal)
	for _, e := range expenses {
		if e != nil {
			paid[e.PayerID] = paid[e.PayerID].Add(e.Amount)
		}
	}

	seen := make(map[int64]bool, len(users))
	for i := range users {
		seen[users[i].UserID] = true
		if amount, ok := paid[users[i].UserID]; ok {
			users[i].TotalExpensesPaid = amount
		}
	}
	// Payers whose expenses produced no debts (e.g. only themselves listed).
	for id, amount := range paid {
		if !seen[id] {
			users = append(users, UserSummary{
				UserID:            id,
				TotalOwed:         decimal.Zero,
				TotalPaid:         decimal.Zero,
				TotalExpensesPaid: amount,
				Remaining:         decimal.Zero,
			})
		}
	}
	sortUsers(users)
	return users
}
