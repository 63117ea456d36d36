// Package models defines the persisted domain records for settleup.
//
// # Records
//
//   - User: a group member; may be a debtor, a creditor, or both
//   - Group: a set of users sharing expenses
//   - Expense: an amount paid by one user and shared by participants
//   - ExpenseParticipant: one user's share of an expense (explicit or equal split)
//   - Payment: money a debtor sent towards their debts for a period
//
// Derived data (debt ledger, net debts, summaries) lives in the calculator
// package and is never persisted.
//
// # Conventions
//
//  1. IDs are integers assigned by the store
//  2. Optional references are pointers (nil = unset)
//  3. Money is decimal.Decimal, never float64
//  4. CreatedAt/UpdatedAt are Unix seconds; business dates are time.Time
package models
