package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the confirmation state of a payment.
type PaymentStatus string

const (
	// PaymentPending is a self-service payment waiting for the creditor or an admin.
	PaymentPending PaymentStatus = "pending"
	// PaymentConfirmed payments count towards debt allocation.
	PaymentConfirmed PaymentStatus = "confirmed"
)

// Payment represents money a debtor sent towards their debts for a period.
type Payment struct {
	// ID is the store-assigned identifier.
	ID int64

	// DebtorID is the user who paid.
	DebtorID int64

	// CreditorID targets the payment at one creditor. Nil means the payment
	// is spread oldest-first over all of the debtor's debts.
	CreditorID *int64

	// GroupID is the group the payment belongs to, if any.
	GroupID *int64

	// Year and Month identify the settlement period.
	Year  int
	Month int

	// Amount is the paid amount. Always positive.
	Amount decimal.Decimal

	// PaidAt is when the money moved.
	PaidAt time.Time

	// Notes is a human-readable description (payer, creditor, bank reference...).
	Notes string

	Status PaymentStatus

	// IdempotencyKey is unique per payment when set. Bank reconciliation derives
	// it from the transaction so replays collide in the store.
	IdempotencyKey string

	// CreatedBy is the user who recorded the payment; nil for bank reconciliation.
	CreatedBy *int64

	CreatedAt int64
}

// IsConfirmed reports whether the payment counts towards allocation.
func (p *Payment) IsConfirmed() bool {
	return p.Status == PaymentConfirmed
}

// SameCreditor reports whether the payment targets the given creditor
// (both unset counts as the same).
func (p *Payment) SameCreditor(creditorID *int64) bool {
	if p.CreditorID == nil || creditorID == nil {
		return p.CreditorID == nil && creditorID == nil
	}
	return *p.CreditorID == *creditorID
}
