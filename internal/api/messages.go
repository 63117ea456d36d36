package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the public view of a registered user.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	BankAccount string    `json:"bank_account,omitempty"`
	BankName    string    `json:"bank_name,omitempty"`
	GroupID     *int64    `json:"group_id,omitempty"`
	IsActive    bool      `json:"is_active"`
	IsAdmin     bool      `json:"is_admin,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	BankAccount string `json:"bank_account,omitempty"`
	BankName    string `json:"bank_name,omitempty"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

// Group is a set of users sharing expenses.
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Members   []*User   `json:"members,omitempty"`
}

type CreateGroupRequest struct {
	Name      string  `json:"name"`
	MemberIDs []int64 `json:"member_ids,omitempty"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID int64 `json:"group_id"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type AddMemberRequest struct {
	GroupID int64 `json:"group_id"`
	UserID  int64 `json:"user_id"`
}

type AddMemberResponse struct {
	Group *Group `json:"group"`
}

// Participant is one user's share of an expense. A nil Amount takes an equal part
// of what the explicit shares leave over.
type Participant struct {
	UserID int64            `json:"user_id"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

type Expense struct {
	ID           int64           `json:"id"`
	GroupID      *int64          `json:"group_id,omitempty"`
	PayerID      int64           `json:"payer_id"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Date         time.Time       `json:"date"`
	Participants []Participant   `json:"participants"`
}

type CreateExpenseRequest struct {
	GroupID *int64 `json:"group_id,omitempty"`
	// PayerID defaults to the caller.
	PayerID     int64           `json:"payer_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	// Date defaults to now.
	Date         time.Time     `json:"date,omitempty"`
	Participants []Participant `json:"participants"`
}

type CreateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type GetExpenseRequest struct {
	ExpenseID int64 `json:"expense_id"`
}

type GetExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type ListExpensesRequest struct {
	GroupID *int64 `json:"group_id,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

type DeleteExpenseRequest struct {
	ExpenseID int64 `json:"expense_id"`
}

type DeleteExpenseResponse struct{}

type Payment struct {
	ID         int64           `json:"id"`
	DebtorID   int64           `json:"debtor_id"`
	CreditorID *int64          `json:"creditor_id,omitempty"`
	GroupID    *int64          `json:"group_id,omitempty"`
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
	Notes      string          `json:"notes,omitempty"`
	Status     string          `json:"status"`
	CreatedBy  *int64          `json:"created_by,omitempty"`
}

type DebtDetail struct {
	DebtorID    int64           `json:"debtor_id"`
	CreditorID  int64           `json:"creditor_id"`
	ExpenseID   int64           `json:"expense_id"`
	ExpenseDate time.Time       `json:"expense_date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Remaining   decimal.Decimal `json:"remaining"`
}

type NetDebt struct {
	DebtorID   int64           `json:"debtor_id"`
	CreditorID int64           `json:"creditor_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type UserSummary struct {
	UserID            int64           `json:"user_id"`
	TotalOwed         decimal.Decimal `json:"total_owed"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	TotalExpensesPaid decimal.Decimal `json:"total_expenses_paid"`
	Remaining         decimal.Decimal `json:"remaining"`
}

type CreditorSummary struct {
	CreditorID      int64           `json:"creditor_id"`
	TotalReceivable decimal.Decimal `json:"total_receivable"`
	DebtorCount     int             `json:"debtor_count"`
}

type PaymentApplication struct {
	PaymentID  int64           `json:"payment_id"`
	DebtorID   int64           `json:"debtor_id"`
	CreditorID *int64          `json:"creditor_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Applied    decimal.Decimal `json:"applied"`
	Unapplied  decimal.Decimal `json:"unapplied"`
}

type GetDebtReportRequest struct {
	GroupID *int64 `json:"group_id,omitempty"`
}

type GetDebtReportResponse struct {
	Debts        []DebtDetail         `json:"debts"`
	NetDebts     []NetDebt            `json:"net_debts"`
	Users        []UserSummary        `json:"users"`
	Creditors    []CreditorSummary    `json:"creditors"`
	Applications []PaymentApplication `json:"applications"`
}

type CreatePaymentRequest struct {
	// DebtorID defaults to the caller.
	DebtorID   int64           `json:"debtor_id,omitempty"`
	CreditorID *int64          `json:"creditor_id,omitempty"`
	GroupID    *int64          `json:"group_id,omitempty"`
	Year       int             `json:"year,omitempty"`
	Month      int             `json:"month,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

type CreatePaymentResponse struct {
	Payment *Payment `json:"payment"`
}

type ConfirmPaymentRequest struct {
	PaymentID int64 `json:"payment_id"`
}

type ConfirmPaymentResponse struct {
	Payment *Payment `json:"payment"`
}

type ListPaymentsRequest struct {
	GroupID  *int64 `json:"group_id,omitempty"`
	DebtorID *int64 `json:"debtor_id,omitempty"`
	Year     int    `json:"year,omitempty"`
	Month    int    `json:"month,omitempty"`
	Status   string `json:"status,omitempty"`
}

type ListPaymentsResponse struct {
	Payments []*Payment `json:"payments"`
}

// GetPaymentRequestRequest asks for the transfer details a debtor should use
// to pay a creditor for a period.
type GetPaymentRequestRequest struct {
	CreditorID int64  `json:"creditor_id"`
	DebtorID   int64  `json:"debtor_id,omitempty"`
	GroupID    *int64 `json:"group_id,omitempty"`
	Year       int    `json:"year,omitempty"`
	Month      int    `json:"month,omitempty"`
}

type GetPaymentRequestResponse struct {
	// Description is the encoded payment code to put in the transfer memo.
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	CreditorName string          `json:"creditor_name"`
	BankAccount  string          `json:"bank_account"`
	BankName     string          `json:"bank_name,omitempty"`
	Year         int             `json:"year"`
	Month        int             `json:"month"`
}
