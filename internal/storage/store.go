// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/settleup/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: record not found")

	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	// For payments it is the canonical "already recorded" signal.
	ErrDuplicate = errors.New("storage: duplicate record")
)

// ExpenseFilter narrows ListExpenses. Zero value lists everything.
type ExpenseFilter struct {
	GroupID *int64
}

// PaymentFilter narrows ListPayments. Zero-valued fields are ignored.
type PaymentFilter struct {
	GroupID  *int64
	DebtorID *int64
	Year     int
	Month    int
	Status   models.PaymentStatus
}

// UserStore covers user records.
// Lookups return (nil, nil) when the user does not exist.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByBankAccount(ctx context.Context, account string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]*models.User, error)
	ListUsersByGroup(ctx context.Context, groupID int64) ([]*models.User, error)
	SetUserGroup(ctx context.Context, userID, groupID int64) error
}

// PaymentStore covers payment records.
type PaymentStore interface {
	// CreatePayment persists a payment and assigns its ID.
	// Returns ErrDuplicate if the idempotency key is already taken.
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]*models.Payment, error)
	ConfirmPayment(ctx context.Context, id int64) error
}

// Store defines the full set of storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	UserStore
	PaymentStore

	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// CreateExpense persists an expense with its participants and assigns its ID.
	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, id int64) (*models.Expense, error)
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]*models.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error

	// Close releases any resources held by the store.
	Close() error
}
