package auth

import (
	"context"

	"github.com/mmynk/settleup/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods (password, passkeys, OAuth, etc.)
// without changing the service layer code.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	// Options fill in optional profile fields such as the bank account.
	Register(ctx context.Context, email, displayName, credential string, opts ...UserOption) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}

// UserOption sets an optional field on a user being registered.
type UserOption func(*models.User)

// WithBankAccount records the account transfers are sent from and received on.
func WithBankAccount(account, bankName string) UserOption {
	return func(u *models.User) {
		u.BankAccount = account
		u.BankName = bankName
	}
}

// WithAdmin marks the user as an administrator.
func WithAdmin(admin bool) UserOption {
	return func(u *models.User) { u.IsAdmin = admin }
}
