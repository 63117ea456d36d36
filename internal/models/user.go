package models

import "time"

// User represents a registered group member.
type User struct {
	// ID is the store-assigned identifier.
	ID int64

	// Email is the login address (unique).
	Email string

	// DisplayName is shown in reports and payment notes.
	DisplayName string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// BankAccount is the account number transfers are sent from/to.
	// Used as the fallback key when a transfer description cannot be decoded.
	BankAccount string

	// BankName is the display name of the user's bank.
	BankName string

	// GroupID is the group this user belongs to, if any.
	GroupID *int64

	// IsActive is false for users that left the group.
	// Inactive users cannot be matched as debtors of a bank transfer.
	IsActive bool

	// IsAdmin users may record and confirm payments on behalf of others.
	IsAdmin bool

	CreatedAt int64
	UpdatedAt int64
}

// NewUser creates an active user with timestamps set to now.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Name returns the display name, falling back to the email.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
