package models

// Group represents a set of users who share expenses.
// Membership is stored on the user (User.GroupID).
type Group struct {
	// ID is the store-assigned identifier.
	ID int64

	// Name is the display name of the group (e.g., "Roommates").
	Name string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}
