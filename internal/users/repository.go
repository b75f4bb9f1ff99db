package users

import "context"

// Repository defines persistence operations for user records.
//
// Implementations return shared.ErrNotFound for unknown emails,
// shared.ErrDuplicateEmail when an email is taken and wrap transport
// failures with shared.ErrStoreUnavailable.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	// ToggleFavorite removes artistID from the user's favorites when present
	// and appends it otherwise, as one atomic store operation. It returns the
	// updated list and whether the id was added.
	ToggleFavorite(ctx context.Context, email, artistID string) ([]string, bool, error)
}
