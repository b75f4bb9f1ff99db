// Package userstest provides an in-memory users.Repository for tests.
package userstest

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/tuneder/tuneder/internal/shared"
	"github.com/tuneder/tuneder/internal/users"
)

// Repository is a mutex-guarded in-memory users.Repository. Every method is
// atomic, matching the contract of the real stores.
type Repository struct {
	mu     sync.Mutex
	byMail map[string]*users.User
	nextID int

	// Err, when set, is returned by every call.
	Err error
	// Toggles counts ToggleFavorite calls.
	Toggles int
}

// New returns an empty repository.
func New() *Repository {
	return &Repository{byMail: make(map[string]*users.User)}
}

// Create stores a copy of user.
func (r *Repository) Create(ctx context.Context, user *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.byMail[user.Email]; ok {
		return shared.ErrDuplicateEmail
	}
	r.nextID++
	user.ID = strconv.Itoa(r.nextID)
	user.CreatedAt = time.Now().UTC()
	if user.Favorites == nil {
		user.Favorites = []string{}
	}
	r.byMail[user.Email] = clone(user)
	return nil
}

// FindByEmail returns a copy of the stored user.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u, ok := r.byMail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return clone(u), nil
}

// ToggleFavorite flips membership of artistID under the lock.
func (r *Repository) ToggleFavorite(ctx context.Context, email, artistID string) ([]string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Toggles++
	if r.Err != nil {
		return nil, false, r.Err
	}
	u, ok := r.byMail[email]
	if !ok {
		return nil, false, shared.ErrNotFound
	}
	added := false
	if i := slices.Index(u.Favorites, artistID); i >= 0 {
		u.Favorites = slices.Delete(u.Favorites, i, i+1)
	} else {
		u.Favorites = append(u.Favorites, artistID)
		added = true
	}
	return slices.Clone(u.Favorites), added, nil
}

// Put stores a user directly, bypassing duplicate checks.
func (r *Repository) Put(user *users.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.Favorites == nil {
		user.Favorites = []string{}
	}
	r.byMail[user.Email] = clone(user)
}

func clone(u *users.User) *users.User {
	out := *u
	out.Favorites = slices.Clone(u.Favorites)
	if out.Favorites == nil {
		out.Favorites = []string{}
	}
	return &out
}

var _ users.Repository = (*Repository)(nil)
