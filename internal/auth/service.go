// Package auth registers accounts, verifies credentials and gates pages that
// need a logged in user.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/tuneder/tuneder/internal/sanitize"
	"github.com/tuneder/tuneder/internal/shared"
	"github.com/tuneder/tuneder/internal/users"
)

// ErrIncomplete is returned when a registration misses a required field
// after sanitising.
var ErrIncomplete = errors.New("auth: name, email and password are required")

// ErrPasswordTooLong is returned when a password exceeds the bcrypt input
// limit of MaxPasswordBytes.
var ErrPasswordTooLong = errors.New("auth: password too long")

// MaxPasswordBytes is the longest password bcrypt accepts, counted in bytes.
const MaxPasswordBytes = 72

// Registration carries the raw registration input.
type Registration struct {
	Email       string
	Password    string
	DisplayName string
	AvatarRef   string
}

// Service wraps authentication business rules.
type Service struct {
	repo      users.Repository
	cost      int
	dummyHash []byte
}

// NewService constructs a new Service hashing with the given bcrypt cost.
// A cost of zero selects bcrypt.DefaultCost.
func NewService(repo users.Repository, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	// Compared against when the email is unknown, so both failure paths
	// spend the same time in bcrypt.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("tuneder-unknown-account"), cost)
	return &Service{repo: repo, cost: cost, dummyHash: dummy}
}

// Register stores a new user. Email and display name are sanitised, the
// password is hashed and the avatar falls back to the placeholder.
func (s *Service) Register(ctx context.Context, reg Registration) (*users.User, error) {
	email := sanitize.Email(reg.Email)
	name := sanitize.Text(reg.DisplayName)
	if email == "" || name == "" || reg.Password == "" {
		return nil, ErrIncomplete
	}
	if len(reg.Password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	avatar := reg.AvatarRef
	if avatar == "" {
		avatar = users.PlaceholderAvatar
	}

	user := &users.User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  name,
		AvatarRef:    avatar,
		Favorites:    []string{},
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login validates email/password credentials. Unknown emails and wrong
// passwords both return shared.ErrInvalidCredentials; store failures are
// returned as they are.
func (s *Service) Login(ctx context.Context, email, password string) (*users.User, error) {
	user, err := s.repo.FindByEmail(ctx, sanitize.Email(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}
