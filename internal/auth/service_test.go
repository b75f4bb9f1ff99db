package auth_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tuneder/tuneder/internal/auth"
	"github.com/tuneder/tuneder/internal/shared"
	"github.com/tuneder/tuneder/internal/users"
	"github.com/tuneder/tuneder/internal/users/userstest"
)

func TestRegisterThenLogin(t *testing.T) {
	svc := auth.NewService(userstest.New(), bcrypt.MinCost)
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.Registration{Email: "a@b.com", Password: "secret123", DisplayName: "Al"})
	require.NoError(t, err)

	user, err := svc.Login(ctx, "a@b.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "Al", user.DisplayName)

	_, err = svc.Login(ctx, "a@b.com", "wrong")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@b.com", "secret123")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRegisterSanitisesAndHashes(t *testing.T) {
	repo := userstest.New()
	svc := auth.NewService(repo, bcrypt.MinCost)

	user, err := svc.Register(context.Background(), auth.Registration{
		Email:       "  A@B.com ",
		Password:    "secret123",
		DisplayName: `<b onclick="x()">Al</b>`,
	})
	require.NoError(t, err)

	stored, err := repo.FindByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	assert.Equal(t, "Al", stored.DisplayName)
	assert.Equal(t, users.PlaceholderAvatar, stored.AvatarRef)
	assert.Empty(t, stored.Favorites)
	assert.NotEqual(t, "secret123", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")))
}

func TestServiceRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := auth.NewService(userstest.New(), bcrypt.MinCost)
	reg := auth.Registration{Email: "a@b.com", Password: "secret123", DisplayName: "Al"}

	_, err := svc.Register(context.Background(), reg)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), reg)
	assert.ErrorIs(t, err, shared.ErrDuplicateEmail)
}

func TestRegisterRejectsFieldsEmptyAfterSanitising(t *testing.T) {
	svc := auth.NewService(userstest.New(), bcrypt.MinCost)

	_, err := svc.Register(context.Background(), auth.Registration{
		Email:       "a@b.com",
		Password:    "secret123",
		DisplayName: "<script>alert(1)</script>",
	})
	assert.ErrorIs(t, err, auth.ErrIncomplete)
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	svc := auth.NewService(userstest.New(), bcrypt.MinCost)

	_, err := svc.Register(context.Background(), auth.Registration{
		Email:       "a@b.com",
		Password:    strings.Repeat("€", 30),
		DisplayName: "Al",
	})
	assert.ErrorIs(t, err, auth.ErrPasswordTooLong)
}

func TestLoginSurfacesStoreFailures(t *testing.T) {
	repo := userstest.New()
	repo.Err = fmt.Errorf("users: find by email: %w", shared.ErrStoreUnavailable)
	svc := auth.NewService(repo, bcrypt.MinCost)

	_, err := svc.Login(context.Background(), "a@b.com", "secret123")
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, shared.ErrInvalidCredentials)
}
