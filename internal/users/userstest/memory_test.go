package userstest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuneder/tuneder/internal/shared"
	"github.com/tuneder/tuneder/internal/users"
)

func TestRepositoryContract(t *testing.T) {
	ctx := context.Background()
	repo := New()

	u := &users.User{Email: "a@b.com", DisplayName: "Al"}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.ErrorIs(t, repo.Create(ctx, &users.User{Email: "a@b.com"}), shared.ErrDuplicateEmail)

	_, err := repo.FindByEmail(ctx, "x@b.com")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	list, added, err := repo.ToggleFavorite(ctx, "a@b.com", "id1")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"id1"}, list)

	list, added, err = repo.ToggleFavorite(ctx, "a@b.com", "id1")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, list)

	_, _, err = repo.ToggleFavorite(ctx, "x@b.com", "id1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := New()
	repo.Put(&users.User{Email: "a@b.com", Favorites: []string{"id1"}})

	u, err := repo.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	u.Favorites[0] = "changed"

	again, err := repo.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"id1"}, again.Favorites)
}
