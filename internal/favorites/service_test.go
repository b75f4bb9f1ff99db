package favorites_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuneder/tuneder/internal/artists"
	"github.com/tuneder/tuneder/internal/favorites"
	"github.com/tuneder/tuneder/internal/shared"
	"github.com/tuneder/tuneder/internal/users"
	"github.com/tuneder/tuneder/internal/users/userstest"
)

type fakeResolver struct {
	artists map[string]*artists.Artist
	delay   map[string]time.Duration
}

func (f *fakeResolver) ResolveArtist(ctx context.Context, id string) (*artists.Artist, error) {
	if d := f.delay[id]; d > 0 {
		time.Sleep(d)
	}
	a, ok := f.artists[id]
	if !ok {
		return nil, fmt.Errorf("artists: %s: %w: status 404", id, shared.ErrLookup)
	}
	return a, nil
}

type toggleCounter struct {
	mu      sync.Mutex
	actions map[string]int
}

func (c *toggleCounter) RecordFavoriteToggle(action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.actions == nil {
		c.actions = map[string]int{}
	}
	c.actions[action]++
}

func seeded(favs ...string) *userstest.Repository {
	repo := userstest.New()
	repo.Put(&users.User{Email: "a@b.com", DisplayName: "Al", Favorites: favs})
	return repo
}

func TestToggleTwiceRestoresMembership(t *testing.T) {
	repo := seeded("keep")
	counter := &toggleCounter{}
	svc := favorites.NewService(nil, repo, &fakeResolver{}, counter)
	ctx := context.Background()

	list, err := svc.Toggle(ctx, "a@b.com", "abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{"keep", "abc123"}, list)

	list, err = svc.Toggle(ctx, "a@b.com", "abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, list)
	assert.Equal(t, map[string]int{"added": 1, "removed": 1}, counter.actions)
}

func TestToggleNeverStoresDuplicates(t *testing.T) {
	repo := seeded()
	svc := favorites.NewService(nil, repo, &fakeResolver{}, nil)
	ctx := context.Background()

	for _, id := range []string{"a1", "b2", "a1", "a1", "c3", "b2", "a1"} {
		_, err := svc.Toggle(ctx, "a@b.com", id)
		require.NoError(t, err)
	}

	user, err := repo.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, id := range user.Favorites {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	assert.ElementsMatch(t, []string{"a1", "c3"}, user.Favorites)
}

func TestBlankToggleLeavesFavoritesUnchanged(t *testing.T) {
	repo := seeded("x1", "y2")
	svc := favorites.NewService(nil, repo, &fakeResolver{}, nil)

	for _, id := range []string{"", "   "} {
		list, err := svc.Toggle(context.Background(), "a@b.com", id)
		require.NoError(t, err)
		assert.Equal(t, []string{"x1", "y2"}, list)
	}
	assert.Zero(t, repo.Toggles)
}

func TestToggleRejectsMalformedIDs(t *testing.T) {
	repo := seeded()
	svc := favorites.NewService(nil, repo, &fakeResolver{}, nil)

	_, err := svc.Toggle(context.Background(), "a@b.com", "../etc")
	assert.ErrorIs(t, err, favorites.ErrInvalidArtistID)
	assert.Zero(t, repo.Toggles)
}

func TestToggleRequiresUser(t *testing.T) {
	svc := favorites.NewService(nil, seeded(), &fakeResolver{}, nil)

	_, err := svc.Toggle(context.Background(), "", "abc")
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)

	_, err = svc.ListFavorites(context.Background(), "")
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
}

func TestConcurrentTogglesKeepEveryUpdate(t *testing.T) {
	repo := seeded()
	svc := favorites.NewService(nil, repo, &fakeResolver{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Toggle(context.Background(), "a@b.com", fmt.Sprintf("artist%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	user, err := repo.FindByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Len(t, user.Favorites, 20)
}

func TestListFavoritesIsolatesLookupFailures(t *testing.T) {
	resolver := &fakeResolver{artists: map[string]*artists.Artist{
		"id1": {ID: "id1", Name: "Golden Earring"},
	}}
	svc := favorites.NewService(nil, seeded("id1", "id2"), resolver, nil)

	entries, err := svc.ListFavorites(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "id1", entries[0].ID)
	assert.True(t, entries[0].Resolved)
	assert.Equal(t, "Golden Earring", entries[0].Artist.Name)

	assert.Equal(t, "id2", entries[1].ID)
	assert.False(t, entries[1].Resolved)
	assert.Nil(t, entries[1].Artist)
}

func TestResolveKeepsStoredOrder(t *testing.T) {
	resolver := &fakeResolver{
		artists: map[string]*artists.Artist{
			"slow": {ID: "slow", Name: "Slow"},
			"mid":  {ID: "mid", Name: "Mid"},
			"fast": {ID: "fast", Name: "Fast"},
		},
		delay: map[string]time.Duration{"slow": 30 * time.Millisecond, "mid": 10 * time.Millisecond},
	}
	svc := favorites.NewService(nil, seeded(), resolver, nil)

	entries := svc.Resolve(context.Background(), []string{"slow", "mid", "fast"})

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Artist.Name)
	}
	assert.Equal(t, []string{"Slow", "Mid", "Fast"}, names)
}

func TestProfileSurfacesMissingUser(t *testing.T) {
	svc := favorites.NewService(nil, userstest.New(), &fakeResolver{}, nil)

	_, _, err := svc.Profile(context.Background(), "gone@b.com")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
