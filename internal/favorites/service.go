// Package favorites manages the artists a user saved and resolves them to
// display metadata.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/tuneder/tuneder/internal/artists"
	"github.com/tuneder/tuneder/internal/shared"
	"github.com/tuneder/tuneder/internal/users"
)

// ErrInvalidArtistID is returned for ids that cannot be Spotify artist ids.
var ErrInvalidArtistID = errors.New("favorites: invalid artist id")

const defaultLookupConcurrency = 4

// Resolver turns an artist id into metadata.
type Resolver interface {
	ResolveArtist(ctx context.Context, artistID string) (*artists.Artist, error)
}

// Recorder counts favorite toggles.
type Recorder interface {
	RecordFavoriteToggle(action string)
}

type noopRecorder struct{}

func (noopRecorder) RecordFavoriteToggle(string) {}

// Entry is one saved artist. Artist is nil when the lookup failed; the id is
// kept so the entry can still be removed.
type Entry struct {
	ID       string
	Artist   *artists.Artist
	Resolved bool
}

// Service coordinates the credential store and the artist gateway.
type Service struct {
	logger      *slog.Logger
	repo        users.Repository
	resolver    Resolver
	metrics     Recorder
	validate    *validator.Validate
	concurrency int
}

// NewService constructs a Service. A nil recorder disables metrics.
func NewService(logger *slog.Logger, repo users.Repository, resolver Resolver, recorder Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		logger:      logger,
		repo:        repo,
		resolver:    resolver,
		metrics:     recorder,
		validate:    validator.New(),
		concurrency: defaultLookupConcurrency,
	}
}

// Toggle flips membership of artistID in the user's favorites and returns the
// stored list. A blank id changes nothing.
func (s *Service) Toggle(ctx context.Context, email, artistID string) ([]string, error) {
	if email == "" {
		return nil, shared.ErrNotAuthenticated
	}
	artistID = strings.TrimSpace(artistID)
	if artistID == "" {
		user, err := s.repo.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return user.Favorites, nil
	}
	if err := s.validate.Var(artistID, "alphanum,max=64"); err != nil {
		return nil, ErrInvalidArtistID
	}

	list, added, err := s.repo.ToggleFavorite(ctx, email, artistID)
	if err != nil {
		return nil, fmt.Errorf("favorites: toggle %s: %w", artistID, err)
	}
	action := "removed"
	if added {
		action = "added"
	}
	s.metrics.RecordFavoriteToggle(action)
	s.logger.Debug("favorite toggled", slog.String("artist_id", artistID), slog.String("action", action))
	return list, nil
}

// ListFavorites resolves the stored favorites of the user in stored order.
func (s *Service) ListFavorites(ctx context.Context, email string) ([]Entry, error) {
	_, entries, err := s.Profile(ctx, email)
	return entries, err
}

// Profile loads the authoritative user record together with its resolved
// favorites.
func (s *Service) Profile(ctx context.Context, email string) (*users.User, []Entry, error) {
	if email == "" {
		return nil, nil, shared.ErrNotAuthenticated
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	return user, s.Resolve(ctx, user.Favorites), nil
}

// Resolve looks up every id with bounded concurrency. A failed lookup yields
// an unresolved entry and a warning; it never fails the others.
func (s *Service) Resolve(ctx context.Context, ids []string) []Entry {
	entries := make([]Entry, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		entries[i].ID = id
		g.Go(func() error {
			artist, err := s.resolver.ResolveArtist(ctx, id)
			if err != nil {
				s.logger.Warn("resolve favorite", slog.String("artist_id", id), slog.Any("error", err))
				return nil
			}
			entries[i].Artist = artist
			entries[i].Resolved = true
			return nil
		})
	}
	_ = g.Wait()
	return entries
}
