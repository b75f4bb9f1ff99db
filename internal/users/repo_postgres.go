package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tuneder/tuneder/internal/shared"
)

const pgUniqueViolation = "23505"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a user row.
func (r *PGRepository) Create(ctx context.Context, user *User) error {
	const query = `INSERT INTO users (email, password_hash, display_name, avatar_ref, favorites)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`
	favorites := user.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	var id int64
	err := r.pool.QueryRow(ctx, query, user.Email, user.PasswordHash, user.DisplayName, user.AvatarRef, favorites).Scan(&id, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return shared.ErrDuplicateEmail
		}
		return fmt.Errorf("users: insert: %w: %w", shared.ErrStoreUnavailable, err)
	}
	user.ID = strconv.FormatInt(id, 10)
	user.Favorites = favorites
	return nil
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const query = `SELECT id, email, password_hash, display_name, avatar_ref, favorites, created_at
FROM users WHERE email = $1`
	var (
		id   int64
		user User
	)
	err := r.pool.QueryRow(ctx, query, email).Scan(&id, &user.Email, &user.PasswordHash, &user.DisplayName, &user.AvatarRef, &user.Favorites, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: find by email: %w: %w", shared.ErrStoreUnavailable, err)
	}
	user.ID = strconv.FormatInt(id, 10)
	return &user, nil
}

// ToggleFavorite flips membership of artistID in a single UPDATE. The row
// lock taken by UPDATE serialises concurrent toggles on the same user, and
// the CASE is evaluated against the locked row.
func (r *PGRepository) ToggleFavorite(ctx context.Context, email, artistID string) ([]string, bool, error) {
	const query = `UPDATE users
SET favorites = CASE
        WHEN $2::text = ANY(favorites) THEN array_remove(favorites, $2::text)
        ELSE array_append(favorites, $2::text)
    END,
    updated_at = now()
WHERE email = $1
RETURNING favorites, $2::text = ANY(favorites)`
	var (
		favorites []string
		added     bool
	)
	if err := r.pool.QueryRow(ctx, query, email, artistID).Scan(&favorites, &added); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, shared.ErrNotFound
		}
		return nil, false, fmt.Errorf("users: toggle favorite: %w: %w", shared.ErrStoreUnavailable, err)
	}
	return favorites, added, nil
}

var _ Repository = (*PGRepository)(nil)
