// Package users holds the credential store: user records keyed by email with
// their hashed password, profile fields and favorite artist ids.
package users

import (
	"slices"
	"time"
)

// PlaceholderAvatar is the avatar reference used when no upload was provided.
const PlaceholderAvatar = "profiel-placeholder.svg"

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"-"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	AvatarRef    string    `json:"avatarReference"`
	Favorites    []string  `json:"favorites"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasFavorite reports whether artistID is in the favorites list.
func (u *User) HasFavorite(artistID string) bool {
	return slices.Contains(u.Favorites, artistID)
}
