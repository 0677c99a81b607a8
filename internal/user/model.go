package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"` // Never expose password hash in JSON
	ProfilePicture   *string    `json:"profile_picture,omitempty"`
	ResetTokenHash   *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HasProfilePicture reports whether an uploaded picture key is stored
func (u *User) HasProfilePicture() bool {
	return u.ProfilePicture != nil && *u.ProfilePicture != ""
}

// ProfileChanges lists the columns an UpdateProfile call may modify.
// Nil fields are left untouched.
type ProfileChanges struct {
	Name           *string
	PasswordHash   *string
	ProfilePicture *string
}

// NormalizeEmail is the canonical form used for storage and lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
