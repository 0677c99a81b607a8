package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users table row
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID               uuid.UUID  `bun:"id,pk,type:uuid"`
	Name             string     `bun:"name,notnull"`
	Email            string     `bun:"email,notnull,unique"`
	PasswordHash     string     `bun:"password_hash,notnull"`
	ProfilePicture   *string    `bun:"profile_picture"`
	ResetTokenHash   *string    `bun:"reset_token_hash"`
	ResetTokenExpiry *time.Time `bun:"reset_token_expiry"`
	CreatedAt        time.Time  `bun:"created_at,notnull"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull"`
}

// Book is the books table row
type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid"`
	Title         string    `bun:"title,notnull"`
	Author        string    `bun:"author,notnull"`
	Price         float64   `bun:"price,notnull"`
	ISBN          string    `bun:"isbn,notnull,unique"`
	PublishedDate time.Time `bun:"published_date,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}
