package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/bookshelf/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles user data persistence
type Repository struct {
	db  *bun.DB
	now func() time.Time
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, name, email, passwordHash string) (*User, error) {
	now := r.now()
	dbUser := &database.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Exec(ctx)

	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", NormalizeEmail(email)).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// UpdateProfile writes the non-nil fields of changes in a single statement
func (r *Repository) UpdateProfile(ctx context.Context, userID uuid.UUID, changes ProfileChanges) error {
	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("updated_at = ?", r.now()).
		Where("id = ?", userID)

	if changes.Name != nil {
		q = q.Set("name = ?", *changes.Name)
	}
	if changes.PasswordHash != nil {
		q = q.Set("password_hash = ?", *changes.PasswordHash)
	}
	if changes.ProfilePicture != nil {
		q = q.Set("profile_picture = ?", *changes.ProfilePicture)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return requireOneRow(result)
}

// UpdatePassword updates a user's password hash
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return r.UpdateProfile(ctx, userID, ProfileChanges{PasswordHash: &passwordHash})
}

// SetResetToken stores a reset token hash and its expiry, replacing any
// pending token for the user
func (r *Repository) SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("reset_token_hash = ?", tokenHash).
		Set("reset_token_expiry = ?", expiresAt.UTC()).
		Set("updated_at = ?", r.now()).
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	return requireOneRow(result)
}

// GetByResetToken retrieves the user owning tokenHash if it expires after now
func (r *Repository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("reset_token_hash = ?", tokenHash).
		Where("reset_token_expiry > ?", now.UTC()).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by reset token: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// ConsumeResetToken sets the new password hash and clears the reset token in
// one statement, only while the token is still valid at now. It returns
// ErrNotFound when the token is unknown, already used or expired.
func (r *Repository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.NewSelect().
		Model((*database.User)(nil)).
		Column("id").
		Where("reset_token_hash = ?", tokenHash).
		Where("reset_token_expiry > ?", now.UTC()).
		Scan(ctx, &ids)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve reset token: %w", err)
	}
	if len(ids) == 0 {
		return uuid.Nil, ErrNotFound
	}

	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_token_hash = NULL").
		Set("reset_token_expiry = NULL").
		Set("updated_at = ?", r.now()).
		Where("id = ?", ids[0]).
		Where("reset_token_hash = ?", tokenHash).
		Where("reset_token_expiry > ?", now.UTC()).
		Exec(ctx)

	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to reset password: %w", err)
	}

	if err := requireOneRow(result); err != nil {
		return uuid.Nil, err
	}

	return ids[0], nil
}

func requireOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:               dbu.ID,
		Name:             dbu.Name,
		Email:            dbu.Email,
		PasswordHash:     dbu.PasswordHash,
		ProfilePicture:   dbu.ProfilePicture,
		ResetTokenHash:   dbu.ResetTokenHash,
		ResetTokenExpiry: dbu.ResetTokenExpiry,
		CreatedAt:        dbu.CreatedAt,
		UpdatedAt:        dbu.UpdatedAt,
	}
}
