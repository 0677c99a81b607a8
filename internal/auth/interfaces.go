package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenService defines the interface for token creation and validation.
// Implementations include PasetoService (PASETO v4.local) and JWTService (HS256).
type TokenService interface {
	CreateToken(userID uuid.UUID, duration time.Duration) (string, error)
	// VerifyToken returns ErrInvalidToken for any bad, tampered or expired token
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// EmailSender delivers password reset links
type EmailSender interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, name, token string, expiresIn time.Duration) error
}

// ObjectStore keeps uploaded profile pictures outside the database
type ObjectStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// BookCounter reports how many books a user owns
type BookCounter interface {
	Count(ctx context.Context, ownerID uuid.UUID) (int, error)
}
