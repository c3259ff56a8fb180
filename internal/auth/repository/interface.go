package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuthRepository defines the persistence operations of the auth service.
type AuthRepository interface {
	// CreateUser inserts the user with its roles, plus an inspector row when
	// the inspector role is present, in one transaction.
	CreateUser(ctx context.Context, user NewUser) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (User, error)

	CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	// RotateRefreshToken revokes a live token and stores its replacement.
	// It returns the owner, or NotFound when the old token is unknown,
	// revoked or expired.
	RotateRefreshToken(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (uuid.UUID, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error

	GetUserRoles(ctx context.Context, userID uuid.UUID) ([]string, error)
}

var _ AuthRepository = (*Repository)(nil)
