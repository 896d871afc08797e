package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bilitade/hubbo/internal/models"
)

// User repository interface
// Acts as the identity provider for the auth core: users are returned with
// their roles and role permissions resolved.
type UserRepo interface {
	// Create user
	// If user with username exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string) (models.User, error)

	// Get user by id or username, roles included
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Replace the stored password hash
	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error

	// List all users, roles included
	ListUsers(ctx context.Context) ([]models.User, error)
}

// RefreshToken repository interface
// Owns the RefreshToken record lifecycle exclusively.
type RefreshTokenRepo interface {
	// Persist a new token record. The record's TokenHash must be unique.
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the record for the hash even if revoked or expired
	// If no record exists must return apperrors.ErrRefreshRevokedOrUnknown
	GetByHash(ctx context.Context, tokenHash string) (models.RefreshToken, error)

	// Mark the record revoked. The check-and-mark must be atomic: when called
	// concurrently for the same hash exactly one caller succeeds, the rest get
	// apperrors.ErrRefreshRevokedOrUnknown. Same error for unknown hashes.
	Revoke(ctx context.Context, tokenHash string) (models.RefreshToken, error)

	// Revoke every usable token of the user. Idempotent.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error

	// Delete records that expired before the given time. Returns rows removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo

	// Run fn within a transaction when the backend supports one
	InTx(ctx context.Context, fn func(Storage) error) error
}
