package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bilitade/hubbo/internal/apperrors"
	"github.com/bilitade/hubbo/internal/models"
	"github.com/bilitade/hubbo/internal/repository"
	"github.com/bilitade/hubbo/internal/service/auth/tokenmanager"
)

type Config struct {
	// Hasher used during registration and login
	// Defaults to the bcrypt hasher
	Hasher PasswordHasher
}

// Auth service: credential verification and session lifecycle
type AuthService struct {
	token    *tokenmanager.TokenManager
	hasher   PasswordHasher
	userRepo repository.UserRepo
}

func NewService(cfg Config, token *tokenmanager.TokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	if token == nil || userRepo == nil {
		return nil, errors.New("token manager and user repo must not be nil")
	}

	return &AuthService{
		token:    token,
		hasher:   hasher,
		userRepo: userRepo,
	}, nil
}

// Register creates the user and logs it in.
// Weak passwords are rejected before anything is persisted.
func (s *AuthService) Register(ctx context.Context, username string, password string) (models.TokenPair, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, username, hash)
	if err != nil {
		return models.TokenPair{}, err
	}

	return s.token.GeneratePair(ctx, user)
}

// Login verifies credentials first, account flags second: an inactive
// account with the right password still learns nothing about other accounts.
func (s *AuthService) Login(ctx context.Context, username string, password string) (models.TokenPair, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return models.TokenPair{}, apperrors.ErrInvalidCredentials
		}
		return models.TokenPair{}, fmt.Errorf("error while looking up user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	if !user.Active {
		return models.TokenPair{}, apperrors.ErrAccountInactive
	}
	if !user.Approved {
		return models.TokenPair{}, apperrors.ErrAccountUnapproved
	}

	return s.token.GeneratePair(ctx, user)
}

// Refresh rotates the presented refresh token for a fresh pair.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	return s.token.Rotate(ctx, refresh)
}

// Logout revokes the presented refresh token. Idempotent: revoking an
// already revoked or unknown token is not an error.
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	err := s.token.Revoke(ctx, refresh)
	if err != nil && !errors.Is(err, apperrors.ErrRefreshRevokedOrUnknown) {
		return err
	}
	return nil
}

// LogoutAll revokes every refresh token of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.token.RevokeAll(ctx, userID)
}

// ChangePassword verifies the current password, stores the new hash and
// revokes all refresh tokens so stolen sessions die with the old secret.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("error while looking up user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, current); err != nil {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("can't use this as password. Err: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("error while updating password. Err: %w", err)
	}

	return s.token.RevokeAll(ctx, userID)
}
