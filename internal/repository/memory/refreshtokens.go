package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bilitade/hubbo/internal/apperrors"
	"github.com/bilitade/hubbo/internal/models"
)

type RefreshTokenRepo struct {
	mu     sync.Mutex
	byHash map[string]models.RefreshToken
}

func NewRefreshTokenRepo() *RefreshTokenRepo {
	return &RefreshTokenRepo{byHash: make(map[string]models.RefreshToken)}
}

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byHash[token.TokenHash] = token
	return token, nil
}

func (r *RefreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.byHash[tokenHash]
	if !ok {
		return models.RefreshToken{}, apperrors.ErrRefreshRevokedOrUnknown
	}
	return token, nil
}

// Revoke is the check-and-mark under one lock: exactly one concurrent caller
// per hash succeeds.
func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.byHash[tokenHash]
	if !ok || token.RevokedAt != nil {
		return token, apperrors.ErrRefreshRevokedOrUnknown
	}

	now := time.Now()
	token.RevokedAt = &now
	r.byHash[tokenHash] = token
	return token, nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for hash, token := range r.byHash {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
			r.byHash[hash] = token
		}
	}
	return nil
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for hash, token := range r.byHash {
		if token.ExpiresAt.Before(before) {
			delete(r.byHash, hash)
			removed++
		}
	}
	return removed, nil
}
