package tokenmanager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bilitade/hubbo/internal/apperrors"
	"github.com/bilitade/hubbo/internal/metrics"
	"github.com/bilitade/hubbo/internal/models"
	"github.com/bilitade/hubbo/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
	defaultSigningMethod   = "HS256"

	// Signing key shorter than this is rejected at startup
	minSecretKeyLen = 32
)

// Values that ship in examples or .env templates and must never sign
// production tokens.
var placeholderSecrets = map[string]struct{}{
	"secret":        {},
	"changeme":      {},
	"change-me":     {},
	"insecure":      {},
	"please-change": {},
}

// Claims carried by both access and refresh tokens. TokenType keeps the two
// distinguishable: presenting one where the other is expected is a reported
// failure.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"uid"`
	TokenType string    `json:"typ"`
}

// Token manager config with sensible defaults
type Config struct {
	// Secret key to sign tokens
	// Required to be set, at least 32 bytes and not a known placeholder
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Skip secret strength validation. Debug/dev environments only.
	AllowWeakSecret bool
}

type TokenManager struct {
	// Secret key to sign tokens
	key string

	// JWT MAC algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Storage holding refresh token records; rotation runs in its tx
	storage repository.Storage
}

func New(cfg Config, storage repository.Storage) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if !cfg.AllowWeakSecret {
		if len(cfg.SecretKey) < minSecretKeyLen {
			return nil, fmt.Errorf("secret key must be at least %d bytes", minSecretKeyLen)
		}
		if _, ok := placeholderSecrets[cfg.SecretKey]; ok {
			return nil, errors.New("secret key is a placeholder value, generate a real one (see cmd/gensecret)")
		}
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        jwt.GetSigningMethod(cfg.Alg),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		storage:    storage,
	}, nil
}

// HashToken returns the sha256 hex digest under which a refresh token is
// persisted. The plaintext itself is never stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueAccess signs a short lived access token. No side effects.
func (m *TokenManager) IssueAccess(user models.User) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	return m.sign(user.ID, models.TokenTypeAccess, uuid.New(), now, now.Add(m.accessTTL))
}

// GeneratePair issues an access/refresh pair and persists the refresh token
// record (hash only). The refresh plaintext is returned once and is not
// retrievable again.
func (m *TokenManager) GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	return m.generatePair(ctx, m.storage, user.ID)
}

func (m *TokenManager) generatePair(ctx context.Context, storage repository.Storage, userID uuid.UUID) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)

	access, err := m.sign(userID, models.TokenTypeAccess, uuid.New(), now, now.Add(m.accessTTL))
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	recordID := uuid.New()
	refresh, err := m.sign(userID, models.TokenTypeRefresh, recordID, now, now.Add(m.refreshTTL))
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	_, err = storage.Refresh().Save(ctx, models.RefreshToken{
		ID:        recordID,
		UserID:    userID,
		TokenHash: HashToken(refresh.Value),
		CreatedAt: now,
		ExpiresAt: refresh.ExpiresAt,
		RevokedAt: nil,
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) sign(userID uuid.UUID, tokenType string, jti uuid.UUID, now, expiresAt time.Time) (models.IssuedToken, error) {
	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        jti.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID:    userID,
			TokenType: tokenType,
		},
	)

	signed, err := token.SignedString([]byte(m.key))
	if err != nil {
		return models.IssuedToken{}, err
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Parse validates the token and its type.
// Fails with exactly one of apperrors.ErrTokenMalformed,
// ErrTokenSignatureInvalid, ErrTokenExpired or ErrTokenWrongType.
func (m *TokenManager) Parse(tokenString string, expectedType string) (Claims, error) {
	claims := Claims{}

	_, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(t *jwt.Token) (any, error) { return []byte(m.key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	default:
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	}

	if claims.TokenType != expectedType {
		return claims, fmt.Errorf("%w: got %q, want %q", apperrors.ErrTokenWrongType, claims.TokenType, expectedType)
	}

	return claims, nil
}

// Rotate exchanges a valid refresh token for a fresh pair, revoking the old
// record and persisting the new one in a single transaction. Exactly one of
// N concurrent rotations of the same token succeeds; the losers observe
// ErrRefreshRevokedOrUnknown, same as a replayed token.
func (m *TokenManager) Rotate(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	claims, err := m.Parse(refresh, models.TokenTypeRefresh)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrTokenExpired):
		return pair, fmt.Errorf("%w: %w", apperrors.ErrRefreshTokenExpired, err)
	case errors.Is(err, apperrors.ErrTokenWrongType):
		return pair, err
	default:
		// Malformed or badly signed input cannot match any record; report
		// it the same as an unknown token.
		return pair, fmt.Errorf("%w: %w", apperrors.ErrRefreshRevokedOrUnknown, err)
	}

	err = m.storage.InTx(ctx, func(s repository.Storage) error {
		if _, err := s.Refresh().Revoke(ctx, HashToken(refresh)); err != nil {
			return err
		}

		pair, err = m.generatePair(ctx, s, claims.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrRefreshRevokedOrUnknown) {
			metrics.Rotations.WithLabelValues("replayed").Inc()
		} else {
			metrics.Rotations.WithLabelValues("error").Inc()
		}
		return models.TokenPair{}, fmt.Errorf("error while rotating refresh token. Err: %w", err)
	}

	metrics.Rotations.WithLabelValues("rotated").Inc()
	return pair, nil
}

// Revoke marks the presented refresh token unusable (logout).
func (m *TokenManager) Revoke(ctx context.Context, refresh string) error {
	_, err := m.storage.Refresh().Revoke(ctx, HashToken(refresh))
	if err != nil {
		return fmt.Errorf("error while revoking refresh token. Err: %w", err)
	}
	return nil
}

// RevokeAll marks every usable refresh token of the user revoked.
// Used on logout-everywhere and on credential change. Idempotent.
func (m *TokenManager) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	if err := m.storage.Refresh().RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("error while revoking user tokens. Err: %w", err)
	}
	return nil
}
