package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token lifetimes. Access tokens are short-lived JWTs; refresh tokens are
// opaque and live in the refresh_tokens table.
const (
	accessTokenTTL    = 15 * time.Minute
	defaultSessionTTL = 72 * time.Hour
)

// ErrInvalidToken is returned when an access token fails validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	UserID      string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// TokenManager mints and validates token pairs.
type TokenManager interface {
	GenerateTokenPair(userID, email, displayName, role string) (*TokenPair, error)
	ValidateAccessToken(token string) (*Claims, error)
}

// JWTTokenManager signs access tokens with HMAC-SHA256 and issues random
// opaque refresh tokens.
type JWTTokenManager struct {
	secret     []byte
	issuer     string
	sessionTTL time.Duration
}

// NewJWTTokenManager constructs a token manager. sessionTTL bounds the
// refresh token lifetime; zero means the 72h default.
func NewJWTTokenManager(secret string, sessionTTL time.Duration) *JWTTokenManager {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &JWTTokenManager{
		secret:     []byte(secret),
		issuer:     "umhc-finance",
		sessionTTL: sessionTTL,
	}
}

// SessionTTL exposes the refresh token lifetime so the service can store a
// matching expiry on the session row.
func (m *JWTTokenManager) SessionTTL() time.Duration {
	return m.sessionTTL
}

// GenerateTokenPair mints an access JWT plus an opaque refresh token.
func (m *JWTTokenManager) GenerateTokenPair(userID, email, displayName, role string) (*TokenPair, error) {
	now := time.Now()
	accessExpiry := now.Add(accessTokenTTL)
	refreshExpiry := now.Add(m.sessionTTL)

	claims := Claims{
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := generateOpaqueToken()
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  accessExpiry,
		RefreshTokenExpiresAt: refreshExpiry,
	}, nil
}

// ValidateAccessToken parses and verifies an access JWT.
func (m *JWTTokenManager) ValidateAccessToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// generateOpaqueToken returns 32 bytes of hex-encoded randomness.
func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
