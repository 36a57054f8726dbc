package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessCookieName is the session cookie carrying the access token.
	AccessCookieName = "token"
	// RefreshCookieName is the session cookie carrying the refresh token.
	RefreshCookieName = "refreshToken"

	// SchemeBearer and SchemeRefresh are the Authorization header schemes
	// accepted as cookie alternatives.
	SchemeBearer  = "Bearer"
	SchemeRefresh = "Refresh"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the authenticated caller context threaded through call chains.
type Identity struct {
	UserID   string
	Email    string
	Role     string
	Verified bool
}

// Claims is the JWT claim set for both access and refresh tokens.
// Subject carries the user id.
type Claims struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens against a single secret.
// An expiry of zero means tokens carry no expiration claim (refresh tokens).
type TokenManager struct {
	secret []byte
	expiry time.Duration
	issuer string
}

func NewTokenManager(secret string, expiry time.Duration, issuer string) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
	}
}

// Expiry returns the configured token lifetime (zero for refresh managers).
func (m *TokenManager) Expiry() time.Duration {
	return m.expiry
}

func (m *TokenManager) Sign(identity Identity) (string, error) {
	if identity.UserID == "" || identity.Email == "" {
		return "", ErrInvalidToken
	}

	now := time.Now()
	claims := &Claims{
		Email:    identity.Email,
		Role:     identity.Role,
		Verified: identity.Verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  identity.UserID,
			Issuer:   m.issuer,
			IssuedAt: jwt.NewNumericDate(now),
			// jti keeps concurrently issued tokens distinct; the refresh
			// token set stores one entry per device.
			ID: uuid.NewString(),
		},
	}
	if m.expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.expiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks the token signature and claims. Any failure (missing,
// malformed, expired, bad signature) yields an error; callers translate
// that into "no identity" rather than a hard rejection.
func (m *TokenManager) Verify(tokenString string) (*Identity, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return &Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Role:     claims.Role,
		Verified: claims.Verified,
	}, nil
}

// TokenFromHeader extracts a token from an Authorization header value with
// the given scheme ("Bearer" for access, "Refresh" for refresh).
func TokenFromHeader(authHeader, scheme string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], scheme) {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(parts[1]), nil
}
