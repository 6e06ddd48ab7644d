package bridge

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "shieldd"
	tokenAudience = "shield-ui"
	secretSize    = 32
)

// ErrInvalidToken is returned for missing, malformed, or foreign tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the session token claims.
type Claims struct {
	PID int `json:"pid"`
	jwt.RegisteredClaims
}

// Authenticator mints and verifies HS256 session tokens.
// The secret lives only in memory, so tokens die with the daemon.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator with a fixed secret (for testing).
func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

// NewSessionAuthenticator creates an authenticator with a random secret.
func NewSessionAuthenticator() (*Authenticator, error) {
	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	return &Authenticator{secret: secret}, nil
}

// Issue mints a token for the daemon with the given PID. ttl 0 means the
// token is valid for the life of the secret.
func (a *Authenticator) Issue(pid int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		PID: pid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   tokenIssuer,
			Audience: jwt.ClaimStrings{tokenAudience},
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Parse verifies a token and returns its claims.
func (a *Authenticator) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(_ *jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims, ok := token.Claims.(*Claims); ok {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
