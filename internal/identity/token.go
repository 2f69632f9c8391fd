package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers expired, malformed, and badly signed credentials.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload carried by issued credentials.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Verifier is the credential-check port consumed by the HTTP layer and the
// notification broker. Verify returns the authenticated identity.
type Verifier interface {
	Verify(token string) (identity string, err error)
}

// Tokens issues and verifies HS256 JWT credentials.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

var _ Verifier = (*Tokens)(nil)

// NewTokens returns a Tokens helper signing with secret. ttl <= 0 defaults
// to 24 hours.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Issue signs a credential for username.
func (t *Tokens) Issue(username string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "voice-share-platform",
		},
		Username: username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses and validates a credential, returning the identity it names.
func (t *Tokens) Verify(token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid || claims.Username == "" {
		return "", ErrInvalidToken
	}
	return claims.Username, nil
}
