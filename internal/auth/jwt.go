package auth

// SIGNED SESSIONS:
// Without a secret the identity cookie holds the raw user id. With one, it
// holds an HS256 JWT whose subject is the user id:
//
//	{"alg":"HS256","typ":"JWT"} . {"sub":"<id>","iss":"account-portal","iat":..,"exp":..} . HMAC
//
// Checking a cookie costs one HMAC and no store lookup.

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "account-portal"

// minSecretLen is the shortest SESSION_SECRET accepted.
const minSecretLen = 16

// DefaultTokenTTL is used when NewTokenService receives a non-positive ttl.
const DefaultTokenTTL = 24 * time.Hour

// ErrTokenExpired is returned by Decode for a well-signed token past its exp.
var ErrTokenExpired = errors.New("auth: session token expired")

// TokenService is the signing Codec.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

var _ Codec = (*TokenService)(nil)

// NewTokenService returns a TokenService signing with secret. Generate one
// with `openssl rand -hex 32`.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("auth: session secret must be at least %d characters", minSecretLen)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Encode returns a token for userID valid for the service's ttl.
func (s *TokenService) Encode(userID string) (string, error) {
	return s.sign(userID, time.Now(), s.ttl)
}

func (s *TokenService) sign(userID string, now time.Time, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: empty user id")
	}
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing session token: %w", err)
	}
	return signed, nil
}

// Decode verifies value and returns its subject. Only HS256 is accepted,
// so a token claiming "none" or an RSA key is rejected before the HMAC.
func (s *TokenService) Decode(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", fmt.Errorf("auth: invalid session token: %w", err)
	case claims.Subject == "":
		return "", errors.New("auth: session token has no subject")
	}
	return claims.Subject, nil
}
