package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const cookieKeyInfo = "customsportal session cookie v1"

// ErrInvalidCookie is returned for tampered, expired or malformed cookies.
var ErrInvalidCookie = errors.New("session: invalid cookie")

// CookieCodec signs session ids into the portal cookie value.
type CookieCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewCookieCodec derives the signing key from secret.
func NewCookieCodec(secret string, ttl time.Duration) (*CookieCodec, error) {
	if secret == "" {
		return nil, errors.New("session: secret required")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(cookieKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("session: derive key: %w", err)
	}
	return &CookieCodec{key: key, ttl: ttl, now: time.Now}, nil
}

// Encode returns a signed token carrying the session id.
func (c *CookieCodec) Encode(id string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

// Decode verifies the token and returns the session id.
func (c *CookieCodec) Decode(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenInvalidClaims
		}
		return c.key, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid || claims.ID == "" {
		return "", ErrInvalidCookie
	}
	return claims.ID, nil
}
