// Package auth issues and verifies bearer tokens for the single admin
// account configured for the API.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown user or a
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned by Verify for malformed, expired or
	// foreign tokens.
	ErrInvalidToken = errors.New("invalid token")
)

const issuer = "user-admin"

type Config struct {
	Secret       string
	Username     string
	PasswordHash string
	TokenTTL     time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Authenticator checks admin credentials and signs HS256 tokens. A zero
// secret disables it: Enabled reports false and callers skip the check.
type Authenticator struct {
	secret   []byte
	username string
	hash     []byte
	ttl      time.Duration
	now      func() time.Time
}

// Token is a signed bearer token and its expiry.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func New(cfg Config) *Authenticator {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Authenticator{
		secret:   []byte(cfg.Secret),
		username: cfg.Username,
		hash:     []byte(cfg.PasswordHash),
		ttl:      cfg.TokenTTL,
		now:      cfg.Now,
	}
}

func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.secret) > 0
}

// Login verifies the credentials and returns a fresh token.
func (a *Authenticator) Login(username, password string) (Token, error) {
	if !a.Enabled() {
		return Token{}, errors.New("authentication is not configured")
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil || !userOK {
		return Token{}, ErrInvalidCredentials
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   a.username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: expires.UTC()}, nil
}

// Verify parses and validates a token, returning its subject.
func (a *Authenticator) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject != a.username {
		return "", fmt.Errorf("%w: unknown subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// HashPassword returns a bcrypt hash suitable for the admin password setting.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
