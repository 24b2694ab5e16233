package admin

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/zaikon/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin       = "admin"
	DefaultTokenTTL = 30 * time.Minute
	issuer          = "zaikon"
)

// Claims is the payload of an administrator capability token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer exchanges the administrator password for short-lived signed
// tokens and checks them.
type Issuer struct {
	signingKey   []byte
	passwordHash []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewIssuer(signingKey, passwordHash string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{
		signingKey:   []byte(signingKey),
		passwordHash: []byte(passwordHash),
		ttl:          ttl,
		now:          time.Now,
	}
}

// Configured reports whether administrator access is enabled at all.
func (i *Issuer) Configured() bool {
	return len(i.signingKey) > 0 && len(i.passwordHash) > 0
}

// HashPassword returns the bcrypt hash to put in the configuration.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Issue returns a signed token when password matches.
func (i *Issuer) Issue(password string) (string, time.Time, error) {
	if !i.Configured() {
		return "", time.Time{}, apperr.Forbidden("administrator access is not configured")
	}
	if err := bcrypt.CompareHashAndPassword(i.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, apperr.ErrUnauthenticated
	}

	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", time.Time{}, fmt.Errorf("generate token id: %w", err)
	}
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        hex.EncodeToString(jti),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses a token and requires the admin role. Any failure is
// Unauthenticated.
func (i *Issuer) Verify(token string) (*Claims, error) {
	if !i.Configured() || token == "" {
		return nil, apperr.ErrUnauthenticated
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Role != RoleAdmin {
		return nil, apperr.ErrUnauthenticated
	}
	return claims, nil
}
