// Package auth issues and verifies session tokens and resolves the identity
// behind a request or stream connection.
package auth

import (
	"errors"
	"fmt"
	"time"

	"tradestream/internal/common"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification failures. They stay distinct inside this package and
// collapse to ErrUnauthenticated at the Service boundary.
var (
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrExpiredToken     = errors.New("auth: token expired")
	ErrInvalidClaims    = errors.New("auth: invalid token claims")
)

var hmacMethods = map[string]*jwt.SigningMethodHMAC{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// TokenService signs and verifies JWTs with one shared secret and one HMAC
// algorithm.
type TokenService struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	clock  common.Clock
}

// NewTokenService validates the signing parameters. A nil clock means the
// system clock.
func NewTokenService(secret, algorithm string, ttl time.Duration, clock common.Clock) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret is empty")
	}
	method, ok := hmacMethods[algorithm]
	if !ok {
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", algorithm)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: token ttl must be positive, got %s", ttl)
	}
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &TokenService{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		clock:  clock,
	}, nil
}

// ExpiryFor returns the expiry stamped on a token issued at now: now plus
// the TTL, truncated to the minute, plus one minute.
func (s *TokenService) ExpiryFor(now time.Time) time.Time {
	return now.UTC().Add(s.ttl).Truncate(time.Minute).Add(time.Minute)
}

// Issue signs a copy of claims with an exp claim added. The caller's map is
// not modified.
func (s *TokenService) Issue(claims map[string]any) (string, error) {
	mc := make(jwt.MapClaims, len(claims)+1)
	for k, v := range claims {
		mc[k] = v
	}
	mc["exp"] = jwt.NewNumericDate(s.ExpiryFor(s.clock.Now()))

	signed, err := jwt.NewWithClaims(s.method, mc).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
func (s *TokenService) Verify(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classify(err)
	}

	// sub is optional here but must be a string when present.
	if _, err := claims.GetSubject(); err != nil {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	// jwt joins ErrTokenExpired with ErrTokenInvalidClaims, so test it first.
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenInvalidClaims),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrInvalidClaims
	default:
		return ErrInvalidSignature
	}
}

// FailureKind names a verification error for logs and metrics.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrInvalidClaims):
		return "invalid_claims"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	default:
		return "other"
	}
}
