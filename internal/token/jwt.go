// Package token signs and verifies issued user auth tokens. The negotiation
// produces a UserAuthToken value; this package binds it to the session that
// issued it inside a signed JWT so other operations can trust the identity
// context without a store lookup.
package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"castellan/internal/proto"
)

// Claims is the JWT claim set wrapping a UserAuthToken. The session
// identifier rides along so the token's validity stays bounded by the
// session it was issued for.
type Claims struct {
	UAT       proto.UserAuthToken `json:"uat"`
	SessionID string              `json:"sid"`
	jwt.RegisteredClaims
}

// Service handles token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a token service signing with the given HMAC key.
func NewService(signingKey string, issuer string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign wraps the user auth token in a signed JWT bound to the negotiation
// session that issued it.
func (s *Service) Sign(_ context.Context, sessionID uuid.UUID, uat proto.UserAuthToken) (string, error) {
	now := s.now()
	claims := Claims{
		UAT:       uat,
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   uat.UUID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and returns the embedded identity. Any
// failure (bad signature, expiry, wrong algorithm) maps to NotAuthenticated;
// callers never need to distinguish why.
func (s *Service) Verify(_ context.Context, raw string) (*proto.UserAuthToken, uuid.UUID, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		return nil, uuid.Nil, proto.NewOperationError(proto.OpNotAuthenticated)
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, uuid.Nil, proto.NewOperationError(proto.OpNotAuthenticated)
	}
	uat := claims.UAT
	return &uat, sessionID, nil
}
