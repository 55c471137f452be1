package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is used when Config.TTL is not set.
const DefaultTTL = 24 * time.Hour

// Claims are the access token claims.
type Claims struct {
	TenantID string `json:"tenantId,omitempty"`
	Role     string `json:"role"`
	gojwt.RegisteredClaims
}

// UserID returns the subject.
func (c *Claims) UserID() string { return c.Subject }

// Service signs, verifies and revokes access tokens.
type Service struct {
	key      []byte
	ttl      time.Duration
	issuer   string
	denylist Denylist
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithDenylist sets the revocation store. Without one an in-memory list is used.
func WithDenylist(d Denylist) Option {
	return func(s *Service) {
		if d != nil {
			s.denylist = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a token service.
func New(cfg Config, opts ...Option) (*Service, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSigningKey
	}
	s := &Service{
		key:    []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.denylist == nil {
		s.denylist = NewMemoryDenylist(0)
	}
	return s, nil
}

// Issue signs a token for userID. tenantID is empty for super-admins.
func (s *Service) Issue(userID, tenantID, role string) (string, *Claims, error) {
	if userID == "" {
		return "", nil, ErrMissingSubject
	}
	now := s.now()
	claims := &Claims{
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", nil, fmt.Errorf("jwt: sign token: %w", err)
	}
	return token, claims, nil
}

// Parse verifies token and returns its claims. Revoked tokens fail with
// ErrRevokedToken and expired ones with ErrExpiredToken.
func (s *Service) Parse(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(s.now),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuedAt(),
	}
	if s.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return s.key, nil
	}, opts...)
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, errors.Join(ErrExpiredToken, err)
	case err != nil:
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("jwt: check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke denies the token identified by claims until it expires.
func (s *Service) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}
	until := s.now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if !until.After(s.now()) {
		return nil
	}
	return s.denylist.Revoke(ctx, claims.ID, until.Sub(s.now()))
}

// TTL returns the lifetime of issued tokens.
func (s *Service) TTL() time.Duration { return s.ttl }
