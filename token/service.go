// Package token mints and validates the self-issued tokens actors use to
// authenticate to each other, including replay protection and the
// presentation access token variant.
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/pilacorp/go-dcp-trust/didweb"
	"github.com/pilacorp/go-dcp-trust/keys"
)

// Lifetime is the validity window of a self-issued token.
const Lifetime = 5 * time.Minute

// PurposePresentationQuery marks access tokens minted for presentation
// queries.
const PurposePresentationQuery = "presentation_query"

var (
	// ErrTokenInvalid wraps every token validation failure. Callers must
	// re-authenticate, never retry.
	ErrTokenInvalid = errors.New("token validation failed")

	// ErrReplay marks a token whose jti was already consumed.
	ErrReplay = errors.New("token replayed")
)

// Service mints ES256-signed self-issued tokens and validates incoming
// ones. The replay cache is shared process-wide state; the check-and-insert
// on a jti is atomic.
type Service struct {
	ownDID   string
	keys     *keys.Manager
	resolver didweb.KeyResolver
	replay   *gocache.Cache
	now      func() time.Time
}

// ServiceOpt configures a Service.
type ServiceOpt func(*Service)

// WithClock overrides the service's time source.
func WithClock(now func() time.Time) ServiceOpt {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a token service for the connector identified by ownDID.
func NewService(ownDID string, km *keys.Manager, resolver didweb.KeyResolver, opts ...ServiceOpt) *Service {
	s := &Service{
		ownDID:   ownDID,
		keys:     km,
		resolver: resolver,
		replay:   gocache.New(Lifetime, time.Minute),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MintOpt adds optional claims to a minted token.
type MintOpt func(jwt.MapClaims)

// WithAccessToken embeds an opaque access token under the token claim.
func WithAccessToken(accessToken string) MintOpt {
	return func(claims jwt.MapClaims) {
		claims["token"] = accessToken
	}
}

// Mint creates a short-lived self-issued token addressed to audienceDID.
func (s *Service) Mint(ctx context.Context, audienceDID string, opts ...MintOpt) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss": s.ownDID,
		"sub": s.ownDID,
		"aud": audienceDID,
		"iat": now.Unix(),
		"exp": now.Add(Lifetime).Unix(),
		"jti": uuid.NewString(),
	}
	for _, opt := range opts {
		opt(claims)
	}

	return s.sign(ctx, claims)
}

// MintAccessToken creates a presentation access token scoped to the given
// credential types.
func (s *Service) MintAccessToken(ctx context.Context, audienceDID string, scopes []string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss":     s.ownDID,
		"sub":     s.ownDID,
		"aud":     audienceDID,
		"iat":     now.Unix(),
		"exp":     now.Add(Lifetime).Unix(),
		"jti":     uuid.NewString(),
		"purpose": PurposePresentationQuery,
		"scope":   strings.Join(scopes, " "),
	}

	return s.sign(ctx, claims)
}

// Validate verifies a self-issued token: signature against the issuer's
// published capabilityInvocation key, required claims, expiry, and jti
// replay protection.
func (s *Service) Validate(ctx context.Context, raw string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)

	parsed, err := parser.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		claims, ok := t.Claims.(jwt.MapClaims)
		if !ok {
			return nil, fmt.Errorf("claims are not an object")
		}

		issuer, _ := claims.GetIssuer()
		if issuer == "" {
			return nil, fmt.Errorf("token has no issuer")
		}

		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no key id")
		}

		return s.resolver.ResolvePublicKey(ctx, issuer, kid, didweb.PurposeCapabilityInvocation)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims := parsed.Claims.(jwt.MapClaims)

	if _, ok := claims["iat"]; !ok {
		return nil, fmt.Errorf("%w: token has no iat claim", ErrTokenInvalid)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: token has no exp claim", ErrTokenInvalid)
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, fmt.Errorf("%w: token has no jti claim", ErrTokenInvalid)
	}

	ttl := exp.Sub(s.now())
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: token expired", ErrTokenInvalid)
	}

	// Add is an atomic check-and-insert: two validations racing on one jti
	// cannot both succeed.
	if err := s.replay.Add(jti, struct{}{}, ttl); err != nil {
		return nil, fmt.Errorf("%w: jti %q already used: %w", ErrTokenInvalid, jti, ErrReplay)
	}

	return claims, nil
}

func (s *Service) sign(ctx context.Context, claims jwt.MapClaims) (string, error) {
	key, kid, err := s.keys.SigningKey(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load signing key: %w", err)
	}

	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	t.Header["kid"] = kid

	signed, err := t.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Scopes extracts the credential types an access token's scope claim
// authorizes.
func Scopes(claims jwt.MapClaims) []string {
	raw, _ := claims["scope"].(string)
	return strings.Fields(raw)
}

// Opaque generates a random, non-JWT access token for deployments that
// validate tokens against an external token store.
func Opaque() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate opaque token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
