package token

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-dcp-trust/keys"
)

type staticResolver struct {
	pub *ecdsa.PublicKey
}

func (r staticResolver) ResolvePublicKey(_ context.Context, did, keyID, purpose string) (*ecdsa.PublicKey, error) {
	return r.pub, nil
}

func newTestService(t *testing.T, opts ...ServiceOpt) *Service {
	t.Helper()

	manager := keys.NewManager(keys.NewMemStore())
	_, err := manager.Provision(context.Background())
	require.NoError(t, err)

	key, _, err := manager.SigningKey(context.Background())
	require.NoError(t, err)

	return NewService("did:web:holder.example", manager, staticResolver{pub: &key.PublicKey}, opts...)
}

func TestMintAndValidate(t *testing.T) {
	service := newTestService(t)

	raw, err := service.Mint(context.Background(), "did:web:verifier.example")
	require.NoError(t, err)
	assert.Len(t, strings.Split(raw, "."), 3)

	claims, err := service.Validate(context.Background(), raw)
	require.NoError(t, err)

	issuer, _ := claims.GetIssuer()
	subject, _ := claims.GetSubject()
	assert.Equal(t, "did:web:holder.example", issuer)
	assert.Equal(t, "did:web:holder.example", subject)

	audience, _ := claims.GetAudience()
	assert.Equal(t, jwt.ClaimStrings{"did:web:verifier.example"}, audience)

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	iat, err := claims.GetIssuedAt()
	require.NoError(t, err)
	assert.Equal(t, Lifetime, exp.Sub(iat.Time))
}

func TestMintWithAccessToken(t *testing.T) {
	service := newTestService(t)

	raw, err := service.Mint(context.Background(), "did:web:verifier.example", WithAccessToken("opaque-token"))
	require.NoError(t, err)

	claims, err := service.Validate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", claims["token"])
}

func TestValidateRejectsReplay(t *testing.T) {
	service := newTestService(t)

	raw, err := service.Mint(context.Background(), "did:web:verifier.example")
	require.NoError(t, err)

	_, err = service.Validate(context.Background(), raw)
	require.NoError(t, err)

	_, err = service.Validate(context.Background(), raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReplay)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateRejectsExpired(t *testing.T) {
	now := time.Now()
	current := now.Add(-2 * Lifetime)
	service := newTestService(t, WithClock(func() time.Time { return current }))

	raw, err := service.Mint(context.Background(), "did:web:verifier.example")
	require.NoError(t, err)

	// Advance past the token's expiry before validating.
	current = now

	_, err = service.Validate(context.Background(), raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateHonorsInjectedClock(t *testing.T) {
	past := time.Now().Add(-2 * Lifetime)
	service := newTestService(t, WithClock(func() time.Time { return past }))

	raw, err := service.Mint(context.Background(), "did:web:verifier.example")
	require.NoError(t, err)

	// Both the parser's exp/iat checks and the TTL math run against the
	// injected clock, so a token minted "now" on that clock validates even
	// though wall-clock time is past its expiry.
	claims, err := service.Validate(context.Background(), raw)
	require.NoError(t, err)
	assert.NotEmpty(t, claims["jti"])
}

func TestValidateRequiresKeyID(t *testing.T) {
	manager := keys.NewManager(keys.NewMemStore())
	_, err := manager.Provision(context.Background())
	require.NoError(t, err)
	key, _, err := manager.SigningKey(context.Background())
	require.NoError(t, err)

	service := NewService("did:web:holder.example", manager, staticResolver{pub: &key.PublicKey})

	now := time.Now()
	unkeyed := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": "did:web:other.example",
		"sub": "did:web:other.example",
		"iat": now.Unix(),
		"exp": now.Add(Lifetime).Unix(),
		"jti": "jti-1",
	})
	raw, err := unkeyed.SignedString(key)
	require.NoError(t, err)

	_, err = service.Validate(context.Background(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key id")
}

func TestValidateRequiresExpiry(t *testing.T) {
	manager := keys.NewManager(keys.NewMemStore())
	_, err := manager.Provision(context.Background())
	require.NoError(t, err)
	key, kid, err := manager.SigningKey(context.Background())
	require.NoError(t, err)

	service := NewService("did:web:holder.example", manager, staticResolver{pub: &key.PublicKey})

	eternal := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": "did:web:other.example",
		"sub": "did:web:other.example",
		"iat": time.Now().Unix(),
		"jti": "jti-2",
	})
	eternal.Header["kid"] = kid
	raw, err := eternal.SignedString(key)
	require.NoError(t, err)

	_, err = service.Validate(context.Background(), raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMintAccessToken(t *testing.T) {
	service := newTestService(t)

	raw, err := service.MintAccessToken(context.Background(), "did:web:verifier.example", []string{"MembershipCredential", "IdentityCredential"})
	require.NoError(t, err)

	claims, err := service.Validate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, PurposePresentationQuery, claims["purpose"])
	assert.Equal(t, []string{"MembershipCredential", "IdentityCredential"}, Scopes(claims))
}

func TestOpaque(t *testing.T) {
	first, err := Opaque()
	require.NoError(t, err)
	second, err := Opaque()
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
	assert.NotContains(t, first, ".")
}
