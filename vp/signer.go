package vp

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/piprate/json-gold/ld"

	"github.com/pilacorp/go-dcp-trust/common/jsonmap"
	"github.com/pilacorp/go-dcp-trust/keys"
	"github.com/pilacorp/go-dcp-trust/vc"
)

// Signer turns a Presentation into a wire-ready signed artifact: a compact
// ES256 JWT or a JSON-LD document with an embedded proof.
type Signer struct {
	keys   *keys.Manager
	loader ld.DocumentLoader
	now    func() time.Time
}

// SignerOpt configures a Signer.
type SignerOpt func(*Signer)

// WithDocumentLoader overrides the JSON-LD document loader used for proof
// canonicalization.
func WithDocumentLoader(loader ld.DocumentLoader) SignerOpt {
	return func(s *Signer) {
		s.loader = loader
	}
}

// WithSignerClock overrides the signer's time source.
func WithSignerClock(now func() time.Time) SignerOpt {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner creates a presentation signer using the active key of km.
func NewSigner(km *keys.Manager, opts ...SignerOpt) *Signer {
	s := &Signer{
		keys: km,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign produces the signed wire form of a presentation in the requested
// format: a compact JWT string for vc.FormatJWT, a document for
// vc.FormatJSONLD. Any other format is rejected.
func (s *Signer) Sign(ctx context.Context, p *Presentation, format vc.Format) (interface{}, error) {
	key, kid, err := s.keys.SigningKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	switch format {
	case vc.FormatJWT:
		return s.signJWT(p, key, kid)
	case vc.FormatJSONLD:
		return s.signJSONLD(p, key, kid)
	}
	return nil, fmt.Errorf("unsupported presentation format %q", format)
}

func (s *Signer) signJWT(p *Presentation, key *ecdsa.PrivateKey, kid string) (string, error) {
	claims := jwt.MapClaims{
		"vp": map[string]interface{}{
			"@context":             []string{ContextCredentialsV1},
			"type":                 []string{"VerifiablePresentation"},
			"id":                   p.ID,
			"holder":               p.HolderDID,
			"profileId":            p.ProfileID,
			"verifiableCredential": p.Credentials,
		},
		"iss": p.HolderDID,
		"sub": p.HolderDID,
		"jti": p.ID,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	t.Header["kid"] = kid

	signed, err := t.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign presentation JWT: %w", err)
	}
	return signed, nil
}

func (s *Signer) signJSONLD(p *Presentation, key *ecdsa.PrivateKey, kid string) (jsonmap.JSONMap, error) {
	doc := jsonmap.JSONMap{
		"@context":             []interface{}{ContextCredentialsV1},
		"type":                 []interface{}{"VerifiablePresentation"},
		"id":                   p.ID,
		"holder":               p.HolderDID,
		"profileId":            p.ProfileID,
		"credentialIds":        p.CredentialIDs,
		"verifiableCredential": p.Credentials,
	}

	canonical, err := CanonicalizeDocument(doc, s.loader)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize presentation: %w", err)
	}

	signature, err := ecdsa.SignASN1(rand.Reader, key, ComputeDigest(canonical))
	if err != nil {
		return nil, fmt.Errorf("failed to sign presentation: %w", err)
	}

	doc["proof"] = map[string]interface{}{
		"type":               "DataIntegrityProof",
		"cryptosuite":        "ecdsa-rdfc-2019",
		"created":            s.now().UTC().Format(time.RFC3339),
		"proofPurpose":       "assertionMethod",
		"verificationMethod": fmt.Sprintf("%s#%s", p.HolderDID, kid),
		"proofValue":         hex.EncodeToString(signature),
	}

	return doc, nil
}
