package verify

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-dcp-trust/dcp"
	"github.com/pilacorp/go-dcp-trust/vc"
)

// fakeRevocation returns canned answers keyed by credential id.
type fakeRevocation struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocation) IsRevoked(_ context.Context, cred *vc.VerifiableCredential) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[cred.ID], nil
}

func fixedClock() time.Time {
	return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
}

func credentialDoc(id, credType string) map[string]interface{} {
	return map[string]interface{}{
		"@context":       []interface{}{"https://www.w3.org/2018/credentials/v1"},
		"id":             id,
		"type":           []interface{}{"VerifiableCredential", credType},
		"issuer":         "did:web:issuer.example",
		"issuanceDate":   "2026-01-01T00:00:00Z",
		"expirationDate": "2027-01-01T00:00:00Z",
		"credentialSubject": map[string]interface{}{
			"id": "did:web:holder.example",
		},
		"proof": map[string]interface{}{
			"type":         "DataIntegrityProof",
			"cryptosuite":  "ecdsa-rdfc-2019",
			"proofPurpose": "assertionMethod",
		},
	}
}

func presentationDoc(profileID string, creds ...map[string]interface{}) map[string]interface{} {
	embedded := make([]interface{}, 0, len(creds))
	ids := make([]interface{}, 0, len(creds))
	for _, cred := range creds {
		embedded = append(embedded, cred)
		ids = append(ids, cred["id"])
	}
	return map[string]interface{}{
		"id":                   "urn:uuid:pres-1",
		"holder":               "did:web:holder.example",
		"profileId":            profileID,
		"credentialIds":        ids,
		"verifiableCredential": embedded,
	}
}

func response(entries ...interface{}) *dcp.PresentationResponseMessage {
	return &dcp.PresentationResponseMessage{Presentation: entries}
}

func newTestValidator(t *testing.T, revocation RevocationChecker) (*Validator, *MemTrustStore) {
	t.Helper()
	trust := NewMemTrustStore()
	require.NoError(t, trust.Add(context.Background(), "MembershipCredential", "did:web:issuer.example"))
	if revocation == nil {
		revocation = &fakeRevocation{}
	}
	return NewValidator(trust, NewMemSchemaRegistry(), revocation, WithClock(fixedClock)), trust
}

func findingCodes(report *Report) []string {
	codes := make([]string, 0, len(report.Findings))
	for _, f := range report.Findings {
		codes = append(codes, f.Code)
	}
	return codes
}

func TestValidateEmptyResponse(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	for _, resp := range []*dcp.PresentationResponseMessage{nil, response()} {
		report := validator.Validate(context.Background(), resp, nil)
		assert.False(t, report.Valid())
		assert.Contains(t, findingCodes(report), CodeResponseEmpty)
	}
}

func TestValidateAcceptsTrustedCredential(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	resp := response(presentationDoc(vc.ProfileVC11LD, credentialDoc("urn:uuid:1", "MembershipCredential")))
	report := validator.Validate(context.Background(), resp, []string{"MembershipCredential"})

	assert.True(t, report.Valid(), "findings: %v", report.Findings)
	assert.Equal(t, []string{"MembershipCredential"}, report.AcceptedTypes)
}

func TestValidateUntrustedIssuer(t *testing.T) {
	validator, trust := newTestValidator(t, nil)
	require.NoError(t, trust.Remove(context.Background(), "MembershipCredential", "did:web:issuer.example"))

	resp := response(presentationDoc(vc.ProfileVC11LD, credentialDoc("urn:uuid:1", "MembershipCredential")))
	report := validator.Validate(context.Background(), resp, nil)

	assert.False(t, report.Valid())
	assert.Contains(t, findingCodes(report), CodeIssuerUntrusted)
	assert.Empty(t, report.AcceptedTypes)
}

func TestValidateMissingIssuer(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	cred := credentialDoc("urn:uuid:1", "MembershipCredential")
	delete(cred, "issuer")
	report := validator.Validate(context.Background(), response(presentationDoc(vc.ProfileVC11LD, cred)), nil)

	assert.False(t, report.Valid())
	assert.Contains(t, findingCodes(report), CodeIssuerMissing)
}

func TestValidateTemporalBounds(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	future := credentialDoc("urn:uuid:future", "MembershipCredential")
	future["issuanceDate"] = "2026-12-01T00:00:00Z"

	expired := credentialDoc("urn:uuid:expired", "MembershipCredential")
	expired["expirationDate"] = "2026-02-01T00:00:00Z"

	report := validator.Validate(context.Background(), response(presentationDoc(vc.ProfileVC11LD, future, expired)), nil)

	assert.False(t, report.Valid())
	codes := findingCodes(report)
	assert.Contains(t, codes, CodeNotYetValid)
	assert.Contains(t, codes, CodeExpired)
}

func TestValidateRevokedCredential(t *testing.T) {
	validator, _ := newTestValidator(t, &fakeRevocation{revoked: map[string]bool{"urn:uuid:1": true}})

	report := validator.Validate(context.Background(), response(presentationDoc(vc.ProfileVC11LD, credentialDoc("urn:uuid:1", "MembershipCredential"))), nil)

	assert.False(t, report.Valid())
	assert.Contains(t, findingCodes(report), CodeRevoked)
}

func TestValidateRevocationCheckFailureIsWarning(t *testing.T) {
	validator, _ := newTestValidator(t, &fakeRevocation{err: fmt.Errorf("status list unreachable")})

	report := validator.Validate(context.Background(), response(presentationDoc(vc.ProfileVC11LD, credentialDoc("urn:uuid:1", "MembershipCredential"))), nil)

	assert.True(t, report.Valid(), "a warning must not invalidate the report")
	assert.Contains(t, findingCodes(report), CodeRevocationCheckFailed)
	assert.Equal(t, []string{"MembershipCredential"}, report.AcceptedTypes)
}

func TestValidateProfileMixedAbortsWholePresentation(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	matching := credentialDoc("urn:uuid:1", "MembershipCredential")
	mismatched := credentialDoc("urn:uuid:2", "MembershipCredential")
	mismatched["credentialStatus"] = map[string]interface{}{
		"type":                 "StatusList2021Entry",
		"statusListCredential": "https://issuer.example/status/1",
		"statusListIndex":      "3",
	}
	delete(mismatched, "proof") // no embedded proof, resolves as the jwt profile

	report := validator.Validate(context.Background(), response(presentationDoc(vc.ProfileVC11LD, matching, mismatched)), nil)

	assert.False(t, report.Valid())
	assert.Contains(t, findingCodes(report), CodeProfileMixed)
	assert.Empty(t, report.AcceptedTypes, "mixed profile rejects every credential in the presentation")
}

func TestValidateProfileMissing(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	doc := presentationDoc("", credentialDoc("urn:uuid:1", "MembershipCredential"))
	report := validator.Validate(context.Background(), response(doc), nil)

	assert.False(t, report.Valid())
	assert.Contains(t, findingCodes(report), CodeProfileMissing)
}

func TestValidateNoCredentialIDs(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	doc := map[string]interface{}{
		"id":        "urn:uuid:pres-1",
		"holder":    "did:web:holder.example",
		"profileId": vc.ProfileVC11LD,
	}
	report := validator.Validate(context.Background(), response(doc), nil)

	assert.False(t, report.Valid())
	assert.Contains(t, findingCodes(report), CodeVPNoCredentials)
}

func TestValidateMissingPayloadIsWarning(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	doc := map[string]interface{}{
		"id":            "urn:uuid:pres-1",
		"holder":        "did:web:holder.example",
		"profileId":     vc.ProfileVC11LD,
		"credentialIds": []interface{}{"urn:uuid:1"},
	}
	report := validator.Validate(context.Background(), response(doc), nil)

	assert.True(t, report.Valid())
	assert.Contains(t, findingCodes(report), CodeCredMissingPayload)
}

func TestValidateMalformedEntry(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	report := validator.Validate(context.Background(), response(42), nil)

	assert.False(t, report.Valid())
	assert.Contains(t, findingCodes(report), CodeVPMalformed)
}

func TestValidateUnknownSchema(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	cred := credentialDoc("urn:uuid:1", "MembershipCredential")
	cred["credentialSchema"] = map[string]interface{}{
		"id":   "https://issuer.example/schemas/membership.json",
		"type": "JsonSchema",
	}
	report := validator.Validate(context.Background(), response(presentationDoc(vc.ProfileVC11LD, cred)), nil)

	assert.False(t, report.Valid())
	assert.Contains(t, findingCodes(report), CodeSchemaNotFound)
}

func TestValidateRegisteredSchemaPasses(t *testing.T) {
	trust := NewMemTrustStore()
	require.NoError(t, trust.Add(context.Background(), "MembershipCredential", "did:web:issuer.example"))

	schemas := NewMemSchemaRegistry()
	require.NoError(t, schemas.Put("https://issuer.example/schemas/membership.json", []byte(`{"type":"object"}`)))

	validator := NewValidator(trust, schemas, &fakeRevocation{}, WithClock(fixedClock))

	cred := credentialDoc("urn:uuid:1", "MembershipCredential")
	cred["credentialSchema"] = map[string]interface{}{
		"id": "https://issuer.example/schemas/membership.json",
	}
	report := validator.Validate(context.Background(), response(presentationDoc(vc.ProfileVC11LD, cred)), nil)

	assert.True(t, report.Valid(), "findings: %v", report.Findings)
}

func TestValidateRequirementUnmet(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	resp := response(presentationDoc(vc.ProfileVC11LD, credentialDoc("urn:uuid:1", "MembershipCredential")))
	report := validator.Validate(context.Background(), resp, []string{"MembershipCredential", "DataProcessorCredential"})

	assert.False(t, report.Valid())
	assert.Contains(t, findingCodes(report), CodeRequirementUnmet)
	assert.Equal(t, []string{"MembershipCredential"}, report.AcceptedTypes)
}

func signedCredentialJWT(t *testing.T, doc map[string]interface{}) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	signed := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": "did:web:issuer.example",
		"vc":  doc,
	})
	compact, err := signed.SignedString(key)
	require.NoError(t, err)
	return compact
}

func TestValidateAcceptsBitstringStatusProfile(t *testing.T) {
	validator, _ := newTestValidator(t, nil)

	cred := credentialDoc("urn:uuid:1", "MembershipCredential")
	delete(cred, "proof")
	cred["credentialStatus"] = map[string]interface{}{
		"type":                 vc.StatusTypeBitstring,
		"statusListCredential": "https://issuer.example/status/2",
		"statusListIndex":      "7",
	}

	entry := map[string]interface{}{
		"id":                   "urn:uuid:pres-1",
		"holder":               "did:web:holder.example",
		"profileId":            vc.ProfileVC20JWT,
		"credentialIds":        []interface{}{"urn:uuid:1"},
		"verifiableCredential": []interface{}{signedCredentialJWT(t, cred)},
	}

	report := validator.Validate(context.Background(), response(entry), []string{"MembershipCredential"})

	assert.True(t, report.Valid(), "findings: %v", report.Findings)
	assert.Equal(t, []string{"MembershipCredential"}, report.AcceptedTypes)
}
