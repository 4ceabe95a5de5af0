package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pilacorp/go-dcp-trust/dcp"
	"github.com/pilacorp/go-dcp-trust/vc"
)

// RevocationChecker answers whether a credential is revoked. status.Checker
// satisfies this.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, cred *vc.VerifiableCredential) (bool, error)
}

// Validator runs the verifier-side checks over a presentation response.
// Findings are accumulated, never thrown: one bad credential does not
// prevent reporting on the rest.
type Validator struct {
	trust      TrustStore
	schemas    SchemaRegistry
	revocation RevocationChecker
	now        func() time.Time
	log        *slog.Logger
}

// ValidatorOpt configures a Validator.
type ValidatorOpt func(*Validator)

// WithClock overrides the validator's time source.
func WithClock(now func() time.Time) ValidatorOpt {
	return func(v *Validator) {
		v.now = now
	}
}

// WithLogger overrides the validator's logger.
func WithLogger(log *slog.Logger) ValidatorOpt {
	return func(v *Validator) {
		v.log = log
	}
}

// NewValidator creates a presentation validator.
func NewValidator(trust TrustStore, schemas SchemaRegistry, revocation RevocationChecker, opts ...ValidatorOpt) *Validator {
	v := &Validator{
		trust:      trust,
		schemas:    schemas,
		revocation: revocation,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks every presentation in the response and reports whether
// each required credential type was satisfied by a fully valid credential.
func (v *Validator) Validate(ctx context.Context, response *dcp.PresentationResponseMessage, requiredTypes []string) *Report {
	report := &Report{}

	if response == nil || len(response.Presentation) == 0 {
		report.addError(CodeResponseEmpty, "presentation response contains no presentations")
		return report
	}

	for i, entry := range response.Presentation {
		v.validateEntry(ctx, report, i, entry)
	}

	for _, required := range requiredTypes {
		satisfied := false
		for _, accepted := range report.AcceptedTypes {
			if accepted == required {
				satisfied = true
				break
			}
		}
		if !satisfied {
			report.addError(CodeRequirementUnmet, fmt.Sprintf("no valid credential of required type %q was presented", required))
		}
	}

	return report
}

func (v *Validator) validateEntry(ctx context.Context, report *Report, index int, entry interface{}) {
	claims, err := ParsePresentationEntry(entry)
	if err != nil {
		report.addError(CodeVPMalformed, fmt.Sprintf("presentation %d: %v", index, err))
		return
	}

	if claims.ProfileID == "" {
		report.addError(CodeProfileMissing, fmt.Sprintf("presentation %d declares no profile", index))
		return
	}

	if len(claims.CredentialIDs) == 0 {
		report.addError(CodeVPNoCredentials, fmt.Sprintf("presentation %d references no credentials", index))
		return
	}

	if len(claims.Credentials) == 0 {
		report.addWarning(CodeCredMissingPayload, fmt.Sprintf("presentation %d embeds no credential payloads", index))
		return
	}

	// Profile homogeneity is all-or-nothing: any credential resolving to a
	// different profile fails the whole presentation.
	for _, cred := range claims.Credentials {
		statusType := ""
		if status := cred.Document.Map("credentialStatus"); status != nil {
			statusType = status.String("type")
		}

		resolved, ok := vc.ResolveProfile(cred.Format, statusType)
		if !ok {
			report.addError(CodeProfileUnknown, fmt.Sprintf("presentation %d: no profile matches format %q", index, cred.Format))
			return
		}
		if resolved != claims.ProfileID {
			report.addError(CodeProfileMixed, fmt.Sprintf("presentation %d declares profile %q but contains a %q credential", index, claims.ProfileID, resolved))
			return
		}
	}

	for _, cred := range claims.Credentials {
		v.validateCredential(ctx, report, cred)
	}
}

func (v *Validator) validateCredential(ctx context.Context, report *Report, cred EmbeddedCredential) {
	doc := cred.Document
	credentialType := vc.TypeOf(doc)
	valid := true

	issuer, err := vc.IssuerOf(doc)
	if err != nil {
		report.addError(CodeIssuerMissing, fmt.Sprintf("credential %q has no issuer", doc.String("id")))
		valid = false
	} else if !v.trust.Trusted(ctx, credentialType, issuer) {
		report.addError(CodeIssuerUntrusted, fmt.Sprintf("issuer %q is not trusted for type %q", issuer, credentialType))
		valid = false
	}

	now := v.now()

	record, err := vc.FromDocument(doc)
	if err != nil {
		report.addError(CodeVPMalformed, fmt.Sprintf("credential %q could not be read: %v", doc.String("id"), err))
		return
	}
	record.CompactJWT = cred.CompactJWT

	if !record.IssuanceDate.IsZero() && record.IssuanceDate.After(now) {
		report.addError(CodeNotYetValid, fmt.Sprintf("credential %q is not valid before %s", record.ID, record.IssuanceDate.Format(time.RFC3339)))
		valid = false
	}
	if !record.ExpirationDate.IsZero() && record.ExpirationDate.Before(now) {
		report.addError(CodeExpired, fmt.Sprintf("credential %q expired at %s", record.ID, record.ExpirationDate.Format(time.RFC3339)))
		valid = false
	}

	revoked, err := v.revocation.IsRevoked(ctx, record)
	if err != nil {
		v.log.Warn("revocation check failed", "credential", record.ID, "error", err)
		report.addWarning(CodeRevocationCheckFailed, fmt.Sprintf("revocation status of %q could not be determined: %v", record.ID, err))
	} else if revoked {
		report.addError(CodeRevoked, fmt.Sprintf("credential %q is revoked", record.ID))
		valid = false
	}

	if schema := doc.Map("credentialSchema"); schema != nil {
		if id := schema.String("id"); id != "" && !v.schemas.Exists(id) {
			report.addError(CodeSchemaNotFound, fmt.Sprintf("credential %q references unknown schema %q", record.ID, id))
			valid = false
		}
	}

	if valid {
		report.accept(credentialType)
	}
}
