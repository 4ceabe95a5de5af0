// Package verify implements the verifier side of the DCP presentation
// flow: structural, trust, temporal, revocation, and schema checks over a
// presentation response, accumulated into a report.
package verify

import "slices"

// Severity grades a validation finding.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Finding codes.
const (
	CodeResponseEmpty         = "RESPONSE_EMPTY"
	CodeVPMalformed           = "VP_MALFORMED"
	CodeProfileMissing        = "PROFILE_MISSING"
	CodeVPNoCredentials       = "VP_NO_CREDENTIALS"
	CodeCredMissingPayload    = "CRED_MISSING_PAYLOAD"
	CodeProfileUnknown        = "PROFILE_UNKNOWN"
	CodeProfileMixed          = "PROFILE_MIXED"
	CodeIssuerMissing         = "VC_ISSUER_MISSING"
	CodeIssuerUntrusted       = "ISSUER_UNTRUSTED"
	CodeNotYetValid           = "VC_NOT_YET_VALID"
	CodeExpired               = "VC_EXPIRED"
	CodeRevocationCheckFailed = "REVOCATION_CHECK_FAILED"
	CodeRevoked               = "VC_REVOKED"
	CodeSchemaNotFound        = "VC_SCHEMA_NOT_FOUND"
	CodeRequirementUnmet      = "REQUIREMENT_UNMET"
)

// Finding is one validation outcome. Warnings never invalidate a report.
type Finding struct {
	Code     string
	Message  string
	Severity Severity
}

// Report collects validation findings and the credential types that passed
// every check.
type Report struct {
	Findings      []Finding
	AcceptedTypes []string
}

// Valid reports whether the presentation response passed validation: true
// iff no ERROR-severity finding exists.
func (r *Report) Valid() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return false
		}
	}
	return true
}

func (r *Report) addError(code, message string) {
	r.Findings = append(r.Findings, Finding{Code: code, Message: message, Severity: SeverityError})
}

func (r *Report) addWarning(code, message string) {
	r.Findings = append(r.Findings, Finding{Code: code, Message: message, Severity: SeverityWarning})
}

func (r *Report) accept(credentialType string) {
	if credentialType == "" {
		return
	}
	if !slices.Contains(r.AcceptedTypes, credentialType) {
		r.AcceptedTypes = append(r.AcceptedTypes, credentialType)
	}
}
