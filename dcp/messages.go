// Package dcp defines the wire messages of the Decentralized Claims
// Protocol exchanged between issuer, holder, and verifier.
package dcp

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator"
)

// Credential delivery status values.
const (
	CredentialStatusIssued   = "ISSUED"
	CredentialStatusRejected = "REJECTED"
)

// Presentation definition format identifiers.
const (
	FormatJWTVP = "jwt_vp"
	FormatLDPVP = "ldp_vp"
)

// CredentialContainer carries one credential on the wire. Payload is either
// a compact JWT string or a JSON-LD object, discriminated by Format.
type CredentialContainer struct {
	CredentialType string      `json:"credentialType" validate:"required"`
	Format         string      `json:"format" validate:"required"`
	Payload        interface{} `json:"payload" validate:"required"`
}

// CredentialMessage delivers issued or rejected credentials to a holder.
type CredentialMessage struct {
	IssuerPID       string                `json:"issuerPid" validate:"required"`
	HolderPID       string                `json:"holderPid" validate:"required"`
	RequestID       string                `json:"requestId" validate:"required"`
	Status          string                `json:"status" validate:"required,oneof=ISSUED REJECTED"`
	RejectionReason string                `json:"rejectionReason,omitempty"`
	Credentials     []CredentialContainer `json:"credentials,omitempty"`
}

// CredentialReference identifies one requested credential by id.
type CredentialReference struct {
	ID string `json:"id" validate:"required"`
}

// CredentialRequestMessage asks an issuer for a set of credentials.
type CredentialRequestMessage struct {
	RequestID   string                `json:"requestId" validate:"required"`
	HolderPID   string                `json:"holderPid" validate:"required"`
	Credentials []CredentialReference `json:"credentials" validate:"required,min=1,dive"`
}

// OfferedCredential describes one credential in an offer. Sparse entries
// carry only an id and are resolved against the issuer's metadata.
type OfferedCredential struct {
	ID             string `json:"id,omitempty"`
	CredentialType string `json:"credentialType,omitempty"`
}

// CredentialOfferMessage announces credentials an issuer is willing to issue.
type CredentialOfferMessage struct {
	Issuer             string              `json:"issuer" validate:"required"`
	OfferedCredentials []OfferedCredential `json:"offeredCredentials" validate:"required,min=1"`
}

// PresentationDefinition hints at the desired presentation format.
type PresentationDefinition struct {
	Format map[string]interface{} `json:"format,omitempty"`
}

// PresentationQueryMessage requests presentations scoped to credential types.
type PresentationQueryMessage struct {
	Scope                  []string                `json:"scope,omitempty"`
	PresentationDefinition *PresentationDefinition `json:"presentationDefinition,omitempty"`
}

// PresentationResponseMessage returns signed presentations. Each entry is a
// compact JWT string or a JSON-LD object.
type PresentationResponseMessage struct {
	Presentation []interface{} `json:"presentation"`
}

// SupportedCredential describes one credential type an issuer supports.
type SupportedCredential struct {
	ID               string      `json:"id" validate:"required"`
	Type             string      `json:"type,omitempty"`
	CredentialType   string      `json:"credentialType" validate:"required"`
	CredentialSchema string      `json:"credentialSchema,omitempty"`
	BindingMethods   []string    `json:"bindingMethods,omitempty"`
	Profile          string      `json:"profile,omitempty"`
	IssuancePolicy   interface{} `json:"issuancePolicy,omitempty"`
}

// IssuerMetadata describes an issuer and the credentials it supports.
type IssuerMetadata struct {
	Issuer               string                `json:"issuer" validate:"required"`
	CredentialsSupported []SupportedCredential `json:"credentialsSupported,omitempty"`
}

var validate = validator.New()

// Validate checks a message against its struct tags.
func Validate(msg interface{}) error {
	if err := validate.Struct(msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return nil
}

// Decode unmarshals raw JSON into msg and validates it.
func Decode(raw []byte, msg interface{}) error {
	if err := json.Unmarshal(raw, msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return Validate(msg)
}
