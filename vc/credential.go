// Package vc holds the Verifiable Credential data model used by the DCP
// trust engine: the stored credential record, its format-discriminated
// payload, and profile resolution.
package vc

import (
	"context"
	"time"

	"github.com/pilacorp/go-dcp-trust/common/jsonmap"
)

// Status is the credentialStatus entry of a credential, pointing into a
// StatusList2021 bitstring.
type Status struct {
	Type                 string
	StatusListCredential string
	StatusListIndex      int
}

// VerifiableCredential is the stored form of a received or generated
// credential. Instances are immutable once persisted.
type VerifiableCredential struct {
	ID             string
	CredentialType string
	HolderDID      string
	IssuerDID      string
	ProfileID      string
	IssuanceDate   time.Time
	ExpirationDate time.Time // zero when the credential does not expire
	Status         *Status   // nil when the credential has no status entry

	// Document is the raw credential document. For JWT credentials it is
	// the decoded vc claim; CompactJWT retains the signed wire form.
	Document   jsonmap.JSONMap
	CompactJWT string
}

// Payload returns the credential's native wire representation: the compact
// JWT string when one is retained, the document otherwise.
func (c *VerifiableCredential) Payload() interface{} {
	if c.CompactJWT != "" {
		return c.CompactJWT
	}
	return map[string]interface{}(c.Document)
}

// Store persists credentials. Implementations live outside this module;
// MemStore serves tests and in-process use.
type Store interface {
	Save(ctx context.Context, cred *VerifiableCredential) error

	// Query returns credentials whose CredentialType is in types. An empty
	// types slice returns every credential.
	Query(ctx context.Context, types []string) ([]*VerifiableCredential, error)
}
