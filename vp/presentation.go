// Package vp assembles and signs Verifiable Presentations for the holder
// side of the DCP presentation flow.
package vp

import (
	"github.com/pilacorp/go-dcp-trust/vc"
)

// ContextCredentialsV1 is the JSON-LD context every presentation declares.
const ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"

// Presentation is a group of same-profile credentials prepared for signing.
// It is built per presentation request and not persisted.
type Presentation struct {
	ID            string
	HolderDID     string
	ProfileID     string
	CredentialIDs []string

	// Credentials holds each credential's native wire form: a compact JWT
	// string or a JSON-LD document.
	Credentials []interface{}
}

// NewPresentation groups the given credentials into one presentation. The
// holder DID is taken from the first credential.
func NewPresentation(id, profileID string, creds []*vc.VerifiableCredential) *Presentation {
	p := &Presentation{
		ID:        id,
		ProfileID: profileID,
	}

	for _, cred := range creds {
		if p.HolderDID == "" {
			p.HolderDID = cred.HolderDID
		}
		p.CredentialIDs = append(p.CredentialIDs, cred.ID)
		p.Credentials = append(p.Credentials, cred.Payload())
	}

	return p
}
