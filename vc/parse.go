package vc

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-dcp-trust/common/jsonmap"
)

// FromJWT parses a compact JWT credential without verifying its signature
// and extracts the stored-record fields from the vc claim. The compact
// string is retained as the credential's wire form.
func FromJWT(compact string) (*VerifiableCredential, error) {
	token, _, err := jwt.NewParser().ParseUnverified(compact, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential JWT: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("credential JWT claims are not an object")
	}

	vcClaim, ok := claims["vc"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("vc claim not found in credential JWT")
	}

	cred, err := FromDocument(jsonmap.JSONMap(vcClaim))
	if err != nil {
		return nil, err
	}

	cred.CompactJWT = compact
	return cred, nil
}

// FromDocument extracts the stored-record fields from a credential document
// (a decoded vc claim or a JSON-LD credential).
func FromDocument(doc jsonmap.JSONMap) (*VerifiableCredential, error) {
	if doc == nil {
		return nil, fmt.Errorf("credential document is nil")
	}

	cred := &VerifiableCredential{
		ID:             doc.String("id"),
		CredentialType: TypeOf(doc),
		IssuanceDate:   issuanceDate(doc),
		ExpirationDate: expirationDate(doc),
		Document:       doc,
	}

	if subject := doc.Map("credentialSubject"); subject != nil {
		cred.HolderDID = subject.String("id")
	}

	if issuer, err := IssuerOf(doc); err == nil {
		cred.IssuerDID = issuer
	}

	if status, err := StatusOf(doc); err == nil {
		cred.Status = status
	}

	return cred, nil
}

// TypeOf returns the concrete credential type of a document: the first type
// entry that is not the generic "VerifiableCredential" marker.
func TypeOf(doc jsonmap.JSONMap) string {
	for _, t := range doc.Strings("type") {
		if t != "VerifiableCredential" {
			return t
		}
	}
	return ""
}

// IssuerOf extracts the issuer of a credential document, which is either a
// plain string or an object carrying an id.
func IssuerOf(doc jsonmap.JSONMap) (string, error) {
	switch issuer := doc["issuer"].(type) {
	case string:
		if issuer != "" {
			return issuer, nil
		}
	case map[string]interface{}:
		if id, ok := issuer["id"].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("credential has no issuer")
}

// StatusOf extracts the credentialStatus entry of a document. It returns an
// error when the document declares no status.
func StatusOf(doc jsonmap.JSONMap) (*Status, error) {
	entry := doc.Map("credentialStatus")
	if entry == nil {
		return nil, fmt.Errorf("credential has no credentialStatus")
	}

	index, err := statusListIndex(entry["statusListIndex"])
	if err != nil {
		return nil, err
	}

	return &Status{
		Type:                 entry.String("type"),
		StatusListCredential: entry.String("statusListCredential"),
		StatusListIndex:      index,
	}, nil
}

func statusListIndex(v interface{}) (int, error) {
	switch idx := v.(type) {
	case string:
		n, err := strconv.Atoi(idx)
		if err != nil {
			return 0, fmt.Errorf("invalid statusListIndex %q: %w", idx, err)
		}
		return n, nil
	case float64:
		return int(idx), nil
	}
	return 0, fmt.Errorf("statusListIndex is missing or not a number")
}

// issuanceDate reads the v1.1 issuanceDate field, falling back to the v2
// validFrom name.
func issuanceDate(doc jsonmap.JSONMap) time.Time {
	if t := doc.Time("issuanceDate"); !t.IsZero() {
		return t
	}
	return doc.Time("validFrom")
}

func expirationDate(doc jsonmap.JSONMap) time.Time {
	if t := doc.Time("expirationDate"); !t.IsZero() {
		return t
	}
	return doc.Time("validUntil")
}
