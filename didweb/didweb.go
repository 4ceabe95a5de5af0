// Package didweb resolves did:web identifiers: the delivery-endpoint
// heuristic used by the issuer workflow, DID document fetching, and public
// key lookup for token verification.
//
// The endpoint heuristic derives host and port from the method-specific id
// without fetching the DID document. It stands in for full DID-document
// service resolution and is isolated behind small functions so callers do
// not depend on its shortcuts.
package didweb

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"strings"
)

const (
	prefix = "did:web:"

	// encodedColon is how a port is escaped inside a did:web id.
	encodedColon = "%3A"
)

// PurposeCapabilityInvocation is the verification relationship required of
// keys that sign self-issued tokens.
const PurposeCapabilityInvocation = "capabilityInvocation"

// KeyResolver resolves the public signing key a DID publishes for a given
// key id and verification purpose.
type KeyResolver interface {
	ResolvePublicKey(ctx context.Context, did, keyID, purpose string) (*ecdsa.PublicKey, error)
}

// CredentialServiceEndpoint derives the holder's credential delivery
// endpoint from a did:web identifier: https://<host[:port]>/dcp/credentials.
func CredentialServiceEndpoint(did string) (string, error) {
	hostport, err := hostPort(did)
	if err != nil {
		return "", err
	}
	return "https://" + hostport + "/dcp/credentials", nil
}

func hostPort(did string) (string, error) {
	rest, ok := strings.CutPrefix(did, prefix)
	if !ok || rest == "" {
		return "", fmt.Errorf("cannot resolve endpoint for %q: not a did:web identifier", did)
	}

	if i := strings.Index(rest, encodedColon); i >= 0 {
		// Encoded port: keep host plus port, drop any path segments that
		// follow the first plain colon after the port.
		host := rest[:i]
		port := rest[i+len(encodedColon):]
		if j := strings.Index(port, ":"); j >= 0 {
			port = port[:j]
		}
		return host + ":" + port, nil
	}

	parts := strings.Split(rest, ":")
	switch {
	case len(parts) == 1:
		return parts[0], nil
	case len(parts) == 2:
		if _, err := strconv.Atoi(parts[1]); err == nil {
			return parts[0] + ":" + parts[1], nil
		}
		// Second segment is a path, not a port.
		return parts[0], nil
	default:
		return parts[0] + ":" + parts[1], nil
	}
}

// DocumentURL maps a did:web identifier to the URL of its DID document.
// Internal colons become path separators; an id without a path resolves to
// the well-known document location.
func DocumentURL(did string) (string, error) {
	rest, ok := strings.CutPrefix(did, prefix)
	if !ok || rest == "" {
		return "", fmt.Errorf("cannot resolve document for %q: not a did:web identifier", did)
	}

	// Plain colons separate path segments; an escaped colon inside the
	// first segment carries the port.
	parts := strings.Split(rest, ":")
	authority := strings.ReplaceAll(parts[0], encodedColon, ":")

	if len(parts) == 1 {
		return "https://" + authority + "/.well-known/did.json", nil
	}
	return "https://" + authority + "/" + strings.Join(parts[1:], "/") + "/did.json", nil
}
