package didweb

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// VerificationMethod is one verification method entry of a DID document.
type VerificationMethod struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Controller   string          `json:"controller"`
	PublicKeyJwk json.RawMessage `json:"publicKeyJwk,omitempty"`
}

// ServiceEntry is one service entry of a DID document.
type ServiceEntry struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// Document is a resolved DID document.
type Document struct {
	ID                   string               `json:"id"`
	VerificationMethod   []VerificationMethod `json:"verificationMethod"`
	Service              []ServiceEntry       `json:"service"`
	Authentication       []string             `json:"authentication"`
	AssertionMethod      []string             `json:"assertionMethod"`
	CapabilityInvocation []string             `json:"capabilityInvocation"`
}

// ServiceOfType returns the first service entry with the given type.
func (d *Document) ServiceOfType(serviceType string) (*ServiceEntry, error) {
	for i := range d.Service {
		if d.Service[i].Type == serviceType {
			return &d.Service[i], nil
		}
	}
	return nil, fmt.Errorf("DID document %q has no service of type %q", d.ID, serviceType)
}

// Client fetches did:web DID documents over HTTPS.
type Client struct {
	httpClient *http.Client
}

// ClientOpt configures a Client.
type ClientOpt func(*Client)

// WithHTTPClient overrides the HTTP client used for document fetches.
func WithHTTPClient(client *http.Client) ClientOpt {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a DID document client with a sensible default timeout.
func NewClient(opts ...ClientOpt) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve fetches and parses the DID document for a did:web identifier.
func (c *Client) Resolve(ctx context.Context, did string) (*Document, error) {
	docURL, err := DocumentURL(did)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build DID document request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch DID document for %q: %w", did, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("DID document endpoint for %q returned %s", did, resp.Status)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode DID document for %q: %w", did, err)
	}

	return &doc, nil
}

// ResolvePublicKey implements KeyResolver by fetching the DID document and
// extracting the ECDSA public key of the verification method referenced for
// the given purpose.
func (c *Client) ResolvePublicKey(ctx context.Context, did, keyID, purpose string) (*ecdsa.PublicKey, error) {
	doc, err := c.Resolve(ctx, did)
	if err != nil {
		return nil, err
	}

	method, err := doc.methodForPurpose(keyID, purpose)
	if err != nil {
		return nil, err
	}

	if len(method.PublicKeyJwk) == 0 {
		return nil, fmt.Errorf("verification method %q carries no publicKeyJwk", method.ID)
	}

	key, err := jwk.ParseKey(method.PublicKeyJwk)
	if err != nil {
		return nil, fmt.Errorf("failed to parse publicKeyJwk of %q: %w", method.ID, err)
	}

	var pub ecdsa.PublicKey
	if err := key.Raw(&pub); err != nil {
		return nil, fmt.Errorf("publicKeyJwk of %q is not an EC key: %w", method.ID, err)
	}

	return &pub, nil
}

func (d *Document) methodForPurpose(keyID, purpose string) (*VerificationMethod, error) {
	var refs []string
	switch purpose {
	case PurposeCapabilityInvocation:
		refs = d.CapabilityInvocation
	case "authentication":
		refs = d.Authentication
	case "assertionMethod":
		refs = d.AssertionMethod
	default:
		return nil, fmt.Errorf("unknown verification purpose %q", purpose)
	}

	for i := range d.VerificationMethod {
		method := &d.VerificationMethod[i]
		if method.ID != keyID && !strings.HasSuffix(method.ID, "#"+keyID) {
			continue
		}
		if len(refs) > 0 && !slices.Contains(refs, method.ID) {
			return nil, fmt.Errorf("verification method %q is not referenced for %s", method.ID, purpose)
		}
		return method, nil
	}

	return nil, fmt.Errorf("verification method %q not found in DID document %q", keyID, d.ID)
}
