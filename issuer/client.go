package issuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/pilacorp/go-dcp-trust/common/httpclient"
	"github.com/pilacorp/go-dcp-trust/dcp"
	"github.com/pilacorp/go-dcp-trust/didweb"
)

// ServiceTypeIssuer is the DID document service type of an issuer service.
const ServiceTypeIssuer = "IssuerService"

// Client talks to remote issuer services: endpoint discovery, credential
// requests, and polling for asynchronous issuance status.
type Client struct {
	http *httpclient.Client
	docs *didweb.Client
	log  *slog.Logger
}

// ClientOpt configures a Client.
type ClientOpt func(*Client)

// WithHTTPClient overrides the protocol HTTP client.
func WithHTTPClient(client *httpclient.Client) ClientOpt {
	return func(c *Client) {
		c.http = client
	}
}

// WithDIDClient overrides the DID document client.
func WithDIDClient(docs *didweb.Client) ClientOpt {
	return func(c *Client) {
		c.docs = docs
	}
}

// WithClientLogger overrides the client's logger.
func WithClientLogger(log *slog.Logger) ClientOpt {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates an issuance client.
func NewClient(opts ...ClientOpt) *Client {
	c := &Client{
		http: httpclient.New(),
		docs: didweb.NewClient(),
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DiscoverIssuerService resolves the issuer's service endpoint. A DID
// issuer is resolved through its DID document's IssuerService entry; a bare
// http(s) URL is used directly.
func (c *Client) DiscoverIssuerService(ctx context.Context, metadata *dcp.IssuerMetadata) (string, error) {
	if metadata == nil || metadata.Issuer == "" {
		return "", fmt.Errorf("issuer metadata names no issuer")
	}

	issuer := metadata.Issuer
	switch {
	case strings.HasPrefix(issuer, "did:"):
		doc, err := c.docs.Resolve(ctx, issuer)
		if err != nil {
			return "", fmt.Errorf("failed to resolve issuer %q: %w", issuer, err)
		}
		service, err := doc.ServiceOfType(ServiceTypeIssuer)
		if err != nil {
			return "", err
		}
		return service.ServiceEndpoint, nil
	case strings.HasPrefix(issuer, "http://"), strings.HasPrefix(issuer, "https://"):
		return issuer, nil
	}
	return "", fmt.Errorf("issuer %q is neither a DID nor an http(s) URL", issuer)
}

// RequestCredential submits a credential request to the issuer and returns
// the URL to poll for issuance status: the Location header when the issuer
// provides one, the submission URL otherwise.
func (c *Client) RequestCredential(ctx context.Context, metadata *dcp.IssuerMetadata, credentialID, holderPID, bearer string) (string, error) {
	endpoint, err := c.DiscoverIssuerService(ctx, metadata)
	if err != nil {
		return "", err
	}

	submitURL := strings.TrimSuffix(endpoint, "/") + "/credentials"
	msg := &dcp.CredentialRequestMessage{
		RequestID:   uuid.NewString(),
		HolderPID:   holderPID,
		Credentials: []dcp.CredentialReference{{ID: credentialID}},
	}

	resp, err := c.http.PostJSON(ctx, submitURL, bearer, msg)
	if err != nil {
		return "", fmt.Errorf("credential request to %s failed: %w", submitURL, err)
	}

	if location := resp.Header.Get("Location"); location != "" {
		return location, nil
	}
	return submitURL, nil
}

// AwaitStatus polls the status URL with exponential backoff (doubling,
// capped) until the issuer answers 2xx, fails with 4xx, or the timeout
// elapses.
func (c *Client) AwaitStatus(ctx context.Context, statusURL, bearer string, timeout time.Duration) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.Multiplier = 2
	policy.MaxInterval = 8 * time.Second
	policy.MaxElapsedTime = timeout

	var body []byte
	operation := func() error {
		resp, err := c.http.Do(ctx, http.MethodGet, statusURL, bearer, nil)
		if err != nil {
			if errors.Is(err, httpclient.ErrAuth) || errors.Is(err, httpclient.ErrClient) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = resp.Body
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, httpclient.ErrAuth) || errors.Is(err, httpclient.ErrClient) {
			return nil, err
		}
		return nil, fmt.Errorf("timed out awaiting issuance status from %s: %w", statusURL, err)
	}

	return body, nil
}
