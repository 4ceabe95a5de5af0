// Package status checks credential revocation against StatusList2021
// bitstring credentials, caching decoded bitsets per status-list URL.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/pilacorp/go-dcp-trust/common/util"
	"github.com/pilacorp/go-dcp-trust/vc"
)

// StatusListCredential models the Verifiable Credential served by a status
// list endpoint. Only the fields the checker needs are typed.
type StatusListCredential struct {
	ID                string                      `json:"id"`
	Type              []string                    `json:"type"`
	Issuer            string                      `json:"issuer"`
	CredentialSubject StatusListCredentialSubject `json:"credentialSubject"`
}

// StatusListCredentialSubject carries the compressed bitstring.
type StatusListCredentialSubject struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	StatusPurpose string `json:"statusPurpose"`
	EncodedList   string `json:"encodedList"`
}

// Checker fetches, decodes, and caches status-list bitstrings. Decoded
// bitsets are cached for the process lifetime unless ClearCache is called;
// concurrent first fetches of one URL are collapsed into a single request.
type Checker struct {
	httpClient *http.Client
	cache      *gocache.Cache
	group      singleflight.Group
}

// CheckerOpt configures a Checker.
type CheckerOpt func(*Checker)

// WithHTTPClient overrides the HTTP client used to fetch status lists.
func WithHTTPClient(client *http.Client) CheckerOpt {
	return func(c *Checker) {
		c.httpClient = client
	}
}

// NewChecker creates a revocation checker with a sensible default timeout.
func NewChecker(opts ...CheckerOpt) *Checker {
	c := &Checker{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
		cache: gocache.New(gocache.NoExpiration, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsRevoked reports whether the credential's status-list bit is set. A
// credential without a status entry is never revoked. Fetch or decode
// failures are returned as errors, never as "not revoked".
func (c *Checker) IsRevoked(ctx context.Context, cred *vc.VerifiableCredential) (bool, error) {
	if cred == nil || cred.Status == nil {
		return false, nil
	}

	url := cred.Status.StatusListCredential
	if url == "" {
		return false, fmt.Errorf("credentialStatus has no statusListCredential URL")
	}

	bits, err := c.bitset(ctx, url)
	if err != nil {
		return false, err
	}

	return bitAt(bits, cred.Status.StatusListIndex)
}

// ClearCache drops every cached bitset.
func (c *Checker) ClearCache() {
	c.cache.Flush()
}

func (c *Checker) bitset(ctx context.Context, url string) ([]byte, error) {
	if cached, ok := c.cache.Get(url); ok {
		return cached.([]byte), nil
	}

	fetched, err, _ := c.group.Do(url, func() (interface{}, error) {
		if cached, ok := c.cache.Get(url); ok {
			return cached.([]byte), nil
		}

		// The fetch is shared with every caller collapsed onto this key,
		// so it must not die with the first caller's context. The HTTP
		// client's timeout still bounds it.
		bits, err := c.fetch(context.WithoutCancel(ctx), url)
		if err != nil {
			return nil, err
		}

		c.cache.Set(url, bits, gocache.NoExpiration)
		return bits, nil
	})
	if err != nil {
		return nil, err
	}

	return fetched.([]byte), nil
}

func (c *Checker) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status list request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status list credential: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status list endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status list response: %w", err)
	}

	var doc StatusListCredential
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status list credential: %w", err)
	}

	if doc.CredentialSubject.EncodedList == "" {
		return nil, fmt.Errorf("status list credential has no encodedList")
	}

	bits, err := util.DecompressFromBase64URL(doc.CredentialSubject.EncodedList)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encodedList: %w", err)
	}

	return bits, nil
}

func bitAt(bits []byte, index int) (bool, error) {
	if index < 0 || index/8 >= len(bits) {
		return false, fmt.Errorf("statusListIndex %d is out of range for a %d-byte list", index, len(bits))
	}
	return (bits[index/8]>>(index%8))&1 == 1, nil
}
