package holder

import (
	"context"
	"fmt"
	"strings"

	"github.com/pilacorp/go-dcp-trust/common/httpclient"
	"github.com/pilacorp/go-dcp-trust/dcp"
	"github.com/pilacorp/go-dcp-trust/issuer"
)

// RemoteMetadataFetcher fetches issuer metadata from the issuer's
// discovered service endpoint.
type RemoteMetadataFetcher struct {
	discovery *issuer.Client
	http      *httpclient.Client
}

// NewRemoteMetadataFetcher creates a metadata fetcher.
func NewRemoteMetadataFetcher(discovery *issuer.Client, http *httpclient.Client) *RemoteMetadataFetcher {
	return &RemoteMetadataFetcher{
		discovery: discovery,
		http:      http,
	}
}

// FetchIssuerMetadata resolves the issuer's service endpoint and fetches
// its metadata document.
func (f *RemoteMetadataFetcher) FetchIssuerMetadata(ctx context.Context, issuerID string) (*dcp.IssuerMetadata, error) {
	endpoint, err := f.discovery.DiscoverIssuerService(ctx, &dcp.IssuerMetadata{Issuer: issuerID})
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(endpoint, "/") + "/metadata"

	var metadata dcp.IssuerMetadata
	if err := f.http.GetJSON(ctx, url, "", &metadata); err != nil {
		return nil, err
	}

	if err := dcp.Validate(&metadata); err != nil {
		return nil, fmt.Errorf("issuer %q served invalid metadata: %w", issuerID, err)
	}

	return &metadata, nil
}
