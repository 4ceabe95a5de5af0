package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-dcp-trust/common/util"
	"github.com/pilacorp/go-dcp-trust/vc"
)

func statusListServer(t *testing.T, bits []byte, fetches *atomic.Int32) *httptest.Server {
	t.Helper()

	encoded, err := util.CompressToBase64URL(bits)
	require.NoError(t, err)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		json.NewEncoder(w).Encode(StatusListCredential{
			ID:     "https://example.org/status/1",
			Type:   []string{"VerifiableCredential", "StatusList2021Credential"},
			Issuer: "did:web:issuer.example",
			CredentialSubject: StatusListCredentialSubject{
				Type:          "StatusList2021",
				StatusPurpose: "revocation",
				EncodedList:   encoded,
			},
		})
	}))
}

func credWithStatus(url string, index int) *vc.VerifiableCredential {
	return &vc.VerifiableCredential{
		ID: "urn:uuid:cred-1",
		Status: &vc.Status{
			Type:                 "StatusList2021Entry",
			StatusListCredential: url,
			StatusListIndex:      index,
		},
	}
}

func TestIsRevokedWithoutStatus(t *testing.T) {
	checker := NewChecker()

	revoked, err := checker.IsRevoked(context.Background(), &vc.VerifiableCredential{ID: "urn:uuid:plain"})
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestIsRevokedCachesBitset(t *testing.T) {
	var fetches atomic.Int32

	// Bit 5 set, LSB-first: 0b00100000.
	server := statusListServer(t, []byte{0x20}, &fetches)
	defer server.Close()

	checker := NewChecker(WithHTTPClient(server.Client()))

	revoked, err := checker.IsRevoked(context.Background(), credWithStatus(server.URL, 5))
	require.NoError(t, err)
	assert.True(t, revoked)

	notRevoked, err := checker.IsRevoked(context.Background(), credWithStatus(server.URL, 3))
	require.NoError(t, err)
	assert.False(t, notRevoked)

	assert.Equal(t, int32(1), fetches.Load(), "second check must be served from the cache")
}

func TestIsRevokedOutOfRangeIndex(t *testing.T) {
	var fetches atomic.Int32
	server := statusListServer(t, []byte{0x00}, &fetches)
	defer server.Close()

	checker := NewChecker(WithHTTPClient(server.Client()))

	_, err := checker.IsRevoked(context.Background(), credWithStatus(server.URL, 4096))
	assert.Error(t, err)
}

func TestIsRevokedFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	checker := NewChecker(WithHTTPClient(server.Client()))

	_, err := checker.IsRevoked(context.Background(), credWithStatus(server.URL, 0))
	assert.Error(t, err, "fetch failure must never read as not-revoked")
}

func TestIsRevokedMalformedEncodedList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(StatusListCredential{
			CredentialSubject: StatusListCredentialSubject{EncodedList: "!!not-base64!!"},
		})
	}))
	defer server.Close()

	checker := NewChecker(WithHTTPClient(server.Client()))

	_, err := checker.IsRevoked(context.Background(), credWithStatus(server.URL, 0))
	assert.Error(t, err)
}

func TestClearCache(t *testing.T) {
	var fetches atomic.Int32
	server := statusListServer(t, []byte{0x01}, &fetches)
	defer server.Close()

	checker := NewChecker(WithHTTPClient(server.Client()))

	_, err := checker.IsRevoked(context.Background(), credWithStatus(server.URL, 0))
	require.NoError(t, err)

	checker.ClearCache()

	_, err = checker.IsRevoked(context.Background(), credWithStatus(server.URL, 0))
	require.NoError(t, err)

	assert.Equal(t, int32(2), fetches.Load())
}

func TestBitsetFetchNotBoundToCallerContext(t *testing.T) {
	var fetches atomic.Int32
	server := statusListServer(t, []byte{0x20}, &fetches)
	defer server.Close()

	checker := NewChecker(WithHTTPClient(server.Client()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	revoked, err := checker.IsRevoked(ctx, credWithStatus(server.URL, 5))
	require.NoError(t, err, "a cancelled caller must not poison the shared fetch")
	assert.True(t, revoked)
	assert.Equal(t, int32(1), fetches.Load())
}
