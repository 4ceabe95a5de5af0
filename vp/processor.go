package vp

import (
	"crypto/sha256"
	"fmt"

	"github.com/piprate/json-gold/ld"
)

// defaultDocumentLoader is a shared caching loader to prevent repeated
// context fetches across signing calls.
var defaultDocumentLoader ld.DocumentLoader = ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(nil))

// CanonicalizeDocument normalizes a JSON-LD document with URDNA2015 and
// returns the n-quads serialization.
func CanonicalizeDocument(doc map[string]interface{}, loader ld.DocumentLoader) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to canonicalize document: document is nil")
	}
	if loader == nil {
		loader = defaultDocumentLoader
	}

	processor := ld.NewJsonLdProcessor()
	options := ld.NewJsonLdOptions("")
	options.Format = "application/n-quads"
	options.Algorithm = ld.AlgorithmURDNA2015
	options.DocumentLoader = loader

	canonical, err := processor.Normalize(doc, options)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize document: %w", err)
	}

	serialized, ok := canonical.(string)
	if !ok {
		return nil, fmt.Errorf("canonicalization produced no n-quads output")
	}

	return []byte(serialized), nil
}

// ComputeDigest computes the SHA-256 digest of the input data.
func ComputeDigest(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
