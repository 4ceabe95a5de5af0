package vc

import (
	"fmt"

	"github.com/pilacorp/go-dcp-trust/common/jsonmap"
)

// Format discriminates how a credential or presentation is encoded on the
// wire.
type Format string

const (
	FormatJWT    Format = "jwt"
	FormatJSONLD Format = "json-ld"
)

// NormalizeFormat maps the format identifiers that appear in DCP messages
// onto the two format families.
func NormalizeFormat(s string) (Format, error) {
	switch s {
	case "jwt", "VC1_0_JWT", "vc1_0_jwt", "jwt_vc":
		return FormatJWT, nil
	case "json-ld", "ldp_vc", "VC1_0_LD", "vc1_0_ld":
		return FormatJSONLD, nil
	}
	return "", fmt.Errorf("unrecognized credential format %q", s)
}

// InferFormat guesses the format of a credential document. A JSON-LD
// credential embeds its proof; JWT credentials carry the signature in the
// enclosing compact serialization instead.
func InferFormat(doc jsonmap.JSONMap) Format {
	if _, ok := doc["proof"]; ok {
		return FormatJSONLD
	}
	return FormatJWT
}
