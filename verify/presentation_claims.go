package verify

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-dcp-trust/common/jsonmap"
	"github.com/pilacorp/go-dcp-trust/vc"
)

// EmbeddedCredential is one credential carried inside a presentation
// payload, discriminated by its inferred format.
type EmbeddedCredential struct {
	Format     vc.Format
	Document   jsonmap.JSONMap
	CompactJWT string
}

// PresentationClaims is the Presentation shape coerced out of a response
// entry, whether it arrived as a compact JWT or a structured document.
type PresentationClaims struct {
	ID            string
	HolderDID     string
	ProfileID     string
	CredentialIDs []string
	Credentials   []EmbeddedCredential
}

// ParsePresentationEntry coerces one presentation-response entry into the
// Presentation shape. A string entry is treated as a compact JWT whose vp
// claim carries the presentation; a map entry is the presentation document
// itself.
func ParsePresentationEntry(entry interface{}) (*PresentationClaims, error) {
	switch v := entry.(type) {
	case string:
		return parseJWTEntry(v)
	case map[string]interface{}:
		return parseDocumentEntry(jsonmap.JSONMap(v))
	case jsonmap.JSONMap:
		return parseDocumentEntry(v)
	}
	return nil, fmt.Errorf("presentation entry is neither a JWT string nor a document")
}

func parseJWTEntry(raw string) (*PresentationClaims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse presentation JWT: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("presentation JWT claims are not an object")
	}

	vpClaim, ok := claims["vp"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("vp claim not found in presentation JWT")
	}

	return parseDocumentEntry(jsonmap.JSONMap(vpClaim))
}

func parseDocumentEntry(doc jsonmap.JSONMap) (*PresentationClaims, error) {
	claims := &PresentationClaims{
		ID:            doc.String("id"),
		HolderDID:     doc.String("holder"),
		ProfileID:     doc.String("profileId"),
		CredentialIDs: doc.Strings("credentialIds"),
	}

	for _, raw := range doc.Slice("verifiableCredential") {
		switch cred := raw.(type) {
		case string:
			inner, err := vc.FromJWT(cred)
			if err != nil {
				return nil, fmt.Errorf("failed to parse embedded credential: %w", err)
			}
			claims.Credentials = append(claims.Credentials, EmbeddedCredential{
				Format:     vc.FormatJWT,
				Document:   inner.Document,
				CompactJWT: cred,
			})
		case map[string]interface{}:
			doc := jsonmap.JSONMap(cred)
			claims.Credentials = append(claims.Credentials, EmbeddedCredential{
				Format:   vc.InferFormat(doc),
				Document: doc,
			})
		}
	}

	// A presentation without an explicit id list still references its
	// embedded credentials by their ids.
	if len(claims.CredentialIDs) == 0 {
		for _, cred := range claims.Credentials {
			if id := cred.Document.String("id"); id != "" {
				claims.CredentialIDs = append(claims.CredentialIDs, id)
			}
		}
	}

	return claims, nil
}
