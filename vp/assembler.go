package vp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pilacorp/go-dcp-trust/dcp"
	"github.com/pilacorp/go-dcp-trust/scope"
	"github.com/pilacorp/go-dcp-trust/token"
	"github.com/pilacorp/go-dcp-trust/vc"
)

// Assembler builds the holder's response to a presentation query: it
// intersects requested and authorized scopes, fetches matching credentials,
// groups them into profile-homogenous presentations, and signs each group.
type Assembler struct {
	store  vc.Store
	signer *Signer
	log    *slog.Logger
}

// AssemblerOpt configures an Assembler.
type AssemblerOpt func(*Assembler)

// WithLogger overrides the assembler's logger.
func WithLogger(log *slog.Logger) AssemblerOpt {
	return func(a *Assembler) {
		a.log = log
	}
}

// NewAssembler creates a presentation assembler.
func NewAssembler(store vc.Store, signer *Signer, opts ...AssemblerOpt) *Assembler {
	a := &Assembler{
		store:  store,
		signer: signer,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreatePresentation answers a presentation query under the scope the
// access-token claims authorize. A requested scope that is disjoint from
// the authorized scope yields an empty presentation list without touching
// the credential store.
func (a *Assembler) CreatePresentation(ctx context.Context, query *dcp.PresentationQueryMessage, claims jwt.MapClaims) (*dcp.PresentationResponseMessage, error) {
	if query == nil {
		return nil, fmt.Errorf("presentation query is nil")
	}

	authorized := scope.ParseAll(token.Scopes(claims))
	requested := scope.ParseAll(query.Scope)

	effective, unrestricted := scope.Intersect(authorized, requested)
	if !unrestricted && len(effective) == 0 {
		a.log.Debug("requested scope not authorized, returning empty response",
			"requested", requested, "authorized", authorized)
		return &dcp.PresentationResponseMessage{Presentation: []interface{}{}}, nil
	}

	creds, err := a.store.Query(ctx, effective)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credentials: %w", err)
	}

	response := &dcp.PresentationResponseMessage{Presentation: []interface{}{}}

	for _, group := range groupByProfile(creds) {
		presentation := NewPresentation("urn:uuid:"+uuid.NewString(), group.profileID, group.creds)

		format := requestedFormat(query.PresentationDefinition)
		if format == "" {
			format = vc.DefaultSignFormat(group.profileID)
		}

		signed, err := a.signer.Sign(ctx, presentation, format)
		if err != nil {
			return nil, fmt.Errorf("failed to sign presentation for profile %q: %w", group.profileID, err)
		}

		response.Presentation = append(response.Presentation, signed)
	}

	return response, nil
}

type profileGroup struct {
	profileID string
	creds     []*vc.VerifiableCredential
}

// groupByProfile splits credentials by profile id, an absent profile
// forming its own group, in deterministic profile order.
func groupByProfile(creds []*vc.VerifiableCredential) []profileGroup {
	byProfile := make(map[string][]*vc.VerifiableCredential)
	for _, cred := range creds {
		byProfile[cred.ProfileID] = append(byProfile[cred.ProfileID], cred)
	}

	ids := make([]string, 0, len(byProfile))
	for id := range byProfile {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	groups := make([]profileGroup, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, profileGroup{profileID: id, creds: byProfile[id]})
	}
	return groups
}

// requestedFormat reads the format hint from a presentation definition.
func requestedFormat(def *dcp.PresentationDefinition) vc.Format {
	if def == nil || def.Format == nil {
		return ""
	}
	if _, ok := def.Format[dcp.FormatJWTVP]; ok {
		return vc.FormatJWT
	}
	if _, ok := def.Format[dcp.FormatLDPVP]; ok {
		return vc.FormatJSONLD
	}
	return ""
}
