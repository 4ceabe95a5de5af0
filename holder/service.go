package holder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/pilacorp/go-dcp-trust/common/jsonmap"
	"github.com/pilacorp/go-dcp-trust/dcp"
	"github.com/pilacorp/go-dcp-trust/token"
	"github.com/pilacorp/go-dcp-trust/vc"
	"github.com/pilacorp/go-dcp-trust/vp"
)

// Service orchestrates the holder workflow on top of the token service,
// the presentation assembler, and the credential store.
type Service struct {
	creds     vc.Store
	records   RecordStore
	tokens    *token.Service
	assembler *vp.Assembler
	metadata  MetadataFetcher

	defaultProfile string

	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	now func() time.Time
	log *slog.Logger
}

// MetadataFetcher fetches an issuer's metadata document. issuer.Client
// combined with an HTTP GET satisfies this; tests inject fakes.
type MetadataFetcher interface {
	FetchIssuerMetadata(ctx context.Context, issuer string) (*dcp.IssuerMetadata, error)
}

// ServiceOpt configures a Service.
type ServiceOpt func(*Service)

// WithRateLimit sets the per-holder token bucket: r requests refilled per
// second with the given burst.
func WithRateLimit(r rate.Limit, burst int) ServiceOpt {
	return func(s *Service) {
		s.limit = r
		s.burst = burst
	}
}

// WithDefaultProfile sets the profile assigned to credentials whose
// characteristics resolve to no known profile.
func WithDefaultProfile(profileID string) ServiceOpt {
	return func(s *Service) {
		s.defaultProfile = profileID
	}
}

// WithClock overrides the service's time source.
func WithClock(now func() time.Time) ServiceOpt {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger overrides the service's logger.
func WithLogger(log *slog.Logger) ServiceOpt {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates a holder service.
func NewService(creds vc.Store, records RecordStore, tokens *token.Service, assembler *vp.Assembler, metadata MetadataFetcher, opts ...ServiceOpt) *Service {
	s := &Service{
		creds:          creds,
		records:        records,
		tokens:         tokens,
		assembler:      assembler,
		metadata:       metadata,
		defaultProfile: vc.ProfileVC11JWT,
		limit:          rate.Limit(10),
		burst:          10,
		limiters:       make(map[string]*rate.Limiter),
		now:            time.Now,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuthorizePresentationQuery validates the bearer token of an incoming
// presentation query and returns its claims.
func (s *Service) AuthorizePresentationQuery(ctx context.Context, bearer string) (jwt.MapClaims, error) {
	return s.tokens.Validate(ctx, bearer)
}

// AuthorizeIssuer validates the bearer token of an incoming issuer call and
// requires a non-blank issuer claim.
func (s *Service) AuthorizeIssuer(ctx context.Context, bearer string) (jwt.MapClaims, error) {
	claims, err := s.tokens.Validate(ctx, bearer)
	if err != nil {
		return nil, err
	}

	issuer, _ := claims.GetIssuer()
	if issuer == "" {
		return nil, fmt.Errorf("%w: token has no issuer claim", token.ErrTokenInvalid)
	}

	return claims, nil
}

// CheckRateLimit consumes one slot of the holder's token bucket.
func (s *Service) CheckRateLimit(holderDID string) error {
	if !s.limiter(holderDID).Allow() {
		return fmt.Errorf("rate limit exceeded for %q", holderDID)
	}
	return nil
}

func (s *Service) limiter(holderDID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[holderDID]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[holderDID] = limiter
	}
	return limiter
}

// CreatePresentation answers a presentation query under the validated
// token's claims.
func (s *Service) CreatePresentation(ctx context.Context, query *dcp.PresentationQueryMessage, claims jwt.MapClaims) (*dcp.PresentationResponseMessage, error) {
	return s.assembler.CreatePresentation(ctx, query, claims)
}

// ProcessIssuedCredentials parses and persists the credentials of a
// delivery message. Entries that cannot be parsed are skipped, never
// aborting the batch; a status record with the saved count is always
// written. It returns the number of credentials persisted.
func (s *Service) ProcessIssuedCredentials(ctx context.Context, msg *dcp.CredentialMessage, issuerDID string) (int, error) {
	if msg == nil || len(msg.Credentials) == 0 {
		return 0, fmt.Errorf("credential message contains no credentials")
	}

	saved := 0
	skipped := 0

	for _, container := range msg.Credentials {
		cred, err := s.parseContainer(container)
		if err != nil {
			skipped++
			s.log.Warn("skipping credential container", "request", msg.RequestID, "type", container.CredentialType, "error", err)
			continue
		}

		cred.IssuerDID = issuerDID
		if container.CredentialType != "" {
			cred.CredentialType = container.CredentialType
		}
		cred.ProfileID = s.resolveProfile(cred)

		if err := s.creds.Save(ctx, cred); err != nil {
			skipped++
			s.log.Warn("failed to persist credential", "credential", cred.ID, "error", err)
			continue
		}
		saved++
	}

	record := &StatusRecord{
		RequestID:  msg.RequestID,
		IssuerPID:  msg.IssuerPID,
		HolderPID:  msg.HolderPID,
		Status:     dcp.CredentialStatusIssued,
		CreatedAt:  s.now(),
		SavedCount: saved,
	}
	if err := s.records.Append(ctx, record); err != nil {
		return saved, fmt.Errorf("failed to persist status record: %w", err)
	}

	s.log.Info("processed issued credentials", "request", msg.RequestID, "saved", saved, "skipped", skipped)
	return saved, nil
}

// ProcessRejectedCredentials records the rejection of a credential request.
func (s *Service) ProcessRejectedCredentials(ctx context.Context, msg *dcp.CredentialMessage) error {
	if msg == nil {
		return fmt.Errorf("credential message is nil")
	}

	record := &StatusRecord{
		RequestID:       msg.RequestID,
		IssuerPID:       msg.IssuerPID,
		HolderPID:       msg.HolderPID,
		Status:          dcp.CredentialStatusRejected,
		CreatedAt:       s.now(),
		RejectionReason: msg.RejectionReason,
	}
	if err := s.records.Append(ctx, record); err != nil {
		return fmt.Errorf("failed to persist status record: %w", err)
	}

	s.log.Info("credential request rejected by issuer", "request", msg.RequestID, "reason", msg.RejectionReason)
	return nil
}

// ProcessCredentialOffer validates an offer and resolves sparse entries
// against the issuer's metadata. An unresolved entry or a metadata fetch
// failure rejects the whole offer.
func (s *Service) ProcessCredentialOffer(ctx context.Context, offer *dcp.CredentialOfferMessage) ([]dcp.OfferedCredential, error) {
	if offer == nil {
		return nil, fmt.Errorf("credential offer is nil")
	}
	if offer.Issuer == "" {
		return nil, fmt.Errorf("credential offer names no issuer")
	}
	if len(offer.OfferedCredentials) == 0 {
		return nil, fmt.Errorf("credential offer lists no credentials")
	}

	var metadata *dcp.IssuerMetadata
	resolved := make([]dcp.OfferedCredential, 0, len(offer.OfferedCredentials))

	for _, entry := range offer.OfferedCredentials {
		if entry.CredentialType != "" {
			resolved = append(resolved, entry)
			continue
		}
		if entry.ID == "" {
			return nil, fmt.Errorf("offered credential carries neither an id nor a credentialType")
		}

		if metadata == nil {
			var err error
			metadata, err = s.metadata.FetchIssuerMetadata(ctx, offer.Issuer)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch metadata of issuer %q: %w", offer.Issuer, err)
			}
		}

		descriptor, err := findSupported(metadata, entry.ID)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, dcp.OfferedCredential{ID: entry.ID, CredentialType: descriptor.CredentialType})
	}

	return resolved, nil
}

func findSupported(metadata *dcp.IssuerMetadata, id string) (*dcp.SupportedCredential, error) {
	for i := range metadata.CredentialsSupported {
		if metadata.CredentialsSupported[i].ID == id {
			return &metadata.CredentialsSupported[i], nil
		}
	}
	return nil, fmt.Errorf("offered credential %q is not in the issuer's metadata", id)
}

func (s *Service) parseContainer(container dcp.CredentialContainer) (*vc.VerifiableCredential, error) {
	if container.Payload == nil {
		return nil, fmt.Errorf("container has no payload")
	}
	if container.Format == "" {
		return nil, fmt.Errorf("container has no format")
	}

	format, err := vc.NormalizeFormat(container.Format)
	if err != nil {
		return nil, err
	}

	switch format {
	case vc.FormatJWT:
		compact, ok := container.Payload.(string)
		if !ok || compact == "" {
			return nil, fmt.Errorf("JWT container payload is not a string")
		}
		return vc.FromJWT(compact)
	case vc.FormatJSONLD:
		doc, ok := container.Payload.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("JSON-LD container payload is not an object")
		}
		return vc.FromDocument(jsonmap.JSONMap(doc))
	}
	return nil, fmt.Errorf("unrecognized credential format %q", container.Format)
}

func (s *Service) resolveProfile(cred *vc.VerifiableCredential) string {
	format := vc.FormatJWT
	if cred.CompactJWT == "" {
		format = vc.InferFormat(cred.Document)
	}

	statusType := ""
	if cred.Status != nil {
		statusType = cred.Status.Type
	}

	if profile, ok := vc.ResolveProfile(format, statusType); ok {
		return profile
	}
	return s.defaultProfile
}
