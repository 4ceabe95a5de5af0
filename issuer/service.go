package issuer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-dcp-trust/common/httpclient"
	"github.com/pilacorp/go-dcp-trust/dcp"
	"github.com/pilacorp/go-dcp-trust/didweb"
	"github.com/pilacorp/go-dcp-trust/token"
)

// Service orchestrates the issuer workflow: intake, authorization, and the
// approve-or-reject delivery paths. Delivery is a single attempt; failures
// are reported to the caller, not retried.
type Service struct {
	issuerPID string
	requests  RequestStore
	generator Generator
	tokens    *token.Service
	delivery  *httpclient.Client
	now       func() time.Time
	log       *slog.Logger
}

// ServiceOpt configures a Service.
type ServiceOpt func(*Service)

// WithDeliveryClient overrides the HTTP client used for credential
// delivery.
func WithDeliveryClient(client *httpclient.Client) ServiceOpt {
	return func(s *Service) {
		s.delivery = client
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

// NewService creates an issuer service.
func NewService(issuerPID string, requests RequestStore, generator Generator, tokens *token.Service, opts ...ServiceOpt) *Service {
	s := &Service{
		issuerPID: issuerPID,
		requests:  requests,
		generator: generator,
		tokens:    tokens,
		delivery:  httpclient.New(httpclient.WithMaxRetries(0)),
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuthorizeRequest validates the bearer token and checks that its subject
// is the holder the request claims to come from.
func (s *Service) AuthorizeRequest(ctx context.Context, bearer, holderPID string) (jwt.MapClaims, error) {
	claims, err := s.tokens.Validate(ctx, bearer)
	if err != nil {
		return nil, err
	}

	subject, _ := claims.GetSubject()
	if subject != holderPID {
		return nil, fmt.Errorf("%w: token subject %q does not match holder %q", token.ErrTokenInvalid, subject, holderPID)
	}

	return claims, nil
}

// CreateCredentialRequest persists a new request in state RECEIVED.
func (s *Service) CreateCredentialRequest(ctx context.Context, holderDID string, msg *dcp.CredentialRequestMessage) (*CredentialRequest, error) {
	if err := dcp.Validate(msg); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(msg.Credentials))
	for _, ref := range msg.Credentials {
		ids = append(ids, ref.ID)
	}

	request := &CredentialRequest{
		ID:            msg.RequestID,
		IssuerPID:     s.issuerPID,
		HolderPID:     msg.HolderPID,
		HolderDID:     holderDID,
		CredentialIDs: ids,
		Status:        StatusReceived,
		CreatedAt:     s.now(),
		UpdatedAt:     s.now(),
	}

	if err := s.requests.Save(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to persist credential request: %w", err)
	}

	s.log.Info("credential request received", "request", request.ID, "holder", request.HolderPID)
	return request, nil
}

// ApproveOpt configures an approval.
type ApproveOpt func(*approval)

type approval struct {
	customClaims map[string]interface{}
	constraints  map[string]interface{}
	provided     []CredentialDraft
}

// WithCustomClaims adds issuer-supplied claims to generated credentials.
func WithCustomClaims(claims map[string]interface{}) ApproveOpt {
	return func(a *approval) {
		a.customClaims = claims
	}
}

// WithConstraints forwards issuance constraints to the generator.
func WithConstraints(constraints map[string]interface{}) ApproveOpt {
	return func(a *approval) {
		a.constraints = constraints
	}
}

// WithCredentials supplies ready-made credentials instead of invoking the
// generator. Every draft must carry type, format, and payload.
func WithCredentials(drafts []CredentialDraft) ApproveOpt {
	return func(a *approval) {
		a.provided = drafts
	}
}

// ApproveAndDeliverCredentials builds the requested credentials and POSTs
// them to the holder's credential endpoint. The request moves to ISSUED
// only after a successful delivery.
func (s *Service) ApproveAndDeliverCredentials(ctx context.Context, requestID string, opts ...ApproveOpt) error {
	var a approval
	for _, opt := range opts {
		opt(&a)
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status == StatusIssued {
		return fmt.Errorf("credential request %q is already issued", requestID)
	}

	drafts, err := s.drafts(ctx, request, &a)
	if err != nil {
		return err
	}

	containers := make([]dcp.CredentialContainer, 0, len(drafts))
	for _, draft := range drafts {
		containers = append(containers, dcp.CredentialContainer{
			CredentialType: draft.CredentialType,
			Format:         draft.Format,
			Payload:        draft.Payload,
		})
	}

	msg := &dcp.CredentialMessage{
		IssuerPID:   request.IssuerPID,
		HolderPID:   request.HolderPID,
		RequestID:   request.ID,
		Status:      dcp.CredentialStatusIssued,
		Credentials: containers,
	}

	if err := s.deliver(ctx, request, msg); err != nil {
		return fmt.Errorf("failed to deliver credentials for request %q: %w", requestID, err)
	}

	request.Status = StatusIssued
	request.UpdatedAt = s.now()
	if err := s.requests.Save(ctx, request); err != nil {
		return fmt.Errorf("credentials delivered but request %q could not be updated: %w", requestID, err)
	}

	s.log.Info("credentials issued", "request", request.ID, "count", len(containers))
	return nil
}

// RejectCredentialRequest notifies the holder of a rejection. An already
// issued request cannot be rejected.
func (s *Service) RejectCredentialRequest(ctx context.Context, requestID, reason string) error {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status == StatusIssued {
		return fmt.Errorf("credential request %q is already issued and cannot be rejected", requestID)
	}

	msg := &dcp.CredentialMessage{
		IssuerPID:       request.IssuerPID,
		HolderPID:       request.HolderPID,
		RequestID:       request.ID,
		Status:          dcp.CredentialStatusRejected,
		RejectionReason: reason,
	}

	if err := s.deliver(ctx, request, msg); err != nil {
		return fmt.Errorf("failed to deliver rejection for request %q: %w", requestID, err)
	}

	request.Status = StatusRejected
	request.UpdatedAt = s.now()
	if err := s.requests.Save(ctx, request); err != nil {
		return fmt.Errorf("rejection delivered but request %q could not be updated: %w", requestID, err)
	}

	s.log.Info("credential request rejected", "request", request.ID, "reason", reason)
	return nil
}

func (s *Service) drafts(ctx context.Context, request *CredentialRequest, a *approval) ([]CredentialDraft, error) {
	if len(a.provided) > 0 {
		for _, draft := range a.provided {
			if err := draft.validate(); err != nil {
				return nil, err
			}
		}
		return a.provided, nil
	}

	if s.generator == nil {
		return nil, fmt.Errorf("no credentials supplied and no generator configured")
	}

	drafts, err := s.generator.Generate(ctx, request, a.customClaims, a.constraints)
	if err != nil {
		return nil, fmt.Errorf("credential generation failed: %w", err)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("credential generation produced nothing for request %q", request.ID)
	}
	return drafts, nil
}

func (s *Service) deliver(ctx context.Context, request *CredentialRequest, msg *dcp.CredentialMessage) error {
	endpoint, err := didweb.CredentialServiceEndpoint(request.HolderDID)
	if err != nil {
		return err
	}

	bearer, err := s.tokens.Mint(ctx, request.HolderDID)
	if err != nil {
		return err
	}

	if _, err := s.delivery.PostJSON(ctx, endpoint, bearer, msg); err != nil {
		return err
	}
	return nil
}
