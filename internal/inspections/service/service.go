package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"interior_portal_backend/internal/auth/token"
	"interior_portal_backend/internal/events"
	"interior_portal_backend/internal/inspections/ports"
	"interior_portal_backend/internal/inspections/repository"
	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/config"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/phone"
	"interior_portal_backend/platform/sanitize"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	paymentTokenBytes = 32
	qrCodeSize        = 256
)

// CreateInput is the data a client supplies when requesting an inspection.
type CreateInput struct {
	ClientID        *uuid.UUID
	ContactName     string
	ContactEmail    string
	ContactPhone    string
	PropertyAddress string
	PropertyType    string
	PropertySizeSqm *float64
	PreferredDate   *time.Time
	Notes           *string
}

// ListFilter narrows List results.
type ListFilter struct {
	Status   *string
	ClientID *uuid.UUID
	Page     int
	PageSize int
}

// ListResult is a page of inspection requests.
type ListResult struct {
	Items    []repository.InspectionRequest `json:"items"`
	Total    int                            `json:"total"`
	Page     int                            `json:"page"`
	PageSize int                            `json:"pageSize"`
}

// PaymentLinkResult is returned once, when the link is generated. Token is
// never stored or shown again.
type PaymentLinkResult struct {
	Request    repository.InspectionRequest
	PaymentURL string
	PublicURL  string
	Token      string
	ExpiresAt  time.Time
	QRCodePNG  []byte
}

type Service struct {
	repo   repository.Repository
	links  ports.PaymentLinkProvider
	expiry ports.ExpiryScheduler
	phones *phone.Normalizer
	cfg    config.PaymentConfig
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
}

func New(repo repository.Repository, links ports.PaymentLinkProvider, phones *phone.Normalizer, cfg config.PaymentConfig, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		links:  links,
		phones: phones,
		cfg:    cfg,
		bus:    bus,
		log:    log,
		now:    time.Now,
	}
}

// SetExpiryScheduler wires the background scheduler. Without one, payment
// links still expire on read but the checkout link is never withdrawn.
func (s *Service) SetExpiryScheduler(expiry ports.ExpiryScheduler) {
	s.expiry = expiry
}

func (s *Service) Create(ctx context.Context, actor authz.Actor, in CreateInput) (repository.InspectionRequest, error) {
	clientID := actor.UserID
	switch {
	case actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin):
		if in.ClientID == nil {
			return repository.InspectionRequest{}, apperr.Validation("clientId is required when filing for a client")
		}
		clientID = *in.ClientID
	case actor.HasRole(authz.RoleClient):
	default:
		return repository.InspectionRequest{}, apperr.Forbidden("only clients or CSRs can request inspections")
	}

	contactPhone, ok := s.phones.E164(in.ContactPhone)
	if !ok {
		return repository.InspectionRequest{}, apperr.Validation("invalid contact phone number")
	}
	if in.PropertySizeSqm != nil && *in.PropertySizeSqm <= 0 {
		return repository.InspectionRequest{}, apperr.Validation("property size must be positive")
	}

	created, err := s.repo.Create(ctx, repository.InspectionRequest{
		ClientID:        clientID,
		ContactName:     sanitize.Text(in.ContactName),
		ContactEmail:    strings.ToLower(strings.TrimSpace(in.ContactEmail)),
		ContactPhone:    contactPhone,
		PropertyAddress: sanitize.Text(in.PropertyAddress),
		PropertyType:    sanitize.Text(in.PropertyType),
		PropertySizeSqm: in.PropertySizeSqm,
		PreferredDate:   in.PreferredDate,
		Notes:           sanitize.TextPtr(in.Notes),
	})
	if err != nil {
		return repository.InspectionRequest{}, err
	}

	s.log.Info("inspection request created", "id", created.ID, "clientId", clientID)
	return created, nil
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (repository.InspectionRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.InspectionRequest{}, err
	}
	if err := authorizeRead(actor, req); err != nil {
		return repository.InspectionRequest{}, err
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, actor authz.Actor, filter ListFilter) (ListResult, error) {
	params := repository.ListParams{Page: filter.Page, PageSize: filter.PageSize, ClientID: filter.ClientID}
	if !actor.IsStaff() {
		params.ClientID = &actor.UserID
	}
	if filter.Status != nil && *filter.Status != "" {
		status, err := workflow.Inspections.Parse(*filter.Status)
		if err != nil {
			return ListResult{}, err
		}
		params.Status = &status
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	page, pageSize := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return ListResult{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// UpdateStatus is the staff status endpoint. It only performs moves no other
// module owns: pending to payment-required, and cancellation. Moving to the
// current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, actor authz.Actor, id uuid.UUID, rawStatus string, reason *string) (repository.InspectionRequest, error) {
	if !actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin) {
		return repository.InspectionRequest{}, apperr.Forbidden("only staff can change inspection status")
	}
	next, err := workflow.Inspections.Parse(rawStatus)
	if err != nil {
		return repository.InspectionRequest{}, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.InspectionRequest{}, err
	}
	if current.Status == next {
		return current, nil
	}
	if err := workflow.Inspections.Transition(current.Status, next); err != nil {
		return repository.InspectionRequest{}, err
	}
	if owner, ok := moveOwner(current.Status, next); ok {
		return repository.InspectionRequest{}, apperr.Conflict("status is changed by another operation").WithDetails(map[string]string{
			"from": string(current.Status),
			"to":   string(next),
			"use":  owner,
		})
	}
	return s.changeStatus(ctx, current, next, sanitize.TextPtr(reason))
}

// moveOwner names the endpoint that owns a move, if it is not the staff
// status endpoint's to make.
func moveOwner(from, to workflow.InspectionStatus) (string, bool) {
	switch to {
	case workflow.InspectionCancelled:
		return "", false
	case workflow.InspectionPaymentRequired:
		if from == workflow.InspectionPending {
			return "", false
		}
		return "POST /inspection-requests/:id/payments/:paymentId/verify", true
	case workflow.InspectionPaymentSubmitted:
		return "POST /inspection-requests/:id/payments", true
	case workflow.InspectionVerified:
		if from == workflow.InspectionAssigned {
			return "POST /assignments/:id/decline", true
		}
		return "POST /inspection-requests/:id/payments/:paymentId/verify", true
	case workflow.InspectionAssigned:
		return "POST /assignments", true
	case workflow.InspectionInProgress:
		return "POST /assignments/:id/accept", true
	case workflow.InspectionCompleted:
		return "POST /assignments/:id/complete", true
	}
	return "", true
}

// Cancel cancels a request on behalf of its client or staff. A reason is
// required. Open assignments are cancelled with it.
func (s *Service) Cancel(ctx context.Context, actor authz.Actor, id uuid.UUID, reason string) (repository.InspectionRequest, error) {
	cleaned := sanitize.Text(reason)
	if cleaned == "" {
		return repository.InspectionRequest{}, apperr.Validation("cancellation reason is required")
	}

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.InspectionRequest{}, err
	}
	if !actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin) && req.ClientID != actor.UserID {
		return repository.InspectionRequest{}, apperr.Forbidden("not your inspection request")
	}
	if req.Status == workflow.InspectionCancelled {
		return req, nil
	}
	return s.changeStatus(ctx, req, workflow.InspectionCancelled, &cleaned)
}

func (s *Service) changeStatus(ctx context.Context, current repository.InspectionRequest, next workflow.InspectionStatus, reason *string) (repository.InspectionRequest, error) {
	out, err := s.repo.ChangeStatus(ctx, repository.StatusChange{
		ID:     current.ID,
		From:   current.Status,
		To:     next,
		Reason: reason,
	})
	if err != nil {
		return repository.InspectionRequest{}, err
	}

	updated := out.Request
	s.log.StatusChanged("inspection_request", updated.ID.String(), string(current.Status), string(next))
	s.publishStatusChanged(ctx, updated, current.Status, reason)

	for _, ra := range out.Released {
		s.log.StatusChanged("assignment", ra.ID.String(), string(ra.From), string(workflow.AssignmentCancelled))
		if ra.InspectorFreed {
			s.log.StatusChanged("inspector", ra.InspectorID.String(), string(workflow.InspectorBusy), string(workflow.InspectorAvailable))
		}
		s.bus.Publish(ctx, events.AssignmentUpdated{
			BaseEvent:           events.NewBaseEvent(),
			AssignmentID:        ra.ID,
			InspectionRequestID: updated.ID,
			InspectorID:         ra.InspectorID,
			From:                string(ra.From),
			To:                  string(workflow.AssignmentCancelled),
		})
	}
	return updated, nil
}

// GeneratePaymentLink creates the provider checkout, mints a single-use
// verification token and moves the request to payment-required. The token
// and QR code are only available in the returned result.
func (s *Service) GeneratePaymentLink(ctx context.Context, actor authz.Actor, id uuid.UUID, estimatedCost float64) (PaymentLinkResult, error) {
	if !actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin) {
		return PaymentLinkResult{}, apperr.Forbidden("only staff can issue payment links")
	}
	if estimatedCost <= 0 {
		return PaymentLinkResult{}, apperr.Validation("estimated cost must be greater than zero")
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return PaymentLinkResult{}, err
	}
	if err := workflow.Inspections.Transition(current.Status, workflow.InspectionPaymentRequired); err != nil {
		return PaymentLinkResult{}, err
	}

	rawToken, err := token.GenerateRandomToken(paymentTokenBytes)
	if err != nil {
		return PaymentLinkResult{}, apperr.Wrap(apperr.KindInternal, "generate payment token", err)
	}
	expiresAt := s.now().Add(s.cfg.GetPaymentLinkTTL()).UTC()
	publicURL := s.publicPaymentURL(rawToken)

	link, err := s.links.CreatePaymentLink(ctx, ports.PaymentLinkRequest{
		InspectionRequestID: id,
		Title:               "Property inspection",
		Description:         current.PropertyType + " at " + current.PropertyAddress,
		Amount:              estimatedCost,
		PayerEmail:          current.ContactEmail,
		ReturnURL:           publicURL,
		ExpiresAt:           expiresAt,
	})
	if err != nil {
		return PaymentLinkResult{}, apperr.Wrap(apperr.KindInternal, "create payment link", err)
	}

	png, err := qrcode.Encode(publicURL, qrcode.Medium, qrCodeSize)
	if err != nil {
		return PaymentLinkResult{}, apperr.Wrap(apperr.KindInternal, "render payment QR code", err)
	}

	updated, err := s.repo.IssuePaymentLink(ctx, repository.PaymentLinkUpdate{
		ID:            id,
		EstimatedCost: estimatedCost,
		LinkURL:       link.URL,
		ProviderRef:   link.ProviderRef,
		TokenHash:     token.HashSHA256(rawToken),
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		return PaymentLinkResult{}, err
	}

	if s.expiry != nil {
		if err := s.expiry.SchedulePaymentLinkExpiry(ctx, id, expiresAt); err != nil {
			s.log.Warn("failed to schedule payment link expiry", "id", id, "error", err)
		}
	}

	if current.Status != updated.Status {
		s.log.StatusChanged("inspection_request", id.String(), string(current.Status), string(updated.Status))
		s.publishStatusChanged(ctx, updated, current.Status, nil)
	}
	s.bus.Publish(ctx, events.PaymentLinkGenerated{
		BaseEvent:           events.NewBaseEvent(),
		InspectionRequestID: id,
		ClientID:            updated.ClientID,
		EstimatedCost:       estimatedCost,
		PaymentURL:          link.URL,
	})

	return PaymentLinkResult{
		Request:    updated,
		PaymentURL: link.URL,
		PublicURL:  publicURL,
		Token:      rawToken,
		ExpiresAt:  expiresAt,
		QRCodePNG:  png,
	}, nil
}

// ResolvePaymentToken finds the request behind a public payment token.
// Unknown tokens are not found; lapsed ones are gone.
func (s *Service) ResolvePaymentToken(ctx context.Context, rawToken string) (repository.InspectionRequest, error) {
	if strings.TrimSpace(rawToken) == "" {
		return repository.InspectionRequest{}, apperr.NotFound("payment link not found")
	}
	req, err := s.repo.GetByTokenHash(ctx, token.HashSHA256(rawToken))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return repository.InspectionRequest{}, apperr.NotFound("payment link not found")
		}
		return repository.InspectionRequest{}, err
	}
	if req.VerificationExpiresAt == nil || !s.now().Before(*req.VerificationExpiresAt) {
		return repository.InspectionRequest{}, apperr.Gone("payment link has expired")
	}
	return req, nil
}

// ExpirePaymentLink is run by the scheduler at the token's expiry time.
func (s *Service) ExpirePaymentLink(ctx context.Context, id uuid.UUID) error {
	changed, err := s.repo.ExpirePaymentLink(ctx, id, s.now())
	if err != nil {
		return err
	}
	if changed {
		s.log.Info("payment link expired", "id", id)
	}
	return nil
}

func (s *Service) publicPaymentURL(rawToken string) string {
	return fmt.Sprintf("%s/pay/%s", strings.TrimRight(s.cfg.GetAppBaseURL(), "/"), rawToken)
}

func (s *Service) publishStatusChanged(ctx context.Context, req repository.InspectionRequest, from workflow.InspectionStatus, reason *string) {
	evt := events.InspectionStatusChanged{
		BaseEvent:           events.NewBaseEvent(),
		InspectionRequestID: req.ID,
		ClientID:            req.ClientID,
		From:                string(from),
		To:                  string(req.Status),
	}
	if reason != nil {
		evt.Reason = *reason
	}
	s.bus.Publish(ctx, evt)
}

func authorizeRead(actor authz.Actor, req repository.InspectionRequest) error {
	if actor.IsStaff() || req.ClientID == actor.UserID {
		return nil
	}
	return apperr.Forbidden("not your inspection request")
}
