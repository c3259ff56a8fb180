package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"interior_portal_backend/internal/events"
	"interior_portal_backend/internal/payments/ports"
	"interior_portal_backend/internal/payments/repository"
	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Action is a CSR's verification decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction accepts approve/reject and the receipt status words used by
// older clients (approved/rejected).
func ParseAction(raw string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approve", "approved":
		return ActionApprove, nil
	case "reject", "rejected":
		return ActionReject, nil
	}
	return "", apperr.Validation("invalid verification action").WithDetails(map[string]string{
		"status":  raw,
		"allowed": "approve, reject",
	})
}

// ApproveEnabled reports whether a receipt with the given estimate snapshot
// may be approved for enteredAmount.
func ApproveEnabled(estimatedCost *float64, enteredAmount float64) bool {
	return estimatedCost != nil && *estimatedCost > 0 && enteredAmount >= *estimatedCost
}

// UploadInput describes a receipt file the client is about to upload.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
}

// SubmitInput is the client's declared payment.
type SubmitInput struct {
	Amount  float64
	FileKey string
}

// VerifyInput is the CSR's verification decision.
type VerifyInput struct {
	EnteredAmount float64
	Action        Action
	Reason        *string
}

// ReceiptView is a receipt plus a short-lived link to the uploaded file.
type ReceiptView struct {
	repository.Receipt
	DownloadURL string `json:"downloadUrl,omitempty"`
}

type Service struct {
	repo     repository.Repository
	store    ports.ReceiptStore
	resolver ports.PaymentTokenResolver
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

func New(repo repository.Repository, store ports.ReceiptStore, resolver ports.PaymentTokenResolver, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		resolver: resolver,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// RequestReceiptUpload returns a presigned PUT URL for a receipt file.
func (s *Service) RequestReceiptUpload(ctx context.Context, actor authz.Actor, requestID uuid.UUID, in UploadInput) (ports.PresignedURL, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return ports.PresignedURL{}, err
	}
	if err := authorizeClientOrCSR(actor, req); err != nil {
		return ports.PresignedURL{}, err
	}
	return s.presignUpload(ctx, req, in)
}

// RequestPublicReceiptUpload is RequestReceiptUpload for the tokenised public page.
func (s *Service) RequestPublicReceiptUpload(ctx context.Context, rawToken string, in UploadInput) (ports.PresignedURL, error) {
	resolved, err := s.resolver.ResolvePaymentToken(ctx, rawToken)
	if err != nil {
		return ports.PresignedURL{}, err
	}
	req, err := s.repo.GetRequest(ctx, resolved.InspectionRequestID)
	if err != nil {
		return ports.PresignedURL{}, err
	}
	return s.presignUpload(ctx, req, in)
}

func (s *Service) presignUpload(ctx context.Context, req repository.RequestSnapshot, in UploadInput) (ports.PresignedURL, error) {
	if err := workflow.Inspections.Transition(req.Status, workflow.InspectionPaymentSubmitted); err != nil {
		return ports.PresignedURL{}, err
	}
	return s.store.PresignReceiptUpload(ctx, receiptFolder(req.ID), in.FileName, in.ContentType, in.Size)
}

// SubmitReceipt records an authenticated client's (or a CSR's) receipt.
func (s *Service) SubmitReceipt(ctx context.Context, actor authz.Actor, requestID uuid.UUID, in SubmitInput) (repository.Receipt, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return repository.Receipt{}, err
	}
	if err := authorizeClientOrCSR(actor, req); err != nil {
		return repository.Receipt{}, err
	}
	submittedBy := actor.UserID
	return s.submit(ctx, requestID, &submittedBy, in)
}

// SubmitPublicReceipt records a receipt sent from the tokenised payment page.
func (s *Service) SubmitPublicReceipt(ctx context.Context, rawToken string, in SubmitInput) (repository.Receipt, error) {
	resolved, err := s.resolver.ResolvePaymentToken(ctx, rawToken)
	if err != nil {
		return repository.Receipt{}, err
	}
	return s.submit(ctx, resolved.InspectionRequestID, nil, in)
}

func (s *Service) submit(ctx context.Context, requestID uuid.UUID, submittedBy *uuid.UUID, in SubmitInput) (repository.Receipt, error) {
	if in.Amount <= 0 {
		return repository.Receipt{}, apperr.Validation("amount must be greater than zero")
	}
	fileKey := strings.TrimSpace(in.FileKey)
	if !strings.HasPrefix(fileKey, receiptFolder(requestID)+"/") {
		return repository.Receipt{}, apperr.Validation("receipt file does not belong to this inspection request")
	}
	exists, err := s.store.ReceiptExists(ctx, fileKey)
	if err != nil {
		return repository.Receipt{}, apperr.Wrap(apperr.KindInternal, "check receipt file", err)
	}
	if !exists {
		return repository.Receipt{}, apperr.Validation("receipt file has not been uploaded")
	}

	out, err := s.repo.SubmitReceipt(ctx, repository.NewReceipt{
		InspectionRequestID: requestID,
		SubmittedBy:         submittedBy,
		AmountEntered:       in.Amount,
		FileKey:             fileKey,
	})
	if err != nil {
		return repository.Receipt{}, err
	}

	s.log.StatusChanged("inspection_request", requestID.String(), string(out.PreviousStatus), string(out.Request.Status))
	s.bus.Publish(ctx, events.PaymentSubmitted{
		BaseEvent:           events.NewBaseEvent(),
		PaymentID:           out.Receipt.ID,
		InspectionRequestID: requestID,
		ClientID:            out.Request.ClientID,
		AmountEntered:       in.Amount,
	})
	s.publishStatusChanged(ctx, out, "")
	return out.Receipt, nil
}

// VerifyPayment approves or rejects a pending receipt. Approval needs a
// positive estimate snapshot and an entered amount that covers it.
func (s *Service) VerifyPayment(ctx context.Context, actor authz.Actor, receiptID uuid.UUID, in VerifyInput) (repository.Receipt, error) {
	if !actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin) {
		return repository.Receipt{}, apperr.Forbidden("only staff can verify payments")
	}
	if in.Action != ActionApprove && in.Action != ActionReject {
		return repository.Receipt{}, apperr.Validation("invalid verification action")
	}
	if in.EnteredAmount < 0 {
		return repository.Receipt{}, apperr.Validation("payment amount cannot be negative")
	}

	receipt, err := s.repo.GetReceipt(ctx, receiptID)
	if err != nil {
		return repository.Receipt{}, err
	}

	approve := in.Action == ActionApprove
	if approve {
		if receipt.EstimatedCost == nil || *receipt.EstimatedCost <= 0 {
			return repository.Receipt{}, apperr.Validation("inspection request has no estimated cost")
		}
		if !ApproveEnabled(receipt.EstimatedCost, in.EnteredAmount) {
			return repository.Receipt{}, apperr.Validation("payment amount is below the estimated cost").WithDetails(map[string]string{
				"paymentAmount": formatAmount(in.EnteredAmount),
				"estimatedCost": formatAmount(*receipt.EstimatedCost),
			})
		}
	}

	reason := sanitize.TextPtr(in.Reason)
	out, err := s.repo.ApplyVerification(ctx, repository.Verification{
		ReceiptID:      receiptID,
		Approve:        approve,
		VerifiedAmount: in.EnteredAmount,
		VerifiedBy:     actor.UserID,
		Reason:         reason,
		At:             s.now().UTC(),
	})
	if err != nil {
		return repository.Receipt{}, err
	}

	s.log.StatusChanged("payment_receipt", receiptID.String(), string(receipt.Status), string(out.Receipt.Status))
	s.log.StatusChanged("inspection_request", out.Request.ID.String(), string(out.PreviousStatus), string(out.Request.Status))
	s.bus.Publish(ctx, events.PaymentVerified{
		BaseEvent:           events.NewBaseEvent(),
		PaymentID:           receiptID,
		InspectionRequestID: out.Request.ID,
		ClientID:            out.Request.ClientID,
		Status:              string(out.Receipt.Status),
		VerifiedBy:          actor.UserID,
	})
	r := ""
	if reason != nil {
		r = *reason
	}
	s.publishStatusChanged(ctx, out, r)
	return out.Receipt, nil
}

// VerifyRequestPayment is VerifyPayment scoped to a request; receipts of
// other requests are not found.
func (s *Service) VerifyRequestPayment(ctx context.Context, actor authz.Actor, requestID, receiptID uuid.UUID, in VerifyInput) (repository.Receipt, error) {
	receipt, err := s.repo.GetReceipt(ctx, receiptID)
	if err != nil {
		return repository.Receipt{}, err
	}
	if receipt.InspectionRequestID != requestID {
		return repository.Receipt{}, apperr.NotFound("payment receipt not found")
	}
	return s.VerifyPayment(ctx, actor, receiptID, in)
}

// ListReceipts returns a request's receipts, newest first, with download links.
func (s *Service) ListReceipts(ctx context.Context, actor authz.Actor, requestID uuid.UUID) ([]ReceiptView, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && req.ClientID != actor.UserID {
		return nil, apperr.Forbidden("not your inspection request")
	}

	receipts, err := s.repo.ListReceipts(ctx, requestID)
	if err != nil {
		return nil, err
	}

	views := make([]ReceiptView, 0, len(receipts))
	for _, receipt := range receipts {
		view := ReceiptView{Receipt: receipt}
		link, err := s.store.PresignReceiptDownload(ctx, receipt.ReceiptFileKey)
		if err != nil {
			s.log.Warn("failed to presign receipt download", "receiptId", receipt.ID, "error", err)
		} else {
			view.DownloadURL = link.URL
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) publishStatusChanged(ctx context.Context, out repository.Outcome, reason string) {
	if out.PreviousStatus == out.Request.Status {
		return
	}
	s.bus.Publish(ctx, events.InspectionStatusChanged{
		BaseEvent:           events.NewBaseEvent(),
		InspectionRequestID: out.Request.ID,
		ClientID:            out.Request.ClientID,
		From:                string(out.PreviousStatus),
		To:                  string(out.Request.Status),
		Reason:              reason,
	})
}

func authorizeClientOrCSR(actor authz.Actor, req repository.RequestSnapshot) error {
	if actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin) || req.ClientID == actor.UserID {
		return nil
	}
	return apperr.Forbidden("not your inspection request")
}

func receiptFolder(requestID uuid.UUID) string {
	return "receipts/" + requestID.String()
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
