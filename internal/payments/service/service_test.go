package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"interior_portal_backend/internal/events"
	"interior_portal_backend/internal/payments/ports"
	"interior_portal_backend/internal/payments/repository"
	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]repository.RequestSnapshot
	receipts map[uuid.UUID]repository.Receipt
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		requests: map[uuid.UUID]repository.RequestSnapshot{},
		receipts: map[uuid.UUID]repository.Receipt{},
	}
}

func (f *fakeRepo) GetRequest(_ context.Context, id uuid.UUID) (repository.RequestSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return repository.RequestSnapshot{}, apperr.NotFound("inspection request not found")
	}
	return req, nil
}

func (f *fakeRepo) GetReceipt(_ context.Context, id uuid.UUID) (repository.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[id]
	if !ok {
		return repository.Receipt{}, apperr.NotFound("payment receipt not found")
	}
	return r, nil
}

func (f *fakeRepo) ListReceipts(_ context.Context, requestID uuid.UUID) ([]repository.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Receipt
	for _, r := range f.receipts {
		if r.InspectionRequestID == requestID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) SubmitReceipt(_ context.Context, in repository.NewReceipt) (repository.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req := f.requests[in.InspectionRequestID]
	if err := workflow.Inspections.Transition(req.Status, workflow.InspectionPaymentSubmitted); err != nil {
		return repository.Outcome{}, err
	}
	before := req.Status
	receipt := repository.Receipt{
		ID:                  uuid.New(),
		InspectionRequestID: in.InspectionRequestID,
		SubmittedBy:         in.SubmittedBy,
		AmountEntered:       in.AmountEntered,
		EstimatedCost:       req.EstimatedCost,
		ReceiptFileKey:      in.FileKey,
		Status:              workflow.ReceiptPending,
	}
	f.receipts[receipt.ID] = receipt
	req.Status = workflow.InspectionPaymentSubmitted
	req.PaymentStatus = workflow.PaymentAwaitingVerification
	f.requests[req.ID] = req
	return repository.Outcome{Receipt: receipt, Request: req, PreviousStatus: before}, nil
}

func (f *fakeRepo) ApplyVerification(_ context.Context, v repository.Verification) (repository.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt := f.receipts[v.ReceiptID]
	target, reqTarget, payTarget := workflow.ReceiptRejected, workflow.InspectionPaymentRequired, workflow.PaymentRejected
	if v.Approve {
		target, reqTarget, payTarget = workflow.ReceiptApproved, workflow.InspectionVerified, workflow.PaymentPaid
	}
	if receipt.Status != workflow.ReceiptPending {
		return repository.Outcome{}, &workflow.TransitionError{Entity: "payment receipt", From: string(receipt.Status), To: string(target)}
	}
	req := f.requests[receipt.InspectionRequestID]
	if err := workflow.Inspections.Transition(req.Status, reqTarget); err != nil {
		return repository.Outcome{}, err
	}
	before := req.Status
	receipt.Status = target
	receipt.VerifiedAmount = &v.VerifiedAmount
	receipt.VerifiedBy = &v.VerifiedBy
	receipt.VerifiedAt = &v.At
	receipt.RejectionReason = v.Reason
	f.receipts[receipt.ID] = receipt
	req.Status = reqTarget
	req.PaymentStatus = payTarget
	f.requests[req.ID] = req
	return repository.Outcome{Receipt: receipt, Request: req, PreviousStatus: before}, nil
}

type fakeStore struct {
	objects map[string]bool
}

func (f *fakeStore) PresignReceiptUpload(_ context.Context, folder, fileName, _ string, _ int64) (ports.PresignedURL, error) {
	key := folder + "/" + fileName
	return ports.PresignedURL{URL: "https://minio.example/" + key, FileKey: key}, nil
}

func (f *fakeStore) PresignReceiptDownload(_ context.Context, fileKey string) (ports.PresignedURL, error) {
	return ports.PresignedURL{URL: "https://minio.example/get/" + fileKey, FileKey: fileKey}, nil
}

func (f *fakeStore) ReceiptExists(_ context.Context, fileKey string) (bool, error) {
	return f.objects[fileKey], nil
}

type fakeResolver struct {
	tokens map[string]ports.PublicPaymentRequest
}

func (f fakeResolver) ResolvePaymentToken(_ context.Context, raw string) (ports.PublicPaymentRequest, error) {
	if raw == "expired" {
		return ports.PublicPaymentRequest{}, apperr.Gone("payment link has expired")
	}
	req, ok := f.tokens[raw]
	if !ok {
		return ports.PublicPaymentRequest{}, apperr.NotFound("payment link not found")
	}
	return req, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}
func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

var (
	csr    = authz.NewActor(uuid.New(), []string{authz.RoleCSR}, time.Time{})
	client = authz.NewActor(uuid.New(), []string{authz.RoleClient}, time.Time{})
)

type fixture struct {
	svc   *Service
	repo  *fakeRepo
	store *fakeStore
	bus   *recordingBus
}

func newFixture() fixture {
	repo := newFakeRepo()
	store := &fakeStore{objects: map[string]bool{}}
	bus := &recordingBus{}
	resolver := fakeResolver{tokens: map[string]ports.PublicPaymentRequest{}}
	return fixture{svc: New(repo, store, resolver, bus, logger.Nop()), repo: repo, store: store, bus: bus}
}

func (f fixture) seedRequest(status workflow.InspectionStatus, estimate *float64) repository.RequestSnapshot {
	req := repository.RequestSnapshot{
		ID:            uuid.New(),
		ClientID:      client.UserID,
		Status:        status,
		PaymentStatus: workflow.PaymentUnpaid,
		EstimatedCost: estimate,
	}
	f.repo.requests[req.ID] = req
	return req
}

// seedPendingReceipt puts a request in payment-submitted with a pending receipt.
func (f fixture) seedPendingReceipt(estimate *float64, amount float64) repository.Receipt {
	req := f.seedRequest(workflow.InspectionPaymentSubmitted, estimate)
	receipt := repository.Receipt{
		ID:                  uuid.New(),
		InspectionRequestID: req.ID,
		AmountEntered:       amount,
		EstimatedCost:       estimate,
		ReceiptFileKey:      receiptFolder(req.ID) + "/r.jpg",
		Status:              workflow.ReceiptPending,
	}
	f.repo.receipts[receipt.ID] = receipt
	return receipt
}

func ptr(v float64) *float64 { return &v }

func TestApproveEnabled(t *testing.T) {
	tests := []struct {
		name     string
		estimate *float64
		amount   float64
		want     bool
	}{
		{"below estimate", ptr(500), 499, false},
		{"equal to estimate", ptr(500), 500, true},
		{"above estimate", ptr(500), 750, true},
		{"zero estimate", ptr(0), 500, false},
		{"missing estimate", nil, 500, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApproveEnabled(tt.estimate, tt.amount); got != tt.want {
				t.Fatalf("ApproveEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyPaymentApproveBoundary(t *testing.T) {
	tests := []struct {
		name     string
		estimate *float64
		amount   float64
		wantKind apperr.Kind
	}{
		{"499 against 500 fails", ptr(500), 499, apperr.KindValidation},
		{"500 against 500 succeeds", ptr(500), 500, apperr.KindUnknown},
		{"zero estimate fails", ptr(0), 500, apperr.KindValidation},
		{"missing estimate fails", nil, 500, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			receipt := f.seedPendingReceipt(tt.estimate, tt.amount)

			got, err := f.svc.VerifyPayment(context.Background(), csr, receipt.ID, VerifyInput{EnteredAmount: tt.amount, Action: ActionApprove})
			if tt.wantKind != apperr.KindUnknown {
				if !apperr.Is(err, tt.wantKind) {
					t.Fatalf("expected %v, got %v", tt.wantKind, err)
				}
				if f.repo.receipts[receipt.ID].Status != workflow.ReceiptPending {
					t.Fatal("receipt must stay pending after a rejected approval")
				}
				if len(f.bus.names()) != 0 {
					t.Fatalf("no events expected, got %v", f.bus.names())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != workflow.ReceiptApproved {
				t.Fatalf("expected approved receipt, got %s", got.Status)
			}
			req := f.repo.requests[receipt.InspectionRequestID]
			if req.Status != workflow.InspectionVerified || req.PaymentStatus != workflow.PaymentPaid {
				t.Fatalf("expected verified/paid request, got %s/%s", req.Status, req.PaymentStatus)
			}
			names := f.bus.names()
			if len(names) != 2 || names[0] != events.NamePaymentVerified || names[1] != events.NameInspectionStatusChanged {
				t.Fatalf("unexpected events %v", names)
			}
		})
	}
}

func TestVerifyPaymentReject(t *testing.T) {
	f := newFixture()
	receipt := f.seedPendingReceipt(ptr(500), 100)
	reason := "  amount does not match  "

	got, err := f.svc.VerifyPayment(context.Background(), csr, receipt.ID, VerifyInput{EnteredAmount: 100, Action: ActionReject, Reason: &reason})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != workflow.ReceiptRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}
	if got.RejectionReason == nil || *got.RejectionReason != "amount does not match" {
		t.Fatalf("expected trimmed reason, got %v", got.RejectionReason)
	}
	req := f.repo.requests[receipt.InspectionRequestID]
	if req.Status != workflow.InspectionPaymentRequired || req.PaymentStatus != workflow.PaymentRejected {
		t.Fatalf("expected payment-required/rejected, got %s/%s", req.Status, req.PaymentStatus)
	}
}

func TestVerifyPaymentTwiceConflicts(t *testing.T) {
	f := newFixture()
	receipt := f.seedPendingReceipt(ptr(500), 500)
	ctx := context.Background()

	if _, err := f.svc.VerifyPayment(ctx, csr, receipt.ID, VerifyInput{EnteredAmount: 500, Action: ActionApprove}); err != nil {
		t.Fatalf("first verification failed: %v", err)
	}
	_, err := f.svc.VerifyPayment(ctx, csr, receipt.ID, VerifyInput{EnteredAmount: 500, Action: ActionReject})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestVerifyPaymentRequiresStaff(t *testing.T) {
	f := newFixture()
	receipt := f.seedPendingReceipt(ptr(500), 500)

	_, err := f.svc.VerifyPayment(context.Background(), client, receipt.ID, VerifyInput{EnteredAmount: 500, Action: ActionApprove})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestVerifyRequestPaymentChecksOwnership(t *testing.T) {
	f := newFixture()
	receipt := f.seedPendingReceipt(ptr(500), 500)

	_, err := f.svc.VerifyRequestPayment(context.Background(), csr, uuid.New(), receipt.ID, VerifyInput{EnteredAmount: 500, Action: ActionApprove})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for mismatched request, got %v", err)
	}
}

func TestSubmitReceipt(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(workflow.InspectionPaymentRequired, ptr(500))
	key := receiptFolder(req.ID) + "/receipt-1234.jpg"
	f.store.objects[key] = true

	receipt, err := f.svc.SubmitReceipt(context.Background(), client, req.ID, SubmitInput{Amount: 500, FileKey: key})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Status != workflow.ReceiptPending || receipt.EstimatedCost == nil || *receipt.EstimatedCost != 500 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if receipt.SubmittedBy == nil || *receipt.SubmittedBy != client.UserID {
		t.Fatal("expected submitter to be recorded")
	}
	after := f.repo.requests[req.ID]
	if after.Status != workflow.InspectionPaymentSubmitted || after.PaymentStatus != workflow.PaymentAwaitingVerification {
		t.Fatalf("unexpected request state %s/%s", after.Status, after.PaymentStatus)
	}
	names := f.bus.names()
	if len(names) != 2 || names[0] != events.NamePaymentSubmitted {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestSubmitReceiptRejections(t *testing.T) {
	other := authz.NewActor(uuid.New(), []string{authz.RoleClient}, time.Time{})

	tests := []struct {
		name     string
		actor    authz.Actor
		status   workflow.InspectionStatus
		amount   float64
		key      func(id uuid.UUID) string
		uploaded bool
		wantKind apperr.Kind
	}{
		{"other client", other, workflow.InspectionPaymentRequired, 500, func(id uuid.UUID) string { return receiptFolder(id) + "/a.jpg" }, true, apperr.KindForbidden},
		{"zero amount", client, workflow.InspectionPaymentRequired, 0, func(id uuid.UUID) string { return receiptFolder(id) + "/a.jpg" }, true, apperr.KindValidation},
		{"foreign file key", client, workflow.InspectionPaymentRequired, 500, func(uuid.UUID) string { return "receipts/someone-else/a.jpg" }, true, apperr.KindValidation},
		{"file not uploaded", client, workflow.InspectionPaymentRequired, 500, func(id uuid.UUID) string { return receiptFolder(id) + "/a.jpg" }, false, apperr.KindValidation},
		{"wrong request status", client, workflow.InspectionPending, 500, func(id uuid.UUID) string { return receiptFolder(id) + "/a.jpg" }, true, apperr.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := f.seedRequest(tt.status, ptr(500))
			key := tt.key(req.ID)
			f.store.objects[key] = tt.uploaded

			_, err := f.svc.SubmitReceipt(context.Background(), tt.actor, req.ID, SubmitInput{Amount: tt.amount, FileKey: key})
			if !apperr.Is(err, tt.wantKind) {
				t.Fatalf("expected %v, got %v", tt.wantKind, err)
			}
			if f.repo.requests[req.ID].Status != tt.status {
				t.Fatal("request status must not change")
			}
		})
	}
}

func TestSubmitPublicReceipt(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(workflow.InspectionPaymentRequired, ptr(500))
	f.svc.resolver = fakeResolver{tokens: map[string]ports.PublicPaymentRequest{
		"tok": {InspectionRequestID: req.ID, ClientID: req.ClientID},
	}}
	key := receiptFolder(req.ID) + "/r.pdf"
	f.store.objects[key] = true

	receipt, err := f.svc.SubmitPublicReceipt(context.Background(), "tok", SubmitInput{Amount: 500, FileKey: key})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.SubmittedBy != nil {
		t.Fatal("public submissions have no submitting user")
	}

	_, err = f.svc.SubmitPublicReceipt(context.Background(), "expired", SubmitInput{Amount: 500, FileKey: key})
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone for expired token, got %v", err)
	}
}

func TestRequestReceiptUpload(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(workflow.InspectionPaymentRequired, ptr(500))

	presigned, err := f.svc.RequestReceiptUpload(context.Background(), client, req.ID, UploadInput{FileName: "r.jpg", ContentType: "image/jpeg", Size: 1024})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if presigned.FileKey != receiptFolder(req.ID)+"/r.jpg" {
		t.Fatalf("unexpected key %q", presigned.FileKey)
	}

	verified := f.seedRequest(workflow.InspectionVerified, ptr(500))
	_, err = f.svc.RequestReceiptUpload(context.Background(), client, verified.ID, UploadInput{FileName: "r.jpg", ContentType: "image/jpeg", Size: 1024})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict once verified, got %v", err)
	}
}

func TestListReceipts(t *testing.T) {
	f := newFixture()
	receipt := f.seedPendingReceipt(ptr(500), 500)

	views, err := f.svc.ListReceipts(context.Background(), client, receipt.InspectionRequestID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 1 || views[0].DownloadURL == "" {
		t.Fatalf("expected one receipt with a download link, got %+v", views)
	}

	stranger := authz.NewActor(uuid.New(), []string{authz.RoleClient}, time.Time{})
	if _, err := f.svc.ListReceipts(context.Background(), stranger, receipt.InspectionRequestID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestParseAction(t *testing.T) {
	for raw, want := range map[string]Action{"approve": ActionApprove, "Approved": ActionApprove, "reject": ActionReject, " rejected ": ActionReject} {
		got, err := ParseAction(raw)
		if err != nil || got != want {
			t.Fatalf("ParseAction(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseAction("verified"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
