package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"interior_portal_backend/internal/auth/token"
	"interior_portal_backend/internal/events"
	"interior_portal_backend/internal/inspections/ports"
	"interior_portal_backend/internal/inspections/repository"
	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/phone"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]repository.InspectionRequest
	// open assignments per request, released on cancellation
	open map[uuid.UUID][]repository.ReleasedAssignment
}

func newFakeRepo(items ...repository.InspectionRequest) *fakeRepo {
	f := &fakeRepo{
		items: map[uuid.UUID]repository.InspectionRequest{},
		open:  map[uuid.UUID][]repository.ReleasedAssignment{},
	}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.InspectionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return repository.InspectionRequest{}, apperr.NotFound("inspection request not found")
	}
	return it, nil
}

func (f *fakeRepo) GetByTokenHash(_ context.Context, hash string) (repository.InspectionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.VerificationTokenHash != nil && *it.VerificationTokenHash == hash {
			return it, nil
		}
	}
	return repository.InspectionRequest{}, apperr.NotFound("inspection request not found")
}

func (f *fakeRepo) List(_ context.Context, p repository.ListParams) ([]repository.InspectionRequest, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.InspectionRequest
	for _, it := range f.items {
		if p.ClientID != nil && it.ClientID != *p.ClientID {
			continue
		}
		if p.Status != nil && it.Status != *p.Status {
			continue
		}
		out = append(out, it)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Create(_ context.Context, req repository.InspectionRequest) (repository.InspectionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req.ID = uuid.New()
	req.Status = workflow.InspectionPending
	req.PaymentStatus = workflow.PaymentUnpaid
	f.items[req.ID] = req
	return req, nil
}

func (f *fakeRepo) ChangeStatus(_ context.Context, c repository.StatusChange) (repository.StatusOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[c.ID]
	if !ok {
		return repository.StatusOutcome{}, apperr.NotFound("inspection request not found")
	}
	if it.Status != c.From {
		return repository.StatusOutcome{}, &workflow.TransitionError{Entity: "inspection request", From: string(it.Status), To: string(c.To)}
	}
	if err := workflow.Inspections.Transition(it.Status, c.To); err != nil {
		return repository.StatusOutcome{}, err
	}
	it.Status = c.To
	if c.Reason != nil {
		it.StatusReason = c.Reason
	}
	f.items[c.ID] = it

	out := repository.StatusOutcome{Request: it}
	if c.To == workflow.InspectionCancelled {
		out.Released = f.open[c.ID]
		delete(f.open, c.ID)
	}
	return out, nil
}

func (f *fakeRepo) IssuePaymentLink(_ context.Context, u repository.PaymentLinkUpdate) (repository.InspectionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.items[u.ID]
	if err := workflow.Inspections.Transition(it.Status, workflow.InspectionPaymentRequired); err != nil {
		return repository.InspectionRequest{}, err
	}
	it.Status = workflow.InspectionPaymentRequired
	it.EstimatedCost = &u.EstimatedCost
	it.PaymentLinkURL = &u.LinkURL
	it.VerificationTokenHash = &u.TokenHash
	it.VerificationExpiresAt = &u.ExpiresAt
	f.items[u.ID] = it
	return it, nil
}

func (f *fakeRepo) ExpirePaymentLink(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.items[id]
	if it.Status != workflow.InspectionPaymentRequired || it.PaymentLinkURL == nil || it.VerificationExpiresAt.After(now) {
		return false, nil
	}
	it.PaymentLinkURL = nil
	f.items[id] = it
	return true, nil
}

type fakeLinks struct {
	calls []ports.PaymentLinkRequest
	err   error
}

func (f *fakeLinks) CreatePaymentLink(_ context.Context, req ports.PaymentLinkRequest) (ports.PaymentLink, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return ports.PaymentLink{}, f.err
	}
	return ports.PaymentLink{URL: "https://checkout.example/" + req.InspectionRequestID.String(), ProviderRef: "pref-1"}, nil
}

type fakeExpiry struct {
	scheduled map[uuid.UUID]time.Time
}

func (f *fakeExpiry) SchedulePaymentLinkExpiry(_ context.Context, id uuid.UUID, runAt time.Time) error {
	f.scheduled[id] = runAt
	return nil
}

type paymentConfig struct{}

func (paymentConfig) GetAppBaseURL() string             { return "https://portal.example/" }
func (paymentConfig) GetMercadoPagoAccessToken() string { return "" }
func (paymentConfig) GetPaymentGatewayMock() bool       { return true }
func (paymentConfig) GetPaymentCurrency() string        { return "PHP" }
func (paymentConfig) GetPaymentLinkTTL() time.Duration  { return 72 * time.Hour }

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

var (
	csr    = authz.NewActor(uuid.New(), []string{authz.RoleCSR}, time.Time{})
	client = authz.NewActor(uuid.New(), []string{authz.RoleClient}, time.Time{})
)

func seed(status workflow.InspectionStatus) repository.InspectionRequest {
	return repository.InspectionRequest{
		ID:              uuid.New(),
		ClientID:        client.UserID,
		ContactEmail:    "client@example.com",
		PropertyAddress: "12 Acacia St",
		PropertyType:    "condo",
		Status:          status,
		PaymentStatus:   workflow.PaymentUnpaid,
	}
}

func newTestService(items ...repository.InspectionRequest) (*Service, *fakeRepo, *fakeLinks, *recordingBus) {
	repo := newFakeRepo(items...)
	links := &fakeLinks{}
	bus := &recordingBus{}
	return New(repo, links, phone.NewNormalizer("PH"), paymentConfig{}, bus, logger.Nop()), repo, links, bus
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		from     workflow.InspectionStatus
		to       string
		wantKind apperr.Kind
	}{
		{"legal move", workflow.InspectionPending, "payment-required", apperr.KindUnknown},
		{"cancel from verified", workflow.InspectionVerified, "cancelled", apperr.KindUnknown},
		{"cancel from in-progress", workflow.InspectionInProgress, "cancelled", apperr.KindUnknown},
		{"unknown status", workflow.InspectionPending, "archived", apperr.KindValidation},
		{"empty status", workflow.InspectionPending, "", apperr.KindValidation},
		{"illegal jump", workflow.InspectionPending, "completed", apperr.KindConflict},
		{"terminal", workflow.InspectionCompleted, "in-progress", apperr.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := seed(tt.from)
			svc, repo, _, _ := newTestService(req)

			updated, err := svc.UpdateStatus(context.Background(), csr, req.ID, tt.to, nil)
			if tt.wantKind == apperr.KindUnknown {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if string(updated.Status) != tt.to {
					t.Fatalf("expected %s, got %s", tt.to, updated.Status)
				}
				return
			}
			if !apperr.Is(err, tt.wantKind) {
				t.Fatalf("expected %v, got %v", tt.wantKind, err)
			}
			if repo.items[req.ID].Status != tt.from {
				t.Fatal("status must be unchanged on failure")
			}
		})
	}
}

func TestUpdateStatusRefusesMovesOwnedElsewhere(t *testing.T) {
	tests := []struct {
		name string
		from workflow.InspectionStatus
		to   string
		use  string
	}{
		{"receipt submission", workflow.InspectionPaymentRequired, "payment-submitted", "POST /inspection-requests/:id/payments"},
		{"payment approval", workflow.InspectionPaymentSubmitted, "verified", "POST /inspection-requests/:id/payments/:paymentId/verify"},
		{"payment rejection", workflow.InspectionPaymentSubmitted, "payment-required", "POST /inspection-requests/:id/payments/:paymentId/verify"},
		{"assignment", workflow.InspectionVerified, "assigned", "POST /assignments"},
		{"inspector decline", workflow.InspectionAssigned, "verified", "POST /assignments/:id/decline"},
		{"inspector accept", workflow.InspectionAssigned, "in-progress", "POST /assignments/:id/accept"},
		{"inspection complete", workflow.InspectionInProgress, "completed", "POST /assignments/:id/complete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := seed(tt.from)
			svc, repo, _, bus := newTestService(req)

			_, err := svc.UpdateStatus(context.Background(), csr, req.ID, tt.to, nil)
			if !apperr.Is(err, apperr.KindConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Details == nil {
				t.Fatalf("expected details naming the owning endpoint, got %v", err)
			}
			if details, _ := appErr.Details.(map[string]string); details["use"] != tt.use {
				t.Fatalf("expected use=%q, got %v", tt.use, appErr.Details)
			}
			got := repo.items[req.ID]
			if got.Status != tt.from || got.PaymentStatus != workflow.PaymentUnpaid || len(bus.events) != 0 {
				t.Fatalf("request must be untouched, got %s/%s with %d events", got.Status, got.PaymentStatus, len(bus.events))
			}
		})
	}
}

func TestCancelReleasesOpenAssignments(t *testing.T) {
	req := seed(workflow.InspectionInProgress)
	svc, repo, _, bus := newTestService(req)
	assignmentID, inspectorID := uuid.New(), uuid.New()
	repo.open[req.ID] = []repository.ReleasedAssignment{{
		ID:             assignmentID,
		InspectorID:    inspectorID,
		From:           workflow.AssignmentInProgress,
		InspectorFreed: true,
	}}

	updated, err := svc.Cancel(context.Background(), csr, req.ID, "client moved out")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != workflow.InspectionCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}
	if len(bus.events) != 2 {
		t.Fatalf("expected request and assignment events, got %v", bus.events)
	}
	moved, ok := bus.events[1].(events.AssignmentUpdated)
	if !ok {
		t.Fatalf("expected AssignmentUpdated, got %T", bus.events[1])
	}
	if moved.AssignmentID != assignmentID || moved.InspectorID != inspectorID ||
		moved.From != string(workflow.AssignmentInProgress) || moved.To != string(workflow.AssignmentCancelled) {
		t.Fatalf("unexpected assignment event %+v", moved)
	}

	again, err := svc.Cancel(context.Background(), csr, req.ID, "client moved out")
	if err != nil || again.Status != workflow.InspectionCancelled || len(bus.events) != 2 {
		t.Fatalf("repeated cancel must be a silent no-op, got %v with %d events", err, len(bus.events))
	}
}

func TestUpdateStatusSameStateIsNoop(t *testing.T) {
	req := seed(workflow.InspectionVerified)
	svc, _, _, bus := newTestService(req)

	updated, err := svc.UpdateStatus(context.Background(), csr, req.ID, "verified", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != workflow.InspectionVerified || len(bus.events) != 0 {
		t.Fatalf("expected silent no-op, got %s with %d events", updated.Status, len(bus.events))
	}
}

func TestUpdateStatusRequiresStaff(t *testing.T) {
	req := seed(workflow.InspectionPending)
	svc, _, _, _ := newTestService(req)
	if _, err := svc.UpdateStatus(context.Background(), client, req.ID, "cancelled", nil); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCancelRequiresReasonAndOwnership(t *testing.T) {
	req := seed(workflow.InspectionPending)
	svc, _, _, bus := newTestService(req)
	ctx := context.Background()

	if _, err := svc.Cancel(ctx, client, req.ID, "   "); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stranger := authz.NewActor(uuid.New(), []string{authz.RoleClient}, time.Time{})
	if _, err := svc.Cancel(ctx, stranger, req.ID, "changed my mind"); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	updated, err := svc.Cancel(ctx, client, req.ID, "changed my mind")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != workflow.InspectionCancelled || updated.StatusReason == nil {
		t.Fatalf("unexpected result %+v", updated)
	}
	if len(bus.events) != 1 || bus.events[0].EventName() != events.NameInspectionStatusChanged {
		t.Fatalf("expected status change event, got %v", bus.events)
	}
}

func TestCreate(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	in := CreateInput{
		ContactName:     "Ana <b>Cruz</b>",
		ContactEmail:    "Ana@Example.com",
		ContactPhone:    "09171234567",
		PropertyAddress: "12 Acacia St",
		PropertyType:    "condo",
	}
	created, err := svc.Create(ctx, client, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ClientID != client.UserID || created.ContactPhone != "+639171234567" || created.ContactName != "Ana Cruz" {
		t.Fatalf("unexpected record %+v", created)
	}
	if created.Status != workflow.InspectionPending {
		t.Fatalf("expected pending, got %s", created.Status)
	}

	in.ContactPhone = "call me"
	if _, err := svc.Create(ctx, client, in); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	in.ContactPhone = "09171234567"
	if _, err := svc.Create(ctx, csr, in); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("CSR must name the client, got %v", err)
	}
}

func TestGeneratePaymentLink(t *testing.T) {
	req := seed(workflow.InspectionPending)
	svc, repo, links, _ := newTestService(req)
	expiry := &fakeExpiry{scheduled: map[uuid.UUID]time.Time{}}
	svc.SetExpiryScheduler(expiry)
	ctx := context.Background()

	if _, err := svc.GeneratePaymentLink(ctx, csr, req.ID, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for zero cost, got %v", err)
	}

	result, err := svc.GeneratePaymentLink(ctx, csr, req.ID, 1500)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Request.Status != workflow.InspectionPaymentRequired {
		t.Fatalf("expected payment-required, got %s", result.Request.Status)
	}
	if result.PublicURL != "https://portal.example/pay/"+result.Token {
		t.Fatalf("unexpected public url %s", result.PublicURL)
	}
	if !bytes.HasPrefix(result.QRCodePNG, []byte("\x89PNG")) {
		t.Fatal("expected a PNG QR code")
	}
	stored := repo.items[req.ID]
	if stored.VerificationTokenHash == nil || *stored.VerificationTokenHash != token.HashSHA256(result.Token) {
		t.Fatal("only the token hash may be stored")
	}
	if len(links.calls) != 1 || links.calls[0].Amount != 1500 {
		t.Fatalf("unexpected provider calls %+v", links.calls)
	}
	if runAt, ok := expiry.scheduled[req.ID]; !ok || !runAt.Equal(result.ExpiresAt) {
		t.Fatalf("expected expiry job at %v, got %v", result.ExpiresAt, runAt)
	}
}

func TestGeneratePaymentLinkRejectsLateStatus(t *testing.T) {
	req := seed(workflow.InspectionVerified)
	svc, _, links, _ := newTestService(req)

	_, err := svc.GeneratePaymentLink(context.Background(), csr, req.ID, 900)
	var te *workflow.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected transition error, got %v", err)
	}
	if len(links.calls) != 0 {
		t.Fatal("provider must not be called for an illegal transition")
	}
}

func TestGeneratePaymentLinkProviderFailure(t *testing.T) {
	req := seed(workflow.InspectionPending)
	svc, repo, links, _ := newTestService(req)
	links.err = errors.New("provider down")

	if _, err := svc.GeneratePaymentLink(context.Background(), csr, req.ID, 900); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if repo.items[req.ID].Status != workflow.InspectionPending {
		t.Fatal("request must stay pending when the provider fails")
	}
}

func TestResolvePaymentToken(t *testing.T) {
	req := seed(workflow.InspectionPending)
	svc, _, _, _ := newTestService(req)
	ctx := context.Background()

	result, err := svc.GeneratePaymentLink(ctx, csr, req.ID, 700)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := svc.ResolvePaymentToken(ctx, "nope"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	got, err := svc.ResolvePaymentToken(ctx, result.Token)
	if err != nil || got.ID != req.ID {
		t.Fatalf("resolve: %v", err)
	}

	svc.now = func() time.Time { return result.ExpiresAt.Add(time.Second) }
	if _, err := svc.ResolvePaymentToken(ctx, result.Token); !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone, got %v", err)
	}
}

func TestExpirePaymentLink(t *testing.T) {
	req := seed(workflow.InspectionPending)
	svc, repo, _, _ := newTestService(req)
	ctx := context.Background()

	result, err := svc.GeneratePaymentLink(ctx, csr, req.ID, 700)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err := svc.ExpirePaymentLink(ctx, req.ID); err != nil {
		t.Fatalf("early expiry: %v", err)
	}
	if repo.items[req.ID].PaymentLinkURL == nil {
		t.Fatal("link must survive until its expiry")
	}

	svc.now = func() time.Time { return result.ExpiresAt }
	if err := svc.ExpirePaymentLink(ctx, req.ID); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if repo.items[req.ID].PaymentLinkURL != nil {
		t.Fatal("expected link to be withdrawn")
	}
	if repo.items[req.ID].VerificationTokenHash == nil {
		t.Fatal("token hash is kept so the public page can answer gone")
	}
}

func TestListScopesClientsToOwnRequests(t *testing.T) {
	mine := seed(workflow.InspectionPending)
	other := seed(workflow.InspectionPending)
	other.ClientID = uuid.New()
	svc, _, _, _ := newTestService(mine, other)
	ctx := context.Background()

	res, err := svc.List(ctx, client, ListFilter{})
	if err != nil || res.Total != 1 || res.Items[0].ID != mine.ID {
		t.Fatalf("client should see only own requests, got %+v (%v)", res, err)
	}
	res, err = svc.List(ctx, csr, ListFilter{})
	if err != nil || res.Total != 2 {
		t.Fatalf("staff should see all, got %+v (%v)", res, err)
	}
	bad := "archived"
	if _, err := svc.List(ctx, csr, ListFilter{Status: &bad}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Get(ctx, authz.NewActor(uuid.New(), []string{authz.RoleClient}, time.Time{}), mine.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
