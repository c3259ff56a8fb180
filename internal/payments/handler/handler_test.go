package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"interior_portal_backend/internal/payments/repository"
	"interior_portal_backend/internal/payments/service"
	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	platformevents "interior_portal_backend/platform/events"
	"interior_portal_backend/platform/httpkit"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	repository.Repository
	receipt repository.Receipt
	applied *repository.Verification
}

func (s *stubRepo) GetReceipt(_ context.Context, id uuid.UUID) (repository.Receipt, error) {
	if id != s.receipt.ID {
		return repository.Receipt{}, apperr.NotFound("payment receipt not found")
	}
	return s.receipt, nil
}

func (s *stubRepo) ApplyVerification(_ context.Context, v repository.Verification) (repository.Outcome, error) {
	s.applied = &v
	s.receipt.Status = workflow.ReceiptRejected
	if v.Approve {
		s.receipt.Status = workflow.ReceiptApproved
	}
	return repository.Outcome{
		Receipt:        s.receipt,
		Request:        repository.RequestSnapshot{ID: s.receipt.InspectionRequestID, Status: workflow.InspectionVerified},
		PreviousStatus: workflow.InspectionPaymentSubmitted,
	}, nil
}

func newEngine(repo *stubRepo, roles []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.New(repo, nil, nil, platformevents.NewInMemoryBus(logger.Nop()), logger.Nop())
	h := New(svc, validator.New())

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextRolesKey, roles)
		c.Next()
	})
	engine.POST("/inspection-estimation/:id/verify-payment", h.VerifyLegacy)
	engine.POST("/inspection-requests/:id/payments/:paymentId/verify", h.Verify)
	return engine
}

func post(t *testing.T, engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func pendingReceipt() repository.Receipt {
	estimate := 500.0
	return repository.Receipt{
		ID:                  uuid.New(),
		InspectionRequestID: uuid.New(),
		AmountEntered:       500,
		EstimatedCost:       &estimate,
		Status:              workflow.ReceiptPending,
	}
}

func TestVerifyLegacyHTTP(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantWrite  bool
	}{
		{"approve at estimate", `{"paymentAmount":500,"status":"approve"}`, http.StatusOK, true},
		{"approve below estimate", `{"paymentAmount":499,"status":"approve"}`, http.StatusBadRequest, false},
		{"reject below estimate", `{"paymentAmount":10,"status":"reject"}`, http.StatusOK, true},
		{"unknown action", `{"paymentAmount":500,"status":"verified"}`, http.StatusBadRequest, false},
		{"missing action", `{"paymentAmount":500}`, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{receipt: pendingReceipt()}
			rec := post(t, newEngine(repo, []string{authz.RoleCSR}), "/inspection-estimation/"+repo.receipt.ID.String()+"/verify-payment", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantWrite, repo.applied != nil)
		})
	}
}

func TestVerifyForbiddenForClient(t *testing.T) {
	repo := &stubRepo{receipt: pendingReceipt()}
	rec := post(t, newEngine(repo, []string{authz.RoleClient}), "/inspection-estimation/"+repo.receipt.ID.String()+"/verify-payment", `{"paymentAmount":500,"status":"approve"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, repo.applied)
}

func TestVerifyScopedToRequest(t *testing.T) {
	repo := &stubRepo{receipt: pendingReceipt()}
	engine := newEngine(repo, []string{authz.RoleCSR})

	rec := post(t, engine, "/inspection-requests/"+uuid.NewString()+"/payments/"+repo.receipt.ID.String()+"/verify", `{"paymentAmount":500,"action":"approve"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(t, engine, "/inspection-requests/"+repo.receipt.InspectionRequestID.String()+"/payments/"+repo.receipt.ID.String()+"/verify", `{"paymentAmount":500,"action":"approve"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"approved"`)
}

func TestVerifyAcceptsReceiptStatusWords(t *testing.T) {
	tests := []struct {
		name       string
		action     string
		wantStatus int
		wantState  workflow.ReceiptStatus
	}{
		{"approve", "approve", http.StatusOK, workflow.ReceiptApproved},
		{"approved", "approved", http.StatusOK, workflow.ReceiptApproved},
		{"rejected", "rejected", http.StatusOK, workflow.ReceiptRejected},
		{"unknown", "verified", http.StatusBadRequest, workflow.ReceiptPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{receipt: pendingReceipt()}
			path := "/inspection-requests/" + repo.receipt.InspectionRequestID.String() + "/payments/" + repo.receipt.ID.String() + "/verify"
			rec := post(t, newEngine(repo, []string{authz.RoleCSR}), path, `{"paymentAmount":500,"action":"`+tt.action+`"}`)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantState, repo.receipt.Status)
		})
	}
}
