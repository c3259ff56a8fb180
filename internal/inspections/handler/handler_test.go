package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"interior_portal_backend/internal/inspections/ports"
	"interior_portal_backend/internal/inspections/repository"
	"interior_portal_backend/internal/inspections/service"
	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	platformevents "interior_portal_backend/platform/events"
	"interior_portal_backend/platform/httpkit"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/phone"
	"interior_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	repository.Repository
	item repository.InspectionRequest
}

func (s *stubRepo) GetByID(_ context.Context, id uuid.UUID) (repository.InspectionRequest, error) {
	if id != s.item.ID {
		return repository.InspectionRequest{}, apperr.NotFound("inspection request not found")
	}
	return s.item, nil
}

func (s *stubRepo) ChangeStatus(_ context.Context, c repository.StatusChange) (repository.StatusOutcome, error) {
	s.item.Status = c.To
	return repository.StatusOutcome{Request: s.item}, nil
}

type noLinks struct{}

func (noLinks) CreatePaymentLink(context.Context, ports.PaymentLinkRequest) (ports.PaymentLink, error) {
	return ports.PaymentLink{}, nil
}

type cfg struct{}

func (cfg) GetAppBaseURL() string             { return "http://localhost" }
func (cfg) GetMercadoPagoAccessToken() string { return "" }
func (cfg) GetPaymentGatewayMock() bool       { return true }
func (cfg) GetPaymentCurrency() string        { return "PHP" }
func (cfg) GetPaymentLinkTTL() time.Duration  { return time.Hour }

func newEngine(repo *stubRepo, roles []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	bus := platformevents.NewInMemoryBus(logger.Nop())
	svc := service.New(repo, noLinks{}, phone.NewNormalizer(""), cfg{}, bus, logger.Nop())
	h := New(svc, validator.New())

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextRolesKey, roles)
		c.Next()
	})
	engine.PATCH("/inspection-requests/:id/status", h.UpdateStatus)
	return engine
}

func patchStatus(t *testing.T, engine *gin.Engine, id string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/inspection-requests/"+id+"/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestUpdateStatusHTTP(t *testing.T) {
	tests := []struct {
		name       string
		from       workflow.InspectionStatus
		body       string
		wantStatus int
	}{
		{"legal", workflow.InspectionPending, `{"status":"payment-required"}`, http.StatusOK},
		{"unknown status", workflow.InspectionPending, `{"status":"archived"}`, http.StatusBadRequest},
		{"missing status", workflow.InspectionPending, `{}`, http.StatusBadRequest},
		{"illegal transition", workflow.InspectionCompleted, `{"status":"pending"}`, http.StatusConflict},
		{"owned by payments", workflow.InspectionPaymentSubmitted, `{"status":"verified"}`, http.StatusConflict},
		{"owned by assignments", workflow.InspectionInProgress, `{"status":"completed"}`, http.StatusConflict},
		{"cancel", workflow.InspectionAssigned, `{"status":"cancelled","reason":"duplicate"}`, http.StatusOK},
		{"malformed json", workflow.InspectionPending, `{"status":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{item: repository.InspectionRequest{ID: uuid.New(), Status: tt.from}}
			rec := patchStatus(t, newEngine(repo, []string{authz.RoleCSR}), repo.item.ID.String(), tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestUpdateStatusConflictCarriesTransitionDetails(t *testing.T) {
	repo := &stubRepo{item: repository.InspectionRequest{ID: uuid.New(), Status: workflow.InspectionCancelled}}
	rec := patchStatus(t, newEngine(repo, []string{authz.RoleCSR}), repo.item.ID.String(), `{"status":"verified"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cancelled", body.Details["from"])
	assert.Equal(t, "verified", body.Details["to"])
}

func TestUpdateStatusBadID(t *testing.T) {
	repo := &stubRepo{item: repository.InspectionRequest{ID: uuid.New()}}
	rec := patchStatus(t, newEngine(repo, []string{authz.RoleCSR}), "not-a-uuid", `{"status":"verified"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = patchStatus(t, newEngine(repo, []string{authz.RoleCSR}), uuid.NewString(), `{"status":"verified"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
