package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"interior_portal_backend/internal/boards/repository"
	"interior_portal_backend/internal/boards/service"
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
	item   repository.MaterialRequest
	writes int
}

func (s *stubRepo) ListMaterialRequests(context.Context, repository.MaterialFilter) ([]repository.MaterialRequest, error) {
	return []repository.MaterialRequest{s.item}, nil
}

func (s *stubRepo) SetMaterialStatus(_ context.Context, id uuid.UUID, status workflow.MaterialStatus) (repository.MaterialRequest, workflow.MaterialStatus, error) {
	if id != s.item.ID {
		return repository.MaterialRequest{}, "", apperr.NotFound("material request not found")
	}
	prev := s.item.Status
	s.item.Status = status
	s.writes++
	return s.item, prev, nil
}

func newEngine(repo *stubRepo, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.New(repo, platformevents.NewInMemoryBus(logger.Nop()), logger.Nop())
	h := New(svc, validator.New())

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextRolesKey, []string{role})
		c.Next()
	})
	engine.GET("/material-requests/board", h.MaterialBoard)
	engine.PATCH("/material-requests/:id/status", h.SetMaterialStatus)
	return engine
}

func TestSetMaterialStatusHTTP(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		path       string
		body       string
		wantStatus int
		wantWrites int
	}{
		{name: "move", role: authz.RoleWarehouse, body: `{"status":"Delivered"}`, wantStatus: http.StatusOK, wantWrites: 1},
		{name: "unknown column", role: authz.RoleWarehouse, body: `{"status":"Lost"}`, wantStatus: http.StatusBadRequest},
		{name: "missing status", role: authz.RoleWarehouse, body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "bad id", role: authz.RoleWarehouse, path: "/material-requests/nope/status", body: `{"status":"Ordered"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown id", role: authz.RoleWarehouse, path: "/material-requests/" + uuid.NewString() + "/status", body: `{"status":"Ordered"}`, wantStatus: http.StatusNotFound},
		{name: "forbidden role", role: authz.RoleInspector, body: `{"status":"Ordered"}`, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{item: repository.MaterialRequest{ID: uuid.New(), Status: workflow.MaterialPending}}
			path := tt.path
			if path == "" {
				path = "/material-requests/" + repo.item.ID.String() + "/status"
			}

			req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			newEngine(repo, tt.role).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantWrites, repo.writes)
		})
	}
}

func TestMaterialBoardHTTP(t *testing.T) {
	repo := &stubRepo{item: repository.MaterialRequest{ID: uuid.New(), Status: workflow.MaterialOrdered}}
	engine := newEngine(repo, authz.RoleProjectManager)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/material-requests/board", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var board struct {
		Columns []string                                `json:"columns"`
		Items   map[string][]repository.MaterialRequest `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	assert.Equal(t, []string{"Pending", "Approved", "Ordered", "Delivered", "Rejected"}, board.Columns)
	assert.Len(t, board.Items["Ordered"], 1)
	assert.Empty(t, board.Items["Pending"])

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/material-requests/board?projectId=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
