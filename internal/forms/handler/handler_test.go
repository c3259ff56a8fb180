package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"interior_portal_backend/internal/forms/ports"
	"interior_portal_backend/internal/forms/repository"
	"interior_portal_backend/internal/forms/service"
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
	form   repository.Form
	photos []repository.Photo
}

func (s *stubRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Form, error) {
	if id != s.form.ID {
		return repository.Form{}, apperr.NotFound("inspector form not found")
	}
	return s.form, nil
}

func (s *stubRepo) AppendPhoto(_ context.Context, _ uuid.UUID, p repository.Photo) (repository.Form, error) {
	s.photos = append(s.photos, p)
	s.form.Photos = append(s.form.Photos, p)
	return s.form, nil
}

type stubStore struct{ keys []string }

func (s *stubStore) PutPhoto(_ context.Context, folder, fileName, _ string, _ []byte) (string, error) {
	key := folder + "/" + fileName
	s.keys = append(s.keys, key)
	return key, nil
}
func (s *stubStore) PresignPhoto(context.Context, string) (ports.PresignedURL, error) {
	return ports.PresignedURL{}, nil
}
func (s *stubStore) PutReport(context.Context, string, string, []byte) (string, error) {
	return "", nil
}
func (s *stubStore) PresignReport(context.Context, string) (ports.PresignedURL, error) {
	return ports.PresignedURL{}, nil
}
func (s *stubStore) DeleteReport(context.Context, string) error { return nil }

type stubRenderer struct{}

func (stubRenderer) RenderPDF(context.Context, []byte) ([]byte, error) { return nil, nil }

func newEngine(repo *stubRepo, store *stubStore, userID uuid.UUID, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.New(repo, store, store, stubRenderer{}, platformevents.NewInMemoryBus(logger.Nop()), logger.Nop())
	h := New(svc, validator.New())

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Set(httpkit.ContextRolesKey, roles)
		c.Next()
	})
	engine.POST("/inspector-forms/:id/photos", h.UploadPhoto)
	engine.POST("/inspector-forms/:id/review", h.Review)
	engine.GET("/inspector-forms", h.List)
	return engine
}

func multipartPhoto(t *testing.T, field, name, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestUploadPhotoHTTP(t *testing.T) {
	inspectorID := uuid.New()
	form := repository.Form{
		ID:                  uuid.New(),
		InspectionRequestID: uuid.New(),
		InspectorID:         inspectorID,
		CompletionStatus:    workflow.FormDraft,
	}
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

	tests := []struct {
		name       string
		field      string
		status     workflow.FormStatus
		wantStatus int
		wantPhotos int
	}{
		{name: "draft form accepts photo", field: "photo", status: workflow.FormDraft, wantStatus: http.StatusCreated, wantPhotos: 1},
		{name: "missing photo field", field: "file", status: workflow.FormDraft, wantStatus: http.StatusBadRequest},
		{name: "submitted form is locked", field: "photo", status: workflow.FormSubmitted, wantStatus: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := form
			f.CompletionStatus = tt.status
			repo := &stubRepo{form: f}
			store := &stubStore{}
			engine := newEngine(repo, store, inspectorID, authz.RoleInspector)

			body, contentType := multipartPhoto(t, tt.field, "kitchen.jpg", "image/jpeg", jpeg)
			req := httptest.NewRequest(http.MethodPost, "/inspector-forms/"+form.ID.String()+"/photos", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Len(t, repo.photos, tt.wantPhotos)
			if tt.wantPhotos > 0 {
				assert.Equal(t, "image/jpeg", repo.photos[0].ContentType)
				assert.True(t, strings.HasSuffix(store.keys[0], "kitchen.jpg"))
			}
		})
	}
}

func TestReviewRejectsUnknownDecision(t *testing.T) {
	repo := &stubRepo{form: repository.Form{ID: uuid.New()}}
	engine := newEngine(repo, &stubStore{}, uuid.New(), authz.RoleCSR)

	req := httptest.NewRequest(http.MethodPost, "/inspector-forms/"+repo.form.ID.String()+"/review", strings.NewReader(`{"decision":"maybe"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation failed")
}

func TestListRequiresRequestID(t *testing.T) {
	engine := newEngine(&stubRepo{}, &stubStore{}, uuid.New(), authz.RoleCSR)

	req := httptest.NewRequest(http.MethodGet, "/inspector-forms?inspectionRequestId=nope", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
