package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"interior_portal_backend/internal/events"
	"interior_portal_backend/internal/forms/ports"
	"interior_portal_backend/internal/forms/report"
	"interior_portal_backend/internal/forms/repository"
	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/sanitize"

	"github.com/google/uuid"
)

// MaxPhotoSize caps a single room photo upload.
const MaxPhotoSize = 15 << 20

var photoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

// Decision is a reviewer's verdict on a submitted form.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReturn  Decision = "return"
)

type CreateInput struct {
	InspectionRequestID uuid.UUID
	RoomName            string
	RoomType            string
	Measurements        map[string]any
	ConditionNotes      *string
}

type UpdateInput struct {
	RoomName       *string
	RoomType       *string
	Measurements   map[string]any
	ConditionNotes *string
}

// PhotoInput is an uploaded image read fully into memory.
type PhotoInput struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ReportLink is the presigned download for a generated report.
type ReportLink = ports.PresignedURL

type Service struct {
	repo    repository.Repository
	photos  ports.PhotoStore
	reports ports.ReportStore
	pdf     ports.PDFRenderer
	bus     events.Bus
	log     *logger.Logger
	now     func() time.Time
}

func New(repo repository.Repository, photos ports.PhotoStore, reports ports.ReportStore, pdf ports.PDFRenderer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		photos:  photos,
		reports: reports,
		pdf:     pdf,
		bus:     bus,
		log:     log,
		now:     time.Now,
	}
}

// Create opens a draft form. Inspectors need an in-progress assignment on the request.
func (s *Service) Create(ctx context.Context, actor authz.Actor, in CreateInput) (repository.Form, error) {
	if !actor.HasRole(authz.RoleInspector) {
		return repository.Form{}, apperr.Forbidden("only inspectors can create forms")
	}
	roomName := sanitize.Text(in.RoomName)
	roomType := sanitize.Text(in.RoomType)
	if roomName == "" || roomType == "" {
		return repository.Form{}, apperr.Validation("room name and room type are required")
	}

	active, err := s.repo.HasActiveAssignment(ctx, in.InspectionRequestID, actor.UserID)
	if err != nil {
		return repository.Form{}, err
	}
	if !active {
		return repository.Form{}, apperr.Forbidden("no in-progress assignment for this inspection request")
	}

	measurements := in.Measurements
	if measurements == nil {
		measurements = map[string]any{}
	}
	form, err := s.repo.Create(ctx, repository.Form{
		InspectionRequestID: in.InspectionRequestID,
		InspectorID:         actor.UserID,
		RoomName:            roomName,
		RoomType:            roomType,
		Measurements:        measurements,
		ConditionNotes:      sanitize.TextPtr(in.ConditionNotes),
	})
	if err != nil {
		return repository.Form{}, err
	}
	s.log.Info("inspector form created", "formId", form.ID, "inspectionRequestId", form.InspectionRequestID)
	return form, nil
}

// List returns the forms of a request. Clients only see their own request's forms.
func (s *Service) List(ctx context.Context, actor authz.Actor, requestID uuid.UUID) ([]repository.Form, error) {
	if !actor.IsStaff() {
		summary, err := s.repo.GetRequestSummary(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if summary.ClientID != actor.UserID {
			return nil, apperr.Forbidden("not your inspection request")
		}
	}
	return s.repo.ListByRequest(ctx, requestID)
}

func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, in UpdateInput) (repository.Form, error) {
	if _, err := s.ownedForm(ctx, actor, id); err != nil {
		return repository.Form{}, err
	}
	if blank(in.RoomName) || blank(in.RoomType) {
		return repository.Form{}, apperr.Validation("room name and room type cannot be blank")
	}
	update := repository.FormUpdate{
		RoomName:       sanitize.TextPtr(in.RoomName),
		RoomType:       sanitize.TextPtr(in.RoomType),
		Measurements:   in.Measurements,
		ConditionNotes: sanitize.TextPtr(in.ConditionNotes),
	}
	return s.repo.Update(ctx, id, update)
}

// Submit hands a draft form to the CSRs for review.
func (s *Service) Submit(ctx context.Context, actor authz.Actor, id uuid.UUID) (repository.Form, error) {
	if _, err := s.ownedForm(ctx, actor, id); err != nil {
		return repository.Form{}, err
	}
	form, prev, err := s.repo.SetStatus(ctx, id, workflow.FormSubmitted)
	if err != nil {
		return repository.Form{}, err
	}
	s.log.StatusChanged("inspector_form", id.String(), string(prev), string(form.CompletionStatus))
	s.bus.Publish(ctx, events.FormSubmitted{
		BaseEvent:           events.NewBaseEvent(),
		FormID:              form.ID,
		InspectionRequestID: form.InspectionRequestID,
		InspectorID:         form.InspectorID,
	})
	return form, nil
}

// Review approves a submitted form or returns it to draft.
func (s *Service) Review(ctx context.Context, actor authz.Actor, id uuid.UUID, decision Decision) (repository.Form, error) {
	if !actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin) {
		return repository.Form{}, apperr.Forbidden("only staff can review forms")
	}
	var to workflow.FormStatus
	switch decision {
	case DecisionApprove:
		to = workflow.FormApproved
	case DecisionReturn:
		to = workflow.FormDraft
	default:
		return repository.Form{}, apperr.Validation("decision must be approve or return")
	}

	form, prev, err := s.repo.SetStatus(ctx, id, to)
	if err != nil {
		return repository.Form{}, err
	}
	s.log.StatusChanged("inspector_form", id.String(), string(prev), string(form.CompletionStatus))
	return form, nil
}

// UploadPhoto stores a room photo and appends it, with any EXIF capture
// time and position, to the form.
func (s *Service) UploadPhoto(ctx context.Context, actor authz.Actor, id uuid.UUID, in PhotoInput) (repository.Form, error) {
	form, err := s.ownedForm(ctx, actor, id)
	if err != nil {
		return repository.Form{}, err
	}
	if !form.Editable() {
		return repository.Form{}, apperr.Conflict("inspector form can no longer be edited")
	}
	if len(in.Data) == 0 {
		return repository.Form{}, apperr.Validation("photo is empty")
	}
	if len(in.Data) > MaxPhotoSize {
		return repository.Form{}, apperr.Validation("photo exceeds the maximum upload size")
	}
	contentType := normalizeContentType(in.ContentType, in.Data)
	if !photoTypes[contentType] {
		return repository.Form{}, apperr.Validation("photo must be a JPEG, PNG, WebP or HEIC image")
	}

	meta := readPhotoMetadata(in.Data)
	key, err := s.photos.PutPhoto(ctx, photoFolder(form), in.FileName, contentType, in.Data)
	if err != nil {
		return repository.Form{}, apperr.Wrap(apperr.KindInternal, "store photo", err)
	}

	updated, err := s.repo.AppendPhoto(ctx, id, repository.Photo{
		FileKey:     key,
		ContentType: contentType,
		TakenAt:     meta.TakenAt,
		Lat:         meta.Lat,
		Lon:         meta.Lon,
		UploadedAt:  s.now().UTC(),
	})
	if err != nil {
		return repository.Form{}, err
	}
	return updated, nil
}

// GenerateReport renders the request's approved forms into a PDF, stores it
// and locks every form. It runs at most once per request.
func (s *Service) GenerateReport(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (ReportLink, error) {
	if !actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin) {
		return ReportLink{}, apperr.Forbidden("only staff can generate reports")
	}
	summary, err := s.repo.GetRequestSummary(ctx, requestID)
	if err != nil {
		return ReportLink{}, err
	}
	forms, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return ReportLink{}, err
	}
	if len(forms) == 0 {
		return ReportLink{}, apperr.Validation("inspection request has no inspector forms")
	}
	for _, f := range forms {
		if f.ReportGenerated {
			return ReportLink{}, apperr.Conflict("report already generated")
		}
		if f.CompletionStatus != workflow.FormApproved {
			return ReportLink{}, apperr.Conflict("every inspector form must be approved").WithDetails(map[string]string{
				"formId": f.ID.String(),
				"status": string(f.CompletionStatus),
			})
		}
	}

	names, err := s.repo.InspectorNames(ctx, requestID)
	if err != nil {
		return ReportLink{}, err
	}
	html, err := report.Render(s.reportData(ctx, summary, names, forms))
	if err != nil {
		return ReportLink{}, err
	}
	pdf, err := s.pdf.RenderPDF(ctx, html)
	if err != nil {
		return ReportLink{}, apperr.Wrap(apperr.KindInternal, "render report pdf", err)
	}
	key, err := s.reports.PutReport(ctx, reportFolder(requestID), "inspection-report.pdf", pdf)
	if err != nil {
		return ReportLink{}, apperr.Wrap(apperr.KindInternal, "store report", err)
	}

	marked, err := s.repo.MarkReportGenerated(ctx, requestID, key)
	if err == nil && marked == 0 {
		err = apperr.Conflict("report already generated")
	}
	if err != nil {
		if delErr := s.reports.DeleteReport(ctx, key); delErr != nil {
			s.log.Warn("failed to remove orphaned report", "fileKey", key, "error", delErr)
		}
		return ReportLink{}, err
	}

	s.log.Info("inspection report generated", "inspectionRequestId", requestID, "forms", marked, "fileKey", key)
	s.bus.Publish(ctx, events.ReportGenerated{
		BaseEvent:           events.NewBaseEvent(),
		InspectionRequestID: requestID,
		FileKey:             key,
		FormCount:           marked,
	})
	return s.reports.PresignReport(ctx, key)
}

// GetReportURL returns a download link for a generated report.
func (s *Service) GetReportURL(ctx context.Context, actor authz.Actor, requestID uuid.UUID) (ReportLink, error) {
	forms, err := s.List(ctx, actor, requestID)
	if err != nil {
		return ReportLink{}, err
	}
	for _, f := range forms {
		if f.ReportGenerated && f.ReportFileKey != nil {
			return s.reports.PresignReport(ctx, *f.ReportFileKey)
		}
	}
	return ReportLink{}, apperr.NotFound("report has not been generated")
}

func (s *Service) reportData(ctx context.Context, summary repository.RequestSummary, names []string, forms []repository.Form) report.Data {
	data := report.Data{
		RequestID:       summary.ID.String(),
		ContactName:     summary.ContactName,
		PropertyAddress: summary.PropertyAddress,
		PropertyType:    summary.PropertyType,
		PropertySizeSqm: summary.PropertySizeSqm,
		InspectorNames:  names,
		GeneratedAt:     s.now().UTC(),
		Rooms:           make([]report.Room, 0, len(forms)),
	}
	for _, f := range forms {
		room := report.Room{
			Name:         f.RoomName,
			Type:         f.RoomType,
			Measurements: report.Measurements(f.Measurements),
		}
		if f.ConditionNotes != nil {
			room.ConditionNotes = *f.ConditionNotes
		}
		for _, p := range f.Photos {
			link, err := s.photos.PresignPhoto(ctx, p.FileKey)
			if err != nil {
				s.log.Warn("skipping report photo", "fileKey", p.FileKey, "error", err)
				continue
			}
			room.Photos = append(room.Photos, report.Photo{URL: link.URL, TakenAt: p.TakenAt, Lat: p.Lat, Lon: p.Lon})
		}
		data.Rooms = append(data.Rooms, room)
	}
	return data
}

// ownedForm loads a form the actor may edit: its inspector or an admin.
func (s *Service) ownedForm(ctx context.Context, actor authz.Actor, id uuid.UUID) (repository.Form, error) {
	form, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Form{}, err
	}
	if form.InspectorID != actor.UserID && !actor.IsAdmin() {
		return repository.Form{}, apperr.Forbidden("not your inspector form")
	}
	return form, nil
}

func blank(s *string) bool {
	return s != nil && sanitize.Text(*s) == ""
}

func normalizeContentType(declared string, data []byte) string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	if ct == "" || ct == "application/octet-stream" {
		ct = strings.SplitN(http.DetectContentType(data), ";", 2)[0]
	}
	return ct
}

func photoFolder(f repository.Form) string {
	return "forms/" + f.InspectionRequestID.String() + "/" + f.ID.String()
}

func reportFolder(requestID uuid.UUID) string {
	return "reports/" + requestID.String()
}
