package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	formNotFoundMsg    = "inspector form not found"
	requestNotFoundMsg = "inspection request not found"
	formLockedMsg      = "inspector form can no longer be edited"
)

// Photo is a room photo stored in object storage. Capture time and GPS come
// from EXIF when present.
type Photo struct {
	FileKey     string     `json:"fileKey"`
	ContentType string     `json:"contentType"`
	TakenAt     *time.Time `json:"takenAt,omitempty"`
	Lat         *float64   `json:"lat,omitempty"`
	Lon         *float64   `json:"lon,omitempty"`
	UploadedAt  time.Time  `json:"uploadedAt"`
}

// Form is an inspector's record of one room.
type Form struct {
	ID                  uuid.UUID           `json:"id"`
	InspectionRequestID uuid.UUID           `json:"inspectionRequestId"`
	InspectorID         uuid.UUID           `json:"inspectorId"`
	RoomName            string              `json:"roomName"`
	RoomType            string              `json:"roomType"`
	Measurements        map[string]any      `json:"measurements"`
	ConditionNotes      *string             `json:"conditionNotes,omitempty"`
	Photos              []Photo             `json:"photos"`
	CompletionStatus    workflow.FormStatus `json:"completionStatus"`
	ReportGenerated     bool                `json:"reportGenerated"`
	ReportFileKey       *string             `json:"reportFileKey,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// Editable reports whether the form may still be changed by its inspector.
func (f Form) Editable() bool {
	return f.CompletionStatus == workflow.FormDraft && !f.ReportGenerated
}

// RequestSummary is the request data printed on the report header.
type RequestSummary struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	ContactName     string
	PropertyAddress string
	PropertyType    string
	PropertySizeSqm *float64
	Status          workflow.InspectionStatus
}

// FormUpdate carries the fields to change; nil means keep.
type FormUpdate struct {
	RoomName       *string
	RoomType       *string
	Measurements   map[string]any
	ConditionNotes *string
}

type Reader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Form, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Form, error)
	GetRequestSummary(ctx context.Context, requestID uuid.UUID) (RequestSummary, error)
	// HasActiveAssignment reports whether inspectorID holds an in-progress
	// assignment on requestID.
	HasActiveAssignment(ctx context.Context, requestID, inspectorID uuid.UUID) (bool, error)
	InspectorNames(ctx context.Context, requestID uuid.UUID) ([]string, error)
}

type Writer interface {
	Create(ctx context.Context, form Form) (Form, error)
	// Update and AppendPhoto only touch editable forms; locked forms yield a conflict.
	Update(ctx context.Context, id uuid.UUID, update FormUpdate) (Form, error)
	AppendPhoto(ctx context.Context, id uuid.UUID, photo Photo) (Form, error)
	SetStatus(ctx context.Context, id uuid.UUID, to workflow.FormStatus) (Form, workflow.FormStatus, error)
	// MarkReportGenerated flags every form of the request in one statement,
	// provided all are approved and none is flagged yet. It returns the
	// number of forms flagged.
	MarkReportGenerated(ctx context.Context, requestID uuid.UUID, fileKey string) (int, error)
}

type Repository interface {
	Reader
	Writer
}

type Repo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const formColumns = `id, inspection_request_id, inspector_id, room_name, room_type,
	measurements, condition_notes, photos, completion_status, report_generated,
	report_file_key, created_at, updated_at`

func scanForm(row pgx.Row) (Form, error) {
	var f Form
	err := row.Scan(
		&f.ID, &f.InspectionRequestID, &f.InspectorID, &f.RoomName, &f.RoomType,
		&f.Measurements, &f.ConditionNotes, &f.Photos, &f.CompletionStatus, &f.ReportGenerated,
		&f.ReportFileKey, &f.CreatedAt, &f.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Form{}, apperr.NotFound(formNotFoundMsg)
	}
	if f.Measurements == nil {
		f.Measurements = map[string]any{}
	}
	if f.Photos == nil {
		f.Photos = []Photo{}
	}
	return f, err
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Form, error) {
	f, err := scanForm(r.pool.QueryRow(ctx, `SELECT `+formColumns+` FROM inspector_forms WHERE id = $1`, id))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return Form{}, fmt.Errorf("get inspector form: %w", err)
	}
	return f, err
}

func (r *Repo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Form, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+formColumns+` FROM inspector_forms
		WHERE inspection_request_id = $1
		ORDER BY created_at`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list inspector forms: %w", err)
	}
	defer rows.Close()

	forms := make([]Form, 0)
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inspector form: %w", err)
		}
		forms = append(forms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inspector forms: %w", err)
	}
	return forms, nil
}

func (r *Repo) GetRequestSummary(ctx context.Context, requestID uuid.UUID) (RequestSummary, error) {
	var s RequestSummary
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, contact_name, property_address, property_type, property_size_sqm, status
		FROM inspection_requests WHERE id = $1`, requestID).Scan(
		&s.ID, &s.ClientID, &s.ContactName, &s.PropertyAddress, &s.PropertyType, &s.PropertySizeSqm, &s.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return RequestSummary{}, apperr.NotFound(requestNotFoundMsg)
	}
	if err != nil {
		return RequestSummary{}, fmt.Errorf("get inspection request summary: %w", err)
	}
	return s, nil
}

func (r *Repo) HasActiveAssignment(ctx context.Context, requestID, inspectorID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM assignments
			WHERE inspection_request_id = $1 AND inspector_id = $2 AND status = $3
		)`, requestID, inspectorID, workflow.AssignmentInProgress).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check active assignment: %w", err)
	}
	return ok, nil
}

func (r *Repo) InspectorNames(ctx context.Context, requestID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT trim(concat_ws(' ', u.first_name, u.last_name)) AS name
		FROM inspector_forms f
		JOIN users u ON u.id = f.inspector_id
		WHERE f.inspection_request_id = $1
		ORDER BY name`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list report inspectors: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan report inspectors: %w", err)
	}
	return names, nil
}

func (r *Repo) Create(ctx context.Context, form Form) (Form, error) {
	created, err := scanForm(r.pool.QueryRow(ctx, `
		INSERT INTO inspector_forms (
			inspection_request_id, inspector_id, room_name, room_type,
			measurements, condition_notes, photos, completion_status
		) VALUES ($1, $2, $3, $4, $5, $6, '[]'::jsonb, $7)
		RETURNING `+formColumns,
		form.InspectionRequestID, form.InspectorID, form.RoomName, form.RoomType,
		form.Measurements, form.ConditionNotes, workflow.FormDraft))
	if err != nil {
		return Form{}, fmt.Errorf("insert inspector form: %w", err)
	}
	return created, nil
}

func (r *Repo) Update(ctx context.Context, id uuid.UUID, u FormUpdate) (Form, error) {
	updated, err := scanForm(r.pool.QueryRow(ctx, `
		UPDATE inspector_forms
		SET room_name = COALESCE($2, room_name),
			room_type = COALESCE($3, room_type),
			measurements = COALESCE($4, measurements),
			condition_notes = COALESCE($5, condition_notes),
			updated_at = now()
		WHERE id = $1 AND completion_status = $6 AND NOT report_generated
		RETURNING `+formColumns,
		id, u.RoomName, u.RoomType, u.Measurements, u.ConditionNotes, workflow.FormDraft))
	if apperr.Is(err, apperr.KindNotFound) {
		return Form{}, r.lockedOrMissing(ctx, id)
	}
	if err != nil {
		return Form{}, fmt.Errorf("update inspector form: %w", err)
	}
	return updated, nil
}

func (r *Repo) AppendPhoto(ctx context.Context, id uuid.UUID, photo Photo) (Form, error) {
	updated, err := scanForm(r.pool.QueryRow(ctx, `
		UPDATE inspector_forms
		SET photos = photos || jsonb_build_array($2::jsonb), updated_at = now()
		WHERE id = $1 AND completion_status = $3 AND NOT report_generated
		RETURNING `+formColumns, id, photo, workflow.FormDraft))
	if apperr.Is(err, apperr.KindNotFound) {
		return Form{}, r.lockedOrMissing(ctx, id)
	}
	if err != nil {
		return Form{}, fmt.Errorf("append form photo: %w", err)
	}
	return updated, nil
}

func (r *Repo) SetStatus(ctx context.Context, id uuid.UUID, to workflow.FormStatus) (Form, workflow.FormStatus, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Form{}, "", fmt.Errorf("begin form status: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		current   workflow.FormStatus
		generated bool
	)
	err = tx.QueryRow(ctx, `SELECT completion_status, report_generated FROM inspector_forms WHERE id = $1 FOR UPDATE`, id).Scan(&current, &generated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Form{}, "", apperr.NotFound(formNotFoundMsg)
	}
	if err != nil {
		return Form{}, "", fmt.Errorf("lock inspector form: %w", err)
	}
	if generated {
		return Form{}, "", apperr.Conflict(formLockedMsg)
	}
	if current == to {
		return Form{}, "", &workflow.TransitionError{Entity: workflow.Forms.Entity(), From: string(current), To: string(to)}
	}
	if err := workflow.Forms.Transition(current, to); err != nil {
		return Form{}, "", err
	}

	updated, err := scanForm(tx.QueryRow(ctx, `
		UPDATE inspector_forms SET completion_status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+formColumns, id, to))
	if err != nil {
		return Form{}, "", fmt.Errorf("update form status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Form{}, "", fmt.Errorf("commit form status: %w", err)
	}
	return updated, current, nil
}

func (r *Repo) MarkReportGenerated(ctx context.Context, requestID uuid.UUID, fileKey string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inspector_forms
		SET report_generated = true, report_file_key = $2, updated_at = now()
		WHERE inspection_request_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM inspector_forms f
			WHERE f.inspection_request_id = $1
			  AND (f.completion_status <> $3 OR f.report_generated)
		  )`, requestID, fileKey, workflow.FormApproved)
	if err != nil {
		return 0, fmt.Errorf("mark report generated: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repo) lockedOrMissing(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return apperr.Conflict(formLockedMsg)
}
