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
	assignmentNotFoundMsg = "assignment not found"
	inspectorNotFoundMsg  = "inspector not found"
	requestNotFoundMsg    = "inspection request not found"
)

// Assignment links a verified inspection request to an inspector.
type Assignment struct {
	ID                  uuid.UUID                 `json:"id"`
	InspectionRequestID uuid.UUID                 `json:"inspectionRequestId"`
	InspectorID         uuid.UUID                 `json:"inspectorId"`
	AssignedBy          uuid.UUID                 `json:"assignedBy"`
	Status              workflow.AssignmentStatus `json:"status"`
	InspectionStartTime *time.Time                `json:"inspectionStartTime,omitempty"`
	InspectionEndTime   *time.Time                `json:"inspectionEndTime,omitempty"`
	DeclineReason       *string                   `json:"declineReason,omitempty"`
	ActionNotes         *string                   `json:"actionNotes,omitempty"`
	ClientID            uuid.UUID                 `json:"clientId"`
	PropertyAddress     string                    `json:"propertyAddress"`
	CreatedAt           time.Time                 `json:"createdAt"`
	UpdatedAt           time.Time                 `json:"updatedAt"`
}

// Inspector is a user with the inspector role and their field status.
type Inspector struct {
	UserID            uuid.UUID                      `json:"userId"`
	Email             string                         `json:"email"`
	FirstName         *string                        `json:"firstName,omitempty"`
	LastName          *string                        `json:"lastName,omitempty"`
	Availability      workflow.InspectorAvailability `json:"availability"`
	CurrentLocation   *string                        `json:"currentLocation,omitempty"`
	LocationUpdatedAt *time.Time                     `json:"locationUpdatedAt,omitempty"`
	OpenAssignments   int                            `json:"openAssignments"`
	UpdatedAt         time.Time                      `json:"updatedAt"`
}

type ListParams struct {
	InspectorID         *uuid.UUID
	InspectionRequestID *uuid.UUID
	Status              *workflow.AssignmentStatus
	Page                int
	PageSize            int
}

type NewAssignment struct {
	InspectionRequestID uuid.UUID
	InspectorID         uuid.UUID
	AssignedBy          uuid.UUID
	Notes               *string
}

// Change moves an assignment to To. When Expect is set the assignment must
// currently be in that status.
type Change struct {
	ID            uuid.UUID
	To            workflow.AssignmentStatus
	Expect        *workflow.AssignmentStatus
	At            time.Time
	StartTime     *time.Time
	DeclineReason *string
	ActionNotes   *string
}

// Outcome reports an assignment write and the request transition it caused.
type Outcome struct {
	Assignment     Assignment
	PreviousStatus workflow.AssignmentStatus
	RequestFrom    workflow.InspectionStatus
	RequestTo      workflow.InspectionStatus
}

// RequestMoved reports whether the write also moved the inspection request.
func (o Outcome) RequestMoved() bool {
	return o.RequestFrom != o.RequestTo
}

type Reader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Assignment, error)
	List(ctx context.Context, params ListParams) ([]Assignment, int, error)
	GetInspector(ctx context.Context, userID uuid.UUID) (Inspector, error)
	ListInspectors(ctx context.Context, availability *workflow.InspectorAvailability) ([]Inspector, error)
}

type Writer interface {
	// Create inserts an assignment and moves the request verified -> assigned.
	// The inspector must be available and hold no other open assignment.
	Create(ctx context.Context, in NewAssignment) (Outcome, error)
	// Apply performs a lifecycle change together with its inspector and
	// request side effects in one transaction.
	Apply(ctx context.Context, change Change) (Outcome, error)
	// SetInspectorAvailability refuses "available" while the inspector still
	// holds an open assignment.
	SetInspectorAvailability(ctx context.Context, userID uuid.UUID, availability workflow.InspectorAvailability) (Inspector, error)
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

var openStatuses = workflow.OpenAssignmentStatuses

const assignmentSelect = `
	SELECT a.id, a.inspection_request_id, a.inspector_id, a.assigned_by, a.status,
		a.inspection_start_time, a.inspection_end_time, a.decline_reason, a.action_notes,
		r.client_id, r.property_address, a.created_at, a.updated_at
	FROM assignments a
	JOIN inspection_requests r ON r.id = a.inspection_request_id`

const inspectorSelect = `
	SELECT i.user_id, u.email, u.first_name, u.last_name, i.availability,
		i.current_location, i.location_updated_at,
		(SELECT count(*) FROM assignments a WHERE a.inspector_id = i.user_id AND a.status = ANY($1)),
		i.updated_at
	FROM inspectors i
	JOIN users u ON u.id = i.user_id`

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	err := row.Scan(
		&a.ID, &a.InspectionRequestID, &a.InspectorID, &a.AssignedBy, &a.Status,
		&a.InspectionStartTime, &a.InspectionEndTime, &a.DeclineReason, &a.ActionNotes,
		&a.ClientID, &a.PropertyAddress, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, apperr.NotFound(assignmentNotFoundMsg)
	}
	return a, err
}

func scanInspector(row pgx.Row) (Inspector, error) {
	var i Inspector
	err := row.Scan(
		&i.UserID, &i.Email, &i.FirstName, &i.LastName, &i.Availability,
		&i.CurrentLocation, &i.LocationUpdatedAt, &i.OpenAssignments, &i.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Inspector{}, apperr.NotFound(inspectorNotFoundMsg)
	}
	return i, err
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Assignment, error) {
	a, err := scanAssignment(r.pool.QueryRow(ctx, assignmentSelect+` WHERE a.id = $1`, id))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return a, err
}

func (r *Repo) List(ctx context.Context, params ListParams) ([]Assignment, int, error) {
	page, pageSize := normalizePage(params.Page, params.PageSize)
	const filter = `
		WHERE ($1::uuid IS NULL OR a.inspector_id = $1)
		  AND ($2::uuid IS NULL OR a.inspection_request_id = $2)
		  AND ($3::text IS NULL OR a.status = $3)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM assignments a`+filter,
		params.InspectorID, params.InspectionRequestID, params.Status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	rows, err := r.pool.Query(ctx, assignmentSelect+filter+`
		ORDER BY a.created_at DESC
		LIMIT $4 OFFSET $5`,
		params.InspectorID, params.InspectionRequestID, params.Status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	items := make([]Assignment, 0, pageSize)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan assignment: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate assignments: %w", err)
	}
	return items, total, nil
}

func (r *Repo) GetInspector(ctx context.Context, userID uuid.UUID) (Inspector, error) {
	i, err := scanInspector(r.pool.QueryRow(ctx, inspectorSelect+` WHERE i.user_id = $2`, openStatuses, userID))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return Inspector{}, fmt.Errorf("get inspector: %w", err)
	}
	return i, err
}

func (r *Repo) ListInspectors(ctx context.Context, availability *workflow.InspectorAvailability) ([]Inspector, error) {
	rows, err := r.pool.Query(ctx, inspectorSelect+`
		WHERE ($2::text IS NULL OR i.availability = $2)
		ORDER BY u.last_name NULLS LAST, u.first_name NULLS LAST, u.email`, openStatuses, availability)
	if err != nil {
		return nil, fmt.Errorf("list inspectors: %w", err)
	}
	defer rows.Close()

	items := make([]Inspector, 0)
	for rows.Next() {
		i, err := scanInspector(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inspector: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inspectors: %w", err)
	}
	return items, nil
}

func (r *Repo) Create(ctx context.Context, in NewAssignment) (Outcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Outcome{}, fmt.Errorf("begin assignment: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	requestFrom, err := moveRequest(ctx, tx, in.InspectionRequestID, workflow.InspectionAssigned)
	if err != nil {
		return Outcome{}, err
	}
	if requestFrom == workflow.InspectionAssigned {
		return Outcome{}, apperr.Conflict("inspection request is already assigned")
	}

	var availability workflow.InspectorAvailability
	err = tx.QueryRow(ctx, `SELECT availability FROM inspectors WHERE user_id = $1 FOR UPDATE`, in.InspectorID).Scan(&availability)
	if errors.Is(err, pgx.ErrNoRows) {
		return Outcome{}, apperr.NotFound(inspectorNotFoundMsg)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("lock inspector: %w", err)
	}
	if availability != workflow.InspectorAvailable {
		return Outcome{}, apperr.Conflict("inspector is not available").WithDetails(map[string]string{"availability": string(availability)})
	}
	var open int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM assignments WHERE inspector_id = $1 AND status = ANY($2)`,
		in.InspectorID, openStatuses).Scan(&open); err != nil {
		return Outcome{}, fmt.Errorf("count open assignments: %w", err)
	}
	if open > 0 {
		return Outcome{}, apperr.Conflict("inspector already has an open assignment").WithDetails(map[string]string{"openAssignments": fmt.Sprint(open)})
	}

	var id uuid.UUID
	if err := tx.QueryRow(ctx, `
		INSERT INTO assignments (inspection_request_id, inspector_id, assigned_by, status, action_notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		in.InspectionRequestID, in.InspectorID, in.AssignedBy, workflow.AssignmentAssigned, in.Notes).Scan(&id); err != nil {
		return Outcome{}, fmt.Errorf("insert assignment: %w", err)
	}

	created, err := scanAssignment(tx.QueryRow(ctx, assignmentSelect+` WHERE a.id = $1`, id))
	if err != nil {
		return Outcome{}, fmt.Errorf("reload assignment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, fmt.Errorf("commit assignment: %w", err)
	}
	return Outcome{Assignment: created, RequestFrom: requestFrom, RequestTo: workflow.InspectionAssigned}, nil
}

func (r *Repo) Apply(ctx context.Context, c Change) (Outcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Outcome{}, fmt.Errorf("begin assignment change: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanAssignment(tx.QueryRow(ctx, assignmentSelect+` WHERE a.id = $1 FOR UPDATE OF a`, c.ID))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Outcome{}, err
		}
		return Outcome{}, fmt.Errorf("lock assignment: %w", err)
	}
	if (c.Expect != nil && current.Status != *c.Expect) || current.Status == c.To {
		return Outcome{}, &workflow.TransitionError{Entity: workflow.Assignments.Entity(), From: string(current.Status), To: string(c.To)}
	}
	if err := workflow.Assignments.Transition(current.Status, c.To); err != nil {
		return Outcome{}, err
	}

	out := Outcome{PreviousStatus: current.Status}
	requestTarget, moves := requestTargetFor(current.Status, c.To)
	if moves {
		from, err := moveRequest(ctx, tx, current.InspectionRequestID, requestTarget)
		if err != nil {
			return Outcome{}, err
		}
		out.RequestFrom, out.RequestTo = from, requestTarget
	}

	switch {
	case current.Status == workflow.AssignmentAssigned && c.To == workflow.AssignmentInProgress:
		start := c.At
		if c.StartTime != nil {
			start = *c.StartTime
		}
		if _, err := tx.Exec(ctx, `
			UPDATE assignments SET status = $2, inspection_start_time = $3, action_notes = COALESCE($4, action_notes), updated_at = now()
			WHERE id = $1`, c.ID, c.To, start, c.ActionNotes); err != nil {
			return Outcome{}, fmt.Errorf("accept assignment: %w", err)
		}
		var active int
		if err := tx.QueryRow(ctx, `
			SELECT count(*) FROM assignments
			WHERE inspector_id = $1 AND id <> $2 AND status = ANY($3)`,
			current.InspectorID, c.ID, []string{string(workflow.AssignmentInProgress), string(workflow.AssignmentPaused)}).Scan(&active); err != nil {
			return Outcome{}, fmt.Errorf("count active assignments: %w", err)
		}
		if active > 0 {
			return Outcome{}, apperr.Conflict("inspector is busy with another inspection")
		}
		if err := setInspector(ctx, tx, current.InspectorID, workflow.InspectorBusy, &current.PropertyAddress, c.At); err != nil {
			return Outcome{}, err
		}
	case c.To == workflow.AssignmentDeclined:
		if _, err := tx.Exec(ctx, `
			UPDATE assignments SET status = $2, decline_reason = $3, action_notes = COALESCE($4, action_notes), updated_at = now()
			WHERE id = $1`, c.ID, c.To, c.DeclineReason, c.ActionNotes); err != nil {
			return Outcome{}, fmt.Errorf("decline assignment: %w", err)
		}
	case c.To == workflow.AssignmentCompleted:
		if _, err := tx.Exec(ctx, `
			UPDATE assignments SET status = $2, inspection_end_time = $3, action_notes = COALESCE($4, action_notes), updated_at = now()
			WHERE id = $1`, c.ID, c.To, c.At, c.ActionNotes); err != nil {
			return Outcome{}, fmt.Errorf("complete assignment: %w", err)
		}
		if err := releaseInspector(ctx, tx, current.InspectorID); err != nil {
			return Outcome{}, err
		}
	default:
		if _, err := tx.Exec(ctx, `
			UPDATE assignments SET status = $2, action_notes = COALESCE($3, action_notes), updated_at = now()
			WHERE id = $1`, c.ID, c.To, c.ActionNotes); err != nil {
			return Outcome{}, fmt.Errorf("update assignment: %w", err)
		}
	}

	updated, err := scanAssignment(tx.QueryRow(ctx, assignmentSelect+` WHERE a.id = $1`, c.ID))
	if err != nil {
		return Outcome{}, fmt.Errorf("reload assignment: %w", err)
	}
	out.Assignment = updated

	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, fmt.Errorf("commit assignment change: %w", err)
	}
	return out, nil
}

func (r *Repo) SetInspectorAvailability(ctx context.Context, userID uuid.UUID, availability workflow.InspectorAvailability) (Inspector, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Inspector{}, fmt.Errorf("begin inspector availability: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var open int
	err = tx.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM assignments a WHERE a.inspector_id = i.user_id AND a.status = ANY($2))
		FROM inspectors i WHERE i.user_id = $1 FOR UPDATE`, userID, openStatuses).Scan(&open)
	if errors.Is(err, pgx.ErrNoRows) {
		return Inspector{}, apperr.NotFound(inspectorNotFoundMsg)
	}
	if err != nil {
		return Inspector{}, fmt.Errorf("lock inspector: %w", err)
	}
	if availability == workflow.InspectorAvailable && open > 0 {
		return Inspector{}, apperr.Conflict("inspector still has open assignments").WithDetails(map[string]string{"openAssignments": fmt.Sprint(open)})
	}

	if _, err := tx.Exec(ctx, `UPDATE inspectors SET availability = $2, updated_at = now() WHERE user_id = $1`, userID, availability); err != nil {
		return Inspector{}, fmt.Errorf("update inspector availability: %w", err)
	}
	updated, err := scanInspector(tx.QueryRow(ctx, inspectorSelect+` WHERE i.user_id = $2`, openStatuses, userID))
	if err != nil {
		return Inspector{}, fmt.Errorf("reload inspector: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Inspector{}, fmt.Errorf("commit inspector availability: %w", err)
	}
	return updated, nil
}

// requestTargetFor maps an assignment move to the request status it implies.
func requestTargetFor(from, to workflow.AssignmentStatus) (workflow.InspectionStatus, bool) {
	switch {
	case from == workflow.AssignmentAssigned && to == workflow.AssignmentInProgress:
		return workflow.InspectionInProgress, true
	case to == workflow.AssignmentDeclined:
		return workflow.InspectionVerified, true
	case to == workflow.AssignmentCompleted:
		return workflow.InspectionCompleted, true
	}
	return "", false
}

func moveRequest(ctx context.Context, tx pgx.Tx, id uuid.UUID, to workflow.InspectionStatus) (workflow.InspectionStatus, error) {
	var current workflow.InspectionStatus
	err := tx.QueryRow(ctx, `SELECT status FROM inspection_requests WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound(requestNotFoundMsg)
	}
	if err != nil {
		return "", fmt.Errorf("lock inspection request: %w", err)
	}
	if err := workflow.Inspections.Transition(current, to); err != nil {
		return "", err
	}
	if current == to {
		return current, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE inspection_requests SET status = $2, updated_at = now() WHERE id = $1`, id, to); err != nil {
		return "", fmt.Errorf("update inspection request status: %w", err)
	}
	return current, nil
}

func setInspector(ctx context.Context, tx pgx.Tx, userID uuid.UUID, availability workflow.InspectorAvailability, location *string, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE inspectors
		SET availability = $2,
			current_location = COALESCE($3, current_location),
			location_updated_at = CASE WHEN $3::text IS NULL THEN location_updated_at ELSE $4 END,
			updated_at = now()
		WHERE user_id = $1`, userID, availability, location, at)
	if err != nil {
		return fmt.Errorf("update inspector: %w", err)
	}
	return nil
}

// releaseInspector returns a busy inspector to available once no open
// assignment remains.
func releaseInspector(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE inspectors SET availability = $2, updated_at = now()
		WHERE user_id = $1
		  AND availability = $3
		  AND NOT EXISTS (
			SELECT 1 FROM assignments WHERE inspector_id = $1 AND status = ANY($4)
		  )`, userID, workflow.InspectorAvailable, workflow.InspectorBusy, openStatuses)
	if err != nil {
		return fmt.Errorf("release inspector: %w", err)
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
