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

const requestNotFoundMsg = "inspection request not found"

// InspectionRequest is a client's request for an on-site inspection.
type InspectionRequest struct {
	ID                    uuid.UUID                 `json:"id"`
	ClientID              uuid.UUID                 `json:"clientId"`
	ContactName           string                    `json:"contactName"`
	ContactEmail          string                    `json:"contactEmail"`
	ContactPhone          string                    `json:"contactPhone"`
	PropertyAddress       string                    `json:"propertyAddress"`
	PropertyType          string                    `json:"propertyType"`
	PropertySizeSqm       *float64                  `json:"propertySizeSqm,omitempty"`
	PreferredDate         *time.Time                `json:"preferredDate,omitempty"`
	Notes                 *string                   `json:"notes,omitempty"`
	Status                workflow.InspectionStatus `json:"status"`
	StatusReason          *string                   `json:"statusReason,omitempty"`
	PaymentStatus         workflow.PaymentStatus    `json:"paymentStatus"`
	EstimatedCost         *float64                  `json:"estimatedCost,omitempty"`
	PaymentLinkURL        *string                   `json:"paymentLinkUrl,omitempty"`
	PaymentProviderRef    *string                   `json:"-"`
	VerificationTokenHash *string                   `json:"-"`
	VerificationExpiresAt *time.Time                `json:"verificationExpiresAt,omitempty"`
	CreatedAt             time.Time                 `json:"createdAt"`
	UpdatedAt             time.Time                 `json:"updatedAt"`
}

// ListParams filters List. Zero values mean "any".
type ListParams struct {
	ClientID *uuid.UUID
	Status   *workflow.InspectionStatus
	Page     int
	PageSize int
}

// PaymentLinkUpdate is written when a CSR issues a payment link.
type PaymentLinkUpdate struct {
	ID            uuid.UUID
	EstimatedCost float64
	LinkURL       string
	ProviderRef   string
	TokenHash     string
	ExpiresAt     time.Time
}

// StatusChange moves a request from From to To. The write fails with a
// conflict when another writer changed the status first.
type StatusChange struct {
	ID     uuid.UUID
	From   workflow.InspectionStatus
	To     workflow.InspectionStatus
	Reason *string
}

// ReleasedAssignment is an open assignment closed by a cancellation.
type ReleasedAssignment struct {
	ID             uuid.UUID
	InspectorID    uuid.UUID
	From           workflow.AssignmentStatus
	InspectorFreed bool
}

// StatusOutcome is the result of a status change and its side effects.
type StatusOutcome struct {
	Request  InspectionRequest
	Released []ReleasedAssignment
}

type Reader interface {
	GetByID(ctx context.Context, id uuid.UUID) (InspectionRequest, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (InspectionRequest, error)
	List(ctx context.Context, params ListParams) ([]InspectionRequest, int, error)
}

type Writer interface {
	Create(ctx context.Context, req InspectionRequest) (InspectionRequest, error)
	// ChangeStatus validates and writes a status change under a row lock.
	// Cancelling also closes the request's open assignments and frees their
	// inspectors in the same transaction.
	ChangeStatus(ctx context.Context, change StatusChange) (StatusOutcome, error)
	// IssuePaymentLink stores the link and token and moves the request to
	// payment-required, failing with a conflict if another writer moved it
	// out of pending or payment-required first.
	IssuePaymentLink(ctx context.Context, update PaymentLinkUpdate) (InspectionRequest, error)
	// ExpirePaymentLink withdraws the hosted checkout link of a request still
	// awaiting payment once its token has lapsed. The token hash is kept so
	// later lookups can answer "gone". It reports whether anything changed.
	ExpirePaymentLink(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
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

const requestColumns = `id, client_id, contact_name, contact_email, contact_phone,
	property_address, property_type, property_size_sqm, preferred_date, notes,
	status, status_reason, payment_status, estimated_cost, payment_link_url,
	payment_provider_ref, verification_token_hash, verification_expires_at,
	created_at, updated_at`

func scanRequest(row pgx.Row) (InspectionRequest, error) {
	var r InspectionRequest
	err := row.Scan(
		&r.ID, &r.ClientID, &r.ContactName, &r.ContactEmail, &r.ContactPhone,
		&r.PropertyAddress, &r.PropertyType, &r.PropertySizeSqm, &r.PreferredDate, &r.Notes,
		&r.Status, &r.StatusReason, &r.PaymentStatus, &r.EstimatedCost, &r.PaymentLinkURL,
		&r.PaymentProviderRef, &r.VerificationTokenHash, &r.VerificationExpiresAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return InspectionRequest{}, apperr.NotFound(requestNotFoundMsg)
	}
	return r, err
}

func (r *Repo) Create(ctx context.Context, req InspectionRequest) (InspectionRequest, error) {
	created, err := scanRequest(r.pool.QueryRow(ctx, `
		INSERT INTO inspection_requests (
			client_id, contact_name, contact_email, contact_phone,
			property_address, property_type, property_size_sqm, preferred_date, notes,
			status, payment_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+requestColumns,
		req.ClientID, req.ContactName, req.ContactEmail, req.ContactPhone,
		req.PropertyAddress, req.PropertyType, req.PropertySizeSqm, req.PreferredDate, req.Notes,
		workflow.InspectionPending, workflow.PaymentUnpaid,
	))
	if err != nil {
		return InspectionRequest{}, fmt.Errorf("insert inspection request: %w", err)
	}
	return created, nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (InspectionRequest, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM inspection_requests WHERE id = $1`, id))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return InspectionRequest{}, fmt.Errorf("get inspection request: %w", err)
	}
	return req, err
}

func (r *Repo) GetByTokenHash(ctx context.Context, tokenHash string) (InspectionRequest, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM inspection_requests WHERE verification_token_hash = $1`, tokenHash))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return InspectionRequest{}, fmt.Errorf("get inspection request by token: %w", err)
	}
	return req, err
}

func (r *Repo) List(ctx context.Context, params ListParams) ([]InspectionRequest, int, error) {
	page, pageSize := normalizePage(params.Page, params.PageSize)

	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM inspection_requests
		WHERE ($1::uuid IS NULL OR client_id = $1)
		  AND ($2::text IS NULL OR status = $2)
	`, params.ClientID, params.Status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inspection requests: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM inspection_requests
		WHERE ($1::uuid IS NULL OR client_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, params.ClientID, params.Status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list inspection requests: %w", err)
	}
	defer rows.Close()

	items := make([]InspectionRequest, 0, pageSize)
	for rows.Next() {
		item, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan inspection request: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate inspection requests: %w", err)
	}
	return items, total, nil
}

func (r *Repo) ChangeStatus(ctx context.Context, c StatusChange) (StatusOutcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return StatusOutcome{}, fmt.Errorf("begin status change: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if c.To == workflow.InspectionCancelled {
		// Assignment writers lock the assignment before the request.
		if _, err := tx.Exec(ctx, `
			SELECT id FROM assignments
			WHERE inspection_request_id = $1 AND status = ANY($2)
			FOR UPDATE`, c.ID, workflow.OpenAssignmentStatuses); err != nil {
			return StatusOutcome{}, fmt.Errorf("lock open assignments: %w", err)
		}
	}

	var current workflow.InspectionStatus
	err = tx.QueryRow(ctx, `SELECT status FROM inspection_requests WHERE id = $1 FOR UPDATE`, c.ID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return StatusOutcome{}, apperr.NotFound(requestNotFoundMsg)
	}
	if err != nil {
		return StatusOutcome{}, fmt.Errorf("lock inspection request: %w", err)
	}
	if current != c.From {
		return StatusOutcome{}, &workflow.TransitionError{Entity: workflow.Inspections.Entity(), From: string(current), To: string(c.To)}
	}
	if err := workflow.Inspections.Transition(current, c.To); err != nil {
		return StatusOutcome{}, err
	}

	updated, err := scanRequest(tx.QueryRow(ctx, `
		UPDATE inspection_requests
		SET status = $2, status_reason = COALESCE($3, status_reason), updated_at = now()
		WHERE id = $1
		RETURNING `+requestColumns, c.ID, c.To, c.Reason))
	if err != nil {
		return StatusOutcome{}, fmt.Errorf("update inspection status: %w", err)
	}
	out := StatusOutcome{Request: updated}

	if c.To == workflow.InspectionCancelled {
		released, err := releaseAssignments(ctx, tx, c.ID)
		if err != nil {
			return StatusOutcome{}, err
		}
		out.Released = released
	}

	if err := tx.Commit(ctx); err != nil {
		return StatusOutcome{}, fmt.Errorf("commit status change: %w", err)
	}
	return out, nil
}

// releaseAssignments cancels every open assignment of a request and returns
// each inspector to available once nothing else keeps them busy.
func releaseAssignments(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) ([]ReleasedAssignment, error) {
	rows, err := tx.Query(ctx, `
		UPDATE assignments a
		SET status = $3, inspection_end_time = COALESCE(a.inspection_end_time, now()), updated_at = now()
		FROM (
			SELECT id, status FROM assignments
			WHERE inspection_request_id = $1 AND status = ANY($2)
		) prev
		WHERE a.id = prev.id
		RETURNING a.id, a.inspector_id, prev.status`,
		requestID, workflow.OpenAssignmentStatuses, workflow.AssignmentCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel open assignments: %w", err)
	}
	released, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ReleasedAssignment, error) {
		var ra ReleasedAssignment
		err := row.Scan(&ra.ID, &ra.InspectorID, &ra.From)
		return ra, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan cancelled assignments: %w", err)
	}

	for i := range released {
		tag, err := tx.Exec(ctx, `
			UPDATE inspectors SET availability = $2, updated_at = now()
			WHERE user_id = $1
			  AND availability = $3
			  AND NOT EXISTS (
				SELECT 1 FROM assignments WHERE inspector_id = $1 AND status = ANY($4)
			  )`,
			released[i].InspectorID, workflow.InspectorAvailable, workflow.InspectorBusy, workflow.OpenAssignmentStatuses)
		if err != nil {
			return nil, fmt.Errorf("free inspector: %w", err)
		}
		released[i].InspectorFreed = tag.RowsAffected() > 0
	}
	return released, nil
}

func (r *Repo) IssuePaymentLink(ctx context.Context, u PaymentLinkUpdate) (InspectionRequest, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return InspectionRequest{}, fmt.Errorf("begin payment link: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current workflow.InspectionStatus
	err = tx.QueryRow(ctx, `SELECT status FROM inspection_requests WHERE id = $1 FOR UPDATE`, u.ID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return InspectionRequest{}, apperr.NotFound(requestNotFoundMsg)
	}
	if err != nil {
		return InspectionRequest{}, fmt.Errorf("lock inspection request: %w", err)
	}
	if err := workflow.Inspections.Transition(current, workflow.InspectionPaymentRequired); err != nil {
		return InspectionRequest{}, err
	}

	updated, err := scanRequest(tx.QueryRow(ctx, `
		UPDATE inspection_requests
		SET status = $2,
			estimated_cost = $3,
			payment_link_url = $4,
			payment_provider_ref = $5,
			verification_token_hash = $6,
			verification_expires_at = $7,
			updated_at = now()
		WHERE id = $1
		RETURNING `+requestColumns,
		u.ID, workflow.InspectionPaymentRequired, u.EstimatedCost, u.LinkURL, u.ProviderRef, u.TokenHash, u.ExpiresAt))
	if err != nil {
		return InspectionRequest{}, fmt.Errorf("store payment link: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return InspectionRequest{}, fmt.Errorf("commit payment link: %w", err)
	}
	return updated, nil
}

func (r *Repo) ExpirePaymentLink(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inspection_requests
		SET payment_link_url = NULL, updated_at = now()
		WHERE id = $1
		  AND status = $2
		  AND payment_link_url IS NOT NULL
		  AND verification_expires_at <= $3
	`, id, workflow.InspectionPaymentRequired, now)
	if err != nil {
		return false, fmt.Errorf("expire payment link: %w", err)
	}
	return tag.RowsAffected() > 0, nil
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
