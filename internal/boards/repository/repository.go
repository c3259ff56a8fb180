package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	materialNotFoundMsg = "material request not found"
	warrantyNotFoundMsg = "warranty claim not found"
)

type MaterialRequest struct {
	ID           uuid.UUID               `json:"id"`
	ProjectID    *uuid.UUID              `json:"projectId,omitempty"`
	RequestedBy  uuid.UUID               `json:"requestedBy"`
	MaterialName string                  `json:"materialName"`
	Quantity     float64                 `json:"quantity"`
	Unit         string                  `json:"unit"`
	Supplier     *string                 `json:"supplier,omitempty"`
	NeededBy     *time.Time              `json:"neededBy,omitempty"`
	Notes        *string                 `json:"notes,omitempty"`
	Status       workflow.MaterialStatus `json:"status"`
	CreatedAt    time.Time               `json:"createdAt"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

type WarrantyClaim struct {
	ID          uuid.UUID               `json:"id"`
	ProjectID   *uuid.UUID              `json:"projectId,omitempty"`
	ClientID    uuid.UUID               `json:"clientId"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Status      workflow.WarrantyStatus `json:"status"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

type MaterialFilter struct {
	ProjectID *uuid.UUID
}

type WarrantyFilter struct {
	ProjectID *uuid.UUID
	ClientID  *uuid.UUID
}

type MaterialStore interface {
	CreateMaterialRequest(ctx context.Context, m MaterialRequest) (MaterialRequest, error)
	ListMaterialRequests(ctx context.Context, filter MaterialFilter) ([]MaterialRequest, error)
	// SetMaterialStatus writes status unconditionally and returns the
	// previous one.
	SetMaterialStatus(ctx context.Context, id uuid.UUID, status workflow.MaterialStatus) (MaterialRequest, workflow.MaterialStatus, error)
}

type WarrantyStore interface {
	CreateWarrantyClaim(ctx context.Context, w WarrantyClaim) (WarrantyClaim, error)
	GetWarrantyClaim(ctx context.Context, id uuid.UUID) (WarrantyClaim, error)
	ListWarrantyClaims(ctx context.Context, filter WarrantyFilter) ([]WarrantyClaim, error)
	SetWarrantyStatus(ctx context.Context, id uuid.UUID, status workflow.WarrantyStatus) (WarrantyClaim, workflow.WarrantyStatus, error)
}

type Repository interface {
	MaterialStore
	WarrantyStore
}

type Repo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const materialColumns = `id, project_id, requested_by, material_name, quantity::float8, unit,
	supplier, needed_by, notes, status, created_at, updated_at`

const warrantyColumns = `id, project_id, client_id, title, description, status, created_at, updated_at`

func scanMaterial(row pgx.Row, extra ...any) (MaterialRequest, error) {
	var m MaterialRequest
	dest := append(extra, &m.ID, &m.ProjectID, &m.RequestedBy, &m.MaterialName, &m.Quantity, &m.Unit,
		&m.Supplier, &m.NeededBy, &m.Notes, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	err := row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return MaterialRequest{}, apperr.NotFound(materialNotFoundMsg)
	}
	return m, err
}

func scanWarranty(row pgx.Row, extra ...any) (WarrantyClaim, error) {
	var w WarrantyClaim
	dest := append(extra, &w.ID, &w.ProjectID, &w.ClientID, &w.Title, &w.Description, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	err := row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return WarrantyClaim{}, apperr.NotFound(warrantyNotFoundMsg)
	}
	return w, err
}

func (r *Repo) CreateMaterialRequest(ctx context.Context, m MaterialRequest) (MaterialRequest, error) {
	created, err := scanMaterial(r.pool.QueryRow(ctx, `
		INSERT INTO material_requests (project_id, requested_by, material_name, quantity, unit, supplier, needed_by, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+materialColumns,
		m.ProjectID, m.RequestedBy, m.MaterialName, m.Quantity, m.Unit, m.Supplier, m.NeededBy, m.Notes, workflow.MaterialPending))
	if err != nil {
		return MaterialRequest{}, fmt.Errorf("insert material request: %w", err)
	}
	return created, nil
}

func (r *Repo) ListMaterialRequests(ctx context.Context, filter MaterialFilter) ([]MaterialRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+materialColumns+` FROM material_requests
		WHERE ($1::uuid IS NULL OR project_id = $1)
		ORDER BY created_at DESC`, filter.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list material requests: %w", err)
	}
	defer rows.Close()

	items := make([]MaterialRequest, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material request: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate material requests: %w", err)
	}
	return items, nil
}

func (r *Repo) SetMaterialStatus(ctx context.Context, id uuid.UUID, status workflow.MaterialStatus) (MaterialRequest, workflow.MaterialStatus, error) {
	var previous workflow.MaterialStatus
	m, err := scanMaterial(r.pool.QueryRow(ctx, `
		WITH old AS (SELECT id, status FROM material_requests WHERE id = $1 FOR UPDATE)
		UPDATE material_requests m SET status = $2, updated_at = now()
		FROM old WHERE m.id = old.id
		RETURNING old.status, `+prefixed("m", materialColumns), id, status), &previous)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return MaterialRequest{}, "", fmt.Errorf("set material request status: %w", err)
	}
	return m, previous, err
}

func (r *Repo) CreateWarrantyClaim(ctx context.Context, w WarrantyClaim) (WarrantyClaim, error) {
	created, err := scanWarranty(r.pool.QueryRow(ctx, `
		INSERT INTO warranty_claims (project_id, client_id, title, description, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+warrantyColumns,
		w.ProjectID, w.ClientID, w.Title, w.Description, workflow.WarrantySubmitted))
	if err != nil {
		return WarrantyClaim{}, fmt.Errorf("insert warranty claim: %w", err)
	}
	return created, nil
}

func (r *Repo) GetWarrantyClaim(ctx context.Context, id uuid.UUID) (WarrantyClaim, error) {
	w, err := scanWarranty(r.pool.QueryRow(ctx, `SELECT `+warrantyColumns+` FROM warranty_claims WHERE id = $1`, id))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return WarrantyClaim{}, fmt.Errorf("get warranty claim: %w", err)
	}
	return w, err
}

func (r *Repo) ListWarrantyClaims(ctx context.Context, filter WarrantyFilter) ([]WarrantyClaim, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+warrantyColumns+` FROM warranty_claims
		WHERE ($1::uuid IS NULL OR project_id = $1)
		  AND ($2::uuid IS NULL OR client_id = $2)
		ORDER BY created_at DESC`, filter.ProjectID, filter.ClientID)
	if err != nil {
		return nil, fmt.Errorf("list warranty claims: %w", err)
	}
	defer rows.Close()

	items := make([]WarrantyClaim, 0)
	for rows.Next() {
		w, err := scanWarranty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan warranty claim: %w", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate warranty claims: %w", err)
	}
	return items, nil
}

func (r *Repo) SetWarrantyStatus(ctx context.Context, id uuid.UUID, status workflow.WarrantyStatus) (WarrantyClaim, workflow.WarrantyStatus, error) {
	var previous workflow.WarrantyStatus
	w, err := scanWarranty(r.pool.QueryRow(ctx, `
		WITH old AS (SELECT id, status FROM warranty_claims WHERE id = $1 FOR UPDATE)
		UPDATE warranty_claims w SET status = $2, updated_at = now()
		FROM old WHERE w.id = old.id
		RETURNING old.status, `+prefixed("w", warrantyColumns), id, status), &previous)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return WarrantyClaim{}, "", fmt.Errorf("set warranty claim status: %w", err)
	}
	return w, previous, err
}

// prefixed qualifies each column in a column list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
