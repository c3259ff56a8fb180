package service

import (
	"context"
	"time"

	"interior_portal_backend/internal/boards/repository"
	"interior_portal_backend/internal/events"
	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	boardMaterial = "material"
	boardWarranty = "warranty"
)

var (
	materialRoles = []string{authz.RoleWarehouse, authz.RoleProjectManager, authz.RoleAdmin}
	warrantyRoles = []string{authz.RoleCSR, authz.RoleProjectManager, authz.RoleAdmin}
)

// Board is a Kanban view: every column is present, in workflow order, even
// when empty.
type Board[T any] struct {
	Columns []string       `json:"columns"`
	Items   map[string][]T `json:"items"`
}

func partition[S ~string, T any](m *workflow.Machine[S], items []T, status func(T) S) Board[T] {
	states := m.States()
	b := Board[T]{Columns: make([]string, 0, len(states)), Items: make(map[string][]T, len(states))}
	for _, s := range states {
		b.Columns = append(b.Columns, string(s))
		b.Items[string(s)] = []T{}
	}
	for _, item := range items {
		key := string(status(item))
		if _, ok := b.Items[key]; ok {
			b.Items[key] = append(b.Items[key], item)
		}
	}
	return b
}

type MaterialInput struct {
	ProjectID    *uuid.UUID
	MaterialName string
	Quantity     float64
	Unit         string
	Supplier     *string
	NeededBy     *time.Time
	Notes        *string
}

type WarrantyInput struct {
	ProjectID   *uuid.UUID
	ClientID    *uuid.UUID
	Title       string
	Description string
}

type Service struct {
	repo repository.Repository
	bus  events.Bus
	log  *logger.Logger
}

func New(repo repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

func (s *Service) CreateMaterialRequest(ctx context.Context, actor authz.Actor, in MaterialInput) (repository.MaterialRequest, error) {
	if !actor.HasAnyRole(materialRoles...) {
		return repository.MaterialRequest{}, apperr.Forbidden("not allowed to request materials")
	}
	name, unit := sanitize.Text(in.MaterialName), sanitize.Text(in.Unit)
	if name == "" || unit == "" {
		return repository.MaterialRequest{}, apperr.Validation("material name and unit are required")
	}
	if in.Quantity <= 0 {
		return repository.MaterialRequest{}, apperr.Validation("quantity must be greater than zero")
	}
	return s.repo.CreateMaterialRequest(ctx, repository.MaterialRequest{
		ProjectID:    in.ProjectID,
		RequestedBy:  actor.UserID,
		MaterialName: name,
		Quantity:     in.Quantity,
		Unit:         unit,
		Supplier:     sanitize.TextPtr(in.Supplier),
		NeededBy:     in.NeededBy,
		Notes:        sanitize.TextPtr(in.Notes),
	})
}

func (s *Service) ListMaterialRequests(ctx context.Context, actor authz.Actor, projectID *uuid.UUID) ([]repository.MaterialRequest, error) {
	if !actor.IsStaff() {
		return nil, apperr.Forbidden("only staff can view material requests")
	}
	return s.repo.ListMaterialRequests(ctx, repository.MaterialFilter{ProjectID: projectID})
}

func (s *Service) MaterialBoard(ctx context.Context, actor authz.Actor, projectID *uuid.UUID) (Board[repository.MaterialRequest], error) {
	items, err := s.ListMaterialRequests(ctx, actor, projectID)
	if err != nil {
		return Board[repository.MaterialRequest]{}, err
	}
	return partition(workflow.Materials, items, func(m repository.MaterialRequest) workflow.MaterialStatus { return m.Status }), nil
}

// SetMaterialStatus moves a card to any column; only membership is checked.
func (s *Service) SetMaterialStatus(ctx context.Context, actor authz.Actor, id uuid.UUID, raw string) (repository.MaterialRequest, error) {
	if !actor.HasAnyRole(materialRoles...) {
		return repository.MaterialRequest{}, apperr.Forbidden("not allowed to move material requests")
	}
	status, err := workflow.Materials.Parse(raw)
	if err != nil {
		return repository.MaterialRequest{}, err
	}
	item, previous, err := s.repo.SetMaterialStatus(ctx, id, status)
	if err != nil {
		return repository.MaterialRequest{}, err
	}
	s.moved(ctx, boardMaterial, id, string(previous), string(item.Status))
	return item, nil
}

// CreateWarrantyClaim files a claim. Clients file for themselves; staff file
// on a client's behalf.
func (s *Service) CreateWarrantyClaim(ctx context.Context, actor authz.Actor, in WarrantyInput) (repository.WarrantyClaim, error) {
	clientID := actor.UserID
	switch {
	case actor.HasAnyRole(warrantyRoles...):
		if in.ClientID == nil {
			return repository.WarrantyClaim{}, apperr.Validation("clientId is required when filing for a client")
		}
		clientID = *in.ClientID
	case !actor.HasRole(authz.RoleClient):
		return repository.WarrantyClaim{}, apperr.Forbidden("not allowed to file warranty claims")
	}

	title, description := sanitize.Text(in.Title), sanitize.Text(in.Description)
	if title == "" || description == "" {
		return repository.WarrantyClaim{}, apperr.Validation("title and description are required")
	}
	claim, err := s.repo.CreateWarrantyClaim(ctx, repository.WarrantyClaim{
		ProjectID:   in.ProjectID,
		ClientID:    clientID,
		Title:       title,
		Description: description,
	})
	if err != nil {
		return repository.WarrantyClaim{}, err
	}
	s.log.Info("warranty claim filed", "claimId", claim.ID, "clientId", clientID)
	return claim, nil
}

// ListWarrantyClaims returns claims; clients only see their own.
func (s *Service) ListWarrantyClaims(ctx context.Context, actor authz.Actor, projectID *uuid.UUID) ([]repository.WarrantyClaim, error) {
	filter := repository.WarrantyFilter{ProjectID: projectID}
	if !actor.IsStaff() {
		filter.ClientID = &actor.UserID
	}
	return s.repo.ListWarrantyClaims(ctx, filter)
}

func (s *Service) WarrantyBoard(ctx context.Context, actor authz.Actor, projectID *uuid.UUID) (Board[repository.WarrantyClaim], error) {
	if !actor.IsStaff() {
		return Board[repository.WarrantyClaim]{}, apperr.Forbidden("only staff can view the warranty board")
	}
	items, err := s.ListWarrantyClaims(ctx, actor, projectID)
	if err != nil {
		return Board[repository.WarrantyClaim]{}, err
	}
	return partition(workflow.Warranties, items, func(w repository.WarrantyClaim) workflow.WarrantyStatus { return w.Status }), nil
}

func (s *Service) SetWarrantyStatus(ctx context.Context, actor authz.Actor, id uuid.UUID, raw string) (repository.WarrantyClaim, error) {
	if !actor.HasAnyRole(warrantyRoles...) {
		return repository.WarrantyClaim{}, apperr.Forbidden("not allowed to move warranty claims")
	}
	status, err := workflow.Warranties.Parse(raw)
	if err != nil {
		return repository.WarrantyClaim{}, err
	}
	claim, previous, err := s.repo.SetWarrantyStatus(ctx, id, status)
	if err != nil {
		return repository.WarrantyClaim{}, err
	}
	s.moved(ctx, boardWarranty, id, string(previous), string(claim.Status))
	return claim, nil
}

func (s *Service) moved(ctx context.Context, board string, id uuid.UUID, from, to string) {
	if from == to {
		return
	}
	s.log.StatusChanged(board+"_board_item", id.String(), from, to)
	s.bus.Publish(ctx, events.BoardItemMoved{
		BaseEvent: events.NewBaseEvent(),
		Board:     board,
		ItemID:    id,
		From:      from,
		To:        to,
	})
}
