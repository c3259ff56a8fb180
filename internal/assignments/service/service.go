package service

import (
	"context"
	"time"

	"interior_portal_backend/internal/assignments/repository"
	"interior_portal_backend/internal/events"
	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/sanitize"

	"github.com/google/uuid"
)

type CreateInput struct {
	InspectionRequestID uuid.UUID
	InspectorID         uuid.UUID
	Notes               *string
}

type ListFilter struct {
	InspectorID         *uuid.UUID
	InspectionRequestID *uuid.UUID
	Status              *string
	Page                int
	PageSize            int
}

type ListResult struct {
	Items    []repository.Assignment `json:"items"`
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"pageSize"`
}

// StatusUpdate is the body of the generic status endpoint.
type StatusUpdate struct {
	Status        string
	StartTime     *time.Time
	DeclineReason *string
	ActionNotes   *string
}

type Service struct {
	repo repository.Repository
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time
}

func New(repo repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log, now: time.Now}
}

// Create assigns a verified request to an available inspector.
func (s *Service) Create(ctx context.Context, actor authz.Actor, in CreateInput) (repository.Assignment, error) {
	if !actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin) {
		return repository.Assignment{}, apperr.Forbidden("only staff can assign inspectors")
	}

	out, err := s.repo.Create(ctx, repository.NewAssignment{
		InspectionRequestID: in.InspectionRequestID,
		InspectorID:         in.InspectorID,
		AssignedBy:          actor.UserID,
		Notes:               sanitize.TextPtr(in.Notes),
	})
	if err != nil {
		return repository.Assignment{}, err
	}

	a := out.Assignment
	s.log.Info("assignment created", "id", a.ID, "inspectionRequestId", a.InspectionRequestID, "inspectorId", a.InspectorID)
	s.bus.Publish(ctx, events.AssignmentCreated{
		BaseEvent:           events.NewBaseEvent(),
		AssignmentID:        a.ID,
		InspectionRequestID: a.InspectionRequestID,
		InspectorID:         a.InspectorID,
		AssignedBy:          actor.UserID,
		PropertyAddress:     a.PropertyAddress,
	})
	s.publishRequestMoved(ctx, out, "")
	return a, nil
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (repository.Assignment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Assignment{}, err
	}
	if actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin) || a.InspectorID == actor.UserID || a.ClientID == actor.UserID {
		return a, nil
	}
	return repository.Assignment{}, apperr.Forbidden("not your assignment")
}

// List returns assignments. Inspectors only see their own.
func (s *Service) List(ctx context.Context, actor authz.Actor, filter ListFilter) (ListResult, error) {
	params := repository.ListParams{
		InspectorID:         filter.InspectorID,
		InspectionRequestID: filter.InspectionRequestID,
		Page:                filter.Page,
		PageSize:            filter.PageSize,
	}
	switch {
	case actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin):
	case actor.HasRole(authz.RoleInspector):
		params.InspectorID = &actor.UserID
	default:
		return ListResult{}, apperr.Forbidden("only staff can list assignments")
	}
	if filter.Status != nil && *filter.Status != "" {
		status, err := workflow.Assignments.Parse(*filter.Status)
		if err != nil {
			return ListResult{}, err
		}
		params.Status = &status
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	page, pageSize := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return ListResult{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Accept starts the inspection: the inspector becomes busy at the property
// and the request moves to in-progress.
func (s *Service) Accept(ctx context.Context, actor authz.Actor, id uuid.UUID, startTime *time.Time, notes *string) (repository.Assignment, error) {
	return s.apply(ctx, actor, repository.Change{
		ID:          id,
		To:          workflow.AssignmentInProgress,
		Expect:      expect(workflow.AssignmentAssigned),
		StartTime:   startTime,
		ActionNotes: notes,
	})
}

// Decline hands the request back for reassignment. A reason is required.
func (s *Service) Decline(ctx context.Context, actor authz.Actor, id uuid.UUID, reason string, notes *string) (repository.Assignment, error) {
	cleaned := sanitize.Text(reason)
	if cleaned == "" {
		return repository.Assignment{}, apperr.Validation("decline reason is required")
	}
	return s.apply(ctx, actor, repository.Change{
		ID:            id,
		To:            workflow.AssignmentDeclined,
		Expect:        expect(workflow.AssignmentAssigned),
		DeclineReason: &cleaned,
		ActionNotes:   notes,
	})
}

func (s *Service) Pause(ctx context.Context, actor authz.Actor, id uuid.UUID, notes *string) (repository.Assignment, error) {
	return s.apply(ctx, actor, repository.Change{
		ID:          id,
		To:          workflow.AssignmentPaused,
		Expect:      expect(workflow.AssignmentInProgress),
		ActionNotes: notes,
	})
}

func (s *Service) Resume(ctx context.Context, actor authz.Actor, id uuid.UUID, notes *string) (repository.Assignment, error) {
	return s.apply(ctx, actor, repository.Change{
		ID:          id,
		To:          workflow.AssignmentInProgress,
		Expect:      expect(workflow.AssignmentPaused),
		ActionNotes: notes,
	})
}

// Complete finishes the inspection and frees the inspector.
func (s *Service) Complete(ctx context.Context, actor authz.Actor, id uuid.UUID, notes *string) (repository.Assignment, error) {
	return s.apply(ctx, actor, repository.Change{
		ID:          id,
		To:          workflow.AssignmentCompleted,
		Expect:      expect(workflow.AssignmentInProgress),
		ActionNotes: notes,
	})
}

// UpdateStatus dispatches a raw status to the matching lifecycle operation.
// "in-progress" means accept from assigned and resume from paused.
func (s *Service) UpdateStatus(ctx context.Context, actor authz.Actor, id uuid.UUID, in StatusUpdate) (repository.Assignment, error) {
	target, err := workflow.Assignments.Parse(in.Status)
	if err != nil {
		return repository.Assignment{}, err
	}

	switch target {
	case workflow.AssignmentInProgress:
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return repository.Assignment{}, err
		}
		if current.Status == workflow.AssignmentPaused {
			return s.Resume(ctx, actor, id, in.ActionNotes)
		}
		return s.Accept(ctx, actor, id, in.StartTime, in.ActionNotes)
	case workflow.AssignmentDeclined:
		reason := ""
		if in.DeclineReason != nil {
			reason = *in.DeclineReason
		}
		return s.Decline(ctx, actor, id, reason, in.ActionNotes)
	case workflow.AssignmentPaused:
		return s.Pause(ctx, actor, id, in.ActionNotes)
	case workflow.AssignmentCompleted:
		return s.Complete(ctx, actor, id, in.ActionNotes)
	default:
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return repository.Assignment{}, err
		}
		return repository.Assignment{}, &workflow.TransitionError{Entity: workflow.Assignments.Entity(), From: string(current.Status), To: string(target)}
	}
}

func (s *Service) ListInspectors(ctx context.Context, actor authz.Actor, rawAvailability *string) ([]repository.Inspector, error) {
	if !actor.HasAnyRole(authz.RoleCSR, authz.RoleAdmin) {
		return nil, apperr.Forbidden("only staff can list inspectors")
	}
	var availability *workflow.InspectorAvailability
	if rawAvailability != nil && *rawAvailability != "" {
		parsed, err := workflow.InspectorAvailabilities.Parse(*rawAvailability)
		if err != nil {
			return nil, err
		}
		availability = &parsed
	}
	return s.repo.ListInspectors(ctx, availability)
}

// SetInspectorAvailability is an admin override of an inspector's availability.
func (s *Service) SetInspectorAvailability(ctx context.Context, actor authz.Actor, inspectorID uuid.UUID, rawAvailability string) (repository.Inspector, error) {
	if !actor.IsAdmin() {
		return repository.Inspector{}, apperr.Forbidden("only admins can change inspector availability")
	}
	availability, err := workflow.InspectorAvailabilities.Parse(rawAvailability)
	if err != nil {
		return repository.Inspector{}, err
	}

	before, err := s.repo.GetInspector(ctx, inspectorID)
	if err != nil {
		return repository.Inspector{}, err
	}
	updated, err := s.repo.SetInspectorAvailability(ctx, inspectorID, availability)
	if err != nil {
		return repository.Inspector{}, err
	}
	s.log.StatusChanged("inspector", inspectorID.String(), string(before.Availability), string(updated.Availability))
	return updated, nil
}

func (s *Service) apply(ctx context.Context, actor authz.Actor, change repository.Change) (repository.Assignment, error) {
	current, err := s.repo.GetByID(ctx, change.ID)
	if err != nil {
		return repository.Assignment{}, err
	}
	if !actor.IsAdmin() && current.InspectorID != actor.UserID {
		return repository.Assignment{}, apperr.Forbidden("only the assigned inspector can update this assignment")
	}

	change.At = s.now().UTC()
	change.ActionNotes = sanitize.TextPtr(change.ActionNotes)
	out, err := s.repo.Apply(ctx, change)
	if err != nil {
		return repository.Assignment{}, err
	}

	a := out.Assignment
	s.log.StatusChanged("assignment", a.ID.String(), string(out.PreviousStatus), string(a.Status))
	evt := events.AssignmentUpdated{
		BaseEvent:           events.NewBaseEvent(),
		AssignmentID:        a.ID,
		InspectionRequestID: a.InspectionRequestID,
		InspectorID:         a.InspectorID,
		From:                string(out.PreviousStatus),
		To:                  string(a.Status),
	}
	reason := ""
	if a.Status == workflow.AssignmentDeclined && a.DeclineReason != nil {
		reason = *a.DeclineReason
		evt.DeclineReason = reason
	}
	s.bus.Publish(ctx, evt)
	s.publishRequestMoved(ctx, out, reason)
	return a, nil
}

func (s *Service) publishRequestMoved(ctx context.Context, out repository.Outcome, reason string) {
	if !out.RequestMoved() {
		return
	}
	a := out.Assignment
	s.log.StatusChanged("inspection_request", a.InspectionRequestID.String(), string(out.RequestFrom), string(out.RequestTo))
	s.bus.Publish(ctx, events.InspectionStatusChanged{
		BaseEvent:           events.NewBaseEvent(),
		InspectionRequestID: a.InspectionRequestID,
		ClientID:            a.ClientID,
		From:                string(out.RequestFrom),
		To:                  string(out.RequestTo),
		Reason:              reason,
	})
}

func expect(s workflow.AssignmentStatus) *workflow.AssignmentStatus {
	return &s
}
