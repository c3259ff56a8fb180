package service

import (
	"context"
	"time"

	"interior_portal_backend/internal/events"
	"interior_portal_backend/internal/projects/repository"
	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/sanitize"

	"github.com/google/uuid"
)

// managerRoles may create and edit projects, tasks and teams.
var managerRoles = []string{authz.RoleProjectManager, authz.RoleAdmin}

type CreateProjectInput struct {
	Name          string
	ClientID      *uuid.UUID
	Description   *string
	TeamID        *uuid.UUID
	EstimatedCost *float64
}

type ListProjectsInput struct {
	ClientID *uuid.UUID
	TeamID   *uuid.UUID
	Status   *string
	Page     int
	PageSize int
}

type CreateTaskInput struct {
	Title       string
	Description *string
	AssigneeID  *uuid.UUID
	Weight      *float64
	DueDate     *time.Time
}

type UpdateTaskInput struct {
	Status             *string
	ProgressPercentage *int
}

type CreateTeamInput struct {
	Name   string
	LeadID *uuid.UUID
}

type AddMemberInput struct {
	UserID uuid.UUID
	Role   string
}

type AvailabilityInput struct {
	Availability string
	Workload     *int
}

type Service struct {
	repo repository.Repository
	bus  events.Bus
	log  *logger.Logger
}

func New(repo repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

func (s *Service) CreateProject(ctx context.Context, actor authz.Actor, in CreateProjectInput) (repository.Project, error) {
	if !actor.HasAnyRole(managerRoles...) {
		return repository.Project{}, apperr.Forbidden("only project managers can create projects")
	}
	name := sanitize.Text(in.Name)
	if name == "" {
		return repository.Project{}, apperr.Validation("project name is required")
	}
	if in.EstimatedCost != nil && *in.EstimatedCost < 0 {
		return repository.Project{}, apperr.Validation("estimated cost cannot be negative")
	}

	project, err := s.repo.CreateProject(ctx, repository.NewProject{
		Name:          name,
		ClientID:      in.ClientID,
		Description:   sanitize.TextPtr(in.Description),
		TeamID:        in.TeamID,
		EstimatedCost: in.EstimatedCost,
	})
	if err != nil {
		return repository.Project{}, err
	}
	s.log.Info("project created", "projectId", project.ID, "status", project.Status)
	return project, nil
}

// GetProject returns a project with its tasks. Clients only see their own.
func (s *Service) GetProject(ctx context.Context, actor authz.Actor, id uuid.UUID) (repository.Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return repository.Project{}, err
	}
	if err := canView(actor, project); err != nil {
		return repository.Project{}, err
	}
	return project, nil
}

// ListProjects pages through projects; a client's listing is scoped to their own.
func (s *Service) ListProjects(ctx context.Context, actor authz.Actor, in ListProjectsInput) ([]repository.Project, int, error) {
	params := repository.ListParams{ClientID: in.ClientID, TeamID: in.TeamID, Page: in.Page, PageSize: in.PageSize}
	if !actor.IsStaff() {
		params.ClientID = &actor.UserID
	}
	if in.Status != nil {
		status, err := workflow.Projects.Parse(*in.Status)
		if err != nil {
			return nil, 0, err
		}
		params.Status = &status
	}
	return s.repo.ListProjects(ctx, params)
}

// AssignTeam puts a team on the project. On Hold projects become Active.
func (s *Service) AssignTeam(ctx context.Context, actor authz.Actor, projectID, teamID uuid.UUID) (repository.Project, error) {
	if !actor.HasAnyRole(managerRoles...) {
		return repository.Project{}, apperr.Forbidden("only project managers can assign teams")
	}
	out, err := s.repo.AssignTeam(ctx, projectID, teamID)
	if err != nil {
		return repository.Project{}, err
	}
	s.log.Info("project team assigned", "projectId", projectID, "teamId", teamID)
	s.publishProgress(ctx, out)
	return out.Project, nil
}

func (s *Service) CreateTask(ctx context.Context, actor authz.Actor, projectID uuid.UUID, in CreateTaskInput) (repository.Task, error) {
	if !actor.HasAnyRole(managerRoles...) {
		return repository.Task{}, apperr.Forbidden("only project managers can create tasks")
	}
	title := sanitize.Text(in.Title)
	if title == "" {
		return repository.Task{}, apperr.Validation("task title is required")
	}
	weight := 1.0
	if in.Weight != nil {
		if *in.Weight < 0 {
			return repository.Task{}, apperr.Validation("task weight cannot be negative")
		}
		weight = *in.Weight
	}

	out, err := s.repo.CreateTask(ctx, repository.NewTask{
		ProjectID:   projectID,
		Title:       title,
		Description: sanitize.TextPtr(in.Description),
		AssigneeID:  in.AssigneeID,
		Weight:      weight,
		DueDate:     in.DueDate,
	})
	if err != nil {
		return repository.Task{}, err
	}
	s.publishProgress(ctx, out.Project)
	return out.Task, nil
}

func (s *Service) ListTasks(ctx context.Context, actor authz.Actor, projectID uuid.UUID) ([]repository.Task, error) {
	if !actor.IsStaff() {
		if _, err := s.GetProject(ctx, actor, projectID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListTasks(ctx, projectID)
}

// UpdateTask changes a task's status and/or percentage and recomputes the
// project in the same transaction. Done or Completed without a percentage
// sets 100. Repeating an update is a no-op that yields the same state.
func (s *Service) UpdateTask(ctx context.Context, actor authz.Actor, taskID uuid.UUID, in UpdateTaskInput) (repository.Task, error) {
	if in.Status == nil && in.ProgressPercentage == nil {
		return repository.Task{}, apperr.Validation("status or progressPercentage is required")
	}
	if p := in.ProgressPercentage; p != nil && (*p < 0 || *p > 100) {
		return repository.Task{}, apperr.Validation("progressPercentage must be between 0 and 100")
	}
	update := repository.TaskUpdate{ID: taskID, ProgressPercentage: in.ProgressPercentage}
	if in.Status != nil {
		status, err := workflow.Tasks.Parse(*in.Status)
		if err != nil {
			return repository.Task{}, err
		}
		update.Status = &status
	}

	if !actor.HasAnyRole(managerRoles...) {
		task, err := s.repo.GetTask(ctx, taskID)
		if err != nil {
			return repository.Task{}, err
		}
		if task.AssigneeUserID == nil || *task.AssigneeUserID != actor.UserID {
			return repository.Task{}, apperr.Forbidden("not your task")
		}
	}

	out, err := s.repo.UpdateTask(ctx, update)
	if err != nil {
		return repository.Task{}, err
	}

	if out.PreviousStatus != out.Task.Status {
		s.log.StatusChanged("task", taskID.String(), string(out.PreviousStatus), string(out.Task.Status))
	}
	s.bus.Publish(ctx, events.TaskUpdated{
		BaseEvent:          events.NewBaseEvent(),
		TaskID:             out.Task.ID,
		ProjectID:          out.Task.ProjectID,
		Status:             string(out.Task.Status),
		ProgressPercentage: out.Task.ProgressPercentage,
	})
	s.publishProgress(ctx, out.Project)
	return out.Task, nil
}

func (s *Service) CreateTeam(ctx context.Context, actor authz.Actor, in CreateTeamInput) (repository.Team, error) {
	if !actor.HasAnyRole(managerRoles...) {
		return repository.Team{}, apperr.Forbidden("only project managers can create teams")
	}
	name := sanitize.Text(in.Name)
	if name == "" {
		return repository.Team{}, apperr.Validation("team name is required")
	}
	return s.repo.CreateTeam(ctx, repository.NewTeam{Name: name, LeadID: in.LeadID})
}

func (s *Service) ListTeams(ctx context.Context, actor authz.Actor) ([]repository.Team, error) {
	if !actor.IsStaff() {
		return nil, apperr.Forbidden("only staff can list teams")
	}
	return s.repo.ListTeams(ctx)
}

func (s *Service) AddMember(ctx context.Context, actor authz.Actor, teamID uuid.UUID, in AddMemberInput) (repository.Member, error) {
	if !actor.HasAnyRole(managerRoles...) {
		return repository.Member{}, apperr.Forbidden("only project managers can add team members")
	}
	role := sanitize.Text(in.Role)
	if role == "" {
		return repository.Member{}, apperr.Validation("member role is required")
	}
	return s.repo.AddMember(ctx, repository.NewMember{TeamID: teamID, UserID: in.UserID, Role: role})
}

// SetMemberAvailability updates a member's availability and, optionally,
// workload (0-100). Members may update themselves.
func (s *Service) SetMemberAvailability(ctx context.Context, actor authz.Actor, teamID, memberID uuid.UUID, in AvailabilityInput) (repository.Member, error) {
	availability, err := workflow.MemberAvailabilities.Parse(in.Availability)
	if err != nil {
		return repository.Member{}, err
	}
	if w := in.Workload; w != nil && (*w < 0 || *w > 100) {
		return repository.Member{}, apperr.Validation("workload must be between 0 and 100")
	}

	if !actor.HasAnyRole(managerRoles...) {
		member, err := s.repo.GetMember(ctx, teamID, memberID)
		if err != nil {
			return repository.Member{}, err
		}
		if member.UserID != actor.UserID {
			return repository.Member{}, apperr.Forbidden("cannot change another member's availability")
		}
	}

	member, err := s.repo.SetMemberAvailability(ctx, repository.AvailabilityUpdate{
		TeamID:       teamID,
		MemberID:     memberID,
		Availability: availability,
		Workload:     in.Workload,
	})
	if err != nil {
		return repository.Member{}, err
	}
	s.log.Info("team member availability updated", "memberId", memberID, "availability", availability, "workload", member.Workload)
	return member, nil
}

func (s *Service) publishProgress(ctx context.Context, r repository.Recomputed) {
	if !r.Changed() {
		return
	}
	if r.PreviousStatus != r.Project.Status {
		s.log.StatusChanged("project", r.Project.ID.String(), string(r.PreviousStatus), string(r.Project.Status))
	}
	var clientID uuid.UUID
	if r.Project.ClientID != nil {
		clientID = *r.Project.ClientID
	}
	s.bus.Publish(ctx, events.ProjectProgressChanged{
		BaseEvent:      events.NewBaseEvent(),
		ProjectID:      r.Project.ID,
		ClientID:       clientID,
		Progress:       r.Project.Progress,
		Status:         string(r.Project.Status),
		PreviousStatus: string(r.PreviousStatus),
	})
}

func canView(actor authz.Actor, p repository.Project) error {
	if actor.IsStaff() || (p.ClientID != nil && *p.ClientID == actor.UserID) {
		return nil
	}
	return apperr.Forbidden("not your project")
}
