package handler

import (
	"interior_portal_backend/internal/projects/service"
	"interior_portal_backend/internal/projects/transport"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/httpkit"
	"interior_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidProjectID = "invalid project id"
	msgInvalidTeamID    = "invalid team id"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) CreateProject(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	var req transport.CreateProjectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	project, err := h.svc.CreateProject(c.Request.Context(), actor, service.CreateProjectInput{
		Name:          req.Name,
		ClientID:      req.ClientID,
		Description:   req.Description,
		TeamID:        req.TeamID,
		EstimatedCost: req.EstimatedCost,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, project)
}

func (h *Handler) ListProjects(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	var q transport.ListProjectsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	if !h.validate(c, q) {
		return
	}

	in := service.ListProjectsInput{
		ClientID: optionalUUID(q.ClientID),
		TeamID:   optionalUUID(q.TeamID),
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.Status != "" {
		in.Status = &q.Status
	}
	items, total, err := h.svc.ListProjects(c.Request.Context(), actor, in)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items, "total": total})
}

func (h *Handler) GetProject(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", msgInvalidProjectID)
	if !ok {
		return
	}

	project, err := h.svc.GetProject(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, project)
}

func (h *Handler) AssignTeam(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", msgInvalidProjectID)
	if !ok {
		return
	}
	var req transport.AssignTeamRequest
	if !h.bindJSON(c, &req) {
		return
	}

	project, err := h.svc.AssignTeam(c.Request.Context(), actor, id, req.TeamID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, project)
}

func (h *Handler) CreateTask(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	projectID, ok := parseUUIDParam(c, "id", msgInvalidProjectID)
	if !ok {
		return
	}
	var req transport.CreateTaskRequest
	if !h.bindJSON(c, &req) {
		return
	}

	task, err := h.svc.CreateTask(c.Request.Context(), actor, projectID, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		Weight:      req.Weight,
		DueDate:     req.DueDate,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, task)
}

func (h *Handler) ListTasks(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	projectID, ok := parseUUIDParam(c, "id", msgInvalidProjectID)
	if !ok {
		return
	}

	tasks, err := h.svc.ListTasks(c.Request.Context(), actor, projectID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": tasks})
}

func (h *Handler) UpdateTask(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", "invalid task id")
	if !ok {
		return
	}
	var req transport.UpdateTaskRequest
	if !h.bindJSON(c, &req) {
		return
	}

	task, err := h.svc.UpdateTask(c.Request.Context(), actor, id, service.UpdateTaskInput{
		Status:             req.Status,
		ProgressPercentage: req.ProgressPercentage,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, task)
}

func (h *Handler) CreateTeam(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	var req transport.CreateTeamRequest
	if !h.bindJSON(c, &req) {
		return
	}

	team, err := h.svc.CreateTeam(c.Request.Context(), actor, service.CreateTeamInput{Name: req.Name, LeadID: req.LeadID})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, team)
}

func (h *Handler) ListTeams(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	teams, err := h.svc.ListTeams(c.Request.Context(), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": teams})
}

func (h *Handler) AddMember(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	teamID, ok := parseUUIDParam(c, "id", msgInvalidTeamID)
	if !ok {
		return
	}
	var req transport.AddMemberRequest
	if !h.bindJSON(c, &req) {
		return
	}

	member, err := h.svc.AddMember(c.Request.Context(), actor, teamID, service.AddMemberInput{UserID: req.UserID, Role: req.Role})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, member)
}

func (h *Handler) SetMemberAvailability(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	teamID, ok := parseUUIDParam(c, "id", msgInvalidTeamID)
	if !ok {
		return
	}
	memberID, ok := parseUUIDParam(c, "memberId", "invalid team member id")
	if !ok {
		return
	}
	var req transport.AvailabilityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	member, err := h.svc.SetMemberAvailability(c.Request.Context(), actor, teamID, memberID, service.AvailabilityInput{
		Availability: req.Availability,
		Workload:     req.Workload,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, member)
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return false
	}
	return h.validate(c, req)
}

func (h *Handler) validate(c *gin.Context, req any) bool {
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(validator.Details(err)))
		return false
	}
	return true
}

func parseUUIDParam(c *gin.Context, name, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msg))
		return uuid.Nil, false
	}
	return id, true
}

func optionalUUID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
