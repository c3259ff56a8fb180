package handler

import (
	"context"
	"net/http"

	"interior_portal_backend/internal/assignments/repository"
	"interior_portal_backend/internal/assignments/service"
	"interior_portal_backend/internal/assignments/transport"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/httpkit"
	"interior_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	var req transport.CreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	created, err := h.svc.Create(c.Request.Context(), actor, service.CreateInput{
		InspectionRequestID: uuid.MustParse(req.InspectionRequestID),
		InspectorID:         uuid.MustParse(req.InspectorID),
		Notes:               req.Notes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, created)
}

func (h *Handler) List(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	var query transport.ListQuery
	if !h.bindQuery(c, &query) {
		return
	}

	filter := service.ListFilter{Status: query.Status, Page: query.Page, PageSize: query.PageSize}
	if query.InspectorID != nil {
		id := uuid.MustParse(*query.InspectorID)
		filter.InspectorID = &id
	}
	if query.InspectionRequestID != nil {
		id := uuid.MustParse(*query.InspectionRequestID)
		filter.InspectionRequestID = &id
	}

	result, err := h.svc.List(c.Request.Context(), actor, filter)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Get(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	a, err := h.svc.Get(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, a)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.StatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	updated, err := h.svc.UpdateStatus(c.Request.Context(), actor, id, service.StatusUpdate{
		Status:        req.Status,
		StartTime:     req.InspectionStartTime,
		DeclineReason: req.DeclineReason,
		ActionNotes:   req.ActionNotes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, updated)
}

func (h *Handler) Accept(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.AcceptRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	updated, err := h.svc.Accept(c.Request.Context(), actor, id, req.InspectionStartTime, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, updated)
}

func (h *Handler) Decline(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.DeclineRequest
	if !h.bindJSON(c, &req) {
		return
	}

	updated, err := h.svc.Decline(c.Request.Context(), actor, id, req.Reason, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, updated)
}

func (h *Handler) Pause(c *gin.Context) {
	h.withNotes(c, h.svc.Pause)
}

func (h *Handler) Resume(c *gin.Context) {
	h.withNotes(c, h.svc.Resume)
}

func (h *Handler) Complete(c *gin.Context) {
	h.withNotes(c, h.svc.Complete)
}

func (h *Handler) ListInspectors(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	var query transport.InspectorQuery
	if !h.bindQuery(c, &query) {
		return
	}

	inspectors, err := h.svc.ListInspectors(c.Request.Context(), actor, query.Availability)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": inspectors})
}

func (h *Handler) SetInspectorAvailability(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.AvailabilityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	updated, err := h.svc.SetInspectorAvailability(c.Request.Context(), actor, id, req.Availability)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, updated)
}

type notesAction func(ctx context.Context, actor authz.Actor, id uuid.UUID, notes *string) (repository.Assignment, error)

func (h *Handler) withNotes(c *gin.Context, action notesAction) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.NotesRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	updated, err := action(c.Request.Context(), actor, id, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, updated)
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return false
	}
	return h.validate(c, req)
}

// bindOptionalJSON accepts an empty body.
func (h *Handler) bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 || c.Request.Body == http.NoBody {
		return h.validate(c, req)
	}
	return h.bindJSON(c, req)
}

func (h *Handler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
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

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidID))
		return uuid.Nil, false
	}
	return id, true
}
