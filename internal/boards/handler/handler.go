package handler

import (
	"interior_portal_backend/internal/boards/service"
	"interior_portal_backend/internal/boards/transport"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/httpkit"
	"interior_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) CreateMaterialRequest(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	var req transport.CreateMaterialRequest
	if !h.bindJSON(c, &req) {
		return
	}

	item, err := h.svc.CreateMaterialRequest(c.Request.Context(), actor, service.MaterialInput{
		ProjectID:    req.ProjectID,
		MaterialName: req.MaterialName,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		Supplier:     req.Supplier,
		NeededBy:     req.NeededBy,
		Notes:        req.Notes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, item)
}

func (h *Handler) ListMaterialRequests(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	projectID, ok := h.projectFilter(c)
	if !ok {
		return
	}

	items, err := h.svc.ListMaterialRequests(c.Request.Context(), actor, projectID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) MaterialBoard(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	projectID, ok := h.projectFilter(c)
	if !ok {
		return
	}

	board, err := h.svc.MaterialBoard(c.Request.Context(), actor, projectID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, board)
}

func (h *Handler) SetMaterialStatus(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", "invalid material request id")
	if !ok {
		return
	}
	var req transport.StatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	item, err := h.svc.SetMaterialStatus(c.Request.Context(), actor, id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, item)
}

func (h *Handler) CreateWarrantyClaim(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	var req transport.CreateWarrantyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	claim, err := h.svc.CreateWarrantyClaim(c.Request.Context(), actor, service.WarrantyInput{
		ProjectID:   req.ProjectID,
		ClientID:    req.ClientID,
		Title:       req.Title,
		Description: req.Description,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, claim)
}

func (h *Handler) ListWarrantyClaims(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	projectID, ok := h.projectFilter(c)
	if !ok {
		return
	}

	claims, err := h.svc.ListWarrantyClaims(c.Request.Context(), actor, projectID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": claims})
}

func (h *Handler) WarrantyBoard(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	projectID, ok := h.projectFilter(c)
	if !ok {
		return
	}

	board, err := h.svc.WarrantyBoard(c.Request.Context(), actor, projectID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, board)
}

func (h *Handler) SetWarrantyStatus(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", "invalid warranty claim id")
	if !ok {
		return
	}
	var req transport.StatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	claim, err := h.svc.SetWarrantyStatus(c.Request.Context(), actor, id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, claim)
}

func (h *Handler) projectFilter(c *gin.Context) (*uuid.UUID, bool) {
	var q transport.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return nil, false
	}
	if !h.validate(c, q) {
		return nil, false
	}
	if q.ProjectID == "" {
		return nil, true
	}
	id := uuid.MustParse(q.ProjectID)
	return &id, true
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
