package handler

import (
	"io"

	"interior_portal_backend/internal/forms/service"
	"interior_portal_backend/internal/forms/transport"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/httpkit"
	"interior_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidFormID    = "invalid inspector form id"
	photoField          = "photo"
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
	var req transport.CreateFormRequest
	if !h.bindJSON(c, &req) {
		return
	}

	form, err := h.svc.Create(c.Request.Context(), actor, service.CreateInput{
		InspectionRequestID: req.InspectionRequestID,
		RoomName:            req.RoomName,
		RoomType:            req.RoomType,
		Measurements:        req.Measurements,
		ConditionNotes:      req.ConditionNotes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, form)
}

func (h *Handler) List(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	var q transport.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	if err := h.val.Struct(q); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(validator.Details(err)))
		return
	}

	forms, err := h.svc.List(c.Request.Context(), actor, uuid.MustParse(q.InspectionRequestID))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": forms})
}

func (h *Handler) Update(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", msgInvalidFormID)
	if !ok {
		return
	}
	var req transport.UpdateFormRequest
	if !h.bindJSON(c, &req) {
		return
	}

	form, err := h.svc.Update(c.Request.Context(), actor, id, service.UpdateInput{
		RoomName:       req.RoomName,
		RoomType:       req.RoomType,
		Measurements:   req.Measurements,
		ConditionNotes: req.ConditionNotes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, form)
}

func (h *Handler) Submit(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", msgInvalidFormID)
	if !ok {
		return
	}

	form, err := h.svc.Submit(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, form)
}

func (h *Handler) Review(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", msgInvalidFormID)
	if !ok {
		return
	}
	var req transport.ReviewRequest
	if !h.bindJSON(c, &req) {
		return
	}

	form, err := h.svc.Review(c.Request.Context(), actor, id, service.Decision(req.Decision))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, form)
}

func (h *Handler) UploadPhoto(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id", msgInvalidFormID)
	if !ok {
		return
	}

	header, err := c.FormFile(photoField)
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("multipart field \"photo\" is required"))
		return
	}
	if header.Size > service.MaxPhotoSize {
		httpkit.HandleError(c, apperr.Validation("photo exceeds the maximum upload size"))
		return
	}
	file, err := header.Open()
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("unreadable photo"))
		return
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(io.LimitReader(file, service.MaxPhotoSize+1))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("unreadable photo"))
		return
	}

	form, err := h.svc.UploadPhoto(c.Request.Context(), actor, id, service.PhotoInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, form)
}

func (h *Handler) GenerateReport(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	requestID, ok := parseUUIDParam(c, "id", "invalid inspection request id")
	if !ok {
		return
	}

	link, err := h.svc.GenerateReport(c.Request.Context(), actor, requestID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, link)
}

func (h *Handler) GetReport(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	requestID, ok := parseUUIDParam(c, "id", "invalid inspection request id")
	if !ok {
		return
	}

	link, err := h.svc.GetReportURL(c.Request.Context(), actor, requestID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, link)
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return false
	}
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
