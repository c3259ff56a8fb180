package handler

import (
	"encoding/base64"
	"time"

	"interior_portal_backend/internal/inspections/repository"
	"interior_portal_backend/internal/inspections/service"
	"interior_portal_backend/internal/inspections/transport"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/httpkit"
	"interior_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid inspection request id"
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

	in := service.CreateInput{
		ContactName:     req.ContactName,
		ContactEmail:    req.ContactEmail,
		ContactPhone:    req.ContactPhone,
		PropertyAddress: req.PropertyAddress,
		PropertyType:    req.PropertyType,
		PropertySizeSqm: req.PropertySizeSqm,
		Notes:           req.Notes,
	}
	if req.ClientID != nil {
		id := uuid.MustParse(*req.ClientID)
		in.ClientID = &id
	}
	if req.PreferredDate != nil {
		date, _ := time.Parse(time.DateOnly, *req.PreferredDate)
		in.PreferredDate = &date
	}

	created, err := h.svc.Create(c.Request.Context(), actor, in)
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
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(validator.Details(err)))
		return
	}

	filter := service.ListFilter{Status: query.Status, Page: query.Page, PageSize: query.PageSize}
	if query.ClientID != nil {
		id := uuid.MustParse(*query.ClientID)
		filter.ClientID = &id
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

	req, err := h.svc.Get(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, req)
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

	var req transport.UpdateStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	updated, err := h.svc.UpdateStatus(c.Request.Context(), actor, id, req.Status, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, updated)
}

func (h *Handler) Cancel(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.CancelRequest
	if !h.bindJSON(c, &req) {
		return
	}

	updated, err := h.svc.Cancel(c.Request.Context(), actor, id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, updated)
}

func (h *Handler) GeneratePaymentLink(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.PaymentLinkRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.GeneratePaymentLink(c.Request.Context(), actor, id, req.EstimatedCost)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.PaymentLinkResponse{
		Request:    result.Request,
		PaymentURL: result.PaymentURL,
		PublicURL:  result.PublicURL,
		Token:      result.Token,
		ExpiresAt:  result.ExpiresAt,
		QRCode:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(result.QRCodePNG),
	})
}

// GetPublicPayment serves the unauthenticated payment page data.
func (h *Handler) GetPublicPayment(c *gin.Context) {
	req, err := h.svc.ResolvePaymentToken(c.Request.Context(), c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toPublicView(req))
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

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidID))
		return uuid.Nil, false
	}
	return id, true
}

func toPublicView(req repository.InspectionRequest) transport.PublicPaymentView {
	return transport.PublicPaymentView{
		ID:              req.ID.String(),
		ContactName:     req.ContactName,
		PropertyAddress: req.PropertyAddress,
		PropertyType:    req.PropertyType,
		Status:          string(req.Status),
		PaymentStatus:   string(req.PaymentStatus),
		EstimatedCost:   req.EstimatedCost,
		PaymentURL:      req.PaymentLinkURL,
		ExpiresAt:       req.VerificationExpiresAt,
	}
}
