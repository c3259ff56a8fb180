package handler

import (
	"interior_portal_backend/internal/payments/service"
	"interior_portal_backend/internal/payments/transport"
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

func (h *Handler) RequestUploadURL(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	requestID, ok := parseUUIDParam(c, "id", "invalid inspection request id")
	if !ok {
		return
	}

	var req transport.UploadURLRequest
	if !h.bindJSON(c, &req) {
		return
	}

	presigned, err := h.svc.RequestReceiptUpload(c.Request.Context(), actor, requestID, service.UploadInput{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        req.Size,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, presigned)
}

func (h *Handler) Submit(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	requestID, ok := parseUUIDParam(c, "id", "invalid inspection request id")
	if !ok {
		return
	}

	var req transport.SubmitReceiptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	receipt, err := h.svc.SubmitReceipt(c.Request.Context(), actor, requestID, service.SubmitInput{Amount: req.Amount, FileKey: req.FileKey})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, receipt)
}

func (h *Handler) List(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	requestID, ok := parseUUIDParam(c, "id", "invalid inspection request id")
	if !ok {
		return
	}

	receipts, err := h.svc.ListReceipts(c.Request.Context(), actor, requestID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": receipts})
}

func (h *Handler) Verify(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	requestID, ok := parseUUIDParam(c, "id", "invalid inspection request id")
	if !ok {
		return
	}
	receiptID, ok := parseUUIDParam(c, "paymentId", "invalid payment id")
	if !ok {
		return
	}

	var req transport.VerifyRequest
	if !h.bindJSON(c, &req) {
		return
	}
	action, err := service.ParseAction(req.Action)
	if httpkit.HandleError(c, err) {
		return
	}

	receipt, err := h.svc.VerifyRequestPayment(c.Request.Context(), actor, requestID, receiptID, service.VerifyInput{
		EnteredAmount: req.PaymentAmount,
		Action:        action,
		Reason:        req.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, receipt)
}

// VerifyLegacy serves POST /inspection-estimation/:id/verify-payment, where
// :id is the payment receipt id.
func (h *Handler) VerifyLegacy(c *gin.Context) {
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}
	receiptID, ok := parseUUIDParam(c, "id", "invalid payment id")
	if !ok {
		return
	}

	var req transport.LegacyVerifyRequest
	if !h.bindJSON(c, &req) {
		return
	}
	action, err := service.ParseAction(req.Status)
	if httpkit.HandleError(c, err) {
		return
	}

	receipt, err := h.svc.VerifyPayment(c.Request.Context(), actor, receiptID, service.VerifyInput{
		EnteredAmount: req.PaymentAmount,
		Action:        action,
		Reason:        req.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, receipt)
}

func (h *Handler) PublicUploadURL(c *gin.Context) {
	var req transport.UploadURLRequest
	if !h.bindJSON(c, &req) {
		return
	}

	presigned, err := h.svc.RequestPublicReceiptUpload(c.Request.Context(), c.Param("token"), service.UploadInput{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        req.Size,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, presigned)
}

func (h *Handler) PublicSubmit(c *gin.Context) {
	var req transport.SubmitReceiptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	receipt, err := h.svc.SubmitPublicReceipt(c.Request.Context(), c.Param("token"), service.SubmitInput{Amount: req.Amount, FileKey: req.FileKey})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, receipt)
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
