// Package payments is the payment verification bounded context: receipt
// uploads from clients and CSR approval against the estimate.
package payments

import (
	"interior_portal_backend/internal/events"
	apphttp "interior_portal_backend/internal/http"
	"interior_portal_backend/internal/payments/handler"
	"interior_portal_backend/internal/payments/ports"
	"interior_portal_backend/internal/payments/repository"
	"interior_portal_backend/internal/payments/service"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, store ports.ReceiptStore, resolver ports.PaymentTokenResolver, eventBus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	svc := service.New(repository.New(pool), store, resolver, eventBus, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "payments"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.V1.Group("/public/payments/:token")
	public.POST("/upload-url", m.handler.PublicUploadURL)
	public.POST("/receipt", m.handler.PublicSubmit)

	payments := ctx.Protected.Group("/inspection-requests/:id/payments")
	payments.POST("/upload-url", m.handler.RequestUploadURL)
	payments.POST("", m.handler.Submit)
	payments.GET("", m.handler.List)

	staff := ctx.Staff(authz.RoleCSR)
	staff.POST("/inspection-requests/:id/payments/:paymentId/verify", m.handler.Verify)
	staff.POST("/inspection-estimation/:id/verify-payment", m.handler.VerifyLegacy)
}

var _ apphttp.Module = (*Module)(nil)
