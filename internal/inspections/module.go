// Package inspections is the inspection request bounded context: intake,
// status lifecycle and payment links.
package inspections

import (
	"interior_portal_backend/internal/events"
	apphttp "interior_portal_backend/internal/http"
	"interior_portal_backend/internal/inspections/handler"
	"interior_portal_backend/internal/inspections/ports"
	"interior_portal_backend/internal/inspections/repository"
	"interior_portal_backend/internal/inspections/service"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/config"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/phone"
	"interior_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, links ports.PaymentLinkProvider, phones *phone.Normalizer, cfg config.PaymentConfig, eventBus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	svc := service.New(repository.New(pool), links, phones, cfg, eventBus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "inspections"
}

// Service exposes the inspections service for adapters and the scheduler.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/public/payments/:token", m.handler.GetPublicPayment)

	requests := ctx.Protected.Group("/inspection-requests")
	requests.POST("", m.handler.Create)
	requests.GET("", m.handler.List)
	requests.GET("/:id", m.handler.Get)
	requests.POST("/:id/cancel", m.handler.Cancel)

	staff := ctx.Staff(authz.RoleCSR).Group("/inspection-requests")
	staff.PATCH("/:id/status", m.handler.UpdateStatus)
	staff.POST("/:id/payment-link", m.handler.GeneratePaymentLink)
}

var _ apphttp.Module = (*Module)(nil)
