// Package forms is the field data collection context: per-room inspector
// forms, photos and the generated inspection report.
package forms

import (
	"interior_portal_backend/internal/events"
	"interior_portal_backend/internal/forms/handler"
	"interior_portal_backend/internal/forms/ports"
	"interior_portal_backend/internal/forms/repository"
	"interior_portal_backend/internal/forms/service"
	apphttp "interior_portal_backend/internal/http"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, photos ports.PhotoStore, reports ports.ReportStore, pdf ports.PDFRenderer, eventBus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	svc := service.New(repository.New(pool), photos, reports, pdf, eventBus, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "forms"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	field := ctx.Staff(authz.RoleInspector)
	field.POST("/inspector-forms", m.handler.Create)
	field.PUT("/inspector-forms/:id", m.handler.Update)
	field.POST("/inspector-forms/:id/submit", m.handler.Submit)
	field.POST("/inspector-forms/:id/photos", m.handler.UploadPhoto)

	ctx.Staff(authz.RoleCSR).POST("/inspector-forms/:id/review", m.handler.Review)
	ctx.Staff(authz.RoleCSR).POST("/inspection-requests/:id/report", m.handler.GenerateReport)

	// Clients read their own request's forms and report.
	ctx.Protected.GET("/inspector-forms", m.handler.List)
	ctx.Protected.GET("/inspection-requests/:id/report", m.handler.GetReport)
}

var _ apphttp.Module = (*Module)(nil)
