// Package assignments is the inspector assignment bounded context: handing
// verified requests to inspectors and tracking the visit lifecycle.
package assignments

import (
	"interior_portal_backend/internal/assignments/handler"
	"interior_portal_backend/internal/assignments/repository"
	"interior_portal_backend/internal/assignments/service"
	"interior_portal_backend/internal/events"
	apphttp "interior_portal_backend/internal/http"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, eventBus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	svc := service.New(repository.New(pool), eventBus, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "assignments"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	field := ctx.Staff(authz.RoleCSR, authz.RoleInspector).Group("/assignments")
	field.GET("", m.handler.List)
	field.GET("/:id", m.handler.Get)
	field.PATCH("/status/:id", m.handler.UpdateStatus)
	field.POST("/:id/accept", m.handler.Accept)
	field.POST("/:id/decline", m.handler.Decline)
	field.POST("/:id/pause", m.handler.Pause)
	field.POST("/:id/resume", m.handler.Resume)
	field.POST("/:id/complete", m.handler.Complete)

	csr := ctx.Staff(authz.RoleCSR)
	csr.POST("/assignments", m.handler.Create)
	csr.GET("/inspectors", m.handler.ListInspectors)

	ctx.Staff().PUT("/inspectors/:id/availability", m.handler.SetInspectorAvailability)
}

var _ apphttp.Module = (*Module)(nil)
