// Package boards serves the material request and warranty claim Kanban
// boards.
package boards

import (
	"interior_portal_backend/internal/boards/handler"
	"interior_portal_backend/internal/boards/repository"
	"interior_portal_backend/internal/boards/service"
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
	return "boards"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	materials := ctx.Staff(authz.RoleWarehouse, authz.RoleProjectManager, authz.RoleInspector, authz.RoleCSR)
	materials.POST("/material-requests", m.handler.CreateMaterialRequest)
	materials.GET("/material-requests", m.handler.ListMaterialRequests)
	materials.GET("/material-requests/board", m.handler.MaterialBoard)
	materials.PATCH("/material-requests/:id/status", m.handler.SetMaterialStatus)

	// Clients file and list their own claims; the board is staff-only.
	ctx.Protected.POST("/warranty-claims", m.handler.CreateWarrantyClaim)
	ctx.Protected.GET("/warranty-claims", m.handler.ListWarrantyClaims)
	claims := ctx.Staff(authz.RoleCSR, authz.RoleProjectManager, authz.RoleWarehouse, authz.RoleInspector)
	claims.GET("/warranty-claims/board", m.handler.WarrantyBoard)
	claims.PATCH("/warranty-claims/:id/status", m.handler.SetWarrantyStatus)
}

var _ apphttp.Module = (*Module)(nil)
