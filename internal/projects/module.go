// Package projects tracks renovation projects, their weighted tasks and the
// teams that carry them out.
package projects

import (
	"interior_portal_backend/internal/events"
	apphttp "interior_portal_backend/internal/http"
	"interior_portal_backend/internal/projects/handler"
	"interior_portal_backend/internal/projects/repository"
	"interior_portal_backend/internal/projects/service"
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
	return "projects"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Clients read their own projects; the service scopes the listing.
	ctx.Protected.GET("/projects", m.handler.ListProjects)
	ctx.Protected.GET("/projects/:id", m.handler.GetProject)
	ctx.Protected.GET("/projects/:id/tasks", m.handler.ListTasks)

	managers := ctx.Staff(authz.RoleProjectManager)
	managers.POST("/projects", m.handler.CreateProject)
	managers.PUT("/projects/:id/team", m.handler.AssignTeam)
	managers.POST("/projects/:id/tasks", m.handler.CreateTask)
	managers.POST("/teams", m.handler.CreateTeam)
	managers.POST("/teams/:id/members", m.handler.AddMember)

	// Assignees update their own tasks and availability.
	crew := ctx.Staff(authz.RoleProjectManager, authz.RoleWarehouse, authz.RoleInspector, authz.RoleCSR)
	crew.PUT("/tasks/:id", m.handler.UpdateTask)
	crew.GET("/teams", m.handler.ListTeams)
	crew.PUT("/teams/:id/members/:memberId/availability", m.handler.SetMemberAvailability)
}

var _ apphttp.Module = (*Module)(nil)
