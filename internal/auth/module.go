package auth

import (
	"interior_portal_backend/internal/auth/handler"
	"interior_portal_backend/internal/auth/repository"
	"interior_portal_backend/internal/auth/service"
	"interior_portal_backend/internal/events"
	apphttp "interior_portal_backend/internal/http"
	"interior_portal_backend/platform/config"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/phone"
	"interior_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig is the configuration subset the auth module needs.
type ModuleConfig interface {
	config.AuthServiceConfig
	config.CookieConfig
}

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg ModuleConfig, phones *phone.Normalizer, eventBus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	svc := service.New(repository.New(pool), cfg, phones, eventBus, log)
	return &Module{
		handler: handler.New(svc, cfg, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Service exposes the auth service to the composition root.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterRoutes(authGroup)

	ctx.Protected.GET("/users/me", m.handler.GetMe)
	ctx.Admin.POST("/users", m.handler.CreateUser)
}

var _ apphttp.Module = (*Module)(nil)
