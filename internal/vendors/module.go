package vendors

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "kitportal_backend/internal/http"
	"kitportal_backend/platform/validator"
)

// Module is the vendors bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the vendors module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo)
	return &Module{
		handler: NewHandler(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "vendors"
}

// Service exposes the vendor service to other modules (imports, leads).
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts vendor routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/vendors"))
}

var _ apphttp.Module = (*Module)(nil)
