package imports

import (
	apphttp "kitportal_backend/internal/http"
	"kitportal_backend/platform/logger"
)

// Module is the imports bounded context module implementing http.Module.
type Module struct {
	handler  *Handler
	pipeline *Pipeline
}

// NewModule creates and initializes the imports module.
func NewModule(leads LeadService, match Matcher, log *logger.Logger) *Module {
	pipeline := NewPipeline(leads, match, log)
	return &Module{
		handler:  NewHandler(pipeline),
		pipeline: pipeline,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "imports"
}

// Pipeline exposes the reconciliation pipeline for non-HTTP callers.
func (m *Module) Pipeline() *Pipeline {
	return m.pipeline
}

// RegisterRoutes mounts import routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/imports"))
}

var _ apphttp.Module = (*Module)(nil)
