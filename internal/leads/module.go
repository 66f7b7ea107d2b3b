// Package leads provides the lead lifecycle bounded context module:
// duplicate policy, state machine, matching, and alerts.
package leads

import (
	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "kitportal_backend/internal/http"
	"kitportal_backend/internal/leads/alerts"
	"kitportal_backend/internal/leads/domain"
	"kitportal_backend/internal/leads/handler"
	"kitportal_backend/internal/leads/matcher"
	"kitportal_backend/internal/leads/repository"
	"kitportal_backend/internal/leads/service"
	"kitportal_backend/internal/vendors"
	"kitportal_backend/platform/config"
	"kitportal_backend/platform/events"
	"kitportal_backend/platform/logger"
	"kitportal_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	alerts  *alerts.Manager
	matcher *matcher.Matcher
	repo    *repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, vendorSvc *vendors.Service, bus events.Bus, val *validator.Validator, cfg config.PolicyConfig, log *logger.Logger) (*Module, error) {
	if err := registerValidators(val); err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	alertMgr := alerts.NewManager(repo, bus, log)
	policy := domain.NewPolicy(cfg.GetDuplicateCooldownDays())
	svc := service.New(repo, vendorSvc, alertMgr, bus, policy, log)

	return &Module{
		handler: handler.New(svc, alertMgr, val),
		service: svc,
		alerts:  alertMgr,
		matcher: matcher.New(repo),
		repo:    repo,
	}, nil
}

// registerValidators adds the custom `mbi` tag: a value passes when its
// normalized form satisfies the CMS MBI format.
func registerValidators(val *validator.Validator) error {
	return val.RegisterValidation("mbi", func(fl playgroundvalidator.FieldLevel) bool {
		return domain.ValidMBI(domain.NormalizeMBI(fl.Field().String()))
	})
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service exposes the lead service to other modules (imports, webhook).
func (m *Module) Service() *service.Service {
	return m.service
}

// AlertManager exposes alert operations to other modules and the scheduler.
func (m *Module) AlertManager() *alerts.Manager {
	return m.alerts
}

// Matcher exposes the record matcher to other modules.
func (m *Module) Matcher() *matcher.Matcher {
	return m.matcher
}

// Repository exposes the persistence layer for modules needing direct reads.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts lead and alert routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterLeadRoutes(ctx.V1.Group("/leads"))
	m.handler.RegisterAlertRoutes(ctx.V1.Group("/alerts"))
}

var _ apphttp.Module = (*Module)(nil)
