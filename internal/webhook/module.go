package webhook

import (
	"github.com/redis/go-redis/v9"

	apphttp "kitportal_backend/internal/http"
	"kitportal_backend/platform/config"
	"kitportal_backend/platform/logger"
	"kitportal_backend/platform/validator"
)

// Module is the carrier webhook bounded context module implementing
// http.Module.
type Module struct {
	handler *Handler
	cfg     config.WebhookConfig
	log     *logger.Logger
}

// NewModule creates and initializes the webhook module. A nil redis client
// disables the dedupe fast path; the tracking_events unique index still
// guarantees idempotency.
func NewModule(match LeadMatcher, leads LeadLifecycle, events EventStore, alerts ExceptionFlagger, rdb *redis.Client, cfg config.WebhookConfig, val *validator.Validator, log *logger.Logger) *Module {
	var dedupe Deduper = NoopDeduper{}
	if rdb != nil {
		dedupe = NewRedisDeduper(rdb)
	}
	svc := NewService(match, leads, events, alerts, dedupe, log)
	return &Module{
		handler: NewHandler(svc, val),
		cfg:     cfg,
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the carrier webhook route with shared-credential
// auth and a per-IP rate limit.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	limiter := apphttp.NewIPRateLimiter(m.cfg.GetWebhookRatePerSecond(), m.cfg.GetWebhookBurst(), m.log)
	group := ctx.Webhooks.Group("/carrier")
	group.Use(limiter.Middleware(), SharedKeyAuth(m.cfg.GetCarrierWebhookKey()))
	group.POST("", m.handler.HandleCarrierEvent)
}

var _ apphttp.Module = (*Module)(nil)
