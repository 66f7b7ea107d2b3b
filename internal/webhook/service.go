package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"kitportal_backend/internal/leads/domain"
	"kitportal_backend/internal/leads/matcher"
	"kitportal_backend/internal/leads/repository"
	"kitportal_backend/internal/leads/service"
	"kitportal_backend/platform/logger"
)

// LeadMatcher resolves a tracking number to leads.
type LeadMatcher interface {
	Match(ctx context.Context, b matcher.Bundle) ([]domain.Lead, string, error)
}

// LeadLifecycle is the slice of the lead service the webhook drives.
type LeadLifecycle interface {
	ApplyPlan(ctx context.Context, leadID uuid.UUID, plan service.Planner, source string) (domain.Lead, bool, error)
}

// EventStore persists the append-only scan log.
type EventStore interface {
	CreateTrackingEvent(ctx context.Context, params repository.CreateTrackingEventParams) (domain.TrackingEvent, bool, error)
}

// ExceptionFlagger raises shipping-exception alerts.
type ExceptionFlagger interface {
	FlagShippingException(ctx context.Context, lead domain.Lead, trackingNumber, code, description string) (*domain.Alert, error)
}

type Service struct {
	match  LeadMatcher
	leads  LeadLifecycle
	events EventStore
	alerts ExceptionFlagger
	dedupe Deduper
	log    *logger.Logger
	now    func() time.Time
}

func NewService(match LeadMatcher, leads LeadLifecycle, events EventStore, alerts ExceptionFlagger, dedupe Deduper, log *logger.Logger) *Service {
	return &Service{
		match:  match,
		leads:  leads,
		events: events,
		alerts: alerts,
		dedupe: dedupe,
		log:    log,
		now:    time.Now,
	}
}

// Process ingests one carrier event. The same physical scan redelivered any
// number of times ends in the same lead state with one tracking-event row:
// the redis layer absorbs most replays cheaply, and the unique index on
// tracking_events catches the rest. The dedupe key is marked only once the
// event is durably applied, so a transient failure leaves the redelivery
// path open.
func (s *Service) Process(ctx context.Context, payload CarrierEventPayload) (ReceiptResponse, error) {
	key := eventKey(payload)
	seen, err := s.dedupe.Seen(ctx, key)
	if err != nil {
		// Redis trouble is not a reason to drop carrier data.
		s.log.WithContext(ctx).Warn("webhook dedupe unavailable", "error", err.Error())
	} else if seen {
		s.log.WithContext(ctx).CarrierEvent(payload.TrackingNumber, payload.ActivityStatus.Code, true)
		return ReceiptResponse{Status: "duplicate"}, nil
	}

	leads, _, err := s.match.Match(ctx, matcher.Bundle{TrackingNumber: payload.TrackingNumber})
	if err != nil {
		return ReceiptResponse{}, err
	}
	if len(leads) == 0 {
		s.log.WithContext(ctx).Warn("carrier event matched no lead", "tracking_number", payload.TrackingNumber)
		return ReceiptResponse{Status: "ignored"}, nil
	}
	lead := leads[0]

	direction := domain.DirectionOutbound
	if lead.InboundTrackingNumber == payload.TrackingNumber {
		direction = domain.DirectionInbound
	}

	occurredAt := payload.OccurredAt(s.now())
	_, created, err := s.events.CreateTrackingEvent(ctx, repository.CreateTrackingEventParams{
		LeadID:       lead.ID,
		Direction:    direction,
		ActivityType: payload.ActivityStatus.Type,
		Code:         payload.ActivityStatus.Code,
		Description:  payload.ActivityStatus.Description,
		Location:     payload.ActivityLocation,
		OccurredAt:   occurredAt,
	})
	if err != nil {
		return ReceiptResponse{}, err
	}
	s.log.WithContext(ctx).CarrierEvent(payload.TrackingNumber, payload.ActivityStatus.Code, !created)
	if !created {
		s.remember(ctx, key)
		return ReceiptResponse{Status: "duplicate", LeadID: lead.ID.String()}, nil
	}

	category := payload.ActivityStatus.Categorize()
	planner := plannerFor(direction, category)
	if planner == nil {
		if category == CategoryException {
			if _, err := s.alerts.FlagShippingException(ctx, lead, payload.TrackingNumber,
				payload.ActivityStatus.Code, payload.ActivityStatus.Description); err != nil {
				return ReceiptResponse{}, err
			}
		}
		s.remember(ctx, key)
		return ReceiptResponse{Status: "applied", LeadID: lead.ID.String(), Category: string(category)}, nil
	}

	if _, _, err := s.leads.ApplyPlan(ctx, lead.ID, planner, service.SourceWebhook); err != nil {
		return ReceiptResponse{}, err
	}
	s.remember(ctx, key)
	return ReceiptResponse{Status: "applied", LeadID: lead.ID.String(), Category: string(category)}, nil
}

// remember marks the scan as processed; a failed mark only costs a DB-level
// dedupe on the next replay.
func (s *Service) remember(ctx context.Context, key string) {
	if err := s.dedupe.Mark(ctx, key); err != nil {
		s.log.WithContext(ctx).Warn("webhook dedupe mark failed", "error", err.Error())
	}
}

// plannerFor maps (direction, category) to a lifecycle plan. Exceptions plan
// nothing: they alert without touching status.
func plannerFor(direction domain.TrackingDirection, category EventCategory) service.Planner {
	switch direction {
	case domain.DirectionOutbound:
		switch category {
		case CategoryDelivered:
			return domain.PlanOutboundDelivered
		case CategoryInTransit:
			// First outbound movement is shipping evidence.
			return domain.PlanShipment
		}
	case domain.DirectionInbound:
		switch category {
		case CategoryDelivered:
			return domain.PlanInboundDelivered
		case CategoryInTransit:
			return domain.PlanInboundInTransit
		}
	}
	return nil
}
