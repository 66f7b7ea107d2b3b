// Package notification turns domain events into operations emails. Events are
// written to a durable outbox; the scheduler picks rows up and routes them
// back here as NotificationOutboxDue, so delivery survives restarts and the
// publishing request never waits on SMTP.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"kitportal_backend/internal/events"
	"kitportal_backend/internal/notification/outbox"
	"kitportal_backend/platform/config"
	platformevents "kitportal_backend/platform/events"
	"kitportal_backend/platform/logger"
)

const (
	kindEmail = "email"

	templateKitStatus         = "kit_status"
	templateDuplicateAlert    = "duplicate_alert"
	templateShippingException = "shipping_exception"

	maxDeliveryAttempts = 5
)

type kitStatusOutboxPayload struct {
	LeadID         string    `json:"leadId"`
	Stage          string    `json:"stage"` // shipped | delivered | completed
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

type duplicateAlertOutboxPayload struct {
	MBI           string `json:"mbi"`
	LeadID        string `json:"leadId"`
	RelatedLeadID string `json:"relatedLeadId,omitempty"`
}

type shippingExceptionOutboxPayload struct {
	TrackingNumber string `json:"trackingNumber"`
	Code           string `json:"code"`
	Description    string `json:"description,omitempty"`
}

// Module subscribes to lifecycle and alert events and owns outbox delivery.
type Module struct {
	outbox *outbox.Repository
	sender Sender
	cfg    config.EmailConfig
	log    *logger.Logger
}

func New(pool *pgxpool.Pool, sender Sender, cfg config.EmailConfig, log *logger.Logger) *Module {
	return &Module{
		outbox: outbox.New(pool),
		sender: sender,
		cfg:    cfg,
		log:    log,
	}
}

// Outbox exposes the repository for the scheduler's dispatcher.
func (m *Module) Outbox() *outbox.Repository { return m.outbox }

// RegisterHandlers subscribes to every event that produces an email.
func (m *Module) RegisterHandlers(bus platformevents.Bus) {
	bus.Subscribe(events.KitShipped{}.EventName(), m)
	bus.Subscribe(events.KitDelivered{}.EventName(), m)
	bus.Subscribe(events.KitCompleted{}.EventName(), m)
	bus.Subscribe(events.DuplicateAlertCreated{}.EventName(), m)
	bus.Subscribe(events.ShippingException{}.EventName(), m)
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event platformevents.Event) error {
	switch e := event.(type) {
	case events.KitShipped:
		return m.enqueueKitStatus(ctx, kitStatusOutboxPayload{
			LeadID:         e.LeadID.String(),
			Stage:          "shipped",
			TrackingNumber: e.TrackingNumber,
			OccurredAt:     e.ShippedAt,
		})
	case events.KitDelivered:
		return m.enqueueKitStatus(ctx, kitStatusOutboxPayload{
			LeadID:     e.LeadID.String(),
			Stage:      "delivered",
			OccurredAt: e.DeliveredAt,
		})
	case events.KitCompleted:
		return m.enqueueKitStatus(ctx, kitStatusOutboxPayload{
			LeadID:     e.LeadID.String(),
			Stage:      "completed",
			OccurredAt: e.CompletedAt,
		})
	case events.DuplicateAlertCreated:
		payload := duplicateAlertOutboxPayload{MBI: e.MBI, LeadID: e.LeadID.String()}
		if e.RelatedLeadID != nil {
			payload.RelatedLeadID = e.RelatedLeadID.String()
		}
		return m.enqueue(ctx, templateDuplicateAlert, payload)
	case events.ShippingException:
		return m.enqueue(ctx, templateShippingException, shippingExceptionOutboxPayload{
			TrackingNumber: e.TrackingNumber,
			Code:           e.Code,
			Description:    e.Description,
		})
	case events.NotificationOutboxDue:
		return m.handleOutboxDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) enqueueKitStatus(ctx context.Context, payload kitStatusOutboxPayload) error {
	return m.enqueue(ctx, templateKitStatus, payload)
}

func (m *Module) enqueue(ctx context.Context, template string, payload any) error {
	id, err := m.outbox.Insert(ctx, outbox.InsertParams{
		Kind:     kindEmail,
		Template: template,
		Payload:  payload,
	})
	if err != nil {
		m.log.Error("outbox insert failed", "template", template, "error", err.Error())
		return err
	}
	m.log.Info("outbox message enqueued", "outbox_id", id.String(), "template", template)
	return nil
}

// handleOutboxDue delivers a claimed outbox row. Delivery failures with
// attempts to spare put the row back to pending for a later dispatcher pass;
// the handler itself returns nil so asynq does not retry in parallel with the
// outbox's own retry loop.
func (m *Module) handleOutboxDue(ctx context.Context, e events.NotificationOutboxDue) error {
	rec, err := m.outbox.GetByID(ctx, e.OutboxID)
	if err != nil {
		return err
	}
	if rec.Status == outbox.StatusSucceeded || rec.Status == outbox.StatusFailed {
		return nil
	}

	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}

	if err := m.deliver(ctx, rec); err != nil {
		m.log.Warn("outbox delivery failed",
			"outbox_id", rec.ID.String(), "template", rec.Template,
			"attempt", rec.Attempts+1, "error", err.Error())
		if rec.Attempts+1 >= maxDeliveryAttempts {
			return m.outbox.MarkFailed(ctx, rec.ID, err.Error())
		}
		msg := err.Error()
		return m.outbox.MarkPending(ctx, rec.ID, &msg)
	}

	return m.outbox.MarkSucceeded(ctx, rec.ID)
}

func (m *Module) deliver(ctx context.Context, rec outbox.Record) error {
	to := m.cfg.GetOpsNotifyAddress()

	switch rec.Template {
	case templateKitStatus:
		var p kitStatusOutboxPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		return m.sender.SendKitStatusEmail(ctx, to, p.LeadID, p.Stage, p.TrackingNumber, p.OccurredAt)
	case templateDuplicateAlert:
		var p duplicateAlertOutboxPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		return m.sender.SendDuplicateAlertEmail(ctx, to, p.MBI, p.LeadID, p.RelatedLeadID)
	case templateShippingException:
		var p shippingExceptionOutboxPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		return m.sender.SendShippingExceptionEmail(ctx, to, p.TrackingNumber, p.Code, p.Description)
	default:
		return fmt.Errorf("unknown outbox template %q", rec.Template)
	}
}
