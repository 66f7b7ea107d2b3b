// Package events defines the domain events exchanged between bounded
// contexts over the in-process bus.
package events

import (
	"time"

	"github.com/google/uuid"

	"kitportal_backend/internal/leads/domain"
	"kitportal_backend/platform/events"
)

const (
	TypeLeadCreated           = "lead.created"
	TypeLeadStatusChanged     = "lead.status_changed"
	TypeKitShipped            = "lead.kit_shipped"
	TypeKitDelivered          = "lead.kit_delivered"
	TypeKitCompleted          = "lead.kit_completed"
	TypeDuplicateAlertCreated = "alert.duplicate_created"
	TypeShippingException     = "alert.shipping_exception"
	TypeNotificationOutboxDue = "notification.outbox_due"
)

// LeadCreated fires after a lead row is committed, duplicate or not.
type LeadCreated struct {
	events.BaseEvent
	LeadID      uuid.UUID
	MBI         string
	TestType    domain.TestType
	VendorID    uuid.UUID
	IsDuplicate bool
}

func (LeadCreated) EventName() string { return TypeLeadCreated }

func NewLeadCreated(lead domain.Lead) LeadCreated {
	return LeadCreated{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		MBI:         lead.MBI,
		TestType:    lead.TestType,
		VendorID:    lead.VendorID,
		IsDuplicate: lead.IsDuplicate,
	}
}

// LeadStatusChanged fires once per applied lifecycle plan, carrying the full
// chain of statuses the lead moved through.
type LeadStatusChanged struct {
	events.BaseEvent
	LeadID uuid.UUID
	From   domain.Status
	Steps  []domain.Status
	Forced bool
	Source string // "manual", "import", "webhook"
}

func (LeadStatusChanged) EventName() string { return TypeLeadStatusChanged }

func NewLeadStatusChanged(leadID uuid.UUID, from domain.Status, plan domain.Plan, source string) LeadStatusChanged {
	return LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		From:      from,
		Steps:     plan.Steps,
		Forced:    plan.Forced,
		Source:    source,
	}
}

// KitShipped fires when a lead enters SHIPPED.
type KitShipped struct {
	events.BaseEvent
	LeadID         uuid.UUID
	TrackingNumber string
	ShippedAt      time.Time
}

func (KitShipped) EventName() string { return TypeKitShipped }

func NewKitShipped(leadID uuid.UUID, trackingNumber string, shippedAt time.Time) KitShipped {
	return KitShipped{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		TrackingNumber: trackingNumber,
		ShippedAt:      shippedAt,
	}
}

// KitDelivered fires when the outbound kit reaches the patient.
type KitDelivered struct {
	events.BaseEvent
	LeadID      uuid.UUID
	DeliveredAt time.Time
}

func (KitDelivered) EventName() string { return TypeKitDelivered }

func NewKitDelivered(leadID uuid.UUID, deliveredAt time.Time) KitDelivered {
	return KitDelivered{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      leadID,
		DeliveredAt: deliveredAt,
	}
}

// KitCompleted fires when the sample is back at the lab.
type KitCompleted struct {
	events.BaseEvent
	LeadID      uuid.UUID
	CompletedAt time.Time
}

func (KitCompleted) EventName() string { return TypeKitCompleted }

func NewKitCompleted(leadID uuid.UUID, completedAt time.Time) KitCompleted {
	return KitCompleted{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      leadID,
		CompletedAt: completedAt,
	}
}

// DuplicateAlertCreated fires when a new unacknowledged MBI duplicate alert
// is recorded.
type DuplicateAlertCreated struct {
	events.BaseEvent
	AlertID       uuid.UUID
	LeadID        uuid.UUID
	RelatedLeadID *uuid.UUID
	MBI           string
}

func (DuplicateAlertCreated) EventName() string { return TypeDuplicateAlertCreated }

func NewDuplicateAlertCreated(alert domain.Alert, mbi string) DuplicateAlertCreated {
	return DuplicateAlertCreated{
		BaseEvent:     events.NewBaseEvent(),
		AlertID:       alert.ID,
		LeadID:        alert.LeadID,
		RelatedLeadID: alert.RelatedLeadID,
		MBI:           mbi,
	}
}

// ShippingException fires when a carrier reports a delivery problem.
type ShippingException struct {
	events.BaseEvent
	LeadID         uuid.UUID
	TrackingNumber string
	Code           string
	Description    string
}

func (ShippingException) EventName() string { return TypeShippingException }

func NewShippingException(leadID uuid.UUID, trackingNumber, code, description string) ShippingException {
	return ShippingException{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		TrackingNumber: trackingNumber,
		Code:           code,
		Description:    description,
	}
}

// NotificationOutboxDue fires when the scheduler decides an outbox row is due
// for delivery. Published synchronously from the asynq worker so the task
// retries on handler failure.
type NotificationOutboxDue struct {
	events.BaseEvent
	OutboxID uuid.UUID
}

func (NotificationOutboxDue) EventName() string { return TypeNotificationOutboxDue }

func NewNotificationOutboxDue(outboxID uuid.UUID) NotificationOutboxDue {
	return NotificationOutboxDue{
		BaseEvent: events.NewBaseEvent(),
		OutboxID:  outboxID,
	}
}
