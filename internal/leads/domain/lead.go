// Package domain provides core business rules for the leads bounded context:
// the lead lifecycle state machine, the duplicate-submission policy engine,
// and MBI format rules. Everything in this package is pure — no database, no
// clock other than what the caller passes in.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TestType identifies which kit a lead is for.
type TestType string

const (
	TestTypeImmune TestType = "IMMUNE"
	TestTypeNeuro  TestType = "NEURO"
)

// IsKnownTestType reports whether the value is a supported test type.
func IsKnownTestType(t TestType) bool {
	return t == TestTypeImmune || t == TestTypeNeuro
}

// Lead is a patient's test-kit journey record.
type Lead struct {
	ID                    uuid.UUID
	MBI                   string
	FirstName             string
	LastName              string
	DateOfBirth           *time.Time
	Phone                 string // 10 normalized digits
	Status                Status
	TestType              TestType
	VendorID              uuid.UUID
	SubVendorID           *uuid.UUID
	IsDuplicate           bool
	HasActiveAlerts       bool
	AdvocateReviewedAt    *time.Time
	DoctorApprovalDate    *time.Time
	ConsultDate           *time.Time
	KitShippedDate        *time.Time
	KitDeliveredDate      *time.Time
	KitReturnedDate       *time.Time
	TrackingNumber        string
	InboundTrackingNumber string
	Version               int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AlertType classifies a flagged condition on a lead.
type AlertType string

const (
	AlertTypeMBIDuplicate      AlertType = "MBI_DUPLICATE"
	AlertTypeShippingException AlertType = "SHIPPING_EXCEPTION"
	AlertTypeDataQuality       AlertType = "DATA_QUALITY"
)

// AlertSeverity grades how urgent a flagged condition is.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// Alert is a flagged condition attached to a lead. For a given
// (lead, relatedLead, type) at most one unacknowledged alert exists; the
// storage layer enforces this with a partial unique index.
type Alert struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	RelatedLeadID  *uuid.UUID
	Type           AlertType
	Severity       AlertSeverity
	Message        string
	IsAcknowledged bool
	AcknowledgedBy *string
	AcknowledgedAt *time.Time
	CreatedAt      time.Time
}

// TrackingDirection distinguishes outbound kit shipments from inbound returns.
type TrackingDirection string

const (
	DirectionOutbound TrackingDirection = "OUTBOUND"
	DirectionInbound  TrackingDirection = "INBOUND"
)

// TrackingEvent is an immutable record of a single carrier scan.
// Never mutated after creation.
type TrackingEvent struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	Direction    TrackingDirection
	ActivityType string
	Code         string
	Description  string
	Location     string
	OccurredAt   time.Time
	CreatedAt    time.Time
}

// Vendor is a referral source. ParentVendorID forms a two-level
// parent/sub hierarchy; leads reference exactly one vendor.
type Vendor struct {
	ID             uuid.UUID
	Name           string
	Code           string
	ParentVendorID *uuid.UUID
	CreatedAt      time.Time
}
