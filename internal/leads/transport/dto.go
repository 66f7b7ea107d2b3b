// Package transport defines the request and response DTOs for the leads
// bounded context.
package transport

import (
	"time"

	"github.com/google/uuid"

	"kitportal_backend/internal/leads/domain"
)

// CheckDuplicateRequest asks whether a submission would be blocked before any
// row is written.
type CheckDuplicateRequest struct {
	MBI      string          `json:"mbi" validate:"required,mbi"`
	TestType domain.TestType `json:"testType" validate:"required,oneof=IMMUNE NEURO"`
	// ExcludeLeadID lets callers re-check an already persisted lead without
	// the lead blocking itself.
	ExcludeLeadID *uuid.UUID `json:"excludeLeadId,omitempty"`
}

type CreateLeadRequest struct {
	MBI         string          `json:"mbi" validate:"required,mbi"`
	FirstName   string          `json:"firstName" validate:"required,min=1,max=100"`
	LastName    string          `json:"lastName" validate:"required,min=1,max=100"`
	DateOfBirth string          `json:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Phone       string          `json:"phone" validate:"required,min=10,max=20"`
	TestType    domain.TestType `json:"testType" validate:"required,oneof=IMMUNE NEURO"`
	Vendor      string          `json:"vendor" validate:"required,min=1,max=200"`
	SubVendor   string          `json:"subVendor,omitempty" validate:"omitempty,max=200"`
	// AllowDuplicate creates the lead even when the duplicate policy blocks
	// it; the lead is flagged and alerted instead of rejected.
	AllowDuplicate bool `json:"allowDuplicate,omitempty"`
}

type UpdateLeadRequest struct {
	FirstName   *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName    *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	DateOfBirth *string `json:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,min=10,max=20"`
	// Status requests a manual transition, validated by the state machine.
	Status *domain.Status `json:"status,omitempty"`
	// IsDuplicate true is the advocate's DUPE disposition; it flags the lead
	// and auto-acknowledges its open duplicate alerts.
	IsDuplicate   *bool  `json:"isDuplicate,omitempty"`
	DispositionBy string `json:"dispositionBy,omitempty" validate:"omitempty,max=200"`
}

type AcknowledgeAlertRequest struct {
	AcknowledgedBy string `json:"acknowledgedBy" validate:"required,min=1,max=200"`
}

type LeadResponse struct {
	ID                    uuid.UUID       `json:"id"`
	MBI                   string          `json:"mbi"`
	FirstName             string          `json:"firstName"`
	LastName              string          `json:"lastName"`
	DateOfBirth           *time.Time      `json:"dateOfBirth,omitempty"`
	Phone                 string          `json:"phone"`
	Status                domain.Status   `json:"status"`
	TestType              domain.TestType `json:"testType"`
	VendorID              uuid.UUID       `json:"vendorId"`
	SubVendorID           *uuid.UUID      `json:"subVendorId,omitempty"`
	IsDuplicate           bool            `json:"isDuplicate"`
	HasActiveAlerts       bool            `json:"hasActiveAlerts"`
	AdvocateReviewedAt    *time.Time      `json:"advocateReviewedAt,omitempty"`
	DoctorApprovalDate    *time.Time      `json:"doctorApprovalDate,omitempty"`
	ConsultDate           *time.Time      `json:"consultDate,omitempty"`
	KitShippedDate        *time.Time      `json:"kitShippedDate,omitempty"`
	KitDeliveredDate      *time.Time      `json:"kitDeliveredDate,omitempty"`
	KitReturnedDate       *time.Time      `json:"kitReturnedDate,omitempty"`
	TrackingNumber        string          `json:"trackingNumber,omitempty"`
	InboundTrackingNumber string          `json:"inboundTrackingNumber,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

func ToLeadResponse(l domain.Lead) LeadResponse {
	return LeadResponse{
		ID:                    l.ID,
		MBI:                   l.MBI,
		FirstName:             l.FirstName,
		LastName:              l.LastName,
		DateOfBirth:           l.DateOfBirth,
		Phone:                 l.Phone,
		Status:                l.Status,
		TestType:              l.TestType,
		VendorID:              l.VendorID,
		SubVendorID:           l.SubVendorID,
		IsDuplicate:           l.IsDuplicate,
		HasActiveAlerts:       l.HasActiveAlerts,
		AdvocateReviewedAt:    l.AdvocateReviewedAt,
		DoctorApprovalDate:    l.DoctorApprovalDate,
		ConsultDate:           l.ConsultDate,
		KitShippedDate:        l.KitShippedDate,
		KitDeliveredDate:      l.KitDeliveredDate,
		KitReturnedDate:       l.KitReturnedDate,
		TrackingNumber:        l.TrackingNumber,
		InboundTrackingNumber: l.InboundTrackingNumber,
		CreatedAt:             l.CreatedAt,
		UpdatedAt:             l.UpdatedAt,
	}
}

type LeadListResponse struct {
	Items  []LeadResponse `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type AlertResponse struct {
	ID             uuid.UUID            `json:"id"`
	LeadID         uuid.UUID            `json:"leadId"`
	RelatedLeadID  *uuid.UUID           `json:"relatedLeadId,omitempty"`
	Type           domain.AlertType     `json:"type"`
	Severity       domain.AlertSeverity `json:"severity"`
	Message        string               `json:"message"`
	IsAcknowledged bool                 `json:"isAcknowledged"`
	AcknowledgedBy *string              `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time           `json:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
}

func ToAlertResponse(a domain.Alert) AlertResponse {
	return AlertResponse{
		ID:             a.ID,
		LeadID:         a.LeadID,
		RelatedLeadID:  a.RelatedLeadID,
		Type:           a.Type,
		Severity:       a.Severity,
		Message:        a.Message,
		IsAcknowledged: a.IsAcknowledged,
		AcknowledgedBy: a.AcknowledgedBy,
		AcknowledgedAt: a.AcknowledgedAt,
		CreatedAt:      a.CreatedAt,
	}
}

type TrackingEventResponse struct {
	ID           uuid.UUID                `json:"id"`
	Direction    domain.TrackingDirection `json:"direction"`
	ActivityType string                   `json:"activityType"`
	Code         string                   `json:"code"`
	Description  string                   `json:"description,omitempty"`
	Location     string                   `json:"location,omitempty"`
	OccurredAt   time.Time                `json:"occurredAt"`
}

func ToTrackingEventResponse(e domain.TrackingEvent) TrackingEventResponse {
	return TrackingEventResponse{
		ID:           e.ID,
		Direction:    e.Direction,
		ActivityType: e.ActivityType,
		Code:         e.Code,
		Description:  e.Description,
		Location:     e.Location,
		OccurredAt:   e.OccurredAt,
	}
}
