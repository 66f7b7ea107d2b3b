// Package alerts manages duplicate-MBI detection and the alert lifecycle:
// flagging new duplicates, acknowledging handled alerts, and the periodic
// full-table duplicate scan.
package alerts

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appevents "kitportal_backend/internal/events"
	"kitportal_backend/internal/leads/domain"
	"kitportal_backend/internal/leads/repository"
	"kitportal_backend/platform/events"
	"kitportal_backend/platform/logger"
)

// Store is the persistence surface the manager needs.
type Store interface {
	FindByMBI(ctx context.Context, mbi string) ([]domain.Lead, error)
	CreateAlertIfAbsent(ctx context.Context, params repository.CreateAlertParams) (domain.Alert, bool, error)
	AcknowledgeAlert(ctx context.Context, alertID uuid.UUID, acknowledgedBy string) (domain.Alert, error)
	AcknowledgeAlertsForLead(ctx context.Context, leadID uuid.UUID, alertType domain.AlertType, acknowledgedBy string) (int, error)
	ListAlertsByLead(ctx context.Context, leadID uuid.UUID, includeAcknowledged bool) ([]domain.Alert, error)
	ListOpenAlerts(ctx context.Context, alertType *domain.AlertType, limit, offset int) ([]domain.Alert, error)
	MarkDuplicate(ctx context.Context, id uuid.UUID) error
	MBIsWithMultipleLeads(ctx context.Context) ([]string, error)
}

// scanConcurrency bounds how many MBI groups a bulk scan works in parallel.
const scanConcurrency = 8

type Manager struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
}

func NewManager(store Store, bus events.Bus, log *logger.Logger) *Manager {
	return &Manager{store: store, bus: bus, log: log}
}

// FlagDuplicate records an MBI duplicate on a newly created lead: the lead is
// marked, and one unacknowledged alert per (lead, canonical, type) is
// guaranteed by the storage layer. The canonical lead is the earliest
// submission sharing the MBI. Returns nil when the lead has no duplicates.
func (m *Manager) FlagDuplicate(ctx context.Context, lead domain.Lead) (*domain.Alert, error) {
	others, err := m.store.FindByMBI(ctx, lead.MBI)
	if err != nil {
		return nil, err
	}
	others = excludeLead(others, lead.ID)
	if len(others) == 0 {
		return nil, nil
	}

	canonical := earliest(others)
	alert, created, err := m.store.CreateAlertIfAbsent(ctx, repository.CreateAlertParams{
		LeadID:        lead.ID,
		RelatedLeadID: &canonical.ID,
		Type:          domain.AlertTypeMBIDuplicate,
		Severity:      domain.SeverityHigh,
		Message:       fmt.Sprintf("MBI %s already belongs to a lead submitted %s", lead.MBI, canonical.CreatedAt.Format("2006-01-02")),
	})
	if err != nil {
		return nil, err
	}
	if err := m.store.MarkDuplicate(ctx, lead.ID); err != nil {
		return nil, err
	}

	if created {
		m.bus.Publish(ctx, appevents.NewDuplicateAlertCreated(alert, lead.MBI))
	}
	return &alert, nil
}

// FlagShippingException records a carrier delivery problem on a lead.
func (m *Manager) FlagShippingException(ctx context.Context, lead domain.Lead, trackingNumber, code, description string) (*domain.Alert, error) {
	alert, created, err := m.store.CreateAlertIfAbsent(ctx, repository.CreateAlertParams{
		LeadID:   lead.ID,
		Type:     domain.AlertTypeShippingException,
		Severity: domain.SeverityMedium,
		Message:  fmt.Sprintf("carrier reported %s for %s: %s", code, trackingNumber, description),
	})
	if err != nil {
		return nil, err
	}
	if created {
		m.bus.Publish(ctx, appevents.NewShippingException(lead.ID, trackingNumber, code, description))
	}
	return &alert, nil
}

// Acknowledge marks one alert handled.
func (m *Manager) Acknowledge(ctx context.Context, alertID uuid.UUID, acknowledgedBy string) (domain.Alert, error) {
	return m.store.AcknowledgeAlert(ctx, alertID, acknowledgedBy)
}

// ResolveDuplicate acknowledges every open duplicate alert on a lead, used
// when an advocate has reviewed the submission and decided it stands.
func (m *Manager) ResolveDuplicate(ctx context.Context, leadID uuid.UUID, acknowledgedBy string) (int, error) {
	return m.store.AcknowledgeAlertsForLead(ctx, leadID, domain.AlertTypeMBIDuplicate, acknowledgedBy)
}

// ConfirmDuplicate is the advocate's explicit DUPE disposition: the lead is
// marked a duplicate and its open duplicate alerts are auto-acknowledged,
// since the flag itself is the resolution.
func (m *Manager) ConfirmDuplicate(ctx context.Context, leadID uuid.UUID, acknowledgedBy string) (int, error) {
	if err := m.store.MarkDuplicate(ctx, leadID); err != nil {
		return 0, err
	}
	return m.store.AcknowledgeAlertsForLead(ctx, leadID, domain.AlertTypeMBIDuplicate, acknowledgedBy)
}

// ListForLead returns a lead's alerts, optionally including acknowledged ones.
func (m *Manager) ListForLead(ctx context.Context, leadID uuid.UUID, includeAcknowledged bool) ([]domain.Alert, error) {
	return m.store.ListAlertsByLead(ctx, leadID, includeAcknowledged)
}

// ListOpen returns unacknowledged alerts across all leads.
func (m *Manager) ListOpen(ctx context.Context, alertType *domain.AlertType, limit, offset int) ([]domain.Alert, error) {
	return m.store.ListOpenAlerts(ctx, alertType, limit, offset)
}

// ScanReport summarizes a bulk duplicate scan.
type ScanReport struct {
	GroupsScanned int `json:"groupsScanned"`
	LeadsFlagged  int `json:"leadsFlagged"`
	AlertsCreated int `json:"alertsCreated"`
}

// BulkScan sweeps the whole lead table for MBIs shared by multiple leads.
// Within each group the earliest submission is canonical; every later lead is
// flagged and alerted. Groups are scanned concurrently with a bounded worker
// count; existing alerts are left in place, so re-running the scan is safe.
func (m *Manager) BulkScan(ctx context.Context) (ScanReport, error) {
	mbis, err := m.store.MBIsWithMultipleLeads(ctx)
	if err != nil {
		return ScanReport{}, err
	}

	var flagged, createdCount atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)

	for _, mbi := range mbis {
		g.Go(func() error {
			leads, err := m.store.FindByMBI(gctx, mbi)
			if err != nil {
				return err
			}
			if len(leads) < 2 {
				return nil
			}
			sort.Slice(leads, func(i, j int) bool {
				return leads[i].CreatedAt.Before(leads[j].CreatedAt)
			})
			canonical := leads[0]
			for _, dup := range leads[1:] {
				alert, created, err := m.store.CreateAlertIfAbsent(gctx, repository.CreateAlertParams{
					LeadID:        dup.ID,
					RelatedLeadID: &canonical.ID,
					Type:          domain.AlertTypeMBIDuplicate,
					Severity:      domain.SeverityHigh,
					Message:       fmt.Sprintf("MBI %s already belongs to a lead submitted %s", mbi, canonical.CreatedAt.Format("2006-01-02")),
				})
				if err != nil {
					return err
				}
				if !dup.IsDuplicate {
					if err := m.store.MarkDuplicate(gctx, dup.ID); err != nil {
						return err
					}
					flagged.Add(1)
				}
				if created {
					createdCount.Add(1)
					m.bus.Publish(gctx, appevents.NewDuplicateAlertCreated(alert, mbi))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return ScanReport{}, err
	}

	report := ScanReport{
		GroupsScanned: len(mbis),
		LeadsFlagged:  int(flagged.Load()),
		AlertsCreated: int(createdCount.Load()),
	}
	m.log.Info("duplicate_bulk_scan",
		"groups", report.GroupsScanned,
		"flagged", report.LeadsFlagged,
		"alerts_created", report.AlertsCreated,
	)
	return report, nil
}

func excludeLead(leads []domain.Lead, id uuid.UUID) []domain.Lead {
	out := leads[:0]
	for _, l := range leads {
		if l.ID != id {
			out = append(out, l)
		}
	}
	return out
}

func earliest(leads []domain.Lead) domain.Lead {
	min := leads[0]
	for _, l := range leads[1:] {
		if l.CreatedAt.Before(min.CreatedAt) {
			min = l
		}
	}
	return min
}
