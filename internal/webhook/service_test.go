package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"kitportal_backend/internal/leads/domain"
	"kitportal_backend/internal/leads/matcher"
	"kitportal_backend/internal/leads/repository"
	"kitportal_backend/internal/leads/service"
	"kitportal_backend/platform/logger"
)

type fakeWorld struct {
	lead       *domain.Lead
	events     []repository.CreateTrackingEventParams
	exceptions []string
	eventsDown int // CreateTrackingEvent fails this many times
}

func (w *fakeWorld) Match(_ context.Context, b matcher.Bundle) ([]domain.Lead, string, error) {
	if w.lead != nil && (w.lead.TrackingNumber == b.TrackingNumber || w.lead.InboundTrackingNumber == b.TrackingNumber) {
		return []domain.Lead{*w.lead}, "tracking_number", nil
	}
	return nil, "", nil
}

func (w *fakeWorld) ApplyPlan(_ context.Context, leadID uuid.UUID, plan service.Planner, _ string) (domain.Lead, bool, error) {
	if w.lead == nil || w.lead.ID != leadID {
		return domain.Lead{}, false, errors.New("lead not found")
	}
	p := plan(w.lead.Status)
	if p.NoOp() {
		return *w.lead, false, nil
	}
	w.lead.Status = p.Final()
	return *w.lead, true, nil
}

func (w *fakeWorld) CreateTrackingEvent(_ context.Context, params repository.CreateTrackingEventParams) (domain.TrackingEvent, bool, error) {
	if w.eventsDown > 0 {
		w.eventsDown--
		return domain.TrackingEvent{}, false, errors.New("connection reset")
	}
	for _, e := range w.events {
		if e.LeadID == params.LeadID && e.Direction == params.Direction &&
			e.Code == params.Code && e.OccurredAt.Equal(params.OccurredAt) {
			return domain.TrackingEvent{}, false, nil
		}
	}
	w.events = append(w.events, params)
	return domain.TrackingEvent{ID: uuid.New(), LeadID: params.LeadID}, true, nil
}

func (w *fakeWorld) FlagShippingException(_ context.Context, _ domain.Lead, _, code, _ string) (*domain.Alert, error) {
	w.exceptions = append(w.exceptions, code)
	return &domain.Alert{ID: uuid.New()}, nil
}

func newTestService(w *fakeWorld) *Service {
	return NewService(w, w, w, w, NoopDeduper{}, logger.New("development"))
}

// memDeduper is an in-memory Deduper with the real Seen/Mark split.
type memDeduper struct {
	marked map[string]bool
}

func newMemDeduper() *memDeduper {
	return &memDeduper{marked: make(map[string]bool)}
}

func (d *memDeduper) Seen(_ context.Context, key string) (bool, error) {
	return d.marked[key], nil
}

func (d *memDeduper) Mark(_ context.Context, key string) error {
	d.marked[key] = true
	return nil
}

func trackedLead(status domain.Status) *domain.Lead {
	return &domain.Lead{
		ID:                    uuid.New(),
		MBI:                   "9AB3XY7MK21",
		Status:                status,
		TrackingNumber:        "1Z999AA10123456784",
		InboundTrackingNumber: "1Z999AA10198765432",
	}
}

func outboundScan(code, activityType string) CarrierEventPayload {
	return CarrierEventPayload{
		TrackingNumber:    "1Z999AA10123456784",
		ActivityStatus:    ActivityStatus{Type: activityType, Code: code, Description: "scan"},
		LocalActivityDate: "20260815",
		LocalActivityTime: "104500",
		ActivityLocation:  "AUSTIN TX",
	}
}

func TestOutboundInTransitAutoAdvancesToShipped(t *testing.T) {
	w := &fakeWorld{lead: trackedLead(domain.StatusSubmitted)}
	svc := newTestService(w)

	receipt, err := svc.Process(context.Background(), outboundScan("AR", "I"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Status != "applied" {
		t.Fatalf("status = %q", receipt.Status)
	}
	// Shipping evidence force-advances SUBMITTED through APPROVED.
	if w.lead.Status != domain.StatusShipped {
		t.Fatalf("lead status = %s, want SHIPPED", w.lead.Status)
	}
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	w := &fakeWorld{lead: trackedLead(domain.StatusApproved)}
	svc := newTestService(w)
	payload := outboundScan("AR", "I")

	for i := range 3 {
		receipt, err := svc.Process(context.Background(), payload)
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		want := "applied"
		if i > 0 {
			want = "duplicate"
		}
		if receipt.Status != want {
			t.Fatalf("delivery %d status = %q, want %q", i, receipt.Status, want)
		}
	}
	if len(w.events) != 1 {
		t.Fatalf("tracking events = %d, want 1", len(w.events))
	}
	if w.lead.Status != domain.StatusShipped {
		t.Fatalf("lead status = %s after redeliveries", w.lead.Status)
	}
}

func TestOutboundDeliveredSetsDelivered(t *testing.T) {
	w := &fakeWorld{lead: trackedLead(domain.StatusShipped)}
	svc := newTestService(w)

	if _, err := svc.Process(context.Background(), outboundScan("D1", "D")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.lead.Status != domain.StatusDelivered {
		t.Fatalf("lead status = %s, want DELIVERED", w.lead.Status)
	}
}

func TestInboundDeliveredCompletesKit(t *testing.T) {
	w := &fakeWorld{lead: trackedLead(domain.StatusKitReturning)}
	svc := newTestService(w)

	payload := outboundScan("D1", "D")
	payload.TrackingNumber = w.lead.InboundTrackingNumber

	if _, err := svc.Process(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.lead.Status != domain.StatusKitCompleted {
		t.Fatalf("lead status = %s, want KIT_COMPLETED", w.lead.Status)
	}
	if len(w.events) != 1 || w.events[0].Direction != domain.DirectionInbound {
		t.Fatalf("events = %+v, want one inbound event", w.events)
	}
}

func TestInboundInTransitOnlyFromDeliveredOrShipped(t *testing.T) {
	tests := []struct {
		start domain.Status
		want  domain.Status
	}{
		{domain.StatusDelivered, domain.StatusKitReturning},
		{domain.StatusShipped, domain.StatusKitReturning},
		{domain.StatusApproved, domain.StatusApproved}, // scan ignored
	}
	for _, tc := range tests {
		w := &fakeWorld{lead: trackedLead(tc.start)}
		svc := newTestService(w)
		payload := outboundScan("AR", "I")
		payload.TrackingNumber = w.lead.InboundTrackingNumber

		if _, err := svc.Process(context.Background(), payload); err != nil {
			t.Fatalf("from %s: %v", tc.start, err)
		}
		if w.lead.Status != tc.want {
			t.Errorf("from %s: status = %s, want %s", tc.start, w.lead.Status, tc.want)
		}
	}
}

func TestExceptionAlertsWithoutStatusChange(t *testing.T) {
	w := &fakeWorld{lead: trackedLead(domain.StatusShipped)}
	svc := newTestService(w)

	receipt, err := svc.Process(context.Background(), outboundScan("DE", "X"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Category != string(CategoryException) {
		t.Fatalf("category = %q", receipt.Category)
	}
	if len(w.exceptions) != 1 || w.exceptions[0] != "DE" {
		t.Fatalf("exceptions = %v, want one DE alert", w.exceptions)
	}
	if w.lead.Status != domain.StatusShipped {
		t.Fatalf("status = %s, exceptions must not move status", w.lead.Status)
	}
}

func TestTransientFailureLeavesRedeliveryOpen(t *testing.T) {
	w := &fakeWorld{lead: trackedLead(domain.StatusSubmitted), eventsDown: 1}
	dedupe := newMemDeduper()
	svc := NewService(w, w, w, w, dedupe, logger.New("development"))
	payload := outboundScan("AR", "I")

	if _, err := svc.Process(context.Background(), payload); err == nil {
		t.Fatal("expected the first delivery to fail while the store is down")
	}
	if len(dedupe.marked) != 0 {
		t.Fatal("failed delivery must not mark the dedupe key")
	}

	// The carrier redelivers; this time the scan must apply.
	receipt, err := svc.Process(context.Background(), payload)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if receipt.Status != "applied" {
		t.Fatalf("redelivery status = %q, want applied", receipt.Status)
	}
	if w.lead.Status != domain.StatusShipped {
		t.Fatalf("lead status = %s, want SHIPPED", w.lead.Status)
	}
	if !dedupe.marked[eventKey(payload)] {
		t.Fatal("successful delivery must mark the dedupe key")
	}

	// And the mark now absorbs further replays.
	receipt, err = svc.Process(context.Background(), payload)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if receipt.Status != "duplicate" {
		t.Fatalf("replay status = %q, want duplicate", receipt.Status)
	}
}

func TestUnmatchedTrackingNumberIgnored(t *testing.T) {
	w := &fakeWorld{}
	svc := newTestService(w)

	receipt, err := svc.Process(context.Background(), outboundScan("AR", "I"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Status != "ignored" {
		t.Fatalf("status = %q, want ignored", receipt.Status)
	}
}

func TestOccurredAtParsing(t *testing.T) {
	received := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	p := outboundScan("AR", "I")
	got := p.OccurredAt(received)
	want := time.Date(2026, 8, 15, 10, 45, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("compact form = %v, want %v", got, want)
	}

	p.LocalActivityDate = "2026-08-15"
	p.LocalActivityTime = "10:45:00"
	if got := p.OccurredAt(received); !got.Equal(want) {
		t.Errorf("dashed form = %v, want %v", got, want)
	}

	p.LocalActivityDate = "not a date"
	if got := p.OccurredAt(received); !got.Equal(received) {
		t.Errorf("unparseable date = %v, want receipt time", got)
	}
}
