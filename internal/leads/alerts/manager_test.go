package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"kitportal_backend/internal/leads/domain"
	"kitportal_backend/internal/leads/repository"
	"kitportal_backend/platform/events"
	"kitportal_backend/platform/logger"
)

// fakeStore is an in-memory Store enforcing the same at-most-one-open-alert
// rule the partial unique index enforces in Postgres.
type fakeStore struct {
	mu     sync.Mutex
	leads  map[uuid.UUID]*domain.Lead
	alerts []*domain.Alert
}

func newFakeStore(leads ...domain.Lead) *fakeStore {
	s := &fakeStore{leads: make(map[uuid.UUID]*domain.Lead)}
	for i := range leads {
		l := leads[i]
		s.leads[l.ID] = &l
	}
	return s
}

func (s *fakeStore) FindByMBI(_ context.Context, mbi string) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Lead
	for _, l := range s.leads {
		if l.MBI == mbi {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateAlertIfAbsent(_ context.Context, params repository.CreateAlertParams) (domain.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.LeadID == params.LeadID && a.Type == params.Type && !a.IsAcknowledged &&
			equalRelated(a.RelatedLeadID, params.RelatedLeadID) {
			return *a, false, nil
		}
	}
	a := &domain.Alert{
		ID:            uuid.New(),
		LeadID:        params.LeadID,
		RelatedLeadID: params.RelatedLeadID,
		Type:          params.Type,
		Severity:      params.Severity,
		Message:       params.Message,
		CreatedAt:     time.Now(),
	}
	s.alerts = append(s.alerts, a)
	if l, ok := s.leads[params.LeadID]; ok {
		l.HasActiveAlerts = true
	}
	return *a, true, nil
}

func (s *fakeStore) AcknowledgeAlert(_ context.Context, alertID uuid.UUID, by string) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == alertID {
			now := time.Now()
			a.IsAcknowledged = true
			a.AcknowledgedBy = &by
			a.AcknowledgedAt = &now
			return *a, nil
		}
	}
	return domain.Alert{}, repository.ErrAlertNotFound
}

func (s *fakeStore) AcknowledgeAlertsForLead(_ context.Context, leadID uuid.UUID, alertType domain.AlertType, by string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if a.LeadID == leadID && a.Type == alertType && !a.IsAcknowledged {
			now := time.Now()
			a.IsAcknowledged = true
			a.AcknowledgedBy = &by
			a.AcknowledgedAt = &now
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ListAlertsByLead(_ context.Context, leadID uuid.UUID, includeAcked bool) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.LeadID == leadID && (includeAcked || !a.IsAcknowledged) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) ListOpenAlerts(_ context.Context, alertType *domain.AlertType, _, _ int) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if !a.IsAcknowledged && (alertType == nil || a.Type == *alertType) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkDuplicate(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.leads[id]; ok {
		l.IsDuplicate = true
	}
	return nil
}

func (s *fakeStore) MBIsWithMultipleLeads(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, l := range s.leads {
		counts[l.MBI]++
	}
	var out []string
	for mbi, n := range counts {
		if n > 1 {
			out = append(out, mbi)
		}
	}
	return out, nil
}

func equalRelated(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

func newManager(store Store) (*Manager, *recordingBus) {
	bus := &recordingBus{}
	return NewManager(store, bus, logger.New("development")), bus
}

func leadWith(mbi string, createdAt time.Time) domain.Lead {
	return domain.Lead{
		ID:        uuid.New(),
		MBI:       mbi,
		Status:    domain.StatusSubmitted,
		TestType:  domain.TestTypeImmune,
		CreatedAt: createdAt,
	}
}

func TestFlagDuplicateNoneFound(t *testing.T) {
	lead := leadWith("9AB3XY7MK21", time.Now())
	store := newFakeStore(lead)
	m, bus := newManager(store)

	// The lead itself shares its own MBI; it must be self-excluded.
	alert, err := m.FlagDuplicate(context.Background(), lead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alert != nil {
		t.Fatalf("got alert %v, want none for a unique MBI", alert)
	}
	if store.leads[lead.ID].IsDuplicate {
		t.Fatal("lead marked duplicate against only itself")
	}
	if len(bus.events) != 0 {
		t.Fatalf("published %d events, want 0", len(bus.events))
	}
}

func TestFlagDuplicateCreatesAlertAgainstEarliest(t *testing.T) {
	base := time.Now().Add(-72 * time.Hour)
	oldest := leadWith("9AB3XY7MK21", base)
	middle := leadWith("9AB3XY7MK21", base.Add(24*time.Hour))
	newest := leadWith("9AB3XY7MK21", base.Add(48*time.Hour))
	store := newFakeStore(oldest, middle, newest)
	m, bus := newManager(store)

	alert, err := m.FlagDuplicate(context.Background(), newest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alert == nil {
		t.Fatal("want an alert for a shared MBI")
	}
	if alert.RelatedLeadID == nil || *alert.RelatedLeadID != oldest.ID {
		t.Fatalf("related lead = %v, want the earliest submission %s", alert.RelatedLeadID, oldest.ID)
	}
	if alert.Type != domain.AlertTypeMBIDuplicate || alert.Severity != domain.SeverityHigh {
		t.Fatalf("alert type/severity = %s/%s", alert.Type, alert.Severity)
	}
	if !store.leads[newest.ID].IsDuplicate {
		t.Fatal("new lead not marked duplicate")
	}
	if got := bus.count("alert.duplicate_created"); got != 1 {
		t.Fatalf("duplicate events = %d, want 1", got)
	}
}

func TestFlagDuplicateIdempotent(t *testing.T) {
	base := time.Now().Add(-48 * time.Hour)
	first := leadWith("9AB3XY7MK21", base)
	second := leadWith("9AB3XY7MK21", base.Add(time.Hour))
	store := newFakeStore(first, second)
	m, bus := newManager(store)

	for range 3 {
		if _, err := m.FlagDuplicate(context.Background(), second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	open, _ := store.ListAlertsByLead(context.Background(), second.ID, false)
	if len(open) != 1 {
		t.Fatalf("open alerts = %d, want exactly 1 despite repeated checks", len(open))
	}
	if got := bus.count("alert.duplicate_created"); got != 1 {
		t.Fatalf("duplicate events = %d, want 1", got)
	}
}

func TestAcknowledgeThenRecheckCreatesFreshAlert(t *testing.T) {
	base := time.Now().Add(-48 * time.Hour)
	first := leadWith("9AB3XY7MK21", base)
	second := leadWith("9AB3XY7MK21", base.Add(time.Hour))
	store := newFakeStore(first, second)
	m, _ := newManager(store)

	alert, err := m.FlagDuplicate(context.Background(), second)
	if err != nil || alert == nil {
		t.Fatalf("setup flag failed: %v", err)
	}
	acked, err := m.Acknowledge(context.Background(), alert.ID, "reviewer@lab.example")
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if !acked.IsAcknowledged || acked.AcknowledgedBy == nil {
		t.Fatal("alert not recorded as acknowledged")
	}

	// The uniqueness rule only covers open alerts: after an acknowledgement
	// the same condition may be raised again.
	again, err := m.FlagDuplicate(context.Background(), second)
	if err != nil || again == nil {
		t.Fatalf("re-flag failed: %v", err)
	}
	if again.ID == alert.ID {
		t.Fatal("re-check returned the acknowledged alert instead of a fresh one")
	}
}

func TestBulkScanFlagsAllButEarliest(t *testing.T) {
	base := time.Now().Add(-96 * time.Hour)
	groupA1 := leadWith("9AB3XY7MK21", base)
	groupA2 := leadWith("9AB3XY7MK21", base.Add(2*time.Hour))
	groupA3 := leadWith("9AB3XY7MK21", base.Add(4*time.Hour))
	groupB1 := leadWith("1EG4TE5MK73", base)
	groupB2 := leadWith("1EG4TE5MK73", base.Add(time.Hour))
	unique := leadWith("4XD8WF2QN55", base)
	store := newFakeStore(groupA1, groupA2, groupA3, groupB1, groupB2, unique)
	m, _ := newManager(store)

	report, err := m.BulkScan(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.GroupsScanned != 2 {
		t.Fatalf("groups scanned = %d, want 2", report.GroupsScanned)
	}
	if report.LeadsFlagged != 3 || report.AlertsCreated != 3 {
		t.Fatalf("flagged/created = %d/%d, want 3/3", report.LeadsFlagged, report.AlertsCreated)
	}

	for _, canonical := range []domain.Lead{groupA1, groupB1, unique} {
		if store.leads[canonical.ID].IsDuplicate {
			t.Errorf("lead %s flagged, want canonical/unique leads untouched", canonical.ID)
		}
	}
	for _, dup := range []domain.Lead{groupA2, groupA3, groupB2} {
		if !store.leads[dup.ID].IsDuplicate {
			t.Errorf("lead %s not flagged", dup.ID)
		}
	}
}

func TestBulkScanRerunIsIdempotent(t *testing.T) {
	base := time.Now().Add(-48 * time.Hour)
	first := leadWith("9AB3XY7MK21", base)
	second := leadWith("9AB3XY7MK21", base.Add(time.Hour))
	store := newFakeStore(first, second)
	m, _ := newManager(store)

	if _, err := m.BulkScan(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	report, err := m.BulkScan(context.Background())
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if report.AlertsCreated != 0 || report.LeadsFlagged != 0 {
		t.Fatalf("second scan created %d alerts, flagged %d leads; want 0/0", report.AlertsCreated, report.LeadsFlagged)
	}
}

func TestConfirmDuplicateMarksAndAcks(t *testing.T) {
	base := time.Now().Add(-48 * time.Hour)
	first := leadWith("9AB3XY7MK21", base)
	second := leadWith("9AB3XY7MK21", base.Add(time.Hour))
	store := newFakeStore(first, second)
	m, _ := newManager(store)

	// Alert exists but the lead was not yet flagged (bulk-scan path was
	// interrupted, say); the advocate's DUPE disposition fixes both.
	if _, _, err := store.CreateAlertIfAbsent(context.Background(), repository.CreateAlertParams{
		LeadID:        second.ID,
		RelatedLeadID: &first.ID,
		Type:          domain.AlertTypeMBIDuplicate,
		Severity:      domain.SeverityHigh,
		Message:       "duplicate",
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	n, err := m.ConfirmDuplicate(context.Background(), second.ID, "advocate@lab.example")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if n != 1 {
		t.Fatalf("acknowledged %d alerts, want 1", n)
	}
	if !store.leads[second.ID].IsDuplicate {
		t.Fatal("lead not marked duplicate")
	}
}

func TestResolveDuplicateAcksAllOpenDuplicateAlerts(t *testing.T) {
	base := time.Now().Add(-48 * time.Hour)
	first := leadWith("9AB3XY7MK21", base)
	second := leadWith("9AB3XY7MK21", base.Add(time.Hour))
	store := newFakeStore(first, second)
	m, _ := newManager(store)

	if _, err := m.FlagDuplicate(context.Background(), second); err != nil {
		t.Fatalf("setup: %v", err)
	}
	n, err := m.ResolveDuplicate(context.Background(), second.ID, "advocate@lab.example")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if n != 1 {
		t.Fatalf("acknowledged %d alerts, want 1", n)
	}
	open, _ := m.ListForLead(context.Background(), second.ID, false)
	if len(open) != 0 {
		t.Fatalf("open alerts after resolve = %d, want 0", len(open))
	}
}
