package matcher

import (
	"context"
	"strings"
	"testing"

	"kitportal_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// fakeFinder is an in-memory Finder over a fixed lead set.
type fakeFinder struct {
	leads []domain.Lead
	calls []string
}

func (f *fakeFinder) FindByMBI(_ context.Context, mbi string) ([]domain.Lead, error) {
	f.calls = append(f.calls, "mbi")
	var out []domain.Lead
	for _, l := range f.leads {
		if l.MBI == mbi {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeFinder) FindByNameAndPhone(_ context.Context, first, last, phone string) ([]domain.Lead, error) {
	f.calls = append(f.calls, "name_phone")
	var out []domain.Lead
	for _, l := range f.leads {
		if strings.EqualFold(l.FirstName, first) && strings.EqualFold(l.LastName, last) && l.Phone == phone {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeFinder) FindByPhone(_ context.Context, phone string) ([]domain.Lead, error) {
	f.calls = append(f.calls, "phone")
	var out []domain.Lead
	for _, l := range f.leads {
		if l.Phone == phone {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeFinder) FindByTrackingNumber(_ context.Context, tn string) ([]domain.Lead, error) {
	f.calls = append(f.calls, "tracking_number")
	var out []domain.Lead
	for _, l := range f.leads {
		if l.TrackingNumber == tn || l.InboundTrackingNumber == tn {
			out = append(out, l)
		}
	}
	return out, nil
}

func testLead() domain.Lead {
	return domain.Lead{
		ID:                    uuid.New(),
		MBI:                   "9AB3XY7MK21",
		FirstName:             "Martha",
		LastName:              "Reyes",
		Phone:                 "5125550142",
		TrackingNumber:        "1Z999AA10123456784",
		InboundTrackingNumber: "1Z999AA10198765432",
	}
}

func TestMatchMBIShortCircuits(t *testing.T) {
	lead := testLead()
	finder := &fakeFinder{leads: []domain.Lead{lead}}
	m := New(finder)

	// Name and phone are wrong on purpose: the MBI strategy must win alone.
	got, strategy, err := m.Match(context.Background(), Bundle{
		MBI:       "9ab3-xy7-mk21",
		FirstName: "Wrong",
		LastName:  "Person",
		Phone:     "0000000000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != lead.ID {
		t.Fatalf("got %d matches, want the MBI lead", len(got))
	}
	if strategy != "mbi" {
		t.Fatalf("strategy = %q, want mbi", strategy)
	}
	if len(finder.calls) != 1 {
		t.Fatalf("finder calls = %v, want the cascade to stop after the first hit", finder.calls)
	}
}

func TestMatchNamePhoneFallback(t *testing.T) {
	lead := testLead()
	finder := &fakeFinder{leads: []domain.Lead{lead}}
	m := New(finder)

	got, strategy, err := m.Match(context.Background(), Bundle{
		FirstName: "MARTHA",
		LastName:  "reyes",
		Phone:     "(512) 555-0142",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != lead.ID {
		t.Fatalf("got %d matches, want name+phone match", len(got))
	}
	if strategy != "name_phone" {
		t.Fatalf("strategy = %q, want name_phone", strategy)
	}
}

func TestMatchPhoneAlone(t *testing.T) {
	lead := testLead()
	m := New(&fakeFinder{leads: []domain.Lead{lead}})

	got, strategy, err := m.Match(context.Background(), Bundle{Phone: "512-555-0142"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || strategy != "phone" {
		t.Fatalf("got %d matches via %q, want 1 via phone", len(got), strategy)
	}
}

func TestMatchTrackingNumberEitherDirection(t *testing.T) {
	lead := testLead()
	m := New(&fakeFinder{leads: []domain.Lead{lead}})

	for _, tn := range []string{lead.TrackingNumber, lead.InboundTrackingNumber} {
		got, strategy, err := m.Match(context.Background(), Bundle{TrackingNumber: tn})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || strategy != "tracking_number" {
			t.Fatalf("tracking %q: got %d matches via %q", tn, len(got), strategy)
		}
	}
}

func TestMatchNothingIsNotAnError(t *testing.T) {
	m := New(&fakeFinder{leads: []domain.Lead{testLead()}})

	got, strategy, err := m.Match(context.Background(), Bundle{
		MBI:   "1EG4TE5MK73",
		Phone: "9995550000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 || strategy != "" {
		t.Fatalf("got %d matches via %q, want none", len(got), strategy)
	}
}

func TestMatchEmptyBundle(t *testing.T) {
	finder := &fakeFinder{leads: []domain.Lead{testLead()}}
	m := New(finder)

	got, _, err := m.Match(context.Background(), Bundle{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 || len(finder.calls) != 0 {
		t.Fatalf("empty bundle should match nothing and call no strategy, calls=%v", finder.calls)
	}
}

func TestCustomStrategyInsertion(t *testing.T) {
	lead := testLead()
	finder := &fakeFinder{leads: []domain.Lead{lead}}

	// A synthetic strategy inserted ahead of the cascade must win without
	// touching the others.
	custom := Strategy{
		Name:    "always",
		Applies: func(Bundle) bool { return true },
		Find: func(context.Context, Finder, Bundle) ([]domain.Lead, error) {
			return []domain.Lead{lead}, nil
		},
	}
	m := New(finder).WithStrategies(append([]Strategy{custom}, DefaultStrategies()...))

	got, strategy, err := m.Match(context.Background(), Bundle{MBI: lead.MBI})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strategy != "always" || len(got) != 1 {
		t.Fatalf("strategy = %q with %d matches, want custom strategy first", strategy, len(got))
	}
}
