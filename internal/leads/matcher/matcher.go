// Package matcher resolves incoming identifier bundles (MBI, name, phone,
// tracking number) to existing leads using an ordered cascade of strategies,
// and maps arbitrary CSV header spellings to the semantic fields that feed
// the cascade.
package matcher

import (
	"context"
	"strings"

	"kitportal_backend/internal/leads/domain"
	"kitportal_backend/platform/phone"
)

// Bundle is a partial identifier set extracted from a CSV row, webhook
// payload, or request. Empty fields are simply unknown.
type Bundle struct {
	MBI            string
	FirstName      string
	LastName       string
	Phone          string
	TrackingNumber string
}

// IsEmpty reports whether the bundle carries no identifying field at all.
func (b Bundle) IsEmpty() bool {
	return b.MBI == "" && b.FirstName == "" && b.LastName == "" &&
		b.Phone == "" && b.TrackingNumber == ""
}

// Finder is the read-side lead lookup the strategies run against.
// Implemented by the leads repository.
type Finder interface {
	FindByMBI(ctx context.Context, mbi string) ([]domain.Lead, error)
	FindByNameAndPhone(ctx context.Context, firstName, lastName, phone string) ([]domain.Lead, error)
	FindByPhone(ctx context.Context, phone string) ([]domain.Lead, error)
	// FindByTrackingNumber matches either the outbound or inbound number.
	FindByTrackingNumber(ctx context.Context, trackingNumber string) ([]domain.Lead, error)
}

// Strategy is a single, independently substitutable matching step.
type Strategy struct {
	Name    string
	Applies func(Bundle) bool
	Find    func(ctx context.Context, f Finder, b Bundle) ([]domain.Lead, error)
}

// Matcher runs an ordered strategy cascade: the first strategy that applies
// and yields at least one match wins. Zero matches overall is not an error.
type Matcher struct {
	finder     Finder
	strategies []Strategy
}

// New creates a matcher with the standard cascade. A custom strategy list
// (e.g., inserting an address strategy) can be set with WithStrategies.
func New(finder Finder) *Matcher {
	return &Matcher{finder: finder, strategies: DefaultStrategies()}
}

// WithStrategies replaces the cascade, preserving order as given.
func (m *Matcher) WithStrategies(strategies []Strategy) *Matcher {
	m.strategies = strategies
	return m
}

// Match resolves the bundle to existing leads. It returns the matches and
// the name of the strategy that produced them; no match returns an empty
// slice and strategy "".
func (m *Matcher) Match(ctx context.Context, b Bundle) ([]domain.Lead, string, error) {
	b = normalizeBundle(b)
	for _, s := range m.strategies {
		if !s.Applies(b) {
			continue
		}
		leads, err := s.Find(ctx, m.finder, b)
		if err != nil {
			return nil, "", err
		}
		if len(leads) > 0 {
			return leads, s.Name, nil
		}
	}
	return nil, "", nil
}

// DefaultStrategies is the standard cascade, in priority order:
// exact MBI, name+phone, phone alone, tracking number.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:    "mbi",
			Applies: func(b Bundle) bool { return b.MBI != "" },
			Find: func(ctx context.Context, f Finder, b Bundle) ([]domain.Lead, error) {
				return f.FindByMBI(ctx, b.MBI)
			},
		},
		{
			Name: "name_phone",
			Applies: func(b Bundle) bool {
				return b.FirstName != "" && b.LastName != "" && b.Phone != ""
			},
			Find: func(ctx context.Context, f Finder, b Bundle) ([]domain.Lead, error) {
				return f.FindByNameAndPhone(ctx, b.FirstName, b.LastName, b.Phone)
			},
		},
		{
			Name:    "phone",
			Applies: func(b Bundle) bool { return b.Phone != "" },
			Find: func(ctx context.Context, f Finder, b Bundle) ([]domain.Lead, error) {
				return f.FindByPhone(ctx, b.Phone)
			},
		},
		{
			Name:    "tracking_number",
			Applies: func(b Bundle) bool { return b.TrackingNumber != "" },
			Find: func(ctx context.Context, f Finder, b Bundle) ([]domain.Lead, error) {
				return f.FindByTrackingNumber(ctx, b.TrackingNumber)
			},
		},
	}
}

func normalizeBundle(b Bundle) Bundle {
	b.MBI = domain.NormalizeMBI(b.MBI)
	b.FirstName = strings.TrimSpace(b.FirstName)
	b.LastName = strings.TrimSpace(b.LastName)
	b.TrackingNumber = strings.TrimSpace(b.TrackingNumber)
	if b.Phone != "" {
		b.Phone = phone.NormalizeDigits(b.Phone)
	}
	return b
}
