package vendors

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"kitportal_backend/internal/leads/domain"
)

// UnknownVendorName is assigned when an import row carries no usable vendor
// label at all; every lead must reference a vendor.
const UnknownVendorName = "UNKNOWN"

// Store abstracts the repository for service tests.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Vendor, error)
	GetByName(ctx context.Context, name string) (domain.Vendor, error)
	Create(ctx context.Context, params CreateVendorParams) (domain.Vendor, error)
	List(ctx context.Context) ([]domain.Vendor, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ResolveOrCreate maps a free-text vendor label from an import row to a
// vendor record, creating one on first sight. The fallback naming contract:
// name is the trimmed label, code is its upper-snake slug, and an empty
// label resolves to the UNKNOWN vendor.
func (s *Service) ResolveOrCreate(ctx context.Context, label string) (domain.Vendor, error) {
	name := strings.TrimSpace(label)
	if name == "" {
		name = UnknownVendorName
	}

	vendor, err := s.store.GetByName(ctx, name)
	if err == nil {
		return vendor, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Vendor{}, err
	}
	return s.store.Create(ctx, CreateVendorParams{
		Name: name,
		Code: CodeFromLabel(name),
	})
}

// ResolveSubVendor resolves a sub-vendor label under a parent, creating it
// with the parent linkage when absent. Empty labels resolve to no sub-vendor.
func (s *Service) ResolveSubVendor(ctx context.Context, parentID uuid.UUID, label string) (*domain.Vendor, error) {
	name := strings.TrimSpace(label)
	if name == "" {
		return nil, nil
	}

	vendor, err := s.store.GetByName(ctx, name)
	if err == nil {
		return &vendor, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	vendor, err = s.store.Create(ctx, CreateVendorParams{
		Name:           name,
		Code:           CodeFromLabel(name),
		ParentVendorID: &parentID,
	})
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (domain.Vendor, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Vendor, error) {
	return s.store.List(ctx)
}

func (s *Service) Create(ctx context.Context, name string, parentID *uuid.UUID) (domain.Vendor, error) {
	return s.store.Create(ctx, CreateVendorParams{
		Name:           strings.TrimSpace(name),
		Code:           CodeFromLabel(name),
		ParentVendorID: parentID,
	})
}

// CodeFromLabel slugs a display label into a stable upper-snake code:
// "Acme Health  Partners" -> "ACME_HEALTH_PARTNERS".
func CodeFromLabel(label string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.TrimSpace(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	code := strings.TrimSuffix(b.String(), "_")
	if code == "" {
		code = UnknownVendorName
	}
	return code
}
