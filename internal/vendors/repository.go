// Package vendors provides the referral-source bounded context: the vendor
// registry leads point at, including resolve-or-create for import rows that
// name vendors by free-text label.
package vendors

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kitportal_backend/internal/leads/domain"
)

var ErrNotFound = errors.New("vendor not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const vendorColumns = `id, name, code, parent_vendor_id, created_at`

func scanVendor(row pgx.Row) (domain.Vendor, error) {
	var v domain.Vendor
	err := row.Scan(&v.ID, &v.Name, &v.Code, &v.ParentVendorID, &v.CreatedAt)
	return v, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Vendor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id)
	v, err := scanVendor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Vendor{}, ErrNotFound
	}
	return v, err
}

// GetByName matches case-insensitively on the display name.
func (r *Repository) GetByName(ctx context.Context, name string) (domain.Vendor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+vendorColumns+` FROM vendors WHERE lower(name) = lower($1) LIMIT 1
	`, name)
	v, err := scanVendor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Vendor{}, ErrNotFound
	}
	return v, err
}

type CreateVendorParams struct {
	Name           string
	Code           string
	ParentVendorID *uuid.UUID
}

// Create inserts a vendor. A concurrent insert of the same code wins the
// race; the conflict path returns the existing row instead of an error.
func (r *Repository) Create(ctx context.Context, params CreateVendorParams) (domain.Vendor, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO vendors (name, code, parent_vendor_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO NOTHING
		RETURNING `+vendorColumns,
		params.Name, params.Code, params.ParentVendorID,
	)
	v, err := scanVendor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.getByCode(ctx, params.Code)
	}
	return v, err
}

func (r *Repository) getByCode(ctx context.Context, code string) (domain.Vendor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE code = $1`, code)
	v, err := scanVendor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Vendor{}, ErrNotFound
	}
	return v, err
}

func (r *Repository) List(ctx context.Context) ([]domain.Vendor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+vendorColumns+` FROM vendors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vendors := make([]domain.Vendor, 0)
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}
