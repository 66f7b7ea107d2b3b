// Package repository is the pgx-backed persistence layer for the leads
// bounded context: leads, alerts, and carrier tracking events.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kitportal_backend/internal/leads/domain"
)

var (
	ErrNotFound = errors.New("lead not found")

	// ErrVersionConflict means the lead changed between read and write.
	// Callers re-read, re-plan, and retry.
	ErrVersionConflict = errors.New("lead was modified concurrently")

	// ErrDuplicateTracking means another lead already owns the tracking number.
	ErrDuplicateTracking = errors.New("tracking number already assigned")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, mbi, first_name, last_name, date_of_birth, phone, status, test_type,
	vendor_id, sub_vendor_id, is_duplicate, has_active_alerts,
	advocate_reviewed_at, doctor_approval_date, consult_date,
	kit_shipped_date, kit_delivered_date, kit_returned_date,
	tracking_number, inbound_tracking_number, version, created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	err := row.Scan(
		&l.ID, &l.MBI, &l.FirstName, &l.LastName, &l.DateOfBirth, &l.Phone, &l.Status, &l.TestType,
		&l.VendorID, &l.SubVendorID, &l.IsDuplicate, &l.HasActiveAlerts,
		&l.AdvocateReviewedAt, &l.DoctorApprovalDate, &l.ConsultDate,
		&l.KitShippedDate, &l.KitDeliveredDate, &l.KitReturnedDate,
		&l.TrackingNumber, &l.InboundTrackingNumber, &l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

func collectLeads(rows pgx.Rows) ([]domain.Lead, error) {
	defer rows.Close()
	leads := make([]domain.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

type CreateLeadParams struct {
	MBI         string
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	Phone       string
	TestType    domain.TestType
	VendorID    uuid.UUID
	SubVendorID *uuid.UUID
	IsDuplicate bool
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (mbi, first_name, last_name, date_of_birth, phone, test_type, vendor_id, sub_vendor_id, is_duplicate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+leadColumns,
		params.MBI, params.FirstName, params.LastName, params.DateOfBirth, params.Phone,
		params.TestType, params.VendorID, params.SubVendorID, params.IsDuplicate,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// FindByMBI implements the matcher's highest-priority strategy.
func (r *Repository) FindByMBI(ctx context.Context, mbi string) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE mbi = $1
		ORDER BY created_at DESC
	`, mbi)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

func (r *Repository) FindByNameAndPhone(ctx context.Context, firstName, lastName, phone string) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE lower(first_name) = lower($1) AND lower(last_name) = lower($2) AND phone = $3
		ORDER BY created_at DESC
	`, firstName, lastName, phone)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

func (r *Repository) FindByPhone(ctx context.Context, phone string) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE phone = $1
		ORDER BY created_at DESC
	`, phone)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// FindByTrackingNumber matches either direction: carriers report outbound and
// inbound legs under different numbers.
func (r *Repository) FindByTrackingNumber(ctx context.Context, trackingNumber string) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tracking_number = $1 OR inbound_tracking_number = $1
		ORDER BY created_at DESC
	`, trackingNumber)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// FindPriorByMBI loads the policy-engine view of every lead sharing the MBI,
// excluding the candidate itself when it is already persisted.
func (r *Repository) FindPriorByMBI(ctx context.Context, mbi string, exclude uuid.UUID) ([]domain.PriorLead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, test_type, status, created_at, consult_date
		FROM leads
		WHERE mbi = $1 AND id != $2
		ORDER BY created_at DESC
	`, mbi, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	priors := make([]domain.PriorLead, 0)
	for rows.Next() {
		var p domain.PriorLead
		if err := rows.Scan(&p.ID, &p.TestType, &p.Status, &p.CreatedAt, &p.ConsultDate); err != nil {
			return nil, err
		}
		priors = append(priors, p)
	}
	return priors, rows.Err()
}

type ListLeadsParams struct {
	Status          *domain.Status
	TestType        *domain.TestType
	VendorID        *uuid.UUID
	IsDuplicate     *bool
	HasActiveAlerts *bool
	Search          string // matches MBI, name, phone, tracking
	Limit           int
	Offset          int
}

func (r *Repository) List(ctx context.Context, params ListLeadsParams) ([]domain.Lead, int, error) {
	where := []string{"true"}
	args := []any{}

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if params.Status != nil {
		add("status = $%d", *params.Status)
	}
	if params.TestType != nil {
		add("test_type = $%d", *params.TestType)
	}
	if params.VendorID != nil {
		add("(vendor_id = $%d OR sub_vendor_id = $%[1]d)", *params.VendorID)
	}
	if params.IsDuplicate != nil {
		add("is_duplicate = $%d", *params.IsDuplicate)
	}
	if params.HasActiveAlerts != nil {
		add("has_active_alerts = $%d", *params.HasActiveAlerts)
	}
	if params.Search != "" {
		add(`(mbi ILIKE '%%' || $%d || '%%'
			OR first_name || ' ' || last_name ILIKE '%%' || $%[1]d || '%%'
			OR phone LIKE '%%' || $%[1]d || '%%'
			OR tracking_number = $%[1]d
			OR inbound_tracking_number = $%[1]d)`, params.Search)
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM leads WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, params.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT `+leadColumns+`
		FROM leads WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	leads, err := collectLeads(rows)
	return leads, total, err
}

// ApplyStatusPlan moves a lead through every step of a lifecycle plan in one
// guarded UPDATE: the final status is written, each entered stage's timestamp
// is backfilled only if still unset, and the row version is bumped. A version
// mismatch returns ErrVersionConflict so the caller can re-read and re-plan.
func (r *Repository) ApplyStatusPlan(ctx context.Context, id uuid.UUID, version int, plan domain.Plan, now time.Time) (domain.Lead, error) {
	if plan.NoOp() {
		return r.GetByID(ctx, id)
	}

	set := []string{"status = $3", "updated_at = $4", "version = version + 1"}
	args := []any{id, version, plan.Final(), now}
	for _, step := range plan.Steps {
		col := domain.TimestampForStage(step)
		if col == "" {
			continue
		}
		args = append(args, now)
		set = append(set, fmt.Sprintf("%s = COALESCE(%s, $%d)", col, col, len(args)))
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE leads SET %s
		WHERE id = $1 AND version = $2
		RETURNING %s
	`, strings.Join(set, ", "), leadColumns), args...)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, r.classifyMiss(ctx, id)
	}
	return lead, err
}

// classifyMiss distinguishes a missing row from a stale version after a
// zero-row guarded UPDATE.
func (r *Repository) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

type UpdateLeadParams struct {
	FirstName   *string
	LastName    *string
	DateOfBirth *time.Time
	Phone       *string
	SubVendorID *uuid.UUID
}

// Update patches mutable demographic fields. Status, duplicate flags, and
// tracking numbers each have their own guarded write path.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (domain.Lead, error) {
	set := []string{"updated_at = now()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.FirstName != nil {
		add("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		add("last_name", *params.LastName)
	}
	if params.DateOfBirth != nil {
		add("date_of_birth", *params.DateOfBirth)
	}
	if params.Phone != nil {
		add("phone", *params.Phone)
	}
	if params.SubVendorID != nil {
		add("sub_vendor_id", *params.SubVendorID)
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE leads SET %s WHERE id = $1
		RETURNING %s
	`, strings.Join(set, ", "), leadColumns), args...)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// SetTrackingNumber records the carrier number for one direction. The unique
// index on each column surfaces cross-lead collisions as ErrDuplicateTracking.
func (r *Repository) SetTrackingNumber(ctx context.Context, id uuid.UUID, direction domain.TrackingDirection, trackingNumber string) error {
	column := "tracking_number"
	if direction == domain.DirectionInbound {
		column = "inbound_tracking_number"
	}
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE leads SET %s = $2, updated_at = now() WHERE id = $1
	`, column), id, trackingNumber)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTracking
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDuplicate flags a lead as a duplicate submission.
func (r *Repository) MarkDuplicate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET is_duplicate = true, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MBIsWithMultipleLeads feeds the bulk duplicate scan: every MBI carried by
// more than one lead.
func (r *Repository) MBIsWithMultipleLeads(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT mbi FROM leads
		GROUP BY mbi
		HAVING count(*) > 1
		ORDER BY mbi
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mbis := make([]string, 0)
	for rows.Next() {
		var mbi string
		if err := rows.Scan(&mbi); err != nil {
			return nil, err
		}
		mbis = append(mbis, mbi)
	}
	return mbis, rows.Err()
}
