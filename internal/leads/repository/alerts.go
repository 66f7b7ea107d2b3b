package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"kitportal_backend/internal/leads/domain"
)

var ErrAlertNotFound = errors.New("alert not found")

const alertColumns = `id, lead_id, related_lead_id, type, severity, message,
	is_acknowledged, acknowledged_by, acknowledged_at, created_at`

func scanAlert(row pgx.Row) (domain.Alert, error) {
	var a domain.Alert
	err := row.Scan(
		&a.ID, &a.LeadID, &a.RelatedLeadID, &a.Type, &a.Severity, &a.Message,
		&a.IsAcknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.CreatedAt,
	)
	return a, err
}

type CreateAlertParams struct {
	LeadID        uuid.UUID
	RelatedLeadID *uuid.UUID
	Type          domain.AlertType
	Severity      domain.AlertSeverity
	Message       string
}

// CreateAlertIfAbsent inserts an alert unless an unacknowledged alert with the
// same (lead, related lead, type) already exists. The partial unique index on
// lead_alerts makes the insert race-safe: concurrent checks collapse into one
// row, and the loser sees created=false. The lead's has_active_alerts flag is
// refreshed either way.
func (r *Repository) CreateAlertIfAbsent(ctx context.Context, params CreateAlertParams) (domain.Alert, bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lead_alerts (lead_id, related_lead_id, type, severity, message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lead_id, related_lead_id, type) WHERE NOT is_acknowledged DO NOTHING
		RETURNING `+alertColumns,
		params.LeadID, params.RelatedLeadID, params.Type, params.Severity, params.Message,
	)

	alert, err := scanAlert(row)
	created := true
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race or the alert already existed: return the live row.
		created = false
		alert, err = r.activeAlert(ctx, params)
	}
	if err != nil {
		return domain.Alert{}, false, err
	}

	if created {
		if err := r.refreshActiveAlertsFlag(ctx, params.LeadID); err != nil {
			return domain.Alert{}, false, err
		}
	}
	return alert, created, nil
}

func (r *Repository) activeAlert(ctx context.Context, params CreateAlertParams) (domain.Alert, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM lead_alerts
		WHERE lead_id = $1
		  AND related_lead_id IS NOT DISTINCT FROM $2
		  AND type = $3
		  AND NOT is_acknowledged
		LIMIT 1
	`, params.LeadID, params.RelatedLeadID, params.Type)
	alert, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Alert{}, ErrAlertNotFound
	}
	return alert, err
}

// AcknowledgeAlert marks an alert handled and recomputes the lead's
// has_active_alerts flag from what remains.
func (r *Repository) AcknowledgeAlert(ctx context.Context, alertID uuid.UUID, acknowledgedBy string) (domain.Alert, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE lead_alerts
		SET is_acknowledged = true, acknowledged_by = $2, acknowledged_at = now()
		WHERE id = $1 AND NOT is_acknowledged
		RETURNING `+alertColumns,
		alertID, acknowledgedBy,
	)
	alert, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Alert{}, ErrAlertNotFound
	}
	if err != nil {
		return domain.Alert{}, err
	}
	if err := r.refreshActiveAlertsFlag(ctx, alert.LeadID); err != nil {
		return domain.Alert{}, err
	}
	return alert, nil
}

// AcknowledgeAlertsForLead bulk-acknowledges every open alert of a type,
// used when a duplicate lead is resolved.
func (r *Repository) AcknowledgeAlertsForLead(ctx context.Context, leadID uuid.UUID, alertType domain.AlertType, acknowledgedBy string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lead_alerts
		SET is_acknowledged = true, acknowledged_by = $3, acknowledged_at = now()
		WHERE lead_id = $1 AND type = $2 AND NOT is_acknowledged
	`, leadID, alertType, acknowledgedBy)
	if err != nil {
		return 0, err
	}
	if err := r.refreshActiveAlertsFlag(ctx, leadID); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) ListAlertsByLead(ctx context.Context, leadID uuid.UUID, includeAcknowledged bool) ([]domain.Alert, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM lead_alerts
		WHERE lead_id = $1 AND ($2 OR NOT is_acknowledged)
		ORDER BY created_at DESC
	`, leadID, includeAcknowledged)
	if err != nil {
		return nil, err
	}
	return collectAlerts(rows)
}

func (r *Repository) ListOpenAlerts(ctx context.Context, alertType *domain.AlertType, limit, offset int) ([]domain.Alert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM lead_alerts
		WHERE NOT is_acknowledged AND ($1::text IS NULL OR type = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, alertType, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAlerts(rows)
}

func collectAlerts(rows pgx.Rows) ([]domain.Alert, error) {
	defer rows.Close()
	alerts := make([]domain.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// refreshActiveAlertsFlag keeps leads.has_active_alerts consistent with the
// open alerts for the lead.
func (r *Repository) refreshActiveAlertsFlag(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET has_active_alerts = EXISTS (
			SELECT 1 FROM lead_alerts WHERE lead_id = $1 AND NOT is_acknowledged
		), updated_at = now()
		WHERE id = $1
	`, leadID)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
