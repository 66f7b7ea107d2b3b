package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"kitportal_backend/internal/leads/domain"
)

const trackingColumns = `id, lead_id, direction, activity_type, code, description, location, occurred_at, created_at`

type CreateTrackingEventParams struct {
	LeadID       uuid.UUID
	Direction    domain.TrackingDirection
	ActivityType string
	Code         string
	Description  string
	Location     string
	OccurredAt   time.Time
}

// CreateTrackingEvent appends a carrier scan. The unique index on
// (lead_id, direction, code, occurred_at) absorbs webhook redeliveries: a
// replayed event inserts nothing and returns created=false.
func (r *Repository) CreateTrackingEvent(ctx context.Context, params CreateTrackingEventParams) (domain.TrackingEvent, bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tracking_events (lead_id, direction, activity_type, code, description, location, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (lead_id, direction, code, occurred_at) DO NOTHING
		RETURNING `+trackingColumns,
		params.LeadID, params.Direction, params.ActivityType, params.Code,
		params.Description, params.Location, params.OccurredAt,
	)

	var e domain.TrackingEvent
	err := row.Scan(&e.ID, &e.LeadID, &e.Direction, &e.ActivityType, &e.Code,
		&e.Description, &e.Location, &e.OccurredAt, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TrackingEvent{}, false, nil
	}
	if err != nil {
		return domain.TrackingEvent{}, false, err
	}
	return e, true, nil
}

func (r *Repository) ListTrackingEvents(ctx context.Context, leadID uuid.UUID) ([]domain.TrackingEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+trackingColumns+`
		FROM tracking_events
		WHERE lead_id = $1
		ORDER BY occurred_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.TrackingEvent, 0)
	for rows.Next() {
		var e domain.TrackingEvent
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Direction, &e.ActivityType, &e.Code,
			&e.Description, &e.Location, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
