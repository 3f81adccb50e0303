// Package repository persists the alert audit trail to PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"firewatch/internal/events"
	"firewatch/internal/models"

	"go.uber.org/zap"
)

const schema = `
	CREATE TABLE IF NOT EXISTS alert_events (
		alert_id        TEXT PRIMARY KEY,
		alert_type      TEXT NOT NULL,
		severity        TEXT NOT NULL,
		subject         TEXT NOT NULL,
		firefighter_id  TEXT,
		beacon_id       TEXT,
		position        JSONB NOT NULL,
		raised_at       TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL,
		resolved        BOOLEAN NOT NULL DEFAULT FALSE,
		resolution      TEXT,
		resolved_at     TIMESTAMPTZ,
		acknowledged_by TEXT,
		acknowledged_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS alert_events_firefighter_idx ON alert_events (firefighter_id, raised_at DESC);
`

// AlertEventsRepository archives every alert transition. It is an
// events.Sink: raised alerts are inserted, later transitions update the row.
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the table when it does not exist.
func (r *AlertEventsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create alert_events schema: %w", err)
	}
	return nil
}

func (r *AlertEventsRepository) Handle(ctx context.Context, e events.Event) error {
	switch e.Kind {
	case events.KindAlertRaised:
		return r.CreateAlertEvent(ctx, e.Alert)
	case events.KindAlertUpdated, events.KindAlertResolved:
		return r.UpdateAlertEvent(ctx, e.Alert)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *AlertEventsRepository) CreateAlertEvent(ctx context.Context, a *models.Alert) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("alert id is required")
	}
	position, err := json.Marshal(a.Position)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	firefighterID := ""
	if a.Firefighter != nil {
		firefighterID = a.Firefighter.ID
	}

	query := `
		INSERT INTO alert_events (
			alert_id,
			alert_type,
			severity,
			subject,
			firefighter_id,
			beacon_id,
			position,
			raised_at,
			updated_at,
			resolved
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (alert_id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx,
		query,
		a.ID,
		string(a.AlertType),
		string(a.Severity),
		a.Subject,
		nullString(firefighterID),
		nullString(a.BeaconID),
		string(position),
		a.Timestamp,
		a.Timestamp,
		a.Resolved,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert event: %w", err)
	}
	return nil
}

// UpdateAlertEvent records an escalation or resolution. A row missing from
// the archive is inserted first.
func (r *AlertEventsRepository) UpdateAlertEvent(ctx context.Context, a *models.Alert) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("alert id is required")
	}
	n, err := r.execUpdate(ctx, a)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	r.logger.Warn("Alert event missing from archive, inserting", zap.String("alert_id", a.ID))
	if err := r.CreateAlertEvent(ctx, a); err != nil {
		return err
	}
	_, err = r.execUpdate(ctx, a)
	return err
}

func (r *AlertEventsRepository) execUpdate(ctx context.Context, a *models.Alert) (int64, error) {
	updatedAt := a.Timestamp
	if a.ResolvedAt != nil {
		updatedAt = *a.ResolvedAt
	}

	query := `
		UPDATE alert_events
		SET severity = $1,
			updated_at = $2,
			resolved = $3,
			resolution = $4,
			resolved_at = $5,
			acknowledged_by = $6,
			acknowledged_at = $7
		WHERE alert_id = $8
	`
	res, err := r.db.ExecContext(ctx,
		query,
		string(a.Severity),
		updatedAt,
		a.Resolved,
		nullString(string(a.Resolution)),
		nullTime(a.ResolvedAt),
		nullString(a.AcknowledgedBy),
		nullTime(a.AcknowledgedAt),
		a.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update alert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// AlertEventFilters narrows ListAlertEvents. Zero values match everything.
type AlertEventFilters struct {
	FirefighterID string
	AlertType     string
	Limit         int
}

// ListAlertEvents returns archived alerts, newest first.
func (r *AlertEventsRepository) ListAlertEvents(ctx context.Context, filters AlertEventFilters) ([]models.Alert, error) {
	query := `
		SELECT
			alert_id,
			alert_type,
			severity,
			subject,
			firefighter_id,
			beacon_id,
			position,
			updated_at,
			resolved,
			resolution,
			resolved_at,
			acknowledged_by,
			acknowledged_at
		FROM alert_events
		WHERE ($1 = '' OR firefighter_id = $1)
		  AND ($2 = '' OR alert_type = $2)
		ORDER BY raised_at DESC, alert_id
		LIMIT $3
	`
	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, query, filters.FirefighterID, filters.AlertType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert events: %w", err)
	}
	defer rows.Close()

	out := []models.Alert{}
	for rows.Next() {
		var (
			a              models.Alert
			alertType      string
			severity       string
			firefighterID  sql.NullString
			beaconID       sql.NullString
			position       []byte
			resolution     sql.NullString
			resolvedAt     sql.NullTime
			acknowledgedBy sql.NullString
			acknowledgedAt sql.NullTime
		)
		if err := rows.Scan(
			&a.ID,
			&alertType,
			&severity,
			&a.Subject,
			&firefighterID,
			&beaconID,
			&position,
			&a.Timestamp,
			&a.Resolved,
			&resolution,
			&resolvedAt,
			&acknowledgedBy,
			&acknowledgedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		a.AlertType = models.AlertType(alertType)
		a.Severity = models.Severity(severity)
		if firefighterID.Valid {
			a.Firefighter = &models.Firefighter{ID: firefighterID.String}
		}
		a.BeaconID = beaconID.String
		if err := json.Unmarshal(position, &a.Position); err != nil {
			return nil, fmt.Errorf("failed to decode position of %s: %w", a.ID, err)
		}
		a.Resolution = models.Resolution(resolution.String)
		if resolvedAt.Valid {
			t := resolvedAt.Time
			a.ResolvedAt = &t
		}
		a.AcknowledgedBy = acknowledgedBy.String
		if acknowledgedAt.Valid {
			t := acknowledgedAt.Time
			a.AcknowledgedAt = &t
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert events: %w", err)
	}
	return out, nil
}

// AlertTypeSummary counts archived alerts of one type.
type AlertTypeSummary struct {
	AlertType models.AlertType
	Total     int
	Open      int
}

// SummarizeByType counts archived alerts per type, busiest first.
func (r *AlertEventsRepository) SummarizeByType(ctx context.Context) ([]AlertTypeSummary, error) {
	query := `
		SELECT alert_type,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE NOT resolved) AS open
		FROM alert_events
		GROUP BY alert_type
		ORDER BY total DESC, alert_type
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize alert events: %w", err)
	}
	defer rows.Close()

	var out []AlertTypeSummary
	for rows.Next() {
		var s AlertTypeSummary
		if err := rows.Scan(&s.AlertType, &s.Total, &s.Open); err != nil {
			return nil, fmt.Errorf("failed to scan alert summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
