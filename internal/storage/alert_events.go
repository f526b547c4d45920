package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrAlertNotFound is returned when resolving an alert event that does not exist.
var ErrAlertNotFound = errors.New("alert event not found")

// AlertEvent is one recorded alert. Plant-wide critical-state transitions
// leave DeviceID empty; per-device pre-alerts and critical alerts carry it
// and stay active until resolved.
type AlertEvent struct {
	ID            int64      `json:"id"`
	EventID       string     `json:"event_id"`
	Type          string     `json:"type"`
	DeviceID      string     `json:"device_id,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
	CriticalState bool       `json:"critical_state"`
	Reasons       []string   `json:"reasons"`
	RiskScore     *float64   `json:"risk_score,omitempty"`
	OEE           int        `json:"oee"`
	StatusGeral   string     `json:"status_geral"`
	Published     bool       `json:"published"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy    string     `json:"resolved_by,omitempty"`
}

func (e *AlertEvent) Active() bool {
	return e.DeviceID != "" && e.ResolvedAt == nil
}

// AlertEventQuery selects history rows. An empty DeviceID matches every
// event, plant-wide ones included.
type AlertEventQuery struct {
	DeviceID string
	Limit    int
}

func (q AlertEventQuery) matches(e *AlertEvent) bool {
	return q.DeviceID == "" || e.DeviceID == q.DeviceID
}

// AlertEventStore keeps the alert history.
type AlertEventStore interface {
	SaveAlertEvent(ctx context.Context, event *AlertEvent) error
	// RecentAlertEvents returns up to q.Limit events, newest first.
	RecentAlertEvents(ctx context.Context, q AlertEventQuery) ([]*AlertEvent, error)
	// ActiveAlertEvents returns unresolved device alerts, newest first.
	ActiveAlertEvents(ctx context.Context, limit int) ([]*AlertEvent, error)
	// ResolveAlertEvent marks an event resolved. Resolving twice keeps the
	// first resolution.
	ResolveAlertEvent(ctx context.Context, id int64, resolvedBy string, at time.Time) (*AlertEvent, error)
}

const alertEventColumns = `id, event_id, type, device_id, timestamp, critical_state,
               reasons, risk_score, oee, status_geral, published, resolved_at, resolved_by`

func (c *PostgresClient) SaveAlertEvent(ctx context.Context, event *AlertEvent) error {
	reasonsJSON, err := json.Marshal(event.Reasons)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO alert_events (
            event_id, type, device_id, timestamp, critical_state,
            reasons, risk_score, oee, status_geral, published
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	err = c.pool.QueryRow(
		ctx,
		query,
		event.EventID,
		event.Type,
		event.DeviceID,
		event.Timestamp,
		event.CriticalState,
		reasonsJSON,
		event.RiskScore,
		event.OEE,
		event.StatusGeral,
		event.Published,
	).Scan(&event.ID)
	if err != nil {
		c.logger.Error("Failed to save alert event",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return unavailable("save alert event", err)
	}

	c.logger.Info("Alert event saved",
		zap.String("type", event.Type),
		zap.String("device_id", event.DeviceID),
		zap.Int64("id", event.ID),
	)
	return nil
}

func (c *PostgresClient) RecentAlertEvents(ctx context.Context, q AlertEventQuery) ([]*AlertEvent, error) {
	var conds []string
	var args []any
	if q.DeviceID != "" {
		args = append(args, q.DeviceID)
		conds = append(conds, fmt.Sprintf("device_id = $%d", len(args)))
	}
	return c.queryAlertEvents(ctx, "recent alert events", conds, args, q.Limit)
}

func (c *PostgresClient) ActiveAlertEvents(ctx context.Context, limit int) ([]*AlertEvent, error) {
	conds := []string{"device_id <> ''", "resolved_at IS NULL"}
	return c.queryAlertEvents(ctx, "active alert events", conds, nil, limit)
}

func (c *PostgresClient) queryAlertEvents(ctx context.Context, op string, conds []string, args []any, limit int) ([]*AlertEvent, error) {
	query := `SELECT ` + alertEventColumns + ` FROM alert_events`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY timestamp DESC, id DESC LIMIT $%d`, len(args))

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	events := make([]*AlertEvent, 0, limit)
	for rows.Next() {
		e, err := c.scanAlertEvent(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return events, nil
}

func (c *PostgresClient) ResolveAlertEvent(ctx context.Context, id int64, resolvedBy string, at time.Time) (*AlertEvent, error) {
	query := `
        UPDATE alert_events
        SET resolved_at = COALESCE(resolved_at, $2),
            resolved_by = COALESCE(resolved_by, $3)
        WHERE id = $1
        RETURNING ` + alertEventColumns

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	e, err := c.scanAlertEvent(c.pool.QueryRow(ctx, query, id, at, resolvedBy))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, unavailable("resolve alert event", err)
	}

	c.logger.Info("Alert event resolved",
		zap.Int64("id", e.ID),
		zap.String("device_id", e.DeviceID),
		zap.String("resolved_by", e.ResolvedBy),
	)
	return e, nil
}

func (c *PostgresClient) scanAlertEvent(row pgx.Row) (*AlertEvent, error) {
	var e AlertEvent
	var reasonsJSON []byte
	var resolvedBy *string

	if err := row.Scan(
		&e.ID,
		&e.EventID,
		&e.Type,
		&e.DeviceID,
		&e.Timestamp,
		&e.CriticalState,
		&reasonsJSON,
		&e.RiskScore,
		&e.OEE,
		&e.StatusGeral,
		&e.Published,
		&e.ResolvedAt,
		&resolvedBy,
	); err != nil {
		return nil, err
	}
	if resolvedBy != nil {
		e.ResolvedBy = *resolvedBy
	}

	if err := json.Unmarshal(reasonsJSON, &e.Reasons); err != nil {
		c.logger.Warn("Failed to decode alert reasons", zap.Int64("id", e.ID), zap.Error(err))
	}
	return &e, nil
}
