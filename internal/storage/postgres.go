package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const readingColumns = `id, timestamp, device_id, temperature, vibration, pressure, status, risk_score`

type PostgresClient struct {
	pool         *pgxpool.Pool
	logger       *zap.Logger
	queryTimeout time.Duration
}

// PoolOptions tunes the pgx pool. Zero fields keep the defaults.
type PoolOptions struct {
	MaxConns     int32
	MinConns     int32
	QueryTimeout time.Duration
}

func NewPostgresClient(connectionURL string, opts PoolOptions, logger *zap.Logger) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connectionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 && opts.MinConns <= config.MaxConns {
		config.MinConns = opts.MinConns
	}
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute
	config.ConnConfig.ConnectTimeout = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	queryTimeout := opts.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}

	return &PostgresClient{
		pool:         pool,
		logger:       logger,
		queryTimeout: queryTimeout,
	}, nil
}

func (c *PostgresClient) Close() {
	c.pool.Close()
}

func (c *PostgresClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// EnsureSchema creates the readings and alert event tables when missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS sensor_readings (
			id          BIGSERIAL PRIMARY KEY,
			timestamp   TIMESTAMPTZ NOT NULL,
			device_id   TEXT NOT NULL,
			temperature DOUBLE PRECISION NOT NULL,
			vibration   DOUBLE PRECISION NOT NULL,
			pressure    DOUBLE PRECISION NOT NULL,
			status      TEXT NOT NULL,
			risk_score  DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_readings_timestamp ON sensor_readings (timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_readings_status ON sensor_readings (status)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_readings_device ON sensor_readings (device_id, id DESC)`,
		`CREATE TABLE IF NOT EXISTS alert_events (
			id             BIGSERIAL PRIMARY KEY,
			event_id       TEXT NOT NULL UNIQUE,
			type           TEXT NOT NULL,
			timestamp      TIMESTAMPTZ NOT NULL,
			critical_state BOOLEAN NOT NULL,
			reasons        JSONB NOT NULL DEFAULT '[]',
			oee            INTEGER NOT NULL,
			status_geral   TEXT NOT NULL,
			published      BOOLEAN NOT NULL
		)`,
		`ALTER TABLE alert_events ADD COLUMN IF NOT EXISTS device_id TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE alert_events ADD COLUMN IF NOT EXISTS risk_score DOUBLE PRECISION`,
		`ALTER TABLE alert_events ADD COLUMN IF NOT EXISTS resolved_at TIMESTAMPTZ`,
		`ALTER TABLE alert_events ADD COLUMN IF NOT EXISTS resolved_by TEXT`,
		`CREATE INDEX IF NOT EXISTS idx_alert_events_timestamp ON alert_events (timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_events_device ON alert_events (device_id, timestamp)`,
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, stmt := range ddl {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return unavailable("ensure schema", err)
		}
	}
	c.logger.Info("Reading schema ensured")
	return nil
}

// whereClause renders the query filters as SQL with positional arguments.
func whereClause(q ReadingQuery) (string, []any) {
	var conds []string
	var args []any

	if q.DeviceID != "" {
		args = append(args, q.DeviceID)
		conds = append(conds, fmt.Sprintf("device_id = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, q.Status.aliases())
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if q.Range != nil {
		args = append(args, q.Range.Start, q.Range.End)
		conds = append(conds, fmt.Sprintf("timestamp BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (c *PostgresClient) CountReadings(ctx context.Context, q ReadingQuery) (int64, error) {
	where, args := whereClause(q)
	query := `SELECT COUNT(*) FROM sensor_readings` + where

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	var count int64
	if err := c.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, unavailable("count readings", err)
	}
	return count, nil
}

func (c *PostgresClient) AverageVibration(ctx context.Context, q ReadingQuery) (float64, error) {
	where, args := whereClause(q)
	query := `SELECT AVG(vibration) FROM sensor_readings` + where

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	// AVG over zero rows is NULL
	var avg *float64
	if err := c.pool.QueryRow(ctx, query, args...).Scan(&avg); err != nil {
		return 0, unavailable("average vibration", err)
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (c *PostgresClient) LatestReadings(ctx context.Context, limit int) ([]*SensorReading, error) {
	query := `SELECT ` + readingColumns + `
		FROM sensor_readings
		ORDER BY id DESC
		LIMIT $1`

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, unavailable("latest readings", err)
	}
	return c.collect(rows, "latest readings")
}

func (c *PostgresClient) LatestDeviceReadings(ctx context.Context, deviceID string, limit int) ([]*SensorReading, error) {
	query := `SELECT ` + readingColumns + `
		FROM sensor_readings
		WHERE device_id = $1
		ORDER BY id DESC
		LIMIT $2`

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, unavailable("latest device readings", err)
	}
	return c.collect(rows, "latest device readings")
}

// InsertReading stores one reading and sets its ID.
func (c *PostgresClient) InsertReading(ctx context.Context, r *SensorReading) error {
	query := `
		INSERT INTO sensor_readings (timestamp, device_id, temperature, vibration, pressure, status, risk_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	err := c.pool.QueryRow(ctx, query,
		r.Timestamp,
		r.DeviceID,
		r.Temperature,
		r.Vibration,
		r.Pressure,
		string(r.Status),
		r.RiskScore,
	).Scan(&r.ID)
	if err != nil {
		return unavailable("insert reading", err)
	}
	return nil
}

func (c *PostgresClient) ListReadings(ctx context.Context, q ReadingQuery) ([]*SensorReading, error) {
	where, args := whereClause(q)
	query := `SELECT ` + readingColumns + ` FROM sensor_readings` + where + ` ORDER BY id ASC`

	ctx, cancel := context.WithTimeout(ctx, 2*c.queryTimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list readings", err)
	}
	return c.collect(rows, "list readings")
}

func (c *PostgresClient) collect(rows pgx.Rows, op string) ([]*SensorReading, error) {
	defer rows.Close()

	var readings []*SensorReading
	for rows.Next() {
		var r SensorReading
		var status string
		if err := rows.Scan(
			&r.ID,
			&r.Timestamp,
			&r.DeviceID,
			&r.Temperature,
			&r.Vibration,
			&r.Pressure,
			&status,
			&r.RiskScore,
		); err != nil {
			return nil, unavailable(op, fmt.Errorf("failed to scan reading row: %w", err))
		}

		parsed, ok := ParseStatus(status)
		if !ok {
			c.logger.Warn("Unknown reading status",
				zap.Int64("id", r.ID),
				zap.String("status", status),
			)
			parsed = Status(status)
		}
		r.Status = parsed
		readings = append(readings, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return readings, nil
}

func (c *PostgresClient) GetPoolStats() *pgxpool.Stat {
	return c.pool.Stat()
}
