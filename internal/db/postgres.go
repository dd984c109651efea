package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fenwick-labs/gatehouse/internal/models"
	"github.com/fenwick-labs/gatehouse/internal/utils"
)

// Postgres holds the pool backing the auth activity log. The log is an
// optional collaborator: handlers tolerate a nil *Postgres.
type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg utils.PostgresConfig) (*Postgres, error) {
	dsn := cfg.BuildDSN()
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.Pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.Pool.Ping(ctx)
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	stmt := strings.Join([]string{
		"CREATE TABLE IF NOT EXISTS auth_activity (",
		"    id TEXT PRIMARY KEY,",
		"    user_id TEXT NOT NULL DEFAULT '',",
		"    email TEXT NOT NULL,",
		"    event TEXT NOT NULL,",
		"    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()",
		")",
	}, "\n")

	if _, err := p.Pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}

	return nil
}

// Record appends one auth event. Callers treat failures as non-fatal and
// only log them; a broken activity log must never block a login.
func (p *Postgres) Record(ctx context.Context, activity models.Activity) error {
	if p == nil || p.Pool == nil {
		return nil
	}

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}

	_, err := p.Pool.Exec(ctx,
		"INSERT INTO auth_activity (id, user_id, email, event, created_at) VALUES ($1, $2, $3, $4, $5)",
		activity.ID, activity.UserID, activity.Email, activity.Event, activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record activity: %w", err)
	}
	return nil
}

// Recent returns the newest auth events, most recent first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]models.Activity, error) {
	if p == nil || p.Pool == nil {
		return nil, fmt.Errorf("postgres: pool not initialised")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.Pool.Query(ctx,
		"SELECT id, user_id, email, event, created_at FROM auth_activity ORDER BY created_at DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query activity: %w", err)
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Email, &a.Event, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan activity: %w", err)
		}
		activities = append(activities, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate activity: %w", err)
	}

	return activities, nil
}
