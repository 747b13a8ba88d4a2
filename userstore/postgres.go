package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tokenguard"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// findUserSQL aggregates role names so one round trip returns the record.
const findUserSQL = `
SELECT u.username,
       u.password,
       COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}')
FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id
LEFT JOIN roles r ON r.id = ur.role_id
WHERE u.username = $1
GROUP BY u.id, u.username, u.password`

// Querier is the part of *pgxpool.Pool the provider uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresConfig configures the connection pool.
type PostgresConfig struct {
	DSN               string        `mapstructure:"dsn"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// Connect opens a pool for cfg.
func Connect(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("userstore: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnIdleTime = 2 * time.Minute
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	poolCfg.HealthCheckPeriod = 30 * time.Second
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("userstore: connect: %w", err)
	}
	return pool, nil
}

// Postgres reads users from an existing schema. It never writes.
type Postgres struct {
	db Querier
}

func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) FindUserByUsername(ctx context.Context, username string) (tokenguard.UserRecord, error) {
	var rec tokenguard.UserRecord
	err := p.db.QueryRow(ctx, findUserSQL, username).Scan(&rec.Username, &rec.PasswordHash, &rec.Roles)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tokenguard.UserRecord{}, tokenguard.ErrUserNotFound
		}
		return tokenguard.UserRecord{}, fmt.Errorf("userstore: find user: %w", err)
	}
	return rec, nil
}

// Ping lets Engine.Ping include the database in readiness checks.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}
