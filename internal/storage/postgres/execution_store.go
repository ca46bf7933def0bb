// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/subsidy-portal/internal/workflow"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "workflow_executions"

// Config controls the Postgres connection pool used for executions.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// ExecutionStore persists workflow executions as JSONB documents. Status,
// workflow id and start time are duplicated into columns for filtering.
type ExecutionStore struct {
	pool  Pool
	table string
}

// NewExecutionStore connects to Postgres using cfg.
func NewExecutionStore(ctx context.Context, cfg Config) (*ExecutionStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewExecutionStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewExecutionStoreWithPool constructs a store from an existing pool.
func NewExecutionStoreWithPool(pool Pool, table string) (*ExecutionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ExecutionStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ExecutionStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *ExecutionStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// EnsureSchema creates the executions table when it is missing.
func (s *ExecutionStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id          TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_workflow_idx ON %[1]s (workflow_id, started_at)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create executions table: %w", err)
	}
	return nil
}

// CreateExecution inserts a new execution row.
func (s *ExecutionStore) CreateExecution(ctx context.Context, e workflow.Execution) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, workflow_id, status, started_at, payload)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`, s.table)
	tag, err := s.pool.Exec(ctx, query, e.ID, e.WorkflowID, string(e.Status), e.StartTime, payload)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workflow.ErrExists
	}
	return nil
}

// GetExecution loads one execution.
func (s *ExecutionStore) GetExecution(ctx context.Context, id string) (workflow.Execution, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE id = $1`, s.table)
	return scanExecution(s.pool.QueryRow(ctx, query, id))
}

// ListExecutions returns executions matching f ordered by start time.
func (s *ExecutionStore) ListExecutions(ctx context.Context, f workflow.ExecutionFilter) ([]workflow.Execution, error) {
	query := fmt.Sprintf(`
SELECT payload FROM %s
WHERE ($1 = '' OR id = $1) AND ($2 = '' OR workflow_id = $2)
ORDER BY started_at, id`, s.table)
	rows, err := s.pool.Query(ctx, query, f.ID, f.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	out := []workflow.Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	return out, nil
}

// UpdateExecution locks the row, applies fn and writes the result back in one
// transaction.
func (s *ExecutionStore) UpdateExecution(ctx context.Context, id string, fn workflow.UpdateFunc) (workflow.Execution, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return workflow.Execution{}, fmt.Errorf("begin update: %w", err)
	}
	cur, err := scanExecution(tx.QueryRow(ctx, fmt.Sprintf(`SELECT payload FROM %s WHERE id = $1 FOR UPDATE`, s.table), id))
	if err != nil {
		_ = tx.Rollback(ctx)
		return workflow.Execution{}, err
	}
	next, err := workflow.ApplyUpdate(cur, fn)
	if err != nil {
		_ = tx.Rollback(ctx)
		return cur, err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		_ = tx.Rollback(ctx)
		return cur, fmt.Errorf("marshal execution: %w", err)
	}
	query := fmt.Sprintf(`UPDATE %s SET status = $2, payload = $3 WHERE id = $1`, s.table)
	if _, err := tx.Exec(ctx, query, id, string(next.Status), payload); err != nil {
		_ = tx.Rollback(ctx)
		return cur, fmt.Errorf("update execution: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return cur, fmt.Errorf("commit update: %w", err)
	}
	return next, nil
}

// DeleteExecution removes an execution row.
func (s *ExecutionStore) DeleteExecution(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), id)
	if err != nil {
		return fmt.Errorf("delete execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workflow.ErrNotFound
	}
	return nil
}

func scanExecution(row pgx.Row) (workflow.Execution, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return workflow.Execution{}, workflow.ErrNotFound
		}
		return workflow.Execution{}, fmt.Errorf("scan execution: %w", err)
	}
	var e workflow.Execution
	if err := json.Unmarshal(payload, &e); err != nil {
		return workflow.Execution{}, fmt.Errorf("decode execution: %w", err)
	}
	return e, nil
}
