package llmcall

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const createTable = `
CREATE TABLE IF NOT EXISTS llm_calls (
	id TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	operation TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	temperature REAL,
	attempts INTEGER NOT NULL DEFAULT 0,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	response TEXT NOT NULL,
	success INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_llm_calls_op_time ON llm_calls(operation, timestamp);
`

const selectColumns = `id, timestamp, latency_ms, request_id, operation, provider, model,
	temperature, attempts, input_tokens, output_tokens, response, success, error`

// Store persists LLM call records in SQLite.
type Store struct {
	db *sql.DB
}

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	Operation string
	Provider  string
	Model     string
	After     *time.Time
	Before    *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

// Open creates (or opens) the journal database at path and migrates it.
// Use ":memory:" for a throwaway journal.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	// One connection: an in-memory database is per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores calls in a single transaction.
func (s *Store) Insert(ctx context.Context, calls ...*Call) error {
	if len(calls) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO llm_calls (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare journal insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range calls {
		if c == nil {
			continue
		}
		var temp sql.NullFloat64
		if c.Temperature != nil {
			temp = sql.NullFloat64{Float64: *c.Temperature, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.Timestamp.UnixMilli(), c.LatencyMs, c.RequestID, c.Operation,
			c.Provider, c.Model, temp, c.Attempts, c.InputTokens, c.OutputTokens,
			c.Response, c.Success, c.Error,
		); err != nil {
			return fmt.Errorf("insert llm call %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal tx: %w", err)
	}
	return nil
}

// Get retrieves a single LLM call by ID. Returns nil, nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Call, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM llm_calls WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query llm call: %w", err)
	}
	calls, err := scanCalls(rows)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, nil
	}
	return &calls[0], nil
}

// List retrieves LLM calls matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter QueryFilter) ([]Call, error) {
	where, args := filter.conditions()

	query := `SELECT ` + selectColumns + ` FROM llm_calls`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY timestamp DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, max(0, filter.Offset))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query llm calls: %w", err)
	}
	return scanCalls(rows)
}

// CountByOperation returns call counts grouped by operation.
func (s *Store) CountByOperation(ctx context.Context, filter QueryFilter) (map[string]int, error) {
	where, args := filter.conditions()

	query := `SELECT operation, COUNT(*) FROM llm_calls`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` GROUP BY operation`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count llm calls: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var op string
		var n int
		if err := rows.Scan(&op, &n); err != nil {
			return nil, fmt.Errorf("scan llm call count: %w", err)
		}
		counts[op] = n
	}
	return counts, rows.Err()
}

func (f QueryFilter) conditions() ([]string, []any) {
	var where []string
	var args []any

	if f.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, f.Operation)
	}
	if f.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, f.Provider)
	}
	if f.Model != "" {
		where = append(where, "model = ?")
		args = append(args, f.Model)
	}
	if f.Success != nil {
		where = append(where, "success = ?")
		args = append(args, *f.Success)
	}
	if f.After != nil {
		where = append(where, "timestamp > ?")
		args = append(args, f.After.UnixMilli())
	}
	if f.Before != nil {
		where = append(where, "timestamp < ?")
		args = append(args, f.Before.UnixMilli())
	}
	return where, args
}

func scanCalls(rows *sql.Rows) ([]Call, error) {
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var (
			c    Call
			ts   int64
			temp sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &ts, &c.LatencyMs, &c.RequestID, &c.Operation,
			&c.Provider, &c.Model, &temp, &c.Attempts, &c.InputTokens, &c.OutputTokens,
			&c.Response, &c.Success, &c.Error); err != nil {
			return nil, fmt.Errorf("scan llm call: %w", err)
		}
		c.Timestamp = time.UnixMilli(ts).UTC()
		if temp.Valid {
			v := temp.Float64
			c.Temperature = &v
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
