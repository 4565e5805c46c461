package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/biddyweb/go-osrm/internal/model"

	_ "modernc.org/sqlite"
)

const createQueriesTable = `
CREATE TABLE IF NOT EXISTS queries (
    id          TEXT PRIMARY KEY,
    service     TEXT NOT NULL,
    status      TEXT NOT NULL,
    waypoints   INTEGER NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    reply_bytes INTEGER,
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL,
    finished_at DATETIME
)`

// ErrNotFound is returned when a query is not found.
var ErrNotFound = errors.New("query not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createQueriesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create queries table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateQuery inserts a new journal record.
func (s *SQLiteStore) CreateQuery(ctx context.Context, q *model.Query) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (
			id, service, status, waypoints, error,
			reply_bytes, duration_ms, created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Service, q.Status, q.Waypoints, q.Error,
		q.ReplyBytes, q.DurationMS, q.CreatedAt, q.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	return nil
}

// GetQuery retrieves a journal record by ID.
func (s *SQLiteStore) GetQuery(ctx context.Context, id string) (*model.Query, error) {
	q := &model.Query{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, service, status, waypoints, error,
			reply_bytes, duration_ms, created_at, finished_at
		FROM queries WHERE id = ?`, id,
	).Scan(
		&q.ID, &q.Service, &q.Status, &q.Waypoints, &q.Error,
		&q.ReplyBytes, &q.DurationMS, &q.CreatedAt, &q.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get query: %w", err)
	}
	return q, nil
}

// ListQueries returns a paginated list of journal records ordered by
// created_at DESC, along with the total record count.
func (s *SQLiteStore) ListQueries(ctx context.Context, limit, offset int) ([]*model.Query, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM queries").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count queries: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, service, status, waypoints, error,
			reply_bytes, duration_ms, created_at, finished_at
		FROM queries ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var queries []*model.Query
	for rows.Next() {
		q := &model.Query{}
		if err := rows.Scan(
			&q.ID, &q.Service, &q.Status, &q.Waypoints, &q.Error,
			&q.ReplyBytes, &q.DurationMS, &q.CreatedAt, &q.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan query: %w", err)
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate queries: %w", err)
	}

	return queries, total, nil
}

// FinishQuery moves a pending record to a terminal status and records the
// outcome fields (error, reply size, duration, finish time). The transition
// is checked inside a transaction so a record can only be finished once.
func (s *SQLiteStore) FinishQuery(ctx context.Context, q *model.Query) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM queries WHERE id = ?", q.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read query status: %w", err)
	}

	if !model.ValidTransition(current, q.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, q.Status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE queries SET status = ?, error = ?, reply_bytes = ?,
			duration_ms = ?, finished_at = ? WHERE id = ?`,
		q.Status, q.Error, q.ReplyBytes, q.DurationMS, q.FinishedAt, q.ID,
	); err != nil {
		return fmt.Errorf("finish query: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetQueryStats aggregates journal counts by status and service plus the
// average duration of finished queries.
func (s *SQLiteStore) GetQueryStats(ctx context.Context) (*QueryStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &QueryStats{
		CountByStatus:  make(map[string]int),
		CountByService: make(map[string]int),
	}

	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM queries").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count queries: %w", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT status, COUNT(*) FROM queries GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	rows, err = tx.QueryContext(ctx, "SELECT service, COUNT(*) FROM queries GROUP BY service")
	if err != nil {
		return nil, fmt.Errorf("count by service: %w", err)
	}
	for rows.Next() {
		var service string
		var n int
		if err := rows.Scan(&service, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan service count: %w", err)
		}
		stats.CountByService[service] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service counts: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(AVG(duration_ms), 0) FROM queries WHERE duration_ms IS NOT NULL",
	).Scan(&stats.AvgDurationMS); err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}

	return stats, nil
}
