package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteSink is the primary store: one table with a UNIQUE index over every
// column, written with INSERT OR IGNORE.
type SQLiteSink struct {
	db   *sql.DB
	path string
	// sqlite allows one writer; serialize here rather than rely on busy waits
	mu sync.Mutex
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sink directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sink: %w", err)
	}
	s := &SQLiteSink{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing sink schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) migrate() error {
	cols := make([]string, len(Columns))
	for i, c := range Columns {
		cols[i] = quoteIdent(c) + " TEXT NOT NULL DEFAULT ''"
	}
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS results (id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			strings.Join(cols, ", ") + ", created_at DATETIME DEFAULT CURRENT_TIMESTAMP)",
		"CREATE UNIQUE INDEX IF NOT EXISTS results_tuple ON results (" + columnList() + ")",
		"CREATE INDEX IF NOT EXISTS results_query ON results (" + quoteIdent("query") + ")",
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func quoteIdent(s string) string { return `"` + s + `"` }

func columnList() string {
	q := make([]string, len(Columns))
	for i, c := range Columns {
		q[i] = quoteIdent(c)
	}
	return strings.Join(q, ", ")
}

// Path returns the database file path.
func (s *SQLiteSink) Path() string { return s.path }

func (s *SQLiteSink) Append(ctx context.Context, row Row) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vals := row.Values()
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
	res, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO results ("+columnList()+") VALUES ("+placeholders+")", args...)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return n > 0, nil
}

// Rows returns stored rows in insertion order. An empty query returns all.
func (s *SQLiteSink) Rows(ctx context.Context, query string) ([]Row, error) {
	q := "SELECT " + columnList() + " FROM results"
	var args []any
	if query != "" {
		q += " WHERE " + quoteIdent("query") + " = ?"
		args = append(args, query)
	}
	q += " ORDER BY id"
	rs, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rs.Close()
	var out []Row
	for rs.Next() {
		vals := make([]string, len(Columns))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		out = append(out, rowFromValues(vals))
	}
	return out, rs.Err()
}

// Count returns the number of stored rows for query, or all rows when query
// is empty.
func (s *SQLiteSink) Count(ctx context.Context, query string) (int, error) {
	q := "SELECT COUNT(*) FROM results"
	var args []any
	if query != "" {
		q += " WHERE " + quoteIdent("query") + " = ?"
		args = append(args, query)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting results: %w", err)
	}
	return n, nil
}

func (s *SQLiteSink) Close() error { return s.db.Close() }
