package tools

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// #region store

// TableStore runs read-only queries against a SQLite database of
// reference tables.
type TableStore struct {
	db *sql.DB
}

// NewTableStore opens the table database read-only.
func NewTableStore(dbPath string) (*TableStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open table db: %w", err)
	}
	return &TableStore{db: db}, nil
}

// NewTableStoreWithDB wraps an existing database handle. Used by tests
// and callers that manage the connection themselves.
func NewTableStoreWithDB(db *sql.DB) *TableStore {
	return &TableStore{db: db}
}

// Close releases the database handle.
func (s *TableStore) Close() error {
	return s.db.Close()
}

// #endregion store

// #region query

const maxTableRows = 10

// Query runs a SELECT statement and summarizes the result. A single
// numeric cell is surfaced as the outcome value for verification.
func (s *TableStore) Query(ctx context.Context, query string) (*Outcome, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, fmt.Errorf("table: empty query")
	}
	if !strings.HasPrefix(strings.ToLower(trimmed), "select") {
		return nil, fmt.Errorf("table: only SELECT queries allowed")
	}

	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("table query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("table columns: %w", err)
	}

	var data [][]string
	for rows.Next() && len(data) < maxTableRows {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("table scan: %w", err)
		}
		rec := make([]string, len(cols))
		for i, v := range raw {
			rec[i] = cellString(v)
		}
		data = append(data, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table rows: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("table: no rows for %q", trimmed)
	}

	out := &Outcome{
		Tool:     ToolTable,
		Evidence: renderRows(cols, data),
		Summary:  fmt.Sprintf("%d rows x %d cols", len(data), len(cols)),
	}
	if len(data) == 1 && len(cols) == 1 {
		if num, err := strconv.ParseFloat(data[0][0], 64); err == nil {
			out.Value = &num
		}
	}
	return out, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', 6, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func renderRows(cols []string, data [][]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(cols, " | "))
	for _, rec := range data {
		b.WriteString("\n")
		b.WriteString(strings.Join(rec, " | "))
	}
	return b.String()
}

// #endregion query
