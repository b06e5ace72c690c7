package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	driverName string
	db         *sql.DB
}

// newSQLConnector creates a generic SQL connector.
func newSQLConnector(driverName, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlConnector{driverName: driverName, db: db}, nil
}

func (c *sqlConnector) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *sqlConnector) Query(ctx context.Context, query string, args ...any) (*QueryPage, error) {
	rows, err := c.db.QueryContext(ctx, c.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	page := &QueryPage{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for j := range values {
			ptrs[j] = &values[j]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make([]any, len(cols))
		for j, v := range values {
			row[j] = formatValue(v)
		}
		page.Rows = append(page.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return page, nil
}

func (c *sqlConnector) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := c.db.ExecContext(ctx, c.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// formatValue converts a driver value into a plain scalar.
func formatValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case int:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}

func (c *sqlConnector) Tables(ctx context.Context) ([]string, error) {
	var query string
	switch c.driverName {
	case "sqlite":
		query = `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	case "postgres":
		query = `SELECT DISTINCT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() ORDER BY table_name`
	default:
		query = `SELECT DISTINCT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME`
	}

	page, err := c.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	names := make([]string, 0, len(page.Rows))
	for _, row := range page.Rows {
		if len(row) > 0 && row[0] != nil {
			names = append(names, fmt.Sprint(row[0]))
		}
	}
	return names, nil
}

func (c *sqlConnector) ListingQuery(table string) string {
	return "SELECT * FROM " + c.quote(table)
}

func (c *sqlConnector) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if !ValidIdentifier(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		if !ValidIdentifier(col) {
			return 0, fmt.Errorf("invalid column name %q", col)
		}
		quoted[i] = c.quote(col)
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	written := 0
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		batch := rows[start:end]

		tuples := make([]string, len(batch))
		args := make([]any, 0, len(batch)*len(columns))
		for i, row := range batch {
			marks := make([]string, len(columns))
			for j := range columns {
				marks[j] = "?"
				if j < len(row) {
					args = append(args, row[j])
				} else {
					args = append(args, nil)
				}
			}
			tuples[i] = "(" + strings.Join(marks, ", ") + ")"
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			c.quote(table), strings.Join(quoted, ", "), strings.Join(tuples, ", "))
		if _, err := tx.ExecContext(ctx, c.rebind(query), args...); err != nil {
			return written, fmt.Errorf("insert batch at row %d: %w", start, err)
		}
		written += len(batch)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}

// quote wraps an identifier in the engine's quote characters.
func (c *sqlConnector) quote(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if c.driverName == "mysql" {
			parts[i] = "`" + p + "`"
		} else {
			parts[i] = `"` + p + `"`
		}
	}
	return strings.Join(parts, ".")
}

// rebind rewrites ? placeholders as $n for Postgres. Question marks inside
// single-quoted literals are left alone.
func (c *sqlConnector) rebind(query string) string {
	if c.driverName != "postgres" || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			fmt.Fprintf(&b, "$%d", n)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
