package dbclient

import (
	"context"
	"fmt"
	"regexp"

	"fixtures/internal/domain"
)

// QueryPage holds every row a query returned.
type QueryPage struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Maps returns the rows keyed by column name.
func (p *QueryPage) Maps() []map[string]any {
	out := make([]map[string]any, 0, len(p.Rows))
	for _, row := range p.Rows {
		m := make(map[string]any, len(p.Columns))
		for i, col := range p.Columns {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// Connector abstracts interaction with the backing database.
type Connector interface {
	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Query runs a read and returns all rows.
	Query(ctx context.Context, query string, args ...any) (*QueryPage, error)

	// Exec runs a write and returns the affected row count.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Tables lists the distinct table (or collection) names.
	Tables(ctx context.Context) ([]string, error)

	// InsertRows writes rows in batches, inside one transaction where the
	// engine supports it. Returns the number of rows written.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (int, error)

	// ListingQuery is the query that returns every row of table.
	ListingQuery(table string) string

	// Close closes the connection pool.
	Close() error
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdentifier reports whether name is safe to splice into SQL as a
// table or column name.
func ValidIdentifier(name string) bool {
	return identifier.MatchString(name)
}

// NewConnector creates a Connector for the given settings. localPath is the
// embedded database file used in local run mode.
func NewConnector(s domain.DatabaseSettings, localPath string) (Connector, error) {
	if s.RunMode != domain.RunModeRemote {
		return newSQLiteConnector(localPath)
	}
	switch s.Driver {
	case domain.DatabaseDriverMySQL:
		return newSQLConnector("mysql", buildMySQLDSN(s))
	case domain.DatabaseDriverPostgres:
		return newSQLConnector("postgres", buildPostgresDSN(s))
	case domain.DatabaseDriverMongoDB:
		return newMongoConnector(s)
	case domain.DatabaseDriverSQLite:
		return newSQLiteConnector(s.Host)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", s.Driver)
	}
}
