package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"fixtures/internal/dbclient"
	"fixtures/internal/domain"
	"fixtures/internal/etl"
)

// ── Database Source ────────────────────────────────────────
// Reads records from a table (or collection) through the shared
// dbclient.Manager pool. The listing query comes from the queries file
// when it defines one for the section.

// InsertBatchSize is the number of rows per INSERT statement.
const InsertBatchSize = 100

func init() {
	Register(domain.SourceDatabase, etl.SourceSpec{
		Type:  string(domain.SourceDatabase),
		Label: "Database",
		ConfigFields: []etl.ConfigField{
			{Key: "DB_RUN_MODE", Label: "Run Mode", Default: "local", Help: "local reads TEST_DATA_DB_PATH, remote connects to DB_HOST"},
			{Key: "TEST_DATA_DB_PATH", Label: "Local File", Default: "data/test-data.db"},
			{Key: "TEST_DATA_TABLE", Label: "Table", Help: "Defaults to the section name"},
			{Key: "TEST_DATA_QUERIES_PATH", Label: "Queries File", Default: "data/queries.json"},
		},
	}, func(desc domain.SourceDescriptor, deps Deps) (Reader, error) {
		return NewDatabaseReader(desc, deps)
	})
}

// queryDefinitions is the queries file layout:
//
//	{"testCases": {"queries": {"listing": "SELECT ..."}}}
type queryDefinitions map[string]struct {
	Queries map[string]string `json:"queries" yaml:"queries"`
}

// DatabaseReader reads the relational source.
type DatabaseReader struct {
	*cache
	fs          afero.Fs
	db          *dbclient.Manager
	section     string
	table       string
	queriesPath string
	delimiter   string
	coercer     *etl.Coercer
	log         logrus.FieldLogger
}

// NewDatabaseReader creates a relational reader. When deps.DB is nil a
// manager is built from desc.
func NewDatabaseReader(desc domain.SourceDescriptor, deps Deps) (*DatabaseReader, error) {
	deps = deps.WithDefaults()
	table := desc.TableName
	if table == "" {
		table = desc.Section
	}
	if !dbclient.ValidIdentifier(table) {
		return nil, etl.Misconfigured("TEST_DATA_TABLE", fmt.Sprintf("invalid table name %q", table), nil)
	}
	db := deps.DB
	if db == nil {
		db = dbclient.NewManager(desc, deps.Log)
	}
	r := &DatabaseReader{
		fs:          deps.Fs,
		db:          db,
		section:     desc.Section,
		table:       table,
		queriesPath: desc.QueriesPath,
		delimiter:   desc.ArrayDelimiter,
		coercer:     etl.NewCoercer(desc.ArrayDelimiter, etl.WithNumericAutoconvert(desc.AutoconvertFor(domain.SourceDatabase))),
		log:         deps.Log.WithField("component", "database-reader"),
	}
	if r.delimiter == "" {
		r.delimiter = etl.DefaultArrayDelimiter
	}
	r.cache = newCache(string(domain.SourceDatabase), r.load)
	return r, nil
}

func (r *DatabaseReader) load(ctx context.Context) ([]etl.Record, error) {
	conn, err := r.db.Connector(ctx)
	if err != nil {
		return nil, err
	}

	query, custom, err := r.listingQuery(conn)
	if err != nil {
		return nil, err
	}
	if !custom {
		exists, err := r.tableExists(ctx, conn, r.table)
		if err != nil {
			return nil, etl.ParseFailed(string(domain.SourceDatabase), r.db.Location(), err)
		}
		if !exists {
			return nil, etl.SchemaMismatch(string(domain.SourceDatabase), r.db.Location(),
				fmt.Sprintf("table %q not found", r.table))
		}
	}

	page, err := conn.Query(ctx, query)
	if err != nil {
		return nil, etl.ParseFailed(string(domain.SourceDatabase), r.db.Location(), err)
	}
	maps := page.Maps()
	rows := make([]etl.RawRow, len(maps))
	for i, m := range maps {
		rows[i] = etl.RawRow(m)
	}
	return r.coercer.CoerceAll(rows), nil
}

// listingQuery returns the section's listing query from the queries file,
// or the default full-table query. custom is true for the former.
func (r *DatabaseReader) listingQuery(conn dbclient.Connector) (query string, custom bool, err error) {
	defs, err := r.loadQueries()
	if err != nil {
		return "", false, err
	}
	if q := strings.TrimSpace(defs[r.section].Queries["listing"]); q != "" {
		return q, true, nil
	}
	return conn.ListingQuery(r.table), false, nil
}

// loadQueries reads the queries file. A missing file means no overrides.
func (r *DatabaseReader) loadQueries() (queryDefinitions, error) {
	if r.queriesPath == "" {
		return nil, nil
	}
	data, err := afero.ReadFile(r.fs, r.queriesPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, etl.Unavailable(string(domain.SourceDatabase), r.queriesPath, "TEST_DATA_QUERIES_PATH", err)
	}

	var defs queryDefinitions
	switch strings.ToLower(filepath.Ext(r.queriesPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &defs)
	default:
		err = json.Unmarshal(data, &defs)
	}
	if err != nil {
		return nil, etl.ParseFailed(string(domain.SourceDatabase), r.queriesPath, fmt.Errorf("queries file: %w", err))
	}
	return defs, nil
}

// Query runs an arbitrary read and returns coerced records. It bypasses
// the ReadAll cache.
func (r *DatabaseReader) Query(ctx context.Context, query string, args ...any) ([]etl.Record, error) {
	conn, err := r.db.Connector(ctx)
	if err != nil {
		return nil, err
	}
	page, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	out := make([]etl.Record, 0, len(page.Rows))
	for _, m := range page.Maps() {
		out = append(out, r.coercer.Coerce(etl.RawRow(m)))
	}
	return out, nil
}

// InsertData writes records into table in batches of InsertBatchSize,
// inside one transaction on SQL engines. List values are joined with the
// array delimiter. The ReadAll cache is cleared afterwards.
func (r *DatabaseReader) InsertData(ctx context.Context, table string, records []etl.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if !dbclient.ValidIdentifier(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	conn, err := r.db.Connector(ctx)
	if err != nil {
		return 0, err
	}

	columns := etl.Keys(records)
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = r.cellValue(rec[col])
		}
		rows[i] = row
	}

	n, err := conn.InsertRows(ctx, table, columns, rows, InsertBatchSize)
	if err != nil {
		return n, fmt.Errorf("insert into %s: %w", table, err)
	}
	r.log.WithFields(logrus.Fields{"table": table, "rows": n}).Debug("inserted test data")
	r.ClearCache()
	return n, nil
}

func (r *DatabaseReader) cellValue(v any) any {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, r.delimiter)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, r.delimiter)
	default:
		return v
	}
}

// TableExists reports whether name is a table (or collection) in the
// database.
func (r *DatabaseReader) TableExists(ctx context.Context, name string) (bool, error) {
	conn, err := r.db.Connector(ctx)
	if err != nil {
		return false, err
	}
	return r.tableExists(ctx, conn, name)
}

func (r *DatabaseReader) tableExists(ctx context.Context, conn dbclient.Connector, name string) (bool, error) {
	tables, err := conn.Tables(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range tables {
		if strings.EqualFold(t, name) {
			return true, nil
		}
	}
	return false, nil
}

// IsAvailable tries a live connection.
func (r *DatabaseReader) IsAvailable(ctx context.Context) bool {
	conn, err := r.db.Connector(ctx)
	if err != nil {
		r.log.WithError(err).Debug("database not available")
		return false
	}
	if err := conn.Ping(ctx); err != nil {
		r.log.WithError(err).Debug("database ping failed")
		return false
	}
	return true
}

// Close closes the connection pool. A later read reopens it.
func (r *DatabaseReader) Close() error {
	return r.db.Close()
}
