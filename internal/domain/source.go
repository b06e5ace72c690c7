package domain

import (
	"strings"
)

// SourceKind identifies where test data is read from.
type SourceKind string

const (
	SourceJSON     SourceKind = "json"     // canonical snapshot file
	SourceCSV      SourceKind = "csv"      // delimited text
	SourceExcel    SourceKind = "excel"    // spreadsheet workbook
	SourceDatabase SourceKind = "database" // relational (or document) database
)

// KnownSourceKinds lists every kind a reader exists for.
var KnownSourceKinds = []SourceKind{SourceJSON, SourceCSV, SourceExcel, SourceDatabase}

var sourceAliases = map[string]SourceKind{
	"json":        SourceJSON,
	"canonical":   SourceJSON,
	"csv":         SourceCSV,
	"delimited":   SourceCSV,
	"tsv":         SourceCSV,
	"excel":       SourceExcel,
	"xlsx":        SourceExcel,
	"spreadsheet": SourceExcel,
	"database":    SourceDatabase,
	"db":          SourceDatabase,
	"sqlite":      SourceDatabase,
	"relational":  SourceDatabase,
}

// ParseSourceKind normalizes a configured source name. Unknown names are
// returned lowercased with ok=false so callers can decide how to fall back.
func ParseSourceKind(s string) (SourceKind, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if k, ok := sourceAliases[name]; ok {
		return k, true
	}
	return SourceKind(name), false
}

// IsCanonical reports whether k is the canonical JSON kind.
func (k SourceKind) IsCanonical() bool { return k == SourceJSON }

// Known reports whether a reader exists for k.
func (k SourceKind) Known() bool {
	for _, known := range KnownSourceKinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k SourceKind) String() string { return string(k) }

// SourceDescriptor is the resolved, immutable description of every test-data
// source for one process. All four kinds are always populated so any reader
// can be built on demand; Kind selects the active one.
type SourceDescriptor struct {
	Kind    SourceKind `json:"kind"`
	Section string     `json:"section"` // top-level key / default sheet or table name

	JSONPath    string `json:"jsonPath"`
	CSVPath     string `json:"csvPath"`
	ExcelPath   string `json:"excelPath"`
	DBPath      string `json:"dbPath"`
	QueriesPath string `json:"queriesPath"`

	SheetName string `json:"sheetName,omitempty"` // empty → first sheet
	TableName string `json:"tableName"`

	CSVDelimiter       string `json:"csvDelimiter"`
	CSVHasHeader       bool   `json:"csvHasHeader"`
	ArrayDelimiter     string `json:"arrayDelimiter"`
	NumericAutoconvert *bool  `json:"numericAutoconvert,omitempty"` // nil → per-kind default

	Database DatabaseSettings `json:"database"`
}

// AutoconvertFor reports whether numeric-looking text is promoted for
// kind k: the explicit setting when there is one, else on for
// spreadsheets only.
func (d SourceDescriptor) AutoconvertFor(k SourceKind) bool {
	if d.NumericAutoconvert != nil {
		return *d.NumericAutoconvert
	}
	return k == SourceExcel
}

// WithKind returns a copy of d bound to another source kind.
func (d SourceDescriptor) WithKind(k SourceKind) SourceDescriptor {
	d.Kind = k
	return d
}

// Path returns the backing file of the active kind. For a remote database
// it returns a host:port/schema location string instead.
func (d SourceDescriptor) Path() string {
	return d.PathFor(d.Kind)
}

// PathFor returns the backing file (or location) for kind k.
func (d SourceDescriptor) PathFor(k SourceKind) string {
	switch k {
	case SourceJSON:
		return d.JSONPath
	case SourceCSV:
		return d.CSVPath
	case SourceExcel:
		return d.ExcelPath
	case SourceDatabase:
		if d.Database.RunMode == RunModeRemote {
			return d.Database.Location()
		}
		return d.DBPath
	default:
		return ""
	}
}

// PathEnvKey names the environment variable responsible for kind k's path.
func PathEnvKey(k SourceKind) string {
	switch k {
	case SourceJSON:
		return "TEST_DATA_JSON_PATH"
	case SourceCSV:
		return "TEST_DATA_CSV_PATH"
	case SourceExcel:
		return "TEST_DATA_EXCEL_PATH"
	case SourceDatabase:
		return "TEST_DATA_DB_PATH"
	default:
		return "TEST_DATA_SOURCE"
	}
}
