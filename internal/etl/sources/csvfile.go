package sources

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"

	"fixtures/internal/domain"
	"fixtures/internal/etl"
)

// ── Delimited Text Source ──────────────────────────────────
// Reads records from a local CSV (or other single-character delimited) file.

func init() {
	Register(domain.SourceCSV, etl.SourceSpec{
		Type:  string(domain.SourceCSV),
		Label: "Delimited Text",
		ConfigFields: []etl.ConfigField{
			{Key: "TEST_DATA_CSV_PATH", Label: "File Path", Default: "data/test-data.csv"},
			{Key: "TEST_DATA_CSV_DELIMITER", Label: "Delimiter", Default: ",", Help: "Column delimiter, one character"},
			{Key: "TEST_DATA_CSV_HAS_HEADER", Label: "Has Header", Default: "true", Help: "Whether the first row contains column names"},
		},
	}, func(desc domain.SourceDescriptor, deps Deps) (Reader, error) {
		return NewCSVReader(desc, deps)
	})
}

// CSVReader reads a delimited text file.
type CSVReader struct {
	*cache
	fs        afero.Fs
	path      string
	comma     rune
	hasHeader bool
	coercer   *etl.Coercer
}

// NewCSVReader creates a delimited reader for desc.CSVPath.
func NewCSVReader(desc domain.SourceDescriptor, deps Deps) (*CSVReader, error) {
	deps = deps.WithDefaults()
	comma := ','
	if desc.CSVDelimiter != "" {
		if utf8.RuneCountInString(desc.CSVDelimiter) != 1 {
			return nil, etl.Misconfigured("TEST_DATA_CSV_DELIMITER",
				fmt.Sprintf("delimiter %q must be exactly one character", desc.CSVDelimiter), nil)
		}
		comma, _ = utf8.DecodeRuneInString(desc.CSVDelimiter)
	}
	r := &CSVReader{
		fs:        deps.Fs,
		path:      desc.CSVPath,
		comma:     comma,
		hasHeader: desc.CSVHasHeader,
		coercer:   etl.NewCoercer(desc.ArrayDelimiter, etl.WithNumericAutoconvert(desc.AutoconvertFor(domain.SourceCSV))),
	}
	r.cache = newCache(string(domain.SourceCSV), r.load)
	return r, nil
}

func (r *CSVReader) load(ctx context.Context) ([]etl.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := r.parseRaw()
	if err != nil {
		return nil, err
	}
	return r.coercer.CoerceAll(rows), nil
}

// parseRaw reads the whole file into untyped rows. Cells stay text.
func (r *CSVReader) parseRaw() ([]etl.RawRow, error) {
	f, err := r.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := r.newCSV(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, etl.ParseFailed(string(domain.SourceCSV), r.path, fmt.Errorf("parse csv: %w", err))
	}
	if len(records) == 0 {
		return []etl.RawRow{}, nil
	}

	var headers []string
	var body [][]string
	if r.hasHeader {
		headers = cleanHeaders(records[0])
		body = records[1:]
	} else {
		headers = positionalHeaders(len(records[0]))
		body = records
	}

	rows := make([]etl.RawRow, 0, len(body))
	for _, rec := range body {
		if blankLine(rec) {
			continue
		}
		row := make(etl.RawRow, len(headers))
		for j, h := range headers {
			if h == "" {
				continue
			}
			if j < len(rec) {
				row[h] = rec[j]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadWithMapping reads all records and renames columns per mapping
// (old name → new name). Unmapped columns keep their names.
func (r *CSVReader) ReadWithMapping(ctx context.Context, mapping map[string]string) ([]etl.Record, error) {
	all, err := r.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return etl.ApplyAll(all, &etl.RenameTransform{Mapping: mapping}), nil
}

// Headers returns the column names from the first line only. Without a
// header row they are positional (col_1, col_2, ...).
func (r *CSVReader) Headers(context.Context) ([]string, error) {
	f, err := r.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	first, err := r.newCSV(bufio.NewReader(f)).Read()
	if errors.Is(err, io.EOF) {
		return []string{}, nil
	}
	if err != nil {
		return nil, etl.ParseFailed(string(domain.SourceCSV), r.path, fmt.Errorf("parse header: %w", err))
	}
	if !r.hasHeader {
		return positionalHeaders(len(first)), nil
	}
	return cleanHeaders(first), nil
}

// IsAvailable reports whether the file exists.
func (r *CSVReader) IsAvailable(context.Context) bool {
	info, err := r.fs.Stat(r.path)
	return err == nil && !info.IsDir()
}

func (r *CSVReader) open() (afero.File, error) {
	f, err := r.fs.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("file not found: %w", err)
		}
		return nil, etl.Unavailable(string(domain.SourceCSV), r.path, "TEST_DATA_CSV_PATH", err)
	}
	return f, nil
}

func (r *CSVReader) newCSV(src io.Reader) *csv.Reader {
	reader := csv.NewReader(src)
	reader.Comma = r.comma
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader
}

func cleanHeaders(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		out[i] = h
	}
	return out
}

func positionalHeaders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("col_%d", i+1)
	}
	return out
}

func blankLine(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
