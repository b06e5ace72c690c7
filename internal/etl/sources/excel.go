package sources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"

	"fixtures/internal/domain"
	"fixtures/internal/etl"
)

// ── Spreadsheet Source ─────────────────────────────────────
// Reads records from one sheet of an .xlsx workbook. The workbook is opened
// on first use and kept until Close.

func init() {
	Register(domain.SourceExcel, etl.SourceSpec{
		Type:  string(domain.SourceExcel),
		Label: "Spreadsheet",
		ConfigFields: []etl.ConfigField{
			{Key: "TEST_DATA_EXCEL_PATH", Label: "File Path", Default: "data/test-data.xlsx"},
			{Key: "TEST_DATA_SHEET", Label: "Sheet", Help: "Sheet to read; first sheet when empty"},
		},
	}, func(desc domain.SourceDescriptor, deps Deps) (Reader, error) {
		return NewExcelReader(desc, deps), nil
	})
}

// ExcelReader reads a spreadsheet workbook. Numeric-looking text in
// unknown columns is always promoted to numbers for this kind.
type ExcelReader struct {
	*cache
	fs      afero.Fs
	path    string
	sheet   string
	coercer *etl.Coercer
	book    *excelize.File
}

// NewExcelReader creates a spreadsheet reader for desc.ExcelPath.
func NewExcelReader(desc domain.SourceDescriptor, deps Deps) *ExcelReader {
	deps = deps.WithDefaults()
	r := &ExcelReader{
		fs:      deps.Fs,
		path:    desc.ExcelPath,
		sheet:   desc.SheetName,
		coercer: etl.NewCoercer(desc.ArrayDelimiter, etl.WithNumericAutoconvert(desc.AutoconvertFor(domain.SourceExcel))),
	}
	r.cache = newCache(string(domain.SourceExcel), r.load)
	return r
}

func (r *ExcelReader) load(ctx context.Context) ([]etl.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := r.ReadSheet(ctx, r.sheet)
	if err != nil {
		return nil, err
	}
	return r.coercer.CoerceAll(rows), nil
}

// workbook returns the cached handle, opening the file on first call.
func (r *ExcelReader) workbook() (*excelize.File, error) {
	if r.book != nil {
		return r.book, nil
	}
	f, err := r.fs.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("file not found: %w", err)
		}
		return nil, etl.Unavailable(string(domain.SourceExcel), r.path, "TEST_DATA_EXCEL_PATH", err)
	}
	defer f.Close()

	book, err := excelize.OpenReader(f)
	if err != nil {
		return nil, etl.ParseFailed(string(domain.SourceExcel), r.path, fmt.Errorf("open workbook: %w", err))
	}
	r.book = book
	return book, nil
}

// SheetNames lists the workbook's sheets in order.
func (r *ExcelReader) SheetNames(context.Context) ([]string, error) {
	book, err := r.workbook()
	if err != nil {
		return nil, err
	}
	return book.GetSheetList(), nil
}

// resolveSheet maps an empty name to the first sheet and rejects names the
// workbook does not have.
func (r *ExcelReader) resolveSheet(book *excelize.File, name string) (string, error) {
	sheets := book.GetSheetList()
	if name == "" {
		if len(sheets) == 0 {
			return "", etl.SchemaMismatch(string(domain.SourceExcel), r.path, "workbook has no sheets")
		}
		return sheets[0], nil
	}
	if !slices.Contains(sheets, name) {
		return "", etl.SchemaMismatch(string(domain.SourceExcel), r.path,
			fmt.Sprintf("sheet %q not found (have %s)", name, strings.Join(sheets, ", ")))
	}
	return name, nil
}

// ReadSheet reads a whole sheet as rows keyed by the first row. An empty
// name means the first sheet. The result is not coerced and not cached.
func (r *ExcelReader) ReadSheet(_ context.Context, name string) ([]etl.RawRow, error) {
	book, err := r.workbook()
	if err != nil {
		return nil, err
	}
	sheet, err := r.resolveSheet(book, name)
	if err != nil {
		return nil, err
	}
	grid, err := book.GetRows(sheet)
	if err != nil {
		return nil, etl.ParseFailed(string(domain.SourceExcel), r.path, fmt.Errorf("read sheet %q: %w", sheet, err))
	}
	return gridToRows(grid), nil
}

// ReadRange reads a rectangular range such as "A1:C10". The first row of
// the range supplies the column names.
func (r *ExcelReader) ReadRange(_ context.Context, name, cellRange string) ([]etl.RawRow, error) {
	book, err := r.workbook()
	if err != nil {
		return nil, err
	}
	sheet, err := r.resolveSheet(book, name)
	if err != nil {
		return nil, err
	}

	from, to, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(cellRange)), ":")
	if !ok {
		to = from
	}
	c1, r1, err := excelize.CellNameToCoordinates(from)
	if err != nil {
		return nil, fmt.Errorf("range %q: %w", cellRange, err)
	}
	c2, r2, err := excelize.CellNameToCoordinates(to)
	if err != nil {
		return nil, fmt.Errorf("range %q: %w", cellRange, err)
	}
	c1, c2 = min(c1, c2), max(c1, c2)
	r1, r2 = min(r1, r2), max(r1, r2)

	grid := make([][]string, 0, r2-r1+1)
	for row := r1; row <= r2; row++ {
		line := make([]string, 0, c2-c1+1)
		for col := c1; col <= c2; col++ {
			cell, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return nil, fmt.Errorf("range %q: %w", cellRange, err)
			}
			v, err := book.GetCellValue(sheet, cell)
			if err != nil {
				return nil, etl.ParseFailed(string(domain.SourceExcel), r.path, fmt.Errorf("read %s!%s: %w", sheet, cell, err))
			}
			line = append(line, v)
		}
		grid = append(grid, line)
	}
	return gridToRows(grid), nil
}

// Headers returns the first row of a sheet (the first sheet when name is
// empty).
func (r *ExcelReader) Headers(_ context.Context, name string) ([]string, error) {
	book, err := r.workbook()
	if err != nil {
		return nil, err
	}
	sheet, err := r.resolveSheet(book, name)
	if err != nil {
		return nil, err
	}
	rows, err := book.Rows(sheet)
	if err != nil {
		return nil, etl.ParseFailed(string(domain.SourceExcel), r.path, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return []string{}, rows.Error()
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, etl.ParseFailed(string(domain.SourceExcel), r.path, err)
	}
	return trimAll(cols), nil
}

// IsAvailable reports whether the workbook exists and opens.
func (r *ExcelReader) IsAvailable(context.Context) bool {
	_, err := r.workbook()
	return err == nil
}

// ClearCache drops cached records and the workbook handle.
func (r *ExcelReader) ClearCache() {
	r.cache.ClearCache()
	if r.book != nil {
		_ = r.book.Close()
		r.book = nil
	}
}

// Close releases the workbook handle.
func (r *ExcelReader) Close() error {
	if r.book == nil {
		return nil
	}
	err := r.book.Close()
	r.book = nil
	return err
}

// gridToRows keys every row after the first by the first row's values.
// Rows with no content are skipped.
func gridToRows(grid [][]string) []etl.RawRow {
	if len(grid) == 0 {
		return []etl.RawRow{}
	}
	headers := trimAll(grid[0])
	rows := make([]etl.RawRow, 0, len(grid)-1)
	for _, line := range grid[1:] {
		if blankLine(line) {
			continue
		}
		row := make(etl.RawRow, len(headers))
		for j, h := range headers {
			if h == "" {
				continue
			}
			if j < len(line) {
				row[h] = line[j]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
