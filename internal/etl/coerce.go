package etl

import (
	"regexp"
	"strconv"
	"strings"
)

// ── Coercer ────────────────────────────────────────────────
// Turns a RawRow into a Record. Columns are resolved in a fixed order:
// array set, boolean set, numeric set, text set, then the heuristic for
// unknown columns. A column in more than one set is decided by the first
// set that lists it.

// DefaultArrayDelimiter separates list items inside a single cell.
const DefaultArrayDelimiter = "|"

var (
	arrayColumns   = []string{"tags", "steps", "expectedResults", "browsers", "dependencies", "labels"}
	booleanColumns = []string{"enabled", "skip", "headless", "critical", "flaky"}
	numericColumns = []string{"timeout", "retries", "priority", "order", "expectedStatus"}
	textColumns    = []string{"id", "name", "description", "url", "username", "password", "email", "module"}
)

var numericText = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)$`)

type columnClass int

const (
	classUnknown columnClass = iota
	classArray
	classBoolean
	classNumeric
	classText
)

// columnSets maps column names to their fixed class.
type columnSets map[string]columnClass

// newColumnSets registers sets in priority order; earlier sets win.
func newColumnSets(array, boolean, numeric, text []string) columnSets {
	sets := make(columnSets)
	add := func(names []string, c columnClass) {
		for _, n := range names {
			if _, taken := sets[n]; !taken {
				sets[n] = c
			}
		}
	}
	add(array, classArray)
	add(boolean, classBoolean)
	add(numeric, classNumeric)
	add(text, classText)
	return sets
}

var defaultColumnSets = newColumnSets(arrayColumns, booleanColumns, numericColumns, textColumns)

// Coercer converts untyped rows into canonically typed records.
// It holds no state besides its configuration and is safe for concurrent use.
type Coercer struct {
	delimiter          string
	numericAutoconvert bool
	sets               columnSets
}

// CoercerOption configures a Coercer.
type CoercerOption func(*Coercer)

// WithNumericAutoconvert promotes integer/decimal-looking text in unknown
// columns to numbers.
func WithNumericAutoconvert(on bool) CoercerOption {
	return func(c *Coercer) { c.numericAutoconvert = on }
}

// NewCoercer builds a Coercer splitting array columns on delimiter
// (DefaultArrayDelimiter when empty).
func NewCoercer(delimiter string, opts ...CoercerOption) *Coercer {
	if delimiter == "" {
		delimiter = DefaultArrayDelimiter
	}
	c := &Coercer{delimiter: delimiter, sets: defaultColumnSets}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Delimiter returns the array-column delimiter.
func (c *Coercer) Delimiter() string { return c.delimiter }

// NumericAutoconvert reports whether numeric promotion is on.
func (c *Coercer) NumericAutoconvert() bool { return c.numericAutoconvert }

// Coerce converts one row. The input is not modified.
func (c *Coercer) Coerce(row RawRow) Record {
	out := make(Record, len(row))
	for k, v := range row {
		out[k] = c.coerceField(k, v)
	}
	return out
}

// CoerceAll converts every row in order.
func (c *Coercer) CoerceAll(rows []RawRow) []Record {
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = c.Coerce(row)
	}
	return out
}

// Transform lets the Coercer sit in a transformer chain. It never drops.
func (c *Coercer) Transform(r Record) (Record, bool) {
	return c.Coerce(RawRow(r)), true
}

func (c *Coercer) coerceField(name string, v any) any {
	switch c.sets[name] {
	case classArray:
		return c.toList(v)
	case classBoolean:
		return toBool(v)
	case classNumeric:
		return toFloat(v)
	case classText:
		if v == nil {
			return ""
		}
		return strings.TrimSpace(textOf(v))
	default:
		return c.infer(v)
	}
}

// toList splits delimited text; values that already are lists are
// normalised element-wise so coercion stays idempotent.
func (c *Coercer) toList(v any) []string {
	if list, ok := asStringList(v); ok {
		return cleanList(list)
	}
	s := textOf(v)
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return cleanList(strings.Split(s, c.delimiter))
}

func cleanList(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func asStringList(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return l, true
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			out = append(out, textOf(item))
		}
		return out, true
	default:
		return nil, false
	}
}

// infer applies the heuristic for columns outside every fixed set.
// Only text is inspected; numbers, booleans and nil pass through.
func (c *Coercer) infer(v any) any {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return v
	}

	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true", "yes", "1":
		return true
	case "false", "no", "0":
		return false
	case "", "null":
		return nil
	}
	if c.numericAutoconvert && numericText.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
