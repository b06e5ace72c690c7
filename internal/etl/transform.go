package etl

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ── Transformer ────────────────────────────────────────────
// Transformers modify records between a source and its consumer.
// They are composable: each takes a record, returns a (possibly modified)
// record and a boolean indicating whether to keep it. The Coercer is the
// first link of every reader's chain.

// Transformer processes a single record.
// Returns (transformed record, keep). If keep is false, the record is dropped.
type Transformer interface {
	Transform(Record) (Record, bool)
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(Record) (Record, bool)

func (f TransformerFunc) Transform(r Record) (Record, bool) { return f(r) }

// ── Built-in Transforms ────────────────────────────────────

// MatchTransform keeps records whose fields equal every entry of Filter.
// Values are compared structurally first, then by their text form so that
// a filter of "1" still matches a coerced id of "1" held as a number.
type MatchTransform struct {
	Filter map[string]any
}

func (t *MatchTransform) Transform(r Record) (Record, bool) {
	for field, want := range t.Filter {
		got, ok := r[field]
		if !ok {
			return r, false
		}
		if !valuesEqual(got, want) {
			return r, false
		}
	}
	return r, true
}

func valuesEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if al, ok := asStringList(a); ok {
		bl, ok := asStringList(b)
		return ok && reflect.DeepEqual(al, bl)
	}
	return textOf(a) == textOf(b)
}

// RenameTransform renames fields in a record.
type RenameTransform struct {
	Mapping map[string]string // oldName → newName
}

func (t *RenameTransform) Transform(r Record) (Record, bool) {
	out := make(Record, len(r))
	for k, v := range r {
		if renamed, ok := t.Mapping[k]; ok && renamed != "" {
			k = renamed
		}
		out[k] = v
	}
	return out, true
}

// SelectTransform keeps only the specified fields.
type SelectTransform struct {
	Fields []string
}

func (t *SelectTransform) Transform(r Record) (Record, bool) {
	filtered := make(Record, len(t.Fields))
	for _, f := range t.Fields {
		if v, ok := r[f]; ok {
			filtered[f] = v
		}
	}
	return filtered, true
}

// EnabledTransform drops records whose coerced enabled flag is false.
var EnabledTransform = TransformerFunc(func(r Record) (Record, bool) {
	return r, r.Enabled()
})

// ── Helpers ────────────────────────────────────────────────

// ApplyTransformers runs a chain of transformers on a record.
func ApplyTransformers(r Record, ts []Transformer) (Record, bool) {
	for _, t := range ts {
		var keep bool
		r, keep = t.Transform(r)
		if !keep {
			return r, false
		}
	}
	return r, true
}

// ApplyAll runs the chain over every record, keeping survivors in order.
func ApplyAll(records []Record, ts ...Transformer) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if transformed, keep := ApplyTransformers(r, ts); keep {
			out = append(out, transformed)
		}
	}
	return out
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true
		}
		return false
	case float64:
		return b == 1
	case int:
		return b == 1
	case int64:
		return b == 1
	default:
		return false
	}
}

// toFloat parses v as a number; anything unparseable is 0.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case bool:
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	case []byte:
		f, _ := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
		return f
	default:
		return 0
	}
}

// textOf renders a scalar the way it would appear in a delimited file.
func textOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case float64:
		return formatNumber(s)
	case float32:
		return formatNumber(float64(s))
	default:
		return fmt.Sprint(v)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
