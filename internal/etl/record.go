package etl

import "fmt"

// ── Record ─────────────────────────────────────────────────
// RawRow is what a source hands over: untyped scalars keyed by column.
// Record is the same row after coercion. Every reader emits Records and
// the canonical file stores them verbatim.

// RawRow is a single untyped row as delivered by a source.
type RawRow map[string]any

// Record is a single coerced row.
type Record map[string]any

// Field names every downstream consumer may rely on.
const (
	FieldID      = "id"
	FieldEnabled = "enabled"
)

// ID returns the record's id as text, if present.
func (r Record) ID() (string, bool) {
	v, ok := r[FieldID]
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, true
	case float64:
		return formatNumber(id), true
	default:
		return fmt.Sprint(id), true
	}
}

// Enabled reports the coerced enabled flag; an absent field counts as enabled.
func (r Record) Enabled() bool {
	v, ok := r[FieldEnabled]
	if !ok {
		return true
	}
	b, isBool := v.(bool)
	if !isBool {
		return toBool(v)
	}
	return b
}

// Clone returns a deep copy of lists and nested objects so callers can
// mutate it without touching a reader's cache.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Record:
		return t.Clone()
	default:
		return v
	}
}

// Keys returns the field names in the order of first appearance across rows.
func Keys(records []Record) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range records {
		for _, k := range sortedKeys(r) {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	return names
}
