package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"fixtures/internal/etl"
)

// ReadAllAs decodes every record into T through its JSON tags.
func ReadAllAs[T any](ctx context.Context, r Reader) ([]T, error) {
	records, err := r.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](records)
}

// ReadByIDAs decodes the record with the given id. It returns nil when no
// record matches.
func ReadByIDAs[T any](ctx context.Context, r Reader, id string) (*T, error) {
	rec, err := r.ReadByID(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	var out T
	if err := decode(rec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReadFilteredAs decodes the records matching filter.
func ReadFilteredAs[T any](ctx context.Context, r Reader, filter map[string]any) ([]T, error) {
	records, err := r.ReadFiltered(ctx, filter)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](records)
}

// ReadEnabledAs decodes the enabled records.
func ReadEnabledAs[T any](ctx context.Context, r Reader) ([]T, error) {
	records, err := r.ReadEnabled(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](records)
}

func decodeAll[T any](records []etl.Record) ([]T, error) {
	out := make([]T, len(records))
	for i, rec := range records {
		if err := decode(rec, &out[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return out, nil
}

func decode(rec etl.Record, dst any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}
