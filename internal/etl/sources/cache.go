package sources

import (
	"context"

	"fixtures/internal/etl"
)

// cache is embedded by every reader. It owns the ReadAll cache and derives
// the lookup methods from it, so a concrete reader only supplies load.
// Every read hands out copies, so callers may mutate what they get back.
// The cache write is not synchronised: callers must not race first reads
// on one instance.
type cache struct {
	kind    string
	load    func(ctx context.Context) ([]etl.Record, error)
	records []etl.Record
	loaded  bool
}

func newCache(kind string, load func(ctx context.Context) ([]etl.Record, error)) *cache {
	return &cache{kind: kind, load: load}
}

func (c *cache) Kind() string { return c.kind }

func (c *cache) ReadAll(ctx context.Context) ([]etl.Record, error) {
	all, err := c.cached(ctx)
	if err != nil {
		return nil, err
	}
	return cloneAll(all), nil
}

func (c *cache) ReadByID(ctx context.Context, id string) (etl.Record, error) {
	all, err := c.cached(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if got, ok := r.ID(); ok && got == id {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (c *cache) ReadFiltered(ctx context.Context, filter map[string]any) ([]etl.Record, error) {
	all, err := c.cached(ctx)
	if err != nil {
		return nil, err
	}
	return cloneAll(etl.ApplyAll(all, &etl.MatchTransform{Filter: filter})), nil
}

func (c *cache) ReadEnabled(ctx context.Context) ([]etl.Record, error) {
	all, err := c.cached(ctx)
	if err != nil {
		return nil, err
	}
	return cloneAll(etl.ApplyAll(all, etl.EnabledTransform)), nil
}

// cached returns the shared records, loading them on first use.
func (c *cache) cached(ctx context.Context) ([]etl.Record, error) {
	if c.loaded {
		return c.records, nil
	}
	records, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []etl.Record{}
	}
	c.records = records
	c.loaded = true
	return records, nil
}

func cloneAll(records []etl.Record) []etl.Record {
	out := make([]etl.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

func (c *cache) ClearCache() {
	c.records = nil
	c.loaded = false
}
