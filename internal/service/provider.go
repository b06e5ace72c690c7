package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"fixtures/internal/config"
	"fixtures/internal/dbclient"
	"fixtures/internal/domain"
	"fixtures/internal/etl"
	"fixtures/internal/etl/sources"
)

// ─────────────────────────────────────────────────────────────
// Provider: the one entry point consumers read test data through
// ─────────────────────────────────────────────────────────────

// TestDataResult is a full read with summary counts.
type TestDataResult struct {
	Source       domain.SourceKind `json:"source"`
	Records      []etl.Record      `json:"records"`
	RecordCount  int               `json:"recordCount"`
	EnabledCount int               `json:"enabledCount"`
	Timestamp    time.Time         `json:"timestamp"`
}

// RunnerMetadata describes a RunnerData payload.
type RunnerMetadata struct {
	Source      domain.SourceKind `json:"source"`
	Section     string            `json:"section"`
	GeneratedAt time.Time         `json:"generatedAt"`
	RecordCount int               `json:"recordCount"`
}

// RunnerData is what a test runner consumes.
type RunnerData struct {
	Metadata RunnerMetadata `json:"metadata"`
	Records  []etl.Record   `json:"records"`
}

// Provider reads test data from one bound source.
type Provider struct {
	base   domain.SourceDescriptor // as configured
	bound  domain.SourceDescriptor // what is actually read
	deps   sources.Deps
	log    logrus.FieldLogger
	now    func() time.Time

	mu     sync.Mutex // serialises reader use; the reader cache is unguarded
	reader etl.Reader
}

// NewProvider binds a provider to desc. When flag says the canonical file
// was regenerated in this process, the provider reads the canonical file
// whatever desc.Kind is. Unknown kinds fall back to canonical.
func NewProvider(desc domain.SourceDescriptor, flag ProcessFlag, deps sources.Deps) (*Provider, error) {
	deps = deps.WithDefaults()
	if deps.DB == nil {
		deps.DB = dbclient.NewManager(desc, deps.Log)
	}
	log := deps.Log.WithField("component", "provider")

	bound := desc
	switch {
	case flag.Preprocessed:
		bound = desc.WithKind(domain.SourceJSON)
		if !desc.Kind.IsCanonical() {
			log.WithFields(logrus.Fields{
				"configured": desc.Kind,
				"original":   flag.OriginalSource,
			}).Debug("source was preprocessed, reading canonical file")
		}
	case !desc.Kind.Known():
		log.WithField("source", desc.Kind).Warn("unknown source kind, falling back to canonical")
		bound = desc.WithKind(domain.SourceJSON)
	}
	return newBoundProvider(desc, bound, deps, log)
}

func newBoundProvider(base, bound domain.SourceDescriptor, deps sources.Deps, log logrus.FieldLogger) (*Provider, error) {
	reader, err := sources.Open(bound, deps)
	if err != nil {
		return nil, fmt.Errorf("open %s reader: %w", bound.Kind, err)
	}
	return &Provider{
		base:   base,
		bound:  bound,
		deps:   deps,
		reader: reader,
		log:    log,
		now:    time.Now,
	}, nil
}

// ForSource returns a new provider reading kind directly, ignoring the
// process flag. The receiver is not changed.
func (p *Provider) ForSource(kind domain.SourceKind) (*Provider, error) {
	bound := p.base.WithKind(kind)
	if !kind.Known() {
		p.log.WithField("source", kind).Warn("unknown source kind, falling back to canonical")
		bound = p.base.WithKind(domain.SourceJSON)
	}
	return newBoundProvider(p.base, bound, p.deps, p.log)
}

// Source is the kind actually read.
func (p *Provider) Source() domain.SourceKind { return p.bound.Kind }

// Descriptor is the descriptor actually read.
func (p *Provider) Descriptor() domain.SourceDescriptor { return p.bound }

// Reader exposes the bound reader. Calls through it bypass the provider's
// lock and must not race provider methods.
func (p *Provider) Reader() etl.Reader { return p.reader }

// GetTestData reads every record. With a kind different from the bound
// one, a temporary provider for that kind is used and closed.
func (p *Provider) GetTestData(ctx context.Context, kind ...domain.SourceKind) (*TestDataResult, error) {
	if len(kind) > 0 && kind[0] != "" && kind[0] != p.bound.Kind {
		other, err := p.ForSource(kind[0])
		if err != nil {
			return nil, err
		}
		defer other.Close()
		return other.GetTestData(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	records, err := p.reader.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	enabled := etl.ApplyAll(records, etl.EnabledTransform)
	return &TestDataResult{
		Source:       p.bound.Kind,
		Records:      records,
		RecordCount:  len(records),
		EnabledCount: len(enabled),
		Timestamp:    p.now().UTC(),
	}, nil
}

// GetEnabledTestData returns records whose enabled flag is not false.
func (p *Provider) GetEnabledTestData(ctx context.Context) ([]etl.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reader.ReadEnabled(ctx)
}

// GetTestDataByID returns the record with id, or nil.
func (p *Provider) GetTestDataByID(ctx context.Context, id string) (etl.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reader.ReadByID(ctx, id)
}

// GetFilteredTestData returns records matching every field of filter.
func (p *Provider) GetFilteredTestData(ctx context.Context, filter map[string]any) ([]etl.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reader.ReadFiltered(ctx, filter)
}

// IsSourceAvailable reports whether the bound source can be read.
func (p *Provider) IsSourceAvailable(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reader.IsAvailable(ctx)
}

// Refresh drops the reader cache so the next read hits the source.
func (p *Provider) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reader.ClearCache()
}

// ToRunnerData reads every record and wraps it with metadata. Readers
// holding connections are closed afterwards.
func (p *Provider) ToRunnerData(ctx context.Context) (*RunnerData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	records, err := p.reader.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	p.closeReader()

	return &RunnerData{
		Metadata: RunnerMetadata{
			Source:      p.bound.Kind,
			Section:     p.bound.Section,
			GeneratedAt: p.now().UTC(),
			RecordCount: len(records),
		},
		Records: records,
	}, nil
}

// Close releases what the reader holds. Close failures are logged.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeReader()
	return nil
}

func (p *Provider) closeReader() {
	if c, ok := p.reader.(io.Closer); ok {
		if err := c.Close(); err != nil {
			p.log.WithError(err).Warn("close reader")
		}
	}
}

// ── Process-wide instance ─────────────────────────────────

var (
	defaultMu       sync.Mutex
	defaultProvider *Provider
)

// Default returns the process-wide provider, building it on first call
// from the process environment and the OS filesystem.
func Default() (*Provider, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultProvider != nil {
		return defaultProvider, nil
	}
	env := config.Environ()
	desc, err := config.Resolve(env, afero.NewOsFs())
	if err != nil {
		return nil, err
	}
	p, err := NewProvider(desc, FlagFromEnv(env), sources.Deps{})
	if err != nil {
		return nil, err
	}
	defaultProvider = p
	return p, nil
}

// SetDefault replaces the process-wide provider. Passing nil makes the
// next Default call build a fresh one.
func SetDefault(p *Provider) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultProvider = p
}
