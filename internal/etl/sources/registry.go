package sources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"fixtures/internal/dbclient"
	"fixtures/internal/domain"
	"fixtures/internal/etl"
)

// ── Registry ───────────────────────────────────────────────
// Each source kind registers a Factory from init(). Open picks the factory
// for the descriptor's active kind.

// Reader is the capability contract every source kind implements.
type Reader = etl.Reader

// Deps are the collaborators a reader may need.
type Deps struct {
	Fs  afero.Fs
	Log logrus.FieldLogger
	// DB is the process-wide pool for the relational source. When nil the
	// relational reader creates a private one and closes it on Close.
	DB *dbclient.Manager
}

// WithDefaults fills in the OS filesystem and the standard logger.
func (d Deps) WithDefaults() Deps {
	if d.Fs == nil {
		d.Fs = afero.NewOsFs()
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	return d
}

// Factory builds a reader for desc.
type Factory func(desc domain.SourceDescriptor, deps Deps) (Reader, error)

type registration struct {
	spec    etl.SourceSpec
	factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = map[domain.SourceKind]registration{}
)

// Register adds a source kind. Registering the same kind twice panics.
func Register(kind domain.SourceKind, spec etl.SourceSpec, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("sources: duplicate registration for %q", kind))
	}
	registry[kind] = registration{spec: spec, factory: f}
}

// Open builds the reader for desc.Kind.
func Open(desc domain.SourceDescriptor, deps Deps) (Reader, error) {
	registryMu.RLock()
	reg, ok := registry[desc.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, etl.Misconfigured("TEST_DATA_SOURCE", fmt.Sprintf("unknown source kind %q", desc.Kind), nil)
	}
	return reg.factory(desc, deps.WithDefaults())
}

// Specs returns all registered source kinds, sorted by type.
func Specs() []etl.SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]etl.SourceSpec, 0, len(registry))
	for _, reg := range registry {
		out = append(out, reg.spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
