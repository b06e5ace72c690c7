package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fixtures/internal/dbclient"
	"fixtures/internal/domain"
	"fixtures/internal/etl"
	"fixtures/internal/etl/sources"
	"fixtures/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Preprocessor: materialises a non-canonical source into the
// canonical file, with backup and restore
// ─────────────────────────────────────────────────────────────

// ErrAlreadyRunning is returned when Preprocess is called while another
// call on the same Preprocessor is still in flight.
var ErrAlreadyRunning = errors.New("preprocess already running")

const preprocessJob = "preprocess"

// PreprocessResult describes what Preprocess did.
type PreprocessResult struct {
	Converted   bool              `json:"converted"`
	SourceKind  domain.SourceKind `json:"sourceKind"`
	OutputPath  string            `json:"outputPath"`
	RecordCount int               `json:"recordCount"`
	BackupPath  string            `json:"backupPath,omitempty"` // empty when no backup exists
}

// Preprocessor converts the configured source into the canonical file.
// Run it once per process before readers are handed out.
type Preprocessor struct {
	desc  domain.SourceDescriptor
	deps  sources.Deps
	flags Flags
	store *storage.CanonicalStore
	log   logrus.FieldLogger
	guard runGuard
	now   func() time.Time

	mu        sync.Mutex
	backedUp  bool // the backup on disk was taken by this instance
	converted bool
}

// NewPreprocessor creates a Preprocessor for desc. The flag is marked
// through flags after a successful conversion.
func NewPreprocessor(desc domain.SourceDescriptor, flags Flags, deps sources.Deps) *Preprocessor {
	deps = deps.WithDefaults()
	if deps.DB == nil {
		deps.DB = dbclient.NewManager(desc, deps.Log)
	}
	if flags == nil {
		flags = EnvFlags{}
	}
	return &Preprocessor{
		desc:  desc,
		deps:  deps,
		flags: flags,
		store: storage.NewCanonicalStore(deps.Fs, desc.JSONPath, desc.Section),
		log:   deps.Log.WithField("component", "preprocess"),
		now:   time.Now,
	}
}

// Descriptor returns the descriptor the preprocessor was built with.
func (p *Preprocessor) Descriptor() domain.SourceDescriptor { return p.desc }

// Preprocess runs the conversion. For the canonical kind it only counts
// the existing records and touches nothing.
func (p *Preprocessor) Preprocess(ctx context.Context) (*PreprocessResult, error) {
	if !p.guard.TryLock(preprocessJob) {
		return nil, ErrAlreadyRunning
	}
	defer p.guard.Unlock(preprocessJob)

	kind := p.desc.Kind
	if !kind.Known() {
		p.log.WithField("source", kind).Warn("unknown source kind, treating as canonical")
		kind = domain.SourceJSON
	}
	if kind.IsCanonical() {
		count := p.store.RecordCount()
		p.log.WithField("records", count).Debug("source is canonical, nothing to convert")
		return &PreprocessResult{
			SourceKind:  domain.SourceJSON,
			OutputPath:  p.store.Path(),
			RecordCount: count,
		}, nil
	}

	log := p.log.WithFields(logrus.Fields{"source": kind, "run": uuid.NewString()})
	path := p.desc.PathFor(kind)

	if err := p.checkSource(ctx, kind, path); err != nil {
		return nil, err
	}

	reader, err := sources.Open(p.desc.WithKind(kind), p.deps)
	if err != nil {
		return nil, fmt.Errorf("open %s reader: %w", kind, err)
	}
	if c, ok := reader.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				log.WithError(err).Warn("close reader")
			}
		}()
	}

	p.mu.Lock()
	dest := &backupFirst{store: p.store, log: log, keep: p.backedUp}
	p.mu.Unlock()
	engine := &etl.Engine{Dest: dest, Now: p.now}
	result, err := engine.RunSync(ctx, reader, originalSource(kind, path, p.desc.Database.RunMode == domain.RunModeRemote))
	if err != nil {
		log.WithError(err).Error("preprocess failed")
		return nil, fmt.Errorf("preprocess %s: %w", kind, err)
	}
	p.mu.Lock()
	p.converted = true
	if dest.backedUp {
		p.backedUp = true
	}
	p.mu.Unlock()

	if err := p.flags.Mark(kind); err != nil {
		log.WithError(err).Warn("could not set process flag")
	}

	log.WithFields(logrus.Fields{
		"records":  result.RowsWritten,
		"output":   p.store.Path(),
		"duration": result.Duration,
	}).Info("canonical file written")

	return &PreprocessResult{
		Converted:   true,
		SourceKind:  kind,
		OutputPath:  p.store.Path(),
		RecordCount: result.RowsWritten,
		BackupPath:  dest.backupPath,
	}, nil
}

// checkSource fails when the source's backing file is missing. Remote
// databases are probed with a live connection instead.
func (p *Preprocessor) checkSource(ctx context.Context, kind domain.SourceKind, path string) error {
	key := domain.PathEnvKey(kind)
	if kind == domain.SourceDatabase && p.desc.Database.RunMode == domain.RunModeRemote {
		reader, err := sources.Open(p.desc.WithKind(kind), p.deps)
		if err != nil {
			return err
		}
		if !reader.IsAvailable(ctx) {
			return etl.Unavailable(string(kind), path, "DB_HOST", errors.New("connection failed"))
		}
		return nil
	}

	var err error
	if kind == domain.SourceDatabase {
		// The embedded engine opens real files, not the afero filesystem.
		_, err = os.Stat(path)
	} else {
		_, err = p.deps.Fs.Stat(path)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("expected %s file at %s: %w", kind, path, fs.ErrNotExist)
		}
		return etl.Unavailable(string(kind), path, key, err)
	}
	return nil
}

// RestoreCanonical puts the pre-preprocessing canonical file back and
// removes the backup. It returns false when there was nothing to restore
// or the restore failed; failures are logged, never returned.
func (p *Preprocessor) RestoreCanonical(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.store.Restore()
	if out.Restored {
		p.backedUp = false
	}
	if out.Err != nil {
		p.log.WithError(out.Err).Warn("restore canonical file")
	}
	if out.Restored {
		p.log.WithField("path", p.store.Path()).Info("canonical file restored")
	}
	return out.Restored && out.Err == nil
}

// Converted reports whether this preprocessor has written the canonical
// file at least once.
func (p *Preprocessor) Converted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.converted
}

// WaitRunning blocks until an in-flight Preprocess returns or ctx is done.
func (p *Preprocessor) WaitRunning(ctx context.Context) {
	p.guard.WaitAll(ctx)
}

// backupFirst backs up the canonical file right before replacing it.
// The first conversion of a Preprocessor always takes a fresh backup,
// replacing any left by an earlier process. Later conversions (keep) leave
// that backup alone so it still holds the file from before preprocessing.
type backupFirst struct {
	store      *storage.CanonicalStore
	log        logrus.FieldLogger
	keep       bool
	backedUp   bool
	backupPath string
}

func (d *backupFirst) Write(ctx context.Context, meta etl.Metadata, records []etl.Record) error {
	if d.keep {
		d.backedUp = true
		if d.store.HasBackup() {
			d.backupPath = d.store.BackupPath()
			d.log.WithField("backup", d.backupPath).Debug("keeping backup from first run")
		}
		return d.store.Write(ctx, meta, records)
	}

	stale := d.store.HasBackup()
	out := d.store.Backup()
	switch {
	case out.Err != nil:
		d.log.WithError(out.Err).Warn("backup failed, continuing without one")
		if stale {
			d.discardStale()
		}
	case out.Skipped:
		d.log.Debug("no canonical file to back up")
		if stale {
			d.discardStale()
		}
		d.backedUp = true
	default:
		if stale {
			d.log.WithField("backup", out.Path).Warn("replaced backup left by an earlier run")
		}
		d.backupPath = out.Path
		d.backedUp = true
		d.log.WithField("backup", out.Path).Debug("canonical file backed up")
	}
	return d.store.Write(ctx, meta, records)
}

// discardStale drops a backup that does not hold the current canonical
// file, so a later restore cannot bring it back.
func (d *backupFirst) discardStale() {
	if err := d.store.DiscardBackup(); err != nil {
		d.log.WithError(err).Warn("could not remove stale backup")
		return
	}
	d.log.WithField("backup", d.store.BackupPath()).Warn("removed backup left by an earlier run")
}

// originalSource is the absolute source path, or the credential-free
// location of a remote database.
func originalSource(kind domain.SourceKind, path string, remote bool) string {
	if kind == domain.SourceDatabase && remote {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
