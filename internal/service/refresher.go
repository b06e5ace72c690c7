package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"fixtures/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Refresher: re-runs preprocessing when the source changes
// ─────────────────────────────────────────────────────────────

// DefaultDebounce is how long a burst of file events is collapsed for.
const DefaultDebounce = 500 * time.Millisecond

// RefresherOptions configures the triggers. Either may be left empty.
type RefresherOptions struct {
	WatchFile bool          // watch the source file of the preprocessor's descriptor
	Schedule  string        // cron expression
	Debounce  time.Duration // DefaultDebounce when zero
	Emitter   EventEmitter
	Log       logrus.FieldLogger
}

// Refresher drives a Preprocessor from file events and a schedule.
type Refresher struct {
	pre  *Preprocessor
	opts RefresherOptions
	log  logrus.FieldLogger

	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
	timer       *time.Timer
}

// NewRefresher creates a Refresher. Nothing runs until Start.
func NewRefresher(pre *Preprocessor, opts RefresherOptions) *Refresher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Emitter == nil {
		opts.Emitter = LogEmitter{Log: opts.Log}
	}
	return &Refresher{pre: pre, opts: opts, log: opts.Log.WithField("component", "refresher")}
}

// Start installs the triggers. Calling Start again replaces them.
func (r *Refresher) Start(ctx context.Context) error {
	r.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(r.opts.Schedule, func() { r.run(ctx, "schedule") }); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", r.opts.Schedule, err)
		}
		c.Start()
		r.cronSched = c
		r.log.WithField("schedule", r.opts.Schedule).Info("refresh scheduled")
	}

	if !r.opts.WatchFile {
		return nil
	}
	desc := r.pre.Descriptor()
	if desc.Kind.IsCanonical() || !desc.Kind.Known() {
		return errors.New("file watch needs a non-canonical source")
	}
	if desc.Kind == domain.SourceDatabase && desc.Database.RunMode == domain.RunModeRemote {
		return errors.New("file watch is not available for a remote database")
	}

	absPath, err := filepath.Abs(desc.Path())
	if err != nil {
		return fmt.Errorf("bad path %q: %w", desc.Path(), err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir %q: %w", filepath.Dir(absPath), err)
	}
	r.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	r.watchCancel = cancel
	go r.watch(watchCtx, watcher, absPath)

	r.log.WithField("path", absPath).Info("watching source file")
	return nil
}

func (r *Refresher) watch(ctx context.Context, watcher *fsnotify.Watcher, absPath string) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name, _ := filepath.Abs(event.Name)
			if name != absPath {
				continue
			}
			r.mu.Lock()
			if r.timer != nil {
				r.timer.Stop()
			}
			r.timer = time.AfterFunc(r.opts.Debounce, func() { r.run(ctx, "file") })
			r.mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.log.WithError(err).Warn("watcher error")
		}
	}
}

// run preprocesses once and reports the outcome through the emitter.
func (r *Refresher) run(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	log := r.log.WithField("trigger", trigger)
	res, err := r.pre.Preprocess(ctx)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		log.Debug("preprocess already running, skipped")
	case err != nil:
		log.WithError(err).Error("refresh failed")
		r.opts.Emitter.Emit(ctx, EventRefreshFailed, map[string]string{"trigger": trigger, "error": err.Error()})
	default:
		log.WithField("records", res.RecordCount).Info("refreshed")
		r.opts.Emitter.Emit(ctx, EventRefreshed, res)
	}
}

// WaitRunning blocks until an in-flight refresh finishes or ctx is done.
func (r *Refresher) WaitRunning(ctx context.Context) {
	r.pre.WaitRunning(ctx)
}

// Stop removes every trigger. It is safe to call more than once.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watchCancel != nil {
		r.watchCancel()
		r.watchCancel = nil
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
	if r.cronSched != nil {
		r.cronSched.Stop()
		r.cronSched = nil
	}
}
