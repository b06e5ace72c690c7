package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: tells interested parties that data changed
// ─────────────────────────────────────────────────────────────

// Events emitted by the refresher.
const (
	EventRefreshed     = "fixtures:refreshed"
	EventRefreshFailed = "fixtures:refresh-failed"
)

// EventEmitter receives pipeline events. The MCP server forwards them to
// connected clients; the CLI logs them.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes events to a logger.
type LogEmitter struct {
	Log logrus.FieldLogger
}

func (e LogEmitter) Emit(_ context.Context, event string, data any) {
	e.Log.WithFields(logrus.Fields{"event": event, "data": data}).Info("event")
}

// RecordingEmitter keeps every emission for later inspection.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []EmittedEvent
}

// EmittedEvent is one recorded emission.
type EmittedEvent struct {
	Event string
	Data  any
}

func (r *RecordingEmitter) Emit(_ context.Context, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, EmittedEvent{Event: event, Data: data})
}

// Events returns a copy of the recorded emissions.
func (r *RecordingEmitter) Events() []EmittedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EmittedEvent(nil), r.events...)
}
