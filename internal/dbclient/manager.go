package dbclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"fixtures/internal/domain"
	"fixtures/internal/etl"
)

// Manager owns the process-wide connection pool for the relational source.
// The pool is created on first use and lives until Close.
type Manager struct {
	mu        sync.Mutex
	settings  domain.DatabaseSettings
	localPath string
	conn      Connector
	log       logrus.FieldLogger
}

// NewManager prepares a manager for desc. Nothing is opened yet.
func NewManager(desc domain.SourceDescriptor, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		settings:  desc.Database,
		localPath: desc.DBPath,
		log:       log.WithField("component", "dbclient"),
	}
}

// Settings returns the settings the pool is built from.
func (m *Manager) Settings() domain.DatabaseSettings { return m.settings }

// Local reports whether the manager uses the embedded database file.
func (m *Manager) Local() bool { return m.settings.RunMode != domain.RunModeRemote }

// Location is the path or credential-free address of the database.
func (m *Manager) Location() string {
	if m.Local() {
		return m.localPath
	}
	return m.settings.Location()
}

// Connector returns the shared connector, opening it on first call.
func (m *Manager) Connector(ctx context.Context) (Connector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return m.conn, nil
	}

	key := "DB_HOST"
	if m.Local() {
		key = domain.PathEnvKey(domain.SourceDatabase)
		info, err := os.Stat(m.localPath)
		if err != nil {
			return nil, etl.Unavailable(string(domain.SourceDatabase), m.localPath, key, err)
		}
		if info.IsDir() {
			return nil, etl.Unavailable(string(domain.SourceDatabase), m.localPath, key, errors.New("is a directory"))
		}
	}

	conn, err := NewConnector(m.settings, m.localPath)
	if err != nil {
		return nil, etl.Unavailable(string(domain.SourceDatabase), m.Location(), key, err)
	}
	if err := conn.Ping(ctx); err != nil {
		if cerr := conn.Close(); cerr != nil {
			m.log.WithError(cerr).Warn("close after failed ping")
		}
		return nil, etl.Unavailable(string(domain.SourceDatabase), m.Location(), key, fmt.Errorf("ping: %w", err))
	}

	m.log.WithField("location", m.Location()).Debug("database pool opened")
	m.conn = conn
	return conn, nil
}

// Close releases the pool. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	if err != nil {
		m.log.WithError(err).Warn("close database pool")
		return fmt.Errorf("close pool: %w", err)
	}
	m.log.Debug("database pool closed")
	return nil
}
