package domain

import (
	"fmt"
	"strconv"
)

// DatabaseDriver represents the type of database engine.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// RunMode decides whether the relational source is a local embedded file or
// a remote server.
type RunMode string

const (
	RunModeLocal  RunMode = "local"
	RunModeRemote RunMode = "remote"
)

// DatabaseSettings holds what is needed to reach the relational source.
// Credentials are already decoded here; at rest they are Base64.
type DatabaseSettings struct {
	RunMode  RunMode        `json:"runMode"`
	Driver   DatabaseDriver `json:"driver"`
	Host     string         `json:"host"`
	Port     int            `json:"port"` // 0 → driver default
	Schema   string         `json:"schema"`
	Username string         `json:"username"`
	Password string         `json:"-"`
	SSLMode  string         `json:"sslMode"`
}

// DefaultPort returns the conventional port for the configured driver.
func (s DatabaseSettings) DefaultPort() int {
	switch s.Driver {
	case DatabaseDriverMySQL:
		return 3306
	case DatabaseDriverPostgres:
		return 5432
	case DatabaseDriverMongoDB:
		return 27017
	default:
		return 0
	}
}

// EffectivePort is Port, or the driver default when unset.
func (s DatabaseSettings) EffectivePort() int {
	if s.Port > 0 {
		return s.Port
	}
	return s.DefaultPort()
}

// Location is a credential-free description used in logs and errors.
func (s DatabaseSettings) Location() string {
	port := s.EffectivePort()
	if port == 0 {
		return fmt.Sprintf("%s://%s/%s", s.Driver, s.Host, s.Schema)
	}
	return fmt.Sprintf("%s://%s:%s/%s", s.Driver, s.Host, strconv.Itoa(port), s.Schema)
}
