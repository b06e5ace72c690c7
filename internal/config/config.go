// Package config resolves the test-data source descriptor from the process
// environment and an optional database side-file.
//
// Values are consolidated in increasing order of precedence: built-in
// defaults, the side-file at DB_CONFIG_PATH, then environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/guregu/null.v3"

	"fixtures/internal/domain"
	"fixtures/internal/etl"
	"fixtures/internal/secret"
)

// Config is the raw configuration surface. Every field is nullable so a
// layer only overrides what it actually sets.
type Config struct {
	Source             null.String `envconfig:"TEST_DATA_SOURCE"`
	Section            null.String `envconfig:"TEST_DATA_SECTION"`
	JSONPath           null.String `envconfig:"TEST_DATA_JSON_PATH"`
	CSVPath            null.String `envconfig:"TEST_DATA_CSV_PATH"`
	ExcelPath          null.String `envconfig:"TEST_DATA_EXCEL_PATH"`
	DBPath             null.String `envconfig:"TEST_DATA_DB_PATH"`
	QueriesPath        null.String `envconfig:"TEST_DATA_QUERIES_PATH"`
	Sheet              null.String `envconfig:"TEST_DATA_SHEET"`
	Table              null.String `envconfig:"TEST_DATA_TABLE"`
	CSVDelimiter       null.String `envconfig:"TEST_DATA_CSV_DELIMITER"`
	CSVHasHeader       null.Bool   `envconfig:"TEST_DATA_CSV_HAS_HEADER"`
	ArrayDelimiter     null.String `envconfig:"TEST_DATA_ARRAY_DELIMITER"`
	NumericAutoconvert null.Bool   `envconfig:"TEST_DATA_NUMERIC_AUTOCONVERT"`

	DBRunMode    null.String `envconfig:"DB_RUN_MODE"`
	DBDriver     null.String `envconfig:"DB_DRIVER"`
	DBHost       null.String `envconfig:"DB_HOST"`
	DBPort       null.Int    `envconfig:"DB_PORT"`
	DBName       null.String `envconfig:"DB_NAME"`
	DBUser       null.String `envconfig:"DB_USER"`
	DBPassword   null.String `envconfig:"DB_PASSWORD"` // Base64
	DBSSLMode    null.String `envconfig:"DB_SSL_MODE"`
	DBConfigPath null.String `envconfig:"DB_CONFIG_PATH"`
}

// NewConfig returns the built-in defaults.
func NewConfig() Config {
	return Config{
		Source:             null.NewString(string(domain.SourceJSON), false),
		Section:            null.NewString("testCases", false),
		JSONPath:           null.NewString("data/test-data.json", false),
		CSVPath:            null.NewString("data/test-data.csv", false),
		ExcelPath:          null.NewString("data/test-data.xlsx", false),
		DBPath:             null.NewString("data/test-data.db", false),
		QueriesPath:        null.NewString("data/queries.json", false),
		CSVDelimiter:       null.NewString(",", false),
		CSVHasHeader:       null.NewBool(true, false),
		ArrayDelimiter:     null.NewString(etl.DefaultArrayDelimiter, false),
		NumericAutoconvert: null.NewBool(false, false), // unset: per-kind default

		DBRunMode:    null.NewString(string(domain.RunModeLocal), false),
		DBDriver:     null.NewString(string(domain.DatabaseDriverMySQL), false),
		DBHost:       null.NewString("localhost", false),
		DBSSLMode:    null.NewString("disable", false),
		DBConfigPath: null.NewString("config/database.json", false),
	}
}

// Apply copies every set value of cfg onto c.
//
//nolint:cyclop
func (c Config) Apply(cfg Config) Config {
	applyString := func(dst *null.String, src null.String) {
		if src.Valid && src.String != "" {
			*dst = src
		}
	}
	applyString(&c.Source, cfg.Source)
	applyString(&c.Section, cfg.Section)
	applyString(&c.JSONPath, cfg.JSONPath)
	applyString(&c.CSVPath, cfg.CSVPath)
	applyString(&c.ExcelPath, cfg.ExcelPath)
	applyString(&c.DBPath, cfg.DBPath)
	applyString(&c.QueriesPath, cfg.QueriesPath)
	applyString(&c.Sheet, cfg.Sheet)
	applyString(&c.Table, cfg.Table)
	applyString(&c.CSVDelimiter, cfg.CSVDelimiter)
	applyString(&c.ArrayDelimiter, cfg.ArrayDelimiter)
	if cfg.CSVHasHeader.Valid {
		c.CSVHasHeader = cfg.CSVHasHeader
	}
	if cfg.NumericAutoconvert.Valid {
		c.NumericAutoconvert = cfg.NumericAutoconvert
	}

	applyString(&c.DBRunMode, cfg.DBRunMode)
	applyString(&c.DBDriver, cfg.DBDriver)
	applyString(&c.DBHost, cfg.DBHost)
	if cfg.DBPort.Valid && cfg.DBPort.Int64 > 0 {
		c.DBPort = cfg.DBPort
	}
	applyString(&c.DBName, cfg.DBName)
	applyString(&c.DBUser, cfg.DBUser)
	applyString(&c.DBPassword, cfg.DBPassword)
	applyString(&c.DBSSLMode, cfg.DBSSLMode)
	applyString(&c.DBConfigPath, cfg.DBConfigPath)
	return c
}

// FromEnv parses the environment layer only.
func FromEnv(env map[string]string) (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	if err != nil {
		return cfg, etl.Misconfigured("", "invalid environment", err)
	}
	return cfg, nil
}

// Consolidate layers defaults, the side-file and env.
func Consolidate(env map[string]string, fsys afero.Fs) (Config, error) {
	result := NewConfig()

	envCfg, err := FromEnv(env)
	if err != nil {
		return result, err
	}

	sidePath := result.Apply(envCfg).DBConfigPath.String
	side, err := loadSideFile(fsys, sidePath)
	if err != nil {
		return result, err
	}

	return result.Apply(side).Apply(envCfg), nil
}

// Resolve returns the descriptor for the given environment. A missing
// side-file is not an error; an unknown source kind is not either, the
// provider decides how to fall back.
func Resolve(env map[string]string, fsys afero.Fs) (domain.SourceDescriptor, error) {
	cfg, err := Consolidate(env, fsys)
	if err != nil {
		return domain.SourceDescriptor{}, err
	}
	return cfg.Descriptor()
}

// Environ snapshots the process environment.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Descriptor validates c and builds the immutable descriptor.
func (c Config) Descriptor() (domain.SourceDescriptor, error) {
	if utf8.RuneCountInString(c.CSVDelimiter.String) != 1 {
		return domain.SourceDescriptor{}, etl.Misconfigured("TEST_DATA_CSV_DELIMITER",
			fmt.Sprintf("delimiter %q must be exactly one character", c.CSVDelimiter.String), nil)
	}
	if strings.TrimSpace(c.ArrayDelimiter.String) == "" {
		return domain.SourceDescriptor{}, etl.Misconfigured("TEST_DATA_ARRAY_DELIMITER", "array delimiter must not be blank", nil)
	}

	runMode := domain.RunMode(strings.ToLower(strings.TrimSpace(c.DBRunMode.String)))
	if runMode != domain.RunModeLocal && runMode != domain.RunModeRemote {
		return domain.SourceDescriptor{}, etl.Misconfigured("DB_RUN_MODE",
			fmt.Sprintf("run mode %q must be local or remote", c.DBRunMode.String), nil)
	}

	driver := domain.DatabaseDriver(strings.ToLower(strings.TrimSpace(c.DBDriver.String)))
	switch driver {
	case domain.DatabaseDriverMySQL, domain.DatabaseDriverPostgres, domain.DatabaseDriverMongoDB, domain.DatabaseDriverSQLite:
	case "postgresql":
		driver = domain.DatabaseDriverPostgres
	case "mongo":
		driver = domain.DatabaseDriverMongoDB
	default:
		return domain.SourceDescriptor{}, etl.Misconfigured("DB_DRIVER",
			fmt.Sprintf("unsupported driver %q", c.DBDriver.String), nil)
	}

	password, err := credentials(map[string]string{"password": c.DBPassword.String}).Get("password")
	if err != nil {
		return domain.SourceDescriptor{}, etl.Misconfigured("DB_PASSWORD", "password is not valid Base64", err)
	}

	kind, _ := domain.ParseSourceKind(c.Source.String)
	section := strings.TrimSpace(c.Section.String)
	table := c.Table.String
	if table == "" {
		table = section
	}

	desc := domain.SourceDescriptor{
		Kind:               kind,
		Section:            section,
		JSONPath:           c.JSONPath.String,
		CSVPath:            c.CSVPath.String,
		ExcelPath:          c.ExcelPath.String,
		DBPath:             c.DBPath.String,
		QueriesPath:        c.QueriesPath.String,
		SheetName:          c.Sheet.String,
		TableName:          table,
		CSVDelimiter:       c.CSVDelimiter.String,
		CSVHasHeader:       c.CSVHasHeader.Bool,
		ArrayDelimiter:     c.ArrayDelimiter.String,
		Database: domain.DatabaseSettings{
			RunMode:  runMode,
			Driver:   driver,
			Host:     c.DBHost.String,
			Port:     int(c.DBPort.Int64),
			Schema:   c.DBName.String,
			Username: c.DBUser.String,
			Password: string(password),
			SSLMode:  c.DBSSLMode.String,
		},
	}
	if c.NumericAutoconvert.Valid {
		on := c.NumericAutoconvert.Bool
		desc.NumericAutoconvert = &on
	}
	return desc, nil
}

// credentials is where encoded database credentials are read from.
func credentials(encoded map[string]string) secret.SecretStore {
	return secret.NewBase64Store(encoded)
}

// ── Side-file ──────────────────────────────────────────────

// sideFile is the on-disk database override file. Credentials are Base64.
type sideFile struct {
	RunMode  string `json:"runMode"`
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int64  `json:"port"`
	Schema   string `json:"schema"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

// loadSideFile reads the side-file into a Config layer. A missing file
// yields an empty layer.
func loadSideFile(fsys afero.Fs, path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, etl.Misconfigured("DB_CONFIG_PATH", fmt.Sprintf("read %s", path), err)
	}

	var f sideFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Config{}, etl.Misconfigured("DB_CONFIG_PATH", fmt.Sprintf("parse %s", path), err)
	}

	// The password stays encoded, like DB_PASSWORD, until Descriptor.
	user, err := credentials(map[string]string{"username": f.Username}).Get("username")
	if err != nil {
		return Config{}, etl.Misconfigured("DB_CONFIG_PATH", fmt.Sprintf("decode credentials in %s", path), err)
	}

	return Config{
		DBRunMode:  null.NewString(f.RunMode, f.RunMode != ""),
		DBDriver:   null.NewString(f.Driver, f.Driver != ""),
		DBHost:     null.NewString(f.Host, f.Host != ""),
		DBPort:     null.NewInt(f.Port, f.Port > 0),
		DBName:     null.NewString(f.Schema, f.Schema != ""),
		DBUser:     null.NewString(string(user), len(user) > 0),
		DBPassword: null.NewString(f.Password, f.Password != ""),
		DBSSLMode:  null.NewString(f.SSLMode, f.SSLMode != ""),
	}, nil
}
