package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"fixtures/internal/domain"
	"fixtures/internal/etl"
)

// BackupSuffix is appended to the canonical file name to form its backup.
const BackupSuffix = ".preprocessing.bak"

// MetadataKey is the top-level member holding snapshot metadata.
const MetadataKey = "_metadata"

// CanonicalStore reads and writes the canonical snapshot file and manages
// its backup. It implements etl.Destination.
type CanonicalStore struct {
	fs      afero.Fs
	path    string
	section string
}

// NewCanonicalStore creates a store for the file at path whose records live
// under section.
func NewCanonicalStore(fsys afero.Fs, path, section string) *CanonicalStore {
	return &CanonicalStore{fs: fsys, path: path, section: section}
}

// Path returns the canonical file path.
func (s *CanonicalStore) Path() string { return s.path }

// Section returns the key records are stored under.
func (s *CanonicalStore) Section() string { return s.section }

// BackupPath returns where the backup of the canonical file lives.
func (s *CanonicalStore) BackupPath() string { return s.path + BackupSuffix }

// Exists reports whether the canonical file is present.
func (s *CanonicalStore) Exists() bool { return fileExists(s.fs, s.path) }

// HasBackup reports whether a restore is possible.
func (s *CanonicalStore) HasBackup() bool { return fileExists(s.fs, s.BackupPath()) }

// ── Read ───────────────────────────────────────────────────

// Snapshot is the decoded canonical file.
type Snapshot struct {
	Metadata     *etl.Metadata
	Rows         []etl.RawRow
	FileFound    bool
	SectionFound bool
}

// Load decodes the canonical file. A missing file or section yields an
// empty snapshot, not an error.
func (s *CanonicalStore) Load() (*Snapshot, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, etl.Unavailable(string(domain.SourceJSON), s.path, "TEST_DATA_JSON_PATH", err)
	}

	snap := &Snapshot{FileFound: true}
	if len(bytes.TrimSpace(data)) == 0 {
		return snap, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, etl.ParseFailed(string(domain.SourceJSON), s.path, err)
	}

	if raw, ok := doc[MetadataKey]; ok {
		var meta etl.Metadata
		if err := json.Unmarshal(raw, &meta); err == nil {
			snap.Metadata = &meta
		}
	}

	raw, ok := doc[s.section]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return snap, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, etl.ParseFailed(string(domain.SourceJSON), s.path,
			fmt.Errorf("section %q is not an array of objects: %w", s.section, err))
	}
	snap.SectionFound = true
	snap.Rows = make([]etl.RawRow, len(rows))
	for i, row := range rows {
		snap.Rows[i] = etl.RawRow(row)
	}
	return snap, nil
}

// RecordCount returns the number of records in the canonical section, or 0
// when the file is missing or unreadable.
func (s *CanonicalStore) RecordCount() int {
	snap, err := s.Load()
	if err != nil {
		return 0
	}
	return len(snap.Rows)
}

// ── Write ──────────────────────────────────────────────────

// Write replaces the canonical file with meta and records. The new content
// is written to a temporary sibling and renamed into place.
func (s *CanonicalStore) Write(ctx context.Context, meta etl.Metadata, records []etl.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeCanonical(s.section, meta, records)
	if err != nil {
		return err
	}
	return writeAtomic(s.fs, s.path, data)
}

// EncodeCanonical renders the canonical document with the metadata member
// first and the records under section.
func EncodeCanonical(section string, meta etl.Metadata, records []etl.Record) ([]byte, error) {
	if records == nil {
		records = []etl.Record{}
	}
	metaJSON, err := json.MarshalIndent(meta, "  ", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	recordsJSON, err := json.MarshalIndent(records, "  ", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal records: %w", err)
	}
	sectionKey, err := json.Marshal(section)
	if err != nil {
		return nil, fmt.Errorf("marshal section: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("{\n  \"" + MetadataKey + "\": ")
	buf.Write(metaJSON)
	buf.WriteString(",\n  ")
	buf.Write(sectionKey)
	buf.WriteString(": ")
	buf.Write(recordsJSON)
	buf.WriteString("\n}\n")
	return buf.Bytes(), nil
}

// ── Backup / Restore ───────────────────────────────────────

// BackupOutcome is the result of a best-effort backup. Err is set when a
// backup was attempted and failed; callers log it and carry on.
type BackupOutcome struct {
	Path    string // empty unless a backup now exists
	Skipped bool   // no canonical file to back up
	Err     error
}

// Backup copies the canonical file to BackupPath byte for byte.
func (s *CanonicalStore) Backup() BackupOutcome {
	if !s.Exists() {
		return BackupOutcome{Skipped: true}
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return BackupOutcome{Err: fmt.Errorf("read canonical: %w", err)}
	}
	if err := writeAtomic(s.fs, s.BackupPath(), data); err != nil {
		return BackupOutcome{Err: fmt.Errorf("write backup: %w", err)}
	}
	return BackupOutcome{Path: s.BackupPath()}
}

// RestoreOutcome is the result of a restore attempt.
type RestoreOutcome struct {
	Restored bool
	Err      error
}

// Restore copies the backup over the canonical file and removes the backup.
// Without a backup it does nothing.
func (s *CanonicalStore) Restore() RestoreOutcome {
	if !s.HasBackup() {
		return RestoreOutcome{}
	}
	data, err := afero.ReadFile(s.fs, s.BackupPath())
	if err != nil {
		return RestoreOutcome{Err: fmt.Errorf("read backup: %w", err)}
	}
	if err := writeAtomic(s.fs, s.path, data); err != nil {
		return RestoreOutcome{Err: fmt.Errorf("restore canonical: %w", err)}
	}
	if err := s.fs.Remove(s.BackupPath()); err != nil {
		return RestoreOutcome{Restored: true, Err: fmt.Errorf("remove backup: %w", err)}
	}
	return RestoreOutcome{Restored: true}
}

// DiscardBackup removes a backup left behind without restoring it.
func (s *CanonicalStore) DiscardBackup() error {
	if !s.HasBackup() {
		return nil
	}
	if err := s.fs.Remove(s.BackupPath()); err != nil {
		return fmt.Errorf("remove backup: %w", err)
	}
	return nil
}

// ── Helpers ────────────────────────────────────────────────

func writeAtomic(fsys afero.Fs, path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := afero.WriteFile(fsys, tmp, data, 0o644); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func fileExists(fsys afero.Fs, path string) bool {
	info, err := fsys.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
