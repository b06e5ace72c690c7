package service

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"fixtures/internal/domain"
)

// Environment variables carrying the process flag to this process and to
// any worker process started after preprocessing.
const (
	EnvPreprocessed   = "TEST_DATA_PREPROCESSED"
	EnvOriginalSource = "TEST_DATA_ORIGINAL_SOURCE"
)

// ProcessFlag records that the canonical file was regenerated from another
// source in this process. It is set once and never cleared.
type ProcessFlag struct {
	Preprocessed   bool
	OriginalSource domain.SourceKind
}

// FlagFromEnv reads the flag out of an environment snapshot.
func FlagFromEnv(env map[string]string) ProcessFlag {
	on := strings.EqualFold(strings.TrimSpace(env[EnvPreprocessed]), "true")
	if !on {
		return ProcessFlag{}
	}
	kind, _ := domain.ParseSourceKind(env[EnvOriginalSource])
	return ProcessFlag{Preprocessed: true, OriginalSource: kind}
}

// Env renders the flag as environment variables for a child process.
func (f ProcessFlag) Env() map[string]string {
	if !f.Preprocessed {
		return map[string]string{}
	}
	return map[string]string{
		EnvPreprocessed:   "true",
		EnvOriginalSource: string(f.OriginalSource),
	}
}

// Flags stores the process flag.
type Flags interface {
	Load() ProcessFlag
	Mark(original domain.SourceKind) error
}

// EnvFlags keeps the flag in the process environment so child processes
// inherit it.
type EnvFlags struct{}

func (EnvFlags) Load() ProcessFlag {
	return FlagFromEnv(map[string]string{
		EnvPreprocessed:   os.Getenv(EnvPreprocessed),
		EnvOriginalSource: os.Getenv(EnvOriginalSource),
	})
}

func (EnvFlags) Mark(original domain.SourceKind) error {
	if err := os.Setenv(EnvPreprocessed, "true"); err != nil {
		return fmt.Errorf("set %s: %w", EnvPreprocessed, err)
	}
	if err := os.Setenv(EnvOriginalSource, string(original)); err != nil {
		return fmt.Errorf("set %s: %w", EnvOriginalSource, err)
	}
	return nil
}

// MemoryFlags keeps the flag in memory. Tests use it to run several
// pipelines in one process.
type MemoryFlags struct {
	mu   sync.Mutex
	flag ProcessFlag
}

func (m *MemoryFlags) Load() ProcessFlag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flag
}

func (m *MemoryFlags) Mark(original domain.SourceKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flag = ProcessFlag{Preprocessed: true, OriginalSource: original}
	return nil
}
