package app

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"fixtures/internal/config"
	"fixtures/internal/dbclient"
	"fixtures/internal/domain"
	"fixtures/internal/etl/sources"
	"fixtures/internal/service"
)

// App wires configuration, logging and the pipeline for the CLI.
type App struct {
	Env   map[string]string
	Fs    afero.Fs
	Flags service.Flags
	Out   io.Writer
	Log   *logrus.Logger
}

// New creates an App over the process environment and the OS filesystem.
func New() *App {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	return &App{
		Env:   config.Environ(),
		Fs:    afero.NewOsFs(),
		Flags: service.EnvFlags{},
		Out:   os.Stdout,
		Log:   log,
	}
}

func (a *App) descriptor() (domain.SourceDescriptor, error) {
	return config.Resolve(a.Env, a.Fs)
}

// deps returns reader dependencies sharing one database connection.
func (a *App) deps(desc domain.SourceDescriptor) sources.Deps {
	return sources.Deps{
		Fs:  a.Fs,
		Log: a.Log,
		DB:  dbclient.NewManager(desc, a.Log),
	}
}

// restoreIfConverted puts the canonical file back when pre rewrote it, so
// long-running commands leave the working tree as they found it. A backup
// this process did not take is left alone.
func (a *App) restoreIfConverted(pre *service.Preprocessor) {
	if pre.Converted() {
		pre.RestoreCanonical(context.Background())
	}
}

// pipeline builds the preprocessor and provider for the configured
// source. The provider is bound after the caller decides whether to
// preprocess, so it is returned as a constructor.
func (a *App) pipeline() (*service.Preprocessor, func() (*service.Provider, error), error) {
	desc, err := a.descriptor()
	if err != nil {
		return nil, nil, err
	}
	deps := a.deps(desc)
	pre := service.NewPreprocessor(desc, a.Flags, deps)
	provider := func() (*service.Provider, error) {
		return service.NewProvider(desc, a.Flags.Load(), deps)
	}
	return pre, provider, nil
}
