package app

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/fragments/internal/config"
	"github.com/dshills/fragments/internal/fragment/engine"
	"github.com/dshills/fragments/internal/fragment/store"
	"github.com/dshills/fragments/internal/project"
	"github.com/dshills/fragments/internal/project/vfs"
)

// Application is the central coordinator for a fragments workspace.
type Application struct {
	mu sync.Mutex

	log    zerolog.Logger
	config *config.Config

	fs        vfs.VFS
	project   *project.Project
	store     store.Store
	closer    io.Closer
	workspace *engine.Workspace

	closed atomic.Bool
	opts   Options
}

// Options configures the application.
type Options struct {
	// WorkspacePath is the workspace directory. Empty means the git
	// worktree enclosing the current directory, or the current directory.
	WorkspacePath string

	// ConfigPath is an explicit config file layered above the workspace
	// config files.
	ConfigPath string

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// JSONLogs forces JSON log lines.
	JSONLogs bool

	// Variant overrides the active variant for this run without
	// persisting it.
	Variant string

	// FS replaces the OS file system. The workspace path is used as is.
	FS vfs.VFS

	// Settings are config overrides applied above every other layer.
	Settings map[string]any
}

// New creates an Application and initializes every component.
func New(ctx context.Context, opts Options) (*Application, error) {
	app := &Application{opts: opts, log: zerolog.Nop()}
	if err := newBootstrapper(app, opts).bootstrap(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

// Config returns the loaded configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Project returns the workspace file set.
func (app *Application) Project() *project.Project {
	return app.project
}

// Store returns the fragment store.
func (app *Application) Store() store.Store {
	return app.store
}

// Workspace returns the engine workspace.
func (app *Application) Workspace() *engine.Workspace {
	return app.workspace
}

// Root returns the workspace root directory.
func (app *Application) Root() string {
	return app.project.Root()
}

// StatePath returns the location of the state file.
func (app *Application) StatePath() string {
	return app.fs.Join(app.StorageDir(), StateFile)
}

// StorageDir returns the storage folder, resolved against the root.
func (app *Application) StorageDir() string {
	folder := app.config.Storage().Folder
	if filepath.IsAbs(folder) {
		return folder
	}
	return app.fs.Join(app.project.Root(), filepath.FromSlash(folder))
}

// SetVariant makes v the active variant and persists it.
func (app *Application) SetVariant(v string) error {
	if err := app.workspace.SetVariant(v); err != nil {
		return err
	}
	return app.saveState()
}

// reloadVariant adopts the variant another process persisted, so a long
// running watcher captures under the variant the files now show.
func (app *Application) reloadVariant() {
	st, err := LoadState(app.fs, app.StatePath())
	if err != nil {
		app.log.Warn().Err(err).Msg("ignoring unreadable state file")
		return
	}
	current := app.workspace.Variant()
	if st.Variant == "" || st.Variant == current {
		return
	}
	if err := app.workspace.SetVariant(st.Variant); err != nil {
		app.log.Warn().Str("variant", st.Variant).Msg("saved variant is no longer configured")
		return
	}
	app.log.Info().Str("from", current).Str("to", st.Variant).Msg("variant changed by another process")
}

func (app *Application) saveState() error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return SaveState(app.fs, app.StatePath(), State{
		Variant:   app.workspace.Variant(),
		UpdatedAt: time.Now().UTC(),
	})
}

// Close releases the store connection. It is safe to call twice.
func (app *Application) Close() error {
	if !app.closed.CompareAndSwap(false, true) {
		return nil
	}
	if app.closer == nil {
		return nil
	}
	err := app.closer.Close()
	app.logComponentError("store", err)
	return err
}

func (app *Application) checkOpen() error {
	if app.closed.Load() {
		return ErrClosed
	}
	return nil
}
