package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/fragments/internal/config"
	"github.com/dshills/fragments/internal/fragment/engine"
	"github.com/dshills/fragments/internal/fragment/store"
	"github.com/dshills/fragments/internal/project"
	"github.com/dshills/fragments/internal/project/vfs"
)

// bootstrapper handles component initialization with cleanup on failure.
type bootstrapper struct {
	app  *Application
	opts Options
	root string
}

func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{app: app, opts: opts}
}

// bootstrap initializes all components in dependency order. On failure
// the components already started are released.
func (b *bootstrapper) bootstrap(ctx context.Context) error {
	steps := []func(context.Context) error{
		b.initRoot,
		b.initConfig,
		b.initLogger,
		b.initProject,
		b.initStore,
		b.initWorkspace,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			b.cleanup()
			return err
		}
	}
	b.app.log.Debug().
		Str("root", b.root).
		Strs("config", b.app.config.Sources()).
		Str("variant", b.app.workspace.Variant()).
		Msg("workspace ready")
	return nil
}

func (b *bootstrapper) cleanup() {
	if b.app.closer != nil {
		_ = b.app.closer.Close()
		b.app.closer = nil
	}
}

func (b *bootstrapper) initRoot(_ context.Context) error {
	if b.opts.FS != nil {
		b.app.fs = b.opts.FS
		b.root = b.opts.WorkspacePath
		if b.root == "" {
			b.root = "/"
		}
		return nil
	}

	b.app.fs = vfs.NewOSFS()
	if b.opts.WorkspacePath != "" {
		abs, err := filepath.Abs(b.opts.WorkspacePath)
		if err != nil {
			return &InitError{Component: "workspace", Err: err}
		}
		b.root = abs
		return nil
	}
	root, err := project.FindRoot(".")
	if err != nil {
		return &InitError{Component: "workspace", Err: err}
	}
	b.root = root
	return nil
}

func (b *bootstrapper) initConfig(ctx context.Context) error {
	opts := []config.Option{
		config.WithFS(b.app.fs),
		config.WithRoot(b.root),
	}
	if b.opts.ConfigPath != "" {
		if !b.app.fs.Exists(b.opts.ConfigPath) {
			return &InitError{Component: "config", Err: fmt.Errorf("%w: %s", project.ErrNotFound, b.opts.ConfigPath)}
		}
		opts = append(opts, config.WithFile(b.opts.ConfigPath))
	}
	cfg := config.New(opts...)
	for path, value := range b.opts.Settings {
		if err := cfg.Set(path, value); err != nil {
			return &InitError{Component: "config", Err: err}
		}
	}
	if err := cfg.Load(ctx); err != nil {
		return &InitError{Component: "config", Err: err}
	}
	if b.opts.LogLevel != "" {
		_ = cfg.Set("log.level", b.opts.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}
	b.app.config = cfg
	return nil
}

func (b *bootstrapper) initLogger(_ context.Context) error {
	lc := DefaultLoggerConfig()
	lc.Level = b.app.config.Logging().Level
	lc.JSON = b.opts.JSONLogs
	if b.opts.LogOutput != nil {
		lc.Output = b.opts.LogOutput
	}
	b.app.log = NewLogger(lc)
	return nil
}

func (b *bootstrapper) initProject(_ context.Context) error {
	scan := b.app.config.Scan()
	st := b.app.config.Storage()
	legacy := b.app.config.Legacy()

	ignore := append([]string(nil), scan.Ignore...)
	for _, folder := range []string{st.Folder, legacy.Folder} {
		if folder != "" && !filepath.IsAbs(folder) {
			ignore = append(ignore, "/"+strings.Trim(filepath.ToSlash(folder), "/")+"/")
		}
	}

	p, err := project.Open(b.root,
		project.WithVFS(b.app.fs),
		project.WithConfig(project.Config{
			Include:      scan.Include,
			Ignore:       ignore,
			MaxFileSize:  scan.MaxFileSize,
			UseGitignore: true,
		}),
	)
	if err != nil {
		return &InitError{Component: "project", Err: err}
	}
	b.app.project = p
	return nil
}

func (b *bootstrapper) initStore(ctx context.Context) error {
	st := b.app.config.Storage()
	switch st.Backend {
	case config.BackendRedis:
		rs, err := store.NewRedisStore(ctx, st.RedisURL, st.RedisPrefix)
		if err != nil {
			return &InitError{Component: "store", Err: err}
		}
		b.app.store = rs
		b.app.closer = rs
	default:
		fs, err := store.NewFileStore(b.app.fs, b.app.StorageDir(), store.WithPattern(st.Pattern))
		if err != nil {
			return &InitError{Component: "store", Err: err}
		}
		b.app.store = fs
	}
	return nil
}

func (b *bootstrapper) initWorkspace(_ context.Context) error {
	vc := b.app.config.Variants()
	ws := engine.NewWorkspace(b.app.store,
		engine.WithVariants(vc.Names...),
		engine.WithLabels(vc.Labels),
		engine.WithLogger(ComponentLogger(b.app.log, "engine")),
	)
	if err := ws.SetVariant(vc.Default); err != nil {
		return &InitError{Component: "workspace", Err: err}
	}

	state, err := LoadState(b.app.fs, b.app.StatePath())
	if err != nil {
		b.app.log.Warn().Err(err).Msg("ignoring unreadable state file")
	} else if state.Variant != "" {
		if err := ws.SetVariant(state.Variant); err != nil {
			b.app.log.Warn().Str("variant", state.Variant).Msg("saved variant is no longer configured")
		}
	}

	if b.opts.Variant != "" {
		if err := ws.SetVariant(b.opts.Variant); err != nil {
			return &InitError{Component: "workspace", Err: err}
		}
	}
	b.app.workspace = ws
	return nil
}
