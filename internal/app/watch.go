package app

import (
	"context"
	"errors"

	"github.com/dshills/fragments/internal/fragment/index"
	"github.com/dshills/fragments/internal/project"
	"github.com/dshills/fragments/internal/project/watcher"
)

// WatchOptions controls Watch.
type WatchOptions struct {
	// Capture saves fragments under the active variant whenever a file
	// is written.
	Capture bool

	// OnCollisions is called after a file is reindexed with the
	// collisions now flagged in it, possibly none.
	OnCollisions func(file index.FileRef, reports []CollisionReport)
}

// Watch indexes the workspace and keeps the index current until ctx is
// done.
func (app *Application) Watch(ctx context.Context, opts WatchOptions) error {
	if _, err := app.Scan(ctx); err != nil {
		return err
	}

	log := ComponentLogger(app.log, "watch")
	fsw, err := watcher.NewFSWatcher(
		watcher.WithRoot(app.Root()),
		watcher.WithIgnorePatterns(app.project.IgnorePatterns()),
		watcher.WithLogger(app.log),
	)
	if err != nil {
		return &InitError{Component: "watcher", Err: err}
	}
	w := watcher.NewDebouncedWatcher(fsw, app.config.Watch().Debounce)
	defer w.Close()

	if err := w.WatchRecursive(app.Root()); err != nil {
		return &InitError{Component: "watcher", Err: err}
	}

	n := NewNotifier(app.project, log)
	app.Wire(ctx, n, opts)

	log.Info().Str("root", app.Root()).Str("variant", app.workspace.Variant()).Msg("watching")
	err = n.Run(ctx, w)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Wire connects buffer notifications to the workspace: opened and
// changed buffers are reindexed, saved buffers are captured when
// opts.Capture is set, and removed files leave the index.
//
// Captures first pick up a variant persisted by another process and save
// only edited regions, so files rewritten by an apply elsewhere are not
// captured under the wrong variant.
func (app *Application) Wire(ctx context.Context, n *Notifier, opts WatchOptions) {
	log := ComponentLogger(app.log, "watch")

	report := func(file index.FileRef) {
		if opts.OnCollisions == nil {
			return
		}
		reps, err := app.FileCollisions(file)
		if err != nil {
			log.Warn().Err(err).Str("file", file.String()).Msg("collision report failed")
			return
		}
		opts.OnCollisions(file, reps)
	}

	reindex := func(buf project.TextBuffer) {
		text, err := buf.Text()
		if err != nil {
			log.Debug().Err(err).Str("file", buf.Identity().String()).Msg("skipping unreadable file")
			return
		}
		app.workspace.Reindex(buf.Identity(), text)
		report(buf.Identity())
	}
	n.OnOpen(reindex)
	n.OnChange(reindex)

	if opts.Capture {
		n.OnSave(func(buf project.TextBuffer) {
			text, err := buf.Text()
			if err != nil {
				return
			}
			app.reloadVariant()
			res, err := app.workspace.CaptureEdits(ctx, buf.Identity(), text)
			if err != nil {
				log.Warn().Err(err).Str("file", buf.Identity().String()).Msg("capture failed")
				return
			}
			if len(res.Saved) > 0 {
				log.Info().Str("file", buf.Identity().String()).Strs("saved", res.Saved).Str("variant", res.Variant).Msg("captured")
			}
		})
	}

	n.OnRemove(func(file index.FileRef) {
		app.workspace.Forget(file)
		log.Debug().Str("file", file.String()).Msg("file removed")
		report(file)
	})
}
