package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/dshills/fragments/internal/fragment/collision"
	"github.com/dshills/fragments/internal/fragment/engine"
	"github.com/dshills/fragments/internal/fragment/index"
	"github.com/dshills/fragments/internal/fragment/marker"
	"github.com/dshills/fragments/internal/fragment/store"
	"github.com/dshills/fragments/internal/project"
)

// FileReport describes what an operation did to one file.
type FileReport struct {
	File index.FileRef `json:"file"`

	// IDs lists the fragment ids found, in order of appearance.
	IDs []string `json:"ids,omitempty"`

	Saved    []string          `json:"saved,omitempty"`
	Replaced []string          `json:"replaced,omitempty"`
	Kept     []string          `json:"kept,omitempty"`
	Failed   map[string]string `json:"failed,omitempty"`

	// Changed is set when the file was rewritten.
	Changed bool `json:"changed,omitempty"`

	// Skipped holds the reason a file was not processed.
	Skipped string `json:"skipped,omitempty"`
}

// CollisionReport is one flagged region with its position.
type CollisionReport struct {
	File   index.FileRef    `json:"file"`
	ID     string           `json:"id"`
	Pos    project.Position `json:"pos"`
	Span   marker.Span      `json:"span"`
	Reason string           `json:"reason"`
	Files  []index.FileRef  `json:"files"`
}

// Status summarizes the workspace.
type Status struct {
	Root       string   `json:"root"`
	Variant    string   `json:"variant"`
	Label      string   `json:"label"`
	Variants   []string `json:"variants"`
	Files      int      `json:"files"`
	Fragments  int      `json:"fragments"`
	Records    int      `json:"records"`
	Collisions int      `json:"collisions"`
	Config     []string `json:"config"`
}

// readFunc is called with each readable file of an operation.
type readFunc func(buf *project.FileBuffer, text string, rep *FileReport) error

// eachFile resolves paths to the scan set and calls fn for every file
// whose text can be read. Unreadable files are reported as skipped.
func (app *Application) eachFile(ctx context.Context, paths []string, fn readFunc) ([]FileReport, error) {
	if err := app.checkOpen(); err != nil {
		return nil, err
	}
	files, err := app.project.Files(ctx, paths...)
	if err != nil {
		return nil, err
	}

	reports := make([]FileReport, 0, len(files))
	var errs []error
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		buf, err := app.project.Buffer(path)
		if err != nil {
			return reports, err
		}
		rep := FileReport{File: buf.Identity()}
		text, err := buf.Text()
		if err != nil {
			if errors.Is(err, project.ErrBinaryFile) || errors.Is(err, project.ErrFileTooLarge) || project.IsNotFound(err) {
				rep.Skipped = err.Error()
				reports = append(reports, rep)
				continue
			}
			return reports, err
		}
		if err := fn(buf, text, &rep); err != nil {
			errs = append(errs, err)
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}

// Scan reindexes the given paths, or the whole workspace.
func (app *Application) Scan(ctx context.Context, paths ...string) ([]FileReport, error) {
	return app.eachFile(ctx, paths, func(buf *project.FileBuffer, text string, rep *FileReport) error {
		app.workspace.Reindex(buf.Identity(), text)
		rep.IDs = idsOf(text)
		return nil
	})
}

// Capture saves every region of the given files under variant, or the
// active variant when variant is empty. Store failures are returned as
// errors matching engine.ErrPartial; the other fragments are still saved.
func (app *Application) Capture(ctx context.Context, variant string, paths ...string) ([]FileReport, error) {
	if variant == "" {
		variant = app.workspace.Variant()
	}
	return app.eachFile(ctx, paths, func(buf *project.FileBuffer, text string, rep *FileReport) error {
		res, err := app.workspace.CaptureVariant(ctx, buf.Identity(), text, variant)
		rep.IDs = idsOf(text)
		rep.Saved = res.Saved
		rep.Failed = errorStrings(res.Failed)
		return err
	})
}

// Apply rewrites the given files to variant and makes it the active,
// persisted variant. Files whose text does not change are not written.
//
// The variant is persisted before any file is written, so a watcher in
// another process that sees the writes also sees the new variant. When
// files needed rewriting and none could be written, the previous variant
// is restored.
func (app *Application) Apply(ctx context.Context, variant string, paths ...string) ([]FileReport, error) {
	if !slices.Contains(app.workspace.Variants(), variant) {
		return nil, fmt.Errorf("%w %q", engine.ErrUnknownVariant, variant)
	}
	previous := app.workspace.Variant()
	if err := app.SetVariant(variant); err != nil {
		return nil, err
	}

	var pending, written int
	reports, err := app.eachFile(ctx, paths, func(buf *project.FileBuffer, text string, rep *FileReport) error {
		res, err := app.workspace.Apply(ctx, buf.Identity(), text, variant)
		rep.IDs = idsOf(text)
		rep.Replaced = res.Replaced
		rep.Kept = res.Kept
		rep.Failed = errorStrings(res.Failed)
		if res.Text != text {
			pending++
			if werr := buf.SetText(res.Text); werr != nil {
				app.workspace.Reindex(buf.Identity(), text)
				return NewOperationError("apply", buf.Path(), werr)
			}
			written++
			rep.Changed = true
		}
		return err
	})

	if pending > 0 && written == 0 {
		if serr := app.SetVariant(previous); serr != nil {
			err = errors.Join(err, serr)
		}
	}
	return reports, err
}

// Toggle captures the given files under the active variant and then
// applies the next variant in the cycle. When any fragment fails to save
// the switch is not made and the error matches ErrCaptureIncomplete.
func (app *Application) Toggle(ctx context.Context, paths ...string) (string, []FileReport, error) {
	current := app.workspace.Variant()
	captured, err := app.Capture(ctx, current, paths...)
	if err != nil {
		return current, captured, errors.Join(ErrCaptureIncomplete, err)
	}
	next := app.workspace.Next()
	reports, err := app.Apply(ctx, next, paths...)
	app.log.Info().Str("from", current).Str("to", next).Int("files", len(reports)).Msg("variant toggled")
	return next, reports, err
}

// Check indexes the whole workspace and reports collisions in the given
// paths, or everywhere when no path is given.
func (app *Application) Check(ctx context.Context, paths ...string) ([]CollisionReport, error) {
	if _, err := app.Scan(ctx); err != nil {
		return nil, err
	}

	var only map[index.FileRef]bool
	if len(paths) > 0 {
		files, err := app.project.Files(ctx, paths...)
		if err != nil {
			return nil, err
		}
		only = make(map[index.FileRef]bool, len(files))
		for _, f := range files {
			ref, err := app.project.Ref(f)
			if err != nil {
				return nil, err
			}
			only[ref] = true
		}
	}

	var out []CollisionReport
	for file, cs := range collision.All(app.workspace.Index()) {
		if only != nil && !only[file] {
			continue
		}
		reps, err := app.collisionReports(file, cs)
		if err != nil {
			return nil, err
		}
		out = append(out, reps...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Span.Start < out[j].Span.Start
	})
	return out, nil
}

// FileCollisions reports the collisions currently indexed for one file.
func (app *Application) FileCollisions(file index.FileRef) ([]CollisionReport, error) {
	return app.collisionReports(file, app.workspace.Collisions(file))
}

func (app *Application) collisionReports(file index.FileRef, cs []collision.Collision) ([]CollisionReport, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	buf, err := app.project.Buffer(app.project.Path(file))
	if err != nil {
		return nil, err
	}
	text, err := buf.Text()
	if err != nil {
		return nil, err
	}
	out := make([]CollisionReport, 0, len(cs))
	for _, c := range cs {
		out = append(out, CollisionReport{
			File:   file,
			ID:     c.ID,
			Pos:    project.PositionAt(text, c.Span.Start),
			Span:   c.Span,
			Reason: c.Reason.String(),
			Files:  c.Files,
		})
	}
	return out, nil
}

// Status scans the workspace and summarizes it.
func (app *Application) Status(ctx context.Context) (Status, error) {
	reports, err := app.Scan(ctx)
	if err != nil {
		return Status{}, err
	}
	ids, err := app.store.IDs(ctx)
	if err != nil {
		return Status{}, err
	}
	ws := app.workspace
	st := Status{
		Root:      app.Root(),
		Variant:   ws.Variant(),
		Label:     ws.Label(),
		Variants:  ws.Variants(),
		Files:     len(ws.Index().Files()),
		Fragments: ws.Index().Count(),
		Records:   len(ids),
		Config:    app.config.Sources(),
	}
	for _, rep := range reports {
		st.Collisions += len(ws.Collisions(rep.File))
	}
	return st, nil
}

// Insert adds an empty region at loc (a byte offset or line:col) in the
// file at path and returns the new id.
func (app *Application) Insert(_ context.Context, path, loc string) (string, project.Position, error) {
	if err := app.checkOpen(); err != nil {
		return "", project.Position{}, err
	}
	buf, text, err := app.readBuffer(path)
	if err != nil {
		return "", project.Position{}, err
	}
	offset, err := project.ParseLocation(text, loc)
	if err != nil {
		return "", project.Position{}, err
	}
	out, id, err := app.workspace.Insert(buf.Identity(), text, offset)
	if err != nil {
		return "", project.Position{}, err
	}
	if err := buf.SetText(out); err != nil {
		return "", project.Position{}, NewOperationError("insert", buf.Path(), err)
	}
	return id, project.PositionAt(out, offset), nil
}

// Delete removes the region at loc in the file at path. With forget the
// stored unit is deleted too.
func (app *Application) Delete(ctx context.Context, path, loc string, forget bool) (string, error) {
	if err := app.checkOpen(); err != nil {
		return "", err
	}
	buf, text, err := app.readBuffer(path)
	if err != nil {
		return "", err
	}
	offset, err := project.ParseLocation(text, loc)
	if err != nil {
		return "", err
	}

	var (
		out string
		occ marker.Occurrence
	)
	if forget {
		out, occ, err = app.workspace.DeleteAndForget(ctx, buf.Identity(), text, offset)
	} else {
		out, occ, err = app.workspace.Delete(buf.Identity(), text, offset)
	}
	if out != text {
		if werr := buf.SetText(out); werr != nil {
			return occ.ID, NewOperationError("delete", buf.Path(), werr)
		}
	}
	return occ.ID, err
}

// Forget deletes the stored unit of id.
func (app *Application) Forget(ctx context.Context, id string) error {
	if err := app.checkOpen(); err != nil {
		return err
	}
	return app.store.Forget(ctx, id)
}

// Show returns the stored unit of id.
func (app *Application) Show(ctx context.Context, id string) (store.Record, bool, error) {
	if err := app.checkOpen(); err != nil {
		return store.Record{}, false, err
	}
	return app.store.Record(ctx, id)
}

// ImportLegacy copies snippets from dir, or the configured legacy folder,
// into the store.
func (app *Application) ImportLegacy(ctx context.Context, dir string) (store.ImportResult, error) {
	if err := app.checkOpen(); err != nil {
		return store.ImportResult{}, err
	}
	if dir == "" {
		dir = app.config.Legacy().Folder
	}
	return store.ImportLegacy(ctx, app.fs, app.project.Abs(dir), app.store)
}

func (app *Application) readBuffer(path string) (*project.FileBuffer, string, error) {
	buf, err := app.project.Buffer(path)
	if err != nil {
		return nil, "", err
	}
	text, err := buf.Text()
	if err != nil {
		return nil, "", err
	}
	return buf, text, nil
}

func idsOf(text string) []string {
	var ids []string
	for occ := range marker.Parse(text) {
		ids = append(ids, occ.ID)
	}
	return ids
}

func errorStrings(m map[string]error) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for id, err := range m {
		out[id] = err.Error()
	}
	return out
}
