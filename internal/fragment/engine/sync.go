package engine

import (
	"context"
	"strings"

	"github.com/dshills/fragments/internal/fragment/index"
	"github.com/dshills/fragments/internal/fragment/marker"
	"github.com/dshills/fragments/internal/fragment/store"
)

// maxIDAttempts bounds id generation in Insert.
const maxIDAttempts = 32

// CaptureResult reports the outcome of Capture.
type CaptureResult struct {
	Variant string

	// Saved lists saved ids in order of appearance.
	Saved []string

	// Unchanged lists ids CaptureEdits left alone.
	Unchanged []string

	// Failed maps ids to their store errors.
	Failed map[string]error
}

// ApplyResult reports the outcome of Apply.
type ApplyResult struct {
	Variant string

	// Text is the rewritten buffer content.
	Text string

	// Replaced lists ids whose content came from the store.
	Replaced []string

	// Kept lists ids with no stored content for the variant; their
	// current content was left in place.
	Kept []string

	// Failed maps ids whose load failed to the error. Their current
	// content was left in place.
	Failed map[string]error
}

// Capture saves the content of every region in text under the active
// variant. A failed save does not stop the others. The index entries for
// file are rebuilt even when some saves fail; the returned error is then a
// *PartialError.
func (w *Workspace) Capture(ctx context.Context, file index.FileRef, text string) (CaptureResult, error) {
	return w.capture(ctx, file, text, w.Variant())
}

// CaptureVariant is Capture under an explicit variant. The active variant
// is not changed.
func (w *Workspace) CaptureVariant(ctx context.Context, file index.FileRef, text, variant string) (CaptureResult, error) {
	if err := w.checkVariant(variant); err != nil {
		return CaptureResult{}, err
	}
	return w.capture(ctx, file, text, variant)
}

func (w *Workspace) capture(ctx context.Context, file index.FileRef, text, variant string) (CaptureResult, error) {
	occs := marker.ParseAll(text)
	res := CaptureResult{Variant: variant, Failed: map[string]error{}}

	for _, occ := range occs {
		if err := w.store.Save(ctx, occ.ID, variant, occ.Content.Of(text)); err != nil {
			w.log.Warn().Err(err).Str("file", file.String()).Str("id", occ.ID).Msg("save failed")
			res.Failed[occ.ID] = err
			continue
		}
		res.Saved = append(res.Saved, occ.ID)
	}

	w.index.ReindexOccurrences(file, occs)

	w.log.Debug().
		Str("file", file.String()).
		Str("variant", variant).
		Int("saved", len(res.Saved)).
		Int("failed", len(res.Failed)).
		Msg("captured")

	if len(res.Failed) > 0 {
		return res, &PartialError{Op: "capture", File: file, Failed: res.Failed}
	}
	return res, nil
}

// CaptureEdits is Capture for saves nobody asked for, such as a file
// watcher reacting to writes. A region is saved under the active variant
// only when its content is an edit: it differs from the variant's stored
// version or, when the variant has none yet, from every stored version of
// the id. Text installed by Apply therefore never overwrites a variant.
func (w *Workspace) CaptureEdits(ctx context.Context, file index.FileRef, text string) (CaptureResult, error) {
	variant := w.Variant()
	occs := marker.ParseAll(text)
	res := CaptureResult{Variant: variant, Failed: map[string]error{}}

	for _, occ := range occs {
		content := occ.Content.Of(text)
		rec, ok, err := w.store.Record(ctx, occ.ID)
		if err == nil && ok && !isEdit(rec, variant, content) {
			res.Unchanged = append(res.Unchanged, occ.ID)
			continue
		}
		if err == nil {
			err = w.store.Save(ctx, occ.ID, variant, content)
		}
		if err != nil {
			w.log.Warn().Err(err).Str("file", file.String()).Str("id", occ.ID).Msg("save failed")
			res.Failed[occ.ID] = err
			continue
		}
		res.Saved = append(res.Saved, occ.ID)
	}

	w.index.ReindexOccurrences(file, occs)

	if len(res.Failed) > 0 {
		return res, &PartialError{Op: "capture", File: file, Failed: res.Failed}
	}
	return res, nil
}

func isEdit(rec store.Record, variant, content string) bool {
	if v, ok := rec.Version(variant); ok {
		return v.Code != content
	}
	for _, v := range rec.Versions {
		if v.Code == content {
			return false
		}
	}
	return true
}

// Apply rewrites text so every region holds the stored content of target.
// Regions without stored content keep their current content. Markers are
// re-emitted in canonical form. On return target is the active variant
// and file is reindexed against the new text.
//
// Load failures are reported through a *PartialError alongside a valid
// result.
func (w *Workspace) Apply(ctx context.Context, file index.FileRef, text, target string) (ApplyResult, error) {
	if err := w.checkVariant(target); err != nil {
		return ApplyResult{Text: text}, err
	}

	res := ApplyResult{Variant: target, Failed: map[string]error{}}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for occ := range marker.Parse(text) {
		b.WriteString(text[last:occ.Full.Start])
		b.WriteString(marker.StartMarker(occ.ID, occ.LineEnding))

		content, ok, err := w.store.Load(ctx, occ.ID, target)
		switch {
		case err != nil:
			w.log.Warn().Err(err).Str("file", file.String()).Str("id", occ.ID).Msg("load failed")
			res.Failed[occ.ID] = err
			content = occ.Content.Of(text)
		case ok:
			res.Replaced = append(res.Replaced, occ.ID)
		default:
			res.Kept = append(res.Kept, occ.ID)
			content = occ.Content.Of(text)
		}

		b.WriteString(content)
		b.WriteString(marker.EndMarker())
		last = occ.Full.End
	}
	b.WriteString(text[last:])
	res.Text = b.String()

	w.setActive(target)
	w.index.Reindex(file, res.Text)

	w.log.Debug().
		Str("file", file.String()).
		Str("variant", target).
		Int("replaced", len(res.Replaced)).
		Int("kept", len(res.Kept)).
		Msg("applied")

	if len(res.Failed) > 0 {
		return res, &PartialError{Op: "apply", File: file, Failed: res.Failed}
	}
	return res, nil
}

// ApplyActive applies the active variant, as done when a buffer is opened.
func (w *Workspace) ApplyActive(ctx context.Context, file index.FileRef, text string) (ApplyResult, error) {
	return w.Apply(ctx, file, text, w.Variant())
}

// Delete removes the full span of the region containing offset. The line
// break after the end sentinel stays. The store is not touched.
func (w *Workspace) Delete(file index.FileRef, text string, offset int) (string, marker.Occurrence, error) {
	if offset < 0 || offset > len(text) {
		return text, marker.Occurrence{}, &ActionError{Op: "delete", File: file, Offset: offset, Err: ErrOffset}
	}
	occ, ok := marker.Find(text, offset)
	if !ok {
		return text, marker.Occurrence{}, &ActionError{Op: "delete", File: file, Offset: offset, Err: ErrNotFound}
	}

	out := text[:occ.Full.Start] + text[occ.Full.End:]

	w.index.ForgetOccurrence(occ.ID, file)
	w.index.Reindex(file, out)

	w.log.Debug().Str("file", file.String()).Str("id", occ.ID).Msg("fragment deleted")
	return out, occ, nil
}

// DeleteAndForget deletes the region at offset and removes its unit from
// the store.
func (w *Workspace) DeleteAndForget(ctx context.Context, file index.FileRef, text string, offset int) (string, marker.Occurrence, error) {
	out, occ, err := w.Delete(file, text, offset)
	if err != nil {
		return text, occ, err
	}
	if err := w.store.Forget(ctx, occ.ID); err != nil {
		return out, occ, err
	}
	return out, occ, nil
}

// Insert places an empty region with a fresh id at offset and returns the
// new text and id. Offsets inside a region's content or inside either
// sentinel are rejected. The line ending matches the text's.
func (w *Workspace) Insert(file index.FileRef, text string, offset int) (string, string, error) {
	if offset < 0 || offset > len(text) {
		return text, "", &ActionError{Op: "insert", File: file, Offset: offset, Err: ErrOffset}
	}

	occs := marker.ParseAll(text)
	inText := make(map[string]bool, len(occs))
	for _, occ := range occs {
		if occ.ContentContains(offset) || (offset > occ.Full.Start && offset < occ.Full.End) {
			return text, "", &ActionError{Op: "insert", File: file, Offset: offset, Err: ErrOverlap}
		}
		inText[occ.ID] = true
	}

	id, err := w.freshID(inText)
	if err != nil {
		return text, "", &ActionError{Op: "insert", File: file, Offset: offset, Err: err}
	}

	lineEnding := marker.DefaultLineEnding
	if strings.Contains(text, "\r\n") {
		lineEnding = "\r\n"
	}
	region := marker.Region(id, "", lineEnding) + lineEnding
	out := text[:offset] + region + text[offset:]

	w.index.Reindex(file, out)

	w.log.Debug().Str("file", file.String()).Str("id", id).Int("offset", offset).Msg("fragment inserted")
	return out, id, nil
}

func (w *Workspace) freshID(inText map[string]bool) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := w.newID()
		if !marker.ValidID(id) || inText[id] || w.index.Has(id) {
			continue
		}
		return id, nil
	}
	return "", ErrIDExhausted
}
