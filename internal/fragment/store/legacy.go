package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/dshills/fragments/internal/project/vfs"
)

// Legacy layout: one file per (id, variant) named "<id>.<variant>.snippet".
const (
	LegacyFolder    = ".snippets"
	legacyExtension = ".snippet"
)

// ImportResult summarizes an ImportLegacy run.
type ImportResult struct {
	Imported int
	Skipped  []string
	Failed   map[string]error
}

// ParseLegacyName splits "<id>.<variant>.snippet" into id and variant.
// The variant is the last dot-separated component, so ids may contain dots.
func ParseLegacyName(name string) (id, variant string, ok bool) {
	base, found := strings.CutSuffix(name, legacyExtension)
	if !found {
		return "", "", false
	}
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 || dot == len(base)-1 {
		return "", "", false
	}
	return base[:dot], base[dot+1:], true
}

// ImportLegacy copies every legacy snippet file in dir into dst. A missing
// directory imports nothing. Per-file failures are collected and do not
// stop the import.
func ImportLegacy(ctx context.Context, fsys vfs.VFS, dir string, dst Store) (ImportResult, error) {
	res := ImportResult{Failed: map[string]error{}}

	entries, err := fsys.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("read legacy folder %s: %w", dir, err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if e.IsDir() {
			continue
		}
		id, variant, ok := ParseLegacyName(e.Name())
		if !ok {
			res.Skipped = append(res.Skipped, e.Name())
			continue
		}

		data, err := fsys.ReadFile(e.Path())
		if err != nil {
			res.Failed[e.Name()] = err
			continue
		}
		if err := dst.Save(ctx, id, variant, string(data)); err != nil {
			res.Failed[e.Name()] = err
			continue
		}
		res.Imported++
	}
	return res, nil
}
