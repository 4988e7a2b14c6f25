// Package collision derives the ranges a host should flag when a fragment
// id is not unique. It keeps no state: every call recomputes from one
// snapshot of the index.
package collision

import (
	"sort"
	"strings"

	"github.com/dshills/fragments/internal/fragment/index"
	"github.com/dshills/fragments/internal/fragment/marker"
)

// Reason explains why a span was flagged.
type Reason uint8

const (
	// DuplicateInFile means the id occurs at least twice in the same file.
	DuplicateInFile Reason = 1 << iota
	// CrossFile means the id occurs in at least two files.
	CrossFile
)

// Has reports whether r includes o.
func (r Reason) Has(o Reason) bool {
	return r&o == o
}

// String returns a human-readable description.
func (r Reason) String() string {
	var parts []string
	if r.Has(DuplicateInFile) {
		parts = append(parts, "duplicate in file")
	}
	if r.Has(CrossFile) {
		parts = append(parts, "shared across files")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// Collision is one flagged content span.
type Collision struct {
	ID     string
	Span   marker.Span
	Reason Reason

	// Files lists every file the id occurs in.
	Files []index.FileRef
}

// Source is the read side of the index used by the reporter.
type Source interface {
	AllEntries() index.Entries
}

// In returns the collisions in file, ordered by position.
func In(src Source, file index.FileRef) []Collision {
	return inEntries(src.AllEntries(), file)
}

// Spans returns just the highlight ranges for file.
func Spans(src Source, file index.FileRef) []marker.Span {
	cs := In(src, file)
	out := make([]marker.Span, len(cs))
	for i, c := range cs {
		out[i] = c.Span
	}
	return out
}

// All returns collisions for every file that has any.
func All(src Source) map[index.FileRef][]Collision {
	entries := src.AllEntries()

	files := make(map[index.FileRef]struct{})
	for _, byFile := range entries {
		for file := range byFile {
			files[file] = struct{}{}
		}
	}

	out := make(map[index.FileRef][]Collision)
	for file := range files {
		if cs := inEntries(entries, file); len(cs) > 0 {
			out[file] = cs
		}
	}
	return out
}

func inEntries(entries index.Entries, file index.FileRef) []Collision {
	var out []Collision
	for id, byFile := range entries {
		spans := byFile[file]
		if len(spans) == 0 {
			continue
		}

		var reason Reason
		if len(spans) > 1 {
			reason |= DuplicateInFile
		}
		if len(byFile) > 1 {
			reason |= CrossFile
		}
		if reason == 0 {
			continue
		}

		files := make([]index.FileRef, 0, len(byFile))
		for f := range byFile {
			files = append(files, f)
		}
		sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })

		for _, span := range spans {
			out = append(out, Collision{ID: id, Span: span, Reason: reason, Files: files})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Span.Start < out[j].Span.Start
	})
	return out
}
