// Package index tracks where fragment ids occur across files.
//
// The index maps id -> file -> ordered content spans. It is rebuilt per
// file from parser output and is purely in-memory: offsets are only valid
// until the next edit of a file, so nothing is persisted.
//
// All operations take a single lock over the whole structure. Collision
// detection needs a consistent view across ids, so per-bucket locking is
// not used.
package index

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/dshills/fragments/internal/fragment/marker"
)

// FileRef identifies a file. The CLI uses cleaned paths.
type FileRef string

// NewFileRef returns a FileRef for a file system path.
func NewFileRef(path string) FileRef {
	return FileRef(filepath.Clean(path))
}

// String returns the reference as a string.
func (f FileRef) String() string {
	return string(f)
}

// Entries is a snapshot of the index: id -> file -> content spans.
type Entries map[string]map[FileRef][]marker.Span

// Index is the in-memory fragment registry.
//
// Index is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries Entries
}

// New creates an empty index.
func New() *Index {
	return &Index{
		entries: make(Entries),
	}
}

// Reindex replaces every entry for file with the regions found in text.
// Parsing happens outside the lock; the swap is atomic for readers.
func (x *Index) Reindex(file FileRef, text string) {
	x.ReindexOccurrences(file, marker.ParseAll(text))
}

// ReindexOccurrences replaces every entry for file with occs, which must
// come from a single parse of the file's current text.
func (x *Index) ReindexOccurrences(file FileRef, occs []marker.Occurrence) {
	grouped := make(map[string][]marker.Span, len(occs))
	for _, occ := range occs {
		grouped[occ.ID] = append(grouped[occ.ID], occ.Content)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.removeFileLocked(file)
	for id, spans := range grouped {
		files := x.entries[id]
		if files == nil {
			files = make(map[FileRef][]marker.Span)
			x.entries[id] = files
		}
		files[file] = spans
	}
}

// ForgetFile removes all entries for file across all ids.
func (x *Index) ForgetFile(file FileRef) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.removeFileLocked(file)
}

// ForgetOccurrence removes the association between id and file. It is
// used when one region is deleted from a file rather than the whole file
// being forgotten.
func (x *Index) ForgetOccurrence(id string, file FileRef) {
	x.mu.Lock()
	defer x.mu.Unlock()

	files, ok := x.entries[id]
	if !ok {
		return
	}
	delete(files, file)
	if len(files) == 0 {
		delete(x.entries, id)
	}
}

// removeFileLocked drops file from every bucket and prunes empty buckets.
// Caller must hold the write lock.
func (x *Index) removeFileLocked(file FileRef) {
	for id, files := range x.entries {
		delete(files, file)
		if len(files) == 0 {
			delete(x.entries, id)
		}
	}
}

// OffsetsFor returns the content spans of id in file, in order of
// appearance. The result is empty if either is unknown.
func (x *Index) OffsetsFor(id string, file FileRef) []marker.Span {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return slices.Clone(x.entries[id][file])
}

// AllEntries returns a deep copy of the index.
func (x *Index) AllEntries() Entries {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(Entries, len(x.entries))
	for id, files := range x.entries {
		cp := make(map[FileRef][]marker.Span, len(files))
		for file, spans := range files {
			cp[file] = slices.Clone(spans)
		}
		out[id] = cp
	}
	return out
}

// FileEntries returns the ids present in file with their spans.
func (x *Index) FileEntries(file FileRef) map[string][]marker.Span {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(map[string][]marker.Span)
	for id, files := range x.entries {
		if spans, ok := files[file]; ok {
			out[id] = slices.Clone(spans)
		}
	}
	return out
}

// Has reports whether id occurs in any file.
func (x *Index) Has(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	_, ok := x.entries[id]
	return ok
}

// IDs returns all indexed ids, sorted.
func (x *Index) IDs() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	ids := make([]string, 0, len(x.entries))
	for id := range x.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Files returns every file holding at least one region, sorted.
func (x *Index) Files() []FileRef {
	x.mu.RLock()
	defer x.mu.RUnlock()

	seen := make(map[FileRef]struct{})
	for _, files := range x.entries {
		for file := range files {
			seen[file] = struct{}{}
		}
	}
	out := make([]FileRef, 0, len(seen))
	for file := range seen {
		out = append(out, file)
	}
	slices.Sort(out)
	return out
}

// Count returns the number of distinct ids.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return len(x.entries)
}

// Check verifies internal invariants and panics on violation. It exists
// for tests; a failure means the index was corrupted by a bug.
func (x *Index) Check() {
	x.mu.RLock()
	defer x.mu.RUnlock()

	for id, files := range x.entries {
		if len(files) == 0 {
			panic(fmt.Sprintf("index: empty bucket for id %q", id))
		}
		for file, spans := range files {
			if len(spans) == 0 {
				panic(fmt.Sprintf("index: no spans for id %q in %s", id, file))
			}
			for i := 1; i < len(spans); i++ {
				if spans[i].Start < spans[i-1].End {
					panic(fmt.Sprintf("index: unordered spans for id %q in %s", id, file))
				}
			}
		}
	}
}
