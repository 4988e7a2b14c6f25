// Package store persists fragment contents keyed by fragment id and variant.
//
// Each fragment id maps to one JSON unit:
//
//	{"id": "f1", "metadata": {}, "versions": {"user": {"code": "..."}}}
//
// Saving a variant rewrites only that variant's entry; everything else in
// the unit, including keys written by other tools, is preserved. Writes are
// all-or-nothing: a reader never observes a partially written unit.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors.
var (
	// ErrCorrupt indicates a stored unit that is not valid JSON or has
	// the wrong shape.
	ErrCorrupt = errors.New("corrupt fragment unit")

	// ErrInvalidID indicates an id that cannot be mapped to a storage key.
	ErrInvalidID = errors.New("invalid fragment id")

	// ErrInvalidVariant indicates an empty variant name.
	ErrInvalidVariant = errors.New("invalid variant name")
)

// Error records a failed store operation on one fragment id.
type Error struct {
	Op  string
	ID  string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Version is the stored content of one variant.
type Version struct {
	Code string `json:"code"`
}

// Record is the decoded unit of one fragment id.
type Record struct {
	ID       string             `json:"id"`
	Metadata map[string]any     `json:"metadata,omitempty"`
	Versions map[string]Version `json:"versions"`
}

// Variants returns the variant names present in the record, sorted.
func (r Record) Variants() []string {
	names := make([]string, 0, len(r.Versions))
	for name := range r.Versions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Version returns the stored version of variant, matching its key exactly
// or else ignoring case.
func (r Record) Version(variant string) (Version, bool) {
	if v, ok := r.Versions[variant]; ok {
		return v, true
	}
	for name, v := range r.Versions {
		if strings.EqualFold(name, variant) {
			return v, true
		}
	}
	return Version{}, false
}

// Store is a persistent map (id, variant) -> content.
//
// Implementations must be safe for concurrent use. Concurrent saves to the
// same (id, variant) are last-writer-wins.
type Store interface {
	// Save upserts the content of (id, variant), creating the unit when
	// absent. It returns only after the write is durable.
	Save(ctx context.Context, id, variant, content string) error

	// Load returns the content of (id, variant). A missing unit or a
	// missing variant is reported as ok == false with a nil error.
	Load(ctx context.Context, id, variant string) (content string, ok bool, err error)

	// Forget deletes the unit for id. Forgetting a missing id is not an
	// error.
	Forget(ctx context.Context, id string) error

	// Record returns the whole decoded unit for id.
	Record(ctx context.Context, id string) (Record, bool, error)

	// IDs returns every stored fragment id, sorted.
	IDs(ctx context.Context) ([]string, error)
}

func opError(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, ID: id, Err: err}
}

func checkArgs(id, variant string) error {
	if id == "" {
		return ErrInvalidID
	}
	if variant == "" {
		return ErrInvalidVariant
	}
	return nil
}
