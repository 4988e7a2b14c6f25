package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/fragments/internal/fragment/index"
)

// User-action errors. The input text is never modified when one of these
// is returned.
var (
	// ErrOverlap indicates an insertion point inside an existing region.
	ErrOverlap = errors.New("fragments cannot overlap")

	// ErrNotFound indicates no region covers the given offset.
	ErrNotFound = errors.New("no fragment at offset")

	// ErrOffset indicates an offset outside the text.
	ErrOffset = errors.New("offset out of range")

	// ErrUnknownVariant indicates a variant that is not configured.
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrIDExhausted indicates that no unused fragment id could be generated.
	ErrIDExhausted = errors.New("could not generate an unused fragment id")
)

// ErrPartial matches any PartialError.
var ErrPartial = errors.New("some fragments failed")

// ActionError describes a rejected user action on one file.
type ActionError struct {
	Op     string
	File   index.FileRef
	Offset int
	Err    error
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s at offset %d: %v", e.Op, e.File, e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *ActionError) Unwrap() error {
	return e.Err
}

// PartialError reports per-fragment store failures from a bulk operation.
// The operation itself completed for every other fragment.
type PartialError struct {
	Op     string
	File   index.FileRef
	Failed map[string]error
}

// Error implements the error interface.
func (e *PartialError) Error() string {
	ids := e.ids()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s: %v", id, e.Failed[id])
	}
	return fmt.Sprintf("%s %s: %d fragment(s) failed: %s", e.Op, e.File, len(ids), strings.Join(parts, "; "))
}

// Is reports whether target is ErrPartial.
func (e *PartialError) Is(target error) bool {
	return target == ErrPartial
}

// Unwrap returns the individual failures in id order.
func (e *PartialError) Unwrap() []error {
	ids := e.ids()
	errs := make([]error, len(ids))
	for i, id := range ids {
		errs[i] = e.Failed[id]
	}
	return errs
}

func (e *PartialError) ids() []string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func unknownVariant(v string) error {
	return fmt.Errorf("%w %q", ErrUnknownVariant, v)
}
