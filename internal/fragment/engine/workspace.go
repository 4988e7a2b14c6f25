// Package engine keeps text buffers and the fragment store in step.
//
// A Workspace bundles the index, the store and the active variant for one
// project. Capture copies region contents from a buffer into the store
// under the active variant; Apply rewrites a buffer so every region holds
// the stored content of a target variant. Text outside regions is never
// changed by either.
package engine

import (
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/fragments/internal/fragment/collision"
	"github.com/dshills/fragments/internal/fragment/index"
	"github.com/dshills/fragments/internal/fragment/store"
)

// Default variants.
const (
	VariantUser       = "user"
	VariantMaintainer = "maintainer"
)

// IDGenerator produces candidate fragment ids.
type IDGenerator func() string

// Workspace is the per-project fragment context.
//
// Workspace is safe for concurrent use.
type Workspace struct {
	store    store.Store
	index    *index.Index
	log      zerolog.Logger
	newID    IDGenerator
	variants []string
	labels   map[string]string

	mu     sync.RWMutex
	active string
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithVariants sets the variant cycle used by Toggle. The first variant is
// active initially. An empty list keeps the defaults.
func WithVariants(names ...string) Option {
	return func(w *Workspace) {
		if len(names) > 0 {
			w.variants = slices.Clone(names)
		}
	}
}

// WithLabels sets display labels per variant.
func WithLabels(labels map[string]string) Option {
	return func(w *Workspace) {
		for k, v := range labels {
			w.labels[k] = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Workspace) {
		w.log = log.With().Str("component", "engine").Logger()
	}
}

// WithIDGenerator replaces the fragment id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(w *Workspace) {
		if gen != nil {
			w.newID = gen
		}
	}
}

// WithIndex shares an existing index.
func WithIndex(x *index.Index) Option {
	return func(w *Workspace) {
		if x != nil {
			w.index = x
		}
	}
}

// NewWorkspace creates a workspace backed by st.
func NewWorkspace(st store.Store, opts ...Option) *Workspace {
	w := &Workspace{
		store:    st,
		index:    index.New(),
		log:      zerolog.Nop(),
		newID:    RandomID,
		variants: []string{VariantUser, VariantMaintainer},
		labels:   map[string]string{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.active = w.variants[0]
	return w
}

// RandomID returns 12 hex characters taken from a random UUID.
func RandomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Index returns the fragment index.
func (w *Workspace) Index() *index.Index {
	return w.index
}

// Store returns the backing store.
func (w *Workspace) Store() store.Store {
	return w.store
}

// Variants returns the configured variant cycle.
func (w *Workspace) Variants() []string {
	return slices.Clone(w.variants)
}

// Variant returns the active variant.
func (w *Workspace) Variant() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active
}

// SetVariant makes v the active variant.
func (w *Workspace) SetVariant(v string) error {
	if !slices.Contains(w.variants, v) {
		return unknownVariant(v)
	}
	w.mu.Lock()
	w.active = v
	w.mu.Unlock()
	return nil
}

// Toggle advances to the next variant in the cycle and returns it.
func (w *Workspace) Toggle() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := slices.Index(w.variants, w.active)
	w.active = w.variants[(i+1)%len(w.variants)]
	w.log.Info().Str("variant", w.active).Msg("variant toggled")
	return w.active
}

// Next returns the variant Toggle would switch to, without switching.
func (w *Workspace) Next() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i := slices.Index(w.variants, w.active)
	return w.variants[(i+1)%len(w.variants)]
}

// Label returns the status label for the active variant,
// e.g. "Fragments: Maintainer".
func (w *Workspace) Label() string {
	return "Fragments: " + w.VariantLabel(w.Variant())
}

// VariantLabel returns the display label for v.
func (w *Workspace) VariantLabel(v string) string {
	if l, ok := w.labels[v]; ok && l != "" {
		return l
	}
	r, size := utf8.DecodeRuneInString(v)
	if r == utf8.RuneError {
		return v
	}
	return string(unicode.ToUpper(r)) + v[size:]
}

// Reindex rebuilds the index entries for file from text.
func (w *Workspace) Reindex(file index.FileRef, text string) {
	w.index.Reindex(file, text)
}

// Forget drops file from the index. The store is not touched.
func (w *Workspace) Forget(file index.FileRef) {
	w.index.ForgetFile(file)
}

// Collisions returns the regions in file whose id is not unique.
func (w *Workspace) Collisions(file index.FileRef) []collision.Collision {
	return collision.In(w.index, file)
}

func (w *Workspace) checkVariant(v string) error {
	if !slices.Contains(w.variants, v) {
		return unknownVariant(v)
	}
	return nil
}

func (w *Workspace) setActive(v string) {
	w.mu.Lock()
	w.active = v
	w.mu.Unlock()
}
