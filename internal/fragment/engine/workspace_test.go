package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/dshills/fragments/internal/fragment/collision"
	"github.com/dshills/fragments/internal/fragment/index"
	"github.com/dshills/fragments/internal/fragment/marker"
)

func TestNewWorkspace_Defaults(t *testing.T) {
	w := NewWorkspace(newMemStore(t))
	if w.Variant() != VariantUser {
		t.Errorf("Variant() = %q, want user", w.Variant())
	}
	if got := w.Variants(); len(got) != 2 || got[1] != VariantMaintainer {
		t.Errorf("Variants() = %v", got)
	}
	if w.Label() != "Fragments: User" {
		t.Errorf("Label() = %q", w.Label())
	}
}

func TestWorkspace_Toggle(t *testing.T) {
	w := NewWorkspace(newMemStore(t), WithVariants("a", "b", "c"))

	if w.Next() != "b" {
		t.Errorf("Next() = %q, want b", w.Next())
	}
	seq := []string{w.Toggle(), w.Toggle(), w.Toggle()}
	if fmt.Sprint(seq) != "[b c a]" {
		t.Errorf("Toggle sequence = %v, want [b c a]", seq)
	}
}

func TestWorkspace_SetVariant(t *testing.T) {
	w := NewWorkspace(newMemStore(t))
	if err := w.SetVariant(VariantMaintainer); err != nil {
		t.Fatalf("SetVariant failed: %v", err)
	}
	if w.Label() != "Fragments: Maintainer" {
		t.Errorf("Label() = %q", w.Label())
	}
	if err := w.SetVariant("ghost"); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("SetVariant(ghost) = %v, want ErrUnknownVariant", err)
	}
	if w.Variant() != VariantMaintainer {
		t.Error("failed SetVariant changed the variant")
	}
}

func TestWorkspace_Labels(t *testing.T) {
	w := NewWorkspace(newMemStore(t), WithLabels(map[string]string{"user": "Student"}))
	tests := []struct {
		variant, want string
	}{
		{"user", "Student"},
		{"maintainer", "Maintainer"},
		{"élan", "Élan"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := w.VariantLabel(tt.variant); got != tt.want {
			t.Errorf("VariantLabel(%q) = %q, want %q", tt.variant, got, tt.want)
		}
	}
}

func TestRandomID(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{12}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := RandomID()
		if !re.MatchString(id) {
			t.Fatalf("RandomID() = %q, want 12 hex chars", id)
		}
		if !marker.ValidID(id) {
			t.Fatalf("RandomID() = %q is not a valid marker id", id)
		}
		seen[id] = true
	}
	if len(seen) < 100 {
		t.Errorf("RandomID produced duplicates: %d unique of 100", len(seen))
	}
}

func TestWorkspace_Collisions(t *testing.T) {
	w := NewWorkspace(newMemStore(t))
	w.Reindex("a.cpp", marker.Region("X", "1", "\n"))
	w.Reindex("b.cpp", marker.Region("X", "2", "\n"))
	w.Reindex("c.cpp", marker.Region("one", "", "\n")+marker.Region("two", "", "\n"))

	for _, f := range []index.FileRef{"a.cpp", "b.cpp"} {
		cs := w.Collisions(f)
		if len(cs) != 1 || !cs[0].Reason.Has(collision.CrossFile) {
			t.Errorf("Collisions(%s) = %v", f, cs)
		}
	}
	if cs := w.Collisions("c.cpp"); len(cs) != 0 {
		t.Errorf("Collisions(c.cpp) = %v, want none", cs)
	}

	w.Forget("b.cpp")
	if cs := w.Collisions("a.cpp"); len(cs) != 0 {
		t.Errorf("Collisions after Forget = %v, want none", cs)
	}
}

func TestWorkspace_SeparateInstancesDoNotShareVariant(t *testing.T) {
	st := newMemStore(t)
	a := NewWorkspace(st)
	b := NewWorkspace(st)
	a.Toggle()
	if b.Variant() != VariantUser {
		t.Errorf("second workspace variant = %q, want user", b.Variant())
	}
}

func TestWorkspace_ConcurrentCaptureAndApply(t *testing.T) {
	ctx := context.Background()
	w := NewWorkspace(newMemStore(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		file := index.FileRef(fmt.Sprintf("f%d.go", i))
		text := marker.Region(fmt.Sprintf("id%d", i), "body\n", "\n")
		go func() {
			defer wg.Done()
			if _, err := w.Capture(ctx, file, text); err != nil {
				t.Errorf("Capture(%s): %v", file, err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := w.ApplyActive(ctx, file, text); err != nil {
				t.Errorf("ApplyActive(%s): %v", file, err)
			}
		}()
	}
	wg.Wait()
	w.Index().Check()

	if n := w.Index().Count(); n != 8 {
		t.Errorf("Count() = %d, want 8", n)
	}
}
