package watcher

import (
	"reflect"
	"sync"
	"testing"

	"github.com/dshills/fragments/internal/project/vfs"
)

func TestIgnorePatterns_AddPattern(t *testing.T) {
	ip := NewIgnorePatterns()
	ip.AddPattern("")
	ip.AddPattern("# comment")
	ip.AddPattern("   ")
	ip.AddPattern("/")
	ip.AddPattern("*.log")
	ip.AddPattern("!keep.log")

	if got := ip.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
	if got := ip.Patterns(); !reflect.DeepEqual(got, []string{"*.log", "!keep.log"}) {
		t.Errorf("Patterns() = %v", got)
	}
}

func TestIgnorePatterns_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		isDir    bool
		want     bool
	}{
		{"extension", []string{"*.log"}, "debug.log", false, true},
		{"extension nested", []string{"*.log"}, "logs/app/debug.log", false, true},
		{"extension miss", []string{"*.log"}, "main.go", false, false},
		{"dir only on dir", []string{"build/"}, "build", true, true},
		{"dir only on file", []string{"build/"}, "build", false, false},
		{"under ignored dir", []string{"build/"}, "build/out/main.go", false, true},
		{"nested ignored dir", []string{"node_modules/"}, "web/node_modules/x/index.js", false, true},
		{"rooted at root", []string{"/dist"}, "dist/app.js", false, true},
		{"rooted not nested", []string{"/dist"}, "web/dist/app.js", false, false},
		{"negation", []string{"*.log", "!keep.log"}, "keep.log", false, false},
		{"negation order", []string{"!keep.log", "*.log"}, "keep.log", false, true},
		{"double glob", []string{"**/generated/**"}, "a/generated/b.go", false, true},
		{"double glob suffix", []string{"**/testdata"}, "pkg/x/testdata", true, true},
		{"prefix double glob", []string{"docs/**/*.md"}, "docs/api/v1/readme.md", false, true},
		{"prefix double glob miss", []string{"docs/**/*.md"}, "src/readme.md", false, false},
		{"slash pattern suffix", []string{"gen/*.pb.go"}, "api/gen/x.pb.go", false, true},
		{"question mark", []string{"file?.c"}, "file1.c", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := NewIgnorePatterns(tt.patterns...)
			if got := ip.Match(tt.path, tt.isDir); got != tt.want {
				t.Errorf("Match(%q, %v) with %v = %v, want %v", tt.path, tt.isDir, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestIgnorePatterns_MatchRelative(t *testing.T) {
	ip := NewIgnorePatterns("/build/", ".fragments/")

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"/ws/build", true, true},
		{"/ws/build/main.o", false, true},
		{"/ws/src/build", true, false},
		{"/ws/.fragments/f1.json", false, true},
		{"/ws/src/main.go", false, false},
		{"/ws", true, false},
	}
	for _, tt := range tests {
		if got := ip.MatchRelative(tt.path, "/ws", tt.isDir); got != tt.want {
			t.Errorf("MatchRelative(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestIgnorePatterns_AddFromFile(t *testing.T) {
	memfs := vfs.NewMemFS()
	if err := memfs.AddFile("/ws/.gitignore", "# build output\nbin/\n*.out\r\n\n!important.out\n"); err != nil {
		t.Fatal(err)
	}

	ip := NewIgnorePatterns()
	if err := ip.AddFromFile(memfs, "/ws/.gitignore"); err != nil {
		t.Fatalf("AddFromFile error = %v", err)
	}
	if got := ip.Patterns(); !reflect.DeepEqual(got, []string{"bin/", "*.out", "!important.out"}) {
		t.Errorf("Patterns() = %v", got)
	}
	if !ip.Match("a.out", false) || ip.Match("important.out", false) {
		t.Error("patterns from file not applied")
	}

	if err := ip.AddFromFile(memfs, "/ws/missing"); err == nil {
		t.Error("AddFromFile(missing) should fail")
	}
}

func TestDefaultIgnorePatterns(t *testing.T) {
	ip := NewIgnorePatterns(DefaultIgnorePatterns...)
	for _, p := range []string{".git/HEAD", ".fragments/f1.json", "node_modules/x/a.js", "main.go.swp"} {
		if !ip.Match(p, false) {
			t.Errorf("Match(%q) = false, want ignored", p)
		}
	}
	if ip.Match("src/main.go", false) {
		t.Error("source file should not be ignored")
	}
}

func TestIgnorePatterns_ConcurrentAccess(t *testing.T) {
	ip := NewIgnorePatterns("*.log")
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ip.AddPattern("*.tmp")
		}()
		go func(i int) {
			defer wg.Done()
			_ = ip.Match("a.log", i%2 == 0)
		}(i)
	}
	wg.Wait()
	if got := ip.Count(); got != 9 {
		t.Errorf("Count() = %d, want 9", got)
	}
}
