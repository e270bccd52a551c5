package pathresolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forgelabs/forge/pkg/logging"
)

func writeTestFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOverridePrecedence(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")

	writeTestFile(t, filepath.Join(b, "foo", "bar.txt"))

	resolver, err := New(Config{
		ScanFolders: []ScanFolder{
			{Root: a, Recursive: true, Order: -2},
			{Root: b, Recursive: true, Order: -1},
		},
	}, logging.NewRoot(logging.LevelError))
	if err != nil {
		t.Fatal(err)
	}

	abs, ok := resolver.FindActiveSource("foo/bar.txt")
	if !ok {
		t.Fatal("expected active source in B")
	}
	if normalize(abs) != normalize(filepath.Join(b, "foo/bar.txt")) {
		t.Errorf("expected B's copy, got %s", abs)
	}

	// Now create A's copy, which has higher precedence (lower order).
	writeTestFile(t, filepath.Join(a, "foo", "bar.txt"))

	abs, ok = resolver.FindActiveSource("foo/bar.txt")
	if !ok || normalize(abs) != normalize(filepath.Join(a, "foo/bar.txt")) {
		t.Errorf("expected A's copy to take precedence, got %s ok=%v", abs, ok)
	}

	bFolder := ScanFolder{Root: normalize(b), Recursive: true, Order: -1, registrationIndex: 1}
	override, ok := resolver.FindOverride("foo/bar.txt", bFolder)
	if !ok {
		t.Fatal("expected an override revealing A's copy")
	}
	if normalize(override) != normalize(filepath.Join(a, "foo/bar.txt")) {
		t.Errorf("expected override to point at A, got %s", override)
	}
}

func TestIsExcluded(t *testing.T) {
	root := t.TempDir()
	resolver, err := New(Config{
		ScanFolders:     []ScanFolder{{Root: root, Recursive: true, Order: 0}},
		ExcludePatterns: []string{"*.tmp", "!important.tmp"},
	}, logging.NewRoot(logging.LevelError))
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		relpath string
		want    bool
	}{
		{"scratch.tmp", true},
		{"important.tmp", false},
		{"keep.txt", false},
	}
	for _, c := range cases {
		abs := filepath.Join(root, c.relpath)
		if got := resolver.IsExcluded(abs); got != c.want {
			t.Errorf("IsExcluded(%s) = %v, want %v", c.relpath, got, c.want)
		}
	}
}

func TestNonRecursiveExcludesDeepPaths(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "nested", "deep.txt"))
	writeTestFile(t, filepath.Join(root, "shallow.txt"))

	resolver, err := New(Config{
		ScanFolders: []ScanFolder{{Root: root, Recursive: false, Order: 0}},
	}, logging.NewRoot(logging.LevelError))
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := resolver.FindActiveSource("nested/deep.txt"); ok {
		t.Error("expected non-recursive scan folder to reject deep paths")
	}
	if _, ok := resolver.FindActiveSource("shallow.txt"); !ok {
		t.Error("expected non-recursive scan folder to resolve its immediate children")
	}
}
