package joblog

import (
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	cacheRoot := t.TempDir()
	path := Path(cacheRoot, 42, "textures/foo.png", "pc", "builder-123", "main")

	if err := Write(path, []byte("built ok")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "built ok" {
		t.Fatalf("unexpected log contents: %q", data)
	}
}

func TestPathSanitizesSourceSeparators(t *testing.T) {
	path := Path("/cache", 1, "textures/foo.png", "pc", "b", "main")
	if filepath.Base(path) != "1-textures_foo.png-pc-b-main.log" {
		t.Fatalf("unexpected sanitized file name: %q", filepath.Base(path))
	}
}
