package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalDirResolvesSymlinks(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("eval temp dir: %v", err)
	}
	target := filepath.Join(root, "real")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	link := filepath.Join(root, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	got, err := CanonicalDir(link + string(os.PathSeparator) + ".")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != target {
		t.Fatalf("expected %q, got %q", target, got)
	}
}

func TestCanonicalDirRelative(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("eval temp dir: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Chdir(root)

	got, err := CanonicalDir("sub")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Join(root, "sub") {
		t.Fatalf("expected absolute path, got %q", got)
	}
}

func TestCanonicalDirRejects(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := CanonicalDir(file); !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("expected ErrNotDirectory, got %v", err)
	}
	if _, err := CanonicalDir(filepath.Join(root, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
	if _, err := CanonicalDir("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestIsWithin(t *testing.T) {
	cases := []struct {
		root   string
		target string
		want   bool
	}{
		{root: "/w", target: "/w", want: true},
		{root: "/w", target: "/w/a/b", want: true},
		{root: "/w", target: "/wx", want: false},
		{root: "/", target: "/etc", want: true},
		{root: "/w/a", target: "/w", want: false},
	}
	for _, tc := range cases {
		if got := IsWithin(tc.root, tc.target); got != tc.want {
			t.Fatalf("IsWithin(%q, %q) = %v, want %v", tc.root, tc.target, got, tc.want)
		}
	}
}
