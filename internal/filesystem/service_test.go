package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newBrowser(roots ...string) *Service {
	return NewService(roots, zerolog.Nop())
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func TestBrowseListsDirectoriesOnly(t *testing.T) {
	root := t.TempDir()
	mkdir(t, filepath.Join(root, "beta"))
	mkdir(t, filepath.Join(root, "Alpha"))
	mkdir(t, filepath.Join(root, ".hidden"))
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	result, err := newBrowser(root).Browse(root)
	if err != nil {
		t.Fatalf("browse: %v", err)
	}

	if result.Path != root {
		t.Errorf("path = %q, want %q", result.Path, root)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(result.Entries))
	}
	if result.Entries[0].Name != "Alpha" || result.Entries[1].Name != "beta" {
		t.Errorf("entries = %q, %q, want Alpha, beta", result.Entries[0].Name, result.Entries[1].Name)
	}
	if result.Parent != "" {
		t.Errorf("parent = %q, want empty above the allowed root", result.Parent)
	}
}

func TestBrowseSubdirectoryHasParent(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "movies")
	mkdir(t, sub)

	result, err := newBrowser(root).Browse(sub)
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if result.Parent != root {
		t.Errorf("parent = %q, want %q", result.Parent, root)
	}
}

func TestBrowseRefusesPathsOutsideRoots(t *testing.T) {
	root := t.TempDir()
	svc := newBrowser(root)

	// A path that does not exist anywhere must still be refused by the
	// allow-list, not reported as missing.
	_, err := svc.Browse("/definitely/not/a/real/path")
	if !errors.Is(err, ErrPathNotAllowed) {
		t.Errorf("err = %v, want ErrPathNotAllowed", err)
	}

	_, err = svc.Browse(filepath.Dir(root))
	if !errors.Is(err, ErrPathNotAllowed) {
		t.Errorf("parent of root err = %v, want ErrPathNotAllowed", err)
	}
}

func TestBrowseRefusesSiblingPrefix(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "movies")
	sibling := filepath.Join(base, "movies-extra")
	mkdir(t, root)
	mkdir(t, sibling)

	_, err := newBrowser(root).Browse(sibling)
	if !errors.Is(err, ErrPathNotAllowed) {
		t.Errorf("err = %v, want ErrPathNotAllowed", err)
	}
}

func TestBrowseMissingPathInsideRoot(t *testing.T) {
	root := t.TempDir()

	_, err := newBrowser(root).Browse(filepath.Join(root, "gone"))
	if !errors.Is(err, ErrPathNotFound) {
		t.Errorf("err = %v, want ErrPathNotFound", err)
	}
}

func TestBrowseRefusesRelativePath(t *testing.T) {
	_, err := newBrowser(t.TempDir()).Browse("relative/path")
	if !errors.Is(err, ErrInvalidPath) {
		t.Errorf("err = %v, want ErrInvalidPath", err)
	}
}

func TestBrowseRefusesFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "movie.mkv")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := newBrowser(root).Browse(file)
	if !errors.Is(err, ErrNotDirectory) {
		t.Errorf("err = %v, want ErrNotDirectory", err)
	}
}

func TestBrowseEmptyPathListsExistingRoots(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	missing := filepath.Join(rootA, "never-created")

	result, err := newBrowser(rootA, rootB, missing).Browse("")
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("entries = %d, want 2 existing roots", len(result.Entries))
	}
	paths := []string{result.Entries[0].Path, result.Entries[1].Path}
	for _, want := range []string{rootA, rootB} {
		if paths[0] != want && paths[1] != want {
			t.Errorf("roots %v missing %q", paths, want)
		}
	}
}

func TestBrowseSlashRootAllowsEverything(t *testing.T) {
	dir := t.TempDir()
	mkdir(t, filepath.Join(dir, "inner"))

	result, err := newBrowser("/").Browse(dir)
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Name != "inner" {
		t.Errorf("entries = %v", result.Entries)
	}
}
