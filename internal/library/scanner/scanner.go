package scanner

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/mediastow/mediastow/internal/pathutil"
)

var errPathEscapesRoot = errors.New("path escapes source folder")

// FoundFile is a video file discovered while walking a source folder.
type FoundFile struct {
	Path string
	Dir  string
	Name string
	Size int64
}

// walkVideoFiles walks root in lexical order and calls fn for every
// video file. Hidden entries and symlinks are skipped. Unreadable
// entries and files resolving outside the root are reported through
// onError and do not stop the walk; only context cancellation or an
// error from fn aborts it.
func walkVideoFiles(ctx context.Context, root string, fn func(f FoundFile) error, onError func(path string, err error)) error {
	root = filepath.Clean(root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			onError(path, walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		name := d.Name()
		hidden := name != "" && name[0] == '.' && path != root
		if d.IsDir() {
			if hidden {
				return fs.SkipDir
			}
			return nil
		}
		if hidden || d.Type()&fs.ModeSymlink != 0 || !IsVideoFile(name) {
			return nil
		}

		if !pathutil.WithinRoot(root, path) {
			onError(path, errPathEscapesRoot)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			onError(path, err)
			return nil
		}

		return fn(FoundFile{
			Path: path,
			Dir:  filepath.Dir(path),
			Name: name,
			Size: info.Size(),
		})
	})
}

