package organizer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const maxCopySuffix = 1000

// MoveFile moves source to dest with no-data-loss semantics: the file
// first lands at "{dest}.tmp" (rename on the same filesystem, verified
// copy plus source unlink across filesystems) and only then takes the
// final name. A crash mid-move leaves either the intact source or an
// advanceable temp file, never a half-written final path.
func MoveFile(source, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	tmp := dest + ".tmp"
	if err := os.Rename(source, tmp); err != nil {
		if !isCrossDeviceError(err) {
			return fmt.Errorf("staging rename: %w", err)
		}
		if err := copyVerified(source, tmp); err != nil {
			return err
		}
		if err := os.Remove(source); err != nil {
			return fmt.Errorf("removing source after copy: %w", err)
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("final rename: %w", err)
	}
	return nil
}

// copyVerified copies source to tmp and confirms the byte counts match
// before the caller unlinks the source. On any failure the temp file is
// removed.
func copyVerified(source, tmp string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp copy: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copying across filesystems: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("flushing temp copy: %w", err)
	}

	srcInfo, err := os.Stat(source)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("verifying source: %w", err)
	}
	tmpInfo, err := os.Stat(tmp)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("verifying copy: %w", err)
	}
	if srcInfo.Size() != tmpInfo.Size() {
		os.Remove(tmp)
		return fmt.Errorf("copy verification failed: source %d bytes, copy %d bytes",
			srcInfo.Size(), tmpInfo.Size())
	}

	os.Chmod(tmp, srcInfo.Mode())
	return nil
}

// nextAvailablePath returns the first "{base} (copy N){ext}" variant of
// path, N counting up from 2, that does not exist yet.
func nextAvailablePath(path string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	for n := 2; n < maxCopySuffix; n++ {
		candidate := fmt.Sprintf("%s (copy %d)%s", base, n, ext)
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("no free copy name for %s", path)
}

// isCrossDeviceError checks if an error is a cross-device link error.
func isCrossDeviceError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	switch runtime.GOOS {
	case "linux", "darwin":
		// EXDEV: Cross-device link
		return strings.Contains(errStr, "cross-device") ||
			strings.Contains(errStr, "invalid cross-device link")
	case "windows":
		// ERROR_NOT_SAME_DEVICE
		return strings.Contains(errStr, "not on the same disk")
	default:
		return strings.Contains(errStr, "cross-device")
	}
}
