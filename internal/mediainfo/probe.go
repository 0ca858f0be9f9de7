// Package mediainfo extracts the runtime duration of media files using
// an external probe tool.
package mediainfo

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/config"
)

// cacheEntry holds a probed duration together with the file identity it
// was computed for. A size or mtime change invalidates the entry.
type cacheEntry struct {
	duration float64
	size     int64
	modTime  time.Time
}

// Service probes media files for their runtime via ffprobe.
type Service struct {
	ffprobePath string
	timeout     time.Duration
	logger      zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

// NewService creates a probe service. When no ffprobe binary can be
// found the service stays usable and every probe yields nil.
func NewService(cfg config.ProbeConfig, logger zerolog.Logger) *Service {
	subLogger := logger.With().Str("component", "mediainfo").Logger()

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	path := findExecutable("ffprobe", cfg.FFprobePath)
	if path == "" {
		subLogger.Warn().Msg("ffprobe not found, durations will be unavailable")
	} else {
		subLogger.Info().Str("path", path).Msg("Using ffprobe")
	}

	return &Service{
		ffprobePath: path,
		timeout:     timeout,
		logger:      subLogger,
		cache:       make(map[string]*cacheEntry),
	}
}

// Available reports whether a probe tool was found.
func (s *Service) Available() bool {
	return s.ffprobePath != ""
}

// Duration returns the media runtime in seconds, or nil when the file
// cannot be probed within the configured timeout. Probe failures never
// propagate to the caller.
func (s *Service) Duration(ctx context.Context, path string) *float64 {
	if s.ffprobePath == "" {
		return nil
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil
	}

	if cached := s.getCached(path, stat.Size(), stat.ModTime()); cached != nil {
		return cached
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		s.logger.Debug().Err(err).Str("path", path).Msg("Probe failed")
		return nil
	}

	duration, ok := parseDuration(stdout.Bytes())
	if !ok {
		s.logger.Debug().Str("path", path).Msg("Probe output carried no duration")
		return nil
	}

	s.setCache(path, duration, stat.Size(), stat.ModTime())
	return &duration
}

func (s *Service) getCached(path string, size int64, modTime time.Time) *float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[path]
	if !ok || entry.size != size || !entry.modTime.Equal(modTime) {
		return nil
	}
	duration := entry.duration
	return &duration
}

func (s *Service) setCache(path string, duration float64, size int64, modTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[path] = &cacheEntry{duration: duration, size: size, modTime: modTime}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// parseDuration pulls the container duration out of ffprobe JSON.
func parseDuration(data []byte) (float64, bool) {
	var output ffprobeOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return 0, false
	}
	duration, err := strconv.ParseFloat(output.Format.Duration, 64)
	if err != nil || duration <= 0 {
		return 0, false
	}
	return duration, true
}

// findExecutable resolves a probe binary by explicit path, PATH lookup,
// then platform-specific install locations.
func findExecutable(name, explicitPath string) string {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err == nil {
			return explicitPath
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	var commonPaths []string
	switch runtime.GOOS {
	case "darwin":
		commonPaths = []string{
			"/usr/local/bin/" + name,
			"/opt/homebrew/bin/" + name,
		}
	case "linux":
		commonPaths = []string{
			"/usr/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "windows":
		commonPaths = []string{
			`C:\Program Files\ffmpeg\bin\` + name + ".exe",
			`C:\ffmpeg\bin\` + name + ".exe",
		}
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
