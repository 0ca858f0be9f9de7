package scanner

import (
	"strings"
	"testing"
)

func TestIsVideoFileAcceptsConfiguredExtensions(t *testing.T) {
	for ext := range VideoExtensions {
		for _, name := range []string{"movie" + ext, "MOVIE" + strings.ToUpper(ext)} {
			if !IsVideoFile(name) {
				t.Errorf("IsVideoFile(%q) = false, want true", name)
			}
		}
	}
}

func TestIsVideoFileRejectsNonVideo(t *testing.T) {
	tests := []struct {
		name     string
		filename string
	}{
		{"subtitle", "movie.srt"},
		{"sidecar info", "movie.nfo"},
		{"artwork", "poster.jpg"},
		{"archive", "movie.rar"},
		{"disc image", "movie.iso"},
		{"text", "notes.txt"},
		{"no extension", "movie"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IsVideoFile(tt.filename) {
				t.Errorf("IsVideoFile(%q) = true, want false", tt.filename)
			}
		})
	}
}

func TestIsVideoFileUsesFinalExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"Movie.With.Dots.In.Name.mkv", true},
		{"/incoming/shows/Show.S01E01.mp4", true},
		{"movie.mkv.txt", false},
		{".mkv", true},
		{"mkv", false},
	}

	for _, tt := range tests {
		if got := IsVideoFile(tt.filename); got != tt.want {
			t.Errorf("IsVideoFile(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}
