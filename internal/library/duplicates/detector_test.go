package duplicates

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/store"
	"github.com/mediastow/mediastow/internal/testutil"
)

func intPtr(v int) *int             { return &v }
func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

func insertItem(t *testing.T, st *store.Store, item *store.MediaItem) *store.MediaItem {
	t.Helper()
	if item.Status == "" {
		item.Status = store.StatusPending
	}
	inserted, err := st.InsertItem(context.Background(), item)
	if err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	return inserted
}

func newDetector(t *testing.T) (*Detector, *store.Store) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return NewDetector(tdb.Store, zerolog.Nop()), tdb.Store
}

func TestFindPrimaryMovieByCatalogID(t *testing.T) {
	detector, st := newDetector(t)

	primary := insertItem(t, st, &store.MediaItem{
		OriginalPath:     "/in/Inception.2010.mkv",
		OriginalFilename: "Inception.2010.mkv",
		FileSize:         2_000_000_000,
		Extension:        ".mkv",
		DetectedType:     store.TypeMovie,
		CleanedName:      "Inception",
		Year:             intPtr(2010),
		TMDBID:           int64Ptr(27205),
	})

	candidate := &store.MediaItem{
		OriginalPath:     "/in/copies/Inception.2010.1080p.mkv",
		OriginalFilename: "Inception.2010.1080p.mkv",
		FileSize:         2_050_000_000,
		Extension:        ".mkv",
		DetectedType:     store.TypeMovie,
		CleanedName:      "Inception",
		Year:             intPtr(2010),
		TMDBID:           int64Ptr(27205),
	}

	got, err := detector.FindPrimary(context.Background(), candidate)
	if err != nil {
		t.Fatalf("FindPrimary: %v", err)
	}
	if got == nil || *got != primary.ID {
		t.Errorf("FindPrimary = %v, want %d", got, primary.ID)
	}
}

func TestFindPrimaryDurationsOverrideSize(t *testing.T) {
	detector, st := newDetector(t)

	// Identity holds (same catalog id) but both runtimes are known and
	// far apart, so identical sizes must not rescue the match.
	insertItem(t, st, &store.MediaItem{
		OriginalPath:     "/in/Cut.A.mkv",
		OriginalFilename: "Cut.A.mkv",
		FileSize:         1_000_000,
		Extension:        ".mkv",
		DetectedType:     store.TypeMovie,
		CleanedName:      "Alpha",
		TMDBID:           int64Ptr(42),
		DurationSeconds:  float64Ptr(7200),
	})

	candidate := &store.MediaItem{
		OriginalPath:     "/in/Cut.B.mkv",
		OriginalFilename: "Cut.B.mkv",
		FileSize:         1_000_000,
		Extension:        ".mkv",
		DetectedType:     store.TypeMovie,
		CleanedName:      "Omega",
		TMDBID:           int64Ptr(42),
		DurationSeconds:  float64Ptr(9000),
	}

	got, err := detector.FindPrimary(context.Background(), candidate)
	if err != nil {
		t.Fatalf("FindPrimary: %v", err)
	}
	if got != nil {
		t.Errorf("FindPrimary = %d, want nil when runtimes disagree", *got)
	}
}

func TestFindPrimaryTVEpisodeRules(t *testing.T) {
	detector, st := newDetector(t)

	primary := insertItem(t, st, &store.MediaItem{
		OriginalPath:     "/in/BB.S01E01.mkv",
		OriginalFilename: "BB.S01E01.mkv",
		FileSize:         500_000_000,
		Extension:        ".mkv",
		DetectedType:     store.TypeTV,
		CleanedName:      "Breaking Bad",
		Season:           intPtr(1),
		Episode:          intPtr(1),
		TMDBID:           int64Ptr(1396),
		DurationSeconds:  float64Ptr(2880),
	})

	tests := []struct {
		name      string
		candidate *store.MediaItem
		wantMatch bool
	}{
		{
			name: "same episode close duration",
			candidate: &store.MediaItem{
				OriginalFilename: "Breaking.Bad.S01E01.720p.mkv",
				FileSize:         700_000_000,
				DetectedType:     store.TypeTV,
				CleanedName:      "Breaking Bad",
				Season:           intPtr(1),
				Episode:          intPtr(1),
				TMDBID:           int64Ptr(1396),
				DurationSeconds:  float64Ptr(2881.5),
			},
			wantMatch: true,
		},
		{
			name: "same series different episode",
			candidate: &store.MediaItem{
				OriginalFilename: "Breaking.Bad.S01E02.mkv",
				FileSize:         500_000_000,
				DetectedType:     store.TypeTV,
				CleanedName:      "Breaking Bad",
				Season:           intPtr(1),
				Episode:          intPtr(2),
				TMDBID:           int64Ptr(1396),
				DurationSeconds:  float64Ptr(2880),
			},
			wantMatch: false,
		},
		{
			name: "movie never matches tv item",
			candidate: &store.MediaItem{
				OriginalFilename: "Breaking.Bad.mkv",
				FileSize:         500_000_000,
				DetectedType:     store.TypeMovie,
				CleanedName:      "Breaking Bad",
				DurationSeconds:  float64Ptr(2880),
			},
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := detector.FindPrimary(context.Background(), tt.candidate)
			if err != nil {
				t.Fatalf("FindPrimary: %v", err)
			}
			if tt.wantMatch && (got == nil || *got != primary.ID) {
				t.Errorf("FindPrimary = %v, want %d", got, primary.ID)
			}
			if !tt.wantMatch && got != nil {
				t.Errorf("FindPrimary = %d, want nil", *got)
			}
		})
	}
}

func TestFindPrimaryNameContainmentWithSizes(t *testing.T) {
	detector, st := newDetector(t)

	// No catalog ids. Names match by containment, one runtime is
	// missing, sizes are within 5% of the larger copy.
	primary := insertItem(t, st, &store.MediaItem{
		OriginalPath:     "/in/BB.S02E03.mkv",
		OriginalFilename: "BB.S02E03.mkv",
		FileSize:         1_000_000_000,
		Extension:        ".mkv",
		DetectedType:     store.TypeTV,
		CleanedName:      "Breaking Bad",
		Season:           intPtr(2),
		Episode:          intPtr(3),
	})

	candidate := &store.MediaItem{
		OriginalFilename: "Breaking.Bad.2008.S02E03.mkv",
		FileSize:         1_040_000_000,
		DetectedType:     store.TypeTV,
		CleanedName:      "Breaking Bad 2008",
		Season:           intPtr(2),
		Episode:          intPtr(3),
	}

	got, err := detector.FindPrimary(context.Background(), candidate)
	if err != nil {
		t.Fatalf("FindPrimary: %v", err)
	}
	if got == nil || *got != primary.ID {
		t.Errorf("FindPrimary = %v, want %d", got, primary.ID)
	}
}

func TestFindPrimaryMovieYearMismatch(t *testing.T) {
	detector, st := newDetector(t)

	insertItem(t, st, &store.MediaItem{
		OriginalPath:     "/in/Dune.1984.mkv",
		OriginalFilename: "Dune.1984.mkv",
		FileSize:         1_000_000_000,
		Extension:        ".mkv",
		DetectedType:     store.TypeMovie,
		CleanedName:      "Dune",
		Year:             intPtr(1984),
	})

	candidate := &store.MediaItem{
		OriginalFilename: "Dune.2021.mkv",
		FileSize:         1_000_000_000,
		DetectedType:     store.TypeMovie,
		CleanedName:      "Dune",
		Year:             intPtr(2021),
	}

	got, err := detector.FindPrimary(context.Background(), candidate)
	if err != nil {
		t.Fatalf("FindPrimary: %v", err)
	}
	if got != nil {
		t.Errorf("FindPrimary = %d, want nil for a remake", *got)
	}
}

func TestFindPrimarySkipsNonPrimaries(t *testing.T) {
	detector, st := newDetector(t)

	primary := insertItem(t, st, &store.MediaItem{
		OriginalPath:     "/in/Heat.1995.mkv",
		OriginalFilename: "Heat.1995.mkv",
		FileSize:         1_000_000_000,
		Extension:        ".mkv",
		DetectedType:     store.TypeMovie,
		CleanedName:      "Heat",
		Year:             intPtr(1995),
	})
	insertItem(t, st, &store.MediaItem{
		OriginalPath:     "/in/copy/Heat.1995.mkv",
		OriginalFilename: "Heat.1995.mkv",
		FileSize:         1_010_000_000,
		Extension:        ".mkv",
		DetectedType:     store.TypeMovie,
		CleanedName:      "Heat",
		Year:             intPtr(1995),
		DuplicateOf:      &primary.ID,
	})

	candidate := &store.MediaItem{
		OriginalFilename: "Heat.1995.Remux.mkv",
		FileSize:         1_020_000_000,
		DetectedType:     store.TypeMovie,
		CleanedName:      "Heat",
		Year:             intPtr(1995),
	}

	got, err := detector.FindPrimary(context.Background(), candidate)
	if err != nil {
		t.Fatalf("FindPrimary: %v", err)
	}
	if got == nil || *got != primary.ID {
		t.Errorf("FindPrimary = %v, want first primary %d", got, primary.ID)
	}
}

func TestFindPrimaryIgnoresSelfOnRescan(t *testing.T) {
	detector, st := newDetector(t)

	item := insertItem(t, st, &store.MediaItem{
		OriginalPath:     "/in/Solo.mkv",
		OriginalFilename: "Solo.mkv",
		FileSize:         1_000_000_000,
		Extension:        ".mkv",
		DetectedType:     store.TypeMovie,
		CleanedName:      "Solo",
		Year:             intPtr(2018),
	})

	got, err := detector.FindPrimary(context.Background(), item)
	if err != nil {
		t.Fatalf("FindPrimary: %v", err)
	}
	if got != nil {
		t.Errorf("FindPrimary = %d, want nil for the item itself", *got)
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"breakingbad", "breakingbad", 1.0, 1.0},
		{"breakingbad", "breakingbaD", 0.90, 0.92},
		{"inception", "interstellar", 0.0, 0.5},
		{"", "anything", 0.0, 0.0},
	}

	for _, tt := range tests {
		got := similarityRatio(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("similarityRatio(%q, %q) = %.3f, want in [%.2f, %.2f]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Breaking Bad", "breakingbad"},
		{"The Matrix (1999)", "thematrix1999"},
		{"Amélie", "amélie"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeName(tt.in); got != tt.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
