// Package duplicates flags media items that are copies of an already
// known primary item.
package duplicates

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/store"
)

const (
	// nameRatioThreshold is the minimum edit-distance ratio for two
	// names to count as the same title.
	nameRatioThreshold = 0.90
	// durationTolerance is the maximum difference, in seconds, between
	// two runtimes of the same copy.
	durationTolerance = 2.0
	// sizeTolerance is the allowed file-size deviation relative to the
	// larger file when runtimes are not comparable.
	sizeTolerance = 0.05
)

// Detector decides whether a scanned item duplicates an existing one.
type Detector struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewDetector creates a new duplicate detector.
func NewDetector(st *store.Store, logger zerolog.Logger) *Detector {
	return &Detector{
		store:  st,
		logger: logger.With().Str("component", "duplicates").Logger(),
	}
}

// FindPrimary returns the id of the primary item the candidate
// duplicates, or nil when the candidate is new. Only items of the same
// detected type that are not themselves duplicates are considered; the
// first match in id order wins.
func (d *Detector) FindPrimary(ctx context.Context, candidate *store.MediaItem) (*int64, error) {
	primaries, err := d.store.ListPrimaryItems(ctx, candidate.DetectedType)
	if err != nil {
		return nil, err
	}

	for _, existing := range primaries {
		if existing.ID == candidate.ID {
			continue
		}
		if !identityMatch(candidate, existing) {
			continue
		}
		if !similarityMatch(candidate, existing) {
			continue
		}

		d.logger.Debug().
			Int64("primaryId", existing.ID).
			Str("candidate", candidate.OriginalFilename).
			Str("primary", existing.OriginalFilename).
			Msg("Duplicate detected")

		id := existing.ID
		return &id, nil
	}

	return nil, nil
}

// identityMatch reports whether the two items plausibly name the same
// release: either the catalog agrees, or the names and the
// distinguishing attributes (year for movies, season and episode for
// episodes) do.
func identityMatch(c, e *store.MediaItem) bool {
	if c.TMDBID != nil && e.TMDBID != nil && *c.TMDBID == *e.TMDBID {
		if c.DetectedType != store.TypeTV {
			return true
		}
		if intPtrEqual(c.Season, e.Season) && intPtrEqual(c.Episode, e.Episode) {
			return true
		}
	}

	if !namesMatch(normalizeName(bestName(c)), normalizeName(bestName(e))) {
		return false
	}
	if c.DetectedType == store.TypeTV {
		return intPtrEqual(c.Season, e.Season) && intPtrEqual(c.Episode, e.Episode)
	}
	return intPtrEqual(c.Year, e.Year)
}

// similarityMatch reports whether the two items plausibly hold the same
// content. Runtimes are authoritative when both are known; file sizes
// are consulted only when they are not comparable.
func similarityMatch(c, e *store.MediaItem) bool {
	cName := normalizeName(bestName(c))
	eName := normalizeName(bestName(e))
	if cName != "" && eName != "" && similarityRatio(cName, eName) > nameRatioThreshold {
		return true
	}

	if c.DurationSeconds != nil && e.DurationSeconds != nil {
		return math.Abs(*c.DurationSeconds-*e.DurationSeconds) <= durationTolerance
	}

	larger := max(c.FileSize, e.FileSize)
	if larger == 0 {
		return true
	}
	diff := math.Abs(float64(c.FileSize - e.FileSize))
	return diff <= sizeTolerance*float64(larger)
}

// bestName picks the most refined name an item carries.
func bestName(item *store.MediaItem) string {
	for _, name := range []string{item.CleanedName, item.DetectedName, item.TMDBName} {
		if name != "" {
			return name
		}
	}
	return ""
}

// namesMatch reports equality of two normalized names, or containment
// when both are long enough for containment to be meaningful.
func namesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if len(a) > 3 && len(b) > 3 {
		return strings.Contains(a, b) || strings.Contains(b, a)
	}
	return false
}

// normalizeName lowercases a name and strips every non-alphanumeric
// rune.
func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// similarityRatio converts the edit distance between two strings into a
// 0..1 similarity score relative to the longer string.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	ra, rb := []rune(a), []rune(b)
	longer := max(len(ra), len(rb))
	distance := levenshteinDistance(ra, rb)
	return (float64(longer) - float64(distance)) / float64(longer)
}

// levenshteinDistance calculates the edit distance between two rune
// slices.
func levenshteinDistance(r1, r2 []rune) int {
	len1, len2 := len(r1), len(r2)

	matrix := make([][]int, len1+1)
	for i := range matrix {
		matrix[i] = make([]int, len2+1)
	}

	for i := 0; i <= len1; i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len2; j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len1; i++ {
		for j := 1; j <= len2; j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len1][len2]
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
