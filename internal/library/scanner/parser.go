package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/mediastow/mediastow/internal/store"
)

// ParsedMedia is everything the parser can derive from a filename.
// Pointer fields are nil when the filename carries no such signal.
type ParsedMedia struct {
	DetectedType store.MediaType `json:"detectedType"`
	DetectedName string          `json:"detectedName,omitempty"`
	CleanedName  string          `json:"cleanedName,omitempty"`
	Year         *int            `json:"year,omitempty"`
	Season       *int            `json:"season,omitempty"`
	Episode      *int            `json:"episode,omitempty"`
	EpisodeEnd   *int            `json:"episodeEnd,omitempty"`
	IsSeasonPack bool            `json:"isSeasonPack,omitempty"`
	Confidence   int             `json:"confidence"`
}

// Confidence contributions per signal. The final score is clamped to
// [0, 100]; catalog enrichment adds its own increment during scans.
const (
	confidenceSpecials   = 30
	confidenceEpisodeSE  = 50
	confidenceEpisodeX   = 45
	confidenceVerbose    = 40
	confidenceSeasonPack = 20
	confidenceYear       = 40
	fallbackPenalty      = 10
)

// Pattern stages run in order: specials, episode markers, season packs,
// year. The first stage that classifies the file wins; later stages
// never override it.
var (
	// Specials: S00E##, "Episode 0", or a special/OVA word marker.
	reSpecialSE       = regexp.MustCompile(`(?i)\bS0{1,2}\s?E(\d{1,3})\b`)
	reSpecialEpisode0 = regexp.MustCompile(`(?i)\bepisode\s?0+\b`)
	reSpecialWord     = regexp.MustCompile(`(?i)\b(?:specials?|ova)\b`)
	// Episode number immediately after a special marker: "Special 2", "OVA - 3".
	reSpecialTrailing = regexp.MustCompile(`(?i)^\s*(?:-\s*)?(?:ep?|episode)?\s*(\d{1,3})\b`)

	// Episode markers, most specific first. The span form covers
	// S01E01E02, S01E01-03 and S01E01-E03.
	reEpisodeSpan    = regexp.MustCompile(`(?i)\bS(\d{1,2})\s?E(\d{1,3})(?:\s?E(\d{1,3})|\s?-\s?E?(\d{1,3}))\b`)
	reEpisodeSE      = regexp.MustCompile(`(?i)\bS(\d{1,2})\s?EP?\s?(\d{1,3})\b`)
	reEpisodeX       = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})(?:-(\d{1,3}))?\b`)
	reEpisodeVerbose = regexp.MustCompile(`(?i)\bseason\s?(\d{1,2})\s?episode\s?(\d{1,3})\b`)

	// Season packs: a season marker with no episode attached.
	reCompletePack = regexp.MustCompile(`(?i)\bcomplete\s?season(?:\s?(\d{1,2}))?\b`)
	reSeasonNum    = regexp.MustCompile(`(?i)\bseason\s?(\d{1,2})\b`)
	reSeasonWord   = regexp.MustCompile(`(?i)\bseason\s(one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\b`)
	reBareSeason   = regexp.MustCompile(`(?i)\bS(\d{1,2})\b`)

	// Years. Bare years are range-checked against [1900, now+1] and the
	// last valid one wins, so "Blade Runner 2049 2017" keeps its title.
	reYearParen   = regexp.MustCompile(`\((\d{4})\)`)
	reYearBracket = regexp.MustCompile(`\[(\d{4})\]`)
	reYearBare    = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	reBracketGroup  = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	reFourDigitYear = regexp.MustCompile(`^(?:19|20)\d{2}$`)
	reAcronym       = regexp.MustCompile(`^\d*[A-Z]{2,4}$`)
)

// Noise tokens removed from candidate names. Word-boundary anchored so
// title words never lose inner fragments.
var noisePatterns = []*regexp.Regexp{
	// resolution and dynamic range
	regexp.MustCompile(`(?i)\b\d{3,4}[pi]\b`),
	regexp.MustCompile(`(?i)\b[48]k\b`),
	regexp.MustCompile(`(?i)\buhd\b`),
	regexp.MustCompile(`(?i)\bhdr10\+?\b`),
	regexp.MustCompile(`(?i)\bhdr\b`),
	regexp.MustCompile(`(?i)\bdolby\s?vision\b`),
	regexp.MustCompile(`(?i)\bdovi\b`),
	regexp.MustCompile(`(?i)\bhlg\b`),
	// source
	regexp.MustCompile(`(?i)\bweb[-\s]?(?:dl|rip)\b`),
	regexp.MustCompile(`(?i)\bblu[-\s]?ray\b`),
	regexp.MustCompile(`(?i)\bb[dr][-\s]?rip\b`),
	regexp.MustCompile(`(?i)\bbd[-\s]?remux\b`),
	regexp.MustCompile(`(?i)\bremux\b`),
	regexp.MustCompile(`(?i)\b[hps]dtv\b`),
	regexp.MustCompile(`(?i)\bdvd(?:[-\s]?rip)?\b`),
	regexp.MustCompile(`(?i)\bhd[-\s]?rip\b`),
	regexp.MustCompile(`(?i)\bhdcam\b`),
	regexp.MustCompile(`(?i)\btelesync\b`),
	// codec
	regexp.MustCompile(`(?i)\bx26[45]\b`),
	regexp.MustCompile(`(?i)\bh[-\s]?26[45]\b`),
	regexp.MustCompile(`(?i)\bhevc\b`),
	regexp.MustCompile(`(?i)\bavc\b`),
	regexp.MustCompile(`(?i)\bav1\b`),
	regexp.MustCompile(`(?i)\bxvid\b`),
	regexp.MustCompile(`(?i)\bdivx\b`),
	regexp.MustCompile(`(?i)\b(?:8|10)[-\s]?bit\b`),
	// audio
	regexp.MustCompile(`(?i)\baac\b`),
	regexp.MustCompile(`(?i)\be?ac[-\s]?3\b`),
	regexp.MustCompile(`(?i)\bddp\b`),
	regexp.MustCompile(`(?i)\bdts(?:[-\s]?(?:hd|x|ma|es))?\b`),
	regexp.MustCompile(`(?i)\batmos\b`),
	regexp.MustCompile(`(?i)\btruehd\b`),
	regexp.MustCompile(`(?i)\bflac\b`),
	regexp.MustCompile(`(?i)\bopus\b`),
	regexp.MustCompile(`(?i)\b[257][-\s][01]\b`),
	// language and subtitle markers
	regexp.MustCompile(`(?i)\b(?:hindi|english|french|spanish|german|italian|japanese|korean|chinese|russian|portuguese|tamil|telugu|malayalam)\b`),
	regexp.MustCompile(`(?i)\bdual[-\s]?audio\b`),
	regexp.MustCompile(`(?i)\bmulti\b`),
	regexp.MustCompile(`(?i)\be?subs?\b`),
	regexp.MustCompile(`(?i)\bdubbed\b`),
	// release groups and distribution labels
	regexp.MustCompile(`(?i)\byify\b`),
	regexp.MustCompile(`(?i)\byts(?:[-\s]?(?:mx|am|lt))?\b`),
	regexp.MustCompile(`(?i)\brarbg\b`),
	regexp.MustCompile(`(?i)\be[tz]tv\b`),
	regexp.MustCompile(`(?i)\bamzn\b`),
	regexp.MustCompile(`(?i)\bnf\b`),
	regexp.MustCompile(`(?i)\bhulu\b`),
	regexp.MustCompile(`(?i)\bdsnp\b`),
	regexp.MustCompile(`(?i)\bhmax\b`),
	regexp.MustCompile(`(?i)\batvp\b`),
	regexp.MustCompile(`(?i)\bpcok\b`),
	regexp.MustCompile(`(?i)\bproper\b`),
	regexp.MustCompile(`(?i)\brepack\b`),
	regexp.MustCompile(`(?i)\binternal\b`),
	regexp.MustCompile(`(?i)\blimited\b`),
}

var wordSeasonNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// Folder names too generic to serve as a title fallback.
var genericFolderNames = map[string]bool{
	"downloads": true, "download": true, "incoming": true, "complete": true,
	"completed": true, "media": true, "movies": true, "movie": true,
	"films": true, "film": true, "tv": true, "tv shows": true, "tvshows": true,
	"shows": true, "series": true, "videos": true, "video": true,
	"unsorted": true, "torrents": true, "seeding": true, "temp": true,
	"tmp": true, "new": true, "data": true, "files": true,
}

// Minor words stay lowercase in title casing unless they lead.
var minorWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "but": true, "or": true,
	"nor": true, "of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "by": true, "from": true, "with": true,
}

// Parse derives structured media facts from a filename. parentFolder is
// the directory containing the file; its basename serves as a title
// fallback when the filename itself carries no usable name.
func Parse(filename, parentFolder string) *ParsedMedia {
	name := normalizeText(stripExtension(filename))

	parsed := &ParsedMedia{DetectedType: store.TypeUnknown}
	candidate := ""
	derived := false

	if loc, episode := matchSpecials(name); loc != nil {
		season := 0
		parsed.DetectedType = store.TypeTV
		parsed.Season = &season
		parsed.Episode = episode
		parsed.Confidence += confidenceSpecials
		candidate = pickCandidate(name, loc)
		derived = true
	}

	if parsed.DetectedType == store.TypeUnknown {
		if m := matchEpisode(name); m != nil {
			parsed.DetectedType = store.TypeTV
			parsed.Season = &m.season
			parsed.Episode = &m.episode
			parsed.EpisodeEnd = m.episodeEnd
			parsed.Confidence += m.confidence
			candidate = pickCandidate(name, m.loc)
			derived = true
		}
	}

	if parsed.DetectedType == store.TypeUnknown {
		if m := matchSeasonPack(name); m != nil {
			parsed.DetectedType = store.TypeTV
			parsed.IsSeasonPack = true
			parsed.Season = m.season
			parsed.Confidence += confidenceSeasonPack
			candidate = pickCandidate(name, m.loc)
			derived = true
		}
	}

	if parsed.DetectedType == store.TypeUnknown {
		if m := matchYear(name); m != nil {
			parsed.DetectedType = store.TypeMovie
			parsed.Year = &m.year
			parsed.Confidence += confidenceYear
			candidate = pickCandidate(name, m.loc)
			derived = true
		}
	}

	if derived {
		parsed.DetectedName = trimSeparators(candidate)
		parsed.CleanedName = cleanName(candidate)
	}
	if parsed.CleanedName == "" {
		parsed.applyNameFallback(name, parentFolder)
	}

	parsed.Confidence = clampConfidence(parsed.Confidence)
	return parsed
}

func (p *ParsedMedia) applyNameFallback(name, parentFolder string) {
	// A season directory defers to the show folder directly above it.
	// Generic folder names end the search instead.
	dir := filepath.Clean(parentFolder)
	for i := 0; i < 2 && parentFolder != ""; i++ {
		base := filepath.Base(dir)
		if base == "." || base == string(filepath.Separator) ||
			genericFolderNames[strings.ToLower(strings.TrimSpace(base))] {
			break
		}
		candidate := stripSeasonMarkers(normalizeText(base))
		if cleaned := cleanName(candidate); cleaned != "" {
			p.DetectedName = trimSeparators(candidate)
			p.CleanedName = cleaned
			return
		}
		dir = filepath.Dir(dir)
	}

	p.DetectedName = trimSeparators(name)
	p.CleanedName = cleanName(name)
	p.Confidence -= fallbackPenalty
}

type episodeMatch struct {
	loc        []int
	season     int
	episode    int
	episodeEnd *int
	confidence int
}

func matchEpisode(name string) *episodeMatch {
	if m := reEpisodeSpan.FindStringSubmatchIndex(name); m != nil {
		end := submatchInt(name, m, 3)
		if end == nil {
			end = submatchInt(name, m, 4)
		}
		return &episodeMatch{
			loc:        m[0:2],
			season:     *submatchInt(name, m, 1),
			episode:    *submatchInt(name, m, 2),
			episodeEnd: end,
			confidence: confidenceEpisodeSE,
		}
	}
	if m := reEpisodeSE.FindStringSubmatchIndex(name); m != nil {
		return &episodeMatch{
			loc:        m[0:2],
			season:     *submatchInt(name, m, 1),
			episode:    *submatchInt(name, m, 2),
			confidence: confidenceEpisodeSE,
		}
	}
	if m := reEpisodeX.FindStringSubmatchIndex(name); m != nil {
		return &episodeMatch{
			loc:        m[0:2],
			season:     *submatchInt(name, m, 1),
			episode:    *submatchInt(name, m, 2),
			episodeEnd: submatchInt(name, m, 3),
			confidence: confidenceEpisodeX,
		}
	}
	if m := reEpisodeVerbose.FindStringSubmatchIndex(name); m != nil {
		return &episodeMatch{
			loc:        m[0:2],
			season:     *submatchInt(name, m, 1),
			episode:    *submatchInt(name, m, 2),
			confidence: confidenceVerbose,
		}
	}
	return nil
}

func matchSpecials(name string) ([]int, *int) {
	if m := reSpecialSE.FindStringSubmatchIndex(name); m != nil {
		return m[0:2], submatchInt(name, m, 1)
	}
	if m := reSpecialEpisode0.FindStringIndex(name); m != nil {
		episode := 0
		return m, &episode
	}
	if m := reSpecialWord.FindStringIndex(name); m != nil {
		var episode *int
		if t := reSpecialTrailing.FindStringSubmatch(name[m[1]:]); t != nil {
			if v, err := strconv.Atoi(t[1]); err == nil {
				episode = &v
			}
		}
		return m, episode
	}
	return nil, nil
}

type packMatch struct {
	loc    []int
	season *int
}

func matchSeasonPack(name string) *packMatch {
	if m := reCompletePack.FindStringSubmatchIndex(name); m != nil {
		return &packMatch{loc: m[0:2], season: submatchInt(name, m, 1)}
	}
	if m := reSeasonNum.FindStringSubmatchIndex(name); m != nil {
		return &packMatch{loc: m[0:2], season: submatchInt(name, m, 1)}
	}
	if m := reSeasonWord.FindStringSubmatchIndex(name); m != nil {
		var season *int
		if n, ok := wordSeasonNumbers[strings.ToLower(name[m[2]:m[3]])]; ok {
			season = &n
		}
		return &packMatch{loc: m[0:2], season: season}
	}
	if m := reBareSeason.FindStringSubmatchIndex(name); m != nil {
		return &packMatch{loc: m[0:2], season: submatchInt(name, m, 1)}
	}
	return nil
}

type yearMatch struct {
	loc  []int
	year int
}

func matchYear(name string) *yearMatch {
	maxYear := time.Now().Year() + 1

	for _, re := range []*regexp.Regexp{reYearParen, reYearBracket} {
		for _, m := range re.FindAllStringSubmatchIndex(name, -1) {
			year, _ := strconv.Atoi(name[m[2]:m[3]])
			if year >= 1900 && year <= maxYear {
				return &yearMatch{loc: m[0:2], year: year}
			}
		}
	}

	var last *yearMatch
	for _, m := range reYearBare.FindAllStringSubmatchIndex(name, -1) {
		year, _ := strconv.Atoi(name[m[2]:m[3]])
		if year >= 1900 && year <= maxYear {
			last = &yearMatch{loc: m[0:2], year: year}
		}
	}
	return last
}

// pickCandidate selects the name substring relative to a pattern match:
// the text before it, or the text after when the prefix cleans to
// nothing ("Complete Season 01 - House MD").
func pickCandidate(name string, loc []int) string {
	prefix := name[:loc[0]]
	if cleanName(prefix) != "" {
		return prefix
	}
	return name[loc[1]:]
}

// cleanName strips noise tokens and bracket groups from a candidate and
// title-cases the remainder.
func cleanName(candidate string) string {
	s := reBracketGroup.ReplaceAllStringFunc(candidate, func(group string) string {
		inner := strings.TrimSpace(strings.Trim(group, "()[]"))
		if reFourDigitYear.MatchString(inner) {
			return group
		}
		return " "
	})
	for _, re := range noisePatterns {
		s = re.ReplaceAllString(s, " ")
	}
	s = strings.ReplaceAll(s, "-", " ")
	s = collapseWhitespace(s)
	return titleCase(s)
}

// titleCase capitalizes each word, keeping minor words lowercase unless
// they lead and preserving short all-caps tokens like "MD" or "FBI".
func titleCase(s string) string {
	if s == "" {
		return ""
	}
	caser := cases.Title(language.English)
	words := strings.Fields(s)
	for i, word := range words {
		lower := strings.ToLower(word)
		switch {
		case i > 0 && minorWords[lower]:
			words[i] = lower
		case reAcronym.MatchString(word):
			// keep as-is
		default:
			words[i] = caser.String(lower)
		}
	}
	return strings.Join(words, " ")
}

func stripExtension(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// normalizeText compatibility-decomposes the text and flattens dot and
// underscore separators to spaces. Hyphens survive so that span markers
// like S01E01-03 stay detectable.
func normalizeText(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r == '.' || r == '_' {
			return ' '
		}
		return r
	}, s)
	return collapseWhitespace(s)
}

func stripSeasonMarkers(s string) string {
	for _, re := range []*regexp.Regexp{reCompletePack, reSeasonNum, reSeasonWord, reBareSeason} {
		s = re.ReplaceAllString(s, " ")
	}
	return collapseWhitespace(s)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func trimSeparators(s string) string {
	return strings.Trim(collapseWhitespace(s), " -")
}

func submatchInt(name string, idx []int, group int) *int {
	start, end := idx[2*group], idx[2*group+1]
	if start < 0 {
		return nil
	}
	v, err := strconv.Atoi(name[start:end])
	if err != nil {
		return nil
	}
	return &v
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
