package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/config"
)

// KeyProvider supplies the catalog API key. The key lives in settings
// and may change at runtime, so it is read on every request.
type KeyProvider interface {
	CatalogAPIKey(ctx context.Context) (string, error)
}

const (
	maxAttempts   = 3
	maxQueryLen   = 100
	transportWait = 500 * time.Millisecond
)

var reNonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "of": true,
	"in": true, "on": true, "at": true, "to": true, "for": true,
}

// Client is a metadata catalog client. Lookups degrade to a nil result
// rather than an error whenever the catalog is unreachable, rejects the
// request, or has no key configured, so a scan never aborts on catalog
// trouble.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keys       KeyProvider
	logger     zerolog.Logger
}

// NewClient creates a new catalog client.
func NewClient(cfg config.CatalogConfig, keys KeyProvider, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		keys:    keys,
		logger:  logger.With().Str("component", "tmdb").Logger(),
	}
}

// SearchMovie looks up a movie by name. When year is given and some
// result carries that exact release year it is preferred; otherwise the
// first result wins.
func (c *Client) SearchMovie(ctx context.Context, name string, year *int) (*Result, error) {
	key := c.apiKey(ctx)
	query := PrepareQuery(name)
	if key == "" || query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("api_key", key)
	params.Set("query", query)
	params.Set("include_adult", "false")
	if year != nil {
		params.Set("year", strconv.Itoa(*year))
	}

	var response movieSearchResponse
	ok, err := c.doRequest(ctx, c.baseURL+"/search/movie", params, &response)
	if err != nil || !ok || len(response.Results) == 0 {
		return nil, err
	}

	chosen := response.Results[0]
	if year != nil {
		for _, candidate := range response.Results {
			if ry := releaseYear(candidate.ReleaseDate); ry != nil && *ry == *year {
				chosen = candidate
				break
			}
		}
	}

	c.logger.Debug().
		Str("query", query).
		Int64("id", chosen.ID).
		Str("title", chosen.Title).
		Msg("Movie lookup matched")

	return &Result{
		ID:         chosen.ID,
		Name:       chosen.Title,
		Year:       releaseYear(chosen.ReleaseDate),
		PosterPath: chosen.PosterPath,
	}, nil
}

// SearchTV looks up a TV series by name. The first result wins.
func (c *Client) SearchTV(ctx context.Context, name string) (*Result, error) {
	key := c.apiKey(ctx)
	query := PrepareQuery(name)
	if key == "" || query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("api_key", key)
	params.Set("query", query)
	params.Set("include_adult", "false")

	var response tvSearchResponse
	ok, err := c.doRequest(ctx, c.baseURL+"/search/tv", params, &response)
	if err != nil || !ok || len(response.Results) == 0 {
		return nil, err
	}

	chosen := response.Results[0]

	c.logger.Debug().
		Str("query", query).
		Int64("id", chosen.ID).
		Str("name", chosen.Name).
		Msg("TV lookup matched")

	return &Result{
		ID:         chosen.ID,
		Name:       chosen.Name,
		Year:       releaseYear(chosen.FirstAirDate),
		PosterPath: chosen.PosterPath,
	}, nil
}

// GetEpisodeTitle fetches the title of a single episode. It returns ""
// when the episode is unknown or the catalog is unavailable.
func (c *Client) GetEpisodeTitle(ctx context.Context, seriesID int64, season, episode int) (string, error) {
	key := c.apiKey(ctx)
	if key == "" {
		return "", nil
	}

	params := url.Values{}
	params.Set("api_key", key)

	endpoint := fmt.Sprintf("%s/tv/%d/season/%d/episode/%d", c.baseURL, seriesID, season, episode)

	var response episodeResponse
	ok, err := c.doRequest(ctx, endpoint, params, &response)
	if err != nil || !ok {
		return "", err
	}
	return response.Name, nil
}

// PrepareQuery normalizes a lookup query: non-alphanumerics become
// spaces, stop words drop out, whitespace collapses, and the result is
// truncated to 100 characters.
func PrepareQuery(name string) string {
	cleaned := reNonAlnum.ReplaceAllString(name, " ")
	words := strings.Fields(cleaned)
	kept := words[:0]
	for _, word := range words {
		if !stopWords[strings.ToLower(word)] {
			kept = append(kept, word)
		}
	}
	query := strings.Join(kept, " ")
	if len(query) > maxQueryLen {
		query = strings.TrimSpace(query[:maxQueryLen])
	}
	return query
}

func (c *Client) apiKey(ctx context.Context) string {
	key, err := c.keys.CatalogAPIKey(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Catalog key lookup failed")
		return ""
	}
	return key
}

// doRequest performs a GET with retries. It reports ok=false with a nil
// error when the catalog rejected the request or retries ran out.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) (bool, error) {
	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return false, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			c.logger.Warn().Err(err).Str("url", endpoint).Int("attempt", attempt).Msg("Catalog request failed")
			if attempt < maxAttempts {
				if err := sleepContext(ctx, transportWait); err != nil {
					return false, err
				}
			}
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(result)
			resp.Body.Close()
			if err != nil {
				return false, fmt.Errorf("failed to decode response: %w", err)
			}
			return true, nil

		case http.StatusTooManyRequests:
			resp.Body.Close()
			c.logger.Warn().Int("attempt", attempt).Msg("Catalog rate limited")
			if attempt < maxAttempts {
				if err := sleepContext(ctx, time.Duration(attempt)*time.Second); err != nil {
					return false, err
				}
			}

		default:
			resp.Body.Close()
			c.logger.Warn().Int("status", resp.StatusCode).Str("url", endpoint).Msg("Catalog request rejected")
			return false, nil
		}
	}

	return false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func releaseYear(date string) *int {
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return nil
	}
	return &year
}
