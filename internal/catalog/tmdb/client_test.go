package tmdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediastow/mediastow/internal/config"
)

type staticKey string

func (k staticKey) CatalogAPIKey(context.Context) (string, error) {
	return string(k), nil
}

func newTestClient(server *httptest.Server, key string) *Client {
	cfg := config.CatalogConfig{
		BaseURL:        server.URL,
		RequestTimeout: 5,
	}
	return NewClient(cfg, staticKey(key), zerolog.Nop())
}

func TestClient_SearchMovie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "Matrix", r.URL.Query().Get("query"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))

		json.NewEncoder(w).Encode(movieSearchResponse{
			Results: []movieResult{
				{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-30", PosterPath: "/matrix.jpg"},
				{ID: 604, Title: "The Matrix Reloaded", ReleaseDate: "2003-05-15"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server, "test-key")
	result, err := client.SearchMovie(context.Background(), "The Matrix", nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, int64(603), result.ID)
	assert.Equal(t, "The Matrix", result.Name)
	require.NotNil(t, result.Year)
	assert.Equal(t, 1999, *result.Year)
	assert.Equal(t, "/matrix.jpg", result.PosterPath)
}

func TestClient_SearchMovie_YearPreference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1999", r.URL.Query().Get("year"))

		json.NewEncoder(w).Encode(movieSearchResponse{
			Results: []movieResult{
				{ID: 604, Title: "The Matrix Reloaded", ReleaseDate: "2003-05-15"},
				{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-30"},
			},
		})
	}))
	defer server.Close()

	year := 1999
	client := newTestClient(server, "test-key")
	result, err := client.SearchMovie(context.Background(), "Matrix", &year)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, int64(603), result.ID, "exact release-year match should win over the first result")
}

func TestClient_SearchMovie_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(movieSearchResponse{})
	}))
	defer server.Close()

	client := newTestClient(server, "test-key")
	result, err := client.SearchMovie(context.Background(), "Nonexistent", nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestClient_UnconfiguredKeyReturnsNil(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := newTestClient(server, "")

	movie, err := client.SearchMovie(context.Background(), "Inception", nil)
	require.NoError(t, err)
	assert.Nil(t, movie)

	tv, err := client.SearchTV(context.Background(), "Breaking Bad")
	require.NoError(t, err)
	assert.Nil(t, tv)

	title, err := client.GetEpisodeTitle(context.Background(), 1396, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, title)

	assert.Equal(t, int32(0), calls.Load(), "no key means no requests")
}

func TestClient_SearchTV(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/tv", r.URL.Path)
		assert.Equal(t, "Breaking Bad", r.URL.Query().Get("query"))

		json.NewEncoder(w).Encode(tvSearchResponse{
			Results: []tvResult{
				{ID: 1396, Name: "Breaking Bad", FirstAirDate: "2008-01-20", PosterPath: "/bb.jpg"},
				{ID: 62016, Name: "Breaking Bad: Original Minisodes"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server, "test-key")
	result, err := client.SearchTV(context.Background(), "Breaking Bad")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, int64(1396), result.ID)
	assert.Equal(t, "Breaking Bad", result.Name)
	require.NotNil(t, result.Year)
	assert.Equal(t, 2008, *result.Year)
}

func TestClient_GetEpisodeTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/1396/season/1/episode/1", r.URL.Path)
		json.NewEncoder(w).Encode(episodeResponse{Name: "Pilot"})
	}))
	defer server.Close()

	client := newTestClient(server, "test-key")
	title, err := client.GetEpisodeTitle(context.Background(), 1396, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Pilot", title)
}

func TestClient_RetryOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(movieSearchResponse{
			Results: []movieResult{{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-30"}},
		})
	}))
	defer server.Close()

	client := newTestClient(server, "test-key")
	result, err := client.SearchMovie(context.Background(), "Matrix", nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ServerErrorYieldsNilWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server, "test-key")
	result, err := client.SearchMovie(context.Background(), "Matrix", nil)
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.Equal(t, int32(1), calls.Load(), "non-429 failures are not retried")
}

func TestClient_TransportErrorExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server, "test-key")
	result, err := client.SearchMovie(context.Background(), "Matrix", nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestPrepareQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"stop words dropped", "The Lord of the Rings", "Lord Rings"},
		{"punctuation stripped", "Mission: Impossible - Fallout", "Mission Impossible Fallout"},
		{"whitespace collapsed", "  Breaking   Bad  ", "Breaking Bad"},
		{"only stop words", "the a an", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrepareQuery(tt.in))
		})
	}
}

func TestPrepareQueryTruncation(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "verylongword "
	}
	got := PrepareQuery(long)
	assert.LessOrEqual(t, len(got), 100)
	assert.NotEmpty(t, got)
}
