package tmdb

// Result is the normalized outcome of a catalog lookup.
type Result struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Year       *int   `json:"year,omitempty"`
	PosterPath string `json:"posterPath,omitempty"`
}

type movieSearchResponse struct {
	Results []movieResult `json:"results"`
}

type movieResult struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	PosterPath  string `json:"poster_path"`
}

type tvSearchResponse struct {
	Results []tvResult `json:"results"`
}

type tvResult struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	FirstAirDate string `json:"first_air_date"`
	PosterPath   string `json:"poster_path"`
}

type episodeResponse struct {
	Name string `json:"name"`
}
