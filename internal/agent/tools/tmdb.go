package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	tmdbBaseURL   = "https://api.themoviedb.org/3"
	tmdbImageBase = "https://image.tmdb.org/t/p/w500"
)

// tmdbClient issues authenticated requests against The Movie Database.
type tmdbClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newTMDBClient(apiKey, baseURL string) *tmdbClient {
	if baseURL == "" {
		baseURL = tmdbBaseURL
	}
	return &tmdbClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *tmdbClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type tmdbMovie struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Popularity   float64 `json:"popularity"`
	PosterPath   string  `json:"poster_path"`
	Language     string  `json:"original_language"`
}

type tmdbSearchResponse struct {
	Results      []tmdbMovie `json:"results"`
	TotalResults int         `json:"total_results"`
}

type formattedMovie struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Overview    string `json:"overview"`
	ReleaseDate string `json:"releaseDate"`
	Rating      string `json:"rating"`
	VoteCount   int    `json:"voteCount"`
	PosterURL   string `json:"posterUrl,omitempty"`
	Language    string `json:"language"`
}

func formatMovie(m tmdbMovie) formattedMovie {
	title := m.Title
	if title == "" {
		title = m.Name
	}
	release := m.ReleaseDate
	if release == "" {
		release = m.FirstAirDate
	}
	rating := "N/A"
	if m.VoteAverage > 0 {
		rating = fmt.Sprintf("%.1f", m.VoteAverage)
	}
	poster := ""
	if m.PosterPath != "" {
		poster = tmdbImageBase + m.PosterPath
	}
	return formattedMovie{
		ID:          m.ID,
		Title:       title,
		Overview:    m.Overview,
		ReleaseDate: release,
		Rating:      rating,
		VoteCount:   m.VoteCount,
		PosterURL:   poster,
		Language:    m.Language,
	}
}

// MovieSearch looks up movies by title.
type MovieSearch struct {
	client *tmdbClient
}

// NewMovieSearch creates the movie search tool. If apiKey is empty it
// tries the TMDB_API_KEY environment variable.
func NewMovieSearch(apiKey string) (*MovieSearch, error) {
	if apiKey == "" {
		apiKey = os.Getenv("TMDB_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("TMDB_API_KEY not set")
	}
	return &MovieSearch{client: newTMDBClient(apiKey, "")}, nil
}

// Name returns the name of the tool.
func (t *MovieSearch) Name() string {
	return "search_movies"
}

// Description returns the description of the tool.
func (t *MovieSearch) Description() string {
	return "Search for movies by title. Use this when users ask about specific movies, " +
		"want to find movies by name, or need movie information. " +
		"Input should be a movie title, e.g. 'Inception'."
}

// Call executes the search and returns the top matches as JSON.
func (t *MovieSearch) Call(ctx context.Context, input string) (string, error) {
	params := url.Values{}
	params.Set("query", input)
	params.Set("include_adult", "false")
	params.Set("language", "en-US")
	params.Set("page", "1")

	var data tmdbSearchResponse
	if err := t.client.get(ctx, "/search/movie", params, &data); err != nil {
		return "", err
	}

	if len(data.Results) == 0 {
		return fmt.Sprintf("No movies found for %q", input), nil
	}

	limit := len(data.Results)
	if limit > 5 {
		limit = 5
	}
	movies := make([]formattedMovie, 0, limit)
	for _, m := range data.Results[:limit] {
		movies = append(movies, formatMovie(m))
	}

	out, err := json.MarshalIndent(map[string]any{
		"searchTerm":   input,
		"totalResults": data.TotalResults,
		"movies":       movies,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// TrendingMovies returns the movies trending this week.
type TrendingMovies struct {
	client *tmdbClient
}

// NewTrendingMovies creates the trending movies tool.
func NewTrendingMovies(apiKey string) (*TrendingMovies, error) {
	if apiKey == "" {
		apiKey = os.Getenv("TMDB_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("TMDB_API_KEY not set")
	}
	return &TrendingMovies{client: newTMDBClient(apiKey, "")}, nil
}

// Name returns the name of the tool.
func (t *TrendingMovies) Name() string {
	return "trending_movies"
}

// Description returns the description of the tool.
func (t *TrendingMovies) Description() string {
	return "Get the movies trending this week. Use this when users ask what is popular " +
		"or trending right now. Input is ignored."
}

// Call fetches this week's trending movies as JSON.
func (t *TrendingMovies) Call(ctx context.Context, _ string) (string, error) {
	var data tmdbSearchResponse
	if err := t.client.get(ctx, "/trending/movie/week", nil, &data); err != nil {
		return "", err
	}

	limit := len(data.Results)
	if limit > 5 {
		limit = 5
	}
	movies := make([]formattedMovie, 0, limit)
	for _, m := range data.Results[:limit] {
		movies = append(movies, formatMovie(m))
	}

	out, err := json.MarshalIndent(map[string]any{"movies": movies}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
