// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	searchLimitMax = 50
)

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	URI    string   `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	URI         string          `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	Explicit    bool            `json:"explicit"`
	ExternalIDs externalIDs     `json:"external_ids"`
	Popularity  int             `json:"popularity"`
	URI         string          `json:"uri"`
}

type trackPage struct {
	Items []SpotifyTrack `json:"items"`
	Total int            `json:"total"`
}

type artistPage struct {
	Items []SpotifyArtist `json:"items"`
	Total int             `json:"total"`
}

type searchResponse struct {
	Tracks  *trackPage  `json:"tracks,omitempty"`
	Artists *artistPage `json:"artists,omitempty"`
}

type topTracksResponse struct {
	Tracks []SpotifyTrack `json:"tracks"`
}

// SpotifyService implements [Catalog] against the Spotify Web API using the
// OAuth2 client-credentials flow. All endpoints it touches are read-only.
type SpotifyService struct {
	httpClient *http.Client
	baseURL    string
	market     string
}

var _ Catalog = (*SpotifyService)(nil)

// NewSpotifyService creates a Spotify catalog client with the given app credentials.
func NewSpotifyService(ctx context.Context, clientID, clientSecret string) (*SpotifyService, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}

	return &SpotifyService{
		httpClient: conf.Client(ctx),
		baseURL:    spotifyBaseURL,
		market:     "US",
	}, nil
}

// NewSpotifyServiceWithClient creates a catalog client backed by a custom
// HTTP client and base URL. Used by tests and proxy deployments.
func NewSpotifyServiceWithClient(httpClient *http.Client, baseURL string) *SpotifyService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SpotifyService{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		market:     "US",
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs a GET against the Spotify API, retrying on 429 and 5xx
// responses with exponential backoff and honoring Retry-After.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	apiURL := s.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := doWithRetry(s.httpClient, req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// SearchTracks performs a free-text track search.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	if limit <= 0 || limit > searchLimitMax {
		limit = searchLimitMax
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("market", s.market)

	var res searchResponse
	if err := s.doRequest(ctx, "/search?"+params.Encode(), &res); err != nil {
		return nil, err
	}
	if res.Tracks == nil {
		return []models.CandidateTrack{}, nil
	}

	tracks := make([]models.CandidateTrack, 0, len(res.Tracks.Items))
	for _, item := range res.Tracks.Items {
		tracks = append(tracks, mapTrack(item, models.ToolCatalogSearch))
	}
	return tracks, nil
}

// SearchArtistID resolves an artist name to its catalog identifier, taking
// the top search hit.
func (s *SpotifyService) SearchArtistID(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty artist name", shared.ErrInvalidInput)
	}

	params := url.Values{}
	params.Set("q", name)
	params.Set("type", "artist")
	params.Set("limit", "1")

	var res searchResponse
	if err := s.doRequest(ctx, "/search?"+params.Encode(), &res); err != nil {
		return "", err
	}
	if res.Artists == nil || len(res.Artists.Items) == 0 {
		return "", fmt.Errorf("%w: no artist named %q", shared.ErrTrackNotFound, name)
	}
	return res.Artists.Items[0].ID, nil
}

// ArtistTopTracks returns the artist's top tracks for the configured market.
func (s *SpotifyService) ArtistTopTracks(ctx context.Context, artistID string) ([]models.CandidateTrack, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: empty artist id", shared.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("/artists/%s/top-tracks?market=%s", url.PathEscape(artistID), s.market)

	var res topTracksResponse
	if err := s.doRequest(ctx, endpoint, &res); err != nil {
		return nil, err
	}

	tracks := make([]models.CandidateTrack, 0, len(res.Tracks))
	for _, item := range res.Tracks {
		tracks = append(tracks, mapTrack(item, models.ToolArtistCatalog))
	}
	return tracks, nil
}

// mapTrack converts a Spotify wire track into the domain candidate shape.
func mapTrack(t SpotifyTrack, source models.Tool) models.CandidateTrack {
	artists := make([]string, 0, len(t.Artists))
	artistIDs := make([]string, 0, len(t.Artists))
	genres := []string{}
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
		artistIDs = append(artistIDs, a.ID)
		genres = append(genres, a.Genres...)
	}

	return models.CandidateTrack{
		ID:        t.ID,
		Title:     t.Name,
		Artists:   artists,
		ArtistIDs: artistIDs,
		Album:     t.Album.Name,
		Duration:  t.DurationMS / 1000,
		Year:      releaseYear(t.Album.ReleaseDate),
		Genres:    genres,
		Explicit:  t.Explicit,
		Source:    source,
	}
}

// releaseYear parses the leading year from a Spotify release date, which may
// be "2006", "2006-07" or "2006-07-14".
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// retry policy for catalog requests

const (
	retryMaxAttempts = 3
	retryBaseBackoff = 500 * time.Millisecond
)

func doWithRetry(client *http.Client, req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var lastStatus int
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		retryAfter, retry := shouldRetry(resp, err)
		if !retry {
			return resp, err
		}

		if resp != nil {
			lastStatus = resp.StatusCode
			resp.Body.Close()
		}

		if attempt == retryMaxAttempts-1 {
			break
		}

		backoff := retryBaseBackoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts (last status %d)", retryMaxAttempts, lastStatus)
}

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}
	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}
