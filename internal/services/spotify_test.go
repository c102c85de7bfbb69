package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

const searchTracksBody = `{
	"tracks": {
		"items": [
			{
				"id": "track-1",
				"name": "Gasolina",
				"artists": [{"id": "artist-1", "name": "Daddy Yankee", "genres": ["reggaeton"]}],
				"album": {"id": "album-1", "name": "Barrio Fino", "release_date": "2004-07-13"},
				"duration_ms": 192000,
				"explicit": true
			}
		],
		"total": 1
	}
}`

func TestSearchTracks(t *testing.T) {
	ctx := context.Background()

	t.Run("maps the wire format", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("q"); got != "gasolina" {
				t.Errorf("q = %q, want gasolina", got)
			}
			if got := r.URL.Query().Get("type"); got != "track" {
				t.Errorf("type = %q, want track", got)
			}
			if got := r.URL.Query().Get("limit"); got != "10" {
				t.Errorf("limit = %q, want 10", got)
			}
			w.Write([]byte(searchTracksBody))
		}))
		defer server.Close()

		s := NewSpotifyServiceWithClient(server.Client(), server.URL)
		tracks, err := s.SearchTracks(ctx, "gasolina", 10)
		if err != nil {
			t.Fatalf("SearchTracks failed: %v", err)
		}
		if len(tracks) != 1 {
			t.Fatalf("got %d tracks, want 1", len(tracks))
		}

		track := tracks[0]
		if track.ID != "track-1" || track.Title != "Gasolina" {
			t.Errorf("track = %+v, want track-1/Gasolina", track)
		}
		if len(track.Artists) != 1 || track.Artists[0] != "Daddy Yankee" {
			t.Errorf("Artists = %v, want [Daddy Yankee]", track.Artists)
		}
		if track.Album != "Barrio Fino" {
			t.Errorf("Album = %q, want Barrio Fino", track.Album)
		}
		if track.Duration != 192 {
			t.Errorf("Duration = %d, want 192 seconds", track.Duration)
		}
		if track.Year != 2004 {
			t.Errorf("Year = %d, want 2004", track.Year)
		}
		if !track.Explicit {
			t.Error("Explicit = false, want true")
		}
		if track.Source != models.ToolCatalogSearch {
			t.Errorf("Source = %q, want catalog-search", track.Source)
		}
	})

	t.Run("empty query is rejected locally", func(t *testing.T) {
		s := NewSpotifyServiceWithClient(nil, "http://unused.invalid")
		if _, err := s.SearchTracks(ctx, "  ", 10); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("out-of-range limit is clamped", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("limit"); got != "50" {
				t.Errorf("limit = %q, want clamped to 50", got)
			}
			w.Write([]byte(`{"tracks":{"items":[],"total":0}}`))
		}))
		defer server.Close()

		s := NewSpotifyServiceWithClient(server.Client(), server.URL)
		if _, err := s.SearchTracks(ctx, "anything", 500); err != nil {
			t.Fatalf("SearchTracks failed: %v", err)
		}
	})

	t.Run("api error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		s := NewSpotifyServiceWithClient(server.Client(), server.URL)
		if _, err := s.SearchTracks(ctx, "anything", 10); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("err = %v, want ErrAPIRequest", err)
		}
	})
}

func TestSearchArtistID(t *testing.T) {
	ctx := context.Background()

	t.Run("top hit wins", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("type"); got != "artist" {
				t.Errorf("type = %q, want artist", got)
			}
			w.Write([]byte(`{"artists":{"items":[{"id":"artist-1","name":"Daddy Yankee"}],"total":1}}`))
		}))
		defer server.Close()

		s := NewSpotifyServiceWithClient(server.Client(), server.URL)
		id, err := s.SearchArtistID(ctx, "Daddy Yankee")
		if err != nil {
			t.Fatalf("SearchArtistID failed: %v", err)
		}
		if id != "artist-1" {
			t.Errorf("id = %q, want artist-1", id)
		}
	})

	t.Run("no match", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"artists":{"items":[],"total":0}}`))
		}))
		defer server.Close()

		s := NewSpotifyServiceWithClient(server.Client(), server.URL)
		if _, err := s.SearchArtistID(ctx, "Nobody At All"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("err = %v, want ErrTrackNotFound", err)
		}
	})
}

func TestArtistTopTracks(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artists/artist-1/top-tracks" {
			t.Errorf("path = %q, want /artists/artist-1/top-tracks", r.URL.Path)
		}
		w.Write([]byte(`{"tracks":[{"id":"t1","name":"One","artists":[{"id":"artist-1","name":"Daddy Yankee"}],"album":{"name":"Album","release_date":"2010"},"duration_ms":60000}]}`))
	}))
	defer server.Close()

	s := NewSpotifyServiceWithClient(server.Client(), server.URL)
	tracks, err := s.ArtistTopTracks(ctx, "artist-1")
	if err != nil {
		t.Fatalf("ArtistTopTracks failed: %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != "t1" {
		t.Fatalf("tracks = %v, want one track t1", tracks)
	}
	if tracks[0].Source != models.ToolArtistCatalog {
		t.Errorf("Source = %q, want artist-catalog-lookup", tracks[0].Source)
	}
	if tracks[0].Year != 2010 {
		t.Errorf("Year = %d, want 2010 from a year-only release date", tracks[0].Year)
	}
}

func TestDoWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers after a rate limit response", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"tracks":{"items":[],"total":0}}`))
		}))
		defer server.Close()

		s := NewSpotifyServiceWithClient(server.Client(), server.URL)
		if _, err := s.SearchTracks(ctx, "anything", 10); err != nil {
			t.Fatalf("SearchTracks failed: %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("got %d requests, want 2", calls.Load())
		}
	})

	t.Run("gives up after the attempt bound", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		s := NewSpotifyServiceWithClient(server.Client(), server.URL)
		if _, err := s.SearchTracks(ctx, "anything", 10); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("err = %v, want ErrAPIRequest", err)
		}
		if calls.Load() != int32(retryMaxAttempts) {
			t.Errorf("got %d requests, want %d", calls.Load(), retryMaxAttempts)
		}
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		s := NewSpotifyServiceWithClient(server.Client(), server.URL)
		if _, err := s.SearchTracks(ctx, "anything", 10); err == nil {
			t.Fatal("expected an error for 404")
		}
		if calls.Load() != 1 {
			t.Errorf("got %d requests, want 1", calls.Load())
		}
	})
}

func TestReleaseYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"2006-07-14", 2006},
		{"2006-07", 2006},
		{"2006", 2006},
		{"", 0},
		{"abc", 0},
	}
	for _, tt := range tests {
		if got := releaseYear(tt.in); got != tt.want {
			t.Errorf("releaseYear(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
