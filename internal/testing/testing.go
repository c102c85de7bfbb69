// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/setlist/internal/models"
)

// MockCatalog is a test double for [services.Catalog]. Queries are matched
// case-insensitively against the Searches map by substring; unmatched
// queries return empty results unless Err is set. Safe for the collector's
// concurrent calls.
type MockCatalog struct {
	Searches  map[string][]models.CandidateTrack
	ArtistIDs map[string]string
	TopTracks map[string][]models.CandidateTrack
	Err       error
	SearchLog []string
	LookupLog []string
	mu        sync.Mutex
}

func (m *MockCatalog) SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchLog = append(m.SearchLog, query)
	if m.Err != nil {
		return nil, m.Err
	}
	for key, tracks := range m.Searches {
		if strings.Contains(strings.ToLower(query), strings.ToLower(key)) {
			if limit > 0 && len(tracks) > limit {
				return tracks[:limit], nil
			}
			return tracks, nil
		}
	}
	return []models.CandidateTrack{}, nil
}

func (m *MockCatalog) SearchArtistID(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LookupLog = append(m.LookupLog, name)
	if m.Err != nil {
		return "", m.Err
	}
	if id, ok := m.ArtistIDs[strings.ToLower(name)]; ok {
		return id, nil
	}
	return "", fmt.Errorf("artist not found: %s", name)
}

func (m *MockCatalog) ArtistTopTracks(ctx context.Context, artistID string) ([]models.CandidateTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.TopTracks[artistID], nil
}

func (m *MockCatalog) Name() string { return "mock-catalog" }

// MockGenerator is a test double for [services.Generator]. It returns the
// queued responses in order, then ErrExhausted.
type MockGenerator struct {
	Responses []string
	Err       error
	Prompts   []string
	calls     int
	mu        sync.Mutex
}

// ErrExhausted is returned once every queued response has been consumed.
var ErrExhausted = errors.New("no responses queued")

func (m *MockGenerator) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if m.calls >= len(m.Responses) {
		return "", ErrExhausted
	}
	response := m.Responses[m.calls]
	m.calls++
	return response, nil
}

func (m *MockGenerator) Name() string { return "mock-generator" }

// Track builds a minimal candidate for table-driven tests.
func Track(id, title string, artists ...string) models.CandidateTrack {
	return models.CandidateTrack{ID: id, Title: title, Artists: artists}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
