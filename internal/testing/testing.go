// package testing contains shared test doubles and helpers
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/djx/internal/services"
	"github.com/desertthunder/djx/internal/shared"
)

// MockPlaylistAPI is an in-memory remote playlist store.
//
// CreateErr fails creation. FailAddAt fails the n-th AddTracks call (1-based, zero disables).
type MockPlaylistAPI struct {
	mu        sync.Mutex
	Playlists map[string]string // id to name
	Tracks    map[string][]string
	Batches   [][]string
	Public    []bool
	CreateErr error
	FailAddAt int
	AddErr    error
	addCalls  int
	nextID    int
}

func NewMockPlaylistAPI() *MockPlaylistAPI {
	return &MockPlaylistAPI{Playlists: map[string]string{}, Tracks: map[string][]string{}}
}

func (m *MockPlaylistAPI) CreatePlaylist(ctx context.Context, name, description string, public bool) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", "", m.CreateErr
	}
	m.nextID++
	id := fmt.Sprintf("pl%d", m.nextID)
	m.Playlists[id] = name
	m.Public = append(m.Public, public)
	return id, "https://open.spotify.com/playlist/" + id, nil
}

func (m *MockPlaylistAPI) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if m.FailAddAt > 0 && m.addCalls == m.FailAddAt {
		if m.AddErr != nil {
			return m.AddErr
		}
		return shared.ErrAPIRequest
	}
	if _, ok := m.Playlists[playlistID]; !ok {
		return shared.ErrNotFound
	}
	batch := append([]string(nil), trackIDs...)
	m.Batches = append(m.Batches, batch)
	m.Tracks[playlistID] = append(m.Tracks[playlistID], batch...)
	return nil
}

func (m *MockPlaylistAPI) RenamePlaylist(ctx context.Context, playlistID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Playlists[playlistID]; !ok {
		return shared.ErrNotFound
	}
	m.Playlists[playlistID] = name
	return nil
}

func (m *MockPlaylistAPI) DeletePlaylist(ctx context.Context, playlistID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Playlists[playlistID]; !ok {
		return shared.ErrNotFound
	}
	delete(m.Playlists, playlistID)
	delete(m.Tracks, playlistID)
	return nil
}

// Seed adds an existing playlist.
func (m *MockPlaylistAPI) Seed(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Playlists[id] = name
}

// Name returns a playlist's current name and whether it exists.
func (m *MockPlaylistAPI) Name(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.Playlists[id]
	return name, ok
}

// MockSearcher answers catalog searches from fixed tables keyed by query text.
type MockSearcher struct {
	mu      sync.Mutex
	Results map[string][]services.SpotifyTrack
	Errs    map[string]error
	Err     error // returned for every query when set
	Queries []string
}

func (m *MockSearcher) SearchTracks(ctx context.Context, query string, limit int) ([]services.SpotifyTrack, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if err := m.Errs[query]; err != nil {
		return nil, err
	}
	return m.Results[query], nil
}

// Searched returns the queries seen so far.
func (m *MockSearcher) Searched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Queries...)
}

// MockModel is a canned language model for intent extraction.
type MockModel struct {
	Response string
	Err      error
	Calls    int
}

func (m *MockModel) InferIntent(ctx context.Context, instruction, transcript string) (string, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// MockTranscriber returns a fixed transcript.
type MockTranscriber struct {
	Transcript string
	Err        error
	Formats    []string
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	m.Formats = append(m.Formats, format)
	if m.Err != nil {
		return "", m.Err
	}
	if len(audio) == 0 {
		return "", shared.ErrEmptyInput
	}
	return m.Transcript, nil
}

// Track builds a raw catalog track.
func Track(id, name, artist string, popularity int) services.SpotifyTrack {
	return services.SpotifyTrack{
		ID:         id,
		Name:       name,
		Artists:    []services.SpotifyArtist{{Name: artist}},
		Album:      services.SpotifyAlbum{Name: name + " (album)"},
		DurationMS: 200000,
		Popularity: popularity,
	}
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

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
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
