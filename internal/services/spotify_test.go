package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/djx/internal/shared"
	"golang.org/x/oauth2"
)

// fakeSpotify is an in-memory stand-in for the parts of the Web API djx uses.
type fakeSpotify struct {
	mu        sync.Mutex
	playlists map[string]*fakePlaylist
	searches  []string
	authz     []string
	nextID    int
}

type fakePlaylist struct {
	name   string
	public bool
	uris   []string
}

func newFakeSpotify(t *testing.T) (*fakeSpotify, *httptest.Server) {
	t.Helper()
	fake := &fakeSpotify{playlists: map[string]*fakePlaylist{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"app-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		q := r.URL.Query()
		if q.Get("type") != "track" {
			t.Errorf("expected type=track, got %q", q.Get("type"))
		}
		fake.mu.Lock()
		fake.searches = append(fake.searches, q.Get("q")+"|"+q.Get("limit"))
		fake.mu.Unlock()
		w.Write([]byte(`{"tracks":{"items":[{"id":"t1","name":"Song","popularity":70,"duration_ms":200000,
			"artists":[{"name":"A"},{"name":"B"}],"album":{"name":"Album","images":[{"url":"http://img/1"}]},
			"external_urls":{"spotify":"https://open.spotify.com/track/t1"},"preview_url":null,"uri":"spotify:track:t1"}]}}`))
	})
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		w.Write([]byte(`{"id":"user 1","display_name":"Listener"}`))
	})
	mux.HandleFunc("POST /users/{user}/playlists", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		if r.PathValue("user") != "user 1" {
			t.Errorf("unexpected user %q", r.PathValue("user"))
		}
		var body struct {
			Name   string `json:"name"`
			Public bool   `json:"public"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		fake.mu.Lock()
		fake.nextID++
		id := "pl" + string(rune('0'+fake.nextID))
		fake.playlists[id] = &fakePlaylist{name: body.Name, public: body.Public}
		fake.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":            id,
			"name":          body.Name,
			"external_urls": map[string]string{"spotify": "https://open.spotify.com/playlist/" + id},
		})
	})
	mux.HandleFunc("POST /playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		pl := fake.get(r.PathValue("id"))
		if pl == nil {
			notFound(w)
			return
		}
		var body struct {
			URIs []string `json:"uris"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		fake.mu.Lock()
		pl.uris = append(pl.uris, body.URIs...)
		fake.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"snapshot_id":"s"}`))
	})
	mux.HandleFunc("PUT /playlists/{id}", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		pl := fake.get(r.PathValue("id"))
		if pl == nil {
			notFound(w)
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		fake.mu.Lock()
		pl.name = body.Name
		fake.mu.Unlock()
	})
	mux.HandleFunc("DELETE /playlists/{id}/followers", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		if fake.get(r.PathValue("id")) == nil {
			notFound(w)
			return
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeSpotify) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authz = append(f.authz, r.Header.Get("Authorization"))
}

func (f *fakeSpotify) get(id string) *fakePlaylist {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playlists[id]
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":{"status":404,"message":"Resource not found"}}`))
}

func newTestSpotify(t *testing.T, server *httptest.Server, user bool) *SpotifyService {
	t.Helper()
	srv, err := NewSpotifyService(map[string]string{"client_id": "id", "client_secret": "secret"}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	srv.baseURL = server.URL
	srv.appConfig.TokenURL = server.URL + "/token"
	srv.retry = RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond}

	if user {
		if err := srv.Authenticate(context.Background(), &oauth2.Token{AccessToken: "user-token"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	} else {
		srv.AuthenticateApp(context.Background())
	}
	return srv
}

func TestNewSpotifyService(t *testing.T) {
	tests := []struct {
		name        string
		credentials map[string]string
		wantErr     bool
	}{
		{name: "valid", credentials: map[string]string{"client_id": "a", "client_secret": "b"}},
		{name: "missing client id", credentials: map[string]string{"client_secret": "b"}, wantErr: true},
		{name: "missing client secret", credentials: map[string]string{"client_id": "a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewSpotifyService(tt.credentials, nil)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrMissingCredentials) {
					t.Errorf("expected ErrMissingCredentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.OAuthConfig().RedirectURL != "http://localhost:8888/callback" {
				t.Errorf("unexpected default redirect %s", srv.OAuthConfig().RedirectURL)
			}
			if !strings.Contains(srv.AuthURL("xyz"), "state=xyz") {
				t.Errorf("auth url should carry the state: %s", srv.AuthURL("xyz"))
			}
		})
	}
}

func TestSpotifySearch(t *testing.T) {
	t.Run("app credentials search", func(t *testing.T) {
		fake, server := newFakeSpotify(t)
		srv := newTestSpotify(t, server, false)

		tracks, err := srv.SearchTracks(context.Background(), "alternative rock 90s", 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 || tracks[0].ID != "t1" || len(tracks[0].Artists) != 2 {
			t.Fatalf("unexpected tracks %+v", tracks)
		}
		if tracks[0].PreviewURL != nil {
			t.Error("expected nil preview url")
		}
		if fake.searches[0] != "alternative rock 90s|10" {
			t.Errorf("unexpected search %q", fake.searches[0])
		}
		if fake.authz[0] != "Bearer app-token" {
			t.Errorf("expected app token, got %q", fake.authz[0])
		}
	})

	t.Run("limit is clamped", func(t *testing.T) {
		fake, server := newFakeSpotify(t)
		srv := newTestSpotify(t, server, true)

		if _, err := srv.SearchTracks(context.Background(), "x", 500); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if fake.searches[0] != "x|50" {
			t.Errorf("expected limit 50, got %q", fake.searches[0])
		}
	})

	t.Run("empty query", func(t *testing.T) {
		_, server := newFakeSpotify(t)
		srv := newTestSpotify(t, server, true)
		if _, err := srv.SearchTracks(context.Background(), " ", 10); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		srv, _ := NewSpotifyService(map[string]string{"client_id": "a", "client_secret": "b"}, nil)
		if _, err := srv.SearchTracks(context.Background(), "x", 10); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestSpotifyPlaylists(t *testing.T) {
	ctx := context.Background()

	t.Run("create add rename delete", func(t *testing.T) {
		fake, server := newFakeSpotify(t)
		srv := newTestSpotify(t, server, true)

		id, webURL, err := srv.CreatePlaylist(ctx, "Rock Vibes", "desc", true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if webURL != "https://open.spotify.com/playlist/"+id {
			t.Errorf("unexpected url %s", webURL)
		}

		if err := srv.AddTracks(ctx, id, []string{"a", "spotify:track:b"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := strings.Join(fake.get(id).uris, ","); got != "spotify:track:a,spotify:track:b" {
			t.Errorf("unexpected uris %s", got)
		}

		for range 2 {
			if err := srv.RenamePlaylist(ctx, id, "My Mix"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}
		if fake.get(id).name != "My Mix" {
			t.Errorf("expected renamed playlist, got %s", fake.get(id).name)
		}

		if err := srv.DeletePlaylist(ctx, id); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		for _, h := range fake.authz {
			if h != "Bearer user-token" {
				t.Errorf("expected user token, got %q", h)
			}
		}
	})

	t.Run("unknown playlist maps to ErrNotFound", func(t *testing.T) {
		_, server := newFakeSpotify(t)
		srv := newTestSpotify(t, server, true)

		if err := srv.RenamePlaylist(ctx, "missing", "x"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("rename: expected ErrNotFound, got %v", err)
		}
		if err := srv.DeletePlaylist(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("delete: expected ErrNotFound, got %v", err)
		}
		if err := srv.AddTracks(ctx, "missing", []string{"a"}); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("add: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("mutations need a user token", func(t *testing.T) {
		_, server := newFakeSpotify(t)
		srv := newTestSpotify(t, server, false)

		if _, _, err := srv.CreatePlaylist(ctx, "x", "", true); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if srv.UserAuthenticated() {
			t.Error("app credentials are not user credentials")
		}
	})

	t.Run("add rejects oversized batches", func(t *testing.T) {
		_, server := newFakeSpotify(t)
		srv := newTestSpotify(t, server, true)

		ids := make([]string, MaxTracksPerRequest+1)
		if err := srv.AddTracks(ctx, "pl1", ids); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("gateway errors on create and add are not resent", func(t *testing.T) {
		var mu sync.Mutex
		calls := map[string]int{}
		count := func(r *http.Request) int {
			mu.Lock()
			defer mu.Unlock()
			calls[r.Pattern]++
			return calls[r.Pattern]
		}

		mux := http.NewServeMux()
		mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"u1"}`))
		})
		mux.HandleFunc("POST /users/{user}/playlists", func(w http.ResponseWriter, r *http.Request) {
			if count(r) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"p2"}`))
		})
		mux.HandleFunc("POST /playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
			if count(r) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusCreated)
		})
		mux.HandleFunc("PUT /playlists/{id}", func(w http.ResponseWriter, r *http.Request) {
			if count(r) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		srv := newTestSpotify(t, server, true)

		if _, _, err := srv.CreatePlaylist(ctx, "x", "", true); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("create: expected ErrAPIRequest, got %v", err)
		}
		if err := srv.AddTracks(ctx, "p1", []string{"a"}); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("add: expected ErrAPIRequest, got %v", err)
		}
		if err := srv.RenamePlaylist(ctx, "p1", "y"); err != nil {
			t.Errorf("rename: expected retry to succeed, got %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if n := calls["POST /users/{user}/playlists"]; n != 1 {
			t.Errorf("expected 1 create request, got %d", n)
		}
		if n := calls["POST /playlists/{id}/tracks"]; n != 1 {
			t.Errorf("expected 1 add request, got %d", n)
		}
		if n := calls["PUT /playlists/{id}"]; n != 2 {
			t.Errorf("expected 2 rename requests, got %d", n)
		}
	})

	t.Run("authenticate rejects empty tokens", func(t *testing.T) {
		srv, _ := NewSpotifyService(map[string]string{"client_id": "a", "client_secret": "b"}, nil)
		if err := srv.Authenticate(ctx, nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestSpotifyErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusUnauthorized, want: shared.ErrNotAuthenticated},
		{status: http.StatusTooManyRequests, want: shared.ErrRateLimit},
		{status: http.StatusBadGateway, want: shared.ErrAPIRequest},
		{status: http.StatusBadRequest, want: shared.ErrAPIRequest},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"status":0,"message":"nope"}}`))
			}))
			defer server.Close()

			srv := newTestSpotify(t, server, true)
			_, err := srv.SearchTracks(context.Background(), "x", 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !strings.Contains(err.Error(), "nope") {
				t.Errorf("expected api message in %q", err)
			}
		})
	}
}

func TestTrackURI(t *testing.T) {
	if TrackURI("abc") != "spotify:track:abc" {
		t.Error("bare id should become a URI")
	}
	if TrackURI("spotify:track:abc") != "spotify:track:abc" {
		t.Error("URI should pass through")
	}
}
