// Spotify Web API client.
//
// Response types follow https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// MaxSearchLimit is the largest page the search endpoint returns.
	MaxSearchLimit = 50
	// MaxTracksPerRequest is the most URIs one add-tracks call accepts.
	MaxTracksPerRequest = 100
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// ExternalURLs holds links to the Spotify web player.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track object as returned by search.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	Popularity   int             `json:"popularity"`
	PreviewURL   *string         `json:"preview_url"`
	ExternalURLs ExternalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifyArtist represents a simplified artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyPlaylist represents a playlist as returned by create.
type SpotifyPlaylist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Public       bool         `json:"public"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyErrorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyService talks to the Spotify Web API.
//
// Search works with app-only (client credentials) access. Playlist mutations need a user token obtained through
// the authorization code flow.
type SpotifyService struct {
	config     *oauth2.Config
	appConfig  *clientcredentials.Config
	tokens     oauth2.TokenSource
	httpClient *http.Client
	userAuth   bool
	baseURL    string
	retry      RetryPolicy
	logger     *log.Logger
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Call [SpotifyService.Authenticate] or [SpotifyService.AuthenticateApp] before making requests.
func NewSpotifyService(credentials map[string]string, logger *log.Logger) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://localhost:8888/callback"
	}

	return &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes: []string{
				"user-read-private",
				"playlist-modify-public",
				"playlist-modify-private",
			},
			Endpoint: oauth2.Endpoint{AuthURL: spotifyAuthURL, TokenURL: spotifyTokenURL},
		},
		appConfig: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyTokenURL,
		},
		baseURL: spotifyBaseURL,
		logger:  shared.DiscardLogger(logger),
	}, nil
}

// OAuthConfig exposes the authorization code flow configuration.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// AuthURL returns the URL the user visits to grant access.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Authenticate sets up user access from a stored token. The token is refreshed automatically when it expires.
func (s *SpotifyService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: no spotify user token, run `djx auth`", shared.ErrNotAuthenticated)
	}
	s.tokens = oauth2.ReuseTokenSource(token, s.config.TokenSource(ctx, token))
	s.httpClient = oauth2.NewClient(ctx, s.tokens)
	s.userAuth = true
	return nil
}

// AuthenticateApp sets up app-only access using the client credentials flow. Only search is available.
func (s *SpotifyService) AuthenticateApp(ctx context.Context) {
	s.tokens = s.appConfig.TokenSource(ctx)
	s.httpClient = oauth2.NewClient(ctx, s.tokens)
	s.userAuth = false
}

// Token returns the current (possibly refreshed) token.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.tokens == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return s.tokens.Token()
}

// UserAuthenticated reports whether playlist mutations are possible.
func (s *SpotifyService) UserAuthenticated() bool {
	return s.userAuth
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated JSON request against the Web API and decodes the response into result.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.httpClient == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := doWithRetry(s.httpClient, req, s.retry, s.logger)
	if err != nil {
		return fmt.Errorf("%w: spotify %s %s: %v", shared.ErrAPIRequest, method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return spotifyError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode spotify response: %v", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

// spotifyError maps a non-2xx response to a sentinel error carrying the API's message.
func spotifyError(resp *http.Response) error {
	var payload spotifyErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload)
	msg := payload.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: spotify: %s", shared.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: spotify: %s", shared.ErrNotAuthenticated, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: spotify: %s", shared.ErrRateLimit, msg)
	default:
		return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
	}
}

func (s *SpotifyService) requireUser() error {
	if !s.userAuth {
		return fmt.Errorf("%w: playlist changes need a spotify user token, run `djx auth`", shared.ErrNotAuthenticated)
	}
	return nil
}

// SearchTracks runs a track search and returns up to limit raw track objects.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]SpotifyTrack, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}
	limit = min(limit, MaxSearchLimit)

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprintf("%d", limit))

	var response spotifySearchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}
	return response.Tracks.Items, nil
}

// CurrentUser retrieves the authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreatePlaylist creates a playlist owned by the current user and returns its id and web URL.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string, public bool) (string, string, error) {
	if err := s.requireUser(); err != nil {
		return "", "", err
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return "", "", err
	}

	body := map[string]any{"name": name, "description": description, "public": public}

	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(user.ID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &playlist); err != nil {
		return "", "", err
	}

	webURL := playlist.ExternalURLs.Spotify
	if webURL == "" {
		webURL = "https://open.spotify.com/playlist/" + playlist.ID
	}
	return playlist.ID, webURL, nil
}

// AddTracks appends tracks to a playlist in the given order. At most [MaxTracksPerRequest] per call.
//
// Track references may be bare ids or spotify:track: URIs.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > MaxTracksPerRequest {
		return fmt.Errorf("%w: %d tracks exceeds the %d per request limit", shared.ErrInvalidInput, len(trackIDs), MaxTracksPerRequest)
	}

	uris := make([]string, len(trackIDs))
	for i, id := range trackIDs {
		uris[i] = TrackURI(id)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPost, endpoint, map[string]any{"uris": uris}, nil)
}

// RenamePlaylist changes a playlist's name. Setting the same name again is a no-op on Spotify's side.
func (s *SpotifyService) RenamePlaylist(ctx context.Context, playlistID, name string) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPut, endpoint, map[string]any{"name": name}, nil)
}

// DeletePlaylist removes the playlist from the user's library by unfollowing it, which is how Spotify deletes.
func (s *SpotifyService) DeletePlaylist(ctx context.Context, playlistID string) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/playlists/%s/followers", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// TrackURI turns a bare track id into a spotify:track: URI; URIs pass through.
func TrackURI(id string) string {
	if strings.HasPrefix(id, "spotify:") {
		return id
	}
	return "spotify:track:" + id
}
