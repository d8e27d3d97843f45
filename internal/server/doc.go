// Package server provides the djx HTTP API, its middleware, and the OAuth callback used by `djx auth`.
//
// # Router Infrastructure
//
// [BasicRouter] wraps [http.ServeMux] and registers routes as method patterns ("PUT /playlists/{id}").
// [Middleware] wraps handlers in reverse order (last added executes first).
// [NewHandler] installs [RequestID], [Logging] and [Recover] ahead of the [API] routes.
//
// # Errors
//
// [StatusFor] maps pipeline errors to status codes: bad input is 400, unknown playlists 404, transcription
// failures 422, timeouts 504, and upstream failures 502. A playlist that was curated but could not be saved is
// returned with 207 and an "error" field next to the result.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code for tokens, and sends the
// result through a channel. It processes a single callback.
package server
