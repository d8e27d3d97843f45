// Package services holds the HTTP clients for djx's external collaborators.
//
// # Spotify
//
// [SpotifyService] wraps the Web API. Search runs on app-only credentials (client credentials flow); creating,
// filling, renaming and deleting playlists need a user token from the authorization code flow, refreshed
// automatically by [oauth2].
//
// # OpenAI
//
// [OpenAIService] is both the language-model collaborator (chat completions in JSON mode) and the speech-to-text
// collaborator (audio transcriptions).
//
// # Errors
//
// Responses are mapped onto sentinels from the shared package:
//   - [shared.ErrNotFound] : 404, e.g. an unknown playlist id
//   - [shared.ErrNotAuthenticated] : 401/403, or a mutation attempted without a user token
//   - [shared.ErrRateLimit] : 429 after retries are exhausted
//   - [shared.ErrAPIRequest] : anything else
//   - [shared.ErrTranscription] : the audio could not be turned into text
//
// Transport errors, 429 and 5xx are retried with exponential backoff, honouring Retry-After.
package services
