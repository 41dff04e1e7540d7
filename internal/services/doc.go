// Package services implements the HTTP client for the book cleaning backend.
//
// # Backend Interface
//
// [Backend] is the boundary the session engine consumes: upload, start processing, the two event
// streams, session fetch, change decisions, export and cancel. [APIService] implements it over HTTP.
//
// # Streams
//
// Logs and status arrive as server-sent events. Each subscription is a [Stream] read by explicit
// iteration with Next; Close is idempotent and no event is delivered after it returns. A stream
// ends with [io.EOF] when the server closes the connection or sends an "end" event.
//
// # Credentials
//
// Credentials are optional and sent as HTTP basic auth once set with [APIService.SetCredentials].
// A 401 or 403 response maps to [shared.ErrNotAuthenticated] so callers can prompt and retry.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : credentials missing or rejected
//   - [shared.ErrSessionNotFound] : unknown session id (404)
//   - [shared.ErrServiceUnavailable] : backend returned 5xx
//   - [shared.ErrAPIRequest] : any other failed request
//
// Every request waits on a shared [rate.Limiter] before it is sent.
package services
