// Package tasks drives cleaning sessions against the backend and owns their review state.
//
// # Session lifecycle
//
// [Engine.Start] uploads a book and starts processing. [Engine.Resume] re-attaches to a session
// by id or share link. While a session processes, the engine consumes two server-sent event
// subscriptions: a log stream and an authoritative status stream. When the status stream ends,
// the log stream is torn down and the session is fetched one final time; that fetch delivers the
// chapters and changes to review.
//
// [Engine.Cancel] is terminal: a cancelled session never exposes a change set, even if a fetch
// that was already in flight returns one.
//
// # Review
//
// Every review operation confirms with the backend first. Only a successful call mutates the
// local [review.ChangeSet], so the local state never runs ahead of the server.
//
// # Progress Reporting
//
// Operations report through a [ProgressUpdate] channel. Sends use select with default, so a slow
// consumer drops updates instead of stalling the stream readers.
//
// # Authentication
//
// An authentication failure prompts once through the [Prompter] and retries once. A second
// failure is reported as [shared.ErrAuthFailed].
//
// # Persistence
//
// The optional [Recorder] keeps a local history of sessions and decisions. Its errors are logged
// and never interrupt a session.
package tasks
