// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI follows one session from upload to export:
//  1. [ProcessingView] : Live log pane, progress bar and phase while the backend works
//  2. [ReviewView] : Side-by-side highlighted diff of the change under the cursor
//  3. [EditView] : Edit the proposed text before accepting, or reset it to the suggestion
//  4. [ChapterView] : Jump to a chapter, with per-chapter pending counts
//  5. [ResultView] : Cancellation, failure or a session with nothing to review
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the session engine; the tracker's Done channel drives the move to review,
// so a dropped progress update never stalls the UI.
//
// Removed text renders white on red and added text white on green; [b], [i] and heading tags keep their emphasis on both sides.
//
// Credentials are collected with a huh form. [ProgramPrompter] releases the terminal from the running program while the form is shown.
package ui
