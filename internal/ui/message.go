package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSessionStarted MsgKind = iota
	MsgProgressUpdate
	MsgSessionFinished
	MsgDecision
	MsgAcceptedAll
	MsgExported
	MsgCancelled
)

type sessionStarted struct {
	tracker *tasks.Tracker
	err     error
}

type decision struct {
	change models.Change
	err    error
}

type acceptedAll struct {
	count int
	err   error
}

type exported struct {
	path string
	err  error
}

// sessionStartedMsg is the constructor for [MsgSessionStarted]
func sessionStartedMsg(t *tasks.Tracker, err error) Msg {
	return Msg{kind: MsgSessionStarted, data: sessionStarted{t, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// sessionFinishedMsg is the constructor for [MsgSessionFinished]
func sessionFinishedMsg() Msg {
	return Msg{kind: MsgSessionFinished}
}

// decisionMsg is the constructor for [MsgDecision]
func decisionMsg(c models.Change, err error) Msg {
	return Msg{kind: MsgDecision, data: decision{c, err}}
}

// acceptedAllMsg is the constructor for [MsgAcceptedAll]
func acceptedAllMsg(n int, err error) Msg {
	return Msg{kind: MsgAcceptedAll, data: acceptedAll{n, err}}
}

// exportedMsg is the constructor for [MsgExported]
func exportedMsg(path string, err error) Msg {
	return Msg{kind: MsgExported, data: exported{path, err}}
}

// cancelledMsg is the constructor for [MsgCancelled]
func cancelledMsg(err error) Msg {
	return Msg{kind: MsgCancelled, data: err}
}
