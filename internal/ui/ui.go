package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/bookclean/internal/formatter"
	"github.com/desertthunder/bookclean/internal/markup"
	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/review"
	"github.com/desertthunder/bookclean/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ProcessingView ViewState = iota
	ReviewView
	EditView
	ChapterView
	ResultView
)

// Options selects what the TUI drives: a new upload when File is set, otherwise a resumed Session.
type Options struct {
	File      string
	Session   string
	Process   models.ProcessOptions
	OutputDir string
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	engine *tasks.Engine
	opts   Options
	view   ViewState
	width  int
	height int

	tracker      *tasks.Tracker
	sessionID    string
	session      models.Session
	progressChan chan tasks.ProgressUpdate
	logs         viewport.Model
	bar          progress.Model
	spinner      spinner.Model

	state       tasks.ReviewState
	editor      textarea.Model
	chapterList list.Model
	busy        bool
	notice      string
	err         error

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, engine *tasks.Engine, opts Options) *Model {
	editor := textarea.New()
	editor.Placeholder = "Proposed text"
	editor.ShowLineNumbers = false

	chapters := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	chapters.Title = "Chapters"
	chapters.SetFilteringEnabled(false)

	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}

	return &Model{
		ctx:          ctx,
		engine:       engine,
		opts:         opts,
		view:         ProcessingView,
		progressChan: make(chan tasks.ProgressUpdate, 100),
		logs:         viewport.New(80, 10),
		bar:          progress.New(progress.WithDefaultGradient()),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		editor:       editor,
		chapterList:  chapters,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// View returns the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case ProcessingView:
		return m.renderProcessing()
	case ReviewView:
		return m.renderReview()
	case EditView:
		return m.renderEdit()
	case ChapterView:
		return m.renderChapters()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// Init starts or resumes the session.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.begin())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case ProcessingView:
			return m.handleProcessingKeys(msg)
		case ReviewView:
			return m.handleReviewKeys(msg)
		case EditView:
			return m.handleEditKeys(msg)
		case ChapterView:
			return m.handleChapterKeys(msg)
		case ResultView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == EditView {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.logs.Width = max(width-4, 20)
	m.logs.Height = max(height-10, 5)
	m.bar.Width = max(width-4, 20)
	m.editor.SetWidth(max(width-4, 20))
	m.editor.SetHeight(max(height/3, 5))
	m.chapterList.SetSize(max(width-4, 20), max(height-6, 5))
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSessionStarted:
		data := msg.data.(sessionStarted)
		if data.err != nil {
			m.err = data.err
			m.view = ResultView
			return m, nil
		}
		m.tracker = data.tracker
		m.sessionID = data.tracker.ID()
		m.session = data.tracker.Snapshot().Session
		m.syncLogs()
		return m, tea.Batch(m.waitForProgress(), m.waitForDone())

	case MsgProgressUpdate:
		u := msg.data.(tasks.ProgressUpdate)
		if u.SessionID == m.sessionID {
			m.session.Status = u.Status
			m.session.Phase = u.Phase
			m.session.Progress = u.Progress
			m.syncLogs()
		}
		return m, m.waitForProgress()

	case MsgSessionFinished:
		m.finish()
		return m, nil

	case MsgDecision:
		m.busy = false
		data := msg.data.(decision)
		if data.err != nil {
			m.notice = styles.err.Render(data.err.Error())
			return m, nil
		}
		verb := "Rejected"
		if data.change.Status == models.StatusAccepted {
			verb = "Accepted"
		}
		m.notice = styles.ok.Render(fmt.Sprintf("%s %s", verb, data.change.ID))
		m.editor.Blur()
		m.view = ReviewView
		m.refresh()
		return m, nil

	case MsgAcceptedAll:
		m.busy = false
		data := msg.data.(acceptedAll)
		if data.err != nil {
			m.notice = styles.err.Render(data.err.Error())
			return m, nil
		}
		m.notice = styles.ok.Render(fmt.Sprintf("Accepted %d changes", data.count))
		m.refresh()
		return m, nil

	case MsgExported:
		m.busy = false
		data := msg.data.(exported)
		if data.err != nil {
			m.notice = styles.err.Render(data.err.Error())
			return m, nil
		}
		m.notice = styles.ok.Render("Exported to " + data.path)
		return m, nil

	case MsgCancelled:
		if err, _ := msg.data.(error); err != nil {
			m.notice = styles.err.Render(err.Error())
		}
		return m, nil
	}
	return m, nil
}

// finish moves to the review view or the result view once streaming is over.
func (m *Model) finish() {
	if m.tracker == nil {
		return
	}
	snap := m.tracker.Snapshot()
	m.session = snap.Session
	m.syncLogs()

	switch {
	case snap.Cancelled:
		m.notice = styles.warn.Render("Session cancelled.")
		m.view = ResultView
	case snap.Err != nil:
		m.err = snap.Err
		m.view = ResultView
	case m.tracker.Reviewable():
		m.view = ReviewView
		m.refresh()
	case snap.Status == models.SessionError:
		m.notice = styles.err.Render("Processing failed: " + snap.Error)
		m.view = ResultView
	default:
		m.notice = fmt.Sprintf("Session ended with status %s.", snap.Status)
		m.view = ResultView
	}
}

func (m *Model) syncLogs() {
	if m.tracker == nil {
		return
	}
	m.logs.SetContent(strings.Join(m.tracker.Logs(), "\n"))
	m.logs.GotoBottom()
}

func (m *Model) refresh() {
	m.navigate(func(*review.Cursor) {})
}

func (m *Model) navigate(fn func(*review.Cursor)) {
	state, err := m.engine.Navigate(m.ctx, m.sessionID, fn)
	if err != nil {
		m.err = err
		return
	}
	m.state = state
}

func (m *Model) handleProcessingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.cancel) && m.tracker != nil:
		m.notice = styles.warn.Render("Cancelling...")
		return m, m.cancelSession()
	}
	return m, nil
}

func (m *Model) handleReviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.accept) && m.state.HasCurrent:
		m.busy = true
		return m, m.acceptCurrent(m.state.Current.Proposed)
	case key.Matches(msg, m.keys.reject) && m.state.HasCurrent:
		m.busy = true
		return m, m.rejectCurrent()
	case key.Matches(msg, m.keys.skip):
		m.navigate(func(c *review.Cursor) { c.Skip() })
	case key.Matches(msg, m.keys.previous):
		m.navigate(func(c *review.Cursor) { c.Previous() })
	case key.Matches(msg, m.keys.edit) && m.state.HasCurrent:
		m.editor.SetValue(m.state.Current.Proposed)
		m.view = EditView
		return m, m.editor.Focus()
	case key.Matches(msg, m.keys.nextChapter):
		next := adjacentChapter(m.state, 1)
		m.navigate(func(c *review.Cursor) { c.SelectChapter(next) })
	case key.Matches(msg, m.keys.prevChapter):
		prev := adjacentChapter(m.state, -1)
		m.navigate(func(c *review.Cursor) { c.SelectChapter(prev) })
	case key.Matches(msg, m.keys.chapters):
		m.chapterList.SetItems(chapterItems(m.state.Chapters))
		m.view = ChapterView
	case key.Matches(msg, m.keys.acceptAll):
		m.busy = true
		return m, m.acceptAll()
	case key.Matches(msg, m.keys.export):
		m.busy = true
		m.notice = "Exporting..."
		return m, m.export()
	}
	return m, nil
}

func (m *Model) handleEditKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.editor.Blur()
		m.view = ReviewView
		return m, nil
	case key.Matches(msg, m.keys.save):
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.acceptCurrent(m.editor.Value())
	case key.Matches(msg, m.keys.reset):
		var (
			text string
			err  error
		)
		m.navigate(func(c *review.Cursor) { text, err = c.ResetCurrent() })
		if err != nil {
			return m, nil
		}
		m.editor.SetValue(text)
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m *Model) handleChapterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = ReviewView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.chapterList.SelectedItem().(chapterItem); ok {
			m.navigate(func(c *review.Cursor) { c.SelectChapter(item.chapter.Index) })
		}
		m.view = ReviewView
		return m, nil
	}

	var cmd tea.Cmd
	m.chapterList, cmd = m.chapterList.Update(msg)
	return m, cmd
}

// adjacentChapter returns the chapter index delta positions away from the selected one, wrapping.
func adjacentChapter(state tasks.ReviewState, delta int) int {
	n := len(state.Chapters)
	if n == 0 {
		return state.Chapter
	}
	pos := 0
	for i, ch := range state.Chapters {
		if ch.Index == state.Chapter {
			pos = i
			break
		}
	}
	return state.Chapters[((pos+delta)%n+n)%n].Index
}

func (m *Model) begin() tea.Cmd {
	return func() tea.Msg {
		var (
			t   *tasks.Tracker
			err error
		)
		if m.opts.File != "" {
			t, err = m.engine.Start(m.ctx, m.opts.File, m.opts.Process, m.progressChan)
		} else {
			t, err = m.engine.Resume(m.ctx, m.opts.Session, m.progressChan)
		}
		return sessionStartedMsg(t, err)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-m.progressChan:
			return progressUpdateMsg(u)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForDone() tea.Cmd {
	t := m.tracker
	return func() tea.Msg {
		select {
		case <-t.Done():
		case <-m.ctx.Done():
		}
		return sessionFinishedMsg()
	}
}

func (m *Model) acceptCurrent(text string) tea.Cmd {
	return func() tea.Msg {
		c, err := m.engine.AcceptCurrent(m.ctx, m.sessionID, text)
		return decisionMsg(c, err)
	}
}

func (m *Model) rejectCurrent() tea.Cmd {
	return func() tea.Msg {
		c, err := m.engine.RejectCurrent(m.ctx, m.sessionID)
		return decisionMsg(c, err)
	}
}

func (m *Model) acceptAll() tea.Cmd {
	return func() tea.Msg {
		n, err := m.engine.AcceptAll(m.ctx, m.sessionID)
		return acceptedAllMsg(n, err)
	}
}

func (m *Model) export() tea.Cmd {
	return func() tea.Msg {
		a, err := m.engine.Export(m.ctx, m.sessionID)
		if err != nil {
			return exportedMsg("", err)
		}
		path, err := formatter.WriteArtifact(a, m.opts.OutputDir, m.sessionID+".epub")
		return exportedMsg(path, err)
	}
}

func (m *Model) cancelSession() tea.Cmd {
	return func() tea.Msg {
		return cancelledMsg(m.engine.Cancel(m.ctx, m.sessionID))
	}
}

func (m *Model) selectedChapter() models.Chapter {
	for _, ch := range m.state.Chapters {
		if ch.Index == m.state.Chapter {
			return ch
		}
	}
	return models.Chapter{Index: m.state.Chapter}
}

func (m *Model) renderProcessing() string {
	name := m.session.Filename
	if name == "" {
		name = m.sessionID
	}
	title := styles.title.Render("Cleaning " + name)

	status := fmt.Sprintf("%s %s", m.spinner.View(), m.session.Status)
	if m.session.Phase != "" {
		status = fmt.Sprintf("%s · %s", status, m.session.Phase)
	}
	bar := m.bar.ViewAs(float64(m.session.Progress) / 100)
	logs := styles.pane.Render(m.logs.View())

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel, m.keys.quit})
	return lipgloss.JoinVertical(lipgloss.Left, title, status, bar, logs, m.notice, helpView)
}

func (m *Model) renderReview() string {
	title := styles.title.Render(fmt.Sprintf("Review %s", m.session.Filename))
	counts := RenderCounts(m.state.Counts)
	ch := m.selectedChapter()

	var body string
	switch {
	case m.state.EmptyChapter:
		body = RenderEmptyChapter(ch, m.state.ChapterCounts)
	case !m.state.HasCurrent:
		body = styles.ok.Render("All changes reviewed.") + "\n" + styles.help.Render("Press x to export the cleaned book.")
	default:
		cur := m.state.Current
		header := fmt.Sprintf("%s · change %s (%d of %d pending)", ch.Name(), cur.ID, m.state.Index+1, m.state.Pending)
		if cur.Reason != "" {
			header += "\n" + styles.help.Render(cur.Reason)
		}
		if cur.Edited() {
			header += " " + styles.warn.Render("(edited)")
		}
		body = header + "\n" + RenderChange(cur, m.width)
	}

	helpView := m.help.ShortHelpView([]key.Binding{
		m.keys.accept, m.keys.reject, m.keys.skip, m.keys.previous, m.keys.edit,
		m.keys.nextChapter, m.keys.chapters, m.keys.acceptAll, m.keys.export, m.keys.quit,
	})
	return lipgloss.JoinVertical(lipgloss.Left, title, counts, "", body, "", m.notice, helpView)
}

func (m *Model) renderEdit() string {
	title := styles.title.Render(fmt.Sprintf("Edit change %s", m.state.Current.ID))
	original := styles.pane.Render(styles.label.Render("Original") + "\n" + markup.Strip(m.state.Current.Original))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.save, m.keys.reset, m.keys.back})
	return lipgloss.JoinVertical(lipgloss.Left, title, original, m.editor.View(), m.notice, helpView)
}

func (m *Model) renderChapters() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back})
	return fmt.Sprintf("%s\n\n%s", m.chapterList.View(), helpView)
}

func (m *Model) renderResult() string {
	var body string
	if m.err != nil {
		body = styles.err.Render(fmt.Sprintf("Session failed: %v", m.err))
	} else {
		body = m.notice
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", body, helpView)
}
