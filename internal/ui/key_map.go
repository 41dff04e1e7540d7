package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	accept      key.Binding
	reject      key.Binding
	skip        key.Binding
	previous    key.Binding
	edit        key.Binding
	reset       key.Binding
	save        key.Binding
	nextChapter key.Binding
	prevChapter key.Binding
	chapters    key.Binding
	acceptAll   key.Binding
	export      key.Binding
	cancel      key.Binding
	enter       key.Binding
	back        key.Binding
	yes         key.Binding
	no          key.Binding
	quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		accept:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "accept")),
		reject:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reject")),
		skip:        key.NewBinding(key.WithKeys("s", "right", "l"), key.WithHelp("→/s", "skip")),
		previous:    key.NewBinding(key.WithKeys("p", "left", "h"), key.WithHelp("←/p", "previous")),
		edit:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		reset:       key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset")),
		save:        key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "accept edit")),
		nextChapter: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next chapter")),
		prevChapter: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev chapter")),
		chapters:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "chapters")),
		acceptAll:   key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "accept all")),
		export:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "export")),
		cancel:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel session")),
		enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:         key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:          key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "no")),
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.accept, k.reject, k.skip, k.edit, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.accept, k.reject, k.skip, k.previous},
		{k.edit, k.reset, k.save},
		{k.nextChapter, k.prevChapter, k.chapters},
		{k.acceptAll, k.export, k.quit},
	}
}
