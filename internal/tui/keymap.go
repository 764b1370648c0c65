package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the board bindings.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	moveLeft      key.Binding
	moveRight     key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	moveTaskLeft  key.Binding
	moveTaskRight key.Binding
	toBacklog     key.Binding
	autoAssign    key.Binding
	deleteTask    key.Binding
	copyCSV       key.Binding
	save          key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "lane left")),
		moveRight:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "lane right")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		moveTaskLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move task left")),
		moveTaskRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move task right")),
		toBacklog:     key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "send to backlog")),
		autoAssign:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-assign")),
		deleteTask:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete task")),
		copyCSV:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy tasks csv")),
		save:          key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.moveTaskLeft, k.moveTaskRight, k.autoAssign, k.save, k.toggleHelp, k.quit,
	}
}

// FullHelp returns every binding grouped by purpose.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.moveTaskLeft, k.moveTaskRight, k.toBacklog, k.autoAssign, k.deleteTask},
		{k.copyCSV, k.save, k.reload, k.toggleHelp, k.quit},
	}
}
