// Package tui provides the interactive terminal sprint board.
package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/evanschultz/sprinter/internal/adapters/render"
	"github.com/evanschultz/sprinter/internal/app"
	"github.com/evanschultz/sprinter/internal/domain"
)

// Service is the slice of the planning service the board drives.
type Service interface {
	Board(context.Context) (app.Board, error)
	Assign(context.Context, string, string) (domain.Task, error)
	AutoAssign(context.Context) (int, error)
	RemoveTask(context.Context, string) error
	Save(context.Context) error
}

// boardChrome counts the non-task rows: summary, lane borders, lane header, scroll markers, status and help.
const boardChrome = 11

// Option customizes a Model.
type Option func(*Model)

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// Model is the bubbletea board model.
type Model struct {
	svc      Service
	keys     keyMap
	help     help.Model
	copyText func(string) error

	board app.Board
	lanes []render.Lane
	lane  int
	task  int
	// focusTaskID keeps the cursor on a task after it moves lanes.
	focusTaskID string

	width  int
	height int
	ready  bool
	status string
	err    error
}

// loadedMsg carries a freshly read board.
type loadedMsg struct {
	board app.Board
	err   error
}

// actionMsg reports a finished mutation.
type actionMsg struct {
	err         error
	status      string
	focusTaskID string
}

// NewModel constructs a board model over svc.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:      svc,
		keys:     newKeyMap(),
		help:     h,
		copyText: clipboard.WriteAll,
		status:   "loading...",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init loads the board.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update applies one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.board = msg.board
		m.lanes = render.Lanes(msg.board)
		if m.focusTaskID != "" {
			m.focusTask(m.focusTaskID)
			m.focusTaskID = ""
		}
		m.clampSelection()
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		m.focusTaskID = msg.focusTaskID
		return m, m.loadData

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

// handleKey dispatches one key press.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.err != nil {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.reload):
			m.err = nil
			m.status = "reloading..."
			return m, m.loadData
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	case key.Matches(msg, m.keys.moveLeft):
		if m.lane > 0 {
			m.lane--
			m.task = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		if m.lane < len(m.lanes)-1 {
			m.lane++
			m.task = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if m.task < len(m.currentTasks())-1 {
			m.task++
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.task > 0 {
			m.task--
		}
		return m, nil
	case key.Matches(msg, m.keys.moveTaskLeft):
		return m, m.moveSelected(m.lane - 1)
	case key.Matches(msg, m.keys.moveTaskRight):
		return m, m.moveSelected(m.lane + 1)
	case key.Matches(msg, m.keys.toBacklog):
		return m, m.moveSelected(0)
	case key.Matches(msg, m.keys.autoAssign):
		return m, m.autoAssign
	case key.Matches(msg, m.keys.deleteTask):
		return m, m.deleteSelected()
	case key.Matches(msg, m.keys.copyCSV):
		return m.copyTasks()
	case key.Matches(msg, m.keys.save):
		return m, m.save
	}
	return m, nil
}

// loadData reads the active board.
func (m Model) loadData() tea.Msg {
	board, err := m.svc.Board(context.Background())
	return loadedMsg{board: board, err: err}
}

// moveSelected assigns the selected task to the holder of lane target.
func (m Model) moveSelected(target int) tea.Cmd {
	task, ok := m.selectedTask()
	if !ok || target < 0 || target >= len(m.lanes) || target == m.lane {
		return nil
	}
	dest := m.lanes[target]
	return func() tea.Msg {
		if _, err := m.svc.Assign(context.Background(), task.ID, dest.HolderID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: fmt.Sprintf("moved %q to %s", task.Title, dest.Title), focusTaskID: task.ID}
	}
}

func (m Model) autoAssign() tea.Msg {
	count, err := m.svc.AutoAssign(context.Background())
	if err != nil {
		return actionMsg{err: err}
	}
	return actionMsg{status: fmt.Sprintf("auto-assigned %d tasks", count)}
}

func (m Model) deleteSelected() tea.Cmd {
	task, ok := m.selectedTask()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		if err := m.svc.RemoveTask(context.Background(), task.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: fmt.Sprintf("deleted %q", task.Title)}
	}
}

func (m Model) save() tea.Msg {
	if err := m.svc.Save(context.Background()); err != nil {
		return actionMsg{err: err}
	}
	return actionMsg{status: "saved"}
}

// copyTasks writes the task CSV export to the clipboard.
func (m Model) copyTasks() (tea.Model, tea.Cmd) {
	var buf bytes.Buffer
	if err := app.WriteTasksCSV(&buf, m.board); err != nil {
		m.status = "copy failed: " + err.Error()
		return m, nil
	}
	if err := m.copyText(buf.String()); err != nil {
		m.status = "copy failed: " + err.Error()
		return m, nil
	}
	m.status = "copied tasks csv"
	return m, nil
}

func (m Model) currentTasks() []domain.Task {
	if m.lane < 0 || m.lane >= len(m.lanes) {
		return nil
	}
	return m.lanes[m.lane].Tasks
}

func (m Model) selectedTask() (domain.Task, bool) {
	tasks := m.currentTasks()
	if m.task < 0 || m.task >= len(tasks) {
		return domain.Task{}, false
	}
	return tasks[m.task], true
}

func (m *Model) focusTask(taskID string) {
	for laneIdx, lane := range m.lanes {
		for taskIdx, task := range lane.Tasks {
			if task.ID == taskID {
				m.lane, m.task = laneIdx, taskIdx
				return
			}
		}
	}
}

func (m *Model) clampSelection() {
	m.lane = clamp(m.lane, 0, len(m.lanes)-1)
	m.task = clamp(m.task, 0, len(m.currentTasks())-1)
}

// View renders the board.
func (m Model) View() tea.View {
	var content string
	switch {
	case m.err != nil:
		content = m.errorView()
	case !m.ready:
		content = "loading..."
	default:
		content = m.boardView()
	}
	v := tea.NewView(content)
	v.AltScreen = true
	return v
}

func (m Model) errorView() string {
	msg := "error: " + m.err.Error()
	if errors.Is(m.err, app.ErrNoSprint) {
		msg = "no active sprint; run `sprinter init` first"
	}
	return msg + "\n\npress r to retry • q quit\n"
}

func (m Model) boardView() string {
	body := render.Board(m.board, render.BoardOptions{
		Width:  m.width,
		Height: max(1, m.height-boardChrome),
		Cursor: &render.Cursor{Lane: m.lane, Task: m.task},
	})

	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	status := statusStyle.Render(m.status)
	if m.board.SavedAt.IsZero() {
		status += statusStyle.Render("  (never saved)")
	}

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Padding(0, 1).
		Render(helpBubble.View(m.keys))

	footer := status + "\n" + helpLine
	if m.height > 0 {
		body = fitLines(body, max(0, m.height-lipgloss.Height(footer)))
	}
	return strings.Join([]string{body, footer}, "\n")
}

// clamp bounds v to [minV, maxV], preferring minV when the range is empty.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}
