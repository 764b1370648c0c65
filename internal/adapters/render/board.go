package render

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/evanschultz/sprinter/internal/app"
	"github.com/evanschultz/sprinter/internal/domain"
)

// BacklogTitle labels the backlog lane.
const BacklogTitle = "Backlog"

const (
	minColumnWidth     = 18
	defaultColumnWidth = 28
)

// Lane is one rendered column: the backlog or a roster member.
type Lane struct {
	Title    string
	HolderID string
	Capacity *domain.HolderCapacity
	Tasks    []domain.Task
}

// Backlog reports whether the lane is the backlog.
func (l Lane) Backlog() bool {
	return l.Capacity == nil
}

// Lanes lists the backlog followed by one lane per roster member in roster order.
func Lanes(board app.Board) []Lane {
	lanes := make([]Lane, 0, len(board.Columns)+1)
	lanes = append(lanes, Lane{Title: BacklogTitle, Tasks: board.Backlog})
	for _, col := range board.Columns {
		capacity := col.Capacity
		lanes = append(lanes, Lane{
			Title:    capacity.Sprinter.Name,
			HolderID: capacity.Sprinter.ID,
			Capacity: &capacity,
			Tasks:    col.Tasks,
		})
	}
	return lanes
}

// Cursor marks the focused lane and task.
type Cursor struct {
	Lane int
	Task int
}

// BoardOptions controls board layout.
type BoardOptions struct {
	// Width is the total available width; zero uses a fixed column width.
	Width int
	// Height caps the task rows per lane; zero shows every task.
	Height int
	Cursor *Cursor
	// Plain disables colors and text attributes.
	Plain bool
}

type palette struct {
	accent, muted, dim, over, selected lipgloss.Style
	column, focused                    lipgloss.Style
}

func newPalette(plain bool, width int) palette {
	base := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		MarginRight(1).
		Width(width)
	if plain {
		flat := lipgloss.NewStyle()
		return palette{
			accent: flat, muted: flat, dim: flat, over: flat, selected: flat,
			column: base, focused: base,
		}
	}
	return palette{
		accent:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("239")),
		over:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		column:   base.BorderForeground(lipgloss.Color("239")),
		focused:  base.BorderForeground(lipgloss.Color("62")),
	}
}

// Board renders the sprint as side-by-side lanes with a team summary line.
func Board(board app.Board, opts BoardOptions) string {
	lanes := Lanes(board)
	width := columnWidth(len(lanes), opts.Width)
	pal := newPalette(opts.Plain, width)

	views := make([]string, 0, len(lanes))
	for idx, lane := range lanes {
		focusTask := -1
		style := pal.column
		if opts.Cursor != nil && opts.Cursor.Lane == idx {
			focusTask = opts.Cursor.Task
			style = pal.focused
		}
		// border and padding take two cells per side
		inner := width - 4
		content := strings.Join(laneLines(lane, inner, opts.Height, focusTask, pal), "\n")
		views = append(views, style.Render(content))
	}

	sections := []string{
		summaryLine(board, pal),
		lipgloss.JoinHorizontal(lipgloss.Top, views...),
	}
	return strings.Join(sections, "\n")
}

func summaryLine(board app.Board, pal palette) string {
	team := board.Team
	title := pal.accent.Render("sprint " + board.SprintID)
	stats := fmt.Sprintf("%d/%d SP  real %d%%  target %d%%  remaining %d  backlog %d",
		team.TotalAssigned, team.TotalSuggested, team.RealUtilization, team.TargetUtilization, team.Remaining, len(board.Backlog))
	if team.Remaining < 0 {
		return title + "  " + pal.over.Render(stats)
	}
	return title + "  " + pal.muted.Render(stats)
}

func laneLines(lane Lane, inner, height, focusTask int, pal palette) []string {
	lines := []string{pal.accent.Render(truncate(lane.Title, inner))}
	if lane.Capacity != nil {
		c := lane.Capacity
		figure := truncate(fmt.Sprintf("%d/%d SP  %d%%", c.Assigned, c.Suggested, c.RealUtilization), inner)
		if c.OverCapacity {
			lines = append(lines, pal.over.Render(figure))
		} else {
			lines = append(lines, pal.muted.Render(figure))
		}
	} else {
		lines = append(lines, pal.muted.Render(truncate(fmt.Sprintf("%d tasks  %d SP", len(lane.Tasks), storyPoints(lane.Tasks)), inner)))
	}
	lines = append(lines, pal.dim.Render(strings.Repeat("─", max(1, inner))))

	if len(lane.Tasks) == 0 {
		return append(lines, pal.dim.Render("(empty)"))
	}
	start, end := window(len(lane.Tasks), height, focusTask)
	if start > 0 {
		lines = append(lines, pal.dim.Render(fmt.Sprintf("↑ %d more", start)))
	}
	for idx := start; idx < end; idx++ {
		line := truncate(taskLabel(lane.Tasks[idx]), inner)
		if idx == focusTask {
			lines = append(lines, pal.selected.Render(line))
			continue
		}
		lines = append(lines, line)
	}
	if rest := len(lane.Tasks) - end; rest > 0 {
		lines = append(lines, pal.dim.Render(fmt.Sprintf("↓ %d more", rest)))
	}
	return lines
}

// taskLabel formats a task row as "[H] 5 title".
func taskLabel(task domain.Task) string {
	mark := strings.ToUpper(string(task.Priority))
	if mark != "" {
		mark = mark[:1]
	}
	return fmt.Sprintf("[%s] %2d %s", mark, task.StoryPoints, task.Title)
}

// window picks the visible task range so focus stays on screen.
func window(total, height, focus int) (int, int) {
	if height <= 0 || total <= height {
		return 0, total
	}
	start := 0
	if focus >= height {
		start = focus - height + 1
	}
	return start, min(total, start+height)
}

func columnWidth(lanes, total int) int {
	if total <= 0 || lanes == 0 {
		return defaultColumnWidth
	}
	// one cell of right margin per lane
	return max(minColumnWidth, total/lanes-1)
}

func storyPoints(tasks []domain.Task) int {
	total := 0
	for _, task := range tasks {
		total += task.StoryPoints
	}
	return total
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit == 1 {
		return string(rs[:1])
	}
	return string(rs[:limit-1]) + "…"
}
