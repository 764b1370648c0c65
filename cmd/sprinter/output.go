package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/evanschultz/sprinter/internal/app"
	"github.com/evanschultz/sprinter/internal/domain"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// writeTable renders rows as a bordered table.
func writeTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("239"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	_, _ = fmt.Fprintln(w, t.String())
}

func writeTaskTable(w io.Writer, tasks []domain.Task, names map[string]string) {
	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(w, "no tasks")
		return
	}
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		assignee := app.UnassignedLabel
		if task.AssignedTo != "" {
			assignee = task.AssignedTo
			if name, ok := names[task.AssignedTo]; ok {
				assignee = name
			}
		}
		rows = append(rows, []string{task.ID, task.Title, strconv.Itoa(task.StoryPoints), string(task.Priority), assignee})
	}
	writeTable(w, []string{"ID", "Title", "SP", "Priority", "Assignee"}, rows)
}

func writeCapacityTable(w io.Writer, board app.Board) {
	rows := make([][]string, 0, len(board.Columns)+1)
	for _, col := range board.Columns {
		c := col.Capacity
		name := c.Sprinter.Name
		if c.OverCapacity {
			name += " (over)"
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(c.Suggested),
			strconv.Itoa(c.Target),
			strconv.Itoa(c.Assigned),
			strconv.Itoa(c.Remaining),
			fmt.Sprintf("%d%%", c.RealUtilization),
			fmt.Sprintf("%d%%", c.TargetUtilization),
		})
	}
	team := board.Team
	rows = append(rows, []string{
		"Team",
		strconv.Itoa(team.TotalSuggested),
		strconv.Itoa(team.TotalTarget),
		strconv.Itoa(team.TotalAssigned),
		strconv.Itoa(team.Remaining),
		fmt.Sprintf("%d%%", team.RealUtilization),
		fmt.Sprintf("%d%%", team.TargetUtilization),
	})
	writeTable(w, []string{"Sprinter", "Suggested", "Target", "Assigned", "Remaining", "Real", "Target %"}, rows)
}

func writePlanTable(w io.Writer, plans []app.CapacityPlan) {
	rows := make([][]string, 0, len(plans))
	for _, plan := range plans {
		rows = append(rows, []string{
			plan.Sprinter.Name,
			strconv.FormatFloat(plan.Base, 'f', 1, 64),
			plan.BaseSource,
			strconv.Itoa(plan.Entry.SuggestedStoryPoints),
			strconv.Itoa(plan.Entry.TargetStoryPointsPerPerson),
			plan.Explanation,
		})
	}
	writeTable(w, []string{"Sprinter", "Base", "Source", "Suggested", "Target", "Adjustments"}, rows)
}

func writeSprintTable(w io.Writer, sprints []app.SprintSummary) {
	rows := make([][]string, 0, len(sprints))
	for _, s := range sprints {
		rows = append(rows, []string{
			s.SprintID,
			s.SavedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(s.RosterSize),
			fmt.Sprintf("%d/%d", s.Assigned, s.TaskCount),
			strconv.Itoa(s.StoryPoints),
		})
	}
	writeTable(w, []string{"Sprint", "Saved", "Roster", "Assigned", "SP"}, rows)
}

// taskSummary formats a task on one line for command output.
func taskSummary(task domain.Task) string {
	return fmt.Sprintf("[%s] %d SP  %s", strings.ToUpper(string(task.Priority)), task.StoryPoints, task.Title)
}
