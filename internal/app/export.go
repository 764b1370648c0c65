package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/evanschultz/sprinter/internal/domain"
)

// UnassignedLabel names the backlog in exports.
const UnassignedLabel = "Unassigned"

var (
	taskCSVHeader     = []string{"ID", "Title", "Story Points", "Priority", "Assignee", "Status"}
	capacityCSVHeader = []string{"Sprinter", "Suggested SP", "Target SP", "Assigned SP", "Remaining SP", "Real Utilization %", "Target Utilization %"}
)

// WriteTasksCSV writes one row per task: holder columns in roster order, then the backlog.
func WriteTasksCSV(w io.Writer, board Board) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(taskCSVHeader); err != nil {
		return err
	}
	for _, col := range board.Columns {
		for _, task := range col.Tasks {
			if err := cw.Write(taskRow(task, col.Capacity.Sprinter.Name, "Assigned")); err != nil {
				return err
			}
		}
	}
	for _, task := range board.Backlog {
		if err := cw.Write(taskRow(task, UnassignedLabel, "Backlog")); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func taskRow(task domain.Task, assignee, status string) []string {
	return []string{
		task.ID,
		task.Title,
		strconv.Itoa(task.StoryPoints),
		string(task.Priority),
		assignee,
		status,
	}
}

// WriteCapacityCSV writes one row per holder followed by a team total row.
func WriteCapacityCSV(w io.Writer, board Board) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(capacityCSVHeader); err != nil {
		return err
	}
	for _, col := range board.Columns {
		c := col.Capacity
		row := []string{
			c.Sprinter.Name,
			strconv.Itoa(c.Suggested),
			strconv.Itoa(c.Target),
			strconv.Itoa(c.Assigned),
			strconv.Itoa(c.Remaining),
			strconv.Itoa(c.RealUtilization),
			strconv.Itoa(c.TargetUtilization),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	team := board.Team
	if err := cw.Write([]string{
		"Team",
		strconv.Itoa(team.TotalSuggested),
		strconv.Itoa(team.TotalTarget),
		strconv.Itoa(team.TotalAssigned),
		strconv.Itoa(team.Remaining),
		strconv.Itoa(team.RealUtilization),
		strconv.Itoa(team.TargetUtilization),
	}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// MarkdownReport renders the sprint plan as a markdown document.
func MarkdownReport(board Board) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Sprint %s\n\n", board.SprintID)
	team := board.Team
	fmt.Fprintf(&b, "Team: **%d / %d SP** assigned (%d%% of suggested, %d%% of target), %d SP remaining.\n\n",
		team.TotalAssigned, team.TotalSuggested, team.RealUtilization, team.TargetUtilization, team.Remaining)

	b.WriteString("## Capacity\n\n")
	b.WriteString("| Sprinter | Assigned | Suggested | Target | Real % | Target % |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, col := range board.Columns {
		c := col.Capacity
		name := escapeMarkdownCell(c.Sprinter.Name)
		if c.OverCapacity {
			name += " ⚠"
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %d |\n", name, c.Assigned, c.Suggested, c.Target, c.RealUtilization, c.TargetUtilization)
	}

	for _, col := range board.Columns {
		fmt.Fprintf(&b, "\n## %s\n\n", escapeMarkdownText(col.Capacity.Sprinter.Name))
		writeMarkdownTasks(&b, col.Tasks)
	}
	b.WriteString("\n## Backlog\n\n")
	writeMarkdownTasks(&b, board.Backlog)
	return b.String()
}

func writeMarkdownTasks(b *strings.Builder, tasks []domain.Task) {
	if len(tasks) == 0 {
		b.WriteString("_No tasks._\n")
		return
	}
	for _, task := range tasks {
		fmt.Fprintf(b, "- **%s** (%d SP, %s)\n", escapeMarkdownText(task.Title), task.StoryPoints, task.Priority)
	}
}

func escapeMarkdownCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var markdownTextEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
	"|", `\|`,
)

// escapeMarkdownText backslash-escapes inline markup so free text renders literally.
func escapeMarkdownText(s string) string {
	return markdownTextEscaper.Replace(s)
}
