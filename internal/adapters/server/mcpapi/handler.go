// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/sprinter/internal/adapters/server/common"
	"github.com/evanschultz/sprinter/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the sprint planning tools.
func NewHandler(cfg Config, planner common.Planner) (*Handler, error) {
	if planner == nil {
		return nil, fmt.Errorf("planner service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerBoardTools(mcpSrv, planner)
	registerTaskTools(mcpSrv, planner)
	registerPlanningTools(mcpSrv, planner)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "sprinter"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerBoardTools registers read-only board, capacity and export tools.
func registerBoardTools(srv *mcpserver.MCPServer, planner common.Planner) {
	srv.AddTool(
		mcp.NewTool(
			"sprinter.get_board",
			mcp.WithDescription("Return the active sprint: backlog, one column per sprinter, and team capacity."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			board, err := planner.Board(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_board", board)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sprinter.capacity",
			mcp.WithDescription("Return per-sprinter and team capacity utilization."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			report, err := planner.Capacity(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("capacity", report)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sprinter.export",
			mcp.WithDescription("Render the active sprint as CSV, markdown, board text or snapshot JSON."),
			mcp.WithString("format", mcp.Required(), mcp.Description("Export format"), mcp.Enum(common.ExportFormats()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			format, err := req.RequireString("format")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			out, err := planner.Export(ctx, format)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return mcp.NewToolResultText(string(out.Body)), nil
		},
	)
}

// registerTaskTools registers task list/add/update/remove/assign tools.
func registerTaskTools(srv *mcpserver.MCPServer, planner common.Planner) {
	srv.AddTool(
		mcp.NewTool(
			"sprinter.list_tasks",
			mcp.WithDescription("List backlog tasks by priority, or one sprinter's tasks in assignment order."),
			mcp.WithString("holder_id", mcp.Description("Sprinter id; omit for the backlog")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			holderID := req.GetString("holder_id", "")
			tasks, err := planner.ListTasks(ctx, holderID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_tasks", map[string]any{
				"holder_id": holderID,
				"tasks":     tasks,
			})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sprinter.add_task",
			mcp.WithDescription("Create one backlog task."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithNumber("story_points", mcp.Required(), mcp.Description("Story point estimate")),
			mcp.WithString("priority", mcp.Description("Task priority"), mcp.Enum(priorityValues()...)),
			mcp.WithString("description", mcp.Description("Optional description")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			points, err := req.RequireInt("story_points")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := planner.AddTask(ctx, common.AddTaskRequest{
				Title:       title,
				StoryPoints: points,
				Priority:    req.GetString("priority", ""),
				Description: req.GetString("description", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sprinter.update_task",
			mcp.WithDescription("Update task fields; omitted fields are unchanged."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithNumber("story_points", mcp.Description("New story point estimate")),
			mcp.WithString("priority", mcp.Description("New priority"), mcp.Enum(priorityValues()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			args := req.GetArguments()
			var update common.UpdateTaskRequest
			if _, ok := args["title"]; ok {
				title := req.GetString("title", "")
				update.Title = &title
			}
			if _, ok := args["description"]; ok {
				description := req.GetString("description", "")
				update.Description = &description
			}
			if _, ok := args["story_points"]; ok {
				points := req.GetInt("story_points", 0)
				update.StoryPoints = &points
			}
			if _, ok := args["priority"]; ok {
				priority := req.GetString("priority", "")
				update.Priority = &priority
			}
			task, err := planner.UpdateTask(ctx, taskID, update)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sprinter.remove_task",
			mcp.WithDescription("Delete one task from the sprint."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := planner.RemoveTask(ctx, taskID); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("remove_task", map[string]any{
				"task_id": taskID,
				"removed": true,
			})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sprinter.assign_task",
			mcp.WithDescription("Move a task to a sprinter, or back to the backlog when holder_id is empty. No capacity check."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("holder_id", mcp.Description("Sprinter id; empty for the backlog")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := planner.AssignTask(ctx, common.AssignTaskRequest{
				TaskID:   taskID,
				HolderID: req.GetString("holder_id", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("assign_task", task)
		},
	)
}

// registerPlanningTools registers auto-assign, capacity updates and import.
func registerPlanningTools(srv *mcpserver.MCPServer, planner common.Planner) {
	srv.AddTool(
		mcp.NewTool(
			"sprinter.auto_assign",
			mcp.WithDescription("Assign backlog tasks by priority to sprinters with remaining capacity."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := planner.AutoAssign(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("auto_assign", result)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sprinter.set_capacity",
			mcp.WithDescription("Replace one sprinter's suggested and target story points."),
			mcp.WithString("holder_id", mcp.Required(), mcp.Description("Sprinter id")),
			mcp.WithNumber("suggested_story_points", mcp.Required(), mcp.Description("Suggested story points")),
			mcp.WithNumber("target_story_points", mcp.Description("Target story points per person")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			holderID, err := req.RequireString("holder_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			suggested, err := req.RequireInt("suggested_story_points")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			report, err := planner.SetCapacity(ctx, common.SetCapacityRequest{
				HolderID:  holderID,
				Suggested: suggested,
				Target:    req.GetInt("target_story_points", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("set_capacity", report)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sprinter.import_tasks",
			mcp.WithDescription("Import tasks from the configured task source into the backlog. All-or-nothing."),
			mcp.WithString("list_id", mcp.Required(), mcp.Description("External list identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			listID, err := req.RequireString("list_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			result, err := planner.ImportTasks(ctx, common.ImportTasksRequest{ListID: listID})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("import_tasks", result)
		},
	)
}

// jsonResult encodes one structured tool result.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

func priorityValues() []string {
	priorities := domain.Priorities()
	out := make([]string, 0, len(priorities))
	for _, p := range priorities {
		out = append(out, string(p))
	}
	return out
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrNoSprint):
		return mcp.NewToolResultError("no_active_sprint: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrUnknownHolder):
		return mcp.NewToolResultError("unknown_sprinter: " + err.Error())
	case errors.Is(err, common.ErrImportFailed):
		return mcp.NewToolResultError("import_failed: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
