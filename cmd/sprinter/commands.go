package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evanschultz/sprinter/internal/adapters/render"
	"github.com/evanschultz/sprinter/internal/adapters/roster"
	"github.com/evanschultz/sprinter/internal/adapters/server"
	"github.com/evanschultz/sprinter/internal/adapters/server/common"
	"github.com/evanschultz/sprinter/internal/app"
	"github.com/evanschultz/sprinter/internal/config"
	"github.com/evanschultz/sprinter/internal/domain"
	"github.com/evanschultz/sprinter/internal/tui"
)

func (c *cli) pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and log locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := c.resolveLocations()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", c.flags.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", c.flags.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", loc.configPath)
			_, _ = fmt.Fprintf(out, "roster: %s\n", loc.paths.RosterPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", loc.paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", loc.dbPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", loc.paths.LogDir)
			return nil
		},
	}
}

func (c *cli) initCommand() *cobra.Command {
	var (
		sprintID string
		example  bool
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "init [roster.yaml]",
		Short: "Start a sprint from a roster file",
		Long: `init plans each sprinter's capacity from the roster file (base capacity or
sprint history, adjusted for vacation, on-call and customer delegation) and
starts a new sprint with an empty backlog.

With --example it writes a sample roster and a default config instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := c.resolveLocations()
			if err != nil {
				return err
			}
			path := loc.paths.RosterPath
			if len(args) == 1 {
				path = args[0]
			}
			if example {
				return c.writeExample(cmd, loc, path, force)
			}

			rt, err := c.open("init", openOptions{})
			if err != nil {
				return err
			}
			defer rt.close()

			file, err := roster.Load(path)
			if err != nil {
				return err
			}
			if id := strings.TrimSpace(sprintID); id != "" {
				file.Sprint = id
			}
			setup, plans, err := file.Plan(rt.cfg.Capacity.PlanOptions())
			if err != nil {
				return fmt.Errorf("plan capacity: %w", err)
			}
			board, err := rt.svc.StartSprint(cmd.Context(), setup)
			if err != nil {
				return fmt.Errorf("start sprint: %w", err)
			}
			if err := rt.flush(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writePlanTable(out, plans)
			_, _ = fmt.Fprintf(out, "sprint %s started: %d sprinters, %d SP suggested, %d SP target\n",
				board.SprintID, len(board.Columns), board.Team.TotalSuggested, board.Team.TotalTarget)
			return nil
		},
	}
	cmd.Flags().StringVar(&sprintID, "sprint-id", "", "override the roster file's sprint id")
	cmd.Flags().BoolVar(&example, "example", false, "write an example roster and default config")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing roster with --example")
	return cmd
}

// writeExample writes the sample roster and, when missing, a default config.
func (c *cli) writeExample(cmd *cobra.Command, loc locations, path string, force bool) error {
	out := cmd.OutOrStdout()
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("roster %q already exists; use --force to overwrite", path)
	}
	if err := roster.Save(path, roster.Example()); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "wrote roster %s\n", path)
	written, err := config.WriteDefault(loc.configPath, config.Default(loc.dbPath))
	if err != nil {
		return err
	}
	if written {
		_, _ = fmt.Fprintf(out, "wrote config %s\n", loc.configPath)
	}
	return nil
}

func (c *cli) serveCommand() *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, MCP tools and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := c.open("serve", openOptions{metrics: true})
			if err != nil {
				return err
			}
			defer rt.close()
			if err := c.loadSprint(ctx, rt, false); err != nil {
				return err
			}

			interval, _ := rt.cfg.Planning.Autosave()
			autosaveCtx, stopAutosave := context.WithCancel(ctx)
			defer stopAutosave()
			go rt.svc.RunAutosave(autosaveCtx, interval)

			serverCfg := server.Config{
				HTTPBind:        rt.cfg.Server.Bind,
				APIEndpoint:     rt.cfg.Server.APIEndpoint,
				MCPEndpoint:     rt.cfg.Server.MCPEndpoint,
				MetricsEndpoint: rt.cfg.Server.MetricsEndpoint,
				ServerName:      "sprinter",
				ServerVersion:   version,
			}
			if strings.TrimSpace(bind) != "" {
				serverCfg.HTTPBind = bind
			}
			rt.logger.Info("serving", "bind", serverCfg.HTTPBind, "api", serverCfg.APIEndpoint, "mcp", serverCfg.MCPEndpoint)
			err = server.Run(ctx, serverCfg, server.Dependencies{
				Planner: common.NewAppServiceAdapter(rt.svc),
				Ready:   rt.repo.Ping,
				Metrics: rt.metrics,
			})
			if err != nil {
				rt.logger.Error("server stopped with error", "err", err)
				return err
			}
			rt.logger.Info("server stopped")
			return rt.flush(context.WithoutCancel(ctx))
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (overrides server.bind)")
	return cmd
}

func (c *cli) boardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the interactive sprint board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := c.open("board", openOptions{quietConsole: true})
			if err != nil {
				return err
			}
			defer rt.close()
			if err := c.loadSprint(ctx, rt, false); err != nil {
				return err
			}
			rt.logger.Info("starting tui program loop")
			if _, err := programFactory(tui.NewModel(rt.svc)).Run(); err != nil {
				rt.logger.Error("tui program terminated with error", "err", err)
				return fmt.Errorf("run tui program: %w", err)
			}
			return rt.flush(ctx)
		},
	}
}

func (c *cli) taskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Add, remove, assign and list tasks",
	}
	cmd.AddCommand(c.taskAddCommand(), c.taskRemoveCommand(), c.taskAssignCommand(), c.taskListCommand())
	return cmd
}

func (c *cli) taskAddCommand() *cobra.Command {
	var (
		points      int
		priority    string
		description string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task to the backlog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSprint(cmd, func(ctx context.Context, rt *runtime) error {
				raw := priority
				if strings.TrimSpace(raw) == "" {
					raw = rt.cfg.Planning.DefaultPriority
				}
				p, err := domain.ParsePriority(raw)
				if err != nil {
					return fmt.Errorf("priority %q: %w", raw, err)
				}
				task, err := rt.svc.AddTask(ctx, app.AddTaskInput{
					Title:       strings.Join(args, " "),
					StoryPoints: points,
					Priority:    p,
					Description: description,
				})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s  %s\n", task.ID, taskSummary(task))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&points, "points", "p", 1, "story points")
	cmd.Flags().StringVar(&priority, "priority", "", "high, medium or low (default from config)")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	return cmd
}

func (c *cli) taskRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <task-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSprint(cmd, func(ctx context.Context, rt *runtime) error {
				if err := rt.svc.RemoveTask(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}
}

func (c *cli) taskAssignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <task-id> <sprinter-id|backlog>",
		Short: "Assign a task to a sprinter or return it to the backlog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			holder := strings.TrimSpace(args[1])
			if holder == "backlog" || holder == "-" {
				holder = ""
			}
			return c.withSprint(cmd, func(ctx context.Context, rt *runtime) error {
				task, err := rt.svc.Assign(ctx, args[0], holder)
				if err != nil {
					return err
				}
				target := "backlog"
				if task.AssignedTo != "" {
					target = task.AssignedTo
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "assigned %s to %s\n", task.ID, target)
				return nil
			})
		},
	}
}

func (c *cli) taskListCommand() *cobra.Command {
	var (
		holder  string
		backlog bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks by holder",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSprint(cmd, func(ctx context.Context, rt *runtime) error {
				if backlog || strings.TrimSpace(holder) != "" {
					id := holder
					if backlog {
						id = ""
					}
					tasks, err := rt.svc.ListTasks(ctx, id)
					if err != nil {
						return err
					}
					writeTaskTable(cmd.OutOrStdout(), tasks, nil)
					return nil
				}
				board, err := rt.svc.Board(ctx)
				if err != nil {
					return err
				}
				names := map[string]string{}
				tasks := make([]domain.Task, 0)
				for _, col := range board.Columns {
					names[col.Capacity.Sprinter.ID] = col.Capacity.Sprinter.Name
					tasks = append(tasks, col.Tasks...)
				}
				tasks = append(tasks, board.Backlog...)
				writeTaskTable(cmd.OutOrStdout(), tasks, names)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&holder, "holder", "", "only tasks assigned to this sprinter id")
	cmd.Flags().BoolVar(&backlog, "backlog", false, "only unassigned tasks")
	return cmd
}

func (c *cli) autoAssignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auto-assign",
		Short: "Distribute the backlog by priority within remaining capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSprint(cmd, func(ctx context.Context, rt *runtime) error {
				count, err := rt.svc.AutoAssign(ctx)
				if err != nil {
					return err
				}
				board, err := rt.svc.Board(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "assigned %d tasks; %d left in backlog\n", count, len(board.Backlog))
				writeCapacityTable(cmd.OutOrStdout(), board)
				return nil
			})
		},
	}
}

func (c *cli) capacityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Show per-sprinter and team capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSprint(cmd, func(ctx context.Context, rt *runtime) error {
				board, err := rt.svc.Board(ctx)
				if err != nil {
					return err
				}
				writeCapacityTable(cmd.OutOrStdout(), board)
				return nil
			})
		},
	}
	cmd.AddCommand(c.capacitySetCommand())
	return cmd
}

func (c *cli) capacitySetCommand() *cobra.Command {
	var suggested, target int
	cmd := &cobra.Command{
		Use:   "set <sprinter-id>",
		Short: "Replace one sprinter's suggested and target story points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSprint(cmd, func(ctx context.Context, rt *runtime) error {
				board, err := rt.svc.Board(ctx)
				if err != nil {
					return err
				}
				entry := domain.CapacityEntry{}
				for _, col := range board.Columns {
					if col.Capacity.Sprinter.ID == args[0] {
						entry.SuggestedStoryPoints = col.Capacity.Suggested
						entry.TargetStoryPointsPerPerson = col.Capacity.Target
					}
				}
				if cmd.Flags().Changed("suggested") {
					entry.SuggestedStoryPoints = suggested
				}
				if cmd.Flags().Changed("target") {
					entry.TargetStoryPointsPerPerson = target
				}
				if err := rt.svc.SetCapacity(ctx, args[0], entry); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "capacity for %s: %d suggested, %d target\n",
					args[0], entry.SuggestedStoryPoints, entry.TargetStoryPointsPerPerson)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&suggested, "suggested", 0, "suggested story points")
	cmd.Flags().IntVar(&target, "target", 0, "target story points")
	return cmd
}

func (c *cli) exportCommand() *cobra.Command {
	var (
		outPath string
		styled  bool
		width   int
	)
	cmd := &cobra.Command{
		Use:       "export <format>",
		Short:     "Export the sprint as " + strings.Join(common.ExportFormats(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: common.ExportFormats(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSprint(cmd, func(ctx context.Context, rt *runtime) error {
				format := strings.ToLower(strings.TrimSpace(args[0]))
				var body []byte
				if styled && format == common.ExportReport {
					board, err := rt.svc.Board(ctx)
					if err != nil {
						return err
					}
					body = []byte(render.Report(board, width))
				} else {
					export, err := common.NewAppServiceAdapter(rt.svc).Export(ctx, format)
					if err != nil {
						return err
					}
					body = export.Body
				}
				if strings.TrimSpace(outPath) == "" {
					_, err := cmd.OutOrStdout().Write(body)
					return err
				}
				if err := os.WriteFile(outPath, body, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVar(&styled, "render", false, "render report.md for the terminal")
	cmd.Flags().IntVar(&width, "width", 100, "wrap width for --render")
	return cmd
}

func (c *cli) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <list-id>",
		Short: "Import backlog tasks from the configured task service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSprint(cmd, func(ctx context.Context, rt *runtime) error {
				result, err := rt.svc.ImportTasks(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "imported %d tasks from %s", len(result.Imported), result.ListID)
				if len(result.Skipped) > 0 {
					_, _ = fmt.Fprintf(out, " (skipped %d already present)", len(result.Skipped))
				}
				_, _ = fmt.Fprintln(out)
				return nil
			})
		},
	}
}

func (c *cli) restoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot.json>",
		Short: "Replace the active sprint with a snapshot export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			var snap app.Snapshot
			if err := json.Unmarshal(content, &snap); err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			ctx := cmd.Context()
			rt, err := c.open("restore", openOptions{})
			if err != nil {
				return err
			}
			defer rt.close()
			board, err := rt.svc.Restore(ctx, snap)
			if err != nil {
				return err
			}
			if err := rt.flush(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "restored sprint %s\n", board.SprintID)
			return nil
		},
	}
}

func (c *cli) sprintsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sprints",
		Short: "List saved sprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.open("sprints", openOptions{})
			if err != nil {
				return err
			}
			defer rt.close()
			sprints, err := rt.svc.ListSprints(cmd.Context())
			if err != nil {
				return err
			}
			if len(sprints) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no saved sprints")
				return nil
			}
			writeSprintTable(cmd.OutOrStdout(), sprints)
			return nil
		},
	}
}

func (c *cli) dropCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <sprint-id>",
		Short: "Delete a saved sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.open("drop", openOptions{})
			if err != nil {
				return err
			}
			defer rt.close()
			if err := rt.svc.DeleteSprint(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, app.ErrNotFound) {
					return fmt.Errorf("sprint %q not found", args[0])
				}
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", args[0])
			return nil
		},
	}
}
