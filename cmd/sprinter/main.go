package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evanschultz/sprinter/internal/adapters/importer"
	"github.com/evanschultz/sprinter/internal/adapters/metrics"
	"github.com/evanschultz/sprinter/internal/adapters/storage/sqlite"
	"github.com/evanschultz/sprinter/internal/app"
	"github.com/evanschultz/sprinter/internal/config"
	"github.com/evanschultz/sprinter/internal/platform"
)

var version = "dev"

// program is the subset of a bubbletea program the board command runs.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the board program; tests replace it.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func main() {
	err := fang.Execute(
		context.Background(),
		newRootCommand(os.Stdin, os.Stdout, os.Stderr),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
	if err != nil {
		os.Exit(1)
	}
}

// globalFlags holds the persistent root flags.
type globalFlags struct {
	configPath string
	dbPath     string
	appName    string
	sprintID   string
	devMode    bool
}

// cli carries IO streams and flag state shared by every subcommand.
type cli struct {
	flags  globalFlags
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

// newRootCommand builds the sprinter command tree.
func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr, now: time.Now}

	root := &cobra.Command{
		Use:   "sprinter",
		Short: "Plan sprint capacity and distribute tasks across a team",
		Long: `sprinter keeps one sprint's roster, capacity budgets and task backlog,
assigns tasks by priority within each sprinter's capacity, and exports
the result as CSV, a text board or a markdown report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("SPRINTER_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("SPRINTER_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}
	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "path to config TOML")
	pf.StringVar(&c.flags.dbPath, "db", "", "path to sqlite database")
	pf.StringVar(&c.flags.appName, "app", defaultApp, "application name for config/data path resolution")
	pf.BoolVar(&c.flags.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	pf.StringVar(&c.flags.sprintID, "sprint", "", "sprint id to load instead of the latest saved sprint")

	root.AddCommand(
		c.pathsCommand(),
		c.initCommand(),
		c.serveCommand(),
		c.boardCommand(),
		c.taskCommand(),
		c.autoAssignCommand(),
		c.capacityCommand(),
		c.exportCommand(),
		c.importCommand(),
		c.restoreCommand(),
		c.sprintsCommand(),
		c.dropCommand(),
	)
	return root
}

// locations are the resolved config and database paths for one invocation.
type locations struct {
	paths        platform.Paths
	configPath   string
	dbPath       string
	dbOverridden bool
}

// resolveLocations applies flag, environment and platform defaults in that order.
func (c *cli) resolveLocations() (locations, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.flags.appName,
		DevMode: c.flags.devMode,
	})
	if err != nil {
		return locations{}, err
	}
	loc := locations{paths: paths, configPath: c.flags.configPath, dbPath: c.flags.dbPath}
	loc.dbOverridden = strings.TrimSpace(loc.dbPath) != ""
	if loc.configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("SPRINTER_CONFIG")); envPath != "" {
			loc.configPath = envPath
		} else {
			loc.configPath = paths.ConfigPath
		}
	}
	if !loc.dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("SPRINTER_DB_PATH")); envPath != "" {
			loc.dbPath = envPath
			loc.dbOverridden = true
		} else {
			loc.dbPath = paths.DBPath
		}
	}
	return loc, nil
}

// runtime is the opened storage, service and logging stack for one command.
type runtime struct {
	loc     locations
	cfg     config.Config
	logger  *runtimeLogger
	repo    *sqlite.Repository
	svc     *app.Service
	metrics *metrics.Manager
}

// openOptions toggles optional runtime pieces.
type openOptions struct {
	metrics      bool
	quietConsole bool
}

// open resolves config, opens sqlite and constructs the application service.
func (c *cli) open(command string, opts openOptions) (*runtime, error) {
	loc, err := c.resolveLocations()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(loc.configPath, config.Default(loc.dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", loc.configPath, err)
	}
	if loc.dbOverridden {
		cfg.Database.Path = loc.dbPath
	}

	logger, err := newRuntimeLogger(c.stderr, logTarget{
		appName:     c.flags.appName,
		devMode:     c.flags.devMode,
		fallbackDir: loc.paths.LogDir,
	}, cfg.Logging, c.now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if opts.quietConsole {
		logger.Mute("console")
	}
	rt := &runtime{loc: loc, cfg: cfg, logger: logger}
	logger.Debug("runtime paths resolved", "command", command, "config_path", loc.configPath, "db_path", cfg.Database.Path)
	if devPath := logger.FilePath(); devPath != "" {
		logger.Debug("dev file logging enabled", "path", devPath)
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	rt.repo = repo

	svcCfg := app.ServiceConfig{
		Bounds:       cfg.Planning.Bounds(),
		ImportPrefix: cfg.Import.IDPrefix,
		Logger:       logger,
	}
	if cfg.Import.Enabled() {
		timeout, _ := cfg.Import.TimeoutDuration()
		client, err := importer.New(importer.Options{URL: cfg.Import.URL, Timeout: timeout})
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("configure importer: %w", err)
		}
		svcCfg.Source = client
	}
	if opts.metrics {
		rt.metrics = metrics.NewManager()
		svcCfg.Recorder = rt.metrics
	}
	rt.svc = app.NewService(repo, uuid.NewString, c.now, svcCfg)
	logger.Debug("application service initialized", "bounds", fmt.Sprintf("%d..%d", cfg.Planning.MinStoryPoints, cfg.Planning.MaxStoryPoints))
	return rt, nil
}

// loadSprint activates the --sprint sprint or the latest saved one.
// With required unset a missing sprint is not an error.
func (c *cli) loadSprint(ctx context.Context, rt *runtime, required bool) error {
	var err error
	if id := strings.TrimSpace(c.flags.sprintID); id != "" {
		err = rt.svc.LoadSprint(ctx, id)
	} else {
		err = rt.svc.LoadLatest(ctx)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, app.ErrNoSprint) && !required:
		rt.logger.Info("no saved sprint; waiting for init")
		return nil
	case errors.Is(err, app.ErrNoSprint):
		return errors.New("no active sprint; run `sprinter init` first")
	default:
		return fmt.Errorf("load sprint: %w", err)
	}
}

// flush saves the active sprint when an earlier automatic save failed.
func (rt *runtime) flush(ctx context.Context) error {
	if !rt.svc.Dirty() {
		return nil
	}
	if err := rt.svc.Save(ctx); err != nil && !errors.Is(err, app.ErrNoSprint) {
		rt.logger.Error("sprint save failed", "err", err)
		return fmt.Errorf("save sprint: %w", err)
	}
	return nil
}

func (rt *runtime) close() {
	if rt.repo != nil {
		if err := rt.repo.Close(); err != nil {
			rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", err)
		}
	}
	_ = rt.logger.Close()
}

// withSprint opens the runtime, loads the sprint and runs fn, saving afterwards.
func (c *cli) withSprint(cmd *cobra.Command, fn func(context.Context, *runtime) error) error {
	ctx := cmd.Context()
	rt, err := c.open(cmd.CommandPath(), openOptions{})
	if err != nil {
		return err
	}
	defer rt.close()
	if err := c.loadSprint(ctx, rt, true); err != nil {
		return err
	}
	if err := fn(ctx, rt); err != nil {
		return err
	}
	return rt.flush(ctx)
}

// parseBoolEnv reads a boolean environment variable, reporting whether it was set and valid.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
