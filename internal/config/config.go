package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/evanschultz/sprinter/internal/app"
	"github.com/evanschultz/sprinter/internal/domain"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
	Planning PlanningConfig `toml:"planning"`
	Capacity CapacityConfig `toml:"capacity"`
	Import   ImportConfig   `toml:"import"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the logfmt file sink used in dev mode.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	Bind            string `toml:"bind"`
	APIEndpoint     string `toml:"api_endpoint"`
	MCPEndpoint     string `toml:"mcp_endpoint"`
	MetricsEndpoint string `toml:"metrics_endpoint"`
}

type PlanningConfig struct {
	MinStoryPoints  int    `toml:"min_story_points"`
	MaxStoryPoints  int    `toml:"max_story_points"`
	DefaultPriority string `toml:"default_priority"`
	// AutosaveInterval is a Go duration string; "0s" disables autosave.
	AutosaveInterval string `toml:"autosave_interval"`
}

// CapacityConfig mirrors domain.ExceptionSettings plus the history suggestion factor.
type CapacityConfig struct {
	TargetStoryPointsPerPerson  int     `toml:"target_sp_per_person"`
	SprintWorkingDays           int     `toml:"sprint_working_days"`
	MinStoryPointThreshold      float64 `toml:"min_sp_threshold"`
	CustomerDelegateMinSP       float64 `toml:"customer_delegate_min_sp"`
	CustomerDelegateDays        int     `toml:"customer_delegate_days"`
	OnCallReductionSP           float64 `toml:"on_call_reduction_sp"`
	MinSPUnlessFullyUnavailable float64 `toml:"min_sp_unless_fully_unavailable"`
	FullUnavailabilityThreshold float64 `toml:"full_unavailability_threshold"`
	SuggestionFactor            float64 `toml:"suggestion_factor"`
}

type ImportConfig struct {
	URL      string `toml:"url"`
	IDPrefix string `toml:"id_prefix"`
	Timeout  string `toml:"timeout"`
}

func Default(dbPath string) Config {
	bounds := domain.DefaultStoryPointBounds()
	settings := domain.DefaultExceptionSettings()
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".sprinter/log",
			},
		},
		Server: ServerConfig{
			Bind:            "127.0.0.1:8080",
			APIEndpoint:     "/api/v1",
			MCPEndpoint:     "/mcp",
			MetricsEndpoint: "/metrics",
		},
		Planning: PlanningConfig{
			MinStoryPoints:   bounds.Min,
			MaxStoryPoints:   bounds.Max,
			DefaultPriority:  string(domain.PriorityMedium),
			AutosaveInterval: "30s",
		},
		Capacity: CapacityConfig{
			TargetStoryPointsPerPerson:  settings.TargetStoryPointsPerPerson,
			SprintWorkingDays:           settings.SprintWorkingDays,
			MinStoryPointThreshold:      settings.MinStoryPointThreshold,
			CustomerDelegateMinSP:       settings.CustomerDelegateMinSP,
			CustomerDelegateDays:        settings.CustomerDelegateDays,
			OnCallReductionSP:           settings.OnCallReductionSP,
			MinSPUnlessFullyUnavailable: settings.MinSPUnlessFullyUnavailable,
			FullUnavailabilityThreshold: settings.FullUnavailabilityThreshold,
			SuggestionFactor:            0.9,
		},
		Import: ImportConfig{
			IDPrefix: app.DefaultImportPrefix,
			Timeout:  "15s",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if _, err := charmLog.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if c.Planning.MinStoryPoints < 1 {
		return errors.New("planning.min_story_points must be >= 1")
	}
	if c.Planning.MaxStoryPoints < c.Planning.MinStoryPoints {
		return errors.New("planning.max_story_points must be >= planning.min_story_points")
	}
	if _, err := domain.ParsePriority(c.Planning.DefaultPriority); err != nil {
		return fmt.Errorf("invalid planning.default_priority: %q", c.Planning.DefaultPriority)
	}
	if _, err := c.Planning.Autosave(); err != nil {
		return err
	}

	if err := c.Capacity.Settings().Validate(); err != nil {
		return fmt.Errorf("invalid capacity settings: %w", err)
	}
	if c.Capacity.SuggestionFactor <= 0 || c.Capacity.SuggestionFactor > 1 {
		return fmt.Errorf("capacity.suggestion_factor must be in (0, 1]: %v", c.Capacity.SuggestionFactor)
	}

	if _, err := c.Import.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// Bounds returns the configured story point range.
func (p PlanningConfig) Bounds() domain.StoryPointBounds {
	return domain.StoryPointBounds{Min: p.MinStoryPoints, Max: p.MaxStoryPoints}
}

// Autosave parses the autosave interval.
func (p PlanningConfig) Autosave() (time.Duration, error) {
	return parseDuration("planning.autosave_interval", p.AutosaveInterval)
}

// Settings converts the capacity section into exception settings.
func (c CapacityConfig) Settings() domain.ExceptionSettings {
	return domain.ExceptionSettings{
		TargetStoryPointsPerPerson:  c.TargetStoryPointsPerPerson,
		SprintWorkingDays:           c.SprintWorkingDays,
		MinStoryPointThreshold:      c.MinStoryPointThreshold,
		CustomerDelegateMinSP:       c.CustomerDelegateMinSP,
		CustomerDelegateDays:        c.CustomerDelegateDays,
		OnCallReductionSP:           c.OnCallReductionSP,
		MinSPUnlessFullyUnavailable: c.MinSPUnlessFullyUnavailable,
		FullUnavailabilityThreshold: c.FullUnavailabilityThreshold,
	}
}

// PlanOptions returns the capacity planning options for this config.
func (c CapacityConfig) PlanOptions() app.PlanOptions {
	return app.PlanOptions{
		Settings:         c.Settings(),
		WorkingDays:      c.SprintWorkingDays,
		SuggestionFactor: c.SuggestionFactor,
	}
}

// TimeoutDuration parses the import request timeout.
func (i ImportConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration("import.timeout", i.Timeout)
}

// Enabled reports whether an import endpoint is configured.
func (i ImportConfig) Enabled() bool {
	return strings.TrimSpace(i.URL) != ""
}

func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be >= 0: %q", key, raw)
	}
	return d, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteDefault writes cfg as TOML to path unless a file already exists.
func WriteDefault(path string, cfg Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	content, err := toml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("encode toml: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
