// Package platform resolves per-user config and data locations for sprinter.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories when no override is given.
const DefaultAppName = "sprinter"

// Paths holds the resolved file locations for one app name.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	// RosterPath is the default sprint roster consumed by `init`.
	RosterPath string
	// LogDir receives dev-mode log files.
	LogDir string
}

// Options tweaks path resolution.
type Options struct {
	AppName string
	DevMode bool
}

// baseOverride names the environment variables that replace the OS base dirs.
type baseOverride struct {
	configVar string
	dataVar   string
}

// overrides lists the per-OS variables. Other systems keep the os package defaults.
var overrides = map[string]baseOverride{
	"linux":   {configVar: "XDG_CONFIG_HOME", dataVar: "XDG_DATA_HOME"},
	"windows": {configVar: "APPDATA", dataVar: "LOCALAPPDATA"},
}

// DefaultPaths returns the paths for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{})
}

// DefaultPathsWithOptions resolves paths from the current OS and environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir, err := userDataDir(runtime.GOOS, configDir)
	if err != nil {
		return Paths{}, err
	}

	env := map[string]string{}
	if o, ok := overrides[runtime.GOOS]; ok {
		env[o.configVar] = os.Getenv(o.configVar)
		env[o.dataVar] = os.Getenv(o.dataVar)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appDirName(opts))
}

// appDirName applies the default name and the dev suffix.
func appDirName(opts Options) string {
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = DefaultAppName
	}
	if opts.DevMode {
		return name + "-dev"
	}
	return name
}

// userDataDir picks the OS data root. Only linux and windows differ from the config root.
func userDataDir(goos, configDir string) (string, error) {
	switch goos {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home dir: %w", err)
		}
		return filepath.Join(home, ".local", "share"), nil
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			return v, nil
		}
	}
	return configDir, nil
}

// PathsFor resolves paths for goos without touching the process environment.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if o, ok := overrides[goos]; ok {
		if v := env[o.configVar]; v != "" {
			configBase = v
		}
		if v := env[o.dataVar]; v != "" {
			dataBase = v
		}
	}

	cfgDir := filepath.Join(configBase, appName)
	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(cfgDir, "config.toml"),
		RosterPath: filepath.Join(cfgDir, "roster.yaml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		LogDir:     filepath.Join(dataDir, "log"),
	}, nil
}
