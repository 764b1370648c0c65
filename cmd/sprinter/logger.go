package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/evanschultz/sprinter/internal/config"
)

// logSink is one named log destination that can be muted.
type logSink struct {
	name    string
	logger  *charmLog.Logger
	enabled bool
}

// runtimeLogger fans sprint events out to the console and, in dev mode, a daily logfmt file.
// It satisfies app.Logger.
type runtimeLogger struct {
	sinks     []*logSink
	closeFile func() error
	filePath  string
}

// logTarget describes where one invocation should log.
type logTarget struct {
	appName string
	devMode bool
	// fallbackDir receives the dev file when the config leaves dev_file.dir empty.
	fallbackDir string
}

// newRuntimeLogger builds the console sink and, for dev runs, the file sink.
func newRuntimeLogger(stderr io.Writer, target logTarget, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if now == nil {
		now = time.Now
	}

	l := &runtimeLogger{}
	l.add("console", charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          target.appName,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Formatter:       charmLog.TextFormatter,
	}))
	if !target.devMode || !cfg.DevFile.Enabled {
		return l, nil
	}

	path, err := logFilePath(cfg.DevFile.Dir, target.fallbackDir, target.appName, now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve dev log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}
	l.add("file", charmLog.NewWithOptions(file, charmLog.Options{
		Level:           level,
		Prefix:          target.appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	}))
	l.closeFile = file.Close
	l.filePath = path
	return l, nil
}

func (l *runtimeLogger) add(name string, logger *charmLog.Logger) {
	l.sinks = append(l.sinks, &logSink{name: name, logger: logger, enabled: true})
}

// FilePath returns the dev log file, or "" when file logging is off.
func (l *runtimeLogger) FilePath() string {
	if l == nil {
		return ""
	}
	return l.filePath
}

// Close releases the dev log file.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// Mute silences the named sink. The board mutes "console" while it owns the terminal.
func (l *runtimeLogger) Mute(name string) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if sink.name == name {
			sink.enabled = false
		}
	}
}

func (l *runtimeLogger) log(level charmLog.Level, msg string, keyvals []any) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if sink.enabled {
			sink.logger.Log(level, msg, keyvals...)
		}
	}
}

// Debug logs at debug level.
func (l *runtimeLogger) Debug(msg string, keyvals ...any) { l.log(charmLog.DebugLevel, msg, keyvals) }

// Info logs at info level.
func (l *runtimeLogger) Info(msg string, keyvals ...any) { l.log(charmLog.InfoLevel, msg, keyvals) }

// Warn logs at warn level.
func (l *runtimeLogger) Warn(msg string, keyvals ...any) { l.log(charmLog.WarnLevel, msg, keyvals) }

// Error logs at error level.
func (l *runtimeLogger) Error(msg string, keyvals ...any) { l.log(charmLog.ErrorLevel, msg, keyvals) }

// logFilePath picks the daily dev log file. Relative dirs resolve against the
// enclosing workspace so runs from subdirectories share one log.
func logFilePath(dir, fallbackDir, appName string, day time.Time) (string, error) {
	base := strings.TrimSpace(dir)
	if base == "" {
		base = strings.TrimSpace(fallbackDir)
	}
	if base == "" {
		base = ".sprinter/log"
	}
	if !filepath.IsAbs(base) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
		base = filepath.Join(workspaceRootFrom(cwd), base)
	}
	name := fmt.Sprintf("%s-%s.log", logFileStem(appName), day.Format("20060102"))
	return filepath.Join(filepath.Clean(base), name), nil
}

// workspaceRootFrom returns the nearest ancestor holding go.mod or .git, or start itself.
func workspaceRootFrom(start string) string {
	start = filepath.Clean(strings.TrimSpace(start))
	for dir := start; ; dir = filepath.Dir(dir) {
		for _, marker := range []string{"go.mod", ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		if filepath.Dir(dir) == dir {
			return start
		}
	}
}

var logFileStemReplacer = strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")

// logFileStem turns an app name into a file-name segment.
func logFileStem(appName string) string {
	stem := strings.Trim(logFileStemReplacer.Replace(strings.TrimSpace(appName)), "-")
	if stem == "" {
		return "sprinter"
	}
	return stem
}
