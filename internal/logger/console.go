// Package logger provides the console and file logging implementations.
// The console logger is wired into the Wave Executor by execute-wave.
//
// Implementations are thread-safe and support level filtering (trace through
// error). Color output is automatically enabled for terminal destinations.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/conductor-core/conductor-core/internal/models"
)

// Log level constants for filtering.
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs to a writer with "[HH:MM:SS] [LEVEL]" prefixes and
// thread safety. Color output is automatically enabled for os.Stdout/
// os.Stderr when they are TTYs.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool

	// waveProgress tracks the currently executing wave's task completion,
	// set in LogWaveStart and cleared in LogWaveComplete. A wave executes
	// to completion before the next one starts, so one bar at a time
	// suffices.
	waveProgress *ProgressBar
}

// NewConsoleLogger creates a ConsoleLogger writing to writer. logLevel is
// one of trace/debug/info/warn/error (case-insensitive); empty or invalid
// defaults to "info". If writer is nil, all calls are no-ops.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is os.Stdout or os.Stderr and a TTY.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout {
		return isatty.IsTerminal(os.Stdout.Fd())
	}
	if w == os.Stderr {
		return isatty.IsTerminal(os.Stderr.Fd())
	}
	return false
}

func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func (cl *ConsoleLogger) LogTrace(message string) { cl.logWithLevel("TRACE", message) }
func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("DEBUG", message) }
func (cl *ConsoleLogger) LogInfo(message string)  { cl.logWithLevel("INFO", message) }
func (cl *ConsoleLogger) LogWarn(message string)  { cl.logWithLevel("WARN", message) }
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("ERROR", message) }

// Info is an alias for LogInfo.
func (cl *ConsoleLogger) Info(message string) { cl.LogInfo(message) }

func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.LogInfo(fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.LogWarn(fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.LogError(fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) logWithLevel(level, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = cl.formatWithColor(ts, level, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}
	cl.writer.Write([]byte(formatted))
}

func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string
	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}
	tsColored := color.New(color.FgHiBlack).Sprintf("[%s]", ts)
	return fmt.Sprintf("%s [%s] %s\n", tsColored, coloredLevel, message)
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// LogWaveStart logs the start of a wave (spec §4.5 step boundary), naming
// its strategy and the tasks it will spawn, and arms the wave's progress
// bar so LogTaskTerminal can advance it as tasks finish.
func (cl *ConsoleLogger) LogWaveStart(waveID int, strategy models.Strategy, taskIDs []string) {
	label := "PARALLEL_SWARM"
	if strategy == models.SequentialMerge {
		label = "SEQUENTIAL_MERGE"
	}
	cl.LogInfo(fmt.Sprintf("wave %d start (%s): %s", waveID, label, strings.Join(taskIDs, ", ")))

	bar := NewProgressBar(len(taskIDs), 24, cl.colorOutput)
	bar.SetPrefix(fmt.Sprintf("wave %d ", waveID))
	cl.mutex.Lock()
	cl.waveProgress = bar
	cl.mutex.Unlock()
}

// LogWaveComplete logs a wave reaching its checkpoint and disarms the
// progress bar, leaving the final bar state on its own line.
func (cl *ConsoleLogger) LogWaveComplete(waveID int) {
	cl.mutex.Lock()
	if cl.waveProgress != nil && cl.writer != nil {
		fmt.Fprintln(cl.writer)
	}
	cl.waveProgress = nil
	cl.mutex.Unlock()

	msg := fmt.Sprintf("wave %d complete", waveID)
	if cl.colorOutput {
		msg = color.New(color.FgGreen).Sprint(msg)
	}
	cl.LogInfo(msg)
}

// LogWaveSummary logs a colorized one-line summary of a finished wave.
func (cl *ConsoleLogger) LogWaveSummary(waveID, taskCount, completed, failed int, duration time.Duration) {
	if !cl.colorOutput {
		cl.LogInfo(fmt.Sprintf("wave %d: tasks=%d completed=%d failed=%d duration=%s", waveID, taskCount, completed, failed, duration))
		return
	}
	cl.LogInfo(formatWaveSummary(waveID, taskCount, completed, failed, duration.String()))
}

// LogTaskSpawned logs a task being handed off to the worker layer.
func (cl *ConsoleLogger) LogTaskSpawned(taskID string) {
	cl.LogDebug(fmt.Sprintf("task %s spawned", taskID))
}

// LogTaskTerminal logs a task reaching a terminal watchdog status and
// advances the active wave's progress bar, if one is armed.
func (cl *ConsoleLogger) LogTaskTerminal(taskID string, status models.WatchdogStatus) {
	msg := fmt.Sprintf("task %s -> %s", taskID, status)
	if status == models.WatchdogFailed && cl.colorOutput {
		msg = color.New(color.FgRed).Sprint(msg)
	}
	cl.LogInfo(msg)
	cl.advanceProgress()
}

func (cl *ConsoleLogger) advanceProgress() {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	if cl.waveProgress == nil || cl.writer == nil {
		return
	}
	cl.waveProgress.Increment()
	fmt.Fprintf(cl.writer, "\r%s", cl.waveProgress.Render())
}

// LogRetryAttempt logs a transient failure being retried.
func (cl *ConsoleLogger) LogRetryAttempt(operation string, attempt int, err error) {
	cl.LogWarn(fmt.Sprintf("%s: retry attempt %d after transient error: %v", operation, attempt, err))
}

// LogRetryGiveUp logs an operation exhausting its retry budget.
func (cl *ConsoleLogger) LogRetryGiveUp(operation string, err error) {
	cl.LogError(fmt.Sprintf("%s: giving up after exhausting retries: %v", operation, err))
}

// NoOpLogger discards everything. Useful for tests and headless runs where
// no log destination was configured.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (n *NoOpLogger) LogWaveStart(waveID int, strategy models.Strategy, taskIDs []string)             {}
func (n *NoOpLogger) LogWaveComplete(waveID int)                                                      {}
func (n *NoOpLogger) LogWaveSummary(waveID, taskCount, completed, failed int, duration time.Duration) {}
func (n *NoOpLogger) LogTaskSpawned(taskID string)                                                    {}
func (n *NoOpLogger) LogTaskTerminal(taskID string, status models.WatchdogStatus)                     {}
func (n *NoOpLogger) LogRetryAttempt(operation string, attempt int, err error)                        {}
func (n *NoOpLogger) LogRetryGiveUp(operation string, err error)                                      {}
