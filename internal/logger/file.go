package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/conductor-core/conductor-core/internal/models"
)

// FileLogger logs orchestrator/wave-executor events to .conductor/logs/. It
// creates a timestamped per-run log file, a per-task detail log under
// tasks/, and maintains a latest.log symlink pointing to the current run.
// Thread-safe; supports log level filtering.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	tasksDir string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing to .conductor/logs/ with the
// default "info" level.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(filepath.Join(".conductor", "logs"), "info")
}

// NewFileLoggerWithDir creates a FileLogger with a custom log directory.
func NewFileLoggerWithDir(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log
// directory and level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	tasksDir := filepath.Join(logDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tasks directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", timestamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		tasksDir: tasksDir,
		logLevel: normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== Conductor Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel("INFO", message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel("WARN", message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) logWithLevel(level, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

// LogWaveStart mirrors ConsoleLogger.LogWaveStart for the run log.
func (fl *FileLogger) LogWaveStart(waveID int, strategy models.Strategy, taskIDs []string) {
	if !fl.shouldLog("info") {
		return
	}
	label := "PARALLEL_SWARM"
	if strategy == models.SequentialMerge {
		label = "SEQUENTIAL_MERGE"
	}
	fl.writeRunLog(fmt.Sprintf("[%s] wave %d start (%s): %s\n", time.Now().Format("15:04:05"), waveID, label, strings.Join(taskIDs, ", ")))
}

// LogWaveComplete mirrors ConsoleLogger.LogWaveComplete for the run log.
func (fl *FileLogger) LogWaveComplete(waveID int) {
	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] wave %d complete\n", time.Now().Format("15:04:05"), waveID))
}

// LogWaveSummary mirrors ConsoleLogger.LogWaveSummary for the run log.
func (fl *FileLogger) LogWaveSummary(waveID, taskCount, completed, failed int, duration time.Duration) {
	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] wave %d: tasks=%d completed=%d failed=%d duration=%s\n", time.Now().Format("15:04:05"), waveID, taskCount, completed, failed, duration))
}

// LogTaskSpawned mirrors ConsoleLogger.LogTaskSpawned for the run log, and
// opens a per-task detail file under tasks/.
func (fl *FileLogger) LogTaskSpawned(taskID string) {
	if fl.shouldLog("debug") {
		fl.writeRunLog(fmt.Sprintf("[%s] task %s spawned\n", time.Now().Format("15:04:05"), taskID))
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()
	taskLogPath := filepath.Join(fl.tasksDir, fmt.Sprintf("%s.log", taskID))
	file, err := os.OpenFile(taskLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	defer file.Close()
	fmt.Fprintf(file, "[%s] spawned\n", time.Now().Format(time.RFC3339))
}

// LogTaskTerminal mirrors ConsoleLogger.LogTaskTerminal, recording the
// outcome both in the run log and the task's own detail file.
func (fl *FileLogger) LogTaskTerminal(taskID string, status models.WatchdogStatus) {
	if fl.shouldLog("info") {
		fl.writeRunLog(fmt.Sprintf("[%s] task %s -> %s\n", time.Now().Format("15:04:05"), taskID, status))
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()
	taskLogPath := filepath.Join(fl.tasksDir, fmt.Sprintf("%s.log", taskID))
	file, err := os.OpenFile(taskLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	defer file.Close()
	fmt.Fprintf(file, "[%s] terminal status: %s\n", time.Now().Format(time.RFC3339), status)
}

// LogRetryAttempt mirrors ConsoleLogger.LogRetryAttempt for the run log.
func (fl *FileLogger) LogRetryAttempt(operation string, attempt int, err error) {
	if !fl.shouldLog("warn") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] %s: retry attempt %d after transient error: %v\n", time.Now().Format("15:04:05"), operation, attempt, err))
}

// LogRetryGiveUp mirrors ConsoleLogger.LogRetryGiveUp for the run log.
func (fl *FileLogger) LogRetryGiveUp(operation string, err error) {
	if !fl.shouldLog("error") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] %s: giving up after exhausting retries: %v\n", time.Now().Format("15:04:05"), operation, err))
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
