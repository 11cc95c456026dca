package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/wsd/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// MCPMode tracks if we're running as an MCP stdio server (set by main)
var MCPMode = false

// debugOutput is the writer for debug output (nil means no output)
var debugOutput io.Writer

// debugFile holds the open file handle if debug output goes to a file
var debugFile *os.File

// debugLogger is rebuilt whenever debugOutput changes
var debugLogger *zap.Logger

// debugMutex protects access to debug output
var debugMutex sync.Mutex

// SetMCPMode enables MCP mode which suppresses all debug output to stdio
func SetMCPMode(enabled bool) {
	MCPMode = enabled
}

// SetDebugOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	setOutputLocked(w)
}

func setOutputLocked(w io.Writer) {
	debugOutput = w
	if w == nil {
		debugLogger = nil
		return
	}
	debugLogger = zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(debugEncoderConfig()),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	))
}

func debugEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	cfg.ConsoleSeparator = " "
	return cfg
}

// InitDebugLogFile initializes debug logging to a file.
// Returns the path to the log file, or an error if initialization fails.
// Call CloseDebugLog when done to ensure the file is properly closed.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "wsd-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	setOutputLocked(file)
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		if debugLogger != nil {
			_ = debugLogger.Sync()
		}
		err := debugFile.Close()
		debugFile = nil
		setOutputLocked(nil)
		return err
	}
	return nil
}

// IsDebugEnabled returns true if debug mode is enabled and we're not in MCP mode
func IsDebugEnabled() bool {
	if MCPMode {
		return false
	}

	if EnableDebug == "true" {
		return true
	}

	if os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true" {
		return true
	}

	return false
}

func getDebugLogger() *zap.Logger {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugLogger
}

// Printf prints debug information only when debug mode is enabled and output is configured
func Printf(format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	if l := getDebugLogger(); l != nil {
		l.Debug(fmt.Sprintf(format, args...))
	}
}

// Println prints debug information only when debug mode is enabled and output is configured
func Println(args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	if l := getDebugLogger(); l != nil {
		l.Debug(fmt.Sprint(args...))
	}
}

// Log provides structured debug logging with component names
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	if l := getDebugLogger(); l != nil {
		l.Named(component).Debug(fmt.Sprintf(format, args...))
	}
}

// LogScan provides debug logging for the rules scanner
func LogScan(format string, args ...interface{}) {
	Log("SCAN", format, args...)
}

// LogSource provides debug logging for WooCommerce settings sources
func LogSource(format string, args ...interface{}) {
	Log("SOURCE", format, args...)
}

// LogServer provides debug logging for the admin console
func LogServer(format string, args ...interface{}) {
	Log("HTTP", format, args...)
}

// LogMCP provides debug logging specifically for MCP operations
func LogMCP(format string, args ...interface{}) {
	Log("MCP", format, args...)
}

// Fatal outputs a catastrophic error message to the debug log and returns a fatal error.
// In MCP mode, output is suppressed entirely.
func Fatal(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if !MCPMode {
		if l := getDebugLogger(); l != nil {
			l.Error(msg, zap.Bool("fatal", true))
		}
	}
	return fmt.Errorf("fatal error: %s", msg)
}

// NewLogger builds the operational logger used by long-running commands.
// verbose lowers the level to debug. MCP mode routes everything to stderr.
func NewLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose || IsDebugEnabled() {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if MCPMode {
		config.OutputPaths = []string{"stderr"}
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
