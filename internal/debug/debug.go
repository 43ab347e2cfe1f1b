// Package debug provides a structured file logger for development
// diagnostics. When enabled via --debug or inherited environment, every
// significant coordination event (lock churn, registry writes, message
// delivery, spawn lifecycle) is written to a single log file under
// ~/.agentmesh/debug/ so a multi-process run can be reconstructed afterward.
//
// When disabled (the default), all logging functions are no-ops.
package debug

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	// EnvEnabled toggles debug logging in child agentmesh processes.
	EnvEnabled = "AGENTMESH_DEBUG_ENABLED"
	// EnvLogPath points children at an existing aggregate debug file.
	EnvLogPath = "AGENTMESH_DEBUG_LOG_PATH"
	// EnvProcess labels the current process in every emitted line.
	EnvProcess = "AGENTMESH_DEBUG_PROCESS"
)

var (
	logger   *Logger
	loggerMu sync.RWMutex
)

// Logger writes structured debug lines to a file.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	startedAt time.Time
	pid       int
	process   string
}

// Init initializes the global debug logger, creating ~/.agentmesh/debug/ if
// needed, and returns the log file path. Child processes that inherit
// EnvLogPath append to the parent's file instead of opening their own.
func Init() (string, error) {
	loggerMu.RLock()
	if logger != nil {
		p := logger.path
		loggerMu.RUnlock()
		return p, nil
	}
	loggerMu.RUnlock()

	path, inherited, err := resolveLogPath()
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("debug: open log %s: %w", path, err)
	}

	l := &Logger{
		file:      f,
		path:      path,
		startedAt: time.Now(),
		pid:       os.Getpid(),
		process:   processLabel(),
	}

	banner := "=== agentmesh debug log ==="
	if inherited {
		banner = "--- process attached ---"
	}
	fmt.Fprintf(f, "%s started=%s pid=%d process=%s\n",
		banner, l.startedAt.Format(time.RFC3339Nano), l.pid, l.process)

	loggerMu.Lock()
	if logger != nil {
		p := logger.path
		loggerMu.Unlock()
		f.Close()
		return p, nil
	}
	logger = l
	loggerMu.Unlock()
	return path, nil
}

// Close flushes and closes the debug log. Safe to call when not initialized.
func Close() {
	loggerMu.Lock()
	l := logger
	logger = nil
	loggerMu.Unlock()
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "=== closed === pid=%d duration=%s\n", l.pid, time.Since(l.startedAt))
	l.file.Close()
}

// Enabled reports whether the debug logger is active.
func Enabled() bool {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger != nil
}

// Path returns the log file path, or "" when disabled.
func Path() string {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return ""
	}
	return logger.path
}

// ShouldEnableFromEnv reports whether inherited environment variables ask
// for debug logging.
func ShouldEnableFromEnv() bool {
	path := strings.TrimSpace(os.Getenv(EnvLogPath))
	switch strings.TrimSpace(strings.ToLower(os.Getenv(EnvEnabled))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return path != ""
	}
}

// PropagatedEnv overlays the debug variables onto baseEnv so child processes
// log into the same file. Returns baseEnv unchanged when debug is disabled.
func PropagatedEnv(baseEnv []string, process string) []string {
	logPath := Path()
	if logPath == "" {
		return baseEnv
	}
	env := append([]string(nil), baseEnv...)
	env = setEnv(env, EnvEnabled, "1")
	env = setEnv(env, EnvLogPath, logPath)
	if strings.TrimSpace(process) != "" {
		env = setEnv(env, EnvProcess, process)
	}
	return env
}

// Log writes a debug line. No-op when debug is disabled.
func Log(component, msg string) {
	if l := get(); l != nil {
		l.write(component, msg)
	}
}

// Logf writes a formatted debug line. No-op when debug is disabled.
func Logf(component, format string, args ...any) {
	if l := get(); l != nil {
		l.write(component, fmt.Sprintf(format, args...))
	}
}

// LogKV writes a debug line with key-value context pairs.
// Usage: debug.LogKV("registry", "registered", "name", "BlueFalcon", "pid", 123)
func LogKV(component, msg string, kvs ...any) {
	l := get()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kvs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kvs[i], kvs[i+1])
	}
	l.write(component, b.String())
}

func get() *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func (l *Logger) write(component, msg string) {
	now := time.Now()

	_, file, line, ok := runtime.Caller(2)
	caller := "??:0"
	if ok {
		if idx := strings.LastIndex(file, "/internal/"); idx >= 0 {
			file = file[idx+1:]
		} else if idx := strings.LastIndex(file, "/cmd/"); idx >= 0 {
			file = file[idx+1:]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	out := fmt.Sprintf("%s +%10s [P%-6d] [%-16s] [%-12s] %-36s | %s\n",
		now.Format("15:04:05.000000"),
		now.Sub(l.startedAt).Truncate(time.Microsecond),
		l.pid,
		l.process,
		component,
		caller,
		msg,
	)

	l.mu.Lock()
	l.file.WriteString(out)
	l.mu.Unlock()
}

func resolveLogPath() (path string, inherited bool, err error) {
	if p := strings.TrimSpace(os.Getenv(EnvLogPath)); p != "" {
		if dir := filepath.Dir(p); dir != "." && dir != string(filepath.Separator) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return "", true, fmt.Errorf("debug: create dir %s: %w", dir, err)
			}
		}
		return p, true, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("debug: user home dir: %w", err)
	}
	dir := filepath.Join(home, ".agentmesh", "debug")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", false, fmt.Errorf("debug: create dir %s: %w", dir, err)
	}

	var b [4]byte
	rand.Read(b[:])
	name := fmt.Sprintf("%s_%s.log", time.Now().Format("20060102T150405"), hex.EncodeToString(b[:]))
	return filepath.Join(dir, name), false, nil
}

func processLabel() string {
	if p := strings.TrimSpace(os.Getenv(EnvProcess)); p != "" {
		return p
	}
	base := filepath.Base(os.Args[0])
	for i := 1; i < len(os.Args); i++ {
		arg := strings.TrimSpace(os.Args[i])
		if arg == "" || strings.HasPrefix(arg, "-") {
			continue
		}
		return base + ":" + arg
	}
	return base
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i := range env {
		if strings.HasPrefix(env[i], prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}
