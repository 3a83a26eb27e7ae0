package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	base    *slog.Logger
	logFile *os.File
)

const (
	INFO = iota
	DEBUG
)

// InitLogger initializes the logger with console output and, when filename
// is not empty, an additional append-only log file.
func InitLogger(filename string, level int) error {
	var out io.Writer = os.Stdout
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		out = io.MultiWriter(os.Stdout, f)

		mu.Lock()
		if logFile != nil {
			logFile.Close()
		}
		logFile = f
		mu.Unlock()
	}

	lvl := slog.LevelInfo
	if level == DEBUG {
		lvl = slog.LevelDebug
	}

	SetOutput(out, lvl)
	return nil
}

// SetOutput replaces the destination and minimum level of the package logger.
func SetOutput(w io.Writer, level slog.Level) {
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	mu.Lock()
	base = l
	mu.Unlock()
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Init sets up a console-only logger at info level.
func Init() {
	SetOutput(os.Stdout, slog.LevelInfo)
}

// L returns the underlying structured logger.
func L() *slog.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l == nil {
		Init()
		mu.RLock()
		l = base
		mu.RUnlock()
	}
	return l
}

// With returns a structured logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

func Debugf(format string, v ...interface{}) {
	L().Debug(fmt.Sprintf(format, v...))
}

func Info(format string, v ...interface{}) {
	L().Info(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...interface{}) {
	Info(format, v...)
}

func Error(format string, v ...interface{}) {
	L().Error(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...interface{}) {
	Error(format, v...)
}

func Warn(format string, v ...interface{}) {
	L().Warn(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...interface{}) {
	Warn(format, v...)
}
