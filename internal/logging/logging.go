package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/raoulx24/save-archiver/internal/config"
)

// Logger takes a message followed by alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// New builds a logrus backed Logger from the logging config.
func New(cfg config.LoggingConfig) (Logger, error) {
	l := logrus.New()

	lvl := cfg.Level
	if lvl == "" {
		lvl = "info"
	}
	level, err := logrus.ParseLevel(lvl)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	l.SetOutput(output(cfg))

	return &logrusLogger{entry: logrus.NewEntry(l)}, nil
}

func output(cfg config.LoggingConfig) io.Writer {
	if cfg.File == "" {
		return os.Stderr
	}
	rot := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	return io.MultiWriter(os.Stderr, rot)
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Debug(msg string, args ...any) { l.entry.WithFields(fields(args)).Debug(msg) }
func (l *logrusLogger) Info(msg string, args ...any)  { l.entry.WithFields(fields(args)).Info(msg) }
func (l *logrusLogger) Warn(msg string, args ...any)  { l.entry.WithFields(fields(args)).Warn(msg) }
func (l *logrusLogger) Error(msg string, args ...any) { l.entry.WithFields(fields(args)).Error(msg) }

func (l *logrusLogger) With(args ...any) Logger {
	return &logrusLogger{entry: l.entry.WithFields(fields(args))}
}

func fields(args []any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 == len(args) {
			f["!BADKEY"] = args[i]
			break
		}
		f[key] = args[i+1]
	}
	return f
}
