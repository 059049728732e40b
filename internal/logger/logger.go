package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*logrus.Entry
}

// Options override the environment driven defaults for every logger built by New.
type Options struct {
	Level       string
	Environment string
	File        string
}

var (
	mu        sync.RWMutex
	overrides Options
	fileSink  *lumberjack.Logger
)

// Configure sets process wide logger options. Empty fields fall back to the environment.
func Configure(opts Options) {
	mu.Lock()
	defer mu.Unlock()
	overrides = opts
	fileSink = nil
}

func New() *Logger {
	mu.Lock()
	opts := overrides
	if opts.Level == "" {
		opts.Level = os.Getenv("LOG_LEVEL")
	}
	if opts.Environment == "" {
		opts.Environment = os.Getenv("ENVIRONMENT")
	}
	if opts.File == "" {
		opts.File = os.Getenv("CRTR_LOG_FILE")
	}
	var out io.Writer = os.Stderr
	if opts.File != "" {
		if fileSink == nil || fileSink.Filename != opts.File {
			fileSink = &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    20, // MB
				MaxBackups: 5,
				MaxAge:     30,
				Compress:   true,
			}
		}
		out = io.MultiWriter(os.Stderr, fileSink)
	}
	mu.Unlock()

	base := logrus.New()

	// Local env = pretty console; others = JSON
	if opts.Environment == "" || opts.Environment == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     opts.File == "" && isTerminal(os.Stderr),
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(out)
	base.SetLevel(ParseLevel(opts.Level))

	return &Logger{Entry: logrus.NewEntry(base)}
}

// ParseLevel maps a LOG_LEVEL value to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithRun attaches the conversion run metadata and returns an entry
func (l *Logger) WithRun(runID, input string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"run_id": runID,
		"input":  input,
	})
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
