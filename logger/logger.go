// Package logger builds the zap logger. Logs go to a file so they never
// interleave with the terminal UI.
package logger

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level    string
	File     string
	Encoding string
	// Console also writes to stderr.
	Console bool
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE", "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func config(o Options) zap.Config {
	enc := o.Encoding
	if enc != "console" {
		enc = "json"
	}
	var outputs []string
	if o.File != "" {
		outputs = append(outputs, o.File)
	}
	if o.Console || len(outputs) == 0 {
		outputs = append(outputs, "stderr")
	}

	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(o.Level)),
		Encoding:         enc,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    ec,
	}
}

// New builds a logger, creating the log file's directory when needed.
func New(o Options) (*zap.Logger, error) {
	if o.File != "" {
		if err := os.MkdirAll(filepath.Dir(o.File), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create log directory")
		}
	}
	l, err := config(o).Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return l.With(zap.Int("pid", os.Getpid())), nil
}
