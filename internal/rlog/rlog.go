// Package rlog provides the structured logger used throughout this
// project, wrapping go.uber.org/zap so every component logs through the
// same sink with the same field conventions (component, node_id,
// frame_number) rather than ad hoc fmt.Printf calls.
package rlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger writing to stderr: console encoding with colored
// level names, ISO8601 timestamps,
// level controlled by the RECORDER_LOG_LEVEL environment variable
// (defaulting to info). verbose forces debug level regardless of the
// environment, for CLI -v/--verbose flags.
func New(verbose bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	} else if raw := os.Getenv("RECORDER_LOG_LEVEL"); raw != "" {
		if err := level.Set(raw); err != nil {
			return nil, err
		}
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return cfg.Build()
}

// Nop returns a logger that discards everything, for tests that need to
// satisfy a *zap.Logger parameter without asserting on log output.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// ForNode returns a child logger tagged with the node's id and type, the
// two fields almost every per-node log line wants attached.
func ForNode(base *zap.Logger, nodeID, nodeType string) *zap.Logger {
	return base.With(zap.String("node_id", nodeID), zap.String("node_type", nodeType))
}
