package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Prm groups logger parameters.
type Prm struct {
	// Level is a minimum enabled logging level, e.g. "debug" or "info".
	// Empty means "info".
	Level string
	// Encoding is either "console" or "json". Empty means "console".
	Encoding string
	// Timestamp forces timestamps in records. If unset, timestamps are
	// written when stdout is a terminal only: process supervisors add
	// their own.
	Timestamp *bool
}

// NewLogger builds zap logger with the given parameters. Logger writes to
// stderr.
func NewLogger(prm Prm) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if prm.Level != "" {
		var err error
		lvl, err = zap.ParseAtomicLevel(prm.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid logger level: %w", err)
		}
	}

	c := zap.NewProductionConfig()
	c.Level = lvl
	c.Encoding = "console"
	if prm.Encoding != "" {
		c.Encoding = prm.Encoding
	}
	c.Sampling = nil

	withTimestamp := term.IsTerminal(int(os.Stdout.Fd()))
	if prm.Timestamp != nil {
		withTimestamp = *prm.Timestamp
	}

	if withTimestamp {
		c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		c.EncoderConfig.EncodeTime = func(_ time.Time, _ zapcore.PrimitiveArrayEncoder) {}
	}

	log, err := c.Build(
		zap.AddStacktrace(zap.NewAtomicLevelAt(zap.FatalLevel)),
	)
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return log, nil
}
