// Package logging provides file-based logging for brandflow. The TUI owns
// stdout, so all diagnostics go to brandflow.log in the config directory.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to brandflow.log under dir. If the file
// cannot be opened the returned logger is a no-op, never nil.
func New(dir string) *zap.SugaredLogger {
	if dir == "" {
		return zap.NewNop().Sugar()
	}

	path := filepath.Join(dir, "brandflow.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return zap.NewNop().Sugar()
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(f),
		zapcore.DebugLevel,
	)

	return zap.New(core).Sugar()
}

// Nop returns a discard-everything logger, useful in tests.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
