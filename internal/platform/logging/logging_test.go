package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	logger, err := New(false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Sync()
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("default logger should not log at debug level")
	}

	verbose, err := New(true)
	if err != nil {
		t.Fatalf("New verbose: %v", err)
	}
	defer verbose.Sync()
	if !verbose.Core().Enabled(zapcore.DebugLevel) {
		t.Error("verbose logger should log at debug level")
	}
}
