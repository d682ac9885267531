package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBootstrapLogger_ReplacesGlobal(t *testing.T) {
	undo := zap.ReplaceGlobals(zap.NewNop())
	t.Cleanup(undo)

	if zap.L().Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("Expected the no-op logger to be installed")
	}

	logger := BootstrapLogger()
	if zap.L() != logger {
		t.Errorf("Expected BootstrapLogger to install its logger globally")
	}
	if !zap.L().Core().Enabled(zapcore.FatalLevel) {
		t.Errorf("Expected the global logger to write fatal messages")
	}
}

func TestInitializeLogger_Level(t *testing.T) {
	undo := zap.ReplaceGlobals(zap.NewNop())
	t.Cleanup(undo)

	tests := []struct {
		level   string
		debugOn bool
		warnOn  bool
	}{
		{"debug", true, true},
		{"INFO", false, true},
		{"error", false, false},
		{"bogus", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, cleanup := InitializeLogger(tt.level)
			defer cleanup()
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.debugOn {
				t.Errorf("debug enabled = %v, want %v", got, tt.debugOn)
			}
			if got := logger.Core().Enabled(zapcore.WarnLevel); got != tt.warnOn {
				t.Errorf("warn enabled = %v, want %v", got, tt.warnOn)
			}
		})
	}
}

func TestFormatUSD(t *testing.T) {
	if got := FormatUSD(decimal.RequireFromString("1234.5")); got != "$1234.50" {
		t.Errorf("FormatUSD = %s", got)
	}
	if got := FormatOptional(decimal.NullDecimal{}); got != "-" {
		t.Errorf("FormatOptional(null) = %s", got)
	}
	if got := FormatOptional(decimal.NewNullDecimal(decimal.NewFromInt(7))); got != "$7.00" {
		t.Errorf("FormatOptional(7) = %s", got)
	}
}
