package logging

import (
	"testing"

	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		enabled zap.AtomicLevel
		wantErr bool
	}{
		{level: "", enabled: zap.NewAtomicLevelAt(zap.InfoLevel)},
		{level: "warn", enabled: zap.NewAtomicLevelAt(zap.WarnLevel)},
		{level: "DEBUG", enabled: zap.NewAtomicLevelAt(zap.DebugLevel)},
		{level: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for level %q", tt.level)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.level, err)
			}
			want := tt.enabled.Level()
			if !logger.Core().Enabled(want) {
				t.Fatalf("level %s should be enabled", want)
			}
			if want > zap.DebugLevel && logger.Core().Enabled(want-1) {
				t.Fatalf("level %s should be disabled", want-1)
			}
		})
	}
}
