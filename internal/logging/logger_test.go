package logging

import (
	"testing"

	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	cases := map[string]bool{
		"debug": true,
		"info":  false,
		"":      false,
		"error": false,
	}
	for level, debugEnabled := range cases {
		logger, err := New("prod", level)
		if err != nil {
			t.Fatalf("New(%q): %v", level, err)
		}
		if got := logger.Core().Enabled(zap.DebugLevel); got != debugEnabled {
			t.Errorf("level %q: debug enabled = %v, want %v", level, got, debugEnabled)
		}
	}
}
