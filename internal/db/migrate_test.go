package db

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap/zapcore"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		version int
		ok      bool
	}{
		{"001_init.sql", 1, true},
		{"12_add_index.sql", 12, true},
		{"init.sql", 0, false},
		{"abc_init.sql", 0, false},
	}
	for _, tt := range tests {
		v, ok := parseVersion(tt.name)
		if v != tt.version || ok != tt.ok {
			t.Errorf("parseVersion(%q) = %d, %v; want %d, %v", tt.name, v, ok, tt.version, tt.ok)
		}
	}
}

func TestLoadMigrations_SortsAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_second.sql": {Data: []byte("SELECT 2;")},
		"m/001_first.sql":  {Data: []byte("SELECT 1;")},
		"m/README.md":      {Data: []byte("docs")},
		"m/notes.sql":      {Data: []byte("SELECT 0;")},
	}

	migrations, err := loadMigrations(fsys, "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("unexpected order: %d, %d", migrations[0].Version, migrations[1].Version)
	}
}

func TestEmbeddedSchema(t *testing.T) {
	migrations, err := LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no embedded migrations")
	}
	for _, table := range []string{"appointments", "doctor_leaves", "event_logs", "notification_outbox", "accounts"} {
		if !strings.Contains(migrations[0].SQL, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("initial migration does not create %s", table)
		}
	}
}

func TestZapLevel(t *testing.T) {
	tests := []struct {
		in   tracelog.LogLevel
		want zapcore.Level
	}{
		{tracelog.LogLevelTrace, zapcore.DebugLevel},
		{tracelog.LogLevelInfo, zapcore.InfoLevel},
		{tracelog.LogLevelWarn, zapcore.WarnLevel},
		{tracelog.LogLevelError, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		if got := zapLevel(tt.in); got != tt.want {
			t.Errorf("zapLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
