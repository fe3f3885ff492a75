package adapter

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogFilePath(t *testing.T) {
	t.Run("explicit path kept", func(t *testing.T) {
		got, err := logFilePath("/var/log/lector.log")
		if err != nil {
			t.Fatalf("logFilePath() failed: %v", err)
		}
		if got != "/var/log/lector.log" {
			t.Errorf("logFilePath() = %q, want unchanged path", got)
		}
	})

	t.Run("empty falls back to default", func(t *testing.T) {
		got, err := logFilePath("")
		if err != nil {
			t.Fatalf("logFilePath() failed: %v", err)
		}
		if got == "" || filepath.Base(got) != "lector.log" {
			t.Errorf("logFilePath(\"\") = %q, want the default lector.log path", got)
		}
	})

	t.Run("tilde expands to home", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skipf("no home directory: %v", err)
		}
		got, err := logFilePath("~/logs/lector.log")
		if err != nil {
			t.Fatalf("logFilePath() failed: %v", err)
		}
		if want := filepath.Join(home, "logs", "lector.log"); got != want {
			t.Errorf("logFilePath() = %q, want %q", got, want)
		}
	})
}

func TestSetupLoggerCreatesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "lector.log")
	logger, err := SetupLogger(&LoggingConfig{File: logPath, Level: "DEBUG"})
	if err != nil {
		t.Fatalf("SetupLogger() failed: %v", err)
	}

	logger.Info("hello", "k", "v")
	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("log file is empty after writing a record")
	}
}

func TestNullLoggerDiscards(t *testing.T) {
	// Must not panic and must accept records at any level.
	l := NullLogger()
	l.Debug("x")
	l.Error("y", "k", 1)
}
