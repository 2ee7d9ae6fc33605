package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingFileRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	writer, err := newRotatingFile(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer writer.Close()
	// Force a tiny limit so two writes trigger a rotation.
	writer.maxBytes = 16

	if _, err := writer.Write([]byte("first entry\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := writer.Write([]byte("second entry\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected backup after rotation: %v", err)
	}
	if !strings.Contains(string(backup), "first entry") {
		t.Fatalf("backup should hold the first entry, got %q", backup)
	}

	live, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read live file: %v", err)
	}
	if !strings.Contains(string(live), "second entry") {
		t.Fatalf("live file should hold the second entry, got %q", live)
	}
}

func TestRotatingFileKeepsLimitedBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	writer, err := newRotatingFile(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer writer.Close()
	writer.maxBytes = 8

	for i := 0; i < 5; i++ {
		if _, err := writer.Write([]byte("entry-entry\n")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Fatalf("backup beyond maxBackups should not exist")
	}
}

func TestRotatingFileRequiresPath(t *testing.T) {
	if _, err := newRotatingFile("", 1, 1, 1); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestBuildAuditLoggerTagsChannel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	audit, err := buildAuditLogger(AuditConfig{Enabled: true, Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	audit.Info("cycle recorded", "cycle_id", "c-1")
	if err := Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	for _, want := range [][]byte{
		[]byte(`"channel":"audit"`),
		[]byte(`"service":"dustmited"`),
		[]byte(`"cycle_id":"c-1"`),
	} {
		if !bytes.Contains(content, want) {
			t.Fatalf("audit entry missing %s: %s", want, content)
		}
	}
}
