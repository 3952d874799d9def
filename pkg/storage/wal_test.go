package storage

import (
	"os"
	"strings"
	"testing"
)

func TestFileWALAppends(t *testing.T) {
	path := t.TempDir() + "/settlement.wal"

	w, err := NewFileWAL(path)
	if err != nil {
		t.Fatalf("NewFileWAL: %v", err)
	}
	w.Append(`{"op":"undelegate_trader"}`)
	w.Append(`{"op":"settle_trader"}`)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("wal has %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "undelegate_trader") || !strings.Contains(lines[1], "settle_trader") {
		t.Fatalf("unexpected wal contents: %q", lines)
	}

	// Reopening appends, never truncates.
	w2, err := NewFileWAL(path)
	if err != nil {
		t.Fatalf("NewFileWAL reopen: %v", err)
	}
	w2.Append(`{"op":"settle_book"}`)

	data, _ = os.ReadFile(path)
	if got := len(strings.Split(strings.TrimSpace(string(data)), "\n")); got != 3 {
		t.Fatalf("wal has %d lines after reopen, want 3", got)
	}
}
