package main

import (
	"path/filepath"
	"testing"
)

func TestRunRequiresBroker(t *testing.T) {
	t.Setenv("AMQP_URL", "")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("JOURNAL_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")

	if code := run(); code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
}
