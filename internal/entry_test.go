package internal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}

func TestRun_StopsWhenInputEnds(t *testing.T) {
	cfg := validConfig(t)
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	note := filepath.Join(cfg.Vaults.Entries["personal"].Path, "existing.md")
	if err := os.WriteFile(note, []byte("# existing\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	var out, logs bytes.Buffer

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), WithConfig(cfg), WithIO(in, &out, &logs))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after input ended")
	}

	if !strings.Contains(logs.String(), "Server stopped successfully") {
		t.Errorf("logs missing shutdown line:\n%s", logs.String())
	}
}
