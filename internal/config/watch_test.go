package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchFileReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"agents":{"defaults":{"model":"first"}}}`), 0o644); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	w, err := WatchFile(path, cfg)
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`{"agents":{"defaults":{"model":"second"}}}`), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		cfg.mu.RLock()
		model := cfg.Agents.Defaults.Model
		cfg.mu.RUnlock()
		if model == "second" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected config to hot-reload to model=second, got %q", cfg.Agents.Defaults.Model)
}
