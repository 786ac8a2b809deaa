package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// reset clears the package state between tests.
func reset() {
	CloseAll()
	configMu.Lock()
	config = loggingConfig{}
	configLoaded = false
	configMu.Unlock()
	logsDir = ""
	projectDir = ""
	logLevel = LevelInfo
}

func TestInitializeWithoutConfig(t *testing.T) {
	defer reset()

	dir := t.TempDir()
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// No config.json means production mode: no logs dir, no-op loggers.
	if IsDebugMode() {
		t.Error("expected production mode without config")
	}
	if _, err := os.Stat(filepath.Join(dir, "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not be created in production mode")
	}

	// Writing through a no-op logger must not panic.
	Get(CategoryStore).Info("dropped")
}

func TestInitializeDebugMode(t *testing.T) {
	defer reset()

	dir := t.TempDir()
	cfg := `{"logging": {"debug_mode": true, "level": "debug"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !IsDebugMode() {
		t.Fatal("expected debug mode")
	}

	Store("vector index ready")
	StoreDebug("detail %d", 42)
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}

	var found bool
	for _, e := range entries {
		if strings.Contains(e.Name(), "store") {
			found = true
			data, _ := os.ReadFile(filepath.Join(dir, "logs", e.Name()))
			if !strings.Contains(string(data), "vector index ready") {
				t.Error("info line missing from store log")
			}
			if !strings.Contains(string(data), "detail 42") {
				t.Error("debug line missing from store log")
			}
		}
	}
	if !found {
		t.Error("no store category log file created")
	}
}

func TestCategoryFilter(t *testing.T) {
	defer reset()

	dir := t.TempDir()
	cfg := `{"logging": {"debug_mode": true, "level": "info", "categories": {"llm": false}}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if IsCategoryEnabled(CategoryLLM) {
		t.Error("llm category should be disabled")
	}
	if !IsCategoryEnabled(CategoryMemory) {
		t.Error("unlisted category should default to enabled")
	}
}

func TestStartTimerStop(t *testing.T) {
	defer reset()

	// Timers must be safe without initialization.
	timer := StartTimer(CategoryOrchestrator, "tick")
	if d := timer.Stop(); d < 0 {
		t.Errorf("negative duration: %v", d)
	}
}
