package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetState() {
	CloseAll()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	workspace = ""
	settings = Settings{}
	logLevel = LevelInfo
}

func writeConfig(t *testing.T, ws, content string) {
	t.Helper()
	configDir := filepath.Join(ws, ".longhaul")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

// TestAllCategoriesLog verifies every category creates its log file when
// debug_mode is on.
func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, `
logging:
  debug_mode: true
  level: debug
`)

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot,
		CategorySession,
		CategoryCommand,
		CategoryOrchestrator,
		CategoryMarathon,
		CategoryStore,
		CategoryIntegrations,
		CategoryBrowser,
	}

	for _, cat := range categories {
		Get(cat).Info("test message for %s", cat)
	}
	CloseAll()

	date := time.Now().Format("2006-01-02")
	for _, cat := range categories {
		logFile := filepath.Join(tempDir, ".longhaul", "logs", date+"_"+string(cat)+".log")
		data, err := os.ReadFile(logFile)
		if err != nil {
			t.Errorf("Expected log file for category %s: %v", cat, err)
			continue
		}
		if !strings.Contains(string(data), "test message for "+string(cat)) {
			t.Errorf("Log file for %s missing test message", cat)
		}
	}
}

// TestProductionModeSilent verifies no log files appear without debug_mode.
func TestProductionModeSilent(t *testing.T) {
	tempDir := t.TempDir()

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if IsDebugMode() {
		t.Error("Expected debug mode to be off with no config")
	}

	Session("this should go nowhere")
	Orchestrator("and so should this")
	CloseAll()

	logsPath := filepath.Join(tempDir, ".longhaul", "logs")
	if entries, err := os.ReadDir(logsPath); err == nil && len(entries) > 0 {
		t.Errorf("Expected no log files in production mode, found %d", len(entries))
	}
}

// TestCategoryDisabled verifies a disabled category writes nothing while
// enabled ones still do.
func TestCategoryDisabled(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, `
logging:
  debug_mode: true
  level: debug
  categories:
    marathon: false
`)

	resetState()
	defer resetState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if IsCategoryEnabled(CategoryMarathon) {
		t.Error("Expected marathon category to be disabled")
	}
	if !IsCategoryEnabled(CategoryStore) {
		t.Error("Expected store category to default to enabled")
	}

	Marathon("suppressed message")
	Store("visible message")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	if _, err := os.Stat(filepath.Join(tempDir, ".longhaul", "logs", date+"_marathon.log")); err == nil {
		t.Error("Expected no marathon log file for a disabled category")
	}
	if _, err := os.Stat(filepath.Join(tempDir, ".longhaul", "logs", date+"_store.log")); err != nil {
		t.Errorf("Expected store log file to exist: %v", err)
	}
}

// TestApplySettings verifies runtime overrides flip debug mode without a
// config file on disk.
func TestApplySettings(t *testing.T) {
	resetState()
	defer resetState()

	ApplySettings(Settings{DebugMode: true, Level: "warn"})
	if !IsDebugMode() {
		t.Error("Expected debug mode after ApplySettings")
	}

	ApplySettings(Settings{DebugMode: false})
	if IsDebugMode() {
		t.Error("Expected debug mode off after override")
	}
}

func TestTimer(t *testing.T) {
	resetState()
	defer resetState()

	timer := StartTimer(CategoryStore, "test-op")
	time.Sleep(2 * time.Millisecond)
	elapsed := timer.Stop()

	if elapsed < 2*time.Millisecond {
		t.Errorf("Expected elapsed >= 2ms, got %v", elapsed)
	}
}
