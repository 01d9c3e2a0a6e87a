package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dotsetgreg/healthtwin/pkg/memory"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Budget.Mode != "BALANCED" {
		t.Fatalf("expected BALANCED default, got %q", cfg.Budget.Mode)
	}
	if cfg.Memory.Backend != BackendFile {
		t.Fatalf("expected file backend default, got %q", cfg.Memory.Backend)
	}
	if cfg.Memory.MaxBytes != memory.DefaultMaxBytes {
		t.Fatalf("expected default ceiling %d, got %d", memory.DefaultMaxBytes, cfg.Memory.MaxBytes)
	}
	if cfg.Memory.MaterialThreshold != memory.DefaultMaterialThreshold {
		t.Fatalf("expected default threshold %v, got %v", memory.DefaultMaterialThreshold, cfg.Memory.MaterialThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BudgetMode() != memory.BudgetBalanced {
		t.Fatalf("expected balanced default, got %s", cfg.BudgetMode())
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"budget": {"mode": "HIGH"},
		"memory": {"backend": "sqlite", "max_bytes": 8192},
		"providers": {"scaledown": {"timeout_seconds": 5}}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BudgetMode() != memory.BudgetHigh {
		t.Fatalf("expected HIGH from file, got %s", cfg.BudgetMode())
	}
	if cfg.Memory.Backend != BackendSQLite {
		t.Fatalf("expected sqlite backend, got %q", cfg.Memory.Backend)
	}
	if cfg.Memory.MaxBytes != 8192 {
		t.Fatalf("expected overridden ceiling, got %d", cfg.Memory.MaxBytes)
	}
	if cfg.ScaleDownTimeout() != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", cfg.ScaleDownTimeout())
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"budget": {"mode": "LOW"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HEALTHTWIN_BUDGET_MODE", "HIGH")
	t.Setenv("HEALTHTWIN_USE_FALLBACK", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BudgetMode() != memory.BudgetHigh {
		t.Fatalf("env must win over file, got %s", cfg.BudgetMode())
	}
	if !cfg.Providers.UseFallback {
		t.Fatalf("expected fallback pinned via env")
	}
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	badMode := filepath.Join(dir, "mode.json")
	if err := os.WriteFile(badMode, []byte(`{"budget": {"mode": "turbo"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(badMode); err == nil || !strings.Contains(err.Error(), "budget mode") {
		t.Fatalf("expected budget mode error, got %v", err)
	}

	badBackend := filepath.Join(dir, "backend.json")
	if err := os.WriteFile(badBackend, []byte(`{"memory": {"backend": "redis"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(badBackend); err == nil || !strings.Contains(err.Error(), "backend") {
		t.Fatalf("expected backend error, got %v", err)
	}

	malformed := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(malformed, []byte(`{`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(malformed); err == nil {
		t.Fatalf("expected parse error for malformed config")
	}
}

func TestSaveConfigRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Budget.Mode = "LOW"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.BudgetMode() != memory.BudgetLow {
		t.Fatalf("roundtrip lost budget mode, got %s", loaded.BudgetMode())
	}
}

func TestMemoryPathExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if got := cfg.MemoryPath(); !strings.HasPrefix(got, home) {
		t.Fatalf("expected home-expanded path, got %q", got)
	}

	cfg.Memory.Path = "/var/lib/healthtwin/memory.json"
	if got := cfg.MemoryPath(); got != cfg.Memory.Path {
		t.Fatalf("absolute paths must pass through, got %q", got)
	}
}
