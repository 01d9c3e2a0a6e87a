package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dotsetgreg/healthtwin/pkg/memory"
)

// Backend selects the single-slot store implementation.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	Budget    BudgetConfig    `json:"budget"`
	Memory    MemoryConfig    `json:"memory"`
	Providers ProvidersConfig `json:"providers"`
	Data      DataConfig      `json:"data"`
	mu        sync.RWMutex
}

type BudgetConfig struct {
	Mode       string `json:"mode" env:"HEALTHTWIN_BUDGET_MODE"`
	WindowDays int    `json:"window_days" env:"HEALTHTWIN_BUDGET_WINDOW_DAYS"` // 0 = derived from mode
}

type MemoryConfig struct {
	Path              string  `json:"path" env:"HEALTHTWIN_MEMORY_PATH"`
	Backend           string  `json:"backend" env:"HEALTHTWIN_MEMORY_BACKEND"`
	MaxBytes          int     `json:"max_bytes" env:"HEALTHTWIN_MEMORY_MAX_BYTES"`
	MaterialThreshold float64 `json:"material_threshold" env:"HEALTHTWIN_MEMORY_MATERIAL_THRESHOLD"`
}

type ProvidersConfig struct {
	UseFallback bool            `json:"use_fallback" env:"HEALTHTWIN_USE_FALLBACK"`
	ScaleDown   ScaleDownConfig `json:"scaledown"`
}

type ScaleDownConfig struct {
	APIKey         string `json:"api_key" env:"HEALTHTWIN_PROVIDERS_SCALEDOWN_API_KEY"`
	APIBase        string `json:"api_base" env:"HEALTHTWIN_PROVIDERS_SCALEDOWN_API_BASE"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"HEALTHTWIN_PROVIDERS_SCALEDOWN_TIMEOUT_SECONDS"`
}

type DataConfig struct {
	Path string `json:"path" env:"HEALTHTWIN_DATA_PATH"`
}

func DefaultConfig() *Config {
	return &Config{
		Budget: BudgetConfig{
			Mode: string(memory.BudgetBalanced),
		},
		Memory: MemoryConfig{
			Path:              "~/.healthtwin/memory.json",
			Backend:           BackendFile,
			MaxBytes:          memory.DefaultMaxBytes,
			MaterialThreshold: memory.DefaultMaterialThreshold,
		},
		Providers: ProvidersConfig{
			UseFallback: false,
			ScaleDown: ScaleDownConfig{
				APIBase:        "https://api.scaledown.xyz",
				TimeoutSeconds: 30,
			},
		},
		Data: DataConfig{
			Path: "data/health_records.json",
		},
	}
}

// LoadConfig merges defaults, the JSON config file (if present), a .env
// file in the working directory, and HEALTHTWIN_* environment variables,
// in that order of precedence.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) Validate() error {
	if _, err := memory.ParseBudgetMode(c.Budget.Mode); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Memory.Backend)) {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown memory backend %q (want %s or %s)", c.Memory.Backend, BackendFile, BackendSQLite)
	}
	if c.Memory.MaxBytes < 0 {
		return fmt.Errorf("memory max_bytes must not be negative")
	}
	return nil
}

// BudgetMode returns the parsed mode; Validate guarantees it parses.
func (c *Config) BudgetMode() memory.BudgetMode {
	mode, err := memory.ParseBudgetMode(c.Budget.Mode)
	if err != nil {
		return memory.BudgetBalanced
	}
	return mode
}

// MemoryPath expands ~ in the configured slot path.
func (c *Config) MemoryPath() string {
	return expandHome(c.Memory.Path)
}

func (c *Config) ScaleDownTimeout() time.Duration {
	if c.Providers.ScaleDown.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Providers.ScaleDown.TimeoutSeconds) * time.Second
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
