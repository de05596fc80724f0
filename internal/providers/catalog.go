// Package providers holds the fixed AI provider catalog.
//
// The enumeration order is load-bearing: the chat client reselects the first
// available provider in this order when its current selection loses its
// credential, so Order must never be reshuffled.
package providers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	OpenAI  = "openai"
	Gemini  = "gemini"
	Claude  = "claude"
	Mistral = "mistral"

	defaultTimeout = 30 * time.Second
)

// Order is the canonical provider enumeration.
var Order = []string{OpenAI, Gemini, Claude, Mistral}

// Config describes one provider. Models[0] is the default model.
type Config struct {
	ID      string        `yaml:"id"`
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"base_url"`
	Models  []string      `yaml:"models"`
	Timeout time.Duration `yaml:"-"`
}

type fileConfig struct {
	Providers []struct {
		ID      string   `yaml:"id"`
		BaseURL string   `yaml:"base_url"`
		Models  []string `yaml:"models"`
		Timeout string   `yaml:"timeout"`
	} `yaml:"providers"`
}

var (
	stateMu     sync.RWMutex
	initialized bool
	configByID  map[string]Config
)

// Init loads the catalog, applying overrides from an optional YAML file.
// Unknown provider IDs in the file are ignored; the enumeration is fixed.
func Init() error {
	configs := defaultConfigs()
	loadErr := applyFileOverrides(configs)

	stateMu.Lock()
	defer stateMu.Unlock()
	configByID = configs
	initialized = true
	return loadErr
}

func ensureInitialized() {
	stateMu.RLock()
	ok := initialized
	stateMu.RUnlock()
	if ok {
		return
	}
	_ = Init()
}

// ResetForTest resets in-memory state so tests can force reload.
func ResetForTest() {
	stateMu.Lock()
	defer stateMu.Unlock()
	initialized = false
	configByID = nil
}

// Get returns provider metadata by ID.
func Get(id string) (Config, bool) {
	ensureInitialized()

	stateMu.RLock()
	defer stateMu.RUnlock()

	cfg, ok := configByID[normalizeID(id)]
	if !ok {
		return Config{}, false
	}
	cfg.Models = append([]string(nil), cfg.Models...)
	return cfg, true
}

// IsKnown reports whether id names a catalog provider.
func IsKnown(id string) bool {
	_, ok := Get(id)
	return ok
}

// DefaultModel returns the default model for a provider.
func DefaultModel(id string) string {
	cfg, ok := Get(id)
	if !ok || len(cfg.Models) == 0 {
		return ""
	}
	return cfg.Models[0]
}

// DisplayName returns the human-facing provider name ("openai" → "OpenAI").
func DisplayName(id string) string {
	cfg, ok := Get(id)
	if !ok {
		return id
	}
	return cfg.Name
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func applyFileOverrides(configs map[string]Config) error {
	path := resolveConfigPath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read provider config file %q: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse provider config file %q: %w", path, err)
	}

	for _, override := range cfg.Providers {
		id := normalizeID(override.ID)
		base, ok := configs[id]
		if !ok {
			continue
		}
		if v := strings.TrimSpace(override.BaseURL); v != "" {
			base.BaseURL = v
		}
		if len(override.Models) > 0 {
			base.Models = append([]string(nil), override.Models...)
		}
		if raw := strings.TrimSpace(override.Timeout); raw != "" {
			if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
				base.Timeout = parsed
			}
		}
		configs[id] = base
	}
	return nil
}

func resolveConfigPath() string {
	if explicit := strings.TrimSpace(os.Getenv("MEDASSIST_PROVIDERS_FILE")); explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	candidates := []string{
		"config/providers.yaml",
		"/etc/medassist/providers.yaml",
	}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, ".config", "medassist", "providers.yaml"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func defaultConfigs() map[string]Config {
	return map[string]Config{
		OpenAI: {
			ID:      OpenAI,
			Name:    "OpenAI",
			BaseURL: "https://api.openai.com/v1",
			Models:  []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo-preview"},
			Timeout: defaultTimeout,
		},
		Gemini: {
			ID:      Gemini,
			Name:    "Google Gemini",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Models:  []string{"gemini-2.0-flash", "gemini-2.0", "gemini-pro"},
			Timeout: defaultTimeout,
		},
		// Claude models ordered lowest-cost first
		Claude: {
			ID:      Claude,
			Name:    "Anthropic Claude",
			BaseURL: "https://api.anthropic.com/v1",
			Models:  []string{"claude-3-haiku-20240307", "claude-3-5-sonnet-latest", "claude-3-opus-20240229"},
			Timeout: defaultTimeout,
		},
		Mistral: {
			ID:      Mistral,
			Name:    "Mistral AI",
			BaseURL: "https://api.mistral.ai/v1",
			Models:  []string{"mistral-small-latest", "mistral-large-latest", "open-mistral-7b"},
			Timeout: defaultTimeout,
		},
	}
}
