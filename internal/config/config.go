package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"herald/internal/types"
)

type Config struct {
	App          AppConfig                  `toml:"app"`
	Storage      StorageConfig              `toml:"storage"`
	Redis        RedisConfig                `toml:"redis"`
	Browser      BrowserConfig              `toml:"browser"`
	Sources      map[string]ComponentConfig `toml:"sources"`
	Extractors   map[string]ComponentConfig `toml:"extractors"`
	Trackers     map[string]ComponentConfig `toml:"trackers"`
	Stores       map[string]ComponentConfig `toml:"stores"`
	Enrichers    map[string]ComponentConfig `toml:"enrichers"`
	Destinations map[string]ComponentConfig `toml:"destinations"`
	Jobs         map[string]JobConfig       `toml:"jobs"`
}

type AppConfig struct {
	Name            string `toml:"name"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	ListenAddr      string `toml:"listen_addr"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type BrowserConfig struct {
	Headless  *bool  `toml:"headless"`
	UserAgent string `toml:"user_agent"`
}

// ComponentConfig describes one named collaborator. Type selects the
// implementation and Settings carries its options.
type ComponentConfig struct {
	Type     string                 `toml:"type"`
	Settings map[string]interface{} `toml:"settings"`
}

type JobConfig struct {
	Sources       []string `toml:"sources"`
	Extractors    []string `toml:"extractors"`
	Tracker       string   `toml:"tracker"`
	Enrichers     []string `toml:"enrichers"`
	Destinations  []string `toml:"destinations"`
	Cron          string   `toml:"cron"`
	JitterSeconds int      `toml:"jitter_seconds"`
	Skip          bool     `toml:"skip"`
	Testing       bool     `toml:"testing"`
}

func (j JobConfig) Jitter() time.Duration {
	return time.Duration(j.JitterSeconds) * time.Second
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.App.Name == "" {
		config.App.Name = "herald"
	}

	if config.App.LogLevel == "" {
		config.App.LogLevel = "info"
	}

	switch strings.ToLower(config.App.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return types.NewConfigError("app", "", fmt.Sprintf("unknown log_level %q", config.App.LogLevel))
	}

	if config.App.LogFormat == "" {
		config.App.LogFormat = "text"
	}

	if config.App.LogFormat != "text" && config.App.LogFormat != "json" {
		return types.NewConfigError("app", "", fmt.Sprintf("unknown log_format %q", config.App.LogFormat))
	}

	if config.App.ShutdownTimeout == "" {
		config.App.ShutdownTimeout = "30s"
	}

	if _, err := time.ParseDuration(config.App.ShutdownTimeout); err != nil {
		return types.NewConfigError("app", "", fmt.Sprintf("invalid shutdown_timeout: %v", err))
	}

	if config.Storage.Path == "" {
		config.Storage.Path = "./herald.db"
	}

	sections := map[string]map[string]ComponentConfig{
		"sources":      config.Sources,
		"extractors":   config.Extractors,
		"trackers":     config.Trackers,
		"stores":       config.Stores,
		"enrichers":    config.Enrichers,
		"destinations": config.Destinations,
	}
	for section, entries := range sections {
		for name, entry := range entries {
			if entry.Type == "" {
				return types.NewConfigError(section, name, "type is required")
			}
		}
	}

	active := 0
	for _, name := range SortedKeys(config.Jobs) {
		job := config.Jobs[name]
		if job.Skip {
			continue
		}
		active++

		if err := validateJob(config, name, job); err != nil {
			return err
		}
	}

	if active == 0 {
		return types.NewConfigError("jobs", "", "at least one job must not be skipped")
	}

	return nil
}

func validateJob(config *Config, name string, job JobConfig) error {
	if strings.TrimSpace(job.Cron) == "" {
		return types.NewConfigError("jobs", name, "cron is required")
	}

	if job.JitterSeconds < 0 {
		return types.NewConfigError("jobs", name, "jitter_seconds must not be negative")
	}

	if len(job.Sources) == 0 {
		return types.NewConfigError("jobs", name, "at least one source is required")
	}

	if len(job.Extractors) == 0 {
		return types.NewConfigError("jobs", name, "at least one extractor is required")
	}

	if job.Tracker == "" {
		return types.NewConfigError("jobs", name, "tracker is required")
	}

	if len(job.Destinations) == 0 {
		return types.NewConfigError("jobs", name, "at least one destination is required")
	}

	refs := []struct {
		section string
		known   map[string]ComponentConfig
		names   []string
	}{
		{"sources", config.Sources, job.Sources},
		{"extractors", config.Extractors, job.Extractors},
		{"trackers", config.Trackers, []string{job.Tracker}},
		{"enrichers", config.Enrichers, job.Enrichers},
		{"destinations", config.Destinations, job.Destinations},
	}
	for _, ref := range refs {
		for _, target := range ref.names {
			if _, ok := ref.known[target]; !ok {
				return types.NewConfigError("jobs", name, fmt.Sprintf("unknown %s reference %q", strings.TrimSuffix(ref.section, "s"), target))
			}
		}
	}

	return nil
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func GetString(settings map[string]interface{}, key string, defaultValue string) string {
	if val, ok := settings[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

func GetInt(settings map[string]interface{}, key string, defaultValue int) int {
	if val, ok := settings[key]; ok {
		if i, ok := val.(int64); ok {
			return int(i)
		}
		if i, ok := val.(int); ok {
			return i
		}
	}
	return defaultValue
}

func GetBool(settings map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := settings[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultValue
}

func GetStringSlice(settings map[string]interface{}, key string) []string {
	if val, ok := settings[key]; ok {
		if arr, ok := val.([]interface{}); ok {
			result := make([]string, 0, len(arr))
			for _, item := range arr {
				if str, ok := item.(string); ok {
					result = append(result, str)
				}
			}
			return result
		}
		if arr, ok := val.([]string); ok {
			return arr
		}
	}
	return []string{}
}

func GetStringMap(settings map[string]interface{}, key string) map[string]string {
	if val, ok := settings[key]; ok {
		if m, ok := val.(map[string]interface{}); ok {
			result := make(map[string]string)
			for k, v := range m {
				if str, ok := v.(string); ok {
					result[k] = str
				}
			}
			return result
		}
	}
	return map[string]string{}
}

func GetDuration(settings map[string]interface{}, key string, defaultValue time.Duration) time.Duration {
	if val, ok := settings[key]; ok {
		if str, ok := val.(string); ok {
			if d, err := time.ParseDuration(str); err == nil {
				return d
			}
		}
	}
	return defaultValue
}
