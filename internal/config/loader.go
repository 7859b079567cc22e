package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

var sizePattern = regexp.MustCompile(`^\s*(\d+)\s*[xX]\s*(\d+)\s*$`)

// Load reads and parses configuration from a file.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, "popgate.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but popgate.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Apply environment variable interpolation
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $POPGATE_CONFIG, ~/.config/popgate/popgate.yaml,
// /etc/popgate/popgate.yaml, ./popgate.yaml
func DiscoverConfigPath() (string, error) {
	if p := os.Getenv("POPGATE_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "popgate", "popgate.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return userConfig, nil
		}
	}

	systemConfig := "/etc/popgate/popgate.yaml"
	if _, err := os.Stat(systemConfig); err == nil {
		return systemConfig, nil
	}

	localConfig := "./popgate.yaml"
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	return "", fmt.Errorf("no config found (checked: $POPGATE_CONFIG, ~/.config/popgate, /etc/popgate, ./popgate.yaml)")
}

// ParseWindowSize converts a "WIDTHxHEIGHT" string into its dimensions.
func ParseWindowSize(s string) (width, height int, err error) {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid window size %q: use WIDTHxHEIGHT (e.g., 1280x800)", s)
	}
	width, _ = strconv.Atoi(m[1])
	height, _ = strconv.Atoi(m[2])
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid window size %q: dimensions must be positive", s)
	}
	return width, height, nil
}

// applyDefaults merges default values into cfg where not explicitly set.
func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Service.QueueMax == 0 {
		cfg.Service.QueueMax = defaults.Service.QueueMax
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}

	if cfg.History.Path == "" {
		cfg.History.Path = defaults.History.Path
	}

	if cfg.Policy.Browser == "" {
		cfg.Policy.Browser = defaults.Policy.Browser
	}
	if cfg.Policy.Mode == "" {
		cfg.Policy.Mode = defaults.Policy.Mode
	}
	if cfg.Policy.WindowSize == "" {
		cfg.Policy.WindowSize = defaults.Policy.WindowSize
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[strings.ToLower(cfg.Service.LogFormat)] {
		return fmt.Errorf("service.log_format must be one of: text, json (got %q)", cfg.Service.LogFormat)
	}

	if cfg.Service.QueueMax <= 0 {
		return fmt.Errorf("service.queue_max must be positive (got %d)", cfg.Service.QueueMax)
	}

	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}

	if cfg.History.IsEnabled() && cfg.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}

	switch cfg.Policy.Browser {
	case "auto", "chrome", "edge", "system":
	default:
		return fmt.Errorf("policy.browser must be one of: auto, chrome, edge, system (got %q)", cfg.Policy.Browser)
	}

	switch cfg.Policy.Mode {
	case "new-tab", "new-window", "first-window-then-tabs":
	default:
		return fmt.Errorf("policy.mode must be one of: new-tab, new-window, first-window-then-tabs (got %q)", cfg.Policy.Mode)
	}

	if _, _, err := ParseWindowSize(cfg.Policy.WindowSize); err != nil {
		return fmt.Errorf("policy.window_size: %w", err)
	}

	if cfg.Policy.DedupeWindowS != nil && *cfg.Policy.DedupeWindowS < 0 {
		return fmt.Errorf("policy.dedupe_window_s must be >= 0 (got %d)", *cfg.Policy.DedupeWindowS)
	}

	for i, suffix := range cfg.Policy.Allowlist {
		if strings.TrimSpace(suffix) == "" {
			return fmt.Errorf("policy.allowlist[%d] is empty", i)
		}
	}

	return nil
}
