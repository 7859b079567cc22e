package config

// Config represents the complete popgate configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Server  ServerConfig  `yaml:"server"`
	History HistoryConfig `yaml:"history"`
	Policy  PolicyConfig  `yaml:"policy"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	QueueMax  int    `yaml:"queue_max"`
}

// ServerConfig defines HTTP server settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// HistoryConfig defines the pop history log settings.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled"` // nil means enabled
	Path    string `yaml:"path"`
}

// IsEnabled reports whether the history log is on. History defaults to on;
// only an explicit enabled: false turns it off.
func (h HistoryConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// PolicyConfig defines the browser-launch policy as written in YAML.
// The runtime representation lives in the policy package.
type PolicyConfig struct {
	Browser         string   `yaml:"browser"`    // auto|chrome|edge|system
	Mode            string   `yaml:"mode"`       // new-tab|new-window|first-window-then-tabs
	Fullscreen      bool     `yaml:"fullscreen"` // applies to new windows
	WindowSize      string   `yaml:"window_size"`
	Allowlist       []string `yaml:"allowlist,omitempty"`
	DedupeWindowS   *int     `yaml:"dedupe_window_s"`  // 0 = off, nil = default
	SeparateProfile *bool    `yaml:"separate_profile"` // nil = on
	AppWindow       bool     `yaml:"app_window"`
	NoActivate      *bool    `yaml:"no_activate"` // nil = on
	ProfileDir      string   `yaml:"profile_dir,omitempty"`
}

const defaultDedupeWindowS = 10

// DedupeSeconds returns the dedupe window in seconds, applying the default
// when the key is omitted. An explicit 0 disables deduplication.
func (p PolicyConfig) DedupeSeconds() int {
	if p.DedupeWindowS == nil {
		return defaultDedupeWindowS
	}
	return *p.DedupeWindowS
}

// SeparateProfileEnabled reports whether the pop browser gets a dedicated
// user data directory. Defaults to on so pops never hijack the agent's
// main browser session.
func (p PolicyConfig) SeparateProfileEnabled() bool {
	return p.SeparateProfile == nil || *p.SeparateProfile
}

// NoActivateEnabled reports whether focus-steal avoidance is on (Windows
// only at runtime). Defaults to on.
func (p PolicyConfig) NoActivateEnabled() bool {
	return p.NoActivate == nil || *p.NoActivate
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "popgate",
			LogLevel:  "info",
			LogFormat: "text",
			QueueMax:  128,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:5588",
		},
		History: HistoryConfig{
			Enabled: nil,
			Path:    "./data/popgate.db",
		},
		Policy: PolicyConfig{
			Browser:    "auto",
			Mode:       "first-window-then-tabs",
			Fullscreen: false,
			WindowSize: "1400x900",
			AppWindow:  false,
		},
	}
}
