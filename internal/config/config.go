// Package config provides configuration types and defaults for claude-alamode.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"claude-alamode/internal/log"
	"claude-alamode/internal/tracing"
)

// Config holds all configuration options for claude-alamode.
type Config struct {
	Claude  ClaudeConfig  `mapstructure:"claude" yaml:"claude"`
	UI      UIConfig      `mapstructure:"ui" yaml:"ui"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Compact CompactConfig `mapstructure:"compact" yaml:"compact"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// ClaudeConfig holds settings passed through to the claude CLI.
type ClaudeConfig struct {
	// Model selects the model for new turns (sonnet, opus, haiku or a full
	// model name). Empty uses the CLI's default.
	Model string `mapstructure:"model" yaml:"model"`

	// SkipPermissions passes --dangerously-skip-permissions on every turn.
	SkipPermissions bool `mapstructure:"skip_permissions" yaml:"skip_permissions"`

	// AppendSystemPrompt is appended to the CLI's system prompt.
	AppendSystemPrompt string `mapstructure:"append_system_prompt" yaml:"append_system_prompt"`

	// AllowedTools / DisallowedTools are forwarded as repeated flags.
	AllowedTools    []string `mapstructure:"allowed_tools" yaml:"allowed_tools"`
	DisallowedTools []string `mapstructure:"disallowed_tools" yaml:"disallowed_tools"`

	// TurnTimeoutSeconds bounds a single turn. 0 means no timeout.
	TurnTimeoutSeconds int `mapstructure:"turn_timeout_seconds" yaml:"turn_timeout_seconds"`
}

// UIConfig holds user interface configuration options.
type UIConfig struct {
	ShowStatusBar bool   `mapstructure:"show_status_bar" yaml:"show_status_bar"`
	MarkdownStyle string `mapstructure:"markdown_style" yaml:"markdown_style"` // "dark" (default) or "light"
	MouseEnabled  bool   `mapstructure:"mouse_enabled" yaml:"mouse_enabled"`
}

// HistoryConfig holds launch history database configuration.
type HistoryConfig struct {
	// Path is the SQLite file location. Empty uses the default under the
	// config directory.
	Path string `mapstructure:"path" yaml:"path"`

	// Disabled turns off launch recording; --resume then falls back to
	// transcript file mtimes.
	Disabled bool `mapstructure:"disabled" yaml:"disabled"`
}

// CompactConfig holds session compaction thresholds.
type CompactConfig struct {
	KeepLastN     int `mapstructure:"keep_last_n" yaml:"keep_last_n"`
	MinResultSize int `mapstructure:"min_result_size" yaml:"min_result_size"`
	MinInputSize  int `mapstructure:"min_input_size" yaml:"min_input_size"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	Exporter     string  `mapstructure:"exporter" yaml:"exporter"`
	FilePath     string  `mapstructure:"file_path" yaml:"file_path"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// ToTracing converts the config section to the tracing package's Config,
// filling in the default trace file path when unset.
func (t TracingConfig) ToTracing() tracing.Config {
	cfg := tracing.DefaultConfig()
	cfg.Enabled = t.Enabled
	if t.Exporter != "" {
		cfg.Exporter = t.Exporter
	}
	cfg.FilePath = t.FilePath
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultTracesFilePath()
	}
	if t.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = t.OTLPEndpoint
	}
	if t.SampleRate > 0 {
		cfg.SampleRate = t.SampleRate
	}
	return cfg
}

// ConfigDir returns the claude-alamode config directory.
// Returns ~/.config/claude-alamode or empty string if home dir unavailable.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "claude-alamode")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultHistoryDBPath returns the default launch history database location.
func DefaultHistoryDBPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "history.db")
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Claude: ClaudeConfig{
			Model:              "",
			SkipPermissions:    false,
			TurnTimeoutSeconds: 0,
		},
		UI: UIConfig{
			ShowStatusBar: true,
			MarkdownStyle: "dark",
			MouseEnabled:  true,
		},
		History: HistoryConfig{
			Path: DefaultHistoryDBPath(),
		},
		Compact: CompactConfig{
			KeepLastN:     5,
			MinResultSize: 1000,
			MinInputSize:  2000,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Validate checks the configuration for errors.
func Validate(cfg Config) error {
	if cfg.UI.MarkdownStyle != "" && cfg.UI.MarkdownStyle != "dark" && cfg.UI.MarkdownStyle != "light" {
		return fmt.Errorf("ui.markdown_style must be \"dark\" or \"light\", got %q", cfg.UI.MarkdownStyle)
	}
	if cfg.Claude.TurnTimeoutSeconds < 0 {
		return fmt.Errorf("claude.turn_timeout_seconds must not be negative, got %d", cfg.Claude.TurnTimeoutSeconds)
	}
	if err := ValidateCompact(cfg.Compact); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateCompact checks compaction thresholds for errors.
func ValidateCompact(compact CompactConfig) error {
	if compact.KeepLastN < 0 {
		return fmt.Errorf("compact.keep_last_n must not be negative, got %d", compact.KeepLastN)
	}
	if compact.MinResultSize < 0 || compact.MinInputSize < 0 {
		return fmt.Errorf("compact size thresholds must not be negative")
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Endpoint requirements only matter when tracing is on.
	if tracing.Enabled && tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}

	return nil
}

// Marshal renders the configuration as YAML.
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# claude-alamode configuration

# Settings forwarded to the claude CLI
claude:
  # Model for new turns: sonnet, opus, haiku, or a full model name.
  # Empty uses the CLI's default.
  # model: sonnet

  # Pass --dangerously-skip-permissions on every turn (default: false)
  # skip_permissions: true

  # Extra system prompt appended to every turn
  # append_system_prompt: "Prefer small diffs."

  # Tool allow/deny lists forwarded as --allowed-tools / --disallowed-tools
  # allowed_tools: ["Bash(git *)", "Read"]
  # disallowed_tools: ["WebSearch"]

  # Bound a single turn in seconds (0 = no timeout)
  turn_timeout_seconds: 0

# UI settings
ui:
  show_status_bar: true   # Show session/model/cost bar at the bottom
  markdown_style: dark    # Markdown rendering style: "dark" (default) or "light"
  mouse_enabled: true     # Click to select sessions in the picker

# Launch history (powers --resume)
history:
  # path: ~/.config/claude-alamode/history.db
  disabled: false

# Session compaction thresholds ('claude-alamode compact')
compact:
  keep_last_n: 5          # Most recent calls per tool kept regardless of size
  min_result_size: 1000   # Smallest tool result (bytes) eligible for removal
  min_input_size: 2000    # Smallest tool input (bytes) eligible for removal

# Tracing of turn execution
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/claude-alamode/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
