// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"agentbridge/internal/clis"
	"agentbridge/internal/dispatch"
	"agentbridge/internal/executor"
	"agentbridge/internal/mask"
	"agentbridge/internal/paths"
	"agentbridge/internal/sanitize"
	"agentbridge/internal/tools"
)

// EnvPrefix prefixes every environment override except <NAME>_CLI_PATH.
const EnvPrefix = "AGENTBRIDGE_"

// Config represents the application configuration
type Config struct {
	CLIPaths           map[string]string `json:"cli_paths,omitempty"`
	DefaultModels      map[string]string `json:"default_models,omitempty"`
	ForwardEnv         []string          `json:"forward_env,omitempty"`
	SecretEnv          []string          `json:"secret_env,omitempty"`
	MaskPatterns       []string          `json:"mask_patterns,omitempty"`
	MaskResponses      bool              `json:"mask_responses,omitempty"`
	Tools              ToolSettings      `json:"tools,omitempty"`
	ToolTimeouts       ToolTimeouts      `json:"tool_timeouts,omitempty"`
	Output             OutputLimits      `json:"output,omitempty"`
	Prompt             PromptSettings    `json:"prompt,omitempty"`
	Paths              PathSettings      `json:"paths,omitempty"`
	AuditFile          string            `json:"audit_file,omitempty"`
	LogLevel           string            `json:"log_level,omitempty"`
	LogFile            string            `json:"log_file,omitempty"`
	CommandHistoryFile string            `json:"command_history_file,omitempty"`
	ThemeFile          string            `json:"theme_file,omitempty"`
}

// ToolSettings describes operation allow/deny lists. An empty allow list
// enables every operation.
type ToolSettings struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// ToolTimeouts configures execution timeouts.
type ToolTimeouts struct {
	DefaultSeconds int            `json:"default_seconds,omitempty"`
	PerToolSeconds map[string]int `json:"per_tool_seconds,omitempty"`
}

// OutputLimits bounds captured child output.
type OutputLimits struct {
	MaxBytes int `json:"max_bytes,omitempty"`
}

// PromptSettings configures the prompt sanitizer.
type PromptSettings struct {
	MaxLength     int            `json:"max_length,omitempty"`
	FieldLimits   map[string]int `json:"field_limits,omitempty"`
	DisableFilter bool           `json:"disable_filter,omitempty"`
}

// PathSettings configures path validation. Blocked prefixes and sensitive
// names extend the built-in lists; they never replace them.
type PathSettings struct {
	BaseDirs        []string `json:"base_dirs,omitempty"`
	BlockedPrefixes []string `json:"blocked_prefixes,omitempty"`
	SensitiveNames  []string `json:"sensitive_names,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	sanitizeDefaults := sanitize.DefaultConfig()
	fieldLimits := make(map[string]int, len(sanitizeDefaults.FieldLimits))
	for k, v := range sanitizeDefaults.FieldLimits {
		fieldLimits[k] = v
	}
	return &Config{
		CLIPaths:      map[string]string{},
		DefaultModels: map[string]string{},
		SecretEnv:     append([]string{}, mask.DefaultSecretEnvKeys...),
		Output:        OutputLimits{MaxBytes: executor.DefaultMaxOutputBytes},
		Prompt: PromptSettings{
			MaxLength:   sanitize.DefaultMaxLength,
			FieldLimits: fieldLimits,
		},
		LogLevel:           "info",
		CommandHistoryFile: ".agentbridge_history",
	}
}

// LoadConfig loads configuration from a JSON or TOML file, then applies
// .env and environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			if strings.EqualFold(filepath.Ext(path), ".toml") {
				data, err = tomlToJSON(data)
				if err != nil {
					return nil, fmt.Errorf("parse %s: %w", path, err)
				}
			}
			normalized, err := normalizeConfigJSON(data)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			if err := json.Unmarshal(normalized, config); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// Variables already set in the environment win over .env entries.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

func tomlToJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if val, ok := lookup(EnvPrefix + key); ok && val != "" {
			*dst = val
		}
	}
	num := func(key string, dst *int) error {
		val, ok := lookup(EnvPrefix + key)
		if !ok || val == "" {
			return nil
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s%s must be an integer", EnvPrefix, key)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		val, ok := lookup(EnvPrefix + key)
		if !ok || val == "" {
			return nil
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%s%s must be a boolean", EnvPrefix, key)
		}
		*dst = b
		return nil
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	str("AUDIT_FILE", &c.AuditFile)
	str("THEME_FILE", &c.ThemeFile)
	if val, ok := lookup(EnvPrefix + "BASE_DIRS"); ok && val != "" {
		c.Paths.BaseDirs = filepath.SplitList(val)
	}
	if err := num("MAX_OUTPUT_BYTES", &c.Output.MaxBytes); err != nil {
		return err
	}
	if err := num("MAX_PROMPT_LENGTH", &c.Prompt.MaxLength); err != nil {
		return err
	}
	if err := num("DEFAULT_TIMEOUT", &c.ToolTimeouts.DefaultSeconds); err != nil {
		return err
	}
	if err := flag("MASK_RESPONSES", &c.MaskResponses); err != nil {
		return err
	}
	enabled := !c.Prompt.DisableFilter
	if err := flag("ENABLE_PROMPT_INJECTION_FILTER", &enabled); err != nil {
		return err
	}
	c.Prompt.DisableFilter = !enabled

	for _, cli := range clis.DefaultCLIs {
		if val, ok := lookup(clis.OverrideEnvKey(cli.Name)); ok && val != "" {
			if c.CLIPaths == nil {
				c.CLIPaths = map[string]string{}
			}
			c.CLIPaths[cli.Name] = val
		}
		if val, ok := lookup(EnvPrefix + strings.ToUpper(cli.Name) + "_DEFAULT_MODEL"); ok && val != "" {
			if c.DefaultModels == nil {
				c.DefaultModels = map[string]string{}
			}
			c.DefaultModels[cli.Name] = val
		}
	}
	return nil
}

// PathConfig returns the path validator policy.
func (c *Config) PathConfig() paths.Config {
	cfg := paths.DefaultConfig()
	cfg.BlockedPrefixes = append(cfg.BlockedPrefixes, c.Paths.BlockedPrefixes...)
	cfg.SensitiveNames = append(cfg.SensitiveNames, c.Paths.SensitiveNames...)
	for _, dir := range c.Paths.BaseDirs {
		cfg.BaseDirs = append(cfg.BaseDirs, expandHome(dir))
	}
	return cfg
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// SanitizeConfig returns the prompt sanitizer configuration.
func (c *Config) SanitizeConfig() sanitize.Config {
	cfg := sanitize.DefaultConfig()
	if c.Prompt.MaxLength > 0 {
		cfg.MaxLength = c.Prompt.MaxLength
	}
	for field, limit := range c.Prompt.FieldLimits {
		if limit > 0 {
			cfg.FieldLimits[field] = limit
		}
	}
	cfg.DisableFilter = c.Prompt.DisableFilter
	return cfg
}

// ExecutorConfig returns the process execution policy.
func (c *Config) ExecutorConfig() executor.Config {
	return executor.Config{
		MaxOutputBytes: c.Output.MaxBytes,
		ForwardEnv:     append([]string{}, c.ForwardEnv...),
	}
}

// MaskConfig returns the masker configuration, reading secret values
// from the environment through lookup.
func (c *Config) MaskConfig(lookup func(string) (string, bool)) mask.Config {
	return mask.Config{
		Literals:      mask.LiteralsFromEnv(c.SecretEnv, lookup),
		ExtraPatterns: append([]string{}, c.MaskPatterns...),
	}
}

// CatalogOptions returns the operation catalog parameters.
func (c *Config) CatalogOptions() tools.Options {
	models := make(map[string]string, len(c.DefaultModels))
	for name, model := range c.DefaultModels {
		models[name] = model
	}
	return tools.Options{DefaultModels: models, Allow: c.Tools.Allow, Deny: c.Tools.Deny}
}

// ToolTimeoutsConfig returns timeout configuration for tools.
func (c *Config) ToolTimeoutsConfig() tools.TimeoutConfig {
	perTool := make(map[string]time.Duration, len(c.ToolTimeouts.PerToolSeconds))
	for name, seconds := range c.ToolTimeouts.PerToolSeconds {
		if seconds <= 0 {
			continue
		}
		perTool[name] = time.Duration(seconds) * time.Second
	}

	var defaultTimeout time.Duration
	if c.ToolTimeouts.DefaultSeconds > 0 {
		defaultTimeout = time.Duration(c.ToolTimeouts.DefaultSeconds) * time.Second
	}

	return tools.TimeoutConfig{
		Default:      defaultTimeout,
		PerOperation: perTool,
	}
}

// DispatchConfig returns dispatcher behavior settings.
func (c *Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		Timeouts:      c.ToolTimeoutsConfig(),
		MaskResponses: c.MaskResponses,
	}
}

// CLIOverrides returns explicit executable paths keyed by CLI name.
func (c *Config) CLIOverrides() map[string]string {
	out := make(map[string]string, len(c.CLIPaths))
	for name, path := range c.CLIPaths {
		out[strings.ToLower(name)] = path
	}
	return out
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(catalog *tools.Catalog) []ValidationWarning {
	var warnings []ValidationWarning

	known := map[string]bool{}
	for _, cli := range clis.DefaultCLIs {
		known[cli.Name] = true
	}
	for name, path := range c.CLIPaths {
		if !known[strings.ToLower(name)] {
			warnings = append(warnings, ValidationWarning{
				Field:   "cli_paths." + name,
				Message: fmt.Sprintf("%q is not a known CLI", name),
			})
			continue
		}
		if !filepath.IsAbs(path) {
			warnings = append(warnings, ValidationWarning{
				Field:   "cli_paths." + name,
				Message: fmt.Sprintf("path %q is not absolute", path),
			})
		}
	}
	for name := range c.DefaultModels {
		if !known[strings.ToLower(name)] {
			warnings = append(warnings, ValidationWarning{
				Field:   "default_models." + name,
				Message: fmt.Sprintf("%q is not a known CLI", name),
			})
		}
	}

	// Validate tool lists against the catalog
	if catalog != nil {
		registered := make(map[string]bool)
		for _, name := range catalog.AllNames() {
			registered[name] = true
		}
		for _, name := range c.Tools.Allow {
			if !registered[name] {
				warnings = append(warnings, ValidationWarning{
					Field:   "tools.allow",
					Message: fmt.Sprintf("tool %q in allow list is not registered", name),
				})
			}
		}
		for _, name := range c.Tools.Deny {
			if !registered[name] {
				warnings = append(warnings, ValidationWarning{
					Field:   "tools.deny",
					Message: fmt.Sprintf("tool %q in deny list is not registered", name),
				})
			}
		}
		for name := range c.ToolTimeouts.PerToolSeconds {
			if !registered[name] {
				warnings = append(warnings, ValidationWarning{
					Field:   "tool_timeouts.per_tool_seconds",
					Message: fmt.Sprintf("tool %q is not registered", name),
				})
			}
		}
	}

	for name, seconds := range c.ToolTimeouts.PerToolSeconds {
		if seconds <= 0 {
			warnings = append(warnings, ValidationWarning{
				Field:   "tool_timeouts.per_tool_seconds." + name,
				Message: fmt.Sprintf("timeout %d should be positive, using default", seconds),
			})
		}
	}

	if c.Output.MaxBytes <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "output.max_bytes",
			Message: fmt.Sprintf("max_bytes %d should be positive, using default", c.Output.MaxBytes),
		})
	}

	if c.Prompt.DisableFilter {
		warnings = append(warnings, ValidationWarning{
			Field:   "prompt.disable_filter",
			Message: "prompt injection filter is disabled",
		})
	}

	for _, dir := range c.Paths.BaseDirs {
		if info, err := os.Stat(expandHome(dir)); err != nil || !info.IsDir() {
			warnings = append(warnings, ValidationWarning{
				Field:   "paths.base_dirs",
				Message: fmt.Sprintf("base directory %q does not exist", dir),
			})
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		warnings = append(warnings, ValidationWarning{
			Field:   "log_level",
			Message: fmt.Sprintf("unknown log level %q, using info", c.LogLevel),
		})
	}

	return warnings
}
