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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agentbridge/internal/executor"
	"agentbridge/internal/sanitize"
	"agentbridge/internal/tools"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		val, ok := env[key]
		return val, ok
	}
}

func TestLoadConfigMissingFileReturnsDefault(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.MaxBytes != executor.DefaultMaxOutputBytes {
		t.Fatalf("expected default output limit, got %d", cfg.Output.MaxBytes)
	}
	if cfg.Prompt.MaxLength != sanitize.DefaultMaxLength {
		t.Fatalf("expected default prompt length, got %d", cfg.Prompt.MaxLength)
	}
	if cfg.Prompt.FieldLimits["command"] != 5000 {
		t.Fatalf("expected default command limit, got %d", cfg.Prompt.FieldLimits["command"])
	}
}

func TestLoadJSONConfig(t *testing.T) {
	path := writeTempConfig(t, "config.json", `{
		"cli_paths": {"claude": "/opt/claude/bin/claude"},
		"default_models": {"codex": "o4-mini"},
		"forward_env": ["HTTPS_PROXY"],
		"tools": {"deny": ["codex_sandbox_run"]},
		"tool_timeouts": {"per_tool_seconds": {"gemini_codebase_analysis": 600}},
		"output": {"max_bytes": 4096},
		"prompt": {"max_length": 2000, "field_limits": {"query": 500}},
		"paths": {"base_dirs": ["/srv/src"]},
		"audit_file": "audit.db",
		"log_level": "debug"
	}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CLIOverrides()["claude"] != "/opt/claude/bin/claude" {
		t.Fatalf("unexpected cli paths %v", cfg.CLIPaths)
	}
	if cfg.ExecutorConfig().MaxOutputBytes != 4096 {
		t.Fatalf("expected output limit 4096, got %d", cfg.ExecutorConfig().MaxOutputBytes)
	}
	if got := cfg.ToolTimeoutsConfig().PerOperation["gemini_codebase_analysis"]; got != 600*time.Second {
		t.Fatalf("expected 600s timeout, got %s", got)
	}
	sc := cfg.SanitizeConfig()
	if sc.MaxLength != 2000 || sc.FieldLimits["query"] != 500 || sc.FieldLimits["command"] != 5000 {
		t.Fatalf("unexpected sanitize config %+v", sc)
	}
	pc := cfg.PathConfig()
	if len(pc.BaseDirs) != 1 || pc.BaseDirs[0] != "/srv/src" {
		t.Fatalf("unexpected base dirs %v", pc.BaseDirs)
	}
	if cfg.CatalogOptions().DefaultModels["codex"] != "o4-mini" {
		t.Fatalf("expected default model to carry into catalog options")
	}
	if cfg.AuditFile != "audit.db" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected audit/log settings %q %q", cfg.AuditFile, cfg.LogLevel)
	}
}

func TestLoadTOMLConfig(t *testing.T) {
	path := writeTempConfig(t, "agentbridge.toml", `
log_level = "warn"
mask_responses = true

[cli_paths]
gemini = "/opt/homebrew/bin/gemini"

[output]
max_bytes = 2048

[tool_timeouts.per_tool_seconds]
claude_run_task = 900
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" || !cfg.MaskResponses {
		t.Fatalf("unexpected top-level values %q %v", cfg.LogLevel, cfg.MaskResponses)
	}
	if cfg.CLIPaths["gemini"] != "/opt/homebrew/bin/gemini" {
		t.Fatalf("unexpected cli paths %v", cfg.CLIPaths)
	}
	if cfg.Output.MaxBytes != 2048 {
		t.Fatalf("expected output limit 2048, got %d", cfg.Output.MaxBytes)
	}
	if cfg.ToolTimeouts.PerToolSeconds["claude_run_task"] != 900 {
		t.Fatalf("unexpected timeouts %v", cfg.ToolTimeouts.PerToolSeconds)
	}
	if !cfg.DispatchConfig().MaskResponses {
		t.Fatal("expected mask_responses to reach the dispatcher config")
	}
}

func TestConfigValidationRejectsUnknownField(t *testing.T) {
	for _, content := range []string{
		`{"unknown_field":123}`,
		`{"prompt":{"max_lenght":10}}`,
		`{"tools":{"ask":["claude_quick_query"]}}`,
	} {
		path := writeTempConfig(t, "config.json", content)
		if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "unknown configuration field") {
			t.Fatalf("expected unknown field error for %s, got %v", content, err)
		}
	}
}

func TestConfigValidationRejectsInvalidType(t *testing.T) {
	for _, content := range []string{
		`{"output":{"max_bytes":"big"}}`,
		`{"cli_paths":{"claude":7}}`,
		`{"mask_responses":"yes"}`,
		`{"paths":{"base_dirs":"/tmp"}}`,
	} {
		path := writeTempConfig(t, "config.json", content)
		if _, err := LoadConfig(path); err == nil {
			t.Fatalf("expected error for invalid type in %s", content)
		}
	}
}

func TestLegacyFlatKeysMigrate(t *testing.T) {
	path := writeTempConfig(t, "config.json", `{"claude_cli_path":"/usr/bin/claude","codex_default_model":"o3"}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CLIPaths["claude"] != "/usr/bin/claude" || cfg.DefaultModels["codex"] != "o3" {
		t.Fatalf("expected legacy keys to migrate, got %v %v", cfg.CLIPaths, cfg.DefaultModels)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "info"
	err := cfg.applyEnv(mapLookup(map[string]string{
		"AGENTBRIDGE_LOG_LEVEL":                      "debug",
		"AGENTBRIDGE_MAX_OUTPUT_BYTES":               "512",
		"AGENTBRIDGE_BASE_DIRS":                      "/a" + string(os.PathListSeparator) + "/b",
		"AGENTBRIDGE_MASK_RESPONSES":                 "true",
		"AGENTBRIDGE_ENABLE_PROMPT_INJECTION_FILTER": "false",
		"AGENTBRIDGE_CLAUDE_DEFAULT_MODEL":           "opus",
		"CODEX_CLI_PATH":                             "/opt/codex",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Output.MaxBytes != 512 || !cfg.MaskResponses {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if !cfg.Prompt.DisableFilter {
		t.Fatal("expected filter to be disabled")
	}
	if len(cfg.Paths.BaseDirs) != 2 {
		t.Fatalf("expected two base dirs, got %v", cfg.Paths.BaseDirs)
	}
	if cfg.DefaultModels["claude"] != "opus" || cfg.CLIPaths["codex"] != "/opt/codex" {
		t.Fatalf("unexpected per-CLI overrides %v %v", cfg.DefaultModels, cfg.CLIPaths)
	}
}

func TestEnvOverrideRejectsBadNumber(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.applyEnv(mapLookup(map[string]string{"AGENTBRIDGE_MAX_OUTPUT_BYTES": "lots"}))
	if err == nil {
		t.Fatal("expected error for non-numeric override")
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("AGENTBRIDGE_AUDIT_FILE=from-dotenv.db\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("AGENTBRIDGE_AUDIT_FILE") })

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AuditFile != "from-dotenv.db" {
		t.Fatalf("expected audit file from .env, got %q", cfg.AuditFile)
	}
}

func TestMaskConfigReadsSecretValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaskPatterns = []string{`internal-[0-9]+`}
	mc := cfg.MaskConfig(mapLookup(map[string]string{"ANTHROPIC_API_KEY": "abcdefghijklmnop"}))
	if len(mc.Literals) != 1 || mc.Literals[0] != "abcdefghijklmnop" {
		t.Fatalf("unexpected literals %v", mc.Literals)
	}
	if len(mc.ExtraPatterns) != 1 {
		t.Fatalf("unexpected extra patterns %v", mc.ExtraPatterns)
	}
}

func TestPathConfigExtendsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.BlockedPrefixes = []string{"/srv/secret/"}
	pc := cfg.PathConfig()
	if last := pc.BlockedPrefixes[len(pc.BlockedPrefixes)-1]; last != "/srv/secret/" {
		t.Fatalf("expected custom prefix appended, got %v", pc.BlockedPrefixes)
	}
	if pc.BlockedPrefixes[0] != "/etc/" {
		t.Fatalf("expected built-in prefixes kept, got %v", pc.BlockedPrefixes)
	}
}

func TestValidateWarnings(t *testing.T) {
	catalog, err := tools.NewCatalog(tools.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown cli", func(c *Config) { c.CLIPaths["cursor"] = "/usr/bin/cursor" }, "cli_paths.cursor"},
		{"relative cli path", func(c *Config) { c.CLIPaths["claude"] = "bin/claude" }, "cli_paths.claude"},
		{"unknown allow", func(c *Config) { c.Tools.Allow = []string{"nope"} }, "tools.allow"},
		{"unknown deny", func(c *Config) { c.Tools.Deny = []string{"nope"} }, "tools.deny"},
		{"zero output", func(c *Config) { c.Output.MaxBytes = 0 }, "output.max_bytes"},
		{"filter disabled", func(c *Config) { c.Prompt.DisableFilter = true }, "prompt.disable_filter"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"missing base dir", func(c *Config) { c.Paths.BaseDirs = []string{"/definitely/not/here"} }, "paths.base_dirs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			found := false
			for _, w := range cfg.Validate(catalog) {
				if w.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected warning for %s", tt.field)
			}
		})
	}

	if warnings := DefaultConfig().Validate(catalog); len(warnings) != 0 {
		t.Fatalf("expected no warnings for defaults, got %v", warnings)
	}
}
