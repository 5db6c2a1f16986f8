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
	"sort"
)

// SchemaJSON returns the JSON schema for the config file.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns a minimal example config derived from the schema.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

func normalizeConfigJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	migrateLegacyConfig(raw)
	if err := validateConfigMap(raw, ""); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// migrateLegacyConfig accepts the flat per-CLI keys of older configs
// (claude_cli_path, codex_default_model, ...) and moves them into the
// cli_paths and default_models maps.
func migrateLegacyConfig(raw map[string]interface{}) {
	for _, name := range []string{"claude", "codex", "gemini", "antigravity"} {
		moveInto(raw, name+"_cli_path", "cli_paths", name)
		moveInto(raw, name+"_default_model", "default_models", name)
	}
}

func moveInto(raw map[string]interface{}, legacyKey, section, name string) {
	val, ok := raw[legacyKey]
	if !ok {
		return
	}
	target, ok := raw[section].(map[string]interface{})
	if !ok {
		if _, exists := raw[section]; exists {
			return
		}
		target = map[string]interface{}{}
		raw[section] = target
	}
	if _, exists := target[name]; !exists {
		target[name] = val
	}
	delete(raw, legacyKey)
}

func validateConfigMap(raw map[string]interface{}, prefix string) error {
	allowed := map[string]func(interface{}) error{
		"cli_paths":      func(v interface{}) error { return validateStringMap(v, prefix+"cli_paths") },
		"default_models": func(v interface{}) error { return validateStringMap(v, prefix+"default_models") },
		"forward_env":    func(v interface{}) error { return validateStringArray(v, prefix+"forward_env") },
		"secret_env":     func(v interface{}) error { return validateStringArray(v, prefix+"secret_env") },
		"mask_patterns":  func(v interface{}) error { return validateStringArray(v, prefix+"mask_patterns") },
		"mask_responses": func(v interface{}) error { return validateBool(v, prefix+"mask_responses") },
		"tools": func(v interface{}) error {
			return validateToolsConfig(v, prefix+"tools.")
		},
		"tool_timeouts": func(v interface{}) error {
			return validateToolTimeouts(v, prefix+"tool_timeouts.")
		},
		"output": func(v interface{}) error {
			return validateOutputLimits(v, prefix+"output.")
		},
		"prompt": func(v interface{}) error {
			return validatePromptSettings(v, prefix+"prompt.")
		},
		"paths": func(v interface{}) error {
			return validatePathSettings(v, prefix+"paths.")
		},
		"audit_file": func(v interface{}) error { return validateString(v, prefix+"audit_file") },
		"log_level":  func(v interface{}) error { return validateString(v, prefix+"log_level") },
		"log_file":   func(v interface{}) error { return validateString(v, prefix+"log_file") },
		"command_history_file": func(v interface{}) error {
			return validateString(v, prefix+"command_history_file")
		},
		"theme_file": func(v interface{}) error { return validateString(v, prefix+"theme_file") },
	}
	return validateSection(raw, allowed, prefix)
}

func validateToolsConfig(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]func(interface{}) error{
		"allow": func(v interface{}) error { return validateStringArray(v, prefix+"allow") },
		"deny":  func(v interface{}) error { return validateStringArray(v, prefix+"deny") },
	}
	return validateSection(section, allowed, prefix)
}

func validateToolTimeouts(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]func(interface{}) error{
		"default_seconds":  func(v interface{}) error { return validateNumber(v, prefix+"default_seconds") },
		"per_tool_seconds": func(v interface{}) error { return validateStringNumberMap(v, prefix+"per_tool_seconds") },
	}
	return validateSection(section, allowed, prefix)
}

func validateOutputLimits(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]func(interface{}) error{
		"max_bytes": func(v interface{}) error { return validateNumber(v, prefix+"max_bytes") },
	}
	return validateSection(section, allowed, prefix)
}

func validatePromptSettings(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]func(interface{}) error{
		"max_length":     func(v interface{}) error { return validateNumber(v, prefix+"max_length") },
		"field_limits":   func(v interface{}) error { return validateStringNumberMap(v, prefix+"field_limits") },
		"disable_filter": func(v interface{}) error { return validateBool(v, prefix+"disable_filter") },
	}
	return validateSection(section, allowed, prefix)
}

func validatePathSettings(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]func(interface{}) error{
		"base_dirs":        func(v interface{}) error { return validateStringArray(v, prefix+"base_dirs") },
		"blocked_prefixes": func(v interface{}) error { return validateStringArray(v, prefix+"blocked_prefixes") },
		"sensitive_names":  func(v interface{}) error { return validateStringArray(v, prefix+"sensitive_names") },
	}
	return validateSection(section, allowed, prefix)
}

func validateSection(section map[string]interface{}, allowed map[string]func(interface{}) error, prefix string) error {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		validator, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := validator(section[key]); err != nil {
			return err
		}
	}
	return nil
}

func trimDot(prefix string) string {
	if n := len(prefix); n > 0 && prefix[n-1] == '.' {
		return prefix[:n-1]
	}
	return prefix
}

func validateString(value interface{}, name string) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%s must be a string", name)
	}
	return nil
}

func validateNumber(value interface{}, name string) error {
	if _, ok := value.(float64); !ok {
		return fmt.Errorf("%s must be a number", name)
	}
	return nil
}

func validateBool(value interface{}, name string) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%s must be a boolean", name)
	}
	return nil
}

func validateStringArray(value interface{}, name string) error {
	list, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("%s must be an array of strings", name)
	}
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return fmt.Errorf("%s must be an array of strings", name)
		}
	}
	return nil
}

func validateStringMap(value interface{}, name string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object of string values", name)
	}
	for key, entry := range section {
		if _, ok := entry.(string); !ok {
			return fmt.Errorf("%s.%s must be a string", name, key)
		}
	}
	return nil
}

func validateStringNumberMap(value interface{}, name string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object of number values", name)
	}
	for key, entry := range section {
		if _, ok := entry.(float64); !ok {
			return fmt.Errorf("%s.%s must be a number", name, key)
		}
	}
	return nil
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Agentbridge Config",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "cli_paths": { "type": "object", "additionalProperties": { "type": "string" } },
    "default_models": { "type": "object", "additionalProperties": { "type": "string" } },
    "forward_env": { "type": "array", "items": { "type": "string" } },
    "secret_env": { "type": "array", "items": { "type": "string" } },
    "mask_patterns": { "type": "array", "items": { "type": "string" } },
    "mask_responses": { "type": "boolean" },
    "tools": {
      "type": "object",
      "properties": {
        "allow": { "type": "array", "items": { "type": "string" } },
        "deny": { "type": "array", "items": { "type": "string" } }
      }
    },
    "tool_timeouts": {
      "type": "object",
      "properties": {
        "default_seconds": { "type": "number" },
        "per_tool_seconds": { "type": "object", "additionalProperties": { "type": "number" } }
      }
    },
    "output": {
      "type": "object",
      "properties": {
        "max_bytes": { "type": "number" }
      }
    },
    "prompt": {
      "type": "object",
      "properties": {
        "max_length": { "type": "number" },
        "field_limits": { "type": "object", "additionalProperties": { "type": "number" } },
        "disable_filter": { "type": "boolean" }
      }
    },
    "paths": {
      "type": "object",
      "properties": {
        "base_dirs": { "type": "array", "items": { "type": "string" } },
        "blocked_prefixes": { "type": "array", "items": { "type": "string" } },
        "sensitive_names": { "type": "array", "items": { "type": "string" } }
      }
    },
    "audit_file": { "type": "string" },
    "log_level": { "type": "string" },
    "log_file": { "type": "string" },
    "command_history_file": { "type": "string" },
    "theme_file": { "type": "string" }
  }
}`

const exampleConfigJSON = `{
  "cli_paths": {
    "claude": "/usr/local/bin/claude"
  },
  "default_models": {
    "claude": "sonnet",
    "codex": "o4-mini"
  },
  "tools": {
    "deny": ["codex_sandbox_run"]
  },
  "tool_timeouts": {
    "per_tool_seconds": {
      "gemini_codebase_analysis": 600
    }
  },
  "paths": {
    "base_dirs": ["~/src"]
  },
  "audit_file": "agentbridge-audit.db",
  "log_level": "info"
}`
