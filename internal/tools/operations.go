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

package tools

import (
	"fmt"
	"regexp"
	"time"

	"agentbridge/internal/paths"
)

// CLI registry names.
const (
	CLIClaude      = "claude"
	CLICodex       = "codex"
	CLIGemini      = "gemini"
	CLIAntigravity = "antigravity"
)

// endOfOptions ends flag parsing in the child CLI; free text after it is
// always positional.
const endOfOptions = "--"

// Maintenance operation names.
const (
	OpCheckVersions = "check_versions"
	OpCheckUpdates  = "check_updates"
	OpUpdateTool    = "update_tool"
)

var (
	modelPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)
	branchPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._/-]*$`)
	shaPattern    = regexp.MustCompile(`^[0-9a-fA-F]{4,64}$`)
	labelPattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 ._-]*$`)
)

// ClaudeModels are the model aliases the claude CLI accepts.
var ClaudeModels = []string{"sonnet", "opus", "haiku"}

// CodexSandboxModes are the codex sandbox policies.
var CodexSandboxModes = []string{"read-only", "workspace-write", "danger-full-access"}

// ManagedTools are the CLIs that can be version-checked and updated.
var ManagedTools = []string{CLIClaude, CLICodex, CLIGemini, CLIAntigravity}

func builtinOperations(opts Options) []*Operation {
	var ops []*Operation
	ops = append(ops, claudeOperations(opts)...)
	ops = append(ops, codexOperations(opts)...)
	ops = append(ops, geminiOperations(opts)...)
	ops = append(ops, antigravityOperations()...)
	ops = append(ops, maintenanceOperations()...)
	return ops
}

func promptField(name, description string, required bool) Field {
	return Field{Name: name, Type: TypeString, Kind: KindPrompt, Required: required, Description: description}
}

func dirField(name, description string, required bool) Field {
	return Field{
		Name:        name,
		Type:        TypeString,
		Kind:        KindPath,
		Required:    required,
		PathOptions: paths.Options{MustBeDir: true},
		Description: description,
	}
}

func fileField(name, description string) Field {
	return Field{
		Name:        name,
		Type:        TypeString,
		Kind:        KindPath,
		Required:    true,
		PathOptions: paths.Options{MustBeFile: true},
		Description: description,
	}
}

func modelField(description string, enum []string, def string) Field {
	f := Field{Name: "model", Type: TypeString, Enum: enum, MaxLen: 64, Description: description}
	if len(enum) == 0 {
		f.Pattern = modelPattern
	}
	if def != "" && (len(enum) == 0 || contains(enum, def)) {
		f.Default = def
	}
	return f
}

// timeoutField carries no Default: an absent argument lets the configured
// per-operation timeout apply before the catalog default.
func timeoutField(def int) Field {
	return Field{
		Name:        "timeout",
		Type:        TypeInteger,
		Range:       &IntRange{Min: 1, Max: 3600},
		Description: fmt.Sprintf("Timeout in seconds (default %d)", def),
	}
}

func maintenanceOperations() []*Operation {
	return []*Operation{
		{
			Name:        OpCheckVersions,
			Description: "Report the installed version of every supported AI CLI.",
			Timeout:     10 * time.Second,
		},
		{
			Name:        OpCheckUpdates,
			Description: "Compare installed AI CLI versions with the latest published releases.",
			Timeout:     30 * time.Second,
		},
		{
			Name:        OpUpdateTool,
			Description: "Update one AI CLI through its package manager.",
			Fields: []Field{
				{Name: "tool_name", Type: TypeString, Required: true, Enum: ManagedTools, Description: "CLI to update"},
				{Name: "force", Type: TypeBoolean, Default: false, Description: "Reinstall even when already up to date"},
			},
			Timeout: 300 * time.Second,
		},
	}
}
