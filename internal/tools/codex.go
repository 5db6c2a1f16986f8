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

import "time"

func codexOperations(opts Options) []*Operation {
	return []*Operation{
		{
			Name:        "codex_exec",
			Description: "Run a non-interactive Codex task.",
			CLI:         CLICodex,
			Fields: []Field{
				promptField("prompt", "Task description", true),
				dirField("working_dir", "Directory the task runs in", false),
				modelField("Codex model", nil, opts.DefaultModels[CLICodex]),
				{Name: "sandbox", Type: TypeString, Enum: CodexSandboxModes, Default: "read-only", Description: "Sandbox policy"},
			},
			Timeout: 300 * time.Second,
			DirArg:  "working_dir",
			Build: func(a Args) ([]string, error) {
				argv := []string{"exec"}
				if m := a.String("model"); m != "" {
					argv = append(argv, "--model", m)
				}
				argv = append(argv, "--sandbox", a.String("sandbox"))
				if dir := a.String("working_dir"); dir != "" {
					argv = append(argv, "--cd", dir)
				}
				return append(argv, endOfOptions, a.String("prompt")), nil
			},
		},
		{
			Name:        "codex_review",
			Description: "Run a Codex code review of uncommitted changes, a base branch or a commit.",
			CLI:         CLICodex,
			Fields: []Field{
				dirField("target_path", "Repository to review", false),
				{Name: "review_type", Type: TypeString, Enum: []string{"uncommitted", "base", "commit"}, Default: "uncommitted", Description: "What to review"},
				{Name: "base_branch", Type: TypeString, MaxLen: 255, Pattern: branchPattern, Description: "Branch to diff against when review_type is base"},
				{Name: "commit_sha", Type: TypeString, Pattern: shaPattern, Description: "Commit to review when review_type is commit"},
				promptField("custom_instructions", "Extra review instructions", false),
			},
			Rules: ChainValidation(
				RequireWhen("review_type", "base", "base_branch"),
				RequireWhen("review_type", "commit", "commit_sha"),
			),
			Timeout: 180 * time.Second,
			DirArg:  "target_path",
			Build: func(a Args) ([]string, error) {
				argv := []string{"review"}
				switch a.String("review_type") {
				case "base":
					argv = append(argv, "--base", a.String("base_branch"))
				case "commit":
					argv = append(argv, "--commit", a.String("commit_sha"))
				default:
					argv = append(argv, "--uncommitted")
				}
				if instructions := a.String("custom_instructions"); instructions != "" {
					argv = append(argv, endOfOptions, instructions)
				}
				return argv, nil
			},
		},
		{
			// The command string is interpreted by a shell inside the codex
			// sandbox, never by this process.
			Name:        "codex_sandbox_run",
			Description: "Run a shell command inside the Codex sandbox.",
			CLI:         CLICodex,
			Fields: []Field{
				promptField("command", "Command line to run in the sandbox", true),
				dirField("working_dir", "Directory the command runs in", false),
				timeoutField(60),
			},
			Timeout:    60 * time.Second,
			TimeoutArg: "timeout",
			DirArg:     "working_dir",
			Build: func(a Args) ([]string, error) {
				argv := []string{"sandbox"}
				if dir := a.String("working_dir"); dir != "" {
					argv = append(argv, "--cd", dir)
				}
				return append(argv, endOfOptions, "sh", "-c", a.String("command")), nil
			},
		},
	}
}
