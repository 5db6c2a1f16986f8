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
	"time"

	"agentbridge/internal/prompts"
)

// claudeArgv runs the CLI non-interactively; permission prompts cannot be
// answered from a tool call. The prompt follows "--" so a leading dash is
// never parsed as a flag.
func claudeArgv(model, prompt string) []string {
	return []string{"--print", "--dangerously-skip-permissions", "--model", model, endOfOptions, prompt}
}

func claudeOperations(opts Options) []*Operation {
	model := modelField("Claude model alias", ClaudeModels, opts.DefaultModels[CLIClaude])
	if model.Default == nil {
		model.Default = "sonnet"
	}
	claudeEnv := map[string]string{"TERM": "xterm-256color", "CLAUDE_CODE_ENTRYPOINT": "mcp"}

	return []*Operation{
		{
			Name:        "claude_quick_query",
			Description: "Ask Claude a question, optionally with supporting context.",
			CLI:         CLIClaude,
			Fields: []Field{
				promptField("query", "The question to ask", true),
				promptField("context", "Optional context for the question", false),
				model,
			},
			Timeout: 300 * time.Second,
			Env:     claudeEnv,
			Build: func(a Args) ([]string, error) {
				prompt := prompts.Question(a.String("query"), a.String("context"))
				return claudeArgv(a.String("model"), prompt), nil
			},
		},
		{
			Name:        "claude_analyze_code",
			Description: "Have Claude analyze a piece of code.",
			CLI:         CLIClaude,
			Fields: []Field{
				promptField("code_content", "The code to analyze", true),
				{Name: "analysis_type", Type: TypeString, Enum: prompts.CodeAnalysisTypes, Default: "comprehensive", Description: "Kind of analysis"},
				model,
			},
			Timeout: 180 * time.Second,
			Env:     claudeEnv,
			Build: func(a Args) ([]string, error) {
				prompt, err := prompts.CodeAnalysis(a.String("analysis_type"), a.String("code_content"))
				if err != nil {
					return nil, err
				}
				return claudeArgv(a.String("model"), prompt), nil
			},
		},
		{
			Name:        "claude_run_task",
			Description: "Run a full agentic task with Claude in a working directory.",
			CLI:         CLIClaude,
			Fields: []Field{
				promptField("prompt", "Task description", true),
				dirField("working_dir", "Directory the task runs in", false),
				model,
				timeoutField(300),
			},
			Timeout:    300 * time.Second,
			TimeoutArg: "timeout",
			DirArg:     "working_dir",
			Env:        claudeEnv,
			Build: func(a Args) ([]string, error) {
				return claudeArgv(a.String("model"), a.String("prompt")), nil
			},
		},
	}
}
