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

func geminiArgs(model, prompt string) []string {
	var argv []string
	if model != "" {
		argv = append(argv, "-m", model)
	}
	// The joined form keeps a dash-prefixed prompt bound to --prompt.
	return append(argv, "--prompt="+prompt)
}

func geminiOperations(opts Options) []*Operation {
	model := modelField("Gemini model", nil, opts.DefaultModels[CLIGemini])

	return []*Operation{
		{
			Name:        "gemini_quick_query",
			Description: "Ask Gemini a question, optionally with supporting context.",
			CLI:         CLIGemini,
			Fields: []Field{
				promptField("query", "The question to ask", true),
				promptField("context", "Optional context for the question", false),
				model,
			},
			Timeout: 300 * time.Second,
			Build: func(a Args) ([]string, error) {
				return geminiArgs(a.String("model"), prompts.Question(a.String("query"), a.String("context"))), nil
			},
		},
		{
			Name:        "gemini_analyze_code",
			Description: "Have Gemini analyze a piece of code.",
			CLI:         CLIGemini,
			Fields: []Field{
				promptField("code_content", "The code to analyze", true),
				{Name: "analysis_type", Type: TypeString, Enum: prompts.CodeAnalysisTypes, Default: "comprehensive", Description: "Kind of analysis"},
				model,
			},
			Timeout: 180 * time.Second,
			Build: func(a Args) ([]string, error) {
				prompt, err := prompts.CodeAnalysis(a.String("analysis_type"), a.String("code_content"))
				if err != nil {
					return nil, err
				}
				return geminiArgs(a.String("model"), prompt), nil
			},
		},
		{
			Name:        "gemini_codebase_analysis",
			Description: "Have Gemini analyze a whole directory with its large context window.",
			CLI:         CLIGemini,
			Fields: []Field{
				dirField("directory_path", "Directory to analyze", true),
				{Name: "analysis_scope", Type: TypeString, Enum: prompts.CodebaseScopes, Default: "all", Description: "Focus of the analysis"},
			},
			Timeout: 300 * time.Second,
			DirArg:  "directory_path",
			Build: func(a Args) ([]string, error) {
				prompt, err := prompts.CodebaseAnalysis(a.String("analysis_scope"), a.String("directory_path"))
				if err != nil {
					return nil, err
				}
				return geminiArgs("", prompt), nil
			},
		},
	}
}
