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

// Package prompts builds the text handed to the AI CLIs for the analysis
// operations. Preambles live in embedded template files.
package prompts

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed templates/*.txt
var templateFiles embed.FS

// CodeAnalysisTypes are the accepted analysis_type values.
var CodeAnalysisTypes = []string{"comprehensive", "security", "performance", "architecture"}

// CodebaseScopes are the accepted analysis_scope values.
var CodebaseScopes = []string{"structure", "security", "performance", "patterns", "all"}

func load(name string) (string, error) {
	data, err := templateFiles.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("unknown prompt template %q: %w", name, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// Names lists the embedded templates in lexical order.
func Names() ([]string, error) {
	entries, err := fs.ReadDir(templateFiles, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded prompt templates: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".txt"))
	}
	sort.Strings(names)
	return names, nil
}

// Question joins an optional context block with the question.
func Question(query, context string) string {
	if strings.TrimSpace(context) == "" {
		return query
	}
	return "Context:\n" + context + "\n\nQuestion:\n" + query
}

// CodeAnalysis prefixes code with the preamble for kind and fences it.
func CodeAnalysis(kind, code string) (string, error) {
	preamble, err := load("code_" + kind)
	if err != nil {
		return "", err
	}
	return preamble + "\n\n```\n" + code + "\n```", nil
}

// CodebaseAnalysis returns the directory-level prompt for scope.
func CodebaseAnalysis(scope, dir string) (string, error) {
	preamble, err := load("codebase_" + scope)
	if err != nil {
		return "", err
	}
	return preamble + "\n\nDirectory: " + dir, nil
}
