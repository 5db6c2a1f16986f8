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
	"strconv"
	"strings"
	"time"

	"agentbridge/internal/paths"
)

func antigravityOperations() []*Operation {
	return []*Operation{
		{
			Name:        "antigravity_open",
			Description: "Open a file in the editor, optionally at a line and column.",
			CLI:         CLIAntigravity,
			Fields: []Field{
				{
					Name:        "file_path",
					Type:        TypeString,
					Kind:        KindPath,
					Required:    true,
					PathOptions: paths.Options{MustExist: true},
					Description: "File or directory to open",
				},
				{Name: "goto_line", Type: TypeInteger, Range: &IntRange{Min: 1, Max: 10_000_000}, Description: "Line to jump to"},
				{Name: "goto_column", Type: TypeInteger, Range: &IntRange{Min: 1, Max: 100_000}, Description: "Column to jump to"},
				{Name: "new_window", Type: TypeBoolean, Default: false, Description: "Force a new window"},
				{Name: "reuse_window", Type: TypeBoolean, Default: false, Description: "Reuse the last active window"},
			},
			Rules: ChainValidation(
				RequireWith("goto_column", "goto_line"),
				ExclusiveFlags("new_window", "reuse_window"),
			),
			Timeout: 30 * time.Second,
			Build: func(a Args) ([]string, error) {
				var argv []string
				if a.Bool("new_window") {
					argv = append(argv, "--new-window")
				} else if a.Bool("reuse_window") {
					argv = append(argv, "--reuse-window")
				}
				target := a.String("file_path")
				if a.Has("goto_line") {
					location := target + ":" + strconv.Itoa(a.Int("goto_line"))
					if a.Has("goto_column") {
						location += ":" + strconv.Itoa(a.Int("goto_column"))
					}
					return append(argv, "--goto", location), nil
				}
				return append(argv, target), nil
			},
		},
		{
			Name:        "antigravity_diff",
			Description: "Open a side-by-side diff of two files in the editor.",
			CLI:         CLIAntigravity,
			Fields: []Field{
				fileField("file1", "Left-hand file"),
				fileField("file2", "Right-hand file"),
			},
			Timeout: 30 * time.Second,
			Build: func(a Args) ([]string, error) {
				return []string{"--diff", a.String("file1"), a.String("file2")}, nil
			},
		},
		{
			Name:        "antigravity_list_extensions",
			Description: "List installed editor extensions.",
			CLI:         CLIAntigravity,
			Fields: []Field{
				{Name: "show_versions", Type: TypeBoolean, Default: false, Description: "Include extension versions"},
				{Name: "category", Type: TypeString, MaxLen: 64, Pattern: labelPattern, Description: "Filter by extension category"},
			},
			Timeout: 60 * time.Second,
			Build: func(a Args) ([]string, error) {
				argv := []string{"--list-extensions"}
				if a.Bool("show_versions") {
					argv = append(argv, "--show-versions")
				}
				if category := a.String("category"); category != "" {
					argv = append(argv, "--category", category)
				}
				return argv, nil
			},
			Parse: ParseExtensionList,
		},
		{
			Name:        "antigravity_add_folder",
			Description: "Add a folder to the last active editor window.",
			CLI:         CLIAntigravity,
			Fields: []Field{
				dirField("folder_path", "Folder to add to the workspace", true),
			},
			Timeout: 30 * time.Second,
			Build: func(a Args) ([]string, error) {
				return []string{"--add", a.String("folder_path")}, nil
			},
		},
		{
			Name:        "antigravity_status",
			Description: "Print editor process usage and diagnostics.",
			CLI:         CLIAntigravity,
			Timeout:     60 * time.Second,
			Build: func(Args) ([]string, error) {
				return []string{"--status"}, nil
			},
		},
	}
}

// Extension is one line of --list-extensions output.
type Extension struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
}

// ParseExtensionList reads "publisher.name" or "publisher.name@version" lines.
func ParseExtensionList(stdout string) (map[string]any, error) {
	extensions := []Extension{}
	for _, line := range strings.Split(CleanOutput(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, version, _ := strings.Cut(line, "@")
		extensions = append(extensions, Extension{ID: id, Version: version})
	}
	return map[string]any{
		"extensions": extensions,
		"count":      len(extensions),
	}, nil
}
