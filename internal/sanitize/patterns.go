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

package sanitize

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultPatternsYAML []byte

// Severity says whether a finding stops execution.
type Severity string

const (
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
)

// Pattern is one entry of the injection table.
type Pattern struct {
	ID       string   `yaml:"id"`
	Category string   `yaml:"category"`
	Severity Severity `yaml:"severity"`
	Pattern  string   `yaml:"pattern"`

	re *regexp.Regexp
}

type patternFile struct {
	Patterns []Pattern `yaml:"patterns"`
}

// ParsePatterns decodes and compiles a pattern table. Patterns are always
// matched case-insensitively.
func ParsePatterns(data []byte) ([]Pattern, error) {
	var file patternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pattern table: %w", err)
	}
	seen := make(map[string]bool, len(file.Patterns))
	out := make([]Pattern, 0, len(file.Patterns))
	for i, p := range file.Patterns {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("pattern %d has no id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate pattern id %q", p.ID)
		}
		seen[p.ID] = true
		switch p.Severity {
		case SeverityBlock, SeverityWarn:
		case "":
			p.Severity = SeverityBlock
		default:
			return nil, fmt.Errorf("pattern %q: unknown severity %q", p.ID, p.Severity)
		}
		if p.Category == "" {
			p.Category = p.ID
		}
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.ID, err)
		}
		p.re = re
		out = append(out, p)
	}
	return out, nil
}

// DefaultPatterns returns the built-in injection table.
func DefaultPatterns() []Pattern {
	patterns, err := ParsePatterns(defaultPatternsYAML)
	if err != nil {
		panic(err)
	}
	return patterns
}
