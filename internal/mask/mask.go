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

// Package mask redacts secret-shaped substrings from text that leaves the
// process through logs or persisted records.
package mask

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Placeholder replaces the hidden part of a secret.
const Placeholder = "[MASKED]"

const (
	keepAfterPrefix  = 4
	minLiteralLength = 8
)

// DefaultSecretEnvKeys name environment variables whose values are masked
// verbatim wherever they appear.
var DefaultSecretEnvKeys = []string{
	"ANTHROPIC_API_KEY",
	"OPENAI_API_KEY",
	"GOOGLE_API_KEY",
	"GEMINI_API_KEY",
}

//go:embed secrets.yaml
var defaultSecretsYAML []byte

type secretShape struct {
	ID      string `yaml:"id"`
	Pattern string `yaml:"pattern"`
	re      *regexp.Regexp
}

// Config controls a Masker.
type Config struct {
	// Literals are exact secret values, typically forwarded API keys.
	Literals []string
	// ExtraPatterns are additional regular expressions whose whole match
	// is replaced by the placeholder.
	ExtraPatterns []string
}

// Masker is immutable after construction and safe for concurrent use.
type Masker struct {
	shapes   []secretShape
	extra    []*regexp.Regexp
	literals []string
}

// New compiles the built-in shapes plus cfg.
func New(cfg Config) (*Masker, error) {
	var file struct {
		Secrets []secretShape `yaml:"secrets"`
	}
	if err := yaml.Unmarshal(defaultSecretsYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse secret table: %w", err)
	}
	m := &Masker{}
	for _, shape := range file.Secrets {
		re, err := regexp.Compile(shape.Pattern)
		if err != nil {
			return nil, fmt.Errorf("secret %q: %w", shape.ID, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("secret %q: missing prefix group", shape.ID)
		}
		shape.re = re
		m.shapes = append(m.shapes, shape)
	}
	for _, p := range cfg.ExtraPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("mask pattern %q: %w", p, err)
		}
		m.extra = append(m.extra, re)
	}
	for _, lit := range cfg.Literals {
		if len(lit) >= minLiteralLength {
			m.literals = append(m.literals, lit)
		}
	}
	// longest first so a secret containing another is replaced whole
	sort.SliceStable(m.literals, func(i, j int) bool { return len(m.literals[i]) > len(m.literals[j]) })
	return m, nil
}

// Default returns a Masker with only the built-in shapes.
func Default() *Masker {
	m, err := New(Config{})
	if err != nil {
		panic(err)
	}
	return m
}

// LiteralsFromEnv collects the values of keys present in the environment.
func LiteralsFromEnv(keys []string, lookup func(string) (string, bool)) []string {
	var out []string
	for _, key := range keys {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// Mask returns text with every secret replaced by its prefix, a few
// identifying characters and Placeholder. text itself is not modified.
func (m *Masker) Mask(text string) string {
	if m == nil || text == "" {
		return text
	}
	for _, lit := range m.literals {
		if strings.Contains(text, lit) {
			text = strings.ReplaceAll(text, lit, lit[:literalKeep(lit)]+Placeholder)
		}
	}
	for _, shape := range m.shapes {
		re := shape.re
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			sub := re.FindStringSubmatch(match)
			keep := len(sub[1]) + keepAfterPrefix
			if keep > len(match) {
				keep = len(match)
			}
			return match[:keep] + Placeholder
		})
	}
	for _, re := range m.extra {
		text = re.ReplaceAllString(text, Placeholder)
	}
	return text
}

// MaskAll masks each element of values into a new slice.
func (m *Masker) MaskAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = m.Mask(v)
	}
	return out
}

func literalKeep(lit string) int {
	keep := len(lit) / 4
	if keep > keepAfterPrefix {
		keep = keepAfterPrefix
	}
	return keep
}
