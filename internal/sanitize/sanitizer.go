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
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	apperrors "agentbridge/internal/errors"
)

const (
	// DefaultMaxLength is the prompt budget in characters.
	DefaultMaxLength = 100_000
	excerptRunes     = 40
)

// Finding is one pattern match.
type Finding struct {
	PatternID string   `json:"pattern_id"`
	Category  string   `json:"category"`
	Excerpt   string   `json:"excerpt"`
	Severity  Severity `json:"severity"`
}

// Report is the outcome of scanning one input.
type Report struct {
	Findings []Finding
	Safe     bool
}

// Blocking returns the first block finding, if any.
func (r Report) Blocking() (Finding, bool) {
	for _, f := range r.Findings {
		if f.Severity == SeverityBlock {
			return f, true
		}
	}
	return Finding{}, false
}

// Warnings returns the warn findings.
func (r Report) Warnings() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityWarn {
			out = append(out, f)
		}
	}
	return out
}

// Config controls a Sanitizer.
type Config struct {
	MaxLength int
	// FieldLimits overrides MaxLength for specific argument names.
	FieldLimits map[string]int
	// DisableFilter skips pattern scanning; length checks still apply.
	DisableFilter bool
	Patterns      []Pattern
}

// DefaultConfig returns the built-in limits and pattern table.
func DefaultConfig() Config {
	return Config{
		MaxLength: DefaultMaxLength,
		FieldLimits: map[string]int{
			"context":             50_000,
			"code_content":        50_000,
			"custom_instructions": 10_000,
			"command":             5_000,
		},
		Patterns: DefaultPatterns(),
	}
}

// Sanitizer scans free text for injection phrasing. It holds no mutable
// state and is safe for concurrent use.
type Sanitizer struct {
	maxLength   int
	fieldLimits map[string]int
	filter      bool
	patterns    []Pattern
}

// New builds a Sanitizer from cfg.
func New(cfg Config) *Sanitizer {
	s := &Sanitizer{
		maxLength:   cfg.MaxLength,
		fieldLimits: make(map[string]int, len(cfg.FieldLimits)),
		filter:      !cfg.DisableFilter,
		patterns:    cfg.Patterns,
	}
	if s.maxLength <= 0 {
		s.maxLength = DefaultMaxLength
	}
	for k, v := range cfg.FieldLimits {
		s.fieldLimits[k] = v
	}
	if s.patterns == nil {
		s.patterns = DefaultPatterns()
	}
	return s
}

// Limit returns the character budget for field.
func (s *Sanitizer) Limit(field string) int {
	if limit, ok := s.fieldLimits[field]; ok && limit > 0 {
		return limit
	}
	return s.maxLength
}

// Scan checks text destined for field. Empty and over-long input fail with
// a coded error before any pattern is evaluated.
func (s *Sanitizer) Scan(field, text string) (Report, error) {
	if strings.TrimSpace(text) == "" {
		return Report{}, apperrors.Newf(apperrors.CodeInvalidArgument, "%s is empty", field)
	}
	if !utf8.ValidString(text) {
		return Report{}, apperrors.Newf(apperrors.CodeInvalidArgument, "%s is not valid UTF-8", field)
	}
	limit := s.Limit(field)
	if n := utf8.RuneCountInString(text); n > limit {
		return Report{}, apperrors.Newf(apperrors.CodeInputTooLong, "%s exceeds maximum length (%d > %d characters)", field, n, limit)
	}

	report := Report{Safe: true}
	if !s.filter {
		return report, nil
	}

	forms := normalize(text)
	for _, p := range s.patterns {
		var match string
		for _, form := range forms {
			if loc := p.re.FindStringIndex(form); loc != nil {
				match = form[loc[0]:loc[1]]
				break
			}
		}
		if match == "" {
			continue
		}
		report.Findings = append(report.Findings, Finding{
			PatternID: p.ID,
			Category:  p.Category,
			Excerpt:   excerpt(match),
			Severity:  p.Severity,
		})
		if p.Severity == SeverityBlock {
			report.Safe = false
		}
	}
	return report, nil
}

// normalize folds compatibility forms (fullwidth letters, ligatures) and
// collapses whitespace so spacing tricks do not split a phrase. Format
// characters (zero-width spaces and joiners, bidi marks) are tried both
// removed and read as a space, since either may hide a phrase.
func normalize(text string) []string {
	dropped := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, text)
	forms := []string{collapse(dropped)}
	if dropped != text {
		spaced := strings.Map(func(r rune) rune {
			if unicode.Is(unicode.Cf, r) {
				return ' '
			}
			return r
		}, text)
		forms = append(forms, collapse(spaced))
	}
	return forms
}

func collapse(text string) string {
	folded := norm.NFKC.String(text)
	return strings.Join(strings.FieldsFunc(folded, unicode.IsSpace), " ")
}

func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptRunes {
		return s
	}
	return string(runes[:excerptRunes]) + "..."
}
