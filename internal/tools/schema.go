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
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"agentbridge/internal/paths"
)

// FieldType is the JSON type of an argument.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
)

// FieldKind tells the dispatcher which security check an argument needs.
type FieldKind int

const (
	KindPlain FieldKind = iota
	// KindPath arguments go through the path validator.
	KindPath
	// KindPrompt arguments go through the prompt sanitizer.
	KindPrompt
)

// IntRange bounds an integer argument, inclusive.
type IntRange struct {
	Min int
	Max int
}

// Field declares one argument of an operation.
type Field struct {
	Name        string
	Type        FieldType
	Kind        FieldKind
	Required    bool
	Default     any
	Enum        []string
	Range       *IntRange
	MaxLen      int
	Pattern     *regexp.Regexp
	PathOptions paths.Options
	Description string
}

// Args are validated, typed arguments. Integers are stored as int.
type Args map[string]any

// String returns the string argument name, or "".
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the integer argument name, or 0.
func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

// Bool returns the boolean argument name, or false.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Has reports whether name was supplied or defaulted.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// ValidateArgs checks raw arguments against fields. Unknown keys, wrong
// types, missing required values and out-of-bounds values are all
// rejected; defaults are filled in for absent optional fields.
func ValidateArgs(fields []Field, raw map[string]any) (Args, error) {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
	}
	var unknown []string
	for key := range raw {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, invalidArgument("unexpected argument(s): %s", strings.Join(unknown, ", "))
	}

	out := make(Args, len(fields))
	for _, f := range fields {
		value, present := raw[f.Name]
		if present && value != nil {
			if s, ok := value.(string); ok && strings.TrimSpace(s) == "" && !f.Required {
				present = false
			}
		}
		if !present || value == nil {
			if f.Required {
				return nil, invalidArgument("%s is required", f.Name)
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}
		normalized, err := f.check(value)
		if err != nil {
			return nil, invalidArgument("%s %v", f.Name, err)
		}
		out[f.Name] = normalized
	}
	return out, nil
}

func (f Field) check(value any) (any, error) {
	switch f.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		if f.Required && strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("must not be empty")
		}
		if f.MaxLen > 0 && utf8.RuneCountInString(s) > f.MaxLen {
			return nil, fmt.Errorf("exceeds %d characters", f.MaxLen)
		}
		if len(f.Enum) > 0 && !contains(f.Enum, s) {
			return nil, fmt.Errorf("must be one of: %s", strings.Join(f.Enum, ", "))
		}
		if f.Pattern != nil && !f.Pattern.MatchString(s) {
			return nil, fmt.Errorf("has an invalid format")
		}
		return s, nil
	case TypeInteger:
		n, err := toInt(value)
		if err != nil {
			return nil, err
		}
		if f.Range != nil && (n < f.Range.Min || n > f.Range.Max) {
			return nil, fmt.Errorf("must be between %d and %d", f.Range.Min, f.Range.Max)
		}
		return n, nil
	case TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("must be a boolean")
		}
		return b, nil
	default:
		return nil, fmt.Errorf("has unsupported type %q", f.Type)
	}
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0, fmt.Errorf("is out of range")
		}
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("must be an integer")
		}
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0, fmt.Errorf("is out of range")
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("must be an integer")
		}
		return toInt(n)
	default:
		return 0, fmt.Errorf("must be an integer")
	}
}

// JSONSchema renders fields as a JSON Schema object for tool listings.
func JSONSchema(fields []Field) map[string]any {
	properties := make(map[string]any, len(fields))
	required := []string{}
	for _, f := range fields {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = append([]string{}, f.Enum...)
		}
		if f.Default != nil {
			prop["default"] = f.Default
		}
		if f.Range != nil {
			prop["minimum"] = f.Range.Min
			prop["maximum"] = f.Range.Max
		}
		if f.MaxLen > 0 {
			prop["maxLength"] = f.MaxLen
		}
		if f.Pattern != nil {
			prop["pattern"] = f.Pattern.String()
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
