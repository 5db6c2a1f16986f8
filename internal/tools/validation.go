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
	"strings"
)

// ValidationRule checks relations between already typed arguments.
type ValidationRule func(args Args) error

// ChainValidation runs rules in order until the first error.
func ChainValidation(rules ...ValidationRule) ValidationRule {
	return func(args Args) error {
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			if err := rule(args); err != nil {
				return err
			}
		}
		return nil
	}
}

// RequireWhen demands field whenever selector equals value.
func RequireWhen(selector, value, field string) ValidationRule {
	return func(args Args) error {
		if args.String(selector) == value && strings.TrimSpace(args.String(field)) == "" {
			return invalidArgument("%s is required when %s is %q", field, selector, value)
		}
		return nil
	}
}

// RequireWith demands field whenever dependent is set.
func RequireWith(dependent, field string) ValidationRule {
	return func(args Args) error {
		if args.Has(dependent) && !args.Has(field) {
			return invalidArgument("%s requires %s", dependent, field)
		}
		return nil
	}
}

// ExclusiveFlags rejects more than one of the boolean flags being true.
func ExclusiveFlags(flags ...string) ValidationRule {
	return func(args Args) error {
		var set []string
		for _, flag := range flags {
			if args.Bool(flag) {
				set = append(set, flag)
			}
		}
		if len(set) > 1 {
			return invalidArgument("%s cannot be combined", strings.Join(set, " and "))
		}
		return nil
	}
}

// ParseArguments decodes a JSON argument object. Numbers are kept as
// json.Number so integer bounds are checked exactly.
func ParseArguments(argsJSON string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(argsJSON) == "" {
		return args, nil
	}
	dec := json.NewDecoder(strings.NewReader(argsJSON))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, invalidArgument("arguments are not a JSON object: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
