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

package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxLength bounds raw path input before any filesystem access.
const DefaultMaxLength = 4096

// ValidatePathString validates raw path input before resolution.
func ValidatePathString(path string, maxLen int) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.IndexByte(path, 0) != -1 {
		return fmt.Errorf("path contains null byte")
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("path is not valid UTF-8")
	}
	for _, r := range path {
		if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Me, r) {
			return fmt.Errorf("path contains unsupported unicode combining mark")
		}
	}
	if maxLen > 0 {
		if len(path) > maxLen {
			return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
		}
		if len(filepath.Clean(path)) > maxLen {
			return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
		}
	}
	return nil
}

// Canonicalize returns the absolute, symlink-free form of path. A path that
// does not exist yet is resolved through its longest existing ancestor and
// the missing tail is appended unchanged.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to make path absolute: %v", err)
	}

	current := abs
	var tail []string
	for {
		if _, err := os.Lstat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				return "", fmt.Errorf("failed to resolve path: %v", err)
			}
			parts := append([]string{resolved}, tail...)
			return filepath.Join(parts...), nil
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to stat path: %v", err)
		}

		parent := filepath.Dir(current)
		if parent == current {
			// nothing along the way exists; fall back to the cleaned literal
			return abs, nil
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent
	}
}

// HasPathPrefix returns true when path is within base.
func HasPathPrefix(path, base string) bool {
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		base = strings.ToLower(base)
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != "..")
}

// ResolveWhitelistEntry resolves an allowed base directory. Relative entries
// are taken from the process working directory.
func ResolveWhitelistEntry(entry string) (string, error) {
	candidate, err := filepath.Abs(entry)
	if err != nil {
		return "", fmt.Errorf("invalid allowed path: %v", err)
	}
	if _, err := os.Lstat(candidate); err == nil {
		resolved, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to resolve allowed path: %v", err)
		}
		return resolved, nil
	} else if os.IsNotExist(err) {
		return candidate, nil
	} else {
		return "", fmt.Errorf("failed to stat allowed path: %v", err)
	}
}

// splitComponents breaks a cleaned path into its non-empty elements.
func splitComponents(path string) []string {
	path = filepath.ToSlash(filepath.Clean(path))
	raw := strings.Split(path, "/")
	out := raw[:0]
	for _, part := range raw {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
