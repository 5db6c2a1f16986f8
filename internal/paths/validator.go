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
	"os"
	"path/filepath"
	"strings"
)

// DefaultBlockedPrefixes are system locations no tool argument may point into.
var DefaultBlockedPrefixes = []string{
	"/etc/",
	"/proc/",
	"/sys/",
	"/dev/",
	"/boot/",
	"/root/",
	"/var/log/",
	"/private/etc/",
	"/private/var/log/",
	"/private/var/db/",
	"/private/var/root/",
	"/System/",
	"/Library/",
	`C:\Windows\`,
	`C:\System32\`,
}

// DefaultSensitiveNames are credential and account files matched by path
// component. Entries with a slash must appear as consecutive components.
var DefaultSensitiveNames = []string{
	".env",
	".ssh",
	"id_rsa",
	"id_ed25519",
	".aws/credentials",
	".netrc",
	".npmrc",
	".pypirc",
	"credentials.json",
	"token.json",
	".git/config",
	"shadow",
	"passwd",
	"sudoers",
}

// Rejection reasons. They name the failed check, never the resolved target.
const (
	ReasonMalformed      = "malformed path"
	ReasonUnresolvable   = "path cannot be resolved"
	ReasonBlocked        = "blocked system location"
	ReasonSensitive      = "sensitive credential file"
	ReasonOutsideAllowed = "outside allowed directories"
	ReasonNotFound       = "path does not exist"
	ReasonNotDirectory   = "path is not a directory"
	ReasonNotFile        = "path is not a regular file"
)

// Config is the static policy of a Validator.
type Config struct {
	BlockedPrefixes []string
	SensitiveNames  []string
	// BaseDirs, when non-empty, confines every accepted path to one of them.
	BaseDirs  []string
	MaxLength int
}

// DefaultConfig returns the built-in policy with no base directory confinement.
func DefaultConfig() Config {
	return Config{
		BlockedPrefixes: append([]string{}, DefaultBlockedPrefixes...),
		SensitiveNames:  append([]string{}, DefaultSensitiveNames...),
		MaxLength:       DefaultMaxLength,
	}
}

// Options are per-argument requirements applied after the security checks.
type Options struct {
	MustExist  bool
	MustBeDir  bool
	MustBeFile bool
}

// Decision is the outcome of checking one path argument.
type Decision struct {
	Path     string `json:"path"`
	Resolved string `json:"-"`
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason,omitempty"`
	Detail   string `json:"-"`
}

// Validator checks path arguments against a read-only policy.
type Validator struct {
	blocked   []string
	sensitive [][]string
	baseDirs  []string
	maxLen    int
}

// NewValidator prepares a validator. Base directories are resolved once here.
func NewValidator(cfg Config) (*Validator, error) {
	v := &Validator{maxLen: cfg.MaxLength}
	if v.maxLen <= 0 {
		v.maxLen = DefaultMaxLength
	}
	for _, prefix := range cfg.BlockedPrefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		v.blocked = append(v.blocked, trimSeparator(prefix))
	}
	for _, name := range cfg.SensitiveNames {
		parts := splitComponents(name)
		if len(parts) > 0 {
			v.sensitive = append(v.sensitive, parts)
		}
	}
	for _, dir := range cfg.BaseDirs {
		resolved, err := ResolveWhitelistEntry(dir)
		if err != nil {
			return nil, err
		}
		v.baseDirs = append(v.baseDirs, resolved)
	}
	return v, nil
}

// Check applies the security policy to path.
func (v *Validator) Check(path string) Decision {
	return v.CheckWith(path, Options{})
}

// CheckWith applies the security policy and then the given options.
func (v *Validator) CheckWith(path string, opts Options) Decision {
	d := Decision{Path: path}
	if err := ValidatePathString(path, v.maxLen); err != nil {
		return d.reject(ReasonMalformed, err.Error())
	}

	literal, err := filepath.Abs(path)
	if err != nil {
		return d.reject(ReasonUnresolvable, err.Error())
	}
	resolved, err := Canonicalize(path)
	if err != nil {
		return d.reject(ReasonUnresolvable, err.Error())
	}
	d.Resolved = resolved

	if v.isBlocked(resolved) || v.isBlocked(literal) {
		return d.reject(ReasonBlocked, "")
	}
	if v.isSensitive(resolved) || v.isSensitive(literal) {
		return d.reject(ReasonSensitive, "")
	}
	if len(v.baseDirs) > 0 && !v.withinBase(resolved) {
		return d.reject(ReasonOutsideAllowed, "")
	}

	if opts.MustExist || opts.MustBeDir || opts.MustBeFile {
		info, err := os.Stat(resolved)
		if err != nil {
			return d.reject(ReasonNotFound, "")
		}
		if opts.MustBeDir && !info.IsDir() {
			return d.reject(ReasonNotDirectory, "")
		}
		if opts.MustBeFile && !info.Mode().IsRegular() {
			return d.reject(ReasonNotFile, "")
		}
	}

	d.Allowed = true
	return d
}

func (d Decision) reject(reason, detail string) Decision {
	d.Allowed = false
	d.Reason = reason
	d.Detail = detail
	return d
}

func (v *Validator) isBlocked(path string) bool {
	for _, prefix := range v.blocked {
		if HasPathPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (v *Validator) isSensitive(path string) bool {
	components := splitComponents(path)
	for _, name := range v.sensitive {
		if containsRun(components, name) {
			return true
		}
	}
	return false
}

func (v *Validator) withinBase(path string) bool {
	for _, base := range v.baseDirs {
		if HasPathPrefix(path, base) {
			return true
		}
	}
	return false
}

// containsRun reports whether name occurs as consecutive components. A dot
// file also matches its suffixed variants, so ".env" covers ".env.local".
func containsRun(components, name []string) bool {
	for i := 0; i+len(name) <= len(components); i++ {
		match := true
		for j, want := range name {
			got := components[i+j]
			if got == want {
				continue
			}
			if len(name) == 1 && strings.HasPrefix(want, ".") && strings.HasPrefix(got, want+".") {
				continue
			}
			match = false
			break
		}
		if match {
			return true
		}
	}
	return false
}

func trimSeparator(prefix string) string {
	trimmed := strings.TrimRight(prefix, `/\`)
	if trimmed == "" {
		return prefix[:1]
	}
	return filepath.Clean(trimmed)
}
