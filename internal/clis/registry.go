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

// Package clis knows which AI command-line tools exist, where their
// executables live, and how to query and update them.
package clis

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	apperrors "agentbridge/internal/errors"
)

// PackageManager identifies how a CLI is installed and updated.
type PackageManager string

const (
	ManagerNPM      PackageManager = "npm"
	ManagerHomebrew PackageManager = "homebrew"
	ManagerCustom   PackageManager = "custom"
)

// CLI describes one supported command-line tool.
type CLI struct {
	Name        string
	DisplayName string
	Package     string
	Manager     PackageManager
	// DefaultPaths are checked after explicit overrides and before PATH.
	// A leading "~/" is expanded against the home directory.
	DefaultPaths []string
	// Fallbacks are alternative executable names looked up on PATH.
	Fallbacks []string
	// ForwardEnv names the ambient variables this CLI needs, typically
	// its API credentials.
	ForwardEnv  []string
	VersionArgs []string
}

// DefaultCLIs are the built-in tools.
var DefaultCLIs = []CLI{
	{
		Name:        "claude",
		DisplayName: "Claude CLI",
		Package:     "@anthropic-ai/claude-code",
		Manager:     ManagerNPM,
		ForwardEnv:  []string{"ANTHROPIC_API_KEY"},
	},
	{
		Name:        "codex",
		DisplayName: "Codex CLI",
		Package:     "@openai/codex",
		Manager:     ManagerNPM,
		ForwardEnv:  []string{"OPENAI_API_KEY"},
	},
	{
		Name:        "gemini",
		DisplayName: "Gemini CLI",
		Package:     "@google/gemini-cli",
		Manager:     ManagerNPM,
		ForwardEnv:  []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_CLOUD_PROJECT"},
	},
	{
		Name:         "antigravity",
		DisplayName:  "Antigravity CLI",
		Package:      "antigravity",
		Manager:      ManagerCustom,
		DefaultPaths: []string{"~/.antigravity/antigravity/bin/antigravity"},
		Fallbacks:    []string{"code"},
		ForwardEnv:   []string{"DISPLAY", "WAYLAND_DISPLAY", "XDG_RUNTIME_DIR"},
	},
}

// OverrideEnvKey is the variable that pins a CLI's executable path.
func OverrideEnvKey(name string) string {
	return strings.ToUpper(name) + "_CLI_PATH"
}

// Registry resolves CLI executables. It is read-only after construction.
type Registry struct {
	clis      map[string]CLI
	order     []string
	overrides map[string]string
	home      string
	lookPath  func(string) (string, error)
	stat      func(string) (os.FileInfo, error)
}

// NewRegistry builds a registry. overrides maps a CLI name to an explicit
// executable path taken from configuration.
func NewRegistry(list []CLI, overrides map[string]string) *Registry {
	home, _ := os.UserHomeDir()
	r := &Registry{
		clis:      make(map[string]CLI, len(list)),
		overrides: make(map[string]string, len(overrides)),
		home:      home,
		lookPath:  exec.LookPath,
		stat:      os.Stat,
	}
	for _, cli := range list {
		if len(cli.VersionArgs) == 0 {
			cli.VersionArgs = []string{"--version"}
		}
		if _, exists := r.clis[cli.Name]; !exists {
			r.order = append(r.order, cli.Name)
		}
		r.clis[cli.Name] = cli
	}
	for name, path := range overrides {
		if strings.TrimSpace(path) != "" {
			r.overrides[name] = path
		}
	}
	return r
}

// Get returns the CLI called name.
func (r *Registry) Get(name string) (CLI, bool) {
	cli, ok := r.clis[strings.ToLower(name)]
	return cli, ok
}

// Names returns CLI names in registration order.
func (r *Registry) Names() []string {
	return append([]string{}, r.order...)
}

// Resolve finds the executable for name: an explicit override first, then
// the default install locations, then PATH, then fallback names.
func (r *Registry) Resolve(name string) (string, error) {
	cli, ok := r.Get(name)
	if !ok {
		return "", apperrors.Newf(apperrors.CodeUnknownTool, "unknown CLI %q", name)
	}
	if path, ok := r.overrides[cli.Name]; ok {
		if r.isExecutableFile(path) {
			return path, nil
		}
		return "", apperrors.Newf(apperrors.CodeExecutableNotFound,
			"%s override path is not an executable file", cli.DisplayName)
	}
	for _, candidate := range cli.DefaultPaths {
		candidate = r.expandHome(candidate)
		if candidate != "" && r.isExecutableFile(candidate) {
			return candidate, nil
		}
	}
	for _, exe := range append([]string{cli.Name}, cli.Fallbacks...) {
		if path, err := r.lookPath(exe); err == nil {
			return path, nil
		}
	}
	return "", apperrors.Newf(apperrors.CodeExecutableNotFound,
		"%s is not installed (set %s or add %s to PATH)", cli.DisplayName, OverrideEnvKey(cli.Name), cli.Name)
}

func (r *Registry) expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	if r.home == "" {
		return ""
	}
	return filepath.Join(r.home, path[2:])
}

func (r *Registry) isExecutableFile(path string) bool {
	info, err := r.stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0 || filepath.Ext(path) == ".exe"
}

// Describe returns a short, human-readable summary of a CLI.
func (c CLI) Describe() string {
	return fmt.Sprintf("%s (%s via %s)", c.DisplayName, c.Package, c.Manager)
}
