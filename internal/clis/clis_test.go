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

package clis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	apperrors "agentbridge/internal/errors"
	"agentbridge/internal/executor"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("failed to write executable: %v", err)
	}
	return path
}

func noLookPath(string) (string, error) { return "", errors.New("not found") }

func TestResolveOrder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bits")
	}
	dir := t.TempDir()
	override := writeExecutable(t, dir, "claude-pinned")

	r := NewRegistry(DefaultCLIs, map[string]string{"claude": override})
	r.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	if got, err := r.Resolve("claude"); err != nil || got != override {
		t.Fatalf("expected override %s, got %s (%v)", override, got, err)
	}
	if got, err := r.Resolve("codex"); err != nil || got != "/usr/bin/codex" {
		t.Fatalf("expected PATH lookup, got %s (%v)", got, err)
	}
}

func TestResolveBadOverrideIsNotFound(t *testing.T) {
	r := NewRegistry(DefaultCLIs, map[string]string{"gemini": filepath.Join(t.TempDir(), "missing")})
	r.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	_, err := r.Resolve("gemini")
	if !apperrors.HasCode(err, apperrors.CodeExecutableNotFound) {
		t.Fatalf("expected executable_not_found, got %v", err)
	}
}

func TestResolveDefaultPathAndFallback(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bits")
	}
	home := t.TempDir()
	bin := filepath.Join(home, ".antigravity", "antigravity", "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	r := NewRegistry(DefaultCLIs, nil)
	r.home = home
	r.lookPath = func(name string) (string, error) {
		if name == "code" {
			return "/usr/local/bin/code", nil
		}
		return "", errors.New("not found")
	}
	if got, err := r.Resolve("antigravity"); err != nil || got != "/usr/local/bin/code" {
		t.Fatalf("expected fallback to code, got %s (%v)", got, err)
	}

	installed := writeExecutable(t, bin, "antigravity")
	if got, err := r.Resolve("antigravity"); err != nil || got != installed {
		t.Fatalf("expected default install path, got %s (%v)", got, err)
	}
}

func TestResolveMissing(t *testing.T) {
	r := NewRegistry(DefaultCLIs, nil)
	r.lookPath = noLookPath
	_, err := r.Resolve("codex")
	if !apperrors.HasCode(err, apperrors.CodeExecutableNotFound) {
		t.Fatalf("expected executable_not_found, got %v", err)
	}
	if !strings.Contains(err.Error(), "CODEX_CLI_PATH") {
		t.Fatalf("expected hint about override variable: %v", err)
	}
	if _, err := r.Resolve("vim"); !apperrors.HasCode(err, apperrors.CodeUnknownTool) {
		t.Fatalf("expected unknown_tool, got %v", err)
	}
}

func TestParseVersion(t *testing.T) {
	cases := map[string]string{
		"1.0.71 (Claude Code)\n":   "1.0.71",
		"codex-cli 0.46.0":         "0.46.0",
		"v22.3.1-nightly":          "22.3.1",
		"unknown build\nsecond":    "unknown build",
		"":                         "",
	}
	for in, want := range cases {
		if got := ParseVersion(in); got != want {
			t.Fatalf("ParseVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2.10", "1.2.9", 1},
		{"0.9.0", "1.0.0", -1},
		{"v2.0.0", "2.0.0", 0},
		{"1.2", "1.2.0", 0},
		{"1.3.0-beta.1", "1.2.9", 1},
	}
	for _, tc := range cases {
		if got := CompareVersions(tc.a, tc.b); got != tc.want {
			t.Fatalf("CompareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

type scriptedRunner struct {
	mu    sync.Mutex
	calls []executor.Spec
	reply func(executor.Spec) (executor.Result, error)
}

func (s *scriptedRunner) Run(_ context.Context, spec executor.Spec) (executor.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, spec)
	s.mu.Unlock()
	return s.reply(spec)
}

func (s *scriptedRunner) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		out = append(out, filepath.Base(c.Path)+" "+strings.Join(c.Args, " "))
	}
	return out
}

func fakeRegistry() *Registry {
	r := NewRegistry(DefaultCLIs, nil)
	r.lookPath = func(name string) (string, error) {
		if name == "antigravity" || name == "code" {
			return "", errors.New("not found")
		}
		return "/opt/bin/" + name, nil
	}
	return r
}

func TestVersionsConcurrent(t *testing.T) {
	runner := &scriptedRunner{reply: func(spec executor.Spec) (executor.Result, error) {
		return executor.Result{Stdout: filepath.Base(spec.Path) + " 1.2.3\n"}, nil
	}}
	m := NewManager(fakeRegistry(), runner, zerolog.Nop())
	infos := m.Versions(context.Background())
	if len(infos) != 4 {
		t.Fatalf("expected 4 results, got %d", len(infos))
	}
	for _, info := range infos[:3] {
		if !info.Installed || info.Version != "1.2.3" {
			t.Fatalf("unexpected info %+v", info)
		}
	}
	if infos[3].Tool != "antigravity" || infos[3].Installed || infos[3].Error == "" {
		t.Fatalf("expected antigravity to be reported missing, got %+v", infos[3])
	}
}

func TestUpdateSkipsWhenLatest(t *testing.T) {
	runner := &scriptedRunner{reply: func(spec executor.Spec) (executor.Result, error) {
		if spec.Path == "npm" {
			return executor.Result{Stdout: "0.46.0\n"}, nil
		}
		return executor.Result{Stdout: "codex-cli 0.46.0"}, nil
	}}
	m := NewManager(fakeRegistry(), runner, zerolog.Nop())
	res, err := m.Update(context.Background(), "codex", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped || res.Updated {
		t.Fatalf("expected skip, got %+v", res)
	}
	for _, cmd := range runner.commands() {
		if strings.HasPrefix(cmd, "npm install") {
			t.Fatalf("install must not run when up to date: %v", runner.commands())
		}
	}
}

func TestUpdateForceInstalls(t *testing.T) {
	runner := &scriptedRunner{reply: func(spec executor.Spec) (executor.Result, error) {
		if spec.Path == "npm" {
			return executor.Result{Stdout: "added 1 package"}, nil
		}
		return executor.Result{Stdout: "1.0.0"}, nil
	}}
	m := NewManager(fakeRegistry(), runner, zerolog.Nop())
	res, err := m.Update(context.Background(), "claude", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Updated {
		t.Fatalf("expected update, got %+v", res)
	}
	found := false
	for _, cmd := range runner.commands() {
		if cmd == "npm install -g @anthropic-ai/claude-code --force" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected forced npm install, got %v", runner.commands())
	}
}

func TestUpdateCustomUnsupported(t *testing.T) {
	runner := &scriptedRunner{reply: func(executor.Spec) (executor.Result, error) { return executor.Result{}, nil }}
	m := NewManager(fakeRegistry(), runner, zerolog.Nop())
	_, err := m.Update(context.Background(), "antigravity", false)
	if !apperrors.HasCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
}

func TestCheckUpdates(t *testing.T) {
	runner := &scriptedRunner{reply: func(spec executor.Spec) (executor.Result, error) {
		if spec.Path == "npm" {
			if spec.Args[1] == "@openai/codex" {
				return executor.Result{ExitCode: 1, Stderr: "404 Not Found"}, nil
			}
			return executor.Result{Stdout: "2.0.0"}, nil
		}
		return executor.Result{Stdout: "1.5.0"}, nil
	}}
	m := NewManager(fakeRegistry(), runner, zerolog.Nop())
	infos := m.CheckUpdates(context.Background())
	byTool := map[string]VersionInfo{}
	for _, info := range infos {
		byTool[info.Tool] = info
	}
	if !byTool["claude"].UpdateAvailable || byTool["claude"].Latest != "2.0.0" {
		t.Fatalf("expected claude update, got %+v", byTool["claude"])
	}
	if byTool["codex"].UpdateAvailable || !strings.Contains(byTool["codex"].Error, "404") {
		t.Fatalf("expected codex registry error, got %+v", byTool["codex"])
	}
}
