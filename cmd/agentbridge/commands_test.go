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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"agentbridge/internal/theme"
)

func TestGetAvailableCommands(t *testing.T) {
	seen := map[string]bool{}
	for _, cmd := range getAvailableCommands() {
		if cmd.Name == "" || cmd.Description == "" {
			t.Fatalf("command missing name or description: %+v", cmd)
		}
		if seen[cmd.Name] {
			t.Fatalf("duplicate command %q", cmd.Name)
		}
		seen[cmd.Name] = true
	}
	for _, want := range []string{"help", "tools", "describe", "quit"} {
		if !seen[want] {
			t.Fatalf("expected /%s command", want)
		}
	}
}

func TestShowHelp(t *testing.T) {
	var buf bytes.Buffer
	showHelp(&buf, theme.DisabledColorScheme())
	out := buf.String()
	for _, want := range []string{"/describe <operation>", "/history [n]", "Ctrl+C"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in help:\n%s", want, out)
		}
	}
}

func TestDescribeOperation(t *testing.T) {
	catalog := testCatalog(t)
	var buf bytes.Buffer
	if err := describeOperation(&buf, theme.DisabledColorScheme(), catalog, "gemini_quick_query"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"query"`) {
		t.Fatalf("expected query property in schema:\n%s", buf.String())
	}
	if err := describeOperation(&buf, theme.DisabledColorScheme(), catalog, "nope"); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestCommandCompleter(t *testing.T) {
	completer := getCommandCompleter(testCatalog(t))
	candidates, _ := completer.Do([]rune("/desc"), 5)
	if len(candidates) != 1 || !strings.HasPrefix(string(candidates[0]), "ribe") {
		t.Fatalf("expected /describe completion, got %q", candidates)
	}
	candidates, _ = completer.Do([]rune("gemini_q"), 8)
	if len(candidates) == 0 {
		t.Fatal("expected operation name completion")
	}
}

func TestHandleCommand(t *testing.T) {
	a := &app{
		logger:  zerolog.Nop(),
		catalog: testCatalog(t),
		colors:  theme.DisabledColorScheme(),
	}
	var buf bytes.Buffer

	if !handleCommand(t.Context(), "/quit", a, &buf) {
		t.Fatal("expected /quit to exit")
	}
	if handleCommand(t.Context(), "/tools", a, &buf) {
		t.Fatal("/tools should not exit")
	}
	if !strings.Contains(buf.String(), "claude_run_task") {
		t.Fatalf("expected tool table, got:\n%s", buf.String())
	}

	buf.Reset()
	handleCommand(t.Context(), "/history", a, &buf)
	if !strings.Contains(buf.String(), errNoAudit.Error()) {
		t.Fatalf("expected missing audit message, got %q", buf.String())
	}

	buf.Reset()
	handleCommand(t.Context(), "/bogus", a, &buf)
	if !strings.Contains(buf.String(), "Unknown command: /bogus") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

// writeTestConfig writes a config file and returns the global flags that
// point the CLI at it with logs kept out of the test output.
func writeTestConfig(t *testing.T, content string) []string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentbridge.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return []string{"--config", path, "--log-file", filepath.Join(dir, "agentbridge.log")}
}
