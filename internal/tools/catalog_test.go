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
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	apperrors "agentbridge/internal/errors"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(Options{DefaultModels: map[string]string{CLIClaude: "opus", CLIGemini: "gemini-2.5-pro"}})
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return c
}

func buildArgv(t *testing.T, c *Catalog, name string, raw map[string]any) []string {
	t.Helper()
	op, err := c.Lookup(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	args, err := op.Validate(raw)
	if err != nil {
		t.Fatalf("validate %s: %v", name, err)
	}
	argv, err := op.Build(args)
	if err != nil {
		t.Fatalf("build %s: %v", name, err)
	}
	return argv
}

func TestCatalogOperations(t *testing.T) {
	c := newTestCatalog(t)
	want := []string{
		"claude_quick_query", "claude_analyze_code", "claude_run_task",
		"codex_exec", "codex_review", "codex_sandbox_run",
		"gemini_quick_query", "gemini_analyze_code", "gemini_codebase_analysis",
		"antigravity_open", "antigravity_diff", "antigravity_list_extensions", "antigravity_add_folder", "antigravity_status",
		"check_versions", "check_updates", "update_tool",
	}
	var got []string
	for _, op := range c.Operations() {
		got = append(got, op.Name)
		if op.Description == "" {
			t.Fatalf("%s has no description", op.Name)
		}
		if op.Timeout <= 0 {
			t.Fatalf("%s has no timeout", op.Name)
		}
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected operations:\n got %v\nwant %v", got, want)
	}
}

func TestCatalogUnknownTool(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.Lookup("rm_rf")
	if !apperrors.HasCode(err, apperrors.CodeUnknownTool) {
		t.Fatalf("expected unknown_tool, got %v", err)
	}
}

func TestClaudeTemplates(t *testing.T) {
	c := newTestCatalog(t)
	argv := buildArgv(t, c, "claude_quick_query", map[string]any{"query": "why?", "context": "stack trace"})
	want := []string{"--print", "--dangerously-skip-permissions", "--model", "opus", "--", "Context:\nstack trace\n\nQuestion:\nwhy?"}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("unexpected argv %q", argv)
	}

	argv = buildArgv(t, c, "claude_analyze_code", map[string]any{"code_content": "x := 1", "analysis_type": "performance", "model": "haiku"})
	if argv[3] != "haiku" || argv[4] != "--" || !strings.HasPrefix(argv[5], "Analyze the performance") || !strings.Contains(argv[5], "```\nx := 1\n```") {
		t.Fatalf("unexpected argv %q", argv)
	}

	op, _ := c.Lookup("claude_run_task")
	args, err := op.Validate(map[string]any{"prompt": "fix the tests", "timeout": float64(42)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := op.TimeoutFor(args, TimeoutConfig{}); got != 42*time.Second {
		t.Fatalf("expected timeout argument to win, got %s", got)
	}
	cfg := TimeoutConfig{PerOperation: map[string]time.Duration{"claude_run_task": 7 * time.Second}}
	if got := op.TimeoutFor(args, cfg); got != 42*time.Second {
		t.Fatalf("expected explicit timeout argument to beat config, got %s", got)
	}
	args, err = op.Validate(map[string]any{"prompt": "fix the tests"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args.Has("timeout") {
		t.Fatal("absent timeout argument should stay absent")
	}
	if got := op.TimeoutFor(args, cfg); got != 7*time.Second {
		t.Fatalf("expected configured timeout, got %s", got)
	}
	if got := op.TimeoutFor(args, TimeoutConfig{}); got != 300*time.Second {
		t.Fatalf("expected catalog default, got %s", got)
	}
	if _, err := op.Validate(map[string]any{"prompt": "x", "timeout": float64(0)}); err == nil {
		t.Fatal("expected zero timeout to be rejected")
	}
	if _, err := op.Validate(map[string]any{"prompt": "x", "model": "gpt-4"}); err == nil {
		t.Fatal("expected unknown claude model to be rejected")
	}
}

func TestCodexTemplates(t *testing.T) {
	c := newTestCatalog(t)
	argv := buildArgv(t, c, "codex_exec", map[string]any{"prompt": "add tests", "working_dir": "/work", "model": "o4-mini"})
	want := []string{"exec", "--model", "o4-mini", "--sandbox", "read-only", "--cd", "/work", "--", "add tests"}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("unexpected argv %q", argv)
	}

	argv = buildArgv(t, c, "codex_review", map[string]any{"review_type": "base", "base_branch": "main", "custom_instructions": "focus on locking"})
	if !reflect.DeepEqual(argv, []string{"review", "--base", "main", "--", "focus on locking"}) {
		t.Fatalf("unexpected argv %q", argv)
	}
	argv = buildArgv(t, c, "codex_review", map[string]any{})
	if !reflect.DeepEqual(argv, []string{"review", "--uncommitted"}) {
		t.Fatalf("unexpected argv %q", argv)
	}

	op, _ := c.Lookup("codex_review")
	if _, err := op.Validate(map[string]any{"review_type": "commit"}); !apperrors.HasCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected commit_sha to be required, got %v", err)
	}
	if _, err := op.Validate(map[string]any{"review_type": "base", "base_branch": "--exec=evil"}); err == nil {
		t.Fatal("expected flag-shaped branch to be rejected")
	}

	argv = buildArgv(t, c, "codex_sandbox_run", map[string]any{"command": "ls -la; echo hi"})
	if !reflect.DeepEqual(argv, []string{"sandbox", "--", "sh", "-c", "ls -la; echo hi"}) {
		t.Fatalf("unexpected argv %q", argv)
	}
}

func TestGeminiTemplates(t *testing.T) {
	c := newTestCatalog(t)
	argv := buildArgv(t, c, "gemini_quick_query", map[string]any{"query": "summarize"})
	if !reflect.DeepEqual(argv, []string{"-m", "gemini-2.5-pro", "--prompt=summarize"}) {
		t.Fatalf("unexpected argv %q", argv)
	}
	argv = buildArgv(t, c, "gemini_codebase_analysis", map[string]any{"directory_path": "/src", "analysis_scope": "patterns"})
	if len(argv) != 1 || !strings.HasPrefix(argv[0], "--prompt=") || !strings.HasSuffix(argv[0], "Directory: /src") {
		t.Fatalf("unexpected argv %q", argv)
	}
}

func TestAntigravityTemplates(t *testing.T) {
	c := newTestCatalog(t)
	argv := buildArgv(t, c, "antigravity_open", map[string]any{"file_path": "/src/main.go", "goto_line": float64(12), "goto_column": float64(3), "reuse_window": true})
	if !reflect.DeepEqual(argv, []string{"--reuse-window", "--goto", "/src/main.go:12:3"}) {
		t.Fatalf("unexpected argv %q", argv)
	}
	argv = buildArgv(t, c, "antigravity_open", map[string]any{"file_path": "/src/main.go"})
	if !reflect.DeepEqual(argv, []string{"/src/main.go"}) {
		t.Fatalf("unexpected argv %q", argv)
	}

	op, _ := c.Lookup("antigravity_open")
	if _, err := op.Validate(map[string]any{"file_path": "/a", "goto_column": float64(2)}); err == nil {
		t.Fatal("expected goto_column without goto_line to be rejected")
	}
	if _, err := op.Validate(map[string]any{"file_path": "/a", "new_window": true, "reuse_window": true}); err == nil {
		t.Fatal("expected conflicting window flags to be rejected")
	}

	argv = buildArgv(t, c, "antigravity_list_extensions", map[string]any{"show_versions": true, "category": "Themes"})
	if !reflect.DeepEqual(argv, []string{"--list-extensions", "--show-versions", "--category", "Themes"}) {
		t.Fatalf("unexpected argv %q", argv)
	}
	argv = buildArgv(t, c, "antigravity_diff", map[string]any{"file1": "/a.go", "file2": "/b.go"})
	if !reflect.DeepEqual(argv, []string{"--diff", "/a.go", "/b.go"}) {
		t.Fatalf("unexpected argv %q", argv)
	}
}

func TestParseExtensionList(t *testing.T) {
	data, err := ParseExtensionList("golang.go@0.46.1\n\nms-python.python@2025.1.0\nredhat.vscode-yaml\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["count"] != 3 {
		t.Fatalf("expected 3 extensions, got %v", data["count"])
	}
	exts := data["extensions"].([]Extension)
	if exts[0] != (Extension{ID: "golang.go", Version: "0.46.1"}) || exts[2].Version != "" {
		t.Fatalf("unexpected parse %v", exts)
	}
}

func TestOpenAITools(t *testing.T) {
	c := newTestCatalog(t)
	defs := c.OpenAITools()
	if len(defs) != len(c.Operations()) {
		t.Fatalf("expected one definition per operation, got %d", len(defs))
	}
	for _, def := range defs {
		if def.Type != openai.ToolTypeFunction || def.Function == nil || def.Function.Name == "" {
			t.Fatalf("malformed definition %+v", def)
		}
	}
}

func TestParseOpenAIToolCall(t *testing.T) {
	call := openai.ToolCall{
		ID:   "call-1",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "gemini_quick_query",
			Arguments: `{"query": "hello"}`,
		},
	}
	name, args, err := ParseOpenAIToolCall(call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "gemini_quick_query" || args["query"] != "hello" {
		t.Fatalf("unexpected parse %s %v", name, args)
	}

	call.Function.Name = ""
	if _, _, err := ParseOpenAIToolCall(call); err == nil {
		t.Fatal("expected error for missing function name")
	}
	call.Function.Name = "x"
	call.Function.Arguments = "{broken"
	if _, _, err := ParseOpenAIToolCall(call); !apperrors.HasCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
}

func TestCatalogAllowDeny(t *testing.T) {
	c, err := NewCatalog(Options{
		Allow: []string{"claude_quick_query", "gemini_quick_query", OpCheckVersions},
		Deny:  []string{"gemini_quick_query"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := c.Names()
	if len(names) != 2 || names[0] != OpCheckVersions || names[1] != "claude_quick_query" {
		t.Fatalf("unexpected enabled operations %v", names)
	}
	if _, err := c.Lookup("gemini_quick_query"); !apperrors.HasCode(err, apperrors.CodeUnknownTool) {
		t.Fatalf("expected denied tool to be unknown, got %v", err)
	}
	if _, err := c.Lookup("codex_exec"); !apperrors.HasCode(err, apperrors.CodeUnknownTool) {
		t.Fatalf("expected tool outside allow list to be unknown, got %v", err)
	}
	if len(c.OpenAITools()) != 2 {
		t.Fatalf("expected only enabled tools to be exported, got %d", len(c.OpenAITools()))
	}
	if len(c.AllNames()) <= len(names) {
		t.Fatalf("expected AllNames to include disabled operations")
	}
}
