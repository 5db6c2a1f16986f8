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
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"agentbridge/internal/dispatch"
	apperrors "agentbridge/internal/errors"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func decodeResponse(t *testing.T, out string) dispatch.Response {
	t.Helper()
	var resp dispatch.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not a response: %v\n%s", err, out)
	}
	return resp
}

func TestCallUnknownOperation(t *testing.T) {
	flags := writeTestConfig(t, `{}`)
	out, err := runCLI(t, "", append([]string{"call", "no_such_tool", "{}"}, flags...)...)
	if !errors.Is(err, errReported) {
		t.Fatalf("expected reported failure, got %v", err)
	}
	resp := decodeResponse(t, out)
	if resp.State != dispatch.StateRejected || resp.ExitCode != dispatch.NotExecuted {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Error == nil || resp.Error.Code != apperrors.CodeUnknownTool {
		t.Fatalf("expected unknown_tool, got %+v", resp.Error)
	}
}

func TestCallReadsArgumentsFromStdin(t *testing.T) {
	flags := writeTestConfig(t, `{}`)
	out, err := runCLI(t, `{"model": "gemini-2.5-pro"}`, append([]string{"call", "gemini_quick_query", "-", "--compact"}, flags...)...)
	if !errors.Is(err, errReported) {
		t.Fatalf("expected reported failure, got %v", err)
	}
	if strings.Count(strings.TrimSpace(out), "\n") != 0 {
		t.Fatalf("expected single-line output, got:\n%s", out)
	}
	resp := decodeResponse(t, out)
	if resp.Error == nil || resp.Error.Code != apperrors.CodeInvalidArgument {
		t.Fatalf("expected invalid_argument for missing query, got %+v", resp.Error)
	}
}

func TestCallRejectsMalformedJSON(t *testing.T) {
	flags := writeTestConfig(t, `{}`)
	_, err := runCLI(t, "", append([]string{"call", "gemini_quick_query", `{"query":`}, flags...)...)
	if err == nil || errors.Is(err, errReported) {
		t.Fatalf("expected a usage error, got %v", err)
	}
}

func TestToolsFormats(t *testing.T) {
	flags := writeTestConfig(t, `{"tools": {"deny": ["codex_exec"]}}`)

	out, err := runCLI(t, "", append([]string{"tools"}, flags...)...)
	if err != nil {
		t.Fatalf("tools failed: %v", err)
	}
	if !strings.Contains(out, "gemini_quick_query") {
		t.Fatalf("expected gemini_quick_query in table:\n%s", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "codex_exec ") {
			t.Fatalf("denied operation listed:\n%s", out)
		}
	}

	out, err = runCLI(t, "", append([]string{"tools", "--format", "mcp"}, flags...)...)
	if err != nil {
		t.Fatalf("tools --format mcp failed: %v", err)
	}
	var list struct {
		Tools []struct {
			Name        string         `json:"name"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("invalid MCP tool list: %v", err)
	}
	if len(list.Tools) == 0 || list.Tools[0].InputSchema["type"] != "object" {
		t.Fatalf("unexpected MCP tool list: %+v", list)
	}

	out, err = runCLI(t, "", append([]string{"tools", "-f", "openai"}, flags...)...)
	if err != nil {
		t.Fatalf("tools --format openai failed: %v", err)
	}
	if !strings.Contains(out, `"type": "function"`) {
		t.Fatalf("expected OpenAI function tools:\n%s", out)
	}

	if _, err := runCLI(t, "", append([]string{"tools", "-f", "yaml"}, flags...)...); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestConfigCommands(t *testing.T) {
	flags := writeTestConfig(t, `{"default_models": {"claude": "opus"}, "tools": {"deny": ["nope"]}}`)

	out, err := runCLI(t, "", append([]string{"config", "show"}, flags...)...)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, `"claude": "opus"`) {
		t.Fatalf("expected effective model in output:\n%s", out)
	}

	out, err = runCLI(t, "", append([]string{"config", "validate"}, flags...)...)
	if !errors.Is(err, errReported) {
		t.Fatalf("expected reported failure, got %v", err)
	}
	if !strings.Contains(out, "tools.deny") {
		t.Fatalf("expected deny warning:\n%s", out)
	}

	out, err = runCLI(t, "", "config", "schema")
	if err != nil {
		t.Fatalf("config schema failed: %v", err)
	}
	if !json.Valid([]byte(out)) {
		t.Fatalf("schema is not valid JSON:\n%s", out)
	}
}

func TestHistoryRequiresAuditFile(t *testing.T) {
	flags := writeTestConfig(t, `{}`)
	_, err := runCLI(t, "", append([]string{"history"}, flags...)...)
	if !errors.Is(err, errNoAudit) {
		t.Fatalf("expected errNoAudit, got %v", err)
	}
}

func TestHistoryListsRecordedCalls(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	raw, _ := json.Marshal(map[string]string{"audit_file": dbPath})
	flags := writeTestConfig(t, string(raw))

	if _, err := runCLI(t, "", append([]string{"call", "no_such_tool"}, flags...)...); !errors.Is(err, errReported) {
		t.Fatalf("expected reported failure, got %v", err)
	}

	out, err := runCLI(t, "", append([]string{"history", "--json"}, flags...)...)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var records []dispatch.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid history JSON: %v\n%s", err, out)
	}
	if len(records) != 1 || records[0].Operation != "no_such_tool" || records[0].State != dispatch.StateRejected {
		t.Fatalf("unexpected records: %+v", records)
	}

	out, err = runCLI(t, "", append([]string{"history", "-o", "gemini_quick_query"}, flags...)...)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "No recorded invocations") {
		t.Fatalf("expected empty listing, got:\n%s", out)
	}
}

func TestServeOverStdio(t *testing.T) {
	flags := writeTestConfig(t, `{}`)
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"no_such_tool","arguments":{}}}`,
	}, "\n") + "\n"

	out, err := runCLI(t, input, append([]string{"serve"}, flags...)...)
	if err != nil {
		t.Fatalf("serve failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two responses, got:\n%s", out)
	}
	if !strings.Contains(lines[0], `"protocolVersion":"2025-06-18"`) {
		t.Fatalf("unexpected initialize result: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"isError":true`) || !strings.Contains(lines[1], "unknown_tool") {
		t.Fatalf("unexpected tools/call result: %s", lines[1])
	}
}
