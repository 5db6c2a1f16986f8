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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"agentbridge/internal/audit"
	"agentbridge/internal/theme"
	"agentbridge/internal/tools"
)

// Command represents a slash command
type Command struct {
	Name        string
	Args        string
	Description string
}

// getAvailableCommands returns the list of all slash commands
func getAvailableCommands() []Command {
	return []Command{
		{Name: "help", Description: "Show available commands"},
		{Name: "tools", Description: "List enabled operations"},
		{Name: "describe", Args: "<operation>", Description: "Show the arguments an operation accepts"},
		{Name: "versions", Description: "Show installed CLI versions"},
		{Name: "history", Args: "[n]", Description: "Show recent invocations from the audit store"},
		{Name: "quit", Description: "Exit the console"},
		{Name: "exit", Description: "Exit the console"},
	}
}

// handleCommand processes slash commands, returns true if should quit
func handleCommand(ctx context.Context, input string, a *app, out io.Writer) bool {
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		showHelp(out, a.colors)
		return false
	}
	cmdName := strings.ToLower(fields[0])
	args := fields[1:]

	a.logger.Debug().Str("command", cmdName).Msg("Executing command")

	switch cmdName {
	case "help":
		showHelp(out, a.colors)

	case "tools":
		if err := printTools(out, a.catalog, "table"); err != nil {
			a.colors.Error.Fprintf(out, "✗ %v\n", err)
		}
		fmt.Fprintln(out)

	case "describe":
		if len(args) != 1 {
			a.colors.Error.Fprintln(out, "✗ Usage: /describe <operation>")
			return false
		}
		if err := describeOperation(out, a.colors, a.catalog, args[0]); err != nil {
			a.colors.Error.Fprintf(out, "✗ %v\n", err)
		}

	case "versions":
		infos := a.clis.Versions(ctx)
		if err := printVersions(out, a.colors, a.clis.Registry(), infos, false); err != nil {
			a.colors.Error.Fprintf(out, "✗ %v\n", err)
		}
		fmt.Fprintln(out)

	case "history":
		if a.audit == nil {
			a.colors.Error.Fprintf(out, "✗ %v\n", errNoAudit)
			return false
		}
		limit := 10
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				a.colors.Error.Fprintln(out, "✗ Usage: /history [n]")
				return false
			}
			limit = n
		}
		records, err := a.audit.List(ctx, audit.Filter{Limit: limit})
		if err != nil {
			a.colors.Error.Fprintf(out, "✗ %v\n", err)
			return false
		}
		if err := printHistory(out, a.colors, records); err != nil {
			a.colors.Error.Fprintf(out, "✗ %v\n", err)
		}
		fmt.Fprintln(out)

	case "quit", "exit":
		return true

	default:
		a.colors.Error.Fprintf(out, "✗ Unknown command: /%s (type /help for available commands)\n", cmdName)
	}
	return false
}

func showHelp(out io.Writer, colors *theme.ColorScheme) {
	colors.Header.Fprintln(out, "\nAvailable Commands:")
	seen := make(map[string]bool)
	for _, cmd := range getAvailableCommands() {
		if seen[cmd.Name] {
			continue
		}
		seen[cmd.Name] = true
		usage := "/" + cmd.Name
		if cmd.Args != "" {
			usage += " " + cmd.Args
		}
		fmt.Fprintf(out, "  %-24s - %s\n", usage, cmd.Description)
	}
	colors.Header.Fprintln(out, "\nRunning Operations:")
	fmt.Fprintln(out, `  codex_exec {"prompt": "...", "working_dir": "."}`)
	fmt.Fprintln(out, "  gemini_quick_query what does this build system do")
	fmt.Fprintln(out, "\nKeyboard Shortcuts:")
	fmt.Fprintln(out, "  Ctrl+C       - Cancel the running operation")
	fmt.Fprintln(out, "  Ctrl+R       - Search command history")
	fmt.Fprintln(out, "  Tab          - Auto-complete commands and operations")
	fmt.Fprintln(out)
}

func describeOperation(out io.Writer, colors *theme.ColorScheme, catalog *tools.Catalog, name string) error {
	op, err := catalog.Lookup(name)
	if err != nil {
		return err
	}
	colors.Header.Fprintf(out, "\n%s\n", op.Name)
	fmt.Fprintln(out, op.Description)
	schema, err := json.MarshalIndent(tools.JSONSchema(op.Fields), "", "  ")
	if err != nil {
		return err
	}
	colors.Muted.Fprintf(out, "%s\n\n", schema)
	return nil
}

// getCommandCompleter builds a readline completer from slash commands and
// operation names.
func getCommandCompleter(catalog *tools.Catalog) *readline.PrefixCompleter {
	names := catalog.Names()
	opItems := make([]readline.PrefixCompleterInterface, len(names))
	for i, name := range names {
		opItems[i] = readline.PcItem(name)
	}

	var items []readline.PrefixCompleterInterface
	for _, cmd := range getAvailableCommands() {
		if cmd.Name == "describe" {
			items = append(items, readline.PcItem("/"+cmd.Name, opItems...))
			continue
		}
		items = append(items, readline.PcItem("/"+cmd.Name))
	}
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}
