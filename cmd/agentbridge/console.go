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
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"agentbridge/internal/dispatch"
	"agentbridge/internal/theme"
	"agentbridge/internal/tools"
)

func newConsoleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive prompt for running operations",
		Long: `Interactive prompt for running operations by hand.

  <operation> {"json": "arguments"}
  <operation> free text        (fills the first prompt argument)
  /help                         list console commands

Ctrl+C cancels the running operation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return runConsole(cmd.Context(), a)
		},
	}
}

func runConsole(ctx context.Context, a *app) error {
	a.logger.Debug().Msg("Running interactive console")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:              "agentbridge❯ ",
		HistoryFile:         a.cfg.CommandHistoryFile,
		AutoComplete:        getCommandCompleter(a.catalog),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		FuncFilterInputRune: filterInterruptRune,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	a.colors.Header.Fprintf(out, "agentbridge %s\n", Version)
	a.colors.Muted.Fprintf(out, "%d operations enabled. Type /help for commands, Ctrl+D to exit.\n\n", len(a.catalog.Names()))

	canceler := &operationCanceler{}
	for {
		line, err := rl.Readline()
		switch classifyReadlineError(line, err) {
		case readlineContinue:
			continue
		case readlineExit:
			a.logger.Debug().Msg("Console closed")
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(sanitizeInputLine(line))
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if handleCommand(ctx, line, a, out) {
				return nil
			}
			continue
		}

		req, err := parseInvocation(line, a.catalog)
		if err != nil {
			a.colors.Error.Fprintf(out, "✗ %v\n", err)
			continue
		}
		resp := runOperation(ctx, a.dispatcher, canceler, req)
		printResponse(out, a.colors, resp)
	}
}

func runOperation(ctx context.Context, d *dispatch.Dispatcher, canceler *operationCanceler, req dispatch.Request) dispatch.Response {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	canceler.Set(cancel)
	defer canceler.Clear()
	stop := canceler.cancelOnInterrupt()
	defer stop()
	return d.Dispatch(opCtx, req)
}

// parseInvocation reads "<operation> <json>" or "<operation> <text>". Plain
// text fills the first prompt argument of the operation.
func parseInvocation(line string, catalog *tools.Catalog) (dispatch.Request, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	req := dispatch.Request{Operation: name, Arguments: map[string]any{}}
	if rest == "" {
		return req, nil
	}
	if strings.HasPrefix(rest, "{") {
		args, err := tools.ParseArguments(rest)
		if err != nil {
			return req, err
		}
		req.Arguments = args
		return req, nil
	}

	op, err := catalog.Lookup(name)
	if err != nil {
		return req, err
	}
	for _, f := range op.Fields {
		if f.Kind == tools.KindPrompt {
			req.Arguments[f.Name] = rest
			return req, nil
		}
	}
	return req, fmt.Errorf("%s takes JSON arguments, e.g. %s {...}", name, name)
}

func printResponse(w io.Writer, colors *theme.ColorScheme, resp dispatch.Response) {
	if resp.Output != "" {
		colors.Output.Fprint(w, resp.Output)
		if !strings.HasSuffix(resp.Output, "\n") {
			fmt.Fprintln(w)
		}
	}
	if resp.Stderr != "" && !resp.Success {
		colors.Muted.Fprint(w, tailLines(resp.Stderr, 20))
		if !strings.HasSuffix(resp.Stderr, "\n") {
			fmt.Fprintln(w)
		}
	}
	for _, warning := range resp.Warnings {
		colors.Warning.Fprintf(w, "! %s\n", warning)
	}

	status := fmt.Sprintf("%s %s in %dms", resp.Operation, resp.State, resp.DurationMs)
	if resp.ExitCode != dispatch.NotExecuted {
		status += fmt.Sprintf(" (exit %d)", resp.ExitCode)
	}
	if resp.Success {
		colors.Success.Fprintf(w, "✓ %s\n", status)
	} else if resp.Error != nil {
		colors.Error.Fprintf(w, "✗ %s: %s [%s]\n", status, resp.Error.Message, resp.Error.Code)
	} else {
		colors.Error.Fprintf(w, "✗ %s\n", status)
	}
	colors.Muted.Fprintf(w, "  request %s\n\n", resp.RequestID)
}

func tailLines(s string, n int) string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "")
}
