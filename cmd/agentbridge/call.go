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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"agentbridge/internal/dispatch"
	"agentbridge/internal/tools"
)

func newCallCommand(opts *rootOptions) *cobra.Command {
	var compact bool
	cmd := &cobra.Command{
		Use:   "call <operation> [json-arguments|-]",
		Short: "Run one operation and print the response as JSON",
		Long: `Run one operation through the same validation pipeline the MCP server uses.
Arguments are a JSON object; "-" reads them from stdin. The command exits
non-zero when the response is not successful.`,
		Example: `  agentbridge call gemini_quick_query '{"query": "what is a goroutine?"}'
  echo '{"tool_name": "claude"}' | agentbridge call update_tool -`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 2 {
				raw = args[1]
			}
			if raw == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read arguments: %w", err)
				}
				raw = string(data)
			}
			arguments, err := tools.ParseArguments(strings.TrimSpace(raw))
			if err != nil {
				return err
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.dispatcher.Dispatch(cmd.Context(), dispatch.Request{Operation: args[0], Arguments: arguments})
			if err := writeResponseJSON(cmd.OutOrStdout(), resp, !compact); err != nil {
				return err
			}
			if !resp.Success {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "print the response on a single line")
	return cmd
}

func writeResponseJSON(w io.Writer, resp dispatch.Response, indent bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(resp)
}
