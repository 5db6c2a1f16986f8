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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agentbridge/internal/config"
	"agentbridge/internal/mcp"
	"agentbridge/internal/tools"
)

func newToolsCommand(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the enabled operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(opts)
			if err != nil {
				return err
			}
			return printTools(cmd.OutOrStdout(), catalog, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, mcp or openai")
	return cmd
}

// loadCatalog builds only the catalog: listing tools opens no audit store
// and spawns nothing.
func loadCatalog(opts *rootOptions) (*tools.Catalog, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return tools.NewCatalog(cfg.CatalogOptions())
}

func printTools(w io.Writer, catalog *tools.Catalog, format string) error {
	switch format {
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCLI\tDESCRIPTION")
		for _, op := range catalog.Operations() {
			cli := op.CLI
			if cli == "" {
				cli = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", op.Name, cli, firstLine(op.Description))
		}
		return tw.Flush()
	case "mcp":
		return writeIndentedJSON(w, mcp.ToolList(catalog))
	case "openai":
		return writeIndentedJSON(w, catalog.OpenAITools())
	default:
		return fmt.Errorf("unknown format %q (expected table, mcp or openai)", format)
	}
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
