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
	"fmt"

	"github.com/spf13/cobra"

	"agentbridge/internal/config"
	"agentbridge/internal/tools"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "schema",
			Short: "Print the JSON schema of the configuration file",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), config.SchemaJSON())
			},
		},
		&cobra.Command{
			Use:   "example",
			Short: "Print an example configuration file",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), config.ExampleConfigJSON())
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration after environment overrides",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.LoadConfig(opts.configPath)
				if err != nil {
					return err
				}
				return writeIndentedJSON(cmd.OutOrStdout(), cfg)
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Load the configuration and report problems",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.LoadConfig(opts.configPath)
				if err != nil {
					return err
				}
				catalog, err := tools.NewCatalog(cfg.CatalogOptions())
				if err != nil {
					return err
				}
				warnings := cfg.Validate(catalog)
				out := cmd.OutOrStdout()
				if len(warnings) == 0 {
					fmt.Fprintf(out, "%s: ok\n", opts.configPath)
					return nil
				}
				for _, w := range warnings {
					fmt.Fprintf(out, "%s: %s\n", w.Field, w.Message)
				}
				return errReported
			},
		},
	)
	return cmd
}
