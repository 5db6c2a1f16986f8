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
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agentbridge/internal/clis"
	"agentbridge/internal/theme"
)

func newVersionsCommand(opts *rootOptions) *cobra.Command {
	var (
		updates bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Show installed CLI versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var infos []clis.VersionInfo
			if updates {
				infos = a.clis.CheckUpdates(cmd.Context())
			} else {
				infos = a.clis.Versions(cmd.Context())
			}
			if asJSON {
				return writeIndentedJSON(cmd.OutOrStdout(), infos)
			}
			return printVersions(cmd.OutOrStdout(), a.colors, a.clis.Registry(), infos, updates)
		},
	}
	cmd.Flags().BoolVarP(&updates, "updates", "u", false, "also query the latest published versions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printVersions(w io.Writer, colors *theme.ColorScheme, registry *clis.Registry, infos []clis.VersionInfo, withLatest bool) error {
	colors.Header.Fprintln(w, "CLI versions")
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	header := "TOOL\tVERSION\tPATH\tSOURCE"
	if withLatest {
		header = "TOOL\tVERSION\tLATEST\tPATH\tSOURCE"
	}
	fmt.Fprintln(tw, header)

	for _, info := range infos {
		source := ""
		if cli, ok := registry.Get(info.Tool); ok {
			source = cli.Describe()
		}
		version := colors.Success.Sprint(info.Version)
		switch {
		case !info.Installed:
			version = colors.Error.Sprint("not installed")
		case info.Version == "":
			version = colors.Warning.Sprint("unknown")
		case info.UpdateAvailable:
			version = colors.Warning.Sprint(info.Version)
		}
		path := info.Path
		if path == "" {
			path = "-"
		}
		if withLatest {
			latest := info.Latest
			if latest == "" {
				latest = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", info.Tool, version, latest, path, colors.Muted.Sprint(source))
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Tool, version, path, colors.Muted.Sprint(source))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, info := range infos {
		if info.Error != "" {
			colors.Muted.Fprintf(w, "%s: %s\n", info.Tool, info.Error)
		}
	}
	return nil
}

