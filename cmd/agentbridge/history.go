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
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"agentbridge/internal/audit"
	"agentbridge/internal/dispatch"
	"agentbridge/internal/theme"
)

var errNoAudit = errors.New("no audit_file configured")

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		filter audit.Filter
		since  time.Duration
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded invocations from the audit store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.audit == nil {
				return errNoAudit
			}

			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			records, err := a.audit.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeIndentedJSON(cmd.OutOrStdout(), records)
			}
			return printHistory(cmd.OutOrStdout(), a.colors, records)
		},
	}
	cmd.Flags().StringVarP(&filter.Operation, "operation", "o", "", "only show this operation")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "maximum number of records")
	cmd.Flags().DurationVar(&since, "since", 0, "only show records newer than this (e.g. 2h)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printHistory(w io.Writer, colors *theme.ColorScheme, records []dispatch.Record) error {
	if len(records) == 0 {
		colors.Muted.Fprintln(w, "No recorded invocations")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tOPERATION\tSTATE\tEXIT\tDURATION\tERROR\tREQUEST")
	for _, rec := range records {
		exit := "-"
		if rec.ExitCode != dispatch.NotExecuted {
			exit = fmt.Sprint(rec.ExitCode)
		}
		state := colors.Success.Sprint(rec.State)
		if !rec.Success {
			state = colors.Error.Sprint(rec.State)
		}
		errCode := string(rec.ErrorCode)
		if errCode == "" {
			errCode = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Operation,
			state,
			exit,
			(time.Duration(rec.DurationMs) * time.Millisecond).String(),
			errCode,
			rec.RequestID,
		)
	}
	return tw.Flush()
}
