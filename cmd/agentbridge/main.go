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
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"agentbridge/internal/mask"
)

// Version is set at build time via ldflags.
var Version = "dev"

// errReported means the command already printed its failure.
var errReported = errors.New("failure already reported")

type rootOptions struct {
	configPath string
	logLevel   string
	logFile    string
	debug      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "agentbridge: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "agentbridge",
		Short:         "Expose AI coding CLIs as validated tool operations",
		Long:          "agentbridge runs the claude, codex, gemini and antigravity command-line tools on behalf of MCP clients, after validating paths and screening prompts.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", envOr("AGENTBRIDGE_CONFIG", "agentbridge.json"), "configuration file (.json or .toml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "shorthand for --log-level debug")

	root.AddCommand(
		newServeCommand(opts),
		newCallCommand(opts),
		newConsoleCommand(opts),
		newToolsCommand(opts),
		newVersionsCommand(opts),
		newHistoryCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// initLogger never writes to stdout: in serve mode stdout carries the
// JSON-RPC stream. Every line passes through the masker.
func initLogger(level, logFilePath string, masker *mask.Masker) (zerolog.Logger, io.Closer, error) {
	parsed := zerolog.InfoLevel
	if level != "" {
		var err error
		parsed, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q", level)
		}
	}
	zerolog.SetGlobalLevel(parsed)

	var (
		output io.Writer
		closer io.Closer
	)
	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closer = file
	} else if term.IsTerminal(int(os.Stderr.Fd())) {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	} else {
		output = os.Stderr
	}

	if masker != nil {
		output = mask.NewWriter(output, masker)
	}
	return zerolog.New(output).With().Timestamp().Logger(), closer, nil
}
