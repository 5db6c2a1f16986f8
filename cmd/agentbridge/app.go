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
	"os"

	"github.com/rs/zerolog"

	"agentbridge/internal/audit"
	"agentbridge/internal/clis"
	"agentbridge/internal/config"
	"agentbridge/internal/dispatch"
	"agentbridge/internal/executor"
	"agentbridge/internal/mask"
	"agentbridge/internal/paths"
	"agentbridge/internal/sanitize"
	"agentbridge/internal/theme"
	"agentbridge/internal/tools"
)

// app is the wired component graph shared by every subcommand.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	catalog    *tools.Catalog
	clis       *clis.Manager
	dispatcher *dispatch.Dispatcher
	audit      *audit.Store
	colors     *theme.ColorScheme
	closers    []io.Closer
}

// newApp loads configuration and builds the dispatch pipeline.
func newApp(opts *rootOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	masker, err := mask.New(cfg.MaskConfig(os.LookupEnv))
	if err != nil {
		return nil, fmt.Errorf("invalid mask patterns: %w", err)
	}

	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	if opts.debug {
		level = "debug"
	}
	logFile := cfg.LogFile
	if opts.logFile != "" {
		logFile = opts.logFile
	}
	logger, logCloser, err := initLogger(level, logFile, masker)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if logCloser != nil {
		a.closers = append(a.closers, logCloser)
	}
	if err := a.wire(masker); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(masker *mask.Masker) error {
	cfg := a.cfg

	validator, err := paths.NewValidator(cfg.PathConfig())
	if err != nil {
		return fmt.Errorf("invalid path policy: %w", err)
	}
	a.catalog, err = tools.NewCatalog(cfg.CatalogOptions())
	if err != nil {
		return fmt.Errorf("failed to build tool catalog: %w", err)
	}
	for _, w := range cfg.Validate(a.catalog) {
		a.logger.Warn().Str("field", w.Field).Msg(w.Message)
	}

	runner := executor.New(cfg.ExecutorConfig(), a.logger.With().Str("component", "executor").Logger())
	registry := clis.NewRegistry(clis.DefaultCLIs, cfg.CLIOverrides())
	a.clis = clis.NewManager(registry, runner, a.logger.With().Str("component", "clis").Logger())

	deps := dispatch.Deps{
		Catalog:   a.catalog,
		Validator: validator,
		Sanitizer: sanitize.New(cfg.SanitizeConfig()),
		Runner:    runner,
		CLIs:      a.clis,
		Masker:    masker,
	}
	if cfg.AuditFile != "" {
		store, err := audit.Open(cfg.AuditFile, a.logger.With().Str("component", "audit").Logger())
		if err != nil {
			return fmt.Errorf("failed to open audit store: %w", err)
		}
		a.audit = store
		a.closers = append(a.closers, store)
		deps.Audit = store
	}

	a.dispatcher, err = dispatch.New(cfg.DispatchConfig(), deps, a.logger.With().Str("component", "dispatch").Logger())
	if err != nil {
		return err
	}

	themes, err := theme.NewManager(cfg.ThemeFile)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Falling back to default theme")
		themes = theme.NewManagerWithTheme(theme.DefaultTheme())
	}
	a.colors = themes.ColorScheme()
	return nil
}

// Close releases the audit store and the log file, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}
