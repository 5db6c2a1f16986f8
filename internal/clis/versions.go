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

package clis

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	apperrors "agentbridge/internal/errors"
	"agentbridge/internal/executor"
)

const (
	versionTimeout     = 10 * time.Second
	latestTimeout      = 30 * time.Second
	npmInstallTimeout  = 120 * time.Second
	brewUpgradeTimeout = 300 * time.Second
	maxParallelChecks  = 4
)

var semverPattern = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// VersionInfo is the installed state of one CLI.
type VersionInfo struct {
	Tool            string `json:"tool"`
	DisplayName     string `json:"display_name"`
	Installed       bool   `json:"installed"`
	Path            string `json:"path,omitempty"`
	Version         string `json:"version,omitempty"`
	Latest          string `json:"latest,omitempty"`
	UpdateAvailable bool   `json:"update_available"`
	Error           string `json:"error,omitempty"`
}

// UpdateResult describes one update attempt.
type UpdateResult struct {
	Tool     string `json:"tool"`
	Updated  bool   `json:"updated"`
	Skipped  bool   `json:"skipped"`
	Previous string `json:"previous_version,omitempty"`
	Current  string `json:"current_version,omitempty"`
	Message  string `json:"message"`
	Output   string `json:"output,omitempty"`
}

// Manager queries and updates CLIs. Every subprocess goes through runner.
type Manager struct {
	registry *Registry
	runner   executor.Runner
	logger   zerolog.Logger
}

// NewManager creates a Manager.
func NewManager(registry *Registry, runner executor.Runner, logger zerolog.Logger) *Manager {
	return &Manager{registry: registry, runner: runner, logger: logger}
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Version reports the installed version of one CLI.
func (m *Manager) Version(ctx context.Context, name string) VersionInfo {
	cli, ok := m.registry.Get(name)
	if !ok {
		return VersionInfo{Tool: name, Error: "unknown tool"}
	}
	info := VersionInfo{Tool: cli.Name, DisplayName: cli.DisplayName}
	path, err := m.registry.Resolve(cli.Name)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Installed = true
	info.Path = path

	res, err := m.runner.Run(ctx, executor.Spec{Path: path, Args: cli.VersionArgs, Timeout: versionTimeout})
	if err != nil {
		info.Error = err.Error()
		return info
	}
	if res.ExitCode != 0 {
		info.Error = fmt.Sprintf("version command exited with code %d", res.ExitCode)
		return info
	}
	info.Version = ParseVersion(res.Stdout)
	return info
}

// Versions checks every registered CLI concurrently. Results follow
// registry order.
func (m *Manager) Versions(ctx context.Context) []VersionInfo {
	names := m.registry.Names()
	results := make([]VersionInfo, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelChecks)
	for i, name := range names {
		g.Go(func() error {
			results[i] = m.Version(gctx, name)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Latest asks the package manager for the newest published version.
func (m *Manager) Latest(ctx context.Context, name string) (string, error) {
	cli, ok := m.registry.Get(name)
	if !ok {
		return "", apperrors.Newf(apperrors.CodeUnknownTool, "unknown CLI %q", name)
	}
	if cli.Manager != ManagerNPM {
		return "", apperrors.Newf(apperrors.CodeInvalidArgument, "latest version lookup is not supported for %s", cli.Manager)
	}
	res, err := m.runner.Run(ctx, executor.Spec{
		Path:    "npm",
		Args:    []string{"view", cli.Package, "version"},
		Timeout: latestTimeout,
	})
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = "failed to query npm registry"
		}
		return "", apperrors.New(apperrors.CodeNonZeroExit, msg)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// CheckUpdates combines installed and latest versions for every CLI.
func (m *Manager) CheckUpdates(ctx context.Context) []VersionInfo {
	infos := m.Versions(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelChecks)
	for i := range infos {
		info := &infos[i]
		if !info.Installed {
			continue
		}
		g.Go(func() error {
			latest, err := m.Latest(gctx, info.Tool)
			if err != nil {
				if info.Error == "" {
					info.Error = err.Error()
				}
				return nil
			}
			info.Latest = latest
			info.UpdateAvailable = info.Version != "" && CompareVersions(latest, info.Version) > 0
			return nil
		})
	}
	_ = g.Wait()
	return infos
}

// Update upgrades one CLI. Without force it is a no-op when the installed
// version is already the latest.
func (m *Manager) Update(ctx context.Context, name string, force bool) (UpdateResult, error) {
	cli, ok := m.registry.Get(name)
	if !ok {
		return UpdateResult{}, apperrors.Newf(apperrors.CodeUnknownTool, "unknown CLI %q", name)
	}
	result := UpdateResult{Tool: cli.Name}

	current := m.Version(ctx, cli.Name)
	result.Previous = current.Version

	var spec executor.Spec
	switch cli.Manager {
	case ManagerNPM:
		if !force && current.Installed && current.Version != "" {
			latest, err := m.Latest(ctx, cli.Name)
			if err == nil && CompareVersions(latest, current.Version) <= 0 {
				result.Skipped = true
				result.Current = current.Version
				result.Message = fmt.Sprintf("%s is already up to date (%s)", cli.DisplayName, current.Version)
				return result, nil
			}
		}
		args := []string{"install", "-g", cli.Package}
		if force {
			args = append(args, "--force")
		}
		spec = executor.Spec{Path: "npm", Args: args, Timeout: npmInstallTimeout}
	case ManagerHomebrew:
		spec = executor.Spec{Path: "brew", Args: []string{"upgrade", cli.Package}, Timeout: brewUpgradeTimeout}
	default:
		return result, apperrors.Newf(apperrors.CodeInvalidArgument,
			"%s is installed by a custom installer; updates are not supported", cli.DisplayName)
	}

	m.logger.Info().Str("tool", cli.Name).Str("manager", string(cli.Manager)).Bool("force", force).Msg("updating CLI")
	res, err := m.runner.Run(ctx, spec)
	if err != nil {
		return result, err
	}
	result.Output = strings.TrimSpace(res.Stdout)
	if res.ExitCode != 0 {
		result.Message = strings.TrimSpace(res.Stderr)
		return result, apperrors.Newf(apperrors.CodeNonZeroExit, "%s update exited with code %d", cli.DisplayName, res.ExitCode)
	}

	after := m.Version(ctx, cli.Name)
	result.Updated = true
	result.Current = after.Version
	result.Message = fmt.Sprintf("%s updated", cli.DisplayName)
	return result, nil
}

// ParseVersion extracts the first x.y.z triple from version output, or
// falls back to the first line.
func ParseVersion(output string) string {
	if match := semverPattern.FindString(output); match != "" {
		return match
	}
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(line)
}

// CompareVersions compares dotted numeric versions. A leading "v" and any
// pre-release or build suffix are ignored. Non-numeric versions compare
// as strings.
func CompareVersions(a, b string) int {
	pa, okA := numericParts(a)
	pb, okB := numericParts(b)
	if !okA || !okB {
		return strings.Compare(a, b)
	}
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x != y {
			if x > y {
				return 1
			}
			return -1
		}
	}
	return 0
}

func numericParts(v string) ([]int, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+ "); i >= 0 {
		v = v[:i]
	}
	if v == "" {
		return nil, false
	}
	fields := strings.Split(v, ".")
	parts := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		parts[i] = n
	}
	return parts, true
}
