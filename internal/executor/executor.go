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

// Package executor runs external programs from an argument vector with a
// bounded lifetime and bounded output capture.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "agentbridge/internal/errors"
)

const (
	DefaultMaxOutputBytes = 1 << 20
	DefaultWaitDelay      = 2 * time.Second
)

// Spec describes one process invocation. Args are handed to the child as
// discrete tokens; nothing is ever parsed by a shell.
type Spec struct {
	Path    string
	Args    []string
	Dir     string
	Timeout time.Duration
	// Forward names extra ambient variables passed through for this run.
	Forward []string
	Env     map[string]string
}

// Result is the verbatim outcome of a process that ran to completion.
type Result struct {
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	Truncated  bool   `json:"truncated"`
	DurationMs int64  `json:"duration_ms"`
}

// Runner is implemented by Executor and by test doubles.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// Config holds the static execution policy.
type Config struct {
	// MaxOutputBytes caps stdout and stderr independently.
	MaxOutputBytes int
	// ForwardEnv lists ambient variables passed to children besides the
	// platform base set.
	ForwardEnv []string
	// WaitDelay bounds how long Wait keeps draining pipes after a kill.
	WaitDelay time.Duration
}

// Executor spawns child processes. It keeps no per-call state and is safe
// for concurrent use.
type Executor struct {
	maxOutput  int
	forwardEnv []string
	waitDelay  time.Duration
	environ    func() []string
	logger     zerolog.Logger
}

// New creates an Executor.
func New(cfg Config, logger zerolog.Logger) *Executor {
	e := &Executor{
		maxOutput:  cfg.MaxOutputBytes,
		forwardEnv: append([]string{}, cfg.ForwardEnv...),
		waitDelay:  cfg.WaitDelay,
		environ:    os.Environ,
		logger:     logger,
	}
	if e.maxOutput <= 0 {
		e.maxOutput = DefaultMaxOutputBytes
	}
	if e.waitDelay <= 0 {
		e.waitDelay = DefaultWaitDelay
	}
	return e
}

// Run executes spec and waits for it. A non-zero exit is reported through
// Result.ExitCode, not as an error. Errors carry one of the codes
// executable_not_found, spawn_failure, timeout or canceled.
func (e *Executor) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Timeout <= 0 {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, "timeout must be positive")
	}
	name := filepath.Base(spec.Path)

	path, err := ResolveExecutable(spec.Path)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeExecutableNotFound, fmt.Sprintf("%s not found", name), err)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeCanceled, fmt.Sprintf("%s canceled before start", name), err)
	}

	runCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	stdout := newBoundedBuffer(e.maxOutput)
	stderr := newBoundedBuffer(e.maxOutput)

	cmd := exec.CommandContext(runCtx, path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = e.buildEnv(spec.Forward, spec.Env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = e.waitDelay
	prepareCommand(cmd)
	cmd.Cancel = func() error { return terminate(cmd) }

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeSpawnFailure, fmt.Sprintf("failed to start %s", name), err)
	}
	e.logger.Debug().
		Str("executable", name).
		Int("pid", cmd.Process.Pid).
		Int("argc", len(spec.Args)).
		Str("dir", spec.Dir).
		Dur("timeout", spec.Timeout).
		Msg("process started")

	waitErr := cmd.Wait()
	duration := time.Since(start)

	if waitErr != nil && runCtx.Err() != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			e.logger.Debug().Str("executable", name).Msg("process canceled")
			return Result{}, apperrors.Wrap(apperrors.CodeCanceled, fmt.Sprintf("%s canceled", name), ctx.Err())
		}
		e.logger.Debug().Str("executable", name).Dur("elapsed", duration).Msg("process timed out")
		return Result{}, apperrors.Wrap(apperrors.CodeTimeout,
			fmt.Sprintf("%s timed out after %s", name, spec.Timeout), context.DeadlineExceeded)
	}

	result := Result{
		ExitCode:   exitCode(cmd, waitErr),
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Truncated:  stdout.Truncated() || stderr.Truncated(),
		DurationMs: duration.Milliseconds(),
	}
	if waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay) {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Result{}, apperrors.Wrap(apperrors.CodeSpawnFailure, fmt.Sprintf("failed waiting for %s", name), waitErr)
		}
	}
	e.logger.Debug().
		Str("executable", name).
		Int("exit_code", result.ExitCode).
		Bool("truncated", result.Truncated).
		Int64("duration_ms", result.DurationMs).
		Msg("process finished")
	return result, nil
}

// ResolveExecutable returns an absolute path for name. Names containing a
// path separator must point at an executable regular file; bare names are
// looked up on PATH.
func ResolveExecutable(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("empty executable path")
	}
	if !strings.ContainsAny(name, `/\`) {
		return exec.LookPath(name)
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", abs)
	}
	if !isExecutable(info) {
		return "", fmt.Errorf("%s is not executable", abs)
	}
	return abs, nil
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

// buildEnv starts from an empty environment and copies in only allowed
// ambient variables, then applies overrides.
func (e *Executor) buildEnv(forward []string, overrides map[string]string) []string {
	allowed := make(map[string]bool, len(baseEnvKeys)+len(e.forwardEnv)+len(forward))
	for _, keys := range [][]string{baseEnvKeys, e.forwardEnv, forward} {
		for _, k := range keys {
			allowed[envKey(k)] = true
		}
	}

	env := make(map[string]string)
	for _, kv := range e.environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		if !allowed[envKey(k)] || isLoaderVariable(k) {
			continue
		}
		env[k] = v
	}
	for k, v := range overrides {
		if k == "" || strings.ContainsRune(k, '=') {
			continue
		}
		env[k] = v
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func isLoaderVariable(key string) bool {
	upper := strings.ToUpper(key)
	return strings.HasPrefix(upper, "LD_") ||
		strings.HasPrefix(upper, "DYLD_") ||
		strings.HasPrefix(upper, "BASH_FUNC_")
}
