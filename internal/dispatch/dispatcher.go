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

// Package dispatch drives one tool request through validation,
// sanitization, execution and masking.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"agentbridge/internal/clis"
	apperrors "agentbridge/internal/errors"
	"agentbridge/internal/executor"
	"agentbridge/internal/mask"
	"agentbridge/internal/paths"
	"agentbridge/internal/sanitize"
	"agentbridge/internal/tools"
)

// AuditSink receives one record per finished request.
type AuditSink interface {
	Record(ctx context.Context, rec Record) error
}

// Config holds dispatcher behavior read from configuration.
type Config struct {
	Timeouts tools.TimeoutConfig
	// MaskResponses applies the masker to output returned to the caller,
	// not only to logs and audit records.
	MaskResponses bool
}

// Deps are the components a Dispatcher composes. Audit is optional.
type Deps struct {
	Catalog   *tools.Catalog
	Validator *paths.Validator
	Sanitizer *sanitize.Sanitizer
	Runner    executor.Runner
	CLIs      *clis.Manager
	Masker    *mask.Masker
	Audit     AuditSink
}

// Dispatcher is safe for concurrent use; it holds only read-only state.
type Dispatcher struct {
	catalog   *tools.Catalog
	validator *paths.Validator
	sanitizer *sanitize.Sanitizer
	runner    executor.Runner
	clis      *clis.Manager
	masker    *mask.Masker
	audit     AuditSink
	cfg       Config
	logger    zerolog.Logger
	newID     func() string
	now       func() time.Time
}

// New assembles a dispatcher. Catalog, Validator, Sanitizer, Runner and
// CLIs are required.
func New(cfg Config, deps Deps, logger zerolog.Logger) (*Dispatcher, error) {
	switch {
	case deps.Catalog == nil:
		return nil, apperrors.New(apperrors.CodeInternal, "dispatcher requires a catalog")
	case deps.Validator == nil:
		return nil, apperrors.New(apperrors.CodeInternal, "dispatcher requires a path validator")
	case deps.Sanitizer == nil:
		return nil, apperrors.New(apperrors.CodeInternal, "dispatcher requires a sanitizer")
	case deps.Runner == nil:
		return nil, apperrors.New(apperrors.CodeInternal, "dispatcher requires a runner")
	case deps.CLIs == nil:
		return nil, apperrors.New(apperrors.CodeInternal, "dispatcher requires a CLI manager")
	}
	masker := deps.Masker
	if masker == nil {
		masker = mask.Default()
	}
	return &Dispatcher{
		catalog:   deps.Catalog,
		validator: deps.Validator,
		sanitizer: deps.Sanitizer,
		runner:    deps.Runner,
		clis:      deps.CLIs,
		masker:    masker,
		audit:     deps.Audit,
		cfg:       cfg,
		logger:    logger,
		newID:     uuid.NewString,
		now:       time.Now,
	}, nil
}

// Catalog returns the operations this dispatcher serves.
func (d *Dispatcher) Catalog() *tools.Catalog {
	return d.catalog
}

// request tracks one dispatch through its states.
type request struct {
	resp    Response
	args    tools.Args
	started time.Time
	logger  zerolog.Logger
}

func (r *request) transition(state State) {
	r.resp.State = state
	r.logger.Debug().Str("state", string(state)).Msg("request transition")
}

func (r *request) stop(state State, err error) {
	r.resp.Success = false
	r.resp.Error = &ErrorInfo{Code: apperrors.CodeOf(err), Message: err.Error()}
	r.transition(state)
}

// Dispatch runs req to completion. Every outcome, rejections included,
// is described by the returned Response.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	r := d.begin(req)
	d.run(ctx, r, req)
	return d.finish(ctx, r, req)
}

func (d *Dispatcher) begin(req Request) *request {
	id := req.ID
	if id == "" {
		id = d.newID()
	}
	r := &request{
		resp: Response{
			RequestID: id,
			Operation: req.Operation,
			ExitCode:  NotExecuted,
		},
		started: d.now(),
		logger: d.logger.With().
			Str("request_id", id).
			Str("operation", req.Operation).
			Logger(),
	}
	r.transition(StateReceived)
	return r
}

func (d *Dispatcher) run(ctx context.Context, r *request, req Request) {
	op, err := d.catalog.Lookup(req.Operation)
	if err != nil {
		r.stop(StateRejected, err)
		return
	}

	r.transition(StateValidating)
	args, err := op.Validate(req.Arguments)
	if err != nil {
		r.stop(StateRejected, err)
		return
	}
	if err := d.checkPaths(op, args); err != nil {
		r.stop(StateRejected, err)
		return
	}
	r.args = args

	r.transition(StateSanitizing)
	if err := d.scanPrompts(r, op, args); err != nil {
		r.stop(StateRejected, err)
		return
	}

	r.transition(StateExecuting)
	if op.Maintenance() {
		d.runMaintenance(ctx, r, op, args)
		return
	}
	d.runCLI(ctx, r, op, args)
}

// checkPaths validates every path argument and replaces it with its
// resolved form, so the child sees exactly what was checked.
func (d *Dispatcher) checkPaths(op *tools.Operation, args tools.Args) error {
	for _, f := range op.Fields {
		if f.Kind != tools.KindPath || !args.Has(f.Name) {
			continue
		}
		decision := d.validator.CheckWith(args.String(f.Name), f.PathOptions)
		if !decision.Allowed {
			return apperrors.Newf(apperrors.CodePathRejected, "%s: %s", f.Name, decision.Reason)
		}
		args[f.Name] = decision.Resolved
	}
	return nil
}

func (d *Dispatcher) scanPrompts(r *request, op *tools.Operation, args tools.Args) error {
	for _, f := range op.Fields {
		if f.Kind != tools.KindPrompt || !args.Has(f.Name) {
			continue
		}
		report, err := d.sanitizer.Scan(f.Name, args.String(f.Name))
		if err != nil {
			return err
		}
		if finding, blocked := report.Blocking(); blocked {
			r.logger.Warn().
				Str("field", f.Name).
				Str("pattern", finding.PatternID).
				Str("category", finding.Category).
				Msg("prompt rejected")
			return apperrors.Newf(apperrors.CodeInjectionDetected,
				"%s: %s pattern detected", f.Name, finding.Category)
		}
		for _, w := range report.Warnings() {
			r.resp.Warnings = append(r.resp.Warnings,
				fmt.Sprintf("%s: possible %s (%s)", f.Name, w.Category, w.PatternID))
		}
	}
	return nil
}

func (d *Dispatcher) runCLI(ctx context.Context, r *request, op *tools.Operation, args tools.Args) {
	path, err := d.clis.Registry().Resolve(op.CLI)
	if err != nil {
		r.stop(StateFailed, err)
		return
	}
	argv, err := op.Build(args)
	if err != nil {
		r.stop(StateFailed, apperrors.Wrap(apperrors.CodeInternal, "failed to build arguments", err))
		return
	}
	var forward []string
	if cli, ok := d.clis.Registry().Get(op.CLI); ok {
		forward = cli.ForwardEnv
	}
	spec := executor.Spec{
		Path:    path,
		Args:    argv,
		Timeout: op.TimeoutFor(args, d.cfg.Timeouts),
		Forward: forward,
		Env:     op.Env,
	}
	if op.DirArg != "" {
		spec.Dir = args.String(op.DirArg)
	}

	result, err := d.runner.Run(ctx, spec)
	if err != nil {
		r.stop(StateFailed, err)
		return
	}

	r.resp.ExitCode = result.ExitCode
	r.resp.Output = tools.CleanOutput(result.Stdout)
	r.resp.Stderr = tools.CleanOutput(result.Stderr)
	r.resp.Truncated = result.Truncated
	r.resp.DurationMs = result.DurationMs
	if result.Truncated {
		r.resp.Warnings = append(r.resp.Warnings, apperrors.WarnOutputTruncated)
	}

	if result.ExitCode != 0 {
		r.resp.Error = &ErrorInfo{
			Code:    apperrors.CodeNonZeroExit,
			Message: fmt.Sprintf("%s exited with code %d", op.CLI, result.ExitCode),
		}
		r.transition(StateCompleted)
		return
	}
	r.resp.Success = true
	if op.Parse != nil {
		data, err := op.Parse(r.resp.Output)
		if err != nil {
			r.resp.Success = false
			r.resp.Error = &ErrorInfo{Code: apperrors.CodeOf(err), Message: err.Error()}
		} else {
			r.resp.Data = data
		}
	}
	r.transition(StateCompleted)
}

func (d *Dispatcher) runMaintenance(ctx context.Context, r *request, op *tools.Operation, args tools.Args) {
	start := d.now()
	defer func() { r.resp.DurationMs = d.now().Sub(start).Milliseconds() }()

	switch op.Name {
	case tools.OpCheckVersions:
		infos := d.clis.Versions(ctx)
		r.resp.Output = versionSummary(infos, false)
		r.resp.Data = map[string]any{"tools": infos}
	case tools.OpCheckUpdates:
		infos := d.clis.CheckUpdates(ctx)
		r.resp.Output = versionSummary(infos, true)
		r.resp.Data = map[string]any{"tools": infos}
	case tools.OpUpdateTool:
		result, err := d.clis.Update(ctx, args.String("tool_name"), args.Bool("force"))
		if err != nil {
			r.stop(StateFailed, err)
			return
		}
		r.resp.Output = result.Message
		r.resp.Data = map[string]any{"result": result}
	default:
		r.stop(StateFailed, apperrors.Newf(apperrors.CodeInternal, "no handler for %s", op.Name))
		return
	}
	if err := ctx.Err(); err != nil {
		r.stop(StateFailed, apperrors.Wrap(apperrors.CodeCanceled, op.Name+" canceled", err))
		return
	}
	r.resp.ExitCode = 0
	r.resp.Success = true
	r.transition(StateCompleted)
}

func versionSummary(infos []clis.VersionInfo, withLatest bool) string {
	var b strings.Builder
	for _, info := range infos {
		b.WriteString(info.Tool)
		b.WriteString(": ")
		switch {
		case !info.Installed:
			b.WriteString("not installed")
		case info.Version == "":
			b.WriteString("unknown version")
		default:
			b.WriteString(info.Version)
		}
		if withLatest && info.Latest != "" {
			fmt.Fprintf(&b, " (latest %s", info.Latest)
			if info.UpdateAvailable {
				b.WriteString(", update available")
			}
			b.WriteString(")")
		}
		if info.Error != "" {
			fmt.Fprintf(&b, " [%s]", info.Error)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// finish logs the outcome, writes the audit record and applies response
// masking when configured.
func (d *Dispatcher) finish(ctx context.Context, r *request, req Request) Response {
	resp := r.resp
	if resp.DurationMs == 0 && !resp.Executed() {
		resp.DurationMs = d.now().Sub(r.started).Milliseconds()
	}

	event := r.logger.Info()
	if !resp.Success {
		event = r.logger.Warn()
	}
	event = event.
		Str("state", string(resp.State)).
		Bool("success", resp.Success).
		Int("exit_code", resp.ExitCode).
		Int64("duration_ms", resp.DurationMs)
	if resp.Error != nil {
		event = event.Str("error_code", string(resp.Error.Code)).Str("error", d.masker.Mask(resp.Error.Message))
	}
	if resp.Stderr != "" && !resp.Success {
		event = event.Str("stderr_tail", d.masker.Mask(tail(resp.Stderr, 200)))
	}
	event.Msg("request finished")

	if d.audit != nil {
		if err := d.audit.Record(context.WithoutCancel(ctx), d.record(r, req, resp)); err != nil {
			r.logger.Warn().Err(err).Msg("audit record failed")
		}
	}

	if d.cfg.MaskResponses {
		resp.Output = d.masker.Mask(resp.Output)
		resp.Stderr = d.masker.Mask(resp.Stderr)
		if resp.Error != nil {
			resp.Error.Message = d.masker.Mask(resp.Error.Message)
		}
	}
	return resp
}

func (d *Dispatcher) record(r *request, req Request, resp Response) Record {
	rec := Record{
		RequestID:  resp.RequestID,
		Operation:  resp.Operation,
		State:      resp.State,
		Success:    resp.Success,
		ExitCode:   resp.ExitCode,
		Output:     d.masker.Mask(resp.Output),
		Stderr:     d.masker.Mask(resp.Stderr),
		Truncated:  resp.Truncated,
		DurationMs: resp.DurationMs,
		StartedAt:  r.started.UTC(),
	}
	if resp.Error != nil {
		rec.ErrorCode = string(resp.Error.Code)
		rec.ErrorMessage = d.masker.Mask(resp.Error.Message)
	}
	args := req.Arguments
	if r.args != nil {
		args = r.args
	}
	if len(args) > 0 {
		if raw, err := json.Marshal(args); err == nil {
			rec.Arguments = d.masker.Mask(string(raw))
		}
	}
	return rec
}

func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// DispatchOpenAIToolCall runs a tool call produced by an OpenAI-compatible
// model. The call id becomes the request id.
func (d *Dispatcher) DispatchOpenAIToolCall(ctx context.Context, call openai.ToolCall) Response {
	name, args, err := tools.ParseOpenAIToolCall(call)
	if err != nil {
		req := Request{ID: call.ID, Operation: name}
		r := d.begin(req)
		r.stop(StateRejected, err)
		return d.finish(ctx, r, req)
	}
	return d.Dispatch(ctx, Request{ID: call.ID, Operation: name, Arguments: args})
}
