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

package dispatch

import (
	"time"

	apperrors "agentbridge/internal/errors"
)

// State is a step of the per-request state machine.
type State string

const (
	StateReceived   State = "received"
	StateValidating State = "validating"
	StateSanitizing State = "sanitizing"
	StateExecuting  State = "executing"
	StateCompleted  State = "completed"
	StateRejected   State = "rejected"
	StateFailed     State = "failed"
)

// NotExecuted is the exit code reported when no child process exited on
// its own: rejections, timeouts, spawn failures and cancellations.
const NotExecuted = -1

// Request names an operation and carries its raw arguments.
type Request struct {
	ID        string         `json:"id,omitempty"`
	Operation string         `json:"operation"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ErrorInfo describes why a request did not succeed.
type ErrorInfo struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

// Response is the structured outcome of one request.
type Response struct {
	RequestID  string         `json:"request_id"`
	Operation  string         `json:"operation"`
	State      State          `json:"state"`
	Success    bool           `json:"success"`
	ExitCode   int            `json:"exit_code"`
	Output     string         `json:"output"`
	Stderr     string         `json:"stderr,omitempty"`
	Truncated  bool           `json:"truncated"`
	DurationMs int64          `json:"duration_ms"`
	Error      *ErrorInfo     `json:"error,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Executed reports whether a child process ran to completion.
func (r Response) Executed() bool {
	return r.State == StateCompleted && r.ExitCode != NotExecuted
}

// Record is the persisted form of a finished request. Text fields are
// masked before a Record is built.
type Record struct {
	RequestID    string
	Operation    string
	State        State
	Success      bool
	ExitCode     int
	ErrorCode    string
	ErrorMessage string
	Arguments    string
	Output       string
	Stderr       string
	Truncated    bool
	DurationMs   int64
	StartedAt    time.Time
}
