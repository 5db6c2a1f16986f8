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

package tools

import (
	"errors"
	"fmt"

	apperrors "agentbridge/internal/errors"
)

var (
	// ErrToolNotFound indicates the requested operation is not in the catalog.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidArguments indicates tool arguments are invalid or malformed.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

func invalidArgument(format string, args ...any) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf(format, args...), ErrInvalidArguments)
}

// NewUnknownToolError reports an operation name outside the catalog.
func NewUnknownToolError(name string) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeUnknownTool, fmt.Sprintf("unknown tool %q", name), ErrToolNotFound)
}
