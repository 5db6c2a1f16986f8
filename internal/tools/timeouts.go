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

import "time"

// TimeoutConfig overrides catalog timeouts per operation.
type TimeoutConfig struct {
	Default      time.Duration
	PerOperation map[string]time.Duration
}

// TimeoutFor returns the configured timeout for name, falling back to the
// catalog value and then to Default.
func (t TimeoutConfig) TimeoutFor(name string, catalog time.Duration) time.Duration {
	if t.PerOperation != nil {
		if timeout, ok := t.PerOperation[name]; ok && timeout > 0 {
			return timeout
		}
	}
	if catalog > 0 {
		return catalog
	}
	return t.Default
}
