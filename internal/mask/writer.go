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

package mask

import "io"

// Writer masks everything written through it. zerolog emits one event per
// Write, so secrets never straddle two calls.
type Writer struct {
	out    io.Writer
	masker *Masker
}

// NewWriter wraps out.
func NewWriter(out io.Writer, masker *Masker) *Writer {
	return &Writer{out: out, masker: masker}
}

func (w *Writer) Write(p []byte) (int, error) {
	masked := w.masker.Mask(string(p))
	if _, err := io.WriteString(w.out, masked); err != nil {
		return 0, err
	}
	return len(p), nil
}
