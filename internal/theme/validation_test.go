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

package theme

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateColor(t *testing.T) {
	tests := []struct {
		color   string
		wantErr error
	}{
		{"#fff", nil},
		{"#A6E3A1", nil},
		{"", ErrEmptyColor},
		{"fff", ErrInvalidColor},
		{"#ggg", ErrInvalidColor},
		{"#ffff", ErrInvalidColor},
		{"red", ErrInvalidColor},
	}
	for _, tt := range tests {
		err := ValidateColor(tt.color)
		if tt.wantErr == nil {
			if err != nil {
				t.Errorf("ValidateColor(%q) unexpected error: %v", tt.color, err)
			}
			continue
		}
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidateColor(%q) = %v, want %v", tt.color, err, tt.wantErr)
		}
	}
}

func TestValidateTheme(t *testing.T) {
	if err := ValidateTheme(nil); err == nil {
		t.Fatal("expected error for nil theme")
	}

	theme := DefaultTheme()
	theme.WarningColor = "orange"
	err := ValidateTheme(theme)
	if err == nil || !strings.Contains(err.Error(), "warning_color") {
		t.Fatalf("expected warning_color error, got %v", err)
	}
}
