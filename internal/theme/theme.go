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
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// Theme holds the console colors as hex codes.
type Theme struct {
	HeaderColor  string `json:"header_color"`
	SuccessColor string `json:"success_color"`
	ErrorColor   string `json:"error_color"`
	WarningColor string `json:"warning_color"`
	MutedColor   string `json:"muted_color"`
	OutputColor  string `json:"output_color"`
}

// ColorScheme provides the printers used by the console and the
// versions report.
type ColorScheme struct {
	Header  *color.Color
	Success *color.Color
	Error   *color.Color
	Warning *color.Color
	Muted   *color.Color
	Output  *color.Color
}

// DefaultTheme returns a theme with default values
func DefaultTheme() *Theme {
	return &Theme{
		HeaderColor:  "#cba6f7",
		SuccessColor: "#a6e3a1",
		ErrorColor:   "#f38ba8",
		WarningColor: "#fab387",
		MutedColor:   "#6c7086",
		OutputColor:  "#cdd6f4",
	}
}

// LoadTheme loads theme configuration from a JSON file. Keys missing from
// the file keep their defaults.
func LoadTheme(filepath string) (*Theme, error) {
	theme := DefaultTheme()
	if filepath == "" {
		return theme, nil
	}

	// If theme file doesn't exist, return default theme
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return theme, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, theme); err != nil {
		return nil, err
	}

	return theme, nil
}

// ToColorScheme converts hex colors to 24-bit terminal colors.
func (t *Theme) ToColorScheme() *ColorScheme {
	return &ColorScheme{
		Header:  hexColor(t.HeaderColor, color.Bold),
		Success: hexColor(t.SuccessColor),
		Error:   hexColor(t.ErrorColor, color.Bold),
		Warning: hexColor(t.WarningColor),
		Muted:   hexColor(t.MutedColor),
		Output:  hexColor(t.OutputColor),
	}
}

func hexColor(hex string, attrs ...color.Attribute) *color.Color {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return color.New(attrs...)
	}
	return color.RGB(r, g, b).Add(attrs...)
}

func parseHex(hex string) (r, g, b int, ok bool) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}

// DefaultColorScheme returns a scheme built from the basic ANSI palette,
// for terminals without 24-bit color.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Header:  color.New(color.FgCyan, color.Bold),
		Success: color.New(color.FgGreen),
		Error:   color.New(color.FgRed, color.Bold),
		Warning: color.New(color.FgYellow),
		Muted:   color.New(color.FgHiBlack),
		Output:  color.New(),
	}
}

// DisabledColorScheme returns a color scheme with all colors disabled (for NO_COLOR).
func DisabledColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range []*color.Color{scheme.Header, scheme.Success, scheme.Error, scheme.Warning, scheme.Muted, scheme.Output} {
		c.DisableColor()
	}
	return scheme
}
