// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package adaptive

import (
	"fmt"

	"github.com/relabs-tech/adaptive_reader/internal/light"
)

// Theme is a reading presentation mode chosen from ambient light.
type Theme int

const (
	NormalMode Theme = iota
	NightMode
	HighContrastMode
)

var themeNames = [...]string{"NORMAL_MODE", "NIGHT_MODE", "HIGH_CONTRAST_MODE"}

func (t Theme) String() string {
	if t < 0 || int(t) >= len(themeNames) {
		return "UNKNOWN"
	}
	return themeNames[t]
}

func (t Theme) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Theme) UnmarshalText(b []byte) error {
	for v := NormalMode; v <= HighContrastMode; v++ {
		if v.String() == string(b) {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("unknown theme %q", b)
}

// ParseTheme accepts the names produced by String.
func ParseTheme(s string) (Theme, bool) {
	for i, n := range themeNames {
		if n == s {
			return Theme(i), true
		}
	}
	return NormalMode, false
}

// ThemeFor maps a light category to a theme.
func ThemeFor(c light.Category) Theme {
	switch c {
	case light.Dark, light.VeryDim:
		return NightMode
	case light.Bright, light.VeryBright:
		return HighContrastMode
	default:
		return NormalMode
	}
}

// TargetBrightness is the screen brightness each theme is designed for.
func TargetBrightness(t Theme) float64 {
	switch t {
	case NightMode:
		return 0.15
	case HighContrastMode:
		return 0.9
	default:
		return 0.5
	}
}

// BlueLightIntensity is the strength of the warm overlay for a theme.
func BlueLightIntensity(t Theme) float64 {
	switch t {
	case NightMode:
		return 0.6
	case HighContrastMode:
		return 0.0
	default:
		return 0.3
	}
}

// Scheme is a colour scheme in "#RRGGBB" notation.
type Scheme struct {
	Primary      string `json:"primary"`
	OnPrimary    string `json:"on_primary"`
	Secondary    string `json:"secondary"`
	OnSecondary  string `json:"on_secondary"`
	Tertiary     string `json:"tertiary"`
	Background   string `json:"background"`
	OnBackground string `json:"on_background"`
	Surface      string `json:"surface"`
	OnSurface    string `json:"on_surface"`
	Error        string `json:"error"`
	OnError      string `json:"on_error"`
}

var schemes = map[Theme]Scheme{
	NightMode: {
		Primary:      "#D4A574",
		OnPrimary:    "#0D0D0D",
		Secondary:    "#B8860B",
		OnSecondary:  "#0D0D0D",
		Tertiary:     "#CD853F",
		Background:   "#0A0A0A",
		OnBackground: "#D4A574",
		Surface:      "#1A1A1A",
		OnSurface:    "#D4A574",
		Error:        "#CF6679",
		OnError:      "#000000",
	},
	NormalMode: {
		Primary:      "#E63946",
		OnPrimary:    "#FFFFFF",
		Secondary:    "#FFB7C5",
		OnSecondary:  "#0D0D0D",
		Tertiary:     "#FFD93D",
		Background:   "#0D0D0D",
		OnBackground: "#F8F8F2",
		Surface:      "#1E1E2E",
		OnSurface:    "#F8F8F2",
		Error:        "#CF6679",
		OnError:      "#000000",
	},
	HighContrastMode: {
		Primary:      "#FF4444",
		OnPrimary:    "#FFFFFF",
		Secondary:    "#FFAA00",
		OnSecondary:  "#000000",
		Tertiary:     "#FFFF00",
		Background:   "#000000",
		OnBackground: "#FFFFFF",
		Surface:      "#1A1A1A",
		OnSurface:    "#FFFFFF",
		Error:        "#FF0000",
		OnError:      "#FFFFFF",
	},
}

// SchemeFor returns the colour scheme for t. Unknown themes get the normal
// scheme.
func SchemeFor(t Theme) Scheme {
	if s, ok := schemes[t]; ok {
		return s
	}
	return schemes[NormalMode]
}
