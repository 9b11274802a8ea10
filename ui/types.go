// Package ui draws the debug panels of the GI demo.
package ui

import rl "github.com/gen2brain/raylib-go/raylib"

// Theme holds UI styling constants.
type Theme struct {
	PanelBg        rl.Color
	PanelBorder    rl.Color
	SectionHeader  rl.Color
	LabelColor     rl.Color
	ValueColor     rl.Color
	BarBg          rl.Color
	BarFill        rl.Color
	Padding        int32
	LineHeight     int32
	LabelWidth     int32
	BarHeight      int32
	FontSize       int32
	HeaderFontSize int32
}

// DefaultTheme returns the default UI theme.
func DefaultTheme() Theme {
	return Theme{
		PanelBg:        rl.Color{R: 20, G: 25, B: 30, A: 240},
		PanelBorder:    rl.Color{R: 60, G: 70, B: 80, A: 255},
		SectionHeader:  rl.Yellow,
		LabelColor:     rl.LightGray,
		ValueColor:     rl.LightGray,
		BarBg:          rl.Color{R: 40, G: 40, B: 40, A: 255},
		BarFill:        rl.Color{R: 100, G: 150, B: 200, A: 255},
		Padding:        10,
		LineHeight:     16,
		LabelWidth:     90,
		BarHeight:      12,
		FontSize:       12,
		HeaderFontSize: 14,
	}
}

// StateColors colors each probe state in bars and atlas overlays.
var StateColors = [...]rl.Color{
	{R: 60, G: 60, B: 60, A: 255},    // Off
	{R: 70, G: 90, B: 160, A: 255},   // Asleep
	{R: 120, G: 200, B: 255, A: 255}, // JustWoke
	{R: 100, G: 200, B: 100, A: 255}, // Awake
	{R: 255, G: 200, B: 100, A: 255}, // JustVigilant
	{R: 230, G: 120, B: 60, A: 255},  // Vigilant
	{R: 200, G: 60, B: 200, A: 255},  // Uninitialized
}
