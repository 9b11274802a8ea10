package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// Action is a request raised by the controls panel this frame.
type Action int

const (
	ActionNone Action = iota
	ActionGlobalLight
	ActionSmallLight
	ActionLargeObject
	ActionNextVolume
	ActionTogglePause
)

// ControlsPanel exposes the tunable GI parameters with raygui widgets.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool

	Hysteresis float32
	SunAngle   float32 // Degrees about the vertical axis
}

// NewControlsPanel creates a panel with the given starting hysteresis.
func NewControlsPanel(x, y, width int32, hysteresis float64) *ControlsPanel {
	return &ControlsPanel{
		renderer:   NewRenderer(),
		x:          x,
		y:          y,
		width:      width,
		visible:    true,
		Hysteresis: float32(hysteresis),
	}
}

// SetY moves the panel to a new top edge.
func (c *ControlsPanel) SetY(y int32) {
	c.y = y
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Draw renders the panel. It returns the action clicked this frame and
// whether either slider changed.
func (c *ControlsPanel) Draw() (action Action, changed bool) {
	if !c.visible {
		return ActionNone, false
	}

	r := c.renderer
	padding := r.Theme.Padding
	x := float32(c.x + padding)
	y := float32(c.y + padding)
	w := float32(c.width - padding*2)

	r.DrawPanel(c.x, c.y, c.width, 260)
	rl.DrawText("Controls", int32(x), int32(y), 16, rl.White)
	y += 24

	rl.DrawText(fmt.Sprintf("Hysteresis %.3f", c.Hysteresis), int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	y += 14
	h := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "", c.Hysteresis, 0, 0.999)
	if h != c.Hysteresis {
		c.Hysteresis = h
		changed = true
	}
	y += 26

	rl.DrawText(fmt.Sprintf("Sun angle %.0f", c.SunAngle), int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	y += 14
	a := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "", c.SunAngle, 0, 360)
	if a != c.SunAngle {
		c.SunAngle = a
		changed = true
	}
	y += 28

	buttons := []struct {
		label  string
		action Action
	}{
		{"Global light change", ActionGlobalLight},
		{"Small light change", ActionSmallLight},
		{"Large object change", ActionLargeObject},
		{"Next volume", ActionNextVolume},
		{"Pause", ActionTogglePause},
	}
	for _, b := range buttons {
		if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 22}, b.label) {
			action = b.action
		}
		y += 26
	}
	return action, changed
}
