package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/probegi/probe"
	"github.com/pthm-cable/probegi/telemetry"
)

// HUDData holds everything the main HUD shows.
type HUDData struct {
	Title  string
	Stats  telemetry.FrameStats
	Volume string // Volume shown in the atlas view
	FPS    int32
	Paused bool
}

// HUD renders the frame summary and the probe state breakdown.
type HUD struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewHUD creates a HUD anchored at x, y.
func NewHUD(x, y, width int32) *HUD {
	return &HUD{renderer: NewRenderer(), x: x, y: y, width: width}
}

// Draw renders the HUD and returns the Y position below it.
func (h *HUD) Draw(data HUDData) int32 {
	r := h.renderer
	padding := r.Theme.Padding
	lineHeight := r.Theme.LineHeight
	s := data.Stats

	rows := int32(6 + probe.NumStates)
	r.DrawPanel(h.x, h.y, h.width, rows*(lineHeight+2)+padding*2+lineHeight)

	x := h.x + padding
	y := h.y + padding
	rl.DrawText(data.Title, x, y, 16, rl.White)
	y += lineHeight + 4

	y = r.DrawLabelValue(x, y, "Frame", fmt.Sprintf("%d  (%d fps)", s.Frame, data.FPS))
	y = r.DrawLabelValue(x, y, "Rays", fmt.Sprintf("%d", s.Rays))
	y = r.DrawLabelValue(x, y, "Traced", fmt.Sprintf("%d / skipped %d", s.Traced, s.Skipped))
	if s.InitFramesPending > 0 {
		y = r.DrawLabelValue(x, y, "Init", fmt.Sprintf("%d frames", s.InitFramesPending))
	} else {
		y = r.DrawLabelValue(x, y, "Init", "done")
	}
	y = r.DrawLabelValue(x, y, "Atlas", data.Volume)

	total := 0
	for _, n := range s.States {
		total += n
	}
	y = r.DrawSectionHeader(x, y, "Probe states")
	for st := 0; st < probe.NumStates; st++ {
		y = r.DrawCountBar(x, y, probe.State(st).String(), s.States[st], total, StateColors[st], h.width-padding*2)
	}

	if data.Paused {
		rl.DrawText("PAUSED", x, y, 16, rl.Yellow)
		y += lineHeight
	}
	return y + padding
}
