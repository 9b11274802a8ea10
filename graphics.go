package main

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/camera"
	"github.com/pthm-cable/probegi/config"
	"github.com/pthm-cable/probegi/demo"
	"github.com/pthm-cable/probegi/renderer"
	"github.com/pthm-cable/probegi/ui"
)

const sidebarWidth = 300

// viewer is the windowed front end: a top-down map of the scene, the atlas
// of one volume, the HUD and the controls.
type viewer struct {
	d        *demo.Demo
	view     *camera.View
	atlas    *renderer.AtlasView
	hud      *ui.HUD
	controls *ui.ControlsPanel

	volume int
	paused bool
	scale  float32
}

func runWindow(cfg *config.Config, opts demo.Options, maxFrames int) error {
	w, h := int32(cfg.Screen.Width), int32(cfg.Screen.Height)
	rl.InitWindow(w, h, "Probe GI")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	d, err := demo.New(cfg, opts)
	if err != nil {
		return err
	}
	defer d.Close()

	mapW := float32(w - sidebarWidth)
	v := &viewer{
		d:        d,
		view:     camera.NewView(mapW, float32(h)/2, d.World().SceneBounds()),
		atlas:    renderer.NewAtlasView(),
		hud:      ui.NewHUD(w-sidebarWidth, 0, sidebarWidth),
		controls: ui.NewControlsPanel(w-sidebarWidth, 0, sidebarWidth, cfg.VolumeDefaults.Hysteresis),
		scale:    float32(max(1, cfg.Screen.AtlasScale)),
	}
	defer v.atlas.Unload()

	for !rl.WindowShouldClose() {
		v.input()
		if !v.paused {
			if err := d.Step(); err != nil {
				return err
			}
		}
		v.draw()

		if maxFrames > 0 && d.Orchestrator().Frame() >= maxFrames {
			break
		}
	}
	return nil
}

func (v *viewer) input() {
	if rl.IsKeyPressed(rl.KeySpace) {
		v.paused = !v.paused
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		v.nextVolume()
	}
	if rl.IsKeyPressed(rl.KeyV) {
		if v.atlas.Mode == renderer.ShowIrradiance {
			v.atlas.Mode = renderer.ShowVisibility
		} else {
			v.atlas.Mode = renderer.ShowIrradiance
		}
	}
	if rl.IsKeyPressed(rl.KeyH) {
		v.controls.Toggle()
	}
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		v.view.ZoomBy(float32(math.Pow(1.1, float64(wheel))))
	}
	if rl.IsMouseButtonDown(rl.MouseButtonRight) {
		delta := rl.GetMouseDelta()
		v.view.Pan(-delta.X, -delta.Y)
	}
}

func (v *viewer) nextVolume() {
	if n := len(v.d.Orchestrator().Volumes()); n > 0 {
		v.volume = (v.volume + 1) % n
	}
}

func (v *viewer) draw() {
	rl.BeginDrawing()
	defer rl.EndDrawing()
	rl.ClearBackground(rl.Color{R: 12, G: 14, B: 18, A: 255})

	v.drawMap()

	vols := v.d.Orchestrator().Volumes()
	name := ""
	if len(vols) > 0 {
		if v.volume >= len(vols) {
			v.volume = 0
		}
		vol := vols[v.volume]
		name = vol.Name()
		v.atlas.Upload(vol)
		v.atlas.Draw(vol, 10, v.view.ViewportH+10, v.scale)
	}

	y := v.hud.Draw(ui.HUDData{
		Title:  "Probe GI",
		Stats:  v.d.LastStats(),
		Volume: name,
		FPS:    rl.GetFPS(),
		Paused: v.paused,
	})

	v.controls.SetY(y + 4)
	action, changed := v.controls.Draw()
	if changed {
		v.d.Orchestrator().SetHysteresis(float64(v.controls.Hysteresis))
		v.d.SetSunAngle(float64(v.controls.SunAngle) * math.Pi / 180)
	}
	switch action {
	case ui.ActionGlobalLight:
		v.d.Orchestrator().OnGlobalLightChange()
	case ui.ActionSmallLight:
		v.d.Orchestrator().OnSmallLightChange()
	case ui.ActionLargeObject:
		v.d.Orchestrator().OnLargeObjectChange()
	case ui.ActionNextVolume:
		v.nextVolume()
	case ui.ActionTogglePause:
		v.paused = !v.paused
	}
}

// drawMap draws the scene from above: boxes, volume bounds and the camera.
func (v *viewer) drawMap() {
	boxes, mats := v.d.World().Geometry()
	for _, b := range boxes {
		m := mats[b.Material]
		c := rl.Color{R: toByte(m.Albedo.X), G: toByte(m.Albedo.Y), B: toByte(m.Albedo.Z), A: 200}
		if m.Emissive != (r3.Vec{}) {
			c = rl.Yellow
		}
		v.fillBox(b.Bounds, c)
	}

	for i, vol := range v.d.Orchestrator().Volumes() {
		c := rl.Color{R: 90, G: 160, B: 220, A: 160}
		if i == v.volume {
			c = rl.SkyBlue
		}
		v.outlineBox(vol.Grid().Bounds(), c)
	}

	cam := v.d.Camera().Position
	sx, sy := v.view.WorldToScreen(float32(cam.X), float32(cam.Z))
	rl.DrawCircle(int32(sx), int32(sy), 5, rl.White)
}

func (v *viewer) rect(b r3.Box) (x, y, w, h int32) {
	x0, y0 := v.view.WorldToScreen(float32(b.Min.X), float32(b.Min.Z))
	x1, y1 := v.view.WorldToScreen(float32(b.Max.X), float32(b.Max.Z))
	return int32(x0), int32(y0), int32(math.Max(1, float64(x1-x0))), int32(math.Max(1, float64(y1-y0)))
}

func (v *viewer) fillBox(b r3.Box, c rl.Color) {
	x, y, w, h := v.rect(b)
	rl.DrawRectangle(x, y, w, h, c)
}

func (v *viewer) outlineBox(b r3.Box, c rl.Color) {
	x, y, w, h := v.rect(b)
	rl.DrawRectangleLines(x, y, w, h, c)
}

func toByte(x float64) uint8 {
	return uint8(math.Max(0, math.Min(1, x)) * 255)
}
