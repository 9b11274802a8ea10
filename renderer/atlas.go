package renderer

import (
	"image/color"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/probegi/probe"
	"github.com/pthm-cable/probegi/volume"
)

// AtlasMode selects which atlas an AtlasView shows.
type AtlasMode int

const (
	ShowIrradiance AtlasMode = iota
	ShowVisibility
)

// AtlasView draws one volume's probe atlas as a texture, with the tile of
// every probe outlined in its state color.
type AtlasView struct {
	Mode     AtlasMode
	Exposure float32

	tex         rl.Texture2D
	texW, texH  int
	pixels      []color.RGBA
	initialized bool
}

// NewAtlasView creates an empty view. Textures are created on first Upload,
// after the raylib window exists.
func NewAtlasView() *AtlasView {
	return &AtlasView{Exposure: 1}
}

// Upload converts the selected atlas of v to pixels and sends them to the GPU.
func (a *AtlasView) Upload(v *volume.Volume) {
	atlas := v.Irradiance()
	if a.Mode == ShowVisibility {
		atlas = v.Visibility()
	}
	if atlas == nil {
		return
	}
	if !a.initialized || atlas.Width != a.texW || atlas.Height != a.texH {
		a.init(atlas.Width, atlas.Height)
	}

	gamma := v.Spec().IrradianceGamma
	maxDist := v.MaxDistance()
	for i := range a.pixels {
		t := atlas.Data[i*atlas.Channels : (i+1)*atlas.Channels]
		switch a.Mode {
		case ShowVisibility:
			d := toByte(float64(t[0]) / maxDist)
			a.pixels[i] = color.RGBA{R: d, G: d, B: d, A: 255}
		default:
			a.pixels[i] = color.RGBA{
				R: tonemap(t[0], gamma, a.Exposure),
				G: tonemap(t[1], gamma, a.Exposure),
				B: tonemap(t[2], gamma, a.Exposure),
				A: 255,
			}
		}
	}
	rl.UpdateTexture(a.tex, a.pixels)
}

func (a *AtlasView) init(w, h int) {
	if a.initialized {
		rl.UnloadTexture(a.tex)
	}
	img := rl.GenImageColor(w, h, rl.Black)
	a.tex = rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	rl.SetTextureFilter(a.tex, rl.FilterPoint)

	a.texW, a.texH = w, h
	a.pixels = make([]color.RGBA, w*h)
	a.initialized = true
}

// Draw renders the atlas at x, y scaled by scale screen pixels per texel.
func (a *AtlasView) Draw(v *volume.Volume, x, y, scale float32) {
	if !a.initialized {
		return
	}
	src := rl.Rectangle{Width: float32(a.texW), Height: float32(a.texH)}
	dst := rl.Rectangle{X: x, Y: y, Width: float32(a.texW) * scale, Height: float32(a.texH) * scale}
	rl.DrawTexturePro(a.tex, src, dst, rl.Vector2{}, 0, rl.White)

	atlas := v.Irradiance()
	if a.Mode == ShowVisibility {
		atlas = v.Visibility()
	}
	st := v.States()
	if atlas == nil || st == nil {
		return
	}
	g := v.Grid()
	tile := float32(atlas.Tile()) * scale
	for id, rec := range st.Device() {
		tx, ty := atlas.TileOrigin(g.GridIndex(id), g.Counts)
		rl.DrawRectangleLines(int32(x+float32(tx)*scale), int32(y+float32(ty)*scale), int32(tile), int32(tile), stateColor(rec.State))
	}
	label := "irradiance"
	if a.Mode == ShowVisibility {
		label = "visibility"
	}
	rl.DrawText(v.Name()+" "+label, int32(x), int32(y+dst.Height+4), 12, rl.LightGray)
}

// Unload frees resources.
func (a *AtlasView) Unload() {
	if a.initialized {
		rl.UnloadTexture(a.tex)
		a.initialized = false
	}
}

// tonemap decodes a gamma-encoded irradiance channel and maps it to a byte.
func tonemap(encoded float32, gamma float64, exposure float32) uint8 {
	x := math.Pow(math.Max(0, float64(encoded)), gamma) * float64(exposure)
	x = x / (1 + x)
	return toByte(math.Pow(x, 1/2.2))
}

func toByte(x float64) uint8 {
	return uint8(math.Max(0, math.Min(1, x)) * 255)
}

func stateColor(s probe.State) rl.Color {
	switch s {
	case probe.Off:
		return rl.Color{R: 60, G: 60, B: 60, A: 160}
	case probe.Asleep:
		return rl.Color{R: 70, G: 90, B: 160, A: 160}
	case probe.JustWoke, probe.Awake:
		return rl.Color{R: 100, G: 200, B: 100, A: 200}
	case probe.JustVigilant, probe.Vigilant:
		return rl.Color{R: 230, G: 120, B: 60, A: 200}
	default:
		return rl.Color{R: 200, G: 60, B: 200, A: 200}
	}
}
