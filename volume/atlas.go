package volume

import "github.com/pthm-cable/probegi/probe"

// Atlas is a 2D float texture holding one bordered octahedral tile per probe.
// Probe (x,y,z) owns the tile at column x + y*Nx, row z.
type Atlas struct {
	Width    int
	Height   int
	Channels int
	Side     int // Interior texels per tile side
	Data     []float32
}

// AtlasSize returns the texel dimensions of an atlas for counts and side.
func AtlasSize(counts probe.Int3, side int) (width, height int) {
	tile := side + 2
	return tile * counts.X * counts.Y, tile * counts.Z
}

func newAtlas(counts probe.Int3, side, channels int) *Atlas {
	w, h := AtlasSize(counts, side)
	return &Atlas{
		Width:    w,
		Height:   h,
		Channels: channels,
		Side:     side,
		Data:     make([]float32, w*h*channels),
	}
}

// Tile is the side of one tile including its border.
func (a *Atlas) Tile() int {
	return a.Side + 2
}

// TileOrigin returns the top-left texel of the tile for a physical probe coordinate.
func (a *Atlas) TileOrigin(p probe.Int3, counts probe.Int3) (x, y int) {
	return (p.X + p.Y*counts.X) * a.Tile(), p.Z * a.Tile()
}

// Texel returns the channels at absolute texel (x, y).
func (a *Atlas) Texel(x, y int) []float32 {
	i := (y*a.Width + x) * a.Channels
	return a.Data[i : i+a.Channels]
}

// Fill sets every channel of every texel to v.
func (a *Atlas) Fill(v float32) {
	for i := range a.Data {
		a.Data[i] = v
	}
}

// copyBorders mirrors the border ring of the tile at (tx, ty) from the
// opposite interior edges so bilinear lookups wrap across octahedral seams.
func (a *Atlas) copyBorders(tx, ty int) {
	n := a.Side
	cp := func(dx, dy, sx, sy int) {
		copy(a.Texel(tx+dx, ty+dy), a.Texel(tx+sx, ty+sy))
	}
	for i := 1; i <= n; i++ {
		cp(i, 0, n+1-i, 1)
		cp(i, n+1, n+1-i, n)
		cp(0, i, 1, n+1-i)
		cp(n+1, i, n, n+1-i)
	}
	cp(0, 0, n, n)
	cp(n+1, 0, 1, n)
	cp(0, n+1, n, 1)
	cp(n+1, n+1, 1, 1)
}

// CopyAllBorders runs the border pass over every tile.
func (a *Atlas) CopyAllBorders() {
	t := a.Tile()
	for ty := 0; ty < a.Height; ty += t {
		for tx := 0; tx < a.Width; tx += t {
			a.copyBorders(tx, ty)
		}
	}
}
