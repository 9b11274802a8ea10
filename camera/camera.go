// Package camera moves the demo viewpoint through the scene and maps the
// scene's ground plane onto the screen for the top-down debug view.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/config"
)

// Path is the viewpoint the camera-locked volumes follow. It moves at a
// constant velocity and bounces off the walls of its bounds.
type Path struct {
	Position r3.Vec
	Velocity r3.Vec // World units per second
	Bounds   r3.Box // Zero box means unbounded
	DT       float64
}

// NewPath creates a path from the camera section of the config.
func NewPath(c config.CameraConfig, bounds r3.Box) *Path {
	return &Path{
		Position: r3.Vec{X: c.Start[0], Y: c.Start[1], Z: c.Start[2]},
		Velocity: r3.Vec{X: c.Velocity[0], Y: c.Velocity[1], Z: c.Velocity[2]},
		Bounds:   bounds,
		DT:       c.DT,
	}
}

// Step advances one frame and returns the new position.
func (p *Path) Step() r3.Vec {
	next := r3.Add(p.Position, r3.Scale(p.DT, p.Velocity))
	if p.Bounds != (r3.Box{}) {
		next.X, p.Velocity.X = reflect(next.X, p.Velocity.X, p.Bounds.Min.X, p.Bounds.Max.X)
		next.Y, p.Velocity.Y = reflect(next.Y, p.Velocity.Y, p.Bounds.Min.Y, p.Bounds.Max.Y)
		next.Z, p.Velocity.Z = reflect(next.Z, p.Velocity.Z, p.Bounds.Min.Z, p.Bounds.Max.Z)
	}
	p.Position = next
	return next
}

// reflect folds x back into [lo, hi], flipping v when a wall was crossed.
func reflect(x, v, lo, hi float64) (float64, float64) {
	if hi <= lo {
		return x, v
	}
	if x > hi {
		return math.Max(lo, 2*hi-x), -math.Abs(v)
	}
	if x < lo {
		return math.Min(hi, 2*lo-x), math.Abs(v)
	}
	return x, v
}

// View maps the scene's XZ ground plane to screen pixels.
type View struct {
	// Center is the ground point shown in the middle of the viewport
	X, Z float32

	// Zoom in screen pixels per world unit
	Zoom float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Zoom constraints
	MinZoom, MaxZoom float32
}

// NewView creates a view that fits bounds into the viewport.
func NewView(viewportW, viewportH float32, bounds r3.Box) *View {
	w := float32(bounds.Max.X - bounds.Min.X)
	d := float32(bounds.Max.Z - bounds.Min.Z)
	zoom := float32(1)
	if w > 0 && d > 0 {
		zoom = minf(viewportW/w, viewportH/d) * 0.9
	}
	return &View{
		X:         float32(bounds.Min.X+bounds.Max.X) / 2,
		Z:         float32(bounds.Min.Z+bounds.Max.Z) / 2,
		Zoom:      zoom,
		ViewportW: viewportW,
		ViewportH: viewportH,
		MinZoom:   zoom / 4,
		MaxZoom:   zoom * 8,
	}
}

// WorldToScreen converts ground coordinates to screen coordinates.
func (c *View) WorldToScreen(wx, wz float32) (sx, sy float32) {
	sx = c.ViewportW/2 + (wx-c.X)*c.Zoom
	sy = c.ViewportH/2 + (wz-c.Z)*c.Zoom
	return sx, sy
}

// ScreenToWorld converts screen coordinates to ground coordinates.
func (c *View) ScreenToWorld(sx, sy float32) (wx, wz float32) {
	wx = c.X + (sx-c.ViewportW/2)/c.Zoom
	wz = c.Z + (sy-c.ViewportH/2)/c.Zoom
	return wx, wz
}

// Pan moves the view by the given delta in screen pixels.
func (c *View) Pan(dx, dy float32) {
	c.X += dx / c.Zoom
	c.Z += dy / c.Zoom
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *View) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *View) ZoomBy(factor float32) {
	c.SetZoom(c.Zoom * factor)
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// clamp restricts a value to a range.
func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
