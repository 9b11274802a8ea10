package scene

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/config"
	"github.com/pthm-cable/probegi/tracer"
)

// World is the scene graph seen by the GI orchestrator.
type World struct {
	world *ecs.World

	boxMapper *ecs.Map3[Bounds, Surface, Label]
	boxFilter *ecs.Filter2[Bounds, Surface]
	movers    *ecs.Filter2[Bounds, Motion]
	bounds    *ecs.Filter1[Bounds]

	motionMap *ecs.Map1[Motion]
	staticMap *ecs.Map1[Static]
	labelMap  *ecs.Map1[Label]

	count int
}

// NewWorld creates an empty scene.
func NewWorld() *World {
	world := ecs.NewWorld()
	return &World{
		world:     world,
		boxMapper: ecs.NewMap3[Bounds, Surface, Label](world),
		boxFilter: ecs.NewFilter2[Bounds, Surface](world),
		movers:    ecs.NewFilter2[Bounds, Motion](world),
		bounds:    ecs.NewFilter1[Bounds](world),
		motionMap: ecs.NewMap1[Motion](world),
		staticMap: ecs.NewMap1[Static](world),
		labelMap:  ecs.NewMap1[Label](world),
	}
}

// FromConfig builds the demo scene. Boxes are left unclassified; call
// MarkAllStatic once the scene is considered loaded.
func FromConfig(c config.SceneConfig) *World {
	w := NewWorld()
	for _, b := range c.Boxes {
		w.AddBox(b)
	}
	return w
}

// AddBox adds one box. A non-zero velocity makes it dynamic.
func (w *World) AddBox(b config.BoxConfig) ecs.Entity {
	box := Bounds{Box: r3.Box{Min: vec(b.Min), Max: vec(b.Max)}}
	surf := Surface{Albedo: vec(b.Albedo), Emissive: vec(b.Emissive)}
	label := Label{Name: b.Name}
	e := w.boxMapper.NewEntity(&box, &surf, &label)

	if v := vec(b.Velocity); v != (r3.Vec{}) {
		w.motionMap.Add(e, &Motion{Velocity: v, Travel: b.Travel})
	}
	w.count++
	return e
}

// Len returns the number of boxes.
func (w *World) Len() int {
	return w.count
}

// Step advances every moving box by dt seconds, reversing direction once
// a box has covered its travel distance.
func (w *World) Step(dt float64) {
	query := w.movers.Query()
	for query.Next() {
		b, m := query.Get()
		d := r3.Scale(dt, m.Velocity)
		b.Box.Min = r3.Add(b.Box.Min, d)
		b.Box.Max = r3.Add(b.Box.Max, d)
		m.Delta = d

		m.Traveled += r3.Norm(d)
		if m.Travel > 0 && m.Traveled >= m.Travel {
			m.Velocity = r3.Scale(-1, m.Velocity)
			m.Traveled = 0
		}
	}
}

// DynamicBounds returns the boxes of moving entities and their displacement
// during the last Step, in matching order.
func (w *World) DynamicBounds() ([]r3.Box, []r3.Vec) {
	var boxes []r3.Box
	var deltas []r3.Vec
	query := w.movers.Query()
	for query.Next() {
		b, m := query.Get()
		boxes = append(boxes, b.Box)
		deltas = append(deltas, m.Delta)
	}
	return boxes, deltas
}

// SceneBounds is the union of all non-moving geometry. It is the zero box
// for an empty scene.
func (w *World) SceneBounds() r3.Box {
	var out r3.Box
	first := true
	query := w.bounds.Query()
	for query.Next() {
		if w.motionMap.HasAll(query.Entity()) {
			continue
		}
		b := query.Get().Box
		if first {
			out, first = b, false
			continue
		}
		out.Min = r3.Vec{X: math.Min(out.Min.X, b.Min.X), Y: math.Min(out.Min.Y, b.Min.Y), Z: math.Min(out.Min.Z, b.Min.Z)}
		out.Max = r3.Vec{X: math.Max(out.Max.X, b.Max.X), Y: math.Max(out.Max.Y, b.Max.Y), Z: math.Max(out.Max.Z, b.Max.Z)}
	}
	return out
}

// MarkAllStatic tags every box without motion as static.
func (w *World) MarkAllStatic() int {
	// Structural changes are not allowed while a query is open.
	var pending []ecs.Entity
	query := w.bounds.Query()
	for query.Next() {
		e := query.Entity()
		if !w.motionMap.HasAll(e) && !w.staticMap.HasAll(e) {
			pending = append(pending, e)
		}
	}
	for _, e := range pending {
		w.staticMap.Add(e, &Static{})
	}
	return len(pending)
}

// Geometry returns every box with its visibility mask, and the material
// table the boxes index into.
func (w *World) Geometry() ([]tracer.Box, []tracer.Material) {
	boxes := make([]tracer.Box, 0, w.count)
	mats := make([]tracer.Material, 0, w.count)
	query := w.boxFilter.Query()
	for query.Next() {
		b, s := query.Get()
		e := query.Entity()
		mask := tracer.MaskUnclassified
		switch {
		case w.motionMap.HasAll(e):
			mask = tracer.MaskDynamic
		case w.staticMap.HasAll(e):
			mask = tracer.MaskStatic
		}
		boxes = append(boxes, tracer.Box{Bounds: b.Box, Material: len(mats), Mask: mask})
		mats = append(mats, tracer.Material{Albedo: s.Albedo, Emissive: s.Emissive})
	}
	return boxes, mats
}

// Names lists box labels in query order.
func (w *World) Names() []string {
	names := make([]string, 0, w.count)
	query := w.bounds.Query()
	for query.Next() {
		names = append(names, w.labelMap.Get(query.Entity()).Name)
	}
	return names
}

func vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}
