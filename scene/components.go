// Package scene holds the demo scene as an ECS world of axis-aligned boxes.
package scene

import "gonum.org/v1/gonum/spatial/r3"

// Bounds is the world-space box of an entity.
type Bounds struct {
	Box r3.Box
}

// Surface is the diffuse material of an entity.
type Surface struct {
	Albedo   r3.Vec
	Emissive r3.Vec
}

// Label names an entity for logs and the HUD.
type Label struct {
	Name string
}

// Motion moves an entity back and forth along its velocity.
type Motion struct {
	Velocity r3.Vec  // World units per second
	Travel   float64 // Distance before reversing (0 = never)
	Traveled float64
	Delta    r3.Vec // Displacement of the last step
}

// Static tags geometry the application has declared immovable.
type Static struct{}
