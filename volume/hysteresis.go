package volume

import "github.com/pthm-cable/probegi/config"

// OverrideConstants are the countdown lengths and scales of the temporary
// hysteresis overrides. They are empirically tuned; keep them configurable.
type OverrideConstants struct {
	LowIrradianceFrames     int
	LowVisibilityFrames     int
	ReducedIrradianceFrames int
	LowScale                float64
	ReducedScale            float64
}

// DefaultOverrides returns the reference constants.
func DefaultOverrides() OverrideConstants {
	return OverrideConstants{
		LowIrradianceFrames:     10,
		LowVisibilityFrames:     7,
		ReducedIrradianceFrames: 4,
		LowScale:                0.5,
		ReducedScale:            0.85,
	}
}

// OverridesFromConfig converts the loaded override section.
func OverridesFromConfig(c config.HysteresisOverrideConfig) OverrideConstants {
	return OverrideConstants{
		LowIrradianceFrames:     c.LowIrradianceFrames,
		LowVisibilityFrames:     c.LowVisibilityFrames,
		ReducedIrradianceFrames: c.ReducedIrradianceFrames,
		LowScale:                c.LowScale,
		ReducedScale:            c.ReducedScale,
	}
}

// Hysteresis holds one volume's override countdowns.
type Hysteresis struct {
	c OverrideConstants

	lowIrradiance     int
	reducedIrradiance int
	lowVisibility     int
}

// NewHysteresis creates idle countdowns with the given constants.
func NewHysteresis(c OverrideConstants) Hysteresis {
	return Hysteresis{c: c}
}

// OnGlobalLightChange arms the low irradiance countdown. Re-arming resets it.
func (h *Hysteresis) OnGlobalLightChange() {
	h.lowIrradiance = h.c.LowIrradianceFrames
}

// OnSmallLightChange arms the reduced irradiance countdown.
func (h *Hysteresis) OnSmallLightChange() {
	h.reducedIrradiance = h.c.ReducedIrradianceFrames
}

// OnLargeObjectChange arms the low visibility countdown and also the low
// irradiance one, since moving occluders change lighting too.
func (h *Hysteresis) OnLargeObjectChange() {
	h.lowVisibility = h.c.LowVisibilityFrames
	h.OnGlobalLightChange()
}

// Tick advances one frame.
func (h *Hysteresis) Tick() {
	if h.lowIrradiance > 0 {
		h.lowIrradiance--
	}
	if h.reducedIrradiance > 0 {
		h.reducedIrradiance--
	}
	if h.lowVisibility > 0 {
		h.lowVisibility--
	}
}

// Countdowns returns the remaining frames of each override.
func (h *Hysteresis) Countdowns() (lowIrradiance, reducedIrradiance, lowVisibility int) {
	return h.lowIrradiance, h.reducedIrradiance, h.lowVisibility
}

// Active reports whether any override applies this frame.
func (h *Hysteresis) Active() bool {
	return h.lowIrradiance > 0 || h.reducedIrradiance > 0 || h.lowVisibility > 0
}

// Effective returns the irradiance and visibility hysteresis for this frame.
// The first frame of a volume has no history and always overwrites.
func (h *Hysteresis) Effective(base float64, first bool) (irradiance, visibility float64) {
	if first {
		return 0, 0
	}
	irradiance, visibility = base, base
	if h.lowIrradiance > 0 {
		irradiance *= h.c.LowScale
	} else if h.reducedIrradiance > 0 {
		irradiance *= h.c.ReducedScale
	}
	if h.lowVisibility > 0 {
		visibility *= h.c.LowScale
	}
	return irradiance, visibility
}
