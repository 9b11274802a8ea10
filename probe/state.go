package probe

// State is the per-probe activity state stored in the state texture.
type State uint8

const (
	Off State = iota
	Asleep
	JustWoke
	Awake
	JustVigilant
	Vigilant
	Uninitialized
)

var stateNames = [...]string{
	Off:           "off",
	Asleep:        "asleep",
	JustWoke:      "just_woke",
	Awake:         "awake",
	JustVigilant:  "just_vigilant",
	Vigilant:      "vigilant",
	Uninitialized: "uninitialized",
}

// NumStates is the number of distinct probe states.
const NumStates = len(stateNames)

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

// Steady reports whether the probe receives the normal ray budget every frame.
func (s State) Steady() bool {
	return s == Awake || s == Vigilant
}

// Transitional reports whether the probe needs one convergence pass.
func (s State) Transitional() bool {
	return s == JustWoke || s == JustVigilant
}

// Sleeping reports whether the probe is excluded from tracing.
func (s State) Sleeping() bool {
	return s == Asleep || s == Off
}

// Record is one texel of the state texture: a quantized offset and a state.
type Record struct {
	Offset [3]int8
	State  State
}

// UninitializedRecord is the value every probe holds after a rebuild.
var UninitializedRecord = Record{State: Uninitialized}

// StateSet is a bitmask of states requested by the scheduler.
// The empty set means every state.
type StateSet uint8

// NewStateSet builds a set from states.
func NewStateSet(states ...State) StateSet {
	var s StateSet
	for _, st := range states {
		s |= 1 << st
	}
	return s
}

// Contains reports whether st is in the set.
func (s StateSet) Contains(st State) bool {
	return s&(1<<st) != 0
}

// Empty reports whether no state was requested.
func (s StateSet) Empty() bool {
	return s == 0
}

// Common scheduling sets.
var (
	SetUninitialized = NewStateSet(Uninitialized)
	SetTransitional  = NewStateSet(JustWoke, JustVigilant)
	SetSteady        = NewStateSet(Awake, Vigilant)
)

// Promote applies dynamic-object invalidation to one probe.
// Sleeping probes near motion wake up; awake probes without nearby motion
// fall back asleep. Vigilant probes never sleep.
func Promote(s State, inBox bool) State {
	switch {
	case s == Asleep && inBox:
		return JustWoke
	case s == Awake && !inBox:
		return Asleep
	default:
		return s
	}
}

// Settle moves a transitional probe into its steady state after its
// convergence pass.
func Settle(s State) State {
	switch s {
	case JustWoke:
		return Awake
	case JustVigilant:
		return Vigilant
	default:
		return s
	}
}

// ClassifyInput summarizes one uninitialized probe's traced rays.
type ClassifyInput struct {
	Rays             int
	BackfaceHits     int
	NearestFrontDist float64
	CellDiagonal     float64
}

// BackfaceThreshold is the backface ray fraction above which a probe is
// considered buried in geometry.
const BackfaceThreshold = 0.25

// Classify decides the first steady state of an uninitialized probe.
func Classify(in ClassifyInput) State {
	if in.Rays > 0 && float64(in.BackfaceHits) > BackfaceThreshold*float64(in.Rays) {
		return Off
	}
	if in.NearestFrontDist < in.CellDiagonal {
		return Vigilant
	}
	return Asleep
}
