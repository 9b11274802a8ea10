// Package config provides configuration loading and access for the GI volumes and demo.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed schema.json
var schemaJSON string

// Config holds all configuration parameters.
type Config struct {
	Screen         ScreenConfig    `yaml:"screen"`
	GI             GIConfig        `yaml:"gi"`
	VolumeDefaults VolumeConfig    `yaml:"volume_defaults"`
	Volumes        []VolumeConfig  `yaml:"volumes"`
	Scene          SceneConfig     `yaml:"scene"`
	Camera         CameraConfig    `yaml:"camera"`
	Telemetry      TelemetryConfig `yaml:"telemetry"`
	Tune           TuneConfig      `yaml:"tune"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width      int `yaml:"width"`
	Height     int `yaml:"height"`
	TargetFPS  int `yaml:"target_fps"`
	AtlasScale int `yaml:"atlas_scale"` // Screen pixels per atlas texel
}

// GIConfig holds orchestrator constants.
type GIConfig struct {
	SceneInitFrames    int        `yaml:"scene_init_frames"`   // Frames of the scene-init convergence burst
	CameraTrackFrames  int        `yaml:"camera_track_frames"` // Tracking passes run within the frame a volume scrolls
	SceneInitRays      int        `yaml:"scene_init_rays"`     // Rays per probe during bursts
	ConvergenceRays    int        `yaml:"convergence_rays"`    // Rays per probe for newly woken probes
	MaxTextureSize     int        `yaml:"max_texture_size"`    // Atlas side ceiling in texels
	ProbeSleeping      bool       `yaml:"probe_sleeping"`
	CircumscribedScale float64    `yaml:"circumscribed_scale"`
	InscribedScale     [3]float64 `yaml:"inscribed_scale"`
	Workers            int        `yaml:"workers"` // 0 = GOMAXPROCS

	Overrides HysteresisOverrideConfig `yaml:"hysteresis_overrides"`
}

// HysteresisOverrideConfig holds the countdown lengths and scales applied
// after lighting or geometry events.
type HysteresisOverrideConfig struct {
	LowIrradianceFrames     int     `yaml:"low_irradiance_frames"`
	LowVisibilityFrames     int     `yaml:"low_visibility_frames"`
	ReducedIrradianceFrames int     `yaml:"reduced_irradiance_frames"`
	LowScale                float64 `yaml:"low_scale"`
	ReducedScale            float64 `yaml:"reduced_scale"`
}

// VolumeConfig is the YAML form of a probe volume specification.
// Zero values (and nil flags) are filled from volume_defaults.
type VolumeConfig struct {
	Name                 string     `yaml:"name,omitempty"`
	BoundsMin            [3]float64 `yaml:"bounds_min"`
	BoundsMax            [3]float64 `yaml:"bounds_max"`
	ProbeCounts          [3]int     `yaml:"probe_counts"`
	MaxProbeDistance     float64    `yaml:"max_probe_distance"` // Overrides probe_counts when > 0
	IrradianceResolution int        `yaml:"irradiance_probe_resolution"`
	VisibilityResolution int        `yaml:"visibility_probe_resolution"`
	SelfShadowBias       float64    `yaml:"self_shadow_bias"`
	Hysteresis           float64    `yaml:"hysteresis"`
	DepthSharpness       float64    `yaml:"depth_sharpness"`
	RaysPerProbe         int        `yaml:"rays_per_probe"`
	ProbeOffsetLimit     float64    `yaml:"probe_offset_limit"`
	IrradianceGamma      float64    `yaml:"irradiance_gamma"`
	CameraLocked         bool       `yaml:"camera_locked"`
	GlossyToMatte        bool       `yaml:"glossy_to_matte"`

	EncloseBounds                 *bool `yaml:"enclose_bounds,omitempty"`
	EnableProbeOffsetOptimization *bool `yaml:"enable_probe_offset_optimization,omitempty"`
	EnableProbeUpdate             *bool `yaml:"enable_probe_update,omitempty"`
	DetectLargeObjectMotion       *bool `yaml:"detect_large_object_motion,omitempty"`
}

// SceneConfig describes the demo scene.
type SceneConfig struct {
	Boxes        []BoxConfig `yaml:"boxes"`
	SunDirection [3]float64  `yaml:"sun_direction"`
	SunColor     [3]float64  `yaml:"sun_color"`
	SkyColor     [3]float64  `yaml:"sky_color"`
	Bounces      bool        `yaml:"bounces"` // Sample the previous field at hits
}

// BoxConfig is one axis-aligned box in the demo scene.
type BoxConfig struct {
	Name     string     `yaml:"name"`
	Min      [3]float64 `yaml:"min"`
	Max      [3]float64 `yaml:"max"`
	Albedo   [3]float64 `yaml:"albedo"`
	Emissive [3]float64 `yaml:"emissive"`
	Velocity [3]float64 `yaml:"velocity"` // Non-zero marks the box dynamic
	Travel   float64    `yaml:"travel"`   // Distance before reversing (0 = never)
}

// CameraConfig describes the demo camera path.
type CameraConfig struct {
	Start    [3]float64 `yaml:"start"`
	Velocity [3]float64 `yaml:"velocity"` // World units per second
	DT       float64    `yaml:"dt"`       // Seconds per frame
}

// TelemetryConfig holds output cadence parameters.
type TelemetryConfig struct {
	StatsWindow   int `yaml:"stats_window"`   // Frames per stats and perf record
	SnapshotEvery int `yaml:"snapshot_every"` // Frames between atlas snapshots (0 disables)
}

// TuneConfig holds parameters for cmd/tune.
type TuneConfig struct {
	WarmupFrames    int     `yaml:"warmup_frames"`
	MeasureFrames   int     `yaml:"measure_frames"`
	ReferenceFrames int     `yaml:"reference_frames"` // Frames averaged into the reference field
	Evaluations     int     `yaml:"evaluations"`
	InitHysteresis  float64 `yaml:"init_hysteresis"`
	LagWeight       float64 `yaml:"lag_weight"`
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	MaxTexels int // MaxTextureSize squared
	Workers   int // Resolved worker count
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := Validate(data); err != nil {
			return nil, err
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a YAML document against the embedded schema.
func Validate(data []byte) error {
	schema, err := jsonschema.CompileString("schema.json", schemaJSON)
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if doc == nil {
		return nil
	}

	// The validator expects JSON-decoded values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("converting config for validation: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("converting config for validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	c.Derived.MaxTexels = c.GI.MaxTextureSize * c.GI.MaxTextureSize
	c.Derived.Workers = c.GI.Workers
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}

	o := c.GI.Overrides
	if o.LowScale < 0 || o.LowScale > 1 || o.ReducedScale < 0 || o.ReducedScale > 1 {
		return fmt.Errorf("hysteresis override scales must be in [0,1], got %v and %v", o.LowScale, o.ReducedScale)
	}
	if o.LowIrradianceFrames < 0 || o.LowVisibilityFrames < 0 || o.ReducedIrradianceFrames < 0 {
		return fmt.Errorf("hysteresis override frames must be non-negative")
	}

	for i := range c.Volumes {
		c.Volumes[i] = c.Volumes[i].withDefaults(c.VolumeDefaults)
		if c.Volumes[i].Name == "" {
			c.Volumes[i].Name = fmt.Sprintf("volume%d", i)
		}
	}
	return nil
}

// withDefaults fills unset fields from d.
func (v VolumeConfig) withDefaults(d VolumeConfig) VolumeConfig {
	if v.ProbeCounts == [3]int{} {
		v.ProbeCounts = d.ProbeCounts
	}
	if v.MaxProbeDistance == 0 {
		v.MaxProbeDistance = d.MaxProbeDistance
	}
	if v.IrradianceResolution == 0 {
		v.IrradianceResolution = d.IrradianceResolution
	}
	if v.VisibilityResolution == 0 {
		v.VisibilityResolution = d.VisibilityResolution
	}
	if v.SelfShadowBias == 0 {
		v.SelfShadowBias = d.SelfShadowBias
	}
	if v.Hysteresis == 0 {
		v.Hysteresis = d.Hysteresis
	}
	if v.DepthSharpness == 0 {
		v.DepthSharpness = d.DepthSharpness
	}
	if v.RaysPerProbe == 0 {
		v.RaysPerProbe = d.RaysPerProbe
	}
	if v.ProbeOffsetLimit == 0 {
		v.ProbeOffsetLimit = d.ProbeOffsetLimit
	}
	if v.IrradianceGamma == 0 {
		v.IrradianceGamma = d.IrradianceGamma
	}
	if v.EncloseBounds == nil {
		v.EncloseBounds = d.EncloseBounds
	}
	if v.EnableProbeOffsetOptimization == nil {
		v.EnableProbeOffsetOptimization = d.EnableProbeOffsetOptimization
	}
	if v.EnableProbeUpdate == nil {
		v.EnableProbeUpdate = d.EnableProbeUpdate
	}
	if v.DetectLargeObjectMotion == nil {
		v.DetectLargeObjectMotion = d.DetectLargeObjectMotion
	}
	return v
}

// Flag reads an optional boolean, treating nil as false.
func Flag(b *bool) bool {
	return b != nil && *b
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// VolumeNames lists configured volume names, for logging.
func (c *Config) VolumeNames() string {
	names := make([]string, len(c.Volumes))
	for i, v := range c.Volumes {
		names[i] = v.Name
	}
	return strings.Join(names, ",")
}
