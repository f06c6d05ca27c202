// Package config provides configuration loading and access for the solver.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/okulo/brine/sim"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all run configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Fluid      FluidConfig      `yaml:"fluid"`
	Boundary   BoundaryConfig   `yaml:"boundary"`
	Scene      SceneConfig      `yaml:"scene"`
	Export     ExportConfig     `yaml:"export"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds solver and run-length parameters.
type SimulationConfig struct {
	Method          string     `yaml:"method"` // iisph or wcsph
	Duration        float64    `yaml:"duration"`
	DT              float64    `yaml:"dt"`
	MaxDensityError float64    `yaml:"max_density_error"`
	MinIterations   int        `yaml:"min_iterations"`
	MaxIterations   int        `yaml:"max_iterations"`
	Stiffness       float64    `yaml:"stiffness"`
	Gravity         Vec3Config `yaml:"gravity"`
}

// FluidConfig holds the fluid material parameters. Mass, smoothing
// radius, and sound speed default to values derived from the particle
// count and volume; set them explicitly to override the derivation.
type FluidConfig struct {
	ParticleCount   int     `yaml:"particle_count"`
	Volume          float64 `yaml:"volume"`
	RestDensity     float64 `yaml:"rest_density"`
	Viscosity       float64 `yaml:"viscosity"`
	Cohesion        float64 `yaml:"cohesion"`
	ParticlePerCell float64 `yaml:"particle_per_cell"`
	Mass            float64 `yaml:"mass"`             // 0 = derived
	SmoothingRadius float64 `yaml:"smoothing_radius"` // 0 = derived
	SoundSpeed      float64 `yaml:"sound_speed"`      // 0 = derived
}

// BoundaryConfig holds the boundary interaction parameters.
type BoundaryConfig struct {
	Adhesion        float64 `yaml:"adhesion"`
	Friction        float64 `yaml:"friction"`
	SmoothingRadius float64 `yaml:"smoothing_radius"` // 0 = half the fluid radius
}

// SceneConfig describes the initial scene: a fluid block inside a sealed
// container, plus an optional inlet source.
type SceneConfig struct {
	Container BoxConfig    `yaml:"container"`
	FluidBox  BoxConfig    `yaml:"fluid_box"`
	Source    SourceConfig `yaml:"source"`
}

// BoxConfig is an axis-aligned box given by its minimum corner and size.
type BoxConfig struct {
	Offset Vec3Config `yaml:"offset"`
	Size   Vec3Config `yaml:"size"`
}

// SourceConfig describes an optional disk emitter.
type SourceConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Center   Vec3Config `yaml:"center"`
	Radius   float64    `yaml:"radius"`
	Spacing  float64    `yaml:"spacing"` // 0 = fluid smoothing radius
	Velocity Vec3Config `yaml:"velocity"`
	Start    float64    `yaml:"start"`
	End      float64    `yaml:"end"`
}

// ExportConfig holds frame-export parameters.
type ExportConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Interval float64 `yaml:"interval"` // seconds of simulated time between frames
}

// TelemetryConfig holds CSV telemetry parameters.
type TelemetryConfig struct {
	Interval    int `yaml:"interval"` // steps between records
	StatsWindow int `yaml:"stats_window"`
	PerfWindow  int `yaml:"perf_window"`
}

// Vec3Config is a 3D vector in YAML form.
type Vec3Config struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Vec returns the r3 form of the vector.
func (v Vec3Config) Vec() r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// DerivedConfig holds the solver parameter set assembled from the loaded
// values plus the resolution derivation.
type DerivedConfig struct {
	Params sim.Params
	Steps  int // total step count for the configured duration
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults
// if path is empty. Must be called before Cfg().
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

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
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

// computeDerived assembles the solver parameter set: derivation from
// count and volume first, then explicit overrides, then validation.
func (c *Config) computeDerived() error {
	params, err := sim.NewParams(c.Fluid.ParticleCount, c.Fluid.Volume)
	if err != nil {
		return err
	}

	if c.Fluid.RestDensity > 0 {
		// Rescale the derived mass so the configured volume still holds.
		params.Fluid.Mass = c.Fluid.RestDensity * c.Fluid.Volume / float64(c.Fluid.ParticleCount)
		params.Fluid.RestDensity = c.Fluid.RestDensity
	}
	if c.Fluid.Mass > 0 {
		params.Fluid.Mass = c.Fluid.Mass
	}
	if c.Fluid.SmoothingRadius > 0 {
		params.Fluid.SmoothingRadius = c.Fluid.SmoothingRadius
		params.Boundary.SmoothingRadius = c.Fluid.SmoothingRadius / 2.0
	}
	if c.Fluid.SoundSpeed > 0 {
		params.Fluid.SoundSpeed = c.Fluid.SoundSpeed
	}
	if c.Fluid.Viscosity > 0 {
		params.Fluid.Viscosity = c.Fluid.Viscosity
	}
	if c.Fluid.Cohesion > 0 {
		params.Fluid.Cohesion = c.Fluid.Cohesion
	}
	if c.Fluid.ParticlePerCell > 0 {
		params.Fluid.ParticlePerCell = c.Fluid.ParticlePerCell
	}

	if c.Boundary.SmoothingRadius > 0 {
		params.Boundary.SmoothingRadius = c.Boundary.SmoothingRadius
	}
	if c.Boundary.Adhesion > 0 {
		params.Boundary.Adhesion = c.Boundary.Adhesion
	}
	if c.Boundary.Friction > 0 {
		params.Boundary.Friction = c.Boundary.Friction
	}

	if c.Simulation.Method != "" {
		params.Solver.Method = sim.Method(c.Simulation.Method)
	}
	if c.Simulation.DT > 0 {
		params.Solver.Dt = c.Simulation.DT
	}
	if c.Simulation.MaxDensityError > 0 {
		params.Solver.MaxDensityError = c.Simulation.MaxDensityError
	}
	if c.Simulation.MinIterations > 0 {
		params.Solver.MinIterations = c.Simulation.MinIterations
	}
	if c.Simulation.MaxIterations > 0 {
		params.Solver.MaxIterations = c.Simulation.MaxIterations
	}
	if c.Simulation.Stiffness > 0 {
		params.Solver.Stiffness = c.Simulation.Stiffness
	}
	if g := c.Simulation.Gravity.Vec(); g != (r3.Vec{}) {
		params.Gravity = g
	}

	if err := params.Validate(); err != nil {
		return err
	}
	if c.Simulation.Duration <= 0 {
		return fmt.Errorf("config: duration must be positive, got %g", c.Simulation.Duration)
	}
	if c.Telemetry.Interval <= 0 {
		return fmt.Errorf("config: telemetry interval must be positive, got %d", c.Telemetry.Interval)
	}
	if c.Export.Enabled && c.Export.Interval <= 0 {
		return fmt.Errorf("config: export interval must be positive, got %g", c.Export.Interval)
	}
	if c.Scene.Source.Enabled && c.Scene.Source.Spacing == 0 {
		c.Scene.Source.Spacing = params.Fluid.SmoothingRadius
	}

	c.Derived.Params = params
	c.Derived.Steps = int(c.Simulation.Duration / params.Solver.Dt)
	return nil
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
