// Package config provides configuration loading and management for janussim.
// It handles loading experiment configuration from YAML files, named presets
// and default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"gopkg.in/yaml.v3"

	"janussim/internal/models"
)

// Config represents one experiment run, loaded from YAML. It is built once
// per run and passed explicitly through the pipeline.
type Config struct {
	// Volume dimensions in voxels (1 voxel = 1 mm)
	Volume struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
		Depth  int `yaml:"depth"`
	} `yaml:"volume"`

	// Slab stack along Z
	Slabs struct {
		// Count is the number of slabs N
		Count int `yaml:"count"`

		// Thickness is the uniform slab thickness in voxels
		Thickness int `yaml:"thickness"`

		// Thicknesses optionally overrides Thickness per slab
		Thicknesses []int `yaml:"thicknesses,omitempty"`

		// Property is the property of the first slab
		Property models.OpticalProperty `yaml:"property"`

		// IndexStep is added to the refractive index of each following slab
		IndexStep float64 `yaml:"indexStep"`
	} `yaml:"slabs"`

	// Anomaly embedded in the steering experiment
	Anomaly struct {
		Enabled    bool                   `yaml:"enabled"`
		Center     [3]int                 `yaml:"center,flow"`
		HalfExtent [3]int                 `yaml:"halfExtent,flow"`
		Property   models.OpticalProperty `yaml:"property"`
	} `yaml:"anomaly"`

	// Source beam
	Source struct {
		Position  [3]float64 `yaml:"position,flow"`
		Direction [3]float64 `yaml:"direction,flow"`
	} `yaml:"source"`

	// Simulation budget and engine hints
	Simulation struct {
		Photons   int64   `yaml:"photons"`
		TimeStart float64 `yaml:"timeStart"`
		TimeEnd   float64 `yaml:"timeEnd"`
		TimeStep  float64 `yaml:"timeStep"`
		GPUID     int     `yaml:"gpuID"`
		UseGPU    bool    `yaml:"useGPU"`
		Seed      int64   `yaml:"seed"`
	} `yaml:"simulation"`

	// Centroid analysis
	Analysis struct {
		// ExitPlane is the Z index of the plane the centroid is measured on
		ExitPlane int `yaml:"exitPlane"`

		// LateralAxis is "x" or "y"
		LateralAxis string `yaml:"lateralAxis"`

		// Reference overrides the source lateral coordinate when set
		Reference *float64 `yaml:"reference,omitempty"`

		// MinTotalFlux is the degenerate-slice floor
		MinTotalFlux float64 `yaml:"minTotalFlux"`

		// TargetDisplacement is the expected shift in mm, reported alongside
		// the measurement when set
		TargetDisplacement *float64 `yaml:"targetDisplacement,omitempty"`
	} `yaml:"analysis"`

	// Sensitivity sweep
	Sweep struct {
		// Sizes are anomaly diameters in mm, in reporting order
		Sizes []float64 `yaml:"sizes,flow"`

		// Epsilon stabilizes the contrast denominator
		Epsilon float64 `yaml:"epsilon"`

		// MinHalfExtent is the lateral half-extent sub-voxel sizes round up to
		MinHalfExtent int `yaml:"minHalfExtent"`

		// DepthHalfExtent is the anomaly half-extent along Z
		DepthHalfExtent int `yaml:"depthHalfExtent"`

		// Center of the swept anomaly
		Center [3]int `yaml:"center,flow"`

		// Property of the swept anomaly
		Property models.OpticalProperty `yaml:"property"`

		// Workers bounds concurrent sweep points; 1 runs sequentially
		Workers int `yaml:"workers"`
	} `yaml:"sweep"`

	// Transport engine selection
	Engine struct {
		// Kind is "synthetic" or "external"
		Kind string `yaml:"kind"`

		// Command runs the external solver bridge
		Command []string `yaml:"command,flow,omitempty"`

		// WorkDir holds per-run exchange directories
		WorkDir string `yaml:"workDir"`

		// KeepWorkDir leaves exchange directories behind
		KeepWorkDir bool `yaml:"keepWorkDir"`
	} `yaml:"engine"`

	// Output parameters
	Output struct {
		// Dir receives rendered figures and reports
		Dir string `yaml:"dir"`

		// Render controls whether figures are produced
		Render bool `yaml:"render"`

		// SectionAxis is the axis perpendicular to the rendered cross section
		SectionAxis string `yaml:"sectionAxis"`

		// SteeringFigure and SensitivityFigure are file names inside Dir
		SteeringFigure    string `yaml:"steeringFigure"`
		SensitivityFigure string `yaml:"sensitivityFigure"`

		// Report is the YAML report file name inside Dir
		Report string `yaml:"report"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values: the lateral
// shift experiment on a 60x60x120 volume of eleven 10 mm slabs.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Geometry
	cfg.Volume.Width = 60
	cfg.Volume.Height = 60
	cfg.Volume.Depth = 120
	cfg.Slabs.Count = 11
	cfg.Slabs.Thickness = 10
	cfg.Slabs.Property = models.OpticalProperty{Mua: 0.01, Mus: 1.0, G: 0.9, N: 1.33}
	cfg.Slabs.IndexStep = 0.01

	// A 2 mm anomaly in the middle of the steering path, off by default
	cfg.Anomaly.Enabled = false
	cfg.Anomaly.Center = [3]int{30, 30, 55}
	cfg.Anomaly.HalfExtent = [3]int{1, 1, 1}
	cfg.Anomaly.Property = models.OpticalProperty{Mua: 0.5, Mus: 1.0, G: 0.9, N: 1.35}

	// Beam
	cfg.Source.Position = [3]float64{30, 30, 1}
	cfg.Source.Direction = [3]float64{0, 0, 1}

	// Simulation
	cfg.Simulation.Photons = 10000000
	cfg.Simulation.TimeStart = 0
	cfg.Simulation.TimeEnd = 5e-9
	cfg.Simulation.TimeStep = 5e-9
	cfg.Simulation.GPUID = 1
	cfg.Simulation.UseGPU = true

	// Analysis
	cfg.Analysis.ExitPlane = 110
	cfg.Analysis.LateralAxis = "x"
	cfg.Analysis.MinTotalFlux = 1e-300

	// Sweep
	cfg.Sweep.Sizes = []float64{2.0, 1.5, 1.0, 0.5}
	cfg.Sweep.Epsilon = 1e-10
	cfg.Sweep.MinHalfExtent = 1
	cfg.Sweep.DepthHalfExtent = 1
	cfg.Sweep.Center = [3]int{30, 30, 60}
	cfg.Sweep.Property = models.OpticalProperty{Mua: 0.5, Mus: 1.0, G: 0.9, N: 1.40}
	cfg.Sweep.Workers = 1

	// Engine
	cfg.Engine.Kind = "synthetic"

	// Output
	cfg.Output.Dir = "results"
	cfg.Output.Render = true
	cfg.Output.SectionAxis = "y"
	cfg.Output.SteeringFigure = "janus_lateral_shift.png"
	cfg.Output.SensitivityFigure = "sensitivity_limit.png"
	cfg.Output.Report = "report.yaml"
	cfg.Output.Verbose = true

	return cfg
}

// presets holds named experiment setups. Each starts from DefaultConfig.
var presets = map[string]func(cfg *Config){
	// 60x60x120 stack with a gentle index gradient
	"lateral-shift": func(cfg *Config) {},

	// Wider volume, steep gradient, low scattering and a tilted source
	"validation": func(cfg *Config) {
		cfg.Volume.Width = 100
		cfg.Volume.Height = 100
		cfg.Slabs.Property = models.OpticalProperty{Mua: 0.02, Mus: 0.5, G: 0.9, N: 1.33}
		cfg.Slabs.IndexStep = 0.08
		cfg.Source.Position = [3]float64{50, 50, 1}
		cfg.Source.Direction = [3]float64{0.1, 0, 1}
		cfg.Anomaly.Center = [3]int{50, 50, 55}
		cfg.Sweep.Center = [3]int{50, 50, 60}
		target := 11.577
		cfg.Analysis.TargetDisplacement = &target
		cfg.Output.SteeringFigure = "janus_validation_11mm_shift.png"
	},

	// Validation geometry with tissue-like slabs for the anomaly sweep
	"sensitivity": func(cfg *Config) {
		cfg.Volume.Width = 100
		cfg.Volume.Height = 100
		cfg.Slabs.Property = models.OpticalProperty{Mua: 0.01, Mus: 1.0, G: 0.9, N: 1.33}
		cfg.Slabs.IndexStep = 0.08
		cfg.Source.Position = [3]float64{50, 50, 1}
		cfg.Source.Direction = [3]float64{0.1, 0, 1}
		cfg.Anomaly.Center = [3]int{50, 50, 55}
		cfg.Sweep.Center = [3]int{50, 50, 60}
	},
}

// Preset returns the named experiment configuration
func Preset(name string) (*Config, error) {
	apply, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg, nil
}

// PresetNames lists the available presets in alphabetical order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the values that no later stage would reject on its own.
// Geometry, property and request invariants are enforced where those objects
// are built.
func (c *Config) Validate() error {
	if _, err := models.ParseAxis(c.Analysis.LateralAxis); err != nil {
		return models.NewConfigurationError("analysis.lateralAxis", "invalid axis %q (must be x or y)", c.Analysis.LateralAxis)
	}
	switch c.Output.SectionAxis {
	case "x", "y", "z":
	default:
		return models.NewConfigurationError("output.sectionAxis", "invalid axis %q (must be x, y, or z)", c.Output.SectionAxis)
	}
	switch c.Engine.Kind {
	case "synthetic":
	case "external":
		if len(c.Engine.Command) == 0 {
			return models.NewConfigurationError("engine.command", "external engine needs a command")
		}
	default:
		return models.NewConfigurationError("engine.kind", "unknown engine %q (must be synthetic or external)", c.Engine.Kind)
	}
	if c.Sweep.Epsilon < 0 {
		return models.NewConfigurationError("sweep.epsilon", "must be non-negative, got %g", c.Sweep.Epsilon)
	}
	if c.Sweep.Workers < 0 {
		return models.NewConfigurationError("sweep.workers", "must not be negative, got %d", c.Sweep.Workers)
	}
	if c.Output.SteeringFigure == "" || c.Output.SensitivityFigure == "" || c.Output.Report == "" {
		return models.NewConfigurationError("output", "figure and report file names must not be empty")
	}
	if c.Analysis.MinTotalFlux < 0 {
		return models.NewConfigurationError("analysis.minTotalFlux", "must be non-negative, got %g", c.Analysis.MinTotalFlux)
	}
	return nil
}

// EffectiveWorkers resolves Workers, where 0 means one per CPU core
func (c *Config) EffectiveWorkers() int {
	if c.Sweep.Workers == 0 {
		return runtime.NumCPU()
	}
	return c.Sweep.Workers
}

// LoadConfig reads an experiment configuration. Keys absent from the file
// keep their DefaultConfig values, and an empty path or a missing file yields
// the defaults unchanged. Unknown keys are rejected so that a misspelt
// setting does not silently fall back to its default. The result is
// validated; a failure is a *models.ConfigurationError.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse experiment config %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig validates cfg and writes it as YAML, creating the parent
// directory. The written file loads back to an identical configuration.
func SaveConfig(cfg *Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode experiment config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write experiment config: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile writes the lateral-shift defaults to configPath
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
