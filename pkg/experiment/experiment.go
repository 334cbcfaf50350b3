// Package experiment wires the geometry, property, engine, analysis and
// rendering stages into the two Janus experiments: the lateral steering
// measurement and the anomaly sensitivity sweep.
package experiment

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"janussim/internal/models"
	"janussim/pkg/analysis"
	"janussim/pkg/config"
	"janussim/pkg/engine"
	"janussim/pkg/geometry"
	"janussim/pkg/optics"
	"janussim/pkg/sweep"
	"janussim/pkg/visualization"
)

// Mode selects which experiments a run performs.
type Mode string

const (
	ModeSteering    Mode = "steering"
	ModeSensitivity Mode = "sensitivity"
	ModeBoth        Mode = "both"
)

// ParseMode converts a command-line mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSteering, ModeSensitivity, ModeBoth:
		return m, nil
	}
	return "", models.NewConfigurationError("mode", "unknown mode %q (must be steering, sensitivity, or both)", s)
}

// Renderer is the artifact sink of the pipeline. *visualization.Renderer
// implements it.
type Renderer interface {
	RenderHeatmap(section mat.Matrix, meta visualization.Meta, path string) (string, error)
	RenderCurve(xs, ys []float64, meta visualization.Meta, path string) (string, error)
}

// NewLogger returns a progress logger writing to w, or a silent one when
// verbose is false.
func NewLogger(w io.Writer, verbose bool) *log.Logger {
	if !verbose {
		w = io.Discard
	}
	return log.New(w, "", 0)
}

// NewEngine creates the transport engine selected by the configuration
func NewEngine(cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine.Kind {
	case engine.SyntheticName:
		return engine.NewSyntheticEngine(), nil
	case engine.ExternalName:
		if len(cfg.Engine.Command) == 0 {
			return nil, models.NewConfigurationError("engine.command", "external engine needs a command")
		}
		e := engine.NewExternalEngine(cfg.Engine.Command, cfg.Engine.WorkDir)
		e.KeepWorkDir = cfg.Engine.KeepWorkDir
		return e, nil
	default:
		return nil, models.NewConfigurationError("engine.kind", "unknown engine %q", cfg.Engine.Kind)
	}
}

// FluxSummary describes the first time bin of a flux field.
type FluxSummary struct {
	Total  float64 `yaml:"total"`
	Peak   float64 `yaml:"peak"`
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stdDev"`
}

// Summarize computes the summary statistics of time bin 0
func Summarize(flux *models.FluxField) (FluxSummary, error) {
	data, err := flux.TimeBin(0)
	if err != nil {
		return FluxSummary{}, err
	}
	mean, std := stat.MeanStdDev(data, nil)
	return FluxSummary{
		Total:  floats.Sum(data),
		Peak:   floats.Max(data),
		Mean:   mean,
		StdDev: std,
	}, nil
}

// SteeringReport is the outcome of the lateral steering experiment.
type SteeringReport struct {
	Axis         string   `yaml:"axis"`
	ExitPlane    int      `yaml:"exitPlane"`
	Centroid     float64  `yaml:"centroid"`
	Reference    float64  `yaml:"reference"`
	Displacement float64  `yaml:"displacement"`
	Target       *float64 `yaml:"target,omitempty"`

	// Deviation is Displacement - Target, set when a target is configured
	Deviation *float64 `yaml:"deviation,omitempty"`

	// TrailingDepth counts ambient planes beyond the slab stack
	TrailingDepth int         `yaml:"trailingDepth"`
	Anomaly       bool        `yaml:"anomaly"`
	Flux          FluxSummary `yaml:"flux"`
	Figure        string      `yaml:"figure,omitempty"`

	Measurement models.DisplacementMeasurement `yaml:"-"`
	Field       *models.FluxField              `yaml:"-"`
}

// SensitivityReport is the outcome of the anomaly sweep.
type SensitivityReport struct {
	Epsilon  float64                `yaml:"epsilon"`
	Workers  int                    `yaml:"workers"`
	Points   []models.ContrastPoint `yaml:"points"`
	Baseline FluxSummary            `yaml:"baseline"`
	Figure   string                 `yaml:"figure,omitempty"`

	Result *models.ContrastResult `yaml:"-"`
}

// Report collects everything one run produced.
type Report struct {
	RunID       string             `yaml:"runID"`
	Started     time.Time          `yaml:"started"`
	Elapsed     string             `yaml:"elapsed"`
	Engine      string             `yaml:"engine"`
	Mode        Mode               `yaml:"mode"`
	Steering    *SteeringReport    `yaml:"steering,omitempty"`
	Sensitivity *SensitivityReport `yaml:"sensitivity,omitempty"`
}

// Pipeline runs the Janus experiments described by one configuration.
//
// The pipeline is linear: build geometry and properties, invoke the engine,
// reduce the flux field, render. Nothing is retried; every error reaches the
// caller unchanged apart from context wrapping.
type Pipeline struct {
	// cfg is read only
	cfg *config.Config

	engine   engine.Engine
	renderer Renderer
	builder  *geometry.Builder
	logger   *log.Logger

	// runID tags the report of this pipeline
	runID string
}

// NewPipeline creates a pipeline. A nil renderer disables figures; a nil
// logger discards progress output.
func NewPipeline(cfg *config.Config, eng engine.Engine, renderer Renderer, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = NewLogger(nil, false)
	}
	return &Pipeline{
		cfg:      cfg,
		engine:   eng,
		renderer: renderer,
		builder:  geometry.NewBuilder(),
		logger:   logger,
		runID:    uuid.NewString(),
	}
}

// RunID returns the identifier stamped on this pipeline's report
func (p *Pipeline) RunID() string {
	return p.runID
}

// Request builds the simulation request for the configured stack with an
// optional anomaly. prop must be given exactly when anomaly is.
func (p *Pipeline) Request(anomaly *models.AnomalyRegion, prop *models.OpticalProperty) (*engine.Request, error) {
	cfg := p.cfg

	vol, err := p.builder.Build(geometry.Params{
		Width:       cfg.Volume.Width,
		Height:      cfg.Volume.Height,
		Depth:       cfg.Volume.Depth,
		Slabs:       cfg.Slabs.Count,
		Thickness:   cfg.Slabs.Thickness,
		Thicknesses: cfg.Slabs.Thicknesses,
		Anomaly:     anomaly,
	})
	if err != nil {
		return nil, err
	}

	table, err := optics.ForVolume(vol, optics.IndexGradient(cfg.Slabs.Property, cfg.Slabs.IndexStep), prop)
	if err != nil {
		return nil, err
	}

	source := models.SourceSpec{Position: cfg.Source.Position, Direction: cfg.Source.Direction}
	window := models.TimeWindow{Start: cfg.Simulation.TimeStart, End: cfg.Simulation.TimeEnd, Step: cfg.Simulation.TimeStep}
	hints := engine.ExecutionHints{GPUID: cfg.Simulation.GPUID, UseGPU: cfg.Simulation.UseGPU, Seed: cfg.Simulation.Seed}

	return engine.NewRequest(vol, table, source, cfg.Simulation.Photons, window, hints)
}

// Run performs the experiments selected by mode and returns the combined
// report. The report is not saved; see SaveReport.
func (p *Pipeline) Run(ctx context.Context, mode Mode) (*Report, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:   p.runID,
		Started: time.Now(),
		Engine:  p.cfg.Engine.Kind,
		Mode:    mode,
	}

	if mode == ModeSteering || mode == ModeBoth {
		steering, err := p.RunSteering(ctx)
		if err != nil {
			return nil, fmt.Errorf("steering experiment failed: %w", err)
		}
		report.Steering = steering
	}

	if mode == ModeSensitivity || mode == ModeBoth {
		sensitivity, err := p.RunSensitivity(ctx)
		if err != nil {
			return nil, fmt.Errorf("sensitivity sweep failed: %w", err)
		}
		report.Sensitivity = sensitivity
	}

	report.Elapsed = time.Since(report.Started).Round(time.Millisecond).String()
	return report, nil
}

// RunSteering simulates the configured stack once and measures the lateral
// shift of the beam on the exit plane.
func (p *Pipeline) RunSteering(ctx context.Context) (*SteeringReport, error) {
	cfg := p.cfg
	axis, err := models.ParseAxis(cfg.Analysis.LateralAxis)
	if err != nil {
		return nil, err
	}

	// Step 1: Geometry and optical properties
	p.logger.Printf("Step 1: Building %dx%dx%d volume with %d slabs...",
		cfg.Volume.Width, cfg.Volume.Height, cfg.Volume.Depth, cfg.Slabs.Count)
	var anomaly *models.AnomalyRegion
	var prop *models.OpticalProperty
	if cfg.Anomaly.Enabled {
		anomaly = &models.AnomalyRegion{Center: cfg.Anomaly.Center, HalfExtent: cfg.Anomaly.HalfExtent}
		anomalyProp := cfg.Anomaly.Property
		prop = &anomalyProp
	}
	req, err := p.Request(anomaly, prop)
	if err != nil {
		return nil, err
	}
	if trailing := req.Volume().TrailingDepth(); trailing > 0 {
		p.logger.Printf("Warning: %d planes beyond the slab stack are ambient medium", trailing)
	}

	// Step 2: Transport
	p.logger.Printf("Step 2: Launching %s simulation (anomaly=%t, %d photons)...",
		cfg.Engine.Kind, cfg.Anomaly.Enabled, req.Photons())
	flux, err := p.engine.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	// Step 3: Centroid on the exit plane
	p.logger.Printf("Step 3: Measuring centroid on exit plane z=%d...", cfg.Analysis.ExitPlane)
	reference := cfg.Source.Position[0]
	if axis == models.AxisY {
		reference = cfg.Source.Position[1]
	}
	if cfg.Analysis.Reference != nil {
		reference = *cfg.Analysis.Reference
	}
	analyzer := analysis.NewCentroidAnalyzer(axis)
	analyzer.MinTotalFlux = cfg.Analysis.MinTotalFlux
	m, err := analyzer.ExitPlaneDisplacement(flux, cfg.Analysis.ExitPlane, reference)
	if err != nil {
		return nil, err
	}
	p.logger.Printf("Measured Lateral Shift: %.4f mm", m.Displacement)

	summary, err := Summarize(flux)
	if err != nil {
		return nil, err
	}

	report := &SteeringReport{
		Axis:          axis.String(),
		ExitPlane:     cfg.Analysis.ExitPlane,
		Centroid:      m.Centroid,
		Reference:     m.Reference,
		Displacement:  m.Displacement,
		TrailingDepth: req.Volume().TrailingDepth(),
		Anomaly:       cfg.Anomaly.Enabled,
		Flux:          summary,
		Measurement:   m,
		Field:         flux,
	}
	if target := cfg.Analysis.TargetDisplacement; target != nil {
		t := *target
		deviation := m.Displacement - t
		report.Target = &t
		report.Deviation = &deviation
		p.logger.Printf("Target Displacement: %.3f mm (deviation %.4f mm)", t, deviation)
	}

	// Step 4: Cross section through the beam
	if p.renderer != nil && cfg.Output.Render {
		p.logger.Printf("Step 4: Rendering steering section...")
		path, err := p.renderSteering(flux, m)
		if err != nil {
			return nil, fmt.Errorf("failed to render steering section: %w", err)
		}
		report.Figure = path
		p.logger.Printf("Figure saved as: %s", path)
	}

	return report, nil
}

// renderSteering draws the log flux section through the source, with the
// centroid marked when the section's columns run along the lateral axis.
func (p *Pipeline) renderSteering(flux *models.FluxField, m models.DisplacementMeasurement) (string, error) {
	cfg := p.cfg
	src := cfg.Source.Position

	var position int
	var columns models.Axis
	xLabel, yLabel := "X-axis (Lateral Shift)", "Z-axis (Depth)"
	switch cfg.Output.SectionAxis {
	case "x":
		position, columns = int(src[0]), models.AxisY
		xLabel = "Y-axis (Lateral Shift)"
	case "y":
		position, columns = int(src[1]), models.AxisX
	default:
		position, columns = cfg.Analysis.ExitPlane, models.AxisX
		yLabel = "Y-axis"
	}

	section, err := visualization.NewViewer(flux, 0).ExtractSlice(cfg.Output.SectionAxis, position)
	if err != nil {
		return "", err
	}

	meta := visualization.Meta{
		Title:     fmt.Sprintf("Janus Steering Path (Shift: %.3f mm)", m.Displacement),
		XLabel:    xLabel,
		YLabel:    yLabel,
		Reference: visualization.NoReference,
		LogScale:  true,
	}
	if columns == m.Axis {
		meta.Reference = m.Centroid
		meta.ReferenceLabel = fmt.Sprintf("Centroid: %.2fmm", m.Centroid)
	}
	return p.renderer.RenderHeatmap(section, meta, filepath.Join(cfg.Output.Dir, cfg.Output.SteeringFigure))
}

// RunSensitivity sweeps the anomaly size and reports the contrast of every
// size against a single anomaly-free baseline.
func (p *Pipeline) RunSensitivity(ctx context.Context) (*SensitivityReport, error) {
	cfg := p.cfg

	reducer := analysis.NewContrastReducer()
	reducer.Epsilon = cfg.Sweep.Epsilon

	runner := sweep.NewRunner(p.engine).WithReducer(reducer).WithLogger(p.logger)
	runner.Workers = cfg.EffectiveWorkers()

	p.logger.Printf("Sweeping anomaly sizes %v with %d worker(s)...", cfg.Sweep.Sizes, runner.Workers)
	result, baseline, err := runner.Run(ctx, &sweepScenario{p: p}, cfg.Sweep.Sizes)
	if err != nil {
		return nil, err
	}

	summary, err := Summarize(baseline)
	if err != nil {
		return nil, err
	}

	report := &SensitivityReport{
		Epsilon:  reducer.Epsilon,
		Workers:  runner.Workers,
		Points:   result.Points,
		Baseline: summary,
		Result:   result,
	}

	if p.renderer != nil && cfg.Output.Render {
		meta := visualization.Meta{
			Title:  "Janus Sphere: Detection Sensitivity Limit",
			XLabel: "Anomaly Diameter (mm)",
			YLabel: "Signal Contrast (Shadow Strength)",
		}
		path, err := p.renderer.RenderCurve(result.Sizes(), result.Contrasts(), meta,
			filepath.Join(cfg.Output.Dir, cfg.Output.SensitivityFigure))
		if err != nil {
			return nil, fmt.Errorf("failed to render sensitivity curve: %w", err)
		}
		report.Figure = path
		p.logger.Printf("Figure saved as: %s", path)
	}

	return report, nil
}

// sweepScenario varies only the anomaly of the configured stack.
type sweepScenario struct {
	p *Pipeline
}

func (s *sweepScenario) Baseline() (*engine.Request, error) {
	return s.p.Request(nil, nil)
}

func (s *sweepScenario) Perturbed(size float64) (*engine.Request, error) {
	cfg := s.p.cfg
	anomaly, err := geometry.AnomalyForSize(size, cfg.Sweep.Center, cfg.Sweep.DepthHalfExtent, cfg.Sweep.MinHalfExtent)
	if err != nil {
		return nil, err
	}
	prop := cfg.Sweep.Property
	return s.p.Request(&anomaly, &prop)
}
