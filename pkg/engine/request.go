// Package engine defines the boundary to the photon transport solver: the
// immutable simulation request, the Engine capability and two
// implementations, a deterministic synthetic engine and a bridge to an
// external solver process.
package engine

import (
	"math"

	"janussim/internal/models"
	"janussim/pkg/optics"
)

// ExecutionHints are passed through to the engine untouched. Their meaning
// belongs to the engine.
type ExecutionHints struct {
	// GPUID selects the accelerator (1-based, as the solver counts them)
	GPUID int

	// UseGPU asks for accelerator execution
	UseGPU bool

	// Seed is the random seed; 0 lets the engine choose
	Seed int64
}

// Request is the complete description of one transport simulation.
// All fields are read through accessors; a Request never changes after
// NewRequest returns.
type Request struct {
	volume  *models.LayeredVolume
	table   *optics.Table
	source  models.SourceSpec
	photons int64
	window  models.TimeWindow
	hints   ExecutionHints
}

// NewRequest aggregates the simulation inputs and checks the request
// invariants: a positive photon count, a non-empty time window, a table that
// covers exactly the labels of the volume and a source inside the volume.
func NewRequest(vol *models.LayeredVolume, table *optics.Table, source models.SourceSpec,
	photons int64, window models.TimeWindow, hints ExecutionHints) (*Request, error) {
	if vol == nil {
		return nil, models.NewConfigurationError("volume", "no volume given")
	}
	if table == nil {
		return nil, models.NewConfigurationError("properties", "no property table given")
	}
	if photons <= 0 {
		return nil, models.NewConfigurationError("simulation.photons", "photon count must be positive, got %d", photons)
	}
	if !(window.End > window.Start) {
		return nil, models.NewConfigurationError("simulation.timeEnd",
			"end time %g must be after start time %g", window.End, window.Start)
	}
	if !(window.Step > 0) || math.IsInf(window.Step, 0) {
		return nil, models.NewConfigurationError("simulation.timeStep", "time step must be positive, got %g", window.Step)
	}
	if err := table.Validate(vol); err != nil {
		return nil, err
	}
	if !vol.Contains(source.Position) {
		return nil, models.NewConfigurationError("source.position",
			"%v lies outside the %dx%dx%d volume", source.Position, vol.Width, vol.Height, vol.Depth)
	}
	if _, ok := source.Normalized(); !ok {
		return nil, models.NewConfigurationError("source.direction", "direction must be a non-zero finite vector, got %v", source.Direction)
	}

	return &Request{
		volume:  vol,
		table:   table,
		source:  source,
		photons: photons,
		window:  window,
		hints:   hints,
	}, nil
}

// Volume returns the labeled geometry.
func (r *Request) Volume() *models.LayeredVolume { return r.volume }

// Table returns the optical property table.
func (r *Request) Table() *optics.Table { return r.table }

// Source returns the beam description.
func (r *Request) Source() models.SourceSpec { return r.source }

// Photons returns the photon budget.
func (r *Request) Photons() int64 { return r.photons }

// Window returns the time window.
func (r *Request) Window() models.TimeWindow { return r.window }

// Hints returns the engine execution hints.
func (r *Request) Hints() ExecutionHints { return r.hints }
