package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"janussim/internal/models"
)

// Engine runs a transport simulation and returns the accumulated flux.
// Run blocks until the engine has produced a complete field or failed;
// failures are reported as *models.EngineError and are never retried here.
type Engine interface {
	Run(ctx context.Context, req *Request) (*models.FluxField, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, req *Request) (*models.FluxField, error)

// Run implements Engine.
func (f EngineFunc) Run(ctx context.Context, req *Request) (*models.FluxField, error) {
	return f(ctx, req)
}

// Names of the engines known to this package.
const (
	SyntheticName = "synthetic"
	ExternalName  = "external"
)

// checkResult validates the shape of a returned field against the request,
// rejects negative or non-finite flux and flags an empty field as exhausted.
func checkResult(name string, req *Request, flux *models.FluxField) error {
	if flux == nil {
		return &models.EngineError{Engine: name, Kind: models.EngineExhausted, Err: errors.New("no flux field returned")}
	}
	if err := flux.CheckShape(); err != nil {
		return &models.EngineError{Engine: name, Kind: models.EngineRejected, Err: err}
	}
	vol := req.Volume()
	if flux.Width != vol.Width || flux.Height != vol.Height || flux.Depth != vol.Depth {
		return &models.EngineError{Engine: name, Kind: models.EngineRejected,
			Err: errors.New("flux field dimensions do not match the request volume")}
	}
	if want := req.Window().Bins(); flux.TimeBins != want {
		return &models.EngineError{Engine: name, Kind: models.EngineRejected,
			Err: fmt.Errorf("flux field has %d time bins, the window requires %d", flux.TimeBins, want)}
	}
	for i, v := range flux.Data {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return &models.EngineError{Engine: name, Kind: models.EngineRejected,
				Err: fmt.Errorf("invalid flux value %g at offset %d", v, i)}
		}
	}
	if total := floats.Sum(flux.Data); !(total > 0) {
		return &models.EngineError{Engine: name, Kind: models.EngineExhausted, Err: errors.New("total flux is zero")}
	}
	return nil
}
