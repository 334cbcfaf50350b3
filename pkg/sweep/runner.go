// Package sweep runs paired baseline/perturbed simulations over a list of
// anomaly sizes and reduces each pair to a contrast value.
package sweep

import (
	"context"
	"fmt"
	"io"
	"log"

	"golang.org/x/sync/errgroup"

	"janussim/internal/models"
	"janussim/pkg/analysis"
	"janussim/pkg/engine"
)

// Scenario builds the requests of a sweep. Baseline and every perturbed
// request share the same geometry and property rules; only the anomaly
// differs.
type Scenario interface {
	// Baseline returns the request without any anomaly
	Baseline() (*engine.Request, error)

	// Perturbed returns the request with an anomaly of the given size
	Perturbed(size float64) (*engine.Request, error)
}

// PointError records which sweep point failed.
type PointError struct {
	// Size is the anomaly size of the failed point, unset for the baseline
	Size     float64
	Baseline bool
	Err      error
}

func (e *PointError) Error() string {
	if e.Baseline {
		return fmt.Sprintf("sweep baseline failed: %v", e.Err)
	}
	return fmt.Sprintf("sweep point %g failed: %v", e.Size, e.Err)
}

func (e *PointError) Unwrap() error {
	return e.Err
}

// Runner is the contrast sweep runner.
type Runner struct {
	engine  engine.Engine
	reducer *analysis.ContrastReducer

	// Workers bounds how many sweep points run at the same time.
	// Values below 2 run the sweep sequentially.
	Workers int

	logger *log.Logger
}

// NewRunner creates a sequential runner using the default contrast reducer
func NewRunner(e engine.Engine) *Runner {
	return &Runner{
		engine:  e,
		reducer: analysis.NewContrastReducer(),
		Workers: 1,
		logger:  log.New(io.Discard, "", 0),
	}
}

// WithReducer replaces the contrast reducer, e.g. to override epsilon.
func (r *Runner) WithReducer(reducer *analysis.ContrastReducer) *Runner {
	r.reducer = reducer
	return r
}

// WithLogger sets the progress logger.
func (r *Runner) WithLogger(logger *log.Logger) *Runner {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Run computes the baseline once, then one perturbed run per size, and
// returns the contrasts in the order of sizes. Sizes that are zero or
// negative stand for "no anomaly" and are reported as zero contrast without
// running the engine.
//
// Any failure aborts the sweep: the returned error is a *PointError naming
// the failing size and wrapping the engine, configuration or degenerate
// result error. No partial result is returned.
func (r *Runner) Run(ctx context.Context, scenario Scenario, sizes []float64) (*models.ContrastResult, *models.FluxField, error) {
	if len(sizes) == 0 {
		return nil, nil, models.NewConfigurationError("sweep.sizes", "no anomaly sizes given")
	}

	r.logger.Printf("Running baseline simulation...")
	baseReq, err := scenario.Baseline()
	if err != nil {
		return nil, nil, &PointError{Baseline: true, Err: err}
	}
	baseline, err := r.engine.Run(ctx, baseReq)
	if err != nil {
		return nil, nil, &PointError{Baseline: true, Err: err}
	}

	points := make([]models.ContrastPoint, len(sizes))

	if r.Workers < 2 {
		for i, size := range sizes {
			c, err := r.runPoint(ctx, scenario, baseline, size)
			if err != nil {
				return nil, nil, err
			}
			points[i] = models.ContrastPoint{Size: size, Contrast: c}
		}
		return &models.ContrastResult{Points: points}, baseline, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers)
	for i, size := range sizes {
		i, size := i, size
		g.Go(func() error {
			c, err := r.runPoint(gctx, scenario, baseline, size)
			if err != nil {
				return err
			}
			points[i] = models.ContrastPoint{Size: size, Contrast: c}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return &models.ContrastResult{Points: points}, baseline, nil
}

func (r *Runner) runPoint(ctx context.Context, scenario Scenario, baseline *models.FluxField, size float64) (float64, error) {
	if size <= 0 {
		r.logger.Printf("Size %g: no anomaly, contrast 0", size)
		return 0, nil
	}

	r.logger.Printf("Testing %gmm anomaly...", size)
	req, err := scenario.Perturbed(size)
	if err != nil {
		return 0, &PointError{Size: size, Err: err}
	}
	flux, err := r.engine.Run(ctx, req)
	if err != nil {
		return 0, &PointError{Size: size, Err: err}
	}
	c, err := r.reducer.Contrast(baseline, flux)
	if err != nil {
		return 0, &PointError{Size: size, Err: err}
	}
	r.logger.Printf("Size %g: contrast %.6f", size, c)
	return c, nil
}
