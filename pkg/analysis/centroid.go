// Package analysis reduces flux fields to the scalar metrics of the
// experiments: the lateral displacement of the exit beam centroid and the
// peak contrast between a baseline and a perturbed run.
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"janussim/internal/models"
)

// DefaultMinTotalFlux is the floor below which a slice is considered empty.
const DefaultMinTotalFlux = 1e-300

// CentroidAnalyzer computes the flux-weighted centroid of a 2D slice along
// one lateral axis. It holds no state between calls.
type CentroidAnalyzer struct {
	// Axis is the lateral axis the centroid is measured along
	Axis models.Axis

	// MinTotalFlux is the smallest total slice flux accepted as a
	// normalization denominator
	MinTotalFlux float64
}

// NewCentroidAnalyzer creates an analyzer measuring along axis
func NewCentroidAnalyzer(axis models.Axis) *CentroidAnalyzer {
	return &CentroidAnalyzer{
		Axis:         axis,
		MinTotalFlux: DefaultMinTotalFlux,
	}
}

// Measure computes centroid = sum(coord*flux)/sum(flux) over the slice and
// returns its offset from reference. Rows of slice run along Y and columns
// along X, as returned by FluxField.Plane.
//
// A slice with negative or non-finite entries, or whose total flux does not
// exceed MinTotalFlux, yields a *models.DegenerateResultError.
func (a *CentroidAnalyzer) Measure(slice mat.Matrix, reference float64) (models.DisplacementMeasurement, error) {
	rows, cols := slice.Dims()

	// Marginal flux along the measured axis
	var marginal []float64
	switch a.Axis {
	case models.AxisY:
		marginal = make([]float64, rows)
		for i := 0; i < rows; i++ {
			row := mat.Row(nil, i, slice)
			if err := checkFinite("centroid", row); err != nil {
				return models.DisplacementMeasurement{}, err
			}
			marginal[i] = floats.Sum(row)
		}
	default:
		marginal = make([]float64, cols)
		for j := 0; j < cols; j++ {
			col := mat.Col(nil, j, slice)
			if err := checkFinite("centroid", col); err != nil {
				return models.DisplacementMeasurement{}, err
			}
			marginal[j] = floats.Sum(col)
		}
	}

	total := floats.Sum(marginal)
	if !(total > a.MinTotalFlux) || math.IsInf(total, 0) {
		return models.DisplacementMeasurement{}, &models.DegenerateResultError{
			Quantity:    "centroid",
			Denominator: total,
			Reason:      "total slice flux is at or below the numerical floor",
		}
	}

	coords := make([]float64, len(marginal))
	for i := range coords {
		coords[i] = float64(i)
	}
	centroid := stat.Mean(coords, marginal)

	return models.DisplacementMeasurement{
		Axis:         a.Axis,
		Centroid:     centroid,
		Reference:    reference,
		Displacement: centroid - reference,
		TotalFlux:    total,
	}, nil
}

func checkFinite(quantity string, values []float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &models.DegenerateResultError{
				Quantity:    quantity,
				Denominator: math.NaN(),
				Reason:      "flux contains negative or non-finite values",
			}
		}
	}
	return nil
}

// ExitPlaneDisplacement extracts the plane at depth z from the first time bin
// of flux and measures its displacement against reference.
func (a *CentroidAnalyzer) ExitPlaneDisplacement(flux *models.FluxField, z int, reference float64) (models.DisplacementMeasurement, error) {
	plane, err := flux.Plane(z, 0)
	if err != nil {
		return models.DisplacementMeasurement{}, models.NewConfigurationError("analysis.exitPlane", "%v", err)
	}
	return a.Measure(plane, reference)
}
