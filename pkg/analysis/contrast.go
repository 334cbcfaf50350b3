package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"janussim/internal/models"
)

// DefaultEpsilon keeps the contrast ratio finite in voxels the baseline
// barely reaches.
const DefaultEpsilon = 1e-10

// ContrastReducer compares a perturbed flux field with its baseline.
type ContrastReducer struct {
	// Epsilon is added to the baseline in the denominator
	Epsilon float64

	// TimeBin selects the time gate that is compared
	TimeBin int
}

// NewContrastReducer creates a reducer with the default epsilon on the first
// time gate
func NewContrastReducer() *ContrastReducer {
	return &ContrastReducer{Epsilon: DefaultEpsilon}
}

// Contrast returns max over voxels of (b - p) / (b + Epsilon).
//
// Voxels whose denominator is zero carry no baseline signal and are skipped.
// If no voxel remains, or an input value is negative or not finite, the
// result is a *models.DegenerateResultError. Fields of different shapes are a
// *models.ConfigurationError.
func (c *ContrastReducer) Contrast(baseline, perturbed *models.FluxField) (float64, error) {
	if c.Epsilon < 0 || math.IsNaN(c.Epsilon) {
		return 0, models.NewConfigurationError("sweep.epsilon", "epsilon must be non-negative, got %g", c.Epsilon)
	}
	if !baseline.SameShape(perturbed) {
		return 0, models.NewConfigurationError("flux",
			"baseline %dx%dx%dx%d and perturbed %dx%dx%dx%d fields differ in shape",
			baseline.Width, baseline.Height, baseline.Depth, baseline.TimeBins,
			perturbed.Width, perturbed.Height, perturbed.Depth, perturbed.TimeBins)
	}

	b, err := baseline.TimeBin(c.TimeBin)
	if err != nil {
		return 0, models.NewConfigurationError("sweep.timeBin", "%v", err)
	}
	p, err := perturbed.TimeBin(c.TimeBin)
	if err != nil {
		return 0, models.NewConfigurationError("sweep.timeBin", "%v", err)
	}
	if err := checkFinite("contrast", b); err != nil {
		return 0, err
	}
	if err := checkFinite("contrast", p); err != nil {
		return 0, err
	}

	ratios := make([]float64, 0, len(b))
	for i := range b {
		denom := b[i] + c.Epsilon
		if denom == 0 {
			continue
		}
		r := (b[i] - p[i]) / denom
		if math.IsInf(r, 0) || math.IsNaN(r) {
			return 0, &models.DegenerateResultError{Quantity: "contrast", Denominator: denom, Reason: "flux is not finite"}
		}
		ratios = append(ratios, r)
	}
	if len(ratios) == 0 {
		return 0, &models.DegenerateResultError{
			Quantity:    "contrast",
			Denominator: 0,
			Reason:      "baseline carries no flux and epsilon is zero",
		}
	}
	return floats.Max(ratios), nil
}
