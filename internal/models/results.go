package models

// Axis identifies a lateral coordinate axis of an exit plane.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

// DisplacementMeasurement is the lateral offset of the flux-weighted
// centroid of an exit plane relative to a reference coordinate.
type DisplacementMeasurement struct {
	Axis         Axis
	Centroid     float64
	Reference    float64
	Displacement float64
	TotalFlux    float64
}

// ContrastPoint is the contrast measured for one anomaly size.
type ContrastPoint struct {
	Size     float64 `yaml:"size"`
	Contrast float64 `yaml:"contrast"`
}

// ContrastResult maps anomaly sizes to contrast values, in sweep order.
type ContrastResult struct {
	Points []ContrastPoint `yaml:"points"`
}

// Sizes returns the sweep sizes in order.
func (r *ContrastResult) Sizes() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Size
	}
	return out
}

// Contrasts returns the contrast values in sweep order.
func (r *ContrastResult) Contrasts() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Contrast
	}
	return out
}

// Lookup returns the contrast of the first point with the given size.
func (r *ContrastResult) Lookup(size float64) (float64, bool) {
	for _, p := range r.Points {
		if p.Size == size {
			return p.Contrast, true
		}
	}
	return 0, false
}

// ParseAxis converts "x" or "y" to an Axis.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "", "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	}
	return AxisX, NewConfigurationError("lateralAxis", "invalid axis %q (must be x or y)", s)
}
