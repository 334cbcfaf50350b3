package models

import "math"

// SourceSpec describes the injected photon beam.
type SourceSpec struct {
	// Position is the launch point in voxel coordinates
	Position [3]float64

	// Direction is the initial propagation vector; it need not be unit length
	Direction [3]float64
}

// Normalized returns the unit direction vector, or false for a zero vector.
func (s SourceSpec) Normalized() ([3]float64, bool) {
	d := s.Direction
	norm := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return [3]float64{}, false
	}
	return [3]float64{d[0] / norm, d[1] / norm, d[2] / norm}, true
}

// TimeWindow is the temporal gate of a simulation, in seconds.
type TimeWindow struct {
	Start float64
	End   float64
	Step  float64
}

// Bins returns the number of time bins covered by the window.
func (w TimeWindow) Bins() int {
	if w.Step <= 0 || w.End <= w.Start {
		return 0
	}
	n := int(math.Round((w.End - w.Start) / w.Step))
	if n < 1 {
		n = 1
	}
	return n
}
