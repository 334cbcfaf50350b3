package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// FluxField is the spatio-temporal photon flux returned by a transport
// engine. Only the engine that allocates a field writes to it; once Run
// returns, the dimensions and Data are read-only. TimeBin returns a view into
// Data, Plane a copy.
type FluxField struct {
	// Width, Height, Depth are the spatial dimensions in voxels
	Width, Height, Depth int

	// TimeBins is the number of time gates
	TimeBins int

	// Data holds the flux values in x-fastest order:
	// idx = t*Width*Height*Depth + z*Width*Height + y*Width + x
	Data []float64
}

// NewFluxField allocates a zeroed field with the given dimensions.
func NewFluxField(width, height, depth, timeBins int) *FluxField {
	return &FluxField{
		Width:    width,
		Height:   height,
		Depth:    depth,
		TimeBins: timeBins,
		Data:     make([]float64, width*height*depth*timeBins),
	}
}

// Index returns the flat offset of (x, y, z, t).
func (f *FluxField) Index(x, y, z, t int) int {
	return ((t*f.Depth+z)*f.Height+y)*f.Width + x
}

// At returns the flux at (x, y, z, t).
func (f *FluxField) At(x, y, z, t int) float64 {
	return f.Data[f.Index(x, y, z, t)]
}

// VoxelsPerBin returns the number of spatial voxels in one time bin.
func (f *FluxField) VoxelsPerBin() int {
	return f.Width * f.Height * f.Depth
}

// SameShape reports whether two fields share all dimensions.
func (f *FluxField) SameShape(o *FluxField) bool {
	return f.Width == o.Width && f.Height == o.Height && f.Depth == o.Depth && f.TimeBins == o.TimeBins
}

// CheckShape verifies that the data length matches the dimensions.
func (f *FluxField) CheckShape() error {
	if f.Width <= 0 || f.Height <= 0 || f.Depth <= 0 || f.TimeBins <= 0 {
		return fmt.Errorf("flux field dimensions must be positive, got %dx%dx%dx%d",
			f.Width, f.Height, f.Depth, f.TimeBins)
	}
	if want := f.VoxelsPerBin() * f.TimeBins; len(f.Data) != want {
		return fmt.Errorf("flux field holds %d values, expected %d", len(f.Data), want)
	}
	return nil
}

// TimeBin returns the spatial volume of time gate t as a view into Data.
func (f *FluxField) TimeBin(t int) ([]float64, error) {
	if t < 0 || t >= f.TimeBins {
		return nil, fmt.Errorf("time bin %d out of range [0, %d)", t, f.TimeBins)
	}
	n := f.VoxelsPerBin()
	return f.Data[t*n : (t+1)*n], nil
}

// Plane extracts the XY plane at depth z and time gate t.
// Rows of the returned matrix run along Y, columns along X.
func (f *FluxField) Plane(z, t int) (*mat.Dense, error) {
	if z < 0 || z >= f.Depth {
		return nil, fmt.Errorf("plane %d exceeds depth %d", z, f.Depth)
	}
	if t < 0 || t >= f.TimeBins {
		return nil, fmt.Errorf("time bin %d out of range [0, %d)", t, f.TimeBins)
	}
	start := f.Index(0, 0, z, t)
	plane := make([]float64, f.Width*f.Height)
	copy(plane, f.Data[start:start+f.Width*f.Height])
	return mat.NewDense(f.Height, f.Width, plane), nil
}
