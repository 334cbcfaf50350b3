// Package geometry builds the labeled voxel volumes used by the transport
// experiments: a stack of planar slabs along Z, an ambient background and an
// optional embedded anomaly.
package geometry

import (
	"math"

	"janussim/internal/models"
)

// MaxSlabs is the largest slab count that still leaves room for an anomaly
// label in a uint8 grid.
const MaxSlabs = 254

// DefaultMinHalfExtent is the smallest lateral half-extent, in voxels, an
// anomaly is rounded up to when its requested size is below one voxel.
const DefaultMinHalfExtent = 1

// DefaultDepthHalfExtent gives anomalies a depth of two voxels.
const DefaultDepthHalfExtent = 1

// Params describes a layered volume.
type Params struct {
	// Width, Height, Depth are the X, Y, Z dimensions in voxels
	Width, Height, Depth int

	// Slabs is the number of stacked slabs N
	Slabs int

	// Thickness is the uniform slab thickness in voxels.
	// Ignored when Thicknesses is set.
	Thickness int

	// Thicknesses optionally gives one thickness per slab, in stacking order
	Thicknesses []int

	// Anomaly is written last with label N+1 when non-nil
	Anomaly *models.AnomalyRegion
}

// Builder constructs LayeredVolumes. It is stateless; a zero Builder is ready
// to use.
type Builder struct{}

// NewBuilder creates a new volume builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build validates the parameters and returns the labeled volume.
//
// Every voxel starts with the ambient label. Slab i gets label i+1 over its
// Z range; the slab ranges are contiguous starting at z=0. If the volume is
// deeper than the slab stack, the trailing planes keep the ambient label and
// the returned volume reports them through TrailingDepth. The anomaly, when
// present, is written after every slab so it always wins.
func (b *Builder) Build(p Params) (*models.LayeredVolume, error) {
	if p.Width <= 0 || p.Height <= 0 || p.Depth <= 0 {
		return nil, models.NewConfigurationError("volume",
			"dimensions must be positive, got %dx%dx%d", p.Width, p.Height, p.Depth)
	}
	if p.Slabs <= 0 {
		return nil, models.NewConfigurationError("slabs", "slab count must be positive, got %d", p.Slabs)
	}
	if p.Slabs > MaxSlabs {
		return nil, models.NewConfigurationError("slabs", "slab count %d exceeds the maximum of %d", p.Slabs, MaxSlabs)
	}

	thicknesses, err := resolveThicknesses(p)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, t := range thicknesses {
		total += t
	}
	if total > p.Depth {
		return nil, models.NewConfigurationError("slabs",
			"slab stack is %d voxels deep but the volume depth is %d", total, p.Depth)
	}

	if p.Anomaly != nil {
		if err := CheckAnomaly(*p.Anomaly, p.Width, p.Height, p.Depth); err != nil {
			return nil, err
		}
	}

	plane := p.Width * p.Height
	labels := make([]uint8, plane*p.Depth)

	// Slab stack
	offset := 0
	for i, t := range thicknesses {
		label := uint8(i + 1)
		start := offset * plane
		end := (offset + t) * plane
		for idx := start; idx < end; idx++ {
			labels[idx] = label
		}
		offset += t
	}

	// Anomaly overwrite
	if p.Anomaly != nil {
		label := uint8(p.Slabs + 1)
		lo, hi := p.Anomaly.Bounds()
		for z := lo[2]; z < hi[2]; z++ {
			for y := lo[1]; y < hi[1]; y++ {
				for x := lo[0]; x < hi[0]; x++ {
					labels[z*plane+y*p.Width+x] = label
				}
			}
		}
	}

	return models.NewLayeredVolume(p.Width, p.Height, p.Depth, labels, p.Slabs, total, p.Anomaly), nil
}

func resolveThicknesses(p Params) ([]int, error) {
	if len(p.Thicknesses) > 0 {
		if len(p.Thicknesses) != p.Slabs {
			return nil, models.NewConfigurationError("slabs.thicknesses",
				"got %d thicknesses for %d slabs", len(p.Thicknesses), p.Slabs)
		}
		for i, t := range p.Thicknesses {
			if t <= 0 {
				return nil, models.NewConfigurationError("slabs.thicknesses",
					"slab %d thickness must be positive, got %d", i, t)
			}
		}
		out := make([]int, len(p.Thicknesses))
		copy(out, p.Thicknesses)
		return out, nil
	}

	if p.Thickness <= 0 {
		return nil, models.NewConfigurationError("slabs.thickness", "thickness must be positive, got %d", p.Thickness)
	}
	out := make([]int, p.Slabs)
	for i := range out {
		out[i] = p.Thickness
	}
	return out, nil
}

// CheckAnomaly verifies that the anomaly box is non-empty and lies inside a
// volume of the given dimensions.
func CheckAnomaly(a models.AnomalyRegion, width, height, depth int) error {
	dims := [3]int{width, height, depth}
	lo, hi := a.Bounds()
	for i := 0; i < 3; i++ {
		if a.HalfExtent[i] <= 0 {
			return models.NewConfigurationError("anomaly.halfExtent",
				"half-extent must be positive on every axis, got %v", a.HalfExtent)
		}
		if lo[i] < 0 || hi[i] > dims[i] {
			return models.NewConfigurationError("anomaly",
				"box [%v, %v) falls outside volume %dx%dx%d", lo, hi, width, height, depth)
		}
	}
	return nil
}

// AnomalyForSize converts a physical anomaly size (diameter, mm) into a box
// centered at center. The lateral half-extent is int(size/2), raised to
// minHalfExtent for sub-voxel sizes. The depth half-extent is fixed.
func AnomalyForSize(size float64, center [3]int, depthHalfExtent, minHalfExtent int) (models.AnomalyRegion, error) {
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return models.AnomalyRegion{}, models.NewConfigurationError("sweep.sizes", "anomaly size must be positive and finite, got %g", size)
	}
	if minHalfExtent <= 0 {
		return models.AnomalyRegion{}, models.NewConfigurationError("sweep.minHalfExtent", "must be positive, got %d", minHalfExtent)
	}
	if depthHalfExtent <= 0 {
		return models.AnomalyRegion{}, models.NewConfigurationError("sweep.depthHalfExtent", "must be positive, got %d", depthHalfExtent)
	}

	s := int(size / 2)
	if s < minHalfExtent {
		s = minHalfExtent
	}
	return models.AnomalyRegion{
		Center:     center,
		HalfExtent: [3]int{s, s, depthHalfExtent},
	}, nil
}
