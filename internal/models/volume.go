package models

// AmbientLabel is the label reserved for the background medium surrounding
// the slab stack.
const AmbientLabel uint8 = 0

// LayeredVolume represents a labeled 3D voxel grid made of stacked slabs
// along the Z axis. One voxel corresponds to one physical length unit (mm).
//
// A volume is immutable once built and is shared by every request made from
// it. Labels and Anomaly return copies.
type LayeredVolume struct {
	// Width, Height, Depth are the X, Y, Z dimensions in voxels. They are
	// read-only; changing them breaks At and Index.
	Width, Height, Depth int

	// labels holds one label per voxel in x-fastest order:
	// idx = z*Width*Height + y*Width + x
	labels []uint8

	// slabCount is the number of slabs written by the builder (labels 1..N)
	slabCount int

	// slabDepth is the total depth covered by the slab stack
	slabDepth int

	// anomaly is the embedded anomaly region, nil when absent
	anomaly *AnomalyRegion
}

// NewLayeredVolume wraps an already populated label grid. It is used by the
// geometry builder; the labels slice is owned by the volume afterwards.
func NewLayeredVolume(width, height, depth int, labels []uint8, slabCount, slabDepth int, anomaly *AnomalyRegion) *LayeredVolume {
	v := &LayeredVolume{
		Width:     width,
		Height:    height,
		Depth:     depth,
		labels:    labels,
		slabCount: slabCount,
		slabDepth: slabDepth,
	}
	if anomaly != nil {
		a := *anomaly
		v.anomaly = &a
	}
	return v
}

// Index returns the flat offset of voxel (x, y, z).
func (v *LayeredVolume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the label of voxel (x, y, z).
func (v *LayeredVolume) At(x, y, z int) uint8 {
	return v.labels[v.Index(x, y, z)]
}

// Len returns the number of voxels.
func (v *LayeredVolume) Len() int {
	return len(v.labels)
}

// Labels returns a copy of the label grid in x-fastest order.
func (v *LayeredVolume) Labels() []uint8 {
	out := make([]uint8, len(v.labels))
	copy(out, v.labels)
	return out
}

// SlabCount returns N, the number of slabs in the stack.
func (v *LayeredVolume) SlabCount() int {
	return v.slabCount
}

// TrailingDepth returns how many Z planes past the last slab were left with
// the ambient label. A non-zero value means the volume depth is not the sum
// of the slab thicknesses.
func (v *LayeredVolume) TrailingDepth() int {
	return v.Depth - v.slabDepth
}

// Anomaly returns the embedded anomaly region, or nil.
func (v *LayeredVolume) Anomaly() *AnomalyRegion {
	if v.anomaly == nil {
		return nil
	}
	a := *v.anomaly
	return &a
}

// AnomalyLabel returns the label used for the anomaly (N+1) and whether the
// volume carries one.
func (v *LayeredVolume) AnomalyLabel() (uint8, bool) {
	if v.anomaly == nil {
		return 0, false
	}
	return uint8(v.slabCount + 1), true
}

// MaxLabel returns the highest label value present in the grid.
func (v *LayeredVolume) MaxLabel() uint8 {
	var max uint8
	for _, l := range v.labels {
		if l > max {
			max = l
		}
	}
	return max
}

// LabelCounts returns the number of voxels carrying each label value.
func (v *LayeredVolume) LabelCounts() map[uint8]int {
	counts := make(map[uint8]int)
	for _, l := range v.labels {
		counts[l]++
	}
	return counts
}

// DistinctNonZero returns how many different non-ambient labels are present.
func (v *LayeredVolume) DistinctNonZero() int {
	var seen [256]bool
	n := 0
	for _, l := range v.labels {
		if l != AmbientLabel && !seen[l] {
			seen[l] = true
			n++
		}
	}
	return n
}

// Contains reports whether the continuous point p lies in the volume's
// bounding box [0, dim] on every axis.
func (v *LayeredVolume) Contains(p [3]float64) bool {
	dims := [3]int{v.Width, v.Height, v.Depth}
	for i := 0; i < 3; i++ {
		if p[i] < 0 || p[i] > float64(dims[i]) {
			return false
		}
	}
	return true
}

// AnomalyRegion is an axis-aligned box embedded in the slab stack.
// It covers [Center-HalfExtent, Center+HalfExtent) on every axis.
type AnomalyRegion struct {
	Center     [3]int
	HalfExtent [3]int
}

// Bounds returns the inclusive lower and exclusive upper voxel corners.
func (a AnomalyRegion) Bounds() (lo, hi [3]int) {
	for i := 0; i < 3; i++ {
		lo[i] = a.Center[i] - a.HalfExtent[i]
		hi[i] = a.Center[i] + a.HalfExtent[i]
	}
	return lo, hi
}

// Contains reports whether voxel (x, y, z) is inside the region.
func (a AnomalyRegion) Contains(x, y, z int) bool {
	lo, hi := a.Bounds()
	p := [3]int{x, y, z}
	for i := 0; i < 3; i++ {
		if p[i] < lo[i] || p[i] >= hi[i] {
			return false
		}
	}
	return true
}

// Voxels returns the number of voxels covered by the region.
func (a AnomalyRegion) Voxels() int {
	return 8 * a.HalfExtent[0] * a.HalfExtent[1] * a.HalfExtent[2]
}
