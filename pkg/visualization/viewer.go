package visualization

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"janussim/internal/models"
)

// Viewer extracts 2D cross sections from a flux field for rendering.
type Viewer struct {
	// flux holds the simulated field; it is only read
	flux *models.FluxField

	// timeBin is the time gate sections are taken from
	timeBin int
}

// NewViewer creates a viewer over one time gate of a flux field
func NewViewer(flux *models.FluxField, timeBin int) *Viewer {
	return &Viewer{
		flux:    flux,
		timeBin: timeBin,
	}
}

// ExtractSlice extracts a 2D section of the field perpendicular to axis at
// the given position.
//
// For "x" and "y" the rows of the section run along depth (Z) and the columns
// along the remaining lateral axis, so the beam travels down the image.
// For "z" rows run along Y and columns along X.
func (v *Viewer) ExtractSlice(axis string, position int) (*mat.Dense, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	f := v.flux
	if v.timeBin < 0 || v.timeBin >= f.TimeBins {
		return nil, fmt.Errorf("time bin %d out of range [0, %d)", v.timeBin, f.TimeBins)
	}

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= f.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, f.Width)
		}
		section := mat.NewDense(f.Depth, f.Height, nil)
		for z := 0; z < f.Depth; z++ {
			for y := 0; y < f.Height; y++ {
				section.Set(z, y, f.At(position, y, z, v.timeBin))
			}
		}
		return section, nil

	case "y", "Y":
		// XZ plane
		if position >= f.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, f.Height)
		}
		section := mat.NewDense(f.Depth, f.Width, nil)
		for z := 0; z < f.Depth; z++ {
			for x := 0; x < f.Width; x++ {
				section.Set(z, x, f.At(x, position, z, v.timeBin))
			}
		}
		return section, nil

	case "z", "Z":
		// XY plane
		if position >= f.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, f.Depth)
		}
		return f.Plane(position, v.timeBin)

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// SaveSliceSequence renders every section along axis into outputDir and
// returns the written paths.
func (v *Viewer) SaveSliceSequence(r *Renderer, axis string, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.flux.Width
	case "y", "Y":
		maxPos = v.flux.Height
	case "z", "Z":
		maxPos = v.flux.Depth
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	paths := make([]string, 0, maxPos)
	for pos := 0; pos < maxPos; pos++ {
		section, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return paths, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		meta := Meta{
			Title:     fmt.Sprintf("%s = %d", axis, pos),
			Reference: NoReference,
			LogScale:  true,
		}
		path, err := r.RenderHeatmap(section, meta, filename)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}
