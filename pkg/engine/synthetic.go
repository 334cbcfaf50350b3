package engine

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"janussim/internal/models"
)

// SyntheticEngine is a deterministic stand-in for the Monte Carlo solver.
// It is not a transport model; it produces plausible, reproducible fields
// so the pipeline can be exercised without an accelerator.
//
// The beam is a Gaussian pencil travelling towards +Z. At every change of
// refractive index along its axis the lateral tilt is refracted with Snell's
// law; the beam widens with the reduced scattering it crosses; each lateral
// column is attenuated with Beer-Lambert absorption of the voxels it
// traverses, and the attenuation map blurs laterally with the same reduced
// scattering so that narrow absorbers cast shallower shadows than wide ones.
// Planes in front of the source carry no flux. The field is split
// evenly over the time bins.
type SyntheticEngine struct {
	// InitialSigma is the beam radius at the source, in voxels
	InitialSigma float64

	// Spread scales how fast reduced scattering widens the beam
	Spread float64

	// MaxSine caps the refracted sine to avoid total internal reflection
	MaxSine float64

	// ShadowDiffusion scales the lateral blur of the attenuation map per
	// plane; zero keeps shadows as sharp as the absorber
	ShadowDiffusion float64
}

// NewSyntheticEngine creates a synthetic engine with default beam settings
func NewSyntheticEngine() *SyntheticEngine {
	return &SyntheticEngine{
		InitialSigma:    0.5,
		Spread:          1.0,
		MaxSine:         0.99,
		ShadowDiffusion: 1.0,
	}
}

// Run implements Engine.
func (e *SyntheticEngine) Run(ctx context.Context, req *Request) (*models.FluxField, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.EngineError{Engine: SyntheticName, Kind: models.EngineUnavailable, Err: err}
	}

	vol := req.Volume()
	table := req.Table()
	src := req.Source()

	dir, _ := src.Normalized()
	if dir[2] <= 0 {
		return nil, &models.EngineError{Engine: SyntheticName, Kind: models.EngineRejected,
			Err: errors.New("synthetic beam must travel towards +z")}
	}

	bins := req.Window().Bins()
	flux := models.NewFluxField(vol.Width, vol.Height, vol.Depth, bins)

	planeSize := vol.Width * vol.Height
	attenuation := make([]float64, planeSize)
	for i := range attenuation {
		attenuation[i] = 1
	}
	weights := make([]float64, planeSize)
	scratch := make([]float64, planeSize)

	// Lateral tilt per unit depth
	tx := dir[0] / dir[2]
	ty := dir[1] / dir[2]
	cx := src.Position[0]
	cy := src.Position[1]
	variance := e.InitialSigma * e.InitialSigma

	z0 := int(math.Floor(src.Position[2]))
	if z0 >= vol.Depth {
		z0 = vol.Depth - 1
	}
	prevN := table.At(int(axisLabel(vol, cx, cy, z0))).N
	perBin := float64(req.Photons()) / float64(bins)

	for z := z0; z < vol.Depth; z++ {
		if z%16 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, &models.EngineError{Engine: SyntheticName, Kind: models.EngineUnavailable, Err: err}
			}
		}

		// Refraction at an index step along the beam axis
		n := table.At(int(axisLabel(vol, cx, cy, z))).N
		if n != prevN {
			tx, ty = e.refract(tx, ty, prevN, n)
			prevN = n
		}
		if z > z0 {
			cx += tx
			cy += ty
		}

		path := math.Sqrt(1 + tx*tx + ty*ty)
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				p := table.At(int(vol.At(x, y, z)))
				attenuation[y*vol.Width+x] *= math.Exp(-p.Mua * path)
			}
		}
		axis := table.At(int(axisLabel(vol, cx, cy, z)))
		variance += e.Spread * axis.ReducedScattering() * path
		if w := math.Min(0.25, e.ShadowDiffusion*axis.ReducedScattering()*path); w > 0 {
			diffuse(attenuation, scratch, vol.Width, vol.Height, w)
		}

		// Normalized Gaussian footprint of the beam on this plane
		for y := 0; y < vol.Height; y++ {
			dy := float64(y) - cy
			for x := 0; x < vol.Width; x++ {
				dx := float64(x) - cx
				weights[y*vol.Width+x] = math.Exp(-(dx*dx + dy*dy) / (2 * variance))
			}
		}
		sum := floats.Sum(weights)
		if sum == 0 {
			continue
		}
		floats.Scale(perBin/sum, weights)
		floats.Mul(weights, attenuation)

		for t := 0; t < bins; t++ {
			start := flux.Index(0, 0, z, t)
			copy(flux.Data[start:start+planeSize], weights)
		}
	}

	if err := checkResult(SyntheticName, req, flux); err != nil {
		return nil, err
	}
	return flux, nil
}

// refract bends the lateral tilt (tan of the polar angle) when crossing from
// index n1 into n2.
func (e *SyntheticEngine) refract(tx, ty, n1, n2 float64) (float64, float64) {
	tan1 := math.Hypot(tx, ty)
	if tan1 == 0 {
		return tx, ty
	}
	sin1 := tan1 / math.Sqrt(1+tan1*tan1)
	sin2 := math.Min(n1/n2*sin1, e.MaxSine)
	tan2 := sin2 / math.Sqrt(1-sin2*sin2)
	scale := tan2 / tan1
	return tx * scale, ty * scale
}

// diffuse applies one explicit 5-point diffusion step of weight w (at most
// 0.25) to the w x h map in place, reflecting at the edges.
func diffuse(m, scratch []float64, w, h int, weight float64) {
	copy(scratch, m)
	for y := 0; y < h; y++ {
		up := y - 1
		if up < 0 {
			up = y
		}
		down := y + 1
		if down >= h {
			down = y
		}
		for x := 0; x < w; x++ {
			left := x - 1
			if left < 0 {
				left = x
			}
			right := x + 1
			if right >= w {
				right = x
			}
			c := scratch[y*w+x]
			n := scratch[y*w+left] + scratch[y*w+right] + scratch[up*w+x] + scratch[down*w+x]
			m[y*w+x] = (1-4*weight)*c + weight*n
		}
	}
}

// axisLabel returns the label of the voxel under the beam axis, clamped to
// the volume.
func axisLabel(vol *models.LayeredVolume, cx, cy float64, z int) uint8 {
	x := clamp(int(math.Round(cx)), 0, vol.Width-1)
	y := clamp(int(math.Round(cy)), 0, vol.Height-1)
	return vol.At(x, y, z)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
