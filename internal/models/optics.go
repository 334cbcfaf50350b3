package models

import "fmt"

// OpticalProperty holds the optical coefficients of one label.
type OpticalProperty struct {
	// Mua is the absorption coefficient in 1/mm
	Mua float64 `yaml:"mua" json:"mua"`

	// Mus is the scattering coefficient in 1/mm
	Mus float64 `yaml:"mus" json:"mus"`

	// G is the scattering anisotropy, in [-1, 1]
	G float64 `yaml:"g" json:"g"`

	// N is the refractive index
	N float64 `yaml:"n" json:"n"`
}

// Ambient is the property of label 0: no absorption, no scattering and unit
// refractive index, so the background behaves like air.
var Ambient = OpticalProperty{Mua: 0, Mus: 0, G: 1, N: 1}

// IsAmbient reports whether p neither absorbs nor scatters and has unit
// index. Anisotropy is ignored.
func (p OpticalProperty) IsAmbient() bool {
	return p.Mua == 0 && p.Mus == 0 && p.N == 1
}

// Validate checks the physical ranges of the coefficients.
func (p OpticalProperty) Validate() error {
	switch {
	case p.Mua < 0:
		return fmt.Errorf("absorption coefficient must be non-negative, got %g", p.Mua)
	case p.Mus < 0:
		return fmt.Errorf("scattering coefficient must be non-negative, got %g", p.Mus)
	case p.G < -1 || p.G > 1:
		return fmt.Errorf("anisotropy must be in [-1, 1], got %g", p.G)
	case p.N <= 0:
		return fmt.Errorf("refractive index must be positive, got %g", p.N)
	}
	return nil
}

// ReducedScattering returns mus*(1-g).
func (p OpticalProperty) ReducedScattering() float64 {
	return p.Mus * (1 - p.G)
}

// Row returns the property in the [mua, mus, g, n] order used by transport
// engines.
func (p OpticalProperty) Row() [4]float64 {
	return [4]float64{p.Mua, p.Mus, p.G, p.N}
}
