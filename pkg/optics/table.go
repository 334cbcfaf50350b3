// Package optics builds the per-label optical property table that goes with
// a layered volume.
package optics

import (
	"fmt"

	"janussim/internal/models"
)

// Rule produces the optical property of slab i (0-based, in stacking order).
type Rule interface {
	Property(i int) models.OpticalProperty
}

// RuleFunc adapts a plain function to the Rule interface.
type RuleFunc func(i int) models.OpticalProperty

// Property implements Rule.
func (f RuleFunc) Property(i int) models.OpticalProperty {
	return f(i)
}

// Fixed returns a rule assigning the same property to every slab.
func Fixed(p models.OpticalProperty) Rule {
	return RuleFunc(func(int) models.OpticalProperty { return p })
}

// IndexGradient returns a rule whose refractive index grows linearly with
// the slab index: n_i = base.N + i*step. The other coefficients are shared.
// A monotonic index gradient is what steers the beam sideways.
func IndexGradient(base models.OpticalProperty, step float64) Rule {
	return RuleFunc(func(i int) models.OpticalProperty {
		p := base
		p.N = base.N + float64(i)*step
		return p
	})
}

// Table is an ordered list of optical properties indexed by label.
// Entry 0 is the ambient medium, entries 1..N follow slab order and an
// optional last entry belongs to the anomaly.
type Table struct {
	entries    []models.OpticalProperty
	hasAnomaly bool
}

// Build creates a table for n slabs. anomaly is appended when non-nil.
func Build(n int, rule Rule, anomaly *models.OpticalProperty) (*Table, error) {
	if n <= 0 {
		return nil, models.NewConfigurationError("slabs", "slab count must be positive, got %d", n)
	}
	if rule == nil {
		return nil, models.NewConfigurationError("slabs", "no property rule given")
	}

	entries := make([]models.OpticalProperty, 0, n+2)
	entries = append(entries, models.Ambient)
	for i := 0; i < n; i++ {
		p := rule.Property(i)
		if err := p.Validate(); err != nil {
			return nil, models.NewConfigurationError(fmt.Sprintf("slab %d", i), "%v", err)
		}
		entries = append(entries, p)
	}

	t := &Table{entries: entries}
	if anomaly != nil {
		if err := anomaly.Validate(); err != nil {
			return nil, models.NewConfigurationError("anomaly.property", "%v", err)
		}
		t.entries = append(t.entries, *anomaly)
		t.hasAnomaly = true
	}
	return t, nil
}

// ForVolume builds the table matching vol. The anomaly property is required
// exactly when the volume carries an anomaly label.
func ForVolume(vol *models.LayeredVolume, rule Rule, anomaly *models.OpticalProperty) (*Table, error) {
	_, hasAnomaly := vol.AnomalyLabel()
	switch {
	case hasAnomaly && anomaly == nil:
		return nil, models.NewConfigurationError("anomaly.property", "volume has an anomaly but no property was given for it")
	case !hasAnomaly:
		anomaly = nil
	}

	t, err := Build(vol.SlabCount(), rule, anomaly)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(vol); err != nil {
		return nil, err
	}
	return t, nil
}

// FromEntries wraps an explicit list of properties, entry 0 included.
// Use Validate to check it against a volume.
func FromEntries(entries []models.OpticalProperty) (*Table, error) {
	if len(entries) == 0 {
		return nil, models.NewConfigurationError("properties", "table is empty")
	}
	for i, p := range entries {
		if err := p.Validate(); err != nil {
			return nil, models.NewConfigurationError(fmt.Sprintf("label %d", i), "%v", err)
		}
	}
	out := make([]models.OpticalProperty, len(entries))
	copy(out, entries)
	return &Table{entries: out}, nil
}

// Len returns the number of entries, ambient included.
func (t *Table) Len() int {
	return len(t.entries)
}

// At returns the property of a label.
func (t *Table) At(label int) models.OpticalProperty {
	return t.entries[label]
}

// Entries returns a copy of the table.
func (t *Table) Entries() []models.OpticalProperty {
	out := make([]models.OpticalProperty, len(t.entries))
	copy(out, t.entries)
	return out
}

// HasAnomaly reports whether the last entry belongs to an anomaly.
func (t *Table) HasAnomaly() bool {
	return t.hasAnomaly
}

// Rows returns the table in [mua, mus, g, n] rows.
func (t *Table) Rows() [][4]float64 {
	rows := make([][4]float64, len(t.entries))
	for i, p := range t.entries {
		rows[i] = p.Row()
	}
	return rows
}

// Validate checks that the table covers exactly the labels of vol: its
// length must be the max label + 1 and the number of distinct non-zero
// labels + 1, and entry 0 must be the ambient medium.
func (t *Table) Validate(vol *models.LayeredVolume) error {
	if len(t.entries) == 0 || !t.entries[0].IsAmbient() {
		return models.NewConfigurationError("properties", "entry 0 must be a non-absorbing, non-scattering medium of index 1")
	}
	if want := int(vol.MaxLabel()) + 1; len(t.entries) != want {
		return models.NewConfigurationError("properties",
			"table has %d entries but the volume's max label requires %d", len(t.entries), want)
	}
	if want := vol.DistinctNonZero() + 1; len(t.entries) != want {
		return models.NewConfigurationError("properties",
			"table has %d entries but the volume has %d distinct non-zero labels", len(t.entries), want-1)
	}
	return nil
}
