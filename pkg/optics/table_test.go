package optics

import (
	"errors"
	"math"
	"testing"

	"janussim/internal/models"
	"janussim/pkg/geometry"
)

func buildVolume(t *testing.T, p geometry.Params) *models.LayeredVolume {
	t.Helper()
	vol, err := geometry.NewBuilder().Build(p)
	if err != nil {
		t.Fatalf("Failed to build volume: %v", err)
	}
	return vol
}

// TestJanusTable builds the eleven-slab gradient table of the lateral shift
// experiment.
func TestJanusTable(t *testing.T) {
	vol := buildVolume(t, geometry.Params{Width: 60, Height: 60, Depth: 120, Slabs: 11, Thickness: 10})

	rule := IndexGradient(models.OpticalProperty{Mua: 0.01, Mus: 1.0, G: 0.9, N: 1.33}, 0.01)
	table, err := ForVolume(vol, rule, nil)
	if err != nil {
		t.Fatalf("ForVolume failed: %v", err)
	}

	if table.Len() != 12 {
		t.Fatalf("Expected 12 entries, got %d", table.Len())
	}
	if table.At(0) != models.Ambient {
		t.Errorf("Entry 0 should be ambient, got %+v", table.At(0))
	}
	for i := 1; i <= 11; i++ {
		p := table.At(i)
		want := 1.33 + 0.01*float64(i-1)
		if math.Abs(p.N-want) > 1e-12 {
			t.Errorf("Slab %d: expected n=%g, got %g", i, want, p.N)
		}
		if p.Mua != 0.01 || p.Mus != 1.0 || p.G != 0.9 {
			t.Errorf("Slab %d: unexpected coefficients %+v", i, p)
		}
	}
	if table.HasAnomaly() {
		t.Error("Table should not have an anomaly entry")
	}
}

func TestAnomalyEntry(t *testing.T) {
	vol := buildVolume(t, geometry.Params{
		Width: 10, Height: 10, Depth: 30, Slabs: 3, Thickness: 10,
		Anomaly: &models.AnomalyRegion{Center: [3]int{5, 5, 15}, HalfExtent: [3]int{1, 1, 1}},
	})
	tumor := models.OpticalProperty{Mua: 0.5, Mus: 1.0, G: 0.9, N: 1.40}

	table, err := ForVolume(vol, Fixed(models.OpticalProperty{Mua: 0.01, Mus: 1, G: 0.9, N: 1.33}), &tumor)
	if err != nil {
		t.Fatalf("ForVolume failed: %v", err)
	}
	if table.Len() != int(vol.MaxLabel())+1 {
		t.Errorf("Expected %d entries, got %d", vol.MaxLabel()+1, table.Len())
	}
	if table.At(4) != tumor {
		t.Errorf("Expected anomaly entry at label 4, got %+v", table.At(4))
	}

	// Missing anomaly property
	if _, err := ForVolume(vol, Fixed(models.OpticalProperty{N: 1.33}), nil); err == nil {
		t.Error("Expected an error when the anomaly property is missing")
	}
}

// TestMismatchedTable checks that tables of the wrong length are rejected.
func TestMismatchedTable(t *testing.T) {
	vol := buildVolume(t, geometry.Params{Width: 4, Height: 4, Depth: 12, Slabs: 3, Thickness: 4})
	slab := models.OpticalProperty{Mua: 0.01, Mus: 1, G: 0.9, N: 1.33}

	cases := []struct {
		name    string
		entries []models.OpticalProperty
	}{
		{"too short", []models.OpticalProperty{models.Ambient, slab, slab}},
		{"too long", []models.OpticalProperty{models.Ambient, slab, slab, slab, slab}},
		{"wrong ambient", []models.OpticalProperty{slab, slab, slab, slab}},
		{"absorbing ambient", []models.OpticalProperty{{Mua: 0.1, G: 1, N: 1}, slab, slab, slab}},
		{"ambient index", []models.OpticalProperty{{G: 1, N: 1.33}, slab, slab, slab}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := FromEntries(tc.entries)
			if err != nil {
				t.Fatalf("FromEntries failed: %v", err)
			}
			var cfgErr *models.ConfigurationError
			if err := table.Validate(vol); !errors.As(err, &cfgErr) {
				t.Errorf("Expected ConfigurationError, got %v", err)
			}
		})
	}

	ok, err := FromEntries([]models.OpticalProperty{models.Ambient, slab, slab, slab})
	if err != nil {
		t.Fatalf("FromEntries failed: %v", err)
	}
	if err := ok.Validate(vol); err != nil {
		t.Errorf("Expected matching table to validate, got %v", err)
	}

	// Solver configurations commonly write the ambient row as [0 0 0 1]
	for _, g := range []float64{0, 0.5, 1} {
		air, err := FromEntries([]models.OpticalProperty{{Mua: 0, Mus: 0, G: g, N: 1}, slab, slab, slab})
		if err != nil {
			t.Fatalf("FromEntries failed: %v", err)
		}
		if err := air.Validate(vol); err != nil {
			t.Errorf("Expected an ambient entry with g=%g to validate, got %v", g, err)
		}
	}
}

func TestInvalidProperties(t *testing.T) {
	cases := []struct {
		name string
		p    models.OpticalProperty
	}{
		{"negative mua", models.OpticalProperty{Mua: -0.1, Mus: 1, G: 0.9, N: 1.3}},
		{"negative mus", models.OpticalProperty{Mua: 0.1, Mus: -1, G: 0.9, N: 1.3}},
		{"anisotropy above 1", models.OpticalProperty{Mua: 0.1, Mus: 1, G: 1.1, N: 1.3}},
		{"zero index", models.OpticalProperty{Mua: 0.1, Mus: 1, G: 0.9, N: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(2, Fixed(tc.p), nil)
			var cfgErr *models.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestRows(t *testing.T) {
	table, err := Build(1, Fixed(models.OpticalProperty{Mua: 0.02, Mus: 0.5, G: 0.9, N: 1.33}), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	rows := table.Rows()
	if rows[0] != [4]float64{0, 0, 1, 1} {
		t.Errorf("Unexpected ambient row %v", rows[0])
	}
	if rows[1] != [4]float64{0.02, 0.5, 0.9, 1.33} {
		t.Errorf("Unexpected slab row %v", rows[1])
	}
}
