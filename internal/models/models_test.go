package models

import (
	"testing"
)

func TestLayeredVolumeCopies(t *testing.T) {
	labels := []uint8{0, 1, 1, 2, 2, 3, 3, 0}
	anomaly := &AnomalyRegion{Center: [3]int{1, 1, 1}, HalfExtent: [3]int{1, 1, 1}}
	vol := NewLayeredVolume(2, 2, 2, labels, 2, 2, anomaly)

	got := vol.Labels()
	got[1] = 9
	if vol.At(1, 0, 0) != 1 {
		t.Errorf("Mutating Labels() changed the volume: got label %d", vol.At(1, 0, 0))
	}

	a := vol.Anomaly()
	a.Center[0] = 5
	anomaly.HalfExtent[0] = 7
	if c := vol.Anomaly(); c.Center[0] != 1 || c.HalfExtent[0] != 1 {
		t.Errorf("Anomaly region is shared with callers: %+v", c)
	}
}

func TestFluxFieldPlaneIsCopy(t *testing.T) {
	f := NewFluxField(3, 2, 2, 2)
	for i := range f.Data {
		f.Data[i] = float64(i)
	}

	plane, err := f.Plane(1, 1)
	if err != nil {
		t.Fatalf("Plane failed: %v", err)
	}
	if r, c := plane.Dims(); r != 2 || c != 3 {
		t.Fatalf("Expected a 2x3 plane, got %dx%d", r, c)
	}
	if got, want := plane.At(1, 2), f.At(2, 1, 1, 1); got != want {
		t.Errorf("Expected plane value %g, got %g", want, got)
	}

	plane.Set(1, 2, -1)
	if f.At(2, 1, 1, 1) == -1 {
		t.Error("Mutating the plane changed the field")
	}

	if _, err := f.Plane(2, 0); err == nil {
		t.Error("Expected an error for a plane beyond the depth")
	}
	if _, err := f.Plane(0, 2); err == nil {
		t.Error("Expected an error for a missing time bin")
	}
}

func TestFluxFieldShape(t *testing.T) {
	f := NewFluxField(2, 2, 2, 1)
	if err := f.CheckShape(); err != nil {
		t.Errorf("Fresh field failed its shape check: %v", err)
	}
	f.Data = f.Data[:7]
	if err := f.CheckShape(); err == nil {
		t.Error("Expected a truncated field to fail its shape check")
	}
	if f.SameShape(NewFluxField(2, 2, 2, 2)) {
		t.Error("Fields with different time bins reported the same shape")
	}
}

func TestAmbientProperty(t *testing.T) {
	if !Ambient.IsAmbient() {
		t.Error("Ambient is not ambient")
	}
	if !(OpticalProperty{G: 0, N: 1}).IsAmbient() {
		t.Error("Expected anisotropy to be ignored for a non-scattering medium")
	}
	if (OpticalProperty{Mus: 0.1, G: 1, N: 1}).IsAmbient() {
		t.Error("A scattering medium is not ambient")
	}
}
