package visualization

import (
	"fmt"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"janussim/internal/models"
)

// createTestField fills a field where each value encodes its coordinates
func createTestField(width, height, depth int) *models.FluxField {
	f := models.NewFluxField(width, height, depth, 2)
	for t := 0; t < 2; t++ {
		for z := 0; z < depth; z++ {
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					f.Data[f.Index(x, y, z, t)] = float64(1000*t + 100*z + 10*y + x)
				}
			}
		}
	}
	return f
}

// TestExtractSlice verifies that sections are correctly extracted from the field
func TestExtractSlice(t *testing.T) {
	width, height, depth := 6, 5, 4
	viewer := NewViewer(createTestField(width, height, depth), 1)

	cases := []struct {
		axis       string
		position   int
		rows, cols int
		at         func(i, j int) float64
	}{
		{"x", 2, depth, height, func(z, y int) float64 { return float64(1000 + 100*z + 10*y + 2) }},
		{"y", 3, depth, width, func(z, x int) float64 { return float64(1000 + 100*z + 30 + x) }},
		{"z", 1, height, width, func(y, x int) float64 { return float64(1000 + 100 + 10*y + x) }},
	}

	for _, tc := range cases {
		section, err := viewer.ExtractSlice(tc.axis, tc.position)
		if err != nil {
			t.Fatalf("Failed to extract %s section at %d: %v", tc.axis, tc.position, err)
		}
		rows, cols := section.Dims()
		if rows != tc.rows || cols != tc.cols {
			t.Errorf("Axis %s: expected %dx%d section, got %dx%d", tc.axis, tc.rows, tc.cols, rows, cols)
			continue
		}
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				if got, want := section.At(i, j), tc.at(i, j); got != want {
					t.Errorf("Axis %s (%d,%d): expected %g, got %g", tc.axis, i, j, want, got)
				}
			}
		}
	}
}

func TestExtractSliceErrors(t *testing.T) {
	viewer := NewViewer(createTestField(3, 3, 3), 0)

	if _, err := viewer.ExtractSlice("w", 0); err == nil {
		t.Error("Expected an error for an invalid axis")
	}
	if _, err := viewer.ExtractSlice("x", -1); err == nil {
		t.Error("Expected an error for a negative position")
	}
	for _, axis := range []string{"x", "y", "z"} {
		if _, err := viewer.ExtractSlice(axis, 3); err == nil {
			t.Errorf("Expected an error for position 3 along %s", axis)
		}
	}
	if _, err := NewViewer(createTestField(3, 3, 3), 5).ExtractSlice("z", 0); err == nil {
		t.Error("Expected an error for a missing time bin")
	}
}

func TestRenderHeatmap(t *testing.T) {
	viewer := NewViewer(createTestField(10, 8, 12), 0)
	section, err := viewer.ExtractSlice("y", 4)
	if err != nil {
		t.Fatalf("ExtractSlice failed: %v", err)
	}

	r := NewRenderer()
	path := filepath.Join(t.TempDir(), "nested", "section.png")
	meta := Meta{
		Title:          "Steering path",
		XLabel:         "X-axis (lateral shift)",
		YLabel:         "Z",
		Reference:      5.5,
		ReferenceLabel: "Centroid: 5.50mm",
		LogScale:       true,
	}
	got, err := r.RenderHeatmap(section, meta, path)
	if err != nil {
		t.Fatalf("RenderHeatmap failed: %v", err)
	}
	if got != path {
		t.Errorf("Expected path %s, got %s", path, got)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open rendered file: %v", err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Rendered file is not a PNG: %v", err)
	}

	cell := r.TargetWidth / 10
	wantW := marginLeft + 10*cell + marginRight + colorBarW + marginRight
	wantH := marginTop + 12*cell + marginBottom
	if b := img.Bounds(); b.Dx() != wantW || b.Dy() != wantH {
		t.Errorf("Expected %dx%d image, got %dx%d", wantW, wantH, b.Dx(), b.Dy())
	}
}

func TestRenderHeatmapConstantSection(t *testing.T) {
	// A flat section must not divide by zero when normalizing colours
	f := models.NewFluxField(4, 4, 4, 1)
	section, _ := NewViewer(f, 0).ExtractSlice("z", 0)
	path := filepath.Join(t.TempDir(), "flat.png")
	if _, err := NewRenderer().RenderHeatmap(section, Meta{Title: "flat", Reference: NoReference}, path); err != nil {
		t.Fatalf("RenderHeatmap failed: %v", err)
	}
}

func TestRenderUnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create blocker file: %v", err)
	}
	path := filepath.Join(blocker, "out.png")

	section, _ := NewViewer(createTestField(3, 3, 3), 0).ExtractSlice("z", 0)
	if _, err := NewRenderer().RenderHeatmap(section, Meta{Reference: NoReference}, path); err == nil {
		t.Error("Expected an error for an unwritable heat map destination")
	}
	if _, err := NewRenderer().RenderCurve([]float64{1, 2}, []float64{0.1, 0.2}, Meta{}, path); err == nil {
		t.Error("Expected an error for an unwritable chart destination")
	}
}

// TestRenderFailedWrite checks that a destination which accepts the open but
// fails the write is reported as an error.
func TestRenderFailedWrite(t *testing.T) {
	const full = "/dev/full"
	if _, err := os.Stat(full); err != nil {
		t.Skipf("%s not available: %v", full, err)
	}

	section, _ := NewViewer(createTestField(3, 3, 3), 0).ExtractSlice("z", 0)
	if _, err := NewRenderer().RenderHeatmap(section, Meta{Reference: NoReference}, full); err == nil {
		t.Error("Expected an error when the heat map cannot be written")
	}
	if _, err := NewRenderer().RenderCurve([]float64{1, 2}, []float64{0.1, 0.2}, Meta{}, full); err == nil {
		t.Error("Expected an error when the chart cannot be written")
	}
}

func TestRenderCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensitivity_limit.png")
	sizes := []float64{2.0, 1.5, 1.0, 0.5}
	contrasts := []float64{0.62, 0.48, 0.31, 0.12}

	meta := Meta{
		Title:  "Detection Sensitivity Limit",
		XLabel: "Anomaly Diameter (mm)",
		YLabel: "Signal Contrast",
	}
	if _, err := NewRenderer().RenderCurve(sizes, contrasts, meta, path); err != nil {
		t.Fatalf("RenderCurve failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Chart was not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Chart file is empty")
	}

	// Single point and flat curves still render
	single := filepath.Join(t.TempDir(), "single.png")
	if _, err := NewRenderer().RenderCurve([]float64{2}, []float64{0.5}, meta, single); err != nil {
		t.Errorf("Single-point curve failed: %v", err)
	}

	if _, err := NewRenderer().RenderCurve([]float64{1, 2}, []float64{1}, meta, path); err == nil {
		t.Error("Expected an error for mismatched series")
	}
}

// TestSaveSliceSequence renders every section along each axis
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping slice sequence test in short mode")
	}

	width, height, depth := 4, 3, 5
	viewer := NewViewer(createTestField(width, height, depth), 0)
	r := NewRenderer()
	r.TargetWidth = 40

	for _, tc := range []struct {
		axis  string
		count int
	}{{"x", width}, {"y", height}, {"z", depth}} {
		dir := filepath.Join(t.TempDir(), tc.axis)
		paths, err := viewer.SaveSliceSequence(r, tc.axis, dir)
		if err != nil {
			t.Fatalf("SaveSliceSequence(%s) failed: %v", tc.axis, err)
		}
		if len(paths) != tc.count {
			t.Errorf("Axis %s: expected %d files, got %d", tc.axis, tc.count, len(paths))
		}
		for pos := 0; pos < tc.count; pos++ {
			name := filepath.Join(dir, fmt.Sprintf("slice_%s_%03d.png", tc.axis, pos))
			if _, err := os.Stat(name); err != nil {
				t.Errorf("Missing %s: %v", name, err)
			}
		}
	}

	if _, err := viewer.SaveSliceSequence(r, "q", t.TempDir()); err == nil {
		t.Error("Expected an error for an invalid axis")
	}
}

func TestHotRamp(t *testing.T) {
	black := hot(0)
	white := hot(1)
	r, g, b, _ := black.RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("Expected black at 0, got %v %v %v", r, g, b)
	}
	r, g, b, _ = white.RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("Expected white at 1, got %v %v %v", r, g, b)
	}
	// Out-of-range and NaN inputs are clamped
	if hot(math.NaN()) == nil || hot(-3) == nil || hot(7) == nil {
		t.Error("Expected a colour for clamped inputs")
	}
}
