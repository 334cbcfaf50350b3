// Package visualization renders flux cross sections as heat maps and
// sensitivity sweeps as curves. Every render call writes one PNG file and
// returns its path.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NoReference disables the reference line of a heat map.
var NoReference = math.NaN()

// Meta labels a rendered artifact.
type Meta struct {
	Title  string
	XLabel string
	YLabel string

	// Reference is the column coordinate of a vertical marker line;
	// NaN draws none
	Reference float64

	// ReferenceLabel annotates the marker line
	ReferenceLabel string

	// LogScale maps values through log10(v + Floor) before colouring
	LogScale bool
}

// Renderer writes heat maps and curves.
type Renderer struct {
	// TargetWidth is the approximate width of the heat map area in pixels
	TargetWidth int

	// Floor is added before taking log10 so empty voxels stay finite
	Floor float64

	// CurveWidth and CurveHeight size the sensitivity chart
	CurveWidth  int
	CurveHeight int
}

// NewRenderer creates a renderer with default sizes
func NewRenderer() *Renderer {
	return &Renderer{
		TargetWidth: 600,
		Floor:       1e-10,
		CurveWidth:  800,
		CurveHeight: 500,
	}
}

const (
	marginTop    = 28
	marginBottom = 28
	marginLeft   = 24
	marginRight  = 12
	colorBarW    = 14
	glyphW       = 7
	glyphH       = 13
)

// hotRamp approximates the "hot" colour map: black, red, yellow, white.
var hotRamp = []colorful.Color{
	{R: 0, G: 0, B: 0},
	{R: 0.9, G: 0, B: 0},
	{R: 1, G: 0.85, B: 0},
	{R: 1, G: 1, B: 1},
}

func hot(t float64) color.Color {
	if math.IsNaN(t) {
		t = 0
	}
	t = math.Max(0, math.Min(1, t))
	segments := float64(len(hotRamp) - 1)
	pos := t * segments
	i := int(pos)
	if i >= len(hotRamp)-1 {
		return hotRamp[len(hotRamp)-1].Clamped()
	}
	return hotRamp[i].BlendRgb(hotRamp[i+1], pos-float64(i)).Clamped()
}

// RenderHeatmap draws section (rows top to bottom, columns left to right) to
// a PNG file at path.
func (r *Renderer) RenderHeatmap(section mat.Matrix, meta Meta, path string) (string, error) {
	rows, cols := section.Dims()
	if rows == 0 || cols == 0 {
		return "", fmt.Errorf("cannot render an empty section")
	}

	// Scale values
	values := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := section.At(i, j)
			if meta.LogScale {
				v = math.Log10(math.Max(v, 0) + r.Floor)
			}
			values[i*cols+j] = v
		}
	}
	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	if span <= 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		span = 1
	}

	cell := r.TargetWidth / cols
	if cell < 1 {
		cell = 1
	}
	plotW, plotH := cols*cell, rows*cell
	width := marginLeft + plotW + marginRight + colorBarW + marginRight
	height := marginTop + plotH + marginBottom

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	// Cells
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			c := hot((values[i*cols+j] - lo) / span)
			rect := image.Rect(marginLeft+j*cell, marginTop+i*cell, marginLeft+(j+1)*cell, marginTop+(i+1)*cell)
			draw.Draw(img, rect, &image.Uniform{c}, image.Point{}, draw.Src)
		}
	}

	// Colour bar
	barX := marginLeft + plotW + marginRight
	for y := 0; y < plotH; y++ {
		c := hot(1 - float64(y)/float64(plotH))
		rect := image.Rect(barX, marginTop+y, barX+colorBarW, marginTop+y+1)
		draw.Draw(img, rect, &image.Uniform{c}, image.Point{}, draw.Src)
	}

	// Reference line, dashed
	if !math.IsNaN(meta.Reference) {
		x := marginLeft + int((meta.Reference+0.5)*float64(cell))
		if x >= marginLeft && x < marginLeft+plotW {
			cyan := color.RGBA{R: 0, G: 255, B: 255, A: 255}
			for y := marginTop; y < marginTop+plotH; y++ {
				if (y/6)%2 == 0 {
					img.Set(x, y, cyan)
				}
			}
			if meta.ReferenceLabel != "" {
				addLabel(img, x+4, marginTop+glyphH+2, meta.ReferenceLabel, cyan)
			}
		}
	}

	// Text
	addLabel(img, marginLeft, marginTop-8, meta.Title, color.Black)
	if meta.XLabel != "" {
		addLabel(img, marginLeft, height-8, meta.XLabel, color.Black)
	}
	if meta.YLabel != "" {
		addVerticalLabel(img, 4, marginTop, meta.YLabel, color.Black)
	}

	if err := writePNG(path, img); err != nil {
		return "", err
	}
	return path, nil
}

// addLabel draws a text label with its baseline at (x, y).
func addLabel(img *image.RGBA, x, y int, label string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(label)
}

// addVerticalLabel stacks the characters of label downwards from (x, y).
func addVerticalLabel(img *image.RGBA, x, y int, label string, col color.Color) {
	for i, ch := range label {
		addLabel(img, x, y+(i+1)*glyphH, string(ch), col)
	}
}

// RenderCurve draws ys against xs as a line with markers.
func (r *Renderer) RenderCurve(xs, ys []float64, meta Meta, path string) (string, error) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return "", fmt.Errorf("curve needs matching non-empty series, got %d and %d values", len(xs), len(ys))
	}

	xRange := paddedRange(floats.Min(xs), floats.Max(xs), 0.5)
	yMin := math.Min(0, floats.Min(ys))
	yMax := math.Max(1, floats.Max(ys))

	grid := chart.Style{StrokeColor: drawing.ColorFromHex("dddddd"), StrokeWidth: 1.0}
	graph := chart.Chart{
		Title:  meta.Title,
		Width:  r.CurveWidth,
		Height: r.CurveHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           meta.XLabel,
			Range:          xRange,
			GridMajorStyle: grid,
		},
		YAxis: chart.YAxis{
			Name:           meta.YLabel,
			Range:          &chart.ContinuousRange{Min: yMin, Max: yMax},
			GridMajorStyle: grid,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    meta.Title,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2.0,
					DotColor:    chart.ColorBlue,
					DotWidth:    4.0,
				},
			},
		},
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := graph.Render(chart.PNG, file); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close chart file: %w", err)
	}
	return path, nil
}

func paddedRange(lo, hi, pad float64) *chart.ContinuousRange {
	if hi-lo <= 0 {
		return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close image file: %w", err)
	}
	return nil
}
