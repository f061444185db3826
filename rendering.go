package trajview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teranos/trajview/trip"
)

// Series colors.
var (
	ColorBody = drawing.Color{R: 0, G: 0, B: 0, A: 255}
	ColorXY   = drawing.Color{R: 0, G: 0, B: 255, A: 255}
	ColorXZ   = drawing.Color{R: 0, G: 255, B: 0, A: 255}
	ColorYZ   = drawing.Color{R: 255, G: 0, B: 0, A: 255}

	colorGrid = drawing.Color{R: 220, G: 220, B: 220, A: 255}
	colorAxis = drawing.Color{R: 0, G: 0, B: 0, A: 255}
)

// Range is a closed axis interval.
type Range struct {
	Min, Max float64
}

// Span returns Max - Min.
func (r Range) Span() float64 {
	return r.Max - r.Min
}

// RenderConfig defines the visual parameters of one frame.
type RenderConfig struct {
	Width      int        // Canvas width in pixels
	Height     int        // Canvas height in pixels
	Margin     int        // Space around the chart
	Background color.RGBA // Background color
	Foreground color.RGBA // Text color
	Caption    string     // Title drawn above the chart
	X, Y, Z    Range      // Render-space axis ranges
	TickStep   float64    // Distance between grid lines
}

// DefaultRenderConfig returns the 600x450 white canvas with the fixed
// [-1,25] x [-1,20] x [-1,25] chart cube.
func DefaultRenderConfig(caption string) RenderConfig {
	return RenderConfig{
		Width:      600,
		Height:     450,
		Margin:     10,
		Background: color.RGBA{255, 255, 255, 255},
		Foreground: color.RGBA{0, 0, 0, 255},
		Caption:    caption,
		X:          Range{Min: -1, Max: 25},
		Y:          Range{Min: -1, Max: 20},
		Z:          Range{Min: -1, Max: 25},
		TickStep:   5,
	}
}

// Series is one connected line of render-space points.
type Series struct {
	Label   string
	Color   drawing.Color
	Points  []r3.Vec
	Markers bool // Draw a minimal dot at every point
}

// Annotation is a line of text at a fixed pixel position (baseline origin).
type Annotation struct {
	Text string
	X, Y int
}

// Shot is everything needed to draw one frame.
type Shot struct {
	Annotations []Annotation
	Projection  Projection
	Series      []Series
}

// ShotFor builds the standard four-series shot for a window.
func ShotFor(p Projections, t0 float64, proj Projection) Shot {
	return Shot{
		Annotations: []Annotation{
			{Text: fmt.Sprintf("period: %d", 0), X: 20, Y: 400},
			{Text: TimeLabel(t0), X: 20, Y: 420},
		},
		Projection: proj,
		Series: []Series{
			{Label: "Body", Color: ColorBody, Points: p.Body, Markers: true},
			{Label: "Proj. XY", Color: ColorXY, Points: p.XY},
			{Label: "Proj. XZ", Color: ColorXZ, Points: p.XZ},
			{Label: "Proj. YZ", Color: ColorYZ, Points: p.YZ},
		},
	}
}

// TimeLabel formats the elapsed-time annotation.
func TimeLabel(t float64) string {
	return fmt.Sprintf("time: %.2f", t)
}

// RenderingStage draws shots onto fresh canvases.
type RenderingStage struct {
	config RenderConfig
	font   font.Face
}

// NewRenderingStage creates a stage for the given config.
func NewRenderingStage(config RenderConfig) *RenderingStage {
	return &RenderingStage{
		config: config,
		font:   basicfont.Face7x13,
	}
}

// Config returns the stage configuration.
func (rs *RenderingStage) Config() RenderConfig {
	return rs.config
}

// plotArea is the pixel box the chart cube is fitted into.
type plotArea struct {
	cx, cy float64
	size   float64
}

// Render draws a shot. Any failure leaves no partial frame behind.
func (rs *RenderingStage) Render(shot Shot) (*image.RGBA, error) {
	cfg := rs.config
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, trip.NewFall(trip.Render, "invalid canvas size", nil, trip.Context{"width": cfg.Width, "height": cfg.Height})
	}
	if cfg.X.Span() <= 0 || cfg.Y.Span() <= 0 || cfg.Z.Span() <= 0 {
		return nil, trip.NewFall(trip.Render, "empty axis range", nil, nil)
	}

	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(cfg.Background), image.Point{}, draw.Src)

	gc, err := drawing.NewRasterGraphicContext(img)
	if err != nil {
		return nil, trip.NewFall(trip.Render, "create graphic context", err, nil)
	}

	for _, a := range shot.Annotations {
		rs.drawText(img, a.Text, a.X, a.Y)
	}

	top := cfg.Margin
	if cfg.Caption != "" {
		rs.drawText(img, cfg.Caption, (cfg.Width-rs.textWidth(cfg.Caption))/2, cfg.Margin+13)
		top += 30
	}
	w := float64(cfg.Width - 2*cfg.Margin)
	h := float64(cfg.Height - top - cfg.Margin)
	area := plotArea{
		cx:   float64(cfg.Margin) + w/2,
		cy:   float64(top) + h/2,
		size: math.Min(w, h),
	}

	rs.drawAxes(img, gc, shot.Projection, area)

	for _, s := range shot.Series {
		if err := rs.drawSeries(gc, s, shot.Projection, area); err != nil {
			return nil, err
		}
	}

	rs.drawLegend(img, gc, shot.Series)

	return img, nil
}

// toScreen maps a render-space point to pixel coordinates.
func (rs *RenderingStage) toScreen(v r3.Vec, proj Projection, area plotArea) (float64, float64) {
	cfg := rs.config
	n := r3.Vec{
		X: (v.X-cfg.X.Min)/cfg.X.Span() - 0.5,
		Y: (v.Y-cfg.Y.Min)/cfg.Y.Span() - 0.5,
		Z: (v.Z-cfg.Z.Min)/cfg.Z.Span() - 0.5,
	}
	// The unit cube's diagonal is sqrt(3), so any rotation fits the area.
	fit := area.size / math.Sqrt(3)
	p := proj.Apply(n)
	return area.cx + p.X*fit, area.cy - p.Y*fit
}

func (rs *RenderingStage) drawSeries(gc *drawing.RasterGraphicContext, s Series, proj Projection, area plotArea) error {
	if len(s.Points) == 0 {
		return nil
	}

	xs := make([]float64, len(s.Points))
	ys := make([]float64, len(s.Points))
	for i, v := range s.Points {
		x, y := rs.toScreen(v, proj, area)
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return trip.NewFall(trip.Render, "point not drawable", nil, trip.Context{
				"series": s.Label,
				"index":  i,
				"point":  fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z),
			})
		}
		xs[i], ys[i] = x, y
	}

	gc.SetStrokeColor(s.Color)
	gc.SetLineWidth(1)
	gc.MoveTo(xs[0], ys[0])
	for i := 1; i < len(xs); i++ {
		gc.LineTo(xs[i], ys[i])
	}
	gc.Stroke()

	if s.Markers {
		gc.SetFillColor(s.Color)
		for i := range xs {
			gc.MoveTo(xs[i]+1, ys[i])
			gc.ArcTo(xs[i], ys[i], 1, 1, 0, 2*math.Pi)
			gc.Close()
			gc.Fill()
		}
	}
	return nil
}

// drawAxes draws grid lines on the floor, back and side panels of the chart
// cube, the three axis edges and their tick labels.
func (rs *RenderingStage) drawAxes(img *image.RGBA, gc *drawing.RasterGraphicContext, proj Projection, area plotArea) {
	cfg := rs.config
	line := func(a, b r3.Vec, c drawing.Color) {
		x0, y0 := rs.toScreen(a, proj, area)
		x1, y1 := rs.toScreen(b, proj, area)
		gc.SetStrokeColor(c)
		gc.SetLineWidth(1)
		gc.MoveTo(x0, y0)
		gc.LineTo(x1, y1)
		gc.Stroke()
	}

	xr, yr, zr := cfg.X, cfg.Y, cfg.Z
	for _, x := range ticks(xr, cfg.TickStep) {
		line(r3.Vec{X: x, Y: yr.Min, Z: zr.Min}, r3.Vec{X: x, Y: yr.Min, Z: zr.Max}, colorGrid)
		line(r3.Vec{X: x, Y: yr.Min, Z: zr.Min}, r3.Vec{X: x, Y: yr.Max, Z: zr.Min}, colorGrid)
	}
	for _, y := range ticks(yr, cfg.TickStep) {
		line(r3.Vec{X: xr.Min, Y: y, Z: zr.Min}, r3.Vec{X: xr.Max, Y: y, Z: zr.Min}, colorGrid)
		line(r3.Vec{X: xr.Min, Y: y, Z: zr.Min}, r3.Vec{X: xr.Min, Y: y, Z: zr.Max}, colorGrid)
	}
	for _, z := range ticks(zr, cfg.TickStep) {
		line(r3.Vec{X: xr.Min, Y: yr.Min, Z: z}, r3.Vec{X: xr.Max, Y: yr.Min, Z: z}, colorGrid)
		line(r3.Vec{X: xr.Min, Y: yr.Min, Z: z}, r3.Vec{X: xr.Min, Y: yr.Max, Z: z}, colorGrid)
	}

	origin := r3.Vec{X: xr.Min, Y: yr.Min, Z: zr.Max}
	line(origin, r3.Vec{X: xr.Max, Y: yr.Min, Z: zr.Max}, colorAxis)
	line(r3.Vec{X: xr.Min, Y: yr.Min, Z: zr.Min}, r3.Vec{X: xr.Min, Y: yr.Max, Z: zr.Min}, colorAxis)
	line(r3.Vec{X: xr.Max, Y: yr.Min, Z: zr.Min}, r3.Vec{X: xr.Max, Y: yr.Min, Z: zr.Max}, colorAxis)

	label := func(v r3.Vec, value float64) {
		x, y := rs.toScreen(v, proj, area)
		rs.drawText(img, fmt.Sprintf("%g", value), int(x)+3, int(y)+12)
	}
	for _, x := range ticks(xr, cfg.TickStep) {
		label(r3.Vec{X: x, Y: yr.Min, Z: zr.Max}, x)
	}
	for _, y := range ticks(yr, cfg.TickStep) {
		label(r3.Vec{X: xr.Min, Y: y, Z: zr.Min}, y)
	}
	for _, z := range ticks(zr, cfg.TickStep) {
		label(r3.Vec{X: xr.Max, Y: yr.Min, Z: z}, z)
	}
}

// drawLegend draws a bordered box in the top right corner with one entry
// per labelled series.
func (rs *RenderingStage) drawLegend(img *image.RGBA, gc *drawing.RasterGraphicContext, series []Series) {
	const (
		rowHeight = 16
		swatch    = 20
		pad       = 6
	)

	var entries []Series
	maxText := 0
	for _, s := range series {
		if s.Label == "" {
			continue
		}
		entries = append(entries, s)
		if w := rs.textWidth(s.Label); w > maxText {
			maxText = w
		}
	}
	if len(entries) == 0 {
		return
	}

	cfg := rs.config
	boxW := float64(pad + swatch + pad + maxText + pad)
	boxH := float64(pad + rowHeight*len(entries) + pad)
	x0 := float64(cfg.Width-cfg.Margin) - boxW
	y0 := float64(cfg.Margin + 30)

	gc.SetFillColor(drawing.Color{R: cfg.Background.R, G: cfg.Background.G, B: cfg.Background.B, A: 255})
	gc.SetStrokeColor(colorAxis)
	gc.SetLineWidth(1)
	gc.MoveTo(x0, y0)
	gc.LineTo(x0+boxW, y0)
	gc.LineTo(x0+boxW, y0+boxH)
	gc.LineTo(x0, y0+boxH)
	gc.Close()
	gc.FillStroke()

	for i, s := range entries {
		y := y0 + float64(pad+rowHeight*i) + rowHeight/2
		gc.SetStrokeColor(s.Color)
		gc.MoveTo(x0+pad, y)
		gc.LineTo(x0+pad+swatch, y)
		gc.Stroke()
		rs.drawText(img, s.Label, int(x0)+pad+swatch+pad, int(y)+4)
	}
}

func (rs *RenderingStage) drawText(img *image.RGBA, text string, x, y int) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(rs.config.Foreground),
		Face: rs.font,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}

func (rs *RenderingStage) textWidth(text string) int {
	return font.MeasureString(rs.font, text).Ceil()
}

// ticks returns the multiples of step inside r.
func ticks(r Range, step float64) []float64 {
	if step <= 0 {
		return nil
	}
	start := math.Ceil(r.Min/step) * step
	if start == 0 {
		start = 0 // drop the sign of -0
	}
	var out []float64
	for v := start; v <= r.Max; v += step {
		out = append(out, v)
	}
	return out
}
