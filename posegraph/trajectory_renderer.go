package posegraph

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	estimatedColor = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	optimizedColor = color.RGBA{R: 30, G: 110, B: 200, A: 255}
	anchorColor    = color.RGBA{R: 20, G: 160, B: 80, A: 255}
	severityColors = [...]color.RGBA{
		SeverityLow:  {R: 240, G: 200, B: 40, A: 255},
		SeverityMid:  {R: 240, G: 130, B: 30, A: 255},
		SeverityHigh: {R: 210, G: 40, B: 40, A: 255},
	}
)

// TrajectoryOverlay is the state drawn by TrajectoryRenderer. Labels and
// Anchors index into Estimated.
type TrajectoryOverlay struct {
	RobotName string
	Estimated []PoseNode
	Optimized []PoseNode
	Labels    []LabelSet
	Anchors   []int
}

// TrajectoryRenderer draws estimated and optimized trajectories with the
// flagged nodes and the anchors on top
type TrajectoryRenderer struct {
	Width      float64 // mm
	Height     float64 // mm
	Padding    float64 // mm
	Tolerance  float64 // Douglas-Peucker tolerance in world units; 0 disables
	Resolution canvas.Resolution
}

// NewTrajectoryRenderer creates a renderer from the render config
func NewTrajectoryRenderer(cfg RenderConfig) *TrajectoryRenderer {
	r := &TrajectoryRenderer{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Padding:    10,
		Tolerance:  cfg.SimplifyTolerance,
		Resolution: canvas.DPI(150),
	}
	if r.Width <= 0 {
		r.Width = 200
	}
	if r.Height <= 0 {
		r.Height = 200
	}
	return r
}

// canvasRenderer is implemented by the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the overlay as an SVG
func (r *TrajectoryRenderer) RenderToSVG(w io.Writer, o *TrajectoryOverlay) error {
	if err := validateOverlay(o); err != nil {
		return err
	}
	svgRenderer := svg.New(w, r.Width, r.Height, nil)
	r.renderToCanvas(svgRenderer, o)
	return svgRenderer.Close()
}

// RenderToPNG writes the overlay as a PNG with a text legend
func (r *TrajectoryRenderer) RenderToPNG(w io.Writer, o *TrajectoryOverlay) error {
	if err := validateOverlay(o); err != nil {
		return err
	}
	rast := rasterizer.New(r.Width, r.Height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, o)

	y := 16
	drawText(rast, 8, y, fmt.Sprintf("%s: %d nodes", o.RobotName, len(o.Estimated)), color.RGBA{A: 255})
	for _, s := range allSeverities {
		y += 14
		drawText(rast, 8, y, fmt.Sprintf("%s: %d", s, countSeverity(o.Labels, s)), severityColors[s])
	}
	y += 14
	drawText(rast, 8, y, fmt.Sprintf("ANCHOR: %d", len(o.Anchors)), anchorColor)

	return png.Encode(w, rast)
}

func (r *TrajectoryRenderer) renderToCanvas(renderer canvasRenderer, o *TrajectoryOverlay) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(r.Width, r.Height), bgStyle, canvas.Identity)

	est := TrajectoryLine(o.Estimated, r.Tolerance)
	opt := TrajectoryLine(o.Optimized, r.Tolerance)
	toCanvas := r.projection(est, opt)

	drawLine := func(line orb.LineString, c color.RGBA, width float64) {
		if len(line) < 2 {
			return
		}
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: canvas.Transparent}
		style.Stroke = canvas.Paint{Color: c}
		style.StrokeWidth = width
		cp := &canvas.Path{}
		for i, p := range line {
			x, y := toCanvas(p)
			if i == 0 {
				cp.MoveTo(x, y)
			} else {
				cp.LineTo(x, y)
			}
		}
		renderer.RenderPath(cp, style, canvas.Identity)
	}
	drawLine(est, estimatedColor, 0.4)
	drawLine(opt, optimizedColor, 0.6)

	// Flagged nodes, colored by their most severe label.
	for i, labels := range o.Labels {
		if i >= len(o.Estimated) || labels.IsEmpty() {
			continue
		}
		sev := labels.Severities()
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: severityColors[sev[len(sev)-1]]}
		style.Stroke = canvas.Paint{Color: canvas.Black}
		style.StrokeWidth = 0.1
		x, y := toCanvas(nodePoint(o.Estimated[i]))
		renderer.RenderPath(canvas.Circle(1.0).Translate(x, y), style, canvas.Identity)
	}

	anchorStyle := canvas.DefaultStyle
	anchorStyle.Fill = canvas.Paint{Color: anchorColor}
	anchorStyle.Stroke = canvas.Paint{Color: canvas.Black}
	anchorStyle.StrokeWidth = 0.1
	for _, i := range o.Anchors {
		if i < 0 || i >= len(o.Estimated) {
			continue
		}
		x, y := toCanvas(nodePoint(o.Estimated[i]))
		renderer.RenderPath(canvas.Rectangle(1.6, 1.6).Translate(x-0.8, y-0.8), anchorStyle, canvas.Identity)
	}
}

// projection fits the union of the bounds of lines into the drawable area,
// keeping the aspect ratio
func (r *TrajectoryRenderer) projection(lines ...orb.LineString) func(orb.Point) (float64, float64) {
	var bound orb.Bound
	first := true
	for _, l := range lines {
		if len(l) == 0 {
			continue
		}
		if first {
			bound = l.Bound()
			first = false
			continue
		}
		bound = bound.Union(l.Bound())
	}

	dx := bound.Max[0] - bound.Min[0]
	dy := bound.Max[1] - bound.Min[1]
	w := r.Width - 2*r.Padding
	h := r.Height - 2*r.Padding
	scale := 1.0
	if dx > 0 || dy > 0 {
		scale = math.Min(w/math.Max(dx, 1e-9), h/math.Max(dy, 1e-9))
	}
	offX := r.Padding + (w-dx*scale)/2
	offY := r.Padding + (h-dy*scale)/2

	return func(p orb.Point) (float64, float64) {
		return offX + (p[0]-bound.Min[0])*scale, offY + (p[1]-bound.Min[1])*scale
	}
}

func nodePoint(n PoseNode) orb.Point {
	return orb.Point{n.Position[0], n.Position[1]}
}

func countSeverity(labels []LabelSet, s Severity) int {
	count := 0
	for _, l := range labels {
		if l.Has(s) {
			count++
		}
	}
	return count
}

func validateOverlay(o *TrajectoryOverlay) error {
	if o == nil || (len(o.Estimated) == 0 && len(o.Optimized) == 0) {
		return fmt.Errorf("rendering trajectory: %w: nothing to draw", ErrMalformedInput)
	}
	return nil
}

// drawText renders text onto an image at the given pixel position
func drawText(img draw.Image, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
