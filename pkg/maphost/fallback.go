package maphost

import (
	"context"
	"image/color"

	geojson "github.com/paulmach/go.geojson"
	"go.uber.org/zap"
	"golang.org/x/image/font"

	"github.com/dwc-systems/lead-map/pkg/markers"
)

const (
	gridSpacing   = 40
	dotRadius     = 6
	fallbackTitle = "Lead Map (offline)"
)

// DefaultFallbackBounds is the box the canvas renderer shows before any
// FitBounds: the contiguous US.
var DefaultFallbackBounds = markers.NewBounds(25, -125, 50, -65)

var (
	fallbackBG   = color.RGBA{42, 42, 42, 255}
	gridColor    = color.RGBA{52, 56, 54, 255}
	landColor    = color.RGBA{33, 40, 37, 255}
	outlineColor = color.RGBA{0, 140, 80, 255}
	titleColor   = color.RGBA{0, 255, 136, 255}
	labelColor   = color.RGBA{255, 255, 255, 255}
)

// canvasRenderer draws an approximate map without tiles: a grid, a coarse
// outline and one dot per marker, all on a linear lat/lng projection.
// Every frame is drawn from scratch.
type canvasRenderer struct {
	bounds    markers.Bounds
	w, h      int
	outline   *geojson.FeatureCollection
	titleFace font.Face
	labelFace font.Face
}

func newCanvasRenderer(bounds markers.Bounds, w, h int, log *zap.Logger) *canvasRenderer {
	fc, err := geojson.UnmarshalFeatureCollection(usOutlineGeoJSON)
	if err != nil {
		log.Warn("map outline unavailable", zap.Error(err))
		fc = nil
	}
	if bounds.Empty() {
		bounds = DefaultFallbackBounds
	}
	return &canvasRenderer{
		bounds:    bounds,
		w:         w,
		h:         h,
		outline:   fc,
		titleFace: newFace(20),
		labelFace: newFace(10),
	}
}

func (r *canvasRenderer) mode() Mode       { return ModeFallback }
func (r *canvasRenderer) size() (int, int) { return r.w, r.h }
func (r *canvasRenderer) resize(w, h int)  { r.w, r.h = w, h }

func (r *canvasRenderer) fitBounds(b markers.Bounds) {
	if b.Empty() {
		return
	}
	r.bounds = b.Pad(0.1)
}

func (r *canvasRenderer) draw(_ context.Context, c *canvas, ms []*markers.Marker) frameStats {
	proj := linear{b: r.bounds, w: r.w, h: r.h}

	c.fill(fallbackBG)
	for x := 0; x < r.w; x += gridSpacing {
		c.line(x, 0, x, r.h-1, gridColor)
	}
	for y := 0; y < r.h; y += gridSpacing {
		c.line(0, y, r.w-1, y, gridColor)
	}

	if r.outline != nil {
		for _, f := range r.outline.Features {
			if f.Geometry == nil {
				continue
			}
			switch {
			case f.Geometry.IsPolygon():
				r.drawPolygon(c, f.Geometry.Polygon, proj.project)
			case f.Geometry.IsMultiPolygon():
				for _, poly := range f.Geometry.MultiPolygon {
					r.drawPolygon(c, poly, proj.project)
				}
			}
		}
	}

	c.textCentered(r.w/2, 40, fallbackTitle, r.titleFace, titleColor)

	for _, m := range ms {
		x, y := proj.project(m.Lat, m.Lng)
		c.disk(x, y, dotRadius, m.Style.Fill)
		if city := m.Lead.CityName(); city != "" {
			c.textCentered(int(x), int(y)+15, city, r.labelFace, labelColor)
		}
	}
	return frameStats{}
}

func (r *canvasRenderer) drawPolygon(c *canvas, rings [][][]float64, project projectFunc) {
	c.polygon(rings, project, landColor)
	for _, ring := range rings {
		c.ring(ring, project, outlineColor)
	}
}
