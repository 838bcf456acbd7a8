package maphost

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dwc-systems/lead-map/pkg/markers"
)

const tileWorkers = 8

var (
	tileBackground = color.RGBA{8, 10, 15, 255}
	placeholderBG  = color.RGBA{27, 31, 39, 255}
	placeholderRim = color.RGBA{43, 49, 60, 255}
)

// renderer is one way of turning the marker set into a frame.
type renderer interface {
	mode() Mode
	size() (w, h int)
	resize(w, h int)
	fitBounds(b markers.Bounds)
	draw(ctx context.Context, c *canvas, ms []*markers.Marker) frameStats
}

type frameStats struct {
	tiles        int
	tileFailures int
}

// tileRenderer composes Web Mercator tiles under the markers.
type tileRenderer struct {
	tiles       TileSource
	lat, lng    float64
	zoom        int
	w, h        int
	timeout     time.Duration
	placeholder *image.RGBA
	log         *zap.Logger
}

func newTileRenderer(tiles TileSource, lat, lng float64, zoom, w, h int, timeout time.Duration, log *zap.Logger) *tileRenderer {
	return &tileRenderer{
		tiles:       tiles,
		lat:         lat,
		lng:         lng,
		zoom:        zoom,
		w:           w,
		h:           h,
		timeout:     timeout,
		placeholder: placeholderTile(),
		log:         log,
	}
}

func (r *tileRenderer) mode() Mode       { return ModeNative }
func (r *tileRenderer) size() (int, int) { return r.w, r.h }
func (r *tileRenderer) resize(w, h int)  { r.w, r.h = w, h }

func (r *tileRenderer) fitBounds(b markers.Bounds) {
	if b.Empty() {
		return
	}
	r.lat, r.lng = b.Center()
	r.zoom = fitZoom(b, r.w, r.h)
}

func (r *tileRenderer) draw(ctx context.Context, c *canvas, ms []*markers.Marker) frameStats {
	view := newMercator(r.lat, r.lng, r.zoom, r.w, r.h)
	c.fill(tileBackground)

	placed := view.tiles()
	imgs := make([]image.Image, len(placed))
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tileWorkers)
	for i, pt := range placed {
		g.Go(func() error {
			img, err := r.tiles.Tile(gctx, pt.key)
			if err != nil {
				r.log.Debug("tile failed", zap.Stringer("tile", pt.key), zap.Error(err))
				return nil
			}
			imgs[i] = img
			return nil
		})
	}
	_ = g.Wait()

	stats := frameStats{tiles: len(placed)}
	for i, pt := range placed {
		img := imgs[i]
		if img == nil {
			img = r.placeholder
			stats.tileFailures++
		}
		c.blit(img, image.Pt(pt.sx, pt.sy))
	}
	if stats.tileFailures > 0 {
		r.log.Warn("tiles unavailable", zap.Int("failed", stats.tileFailures), zap.Int("total", stats.tiles))
	}

	for _, m := range ms {
		x, y := view.project(m.Lat, m.Lng)
		drawMarker(c, x, y, m.Style)
	}
	return stats
}

// drawMarker paints a filled circle with a stroke ring, the way the native
// map styles circle markers.
func drawMarker(c *canvas, x, y float64, s markers.Style) {
	c.disk(x, y, s.Radius, withAlpha(s.Fill, s.FillOpacity))
	if s.StrokeWidth > 0 {
		c.annulus(x, y, s.Radius+s.StrokeWidth/2, s.Radius-s.StrokeWidth/2, s.Stroke)
	}
}

// placeholderTile stands in for tiles that could not be fetched.
func placeholderTile() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	draw.Draw(img, img.Bounds(), &image.Uniform{placeholderBG}, image.Point{}, draw.Src)
	for i := 0; i < TileSize; i++ {
		img.SetRGBA(i, 0, placeholderRim)
		img.SetRGBA(0, i, placeholderRim)
	}
	return img
}
