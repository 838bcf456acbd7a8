package maphost

import (
	"math"

	"github.com/dwc-systems/lead-map/pkg/markers"
)

const (
	TileSize = 256
	MinZoom  = 1
	MaxZoom  = 18

	maxMercatorLat = 85.05112878
)

// worldPixel is the Web Mercator pixel position of lat/lng at zoom.
func worldPixel(lat, lng float64, zoom int) (x, y float64) {
	lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
	n := float64(TileSize) * math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180
	x = (lng + 180) / 360 * n
	y = (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n
	return x, y
}

// mercator is a viewport of w×h pixels centered on a lat/lng.
type mercator struct {
	zoom   int
	cx, cy float64
	w, h   int
}

func newMercator(lat, lng float64, zoom, w, h int) mercator {
	cx, cy := worldPixel(lat, lng, zoom)
	return mercator{zoom: zoom, cx: cx, cy: cy, w: w, h: h}
}

func (m mercator) origin() (x, y float64) {
	return m.cx - float64(m.w)/2, m.cy - float64(m.h)/2
}

func (m mercator) project(lat, lng float64) (x, y float64) {
	wx, wy := worldPixel(lat, lng, m.zoom)
	ox, oy := m.origin()
	return wx - ox, wy - oy
}

// tiles lists the tiles covering the viewport with their screen offsets.
// Columns wrap around the antimeridian; rows outside the world are omitted.
func (m mercator) tiles() []placedTile {
	ox, oy := m.origin()
	n := 1 << m.zoom
	tx0, ty0 := int(math.Floor(ox/TileSize)), int(math.Floor(oy/TileSize))
	tx1 := int(math.Floor((ox + float64(m.w) - 1) / TileSize))
	ty1 := int(math.Floor((oy + float64(m.h) - 1) / TileSize))

	var out []placedTile
	for ty := ty0; ty <= ty1; ty++ {
		if ty < 0 || ty >= n {
			continue
		}
		for tx := tx0; tx <= tx1; tx++ {
			out = append(out, placedTile{
				key: TileKey{Z: m.zoom, X: ((tx % n) + n) % n, Y: ty},
				sx:  int(math.Round(float64(tx*TileSize) - ox)),
				sy:  int(math.Round(float64(ty*TileSize) - oy)),
			})
		}
	}
	return out
}

type placedTile struct {
	key    TileKey
	sx, sy int
}

// centerTile is the tile under lat/lng.
func centerTile(lat, lng float64, zoom int) TileKey {
	x, y := worldPixel(lat, lng, zoom)
	n := 1 << zoom
	tx := min(max(int(x/TileSize), 0), n-1)
	ty := min(max(int(y/TileSize), 0), n-1)
	return TileKey{Z: zoom, X: tx, Y: ty}
}

// fitZoom is the largest zoom at which b fits in w×h with a small margin.
func fitZoom(b markers.Bounds, w, h int) int {
	for z := MaxZoom; z > MinZoom; z-- {
		x0, y0 := worldPixel(b.MaxLat, b.MinLng, z)
		x1, y1 := worldPixel(b.MinLat, b.MaxLng, z)
		if x1-x0 <= float64(w)*0.9 && y1-y0 <= float64(h)*0.9 {
			return z
		}
	}
	return MinZoom
}

// linear maps a lat/lng box straight onto the canvas. It is only used by the
// fallback renderer, which has no tiles to line up with.
type linear struct {
	b    markers.Bounds
	w, h int
}

func (l linear) project(lat, lng float64) (x, y float64) {
	spanLng := l.b.MaxLng - l.b.MinLng
	spanLat := l.b.MaxLat - l.b.MinLat
	if spanLng <= 0 || spanLat <= 0 {
		return float64(l.w) / 2, float64(l.h) / 2
	}
	x = (lng - l.b.MinLng) / spanLng * float64(l.w)
	y = (l.b.MaxLat - lat) / spanLat * float64(l.h)
	return x, y
}
