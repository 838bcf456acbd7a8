package maphost

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// projectFunc maps lat/lng to canvas pixels.
type projectFunc func(lat, lng float64) (x, y float64)

// canvas is a CPU raster target that counts its draw calls.
type canvas struct {
	img   *image.RGBA
	w, h  int
	calls int
	rast  vector.Rasterizer
}

func newCanvas(w, h int) *canvas {
	w, h = max(w, 1), max(h, 1)
	return &canvas{img: image.NewRGBA(image.Rect(0, 0, w, h)), w: w, h: h}
}

func (c *canvas) resize(w, h int) {
	w, h = max(w, 1), max(h, 1)
	if w == c.w && h == c.h {
		return
	}
	c.img = image.NewRGBA(image.Rect(0, 0, w, h))
	c.w, c.h = w, h
}

func (c *canvas) fill(col color.RGBA) {
	draw.Draw(c.img, c.img.Bounds(), &image.Uniform{col}, image.Point{}, draw.Src)
	c.calls++
}

func (c *canvas) fillRect(r image.Rectangle, col color.Color) {
	r = r.Intersect(c.img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(c.img, r, &image.Uniform{col}, image.Point{}, draw.Over)
	c.calls++
}

func (c *canvas) strokeRect(r image.Rectangle, col color.RGBA) {
	c.line(r.Min.X, r.Min.Y, r.Max.X-1, r.Min.Y, col)
	c.line(r.Max.X-1, r.Min.Y, r.Max.X-1, r.Max.Y-1, col)
	c.line(r.Max.X-1, r.Max.Y-1, r.Min.X, r.Max.Y-1, col)
	c.line(r.Min.X, r.Max.Y-1, r.Min.X, r.Min.Y, col)
}

func (c *canvas) blit(src image.Image, at image.Point) {
	r := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}
	draw.Draw(c.img, r, src, src.Bounds().Min, draw.Src)
	c.calls++
}

// line is Bresenham with per-pixel clipping.
func (c *canvas) line(x1, y1, x2, y2 int, col color.RGBA) {
	dx, dy := math.Abs(float64(x2-x1)), math.Abs(float64(y2-y1))
	sx, sy := -1, -1
	if x1 < x2 {
		sx = 1
	}
	if y1 < y2 {
		sy = 1
	}
	err := dx - dy
	for {
		if x1 >= 0 && x1 < c.w && y1 >= 0 && y1 < c.h {
			off := y1*c.img.Stride + x1*4
			c.img.Pix[off], c.img.Pix[off+1], c.img.Pix[off+2], c.img.Pix[off+3] = col.R, col.G, col.B, 255
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
	c.calls++
}

// ring strokes a GeoJSON ring of [lng, lat] pairs.
func (c *canvas) ring(coords [][]float64, project projectFunc, col color.RGBA) {
	for i := 0; i < len(coords)-1; i++ {
		if len(coords[i]) < 2 || len(coords[i+1]) < 2 {
			continue
		}
		x1, y1 := project(coords[i][1], coords[i][0])
		x2, y2 := project(coords[i+1][1], coords[i+1][0])
		c.line(int(x1), int(y1), int(x2), int(y2), col)
	}
}

// polygon scanline-fills GeoJSON polygon rings with the even-odd rule.
func (c *canvas) polygon(rings [][][]float64, project projectFunc, col color.RGBA) {
	if len(rings) == 0 {
		return
	}
	type point struct{ x, y float64 }
	projected := make([][]point, len(rings))
	minY, maxY := float64(c.h), 0.0
	for i, ring := range rings {
		projected[i] = make([]point, 0, len(ring))
		for _, p := range ring {
			if len(p) < 2 {
				continue
			}
			x, y := project(p[1], p[0])
			projected[i] = append(projected[i], point{x, y})
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	for y := max(int(minY), 0); y <= int(maxY) && y < c.h; y++ {
		var nodes []int
		fy := float64(y)
		for _, ring := range projected {
			for i := 0; i < len(ring); i++ {
				j := (i + 1) % len(ring)
				if (ring[i].y < fy && ring[j].y >= fy) || (ring[j].y < fy && ring[i].y >= fy) {
					nodeX := ring[i].x + (fy-ring[i].y)/(ring[j].y-ring[i].y)*(ring[j].x-ring[i].x)
					nodes = append(nodes, int(nodeX))
				}
			}
		}
		sort.Ints(nodes)
		for i := 0; i < len(nodes)-1; i += 2 {
			xs, xe := max(nodes[i], 0), min(nodes[i+1], c.w-1)
			for x := xs; x < xe; x++ {
				off := y*c.img.Stride + x*4
				c.img.Pix[off], c.img.Pix[off+1], c.img.Pix[off+2], c.img.Pix[off+3] = col.R, col.G, col.B, 255
			}
		}
	}
	c.calls++
}

// disk fills an anti-aliased circle.
func (c *canvas) disk(cx, cy, r float64, col color.Color) {
	c.shape(cx, cy, r, col, func(z *vector.Rasterizer, x, y float32) {
		circlePath(z, x, y, float32(r), false)
	})
}

// annulus fills the band between inner and outer radius. The inner circle
// is wound the other way so it cancels out of the coverage.
func (c *canvas) annulus(cx, cy, outer, inner float64, col color.Color) {
	c.shape(cx, cy, outer, col, func(z *vector.Rasterizer, x, y float32) {
		circlePath(z, x, y, float32(outer), false)
		if inner > 0 {
			circlePath(z, x, y, float32(inner), true)
		}
	})
}

// shape rasterizes a path into a mask the size of its bounding box and
// composites it, so cost scales with the shape and not with the canvas.
func (c *canvas) shape(cx, cy, r float64, col color.Color, build func(z *vector.Rasterizer, x, y float32)) {
	if r <= 0 || math.IsNaN(cx) || math.IsNaN(cy) {
		return
	}
	pad := int(math.Ceil(r)) + 1
	x0, y0 := int(math.Floor(cx))-pad, int(math.Floor(cy))-pad
	size := 2*pad + 2
	bbox := image.Rect(x0, y0, x0+size, y0+size)
	if !bbox.Overlaps(c.img.Bounds()) {
		return
	}

	c.rast.Reset(size, size)
	build(&c.rast, float32(cx)-float32(x0), float32(cy)-float32(y0))
	mask := image.NewAlpha(image.Rect(0, 0, size, size))
	c.rast.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	draw.DrawMask(c.img, bbox, &image.Uniform{col}, image.Point{}, mask, image.Point{}, draw.Over)
	c.calls++
}

// circlePath adds a closed circle of four cubic segments.
func circlePath(z *vector.Rasterizer, x, y, r float32, reverse bool) {
	const k = 0.5522848
	kr := k * r
	z.MoveTo(x+r, y)
	if reverse {
		z.CubeTo(x+r, y-kr, x+kr, y-r, x, y-r)
		z.CubeTo(x-kr, y-r, x-r, y-kr, x-r, y)
		z.CubeTo(x-r, y+kr, x-kr, y+r, x, y+r)
		z.CubeTo(x+kr, y+r, x+r, y+kr, x+r, y)
	} else {
		z.CubeTo(x+r, y+kr, x+kr, y+r, x, y+r)
		z.CubeTo(x-kr, y+r, x-r, y+kr, x-r, y)
		z.CubeTo(x-r, y-kr, x-kr, y-r, x, y-r)
		z.CubeTo(x+kr, y-r, x+r, y-kr, x+r, y)
	}
	z.ClosePath()
}

// text draws s with its baseline at y.
func (c *canvas) text(x, y int, s string, face font.Face, col color.Color) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  &image.Uniform{col},
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
	c.calls++
}

// textCentered draws s horizontally centered on x.
func (c *canvas) textCentered(x, y int, s string, face font.Face, col color.Color) {
	w := font.MeasureString(face, s).Ceil()
	c.text(x-w/2, y, s, face, col)
}

func withAlpha(col color.RGBA, opacity float64) color.NRGBA {
	a := math.Round(math.Max(0, math.Min(1, opacity)) * 255)
	return color.NRGBA{R: col.R, G: col.G, B: col.B, A: uint8(a)}
}
