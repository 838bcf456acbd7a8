package markers

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/dwc-systems/lead-map/pkg/leads"
)

const (
	HighColor    = "#ff4444"
	DefaultColor = "#00ff88"
	StrokeColor  = "#ffffff"

	HighRadius    = 12.0
	DefaultRadius = 8.0
)

// Style is how a marker is painted: a filled circle with a white ring.
type Style struct {
	Radius      float64
	Fill        color.RGBA
	Stroke      color.RGBA
	StrokeWidth float64
	FillOpacity float64
}

var (
	highStyle = Style{
		Radius:      HighRadius,
		Fill:        MustParseHex(HighColor),
		Stroke:      MustParseHex(StrokeColor),
		StrokeWidth: 2,
		FillOpacity: 0.8,
	}
	defaultStyle = Style{
		Radius:      DefaultRadius,
		Fill:        MustParseHex(DefaultColor),
		Stroke:      MustParseHex(StrokeColor),
		StrokeWidth: 2,
		FillOpacity: 0.8,
	}
)

// StyleFor returns the marker style for a priority. Only HIGH is emphasized.
func StyleFor(p leads.Priority) Style {
	if p == leads.PriorityHigh {
		return highStyle
	}
	return defaultStyle
}

// LayerFor maps a priority onto its layer. Unknown tokens go to the medium layer.
func LayerFor(p leads.Priority) LayerName {
	switch p {
	case leads.PriorityHigh:
		return LayerHigh
	case leads.PriorityLow:
		return LayerLow
	default:
		return LayerMedium
	}
}

// ParseHex parses #rgb or #rrggbb.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}, nil
}

func MustParseHex(s string) color.RGBA {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
