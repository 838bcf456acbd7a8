package maphost

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	panelBG     = color.NRGBA{0, 0, 0, 190}
	panelBorder = color.RGBA{36, 42, 53, 255}
	panelAccent = color.RGBA{0, 255, 136, 255}
	panelText   = color.RGBA{230, 230, 230, 255}
)

// newFace returns Go Regular at size points, or the built-in bitmap face
// if the TrueType data cannot be parsed.
func newFace(size float64) font.Face {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// drawPanel paints the summary box in the top-right corner. The first line
// is the title.
func drawPanel(c *canvas, lines []string, face font.Face) {
	if len(lines) == 0 {
		return
	}
	const margin, pad = 12, 10
	metrics := face.Metrics()
	lineH := metrics.Height.Ceil() + 2
	ascent := metrics.Ascent.Ceil()

	textW := 0
	for _, l := range lines {
		textW = max(textW, font.MeasureString(face, l).Ceil())
	}
	boxW := textW + 2*pad + 4
	boxH := len(lines)*lineH + 2*pad
	x0 := max(c.w-margin-boxW, 0)
	box := image.Rect(x0, margin, x0+boxW, margin+boxH)

	c.fillRect(box, panelBG)
	c.strokeRect(box, panelBorder)
	c.fillRect(image.Rect(box.Min.X, box.Min.Y, box.Min.X+4, box.Max.Y), panelAccent)

	y := box.Min.Y + pad + ascent
	for i, l := range lines {
		col := panelText
		if i == 0 {
			col = panelAccent
		}
		c.text(box.Min.X+pad+4, y, l, face, col)
		y += lineH
	}
}
