package rastersvc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

var (
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	black = color.RGBA{A: 0xff}

	namedColors = map[string]color.RGBA{
		"black":  black,
		"white":  white,
		"red":    {R: 0xff, A: 0xff},
		"green":  {G: 0x80, A: 0xff},
		"blue":   {B: 0xff, A: 0xff},
		"gray":   {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
		"grey":   {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
		"navy":   {B: 0x80, A: 0xff},
		"maroon": {R: 0x80, A: 0xff},
		"gold":   {R: 0xff, G: 0xd7, A: 0xff},
		"silver": {R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff},
	}

	// fixed, so that equal canvases always encode to equal bytes
	pngEncoder = png.Encoder{CompressionLevel: png.BestCompression}
)

// newCanvas returns an opaque white canvas.
func newCanvas(width, height int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)
	return canvas
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := pngEncoder.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "encoding png")
	}
	return buf.Bytes(), nil
}

// flatten composes img over an opaque white canvas.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	canvas := newCanvas(b.Dx(), b.Dy())
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Over)
	return canvas
}

// parseColor understands #rgb, #rrggbb, #rrggbbaa, rgb(r, g, b) and a few color names.
// Anything else is black.
func parseColor(s string) color.RGBA {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c
	}
	if strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")") {
		parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(s, "rgb("), ")"), ",")
		if len(parts) != 3 {
			return black
		}
		var rgb [3]uint8
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 || n > 255 {
				return black
			}
			rgb[i] = uint8(n)
		}
		return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}
	}

	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return black
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return black
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return black
	}
	// premultiplied, as color.RGBA expects
	a := uint32(n & 0xff)
	pm := func(v uint64) uint8 { return uint8(uint32(v&0xff) * a / 0xff) }
	return color.RGBA{R: pm(n >> 24), G: pm(n >> 16), B: pm(n >> 8), A: uint8(a)}
}

// px converts a design-space length to pixels.
func px(v, ratio float64) int { return int(math.Round(v * ratio)) }

func scaledRect(x, y, w, h, ratio float64) image.Rectangle {
	return image.Rect(px(x, ratio), px(y, ratio), px(x+w, ratio), px(y+h, ratio))
}

// wrapText breaks text into lines no wider than maxWidth. A maxWidth <= 0 only breaks on newlines.
// A single word wider than maxWidth is kept whole on its own line.
func wrapText(face font.Face, text string, maxWidth fixed.Int26_6) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		if maxWidth <= 0 {
			lines = append(lines, para)
			continue
		}
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if font.MeasureString(face, candidate) > maxWidth {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return lines
}

// drawLine draws s with its line box top at (x, top). The baseline sits in the middle of the box.
func drawLine(dst *image.RGBA, face font.Face, c color.Color, s string, x, top, lineHeight int) {
	m := face.Metrics()
	textHeight := (m.Ascent + m.Descent).Ceil()
	drawBaseline(dst, face, c, s, x, top+(lineHeight-textHeight)/2+m.Ascent.Ceil())
}

func drawBaseline(dst *image.RGBA, face font.Face, c color.Color, s string, x, baseline int) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}
