package rastersvc

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"golang.org/x/image/math/fixed"

	"github.com/trezcool/certstudio/core/certificate"
)

// drawFreeform paints the background, then the images, then the texts, in document order.
func (r *Builtin) drawFreeform(ctx context.Context, canvas *image.RGBA, c certificate.Composition) error {
	doc := c.Document

	if doc.Background != "" {
		pic, err := r.loader.decode(ctx, doc.Background)
		if err != nil {
			return errors.Wrap(err, "loading background")
		}
		nw, nh := pic.size()
		x, y, w, h := certificate.CoverFit(c.Viewport, nw, nh)
		if w > 0 && h > 0 {
			pic.drawTo(canvas, scaledRect(x, y, w, h, c.Ratio))
		}
	}

	for _, img := range doc.Images {
		if err := ctx.Err(); err != nil {
			return err
		}
		pic, err := r.loader.decode(ctx, img.Src)
		if err != nil {
			return errors.Wrapf(err, "loading image %s", img.ID)
		}
		pic.drawTo(canvas, scaledRect(img.X, img.Y, img.Width, img.Height, c.Ratio))
	}

	fonts, err := newFontBank()
	if err != nil {
		return err
	}
	defer fonts.Close()

	for _, txt := range doc.Texts {
		drawText(canvas, fonts, txt, c.Ratio)
	}
	return nil
}

// drawText lays out a text element from its top-left corner. Lines are one font size tall;
// a set box width wraps the text and a set box height clips the overflowing lines.
func drawText(canvas *image.RGBA, fonts *fontBank, txt certificate.TextElement, ratio float64) {
	size := txt.FontSize
	if size <= 0 {
		size = certificate.DefaultFontSize
	}
	face := fonts.face(styleOf(txt.FontFamily), size*ratio)
	col := parseColor(txt.Fill)

	lines := wrapText(face, txt.Text, fixed.I(px(txt.Width, ratio)))
	lineHeight := px(size, ratio)
	x, top := px(txt.X, ratio), px(txt.Y, ratio)
	bottom := canvas.Bounds().Max.Y
	if txt.Height > 0 {
		bottom = top + px(txt.Height, ratio)
	}

	for i, line := range lines {
		lineTop := top + i*lineHeight
		if lineTop+lineHeight > bottom && i > 0 {
			break
		}
		drawLine(canvas, face, col, line, x, lineTop, lineHeight)
	}
}
