package rastersvc

import (
	"context"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/trezcool/certstudio/core/certificate"
)

// Sizes are CSS pixels, in design space.
const (
	baseFontSize = 16.0
	pageMargin   = 16.0
	lineSpacing  = 1.2
)

var headingSizes = map[atom.Atom]float64{
	atom.H1: 32, atom.H2: 24, atom.H3: 18.72, atom.H4: 16, atom.H5: 13.28, atom.H6: 10.72,
}

type htmlStyle struct {
	font  fontStyle
	size  float64
	color color.RGBA
	align string // left | center | right
}

type lineItem struct {
	text  string
	face  font.Face
	color color.RGBA
	pic   picture
	space int // gap before the item
	width int
	h     int // images only
}

type lineBox struct {
	items   []lineItem
	width   int
	height  int
	ascent  int
	descent int
	align   string
}

// htmlLayout flows sanitized markup into line boxes. It understands block and inline
// formatting, headings, lists, line breaks, images and a few inline style properties.
type htmlLayout struct {
	ctx    context.Context
	loader *Loader
	fonts  *fontBank
	ratio  float64
	width  int // content width, in pixels

	lines        []lineBox
	cur          lineBox
	pendingSpace bool
}

func (r *Builtin) drawMarkup(ctx context.Context, canvas *image.RGBA, c certificate.Composition) error {
	doc, err := html.Parse(strings.NewReader(c.Markup))
	if err != nil {
		return errors.Wrap(err, "parsing markup")
	}
	fonts, err := newFontBank()
	if err != nil {
		return err
	}
	defer fonts.Close()

	margin := px(pageMargin, c.Ratio)
	l := &htmlLayout{
		ctx:    ctx,
		loader: r.loader,
		fonts:  fonts,
		ratio:  c.Ratio,
		width:  canvas.Bounds().Dx() - 2*margin,
	}
	if err := l.walk(doc, htmlStyle{size: baseFontSize, color: black, align: "left"}); err != nil {
		return err
	}
	l.flush()
	l.paint(canvas, margin, margin)
	return nil
}

func (l *htmlLayout) walk(n *html.Node, st htmlStyle) error {
	switch n.Type {
	case html.TextNode:
		l.text(n.Data, st)
		return nil
	case html.ElementNode:
	case html.DocumentNode:
		return l.children(n, st)
	default:
		return nil
	}

	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Title:
		return nil
	case atom.Br:
		l.lineBreak(st)
		return nil
	case atom.Img:
		return l.image(n, st)
	case atom.B, atom.Strong, atom.Th:
		st.font.bold = true
	case atom.I, atom.Em, atom.Cite:
		st.font.italic = true
	case atom.Code, atom.Pre, atom.Kbd, atom.Tt, atom.Samp:
		st.font.mono = true
	case atom.Small:
		st.size *= 0.83
	case atom.Center:
		st.align = "center"
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		st.size = headingSizes[n.DataAtom]
		st.font.bold = true
	}
	st = applyAttrs(n, st)

	block, gap := blockOf(n.DataAtom)
	if !block {
		if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
			l.pendingSpace = true
		}
		return l.children(n, st)
	}

	l.flush()
	if n.DataAtom == atom.Li {
		l.word("•", st)
		l.pendingSpace = true
	}
	if err := l.children(n, st); err != nil {
		return err
	}
	l.flush()
	if gap {
		l.gap(st.size * 0.5)
	}
	return nil
}

func (l *htmlLayout) children(n *html.Node, st htmlStyle) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := l.walk(c, st); err != nil {
			return err
		}
	}
	return nil
}

// blockOf reports whether a starts a new line, and whether it is followed by a gap.
func blockOf(a atom.Atom) (block, gap bool) {
	switch a {
	case atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Ul, atom.Ol, atom.Table, atom.Blockquote, atom.Pre, atom.Hr:
		return true, true
	case atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Center,
		atom.Li, atom.Tr, atom.Dl, atom.Dt, atom.Dd, atom.Figure, atom.Figcaption, atom.Caption:
		return true, false
	}
	return false, false
}

// applyAttrs applies the align attribute and the supported inline style properties.
func applyAttrs(n *html.Node, st htmlStyle) htmlStyle {
	for _, a := range n.Attr {
		switch a.Key {
		case "align":
			st.align = normalizeAlign(a.Val, st.align)
		case "style":
			for _, decl := range strings.Split(a.Val, ";") {
				prop, val, ok := strings.Cut(decl, ":")
				if !ok {
					continue
				}
				val = strings.TrimSpace(val)
				switch strings.ToLower(strings.TrimSpace(prop)) {
				case "color":
					st.color = parseColor(val)
				case "font-size":
					if size, ok := cssLength(val, st.size); ok && size > 0 {
						st.size = size
					}
				case "font-weight":
					weight, err := strconv.Atoi(val)
					st.font.bold = val == "bold" || val == "bolder" || (err == nil && weight >= 600)
				case "font-style":
					st.font.italic = val == "italic" || val == "oblique"
				case "font-family":
					st.font.mono = styleOf(val).mono
				case "text-align":
					st.align = normalizeAlign(val, st.align)
				}
			}
		}
	}
	return st
}

func normalizeAlign(v, fallback string) string {
	switch v = strings.ToLower(strings.TrimSpace(v)); v {
	case "left", "center", "right":
		return v
	}
	return fallback
}

// cssLength parses px, pt, em and unitless lengths.
func cssLength(v string, em float64) (float64, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	mult := 1.0
	switch {
	case strings.HasSuffix(v, "px"):
		v = strings.TrimSuffix(v, "px")
	case strings.HasSuffix(v, "pt"):
		v, mult = strings.TrimSuffix(v, "pt"), 4.0/3
	case strings.HasSuffix(v, "em"):
		v, mult = strings.TrimSuffix(v, "em"), em
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f * mult, true
}

func (l *htmlLayout) text(data string, st htmlStyle) {
	words := strings.Fields(data)
	if len(words) == 0 {
		if data != "" {
			l.pendingSpace = true
		}
		return
	}
	if strings.TrimLeft(data, " \t\r\n\f") != data {
		l.pendingSpace = true
	}
	for i, w := range words {
		if i > 0 {
			l.pendingSpace = true
		}
		l.word(w, st)
	}
	if strings.TrimRight(data, " \t\r\n\f") != data {
		l.pendingSpace = true
	}
}

func (l *htmlLayout) word(w string, st htmlStyle) {
	face := l.fonts.face(st.font, st.size*l.ratio)
	width := font.MeasureString(face, w).Ceil()
	space := 0
	if l.pendingSpace && len(l.cur.items) > 0 {
		space = font.MeasureString(face, " ").Ceil()
	}
	if len(l.cur.items) > 0 && l.cur.width+space+width > l.width {
		l.flush()
		space = 0
	}
	l.pendingSpace = false

	m := face.Metrics()
	l.add(lineItem{text: w, face: face, color: st.color, space: space, width: width}, st,
		px(st.size*lineSpacing, l.ratio), m.Ascent.Ceil(), m.Descent.Ceil())
}

func (l *htmlLayout) image(n *html.Node, st htmlStyle) error {
	var src string
	var w, h float64
	for _, a := range n.Attr {
		switch a.Key {
		case "src":
			src = a.Val
		case "width":
			w, _ = cssLength(a.Val, st.size)
		case "height":
			h, _ = cssLength(a.Val, st.size)
		}
	}
	if src == "" {
		return nil
	}
	pic, err := l.loader.decode(l.ctx, src)
	if err != nil {
		return errors.Wrap(err, "loading markup image")
	}

	nw, nh := pic.size()
	switch {
	case w > 0 && h <= 0 && nw > 0:
		h = w * float64(nh) / float64(nw)
	case h > 0 && w <= 0 && nh > 0:
		w = h * float64(nw) / float64(nh)
	case w <= 0 && h <= 0:
		w, h = float64(nw), float64(nh)
	}
	pw, ph := px(w, l.ratio), px(h, l.ratio)
	if pw > l.width && pw > 0 {
		ph = ph * l.width / pw
		pw = l.width
	}
	if pw <= 0 || ph <= 0 {
		return nil
	}

	space := 0
	if l.pendingSpace && len(l.cur.items) > 0 {
		space = px(st.size*0.25, l.ratio)
	}
	if len(l.cur.items) > 0 && l.cur.width+space+pw > l.width {
		l.flush()
		space = 0
	}
	l.pendingSpace = false
	l.add(lineItem{pic: pic, space: space, width: pw, h: ph}, st, ph, ph, 0)
	return nil
}

func (l *htmlLayout) add(it lineItem, st htmlStyle, height, ascent, descent int) {
	if len(l.cur.items) == 0 {
		l.cur.align = st.align
	}
	l.cur.items = append(l.cur.items, it)
	l.cur.width += it.space + it.width
	l.cur.height = max(l.cur.height, height)
	l.cur.ascent = max(l.cur.ascent, ascent)
	l.cur.descent = max(l.cur.descent, descent)
}

func (l *htmlLayout) flush() {
	if len(l.cur.items) > 0 {
		l.lines = append(l.lines, l.cur)
	}
	l.cur = lineBox{}
	l.pendingSpace = false
}

// lineBreak ends the current line; on an empty line it leaves a blank one.
func (l *htmlLayout) lineBreak(st htmlStyle) {
	if len(l.cur.items) == 0 {
		l.gap(st.size * lineSpacing)
		return
	}
	l.flush()
}

func (l *htmlLayout) gap(size float64) {
	l.lines = append(l.lines, lineBox{height: px(size, l.ratio)})
}

func (l *htmlLayout) paint(canvas *image.RGBA, left, top int) {
	y := top
	for _, line := range l.lines {
		if y > canvas.Bounds().Max.Y {
			return
		}
		height := max(line.height, line.ascent+line.descent)
		baseline := y + (height-(line.ascent+line.descent))/2 + line.ascent

		x := left
		switch line.align {
		case "center":
			x += (l.width - line.width) / 2
		case "right":
			x += l.width - line.width
		}
		for _, it := range line.items {
			x += it.space
			if it.pic != nil {
				it.pic.drawTo(canvas, image.Rect(x, baseline-it.h, x+it.width, baseline))
			} else {
				drawBaseline(canvas, it.face, it.color, it.text, x, baseline)
			}
			x += it.width
		}
		y += height
	}
}
