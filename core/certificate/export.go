package certificate

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/trezcool/certstudio/core"
)

type (
	// Composition is a fully resolved, validated design ready to be rasterized.
	// In freeform mode Document already has its tokens substituted and its placeholder fields appended.
	Composition struct {
		Mode     DesignMode `json:"mode"`
		Viewport Viewport   `json:"viewport"`
		Ratio    float64    `json:"ratio"`
		Document Document   `json:"document,omitempty"`
		Markup   string     `json:"markup,omitempty"`
	}

	// Rasterizer renders a Composition to an opaque PNG of
	// (Viewport.Width*Ratio) x (Viewport.Height*Ratio) pixels.
	// Identical compositions must produce identical bytes.
	Rasterizer interface {
		Rasterize(ctx context.Context, c Composition) ([]byte, error)
	}

	// RasterCache stores rendered PNGs by composition key.
	RasterCache interface {
		Get(ctx context.Context, key string) ([]byte, bool, error)
		Set(ctx context.Context, key string, png []byte) error
	}

	Raster struct {
		PNG      []byte
		Checksum string // BLAKE2b-256, hex
		Width    int
		Height   int
	}

	Exporter struct {
		raster Rasterizer
		cache  RasterCache // optional
		ratio  float64
		log    core.Logger
	}
)

// NewComposition validates a design and resolves it for rendering.
// Validation failures are reported before anything is rendered.
func NewComposition(mode DesignMode, vp Viewport, doc Document, tmpl string, ps Placeholders) (Composition, error) {
	if vp.IsZero() {
		return Composition{}, errNoRenderTarget
	}
	c := Composition{Mode: mode, Viewport: vp}
	values := ps.Values()

	switch mode {
	case ModeTemplated:
		markup, err := Render(tmpl, values)
		if err != nil {
			return Composition{}, err
		}
		c.Markup = markup

	case ModeFreeform:
		if doc.IsEmpty() {
			return Composition{}, errEmptyDocument
		}
		resolved := doc.Clone()
		for i := range resolved.Texts {
			resolved.Texts[i].Text = Substitute(resolved.Texts[i].Text, values)
		}
		resolved.Texts = append(resolved.Texts, placeholderFields(ps)...)
		c.Document = resolved

	default:
		return Composition{}, core.NewValidationError(
			errors.Errorf("unknown design mode %q", mode),
			core.FieldError{Field: "mode", Error: "must be one of freeform, templated"},
		)
	}
	return c, nil
}

// placeholderFields returns the visible, positioned placeholders as text elements.
func placeholderFields(ps Placeholders) []TextElement {
	var fields []TextElement
	for _, p := range ps {
		if !p.IsVisible || p.FontSize <= 0 || p.Value == "" {
			continue
		}
		fields = append(fields, TextElement{
			ID:         "placeholder:" + p.ID,
			X:          p.X,
			Y:          p.Y,
			Text:       stripResidual(p.Value),
			FontSize:   clampMin(p.FontSize, MinFontSize),
			FontFamily: DefaultFontFamily,
			Fill:       DefaultFill,
		})
	}
	return fields
}

// Key identifies the rendered output of c.
func (c Composition) Key() (string, error) {
	h, _ := blake2b.New256(nil)
	if err := json.NewEncoder(h).Encode(c); err != nil {
		return "", errors.Wrap(err, "encoding composition")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PixelSize is the size of the rendered bitmap.
func (c Composition) PixelSize() (width, height int) {
	return int(float64(c.Viewport.Width) * c.Ratio), int(float64(c.Viewport.Height) * c.Ratio)
}

// Checksum returns the hex BLAKE2b-256 digest of an artifact.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func NewExporter(raster Rasterizer, cache RasterCache, ratio float64, log core.Logger) *Exporter {
	if ratio <= 0 {
		ratio = ExportRatio
	}
	return &Exporter{raster: raster, cache: cache, ratio: ratio, log: log}
}

func (e *Exporter) Ratio() float64 { return e.ratio }

// Export rasterizes c at the exporter's ratio. Cache failures are logged, never returned.
func (e *Exporter) Export(ctx context.Context, c Composition) (Raster, error) {
	c.Ratio = e.ratio
	w, h := c.PixelSize()

	key, err := c.Key()
	if err != nil {
		return Raster{}, newExportError("keying", err)
	}
	if e.cache != nil {
		png, ok, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			e.warn("reading export cache", err)
		case ok:
			return Raster{PNG: png, Checksum: Checksum(png), Width: w, Height: h}, nil
		}
	}

	png, err := e.raster.Rasterize(ctx, c)
	if err != nil {
		var eerr *ExportError
		if errors.As(err, &eerr) {
			return Raster{}, err
		}
		return Raster{}, newExportError("rasterizing", err)
	}
	if len(png) == 0 {
		return Raster{}, newExportError("rasterizing", errors.New("empty output"))
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, png); err != nil {
			e.warn("writing export cache", err)
		}
	}
	return Raster{PNG: png, Checksum: Checksum(png), Width: w, Height: h}, nil
}

func (e *Exporter) warn(msg string, err error) {
	if e.log != nil {
		e.log.Warn(msg, err)
	}
}
