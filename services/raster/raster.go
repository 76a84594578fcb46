package rastersvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
)

const maxCanvasPixels = 64_000_000

// Builtin draws compositions in-process. Its output depends only on the composition
// and on the images it references.
type Builtin struct {
	loader *Loader
}

var _ certificate.Rasterizer = (*Builtin)(nil)

func NewBuiltin(loader *Loader) *Builtin {
	return &Builtin{loader: loader}
}

func (r *Builtin) Rasterize(ctx context.Context, c certificate.Composition) ([]byte, error) {
	w, h := c.PixelSize()
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("invalid canvas size %dx%d", w, h)
	}
	if w*h > maxCanvasPixels {
		return nil, errors.Errorf("canvas too large: %dx%d", w, h)
	}

	canvas := newCanvas(w, h)
	var err error
	switch c.Mode {
	case certificate.ModeFreeform:
		err = r.drawFreeform(ctx, canvas, c)
	case certificate.ModeTemplated:
		err = r.drawMarkup(ctx, canvas, c)
	default:
		err = errors.Errorf("unknown design mode %q", c.Mode)
	}
	if err != nil {
		return nil, err
	}
	return encodePNG(canvas)
}

// Rasterizer renders freeform designs with the builtin rasterizer, and templated designs
// with the browser when one is configured.
type Rasterizer struct {
	builtin *Builtin
	browser *Browser // optional
	log     core.Logger
}

var _ certificate.Rasterizer = (*Rasterizer)(nil)

func NewRasterizer(conf *core.Config, loader *Loader, log core.Logger) *Rasterizer {
	r := &Rasterizer{builtin: NewBuiltin(loader), log: log}
	if conf.Export.Rasterizer == "browser" {
		r.browser = NewBrowser(conf.Export.BrowserURL, conf.Export.RenderTimeout)
	}
	return r
}

// NewDefaultLoader returns the loader used by the application: public http(s) hosts,
// data URIs, and the files of the artifact directory.
func NewDefaultLoader(conf *core.Config) *Loader {
	return NewLoader(newPublicClient(conf.Export.RenderTimeout), conf.Storage.ArtifactDir)
}

func (r *Rasterizer) Rasterize(ctx context.Context, c certificate.Composition) ([]byte, error) {
	if c.Mode == certificate.ModeTemplated && r.browser != nil {
		return r.browser.Rasterize(ctx, c)
	}
	return r.builtin.Rasterize(ctx, c)
}

func (r *Rasterizer) Close() {
	if r.browser == nil {
		return
	}
	if err := r.browser.Close(); err != nil && r.log != nil {
		r.log.Warn("closing browser", err)
	}
}
