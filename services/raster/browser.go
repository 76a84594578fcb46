package rastersvc

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/trezcool/certstudio/core/certificate"
)

const pageShell = `<!DOCTYPE html><html><head><meta charset="utf-8"><style>` +
	`html,body{margin:0;background:#fff}body{padding:16px;font-family:sans-serif;font-size:16px}` +
	`</style></head><body>`

// Browser renders templated markup with headless Chrome.
// Output goes through the same encoder as the builtin rasterizer.
type Browser struct {
	controlURL string // empty launches a local Chrome
	timeout    time.Duration

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

var _ certificate.Rasterizer = (*Browser)(nil)

func NewBrowser(controlURL string, timeout time.Duration) *Browser {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Browser{controlURL: controlURL, timeout: timeout}
}

// connect starts or joins Chrome on first use.
func (br *Browser) connect() (*rod.Browser, error) {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.browser != nil {
		return br.browser, nil
	}

	wsURL := br.controlURL
	if wsURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, errors.Wrap(err, "launching chrome")
		}
		wsURL = u
		br.lnch = l
	}
	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, errors.Wrap(err, "connecting to chrome")
	}
	br.browser = b
	return b, nil
}

func (br *Browser) Rasterize(ctx context.Context, c certificate.Composition) ([]byte, error) {
	if c.Mode != certificate.ModeTemplated {
		return nil, errors.Errorf("the browser only renders templated designs, got %q", c.Mode)
	}
	w, h := c.PixelSize()
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("invalid canvas size %dx%d", w, h)
	}

	b, err := br.connect()
	if err != nil {
		return nil, err
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, errors.Wrap(err, "opening page")
	}
	defer page.Close()

	router := page.HijackRequests()
	if err := router.Add("*", "", guardRequest); err != nil {
		return nil, errors.Wrap(err, "guarding page requests")
	}
	go router.Run()
	defer func() { _ = router.Stop() }()

	ctx, cancel := context.WithTimeout(ctx, br.timeout)
	defer cancel()
	page = page.Context(ctx)

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.Viewport.Width,
		Height:            c.Viewport.Height,
		DeviceScaleFactor: c.Ratio,
	})
	if err != nil {
		return nil, errors.Wrap(err, "sizing page")
	}
	if err := page.SetDocumentContent(pageShell + c.Markup + "</body></html>"); err != nil {
		return nil, errors.Wrap(err, "loading markup")
	}
	if err := page.WaitLoad(); err != nil {
		return nil, errors.Wrap(err, "waiting for markup")
	}
	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return nil, errors.Wrap(err, "capturing page")
	}

	shot, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding capture")
	}
	if b := shot.Bounds(); b.Dx() != w || b.Dy() != h {
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), shot, b, draw.Src, nil)
		shot = scaled
	}
	return encodePNG(flatten(shot))
}

// guardRequest lets the page load public resources only.
func guardRequest(h *rod.Hijack) {
	u := h.Request.URL()
	if u.Scheme == "data" {
		h.ContinueRequest(&proto.FetchContinueRequest{})
		return
	}
	if err := checkPublicURL(h.Request.Req().Context(), u.String()); err != nil {
		h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		return
	}
	h.ContinueRequest(&proto.FetchContinueRequest{})
}

func (br *Browser) Close() error {
	br.mu.Lock()
	defer br.mu.Unlock()
	var err error
	if br.browser != nil {
		err = br.browser.Close()
		br.browser = nil
	}
	if br.lnch != nil {
		br.lnch.Kill()
		br.lnch = nil
	}
	return err
}
