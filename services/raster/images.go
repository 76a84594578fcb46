package rastersvc

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/trezcool/certstudio/core/certificate"
)

const (
	maxImageBytes  = 20 << 20
	maxImagePixels = 40_000_000
)

var errUnsupportedSource = errors.New("unsupported image source")

// Loader reads image references: data URIs, http(s) URLs and files under a root directory.
// Remote images are only fetched from public hosts.
type Loader struct {
	client   *http.Client
	root     string // empty disables local files
	checkURL func(ctx context.Context, rawURL string) error
}

var _ certificate.ImageLoader = (*Loader)(nil)

func NewLoader(client *http.Client, root string) *Loader {
	if client == nil {
		client = newPublicClient(30 * time.Second)
	}
	return &Loader{client: client, root: root, checkURL: checkPublicURL}
}

// Dimensions returns the natural size of the image `src`, without decoding its pixels.
func (l *Loader) Dimensions(ctx context.Context, src string) (width, height int, err error) {
	data, mediaType, err := l.read(ctx, src)
	if err != nil {
		return 0, 0, err
	}
	if isSVG(mediaType, data) {
		icon, err := parseSVG(data)
		if err != nil {
			return 0, 0, err
		}
		return int(icon.ViewBox.W), int(icon.ViewBox.H), nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, errors.Wrap(err, "decoding image header")
	}
	return cfg.Width, cfg.Height, nil
}

// picture is a decoded image that can be drawn into any rectangle of a canvas.
type picture interface {
	size() (width, height int)
	drawTo(dst *image.RGBA, r image.Rectangle)
}

type bitmap struct {
	img image.Image
}

func (b bitmap) size() (int, int) { return b.img.Bounds().Dx(), b.img.Bounds().Dy() }

func (b bitmap) drawTo(dst *image.RGBA, r image.Rectangle) {
	draw.CatmullRom.Scale(dst, r, b.img, b.img.Bounds(), draw.Over, nil)
}

type vector struct {
	icon *oksvg.SvgIcon
}

func (v vector) size() (int, int) { return int(v.icon.ViewBox.W), int(v.icon.ViewBox.H) }

// drawTo rasterizes the icon at the target size so that scaling never blurs it.
func (v vector) drawTo(dst *image.RGBA, r image.Rectangle) {
	v.icon.SetTarget(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	v.icon.Draw(raster, 1.0)
}

// decode reads and decodes the image `src`.
func (l *Loader) decode(ctx context.Context, src string) (picture, error) {
	data, mediaType, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}
	if isSVG(mediaType, data) {
		icon, err := parseSVG(data)
		if err != nil {
			return nil, err
		}
		return vector{icon: icon}, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image header")
	}
	if cfg.Width*cfg.Height > maxImagePixels {
		return nil, errors.Errorf("image too large: %dx%d", cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	return bitmap{img: img}, nil
}

func parseSVG(data []byte) (*oksvg.SvgIcon, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, errors.Wrap(err, "parsing svg")
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		return nil, errors.New("svg has no size")
	}
	return icon, nil
}

func isSVG(mediaType string, data []byte) bool {
	if strings.Contains(mediaType, "svg") {
		return true
	}
	head := bytes.TrimSpace(data[:min(len(data), 512)])
	return bytes.HasPrefix(head, []byte("<")) && bytes.Contains(bytes.ToLower(data[:min(len(data), 4096)]), []byte("<svg"))
}

// read returns the raw bytes of `src` and its declared media type, if any.
func (l *Loader) read(ctx context.Context, src string) ([]byte, string, error) {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return nil, "", errors.Wrap(errUnsupportedSource, "empty source")
	case strings.HasPrefix(src, "data:"):
		return readDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetch(ctx, src)
	default:
		return l.readFile(src)
	}
}

// readDataURI decodes data:[<mediatype>][;base64],<data>
func readDataURI(src string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, "", errors.New("malformed data uri")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		text, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", errors.Wrap(err, "unescaping data uri")
		}
		return []byte(text), mediaType, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", errors.Wrap(err, "decoding data uri")
	}
	return data, mediaType, nil
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, string, error) {
	if err := l.checkURL(ctx, src); err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "building request")
	}
	resp, err := l.client.Do(req)
	if err != nil {
		if errors.Is(err, errUnsupportedSource) {
			return nil, "", errBlockedHost
		}
		return nil, "", errors.Wrap(err, "fetching image")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Errorf("fetching image: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", errors.Wrap(err, "reading image")
	}
	if len(data) > maxImageBytes {
		return nil, "", errors.New("image exceeds the size limit")
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// readFile reads `src` relative to the loader root. Paths never escape the root.
func (l *Loader) readFile(src string) ([]byte, string, error) {
	if l.root == "" {
		return nil, "", errors.Wrap(errUnsupportedSource, src)
	}
	rel := path.Clean("/" + strings.TrimPrefix(src, "file://"))
	name := filepath.Join(l.root, filepath.FromSlash(rel))

	fi, err := os.Stat(name)
	if err != nil {
		return nil, "", errors.Wrap(err, "opening image")
	}
	if fi.Size() > maxImageBytes {
		return nil, "", errors.New("image exceeds the size limit")
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, "", errors.Wrap(err, "reading image")
	}
	mediaType := ""
	if strings.EqualFold(filepath.Ext(name), ".svg") {
		mediaType = "image/svg+xml"
	}
	return data, mediaType, nil
}
