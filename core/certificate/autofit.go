package certificate

import (
	"context"
	"math"
)

// ImageLoader resolves an image reference to its natural pixel size.
type ImageLoader interface {
	Dimensions(ctx context.Context, src string) (width, height int, err error)
}

// Viewport is the render target of a session, in design-space units.
type Viewport struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (vp Viewport) IsZero() bool { return vp.Width <= 0 || vp.Height <= 0 }

// LoadState tracks the source load of an added image.
type LoadState int

const (
	LoadPending LoadState = iota
	LoadLoaded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadLoaded:
		return "loaded"
	case LoadFailed:
		return "failed"
	default:
		return "pending"
	}
}

// imageLoad is the completion signal of one image load.
// done is closed exactly once, when the load leaves the pending state.
type imageLoad struct {
	src    string
	added  ImageElement // geometry at add time
	state  LoadState
	err    error
	nw, nh int  // natural size, once loaded
	fitted bool // the fit was applied, or given up because the user moved the image first
	done   chan struct{}
}

// loadTracker holds the loads of a session, keyed by element id.
type loadTracker map[string]*imageLoad

func (lt loadTracker) start(img ImageElement) *imageLoad {
	ld := &imageLoad{src: img.Src, added: img, done: make(chan struct{})}
	lt[img.ID] = ld
	return ld
}

// complete settles the load of `id` with the natural size of the image and reports
// whether it just became loaded. Later completions of the same load are ignored.
func (lt loadTracker) complete(id string, nw, nh int, err error) bool {
	ld, ok := lt[id]
	if !ok || ld.state != LoadPending {
		return false
	}
	if err != nil {
		ld.state, ld.err = LoadFailed, err
	} else {
		ld.state, ld.nw, ld.nh = LoadLoaded, nw, nh
	}
	close(ld.done)
	return err == nil
}

func (lt loadTracker) pending() []<-chan struct{} {
	var chans []<-chan struct{}
	for _, ld := range lt {
		if ld.state == LoadPending {
			chans = append(chans, ld.done)
		}
	}
	return chans
}

// CoverFit scales a (nw x nh) image uniformly to cover the viewport and centers it.
func CoverFit(vp Viewport, nw, nh int) (x, y, width, height float64) {
	if vp.IsZero() || nw <= 0 || nh <= 0 {
		return 0, 0, 0, 0
	}
	cw, ch := float64(vp.Width), float64(vp.Height)
	scale := math.Max(cw/float64(nw), ch/float64(nh))
	width = float64(nw) * scale
	height = float64(nh) * scale
	return (cw - width) / 2, (ch - height) / 2, width, height
}

// sameGeometry reports whether img still has the position and size of `as`.
func (img ImageElement) sameGeometry(as ImageElement) bool {
	return img.X == as.X && img.Y == as.Y && img.Width == as.Width && img.Height == as.Height
}

// autoFit applies the cover fit to image `id` without recording history.
func (m *Model) autoFit(id string, vp Viewport, nw, nh int) bool {
	img, i, ok := m.doc.image(id)
	if !ok {
		return false
	}
	x, y, w, h := CoverFit(vp, nw, nh)
	if w == 0 || h == 0 {
		return false
	}
	img.X, img.Y = x, y
	img.Width = clampMin(w, MinImageWidth)
	img.Height = clampMin(h, MinImageHeight)
	m.adjust(m.doc.withImages(replaceAt(m.doc.Images, i, img)))
	return true
}
