package rastersvc

import (
	"math"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type fontStyle struct {
	mono   bool
	bold   bool
	italic bool
}

type fontKey struct {
	style fontStyle
	size  int // hundredths of a pixel
}

var (
	fontsOnce sync.Once
	fontsErr  error
	fonts     map[fontStyle]*opentype.Font
)

// loadFonts parses the embedded Go fonts. Parsed fonts are shared; faces are not.
func loadFonts() error {
	fontsOnce.Do(func() {
		ttfs := map[fontStyle][]byte{
			{}:                         goregular.TTF,
			{bold: true}:               gobold.TTF,
			{italic: true}:             goitalic.TTF,
			{bold: true, italic: true}: gobolditalic.TTF,
			{mono: true}:               gomono.TTF,
			{mono: true, bold: true}:   gomonobold.TTF,
		}
		fonts = make(map[fontStyle]*opentype.Font, len(ttfs))
		for style, ttf := range ttfs {
			f, err := opentype.Parse(ttf)
			if err != nil {
				fontsErr = errors.Wrap(err, "parsing embedded font")
				return
			}
			fonts[style] = f
		}
	})
	return fontsErr
}

// styleOf maps a CSS-like font family to one of the embedded faces.
// Every proportional family renders with Go Regular.
func styleOf(family string) fontStyle {
	family = strings.ToLower(family)
	st := fontStyle{
		mono:   strings.Contains(family, "mono") || strings.Contains(family, "courier") || strings.Contains(family, "consolas"),
		bold:   strings.Contains(family, "bold"),
		italic: strings.Contains(family, "italic") || strings.Contains(family, "oblique"),
	}
	if st.mono {
		st.italic = false
	}
	return st
}

// fontBank hands out faces for a single render. Faces are not safe for concurrent use.
type fontBank struct {
	cache map[fontKey]font.Face
}

func newFontBank() (*fontBank, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}
	return &fontBank{cache: make(map[fontKey]font.Face)}, nil
}

// face returns the face of style `st` at `size` pixels.
func (b *fontBank) face(st fontStyle, size float64) font.Face {
	key := fontKey{style: st, size: int(math.Round(size * 100))}
	if f, ok := b.cache[key]; ok {
		return f
	}
	base := fonts[st]
	if base == nil {
		base = fonts[fontStyle{}]
	}
	f, err := opentype.NewFace(base, &opentype.FaceOptions{
		Size:    float64(key.size) / 100,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	b.cache[key] = f
	return f
}

func (b *fontBank) Close() {
	for _, f := range b.cache {
		_ = f.Close()
	}
}
