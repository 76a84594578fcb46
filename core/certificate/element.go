package certificate

import (
	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
)

// Geometric constants, in design-space units.
const (
	MinImageWidth  = 50.0
	MinImageHeight = 50.0
	MinTextWidth   = 20.0
	MinTextHeight  = 20.0
	MinFontSize    = 10.0

	// ExportRatio is the supersampling ratio used for raster export.
	ExportRatio = 2.0
)

// Defaults of newly added elements.
const (
	DefaultTextX          = 50.0
	DefaultTextY          = 50.0
	DefaultText           = "Sample Text"
	DefaultFontSize       = 24.0
	DefaultFontFamily     = "Arial"
	DefaultFill           = "#000000"
	DefaultImageDimension = 100.0
)

type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// Element is either an ImageElement or a TextElement.
type Element interface {
	ElementID() string
	Kind() Kind
	Position() (x, y float64)

	sealed()
}

type ImageElement struct {
	ID     string  `json:"id" yaml:"id"`
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Src    string  `json:"src" yaml:"src"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

func (img ImageElement) ElementID() string             { return img.ID }
func (img ImageElement) Kind() Kind                    { return KindImage }
func (img ImageElement) Position() (x, y float64)      { return img.X, img.Y }
func (img ImageElement) sealed()                       {}
func (img ImageElement) Size() (width, height float64) { return img.Width, img.Height }

// TextElement is a run of text. Width and Height describe an optional text box; 0 means auto.
type TextElement struct {
	ID         string  `json:"id" yaml:"id"`
	X          float64 `json:"x" yaml:"x"`
	Y          float64 `json:"y" yaml:"y"`
	Text       string  `json:"text" yaml:"text"`
	FontSize   float64 `json:"font_size" yaml:"font_size"`
	FontFamily string  `json:"font_family" yaml:"font_family"`
	Fill       string  `json:"fill" yaml:"fill"`
	Width      float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height     float64 `json:"height,omitempty" yaml:"height,omitempty"`
}

func (txt TextElement) ElementID() string        { return txt.ID }
func (txt TextElement) Kind() Kind               { return KindText }
func (txt TextElement) Position() (x, y float64) { return txt.X, txt.Y }
func (txt TextElement) sealed()                  {}

// Patch describes a partial update of an element. Nil fields are left untouched.
type Patch struct {
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Width      *float64 `json:"width,omitempty"`
	Height     *float64 `json:"height,omitempty"`
	Src        *string  `json:"src,omitempty"`
	Text       *string  `json:"text,omitempty"`
	FontSize   *float64 `json:"font_size,omitempty"`
	FontFamily *string  `json:"font_family,omitempty"`
	Fill       *string  `json:"fill,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.X == nil && p.Y == nil && p.Width == nil && p.Height == nil && p.Src == nil &&
		p.Text == nil && p.FontSize == nil && p.FontFamily == nil && p.Fill == nil
}

// Float returns a pointer to f, for building patches.
func Float(f float64) *float64 { return &f }

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

func notApplicable(field string, kind Kind) error {
	return core.NewValidationError(
		errors.Errorf("%s does not apply to %s elements", field, kind),
		core.FieldError{Field: field, Error: "not applicable to " + string(kind) + " elements"},
	)
}

// apply returns a copy of img with p applied and the minimum size enforced.
func (img ImageElement) apply(p Patch) (ImageElement, error) {
	switch {
	case p.Text != nil:
		return img, notApplicable("text", KindImage)
	case p.FontSize != nil:
		return img, notApplicable("font_size", KindImage)
	case p.FontFamily != nil:
		return img, notApplicable("font_family", KindImage)
	case p.Fill != nil:
		return img, notApplicable("fill", KindImage)
	}
	if p.X != nil {
		img.X = *p.X
	}
	if p.Y != nil {
		img.Y = *p.Y
	}
	if p.Src != nil {
		img.Src = *p.Src
	}
	if p.Width != nil {
		img.Width = *p.Width
	}
	if p.Height != nil {
		img.Height = *p.Height
	}
	img.Width = clampMin(img.Width, MinImageWidth)
	img.Height = clampMin(img.Height, MinImageHeight)
	return img, nil
}

// apply returns a copy of txt with p applied and the minimum sizes enforced.
func (txt TextElement) apply(p Patch) (TextElement, error) {
	if p.Src != nil {
		return txt, notApplicable("src", KindText)
	}
	if p.X != nil {
		txt.X = *p.X
	}
	if p.Y != nil {
		txt.Y = *p.Y
	}
	if p.Text != nil {
		txt.Text = *p.Text
	}
	if p.FontFamily != nil {
		txt.FontFamily = core.CleanString(*p.FontFamily)
	}
	if p.Fill != nil {
		txt.Fill = core.CleanString(*p.Fill)
	}
	if p.FontSize != nil {
		txt.FontSize = *p.FontSize
	}
	if p.Width != nil {
		txt.Width = *p.Width
	}
	if p.Height != nil {
		txt.Height = *p.Height
	}
	txt.FontSize = clampMin(txt.FontSize, MinFontSize)
	// a zero box means "auto size"
	if txt.Width != 0 {
		txt.Width = clampMin(txt.Width, MinTextWidth)
	}
	if txt.Height != 0 {
		txt.Height = clampMin(txt.Height, MinTextHeight)
	}
	return txt, nil
}

func clampMin(v, min float64) float64 {
	if v < min {
		return min
	}
	return v
}
