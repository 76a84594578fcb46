package certificate

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
)

func sampleDocument() Document {
	return Document{
		Images: []ImageElement{{ID: "i1", Src: "a.png", Width: 100, Height: 100}},
		Texts:  []TextElement{{ID: "t1", X: 10, Y: 20, Text: "Awarded to %{{name}}%", FontSize: 24, FontFamily: "Arial", Fill: "#000000"}},
	}
}

func TestNewComposition_validation(t *testing.T) {
	vp := Viewport{Width: 800, Height: 600}
	tests := []struct {
		name     string
		mode     DesignMode
		vp       Viewport
		doc      Document
		tmpl     string
		wantErr  error
		sanitize bool
	}{
		{name: "empty freeform", mode: ModeFreeform, vp: vp, wantErr: errEmptyDocument},
		{name: "no render target", mode: ModeFreeform, doc: sampleDocument(), wantErr: errNoRenderTarget},
		{name: "blank template", mode: ModeTemplated, vp: vp, tmpl: " ", wantErr: errEmptyTemplate},
		{name: "unsafe template", mode: ModeTemplated, vp: vp, tmpl: "<script>x()</script>", sanitize: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewComposition(tt.mode, tt.vp, tt.doc, tt.tmpl, nil)
			if tt.sanitize {
				if _, ok := err.(*SanitizationError); !ok {
					t.Errorf("NewComposition() error = %v, want a SanitizationError", err)
				}
				return
			}
			if err != tt.wantErr {
				t.Errorf("NewComposition() error = %v, want %v", err, tt.wantErr)
			}
			if !IsValidation(err) {
				t.Errorf("NewComposition() error = %T, want a validation error", err)
			}
		})
	}
}

func TestNewComposition_freeform(t *testing.T) {
	ps := Placeholders{
		{ID: "p1", Token: "name", Value: "Ann", IsVisible: true},
		{ID: "p2", Token: "date", Value: "2024-06-01", IsVisible: true, FontSize: 14, X: 300, Y: 400},
		{ID: "p3", Token: "hidden", Value: "secret", IsVisible: false, FontSize: 14},
	}
	doc := sampleDocument()
	c, err := NewComposition(ModeFreeform, Viewport{Width: 800, Height: 600}, doc, "", ps)
	if err != nil {
		t.Fatal(err)
	}

	if got := c.Document.Texts[0].Text; got != "Awarded to Ann" {
		t.Errorf("substituted text = %q", got)
	}
	if doc.Texts[0].Text != "Awarded to %{{name}}%" {
		t.Error("NewComposition() modified its input document")
	}
	if len(c.Document.Texts) != 2 {
		t.Fatalf("texts = %+v, want the element and the visible positioned field", c.Document.Texts)
	}
	field := c.Document.Texts[1]
	if field.Text != "2024-06-01" || field.X != 300 || field.Y != 400 || field.FontSize != 14 {
		t.Errorf("placeholder field = %+v", field)
	}
}

func TestExporter_Export(t *testing.T) {
	c, err := NewComposition(ModeFreeform, Viewport{Width: 400, Height: 300}, sampleDocument(), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	raster := &stubRasterizer{}
	cache := &memCache{}
	exp := NewExporter(raster, cache, 0, nopLogger{})

	first, err := exp.Export(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	second, err := exp.Export(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first.PNG, second.PNG) || first.Checksum != second.Checksum {
		t.Error("identical compositions exported differently")
	}
	if first.Width != 800 || first.Height != 600 {
		t.Errorf("raster size = %dx%d, want 800x600", first.Width, first.Height)
	}
	if raster.Calls() != 1 {
		t.Errorf("rasterizer called %d times, want 1 (cached)", raster.Calls())
	}
	if first.Checksum != Checksum(first.PNG) || len(first.Checksum) != 64 {
		t.Errorf("Checksum = %q", first.Checksum)
	}
}

func TestExporter_failure(t *testing.T) {
	c, _ := NewComposition(ModeFreeform, Viewport{Width: 400, Height: 300}, sampleDocument(), "", nil)
	exp := NewExporter(&stubRasterizer{err: errors.New("encoder crashed")}, nil, 2, nil)

	_, err := exp.Export(context.Background(), c)
	var eerr *ExportError
	if !errors.As(err, &eerr) {
		t.Fatalf("Export() error = %v, want an ExportError", err)
	}
	if eerr.Op != "rasterizing" {
		t.Errorf("ExportError.Op = %q", eerr.Op)
	}
}

func TestComposition_Key(t *testing.T) {
	vp := Viewport{Width: 400, Height: 300}
	a, _ := NewComposition(ModeFreeform, vp, sampleDocument(), "", nil)
	b, _ := NewComposition(ModeFreeform, vp, sampleDocument(), "", nil)

	moved := sampleDocument()
	moved.Texts[0].X++
	c, _ := NewComposition(ModeFreeform, vp, moved, "", nil)

	ka, _ := a.Key()
	kb, _ := b.Key()
	kc, _ := c.Key()
	if ka != kb {
		t.Error("equal compositions have different keys")
	}
	if ka == kc {
		t.Error("different compositions share a key")
	}
}
