package certificate

import (
	"testing"

	"github.com/pkg/errors"
)

func newTestController() (*Model, *Controller) {
	m := NewModel(Document{}, nil)
	return m, NewController(m)
}

func TestController_dragCommitsOnce(t *testing.T) {
	m, c := newTestController()
	img := m.AddImage("a.png")
	undoBefore, _ := m.History().Depth()

	if err := c.Select(img.ID); err != nil {
		t.Fatal(err)
	}
	if err := c.BeginDrag(); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 10; i++ {
		if err := c.DragTo(float64(i*10), float64(i*5)); err != nil {
			t.Fatal(err)
		}
	}
	if got, _ := m.GetElement(img.ID); got.(ImageElement).X != 0 {
		t.Error("intermediate drag frames were committed")
	}

	el, err := c.EndDrag()
	if err != nil {
		t.Fatal(err)
	}
	if x, y := el.Position(); x != 100 || y != 50 {
		t.Errorf("EndDrag() position = (%v, %v), want (100, 50)", x, y)
	}
	if undo, _ := m.History().Depth(); undo != undoBefore+1 {
		t.Errorf("history depth = %d, want %d", undo, undoBefore+1)
	}
	if c.State() != StateSelected {
		t.Errorf("State() = %v, want %v", c.State(), StateSelected)
	}
}

func TestController_dragInPlace(t *testing.T) {
	m, c := newTestController()
	txt := m.AddText(Patch{})
	undoBefore, _ := m.History().Depth()

	if _, err := c.Drag(txt.ID, txt.X, txt.Y); err != nil {
		t.Fatal(err)
	}
	if undo, _ := m.History().Depth(); undo != undoBefore {
		t.Error("a drag released in place was recorded")
	}
}

func TestController_Resize(t *testing.T) {
	tests := []struct {
		name       string
		text       bool
		sx, sy     float64
		wantWidth  float64
		wantHeight float64
		wantFont   float64
	}{
		{name: "image grow", sx: 2, sy: 3, wantWidth: 200, wantHeight: 300},
		{name: "image shrink below min", sx: 0.1, sy: 0.2, wantWidth: 50, wantHeight: 50},
		{name: "image shrink one axis", sx: 0.75, sy: 1, wantWidth: 75, wantHeight: 100},
		{name: "text grow", text: true, sx: 2, sy: 0.5, wantFont: 48},
		{name: "text shrink below min", text: true, sx: 0.25, sy: 0.25, wantFont: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, c := newTestController()
			var id string
			if tt.text {
				id = m.AddText(Patch{}).ID
			} else {
				id = m.AddImage("a.png").ID
			}

			el, err := c.Resize(id, tt.sx, tt.sy)
			if err != nil {
				t.Fatal(err)
			}
			switch el := el.(type) {
			case ImageElement:
				if el.Width != tt.wantWidth || el.Height != tt.wantHeight {
					t.Errorf("Resize() size = %vx%v, want %vx%v", el.Width, el.Height, tt.wantWidth, tt.wantHeight)
				}
			case TextElement:
				if el.FontSize != tt.wantFont {
					t.Errorf("Resize() font size = %v, want %v", el.FontSize, tt.wantFont)
				}
			}
			if c.scaleX != 1 || c.scaleY != 1 {
				t.Errorf("scale after resize = (%v, %v), want (1, 1)", c.scaleX, c.scaleY)
			}
		})
	}
}

func TestController_resizeNoDrift(t *testing.T) {
	m, c := newTestController()
	img := m.AddImage("a.png")

	// two successive gestures compose from the committed geometry
	_, _ = c.Resize(img.ID, 2, 2)
	el, _ := c.Resize(img.ID, 1.5, 0.5)
	if got := el.(ImageElement); got.Width != 300 || got.Height != 100 {
		t.Errorf("size = %vx%v, want 300x100", got.Width, got.Height)
	}
}

func TestController_invalidScale(t *testing.T) {
	m, c := newTestController()
	img := m.AddImage("a.png")

	for _, s := range []float64{0, -1} {
		if _, err := c.Resize(img.ID, s, 1); !IsValidation(err) {
			t.Errorf("Resize(%v) error = %v, want a validation error", s, err)
		}
		if c.State() != StateSelected {
			t.Errorf("State() = %v after a rejected resize", c.State())
		}
	}
}

func TestController_transitions(t *testing.T) {
	m, c := newTestController()
	a := m.AddImage("a.png")
	b := m.AddText(Patch{})

	if err := c.BeginDrag(); err != ErrNoSelection {
		t.Errorf("BeginDrag() without selection error = %v, want %v", err, ErrNoSelection)
	}
	if err := c.Select("nope"); errors.Cause(err) != ErrElementNotFound {
		t.Errorf("Select(unknown) error = %v", err)
	}
	if _, err := c.EndDrag(); errors.Cause(err) != ErrNoGesture {
		t.Errorf("EndDrag() while idle error = %v", err)
	}

	_ = c.Select(a.ID)
	_ = c.BeginResize()
	if err := c.Select(b.ID); errors.Cause(err) != ErrGestureInProgress {
		t.Errorf("Select() while resizing error = %v, want %v", err, ErrGestureInProgress)
	}
	if err := c.BeginDrag(); err != ErrGestureInProgress {
		t.Errorf("BeginDrag() while resizing error = %v", err)
	}
	if _, err := c.EndResize(); err != nil {
		t.Fatal(err)
	}

	if err := c.Select(b.ID); err != nil {
		t.Fatal(err)
	}
	if id, ok := c.Selected(); !ok || id != b.ID {
		t.Errorf("Selected() = %q, %v; want %q", id, ok, b.ID)
	}
	c.Deselect()
	if _, ok := c.Selected(); ok || c.State() != StateIdle {
		t.Error("Deselect() kept the selection")
	}
}

func TestController_selectionClearedWhenElementGoes(t *testing.T) {
	m, c := newTestController()
	img := m.AddImage("a.png")

	_ = c.Select(img.ID)
	m.DeleteElement(img.ID)
	c.Sync()
	if _, ok := c.Selected(); ok {
		t.Error("selection kept after delete")
	}

	m.Undo() // restores the image
	_ = c.Select(img.ID)
	m.Undo() // removes it again
	c.Sync()
	if _, ok := c.Selected(); ok {
		t.Error("selection kept after undo removed the element")
	}
}
