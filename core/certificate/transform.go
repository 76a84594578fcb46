package certificate

import (
	"math"

	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
)

// GestureState is the state of the transform Controller.
type GestureState int

const (
	StateIdle GestureState = iota
	StateSelected
	StateDragging
	StateResizing
)

func (s GestureState) String() string {
	switch s {
	case StateSelected:
		return "selected"
	case StateDragging:
		return "dragging"
	case StateResizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Controller turns pointer gestures into element updates on a Model.
// Intermediate gesture frames are transient; only the release commits, as a single update.
type Controller struct {
	model    *Model
	state    GestureState
	selected string

	// transient gesture geometry
	dragX, dragY   float64
	scaleX, scaleY float64
}

func NewController(model *Model) *Controller {
	return &Controller{model: model, scaleX: 1, scaleY: 1}
}

func (c *Controller) State() GestureState { return c.state }

// Selected returns the selected element id, if any.
func (c *Controller) Selected() (string, bool) {
	return c.selected, c.state != StateIdle
}

func (c *Controller) inGesture() bool {
	return c.state == StateDragging || c.state == StateResizing
}

// Select makes `id` the sole selection.
func (c *Controller) Select(id string) error {
	if c.inGesture() {
		return errors.Wrapf(ErrGestureInProgress, "selecting %q", id)
	}
	if _, ok := c.model.GetElement(id); !ok {
		return errors.Wrapf(ErrElementNotFound, "selecting %q", id)
	}
	c.selected = id
	c.state = StateSelected
	return nil
}

// Deselect clears the selection, eg. on background interaction. An unfinished gesture is dropped.
func (c *Controller) Deselect() {
	c.selected = ""
	c.state = StateIdle
	c.resetTransient()
}

// Sync drops the selection when the selected element no longer exists, eg. after delete or undo.
func (c *Controller) Sync() {
	if c.state == StateIdle {
		return
	}
	if _, ok := c.model.GetElement(c.selected); !ok {
		c.Deselect()
	}
}

func (c *Controller) resetTransient() {
	c.dragX, c.dragY = 0, 0
	c.scaleX, c.scaleY = 1, 1
}

func (c *Controller) selectedElement() (Element, error) {
	if c.state == StateIdle {
		return nil, ErrNoSelection
	}
	el, ok := c.model.GetElement(c.selected)
	if !ok {
		c.Deselect()
		return nil, errors.Wrapf(ErrElementNotFound, "selected element %q", c.selected)
	}
	return el, nil
}

// BeginDrag starts moving the selected element.
func (c *Controller) BeginDrag() error {
	if c.inGesture() {
		return ErrGestureInProgress
	}
	el, err := c.selectedElement()
	if err != nil {
		return err
	}
	c.dragX, c.dragY = el.Position()
	c.state = StateDragging
	return nil
}

// DragTo moves the pending drag position. Nothing is committed.
func (c *Controller) DragTo(x, y float64) error {
	if c.state != StateDragging {
		return errors.Wrap(ErrNoGesture, "dragging")
	}
	c.dragX, c.dragY = x, y
	return nil
}

// EndDrag commits the final drag position.
func (c *Controller) EndDrag() (Element, error) {
	if c.state != StateDragging {
		return nil, errors.Wrap(ErrNoGesture, "dragging")
	}
	x, y := c.dragX, c.dragY
	c.state = StateSelected
	c.resetTransient()

	el, err := c.selectedElement()
	if err != nil {
		return nil, err
	}
	if ox, oy := el.Position(); ox == x && oy == y {
		return el, nil // released where it started
	}
	return c.model.UpdateElement(c.selected, Patch{X: Float(x), Y: Float(y)})
}

// Drag selects `id` and moves it to (x, y) in one gesture.
func (c *Controller) Drag(id string, x, y float64) (Element, error) {
	if err := c.Select(id); err != nil {
		return nil, err
	}
	if err := c.BeginDrag(); err != nil {
		return nil, err
	}
	_ = c.DragTo(x, y)
	return c.EndDrag()
}

// BeginResize starts scaling the selected element.
func (c *Controller) BeginResize() error {
	if c.inGesture() {
		return ErrGestureInProgress
	}
	if _, err := c.selectedElement(); err != nil {
		return err
	}
	c.scaleX, c.scaleY = 1, 1
	c.state = StateResizing
	return nil
}

// ScaleTo sets the live scale factors of the resize gesture. Nothing is committed.
func (c *Controller) ScaleTo(sx, sy float64) error {
	if c.state != StateResizing {
		return errors.Wrap(ErrNoGesture, "resizing")
	}
	if !validScale(sx) || !validScale(sy) {
		return core.NewValidationError(
			errors.Errorf("invalid scale factors %v, %v", sx, sy),
			core.FieldError{Field: "scale", Error: "must be a positive number"},
		)
	}
	c.scaleX, c.scaleY = sx, sy
	return nil
}

// EndResize commits the scaled geometry then resets the scale factors to 1.
// Images scale their box; texts scale their font size by the horizontal factor.
func (c *Controller) EndResize() (Element, error) {
	if c.state != StateResizing {
		return nil, errors.Wrap(ErrNoGesture, "resizing")
	}
	sx, sy := c.scaleX, c.scaleY
	c.state = StateSelected
	c.resetTransient()

	el, err := c.selectedElement()
	if err != nil {
		return nil, err
	}
	if sx == 1 && sy == 1 {
		return el, nil
	}

	var p Patch
	switch el := el.(type) {
	case ImageElement:
		p.Width = Float(math.Max(el.Width*sx, MinImageWidth))
		p.Height = Float(math.Max(el.Height*sy, MinImageHeight))
	case TextElement:
		p.FontSize = Float(math.Max(el.FontSize*sx, MinFontSize))
	}
	return c.model.UpdateElement(c.selected, p)
}

// Resize selects `id` and scales it by (sx, sy) in one gesture.
func (c *Controller) Resize(id string, sx, sy float64) (Element, error) {
	if err := c.Select(id); err != nil {
		return nil, err
	}
	if err := c.BeginResize(); err != nil {
		return nil, err
	}
	if err := c.ScaleTo(sx, sy); err != nil {
		c.state = StateSelected
		c.resetTransient()
		return nil, err
	}
	return c.EndResize()
}

func validScale(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
