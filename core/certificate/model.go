package certificate

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Model is the live Document of an editing session.
// Every mutation goes through commit, which records the pre-mutation snapshot in the History.
// It is not safe for concurrent use.
type Model struct {
	doc     Document
	history *History
	newID   func() string
}

// NewModel returns a Model starting from doc, recording into history.
func NewModel(doc Document, history *History) *Model {
	if history == nil {
		history = NewHistory(0)
	}
	return &Model{
		doc:     doc.Clone(),
		history: history,
		newID:   uuid.NewString,
	}
}

// Document returns a copy of the current document.
func (m *Model) Document() Document { return m.doc.Clone() }

// Snapshot returns the current document state without copying it.
func (m *Model) Snapshot() Snapshot { return snapshotOf(m.doc) }

func (m *Model) History() *History { return m.history }

// commit replaces the document, recording the previous state first.
func (m *Model) commit(next Document) {
	m.history.Record(snapshotOf(m.doc))
	m.doc = next
}

// adjust replaces the document without recording history, for system adjustments.
func (m *Model) adjust(next Document) {
	m.doc = next
}

func (m *Model) AddImage(src string) ImageElement {
	img := ImageElement{
		ID:     m.newID(),
		Src:    src,
		Width:  DefaultImageDimension,
		Height: DefaultImageDimension,
	}
	m.commit(m.doc.withImages(appendCopy(m.doc.Images, img)))
	return img
}

// AddText adds a text element. Fields left nil in `initial` take the defaults, and so do
// a blank font family or fill. Src does not apply to texts and is ignored.
func (m *Model) AddText(initial Patch) TextElement {
	initial.Src = nil
	txt, _ := TextElement{
		ID:         m.newID(),
		X:          DefaultTextX,
		Y:          DefaultTextY,
		Text:       DefaultText,
		FontSize:   DefaultFontSize,
		FontFamily: DefaultFontFamily,
		Fill:       DefaultFill,
	}.apply(initial)
	if txt.FontFamily == "" {
		txt.FontFamily = DefaultFontFamily
	}
	if txt.Fill == "" {
		txt.Fill = DefaultFill
	}

	m.commit(m.doc.withTexts(appendCopy(m.doc.Texts, txt)))
	return txt
}

// UpdateElement applies p to the element `id`. Sizes below the minimums are clamped.
// Nothing is recorded when the element does not exist or the patch does not apply.
func (m *Model) UpdateElement(id string, p Patch) (Element, error) {
	if img, i, ok := m.doc.image(id); ok {
		updated, err := img.apply(p)
		if err != nil {
			return nil, err
		}
		m.commit(m.doc.withImages(replaceAt(m.doc.Images, i, updated)))
		return updated, nil
	}
	if txt, i, ok := m.doc.text(id); ok {
		updated, err := txt.apply(p)
		if err != nil {
			return nil, err
		}
		m.commit(m.doc.withTexts(replaceAt(m.doc.Texts, i, updated)))
		return updated, nil
	}
	return nil, errors.Wrapf(ErrElementNotFound, "updating %q", id)
}

// DeleteElement removes the element `id`; it is a no-op when absent.
// It reports whether an element was removed.
func (m *Model) DeleteElement(id string) bool {
	if _, i, ok := m.doc.image(id); ok {
		m.commit(m.doc.withImages(removeAt(m.doc.Images, i)))
		return true
	}
	if _, i, ok := m.doc.text(id); ok {
		m.commit(m.doc.withTexts(removeAt(m.doc.Texts, i)))
		return true
	}
	return false
}

func (m *Model) GetElement(id string) (Element, bool) {
	return m.doc.Element(id)
}

// SetBackground replaces the background image reference ("" removes it).
func (m *Model) SetBackground(src string) {
	if src == m.doc.Background {
		return
	}
	next := m.doc
	next.Background = src
	m.commit(next)
}

// BringToFront draws the element above the others of its kind.
func (m *Model) BringToFront(id string) error {
	return m.reorder(id, true)
}

// SendToBack draws the element below the others of its kind.
func (m *Model) SendToBack(id string) error {
	return m.reorder(id, false)
}

func (m *Model) reorder(id string, front bool) error {
	if _, i, ok := m.doc.image(id); ok {
		j := 0
		if front {
			j = len(m.doc.Images) - 1
		}
		if i != j {
			m.commit(m.doc.withImages(moveTo(m.doc.Images, i, j)))
		}
		return nil
	}
	if _, i, ok := m.doc.text(id); ok {
		j := 0
		if front {
			j = len(m.doc.Texts) - 1
		}
		if i != j {
			m.commit(m.doc.withTexts(moveTo(m.doc.Texts, i, j)))
		}
		return nil
	}
	return errors.Wrapf(ErrElementNotFound, "reordering %q", id)
}

// Undo restores the previous state. It reports false when there is nothing to undo.
func (m *Model) Undo() bool {
	prev, ok := m.history.Undo(snapshotOf(m.doc))
	if ok {
		m.doc = prev.doc
	}
	return ok
}

// Redo re-applies the last undone state. It reports false when there is nothing to redo.
func (m *Model) Redo() bool {
	next, ok := m.history.Redo(snapshotOf(m.doc))
	if ok {
		m.doc = next.doc
	}
	return ok
}

// resetTo discards the history and starts over from doc, eg. after loading a design.
func (m *Model) resetTo(doc Document) {
	m.history.Reset()
	m.doc = doc.Clone()
}
