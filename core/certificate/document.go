package certificate

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// DesignMode selects which representation of a design is authoritative.
type DesignMode string

const (
	ModeFreeform  DesignMode = "freeform"
	ModeTemplated DesignMode = "templated"
)

func (m DesignMode) IsValid() bool { return m == ModeFreeform || m == ModeTemplated }

// Document is a freeform certificate design: positioned elements over an optional background.
// Slice order is insertion order and z-order (later is drawn on top); images are drawn below texts.
//
// A committed Document is never mutated in place: every change builds new slices,
// which is what lets snapshots share structure with the live document.
type Document struct {
	Background string         `json:"background,omitempty" yaml:"background,omitempty"`
	Images     []ImageElement `json:"images" yaml:"images"`
	Texts      []TextElement  `json:"texts" yaml:"texts"`
}

func (doc Document) IsEmpty() bool { return len(doc.Images) == 0 && len(doc.Texts) == 0 }

// Len is the number of elements in the document.
func (doc Document) Len() int { return len(doc.Images) + len(doc.Texts) }

// Clone returns a deep copy of doc whose slices can be modified freely.
func (doc Document) Clone() Document {
	return Document{
		Background: doc.Background,
		Images:     append(make([]ImageElement, 0, len(doc.Images)), doc.Images...),
		Texts:      append(make([]TextElement, 0, len(doc.Texts)), doc.Texts...),
	}
}

// Element finds the element with the given id.
func (doc Document) Element(id string) (Element, bool) {
	if img, _, ok := doc.image(id); ok {
		return img, true
	}
	if txt, _, ok := doc.text(id); ok {
		return txt, true
	}
	return nil, false
}

// IDs lists every element id, images first.
func (doc Document) IDs() []string {
	ids := lo.Map(doc.Images, func(img ImageElement, _ int) string { return img.ID })
	return append(ids, lo.Map(doc.Texts, func(txt TextElement, _ int) string { return txt.ID })...)
}

// Validate checks the id uniqueness invariant, eg. for documents read from storage.
func (doc Document) Validate() error {
	ids := doc.IDs()
	if dups := lo.FindDuplicates(ids); len(dups) > 0 {
		return errors.Errorf("duplicate element id %q", dups[0])
	}
	if lo.Contains(ids, "") {
		return errors.New("element without id")
	}
	return nil
}

func (doc Document) image(id string) (ImageElement, int, bool) {
	return lo.FindIndexOf(doc.Images, func(img ImageElement) bool { return img.ID == id })
}

func (doc Document) text(id string) (TextElement, int, bool) {
	return lo.FindIndexOf(doc.Texts, func(txt TextElement) bool { return txt.ID == id })
}

// The with* helpers return a new Document sharing every untouched slice with doc.

func (doc Document) withImages(images []ImageElement) Document {
	doc.Images = images
	return doc
}

func (doc Document) withTexts(texts []TextElement) Document {
	doc.Texts = texts
	return doc
}

func replaceAt[T any](s []T, i int, v T) []T {
	out := append(make([]T, 0, len(s)), s...)
	out[i] = v
	return out
}

func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

func appendCopy[T any](s []T, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s...)
	return append(out, v)
}

// moveTo moves s[i] to index j, shifting the others.
func moveTo[T any](s []T, i, j int) []T {
	v := s[i]
	out := removeAt(s, i)
	out = append(out, v) // grow by one
	copy(out[j+1:], out[j:len(out)-1])
	out[j] = v
	return out
}

// Snapshot is an immutable copy of a Document, used by the History.
type Snapshot struct {
	doc Document
}

func snapshotOf(doc Document) Snapshot { return Snapshot{doc: doc} }

// Document returns a copy of the snapshotted document.
func (s Snapshot) Document() Document { return s.doc.Clone() }
