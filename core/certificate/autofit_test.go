package certificate

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestCoverFit(t *testing.T) {
	tests := []struct {
		name       string
		vp         Viewport
		nw, nh     int
		x, y, w, h float64
	}{
		{name: "square into landscape", vp: Viewport{1000, 500}, nw: 200, nh: 200, x: 0, y: -250, w: 1000, h: 1000},
		{name: "landscape into square", vp: Viewport{400, 400}, nw: 800, nh: 200, x: -600, y: 0, w: 1600, h: 400},
		{name: "exact ratio", vp: Viewport{1123, 794}, nw: 1123, nh: 794, x: 0, y: 0, w: 1123, h: 794},
		{name: "no viewport", vp: Viewport{}, nw: 10, nh: 10},
		{name: "no natural size", vp: Viewport{100, 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, w, h := CoverFit(tt.vp, tt.nw, tt.nh)
			if x != tt.x || y != tt.y || w != tt.w || h != tt.h {
				t.Errorf("CoverFit() = (%v, %v, %v, %v), want (%v, %v, %v, %v)", x, y, w, h, tt.x, tt.y, tt.w, tt.h)
			}
		})
	}
}

func TestLoadTracker_completesOnce(t *testing.T) {
	lt := make(loadTracker)
	ld := lt.start(ImageElement{ID: "a", Src: "a.png", Width: 100, Height: 100})

	if !lt.complete("a", 20, 10, nil) {
		t.Fatal("first completion = false")
	}
	if ld.nw != 20 || ld.nh != 10 {
		t.Errorf("natural size = %dx%d, want 20x10", ld.nw, ld.nh)
	}
	if lt.complete("a", 30, 30, nil) {
		t.Error("second completion = true")
	}
	if lt.complete("a", 0, 0, errors.New("late failure")) || ld.state != LoadLoaded {
		t.Errorf("state = %v after a late failure, want %v", ld.state, LoadLoaded)
	}
	select {
	case <-ld.done:
	default:
		t.Error("done not closed")
	}
	if len(lt.pending()) != 0 {
		t.Error("completed load still pending")
	}
}

func waitLoads(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.WaitForLoads(ctx); err != nil {
		t.Fatalf("WaitForLoads() error = %v", err)
	}
}

func TestSession_autoFit(t *testing.T) {
	loader := &stubLoader{sizes: map[string][2]int{"bg.png": {200, 100}}}
	s := NewSession("owner", ModeFreeform, Viewport{Width: 1000, Height: 1000}, SessionOptions{Loader: loader, Logger: nopLogger{}})
	defer s.Close()

	img := s.AddImage("bg.png")
	waitLoads(t, s)

	el, _ := s.GetElement(img.ID)
	got := el.(ImageElement)
	if got.Width != 2000 || got.Height != 1000 || got.X != -500 || got.Y != 0 {
		t.Errorf("fitted image = %+v, want 2000x1000 at (-500, 0)", got)
	}
	if state, _ := s.LoadState(img.ID); state != LoadLoaded {
		t.Errorf("LoadState() = %v, want %v", state, LoadLoaded)
	}

	// the fit is not a history entry: one undo removes the image
	if !s.Undo() {
		t.Fatal("Undo() = false")
	}
	if _, ok := s.GetElement(img.ID); ok {
		t.Error("image still present after one undo")
	}

	// redo brings back the fitted geometry, and nothing refits
	s.Redo()
	el, _ = s.GetElement(img.ID)
	if el.(ImageElement).Width != 2000 {
		t.Errorf("redone image = %+v", el)
	}
	if loader.calls != 1 {
		t.Errorf("loader called %d times, want 1", loader.calls)
	}
}

func imageOf(t *testing.T, s *Session, id string) ImageElement {
	t.Helper()
	el, ok := s.GetElement(id)
	if !ok {
		t.Fatalf("image %s not found", id)
	}
	return el.(ImageElement)
}

func TestSession_autoFitAfterUserEdit(t *testing.T) {
	tests := []struct {
		name string
		edit func(s *Session, id string) error
		x, y float64
		w, h float64
	}{
		{
			name: "update",
			edit: func(s *Session, id string) error { _, err := s.UpdateElement(id, Patch{X: Float(42)}); return err },
			x:    42, w: DefaultImageDimension, h: DefaultImageDimension,
		},
		{
			name: "drag",
			edit: func(s *Session, id string) error { _, err := s.Drag(id, 42, 17); return err },
			x:    42, y: 17, w: DefaultImageDimension, h: DefaultImageDimension,
		},
		{
			name: "resize",
			edit: func(s *Session, id string) error { _, err := s.Resize(id, 2, 2); return err },
			w:    2 * DefaultImageDimension, h: 2 * DefaultImageDimension,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := make(chan struct{})
			loader := &stubLoader{sizes: map[string][2]int{"bg.png": {100, 100}}, before: release}
			s := NewSession("owner", ModeFreeform, Viewport{Width: 500, Height: 300}, SessionOptions{Loader: loader, Logger: nopLogger{}})
			defer s.Close()

			img := s.AddImage("bg.png")
			if err := tt.edit(s, img.ID); err != nil {
				t.Fatal(err)
			}
			close(release)
			waitLoads(t, s)

			// the committed edit wins over the late fit
			got := imageOf(t, s, img.ID)
			if got.X != tt.x || got.Y != tt.y || got.Width != tt.w || got.Height != tt.h {
				t.Errorf("after load image = %+v, want %vx%v at (%v, %v)", got, tt.w, tt.h, tt.x, tt.y)
			}

			// undo restores the state right before the edit
			s.Undo()
			got = imageOf(t, s, img.ID)
			if got.X != 0 || got.Y != 0 || got.Width != DefaultImageDimension || got.Height != DefaultImageDimension {
				t.Errorf("after undo image = %+v, want the added image", got)
			}
		})
	}
}

func TestSession_autoFitWhileAbsent(t *testing.T) {
	tests := []struct {
		name    string
		remove  func(s *Session, id string)
		restore func(s *Session) bool
	}{
		{
			name:    "undone add",
			remove:  func(s *Session, _ string) { s.Undo() },
			restore: (*Session).Redo,
		},
		{
			name:    "deleted",
			remove:  func(s *Session, id string) { s.DeleteElement(id) },
			restore: (*Session).Undo,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := make(chan struct{})
			loader := &stubLoader{sizes: map[string][2]int{"bg.png": {100, 100}}, before: release}
			s := NewSession("owner", ModeFreeform, Viewport{Width: 500, Height: 300}, SessionOptions{Loader: loader, Logger: nopLogger{}})
			defer s.Close()

			img := s.AddImage("bg.png")
			tt.remove(s, img.ID)
			close(release)
			waitLoads(t, s)

			if _, ok := s.GetElement(img.ID); ok {
				t.Fatal("image present before it is restored")
			}
			if _, ok := s.State().Loads[img.ID]; ok {
				t.Error("state reports the load of an absent image")
			}
			if !tt.restore(s) {
				t.Fatal("restore = false")
			}

			got := imageOf(t, s, img.ID)
			if got.X != 0 || got.Y != -100 || got.Width != 500 || got.Height != 500 {
				t.Errorf("restored image = %+v, want 500x500 at (0, -100)", got)
			}
			if st := s.State().Loads[img.ID]; st != LoadLoaded.String() {
				t.Errorf("load state = %q, want %q", st, LoadLoaded)
			}
		})
	}
}

func TestSession_loadFailure(t *testing.T) {
	loader := &stubLoader{}
	s := NewSession("owner", ModeFreeform, Viewport{Width: 500, Height: 300}, SessionOptions{Loader: loader, Logger: nopLogger{}})
	defer s.Close()

	img := s.AddImage("broken.png")
	waitLoads(t, s)

	if state, _ := s.LoadState(img.ID); state != LoadFailed {
		t.Errorf("LoadState() = %v, want %v", state, LoadFailed)
	}
	el, _ := s.GetElement(img.ID)
	if got := el.(ImageElement); got.Width != DefaultImageDimension {
		t.Errorf("unloaded image was resized: %+v", got)
	}
}
