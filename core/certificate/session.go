package certificate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
)

type (
	SessionOptions struct {
		Loader       ImageLoader // optional; without it images are never auto-fitted
		Exporter     *Exporter
		Gateway      Gateway
		Logger       core.Logger
		HistoryLimit int
	}

	// Session is one editing session over a single design.
	// Mutations are serialized by the session mutex and run to completion;
	// image loads, rendering and gateway calls happen outside of it.
	Session struct {
		ID      string
		OwnerID string

		mu           sync.Mutex
		model        *Model
		ctrl         *Controller
		mode         DesignMode
		template     string
		placeholders Placeholders
		viewport     Viewport
		designID     string // set once saved, or when loaded
		rev          uint64 // bumped by every change of the rendered design
		savedRev     uint64
		saved        bool
		lastActive   time.Time

		loads  loadTracker
		loader ImageLoader
		busy   atomic.Bool // single in-flight export/save
		wg     sync.WaitGroup
		ctx    context.Context // cancelled on Close
		cancel context.CancelFunc

		exporter *Exporter
		gateway  Gateway
		log      core.Logger
	}

	// SessionState is a read-only view of a session.
	SessionState struct {
		ID           string            `json:"id"`
		DesignID     string            `json:"design_id,omitempty"`
		Mode         DesignMode        `json:"mode"`
		Viewport     Viewport          `json:"viewport"`
		Document     Document          `json:"document"`
		Template     string            `json:"template,omitempty"`
		Placeholders Placeholders      `json:"placeholders"`
		Selected     string            `json:"selected,omitempty"`
		Gesture      string            `json:"gesture"`
		CanUndo      bool              `json:"can_undo"`
		CanRedo      bool              `json:"can_redo"`
		Saved        bool              `json:"saved"`
		Loads        map[string]string `json:"loads,omitempty"` // element id: load state
	}
)

// NewSession starts a session over an empty design.
func NewSession(ownerID string, mode DesignMode, vp Viewport, opts SessionOptions) *Session {
	return newSession(ownerID, mode, vp, Document{}, opts)
}

// LoadSession starts a session over the saved design `designID`.
func LoadSession(ctx context.Context, designID, ownerID string, vp Viewport, opts SessionOptions) (*Session, error) {
	d, err := opts.Gateway.Fetch(ctx, designID)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != ownerID {
		return nil, NewNotFoundError("certificate not found", ErrNotFound)
	}
	if err := d.Document.Validate(); err != nil {
		return nil, NewServerError("this certificate cannot be edited", errors.Wrap(err, "validating stored document"))
	}
	mode := d.Mode
	if !mode.IsValid() {
		mode = ModeFreeform
	}

	s := newSession(ownerID, mode, vp, d.Document, opts)
	s.template = d.Template
	s.placeholders = append(Placeholders(nil), d.Placeholders...)
	s.designID = d.ID
	return s, nil
}

func newSession(ownerID string, mode DesignMode, vp Viewport, doc Document, opts SessionOptions) *Session {
	if !mode.IsValid() {
		mode = ModeFreeform
	}
	model := NewModel(doc, NewHistory(opts.HistoryLimit))
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		model:      model,
		ctrl:       NewController(model),
		mode:       mode,
		viewport:   vp,
		lastActive: time.Now(),
		loads:      make(loadTracker),
		loader:     opts.Loader,
		ctx:        ctx,
		cancel:     cancel,
		exporter:   opts.Exporter,
		gateway:    opts.Gateway,
		log:        opts.Logger,
	}
}

// lock acquires the session mutex and marks activity.
func (s *Session) lock() {
	s.mu.Lock()
	s.lastActive = time.Now()
}

// LastActive returns the time of the latest operation on the session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) State() SessionState {
	s.lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() SessionState {
	sel, _ := s.ctrl.Selected()
	st := SessionState{
		ID:           s.ID,
		DesignID:     s.designID,
		Mode:         s.mode,
		Viewport:     s.viewport,
		Document:     s.model.Document(),
		Template:     s.template,
		Placeholders: append(Placeholders{}, s.placeholders...),
		Selected:     sel,
		Gesture:      s.ctrl.State().String(),
		CanUndo:      s.model.History().CanUndo(),
		CanRedo:      s.model.History().CanRedo(),
		Saved:        s.isSaved(),
	}
	for id, ld := range s.loads {
		if _, _, ok := s.model.doc.image(id); !ok {
			continue
		}
		if st.Loads == nil {
			st.Loads = make(map[string]string)
		}
		st.Loads[id] = ld.state.String()
	}
	return st
}

// changed records a change of the design when ok.
func (s *Session) changed(ok bool) {
	if ok {
		s.rev++
	}
}

// isSaved reports whether the design is unchanged since the last successful save.
func (s *Session) isSaved() bool { return s.saved && s.rev == s.savedRev }

// AddImage adds an image and starts loading its source for the one-time auto-fit.
func (s *Session) AddImage(src string) ImageElement {
	s.lock()
	defer s.mu.Unlock()

	img := s.model.AddImage(src)
	s.changed(true)
	if s.loader != nil {
		s.loads.start(img)
		s.wg.Add(1)
		go s.load(img.ID, src)
	}
	return img
}

func (s *Session) load(id, src string) {
	defer s.wg.Done()
	w, h, err := s.loader.Dimensions(s.ctx, src)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loads.complete(id, w, h, err) {
		s.applyFits()
		return
	}
	if err != nil && s.log != nil && s.ctx.Err() == nil {
		s.log.Warn("loading image "+id, errors.Wrap(err, src))
	}
}

// applyFits fits the loaded images that are present and still have their added geometry.
// An image absent from the document (eg. an undone add) is fitted when it comes back.
func (s *Session) applyFits() {
	for id, ld := range s.loads {
		if ld.state != LoadLoaded || ld.fitted {
			continue
		}
		img, _, ok := s.model.doc.image(id)
		if !ok {
			continue
		}
		ld.fitted = true
		if !img.sameGeometry(ld.added) {
			continue
		}
		s.changed(s.model.autoFit(id, s.viewport, ld.nw, ld.nh))
	}
}

// LoadState returns the load state of image `id`.
func (s *Session) LoadState(id string) (LoadState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ld, ok := s.loads[id]
	if !ok {
		return 0, false
	}
	return ld.state, true
}

// WaitForLoads blocks until every pending image load has completed.
func (s *Session) WaitForLoads(ctx context.Context) error {
	s.mu.Lock()
	pending := s.loads.pending()
	s.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Session) AddText(initial Patch) TextElement {
	s.lock()
	defer s.mu.Unlock()
	s.changed(true)
	return s.model.AddText(initial)
}

func (s *Session) UpdateElement(id string, p Patch) (Element, error) {
	s.lock()
	defer s.mu.Unlock()
	el, err := s.model.UpdateElement(id, p)
	s.changed(err == nil)
	return el, err
}

// DeleteElement removes the element `id`, clearing the selection when it was selected.
// The load of a deleted image keeps running, so that undoing the delete can still fit it.
func (s *Session) DeleteElement(id string) bool {
	s.lock()
	defer s.mu.Unlock()
	deleted := s.model.DeleteElement(id)
	if deleted {
		s.changed(true)
		s.ctrl.Sync()
	}
	return deleted
}

func (s *Session) GetElement(id string) (Element, bool) {
	s.lock()
	defer s.mu.Unlock()
	return s.model.GetElement(id)
}

func (s *Session) SetBackground(src string) {
	s.lock()
	defer s.mu.Unlock()
	src = core.CleanString(src)
	s.changed(src != s.model.doc.Background)
	s.model.SetBackground(src)
}

func (s *Session) BringToFront(id string) error {
	s.lock()
	defer s.mu.Unlock()
	err := s.model.BringToFront(id)
	s.changed(err == nil)
	return err
}

func (s *Session) SendToBack(id string) error {
	s.lock()
	defer s.mu.Unlock()
	err := s.model.SendToBack(id)
	s.changed(err == nil)
	return err
}

func (s *Session) Select(id string) error {
	s.lock()
	defer s.mu.Unlock()
	return s.ctrl.Select(id)
}

func (s *Session) Deselect() {
	s.lock()
	defer s.mu.Unlock()
	s.ctrl.Deselect()
}

// Drag moves element `id` to (x, y) as a single gesture.
func (s *Session) Drag(id string, x, y float64) (Element, error) {
	s.lock()
	defer s.mu.Unlock()
	el, err := s.ctrl.Drag(id, x, y)
	s.changed(err == nil)
	return el, err
}

// Resize scales element `id` by (sx, sy) as a single gesture.
func (s *Session) Resize(id string, sx, sy float64) (Element, error) {
	s.lock()
	defer s.mu.Unlock()
	el, err := s.ctrl.Resize(id, sx, sy)
	s.changed(err == nil)
	return el, err
}

func (s *Session) Undo() bool {
	s.lock()
	defer s.mu.Unlock()
	ok := s.model.Undo()
	s.changed(ok)
	s.ctrl.Sync()
	s.applyFits()
	return ok
}

func (s *Session) Redo() bool {
	s.lock()
	defer s.mu.Unlock()
	ok := s.model.Redo()
	s.changed(ok)
	s.ctrl.Sync()
	s.applyFits()
	return ok
}

func (s *Session) SetMode(mode DesignMode) error {
	if !mode.IsValid() {
		return core.NewValidationError(
			errors.Errorf("unknown design mode %q", mode),
			core.FieldError{Field: "mode", Error: designModeText},
		)
	}
	s.lock()
	defer s.mu.Unlock()
	s.changed(mode != s.mode)
	s.mode = mode
	return nil
}

func (s *Session) SetTemplate(tmpl string) {
	s.lock()
	defer s.mu.Unlock()
	s.changed(tmpl != s.template)
	s.template = tmpl
}

// SetPlaceholders replaces the placeholder definitions. Definitions without id get one.
func (s *Session) SetPlaceholders(ps Placeholders) {
	ps = append(Placeholders(nil), ps...)
	for i := range ps {
		if ps[i].ID == "" {
			ps[i].ID = uuid.NewString()
		}
		ps[i].Token = TokenName(ps[i].Token)
	}
	s.lock()
	defer s.mu.Unlock()
	s.changed(true)
	s.placeholders = ps
}

// AttachViewport sets the render target size.
func (s *Session) AttachViewport(vp Viewport) {
	s.lock()
	defer s.mu.Unlock()
	s.changed(vp != s.viewport)
	s.viewport = vp
}

// Preview returns the substituted and sanitized template markup.
func (s *Session) Preview() (string, error) {
	s.lock()
	tmpl, values := s.template, s.placeholders.Values()
	s.mu.Unlock()
	return Render(tmpl, values)
}

// composition resolves the current design under the session mutex,
// along with the revision it was taken at.
func (s *Session) composition() (Composition, Artifact, uint64, error) {
	s.lock()
	defer s.mu.Unlock()
	doc := s.model.Document()
	c, err := NewComposition(s.mode, s.viewport, doc, s.template, s.placeholders)
	if err != nil {
		return Composition{}, Artifact{}, 0, err
	}
	return c, Artifact{
		OwnerID:      s.OwnerID,
		Mode:         s.mode,
		Document:     doc,
		Template:     s.template,
		Placeholders: append(Placeholders(nil), s.placeholders...),
		Markup:       c.Markup,
	}, s.rev, nil
}

func (s *Session) acquire() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (s *Session) release() { s.busy.Store(false) }

// Export rasterizes the current design. A second call while one export or save
// is in flight fails with ErrBusy.
func (s *Session) Export(ctx context.Context) (Raster, error) {
	if err := s.acquire(); err != nil {
		return Raster{}, err
	}
	defer s.release()

	c, _, _, err := s.composition()
	if err != nil {
		return Raster{}, err
	}
	return s.exporter.Export(ctx, c)
}

// Save rasterizes the current design and hands it to the Gateway.
// Validation failures never reach the Gateway. A failed save leaves the session unsaved.
func (s *Session) Save(ctx context.Context, req SaveRequest) (SaveResult, error) {
	if err := s.acquire(); err != nil {
		return SaveResult{}, err
	}
	defer s.release()

	c, a, rev, err := s.composition()
	if err != nil {
		return SaveResult{}, err
	}
	raster, err := s.exporter.Export(ctx, c)
	if err != nil {
		return SaveResult{}, err
	}

	a.Title = req.Title
	a.Description = req.Description
	a.FileName = req.FileName
	a.IssuedTo = req.IssuedTo
	a.IssuedToEmail = req.IssuedToEmail
	a.Raster = raster.PNG
	a.Checksum = raster.Checksum

	res, err := s.gateway.Save(ctx, a)
	if err != nil {
		return SaveResult{}, err
	}

	s.lock()
	s.designID = res.ID
	s.saved, s.savedRev = true, rev
	s.mu.Unlock()
	return res, nil
}

// IsSaved reports whether a save of the session succeeded and nothing changed since.
func (s *Session) IsSaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSaved()
}

// Close stops the pending image loads and waits for them.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}
