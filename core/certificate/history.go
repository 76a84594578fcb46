package certificate

// History keeps linear undo/redo stacks of whole-document snapshots.
// It is not safe for concurrent use; the owning Session serializes access.
type History struct {
	undo  []Snapshot
	redo  []Snapshot
	limit int // 0 = unlimited
}

// NewHistory returns an empty History keeping at most `limit` undo entries (0 = unlimited).
func NewHistory(limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{limit: limit}
}

// Record pushes the pre-mutation state and drops every redo entry.
func (h *History) Record(current Snapshot) {
	h.pushUndo(current)
	h.redo = nil
}

func (h *History) pushUndo(s Snapshot) {
	h.undo = append(h.undo, s)
	if h.limit > 0 && len(h.undo) > h.limit {
		// drop the oldest entries
		h.undo = append(h.undo[:0:0], h.undo[len(h.undo)-h.limit:]...)
	}
}

// Undo pops the latest undo entry, pushing `current` onto the redo stack.
// It reports false, and changes nothing, when there is nothing to undo.
func (h *History) Undo(current Snapshot) (Snapshot, bool) {
	if len(h.undo) == 0 {
		return Snapshot{}, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)
	return prev, true
}

// Redo pops the latest redo entry, pushing `current` onto the undo stack.
func (h *History) Redo(current Snapshot) (Snapshot, bool) {
	if len(h.redo) == 0 {
		return Snapshot{}, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.pushUndo(current)
	return next, true
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Depth returns the sizes of the undo and redo stacks.
func (h *History) Depth() (undo, redo int) { return len(h.undo), len(h.redo) }

// Reset forgets every entry.
func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
}
