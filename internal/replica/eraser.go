package replica

import (
	"github.com/smtart/whiteboard-app/internal/board"
	"github.com/smtart/whiteboard-app/internal/protocol"
)

type eraseDrag struct {
	changed bool
}

// BeginErase opens an eraser drag. All contacts until EndErase share
// one history entry.
func (r *Replica) BeginErase() {
	r.drag = &eraseDrag{}
}

// EraseAt evaluates one eraser contact against current local state,
// applies the resulting split atomically, and emits the corresponding
// delete and add operations. Outside an open drag the contact is
// treated as a complete drag of its own.
func (r *Replica) EraseAt(center board.Point, radius, zoom float64) error {
	standalone := r.drag == nil
	if standalone {
		r.BeginErase()
	}
	err := r.eraseContact(center, radius, zoom)
	if standalone {
		r.EndErase()
	}
	return err
}

// EndErase closes the drag, pushing one history entry when any contact
// changed state.
func (r *Replica) EndErase() {
	if r.drag != nil && r.drag.changed {
		r.pushHistory()
	}
	r.drag = nil
}

// eraseContact re-evaluates hit tests against current, already-split
// state, so a stroke shortens progressively across the samples of one
// drag.
func (r *Replica) eraseContact(center board.Point, radius, zoom float64) error {
	if r.roomID == "" {
		return errNotJoined
	}
	change, err := board.EraseAt(r.Elements(), center, radius, zoom, r.ids)
	if err != nil {
		return err
	}
	if change.Empty() {
		return nil
	}

	for _, id := range change.Deleted {
		delete(r.elements, id)
	}
	for _, element := range change.Added {
		r.elements[element.ID] = element
	}
	r.drag.changed = true

	if len(change.Deleted) > 0 {
		if err := r.emitDelete(change.Deleted); err != nil {
			return err
		}
	}
	for _, element := range change.Added {
		if err := r.emit(protocol.TypeAddElement, protocol.ElementPayload{
			RoomID:  r.roomID.String(),
			Element: element,
		}); err != nil {
			return err
		}
	}
	return nil
}
