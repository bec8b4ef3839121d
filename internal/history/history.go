package history

import (
	"sort"

	"github.com/smtart/whiteboard-app/internal/board"
)

// Snapshot is a full value-copy of a replica's element set at one
// point in local history.
type Snapshot map[board.ElementID]board.Element

// NewSnapshot deep-copies an element map into a Snapshot.
func NewSnapshot(elements map[board.ElementID]board.Element) Snapshot {
	snapshot := make(Snapshot, len(elements))
	for id, element := range elements {
		snapshot[id] = element.Clone()
	}
	return snapshot
}

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return NewSnapshot(s)
}

// DefaultDepth bounds the stack when no explicit depth is configured.
const DefaultDepth = 100

// a depth below two cannot hold a state and its predecessor
const minDepth = 2

// Engine keeps an ordered stack of snapshots and a cursor into it.
// Undoing moves the cursor backward without discarding entries, so a
// redo can walk forward again until a new edit truncates the branch.
type Engine struct {
	snapshots []Snapshot
	cursor    int
	depth     int
}

// NewEngine constructs an engine seeded with one empty snapshot.
func NewEngine(depth int) *Engine {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if depth < minDepth {
		depth = minDepth
	}
	return &Engine{
		snapshots: []Snapshot{{}},
		cursor:    0,
		depth:     depth,
	}
}

// Reset discards all history and seeds the stack with the given state.
// Used when an authoritative snapshot replaces local state wholesale.
func (e *Engine) Reset(initial Snapshot) {
	e.snapshots = []Snapshot{initial.Clone()}
	e.cursor = 0
}

// Push appends the current state, discarding any redo branch and
// evicting the oldest entry once the stack exceeds its depth.
func (e *Engine) Push(state Snapshot) {
	e.snapshots = append(e.snapshots[:e.cursor+1], state.Clone())
	if len(e.snapshots) > e.depth {
		e.snapshots = e.snapshots[len(e.snapshots)-e.depth:]
	}
	e.cursor = len(e.snapshots) - 1
}

// Undo steps the cursor backward and returns that snapshot. At the
// oldest entry it reports false and returns nothing.
func (e *Engine) Undo() (Snapshot, bool) {
	if !e.CanUndo() {
		return nil, false
	}
	e.cursor--
	return e.snapshots[e.cursor].Clone(), true
}

// Redo steps the cursor forward and returns that snapshot. At the
// newest entry it reports false and returns nothing.
func (e *Engine) Redo() (Snapshot, bool) {
	if !e.CanRedo() {
		return nil, false
	}
	e.cursor++
	return e.snapshots[e.cursor].Clone(), true
}

// CanUndo reports whether an older snapshot exists.
func (e *Engine) CanUndo() bool {
	return e.cursor > 0
}

// CanRedo reports whether a newer snapshot exists.
func (e *Engine) CanRedo() bool {
	return e.cursor < len(e.snapshots)-1
}

// Diff computes the minimal operations that transform prior into
// target: elements to add, elements to overwrite, and ids to delete.
// Output order is deterministic by id.
func Diff(prior, target Snapshot) (added, updated []board.Element, deleted []board.ElementID) {
	for id, element := range target {
		previous, exists := prior[id]
		if !exists {
			added = append(added, element.Clone())
			continue
		}
		if !previous.Equal(element) {
			updated = append(updated, element.Clone())
		}
	}
	for id := range prior {
		if _, exists := target[id]; !exists {
			deleted = append(deleted, id)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i].ID < added[j].ID })
	sort.Slice(updated, func(i, j int) bool { return updated[i].ID < updated[j].ID })
	sort.Slice(deleted, func(i, j int) bool { return deleted[i] < deleted[j] })
	return added, updated, deleted
}
