package replica

import (
	"testing"

	"github.com/smtart/whiteboard-app/internal/board"
	"github.com/smtart/whiteboard-app/internal/protocol"
	"github.com/smtart/whiteboard-app/internal/room"
)

func TestNewReplicaRequiresDependencies(t *testing.T) {
	if _, err := NewReplica(ReplicaConfig{IDProvider: &sequenceIDProvider{}}); err == nil {
		t.Fatalf("expected missing emitter to be rejected")
	}
	if _, err := NewReplica(ReplicaConfig{Emitter: &captureEmitter{}}); err == nil {
		t.Fatalf("expected missing id provider to be rejected")
	}
}

func TestJoinEmitsAndRoomStateSeedsReplica(t *testing.T) {
	emitter := &captureEmitter{}
	r, err := NewReplica(ReplicaConfig{Emitter: emitter, IDProvider: &sequenceIDProvider{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	roomID, _ := board.NewRoomID("lobby")
	if err := r.Join(roomID, "Ada"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	joins := emitter.byType(protocol.TypeJoinRoom)
	if len(joins) != 1 {
		t.Fatalf("expected one join-room message, got %d", len(joins))
	}
	join := mustPayload[protocol.JoinRoomPayload](t, joins[0])
	if join.RoomID != "lobby" || join.Name != "Ada" {
		t.Fatalf("unexpected join payload %+v", join)
	}

	r.Apply(mustMessage(t, protocol.TypeRoomState, protocol.RoomStatePayload{
		Elements: []board.Element{lineAt("a", 0)},
		Users: map[string]room.Presence{
			"conn-self":  {Name: "Ada", Color: "#e74c3c"},
			"conn-other": {Name: "Grace", Color: "#3498db"},
		},
		YourID:    "conn-self",
		YourColor: "#e74c3c",
	}))

	if r.YourID() != "conn-self" || r.YourColor() != "#e74c3c" {
		t.Fatalf("identity not applied: %q %q", r.YourID(), r.YourColor())
	}
	assertElementIDs(t, r.Elements(), "a")
	if len(r.Users()) != 2 {
		t.Fatalf("expected two presences, got %d", len(r.Users()))
	}
	if r.CanUndo() {
		t.Fatalf("an authoritative snapshot must reset history")
	}
}

func TestAddElementCommitsLocallyAndEmits(t *testing.T) {
	r, emitter := newJoinedReplica(t)

	if err := r.AddElement(lineAt("a", 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertElementIDs(t, r.Elements(), "a")

	adds := emitter.byType(protocol.TypeAddElement)
	if len(adds) != 1 {
		t.Fatalf("expected one add-element, got %d", len(adds))
	}
	payload := mustPayload[protocol.ElementPayload](t, adds[0])
	if payload.RoomID != "lobby" || payload.Element.ID != "a" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if !r.CanUndo() {
		t.Fatalf("a committed edit must be undoable")
	}
}

func TestAddElementRejectsUncommittableElements(t *testing.T) {
	r, emitter := newJoinedReplica(t)

	dot := board.Element{ID: "p-1", Type: board.ElementTypePen, Points: []board.Point{{X: 1, Y: 1}}}
	if err := r.AddElement(dot); err == nil {
		t.Fatalf("expected single-point stroke to be rejected")
	}
	if len(emitter.messages) != 0 {
		t.Fatalf("a rejected element must not reach the wire")
	}
}

func TestUndoRedoRoundTripAgainstServer(t *testing.T) {
	r, emitter := newJoinedReplica(t)
	a := lineAt("a", 0)
	b := lineAt("b", 20)

	if err := r.AddElement(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.AddElement(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emitter.reset()

	undone, err := r.Undo()
	if err != nil || !undone {
		t.Fatalf("expected undo to apply, got %v %v", undone, err)
	}
	assertElementIDs(t, r.Elements(), "a")
	deletes := emitter.byType(protocol.TypeDeleteElements)
	if len(deletes) != 1 {
		t.Fatalf("expected exactly one delete-elements, got %d", len(deletes))
	}
	deletePayload := mustPayload[protocol.DeleteElementsPayload](t, deletes[0])
	if len(deletePayload.IDs) != 1 || deletePayload.IDs[0] != "b" {
		t.Fatalf("unexpected delete batch %v", deletePayload.IDs)
	}
	if len(emitter.byType(protocol.TypeClearBoard)) != 0 {
		t.Fatalf("undo must never emit the destructive clear")
	}

	undone, err = r.Undo()
	if err != nil || !undone {
		t.Fatalf("expected second undo to apply, got %v %v", undone, err)
	}
	if len(r.Elements()) != 0 {
		t.Fatalf("expected empty state, got %+v", r.Elements())
	}

	if undone, _ := r.Undo(); undone {
		t.Fatalf("undo at the boundary must be a no-op")
	}

	emitter.reset()
	for i := 0; i < 2; i++ {
		redone, err := r.Redo()
		if err != nil || !redone {
			t.Fatalf("expected redo %d to apply, got %v %v", i, redone, err)
		}
	}
	assertElementIDs(t, r.Elements(), "a", "b")
	if len(emitter.byType(protocol.TypeAddElement)) != 2 {
		t.Fatalf("expected both elements re-added over the wire")
	}
	if redone, _ := r.Redo(); redone {
		t.Fatalf("redo at the boundary must be a no-op")
	}
}

func TestRestoreEmitsUpdateForChangedElements(t *testing.T) {
	r, emitter := newJoinedReplica(t)
	a := lineAt("a", 0)
	if err := r.AddElement(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	moved := a
	moved.X1 = 50
	if err := r.UpdateElement(moved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emitter.reset()

	if undone, _ := r.Undo(); !undone {
		t.Fatalf("expected undo to apply")
	}
	updates := emitter.byType(protocol.TypeUpdateElement)
	if len(updates) != 1 {
		t.Fatalf("expected exactly one update-element, got %d", len(updates))
	}
	payload := mustPayload[protocol.ElementPayload](t, updates[0])
	if payload.Element.X1 != 0 {
		t.Fatalf("expected the original geometry back, got %+v", payload.Element)
	}
	if len(emitter.byType(protocol.TypeDeleteElements)) != 0 {
		t.Fatalf("a value change must not emit deletes")
	}
}

func TestApplyElementAddedIsIdempotent(t *testing.T) {
	r, _ := newJoinedReplica(t)
	message := mustMessage(t, protocol.TypeElementAdded, protocol.ElementPayload{
		UserID:  "conn-other",
		Element: lineAt("a", 0),
	})

	r.Apply(message)
	r.Apply(message)
	assertElementIDs(t, r.Elements(), "a")
	if r.CanUndo() {
		t.Fatalf("remote edits must not enter local history")
	}
}

func TestApplyElementsDeletedAndBoardCleared(t *testing.T) {
	r, _ := newJoinedReplica(t)
	r.Apply(mustMessage(t, protocol.TypeElementAdded, protocol.ElementPayload{Element: lineAt("a", 0)}))
	r.Apply(mustMessage(t, protocol.TypeElementAdded, protocol.ElementPayload{Element: lineAt("b", 20)}))

	r.Apply(mustMessage(t, protocol.TypeElementsDeleted, protocol.DeleteElementsPayload{IDs: []string{"a", "ghost"}}))
	assertElementIDs(t, r.Elements(), "b")

	r.Apply(protocol.Message{Type: protocol.TypeBoardCleared})
	if len(r.Elements()) != 0 {
		t.Fatalf("expected wiped state, got %+v", r.Elements())
	}
}

func TestPenDeltaSuffixesReconstructTheStroke(t *testing.T) {
	r, _ := newJoinedReplica(t)

	style := board.Style{StrokeColor: "#1a1a1a", StrokeWidth: 2, Opacity: 1}
	chunks := [][]board.Point{
		{{X: 0, Y: 0}, {X: 1, Y: 1}},
		{{X: 2, Y: 2}},
		{{X: 3, Y: 3}, {X: 4, Y: 4}, {X: 5, Y: 5}},
	}
	for i, chunk := range chunks {
		payload := protocol.PenDeltaPayload{UserID: "conn-other", ID: "stroke-1", Points: chunk}
		if i == 0 {
			payload.Style = &style
		}
		r.Apply(mustMessage(t, protocol.TypePenDelta, payload))
	}

	preview, exists := r.Previews()["conn-other"]
	if !exists {
		t.Fatalf("expected a preview buffer for the sender")
	}
	if len(preview.Points) != 6 {
		t.Fatalf("expected the concatenation of all suffixes, got %d points", len(preview.Points))
	}
	for i, p := range preview.Points {
		if p.X != float64(i) || p.Y != float64(i) {
			t.Fatalf("point %d out of order: %+v", i, p)
		}
	}
	if preview.Style != style {
		t.Fatalf("expected the style from the first delta, got %+v", preview.Style)
	}
}

func TestPenDeltaForNewStrokeReplacesBuffer(t *testing.T) {
	r, _ := newJoinedReplica(t)

	r.Apply(mustMessage(t, protocol.TypePenDelta, protocol.PenDeltaPayload{
		UserID: "conn-other", ID: "stroke-1", Points: []board.Point{{X: 0, Y: 0}},
	}))
	r.Apply(mustMessage(t, protocol.TypePenDelta, protocol.PenDeltaPayload{
		UserID: "conn-other", ID: "stroke-2", Points: []board.Point{{X: 9, Y: 9}},
	}))

	preview := r.Previews()["conn-other"]
	if preview.ID != "stroke-2" || len(preview.Points) != 1 || preview.Points[0].X != 9 {
		t.Fatalf("expected the buffer to restart for the new stroke, got %+v", preview)
	}
}

func TestDrawingDoneDiscardsPreview(t *testing.T) {
	r, _ := newJoinedReplica(t)

	r.Apply(mustMessage(t, protocol.TypeDrawingPreview, protocol.ElementPayload{
		UserID:  "conn-other",
		Element: board.Element{ID: "r-1", Type: board.ElementTypeRectangle, W: 10, H: 10},
	}))
	if len(r.Previews()) != 1 {
		t.Fatalf("expected one preview buffer")
	}

	r.Apply(mustMessage(t, protocol.TypeDrawingDone, protocol.DrawingDonePayload{
		UserID: "conn-other", ID: "r-1",
	}))
	if len(r.Previews()) != 0 {
		t.Fatalf("expected the preview buffer to be discarded")
	}
}

func TestDrawingDoneAndElementAddedConvergeInEitherOrder(t *testing.T) {
	stroke := board.Element{
		ID:     "stroke-1",
		Type:   board.ElementTypePen,
		Points: []board.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
	}
	delta := protocol.PenDeltaPayload{UserID: "conn-other", ID: "stroke-1", Points: stroke.Points}

	doneFirst, _ := newJoinedReplica(t)
	doneFirst.Apply(mustMessage(t, protocol.TypePenDelta, delta))
	doneFirst.Apply(mustMessage(t, protocol.TypeDrawingDone, protocol.DrawingDonePayload{UserID: "conn-other", ID: "stroke-1"}))
	doneFirst.Apply(mustMessage(t, protocol.TypeElementAdded, protocol.ElementPayload{UserID: "conn-other", Element: stroke}))

	addFirst, _ := newJoinedReplica(t)
	addFirst.Apply(mustMessage(t, protocol.TypePenDelta, delta))
	addFirst.Apply(mustMessage(t, protocol.TypeElementAdded, protocol.ElementPayload{UserID: "conn-other", Element: stroke}))
	addFirst.Apply(mustMessage(t, protocol.TypeDrawingDone, protocol.DrawingDonePayload{UserID: "conn-other", ID: "stroke-1"}))

	assertElementIDs(t, doneFirst.Elements(), "stroke-1")
	assertElementIDs(t, addFirst.Elements(), "stroke-1")
	if len(doneFirst.Previews()) != 0 || len(addFirst.Previews()) != 0 {
		t.Fatalf("preview buffers must be gone in both orders")
	}
}

func TestTextPreviewMirrorsIntoElements(t *testing.T) {
	r, _ := newJoinedReplica(t)

	draft := board.Element{ID: "t-1", Type: board.ElementTypeText, X: 5, Y: 5, Text: "hel"}
	r.Apply(mustMessage(t, protocol.TypeTextPreview, protocol.ElementPayload{UserID: "conn-other", Element: draft}))

	elements := r.Elements()
	assertElementIDs(t, elements, "t-1")
	if elements[0].Text != "hel" {
		t.Fatalf("expected mirrored draft text, got %q", elements[0].Text)
	}
	if len(r.Previews()) != 0 {
		t.Fatalf("text previews mirror into elements, not preview buffers")
	}
}

func TestTextLockFlow(t *testing.T) {
	r, emitter := newJoinedReplica(t)
	r.Apply(mustMessage(t, protocol.TypeTextLock, protocol.TextLockPayload{UserID: "conn-other", ID: "t-1"}))

	acquired, err := r.LockText("t-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Fatalf("a foreign claim must block the local lock")
	}
	if len(emitter.byType(protocol.TypeTextLock)) != 0 {
		t.Fatalf("a refused lock must not reach the wire")
	}

	r.Apply(mustMessage(t, protocol.TypeTextUnlock, protocol.TextLockPayload{UserID: "conn-other", ID: "t-1"}))
	acquired, err = r.LockText("t-1")
	if err != nil || !acquired {
		t.Fatalf("expected the lock after release, got %v %v", acquired, err)
	}
	if len(emitter.byType(protocol.TypeTextLock)) != 1 {
		t.Fatalf("expected the claim on the wire")
	}

	if err := r.UnlockText("t-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emitter.byType(protocol.TypeTextUnlock)) != 1 {
		t.Fatalf("expected the release on the wire")
	}
}

func TestUserLeftCleansUpPresencePreviewsAndLocks(t *testing.T) {
	r, _ := newJoinedReplica(t)
	r.Apply(mustMessage(t, protocol.TypeUserJoined, protocol.UserJoinedPayload{ID: "conn-other", Name: "Grace", Color: "#3498db"}))
	r.Apply(mustMessage(t, protocol.TypePenDelta, protocol.PenDeltaPayload{
		UserID: "conn-other", ID: "stroke-1", Points: []board.Point{{X: 0, Y: 0}},
	}))
	r.Apply(mustMessage(t, protocol.TypeTextLock, protocol.TextLockPayload{UserID: "conn-other", ID: "t-1"}))

	r.Apply(mustMessage(t, protocol.TypeUserLeft, protocol.UserLeftPayload{ID: "conn-other"}))

	if _, exists := r.Users()["conn-other"]; exists {
		t.Fatalf("expected presence to be removed")
	}
	if len(r.Previews()) != 0 {
		t.Fatalf("expected the leaver's preview buffer to be discarded")
	}
	if _, held := r.LockOwner("t-1"); held {
		t.Fatalf("expected the leaver's locks to be released")
	}
}

func TestCursorMovedUpdatesKnownPresenceOnly(t *testing.T) {
	r, _ := newJoinedReplica(t)
	r.Apply(mustMessage(t, protocol.TypeUserJoined, protocol.UserJoinedPayload{ID: "conn-other", Name: "Grace", Color: "#3498db"}))

	r.Apply(mustMessage(t, protocol.TypeCursorMoved, protocol.CursorMovedPayload{ID: "conn-other", X: 7, Y: 8}))
	cursor := r.Users()["conn-other"].Cursor
	if cursor == nil || cursor.X != 7 || cursor.Y != 8 {
		t.Fatalf("expected cursor update, got %+v", cursor)
	}

	r.Apply(mustMessage(t, protocol.TypeCursorMoved, protocol.CursorMovedPayload{ID: "conn-ghost", X: 1, Y: 2}))
	if _, exists := r.Users()["conn-ghost"]; exists {
		t.Fatalf("a cursor for an unknown member must not create presence")
	}
}

func TestApplyAbsorbsMalformedPayloads(t *testing.T) {
	r, _ := newJoinedReplica(t)
	r.Apply(protocol.Message{Type: protocol.TypeElementAdded, Payload: []byte(`{broken`)})
	r.Apply(protocol.Message{Type: protocol.TypeElementAdded})
	r.Apply(protocol.Message{Type: protocol.Type("made-up"), Payload: []byte(`{}`)})
	if len(r.Elements()) != 0 {
		t.Fatalf("malformed traffic must not mutate state")
	}
}

func TestLocalOpsRequireJoinedRoom(t *testing.T) {
	r, err := NewReplica(ReplicaConfig{Emitter: &captureEmitter{}, IDProvider: &sequenceIDProvider{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.AddElement(lineAt("a", 0)); err == nil {
		t.Fatalf("expected add before join to fail")
	}
	if err := r.ClearBoard(); err == nil {
		t.Fatalf("expected clear before join to fail")
	}
	if _, err := r.StartStroke(board.Style{}); err == nil {
		t.Fatalf("expected stroke before join to fail")
	}
}

func TestClearBoardEmitsAndPushesHistory(t *testing.T) {
	r, emitter := newJoinedReplica(t)
	if err := r.AddElement(lineAt("a", 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emitter.reset()

	if err := r.ClearBoard(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Elements()) != 0 {
		t.Fatalf("expected empty local state")
	}
	if len(emitter.byType(protocol.TypeClearBoard)) != 1 {
		t.Fatalf("expected clear-board on the wire")
	}

	if undone, _ := r.Undo(); !undone {
		t.Fatalf("expected the clear to be undoable")
	}
	assertElementIDs(t, r.Elements(), "a")
}
