package replica

import (
	"errors"
	"sort"

	"github.com/smtart/whiteboard-app/internal/board"
	"github.com/smtart/whiteboard-app/internal/history"
	"github.com/smtart/whiteboard-app/internal/protocol"
	"github.com/smtart/whiteboard-app/internal/room"
	"github.com/smtart/whiteboard-app/internal/textlock"
	"go.uber.org/zap"
)

var (
	errMissingEmitter    = errors.New("emitter is required")
	errMissingIDProvider = errors.New("id provider is required")
	errNotJoined         = errors.New("no room joined")
)

// Emitter carries one protocol message toward the server.
type Emitter interface {
	Emit(message protocol.Message) error
}

// ReplicaConfig carries the injectable dependencies of a replica.
type ReplicaConfig struct {
	Emitter      Emitter
	IDProvider   board.IDProvider
	Logger       *zap.Logger
	HistoryDepth int
}

// Replica is the client-side mirror of one room: elements applied
// optimistically on local action and reconciled on inbound messages.
// It is not safe for concurrent use; callers serialize access on the
// goroutine that owns the connection.
type Replica struct {
	emitter   Emitter
	ids       board.IDProvider
	logger    *zap.Logger
	roomID    board.RoomID
	yourID    string
	yourColor string
	elements  map[board.ElementID]board.Element
	users     map[string]room.Presence
	previews  map[string]board.Element
	locks     *textlock.Coordinator
	history   *history.Engine
	drag      *eraseDrag
}

// NewReplica constructs a replica, validating required dependencies.
func NewReplica(cfg ReplicaConfig) (*Replica, error) {
	if cfg.Emitter == nil {
		return nil, errMissingEmitter
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replica{
		emitter:  cfg.Emitter,
		ids:      cfg.IDProvider,
		logger:   logger,
		elements: make(map[board.ElementID]board.Element),
		users:    make(map[string]room.Presence),
		previews: make(map[string]board.Element),
		locks:    textlock.NewCoordinator(),
		history:  history.NewEngine(cfg.HistoryDepth),
	}, nil
}

// Join registers interest in a room. State arrives asynchronously as a
// room-state message.
func (r *Replica) Join(roomID board.RoomID, name string) error {
	r.roomID = roomID
	return r.emit(protocol.TypeJoinRoom, protocol.JoinRoomPayload{
		RoomID: roomID.String(),
		Name:   name,
	})
}

// AddElement commits a new element locally and emits the durable op.
func (r *Replica) AddElement(element board.Element) error {
	return r.commitElement(protocol.TypeAddElement, element)
}

// UpdateElement overwrites an element locally and emits the durable op.
func (r *Replica) UpdateElement(element board.Element) error {
	return r.commitElement(protocol.TypeUpdateElement, element)
}

func (r *Replica) commitElement(messageType protocol.Type, element board.Element) error {
	if r.roomID == "" {
		return errNotJoined
	}
	if err := element.ValidateCommitted(); err != nil {
		return err
	}
	r.elements[element.ID] = element.Clone()
	if err := r.emit(messageType, protocol.ElementPayload{
		RoomID:  r.roomID.String(),
		Element: element,
	}); err != nil {
		return err
	}
	r.pushHistory()
	return nil
}

// DeleteElements removes the ids that exist locally and emits one
// durable delete for them. Unknown ids are dropped from the batch.
func (r *Replica) DeleteElements(ids []board.ElementID) error {
	if r.roomID == "" {
		return errNotJoined
	}
	present := make([]board.ElementID, 0, len(ids))
	for _, id := range ids {
		if _, exists := r.elements[id]; exists {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil
	}
	for _, id := range present {
		delete(r.elements, id)
	}
	if err := r.emitDelete(present); err != nil {
		return err
	}
	r.pushHistory()
	return nil
}

// ClearBoard wipes local state and emits the destructive reset.
func (r *Replica) ClearBoard() error {
	if r.roomID == "" {
		return errNotJoined
	}
	r.elements = make(map[board.ElementID]board.Element)
	if err := r.emit(protocol.TypeClearBoard, protocol.ClearBoardPayload{
		RoomID: r.roomID.String(),
	}); err != nil {
		return err
	}
	r.pushHistory()
	return nil
}

// MoveCursor reports the local pointer position.
func (r *Replica) MoveCursor(x, y float64) error {
	if r.roomID == "" {
		return errNotJoined
	}
	return r.emit(protocol.TypeCursorMove, protocol.CursorMovePayload{
		RoomID: r.roomID.String(),
		X:      x,
		Y:      y,
	})
}

// PreviewElement relays an in-progress shape without committing it.
func (r *Replica) PreviewElement(element board.Element) error {
	if r.roomID == "" {
		return errNotJoined
	}
	if err := element.Validate(); err != nil {
		return err
	}
	return r.emit(protocol.TypeDrawingPreview, protocol.ElementPayload{
		RoomID:  r.roomID.String(),
		Element: element,
	})
}

// PreviewText mirrors live text edits locally and relays them so other
// members and late joiners see the current content.
func (r *Replica) PreviewText(element board.Element) error {
	if r.roomID == "" {
		return errNotJoined
	}
	if err := element.Validate(); err != nil {
		return err
	}
	r.elements[element.ID] = element.Clone()
	return r.emit(protocol.TypeTextPreview, protocol.ElementPayload{
		RoomID:  r.roomID.String(),
		Element: element,
	})
}

// LockText claims the advisory single-writer lock before editing. It
// reports false without emitting when another member holds the claim.
func (r *Replica) LockText(id board.ElementID) (bool, error) {
	if r.roomID == "" {
		return false, errNotJoined
	}
	if owner, held := r.locks.Owner(id); held && owner != r.yourID {
		return false, nil
	}
	r.locks.Claim(id, r.yourID)
	err := r.emit(protocol.TypeTextLock, protocol.TextLockPayload{
		RoomID: r.roomID.String(),
		ID:     id.String(),
	})
	return err == nil, err
}

// UnlockText releases the advisory lock after editing.
func (r *Replica) UnlockText(id board.ElementID) error {
	if r.roomID == "" {
		return errNotJoined
	}
	if !r.locks.Release(id, r.yourID) {
		return nil
	}
	return r.emit(protocol.TypeTextUnlock, protocol.TextLockPayload{
		RoomID: r.roomID.String(),
		ID:     id.String(),
	})
}

// Undo steps local history backward and reconciles the difference.
func (r *Replica) Undo() (bool, error) {
	snapshot, ok := r.history.Undo()
	if !ok {
		return false, nil
	}
	return true, r.restore(snapshot)
}

// Redo steps local history forward and reconciles the difference.
func (r *Replica) Redo() (bool, error) {
	snapshot, ok := r.history.Redo()
	if !ok {
		return false, nil
	}
	return true, r.restore(snapshot)
}

// restore replaces local state with the snapshot and emits the minimal
// diff against the state immediately prior. It never emits the
// destructive clear: a wipe would flash every other member's board and
// race with their concurrent edits.
func (r *Replica) restore(snapshot history.Snapshot) error {
	prior := history.NewSnapshot(r.elements)
	added, updated, deleted := history.Diff(prior, snapshot)

	r.elements = make(map[board.ElementID]board.Element, len(snapshot))
	for id, element := range snapshot {
		r.elements[id] = element.Clone()
	}

	for _, element := range added {
		if err := r.emit(protocol.TypeAddElement, protocol.ElementPayload{
			RoomID:  r.roomID.String(),
			Element: element,
		}); err != nil {
			return err
		}
	}
	for _, element := range updated {
		if err := r.emit(protocol.TypeUpdateElement, protocol.ElementPayload{
			RoomID:  r.roomID.String(),
			Element: element,
		}); err != nil {
			return err
		}
	}
	if len(deleted) > 0 {
		if err := r.emitDelete(deleted); err != nil {
			return err
		}
	}
	return nil
}

// CanUndo reports whether local history can step backward.
func (r *Replica) CanUndo() bool {
	return r.history.CanUndo()
}

// CanRedo reports whether local history can step forward.
func (r *Replica) CanRedo() bool {
	return r.history.CanRedo()
}

// Apply reconciles one inbound message into local state. Malformed or
// unexpected messages are absorbed silently.
func (r *Replica) Apply(message protocol.Message) {
	switch message.Type {
	case protocol.TypeRoomState:
		var payload protocol.RoomStatePayload
		if !r.decode(message, &payload) {
			return
		}
		r.applyRoomState(payload)
	case protocol.TypeElementAdded, protocol.TypeElementUpdated, protocol.TypeTextPreview:
		var payload protocol.ElementPayload
		if !r.decode(message, &payload) {
			return
		}
		if payload.Element.Validate() != nil {
			return
		}
		r.elements[payload.Element.ID] = payload.Element.Clone()
	case protocol.TypeElementsDeleted:
		var payload protocol.DeleteElementsPayload
		if !r.decode(message, &payload) {
			return
		}
		for _, id := range payload.IDs {
			delete(r.elements, board.ElementID(id))
		}
	case protocol.TypeBoardCleared:
		r.elements = make(map[board.ElementID]board.Element)
	case protocol.TypeDrawingPreview:
		var payload protocol.ElementPayload
		if !r.decode(message, &payload) {
			return
		}
		if payload.UserID == "" || payload.Element.Validate() != nil {
			return
		}
		r.previews[payload.UserID] = payload.Element.Clone()
	case protocol.TypePenDelta:
		var payload protocol.PenDeltaPayload
		if !r.decode(message, &payload) {
			return
		}
		r.applyPenDelta(payload)
	case protocol.TypeDrawingDone:
		var payload protocol.DrawingDonePayload
		if !r.decode(message, &payload) {
			return
		}
		delete(r.previews, payload.UserID)
	case protocol.TypeTextLock:
		var payload protocol.TextLockPayload
		if !r.decode(message, &payload) {
			return
		}
		r.locks.Claim(board.ElementID(payload.ID), payload.UserID)
	case protocol.TypeTextUnlock:
		var payload protocol.TextLockPayload
		if !r.decode(message, &payload) {
			return
		}
		r.locks.Release(board.ElementID(payload.ID), payload.UserID)
	case protocol.TypeCursorMoved:
		var payload protocol.CursorMovedPayload
		if !r.decode(message, &payload) {
			return
		}
		presence, exists := r.users[payload.ID]
		if !exists {
			return
		}
		presence.Cursor = &board.Point{X: payload.X, Y: payload.Y}
		r.users[payload.ID] = presence
	case protocol.TypeUserJoined:
		var payload protocol.UserJoinedPayload
		if !r.decode(message, &payload) {
			return
		}
		r.users[payload.ID] = room.Presence{Name: payload.Name, Color: payload.Color}
	case protocol.TypeUserLeft:
		var payload protocol.UserLeftPayload
		if !r.decode(message, &payload) {
			return
		}
		delete(r.users, payload.ID)
		delete(r.previews, payload.ID)
		r.locks.ReleaseOwner(payload.ID)
	default:
		r.logger.Debug("unhandled message", zap.String("type", string(message.Type)))
	}
}

func (r *Replica) applyRoomState(payload protocol.RoomStatePayload) {
	r.yourID = payload.YourID
	r.yourColor = payload.YourColor
	r.elements = make(map[board.ElementID]board.Element, len(payload.Elements))
	for _, element := range payload.Elements {
		r.elements[element.ID] = element.Clone()
	}
	r.users = make(map[string]room.Presence, len(payload.Users))
	for id, presence := range payload.Users {
		r.users[id] = presence
	}
	r.previews = make(map[string]board.Element)
	r.locks = textlock.NewCoordinator()
	r.history.Reset(history.NewSnapshot(r.elements))
}

// applyPenDelta appends the suffix to the sender's preview buffer, or
// replaces the buffer when the delta belongs to a different stroke.
func (r *Replica) applyPenDelta(payload protocol.PenDeltaPayload) {
	if payload.UserID == "" || payload.ID == "" {
		return
	}
	buffer, exists := r.previews[payload.UserID]
	if !exists || buffer.ID != board.ElementID(payload.ID) || buffer.Type != board.ElementTypePen {
		buffer = board.Element{
			ID:   board.ElementID(payload.ID),
			Type: board.ElementTypePen,
		}
		if payload.Style != nil {
			buffer.Style = *payload.Style
		}
	}
	buffer.Points = append(buffer.Points, payload.Points...)
	r.previews[payload.UserID] = buffer
}

// Elements returns a copy of local elements ordered by id.
func (r *Replica) Elements() []board.Element {
	list := make([]board.Element, 0, len(r.elements))
	for _, element := range r.elements {
		list = append(list, element.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Users returns a copy of the known presences.
func (r *Replica) Users() map[string]room.Presence {
	users := make(map[string]room.Presence, len(r.users))
	for id, presence := range r.users {
		users[id] = presence
	}
	return users
}

// Previews returns a copy of the remote in-progress overlays by sender.
func (r *Replica) Previews() map[string]board.Element {
	previews := make(map[string]board.Element, len(r.previews))
	for id, element := range r.previews {
		previews[id] = element.Clone()
	}
	return previews
}

// LockOwner reports who holds the advisory claim on an element.
func (r *Replica) LockOwner(id board.ElementID) (string, bool) {
	return r.locks.Owner(id)
}

// YourID returns the connection id assigned by the server.
func (r *Replica) YourID() string {
	return r.yourID
}

// YourColor returns the presence color assigned by the server.
func (r *Replica) YourColor() string {
	return r.yourColor
}

// RoomID returns the joined room.
func (r *Replica) RoomID() board.RoomID {
	return r.roomID
}

func (r *Replica) pushHistory() {
	r.history.Push(history.NewSnapshot(r.elements))
}

func (r *Replica) emit(messageType protocol.Type, payload any) error {
	message, err := protocol.New(messageType, payload)
	if err != nil {
		return err
	}
	return r.emitter.Emit(message)
}

func (r *Replica) emitDelete(ids []board.ElementID) error {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}
	return r.emit(protocol.TypeDeleteElements, protocol.DeleteElementsPayload{
		RoomID: r.roomID.String(),
		IDs:    raw,
	})
}

func (r *Replica) decode(message protocol.Message, value any) bool {
	if err := message.DecodePayload(value); err != nil {
		r.logger.Debug("dropping malformed payload",
			zap.String("type", string(message.Type)),
			zap.Error(err))
		return false
	}
	return true
}
