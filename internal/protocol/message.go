package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type names one message kind on the realtime channel.
type Type string

const (
	// TypeJoinRoom registers the sender in a room and requests its snapshot.
	TypeJoinRoom Type = "join-room"
	// TypeRoomState delivers the full room snapshot to a joining client.
	TypeRoomState Type = "room-state"
	// TypeAddElement commits a new element to the room.
	TypeAddElement Type = "add-element"
	// TypeElementAdded fans a committed element out to other members.
	TypeElementAdded Type = "element-added"
	// TypeUpdateElement overwrites an element by id, last writer wins.
	TypeUpdateElement Type = "update-element"
	// TypeElementUpdated fans an overwritten element out to other members.
	TypeElementUpdated Type = "element-updated"
	// TypeDeleteElements removes a batch of element ids from the room.
	TypeDeleteElements Type = "delete-elements"
	// TypeElementsDeleted fans removed ids out to other members.
	TypeElementsDeleted Type = "elements-deleted"
	// TypeClearBoard wipes every element in the room.
	TypeClearBoard Type = "clear-board"
	// TypeBoardCleared confirms the wipe to every member including the sender.
	TypeBoardCleared Type = "board-cleared"
	// TypeDrawingPreview relays an in-progress element without storing it.
	TypeDrawingPreview Type = "drawing-preview"
	// TypePenDelta relays the new suffix of a growing freehand stroke.
	TypePenDelta Type = "pen-delta"
	// TypeDrawingDone tells receivers to discard the sender's preview buffer.
	TypeDrawingDone Type = "drawing-done"
	// TypeTextPreview relays live text edits, mirrored into the stored element.
	TypeTextPreview Type = "text-preview"
	// TypeTextLock announces an advisory single-writer claim on a text element.
	TypeTextLock Type = "text-lock"
	// TypeTextUnlock releases an advisory claim.
	TypeTextUnlock Type = "text-unlock"
	// TypeCursorMove reports the sender's pointer position.
	TypeCursorMove Type = "cursor-move"
	// TypeCursorMoved fans a pointer position out to other members.
	TypeCursorMoved Type = "cursor-moved"
	// TypeUserJoined notifies existing members of a new presence.
	TypeUserJoined Type = "user-joined"
	// TypeUserLeft notifies members that a presence disconnected.
	TypeUserLeft Type = "user-left"
)

// RateClass buckets client-originated message kinds by ingress budget.
type RateClass int

const (
	// ClassDurable covers operations persisted into room state.
	ClassDurable RateClass = iota
	// ClassCursor covers pointer position updates.
	ClassCursor
	// ClassPreview covers in-progress drawing relays.
	ClassPreview
	// ClassText covers live text-typing relays.
	ClassText
)

// Class returns the rate class for a client-originated message kind.
// Kinds that only the server emits, and unknown kinds, report false.
func (t Type) Class() (RateClass, bool) {
	switch t {
	case TypeJoinRoom, TypeAddElement, TypeUpdateElement, TypeDeleteElements,
		TypeClearBoard, TypeTextLock, TypeTextUnlock:
		return ClassDurable, true
	case TypeCursorMove:
		return ClassCursor, true
	case TypeDrawingPreview, TypePenDelta, TypeDrawingDone:
		return ClassPreview, true
	case TypeTextPreview:
		return ClassText, true
	default:
		return 0, false
	}
}

// ErrMalformedMessage indicates wire data that cannot be decoded into a message.
var ErrMalformedMessage = errors.New("protocol: malformed message")

// Message is the envelope exchanged on the realtime channel.
type Message struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses a wire frame into a message envelope.
func Decode(data []byte) (Message, error) {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if message.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return message, nil
}

// New builds a message with the payload marshaled in place. A nil
// payload produces a bare envelope.
func New(messageType Type, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: messageType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return Message{Type: messageType, Payload: raw}, nil
}

// Encode serializes the envelope for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodePayload unmarshals the payload into the provided value.
func (m Message) DecodePayload(value any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedMessage)
	}
	if err := json.Unmarshal(m.Payload, value); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}
