package protocol

import (
	"github.com/smtart/whiteboard-app/internal/board"
	"github.com/smtart/whiteboard-app/internal/room"
)

// JoinRoomPayload asks the server to register the sender in a room.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// RoomStatePayload carries the full snapshot handed to a joining client.
type RoomStatePayload struct {
	Elements  []board.Element          `json:"elements"`
	Users     map[string]room.Presence `json:"users"`
	YourID    string                   `json:"yourId"`
	YourColor string                   `json:"yourColor"`
}

// ElementPayload carries one element for durable upserts and previews.
// RoomID is set on the client-to-server leg; UserID attributes the
// sender on the relayed leg.
type ElementPayload struct {
	RoomID  string        `json:"roomId,omitempty"`
	UserID  string        `json:"userId,omitempty"`
	Element board.Element `json:"element"`
}

// DeleteElementsPayload names the ids to remove from the room.
type DeleteElementsPayload struct {
	RoomID string   `json:"roomId,omitempty"`
	UserID string   `json:"userId,omitempty"`
	IDs    []string `json:"ids"`
}

// ClearBoardPayload asks the server to wipe the room's elements.
type ClearBoardPayload struct {
	RoomID string `json:"roomId"`
}

// PenDeltaPayload carries the untransmitted suffix of a growing stroke.
// Style rides along only on the first delta of a stroke.
type PenDeltaPayload struct {
	RoomID string        `json:"roomId,omitempty"`
	UserID string        `json:"userId,omitempty"`
	ID     string        `json:"id"`
	Points []board.Point `json:"points"`
	Style  *board.Style  `json:"style,omitempty"`
}

// DrawingDonePayload closes out the sender's in-progress stroke.
type DrawingDonePayload struct {
	RoomID string `json:"roomId,omitempty"`
	UserID string `json:"userId,omitempty"`
	ID     string `json:"id"`
}

// TextLockPayload claims or releases the advisory lock on a text element.
type TextLockPayload struct {
	RoomID string `json:"roomId,omitempty"`
	UserID string `json:"userId,omitempty"`
	ID     string `json:"id"`
}

// CursorMovePayload reports the sender's pointer position.
type CursorMovePayload struct {
	RoomID string  `json:"roomId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// CursorMovedPayload relays a member's pointer position.
type CursorMovedPayload struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// UserJoinedPayload announces a new member to the room.
type UserJoinedPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// UserLeftPayload announces that a member disconnected.
type UserLeftPayload struct {
	ID string `json:"id"`
}
