package room

import (
	"time"

	"github.com/smtart/whiteboard-app/internal/board"
)

// Presence is a connected user's identity within one room.
type Presence struct {
	Name   string       `json:"name"`
	Color  string       `json:"color"`
	Cursor *board.Point `json:"cursor"`
}

// Snapshot is the full room view handed to a joining client.
type Snapshot struct {
	Elements  []board.Element
	Users     map[string]Presence
	YourID    string
	YourColor string
}

// Stats summarizes the store for the operational endpoint.
type Stats struct {
	Rooms int
	Users int
}

// Store holds authoritative per-room elements and presence. Mutations
// referencing a room that no longer exists are absorbed as no-ops and
// report false so callers can skip the fan-out.
type Store interface {
	// Join creates the room if absent, assigns a color, registers
	// presence, and returns the full snapshot.
	Join(roomID board.RoomID, connectionID, name string) Snapshot
	// Leave removes presence and reports the remaining member count.
	Leave(roomID board.RoomID, connectionID string) (remaining int, ok bool)
	// UpsertElement writes an element by id, last writer wins.
	UpsertElement(roomID board.RoomID, element board.Element) bool
	// DeleteElements removes each id if present; absent ids are ignored.
	DeleteElements(roomID board.RoomID, ids []board.ElementID) bool
	// ClearBoard removes every element in the room.
	ClearBoard(roomID board.RoomID) bool
	// SetCursor updates a member's pointer position.
	SetCursor(roomID board.RoomID, connectionID string, cursor board.Point) bool
	// Members lists the connection ids currently in the room.
	Members(roomID board.RoomID) []string
	// Elements returns a copy of the room's elements ordered by id.
	Elements(roomID board.RoomID) []board.Element
	// DeleteIfEmptySince removes the room if it has had no members
	// continuously since the given instant.
	DeleteIfEmptySince(roomID board.RoomID, since time.Time) bool
	// SweepEmpty removes every room that has been empty for at least
	// maxEmpty and returns the removed ids.
	SweepEmpty(maxEmpty time.Duration) []board.RoomID
	// Stats reports room and member counts.
	Stats() Stats
}
