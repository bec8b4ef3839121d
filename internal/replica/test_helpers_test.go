package replica

import (
	"fmt"
	"testing"

	"github.com/smtart/whiteboard-app/internal/board"
	"github.com/smtart/whiteboard-app/internal/protocol"
	"github.com/smtart/whiteboard-app/internal/room"
)

type captureEmitter struct {
	messages []protocol.Message
}

func (e *captureEmitter) Emit(message protocol.Message) error {
	e.messages = append(e.messages, message)
	return nil
}

func (e *captureEmitter) byType(messageType protocol.Type) []protocol.Message {
	var matched []protocol.Message
	for _, message := range e.messages {
		if message.Type == messageType {
			matched = append(matched, message)
		}
	}
	return matched
}

func (e *captureEmitter) reset() {
	e.messages = nil
}

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

func mustMessage(t *testing.T, messageType protocol.Type, payload any) protocol.Message {
	t.Helper()
	message, err := protocol.New(messageType, payload)
	if err != nil {
		t.Fatalf("unexpected message error: %v", err)
	}
	return message
}

func mustPayload[T any](t *testing.T, message protocol.Message) T {
	t.Helper()
	var payload T
	if err := message.DecodePayload(&payload); err != nil {
		t.Fatalf("unexpected payload error: %v", err)
	}
	return payload
}

// newJoinedReplica builds a replica that has joined an empty room as
// conn-self and discards the join traffic from the capture buffer.
func newJoinedReplica(t *testing.T) (*Replica, *captureEmitter) {
	t.Helper()
	emitter := &captureEmitter{}
	r, err := NewReplica(ReplicaConfig{
		Emitter:    emitter,
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("unexpected replica error: %v", err)
	}
	roomID, err := board.NewRoomID("lobby")
	if err != nil {
		t.Fatalf("unexpected room id error: %v", err)
	}
	if err := r.Join(roomID, "Ada"); err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}
	r.Apply(mustMessage(t, protocol.TypeRoomState, protocol.RoomStatePayload{
		Elements:  nil,
		Users:     map[string]room.Presence{"conn-self": {Name: "Ada", Color: "#e74c3c"}},
		YourID:    "conn-self",
		YourColor: "#e74c3c",
	}))
	emitter.reset()
	return r, emitter
}

func lineAt(id string, x float64) board.Element {
	return board.Element{ID: board.ElementID(id), Type: board.ElementTypeLine, X1: x, Y1: 0, X2: x + 10, Y2: 10}
}

func assertElementIDs(t *testing.T, elements []board.Element, want ...board.ElementID) {
	t.Helper()
	if len(elements) != len(want) {
		t.Fatalf("expected %d elements, got %d: %+v", len(want), len(elements), elements)
	}
	for i, id := range want {
		if elements[i].ID != id {
			t.Fatalf("element %d: expected id %q, got %q", i, id, elements[i].ID)
		}
	}
}
