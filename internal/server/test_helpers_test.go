package server

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/smtart/whiteboard-app/internal/board"
	"github.com/smtart/whiteboard-app/internal/gate"
	"github.com/smtart/whiteboard-app/internal/protocol"
	"github.com/smtart/whiteboard-app/internal/room"
)

type nopConn struct{}

func (nopConn) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }
func (nopConn) WriteMessage(int, []byte) error    { return nil }
func (nopConn) SetReadLimit(int64)                {}
func (nopConn) SetReadDeadline(time.Time) error   { return nil }
func (nopConn) SetWriteDeadline(time.Time) error  { return nil }
func (nopConn) SetPongHandler(func(string) error) {}
func (nopConn) Close() error                      { return nil }

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("conn-%d", p.next), nil
}

func newTestHub(t *testing.T, limits gate.Limits) *Hub {
	t.Helper()
	h, err := NewHub(HubConfig{
		Store:      room.NewMemoryStore(room.MemoryStoreConfig{}),
		Gate:       gate.NewGate(gate.GateConfig{Limits: limits}),
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("unexpected hub error: %v", err)
	}
	return h
}

// addClient registers a connection directly, the way the dispatch loop
// does, so handlers can be exercised synchronously.
func addClient(h *Hub, id string) *client {
	connected := newClient(h, nopConn{}, id)
	h.clients[id] = connected
	return connected
}

func encodeFrame(t *testing.T, messageType protocol.Type, payload any) []byte {
	t.Helper()
	message, err := protocol.New(messageType, payload)
	if err != nil {
		t.Fatalf("unexpected message error: %v", err)
	}
	data, err := message.Encode()
	if err != nil {
		t.Fatalf("unexpected encoding error: %v", err)
	}
	return data
}

func joinRoom(t *testing.T, h *Hub, sender *client, roomID, name string) {
	t.Helper()
	h.handleFrame(sender, encodeFrame(t, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: roomID, Name: name}))
}

// drainFrames empties a client's send buffer and decodes every queued
// protocol message.
func drainFrames(t *testing.T, receiver *client) []protocol.Message {
	t.Helper()
	var messages []protocol.Message
	for {
		select {
		case data, ok := <-receiver.send:
			if !ok {
				return messages
			}
			message, err := protocol.Decode(data)
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			messages = append(messages, message)
		default:
			return messages
		}
	}
}

func framesOfType(messages []protocol.Message, messageType protocol.Type) []protocol.Message {
	var matched []protocol.Message
	for _, message := range messages {
		if message.Type == messageType {
			matched = append(matched, message)
		}
	}
	return matched
}

func decodeAs[T any](t *testing.T, message protocol.Message) T {
	t.Helper()
	var payload T
	if err := message.DecodePayload(&payload); err != nil {
		t.Fatalf("unexpected payload error: %v", err)
	}
	return payload
}

func committedRectangle(id string) board.Element {
	return board.Element{
		ID:    board.ElementID(id),
		Type:  board.ElementTypeRectangle,
		Style: board.Style{StrokeColor: "#2c3e50", StrokeWidth: 2},
		X:     10, Y: 10, W: 40, H: 30,
	}
}
