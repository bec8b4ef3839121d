package gate

import (
	"time"

	"github.com/smtart/whiteboard-app/internal/board"
	"github.com/smtart/whiteboard-app/internal/protocol"
)

// Limits holds the per-connection, per-second budget of each message class.
type Limits struct {
	DurablePerSecond int
	CursorPerSecond  int
	PreviewPerSecond int
	TextPerSecond    int
}

// DefaultLimits returns the production budgets. Ephemeral channels get
// room to burst so they cannot starve durable writes.
func DefaultLimits() Limits {
	return Limits{
		DurablePerSecond: 200,
		CursorPerSecond:  30,
		PreviewPerSecond: 600,
		TextPerSecond:    400,
	}
}

func (l Limits) withDefaults() Limits {
	defaults := DefaultLimits()
	if l.DurablePerSecond <= 0 {
		l.DurablePerSecond = defaults.DurablePerSecond
	}
	if l.CursorPerSecond <= 0 {
		l.CursorPerSecond = defaults.CursorPerSecond
	}
	if l.PreviewPerSecond <= 0 {
		l.PreviewPerSecond = defaults.PreviewPerSecond
	}
	if l.TextPerSecond <= 0 {
		l.TextPerSecond = defaults.TextPerSecond
	}
	return l
}

// GateConfig carries the injectable dependencies of the gate.
type GateConfig struct {
	Limits Limits
	Clock  func() time.Time
}

// Gate rate-limits inbound messages per connection using fixed
// one-second windows. It is not safe for concurrent use; the realtime
// hub serializes every call on its dispatch goroutine.
type Gate struct {
	limits  Limits
	clock   func() time.Time
	windows map[string]*window
}

type window struct {
	second int64
	counts [4]int
}

// NewGate constructs a Gate, defaulting any absent dependency.
func NewGate(cfg GateConfig) *Gate {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Gate{
		limits:  cfg.Limits.withDefaults(),
		clock:   clock,
		windows: make(map[string]*window),
	}
}

// Allow reports whether the connection may spend one message of the
// given kind in the current window. Kinds clients may not originate
// are always refused.
func (g *Gate) Allow(connectionID string, messageType protocol.Type) bool {
	class, ok := messageType.Class()
	if !ok {
		return false
	}
	now := g.clock().Unix()
	w, exists := g.windows[connectionID]
	if !exists {
		w = &window{second: now}
		g.windows[connectionID] = w
	}
	if w.second != now {
		*w = window{second: now}
	}
	if w.counts[class] >= g.limitFor(class) {
		return false
	}
	w.counts[class]++
	return true
}

// ReleaseConnection drops the window state of a closed connection.
func (g *Gate) ReleaseConnection(connectionID string) {
	delete(g.windows, connectionID)
}

func (g *Gate) limitFor(class protocol.RateClass) int {
	switch class {
	case protocol.ClassCursor:
		return g.limits.CursorPerSecond
	case protocol.ClassPreview:
		return g.limits.PreviewPerSecond
	case protocol.ClassText:
		return g.limits.TextPerSecond
	default:
		return g.limits.DurablePerSecond
	}
}

// ScreenRoomID validates a raw room identifier from the wire.
func ScreenRoomID(raw string) (board.RoomID, error) {
	return board.NewRoomID(raw)
}

// ScreenDurableElement validates an element bound for room state.
func ScreenDurableElement(element board.Element) error {
	return element.ValidateCommitted()
}

// ScreenPreviewElement validates an in-progress element that is only
// relayed, or mirrored while still being edited.
func ScreenPreviewElement(element board.Element) error {
	return element.Validate()
}

// ScreenElementIDs validates a raw id batch from the wire.
func ScreenElementIDs(raw []string) ([]board.ElementID, error) {
	ids := make([]board.ElementID, 0, len(raw))
	for _, value := range raw {
		id, err := board.NewElementID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
