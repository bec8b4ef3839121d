package room

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/smtart/whiteboard-app/internal/board"
	"go.uber.org/zap"
)

// fixed presence palette, assigned least-recently-used first
var palette = []string{
	"#e74c3c", "#3498db", "#2ecc71", "#f39c12", "#9b59b6",
	"#1abc9c", "#e67e22", "#e84393", "#2c3e50", "#16a085",
}

const defaultMemberName = "Anonymous"

// MemoryStoreConfig carries the injectable dependencies of the store.
type MemoryStoreConfig struct {
	Clock  func() time.Time
	Logger *zap.Logger
	Intn   func(n int) int
}

// MemoryStore keeps all room state in process memory. It is not safe
// for concurrent use; the realtime hub serializes every call on its
// dispatch goroutine.
type MemoryStore struct {
	clock  func() time.Time
	logger *zap.Logger
	intn   func(n int) int
	rooms  map[board.RoomID]*roomState
}

type roomState struct {
	elements   map[board.ElementID]board.Element
	users      map[string]Presence
	colorSeq   map[string]int64
	nextSeq    int64
	createdAt  time.Time
	emptySince time.Time
}

// NewMemoryStore constructs a MemoryStore, defaulting any absent dependency.
func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	intn := cfg.Intn
	if intn == nil {
		intn = rand.Intn
	}
	return &MemoryStore{
		clock:  clock,
		logger: logger,
		intn:   intn,
		rooms:  make(map[board.RoomID]*roomState),
	}
}

// Join creates the room if absent, assigns a presence color, and
// returns the full snapshot including the joiner.
func (s *MemoryStore) Join(roomID board.RoomID, connectionID, name string) Snapshot {
	state, ok := s.rooms[roomID]
	if !ok {
		state = &roomState{
			elements:  make(map[board.ElementID]board.Element),
			users:     make(map[string]Presence),
			colorSeq:  make(map[string]int64),
			createdAt: s.clock(),
		}
		s.rooms[roomID] = state
		s.logger.Debug("room created", zap.String("room_id", roomID.String()))
	}
	state.emptySince = time.Time{}

	memberName := strings.TrimSpace(name)
	if memberName == "" {
		memberName = defaultMemberName
	}
	presence, exists := state.users[connectionID]
	if exists {
		presence.Name = memberName
	} else {
		presence = Presence{Name: memberName, Color: s.assignColor(state)}
	}
	state.users[connectionID] = presence

	return Snapshot{
		Elements:  elementList(state.elements),
		Users:     copyUsers(state.users),
		YourID:    connectionID,
		YourColor: presence.Color,
	}
}

// Leave removes presence and stamps the room empty when the last
// member departs.
func (s *MemoryStore) Leave(roomID board.RoomID, connectionID string) (int, bool) {
	state, ok := s.rooms[roomID]
	if !ok {
		return 0, false
	}
	if _, exists := state.users[connectionID]; !exists {
		return len(state.users), false
	}
	delete(state.users, connectionID)
	if len(state.users) == 0 {
		state.emptySince = s.clock()
	}
	return len(state.users), true
}

// UpsertElement writes the element by id, last writer wins.
func (s *MemoryStore) UpsertElement(roomID board.RoomID, element board.Element) bool {
	state, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	state.elements[element.ID] = element.Clone()
	return true
}

// DeleteElements removes each id if present; absent ids are ignored.
func (s *MemoryStore) DeleteElements(roomID board.RoomID, ids []board.ElementID) bool {
	state, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	for _, id := range ids {
		delete(state.elements, id)
	}
	return true
}

// ClearBoard removes every element in the room.
func (s *MemoryStore) ClearBoard(roomID board.RoomID) bool {
	state, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	state.elements = make(map[board.ElementID]board.Element)
	return true
}

// SetCursor updates a member's pointer position.
func (s *MemoryStore) SetCursor(roomID board.RoomID, connectionID string, cursor board.Point) bool {
	state, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	presence, exists := state.users[connectionID]
	if !exists {
		return false
	}
	presence.Cursor = &cursor
	state.users[connectionID] = presence
	return true
}

// Members lists the connection ids currently in the room.
func (s *MemoryStore) Members(roomID board.RoomID) []string {
	state, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]string, 0, len(state.users))
	for id := range state.users {
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

// Elements returns a copy of the room's elements ordered by id.
func (s *MemoryStore) Elements(roomID board.RoomID) []board.Element {
	state, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return elementList(state.elements)
}

// DeleteIfEmptySince removes the room if it has had no members
// continuously since the given instant.
func (s *MemoryStore) DeleteIfEmptySince(roomID board.RoomID, since time.Time) bool {
	state, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	if len(state.users) > 0 || state.emptySince.IsZero() || state.emptySince.After(since) {
		return false
	}
	delete(s.rooms, roomID)
	s.logger.Debug("room deleted", zap.String("room_id", roomID.String()))
	return true
}

// SweepEmpty removes every room empty for at least maxEmpty.
func (s *MemoryStore) SweepEmpty(maxEmpty time.Duration) []board.RoomID {
	now := s.clock()
	var removed []board.RoomID
	for id, state := range s.rooms {
		if len(state.users) == 0 && !state.emptySince.IsZero() && now.Sub(state.emptySince) >= maxEmpty {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(s.rooms, id)
		s.logger.Debug("room swept", zap.String("room_id", id.String()))
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return removed
}

// Stats reports room and member counts.
func (s *MemoryStore) Stats() Stats {
	stats := Stats{Rooms: len(s.rooms)}
	for _, state := range s.rooms {
		stats.Users += len(state.users)
	}
	return stats
}

func (s *MemoryStore) assignColor(state *roomState) string {
	inUse := make(map[string]bool, len(state.users))
	for _, presence := range state.users {
		inUse[presence.Color] = true
	}
	chosen := ""
	chosenSeq := int64(math.MaxInt64)
	for _, color := range palette {
		if inUse[color] {
			continue
		}
		if seq := state.colorSeq[color]; seq < chosenSeq {
			chosen = color
			chosenSeq = seq
		}
	}
	if chosen == "" {
		chosen = palette[s.intn(len(palette))]
	}
	state.nextSeq++
	state.colorSeq[chosen] = state.nextSeq
	return chosen
}

func elementList(elements map[board.ElementID]board.Element) []board.Element {
	list := make([]board.Element, 0, len(elements))
	for _, element := range elements {
		list = append(list, element.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func copyUsers(users map[string]Presence) map[string]Presence {
	copied := make(map[string]Presence, len(users))
	for id, presence := range users {
		if presence.Cursor != nil {
			cursor := *presence.Cursor
			presence.Cursor = &cursor
		}
		copied[id] = presence
	}
	return copied
}
