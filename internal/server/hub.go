package server

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/smtart/whiteboard-app/internal/board"
	"github.com/smtart/whiteboard-app/internal/gate"
	"github.com/smtart/whiteboard-app/internal/protocol"
	"github.com/smtart/whiteboard-app/internal/room"
)

const (
	defaultEmptyRoomGrace = 5 * time.Minute
	defaultSweepInterval  = time.Hour
	defaultMaxEmptyAge    = 24 * time.Hour
	expiryQueueSize       = 256
)

var (
	errMissingStore      = errors.New("room store dependency required")
	errMissingGate       = errors.New("ingress gate dependency required")
	errMissingIDProvider = errors.New("id provider dependency required")
	errHubStopped        = errors.New("hub stopped")
)

// HubConfig carries the dependencies for NewHub.
type HubConfig struct {
	Store          room.Store
	Gate           *gate.Gate
	IDProvider     board.IDProvider
	Logger         *zap.Logger
	Clock          func() time.Time
	EmptyRoomGrace time.Duration
	SweepInterval  time.Duration
	MaxEmptyAge    time.Duration
}

// HubStats is the realtime side of the operational status endpoint.
type HubStats struct {
	Rooms       int
	Connections int
}

type inboundFrame struct {
	sender *client
	data   []byte
}

// Hub owns the room store and the ingress gate. Every mutation runs on
// the single Run goroutine, so rooms need no locking: concurrent
// connections are serialized by the dispatch loop, and no handler
// blocks on I/O between reading state and writing it.
type Hub struct {
	store          room.Store
	gate           *gate.Gate
	ids            board.IDProvider
	logger         *zap.Logger
	clock          func() time.Time
	emptyRoomGrace time.Duration
	sweepInterval  time.Duration
	maxEmptyAge    time.Duration

	register      chan *client
	unregister    chan *client
	frames        chan inboundFrame
	expired       chan board.RoomID
	statsRequests chan chan HubStats
	done          chan struct{}

	clients map[string]*client
}

// NewHub validates dependencies and prepares the dispatch channels.
// The hub is inert until Run is started.
func NewHub(config HubConfig) (*Hub, error) {
	if config.Store == nil {
		return nil, errMissingStore
	}
	if config.Gate == nil {
		return nil, errMissingGate
	}
	if config.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	emptyRoomGrace := config.EmptyRoomGrace
	if emptyRoomGrace <= 0 {
		emptyRoomGrace = defaultEmptyRoomGrace
	}
	sweepInterval := config.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	maxEmptyAge := config.MaxEmptyAge
	if maxEmptyAge <= 0 {
		maxEmptyAge = defaultMaxEmptyAge
	}
	return &Hub{
		store:          config.Store,
		gate:           config.Gate,
		ids:            config.IDProvider,
		logger:         logger,
		clock:          clock,
		emptyRoomGrace: emptyRoomGrace,
		sweepInterval:  sweepInterval,
		maxEmptyAge:    maxEmptyAge,
		register:       make(chan *client),
		unregister:     make(chan *client),
		frames:         make(chan inboundFrame),
		expired:        make(chan board.RoomID, expiryQueueSize),
		statsRequests:  make(chan chan HubStats),
		done:           make(chan struct{}),
		clients:        make(map[string]*client),
	}, nil
}

// Run drives the dispatch loop until the context is cancelled. It must
// run exactly once; every store and gate access happens on this
// goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	sweep := time.NewTicker(h.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, connected := range h.clients {
				close(connected.send)
			}
			h.clients = make(map[string]*client)
			return
		case joined := <-h.register:
			h.clients[joined.id] = joined
			h.logger.Debug("connection registered", zap.String("connection_id", joined.id))
		case left := <-h.unregister:
			h.dropClient(left)
		case frame := <-h.frames:
			h.handleFrame(frame.sender, frame.data)
		case roomID := <-h.expired:
			if h.store.DeleteIfEmptySince(roomID, h.clock().Add(-h.emptyRoomGrace)) {
				h.logger.Info("empty room deleted", zap.String("room_id", roomID.String()))
			}
		case <-sweep.C:
			if removed := h.store.SweepEmpty(h.maxEmptyAge); len(removed) > 0 {
				h.logger.Info("stale rooms swept", zap.Int("count", len(removed)))
			}
		case reply := <-h.statsRequests:
			reply <- HubStats{Rooms: h.store.Stats().Rooms, Connections: len(h.clients)}
		}
	}
}

// Attach registers a fresh websocket connection and starts its pumps.
func (h *Hub) Attach(conn wsConn) error {
	id, err := h.ids.NewID()
	if err != nil {
		return err
	}
	connected := newClient(h, conn, id)
	select {
	case h.register <- connected:
	case <-h.done:
		return errHubStopped
	}
	go connected.writePump()
	go connected.readPump()
	return nil
}

// Stats asks the dispatch goroutine for current counts.
func (h *Hub) Stats(ctx context.Context) (HubStats, error) {
	reply := make(chan HubStats, 1)
	select {
	case h.statsRequests <- reply:
	case <-h.done:
		return HubStats{}, errHubStopped
	case <-ctx.Done():
		return HubStats{}, ctx.Err()
	}
	select {
	case stats := <-reply:
		return stats, nil
	case <-ctx.Done():
		return HubStats{}, ctx.Err()
	}
}

// handleFrame is the single entry point for inbound traffic: decode the
// envelope, charge the sender's rate window, then apply and fan out.
// Malformed, over-budget, and stale frames are all dropped without a
// reply; every op is fire-and-forget for the sender.
func (h *Hub) handleFrame(sender *client, data []byte) {
	message, err := protocol.Decode(data)
	if err != nil {
		h.logger.Debug("malformed frame dropped", zap.String("connection_id", sender.id), zap.Error(err))
		return
	}
	if !h.gate.Allow(sender.id, message.Type) {
		return
	}

	switch message.Type {
	case protocol.TypeJoinRoom:
		h.handleJoin(sender, message)
	case protocol.TypeAddElement:
		h.handleDurableElement(sender, message, protocol.TypeElementAdded)
	case protocol.TypeUpdateElement:
		h.handleDurableElement(sender, message, protocol.TypeElementUpdated)
	case protocol.TypeDeleteElements:
		h.handleDeleteElements(sender, message)
	case protocol.TypeClearBoard:
		h.handleClearBoard(sender)
	case protocol.TypeDrawingPreview:
		h.handleEphemeralElement(sender, message, protocol.TypeDrawingPreview, false)
	case protocol.TypeTextPreview:
		h.handleEphemeralElement(sender, message, protocol.TypeTextPreview, true)
	case protocol.TypePenDelta:
		h.handlePenDelta(sender, message)
	case protocol.TypeDrawingDone:
		h.handleDrawingDone(sender, message)
	case protocol.TypeTextLock:
		h.handleTextLock(sender, message, protocol.TypeTextLock)
	case protocol.TypeTextUnlock:
		h.handleTextLock(sender, message, protocol.TypeTextUnlock)
	case protocol.TypeCursorMove:
		h.handleCursorMove(sender, message)
	}
}

func (h *Hub) handleJoin(sender *client, message protocol.Message) {
	var payload protocol.JoinRoomPayload
	if !h.decode(sender, message, &payload) {
		return
	}
	roomID, err := gate.ScreenRoomID(payload.RoomID)
	if err != nil {
		h.logger.Debug("join dropped", zap.String("connection_id", sender.id), zap.Error(err))
		return
	}
	if sender.roomID != "" {
		h.leaveRoom(sender)
	}

	snapshot := h.store.Join(roomID, sender.id, payload.Name)
	sender.roomID = roomID

	state, err := protocol.New(protocol.TypeRoomState, protocol.RoomStatePayload{
		Elements:  snapshot.Elements,
		Users:     snapshot.Users,
		YourID:    snapshot.YourID,
		YourColor: snapshot.YourColor,
	})
	if err != nil {
		h.logger.Error("room state encoding failed", zap.Error(err))
		return
	}
	h.send(sender, state)

	joined := snapshot.Users[snapshot.YourID]
	h.broadcast(roomID, protocol.TypeUserJoined, protocol.UserJoinedPayload{
		ID:    sender.id,
		Name:  joined.Name,
		Color: joined.Color,
	}, sender.id)
	h.logger.Debug("member joined",
		zap.String("room_id", roomID.String()),
		zap.String("connection_id", sender.id))
}

func (h *Hub) handleDurableElement(sender *client, message protocol.Message, echo protocol.Type) {
	if sender.roomID == "" {
		return
	}
	var payload protocol.ElementPayload
	if !h.decode(sender, message, &payload) {
		return
	}
	if err := gate.ScreenDurableElement(payload.Element); err != nil {
		h.logger.Debug("durable element dropped", zap.String("connection_id", sender.id), zap.Error(err))
		return
	}
	h.store.UpsertElement(sender.roomID, payload.Element)
	h.broadcast(sender.roomID, echo, protocol.ElementPayload{
		UserID:  sender.id,
		Element: payload.Element,
	}, sender.id)
}

func (h *Hub) handleDeleteElements(sender *client, message protocol.Message) {
	if sender.roomID == "" {
		return
	}
	var payload protocol.DeleteElementsPayload
	if !h.decode(sender, message, &payload) {
		return
	}
	ids, err := gate.ScreenElementIDs(payload.IDs)
	if err != nil {
		h.logger.Debug("delete dropped", zap.String("connection_id", sender.id), zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}
	h.store.DeleteElements(sender.roomID, ids)
	h.broadcast(sender.roomID, protocol.TypeElementsDeleted, protocol.DeleteElementsPayload{
		UserID: sender.id,
		IDs:    payload.IDs,
	}, sender.id)
}

// handleClearBoard echoes to every member including the sender, so the
// originator wipes only once the authoritative store has.
func (h *Hub) handleClearBoard(sender *client) {
	if sender.roomID == "" {
		return
	}
	h.store.ClearBoard(sender.roomID)
	h.broadcast(sender.roomID, protocol.TypeBoardCleared, nil, "")
}

// handleEphemeralElement relays previews. Text previews are also
// mirrored into the store so late joiners see text that is still being
// typed.
func (h *Hub) handleEphemeralElement(sender *client, message protocol.Message, echo protocol.Type, mirror bool) {
	if sender.roomID == "" {
		return
	}
	var payload protocol.ElementPayload
	if !h.decode(sender, message, &payload) {
		return
	}
	if err := gate.ScreenPreviewElement(payload.Element); err != nil {
		h.logger.Debug("preview dropped", zap.String("connection_id", sender.id), zap.Error(err))
		return
	}
	if mirror {
		h.store.UpsertElement(sender.roomID, payload.Element)
	}
	h.broadcast(sender.roomID, echo, protocol.ElementPayload{
		UserID:  sender.id,
		Element: payload.Element,
	}, sender.id)
}

func (h *Hub) handlePenDelta(sender *client, message protocol.Message) {
	if sender.roomID == "" {
		return
	}
	var payload protocol.PenDeltaPayload
	if !h.decode(sender, message, &payload) {
		return
	}
	if _, err := board.NewElementID(payload.ID); err != nil {
		h.logger.Debug("pen delta dropped", zap.String("connection_id", sender.id), zap.Error(err))
		return
	}
	h.broadcast(sender.roomID, protocol.TypePenDelta, protocol.PenDeltaPayload{
		UserID: sender.id,
		ID:     payload.ID,
		Points: payload.Points,
		Style:  payload.Style,
	}, sender.id)
}

func (h *Hub) handleDrawingDone(sender *client, message protocol.Message) {
	if sender.roomID == "" {
		return
	}
	var payload protocol.DrawingDonePayload
	if !h.decode(sender, message, &payload) {
		return
	}
	if _, err := board.NewElementID(payload.ID); err != nil {
		return
	}
	h.broadcast(sender.roomID, protocol.TypeDrawingDone, protocol.DrawingDonePayload{
		UserID: sender.id,
		ID:     payload.ID,
	}, sender.id)
}

func (h *Hub) handleTextLock(sender *client, message protocol.Message, echo protocol.Type) {
	if sender.roomID == "" {
		return
	}
	var payload protocol.TextLockPayload
	if !h.decode(sender, message, &payload) {
		return
	}
	if _, err := board.NewElementID(payload.ID); err != nil {
		return
	}
	h.broadcast(sender.roomID, echo, protocol.TextLockPayload{
		UserID: sender.id,
		ID:     payload.ID,
	}, sender.id)
}

func (h *Hub) handleCursorMove(sender *client, message protocol.Message) {
	if sender.roomID == "" {
		return
	}
	var payload protocol.CursorMovePayload
	if !h.decode(sender, message, &payload) {
		return
	}
	h.store.SetCursor(sender.roomID, sender.id, board.Point{X: payload.X, Y: payload.Y})
	h.broadcast(sender.roomID, protocol.TypeCursorMoved, protocol.CursorMovedPayload{
		ID: sender.id,
		X:  payload.X,
		Y:  payload.Y,
	}, sender.id)
}

// dropClient tears down a connection: rate window, presence, and the
// user-left fan-out. Safe to call twice; only the first call acts.
func (h *Hub) dropClient(left *client) {
	if _, ok := h.clients[left.id]; !ok {
		return
	}
	delete(h.clients, left.id)
	close(left.send)
	h.gate.ReleaseConnection(left.id)
	h.leaveRoom(left)
	h.logger.Debug("connection dropped", zap.String("connection_id", left.id))
}

// leaveRoom removes presence and, when the room empties, schedules the
// grace-delayed deletion. The deadline check in the store keeps a stale
// timer from deleting a room that was reoccupied in the meantime.
func (h *Hub) leaveRoom(left *client) {
	roomID := left.roomID
	if roomID == "" {
		return
	}
	left.roomID = ""
	remaining, ok := h.store.Leave(roomID, left.id)
	if !ok {
		return
	}
	h.broadcast(roomID, protocol.TypeUserLeft, protocol.UserLeftPayload{ID: left.id}, "")
	if remaining > 0 {
		return
	}
	time.AfterFunc(h.emptyRoomGrace, func() {
		select {
		case h.expired <- roomID:
		default:
		}
	})
}

func (h *Hub) broadcast(roomID board.RoomID, messageType protocol.Type, payload any, exclude string) {
	message, err := protocol.New(messageType, payload)
	if err != nil {
		h.logger.Error("broadcast encoding failed", zap.String("type", string(messageType)), zap.Error(err))
		return
	}
	data, err := message.Encode()
	if err != nil {
		h.logger.Error("broadcast encoding failed", zap.String("type", string(messageType)), zap.Error(err))
		return
	}
	for _, memberID := range h.store.Members(roomID) {
		if memberID == exclude {
			continue
		}
		member, ok := h.clients[memberID]
		if !ok {
			continue
		}
		h.enqueue(member, data)
	}
}

func (h *Hub) send(receiver *client, message protocol.Message) {
	data, err := message.Encode()
	if err != nil {
		h.logger.Error("send encoding failed", zap.Error(err))
		return
	}
	h.enqueue(receiver, data)
}

// enqueue hands a frame to the write pump. A receiver whose buffer is
// full is dropped rather than allowed to stall the dispatch loop.
func (h *Hub) enqueue(receiver *client, data []byte) {
	select {
	case receiver.send <- data:
	default:
		h.logger.Warn("slow consumer dropped", zap.String("connection_id", receiver.id))
		h.dropClient(receiver)
	}
}

func (h *Hub) decode(sender *client, message protocol.Message, payload any) bool {
	if err := message.DecodePayload(payload); err != nil {
		h.logger.Debug("payload dropped",
			zap.String("connection_id", sender.id),
			zap.String("type", string(message.Type)),
			zap.Error(err))
		return false
	}
	return true
}
