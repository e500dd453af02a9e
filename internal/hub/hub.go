// Package hub is the race coordinator: a single actor owning every room,
// the user->room index, and message routing. All mutation of room or
// session state happens on the hub goroutine, so one malformed message
// can never corrupt another room.
package hub

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blchelle/capstone/internal/engine"
	"github.com/blchelle/capstone/internal/room"
	"github.com/blchelle/capstone/pkg/types"
)

var ErrRoomNotFound = errors.New("room not found")
var ErrRoomFull = errors.New("room is full")
var ErrAlreadyInRoom = errors.New("user already in a room")

type HubMsg interface{ isHubMsg() }

// Connect joins a user into a room. An empty RoomID means public
// matchmaking; otherwise the named room is joined directly.
type Connect struct {
	UserID string
	RoomID string
	Outbox chan types.ServerMessage
	Reply  chan ConnectReply
}

type ConnectReply struct {
	RoomID string
	Err    error
}

// CreateRoom registers an empty room and replies with its id.
type CreateRoom struct {
	Public bool
	Reply  chan string
}

// Disconnect removes the user from whichever room holds them.
type Disconnect struct {
	UserID string
}

// FromClient routes an engine command to the sender's room.
type FromClient struct {
	UserID string
	Cmd    engine.Command
}

// StartRace reserves the start of the sender's room. A nil reply means the
// caller may create the race row and follow up with the start command; any
// other outcome must change nothing outside the hub.
type StartRace struct {
	UserID string
	Reply  chan error
}

// CancelStart releases a reservation whose race row could not be created.
type CancelStart struct {
	UserID string
}

// GetView reflects internal state without data races. Test-only.
type GetView struct {
	Reply chan View
}

type View struct {
	NumRooms  int
	UserRooms map[string]string
	Snapshots map[string]types.RaceData
}

type Shutdown struct{}

func (Connect) isHubMsg()     {}
func (CreateRoom) isHubMsg()  {}
func (Disconnect) isHubMsg()  {}
func (FromClient) isHubMsg()  {}
func (StartRace) isHubMsg()   {}
func (CancelStart) isHubMsg() {}
func (GetView) isHubMsg()     {}
func (Shutdown) isHubMsg()    {}

type Hub struct {
	inbox    chan HubMsg
	rooms    map[string]*room.Room
	order    []string          // room ids in creation order, matchmaking scans this
	userRoom map[string]string // at-most-one-room invariant lives here
	rules    engine.Rules
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, rules engine.Rules, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		rooms:    make(map[string]*room.Room),
		userRoom: make(map[string]string),
		rules:    rules,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Connect:
				msg.Reply <- h.handleConnect(msg)

			case CreateRoom:
				msg.Reply <- h.createRoom(msg.Public)

			case Disconnect:
				h.handleDisconnect(msg.UserID)

			case FromClient:
				h.handleCommand(msg)

			case StartRace:
				msg.Reply <- h.handleStartRace(msg.UserID)

			case CancelStart:
				h.handleCancelStart(msg.UserID)

			case GetView:
				msg.Reply <- h.view()

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) handleConnect(msg Connect) ConnectReply {
	if _, ok := h.userRoom[msg.UserID]; ok {
		return ConnectReply{Err: ErrAlreadyInRoom}
	}

	var r *room.Room
	if msg.RoomID == "" {
		r = h.matchmake()
	} else {
		r = h.rooms[msg.RoomID]
		if r == nil {
			return ConnectReply{Err: ErrRoomNotFound}
		}
		// Public rooms always enforce capacity on explicit joins; private
		// rooms are peer-managed unless configured otherwise.
		if r.Full() && (r.Public || h.rules.EnforcePrivateCapacity) {
			return ConnectReply{Err: ErrRoomFull}
		}
	}

	if err := r.Join(msg.UserID, msg.Outbox, time.Now()); err != nil {
		return ConnectReply{Err: err}
	}
	h.userRoom[msg.UserID] = r.ID
	h.log.Info("user connected",
		zap.String("user", msg.UserID), zap.String("room", r.ID), zap.Bool("public", r.Public))
	return ConnectReply{RoomID: r.ID}
}

// matchmake scans public rooms in creation order and picks the first open
// one, else creates a new public room.
func (h *Hub) matchmake() *room.Room {
	for _, id := range h.order {
		r := h.rooms[id]
		if r.Public && !r.Started() && !r.Full() {
			return r
		}
	}
	return h.rooms[h.createRoom(true)]
}

func (h *Hub) createRoom(public bool) string {
	id := uuid.NewString()
	for h.rooms[id] != nil {
		id = uuid.NewString()
	}
	h.rooms[id] = room.New(id, public, h.rules, h.log)
	h.order = append(h.order, id)
	h.log.Info("room created", zap.String("room", id), zap.Bool("public", public))
	return id
}

func (h *Hub) handleDisconnect(user string) {
	id, ok := h.userRoom[user]
	if !ok {
		return
	}
	delete(h.userRoom, user)
	r := h.rooms[id]
	if r == nil {
		return
	}
	r.Leave(user, time.Now())
	if r.Empty() {
		h.destroyRoom(id)
	}
}

func (h *Hub) handleCommand(msg FromClient) {
	id, ok := h.userRoom[msg.UserID]
	if !ok {
		return
	}
	cmd := msg.Cmd
	cmd.User = msg.UserID
	if _, err := h.rooms[id].Apply(cmd, time.Now()); err != nil {
		// Stale, duplicate, or forged messages are protocol noise: no
		// state change, no broadcast, never fatal.
		h.log.Debug("command ignored",
			zap.String("user", msg.UserID), zap.String("room", id),
			zap.String("cmd", string(cmd.Type)), zap.Error(err))
	}
}

// handleStartRace accepts at most one start per race: once a room is
// started, or a reservation is in flight, every later start is rejected
// before anything durable happens.
func (h *Hub) handleStartRace(user string) error {
	id, ok := h.userRoom[user]
	if !ok {
		return ErrRoomNotFound
	}
	r := h.rooms[id]
	if r.Started() || r.StartPending() {
		return engine.ErrAlreadyStarted
	}
	r.BeginStart(user)
	return nil
}

func (h *Hub) handleCancelStart(user string) {
	if id, ok := h.userRoom[user]; ok {
		h.rooms[id].CancelStart(user)
	}
}

func (h *Hub) destroyRoom(id string) {
	r := h.rooms[id]
	if r == nil {
		return
	}
	r.Close()
	delete(h.rooms, id)
	for i, o := range h.order {
		if o == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.log.Info("room destroyed", zap.String("room", id))
}

func (h *Hub) view() View {
	v := View{
		NumRooms:  len(h.rooms),
		UserRooms: make(map[string]string, len(h.userRoom)),
		Snapshots: make(map[string]types.RaceData, len(h.rooms)),
	}
	for u, id := range h.userRoom {
		v.UserRooms[u] = id
	}
	now := time.Now()
	for id, r := range h.rooms {
		v.Snapshots[id] = r.Snapshot(now)
	}
	return v
}

func (h *Hub) shutdown() {
	for id := range h.rooms {
		h.destroyRoom(id)
	}
	clear(h.userRoom)
	h.cancel()
}
