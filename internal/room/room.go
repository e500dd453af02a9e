// Package room holds the per-room race session: the member outboxes and
// the engine state behind them. Rooms are plain values; the hub actor is
// the only goroutine that touches one.
package room

import (
	"time"

	"go.uber.org/zap"

	"github.com/blchelle/capstone/internal/engine"
	"github.com/blchelle/capstone/pkg/types"
)

type Room struct {
	ID     string
	Public bool
	State  engine.State

	clients map[string]chan types.ServerMessage
	starter string // user whose start reservation is in flight
	log     *zap.Logger
}

func New(id string, public bool, rules engine.Rules, log *zap.Logger) *Room {
	return &Room{
		ID:      id,
		Public:  public,
		State:   engine.NewState(rules),
		clients: make(map[string]chan types.ServerMessage),
		log:     log,
	}
}

func (r *Room) Members() int  { return len(r.State.Users) }
func (r *Room) Empty() bool   { return len(r.State.Users) == 0 }
func (r *Room) Started() bool { return r.State.Started }
func (r *Room) Full() bool    { return len(r.State.Users) >= r.State.Rules.MaxUsers }

// BeginStart reserves the start for one user while the race row is being
// created, so a second start cannot slip in and persist a duplicate.
func (r *Room) BeginStart(user string) { r.starter = user }
func (r *Room) StartPending() bool     { return r.starter != "" }

// CancelStart releases the reservation if user still holds it.
func (r *Room) CancelStart(user string) {
	if r.starter == user {
		r.starter = ""
	}
}

// Join registers the outbox, adds the user to the session, sends the new
// member their first snapshot, and tells everyone else about the arrival.
func (r *Room) Join(user string, outbox chan types.ServerMessage, now time.Time) error {
	events, ns, err := engine.Apply(r.State, engine.Command{Type: engine.CmdAddUser, User: user}, now)
	if err != nil {
		return err
	}
	r.State = ns
	r.clients[user] = outbox
	r.publish(events, now)
	return nil
}

// Leave drops the outbox and removes the user from the session. Absent
// users are a no-op. Closing the outbox releases the writer pump on the
// other side; outboxes already dropped by broadcast are gone from the map.
func (r *Room) Leave(user string, now time.Time) {
	if ch, ok := r.clients[user]; ok {
		delete(r.clients, user)
		close(ch)
	}
	r.CancelStart(user)
	events, ns, err := engine.Apply(r.State, engine.Command{Type: engine.CmdRemoveUser, User: user}, now)
	if err != nil {
		return
	}
	r.State = ns
	r.publish(events, now)
}

// Apply runs a client command against the session and broadcasts the
// resulting events. Errors are returned unbroadcast; the hub decides
// which ones are protocol noise.
func (r *Room) Apply(cmd engine.Command, now time.Time) ([]engine.Event, error) {
	events, ns, err := engine.Apply(r.State, cmd, now)
	if err != nil {
		return nil, err
	}
	r.State = ns
	if cmd.Type == engine.CmdStartRace {
		r.starter = ""
	}
	r.publish(events, now)
	return events, nil
}

// publish fans the events out as updates, then follows structural changes
// (joins, leaves, starts, effects) with a fresh full snapshot so every
// member can re-derive rendering state without history.
func (r *Room) publish(events []engine.Event, now time.Time) {
	snapshotWorthy := false
	for _, e := range events {
		r.broadcast(types.ServerMessage{Type: "update", Update: updateFor(e)})
		switch e.Type {
		case engine.EvtUserJoined, engine.EvtUserLeft, engine.EvtRaceStarted, engine.EvtEffectStarted, engine.EvtPowerupGranted:
			snapshotWorthy = true
		}
	}
	if snapshotWorthy {
		r.broadcast(types.ServerMessage{Type: "raceData", RaceInfo: r.snapshotPtr(now)})
	}
}

// broadcast is best-effort per member: a slow or dead outbox is dropped
// without aborting delivery to the rest.
func (r *Room) broadcast(msg types.ServerMessage) {
	for user, ch := range r.clients {
		select {
		case ch <- msg:
		default:
			r.log.Warn("dropping slow client", zap.String("room", r.ID), zap.String("user", user))
			close(ch)
			delete(r.clients, user)
		}
	}
}

// Close shuts every outbox; members learn the room is gone when their
// channel closes.
func (r *Room) Close() {
	for user, ch := range r.clients {
		close(ch)
		delete(r.clients, user)
	}
}

func (r *Room) snapshotPtr(now time.Time) *types.RaceData {
	snap := r.Snapshot(now)
	return &snap
}

// Snapshot builds the wire-level RaceData for the room, filtering the
// effect timeline down to in-window events.
func (r *Room) Snapshot(now time.Time) types.RaceData {
	s := r.State
	info := make(map[string]types.WsUser, len(s.Progress))
	for user, p := range s.Progress {
		info[user] = types.WsUser{
			CharsTyped: p.CharsTyped,
			Inventory:  string(p.Inventory),
			Color:      p.Color,
			Finished:   p.Finished,
		}
	}
	active := engine.ActiveEffects(s.Effects, now)
	effects := make([]types.EffectEvent, 0, len(active))
	for _, e := range active {
		effects = append(effects, types.EffectEvent{
			PowerupType: string(e.Powerup),
			User:        e.Owner,
			Target:      e.Target,
			StartTime:   e.Start.UnixMilli(),
			EndTime:     e.End.UnixMilli(),
		})
	}
	return types.RaceData{
		RoomID:        r.ID,
		HasStarted:    s.Started,
		IsPublic:      r.Public,
		Start:         s.StartTime,
		Passage:       s.Passage,
		RaceID:        s.RaceID,
		Users:         append([]string(nil), s.Users...),
		UserInfo:      info,
		ActiveEffects: effects,
	}
}

func updateFor(e engine.Event) *types.Update {
	u := &types.Update{User: e.User, CharsTyped: e.CharsTyped, Powerup: string(e.Powerup)}
	switch e.Type {
	case engine.EvtUserJoined:
		u.Kind = types.UpdateUserJoined
	case engine.EvtUserLeft:
		u.Kind = types.UpdateUserLeft
	case engine.EvtRaceStarted:
		u.Kind = types.UpdateRaceStarted
	case engine.EvtProgress:
		u.Kind = types.UpdateProgress
	case engine.EvtPowerupGranted:
		u.Kind = types.UpdatePowerupGranted
	case engine.EvtEffectStarted:
		u.Kind = types.UpdateEffectStarted
		if e.Effect != nil {
			u.Effect = &types.EffectEvent{
				PowerupType: string(e.Effect.Powerup),
				User:        e.Effect.Owner,
				Target:      e.Effect.Target,
				StartTime:   e.Effect.Start.UnixMilli(),
				EndTime:     e.Effect.End.UnixMilli(),
			}
		}
	case engine.EvtUserFinished:
		u.Kind = types.UpdateUserFinished
	case engine.EvtRaceFinished:
		u.Kind = types.UpdateRaceFinished
	}
	return u
}
