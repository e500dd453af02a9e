package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/blchelle/capstone/internal/engine"
	"github.com/blchelle/capstone/internal/hub"
	"github.com/blchelle/capstone/internal/store"
	"github.com/blchelle/capstone/pkg/types"
)

const (
	readTimeout  = 10 * time.Minute
	writeTimeout = 3 * time.Second
)

// Handler upgrades the connection, performs the connect handshake, then
// pumps messages between the socket and the hub.
func Handler(h *hub.Hub, st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")
		if username == "" {
			http.Error(w, "missing username", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// The first message decides the room: matchmake or a named join.
		cm, err := readMessage(r.Context(), conn)
		if err != nil {
			return
		}
		roomID := ""
		switch cm.Type {
		case "connect_public":
		case "connect_private":
			if cm.RoomID == "" {
				writeError(r.Context(), conn, "missing roomId")
				return
			}
			roomID = cm.RoomID
		default:
			writeError(r.Context(), conn, "expected connect message")
			return
		}

		out := make(chan types.ServerMessage, 16)
		reply := make(chan hub.ConnectReply, 1)
		h.Inbox() <- hub.Connect{UserID: username, RoomID: roomID, Outbox: out, Reply: reply}
		res := <-reply
		if res.Err != nil {
			log.Debug("connect rejected", zap.String("user", username), zap.Error(res.Err))
			writeError(r.Context(), conn, res.Err.Error())
			return
		}
		defer func() { h.Inbox() <- hub.Disconnect{UserID: username} }()

		readCtx, cancelRead := context.WithCancel(r.Context())
		defer cancelRead()
		go writePump(readCtx, cancelRead, conn, out)

		for {
			cm, err := readMessage(readCtx, conn)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			switch cm.Type {
			case "type":
				h.Inbox() <- hub.FromClient{UserID: username, Cmd: engine.Command{
					Type:       engine.CmdTypeUpdate,
					CharsTyped: cm.CharsTyped,
				}}

			case "powerup":
				p, ok := engine.ParsePowerup(cm.Powerup)
				if !ok {
					writeError(readCtx, conn, "unknown powerup")
					continue
				}
				h.Inbox() <- hub.FromClient{UserID: username, Cmd: engine.Command{
					Type:    engine.CmdUsePowerup,
					Powerup: p,
					Target:  cm.Target,
				}}

			case "start":
				// Reserve the start with the hub first, then create the race
				// row. A duplicate or concurrent start is rejected before it
				// can persist anything, and the hub never waits on the store.
				accepted := make(chan error, 1)
				h.Inbox() <- hub.StartRace{UserID: username, Reply: accepted}
				if err := <-accepted; err != nil {
					log.Debug("start rejected", zap.String("user", username), zap.Error(err))
					writeError(readCtx, conn, err.Error())
					continue
				}
				passageID, text, err := st.RandomPassage(readCtx)
				var race store.Race
				if err == nil {
					race, err = st.CreateRace(readCtx, passageID)
				}
				if err != nil {
					h.Inbox() <- hub.CancelStart{UserID: username}
					log.Warn("race start failed", zap.String("user", username), zap.Error(err))
					writeError(readCtx, conn, "could not start race")
					continue
				}
				h.Inbox() <- hub.FromClient{UserID: username, Cmd: engine.Command{
					Type:    engine.CmdStartRace,
					Passage: text,
					RaceID:  race.ID,
				}}

			case "connect_public", "connect_private":
				writeError(readCtx, conn, "already connected")

			default:
				writeError(readCtx, conn, "unknown type")
			}
		}
	}
}

// writePump drains the room outbox onto the socket. When the outbox closes
// (the room dropped us, or the room is gone) or a write fails, the session
// is over: the connection is closed and cancel unblocks the reader so the
// handler can tear down.
func writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan types.ServerMessage) {
	defer cancel()
	defer conn.Close(websocket.StatusTryAgainLater, "write backlog")
	for msg := range out {
		payload, _ := json.Marshal(msg)
		wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
		err := conn.Write(wctx, websocket.MessageText, payload)
		wcancel()
		if err != nil {
			return
		}
	}
}

func readMessage(ctx context.Context, conn *websocket.Conn) (types.ClientMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		return types.ClientMessage{}, err
	}
	var cm types.ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return types.ClientMessage{}, errors.New("bad json")
	}
	return cm, nil
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: "error", Error: msg})
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
