package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/blchelle/capstone/internal/engine"
	"github.com/blchelle/capstone/internal/hub"
	"github.com/blchelle/capstone/internal/store"
	"github.com/blchelle/capstone/pkg/types"
)

func newTestServer(t *testing.T, st store.Store) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, engine.DefaultRules(), zap.NewNop())
	mux := http.NewServeMux()
	mux.Handle("/ws", Handler(h, st, zap.NewNop()))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, username string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?username=" + username
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", username, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		t.Fatalf("write %s: %v", msg.Type, err)
	}
}

// recvUntil reads server messages, discarding everything that does not
// satisfy want.
func recvUntil(t *testing.T, conn *websocket.Conn, desc string, want func(types.ServerMessage) bool) types.ServerMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("read while waiting for %s: %v", desc, err)
		}
		var sm types.ServerMessage
		if err := json.Unmarshal(data, &sm); err != nil {
			t.Fatalf("bad server message: %v", err)
		}
		if want(sm) {
			return sm
		}
	}
	t.Fatalf("timed out waiting for %s", desc)
	return types.ServerMessage{} // unreachable
}

func TestHandler_DuplicateStartPersistsNothing(t *testing.T) {
	st := store.NewMemory()
	srv := newTestServer(t, st)
	conn := dial(t, srv, "ann")

	send(t, conn, types.ClientMessage{Type: "connect_public"})
	recvUntil(t, conn, "join snapshot", func(m types.ServerMessage) bool {
		return m.Type == "raceData"
	})

	send(t, conn, types.ClientMessage{Type: "start"})
	recvUntil(t, conn, "race start", func(m types.ServerMessage) bool {
		return m.Type == "update" && m.Update != nil && m.Update.Kind == types.UpdateRaceStarted
	})

	send(t, conn, types.ClientMessage{Type: "start"})
	rejection := recvUntil(t, conn, "start rejection", func(m types.ServerMessage) bool {
		return m.Type == "error"
	})
	if rejection.Error != engine.ErrAlreadyStarted.Error() {
		t.Fatalf("second start rejected with %q, want %q", rejection.Error, engine.ErrAlreadyStarted.Error())
	}

	ctx := context.Background()
	if _, err := st.GetRace(ctx, 1); err != nil {
		t.Fatalf("first start created no race: %v", err)
	}
	if race, err := st.GetRace(ctx, 2); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("duplicate start persisted an orphan race: %+v (err %v)", race, err)
	}
}

func TestWritePump_ClosedOutboxTearsDownConn(t *testing.T) {
	peerStatus := make(chan websocket.StatusCode, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := c.Read(context.Background()); err != nil {
				peerStatus <- websocket.CloseStatus(err)
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	conn, _, err := websocket.Dial(dialCtx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan types.ServerMessage, 1)
	done := make(chan struct{})
	go func() {
		writePump(ctx, cancel, conn, out)
		close(done)
	}()

	out <- types.ServerMessage{Type: "update", Update: &types.Update{Kind: types.UpdateProgress}}
	close(out) // what the room does when it drops or releases a member

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("pump did not exit after outbox close")
	}
	if ctx.Err() == nil {
		t.Fatalf("pump exit did not release the reader")
	}
	select {
	case status := <-peerStatus:
		if status != websocket.StatusTryAgainLater {
			t.Fatalf("peer saw close status %v, want %v", status, websocket.StatusTryAgainLater)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("peer never saw the connection close")
	}
}
