// Command bot is a headless racer: it joins a room, waits for the race to
// start, and types the passage at a fixed pace, using any powerup it is
// granted along the way. Useful for filling public rooms while testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/blchelle/capstone/internal/engine"
	"github.com/blchelle/capstone/internal/typist"
	"github.com/blchelle/capstone/pkg/types"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080", "server base url")
	username := flag.String("username", fmt.Sprintf("bot-%d", os.Getpid()), "racer name")
	roomID := flag.String("room", "", "private room to join; empty matchmakes")
	start := flag.Bool("start", false, "send the start command after joining")
	wpm := flag.Int("wpm", 60, "typing speed in words per minute")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, *addr+"/ws?username="+*username, nil)
	if err != nil {
		log.Fatal("dial failed", zap.Error(err))
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	connect := types.ClientMessage{Type: "connect_public"}
	if *roomID != "" {
		connect = types.ClientMessage{Type: "connect_private", RoomID: *roomID}
	}
	if err := send(ctx, conn, connect); err != nil {
		log.Fatal("connect failed", zap.Error(err))
	}

	var mu sync.Mutex
	var race types.RaceData
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg types.ServerMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case "raceData":
				mu.Lock()
				race = *msg.RaceInfo
				mu.Unlock()
			case "update":
				mu.Lock()
				applyUpdate(&race, msg.Update)
				mu.Unlock()
			case "error":
				log.Warn("server error", zap.String("error", msg.Error))
			}
		}
	}()

	if *start {
		time.Sleep(time.Second)
		if err := send(ctx, conn, types.ClientMessage{Type: "start"}); err != nil {
			log.Fatal("start failed", zap.Error(err))
		}
	}

	// One keystroke per tick at the requested pace (5 chars per word).
	interval := time.Minute / time.Duration(*wpm*5)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	machine := typist.New()
	buffer := ""

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		mu.Lock()
		snap := race
		mu.Unlock()
		if !snap.HasStarted || snap.Passage == "" {
			continue
		}

		view := typist.View{
			Passage:   snap.Passage,
			Inventory: snap.UserInfo[*username].Inventory,
			Effects:   activeEffects(snap, *username),
		}
		if machine.Finished(view) {
			log.Info("finished race", zap.String("room", snap.RoomID))
			return
		}

		aim, ok := nextAim(machine, view, buffer)
		if !ok {
			continue // knocked out or nothing to type this tick
		}
		if len(buffer) >= len(aim) || !strings.HasPrefix(aim, buffer) {
			// An effect changed the target mid-word; start the word over.
			buffer = ""
			continue
		}
		buffer += string(aim[len(buffer)])
		act := machine.HandleInput(buffer, view)
		buffer = machine.Input

		switch act.Kind {
		case typist.ActionSendProgress:
			if err := send(ctx, conn, types.ClientMessage{Type: "type", CharsTyped: act.CharsTyped}); err != nil {
				return
			}
		case typist.ActionSendPowerup:
			log.Info("using powerup", zap.String("powerup", act.Powerup))
			if err := send(ctx, conn, types.ClientMessage{Type: "powerup", Powerup: act.Powerup}); err != nil {
				return
			}
		}
	}
}

// nextAim picks the string the bot is working toward: the powerup command
// when one is held, otherwise the current (possibly doubled) word.
func nextAim(m *typist.Machine, v typist.View, buffer string) (string, bool) {
	for _, e := range v.Effects {
		if e == "knockout" {
			return "", false
		}
	}
	if v.Inventory != "" && buffer == "" {
		return "#" + v.Inventory + " ", true
	}
	if v.Inventory != "" && len(buffer) > 0 && buffer[0] == '#' {
		return "#" + v.Inventory + " ", true
	}

	words := engine.Words(v.Passage)
	if m.WordIndex >= len(words) {
		return "", false
	}
	word := words[m.WordIndex]
	doubled := false
	for _, e := range v.Effects {
		if e == "doubletap" {
			doubled = true
		}
	}
	if doubled {
		word += word
	}
	if m.WordIndex == len(words)-1 {
		return word, len(buffer) < len(word)
	}
	return word + " ", true
}

// activeEffects filters the snapshot timeline down to effect names that
// apply to user right now.
func activeEffects(race types.RaceData, user string) []string {
	now := time.Now().UnixMilli()
	names := []string{}
	for _, e := range race.ActiveEffects {
		if now >= e.EndTime || e.User == user {
			continue
		}
		if e.Target != "" && e.Target != user {
			continue
		}
		names = append(names, e.PowerupType)
	}
	return names
}

// applyUpdate keeps the local snapshot warm between full raceData frames.
func applyUpdate(race *types.RaceData, u *types.Update) {
	if u == nil || race.UserInfo == nil {
		return
	}
	switch u.Kind {
	case types.UpdateProgress:
		info := race.UserInfo[u.User]
		if u.CharsTyped > info.CharsTyped {
			info.CharsTyped = u.CharsTyped
		}
		race.UserInfo[u.User] = info
	case types.UpdatePowerupGranted:
		info := race.UserInfo[u.User]
		info.Inventory = u.Powerup
		race.UserInfo[u.User] = info
	case types.UpdateEffectStarted:
		if u.Effect != nil {
			race.ActiveEffects = append(race.ActiveEffects, *u.Effect)
			info := race.UserInfo[u.User]
			info.Inventory = ""
			race.UserInfo[u.User] = info
		}
	case types.UpdateRaceStarted:
		race.HasStarted = true
	case types.UpdateUserFinished:
		info := race.UserInfo[u.User]
		info.Finished = true
		race.UserInfo[u.User] = info
	}
}

func send(ctx context.Context, conn *websocket.Conn, msg types.ClientMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
