package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectEvent_ActiveWindow(t *testing.T) {
	start := time.Unix(1000, 0)
	e := EffectEvent{Powerup: PowerupWhiteout, Owner: "ann", Start: start, End: start.Add(5 * time.Second)}

	assert.False(t, e.ActiveAt(start.Add(-time.Millisecond)))
	assert.True(t, e.ActiveAt(start))
	assert.True(t, e.ActiveAt(start.Add(4*time.Second)))
	assert.False(t, e.ActiveAt(start.Add(5*time.Second)), "window is half-open")
}

func TestEffectEvent_Affects(t *testing.T) {
	broadcast := EffectEvent{Powerup: PowerupRumble, Owner: "ann"}
	assert.False(t, broadcast.Affects("ann"), "owner is never affected")
	assert.True(t, broadcast.Affects("bob"))
	assert.True(t, broadcast.Affects("cam"))

	targeted := EffectEvent{Powerup: PowerupKnockout, Owner: "ann", Target: "bob"}
	assert.False(t, targeted.Affects("ann"))
	assert.True(t, targeted.Affects("bob"))
	assert.False(t, targeted.Affects("cam"))
}

func TestActiveEffects_LazyExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	events := []EffectEvent{
		{Powerup: PowerupKnockout, Owner: "ann", Target: "bob", Start: now.Add(-10 * time.Second), End: now.Add(-5 * time.Second)},
		{Powerup: PowerupWhiteout, Owner: "bob", Start: now.Add(-time.Second), End: now.Add(time.Second)},
	}

	active := ActiveEffects(events, now)
	assert.Len(t, active, 1)
	assert.Equal(t, PowerupWhiteout, active[0].Powerup)

	// Expiry never mutates the timeline.
	assert.Len(t, events, 2)
	assert.False(t, EffectActive(events, PowerupKnockout, "bob", now))
	assert.True(t, EffectActive(events, PowerupWhiteout, "ann", now))
}

func TestChooseTarget(t *testing.T) {
	s := NewState(DefaultRules())
	now := time.Unix(1000, 0)
	for _, u := range []string{"ann", "bob", "cam"} {
		_, s, _ = Apply(s, Command{Type: CmdAddUser, User: u}, now)
	}
	_, s, _ = Apply(s, Command{Type: CmdStartRace, Passage: "the cat sat"}, now)
	_, s, _ = Apply(s, Command{Type: CmdTypeUpdate, User: "bob", CharsTyped: 8}, now)
	_, s, _ = Apply(s, Command{Type: CmdTypeUpdate, User: "cam", CharsTyped: 4}, now)

	first, ok := chooseTarget(s, "ann", TargetFirst)
	assert.True(t, ok)
	assert.Equal(t, "bob", first, "first opponent in join order")

	weakest, ok := chooseTarget(s, "bob", TargetWeakest)
	assert.True(t, ok)
	assert.Equal(t, "ann", weakest, "ann has typed nothing")

	_, ok = chooseTarget(State{Users: []string{"solo"}, Progress: map[string]Progress{"solo": {}}}, "solo", TargetWeakest)
	assert.False(t, ok, "no opponents to target")
}
