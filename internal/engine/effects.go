package engine

import "time"

type PowerupType string

const (
	PowerupKnockout  PowerupType = "knockout"
	PowerupDoubletap PowerupType = "doubletap"
	PowerupWhiteout  PowerupType = "whiteout"
	PowerupRumble    PowerupType = "rumble"
)

// Powerups is the full catalog. Extend here, not by branching elsewhere.
var Powerups = []PowerupType{PowerupKnockout, PowerupDoubletap, PowerupWhiteout, PowerupRumble}

func ParsePowerup(s string) (PowerupType, bool) {
	for _, p := range Powerups {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Targeted reports whether the powerup aims at a single opponent rather
// than every non-owner in the room.
func (p PowerupType) Targeted() bool {
	return p == PowerupKnockout
}

// EffectEvent is one powerup activation. Events are append-only; expiry
// is derived from End against the current time, never by mutation.
type EffectEvent struct {
	Powerup PowerupType
	Owner   string
	Target  string // empty for broadcast effects
	Start   time.Time
	End     time.Time
}

// ActiveAt reports whether now falls inside the half-open [Start, End) window.
func (e EffectEvent) ActiveAt(now time.Time) bool {
	return !now.Before(e.Start) && now.Before(e.End)
}

// Affects reports whether the effect applies to user. The owner is never
// affected; targeted effects hit only their target.
func (e EffectEvent) Affects(user string) bool {
	if user == e.Owner {
		return false
	}
	if e.Target != "" {
		return e.Target == user
	}
	return true
}

// ActiveEffects filters the timeline down to in-window events.
func ActiveEffects(events []EffectEvent, now time.Time) []EffectEvent {
	active := make([]EffectEvent, 0, len(events))
	for _, e := range events {
		if e.ActiveAt(now) {
			active = append(active, e)
		}
	}
	return active
}

// EffectActive answers "is powerup p active against user right now".
func EffectActive(events []EffectEvent, p PowerupType, user string, now time.Time) bool {
	for _, e := range events {
		if e.Powerup == p && e.ActiveAt(now) && e.Affects(user) {
			return true
		}
	}
	return false
}

// TargetStrategy picks the victim of a targeted powerup when the owner
// names none.
type TargetStrategy string

const (
	TargetFirst   TargetStrategy = "first"   // first opponent in join order
	TargetWeakest TargetStrategy = "weakest" // opponent with the least progress
)

// chooseTarget never selects the owner. Returns false when the owner has
// no opponents left in the room.
func chooseTarget(s State, owner string, strategy TargetStrategy) (string, bool) {
	target := ""
	for _, u := range s.Users {
		if u == owner {
			continue
		}
		if target == "" {
			target = u
			if strategy == TargetFirst {
				return target, true
			}
			continue
		}
		if strategy == TargetWeakest && s.Progress[u].CharsTyped < s.Progress[target].CharsTyped {
			target = u
		}
	}
	return target, target != ""
}
