package engine

import (
	"errors"
	"math/rand"
	"time"
)

var ErrAlreadyStarted = errors.New("race already started")
var ErrNotStarted = errors.New("race not started")
var ErrDuplicateUser = errors.New("user already in race")
var ErrUnknownUser = errors.New("unknown user")
var ErrUserFinished = errors.New("user already finished")
var ErrStaleUpdate = errors.New("stale progress update")
var ErrKnockedOut = errors.New("user is knocked out")
var ErrNoInventory = errors.New("powerup not held")
var ErrNoTarget = errors.New("no opponent to target")
var ErrUnsupportedCommand = errors.New("unsupported command")

// Rules are fixed at room creation.
type Rules struct {
	MaxUsers               int
	PowerupChance          float64 // rolled once per completed word
	Durations              map[PowerupType]time.Duration
	Strategy               TargetStrategy
	EnforcePrivateCapacity bool
}

func DefaultRules() Rules {
	return Rules{
		MaxUsers:      4,
		PowerupChance: 0.15,
		Durations: map[PowerupType]time.Duration{
			PowerupKnockout:  5 * time.Second,
			PowerupDoubletap: 8 * time.Second,
			PowerupWhiteout:  8 * time.Second,
			PowerupRumble:    8 * time.Second,
		},
		Strategy: TargetWeakest,
	}
}

// Progress is one user's record inside a session.
type Progress struct {
	CharsTyped int
	Inventory  PowerupType // empty when no powerup is held
	Color      string
	Finished   bool
}

// State is the authoritative per-room race session. Apply treats it as a
// value: mutated containers are copied, so callers may keep old snapshots.
type State struct {
	Passage   string
	Started   bool
	StartTime time.Time
	RaceID    uint
	Users     []string // join order
	Progress  map[string]Progress
	Effects   []EffectEvent
	Rules     Rules
}

func NewState(rules Rules) State {
	return State{
		Users:    []string{},
		Progress: map[string]Progress{},
		Rules:    rules,
	}
}

func (s State) clone() State {
	ns := s
	ns.Users = append([]string(nil), s.Users...)
	ns.Progress = make(map[string]Progress, len(s.Progress))
	for u, p := range s.Progress {
		ns.Progress[u] = p
	}
	ns.Effects = append([]EffectEvent(nil), s.Effects...)
	return ns
}

type CommandType string

const (
	CmdAddUser    CommandType = "AddUser"
	CmdRemoveUser CommandType = "RemoveUser"
	CmdStartRace  CommandType = "StartRace"
	CmdTypeUpdate CommandType = "TypeUpdate"
	CmdUsePowerup CommandType = "UsePowerup"
)

type Command struct {
	Type       CommandType
	User       string
	Passage    string // StartRace
	RaceID     uint   // StartRace
	CharsTyped int    // TypeUpdate
	Powerup    PowerupType
	Target     string // optional explicit victim for targeted powerups
}

type EventType string

const (
	EvtUserJoined     EventType = "UserJoined"
	EvtUserLeft       EventType = "UserLeft"
	EvtRaceStarted    EventType = "RaceStarted"
	EvtProgress       EventType = "Progress"
	EvtPowerupGranted EventType = "PowerupGranted"
	EvtEffectStarted  EventType = "EffectStarted"
	EvtUserFinished   EventType = "UserFinished"
	EvtRaceFinished   EventType = "RaceFinished"
)

type Event struct {
	Type       EventType
	User       string
	CharsTyped int
	Powerup    PowerupType
	Effect     *EffectEvent
}

var colorPalette = []string{"#f44336", "#2196f3", "#4caf50", "#ff9800", "#9c27b0", "#00bcd4"}

// Stubbable randomness, in the spirit of keeping Apply deterministic under test.
var rollChance = func(p float64) bool { return rand.Float64() < p }
var randomPowerup = func() PowerupType { return Powerups[rand.Intn(len(Powerups))] }

// Apply runs one command against the session and returns the events to
// broadcast together with the next state. On error the returned state is
// the input unchanged; callers decide which errors are protocol noise to
// swallow and which to surface.
func Apply(s State, cmd Command, now time.Time) ([]Event, State, error) {
	switch cmd.Type {
	case CmdAddUser:
		if _, ok := s.Progress[cmd.User]; ok {
			return nil, s, ErrDuplicateUser
		}
		ns := s.clone()
		ns.Users = append(ns.Users, cmd.User)
		ns.Progress[cmd.User] = Progress{Color: colorPalette[len(s.Users)%len(colorPalette)]}
		return []Event{{Type: EvtUserJoined, User: cmd.User}}, ns, nil

	case CmdRemoveUser:
		if _, ok := s.Progress[cmd.User]; !ok {
			return nil, s, ErrUnknownUser
		}
		ns := s.clone()
		for i, u := range ns.Users {
			if u == cmd.User {
				ns.Users = append(ns.Users[:i], ns.Users[i+1:]...)
				break
			}
		}
		delete(ns.Progress, cmd.User)
		events := []Event{{Type: EvtUserLeft, User: cmd.User}}
		// A departure can leave only finished racers behind.
		if ns.Started && len(ns.Users) > 0 && allFinished(ns) {
			events = append(events, Event{Type: EvtRaceFinished})
		}
		return events, ns, nil

	case CmdStartRace:
		if s.Started {
			return nil, s, ErrAlreadyStarted
		}
		ns := s.clone()
		ns.Started = true
		ns.StartTime = now
		ns.Passage = cmd.Passage
		ns.RaceID = cmd.RaceID
		return []Event{{Type: EvtRaceStarted}}, ns, nil

	case CmdTypeUpdate:
		return applyTypeUpdate(s, cmd, now)

	case CmdUsePowerup:
		return applyPowerupUse(s, cmd, now)

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyTypeUpdate(s State, cmd Command, now time.Time) ([]Event, State, error) {
	if !s.Started {
		return nil, s, ErrNotStarted
	}
	p, ok := s.Progress[cmd.User]
	if !ok {
		return nil, s, ErrUnknownUser
	}
	if p.Finished {
		return nil, s, ErrUserFinished
	}
	if EffectActive(s.Effects, PowerupKnockout, cmd.User, now) {
		return nil, s, ErrKnockedOut
	}
	chars := cmd.CharsTyped
	if chars > len(s.Passage) {
		chars = len(s.Passage)
	}
	if chars < p.CharsTyped {
		return nil, s, ErrStaleUpdate
	}

	ns := s.clone()
	prev := p.CharsTyped
	p.CharsTyped = chars
	events := []Event{{Type: EvtProgress, User: cmd.User, CharsTyped: chars}}

	// Completing a word can pay out a powerup.
	if p.Inventory == "" && !p.Finished &&
		WordsCompleted(s.Passage, chars) > WordsCompleted(s.Passage, prev) &&
		chars < len(s.Passage) && rollChance(s.Rules.PowerupChance) {
		p.Inventory = randomPowerup()
		events = append(events, Event{Type: EvtPowerupGranted, User: cmd.User, Powerup: p.Inventory})
	}

	if chars == len(s.Passage) {
		p.Finished = true
		events = append(events, Event{Type: EvtUserFinished, User: cmd.User})
	}
	ns.Progress[cmd.User] = p
	if p.Finished && allFinished(ns) {
		events = append(events, Event{Type: EvtRaceFinished})
	}
	return events, ns, nil
}

func applyPowerupUse(s State, cmd Command, now time.Time) ([]Event, State, error) {
	if !s.Started {
		return nil, s, ErrNotStarted
	}
	p, ok := s.Progress[cmd.User]
	if !ok {
		return nil, s, ErrUnknownUser
	}
	if p.Inventory == "" || p.Inventory != cmd.Powerup {
		return nil, s, ErrNoInventory
	}

	effect := EffectEvent{
		Powerup: cmd.Powerup,
		Owner:   cmd.User,
		Start:   now,
		End:     now.Add(s.Rules.Durations[cmd.Powerup]),
	}
	if cmd.Powerup.Targeted() {
		if cmd.Target != "" && cmd.Target != cmd.User {
			if _, ok := s.Progress[cmd.Target]; !ok {
				return nil, s, ErrNoTarget
			}
			effect.Target = cmd.Target
		} else {
			target, ok := chooseTarget(s, cmd.User, s.Rules.Strategy)
			if !ok {
				return nil, s, ErrNoTarget
			}
			effect.Target = target
		}
	}

	ns := s.clone()
	p.Inventory = ""
	ns.Progress[cmd.User] = p
	ns.Effects = append(ns.Effects, effect)
	return []Event{{Type: EvtEffectStarted, User: cmd.User, Powerup: cmd.Powerup, Effect: &effect}}, ns, nil
}

func allFinished(s State) bool {
	for _, u := range s.Users {
		if !s.Progress[u].Finished {
			return false
		}
	}
	return len(s.Users) > 0
}
