// Package typist is the client half of the race: it validates each input
// buffer against the passage, tracks the local cursor, and decides which
// protocol message (if any) a keystroke produces.
package typist

import (
	"strings"

	"github.com/blchelle/capstone/internal/engine"
)

type State string

const (
	StateCorrect State = "Correct"
	StateError   State = "Error"
	StatePowerup State = "Powerup"
)

type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionSendProgress
	ActionSendPowerup
)

// Action is what the transport should do after a keystroke.
type Action struct {
	Kind       ActionKind
	CharsTyped int
	Powerup    string
}

// View is the slice of the latest snapshot the machine needs: the passage,
// the racer's held powerup, and the effect names currently applying to them.
type View struct {
	Passage   string
	Inventory string
	Effects   []string
}

func (v View) effectActive(name string) bool {
	for _, e := range v.Effects {
		if e == name {
			return true
		}
	}
	return false
}

// Machine is the per-racer input state machine.
type Machine struct {
	WordIndex int
	Input     string // current buffer as it should be displayed
	CharIndex int    // local optimistic cursor, absolute passage offset
	State     State
}

func New() *Machine {
	return &Machine{State: StateCorrect}
}

// Finished reports whether the racer has advanced past the last word.
func (m *Machine) Finished(v View) bool {
	return v.Passage != "" && m.WordIndex >= len(engine.Words(v.Passage))
}

// HandleInput consumes the full input buffer after a keystroke and
// transitions the machine. Knocked-out racers produce no transition at all.
func (m *Machine) HandleInput(value string, v View) Action {
	if v.effectActive(string(engine.PowerupKnockout)) {
		return Action{Kind: ActionNone}
	}

	words := engine.Words(v.Passage)
	if m.WordIndex >= len(words) {
		return Action{Kind: ActionNone}
	}
	target := words[m.WordIndex]
	required := target
	doubled := v.effectActive(string(engine.PowerupDoubletap))
	if doubled {
		// The current word renders doubled and must be typed twice.
		required = target + target
	}
	lastWord := m.WordIndex == len(words)-1
	base := engine.CharsBefore(words, m.WordIndex)

	matched := engine.CommonPrefixLen(value, required+" ")
	// Strip the doubletap duplication: only the first copy is real progress.
	real := matched
	if doubled && real > len(target) {
		real = len(target)
	}

	command := ""
	if v.Inventory != "" {
		command = "#" + v.Inventory + " "
	}

	switch {
	case value == required+" " || (value == required && lastWord):
		m.State = StateCorrect
		m.WordIndex++
		m.Input = ""
		chars := base + len(target)
		if !lastWord {
			chars++ // the separating space
		}
		m.CharIndex = chars
		return Action{Kind: ActionSendProgress, CharsTyped: chars}

	case command != "" && strings.ToLower(value) == command:
		m.State = StateCorrect
		m.Input = ""
		return Action{Kind: ActionSendPowerup, Powerup: v.Inventory}

	case strings.HasPrefix(required, value):
		m.State = StateCorrect
		m.Input = value
		m.CharIndex = base + real
		return Action{Kind: ActionSendProgress, CharsTyped: base + real}

	case command != "" && strings.HasPrefix(command, strings.ToLower(value)):
		m.State = StatePowerup
		m.Input = value
		return Action{Kind: ActionNone}

	default:
		m.State = StateError
		m.Input = value
		return Action{Kind: ActionNone}
	}
}

// CursorOffsets maps every racer to an absolute character offset, using
// the local optimistic cursor for self and snapshot progress for the rest.
// Racers share an offset only when their progress values coincide.
func CursorOffsets(progress map[string]int, self string, local int) map[string]int {
	offsets := make(map[string]int, len(progress))
	for user, chars := range progress {
		if user == self {
			offsets[user] = local
			continue
		}
		offsets[user] = chars
	}
	return offsets
}
