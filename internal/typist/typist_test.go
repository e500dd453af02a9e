package typist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleInput_PrefixKeepsTyping(t *testing.T) {
	m := New()
	v := View{Passage: "the cat sat"}
	m.WordIndex = 1 // working on "cat"

	act := m.HandleInput("ca", v)
	assert.Equal(t, StateCorrect, m.State)
	assert.Equal(t, 1, m.WordIndex, "word index must not advance on a prefix")
	assert.Equal(t, ActionSendProgress, act.Kind)
	assert.Equal(t, 6, act.CharsTyped) // "the " + "ca"
}

func TestHandleInput_MismatchIsError(t *testing.T) {
	m := New()
	v := View{Passage: "the cat sat"}
	m.WordIndex = 1

	act := m.HandleInput("cax", v)
	assert.Equal(t, StateError, m.State)
	assert.Equal(t, ActionNone, act.Kind)
	assert.Equal(t, "cax", m.Input, "raw input is retained for display")
	assert.Equal(t, 1, m.WordIndex)
}

func TestHandleInput_WordWithSpaceAdvances(t *testing.T) {
	m := New()
	v := View{Passage: "the cat sat"}

	act := m.HandleInput("the ", v)
	assert.Equal(t, StateCorrect, m.State)
	assert.Equal(t, 1, m.WordIndex)
	assert.Empty(t, m.Input)
	assert.Equal(t, ActionSendProgress, act.Kind)
	assert.Equal(t, 4, act.CharsTyped)
}

func TestHandleInput_FinalWordFinishesWithoutSpace(t *testing.T) {
	m := New()
	v := View{Passage: "the cat"}
	m.WordIndex = 1

	act := m.HandleInput("cat", v)
	assert.Equal(t, StateCorrect, m.State)
	assert.Equal(t, ActionSendProgress, act.Kind)
	assert.Equal(t, len(v.Passage), act.CharsTyped)
	assert.True(t, m.Finished(v))
}

func TestHandleInput_FinalWordFinishesWithSpace(t *testing.T) {
	m := New()
	v := View{Passage: "the cat"}
	m.WordIndex = 1

	// The trailing space is accepted but never counted past the passage.
	act := m.HandleInput("cat ", v)
	assert.Equal(t, StateCorrect, m.State)
	assert.Equal(t, ActionSendProgress, act.Kind)
	assert.Equal(t, len(v.Passage), act.CharsTyped)
	assert.True(t, m.Finished(v))
}

func TestHandleInput_PowerupCommand(t *testing.T) {
	m := New()
	v := View{Passage: "the cat", Inventory: "whiteout"}

	// A prefix of the command is an affordance, not a message.
	act := m.HandleInput("#whi", v)
	assert.Equal(t, StatePowerup, m.State)
	assert.Equal(t, ActionNone, act.Kind)

	// The exact command (case-insensitive) fires the powerup and does
	// not advance the word.
	act = m.HandleInput("#WhiteOut ", v)
	assert.Equal(t, StateCorrect, m.State)
	assert.Equal(t, ActionSendPowerup, act.Kind)
	assert.Equal(t, "whiteout", act.Powerup)
	assert.Equal(t, 0, m.WordIndex)
	assert.Empty(t, m.Input)
}

func TestHandleInput_NoInventoryNoPowerupState(t *testing.T) {
	m := New()
	v := View{Passage: "the cat"}

	act := m.HandleInput("#whi", v)
	assert.Equal(t, StateError, m.State)
	assert.Equal(t, ActionNone, act.Kind)
}

func TestHandleInput_KnockoutFreezesInput(t *testing.T) {
	m := New()
	v := View{Passage: "the cat", Effects: []string{"knockout"}}
	m.State = StateCorrect

	act := m.HandleInput("th", v)
	assert.Equal(t, ActionNone, act.Kind)
	assert.Equal(t, StateCorrect, m.State)
	assert.Empty(t, m.Input, "keystroke is swallowed entirely")
}

func TestHandleInput_DoubletapDoublesTheWord(t *testing.T) {
	m := New()
	v := View{Passage: "the cat sat", Effects: []string{"doubletap"}}
	m.WordIndex = 1

	// The first copy counts as real progress.
	act := m.HandleInput("cat", v)
	assert.Equal(t, StateCorrect, m.State)
	assert.Equal(t, 7, act.CharsTyped)

	// The second copy adds no progress until the word completes.
	act = m.HandleInput("catca", v)
	assert.Equal(t, StateCorrect, m.State)
	assert.Equal(t, 7, act.CharsTyped)

	// "cat" alone is no longer a complete word.
	act = m.HandleInput("cat ", v)
	assert.Equal(t, StateError, m.State)

	m.State = StateCorrect
	act = m.HandleInput("catcat ", v)
	assert.Equal(t, StateCorrect, m.State)
	assert.Equal(t, 2, m.WordIndex)
	assert.Equal(t, 8, act.CharsTyped, "duplication stripped from reported progress")
	assert.Equal(t, 8, m.CharIndex)
}

// Replaying a race keystroke by keystroke must land every cursor exactly
// where a cold rebuild from the final snapshot would put it.
func TestCursorRoundTrip(t *testing.T) {
	passage := "the cat sat"
	m := New()
	v := View{Passage: passage}

	sent := []int{}
	buffer := ""
	for !m.Finished(v) {
		words := strings.Split(passage, " ")
		target := words[m.WordIndex]
		if m.WordIndex < len(words)-1 {
			target += " "
		}
		buffer += string(target[len(buffer)])
		act := m.HandleInput(buffer, v)
		buffer = m.Input
		require.Equal(t, ActionSendProgress, act.Kind)
		sent = append(sent, act.CharsTyped)
	}

	for i := 1; i < len(sent); i++ {
		assert.GreaterOrEqual(t, sent[i], sent[i-1], "progress updates are non-decreasing")
	}
	require.NotEmpty(t, sent)
	assert.Equal(t, len(passage), sent[len(sent)-1])

	// A fresh client reconstructing from the snapshot alone agrees with
	// the incremental path.
	snapshot := map[string]int{"ann": sent[len(sent)-1], "bob": 6}
	offsets := CursorOffsets(snapshot, "ann", m.CharIndex)
	assert.Equal(t, len(passage), offsets["ann"])
	assert.Equal(t, 6, offsets["bob"])
}
