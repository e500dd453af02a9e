package store

import (
	"context"
	"math/rand"
	"sync"
)

// defaultPassages seeds a DATABASE_URL-less run so a race can always start.
var defaultPassages = []string{
	"the quick brown fox jumps over the lazy dog",
	"pack my box with five dozen liquor jugs",
	"how vexingly quick daft zebras jump",
}

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu       sync.Mutex
	passages map[uint]string
	races    map[uint]Race
	nextRace uint
}

func NewMemory(passages ...string) *Memory {
	if len(passages) == 0 {
		passages = defaultPassages
	}
	m := &Memory{
		passages: make(map[uint]string, len(passages)),
		races:    make(map[uint]Race),
		nextRace: 1,
	}
	for i, text := range passages {
		m.passages[uint(i+1)] = text
	}
	return m
}

func (m *Memory) GetRace(_ context.Context, id uint) (Race, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	race, ok := m.races[id]
	if !ok {
		return Race{}, ErrNotFound
	}
	return race, nil
}

func (m *Memory) CreateRace(_ context.Context, passageID uint) (Race, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.passages[passageID]
	if !ok {
		return Race{}, ErrNotFound
	}
	race := Race{ID: m.nextRace, PassageID: passageID, Passage: text, Results: []Result{}}
	m.races[race.ID] = race
	m.nextRace++
	return race, nil
}

func (m *Memory) RandomPassage(_ context.Context) (uint, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.passages) == 0 {
		return 0, "", ErrNotFound
	}
	pick := rand.Intn(len(m.passages))
	i := 0
	for id, text := range m.passages {
		if i == pick {
			return id, text, nil
		}
		i++
	}
	return 0, "", ErrNotFound
}
