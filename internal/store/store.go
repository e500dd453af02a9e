// Package store is the persistence boundary of the race core. The
// coordinator only ever needs three operations; everything else about
// races, results, and passages lives behind them.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Result is one racer's placement, ordered by rank ascending in Race.
type Result struct {
	UserID   uint    `json:"userId"`
	Username string  `json:"username"`
	WPM      float64 `json:"wpm"`
	Rank     int     `json:"rank"`
}

type Race struct {
	ID        uint      `json:"id"`
	PassageID uint      `json:"passageId"`
	Passage   string    `json:"passage"`
	Results   []Result  `json:"results"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store interface {
	// GetRace returns the race, its rank-ordered results, and the passage
	// text. ErrNotFound when the id is unknown.
	GetRace(ctx context.Context, id uint) (Race, error)
	// CreateRace registers a new race against an existing passage.
	CreateRace(ctx context.Context, passageID uint) (Race, error)
	// RandomPassage picks the passage a new race will run on.
	RandomPassage(ctx context.Context) (uint, string, error)
}
