package types

import "time"

// WsUser is one racer's entry in a snapshot.
type WsUser struct {
	CharsTyped int    `json:"charsTyped"`
	Inventory  string `json:"inventory,omitempty"`
	Color      string `json:"color"`
	Finished   bool   `json:"finished"`
}

// EffectEvent is an in-window powerup activation. Times are unix
// milliseconds so clients can schedule the expiry re-render directly.
type EffectEvent struct {
	PowerupType string `json:"powerupType"`
	User        string `json:"user"`
	Target      string `json:"target,omitempty"`
	StartTime   int64  `json:"startTime"`
	EndTime     int64  `json:"endTime"`
}

// RaceData is the full room snapshot sent on join and after
// state-changing events. It alone is enough to rebuild client state.
type RaceData struct {
	RoomID        string            `json:"roomId"`
	HasStarted    bool              `json:"hasStarted"`
	IsPublic      bool              `json:"isPublic"`
	Start         time.Time         `json:"start"`
	Passage       string            `json:"passage"`
	RaceID        uint              `json:"raceId,omitempty"`
	Users         []string          `json:"users"`
	UserInfo      map[string]WsUser `json:"userInfo"`
	ActiveEffects []EffectEvent     `json:"activeEffects"`
}
