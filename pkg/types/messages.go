package types

// Client -> Server. One struct for every inbound kind, discriminated by Type:
//
//	connect_public:  {}
//	connect_private: roomId
//	start:           {}
//	type:            charsTyped
//	powerup:         powerup, optional target
type ClientMessage struct {
	Type       string `json:"type"`
	RoomID     string `json:"roomId,omitempty"`
	CharsTyped int    `json:"charsTyped,omitempty"`
	Powerup    string `json:"powerup,omitempty"`
	Target     string `json:"target,omitempty"`
}

// Server -> Client.
type ServerMessage struct {
	Type     string    `json:"type"` // "raceData" | "update" | "error"
	RaceInfo *RaceData `json:"raceInfo,omitempty"`
	Update   *Update   `json:"update,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Update kinds. Closed set: consumers switch on Kind and treat anything
// else as a protocol violation.
const (
	UpdateUserJoined     = "user_joined"
	UpdateUserLeft       = "user_left"
	UpdateRaceStarted    = "race_started"
	UpdateProgress       = "progress"
	UpdatePowerupGranted = "powerup_granted"
	UpdateEffectStarted  = "effect_started"
	UpdateUserFinished   = "user_finished"
	UpdateRaceFinished   = "race_finished"
)

// Update is an incremental delta broadcast to a room.
type Update struct {
	Kind       string       `json:"kind"`
	User       string       `json:"user,omitempty"`
	CharsTyped int          `json:"charsTyped,omitempty"`
	Powerup    string       `json:"powerup,omitempty"`
	Effect     *EffectEvent `json:"effect,omitempty"`
}
