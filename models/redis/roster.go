package redis

import "time"

// PlayerView is one seat as distributed to clients.
type PlayerView struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	Ready       bool      `json:"ready"`
	IsHost      bool      `json:"is_host"`
	JoinSeq     int64     `json:"join_seq"`
	JoinedAt    time.Time `json:"joined_at"`
}

// RosterSnapshot is the full membership of a room at Version. It always
// replaces whatever the reader had, never patches it.
type RosterSnapshot struct {
	Room         string       `json:"room"`
	Version      int64        `json:"version"`
	Variant      int          `json:"variant"`
	HostIdentity string       `json:"host_identity,omitempty"`
	Players      []PlayerView `json:"players"`
	TakenAt      time.Time    `json:"taken_at"`
}

// Host returns the host seat, if any.
func (r *RosterSnapshot) Host() (PlayerView, bool) {
	for _, p := range r.Players {
		if p.IsHost {
			return p, true
		}
	}
	return PlayerView{}, false
}

// Seat returns the 1-based join position of identity, or 0.
func (r *RosterSnapshot) Seat(identity string) int {
	for i, p := range r.Players {
		if p.Identity == identity {
			return i + 1
		}
	}
	return 0
}

// KickNotice is addressed to the removed identity (and its name, for clients
// that only know themselves by name). Observing it ends the target's session.
type KickNotice struct {
	Room        string `json:"room"`
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
	By          string `json:"by"`
	Version     int64  `json:"version"`
}
