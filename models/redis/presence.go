package redis

import "time"

type PresenceEntry struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	LastSeen    time.Time `json:"last_seen"`
}

// PresenceSnapshot is advisory. Degraded means the realtime store could not be
// read and indicators should be rendered blank.
type PresenceSnapshot struct {
	Room       string          `json:"room"`
	Online     []PresenceEntry `json:"online"`
	Degraded   bool            `json:"degraded"`
	ObservedAt time.Time       `json:"observed_at"`
}

func (p *PresenceSnapshot) IsOnline(identity string) bool {
	for _, e := range p.Online {
		if e.Identity == identity {
			return true
		}
	}
	return false
}
