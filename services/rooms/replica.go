package rooms

import (
	"sync"

	redis_models "Mobius/models/redis"
)

// Replica is a reader-side copy of rosters built only from distributed
// snapshots. A snapshot replaces the held roster when its version is strictly
// newer, so duplicates and late arrivals change nothing.
type Replica struct {
	mu      sync.RWMutex
	rosters map[string]*redis_models.RosterSnapshot
}

func NewReplica() *Replica {
	return &Replica{rosters: make(map[string]*redis_models.RosterSnapshot)}
}

// Apply returns the previously held roster (nil if none) and whether snap
// was applied.
func (r *Replica) Apply(snap *redis_models.RosterSnapshot) (*redis_models.RosterSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.rosters[snap.Room]
	if prev != nil && snap.Version <= prev.Version {
		return prev, false
	}
	cp := *snap
	cp.Players = append([]redis_models.PlayerView(nil), snap.Players...)
	r.rosters[snap.Room] = &cp
	return prev, true
}

func (r *Replica) Get(room string) (*redis_models.RosterSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.rosters[room]
	return snap, ok
}

func (r *Replica) Drop(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rosters, room)
}
