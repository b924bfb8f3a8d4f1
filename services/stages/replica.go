package stages

import "sync"

// Replica is a reader's view of the state of each room. It only moves
// forward: replays and late deliveries are dropped.
type Replica struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewReplica() *Replica {
	return &Replica{states: make(map[string]State)}
}

// Apply stores st if it is newer than what the replica holds.
func (r *Replica) Apply(st State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.states[st.Room]
	if ok && !Newer(st, cur) {
		return false
	}
	r.states[st.Room] = st
	return true
}

func (r *Replica) Get(room string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[room]
	return st, ok
}

func (r *Replica) Drop(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, room)
}
