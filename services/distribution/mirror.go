package distribution

import "sync"

type mirrorKey struct {
	room string
	kind Kind
}

// Mirror remembers the newest version applied per room and kind and rejects
// anything not strictly newer, which makes replays and reordering harmless.
type Mirror struct {
	mu   sync.Mutex
	seen map[mirrorKey]int64
}

func NewMirror() *Mirror {
	return &Mirror{seen: make(map[mirrorKey]int64)}
}

// Apply reports whether ev should be applied. Chat lines are not snapshots
// and always pass.
func (m *Mirror) Apply(ev Event) bool {
	if ev.Kind == KindChat {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := mirrorKey{room: ev.Room, kind: ev.Kind}
	if cur, ok := m.seen[k]; ok && ev.Version <= cur {
		return false
	}
	m.seen[k] = ev.Version
	return true
}

func (m *Mirror) Version(room string, kind Kind) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[mirrorKey{room: room, kind: kind}]
}

func (m *Mirror) Forget(room string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.seen {
		if k.room == room {
			delete(m.seen, k)
		}
	}
}
