package socketio_types

import (
	"context"
	"sync"

	"github.com/zishang520/socket.io/v2/socket"
	"golang.org/x/time/rate"
)

// Session is one authenticated socket and the room it currently sits in.
type Session struct {
	Identity string
	Client   *socket.Socket
	Limiter  *rate.Limiter

	mu          sync.Mutex
	room        string
	name        string
	joinVersion int64
	cancel      context.CancelFunc
	driving     bool
	// bumped by every Enter and Exit; a loop only clears driving for its own
	gen uint64
}

// Enter binds the session to room. The returned context lives until the
// session leaves the room; heartbeats and the host loop hang off it.
func (s *Session) Enter(room, name string, rosterVersion int64) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.room, s.name, s.joinVersion, s.cancel, s.driving = room, name, rosterVersion, cancel, false
	s.gen++
	return ctx
}

// Exit cancels everything bound to the current room and returns its code.
func (s *Session) Exit() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.room
	if s.cancel != nil {
		s.cancel()
	}
	s.room, s.name, s.joinVersion, s.cancel, s.driving = "", "", 0, nil, false
	s.gen++
	return room
}

func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// JoinVersion is the roster version the session joined at. Older snapshots
// must not be read as a removal.
func (s *Session) JoinVersion() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinVersion
}

// Drive runs loop for the current room unless it already runs. loop gets
// the room's context and should return when it is done or no longer allowed.
func (s *Session) Drive(room string, loop func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.room != room || s.cancel == nil || s.driving {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	parent := s.cancel
	s.cancel = func() { cancel(); parent() }
	s.driving = true
	gen := s.gen
	s.mu.Unlock()

	go func() {
		loop(ctx)
		s.mu.Lock()
		if s.gen == gen {
			s.driving = false
		}
		s.mu.Unlock()
	}()
	return true
}

// SocketServer is a struct that contains the socket.io server and the
// sessions of the connected identities.
type SocketServer struct {
	Sio_server *socket.Server
	// Map to track identity -> session
	UserConnections map[string]*Session
	mutex           sync.RWMutex
}

func NewSocketServer() *SocketServer {
	return &SocketServer{
		UserConnections: make(map[string]*Session),
	}
}

// AddConnection registers a session. A newer socket of the same identity
// replaces the older one, which is returned so it can be closed.
func (s *SocketServer) AddConnection(sess *Session) *Session {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	old := s.UserConnections[sess.Identity]
	s.UserConnections[sess.Identity] = sess
	return old
}

// RemoveConnection drops sess if it is still the registered one.
func (s *SocketServer) RemoveConnection(sess *Session) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if cur, ok := s.UserConnections[sess.Identity]; ok && cur == sess {
		delete(s.UserConnections, sess.Identity)
	}
}

func (s *SocketServer) GetConnection(identity string) (*Session, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	sess, exists := s.UserConnections[identity]
	return sess, exists
}

// InRoom returns the sessions sitting in room.
func (s *SocketServer) InRoom(room string) []*Session {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var out []*Session
	for _, sess := range s.UserConnections {
		if sess.Room() == room {
			out = append(out, sess)
		}
	}
	return out
}
