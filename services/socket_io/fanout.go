package socket_io

import (
	"context"

	redis_models "Mobius/models/redis"
	"Mobius/services/distribution"
	"Mobius/services/rooms"
	"Mobius/services/socket_io/handlers"
	socketio_types "Mobius/services/socket_io/types"
	"Mobius/services/stages"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/v2/socket"
)

// fanout applies every distributed event to the local replicas and pushes
// what is new to the sockets of this instance.
type fanout struct {
	sio     *socketio_types.SocketServer
	svc     *handlers.Services
	mirror  *distribution.Mirror
	rosters *rooms.Replica
	states  *stages.Replica
}

func newFanout(sio *socketio_types.SocketServer, svc *handlers.Services) *fanout {
	return &fanout{
		sio:     sio,
		svc:     svc,
		mirror:  distribution.NewMirror(),
		rosters: rooms.NewReplica(),
		states:  stages.NewReplica(),
	}
}

// run consumes sub until ctx is done or the stream closes.
func (f *fanout) run(ctx context.Context, sub distribution.Subscriber) error {
	events, err := sub.SubscribeAll(ctx)
	if err != nil {
		return err
	}
	log.Info().Msg("[FANOUT] Listening to room events")
	for ev := range events {
		if !f.mirror.Apply(ev) {
			continue
		}
		f.dispatch(ev)
	}
	return ctx.Err()
}

func (f *fanout) dispatch(ev distribution.Event) {
	room := socket.Room(ev.Room)
	switch ev.Kind {
	case distribution.KindRoster:
		var snap redis_models.RosterSnapshot
		if err := ev.Decode(&snap); err != nil {
			log.Warn().Err(err).Msg("[FANOUT] Bad roster event")
			return
		}
		if _, applied := f.rosters.Apply(&snap); !applied {
			return
		}
		f.emit(room, "roster_sync", &snap)
		f.reconcile(&snap)

	case distribution.KindKick:
		var notice redis_models.KickNotice
		if err := ev.Decode(&notice); err != nil {
			log.Warn().Err(err).Msg("[FANOUT] Bad kick event")
			return
		}
		if sess, ok := f.sio.GetConnection(notice.Identity); ok && sess.Room() == notice.Room {
			f.evict(sess, notice.Room, notice.By)
		}
		f.emit(room, "player_kicked", gin.H{"identity": notice.Identity, "display_name": notice.DisplayName})

	case distribution.KindState:
		var st stages.State
		if err := ev.Decode(&st); err != nil {
			log.Warn().Err(err).Msg("[FANOUT] Bad state event")
			return
		}
		if !f.states.Apply(st) {
			return
		}
		f.emit(room, "state_sync", st)
		if st.Finished {
			f.emit(room, "match_finished", gin.H{"room": st.Room, "epoch": st.Epoch, "round": st.Round})
		}

	case distribution.KindPresence:
		var snap redis_models.PresenceSnapshot
		if err := ev.Decode(&snap); err != nil {
			return
		}
		f.emit(room, "presence_sync", &snap)

	case distribution.KindChat:
		var msg redis_models.ChatMessage
		if err := ev.Decode(&msg); err != nil {
			return
		}
		if msg.To == "" {
			f.emit(room, "chat_message", &msg)
			return
		}
		for _, id := range []string{msg.From, msg.To} {
			if sess, ok := f.sio.GetConnection(id); ok && sess.Client != nil && sess.Room() == msg.Room {
				sess.Client.Emit("whisper", &msg)
			}
		}
	}
}

// reconcile handles what a roster implies for local sessions: absence from
// a newer roster is a removal (polling transports carry no kick notices),
// and a host seat may have moved here.
func (f *fanout) reconcile(snap *redis_models.RosterSnapshot) {
	for _, sess := range f.sio.InRoom(snap.Room) {
		if snap.Seat(sess.Identity) == 0 {
			if snap.Version > sess.JoinVersion() {
				f.evict(sess, snap.Room, "")
			}
			continue
		}
		handlers.DriveIfHost(f.svc, sess, snap.Room, snap.HostIdentity)
	}
}

// evict tears down everything the session had in the room.
func (f *fanout) evict(sess *socketio_types.Session, room, by string) {
	if sess.Exit() == "" {
		return
	}
	f.svc.Presence.Withdraw(context.Background(), room, sess.Identity)
	if sess.Client != nil {
		sess.Client.Leave(socket.Room(room))
		sess.Client.Emit("kicked", gin.H{"room": room, "by": by})
	}
	log.Info().Msgf("[KICK] Session of %s in %s closed", sess.Identity, room)
}

func (f *fanout) emit(room socket.Room, event string, payload interface{}) {
	if f.sio.Sio_server == nil {
		return
	}
	f.sio.Sio_server.To(room).Emit(event, payload)
}
