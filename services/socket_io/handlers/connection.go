package handlers

import (
	"context"

	socketio_types "Mobius/services/socket_io/types"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/v2/socket"
)

// HandleDisconnecting stops heartbeats and loops of the socket. The seat is
// kept: closing a tab is not leaving, and the presence timeout marks the
// player offline if the withdraw below gets lost.
func HandleDisconnecting(svc *Services, sess *socketio_types.Session, sio *socketio_types.SocketServer) func(args ...interface{}) {
	return func(args ...interface{}) {
		log.Info().Msgf("[DISCONNECT] Socket %s of %s disconnecting", sess.Client.Id(), sess.Identity)

		if room := sess.Exit(); room != "" {
			sess.Client.Leave(socket.Room(room))
			svc.Presence.Withdraw(context.Background(), room, sess.Identity)
		}

		// Finally remove connection from map
		sio.RemoveConnection(sess)
		log.Info().Msgf("[DISCONNECT-DONE] %s disconnected", sess.Identity)
	}
}
