package handlers

import (
	"context"

	socketio_types "Mobius/services/socket_io/types"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/v2/socket"
)

// HandleJoinRoom seats the identity in a room (creating it if needed), puts
// the socket in the room channel and starts its heartbeat.
// Args: {"room": "ABCD", "name": "Ada"}
func HandleJoinRoom(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		m := argMap(args)
		code, name := argString(m, "room"), argString(m, "name")
		log.Info().Msgf("[JOIN] %s asks to join %q as %q", sess.Identity, code, name)

		ctx := context.Background()
		room, _, err := svc.Rooms.ResolveRoom(ctx, code, sess.Identity)
		if err != nil {
			emitError(sess.Client, "join_room", err)
			return
		}
		player, roster, err := svc.Rooms.Join(ctx, room.Code, sess.Identity, name)
		if err != nil {
			emitError(sess.Client, "join_room", err)
			return
		}

		if prev := sess.Room(); prev != "" && prev != room.Code {
			sess.Client.Leave(socket.Room(prev))
			svc.Presence.Withdraw(ctx, prev, sess.Identity)
		}
		roomCtx := sess.Enter(room.Code, player.DisplayName, roster.Version)
		sess.Client.Join(socket.Room(room.Code))

		if err := svc.Presence.Announce(roomCtx, room.Code, sess.Identity, player.DisplayName); err != nil {
			log.Warn().Err(err).Msgf("[JOIN] Presence of %s in %s degraded", sess.Identity, room.Code)
		}
		DriveIfHost(svc, sess, room.Code, roster.HostIdentity)

		state, _, err := svc.Stages.State(ctx, room.Code)
		if err != nil {
			log.Warn().Err(err).Msgf("[JOIN] No state for %s", room.Code)
		}
		log.Info().Msgf("[JOIN-SUCCESS] %s seated in %s as %s", sess.Identity, room.Code, player.DisplayName)
		sess.Client.Emit("room_joined", gin.H{
			"room":   room.Code,
			"player": player,
			"roster": roster,
			"state":  state,
		})
	}
}

// HandleLeaveRoom gives up the seat and stops heartbeats right away.
func HandleLeaveRoom(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "leave_room")
		if !ok {
			return
		}
		// exit first so our own roster update is not taken for a kick
		ctx := context.Background()
		sess.Exit()
		sess.Client.Leave(socket.Room(room))
		svc.Presence.Withdraw(ctx, room, sess.Identity)
		if _, err := svc.Rooms.Leave(ctx, room, sess.Identity); err != nil {
			emitError(sess.Client, "leave_room", err)
			return
		}
		log.Info().Msgf("[LEAVE] %s left %s", sess.Identity, room)
		sess.Client.Emit("room_left", gin.H{"room": room})
	}
}

// HandleToggleReady sets the ready flag. Args: {"ready": true}
func HandleToggleReady(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "toggle_ready")
		if !ok {
			return
		}
		ready := argBool(argMap(args), "ready")
		if _, err := svc.Rooms.SetReady(context.Background(), room, sess.Identity, ready); err != nil {
			emitError(sess.Client, "toggle_ready", err)
		}
	}
}

// HandleKickPlayer removes a player. Host only. Args: {"identity": "..."}
func HandleKickPlayer(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "kick_player")
		if !ok {
			return
		}
		target := argString(argMap(args), "identity")
		if _, err := svc.Rooms.Kick(context.Background(), room, sess.Identity, target); err != nil {
			emitError(sess.Client, "kick_player", err)
			return
		}
		log.Info().Msgf("[KICK] %s kicked %s from %s", sess.Identity, target, room)
	}
}

// HandleSelectVariant changes the case file. Host only. Args: {"variant": 2}
func HandleSelectVariant(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "select_variant")
		if !ok {
			return
		}
		variant, _ := argInt(argMap(args), "variant")
		if _, _, err := svc.Stages.SelectVariant(context.Background(), room, sess.Identity, variant); err != nil {
			emitError(sess.Client, "select_variant", err)
		}
	}
}

// HandleHeartbeat is an explicit liveness signal on top of the automatic one.
func HandleHeartbeat(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "heartbeat")
		if !ok {
			return
		}
		if err := svc.Presence.Beat(context.Background(), room, sess.Identity, sess.Name()); err != nil {
			sess.Client.Emit("presence_sync", gin.H{"room": room, "online": []string{}, "degraded": true})
		}
	}
}
