package handlers

import (
	"context"

	socketio_types "Mobius/services/socket_io/types"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HandleStartMatch starts the match. Host only. Args: {"force": false}
func HandleStartMatch(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "start_match")
		if !ok {
			return
		}
		force := argBool(argMap(args), "force")
		st, started, err := svc.Stages.Start(context.Background(), room, sess.Identity, force)
		if err != nil {
			emitError(sess.Client, "start_match", err)
			return
		}
		if !started {
			// already running, the caller may just have missed it
			sess.Client.Emit("state_sync", st)
		}
		log.Info().Msgf("[MATCH] %s start in %s: started=%v", sess.Identity, room, started)
	}
}

// HandleAdvanceStage ends the current stage. Host only.
func HandleAdvanceStage(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "advance_stage")
		if !ok {
			return
		}
		if _, _, err := svc.Stages.Advance(context.Background(), room, sess.Identity); err != nil {
			emitError(sess.Client, "advance_stage", err)
		}
	}
}

// HandleCastVerdict records a verdict ballot. Args: {"target": "identity"}
func HandleCastVerdict(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "cast_verdict")
		if !ok {
			return
		}
		target := argString(argMap(args), "target")
		st, err := svc.Stages.CastVote(context.Background(), room, sess.Identity, target)
		if err != nil {
			emitError(sess.Client, "cast_verdict", err)
			return
		}
		sess.Client.Emit("verdict_cast", gin.H{"room": room, "round": st.Round, "target": target})
	}
}

// HandleGetState answers with the current state, for clients that just
// reconnected.
func HandleGetState(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "get_state")
		if !ok {
			return
		}
		st, stale, err := svc.Stages.State(context.Background(), room)
		if err != nil {
			emitError(sess.Client, "get_state", err)
			return
		}
		if stale {
			log.Warn().Msgf("[MATCH] Serving cached state of %s", room)
		}
		sess.Client.Emit("state_sync", st)
	}
}

// HandleOpenPlace takes a viewer slot on a place during the clue stage.
// Args: {"place": 3}
func HandleOpenPlace(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "open_place")
		if !ok {
			return
		}
		place, err := argPlace(argMap(args))
		if err != nil {
			emitError(sess.Client, "open_place", err)
			return
		}
		viewers, err := svc.Content.OpenPlace(context.Background(), room, sess.Identity, place)
		if err != nil {
			emitError(sess.Client, "open_place", err)
			return
		}
		sess.Client.Emit("place_opened", gin.H{"place": place, "viewers": viewers})
	}
}

func HandleClosePlace(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "close_place")
		if !ok {
			return
		}
		place, err := argPlace(argMap(args))
		if err != nil {
			emitError(sess.Client, "close_place", err)
			return
		}
		if err := svc.Content.ClosePlace(context.Background(), room, sess.Identity, place); err != nil {
			emitError(sess.Client, "close_place", err)
		}
	}
}
