package handlers

import (
	"context"

	socketio_types "Mobius/services/socket_io/types"

	"github.com/gin-gonic/gin"
)

// HandleChatMessage broadcasts to the room. Args: {"message": "..."}
func HandleChatMessage(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "chat_message")
		if !ok {
			return
		}
		if !sess.Limiter.Allow() {
			sess.Client.Emit("error", gin.H{"error": "slow down", "code": "RateLimited", "event": "chat_message"})
			return
		}
		if _, err := svc.Chat.Send(context.Background(), room, sess.Identity, argString(argMap(args), "message")); err != nil {
			emitError(sess.Client, "chat_message", err)
		}
	}
}

// HandleWhisper sends a private message, one per round.
// Args: {"to": "identity", "message": "..."}
func HandleWhisper(svc *Services, sess *socketio_types.Session) func(args ...interface{}) {
	return func(args ...interface{}) {
		room, ok := currentRoom(sess, "whisper")
		if !ok {
			return
		}
		if !sess.Limiter.Allow() {
			sess.Client.Emit("error", gin.H{"error": "slow down", "code": "RateLimited", "event": "whisper"})
			return
		}
		m := argMap(args)
		if _, err := svc.Chat.Whisper(context.Background(), room, sess.Identity, argString(m, "to"), argString(m, "message")); err != nil {
			emitError(sess.Client, "whisper", err)
		}
	}
}
