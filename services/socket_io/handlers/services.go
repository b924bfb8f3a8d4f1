package handlers

import (
	"context"
	"errors"
	"time"

	"Mobius/services/chat"
	"Mobius/services/content"
	"Mobius/services/presence"
	"Mobius/services/rooms"
	"Mobius/services/stages"
	socketio_types "Mobius/services/socket_io/types"
	"Mobius/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/v2/socket"
)

// Services is everything the socket handlers act on.
type Services struct {
	Rooms        *rooms.Service
	Stages       *stages.Service
	Presence     *presence.Tracker
	Chat         *chat.Service
	Content      *content.Service
	HostInterval time.Duration
}

// emitError sends the error event with the same code the REST API uses.
// Authorization failures are not surfaced: for the client they are a no-op.
func emitError(client *socket.Socket, event string, err error) {
	log.Debug().Err(err).Msgf("[SOCKET-ERROR] %s failed for socket %s", event, client.Id())
	if !surfaced(err) {
		return
	}
	_, code := utils.ErrorStatus(err)
	client.Emit("error", gin.H{"error": err.Error(), "code": code, "event": event})
}

func surfaced(err error) bool {
	return !errors.Is(err, rooms.ErrNotAuthorized)
}

// argMap reads the first event argument as an object.
func argMap(args []interface{}) map[string]interface{} {
	if len(args) == 0 {
		return map[string]interface{}{}
	}
	if m, ok := args[0].(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func argString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func argInt(m map[string]interface{}, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

// argPlace reads a place id. Missing or non-positive ids name no place.
func argPlace(m map[string]interface{}) (uint, error) {
	place, ok := argInt(m, "place")
	if !ok || place <= 0 {
		return 0, content.ErrPlaceNotFound
	}
	return uint(place), nil
}

func argBool(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// currentRoom is the room the session sits in, or an error event.
func currentRoom(sess *socketio_types.Session, event string) (string, bool) {
	room := sess.Room()
	if room == "" {
		emitError(sess.Client, event, rooms.ErrNotMember)
		return "", false
	}
	return room, true
}

// DriveIfHost starts the timeout loop of room on this session when its
// identity is the host. It stops by itself once the identity loses the
// host seat.
func DriveIfHost(svc *Services, sess *socketio_types.Session, room, host string) {
	if host != sess.Identity {
		return
	}
	sess.Drive(room, func(ctx context.Context) {
		stages.RunHostLoop(ctx, svc.Stages, room, sess.Identity, svc.HostInterval)
	})
}
