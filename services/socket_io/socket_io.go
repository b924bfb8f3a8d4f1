package socket_io

import (
	"context"
	"time"

	"Mobius/services/chat"
	"Mobius/services/distribution"
	"Mobius/services/identity"
	"Mobius/services/socket_io/handlers"
	socketio_types "Mobius/services/socket_io/types"
	socketio_utils "Mobius/services/socket_io/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	eio_log "github.com/zishang520/engine.io/v2/log"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

type MySocketServer socketio_types.SocketServer

// Start mounts the socket.io endpoint on router and registers the room
// events. Distributed events are pushed to clients by Run.
func (sio *MySocketServer) Start(router *gin.Engine, svc *handlers.Services, tokens *identity.TokenManager, debug bool) {
	eio_log.DEBUG = debug
	c := socket.DefaultServerOptions()
	c.SetServeClient(true)
	// NOTE: higher ping interval and timeout to 1) reduce network load and 2) support slower networks
	c.SetPingInterval(5 * time.Second)
	c.SetPingTimeout(3 * time.Second)
	c.SetMaxHttpBufferSize(1000000)
	c.SetConnectTimeout(10 * time.Second)
	c.SetTransports(types.NewSet("polling", "websocket"))
	c.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	// KEY: the map must exist before the first connection
	sio.UserConnections = make(map[string]*socketio_types.Session)
	server := (*socketio_types.SocketServer)(sio)

	sio.Sio_server = socket.NewServer(nil, nil)
	sio.Sio_server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)

		id, ok := socketio_utils.VerifyConnection(client, tokens)
		if !ok {
			client.Disconnect(true)
			return
		}

		sess := &socketio_types.Session{Identity: id, Client: client, Limiter: chat.NewLimiter()}
		if old := server.AddConnection(sess); old != nil && old.Client != client {
			log.Info().Msgf("[SOCKET] %s reconnected, closing socket %s", id, old.Client.Id())
			old.Exit()
			old.Client.Disconnect(true)
		}
		log.Info().Msgf("[SOCKET] %s connected on socket %s", id, client.Id())
		client.Emit("identity", gin.H{"identity": id})

		client.On("join_room", handlers.HandleJoinRoom(svc, sess))
		client.On("leave_room", handlers.HandleLeaveRoom(svc, sess))
		client.On("toggle_ready", handlers.HandleToggleReady(svc, sess))

		// Host only
		client.On("kick_player", handlers.HandleKickPlayer(svc, sess))
		client.On("select_variant", handlers.HandleSelectVariant(svc, sess))
		client.On("start_match", handlers.HandleStartMatch(svc, sess))
		client.On("advance_stage", handlers.HandleAdvanceStage(svc, sess))

		client.On("cast_verdict", handlers.HandleCastVerdict(svc, sess))
		client.On("get_state", handlers.HandleGetState(svc, sess))
		client.On("heartbeat", handlers.HandleHeartbeat(svc, sess))
		client.On("open_place", handlers.HandleOpenPlace(svc, sess))
		client.On("close_place", handlers.HandleClosePlace(svc, sess))
		client.On("chat_message", handlers.HandleChatMessage(svc, sess))
		client.On("whisper", handlers.HandleWhisper(svc, sess))

		// NOTE: stops heartbeats and loops, the seat stays
		client.On("disconnecting", handlers.HandleDisconnecting(svc, sess, server))
	})

	router.POST("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))
	router.GET("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))

	log.Info().Msg("[SOCKET] Socket server started")
}

// Run pushes distributed room events to the connected sockets until ctx is
// done.
func (sio *MySocketServer) Run(ctx context.Context, sub distribution.Subscriber, svc *handlers.Services) error {
	return newFanout((*socketio_types.SocketServer)(sio), svc).run(ctx, sub)
}

// Close disconnects every client.
func (sio *MySocketServer) Close() {
	if sio.Sio_server != nil {
		sio.Sio_server.Close(nil)
	}
}
