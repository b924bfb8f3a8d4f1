package routes

import (
	"Mobius/controllers"
	"Mobius/middleware"
	"Mobius/services/content"
	"Mobius/services/identity"
	"Mobius/services/presence"
	"Mobius/services/rooms"
	"Mobius/services/stages"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps are the services the REST API is built on.
type Deps struct {
	Rooms    *rooms.Service
	Stages   *stages.Service
	Presence *presence.Tracker
	Content  *content.Service
	Tokens   *identity.TokenManager
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Deps) {
	identityController := &controllers.IdentityController{Tokens: d.Tokens}
	roomController := &controllers.RoomController{Rooms: d.Rooms, Stages: d.Stages, Presence: d.Presence}
	matchController := &controllers.MatchController{Stages: d.Stages}
	contentController := &controllers.ContentController{Content: d.Content}

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/")
	api.Use(middleware.Identity(d.Tokens))

	api.GET("/ping", controllers.Ping)

	api.POST("/identity", identityController.AcquireIdentity)

	api.GET("/content/:variant", contentController.GetCase)

	api.GET("/rooms/:code", roomController.GetRoster)

	api.GET("/rooms/:code/presence", roomController.GetPresence)

	api.GET("/rooms/:code/match", matchController.GetMatch)

	authenticated := api.Group("/")
	authenticated.Use(middleware.RequireIdentity)
	{
		authenticated.POST("/rooms", roomController.NewRoomCode)

		room := authenticated.Group("/rooms/:code")
		{
			room.PUT("", roomController.ResolveRoom)
			room.POST("/join", roomController.JoinRoom)
			room.POST("/leave", roomController.LeaveRoom)
			room.PUT("/ready", roomController.SetReady)
			room.POST("/kick", roomController.KickPlayer)
			room.PUT("/variant", roomController.SelectVariant)
			room.POST("/presence", roomController.Heartbeat)

			room.POST("/match", matchController.StartMatch)
			room.POST("/match/advance", matchController.AdvanceStage)
			room.POST("/match/tick", matchController.TickStage)
			room.POST("/votes", matchController.CastVote)
			room.GET("/votes", matchController.GetVotes)

			room.GET("/secret", contentController.GetSecret)
			room.POST("/places/:place/open", contentController.OpenPlace)
			room.DELETE("/places/:place/open", contentController.ClosePlace)
		}
	}
}
