package controllers

import (
	"net/http"

	"Mobius/middleware"
	"Mobius/services/presence"
	"Mobius/services/rooms"
	"Mobius/services/stages"
	"Mobius/utils"

	"github.com/gin-gonic/gin"
)

type RoomController struct {
	Rooms    *rooms.Service
	Stages   *stages.Service
	Presence *presence.Tracker
}

type joinRequest struct {
	Name string `json:"name" binding:"required"`
}

type readyRequest struct {
	Ready bool `json:"ready"`
}

type kickRequest struct {
	Identity string `json:"identity" binding:"required"`
}

type variantRequest struct {
	Variant int `json:"variant" binding:"required"`
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid body: " + err.Error(), "code": "BadRequest"})
}

// NewRoomCode
// @Summary Generate a free room code
// @Tags rooms
// @Produce json
// @Success 200 {object} object{code=string}
// @Failure 503 {object} object{error=string,code=string,retry=bool}
// @Router /rooms [post]
func (rc *RoomController) NewRoomCode(c *gin.Context) {
	code, err := rc.Rooms.NewCode(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

// ResolveRoom
// @Summary Get or create a room
// @Description Creating a room that already exists just returns it.
// @Tags rooms
// @Produce json
// @Param code path string true "Room code (4-6 letters or digits)"
// @Success 200 {object} object{room=object,created=bool}
// @Failure 400 {object} object{error=string,code=string}
// @Router /rooms/{code} [put]
func (rc *RoomController) ResolveRoom(c *gin.Context) {
	room, created, err := rc.Rooms.ResolveRoom(c.Request.Context(), c.Param("code"), middleware.CurrentIdentity(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room": gin.H{
			"code":       room.Code,
			"variant":    room.Variant,
			"created_at": room.CreatedAt,
		},
		"created": created,
	})
}

// GetRoster
// @Summary Current roster of a room
// @Description When the store is down the last cached roster is returned with stale=true.
// @Tags rooms
// @Produce json
// @Param code path string true "Room code"
// @Success 200 {object} object{roster=object,stale=bool}
// @Failure 404 {object} object{error=string,code=string}
// @Router /rooms/{code} [get]
func (rc *RoomController) GetRoster(c *gin.Context) {
	snap, stale, err := rc.Rooms.Roster(c.Request.Context(), c.Param("code"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roster": snap, "stale": stale})
}

// JoinRoom
// @Summary Take a seat in a room
// @Description A returning identity gets its seat back. A name held by someone else fails with 409.
// @Tags rooms
// @Accept json
// @Produce json
// @Param code path string true "Room code"
// @Param body body joinRequest true "Display name"
// @Success 200 {object} object{player=object,roster=object}
// @Failure 409 {object} object{error=string,code=string}
// @Router /rooms/{code}/join [post]
func (rc *RoomController) JoinRoom(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, _, err := rc.Rooms.ResolveRoom(ctx, c.Param("code"), middleware.CurrentIdentity(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	player, snap, err := rc.Rooms.Join(ctx, c.Param("code"), middleware.CurrentIdentity(c), req.Name)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": player, "roster": snap})
}

// LeaveRoom
// @Summary Give up the seat
// @Tags rooms
// @Produce json
// @Param code path string true "Room code"
// @Success 200 {object} object{roster=object}
// @Router /rooms/{code}/leave [post]
func (rc *RoomController) LeaveRoom(c *gin.Context) {
	ctx := c.Request.Context()
	id := middleware.CurrentIdentity(c)
	snap, err := rc.Rooms.Leave(ctx, c.Param("code"), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if rc.Presence != nil {
		rc.Presence.Withdraw(ctx, snap.Room, id)
	}
	c.JSON(http.StatusOK, gin.H{"roster": snap})
}

// SetReady
// @Summary Toggle the ready flag
// @Tags rooms
// @Accept json
// @Produce json
// @Param code path string true "Room code"
// @Param body body readyRequest true "Ready flag"
// @Success 200 {object} object{roster=object}
// @Failure 403 {object} object{error=string,code=string}
// @Router /rooms/{code}/ready [put]
func (rc *RoomController) SetReady(c *gin.Context) {
	var req readyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := rc.Rooms.SetReady(c.Request.Context(), c.Param("code"), middleware.CurrentIdentity(c), req.Ready)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roster": snap})
}

// KickPlayer
// @Summary Remove a player (host only)
// @Tags rooms
// @Accept json
// @Produce json
// @Param code path string true "Room code"
// @Param body body kickRequest true "Identity to remove"
// @Success 200 {object} object{roster=object}
// @Failure 403 {object} object{error=string,code=string}
// @Router /rooms/{code}/kick [post]
func (rc *RoomController) KickPlayer(c *gin.Context) {
	var req kickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := rc.Rooms.Kick(c.Request.Context(), c.Param("code"), middleware.CurrentIdentity(c), req.Identity)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roster": snap})
}

// SelectVariant
// @Summary Select the case file (host only)
// @Description Changing it during a match restarts the match at round 1.
// @Tags rooms
// @Accept json
// @Produce json
// @Param code path string true "Room code"
// @Param body body variantRequest true "Variant 1-4"
// @Success 200 {object} object{roster=object,state=object}
// @Failure 403 {object} object{error=string,code=string}
// @Router /rooms/{code}/variant [put]
func (rc *RoomController) SelectVariant(c *gin.Context) {
	var req variantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, st, err := rc.Stages.SelectVariant(c.Request.Context(), c.Param("code"), middleware.CurrentIdentity(c), req.Variant)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roster": snap, "state": st})
}

// Heartbeat
// @Summary Signal presence and read who is online
// @Description A presence outage answers 200 with degraded=true and nobody online.
// @Tags presence
// @Produce json
// @Param code path string true "Room code"
// @Success 200 {object} object{online=[]object,degraded=bool}
// @Router /rooms/{code}/presence [post]
func (rc *RoomController) Heartbeat(c *gin.Context) {
	ctx := c.Request.Context()
	player, err := rc.Rooms.Member(ctx, c.Param("code"), middleware.CurrentIdentity(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	// a failed beat shows up as degraded in the observation below
	_ = rc.Presence.Beat(ctx, player.RoomCode, player.Identity, player.DisplayName)
	rc.observe(c, player.RoomCode)
}

// GetPresence
// @Summary Who is online in a room
// @Tags presence
// @Produce json
// @Param code path string true "Room code"
// @Success 200 {object} object{online=[]object,degraded=bool}
// @Router /rooms/{code}/presence [get]
func (rc *RoomController) GetPresence(c *gin.Context) {
	code, err := rooms.NormalizeCode(c.Param("code"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	rc.observe(c, code)
}

func (rc *RoomController) observe(c *gin.Context, code string) {
	snap, _ := rc.Presence.Observe(c.Request.Context(), code)
	c.JSON(http.StatusOK, gin.H{"room": code, "online": snap.Online, "degraded": snap.Degraded, "observed_at": snap.ObservedAt})
}
