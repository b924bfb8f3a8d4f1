package controllers

import (
	"net/http"
	"strings"
	"time"

	"Mobius/services/identity"
	"Mobius/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type IdentityController struct {
	Tokens *identity.TokenManager
}

type identityRequest struct {
	DeviceID string `json:"device_id"`
}

// AcquireIdentity
// @Summary Get or create the device identity
// @Description Returns the identity bound to the caller. A device id sent in the body is adopted; otherwise the cookie session's identity is used, minting one on first visit. The token signs the identity for later requests and the socket handshake.
// @Tags identity
// @Accept json
// @Produce json
// @Param body body identityRequest false "Device id kept by the client"
// @Success 200 {object} object{identity=string,token=string,degraded=bool}
// @Failure 400 {object} object{error=string,code=string}
// @Router /identity [post]
func (ic *IdentityController) AcquireIdentity(c *gin.Context) {
	var req identityRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid body", "code": "BadRequest"})
			return
		}
	}

	store := identity.NewSessionStore(sessions.Default(c))
	var id string
	var degraded bool
	if req.DeviceID != "" {
		if !identity.Valid(req.DeviceID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid device id", "code": "InvalidIdentity"})
			return
		}
		id = strings.TrimSpace(req.DeviceID)
		if err := store.Save(id); err != nil {
			log.Warn().Err(err).Msg("[IDENTITY] Session not saved")
			degraded = true
		}
	} else {
		id, degraded = identity.NewProvider(store).GetOrCreateIdentity()
	}

	token, err := ic.Tokens.Issue(id, time.Now())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": id, "token": token, "degraded": degraded})
}
