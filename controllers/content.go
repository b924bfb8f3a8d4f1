package controllers

import (
	"net/http"
	"strconv"

	game_constants "Mobius/constants/game"
	"Mobius/middleware"
	"Mobius/services/content"
	"Mobius/utils"

	"github.com/gin-gonic/gin"
)

type ContentController struct {
	Content *content.Service
}

// GetCase
// @Summary Case file of a variant with its places
// @Tags content
// @Produce json
// @Param variant path int true "Variant 1-4"
// @Success 200 {object} object{case=object,places=[]object}
// @Failure 404 {object} object{error=string,code=string}
// @Router /content/{variant} [get]
func (cc *ContentController) GetCase(c *gin.Context) {
	variant, err := strconv.Atoi(c.Param("variant"))
	if err != nil || !game_constants.ValidVariant(variant) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid variant", "code": "InvalidVariant"})
		return
	}
	ctx := c.Request.Context()
	cs, err := cc.Content.Case(ctx, variant)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	places, err := cc.Content.Places(ctx, variant)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"case": cs, "places": places})
}

// GetSecret
// @Summary The caller's role and secret in a room
// @Tags content
// @Produce json
// @Param code path string true "Room code"
// @Success 200 {object} object{secret=object}
// @Failure 403 {object} object{error=string,code=string}
// @Router /rooms/{code}/secret [get]
func (cc *ContentController) GetSecret(c *gin.Context) {
	secret, err := cc.Content.Secret(c.Request.Context(), c.Param("code"), middleware.CurrentIdentity(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret})
}

// OpenPlace
// @Summary Start looking at a place during the clue stage
// @Description At most two players can look at the same place at once.
// @Tags content
// @Produce json
// @Param code path string true "Room code"
// @Param place path int true "Place id"
// @Success 200 {object} object{viewers=[]string}
// @Failure 409 {object} object{error=string,code=string}
// @Router /rooms/{code}/places/{place}/open [post]
func (cc *ContentController) OpenPlace(c *gin.Context) {
	placeID, ok := placeParam(c)
	if !ok {
		return
	}
	viewers, err := cc.Content.OpenPlace(c.Request.Context(), c.Param("code"), middleware.CurrentIdentity(c), placeID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewers": viewers})
}

// ClosePlace
// @Summary Stop looking at a place
// @Tags content
// @Produce json
// @Param code path string true "Room code"
// @Param place path int true "Place id"
// @Success 200 {object} object{message=string}
// @Router /rooms/{code}/places/{place}/open [delete]
func (cc *ContentController) ClosePlace(c *gin.Context) {
	placeID, ok := placeParam(c)
	if !ok {
		return
	}
	if err := cc.Content.ClosePlace(c.Request.Context(), c.Param("code"), middleware.CurrentIdentity(c), placeID); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Place closed"})
}

func placeParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("place"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid place id", "code": "BadRequest"})
		return 0, false
	}
	return uint(id), true
}
