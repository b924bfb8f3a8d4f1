package controllers

import (
	"net/http"
	"time"

	"Mobius/middleware"
	"Mobius/services/stages"
	"Mobius/utils"

	"github.com/gin-gonic/gin"
)

type MatchController struct {
	Stages *stages.Service
}

type startRequest struct {
	Force bool `json:"force"`
}

type voteRequest struct {
	Target string `json:"target" binding:"required"`
}

func stateBody(st *stages.State, now time.Time) gin.H {
	body := gin.H{"state": st}
	if st.Running() && st.Duration() > 0 {
		deadline, _ := st.Deadline()
		left := deadline.Sub(now)
		if left < 0 {
			left = 0
		}
		body["seconds_left"] = int(left.Seconds())
	}
	return body
}

// StartMatch
// @Summary Start the match (host only)
// @Description Everyone but the host must be ready unless force is set. Starting a finished match begins a new one.
// @Tags match
// @Accept json
// @Produce json
// @Param code path string true "Room code"
// @Param body body startRequest false "Skip the ready check"
// @Success 200 {object} object{state=object,started=bool}
// @Failure 409 {object} object{error=string,code=string}
// @Router /rooms/{code}/match [post]
func (mc *MatchController) StartMatch(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	st, started, err := mc.Stages.Start(c.Request.Context(), c.Param("code"), middleware.CurrentIdentity(c), req.Force)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	body := stateBody(st, time.Now())
	body["started"] = started
	c.JSON(http.StatusOK, body)
}

// GetMatch
// @Summary Current stage and round
// @Tags match
// @Produce json
// @Param code path string true "Room code"
// @Success 200 {object} object{state=object,stale=bool,seconds_left=int}
// @Router /rooms/{code}/match [get]
func (mc *MatchController) GetMatch(c *gin.Context) {
	st, stale, err := mc.Stages.State(c.Request.Context(), c.Param("code"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	body := stateBody(st, time.Now())
	body["stale"] = stale
	c.JSON(http.StatusOK, body)
}

// AdvanceStage
// @Summary End the current stage now (host only)
// @Tags match
// @Produce json
// @Param code path string true "Room code"
// @Success 200 {object} object{state=object,changed=bool}
// @Router /rooms/{code}/match/advance [post]
func (mc *MatchController) AdvanceStage(c *gin.Context) {
	st, changed, err := mc.Stages.Advance(c.Request.Context(), c.Param("code"), middleware.CurrentIdentity(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	body := stateBody(st, time.Now())
	body["changed"] = changed
	c.JSON(http.StatusOK, body)
}

// TickStage
// @Summary Apply the timeout transition if the stage is due (host only)
// @Description Clients without a socket connection drive their room with this.
// @Tags match
// @Produce json
// @Param code path string true "Room code"
// @Success 200 {object} object{state=object,changed=bool}
// @Router /rooms/{code}/match/tick [post]
func (mc *MatchController) TickStage(c *gin.Context) {
	st, changed, err := mc.Stages.Tick(c.Request.Context(), c.Param("code"), middleware.CurrentIdentity(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	body := stateBody(st, time.Now())
	body["changed"] = changed
	c.JSON(http.StatusOK, body)
}

// CastVote
// @Summary Vote for the accused in the verdict stage
// @Tags match
// @Accept json
// @Produce json
// @Param code path string true "Room code"
// @Param body body voteRequest true "Accused identity"
// @Success 200 {object} object{state=object}
// @Failure 409 {object} object{error=string,code=string}
// @Router /rooms/{code}/votes [post]
func (mc *MatchController) CastVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := mc.Stages.CastVote(c.Request.Context(), c.Param("code"), middleware.CurrentIdentity(c), req.Target)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stateBody(st, time.Now()))
}

// GetVotes
// @Summary Ballot count of the current verdict vote
// @Tags match
// @Produce json
// @Param code path string true "Room code"
// @Success 200 {object} object{votes=object}
// @Router /rooms/{code}/votes [get]
func (mc *MatchController) GetVotes(c *gin.Context) {
	tally, err := mc.Stages.Tally(c.Request.Context(), c.Param("code"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": tally})
}
