package utils

import (
	"errors"
	"net/http"
	"time"

	"Mobius/services/chat"
	"Mobius/services/content"
	"Mobius/services/identity"
	"Mobius/services/presence"
	"Mobius/services/rooms"
	"Mobius/services/stages"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Logger logs method, path, status and latency of each request
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		status := c.Writer.Status()
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		} else if status >= http.StatusBadRequest {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Msg("[HTTP]")
	}
}

// ErrorHandler answers errors attached with c.Error by handlers that did not
// write a response themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		RespondError(c, c.Errors.Last().Err)
	}
}

// errorCodes maps domain errors to an HTTP status and a stable code that
// socket clients get too.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{rooms.ErrNameTaken, http.StatusConflict, "NameTaken"},
	{rooms.ErrNotAuthorized, http.StatusForbidden, "NotAuthorized"},
	{rooms.ErrStoreUnavailable, http.StatusServiceUnavailable, "StoreUnavailable"},
	{rooms.ErrRoomNotFound, http.StatusNotFound, "RoomNotFound"},
	{rooms.ErrNotMember, http.StatusForbidden, "NotMember"},
	{rooms.ErrInvalidCode, http.StatusBadRequest, "InvalidCode"},
	{rooms.ErrInvalidName, http.StatusBadRequest, "InvalidName"},
	{rooms.ErrInvalidIdentity, http.StatusUnauthorized, "InvalidIdentity"},
	{rooms.ErrInvalidVariant, http.StatusBadRequest, "InvalidVariant"},
	{stages.ErrNotStarted, http.StatusConflict, "NotStarted"},
	{stages.ErrNotAllReady, http.StatusConflict, "NotAllReady"},
	{stages.ErrMatchFinished, http.StatusConflict, "MatchFinished"},
	{stages.ErrWrongStage, http.StatusConflict, "WrongStage"},
	{stages.ErrInvalidTarget, http.StatusBadRequest, "InvalidTarget"},
	{presence.ErrPresenceDegraded, http.StatusOK, "PresenceDegraded"},
	{content.ErrNoContent, http.StatusNotFound, "NoContent"},
	{content.ErrPlaceNotFound, http.StatusNotFound, "PlaceNotFound"},
	{content.ErrPlaceBusy, http.StatusConflict, "PlaceBusy"},
	{chat.ErrChatClosed, http.StatusConflict, "ChatClosed"},
	{chat.ErrWhisperSpent, http.StatusTooManyRequests, "WhisperSpent"},
	{chat.ErrEmptyMessage, http.StatusBadRequest, "EmptyMessage"},
	{chat.ErrMessageTooLong, http.StatusBadRequest, "MessageTooLong"},
	{chat.ErrSelfWhisper, http.StatusBadRequest, "SelfWhisper"},
	{identity.ErrExpiredToken, http.StatusUnauthorized, "ExpiredToken"},
	{identity.ErrInvalidSignature, http.StatusUnauthorized, "InvalidToken"},
	{identity.ErrCorruptedToken, http.StatusUnauthorized, "InvalidToken"},
	{identity.ErrInvalidSigningAlg, http.StatusUnauthorized, "InvalidToken"},
	{identity.ErrTokenVerification, http.StatusUnauthorized, "InvalidToken"},
}

// ErrorStatus returns the HTTP status and code of err.
func ErrorStatus(err error) (int, string) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "Internal"
}

// RespondError writes err as {"error", "code"}. Store outages carry a retry
// hint.
func RespondError(c *gin.Context, err error) {
	status, code := ErrorStatus(err)
	body := gin.H{"error": err.Error(), "code": code}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "2")
		body["retry"] = true
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msgf("[HTTP-ERROR] %s %s", c.Request.Method, c.Request.URL.Path)
	}
	c.AbortWithStatusJSON(status, body)
}
