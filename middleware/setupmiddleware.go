package middleware

import (
	"net/http"

	"Mobius/config"
	"Mobius/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const sessionName = "mobius"

func SetUpMiddleware(r *gin.Engine, settings *config.Settings) {
	r.Use(gin.Recovery(), utils.Logger(), utils.ErrorHandler())

	store := cookie.NewStore([]byte(settings.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(settings.TokenTTL.Seconds()),
		Secure:   settings.UseHTTPS,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"*"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))
}
