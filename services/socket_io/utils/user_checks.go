package socketio_utils

import (
	"Mobius/services/identity"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/v2/socket"
)

// VerifyConnection reads the identity out of the handshake. A signed token
// ("token", optionally with the "Bearer " prefix) is preferred; a bare device
// id ("device_id") is accepted as the trusted fallback.
func VerifyConnection(client *socket.Socket, tokens *identity.TokenManager) (string, bool) {
	authData, ok := client.Handshake().Auth.(map[string]interface{})
	if !ok {
		log.Debug().Msgf("[SOCKET-AUTH] No auth data from %s", client.Id())
		client.Emit("error", gin.H{"error": "Authentication failed: missing auth data", "code": "InvalidIdentity"})
		return "", false
	}

	if token, exists := authData["token"].(string); exists && token != "" && tokens != nil {
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}
		id, err := tokens.Verify(token)
		if err != nil {
			log.Debug().Err(err).Msgf("[SOCKET-AUTH] Bad token from %s", client.Id())
			client.Emit("error", gin.H{"error": "Authentication failed: " + err.Error(), "code": "InvalidToken"})
			return "", false
		}
		return id, true
	}

	if id, exists := authData["device_id"].(string); exists && identity.Valid(id) {
		return id, true
	}

	client.Emit("error", gin.H{"error": "Authentication failed: missing token or device_id", "code": "InvalidIdentity"})
	return "", false
}
