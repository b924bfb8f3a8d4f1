package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Mobius/middleware"
	redis_models "Mobius/models/redis"
	"Mobius/services/identity"
	"Mobius/services/redis"
	"Mobius/services/rooms"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestPing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ping", Ping)

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", decode(t, w)["message"])
}

func identityRouter(tokens *identity.TokenManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("mobius", cookie.NewStore([]byte("test-key"))))
	ic := &IdentityController{Tokens: tokens}
	router.POST("/identity", ic.AcquireIdentity)
	return router
}

func TestAcquireIdentity(t *testing.T) {
	tokens := identity.NewTokenManager("secret", time.Hour)
	router := identityRouter(tokens)

	t.Run("Mints and keeps the identity in the session", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/identity", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		id := body["identity"].(string)
		assert.NotEmpty(t, id)
		assert.Equal(t, false, body["degraded"])

		verified, err := tokens.Verify(body["token"].(string))
		require.NoError(t, err)
		assert.Equal(t, id, verified)

		// same cookie, same identity
		req2, _ := http.NewRequest(http.MethodPost, "/identity", nil)
		for _, c := range w.Result().Cookies() {
			req2.AddCookie(c)
		}
		w2 := httptest.NewRecorder()
		router.ServeHTTP(w2, req2)
		assert.Equal(t, id, decode(t, w2)["identity"])
	})

	t.Run("Adopts the device id sent by the client", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/identity", strings.NewReader(`{"device_id":"device-42"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "device-42", decode(t, w)["identity"])
	})

	t.Run("Rejects a blank device id", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/identity", strings.NewReader(`{"device_id":"   "}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "InvalidIdentity", decode(t, w)["code"])
	})
}

// brokenStore returns a gorm handle whose every query fails like a dropped
// database connection.
func brokenStore(t *testing.T) *gorm.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectQuery(`SELECT \* FROM "rooms"`).WillReturnError(errors.New("connection refused"))

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB
}

func rosterRouter(t *testing.T, withCache bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rc, err := redis.InitRedis(mr.Addr(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { redis.CloseRedis(rc) })

	if withCache {
		require.NoError(t, rc.SaveRosterSnapshot(context.Background(), &redis_models.RosterSnapshot{
			Room:         "ABCD",
			Version:      3,
			Variant:      1,
			HostIdentity: "host",
			Players:      []redis_models.PlayerView{{Identity: "host", DisplayName: "Host", IsHost: true}},
		}))
	}

	rc2 := &RoomController{Rooms: rooms.NewService(brokenStore(t), nil, rc)}
	router := gin.New()
	router.GET("/rooms/:code", rc2.GetRoster)
	return router
}

func TestGetRosterFallsBackToCache(t *testing.T) {
	router := rosterRouter(t, true)

	req, _ := http.NewRequest(http.MethodGet, "/rooms/abcd", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["stale"])
	roster := body["roster"].(map[string]interface{})
	assert.Equal(t, float64(3), roster["version"])
}

func TestGetRosterStoreDown(t *testing.T) {
	router := rosterRouter(t, false)

	req, _ := http.NewRequest(http.MethodGet, "/rooms/ABCD", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	body := decode(t, w)
	assert.Equal(t, "StoreUnavailable", body["code"])
	assert.Equal(t, true, body["retry"])
}

func TestRequireIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("mobius", cookie.NewStore([]byte("test-key"))))
	router.Use(middleware.Identity(identity.NewTokenManager("secret", time.Hour)))
	router.POST("/rooms", middleware.RequireIdentity, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"identity": middleware.CurrentIdentity(c)})
	})

	req, _ := http.NewRequest(http.MethodPost, "/rooms", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, _ = http.NewRequest(http.MethodPost, "/rooms", nil)
	req.Header.Set(middleware.DeviceHeader, "device-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "device-1", decode(t, w)["identity"])

	req, _ = http.NewRequest(http.MethodPost, "/rooms", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
