package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Mobius/config"
	pgconfig "Mobius/config/postgres"
	_ "Mobius/config/swagger"
	"Mobius/logger"
	"Mobius/middleware"
	"Mobius/routes"
	"Mobius/services/chat"
	"Mobius/services/content"
	"Mobius/services/distribution"
	"Mobius/services/identity"
	"Mobius/services/presence"
	"Mobius/services/redis"
	"Mobius/services/rooms"
	socketio "Mobius/services/socket_io"
	"Mobius/services/socket_io/handlers"
	"Mobius/services/stages"
	"Mobius/services/sync"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// @title Mobius API
// @version 1.0
// @description Gin-Gonic server for the "Mobius" room coordination API
// @host localhost:8080
// @BasePath /
// @paths
func main() {
	godotenv.Load()
	settings := config.LoadSettings()
	logger.Init(settings.Prod, settings.LogLevel)
	log.Info().Msg("Setting up server...")

	if settings.Prod {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := connectDatabase(settings)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to the database")
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading GORM database instance")
	}
	defer sqlDB.Close()

	// Only migrate in development or during deployment
	if settings.MigratePostgres || settings.DBDriver == "sqlite" {
		if err := pgconfig.MigrateDatabase(gormDB); err != nil {
			// Continue execution even if migration fails
			log.Warn().Err(err).Msg("Database migration failed")
		}
	}
	if settings.SeedContent {
		if err := content.Seed(gormDB); err != nil {
			log.Warn().Err(err).Msg("Seeding case content failed")
		}
	}

	redisClient, err := config.Connect_redis(settings)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to Redis")
	}
	defer redis.CloseRedis(redisClient)

	bus, poller, err := newBus(settings, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msgf("Error setting up %s distribution", settings.Distribution)
	}
	defer bus.Close()

	roomSvc := rooms.NewService(gormDB, bus, redisClient)
	stageSvc := stages.NewService(gormDB, roomSvc, redisClient, redisClient, bus)
	syncManager := sync.NewSyncManager(redisClient, roomSvc, stageSvc)
	if poller != nil {
		poller.SetSource(syncManager)
	}
	svc := &handlers.Services{
		Rooms:        roomSvc,
		Stages:       stageSvc,
		Presence:     presence.NewTracker(redisClient, bus, settings.PresenceInterval, settings.PresenceTimeout),
		Chat:         chat.NewService(roomSvc, stageSvc, redisClient, bus),
		Content:      content.NewService(gormDB, redisClient, redisClient, roomSvc, stageSvc),
		HostInterval: settings.HostTickInterval,
	}
	tokens := identity.NewTokenManager(settings.JWTSecret, settings.TokenTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if n, err := syncManager.WarmCache(ctx); err != nil {
		log.Warn().Err(err).Msg("Warming snapshot caches failed")
	} else {
		log.Info().Msgf("Warmed snapshot caches of %d rooms", n)
	}

	r := gin.New()
	middleware.SetUpMiddleware(r, settings)
	routes.SetupRoutes(r, routes.Deps{
		Rooms:    roomSvc,
		Stages:   stageSvc,
		Presence: svc.Presence,
		Content:  svc.Content,
		Tokens:   tokens,
	})

	sio := &socketio.MySocketServer{}
	sio.Start(r, svc, tokens, !settings.Prod)
	defer sio.Close()

	srv := &http.Server{Addr: ":" + settings.Port, Handler: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sio.Run(gctx, bus, svc)
	})
	g.Go(func() error {
		log.Info().Msgf("Server started on port %s", settings.Port)
		var err error
		if settings.UseHTTPS {
			// SSL certification configuration for HTTPS
			err = srv.ListenAndServeTLS(os.Getenv("TLS_CERT_FILE"), os.Getenv("TLS_KEY_FILE"))
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Server stopped with error")
	}
}

func connectDatabase(settings *config.Settings) (*gorm.DB, error) {
	if settings.DBDriver == "sqlite" {
		log.Info().Msgf("Using SQLite database %s", settings.SQLitePath)
		return pgconfig.ConnectSQLite(settings.SQLitePath)
	}
	return pgconfig.ConnectGORM()
}

// newBus picks the distribution adapter. The poller is returned separately
// because its snapshot source can only be bound once the services exist.
func newBus(settings *config.Settings, rc *redis.RedisClient) (distribution.Bus, *distribution.Poller, error) {
	switch settings.Distribution {
	case "nats":
		bus, err := distribution.ConnectNats(settings.NatsURL)
		return bus, nil, err
	case "local":
		return distribution.NewLocalBus(), nil, nil
	case "polling":
		poller := distribution.NewPoller(nil, settings.PollInterval)
		return poller, poller, nil
	default:
		return distribution.NewRedisBus(rc), nil, nil
	}
}
