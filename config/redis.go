package config

import (
	"Mobius/services/redis"

	"github.com/rs/zerolog/log"
)

// Connect to Redis
func Connect_redis(s *Settings) (*redis.RedisClient, error) {
	log.Info().Msgf("[REDIS] Connecting to %s", s.RedisURL)
	redisClient, err := redis.InitRedis(s.RedisURL, 0)
	if err != nil {
		log.Error().Err(err).Msg("[REDIS-ERROR] Error connecting to Redis")
		return nil, err
	}
	log.Info().Msg("[REDIS] Redis connection established")
	return redisClient, nil
}
