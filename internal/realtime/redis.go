package realtime

import (
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/config"
)

// NewRedis creates the client shared by the lock and the notifier.
func NewRedis(cfg config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	log.WithField("addr", cfg.RedisAddr).Info("redis client created")
	return rdb
}
