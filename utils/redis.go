package utils

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is optional shared state for the auth-failure lockout.
// Nil when REDIS_ADDR is unset or unreachable; callers fall back to
// per-instance in-memory tracking.
var RedisClient *redis.Client

func init() {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[redis] %s unreachable, using in-memory fallback: %v", addr, err)
		return
	}
	RedisClient = client
	log.Printf("[redis] connected to %s", addr)
}
