package rdx

import (
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	"laborease/globals"
)

var Conn *redis.Client

// Init connects to Redis using REDIS_ADDR (defaults to localhost).
func Init() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	Conn = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	if err := Conn.Ping(globals.Ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis at %s: %v", addr, err)
	}
	return Conn
}
