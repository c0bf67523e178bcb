// services/redis.go
package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type RedisService struct {
	appContext.DefaultService

	client *redis.Client
	addr   string
	pass   string
	db     int
}

const REDIS_SVC = "redis_svc"

func (svc RedisService) Id() string {
	return REDIS_SVC
}

func (svc *RedisService) Configure(ctx *appContext.Context) error {
	svc.addr = os.Getenv("REDIS_ADDR")
	if svc.addr == "" {
		svc.addr = "localhost:6379"
	}

	svc.pass = os.Getenv("REDIS_PASSWORD")

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB value: %v", err)
		}
		svc.db = db
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *RedisService) Start() error {
	svc.client = redis.NewClient(&redis.Options{
		Addr:     svc.addr,
		Password: svc.pass,
		DB:       svc.db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %v", svc.addr, err)
	}

	log.Printf("Redis service connected to %s (db %d)", svc.addr, svc.db)
	return nil
}

func (svc *RedisService) Shutdown() {
	if svc.client != nil {
		_ = svc.client.Close()
	}
}

func (svc *RedisService) GetClient() *redis.Client {
	return svc.client
}

// Incr bumps a counter and returns its new value, setting the expiry on
// first increment so windows roll over on their own.
func (svc *RedisService) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := svc.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := svc.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}
