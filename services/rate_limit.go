// services/rate_limit.go
package services

import (
	"fmt"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/riddlehouse/riddle_api/shared"
)

// RateLimitService throttles per-player request volume with a fixed
// redis window. The extension fires on every page load, so the ingest
// endpoint in particular needs a generous but hard ceiling.
type RateLimitService struct {
	context.DefaultService

	redisSvc *RedisService
}

const RATE_LIMIT_SVC = "rate_limit_svc"

func (svc RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Start() error {
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	return nil
}

// Limit returns middleware that allows max requests per window for a
// given endpoint, keyed by the authenticated player or the client IP.
// Redis failures fail open; dropping legitimate visits loses progress
// transitions, while letting a burst through only costs compute.
func (svc *RateLimitService) Limit(endpoint string, max int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := c.Locals(shared.Username).(string)
		if !ok || identity == "" {
			identity = c.IP()
		}

		key := fmt.Sprintf("rate:%s:%s", endpoint, identity)

		count, err := svc.redisSvc.Incr(c.Context(), key, window)
		if err != nil {
			log.Warnf("rate limit check failed for %s: %v", key, err)
			return c.Next()
		}

		if count > int64(max) {
			return shared.NewTooManyRequestsError(fmt.Sprintf("too many requests, limit is %d per %s", max, window))
		}

		return c.Next()
	}
}
