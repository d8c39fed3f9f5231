// Package middleware holds gin middleware for the execution routes.
package middleware

import (
	"fmt"
	"time"

	"coderunner/internal/execution/service"
	pkgerrors "coderunner/pkg/errors"
	"coderunner/pkg/utils/logger"
	"coderunner/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitPolicy caps executions per client IP and per route inside a window.
// Zero values disable the corresponding limit.
type RateLimitPolicy struct {
	Window   time.Duration `yaml:"window"`
	IPMax    int           `yaml:"ipMax"`
	RouteMax int           `yaml:"routeMax"`
}

type rateCheck struct {
	key string
	max int
}

// Responder writes the rejection for a limited request.
type Responder func(c *gin.Context, err error)

// RateLimitMiddleware enforces per-route rate limiting. Cache failures let the
// request through so an unavailable redis never blocks execution.
func RateLimitMiddleware(rateService *service.RateLimitService, routeKey string, policy RateLimitPolicy, respond Responder) gin.HandlerFunc {
	if respond == nil {
		respond = response.AbortWithError
	}
	return func(c *gin.Context) {
		if rateService == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		var checks []rateCheck
		if policy.IPMax > 0 {
			checks = append(checks, rateCheck{fmt.Sprintf("coderunner:rate:ip:%s:%s", c.ClientIP(), routeKey), policy.IPMax})
		}
		if policy.RouteMax > 0 {
			checks = append(checks, rateCheck{fmt.Sprintf("coderunner:rate:route:%s", routeKey), policy.RouteMax})
		}

		for _, check := range checks {
			err := rateService.Allow(ctx, check.key, check.max, policy.Window)
			if err == nil {
				continue
			}
			if pkgerrors.Is(err, pkgerrors.TooManyRequests) {
				respond(c, err)
				c.Abort()
				return
			}
			logger.Warn(ctx, "rate limit check skipped", zap.String("key", check.key), zap.Error(err))
		}

		c.Next()
	}
}
