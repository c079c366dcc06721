// Package gin adapts the rate-limiting engine to the Gin framework.
package gin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mcortell/go-rate-limiter/ratelimiter"
)

// RateLimiter returns a Gin middleware enforcing the given Config.
//
// Behavior matches the net/http middleware: the KeyFunc (client IP by
// default) identifies the caller, admitted requests continue down the chain
// with X-RateLimit-* headers set, and rejected requests are answered by the
// ErrorHandler and aborted.
//
// Example:
//
//	engine := ratelimiter.NewEngine()
//	router := gin.Default()
//	router.Use(ginmw.RateLimiter(engine, ratelimiter.Config{
//		Algorithm:  ratelimiter.TokenBucket,
//		Capacity:   100,
//		RefillRate: 10.0,
//	}))
func RateLimiter(engine *ratelimiter.Engine, cfg ratelimiter.Config, options ...ratelimiter.Option) gin.HandlerFunc {
	mw := ratelimiter.NewMiddlewareConfig(options...)

	return func(c *gin.Context) {
		key, err := mw.KeyFunc(c.Request)
		if err != nil {
			mw.Logger.Errorf("failed to extract key: %v", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		result, err := engine.TryAcquire(key, cfg)
		if err != nil {
			mw.Logger.Errorf("rate limit check failed for key %q: %v", key, err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(cfg.Budget(), 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

		if !result.Allowed {
			mw.Logger.Debugf("request denied for key %q, retry after %ds", key, result.RetryAfterSeconds)
			mw.ErrorHandler(c.Writer, c.Request, result)
			c.Abort()
			return
		}

		mw.Logger.Debugf("request allowed for key %q, remaining %d", key, result.Remaining)
		c.Next()
	}
}
