// Package nethttp adapts the rate-limiting engine to standard net/http
// handler chains.
package nethttp

import (
	"net/http"
	"strconv"

	"github.com/mcortell/go-rate-limiter/ratelimiter"
)

// Middleware wraps an http.Handler with a rate limit check.
//
// Every request is keyed by the configured KeyFunc (client IP by default) and
// checked against the engine with the given Config. Admitted requests pass
// through with X-RateLimit-Limit and X-RateLimit-Remaining headers set;
// rejected requests are answered by the configured ErrorHandler, which by
// default sends 429 with a Retry-After header and a JSON body.
//
// Example:
//
//	engine := ratelimiter.NewEngine()
//	cfg := ratelimiter.Config{
//		Algorithm:     ratelimiter.FixedWindowCounter,
//		Limit:         100,
//		WindowSeconds: 60,
//	}
//	mux := http.NewServeMux()
//	mux.HandleFunc("/", myHandler)
//	http.ListenAndServe(":8080", nethttp.Middleware(engine, cfg)(mux))
func Middleware(engine *ratelimiter.Engine, cfg ratelimiter.Config, options ...ratelimiter.Option) func(http.Handler) http.Handler {
	mw := ratelimiter.NewMiddlewareConfig(options...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := mw.KeyFunc(r)
			if err != nil {
				mw.Logger.Errorf("failed to extract key: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			result, err := engine.TryAcquire(key, cfg)
			if err != nil {
				mw.Logger.Errorf("rate limit check failed for key %q: %v", key, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(cfg.Budget(), 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

			if !result.Allowed {
				mw.Logger.Debugf("request denied for key %q, retry after %ds", key, result.RetryAfterSeconds)
				mw.ErrorHandler(w, r, result)
				return
			}

			mw.Logger.Debugf("request allowed for key %q, remaining %d", key, result.Remaining)
			next.ServeHTTP(w, r)
		})
	}
}
