// Command server runs a demo HTTP service exposing one route per
// rate-limiting algorithm, a programmatic probe endpoint, and key-scoped
// reset endpoints. It exists to exercise the engine end to end; the engine
// itself carries no HTTP knowledge.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	health "github.com/hellofresh/health-go/v4"
	"github.com/rs/zerolog"

	zerologadapter "github.com/mcortell/go-rate-limiter/adapters/zerolog"
	ginmw "github.com/mcortell/go-rate-limiter/middleware/gin"
	"github.com/mcortell/go-rate-limiter/ratelimiter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		bootstrapLogger := zerolog.New(os.Stderr)
		bootstrapLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := newLogger(cfg.LogLevel)

	var engineOpts []ratelimiter.EngineOption
	if cfg.LegacyTokenCap {
		engineOpts = append(engineOpts, ratelimiter.WithLegacyTokenCap())
	}
	engine := ratelimiter.NewEngine(engineOpts...)

	gin.SetMode(cfg.Mode)
	router := newRouter(engine, logger)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("starting rate limiter demo server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func newRouter(engine *ratelimiter.Engine, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLog(logger))

	mwLogger := ratelimiter.WithLogger(zerologadapter.New(&logger))

	api := router.Group("/api")

	// One demo route per algorithm, mirroring the limits a client would
	// use to observe each algorithm's shape: buckets sized 5 with a
	// 1/second rate, windows of 5 per 60 seconds.
	api.GET("/token-bucket",
		ginmw.RateLimiter(engine, ratelimiter.Config{
			Algorithm:  ratelimiter.TokenBucket,
			Capacity:   5,
			RefillRate: 1.0,
		}, mwLogger),
		demoHandler("Token Bucket - Allows bursts, refills at constant rate"))

	api.GET("/leaky-bucket",
		ginmw.RateLimiter(engine, ratelimiter.Config{
			Algorithm:  ratelimiter.LeakyBucket,
			Capacity:   5,
			RefillRate: 1.0,
		}, mwLogger),
		demoHandler("Leaky Bucket - Smooth output, constant processing rate"))

	api.GET("/fixed-window",
		ginmw.RateLimiter(engine, ratelimiter.Config{
			Algorithm:     ratelimiter.FixedWindowCounter,
			Limit:         5,
			WindowSeconds: 60,
		}, mwLogger),
		demoHandler("Fixed Window Counter - Simple, resets at window boundaries"))

	api.GET("/sliding-log",
		ginmw.RateLimiter(engine, ratelimiter.Config{
			Algorithm:     ratelimiter.SlidingWindowLog,
			Limit:         5,
			WindowSeconds: 60,
		}, mwLogger),
		demoHandler("Sliding Window Log - Most accurate, stores all timestamps"))

	api.GET("/sliding-counter",
		ginmw.RateLimiter(engine, ratelimiter.Config{
			Algorithm:     ratelimiter.SlidingWindowCounter,
			Limit:         5,
			WindowSeconds: 60,
		}, mwLogger),
		demoHandler("Sliding Window Counter - Balanced accuracy and memory"))

	// Per-user route: the path itself is the key, so each user id gets an
	// independent bucket.
	api.GET("/user/:id",
		ginmw.RateLimiter(engine, ratelimiter.Config{
			Algorithm:  ratelimiter.TokenBucket,
			Capacity:   10,
			RefillRate: 1.0,
		}, mwLogger, ratelimiter.WithKeyFunc(pathKey)),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message":   "Rate limited per user: " + c.Param("id"),
				"timestamp": time.Now().UTC(),
			})
		})

	api.POST("/check-limit", checkLimit(engine))
	api.DELETE("/reset/:algorithm/:key", resetOne(engine))
	api.DELETE("/reset-all/:key", resetAll(engine))

	router.GET("/healthz", gin.WrapH(healthHandler(engine)))

	return router
}

func demoHandler(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":   message,
			"timestamp": time.Now().UTC(),
		})
	}
}

func pathKey(r *http.Request) (string, error) {
	return r.URL.Path, nil
}

// checkLimit is the programmatic probe: the request body is a Config, the key
// comes from the query string, and the response carries the full decision.
func checkLimit(engine *ratelimiter.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Query("key")
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing key query parameter"})
			return
		}

		var cfg ratelimiter.Config
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Normalize the wire spelling (TOKEN_BUCKET) before dispatch.
		algorithm, err := ratelimiter.ParseAlgorithm(string(cfg.Algorithm))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cfg.Algorithm = algorithm

		result, err := engine.TryAcquire(key, cfg)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"timestamp":         time.Now().UTC(),
			"allowed":           result.Allowed,
			"remaining":         result.Remaining,
			"retryAfterSeconds": result.RetryAfterSeconds,
			"message":           result.Message,
		})
	}
}

func resetOne(engine *ratelimiter.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		algorithm, err := ratelimiter.ParseAlgorithm(c.Param("algorithm"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		key := c.Param("key")
		engine.Reset(key, algorithm)

		c.JSON(http.StatusOK, gin.H{
			"message":   "Rate limiter reset successfully",
			"algorithm": algorithm,
			"key":       key,
			"timestamp": time.Now().UTC(),
		})
	}
}

func resetAll(engine *ratelimiter.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		engine.ResetAll(key)

		c.JSON(http.StatusOK, gin.H{
			"message":   "Rate limiter reset successfully",
			"key":       key,
			"timestamp": time.Now().UTC(),
		})
	}
}

// healthHandler wires a health endpoint with a self-probe: the check runs a
// real TryAcquire against a reserved key, so a wedged engine fails readiness.
func healthHandler(engine *ratelimiter.Engine) http.Handler {
	h, _ := health.New(health.WithComponent(health.Component{
		Name:    "rate-limiter-demo",
		Version: "dev",
	}))

	_ = h.Register(health.Config{
		Name:    "engine",
		Timeout: time.Second,
		Check: func(ctx context.Context) error {
			_, err := engine.TryAcquire("internal:healthz", ratelimiter.Config{
				Algorithm:  ratelimiter.TokenBucket,
				Capacity:   1_000_000,
				RefillRate: 1_000_000,
			})
			return err
		},
	})

	return h.Handler()
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

func requestLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
