package ratelimiter

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Logger is a minimal logging interface for the middleware layer. The engine
// itself never logs; only the HTTP adapters do, and only through this
// interface so callers can plug in their own logger (see adapters/zerolog).
type Logger interface {
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// noopLogger is the default when no logger is provided.
type noopLogger struct{}

func (l *noopLogger) Debugf(format string, args ...interface{}) {}
func (l *noopLogger) Errorf(format string, args ...interface{}) {}

// KeyFunc extracts the rate-limit key from an incoming request. The returned
// string is opaque to the engine; common choices are the client IP, an API
// key header, or a path parameter.
type KeyFunc func(r *http.Request) (string, error)

// ErrorHandler writes the response for a rejected request. It receives the
// Result so it can surface retry timing and the rejection message.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, result Result)

// MiddlewareConfig holds the configurable parts of the HTTP middleware.
// Users interact with it through functional options.
type MiddlewareConfig struct {
	KeyFunc      KeyFunc
	ErrorHandler ErrorHandler
	Logger       Logger
}

// Option applies one middleware setting.
type Option func(*MiddlewareConfig)

// rejectionBody is the JSON payload of the default 429 response.
type rejectionBody struct {
	Timestamp         time.Time `json:"timestamp"`
	Status            int       `json:"status"`
	Error             string    `json:"error"`
	Message           string    `json:"message"`
	RetryAfterSeconds int64     `json:"retryAfterSeconds"`
}

// ClientIPKey is the default KeyFunc: the client IP without the port.
func ClientIPKey(r *http.Request) (string, error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, nil
	}
	return host, nil
}

// DefaultErrorHandler answers HTTP 429 with a Retry-After header and a JSON
// body describing the rejection.
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, result Result) {
	retryAfter := result.RetryAfterSeconds
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(rejectionBody{
		Timestamp:         time.Now().UTC(),
		Status:            http.StatusTooManyRequests,
		Error:             http.StatusText(http.StatusTooManyRequests),
		Message:           result.Message,
		RetryAfterSeconds: retryAfter,
	})
}

// NewMiddlewareConfig builds a MiddlewareConfig with defaults and applies the
// given options.
func NewMiddlewareConfig(opts ...Option) *MiddlewareConfig {
	cfg := &MiddlewareConfig{
		KeyFunc:      ClientIPKey,
		ErrorHandler: DefaultErrorHandler,
		Logger:       &noopLogger{},
	}

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithKeyFunc sets a custom function for client identification, e.g. an API
// key header or a user id.
func WithKeyFunc(f KeyFunc) Option {
	return func(c *MiddlewareConfig) {
		if f != nil {
			c.KeyFunc = f
		}
	}
}

// WithErrorHandler sets a custom handler for rejected requests.
func WithErrorHandler(f ErrorHandler) Option {
	return func(c *MiddlewareConfig) {
		if f != nil {
			c.ErrorHandler = f
		}
	}
}

// WithLogger sets the middleware logger.
func WithLogger(l Logger) Option {
	return func(c *MiddlewareConfig) {
		if l != nil {
			c.Logger = l
		}
	}
}
