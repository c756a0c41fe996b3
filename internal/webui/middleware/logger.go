package middleware

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the per-request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// redactedParams are query parameters whose values never reach the log.
var redactedParams = []string{"api_key", "apikey", "key", "token", "secret", "password"}

func redactQueryString(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}

	changed := false
	for name, values := range params {
		if !slices.Contains(redactedParams, strings.ToLower(name)) {
			continue
		}
		for i := range values {
			values[i] = "[REDACTED]"
		}
		changed = true
	}
	if !changed {
		return rawQuery
	}
	return params.Encode()
}

// RequestID assigns every request an id, reusing a valid incoming one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// quietPaths are polled by monitors and only logged at debug level on success.
var quietPaths = map[string]bool{"/health": true, "/metrics": true}

// RequestLogger logs one line per request. Levels follow the status code.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "http").Logger()

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := redactQueryString(c.Request.URL.RawQuery)

		c.Next()

		status := c.Writer.Status()
		log.WithLevel(levelFor(path, status)).
			Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("body_size", c.Writer.Size()).
			Msg("request")
	}
}

func levelFor(path string, status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	case quietPaths[path]:
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
