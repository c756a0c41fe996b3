package middleware

import (
	"github.com/gin-gonic/gin"
)

// cspMachine is the Content-Security-Policy for routes that return JSON or
// the Prometheus exposition format.
const cspMachine = "default-src 'none'; frame-ancestors 'none'"

// cspPage is the Content-Security-Policy for the form page. The page has no
// scripts; styles are inlined in the template.
const cspPage = "default-src 'none'; style-src 'unsafe-inline'; form-action 'self'; base-uri 'none'; frame-ancestors 'none'"

// SecurityHeaders returns a middleware that sets security-related HTTP response headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Header("Cache-Control", "no-store")

		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		if isMachineRoute(c.Request.URL.Path) {
			c.Header("Content-Security-Policy", cspMachine)
		} else {
			c.Header("Content-Security-Policy", cspPage)
		}

		c.Next()
	}
}

// isMachineRoute returns true for paths that never serve HTML.
func isMachineRoute(path string) bool {
	return path == "/health" || path == "/metrics"
}
