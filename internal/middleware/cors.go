package middleware

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
)

// CORS answers cross-origin requests for the configured origins. An empty
// allow list (or a "*" entry) admits any origin, matching the gateway's
// handshake origin policy.
func CORS(allowedOrigins []string) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		origin := string(c.GetHeader("Origin"))

		allowed := corsOrigin(origin, allowedOrigins)
		if allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")
			c.Header("Access-Control-Allow-Credentials", "true")
			if allowed != "*" {
				c.Header("Vary", "Origin")
			}
		}

		if string(c.Method()) == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next(ctx)
	}
}

// corsOrigin resolves the Allow-Origin value for a request origin, empty
// when the origin is not allowed
func corsOrigin(origin string, allowedOrigins []string) string {
	if len(allowedOrigins) == 0 {
		return "*"
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(origin, allowed) {
			return origin
		}
	}
	return ""
}
