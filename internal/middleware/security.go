package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"automax/internal/pkg/response"
)

// hosts accepted in debug mode when none are configured
var debugHosts = []string{".localhost", "127.0.0.1", "[::1]"}

// AllowedHosts rejects requests whose Host header matches none of hosts.
// "*" matches anything; a leading dot matches the domain and its subdomains.
func AllowedHosts(hosts []string, debug bool) gin.HandlerFunc {
	if len(hosts) == 0 && debug {
		hosts = debugHosts
	}
	patterns := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			patterns = append(patterns, h)
		}
	}

	return func(c *gin.Context) {
		host := requestHost(c.Request.Host)
		if host == "" || !hostAllowed(host, patterns) {
			logrus.WithField("host", c.Request.Host).Warn("disallowed host")
			response.Abort(c, http.StatusBadRequest, "DISALLOWED_HOST", "Invalid HTTP_HOST header")
			return
		}
		c.Next()
	}
}

func requestHost(raw string) string {
	host := strings.ToLower(strings.TrimSpace(raw))
	if h, _, err := net.SplitHostPort(host); err == nil {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return strings.TrimSuffix(host, ".")
}

func hostAllowed(host string, patterns []string) bool {
	for _, p := range patterns {
		switch {
		case p == "*":
			return true
		case strings.HasPrefix(p, "."):
			if host == p[1:] || strings.HasSuffix(host, p) {
				return true
			}
		case host == p:
			return true
		}
	}
	return false
}

// SecurityHeaders sets the browser hardening headers on every response.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		c.Next()
	}
}
