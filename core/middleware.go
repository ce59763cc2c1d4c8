package core

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// AuthenticationMiddleware turns a bearer token into an Identity for the
// remainder of the request. It runs exactly once per request, before route
// policy. Every token-validation failure collapses to "no identity" rather
// than an error response, so public routes behind this middleware stay
// reachable and the failure kind is never leaked to clients.
func AuthenticationMiddleware(codec *TokenCodec, users UserRepository, policy *AccessPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if policy.IsPublic(c.Request.Method, c.Request.URL.Path) {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.Next()
			return
		}
		tokenString := strings.TrimSpace(header[len(bearerPrefix):])
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := codec.VerifyAndDecode(tokenString)
		if err != nil {
			// bad signature or malformed: unauthenticated, not an error
			c.Next()
			return
		}

		// The subject must still exist; a deleted principal invalidates
		// every outstanding token for it.
		if _, err := users.FindByUsername(c.Request.Context(), claims.Subject); err != nil {
			c.Next()
			return
		}

		if codec.IsExpired(claims, time.Now()) {
			c.Next()
			return
		}

		// Roles come from the token snapshot, not a fresh lookup. Role
		// changes take effect only once the old token expires.
		SetIdentity(c, &Identity{Subject: claims.Subject, Roles: claims.Roles})
		c.Next()
	}
}

// CORSMiddleware validates Origin/Referer against the allowed list and sets
// CORS headers. Token auth carries no cookies, so no CSRF handling is needed.
func CORSMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			// Same-origin navigation (no Origin header) is allowed.
			return true
		}
		if len(allowed) == 0 {
			return false
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		referer := c.GetHeader("Referer")
		if origin == "" && referer != "" {
			if u, err := url.Parse(referer); err == nil {
				origin = u.Scheme + "://" + u.Host
			}
		}

		// Preflight handling
		if c.Request.Method == http.MethodOptions && origin != "" {
			if !isAllowed(origin) {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
				c.Abort()
				return
			}
			setCORSHeaders(c, origin)
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
}
