package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wapulse/internal/services"
)

type TokenParser interface {
	ParseToken(raw string) (*services.Claims, error)
}

// AuthMiddleware resolves the bearer session token into an account id.
// Websocket upgrades may pass the token as the "token" query parameter
// because browsers cannot set headers on them.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1) preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		// 2) Authorization header, or query token for websockets
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" && isWebsocket(c) {
			raw = strings.TrimSpace(c.Query("token"))
		}
		if raw == "" {
			abort(c, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}

		// 3) signature and expiry
		claims, err := tokens.ParseToken(raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(ctxAccountID, claims.AccountID)
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
