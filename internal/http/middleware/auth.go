package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/swifttiger/backend/internal/token"
)

const (
	authorizationHeaderKey  = "authorization"
	authorizationTypeBearer = "bearer"

	// AuthorizationPayloadKey is where Auth stores the verified token
	// payload on the gin context.
	AuthorizationPayloadKey = "authorization_payload"
)

func abortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"code":    code,
		"message": message,
	})
}

// Auth verifies the bearer token and stores its payload on the
// context. Browser websocket clients cannot set headers, so upgrade
// requests may carry the token in the query string instead.
func Auth(maker token.Maker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var accessToken string
		authorizationHeader := c.GetHeader(authorizationHeaderKey)

		if len(authorizationHeader) != 0 {
			fields := strings.Fields(authorizationHeader)
			if len(fields) >= 2 && strings.ToLower(fields[0]) == authorizationTypeBearer {
				accessToken = fields[1]
			}
		}

		if len(accessToken) == 0 && isWebSocketUpgrade(c) {
			accessToken = c.Query("token")
		}

		if len(accessToken) == 0 {
			abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "access token is not provided")
			return
		}

		payload, err := maker.VerifyToken(accessToken, token.TokenTypeAccessToken)
		if err != nil {
			if isWebSocketUpgrade(c) {
				log.Warn().Err(err).Str("url", c.Request.URL.Path).Msg("websocket authentication failed")
			}
			code := "UNAUTHORIZED"
			if err == token.ErrExpiredToken {
				code = "TOKEN_EXPIRED"
			}
			abortError(c, http.StatusUnauthorized, code, err.Error())
			return
		}

		c.Set(AuthorizationPayloadKey, payload)
		c.Next()
	}
}

// RequireRoles allows only the named roles past. Must run after Auth.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		payload := AuthPayload(c)
		if payload == nil {
			abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "access token is not provided")
			return
		}
		if _, ok := allowed[payload.Role]; !ok {
			abortError(c, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			return
		}
		c.Next()
	}
}

// AuthPayload returns the verified token payload, or nil outside an
// authenticated route.
func AuthPayload(c *gin.Context) *token.Payload {
	v, exists := c.Get(AuthorizationPayloadKey)
	if !exists {
		return nil
	}
	payload, ok := v.(*token.Payload)
	if !ok {
		return nil
	}
	return payload
}

func isWebSocketUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(c.GetHeader("Connection")), "upgrade")
}
