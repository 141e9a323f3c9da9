package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"invest-service/pkg/common"
)

const (
	ContextUserId    = "userId"
	ContextRole      = "role"
	ContextRequestId = "requestId"

	RequestIdHeader = "X-Request-ID"
)

// Claims is the token payload issued by the auth service. Subject carries the user id.
type Claims struct {
	Role   string `json:"role"`
	UserId string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) userId() (int64, error) {
	raw := c.Subject
	if raw == "" {
		raw = c.UserId
	}
	if raw == "" {
		return 0, errors.New("token has no subject")
	}
	return strconv.ParseInt(raw, 10, 64)
}

// ParseToken validates an HS256 token signed with secret.
func ParseToken(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Auth requires a bearer token and stores the caller's id and role in the context.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
			abort(c, http.StatusUnauthorized, "missing or malformed Authorization header")
			return
		}

		claims, err := ParseToken(header[len(prefix):], key)
		if err != nil {
			logrus.WithError(err).WithField("path", c.FullPath()).Debug("rejected token")
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		userId, err := claims.userId()
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token claims")
			return
		}

		c.Set(ContextUserId, userId)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRoles lets the request through only when the caller's role is one of roles.
// Callers without one of the roles get 401, the same as unauthenticated callers.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextUserId); !ok {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}
		role := c.GetString(ContextRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusUnauthorized, "access denied")
	}
}

// RequestID tags each request with an id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIdHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestId, id)
		c.Header(RequestIdHeader, id)
		c.Next()
	}
}

// Logger writes one structured line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		entry := logrus.WithFields(logrus.Fields{
			"request_id": c.GetString(ContextRequestId),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"client_ip":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Warn("request completed with errors")
			return
		}
		entry.Debug("request completed")
	}
}

// UserId returns the authenticated caller's id.
func UserId(c *gin.Context) int64 {
	return c.GetInt64(ContextUserId)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, common.NewErrorResponse(message, nil, status))
}
