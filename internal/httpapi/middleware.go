package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hredostate/yebo-transport/internal/model"
)

const (
	ctxKeyRequestID = "request_id"
	ctxKeyActor     = "actor"
)

// RequestID tags every request so log lines and error responses correlate.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// GetRequestID returns the request id set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

// Logger writes one structured line per request.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info("http request",
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth resolves the acting principal from a Bearer token. The identity
// provider that issues the tokens is outside this service; here the token
// only needs a subject (user id) and a role claim.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(
			strings.TrimPrefix(header, "Bearer "),
			&authClaims{},
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			},
		)
		if err != nil || !token.Valid {
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid token", nil)
			c.Abort()
			return
		}

		claims := token.Claims.(*authClaims)
		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid subject claim", nil)
			c.Abort()
			return
		}

		var kind model.ActorKind
		switch claims.Role {
		case "operator":
			kind = model.ActorOperator
		case "student":
			kind = model.ActorStudent
		default:
			respondError(c, http.StatusForbidden, "forbidden", "unknown role", nil)
			c.Abort()
			return
		}

		c.Set(ctxKeyActor, model.Actor{Kind: kind, UserID: userID})
		c.Next()
	}
}

// GetActor returns the authenticated principal.
func GetActor(c *gin.Context) model.Actor {
	actor, _ := c.Get(ctxKeyActor)
	a, _ := actor.(model.Actor)
	return a
}

// RequireOperator guards review operations: approve, reject, waitlist,
// bulk approve and administrative cancellation are operator-only.
func RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetActor(c).Kind != model.ActorOperator {
			respondError(c, http.StatusForbidden, "forbidden", "operator role required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStudent guards the student-owned operations: creating a request
// and cancelling one's own request.
func RequireStudent() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetActor(c).Kind != model.ActorStudent {
			respondError(c, http.StatusForbidden, "forbidden", "student role required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
