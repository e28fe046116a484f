package middleware

import (
	"strings"

	"pubcash-backend/pkg/config"
	"pubcash-backend/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextAccountID = "account_id"
	ContextRole      = "role"
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate validates the bearer token and stores the account
// identity in the gin context.
func Authenticate(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.Error(errutil.New(errutil.StatusUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}

		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.Auth.Secret), nil
		})
		if err != nil || !token.Valid {
			c.Error(errutil.New(errutil.StatusUnauthorized, "invalid token", errutil.WithErr(err)))
			c.Abort()
			return
		}

		c.Set(ContextAccountID, claims.Subject)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRole rejects requests whose authenticated role does not match.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		c.Error(errutil.New(errutil.StatusForbidden, "insufficient role"))
		c.Abort()
	}
}

func AccountID(c *gin.Context) string {
	return c.GetString(ContextAccountID)
}

func Role(c *gin.Context) string {
	return c.GetString(ContextRole)
}
