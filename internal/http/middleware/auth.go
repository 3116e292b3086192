package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/apperr"
	"github.com/dajtvoxdev/tourimate-sub003/internal/shared/principal"
)

const ctxKeyPrincipal = "principal"

type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth resolves the bearer token into a Principal. Requests without a token
// pass through anonymous; RequireAuth gates the protected routes.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &authClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			Fail(c, apperr.UnauthorizedErr("Invalid or expired token."))
			return
		}

		role := principal.Role(claims.Role)
		if claims.Subject == "" || !role.Valid() {
			Fail(c, apperr.UnauthorizedErr("Invalid token claims."))
			return
		}

		c.Set(ctxKeyPrincipal, principal.Principal{UserID: claims.Subject, Role: role})
		c.Next()
	}
}

func CurrentPrincipal(c *gin.Context) (principal.Principal, bool) {
	v, ok := c.Get(ctxKeyPrincipal)
	if !ok {
		return principal.Principal{}, false
	}
	p, ok := v.(principal.Principal)
	return p, ok
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentPrincipal(c); !ok {
			Fail(c, apperr.UnauthorizedErr("Authentication required."))
			return
		}
		c.Next()
	}
}

// RequireRole gates a route group to the listed roles.
func RequireRole(roles ...principal.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			Fail(c, apperr.UnauthorizedErr("Authentication required."))
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		Fail(c, apperr.ForbiddenErr("You do not have access to this resource."))
	}
}
