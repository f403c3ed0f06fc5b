package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"kinship/security"
)

const principalKey = "principal"

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(token string) (*security.Principal, error)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Auth rejects the request with 401 unless it carries a valid bearer token.
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		// CORS preflight carries no credentials
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		principal, err := tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// OptionalAuth attaches the principal when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if principal, err := tokens.Parse(token); err == nil {
				c.Set(principalKey, principal)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated principal, if any.
func CurrentUser(c *gin.Context) (*security.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*security.Principal)
	return p, ok
}

// UserID is the authenticated user's id. Only call it behind Auth.
func UserID(c *gin.Context) primitive.ObjectID {
	p, _ := CurrentUser(c)
	if p == nil {
		return primitive.NilObjectID
	}
	return p.ID
}

// Viewer is the caller's id on routes that allow anonymous access.
func Viewer(c *gin.Context) *primitive.ObjectID {
	p, ok := CurrentUser(c)
	if !ok {
		return nil
	}
	id := p.ID
	return &id
}
