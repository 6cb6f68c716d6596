// README: Bearer auth middleware; verifies the token for the route's scope and stores it on the context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shuttle/internal/infra"
	"shuttle/internal/logger"
	"shuttle/internal/types"
)

const tokenKey = "auth_token"

// Auth rejects requests without a token the verifier accepts. Use one verifier per scope.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tok, err := verifier.VerifyToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("bearer token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(tokenKey, tok)
		c.Next()
	}
}

func token(c *gin.Context) *infra.Token {
	v, ok := c.Get(tokenKey)
	if !ok {
		return nil
	}
	tok, _ := v.(*infra.Token)
	return tok
}

// OperatorID returns the authenticated operator, or "" when the route has no operator token.
func OperatorID(c *gin.Context) types.ID {
	if tok := token(c); tok != nil && tok.Scope == infra.ScopeOperator {
		return types.ID(tok.OperatorID)
	}
	return ""
}

func StaffID(c *gin.Context) types.ID {
	if tok := token(c); tok != nil && tok.Scope == infra.ScopeStaff {
		return types.ID(tok.StaffID)
	}
	return ""
}

// OrderID is the order an order token grants access to.
func OrderID(c *gin.Context) types.ID {
	if tok := token(c); tok != nil && tok.Scope == infra.ScopeOrder {
		return types.ID(tok.OrderID)
	}
	return ""
}
