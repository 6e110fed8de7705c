package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/commune-dev/commune-api/internal/models"
	"github.com/commune-dev/commune-api/internal/service"
	appErrors "github.com/commune-dev/commune-api/pkg/errors"
	"github.com/commune-dev/commune-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// JWT protects routes by requiring a valid access token.
func JWT(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFromHeader(c, tokens)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// CurrentUserID extracts the authenticated user id from the gin context.
func CurrentUserID(c *gin.Context) (int64, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return 0, false
	}
	claims, ok := value.(*models.AccessClaims)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}

func claimsFromHeader(c *gin.Context, tokens *service.TokenService) (*models.AccessClaims, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}

	claims, err := tokens.VerifyAccessToken(parts[1])
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid access token")
	}
	return claims, nil
}
