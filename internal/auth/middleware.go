package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/config"
	"github.com/bbh1312/sleep-cash-backend/internal/response"
)

// NewProvider picks the token validator for cfg.AuthMode.
func NewProvider(cfg *config.Config, logger internal.Logger) Provider {
	if cfg.AuthMode == "remote" {
		return NewRemoteAuthProvider(cfg.AuthServiceURL, logger)
	}
	return NewLocalAuthProvider(cfg.Secret(), logger)
}

func AuthMiddleware(provider Provider, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token := strings.TrimPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			var user *internal.User
			var err error
			if cfg.AuthMode == "remote" {
				user, err = provider.ValidateTokenRemote(c.Request.Context(), token)
			} else {
				user, err = provider.ValidateTokenLocal(token)
			}
			if err == nil {
				c.Set("user", user)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("Unauthorized"))
	}
}
