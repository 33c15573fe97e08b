package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/railzwaylabs/payrail/internal/apikey/domain"
	"github.com/railzwaylabs/payrail/internal/authorization"
)

const (
	contextMerchantIDKey = "merchant_id"
	contextAPIKeyIDKey   = "api_key_id"
	contextRoleKey       = "api_key_role"
)

// APIKeyRequired authenticates the request with a bearer API key. The merchant is taken
// from the key record only.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeys.Resolve(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, apikeydomain.ErrUnauthorized) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		c.Set(contextMerchantIDKey, key.MerchantID)
		c.Set(contextAPIKeyIDKey, key.ID)
		c.Set(contextRoleKey, string(key.Role))
		c.Next()
	}
}

// Authorize checks the key's role against the casbin policy for resource and action.
func (s *Server) Authorize(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(contextRoleKey)
		if role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authorizer.Authorize(c.Request.Context(), role, resource, action); err != nil {
			if errors.Is(err, authorization.ErrForbidden) {
				AbortWithError(c, ErrForbidden)
				return
			}
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func merchantIDFrom(c *gin.Context) (snowflake.ID, bool) {
	v, ok := c.Get(contextMerchantIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(snowflake.ID)
	return id, ok
}

func mustMerchantID(c *gin.Context) (snowflake.ID, bool) {
	id, ok := merchantIDFrom(c)
	if !ok || id == 0 {
		AbortWithError(c, ErrUnauthorized)
		return 0, false
	}
	return id, true
}
