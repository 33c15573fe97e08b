package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/railzwaylabs/payrail/internal/apikey/domain"
)

type createAPIKeyRequest struct {
	Name      string     `json:"name" binding:"required,max=255"`
	Role      string     `json:"role" binding:"required,oneof=merchant_admin merchant_developer merchant_readonly"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type createAPIKeyResponse struct {
	APIKey *apikeydomain.APIKey `json:"api_key"`
	Secret string               `json:"secret"`
}

// @Summary      Create API Key
// @Description  Create an API key; the secret is only returned once
// @Tags         api_keys
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body createAPIKeyRequest true "Create API Key Request"
// @Success      200  {object}  DataResponse
// @Router       /v1/api_keys [post]
func (s *Server) CreateAPIKey(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	key, secret, err := s.apiKeys.Create(c.Request.Context(), apikeydomain.CreateInput{
		MerchantID: merchantID,
		Name:       strings.TrimSpace(req.Name),
		Role:       apikeydomain.Role(req.Role),
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, createAPIKeyResponse{APIKey: key, Secret: secret})
}

// @Summary      List API Keys
// @Tags         api_keys
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  ListResponse
// @Router       /v1/api_keys [get]
func (s *Server) ListAPIKeys(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	keys, err := s.apiKeys.List(c.Request.Context(), merchantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, keys)
}

// @Summary      Revoke API Key
// @Tags         api_keys
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "API Key ID"
// @Success      200  {object}  DataResponse
// @Router       /v1/api_keys/{id} [delete]
func (s *Server) RevokeAPIKey(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.apiKeys.Revoke(c.Request.Context(), merchantID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"id": id.String(), "revoked": true})
}
