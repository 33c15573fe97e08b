package server

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	mcadomain "github.com/railzwaylabs/payrail/internal/merchantaccount/domain"
)

type createConnectorAccountRequest struct {
	ConnectorName         string                              `json:"connector_name" binding:"required,connector"`
	Profile               string                              `json:"profile" binding:"max=64"`
	ConnectorLabel        string                              `json:"connector_label" binding:"max=255"`
	AccountDetails        json.RawMessage                     `json:"connector_account_details" binding:"required"`
	TestMode              bool                                `json:"test_mode"`
	Disabled              bool                                `json:"disabled"`
	Priority              int                                 `json:"priority" binding:"gte=0"`
	Metadata              map[string]any                      `json:"metadata"`
	PaymentMethodsEnabled []connectordomain.PaymentMethodType `json:"payment_methods_enabled" binding:"omitempty,dive,oneof=card wallet bank_redirect"`
}

type updateConnectorAccountRequest struct {
	ConnectorLabel        *string                              `json:"connector_label,omitempty" binding:"omitempty,min=1,max=255"`
	AccountDetails        json.RawMessage                      `json:"connector_account_details,omitempty"`
	TestMode              *bool                                `json:"test_mode,omitempty"`
	Disabled              *bool                                `json:"disabled,omitempty"`
	Priority              *int                                 `json:"priority,omitempty" binding:"omitempty,gte=0"`
	Metadata              map[string]any                       `json:"metadata,omitempty"`
	PaymentMethodsEnabled *[]connectordomain.PaymentMethodType `json:"payment_methods_enabled,omitempty" binding:"omitempty,dive,oneof=card wallet bank_redirect"`
}

// @Summary      Create Connector Account
// @Description  Configure a connector for the merchant with encrypted credentials
// @Tags         connector_accounts
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body createConnectorAccountRequest true "Create Connector Account Request"
// @Success      200  {object}  DataResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /v1/connector_accounts [post]
func (s *Server) CreateConnectorAccount(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	var req createConnectorAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	mca, err := s.accounts.Create(c.Request.Context(), mcadomain.CreateInput{
		MerchantID:            merchantID,
		ConnectorName:         strings.TrimSpace(req.ConnectorName),
		Profile:               strings.TrimSpace(req.Profile),
		ConnectorLabel:        strings.TrimSpace(req.ConnectorLabel),
		AccountDetails:        req.AccountDetails,
		TestMode:              req.TestMode,
		Disabled:              req.Disabled,
		Priority:              req.Priority,
		Metadata:              req.Metadata,
		PaymentMethodsEnabled: req.PaymentMethodsEnabled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, mca)
}

// @Summary      List Connector Accounts
// @Tags         connector_accounts
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  ListResponse
// @Router       /v1/connector_accounts [get]
func (s *Server) ListConnectorAccounts(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	accounts, err := s.accounts.List(c.Request.Context(), merchantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, accounts)
}

// @Summary      Get Connector Account
// @Tags         connector_accounts
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Connector Account ID"
// @Success      200  {object}  DataResponse
// @Router       /v1/connector_accounts/{id} [get]
func (s *Server) GetConnectorAccount(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	mca, err := s.accounts.Get(c.Request.Context(), merchantID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, mca)
}

// @Summary      Update Connector Account
// @Tags         connector_accounts
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Connector Account ID"
// @Param        request body updateConnectorAccountRequest true "Update Connector Account Request"
// @Success      200  {object}  DataResponse
// @Router       /v1/connector_accounts/{id} [patch]
func (s *Server) UpdateConnectorAccount(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req updateConnectorAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	mca, err := s.accounts.Update(c.Request.Context(), merchantID, id, mcadomain.UpdateInput{
		ConnectorLabel:        req.ConnectorLabel,
		AccountDetails:        req.AccountDetails,
		TestMode:              req.TestMode,
		Disabled:              req.Disabled,
		Priority:              req.Priority,
		Metadata:              req.Metadata,
		PaymentMethodsEnabled: req.PaymentMethodsEnabled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, mca)
}

// @Summary      Delete Connector Account
// @Tags         connector_accounts
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Connector Account ID"
// @Success      200  {object}  DataResponse
// @Router       /v1/connector_accounts/{id} [delete]
func (s *Server) DeleteConnectorAccount(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.accounts.Delete(c.Request.Context(), merchantID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"id": id.String(), "deleted": true})
}
