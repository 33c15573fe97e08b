package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/railzwaylabs/payrail/internal/payment/domain"
)

type createRefundRequest struct {
	PaymentID string `json:"payment_id" binding:"required,numeric"`
	Amount    *int64 `json:"amount" binding:"omitempty,gt=0"`
	Reason    string `json:"reason" binding:"max=255"`
}

// @Summary      Create Refund
// @Description  Refund a captured payment, fully or partially
// @Tags         refunds
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body createRefundRequest true "Create Refund Request"
// @Success      200  {object}  DataResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /v1/refunds [post]
func (s *Server) CreateRefund(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	var req createRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	paymentID, err := snowflake.ParseString(req.PaymentID)
	if err != nil {
		AbortWithError(c, newValidationError("payment_id", "invalid_payment_id", "invalid payment_id"))
		return
	}

	refund, err := s.refunds.Create(c.Request.Context(), paymentdomain.CreateRefundInput{
		MerchantID: merchantID,
		PaymentID:  paymentID,
		Amount:     req.Amount,
		Reason:     strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, refund)
}

// @Summary      Get Refund
// @Description  Get a refund, optionally syncing it with the connector first
// @Tags         refunds
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id          path   string  true   "Refund ID"
// @Param        force_sync  query  bool    false  "Sync with the connector"
// @Success      200  {object}  DataResponse
// @Router       /v1/refunds/{id} [get]
func (s *Server) GetRefund(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	forceSync, err := forceSyncQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	refund, err := s.refunds.Retrieve(c.Request.Context(), merchantID, id, forceSync)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, refund)
}

// @Summary      Sync Refund
// @Description  Fetch the latest refund status from the connector
// @Tags         refunds
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Refund ID"
// @Success      200  {object}  DataResponse
// @Router       /v1/refunds/{id}/sync [post]
func (s *Server) SyncRefund(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	refund, err := s.refunds.Sync(c.Request.Context(), merchantID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, refund)
}
