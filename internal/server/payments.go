package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	paymentdomain "github.com/railzwaylabs/payrail/internal/payment/domain"
)

type createPaymentRequest struct {
	Amount              int64                              `json:"amount" binding:"required,gt=0"`
	Currency            string                             `json:"currency" binding:"required,iso4217"`
	CaptureMethod       connectordomain.CaptureMethod      `json:"capture_method" binding:"omitempty,oneof=automatic manual"`
	AuthenticationType  connectordomain.AuthenticationType `json:"authentication_type" binding:"omitempty,oneof=three_ds no_three_ds"`
	PaymentMethodData   connectordomain.PaymentMethodData  `json:"payment_method_data"`
	Connector           string                             `json:"connector" binding:"omitempty,connector"`
	MerchantConnectorID string                             `json:"merchant_connector_id" binding:"omitempty,numeric"`
	CustomerID          string                             `json:"customer_id" binding:"max=255"`
	CustomerName        string                             `json:"customer_name" binding:"max=255"`
	Email               string                             `json:"email" binding:"omitempty,email"`
	Description         string                             `json:"description"`
	StatementDescriptor string                             `json:"statement_descriptor" binding:"max=22"`
	ReturnURL           string                             `json:"return_url" binding:"omitempty,url"`
	BillingAddress      *connectordomain.Address           `json:"billing_address"`
	Metadata            map[string]string                  `json:"metadata"`
}

type capturePaymentRequest struct {
	Amount *int64 `json:"amount_to_capture" binding:"omitempty,gt=0"`
}

type cancelPaymentRequest struct {
	CancellationReason string `json:"cancellation_reason" binding:"max=255"`
}

// @Summary      Create Payment
// @Description  Create a payment and authorize it with the routed connector
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        Idempotency-Key  header  string  false  "Idempotency Key"
// @Param        request body createPaymentRequest true "Create Payment Request"
// @Success      200  {object}  DataResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /v1/payments [post]
func (s *Server) CreatePayment(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	key, err := idempotencyKeyFromHeader(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	input := paymentdomain.CreatePaymentInput{
		MerchantID:          merchantID,
		IdempotencyKey:      key,
		Amount:              req.Amount,
		Currency:            req.Currency,
		CaptureMethod:       req.CaptureMethod,
		AuthenticationType:  req.AuthenticationType,
		PaymentMethodData:   req.PaymentMethodData,
		Connector:           strings.TrimSpace(req.Connector),
		CustomerID:          strings.TrimSpace(req.CustomerID),
		CustomerName:        strings.TrimSpace(req.CustomerName),
		Email:               strings.TrimSpace(req.Email),
		Description:         req.Description,
		StatementDescriptor: req.StatementDescriptor,
		ReturnURL:           strings.TrimSpace(req.ReturnURL),
		BillingAddress:      req.BillingAddress,
		Metadata:            req.Metadata,
	}
	if req.MerchantConnectorID != "" {
		id, err := snowflake.ParseString(req.MerchantConnectorID)
		if err != nil {
			AbortWithError(c, newValidationError("merchant_connector_id", "invalid_merchant_connector_id", "invalid merchant_connector_id"))
			return
		}
		input.MerchantConnectorID = &id
	}

	payment, err := s.payments.Create(c.Request.Context(), input)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, payment)
}

// @Summary      Get Payment
// @Description  Get a payment, optionally syncing it with the connector first
// @Tags         payments
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id          path   string  true   "Payment ID"
// @Param        force_sync  query  bool    false  "Sync with the connector"
// @Success      200  {object}  DataResponse
// @Router       /v1/payments/{id} [get]
func (s *Server) GetPayment(c *gin.Context) {
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

	payment, err := s.payments.Retrieve(c.Request.Context(), merchantID, id, forceSync)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, payment)
}

// @Summary      Capture Payment
// @Description  Capture an authorized payment, fully or partially
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Payment ID"
// @Param        request body capturePaymentRequest false "Capture Payment Request"
// @Success      200  {object}  DataResponse
// @Router       /v1/payments/{id}/capture [post]
func (s *Server) CapturePayment(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req capturePaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, bindError(err))
			return
		}
	}

	payment, err := s.payments.Capture(c.Request.Context(), merchantID, id, paymentdomain.CapturePaymentInput{Amount: req.Amount})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, payment)
}

// @Summary      Cancel Payment
// @Description  Void an authorized payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Payment ID"
// @Param        request body cancelPaymentRequest false "Cancel Payment Request"
// @Success      200  {object}  DataResponse
// @Router       /v1/payments/{id}/cancel [post]
func (s *Server) CancelPayment(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req cancelPaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, bindError(err))
			return
		}
	}

	payment, err := s.payments.Cancel(c.Request.Context(), merchantID, id, strings.TrimSpace(req.CancellationReason))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, payment)
}

// @Summary      Sync Payment
// @Description  Fetch the latest payment status from the connector
// @Tags         payments
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  DataResponse
// @Router       /v1/payments/{id}/sync [post]
func (s *Server) SyncPayment(c *gin.Context) {
	merchantID, ok := mustMerchantID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	payment, err := s.payments.Sync(c.Request.Context(), merchantID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, payment)
}
