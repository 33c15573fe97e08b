package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apikeydomain "github.com/railzwaylabs/payrail/internal/apikey/domain"
	"github.com/railzwaylabs/payrail/internal/authorization"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	connectorservice "github.com/railzwaylabs/payrail/internal/connector/service"
	mcadomain "github.com/railzwaylabs/payrail/internal/merchantaccount/domain"
	paymentdomain "github.com/railzwaylabs/payrail/internal/payment/domain"
)

const (
	errorTypeInvalidRequest = "invalid_request_error"
	errorTypeAuthentication = "authentication_error"
	errorTypePermission     = "permission_error"
	errorTypeConnector      = "connector_error"
	errorTypeAPI            = "api_error"
)

// APIError is the JSON error body: {"error": {"type", "code", "message", "field"}}.
type APIError struct {
	Status  int    `json:"-"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string { return e.Code + ": " + e.Message }

var (
	ErrInvalidRequest = &APIError{Status: http.StatusBadRequest, Type: errorTypeInvalidRequest, Code: "invalid_request", Message: "invalid request"}
	ErrUnauthorized   = &APIError{Status: http.StatusUnauthorized, Type: errorTypeAuthentication, Code: "unauthorized", Message: "invalid or missing api key"}
	ErrForbidden      = &APIError{Status: http.StatusForbidden, Type: errorTypePermission, Code: "forbidden", Message: "api key is not allowed to perform this action"}
	ErrNotFound       = &APIError{Status: http.StatusNotFound, Type: errorTypeInvalidRequest, Code: "not_found", Message: "resource not found"}
	ErrInternal       = &APIError{Status: http.StatusInternalServerError, Type: errorTypeAPI, Code: "internal_error", Message: "internal error"}
)

// ErrorResponse documents the error envelope.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func invalidRequestError() *APIError {
	return ErrInvalidRequest
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Type:    errorTypeInvalidRequest,
		Code:    code,
		Message: message,
		Field:   field,
	}
}

type errorMapping struct {
	target error
	status int
	kind   string
}

// errorMappings is checked in order; the first sentinel matched with errors.Is wins.
var errorMappings = []errorMapping{
	{apikeydomain.ErrUnauthorized, http.StatusUnauthorized, errorTypeAuthentication},
	{authorization.ErrForbidden, http.StatusForbidden, errorTypePermission},

	{apikeydomain.ErrNotFound, http.StatusNotFound, errorTypeInvalidRequest},
	{mcadomain.ErrNotFound, http.StatusNotFound, errorTypeInvalidRequest},
	{paymentdomain.ErrPaymentNotFound, http.StatusNotFound, errorTypeInvalidRequest},
	{paymentdomain.ErrRefundNotFound, http.StatusNotFound, errorTypeInvalidRequest},

	{apikeydomain.ErrInvalidRole, http.StatusBadRequest, errorTypeInvalidRequest},
	{apikeydomain.ErrInvalidName, http.StatusBadRequest, errorTypeInvalidRequest},
	{mcadomain.ErrInvalidConnector, http.StatusBadRequest, errorTypeInvalidRequest},
	{mcadomain.ErrInvalidDetails, http.StatusBadRequest, errorTypeInvalidRequest},
	{mcadomain.ErrInvalidPaymentMethod, http.StatusBadRequest, errorTypeInvalidRequest},
	{paymentdomain.ErrInvalidAmount, http.StatusBadRequest, errorTypeInvalidRequest},
	{paymentdomain.ErrInvalidCurrency, http.StatusBadRequest, errorTypeInvalidRequest},
	{paymentdomain.ErrInvalidCaptureMethod, http.StatusBadRequest, errorTypeInvalidRequest},
	{connectordomain.ErrConnectorNotFound, http.StatusBadRequest, errorTypeInvalidRequest},
	{connectordomain.ErrMissingRequiredField, http.StatusBadRequest, errorTypeInvalidRequest},
	{connectordomain.ErrInvalidAuthType, http.StatusBadRequest, errorTypeInvalidRequest},
	{connectordomain.ErrPaymentMethodNotSupported, http.StatusBadRequest, errorTypeInvalidRequest},

	{mcadomain.ErrDuplicateLabel, http.StatusConflict, errorTypeInvalidRequest},
	{paymentdomain.ErrIdempotencyConflict, http.StatusConflict, errorTypeInvalidRequest},

	{paymentdomain.ErrInvalidStatus, http.StatusUnprocessableEntity, errorTypeInvalidRequest},
	{paymentdomain.ErrAmountExceedsLimit, http.StatusUnprocessableEntity, errorTypeInvalidRequest},
	{paymentdomain.ErrNoConnectorAvailable, http.StatusUnprocessableEntity, errorTypeInvalidRequest},
	{paymentdomain.ErrConnectorAccountState, http.StatusUnprocessableEntity, errorTypeInvalidRequest},
	{mcadomain.ErrDisabled, http.StatusUnprocessableEntity, errorTypeInvalidRequest},
	{connectordomain.ErrFlowNotSupported, http.StatusUnprocessableEntity, errorTypeInvalidRequest},

	{connectorservice.ErrConnectorTimeout, http.StatusGatewayTimeout, errorTypeConnector},
	{connectordomain.ErrCircuitOpen, http.StatusServiceUnavailable, errorTypeConnector},
	{connectorservice.ErrConnectorUnreachable, http.StatusBadGateway, errorTypeConnector},
	{connectordomain.ErrProcessingStepFailed, http.StatusBadGateway, errorTypeConnector},
	{connectordomain.ErrResponseDeserialization, http.StatusBadGateway, errorTypeConnector},
}

func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		return newValidationError(field, "invalid_"+field, field+" failed the "+fe.Tag()+" check")
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return &APIError{
				Status:  m.status,
				Type:    m.kind,
				Code:    m.target.Error(),
				Message: err.Error(),
			}
		}
	}
	return ErrInternal
}

// AbortWithError writes the error envelope and stops the handler chain. Unmapped errors
// are recorded on the context for the access log and reported as internal errors.
func AbortWithError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
}

var errDatabaseNotConfigured = errors.New("database not configured")

// bindError keeps field level validation failures and reports malformed bodies as a
// generic invalid request.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	return invalidRequestError()
}
