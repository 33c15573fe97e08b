package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFlowNotSupported          = errors.New("flow_not_supported")
	ErrConnectorNotFound         = errors.New("connector_not_found")
	ErrInvalidAuthType           = errors.New("invalid_auth_type")
	ErrMissingRequiredField      = errors.New("missing_required_field")
	ErrResponseDeserialization   = errors.New("response_deserialization_failed")
	ErrRequestEncoding           = errors.New("request_encoding_failed")
	ErrProcessingStepFailed      = errors.New("processing_step_failed")
	ErrCircuitOpen               = errors.New("connector_circuit_open")
	ErrAmountConversion          = errors.New("amount_conversion_failed")
	ErrInvalidCurrency           = errors.New("invalid_currency")
	ErrMissingBaseURL            = errors.New("missing_connector_base_url")
	ErrPaymentMethodNotSupported = errors.New("payment_method_not_supported")
)

const (
	NoErrorCode    = "No error code"
	NoErrorMessage = "No error message"

	// TimeoutErrorCode marks an outcome the connector may or may not have processed.
	TimeoutErrorCode    = "TIMEOUT"
	ConnectionErrorCode = "IE_CONNECTION"
)

// MissingRequiredFieldError is returned by transformers when the envelope lacks a value the
// connector cannot work without.
type MissingRequiredFieldError struct {
	Field string
}

func (e MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func (e MissingRequiredFieldError) Is(target error) bool {
	return target == ErrMissingRequiredField
}

func MissingField(field string) error {
	return MissingRequiredFieldError{Field: field}
}

// ErrorResponse is the normalized failure reported by a connector.
type ErrorResponse struct {
	Code                   string         `json:"code"`
	Message                string         `json:"message"`
	Reason                 string         `json:"reason,omitempty"`
	StatusCode             int            `json:"status_code"`
	AttemptStatus          *AttemptStatus `json:"attempt_status,omitempty"`
	ConnectorTransactionID string         `json:"connector_transaction_id,omitempty"`
}

func (e ErrorResponse) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NormalizeErrorResponse fills blank code and message with the framework placeholders.
func NormalizeErrorResponse(e ErrorResponse) ErrorResponse {
	if e.Code == "" {
		e.Code = NoErrorCode
	}
	if e.Message == "" {
		e.Message = NoErrorMessage
	}
	return e
}
