package domain

import (
	"encoding/json"
	"time"
)

// Envelope carries the flow independent part of RouterData.
type Envelope struct {
	MerchantID                  string
	CustomerID                  string
	Connector                   string
	MerchantConnectorID         string
	PaymentID                   string
	AttemptID                   string
	RefundID                    string
	Status                      AttemptStatus
	PaymentMethod               PaymentMethodType
	AuthType                    AuthenticationType
	ConnectorAuthType           ConnectorAuthType
	Description                 string
	ReturnURL                   string
	Address                     *Address
	ConnectorMeta               json.RawMessage
	AmountCaptured              *MinorUnit
	ConnectorRequestReferenceID string
	TestMode                    bool
	ConnectorHTTPStatusCode     int
	ExternalLatency             time.Duration
}

// RouterData is the envelope a single flow carries through a connector call. Request is
// the flow input; Response is populated on success and Err on failure.
type RouterData[F Flow, Req any, Resp any] struct {
	Envelope
	Request  Req
	Response Resp
	Err      *ErrorResponse
}

func NewRouterData[F Flow, Req any, Resp any](env Envelope, req Req) *RouterData[F, Req, Resp] {
	return &RouterData[F, Req, Resp]{Envelope: env, Request: req}
}

// Flow returns the name of the flow this envelope is parameterized with.
func (rd *RouterData[F, Req, Resp]) Flow() FlowName {
	var f F
	return f.Name()
}

func (rd *RouterData[F, Req, Resp]) IsSuccess() bool {
	return rd.Err == nil
}

// Fail records err and moves Status to the connector supplied status, falling back to the
// flow's failure status.
func (rd *RouterData[F, Req, Resp]) Fail(err ErrorResponse) {
	err = NormalizeErrorResponse(err)
	rd.Err = &err
	if err.AttemptStatus != nil {
		rd.Status = *err.AttemptStatus
		return
	}
	rd.Status = FailureStatus(rd.Flow(), rd.Status)
}

func (rd *RouterData[F, Req, Resp]) Succeed(resp Resp) {
	rd.Response = resp
	rd.Err = nil
}

// Clone returns a shallow copy so handlers can update a response without mutating input.
func (rd *RouterData[F, Req, Resp]) Clone() *RouterData[F, Req, Resp] {
	out := *rd
	return &out
}

// Convert moves the common envelope into a different flow with a new request payload.
// The response and error are reset.
func Convert[F2 Flow, Req2 any, Resp2 any, F Flow, Req any, Resp any](rd *RouterData[F, Req, Resp], req Req2) *RouterData[F2, Req2, Resp2] {
	return NewRouterData[F2, Req2, Resp2](rd.Envelope, req)
}

type (
	AuthorizeRouterData = RouterData[Authorize, PaymentsAuthorizeData, PaymentsResponseData]
	CaptureRouterData   = RouterData[Capture, PaymentsCaptureData, PaymentsResponseData]
	VoidRouterData      = RouterData[Void, PaymentsCancelData, PaymentsResponseData]
	PSyncRouterData     = RouterData[PSync, PaymentsSyncData, PaymentsResponseData]
	RefundRouterData    = RouterData[Execute, RefundsData, RefundsResponseData]
	RSyncRouterData     = RouterData[RSync, RefundsData, RefundsResponseData]
)
