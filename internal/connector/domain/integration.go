package domain

import (
	"fmt"
	"net/http"
	"strings"
)

// Endpoints resolves connector base URLs. config.ConnectorsConfig satisfies it.
type Endpoints interface {
	BaseURL(connector string) string
}

// Integration is what a connector implements once per supported flow.
type Integration[F Flow, Req any, Resp any] interface {
	HTTPMethod() string
	ContentType() string
	GetHeaders(rd *RouterData[F, Req, Resp], cfg Endpoints) ([]Header, error)
	GetURL(rd *RouterData[F, Req, Resp], cfg Endpoints) (string, error)
	GetRequestBody(rd *RouterData[F, Req, Resp], cfg Endpoints) (RequestContent, error)
	HandleResponse(rd *RouterData[F, Req, Resp], res Response) (*RouterData[F, Req, Resp], error)
	GetErrorResponse(res Response) (ErrorResponse, error)
}

// RequestBuilder lets an integration replace the default request assembly. A nil request
// means the flow needs no connector call.
type RequestBuilder[F Flow, Req any, Resp any] interface {
	BuildRequest(rd *RouterData[F, Req, Resp], cfg Endpoints) (*Request, error)
}

// ServerErrorHandler parses 5xx bodies when they differ from the connector's 4xx format.
type ServerErrorHandler interface {
	Get5xxErrorResponse(res Response) (ErrorResponse, error)
}

// Connector is the flow independent surface of a payment processor adapter.
type Connector interface {
	ID() string
	BaseURL(cfg Endpoints) string
	CurrencyUnit() CurrencyUnit
	CommonContentType() string
	AuthHeaders(auth ConnectorAuthType) ([]Header, error)
	BuildErrorResponse(res Response) (ErrorResponse, error)
	// Integration returns the flow integration value, or false when the flow is not
	// supported.
	Integration(flow FlowName) (any, bool)
}

// ConnectorFactory builds a connector instance for the registry.
type ConnectorFactory interface {
	Provider() string
	NewConnector() Connector
}

// Integrations is the flow table a connector exposes through Connector.Integration.
type Integrations map[FlowName]any

func (t Integrations) Lookup(flow FlowName) (any, bool) {
	v, ok := t[flow]
	return v, ok && v != nil
}

// Flows lists supported flows in catalog order.
func (t Integrations) Flows() []FlowName {
	out := make([]FlowName, 0, len(t))
	for _, f := range AllFlows {
		if _, ok := t.Lookup(f); ok {
			out = append(out, f)
		}
	}
	return out
}

// IntegrationFor resolves the typed integration of flow F on connector c.
func IntegrationFor[F Flow, Req any, Resp any](c Connector) (Integration[F, Req, Resp], error) {
	var f F
	raw, ok := c.Integration(f.Name())
	if !ok {
		return nil, fmt.Errorf("%w: %s does not implement %s", ErrFlowNotSupported, c.ID(), f.Name())
	}
	integ, ok := raw.(Integration[F, Req, Resp])
	if !ok {
		return nil, fmt.Errorf("%w: %s registers %s with mismatched types %T", ErrFlowNotSupported, c.ID(), f.Name(), raw)
	}
	return integ, nil
}

// SupportsFlow reports whether c registers an integration for flow.
func SupportsFlow(c Connector, flow FlowName) bool {
	_, ok := c.Integration(flow)
	return ok
}

// BuildRequest assembles the connector call for rd, deferring to a RequestBuilder when the
// integration provides one.
func BuildRequest[F Flow, Req any, Resp any](integ Integration[F, Req, Resp], rd *RouterData[F, Req, Resp], cfg Endpoints) (*Request, error) {
	if b, ok := integ.(RequestBuilder[F, Req, Resp]); ok {
		return b.BuildRequest(rd, cfg)
	}

	u, err := integ.GetURL(rd, cfg)
	if err != nil {
		return nil, err
	}
	headers, err := integ.GetHeaders(rd, cfg)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(integ.HTTPMethod())
	req := &Request{Method: method, URL: u, Headers: headers}
	if method == http.MethodGet || method == http.MethodDelete {
		return req, nil
	}

	body, err := integ.GetRequestBody(rd, cfg)
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

// ErrorResponseFor picks the 5xx handler when the integration has one.
func ErrorResponseFor[F Flow, Req any, Resp any](integ Integration[F, Req, Resp], res Response) (ErrorResponse, error) {
	if res.IsServerError() {
		if h, ok := integ.(ServerErrorHandler); ok {
			return h.Get5xxErrorResponse(res)
		}
	}
	return integ.GetErrorResponse(res)
}

// DefaultHeaders returns the content type header followed by the connector auth headers.
func DefaultHeaders(c Connector, auth ConnectorAuthType, contentType string) ([]Header, error) {
	authHeaders, err := c.AuthHeaders(auth)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = c.CommonContentType()
	}
	headers := make([]Header, 0, len(authHeaders)+1)
	headers = append(headers, Header{Name: "Content-Type", Value: contentType})
	return append(headers, authHeaders...), nil
}

// BaseURLOrError resolves the connector base URL or reports that none is configured.
func BaseURLOrError(c Connector, cfg Endpoints) (string, error) {
	u := c.BaseURL(cfg)
	if u == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingBaseURL, c.ID())
	}
	return u, nil
}

// Base supplies the parts of an integration every flow of a connector shares: the common
// content type, auth headers and error parsing.
type Base[F Flow, Req any, Resp any] struct {
	Connector Connector
}

func (b Base[F, Req, Resp]) ContentType() string { return b.Connector.CommonContentType() }

func (b Base[F, Req, Resp]) GetHeaders(rd *RouterData[F, Req, Resp], _ Endpoints) ([]Header, error) {
	return DefaultHeaders(b.Connector, rd.ConnectorAuthType, b.Connector.CommonContentType())
}

func (b Base[F, Req, Resp]) GetErrorResponse(res Response) (ErrorResponse, error) {
	return b.Connector.BuildErrorResponse(res)
}

// NoCall is embedded by integrations whose outcome arrives asynchronously. The envelope
// passes through the processing step unchanged.
type NoCall[F Flow, Req any, Resp any] struct{}

func (NoCall[F, Req, Resp]) HTTPMethod() string  { return http.MethodGet }
func (NoCall[F, Req, Resp]) ContentType() string { return ContentTypeJSON }

func (NoCall[F, Req, Resp]) GetHeaders(*RouterData[F, Req, Resp], Endpoints) ([]Header, error) {
	return nil, nil
}

func (NoCall[F, Req, Resp]) GetURL(*RouterData[F, Req, Resp], Endpoints) (string, error) {
	return "", nil
}

func (NoCall[F, Req, Resp]) GetRequestBody(*RouterData[F, Req, Resp], Endpoints) (RequestContent, error) {
	return nil, nil
}

func (NoCall[F, Req, Resp]) BuildRequest(*RouterData[F, Req, Resp], Endpoints) (*Request, error) {
	return nil, nil
}

func (NoCall[F, Req, Resp]) HandleResponse(rd *RouterData[F, Req, Resp], _ Response) (*RouterData[F, Req, Resp], error) {
	return rd, nil
}

func (NoCall[F, Req, Resp]) GetErrorResponse(res Response) (ErrorResponse, error) {
	return ErrorResponse{StatusCode: res.StatusCode, Code: NoErrorCode, Message: NoErrorMessage}, nil
}
