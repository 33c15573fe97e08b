package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

type Header struct {
	Name   string
	Value  string
	Masked bool
}

func (h Header) String() string {
	if h.Masked {
		return h.Name + ": ***"
	}
	return h.Name + ": " + h.Value
}

// RequestContent is an encodable request body.
type RequestContent interface {
	ContentType() string
	Encode() ([]byte, error)
}

type JSONContent struct {
	Value any
}

func (JSONContent) ContentType() string { return ContentTypeJSON }

func (c JSONContent) Encode() ([]byte, error) {
	b, err := json.Marshal(c.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestEncoding, err)
	}
	return b, nil
}

type FormContent struct {
	Values url.Values
}

func (FormContent) ContentType() string { return ContentTypeForm }

func (c FormContent) Encode() ([]byte, error) {
	return []byte(c.Values.Encode()), nil
}

// Request is a fully built connector call.
type Request struct {
	Method  string
	URL     string
	Headers []Header
	Body    RequestContent
	Timeout time.Duration
}

// HTTPRequest materializes the request for net/http.
func (r *Request) HTTPRequest() (*http.Request, error) {
	var body []byte
	if r.Body != nil {
		encoded, err := r.Body.Encode()
		if err != nil {
			return nil, err
		}
		body = encoded
	}
	req, err := http.NewRequest(r.Method, r.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestEncoding, err)
	}
	for _, h := range r.Headers {
		req.Header.Set(h.Name, h.Value)
	}
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", r.Body.ContentType())
	}
	return req, nil
}

// MaskedHeaders renders headers with secrets hidden, suitable for logs.
func (r *Request) MaskedHeaders() string {
	parts := make([]string, 0, len(r.Headers))
	for _, h := range r.Headers {
		parts = append(parts, h.String())
	}
	return strings.Join(parts, ", ")
}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (r Response) IsSuccess() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

func (r Response) IsServerError() bool { return r.StatusCode >= 500 }

// Decode unmarshals the body into v, wrapping failures as ErrResponseDeserialization.
func (r Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseDeserialization, err)
	}
	return nil
}
