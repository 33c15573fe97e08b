package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

// ExecuteProcessingStep runs one flow against a connector and returns the updated envelope.
//
// Connector declines and transport failures are reported through the envelope's Err and
// Status; the returned error is reserved for failures to build the request or to make
// sense of a successful response.
func ExecuteProcessingStep[F domain.Flow, Req any, Resp any](
	ctx context.Context,
	sender Sender,
	c domain.Connector,
	integ domain.Integration[F, Req, Resp],
	rd *domain.RouterData[F, Req, Resp],
	cfg domain.Endpoints,
) (*domain.RouterData[F, Req, Resp], error) {
	flow := rd.Flow()

	req, err := domain.BuildRequest(integ, rd, cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s request for %s: %w", flow, c.ID(), err)
	}
	if req == nil {
		return rd, nil
	}

	out := rd.Clone()
	start := time.Now()
	res, err := sender.Send(ctx, c.ID(), flow, req)
	out.ExternalLatency = time.Since(start)

	if err != nil {
		if errors.Is(err, ErrConnectorTimeout) || errors.Is(err, context.Canceled) {
			out.Err = &domain.ErrorResponse{
				Code:    domain.TimeoutErrorCode,
				Message: "connector did not respond in time; outcome unknown",
			}
			if flow == domain.FlowAuthorize || flow == domain.FlowCapture || flow == domain.FlowVoid {
				out.Status = domain.AttemptPending
			}
			return out, nil
		}
		out.Fail(domain.ErrorResponse{
			Code:    domain.ConnectionErrorCode,
			Message: err.Error(),
		})
		return out, nil
	}

	out.ConnectorHTTPStatusCode = res.StatusCode
	if res.IsSuccess() {
		handled, err := integ.HandleResponse(out, res)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrProcessingStepFailed, c.ID(), flow, err)
		}
		handled.ConnectorHTTPStatusCode = res.StatusCode
		handled.ExternalLatency = out.ExternalLatency
		return handled, nil
	}

	errResp, err := domain.ErrorResponseFor(integ, res)
	if err != nil {
		errResp = domain.ErrorResponse{Message: truncate(string(res.Body), 256)}
	}
	if errResp.StatusCode == 0 {
		errResp.StatusCode = res.StatusCode
	}
	out.Fail(errResp)
	return out, nil
}

// IsTimeout reports whether the envelope failed because the connector did not answer.
func IsTimeout[F domain.Flow, Req any, Resp any](rd *domain.RouterData[F, Req, Resp]) bool {
	return rd.Err != nil && rd.Err.Code == domain.TimeoutErrorCode
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
