package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/payrail/internal/clock"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	connectorservice "github.com/railzwaylabs/payrail/internal/connector/service"
	"github.com/railzwaylabs/payrail/internal/payment/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RefundsParams struct {
	fx.In

	DB         *gorm.DB
	Intents    domain.IntentRepository
	Attempts   domain.AttemptRepository
	Refunds    domain.RefundRepository
	Dispatcher *Dispatcher
	Clock      clock.Clock
	Node       *snowflake.Node
	Log        *zap.Logger
}

type RefundsService struct {
	db         *gorm.DB
	intents    domain.IntentRepository
	attempts   domain.AttemptRepository
	refunds    domain.RefundRepository
	dispatcher *Dispatcher
	clock      clock.Clock
	node       *snowflake.Node
	log        *zap.Logger
	tracer     trace.Tracer
}

func NewRefundsService(p RefundsParams) *RefundsService {
	return &RefundsService{
		db:         p.DB,
		intents:    p.Intents,
		attempts:   p.Attempts,
		refunds:    p.Refunds,
		dispatcher: p.Dispatcher,
		clock:      p.Clock,
		node:       p.Node,
		log:        p.Log.Named("refund.service"),
		tracer:     otel.Tracer("payrail/refund"),
	}
}

func (s *RefundsService) Create(ctx context.Context, input domain.CreateRefundInput) (*domain.Refund, error) {
	ctx, span := s.tracer.Start(ctx, "refunds.create")
	defer span.End()

	intent, err := s.intents.FindByID(ctx, nil, input.MerchantID, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, domain.ErrPaymentNotFound
	}
	if !intent.Status.Refundable() || intent.ActiveAttemptID == nil {
		return nil, fmt.Errorf("%w: cannot refund a payment in status %s", domain.ErrInvalidStatus, intent.Status)
	}
	attempt, err := s.attempts.FindByID(ctx, nil, *intent.ActiveAttemptID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, fmt.Errorf("payment %s: active attempt missing", intent.ID)
	}

	if input.Amount != nil && *input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidAmount)
	}

	rt, err := s.dispatcher.routeFor(ctx, input.MerchantID, attempt.MerchantConnectorID)
	if err != nil {
		return nil, err
	}

	// The intent row lock serializes refunds of one payment, so the limit check and the
	// insert see every committed refund.
	var refund *domain.Refund
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.intents.FindByIDForUpdate(ctx, tx, input.MerchantID, input.PaymentID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrPaymentNotFound
		}
		if !locked.Status.Refundable() {
			return fmt.Errorf("%w: cannot refund a payment in status %s", domain.ErrInvalidStatus, locked.Status)
		}
		intent = locked

		existing, err := s.refunds.ListByPayment(ctx, tx, intent.ID)
		if err != nil {
			return err
		}
		var committed int64
		for _, r := range existing {
			if r.Status != connectordomain.RefundFailure {
				committed += r.Amount
			}
		}
		remaining := intent.AmountCaptured - committed
		amount := remaining
		if input.Amount != nil {
			amount = *input.Amount
		}
		if amount <= 0 || amount > remaining {
			return fmt.Errorf("%w: refundable amount is %d", domain.ErrAmountExceedsLimit, max(remaining, 0))
		}

		now := s.clock.Now(ctx)
		refund = &domain.Refund{
			ID:                  s.node.Generate(),
			PaymentID:           intent.ID,
			AttemptID:           attempt.ID,
			MerchantID:          intent.MerchantID,
			Connector:           rt.data.Name,
			MerchantConnectorID: rt.account.ID,
			Amount:              amount,
			Currency:            intent.Currency,
			Status:              connectordomain.RefundPending,
			Reason:              strings.TrimSpace(input.Reason),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		return s.refunds.Insert(ctx, tx, refund)
	})
	if err != nil {
		return nil, err
	}

	// The connector may move money even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	rd := connectordomain.NewRouterData[connectordomain.Execute, connectordomain.RefundsData, connectordomain.RefundsResponseData](
		refundEnvelope(rt, intent, attempt, refund),
		connectordomain.RefundsData{
			RefundID:               refund.ID.String(),
			ConnectorTransactionID: attempt.ConnectorTransactionID,
			Currency:               refund.Currency,
			PaymentAmount:          connectordomain.MinorUnit(intent.AmountCaptured),
			RefundAmount:           connectordomain.MinorUnit(refund.Amount),
			Reason:                 refund.Reason,
		},
	)
	out, raw, callErr := call(ctx, s.dispatcher, rt, rd)
	switch {
	case callErr == nil:
		applyRefundResult(refund, out, raw, s.clock.Now(ctx))
	case errors.Is(callErr, connectordomain.ErrProcessingStepFailed):
		refund.ErrorCode = errorCodeUnreadable
		refund.ErrorMessage = callErr.Error()
		refund.ConnectorResponse = raw
		refund.UpdatedAt = s.clock.Now(ctx)
	default:
		refund.Status = connectordomain.RefundFailure
		refund.ErrorCode = errorCodeRequestBuild
		refund.ErrorMessage = callErr.Error()
		refund.UpdatedAt = s.clock.Now(ctx)
	}

	if err := s.refunds.Update(ctx, nil, refund); err != nil {
		return nil, fmt.Errorf("update refund %s: %w", refund.ID, err)
	}
	s.dispatcher.observe(rt.data.Name, connectordomain.FlowExecute, string(refund.Status))
	s.log.Info("refund created",
		zap.String("refund_id", refund.ID.String()),
		zap.String("payment_id", intent.ID.String()),
		zap.String("connector", refund.Connector),
		zap.String("status", string(refund.Status)),
	)

	if callErr != nil && !errors.Is(callErr, connectordomain.ErrProcessingStepFailed) {
		return nil, callErr
	}
	return refund, nil
}

func (s *RefundsService) Sync(ctx context.Context, merchantID, id snowflake.ID) (*domain.Refund, error) {
	ctx, span := s.tracer.Start(ctx, "refunds.sync")
	defer span.End()

	refund, err := s.refunds.FindByID(ctx, nil, merchantID, id)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, domain.ErrRefundNotFound
	}
	return s.SyncRefund(ctx, refund)
}

// SyncRefund asks the connector for the refund outcome. Refunds on connectors without a
// refund sync flow are returned unchanged.
func (s *RefundsService) SyncRefund(ctx context.Context, refund *domain.Refund) (*domain.Refund, error) {
	if refund.Status.IsTerminal() {
		return refund, nil
	}

	intent, err := s.intents.FindByID(ctx, nil, refund.MerchantID, refund.PaymentID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, domain.ErrPaymentNotFound
	}
	attempt, err := s.attempts.FindByID(ctx, nil, refund.AttemptID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, fmt.Errorf("refund %s: attempt %s missing", refund.ID, refund.AttemptID)
	}
	rt, err := s.dispatcher.routeFor(ctx, refund.MerchantID, refund.MerchantConnectorID)
	if err != nil {
		return nil, err
	}

	rd := connectordomain.NewRouterData[connectordomain.RSync, connectordomain.RefundsData, connectordomain.RefundsResponseData](
		refundEnvelope(rt, intent, attempt, refund),
		connectordomain.RefundsData{
			RefundID:               refund.ID.String(),
			ConnectorTransactionID: attempt.ConnectorTransactionID,
			ConnectorRefundID:      refund.ConnectorRefundID,
			Currency:               refund.Currency,
			PaymentAmount:          connectordomain.MinorUnit(intent.AmountCaptured),
			RefundAmount:           connectordomain.MinorUnit(refund.Amount),
			Reason:                 refund.Reason,
		},
	)
	out, raw, err := call(ctx, s.dispatcher, rt, rd)
	if err != nil {
		if errors.Is(err, connectordomain.ErrFlowNotSupported) || errors.Is(err, connectordomain.ErrMissingRequiredField) {
			return refund, nil
		}
		return nil, err
	}
	if out.Err != nil && out.Response.RefundStatus == "" {
		s.log.Warn("refund sync failed",
			zap.String("refund_id", refund.ID.String()),
			zap.String("code", out.Err.Code),
			zap.String("message", out.Err.Message),
		)
		return refund, nil
	}
	if out.Response.RefundStatus == "" {
		return refund, nil
	}

	applyRefundResult(refund, out, raw, s.clock.Now(ctx))
	if err := s.refunds.Update(ctx, nil, refund); err != nil {
		return nil, err
	}
	s.dispatcher.observe(rt.data.Name, connectordomain.FlowRSync, string(refund.Status))
	return refund, nil
}

func (s *RefundsService) Retrieve(ctx context.Context, merchantID, id snowflake.ID, forceSync bool) (*domain.Refund, error) {
	if forceSync {
		return s.Sync(ctx, merchantID, id)
	}
	refund, err := s.refunds.FindByID(ctx, nil, merchantID, id)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, domain.ErrRefundNotFound
	}
	return refund, nil
}

func (s *RefundsService) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Refund, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.refunds.ListPending(ctx, nil, olderThan, limit)
}

func refundEnvelope(rt route, intent *domain.PaymentIntent, attempt *domain.PaymentAttempt, refund *domain.Refund) connectordomain.Envelope {
	env := rt.envelope(intent, attempt)
	env.RefundID = refund.ID.String()
	return env
}

// applyRefundResult copies a refund outcome. A connector error without a refund status
// fails the refund unless the connector did not answer in time.
func applyRefundResult[F connectordomain.Flow](
	refund *domain.Refund,
	rd *connectordomain.RouterData[F, connectordomain.RefundsData, connectordomain.RefundsResponseData],
	raw datatypes.JSON,
	now time.Time,
) {
	resp := rd.Response
	if resp.ConnectorRefundID != "" {
		refund.ConnectorRefundID = resp.ConnectorRefundID
	}
	switch {
	case resp.RefundStatus != "":
		refund.Status = resp.RefundStatus
	case rd.Err != nil && !connectorservice.IsTimeout(rd):
		refund.Status = connectordomain.RefundFailure
	}
	if rd.Err != nil {
		refund.ErrorCode = rd.Err.Code
		refund.ErrorMessage = rd.Err.Message
	} else {
		refund.ErrorCode, refund.ErrorMessage = "", ""
	}
	if raw != nil {
		refund.ConnectorResponse = raw
	}
	refund.UpdatedAt = now
}

var _ domain.RefundsService = (*RefundsService)(nil)
