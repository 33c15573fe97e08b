package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/railzwaylabs/payrail/internal/clock"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	"github.com/railzwaylabs/payrail/internal/payment/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	errorCodeRequestBuild = "request_build_failed"
	errorCodeUnreadable   = "unreadable_connector_response"
)

type PaymentsParams struct {
	fx.In

	Intents    domain.IntentRepository
	Attempts   domain.AttemptRepository
	Dispatcher *Dispatcher
	Clock      clock.Clock
	Node       *snowflake.Node
	Log        *zap.Logger
}

type PaymentsService struct {
	intents    domain.IntentRepository
	attempts   domain.AttemptRepository
	dispatcher *Dispatcher
	clock      clock.Clock
	node       *snowflake.Node
	log        *zap.Logger
	tracer     trace.Tracer
}

func NewPaymentsService(p PaymentsParams) *PaymentsService {
	return &PaymentsService{
		intents:    p.Intents,
		attempts:   p.Attempts,
		dispatcher: p.Dispatcher,
		clock:      p.Clock,
		node:       p.Node,
		log:        p.Log.Named("payment.service"),
		tracer:     otel.Tracer("payrail/payment"),
	}
}

func (s *PaymentsService) Create(ctx context.Context, input domain.CreatePaymentInput) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payments.create")
	defer span.End()

	key := strings.TrimSpace(input.IdempotencyKey)
	if key != "" {
		existing, err := s.intents.FindByIdempotencyKey(ctx, nil, input.MerchantID, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			span.SetAttributes(attribute.Bool("payment.idempotent_replay", true))
			return s.load(ctx, existing)
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidAmount)
	}
	if !connectordomain.IsSupportedCurrency(currency) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, input.Currency)
	}
	captureMethod := input.CaptureMethod
	switch captureMethod {
	case "":
		captureMethod = connectordomain.CaptureAutomatic
	case connectordomain.CaptureAutomatic, connectordomain.CaptureManual:
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCaptureMethod, captureMethod)
	}
	authType := input.AuthenticationType
	if authType == "" {
		authType = connectordomain.AuthNoThreeDS
	}
	if err := input.PaymentMethodData.Validate(); err != nil {
		return nil, err
	}

	rt, err := s.dispatcher.selectRoute(ctx, input.MerchantID, input.Connector, input.MerchantConnectorID, input.PaymentMethodData.Type)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.connector", rt.data.Name))

	now := s.clock.Now(ctx)
	intent := &domain.PaymentIntent{
		ID:            s.node.Generate(),
		MerchantID:    input.MerchantID,
		Status:        domain.IntentRequiresConfirmation,
		Amount:        input.Amount,
		Currency:      currency,
		CustomerID:    input.CustomerID,
		Email:         input.Email,
		Description:   input.Description,
		ReturnURL:     input.ReturnURL,
		CaptureMethod: captureMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if key != "" {
		intent.IdempotencyKey = &key
	}
	if input.BillingAddress != nil {
		b, err := json.Marshal(input.BillingAddress)
		if err != nil {
			return nil, err
		}
		intent.BillingAddress = datatypes.JSON(b)
	}
	if len(input.Metadata) > 0 {
		b, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, err
		}
		intent.Metadata = datatypes.JSON(b)
	}

	if err := s.intents.Insert(ctx, nil, intent); err != nil {
		if errors.Is(err, domain.ErrIdempotencyConflict) && key != "" {
			existing, findErr := s.intents.FindByIdempotencyKey(ctx, nil, input.MerchantID, key)
			if findErr == nil && existing != nil {
				return s.load(ctx, existing)
			}
		}
		return nil, err
	}

	attempt := &domain.PaymentAttempt{
		ID:                          s.node.Generate(),
		PaymentID:                   intent.ID,
		MerchantID:                  intent.MerchantID,
		Connector:                   rt.data.Name,
		MerchantConnectorID:         rt.account.ID,
		Status:                      connectordomain.AttemptStarted,
		Amount:                      intent.Amount,
		Currency:                    intent.Currency,
		PaymentMethod:               input.PaymentMethodData.Type,
		AuthenticationType:          authType,
		ConnectorRequestReferenceID: ulid.Make().String(),
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}
	if err := s.attempts.Insert(ctx, nil, attempt); err != nil {
		return nil, err
	}
	intent.ActiveAttemptID = &attempt.ID
	intent.Status = domain.IntentProcessing
	// Recorded before the call so psync can reach the attempt whatever happens next.
	if err := s.intents.Update(ctx, nil, intent); err != nil {
		return nil, fmt.Errorf("update payment %s: %w", intent.ID, err)
	}
	// The connector may move money even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	rd := connectordomain.NewRouterData[connectordomain.Authorize, connectordomain.PaymentsAuthorizeData, connectordomain.PaymentsResponseData](
		rt.envelope(intent, attempt),
		connectordomain.PaymentsAuthorizeData{
			Amount:              connectordomain.MinorUnit(intent.Amount),
			Currency:            intent.Currency,
			PaymentMethodData:   input.PaymentMethodData,
			CaptureMethod:       captureMethod,
			Email:               input.Email,
			CustomerName:        input.CustomerName,
			StatementDescriptor: input.StatementDescriptor,
			Metadata:            input.Metadata,
		},
	)

	out, raw, callErr := call(ctx, s.dispatcher, rt, rd)
	switch {
	case callErr == nil:
		applyPaymentResult(intent, attempt, out, raw, intent.Amount, s.clock.Now(ctx))
	case errors.Is(callErr, connectordomain.ErrProcessingStepFailed):
		markUnknown(intent, attempt, raw, callErr, s.clock.Now(ctx))
	default:
		// Nothing reached the connector.
		attempt.Status = connectordomain.AttemptFailure
		attempt.ErrorCode = errorCodeRequestBuild
		attempt.ErrorMessage = callErr.Error()
		attempt.UpdatedAt = s.clock.Now(ctx)
		intent.Status = domain.IntentFailed
		intent.UpdatedAt = attempt.UpdatedAt
	}

	if err := s.persist(ctx, intent, attempt); err != nil {
		return nil, err
	}
	s.dispatcher.observe(rt.data.Name, connectordomain.FlowAuthorize, string(attempt.Status))
	s.log.Info("payment created",
		zap.String("payment_id", intent.ID.String()),
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("connector", attempt.Connector),
		zap.String("status", string(intent.Status)),
	)

	if callErr != nil && !errors.Is(callErr, connectordomain.ErrProcessingStepFailed) {
		return nil, callErr
	}
	return &domain.Payment{Intent: *intent, Attempt: attempt}, nil
}

func (s *PaymentsService) Capture(ctx context.Context, merchantID, id snowflake.ID, input domain.CapturePaymentInput) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payments.capture")
	defer span.End()

	intent, attempt, err := s.get(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if intent.Status != domain.IntentRequiresCapture {
		return nil, fmt.Errorf("%w: cannot capture a payment in status %s", domain.ErrInvalidStatus, intent.Status)
	}

	amount := intent.Capturable()
	if input.Amount != nil {
		if *input.Amount <= 0 {
			return nil, fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidAmount)
		}
		if *input.Amount > amount {
			return nil, fmt.Errorf("%w: capturable amount is %d", domain.ErrAmountExceedsLimit, amount)
		}
		amount = *input.Amount
	}

	rt, err := s.dispatcher.routeFor(ctx, merchantID, attempt.MerchantConnectorID)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	rd := connectordomain.NewRouterData[connectordomain.Capture, connectordomain.PaymentsCaptureData, connectordomain.PaymentsResponseData](
		rt.envelope(intent, attempt),
		connectordomain.PaymentsCaptureData{
			AmountToCapture:        connectordomain.MinorUnit(amount),
			PaymentAmount:          connectordomain.MinorUnit(intent.Amount),
			Currency:               intent.Currency,
			ConnectorTransactionID: attempt.ConnectorTransactionID,
		},
	)
	out, raw, err := call(ctx, s.dispatcher, rt, rd)
	if err != nil {
		if !errors.Is(err, connectordomain.ErrProcessingStepFailed) {
			return nil, err
		}
		markUnknown(intent, attempt, raw, err, s.clock.Now(ctx))
	} else {
		applyPaymentResult(intent, attempt, out, raw, amount, s.clock.Now(ctx))
	}

	if err := s.persist(ctx, intent, attempt); err != nil {
		return nil, err
	}
	s.dispatcher.observe(rt.data.Name, connectordomain.FlowCapture, string(attempt.Status))
	return &domain.Payment{Intent: *intent, Attempt: attempt}, nil
}

func (s *PaymentsService) Cancel(ctx context.Context, merchantID, id snowflake.ID, reason string) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payments.cancel")
	defer span.End()

	intent, attempt, err := s.get(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if !intent.Status.Cancellable() {
		return nil, fmt.Errorf("%w: cannot cancel a payment in status %s", domain.ErrInvalidStatus, intent.Status)
	}

	rt, err := s.dispatcher.routeFor(ctx, merchantID, attempt.MerchantConnectorID)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	previous := attempt.Status
	rd := connectordomain.NewRouterData[connectordomain.Void, connectordomain.PaymentsCancelData, connectordomain.PaymentsResponseData](
		rt.envelope(intent, attempt),
		connectordomain.PaymentsCancelData{
			Amount:                 connectordomain.MinorUnit(intent.Amount),
			Currency:               intent.Currency,
			ConnectorTransactionID: attempt.ConnectorTransactionID,
			CancellationReason:     strings.TrimSpace(reason),
		},
	)
	out, raw, err := call(ctx, s.dispatcher, rt, rd)
	if err != nil {
		if !errors.Is(err, connectordomain.ErrProcessingStepFailed) {
			return nil, err
		}
		markUnknown(intent, attempt, raw, err, s.clock.Now(ctx))
	} else {
		// A failed void leaves an unauthorized attempt where it was.
		if out.Status == connectordomain.AttemptVoidFailed && previous != connectordomain.AttemptAuthorized {
			out.Status = previous
		}
		applyPaymentResult(intent, attempt, out, raw, 0, s.clock.Now(ctx))
	}

	if err := s.persist(ctx, intent, attempt); err != nil {
		return nil, err
	}
	s.dispatcher.observe(rt.data.Name, connectordomain.FlowVoid, string(attempt.Status))
	return &domain.Payment{Intent: *intent, Attempt: attempt}, nil
}

func (s *PaymentsService) Sync(ctx context.Context, merchantID, id snowflake.ID) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payments.sync")
	defer span.End()

	intent, attempt, err := s.get(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	return s.syncAttempt(ctx, intent, attempt)
}

// SyncAttempt refreshes the payment an attempt belongs to. It is the scheduler entry point.
func (s *PaymentsService) SyncAttempt(ctx context.Context, attempt domain.PaymentAttempt) (*domain.Payment, error) {
	intent, active, err := s.get(ctx, attempt.MerchantID, attempt.PaymentID)
	if err != nil {
		return nil, err
	}
	if active.ID != attempt.ID {
		return &domain.Payment{Intent: *intent, Attempt: active}, nil
	}
	return s.syncAttempt(ctx, intent, active)
}

func (s *PaymentsService) syncAttempt(ctx context.Context, intent *domain.PaymentIntent, attempt *domain.PaymentAttempt) (*domain.Payment, error) {
	current := &domain.Payment{Intent: *intent, Attempt: attempt}
	if attempt.Status.IsTerminal() {
		return current, nil
	}

	rt, err := s.dispatcher.routeFor(ctx, intent.MerchantID, attempt.MerchantConnectorID)
	if err != nil {
		return nil, err
	}
	rd := connectordomain.NewRouterData[connectordomain.PSync, connectordomain.PaymentsSyncData, connectordomain.PaymentsResponseData](
		rt.envelope(intent, attempt),
		connectordomain.PaymentsSyncData{
			Amount:                 connectordomain.MinorUnit(intent.Amount),
			Currency:               intent.Currency,
			ConnectorTransactionID: attempt.ConnectorTransactionID,
			CaptureMethod:          intent.CaptureMethod,
		},
	)
	out, raw, err := call(ctx, s.dispatcher, rt, rd)
	if err != nil {
		if errors.Is(err, connectordomain.ErrMissingRequiredField) {
			// Nothing to look up yet.
			return current, nil
		}
		return nil, err
	}
	if out.Err != nil && out.Status == attempt.Status {
		s.log.Warn("payment sync did not change status",
			zap.String("payment_id", intent.ID.String()),
			zap.String("code", out.Err.Code),
			zap.String("message", out.Err.Message),
		)
		return current, nil
	}
	if out.Status == attempt.Status && out.Err == nil && out.Response.ResourceID == "" {
		// Connectors without a sync call hand the envelope back untouched.
		return current, nil
	}

	applyPaymentResult(intent, attempt, out, raw, attempt.Amount, s.clock.Now(ctx))
	if err := s.persist(ctx, intent, attempt); err != nil {
		return nil, err
	}
	s.dispatcher.observe(rt.data.Name, connectordomain.FlowPSync, string(attempt.Status))
	return &domain.Payment{Intent: *intent, Attempt: attempt}, nil
}

func (s *PaymentsService) Retrieve(ctx context.Context, merchantID, id snowflake.ID, forceSync bool) (*domain.Payment, error) {
	if forceSync {
		return s.Sync(ctx, merchantID, id)
	}
	intent, attempt, err := s.get(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	return &domain.Payment{Intent: *intent, Attempt: attempt}, nil
}

func (s *PaymentsService) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.attempts.ListPending(ctx, nil, olderThan, limit)
}

func (s *PaymentsService) get(ctx context.Context, merchantID, id snowflake.ID) (*domain.PaymentIntent, *domain.PaymentAttempt, error) {
	intent, err := s.intents.FindByID(ctx, nil, merchantID, id)
	if err != nil {
		return nil, nil, err
	}
	if intent == nil {
		return nil, nil, domain.ErrPaymentNotFound
	}
	if intent.ActiveAttemptID == nil {
		return nil, nil, fmt.Errorf("%w: payment %s has no attempt", domain.ErrInvalidStatus, intent.ID)
	}
	attempt, err := s.attempts.FindByID(ctx, nil, *intent.ActiveAttemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt == nil {
		return nil, nil, fmt.Errorf("payment %s: active attempt %s missing", intent.ID, *intent.ActiveAttemptID)
	}
	return intent, attempt, nil
}

func (s *PaymentsService) load(ctx context.Context, intent *domain.PaymentIntent) (*domain.Payment, error) {
	out := &domain.Payment{Intent: *intent}
	if intent.ActiveAttemptID == nil {
		return out, nil
	}
	attempt, err := s.attempts.FindByID(ctx, nil, *intent.ActiveAttemptID)
	if err != nil {
		return nil, err
	}
	out.Attempt = attempt
	return out, nil
}

// persist writes the attempt before the intent so a crash in between leaves the intent
// behind, which the next sync repairs.
func (s *PaymentsService) persist(ctx context.Context, intent *domain.PaymentIntent, attempt *domain.PaymentAttempt) error {
	if err := s.attempts.Update(ctx, nil, attempt); err != nil {
		return fmt.Errorf("update attempt %s: %w", attempt.ID, err)
	}
	if err := s.intents.Update(ctx, nil, intent); err != nil {
		return fmt.Errorf("update payment %s: %w", intent.ID, err)
	}
	return nil
}

// applyPaymentResult copies a connector outcome onto the attempt and derives the intent
// status. capturedFallback is used when the connector reports a capture without an amount.
func applyPaymentResult[F connectordomain.Flow, Req any](
	intent *domain.PaymentIntent,
	attempt *domain.PaymentAttempt,
	rd *connectordomain.RouterData[F, Req, connectordomain.PaymentsResponseData],
	raw datatypes.JSON,
	capturedFallback int64,
	now time.Time,
) {
	attempt.Status = rd.Status
	if rd.Err != nil {
		attempt.ErrorCode = rd.Err.Code
		attempt.ErrorMessage = rd.Err.Message
		attempt.ErrorReason = rd.Err.Reason
		if rd.Err.ConnectorTransactionID != "" && attempt.ConnectorTransactionID == "" {
			attempt.ConnectorTransactionID = rd.Err.ConnectorTransactionID
		}
	} else {
		attempt.ErrorCode, attempt.ErrorMessage, attempt.ErrorReason = "", "", ""
		resp := rd.Response
		if resp.ResourceID != "" {
			attempt.ConnectorTransactionID = resp.ResourceID
		}
		if resp.Redirection != nil {
			attempt.RedirectURL = resp.Redirection.Endpoint
		}
		if len(resp.ConnectorMetadata) > 0 {
			attempt.ConnectorMetadata = datatypes.JSON(resp.ConnectorMetadata)
		}
	}
	if raw != nil {
		attempt.ConnectorResponse = raw
	}
	attempt.UpdatedAt = now

	switch {
	case rd.AmountCaptured != nil:
		intent.AmountCaptured = int64(*rd.AmountCaptured)
	case attempt.Status == connectordomain.AttemptCharged || attempt.Status == connectordomain.AttemptPartialCharged:
		if intent.AmountCaptured == 0 {
			intent.AmountCaptured = capturedFallback
		}
	}
	intent.Status = domain.IntentStatusFor(attempt.Status)
	intent.UpdatedAt = now
}

// markUnknown records a connector answer we could not interpret. The attempt goes to
// pending so the scheduler reconciles it.
func markUnknown(intent *domain.PaymentIntent, attempt *domain.PaymentAttempt, raw datatypes.JSON, err error, now time.Time) {
	attempt.Status = connectordomain.AttemptPending
	attempt.ErrorCode = errorCodeUnreadable
	attempt.ErrorMessage = err.Error()
	if raw != nil {
		attempt.ConnectorResponse = raw
	}
	attempt.UpdatedAt = now
	intent.Status = domain.IntentStatusFor(attempt.Status)
	intent.UpdatedAt = now
}

var _ domain.PaymentsService = (*PaymentsService)(nil)
