package domain

type AttemptStatus string

const (
	AttemptStarted               AttemptStatus = "started"
	AttemptAuthenticationPending AttemptStatus = "authentication_pending"
	AttemptAuthorized            AttemptStatus = "authorized"
	AttemptCharged               AttemptStatus = "charged"
	AttemptPartialCharged        AttemptStatus = "partial_charged"
	AttemptPending               AttemptStatus = "pending"
	AttemptVoided                AttemptStatus = "voided"
	AttemptVoidFailed            AttemptStatus = "void_failed"
	AttemptCaptureFailed         AttemptStatus = "capture_failed"
	AttemptAuthorizationFailed   AttemptStatus = "authorization_failed"
	AttemptFailure               AttemptStatus = "failure"
	AttemptAutoRefunded          AttemptStatus = "auto_refunded"
)

// IsTerminal reports whether no further connector call can change the attempt.
func (s AttemptStatus) IsTerminal() bool {
	switch s {
	case AttemptCharged, AttemptVoided, AttemptFailure, AttemptAuthorizationFailed, AttemptAutoRefunded:
		return true
	}
	return false
}

// NeedsSync reports whether the attempt outcome is still unknown to us.
func (s AttemptStatus) NeedsSync() bool {
	switch s {
	case AttemptStarted, AttemptPending, AttemptAuthenticationPending:
		return true
	}
	return false
}

type RefundStatus string

const (
	RefundPending      RefundStatus = "pending"
	RefundSuccess      RefundStatus = "success"
	RefundFailure      RefundStatus = "failure"
	RefundManualReview RefundStatus = "manual_review"
)

func (s RefundStatus) IsTerminal() bool {
	return s == RefundSuccess || s == RefundFailure
}

// FailureStatus is the attempt status recorded when a flow fails without the connector
// telling us otherwise. PSync leaves the attempt untouched.
func FailureStatus(flow FlowName, current AttemptStatus) AttemptStatus {
	switch flow {
	case FlowAuthorize:
		return AttemptFailure
	case FlowCapture:
		return AttemptCaptureFailed
	case FlowVoid:
		return AttemptVoidFailed
	default:
		return current
	}
}
