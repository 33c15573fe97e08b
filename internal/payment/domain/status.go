package domain

import connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"

// IntentStatusFor derives the intent status from its active attempt.
func IntentStatusFor(s connectordomain.AttemptStatus) IntentStatus {
	switch s {
	case connectordomain.AttemptStarted, connectordomain.AttemptPending:
		return IntentProcessing
	case connectordomain.AttemptAuthenticationPending:
		return IntentRequiresCustomerAction
	case connectordomain.AttemptAuthorized, connectordomain.AttemptVoidFailed:
		return IntentRequiresCapture
	case connectordomain.AttemptCharged:
		return IntentSucceeded
	case connectordomain.AttemptPartialCharged:
		return IntentPartiallyCaptured
	case connectordomain.AttemptVoided:
		return IntentCancelled
	case connectordomain.AttemptFailure,
		connectordomain.AttemptAuthorizationFailed,
		connectordomain.AttemptCaptureFailed,
		connectordomain.AttemptAutoRefunded:
		return IntentFailed
	default:
		return IntentProcessing
	}
}

// Cancellable reports whether a void may be sent for an intent in this status.
func (s IntentStatus) Cancellable() bool {
	switch s {
	case IntentRequiresCapture, IntentRequiresCustomerAction, IntentRequiresConfirmation:
		return true
	}
	return false
}

// Refundable reports whether captured funds exist to refund.
func (s IntentStatus) Refundable() bool {
	return s == IntentSucceeded || s == IntentPartiallyCaptured
}
