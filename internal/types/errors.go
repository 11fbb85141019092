package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of engine error classifications. Every failure
// surfaced by the engine carries exactly one of these, so callers can branch
// on kind without parsing message text.
type ErrorKind string

const (
	// Verification
	KindSignatureMismatch ErrorKind = "signature_mismatch"
	KindChallengeExpired  ErrorKind = "challenge_expired"

	// Resolution
	KindNoMatchingGrant ErrorKind = "no_matching_grant"

	// Execution
	KindPermissionDenied       ErrorKind = "permission_denied"
	KindDuplicateBatch         ErrorKind = "duplicate_batch"
	KindStaleOrMismatchedGrant ErrorKind = "stale_or_mismatched_grant"
	KindTransientNetworkError  ErrorKind = "transient_network_error"
	KindAmbiguousOutcome       ErrorKind = "ambiguous_outcome"
	KindUnknownRelayError      ErrorKind = "unknown_relay_error"
	// KindPartialExecutionRisk is raised when the relay's prepare response
	// suggests it would apply the batch non-atomically. Nothing has been
	// submitted; execution stops before signing.
	KindPartialExecutionRisk ErrorKind = "partial_execution_risk"

	// Fatal configuration problems (missing key, key-type mismatch)
	KindConfigurationError ErrorKind = "configuration_error"
)

// NoMatchingGrant detail values. Three distinct causes collapse into one
// error kind but must never be confused in the detail.
const (
	DetailNoGrantForWallet  = "no_grant_for_wallet"
	DetailAllGrantsExpired  = "all_grants_expired"
	DetailScopeInsufficient = "scope_insufficient"
)

// EngineError is a typed engine failure carrying its classification.
type EngineError struct {
	Kind   ErrorKind
	Detail string
}

func (e *EngineError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// NewError creates a typed engine error.
func NewError(kind ErrorKind, detail string) *EngineError {
	return &EngineError{Kind: kind, Detail: detail}
}

// Errorf creates a typed engine error with a formatted detail.
func Errorf(kind ErrorKind, format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the classification of err, or KindUnknownRelayError when err
// is not an EngineError.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindUnknownRelayError
}

// DetailOf returns the detail of err when it is an EngineError.
func DetailOf(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Detail
	}
	return err.Error()
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind ErrorKind) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Kind == kind
}
