package relay

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"delegate-api/internal/types"
)

// classificationRule maps a relay error substring to an engine error kind.
// Rules are ordered: the first match wins, so more specific phrases come
// before generic ones.
type classificationRule struct {
	substring string
	kind      types.ErrorKind
}

var classificationRules = []classificationRule{
	{"duplicate call", types.KindDuplicateBatch},
	{"duplicate batch", types.KindDuplicateBatch},
	{"already submitted", types.KindDuplicateBatch},
	{"already known", types.KindDuplicateBatch},

	{"invalid precall", types.KindStaleOrMismatchedGrant},
	{"context mismatch", types.KindStaleOrMismatchedGrant},
	{"unknown context", types.KindStaleOrMismatchedGrant},
	{"expired context", types.KindStaleOrMismatchedGrant},
	{"stale grant", types.KindStaleOrMismatchedGrant},

	{"insufficient permission", types.KindPermissionDenied},
	{"permission denied", types.KindPermissionDenied},
	{"not authorized", types.KindPermissionDenied},
	{"unauthorized", types.KindPermissionDenied},
	{"caveat", types.KindPermissionDenied},
	{"delegation expired", types.KindPermissionDenied},

	{"timeout", types.KindTransientNetworkError},
	{"timed out", types.KindTransientNetworkError},
	{"connection refused", types.KindTransientNetworkError},
	{"connection reset", types.KindTransientNetworkError},
	{"service unavailable", types.KindTransientNetworkError},
}

// Classify maps a relay failure onto the engine's closed error taxonomy.
// Exhaustive by default: anything unrecognized becomes KindUnknownRelayError
// so the request path always produces a structured outcome, never a crash.
func Classify(err error) types.ErrorKind {
	if err == nil {
		return types.KindUnknownRelayError
	}

	if IsTransient(err) {
		return types.KindTransientNetworkError
	}

	message := strings.ToLower(err.Error())
	var relayErr *Error
	if errors.As(err, &relayErr) {
		message = strings.ToLower(relayErr.Message)
		// Relay-side 5xx with no recognizable message is a transient fault.
		for _, rule := range classificationRules {
			if strings.Contains(message, rule.substring) {
				return rule.kind
			}
		}
		if relayErr.StatusCode >= 500 {
			return types.KindTransientNetworkError
		}
		return types.KindUnknownRelayError
	}

	for _, rule := range classificationRules {
		if strings.Contains(message, rule.substring) {
			return rule.kind
		}
	}
	return types.KindUnknownRelayError
}

// IsTransient reports whether err is a transport-level failure (network,
// timeout, cancellation) rather than a relay-reported rejection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
