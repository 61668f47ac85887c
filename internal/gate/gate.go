package gate

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/auth"
)

// DenyReason classifies why the gate refused a request.
type DenyReason int

const (
	// DenyUnauthenticated means token validation failed.
	DenyUnauthenticated DenyReason = iota
	// DenyBlocked means the caller's account is blocked.
	DenyBlocked
	// DenyForbidden means the credential lacks the required capability.
	DenyForbidden
	// DenyStorageUnavailable means the blocked flag could not be read.
	// The caller is still refused, but the body reports a backend
	// failure rather than a blocked account.
	DenyStorageUnavailable
)

// Denied carries the gate's refusal and the underlying cause, if any.
type Denied struct {
	Reason DenyReason
	Cause  error
}

func (d *Denied) Error() string {
	switch d.Reason {
	case DenyBlocked:
		return "account blocked"
	case DenyForbidden:
		return "capability missing"
	case DenyStorageUnavailable:
		return "blocked flag unavailable"
	default:
		return "unauthenticated"
	}
}

// Gate authorizes every inbound action before any handler logic runs:
// token validation, then the caller's blocked flag, then the capability
// check. The sequence short-circuits on the first failure, and the
// blocked check always targets the caller, never the action's subject.
type Gate struct {
	validator *auth.Validator
	blocked   BlockedStore
	log       zerolog.Logger
}

// New creates a Gate.
func New(validator *auth.Validator, blocked BlockedStore, log zerolog.Logger) *Gate {
	return &Gate{
		validator: validator,
		blocked:   blocked,
		log:       log.With().Str("component", "gate").Logger(),
	}
}

// Authorize runs the full check sequence for a caller. capability may be
// empty for actions any authenticated caller can perform. A blocked
// caller is refused even with a valid token and sufficient capability.
func (g *Gate) Authorize(ctx context.Context, callerID, bearerToken, capability string) (*auth.Credential, *Denied) {
	cred, err := g.validator.Validate(callerID, bearerToken)
	if err != nil {
		g.log.Debug().Err(err).Str("caller_id", callerID).Msg("token rejected")
		return nil, &Denied{Reason: DenyUnauthenticated, Cause: err}
	}

	blocked, err := g.blocked.IsBlocked(ctx, callerID)
	if err != nil {
		// Fail safe: an unreadable flag denies access rather than
		// letting a possibly blocked account through.
		g.log.Error().Err(err).Str("caller_id", callerID).Msg("blocked lookup failed")
		return nil, &Denied{Reason: DenyStorageUnavailable, Cause: err}
	}
	if blocked {
		return nil, &Denied{Reason: DenyBlocked}
	}

	if capability != "" && !cred.HasCapability(capability) {
		return nil, &Denied{Reason: DenyForbidden}
	}

	return cred, nil
}
