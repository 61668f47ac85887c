package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeAccess is the only token type accepted for API actions.
// Refresh tokens carry type "refresh" and are rejected here.
const TokenTypeAccess = "access"

// Reason identifies why token validation failed.
type Reason string

const (
	ReasonMissingToken     Reason = "MISSING_TOKEN"
	ReasonMalformed        Reason = "MALFORMED"
	ReasonIdentityMismatch Reason = "IDENTITY_MISMATCH"
	ReasonWrongTokenType   Reason = "WRONG_TOKEN_TYPE"
	ReasonExpired          Reason = "EXPIRED"
	ReasonBadSignature     Reason = "BAD_SIGNATURE"
)

// AuthError is a typed token validation failure.
type AuthError struct {
	Reason Reason
	detail string
}

func (e *AuthError) Error() string {
	if e.detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.detail)
}

func authErr(reason Reason, detail string) *AuthError {
	return &AuthError{Reason: reason, detail: detail}
}

// lenientString decodes a JSON string and reads any other shape as
// empty. Wrong-typed optional claims must not fail the token decode.
type lenientString string

func (s *lenientString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	*s = lenientString(v)
	return nil
}

// lenientStrings decodes a JSON string array and reads any other shape
// as empty. A wrong-typed permissions claim then grants no capabilities
// instead of rejecting the whole token.
type lenientStrings []string

func (s *lenientStrings) UnmarshalJSON(data []byte) error {
	var vals []string
	if err := json.Unmarshal(data, &vals); err != nil {
		*s = nil
		return nil
	}
	*s = vals
	return nil
}

// claims mirrors the user service's access-token payload. exp is kept as a
// raw pointer so a missing expiry is distinguishable from a past one.
// Only the identity claims (user_id, type) are decoded strictly; the
// rest degrade to empty values when mistyped.
type claims struct {
	SubjectID   string           `json:"user_id"`
	TokenType   string           `json:"type"`
	Role        lenientString    `json:"role"`
	Permissions lenientStrings   `json:"permissions"`
	FirstName   lenientString    `json:"first_name"`
	LastName    lenientString    `json:"last_name"`
	ExpiresAt   *jwt.NumericDate `json:"exp"`
}

// GetExpirationTime and friends satisfy jwt.Claims. Expiry is checked
// explicitly in Validate, not by the library, so the failure reason stays
// distinguishable; GetExpirationTime therefore reports no expiry.
func (claims) GetExpirationTime() (*jwt.NumericDate, error) { return nil, nil }
func (claims) GetIssuedAt() (*jwt.NumericDate, error)       { return nil, nil }
func (claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (claims) GetIssuer() (string, error)                   { return "", nil }
func (claims) GetSubject() (string, error)                  { return "", nil }
func (claims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

// Validator verifies bearer tokens under a fixed symmetric key.
type Validator struct {
	secret []byte
	now    func() time.Time
}

// NewValidator creates a Validator. The secret is injected at construction;
// there is no process-wide key.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret), now: time.Now}
}

// Validate decodes and verifies a bearer token for the given caller
// identity. On success it returns the full decoded Credential so callers
// never need to re-decode the token. It is a pure function of
// (subjectID, token, current time) and has no side effects.
//
// Checks run in order, failing on the first violation:
// token present, decodable with required claims, subject matches the
// caller-supplied identity, token type is "access", not expired (a missing
// expiry counts as expired), signature verifies.
func (v *Validator) Validate(subjectID, bearerToken string) (*Credential, error) {
	if bearerToken == "" {
		return nil, authErr(ReasonMissingToken, "")
	}

	var cl claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))

	// Decode without signature verification first so structural failures
	// (undecodable token, absent claims) report Malformed rather than
	// BadSignature, matching the check order above.
	if _, _, err := parser.ParseUnverified(bearerToken, &cl); err != nil {
		return nil, authErr(ReasonMalformed, err.Error())
	}
	if cl.SubjectID == "" || cl.TokenType == "" {
		return nil, authErr(ReasonMalformed, "missing required claims")
	}

	if cl.SubjectID != subjectID {
		return nil, authErr(ReasonIdentityMismatch,
			fmt.Sprintf("token subject %q, caller %q", cl.SubjectID, subjectID))
	}

	if cl.TokenType != TokenTypeAccess {
		return nil, authErr(ReasonWrongTokenType, cl.TokenType)
	}

	// A token without an expiry claim is treated as expired, not as
	// unlimited.
	if cl.ExpiresAt == nil || cl.ExpiresAt.Time.Before(v.now()) {
		return nil, authErr(ReasonExpired, "")
	}

	if _, err := parser.ParseWithClaims(bearerToken, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}); err != nil {
		return nil, authErr(ReasonBadSignature, err.Error())
	}

	return &Credential{
		SubjectID:   cl.SubjectID,
		TokenType:   cl.TokenType,
		Role:        string(cl.Role),
		Permissions: []string(cl.Permissions),
		FirstName:   string(cl.FirstName),
		LastName:    string(cl.LastName),
	}, nil
}
