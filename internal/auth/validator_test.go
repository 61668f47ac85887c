package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

type tokenOpts struct {
	subjectID string
	tokenType string
	role      string
	perms     []string
	exp       *time.Time
	secret    string
}

func mintToken(t *testing.T, o tokenOpts) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id":     o.subjectID,
		"type":        o.tokenType,
		"role":        o.role,
		"permissions": o.perms,
	}
	if o.exp != nil {
		claims["exp"] = o.exp.Unix()
	}
	secret := o.secret
	if secret == "" {
		secret = testSecret
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func fixedValidator(at time.Time) *Validator {
	v := NewValidator(testSecret)
	v.now = func() time.Time { return at }
	return v
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	return ae.Reason
}

func TestValidateSuccess(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)
	tok := mintToken(t, tokenOpts{
		subjectID: "user-7",
		tokenType: TokenTypeAccess,
		role:      "Teacher",
		perms:     []string{"course:add"},
		exp:       &exp,
	})

	cred, err := fixedValidator(now).Validate("user-7", tok)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if cred.SubjectID != "user-7" {
		t.Errorf("subject = %q, want user-7", cred.SubjectID)
	}
	if cred.Role != "Teacher" {
		t.Errorf("role = %q, want Teacher", cred.Role)
	}
	if !cred.HasCapability("course:add") {
		t.Error("expected course:add capability")
	}
}

func TestValidateFailureReasons(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name     string
		callerID string
		token    func(t *testing.T) string
		want     Reason
	}{
		{
			name:     "missing token",
			callerID: "user-1",
			token:    func(t *testing.T) string { return "" },
			want:     ReasonMissingToken,
		},
		{
			name:     "not a JWT",
			callerID: "user-1",
			token:    func(t *testing.T) string { return "garbage" },
			want:     ReasonMalformed,
		},
		{
			name:     "missing required claims",
			callerID: "user-1",
			token: func(t *testing.T) string {
				return mintToken(t, tokenOpts{subjectID: "user-1", exp: &future})
			},
			want: ReasonMalformed,
		},
		{
			name:     "subject differs from caller",
			callerID: "user-1",
			token: func(t *testing.T) string {
				return mintToken(t, tokenOpts{subjectID: "user-2", tokenType: TokenTypeAccess, exp: &future})
			},
			want: ReasonIdentityMismatch,
		},
		{
			name:     "refresh token",
			callerID: "user-1",
			token: func(t *testing.T) string {
				return mintToken(t, tokenOpts{subjectID: "user-1", tokenType: "refresh", exp: &future})
			},
			want: ReasonWrongTokenType,
		},
		{
			name:     "expired despite valid signature",
			callerID: "user-1",
			token: func(t *testing.T) string {
				return mintToken(t, tokenOpts{subjectID: "user-1", tokenType: TokenTypeAccess, exp: &past})
			},
			want: ReasonExpired,
		},
		{
			name:     "no expiry claim",
			callerID: "user-1",
			token: func(t *testing.T) string {
				return mintToken(t, tokenOpts{subjectID: "user-1", tokenType: TokenTypeAccess})
			},
			want: ReasonExpired,
		},
		{
			name:     "wrong signing key",
			callerID: "user-1",
			token: func(t *testing.T) string {
				return mintToken(t, tokenOpts{
					subjectID: "user-1", tokenType: TokenTypeAccess, exp: &future,
					secret: "some-other-secret",
				})
			},
			want: ReasonBadSignature,
		},
	}

	v := fixedValidator(now)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cred, err := v.Validate(tc.callerID, tc.token(t))
			if cred != nil {
				t.Fatal("expected nil credential")
			}
			if got := reasonOf(t, err); got != tc.want {
				t.Errorf("reason = %s, want %s", got, tc.want)
			}
		})
	}
}

func mintRawClaims(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func TestValidateMistypedOptionalClaims(t *testing.T) {
	// A validly signed token whose permissions claim is not a string
	// array still validates; it just grants no capabilities. Mistyped
	// claims never surface as a token failure.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := fixedValidator(now)

	tok := mintRawClaims(t, jwt.MapClaims{
		"user_id":     "user-3",
		"type":        TokenTypeAccess,
		"role":        42,
		"permissions": "not-an-array",
		"first_name":  []string{"oops"},
		"exp":         now.Add(time.Hour).Unix(),
	})

	cred, err := v.Validate("user-3", tok)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if cred.Role != "" {
		t.Errorf("role = %q, want empty for mistyped claim", cred.Role)
	}
	if cred.HasCapability("course:add") {
		t.Error("mistyped permissions must grant no capabilities")
	}
	if cred.FirstName != "" {
		t.Errorf("first_name = %q, want empty for mistyped claim", cred.FirstName)
	}
}

func TestValidateObjectPermissionEntries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := mintRawClaims(t, jwt.MapClaims{
		"user_id":     "user-4",
		"type":        TokenTypeAccess,
		"role":        "Student",
		"permissions": []map[string]string{{"tag": "course:add"}},
		"exp":         now.Add(time.Hour).Unix(),
	})

	cred, err := fixedValidator(now).Validate("user-4", tok)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if cred.HasCapability("course:add") {
		t.Error("non-string permission entries must grant nothing")
	}
}

func TestHasCapability(t *testing.T) {
	teacher := &Credential{Role: "Teacher", Permissions: []string{"quest:create", "course:add"}}
	if !teacher.HasCapability("quest:create") {
		t.Error("expected listed capability to hold")
	}
	if teacher.HasCapability("user:list:read") {
		t.Error("unlisted capability must not hold")
	}

	admin := &Credential{Role: RoleAdmin}
	if !admin.HasCapability("anything:at:all") {
		t.Error("Admin must hold every capability")
	}

	var nilCred *Credential
	if nilCred.HasCapability("quest:create") {
		t.Error("nil credential must hold nothing")
	}

	empty := &Credential{Role: "Student"}
	if empty.HasCapability("quest:create") {
		t.Error("empty permissions must hold nothing")
	}
}
