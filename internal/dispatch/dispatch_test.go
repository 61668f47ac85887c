package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/auth"
	"github.com/studkit/examcore/internal/gate"
)

const dispatchSecret = "dispatch-test-secret"

type fixedBlocked map[string]bool

func (f fixedBlocked) IsBlocked(_ context.Context, userID string) (bool, error) {
	return f[userID], nil
}

func mintAccess(t *testing.T, userID, role string, perms []string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":     userID,
		"type":        auth.TokenTypeAccess,
		"role":        role,
		"permissions": perms,
		"exp":         time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(dispatchSecret))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func newTestDispatcher(blocked fixedBlocked) *Dispatcher {
	g := gate.New(auth.NewValidator(dispatchSecret), blocked, zerolog.Nop())
	d := New(g, zerolog.Nop())
	d.Register("PING", "", func(c *gin.Context, cred *auth.Credential) string {
		return `{"status":"success"}`
	})
	d.Register("GUARDED", "course:add", func(c *gin.Context, cred *auth.Credential) string {
		return `{"status":"success"}`
	})
	d.RegisterAdmin("ROOT_ONLY", func(c *gin.Context, cred *auth.Credential) string {
		return `{"status":"success"}`
	})
	return d
}

func callTask(t *testing.T, d *Dispatcher, params url.Values) (int, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/task", d.Handle)

	req := httptest.NewRequest(http.MethodGet, "/task?"+params.Encode(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code, w.Body.String()
}

func TestHandleUnknownAction(t *testing.T) {
	d := newTestDispatcher(fixedBlocked{})
	tok := mintAccess(t, "u1", "Student", nil)

	code, body := callTask(t, d, url.Values{
		"Action": {"NO_SUCH_ACTION"}, "ID": {"u1"}, "JWT": {tok},
	})
	if code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	if body != "ERROR 400: Unknown action: NO_SUCH_ACTION" {
		t.Errorf("body = %q", body)
	}
}

func TestHandleBadToken(t *testing.T) {
	d := newTestDispatcher(fixedBlocked{})

	code, body := callTask(t, d, url.Values{
		"Action": {"PING"}, "ID": {"u1"}, "JWT": {"junk"},
	})
	if code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	if body != "ERROR 401" {
		t.Errorf("body = %q, want ERROR 401", body)
	}
}

func TestHandleBlockedCaller(t *testing.T) {
	d := newTestDispatcher(fixedBlocked{"u1": true})
	tok := mintAccess(t, "u1", "Student", nil)

	_, body := callTask(t, d, url.Values{
		"Action": {"PING"}, "ID": {"u1"}, "JWT": {tok},
	})
	if body != "ERROR 418: User is blocked" {
		t.Errorf("body = %q, want blocked error", body)
	}
}

type failingBlocked struct{}

func (failingBlocked) IsBlocked(_ context.Context, _ string) (bool, error) {
	return false, errors.New("storage down")
}

func TestHandleBlockedLookupFailure(t *testing.T) {
	// An unreadable blocked flag still refuses the caller, but the body
	// must not claim the account is blocked.
	g := gate.New(auth.NewValidator(dispatchSecret), failingBlocked{}, zerolog.Nop())
	d := New(g, zerolog.Nop())
	d.Register("PING", "", func(c *gin.Context, cred *auth.Credential) string {
		return `{"status":"success"}`
	})
	tok := mintAccess(t, "u1", "Student", nil)

	code, body := callTask(t, d, url.Values{
		"Action": {"PING"}, "ID": {"u1"}, "JWT": {tok},
	})
	if code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	if body != "ERROR: Cannot connect to storage" {
		t.Errorf("body = %q, want storage-unavailable error", body)
	}
}

func TestHandleMissingCapability(t *testing.T) {
	d := newTestDispatcher(fixedBlocked{})
	tok := mintAccess(t, "u1", "Student", []string{"attempt:create:self"})

	_, body := callTask(t, d, url.Values{
		"Action": {"GUARDED"}, "ID": {"u1"}, "JWT": {tok},
	})
	if body != "ERROR 403" {
		t.Errorf("body = %q, want ERROR 403", body)
	}
}

func TestHandleCapabilityGranted(t *testing.T) {
	d := newTestDispatcher(fixedBlocked{})
	tok := mintAccess(t, "u1", "Teacher", []string{"course:add"})

	_, body := callTask(t, d, url.Values{
		"Action": {"GUARDED"}, "ID": {"u1"}, "JWT": {tok},
	})
	if body != `{"status":"success"}` {
		t.Errorf("body = %q", body)
	}
}

func TestHandleAdminOnly(t *testing.T) {
	d := newTestDispatcher(fixedBlocked{})

	teacher := mintAccess(t, "u1", "Teacher", []string{"course:add"})
	_, body := callTask(t, d, url.Values{
		"Action": {"ROOT_ONLY"}, "ID": {"u1"}, "JWT": {teacher},
	})
	if body != "ERROR 403" {
		t.Errorf("teacher body = %q, want ERROR 403", body)
	}

	admin := mintAccess(t, "root", auth.RoleAdmin, nil)
	_, body = callTask(t, d, url.Values{
		"Action": {"ROOT_ONLY"}, "ID": {"root"}, "JWT": {admin},
	})
	if body != `{"status":"success"}` {
		t.Errorf("admin body = %q", body)
	}
}

func TestHandleAlwaysTransportOK(t *testing.T) {
	d := newTestDispatcher(fixedBlocked{"blocked": true})
	cases := []url.Values{
		{"Action": {"PING"}, "ID": {"u1"}, "JWT": {""}},
		{"Action": {"WAT"}, "ID": {"u1"}, "JWT": {""}},
		{"Action": {"PING"}, "ID": {"blocked"}, "JWT": {mintAccess(t, "blocked", "Student", nil)}},
	}
	for _, params := range cases {
		code, _ := callTask(t, d, params)
		if code != http.StatusOK {
			t.Errorf("params %v: status = %d, want 200", params, code)
		}
	}
}
