package userclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type captured struct {
	method string
	path   string
	auth   string
	form   map[string]string
}

func newCaptureServer(t *testing.T, body string) (*httptest.Server, *captured) {
	t.Helper()
	cap := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		cap.method = r.Method
		cap.path = r.URL.Path
		cap.auth = r.Header.Get("Authorization")
		cap.form = make(map[string]string)
		for k := range r.Form {
			cap.form[k] = r.Form.Get(k)
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, cap
}

func TestGetNameForwardsTokenAndParams(t *testing.T) {
	srv, cap := newCaptureServer(t, `{"first_name":"Ada","last_name":"Lovelace"}`)
	c := New(srv.URL, time.Second, zerolog.Nop())

	body, err := c.GetName(context.Background(), "tok-123", "u42")
	if err != nil {
		t.Fatalf("get name: %v", err)
	}
	if body != `{"first_name":"Ada","last_name":"Lovelace"}` {
		t.Errorf("body = %q, expected pass-through", body)
	}
	if cap.method != http.MethodGet || cap.path != "/api/user/name" {
		t.Errorf("request = %s %s", cap.method, cap.path)
	}
	if cap.auth != "Bearer tok-123" {
		t.Errorf("auth header = %q", cap.auth)
	}
	if cap.form["user_id"] != "u42" {
		t.Errorf("user_id = %q, want u42", cap.form["user_id"])
	}
}

func TestUpdateNamePostsForm(t *testing.T) {
	srv, cap := newCaptureServer(t, `{"status":"success"}`)
	c := New(srv.URL, time.Second, zerolog.Nop())

	if _, err := c.UpdateName(context.Background(), "tok", "Grace", "Hopper"); err != nil {
		t.Fatalf("update name: %v", err)
	}
	if cap.method != http.MethodPost || cap.path != "/api/user/update" {
		t.Errorf("request = %s %s", cap.method, cap.path)
	}
	if cap.form["first_name"] != "Grace" || cap.form["last_name"] != "Hopper" {
		t.Errorf("form = %v", cap.form)
	}
}

func TestSetRoleTargetsOtherUser(t *testing.T) {
	srv, cap := newCaptureServer(t, `{"status":"success"}`)
	c := New(srv.URL, time.Second, zerolog.Nop())

	if _, err := c.SetRole(context.Background(), "tok", "u9", "Teacher"); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if cap.path != "/api/user/roleedit" {
		t.Errorf("path = %q", cap.path)
	}
	if cap.form["user_id"] != "u9" || cap.form["role"] != "Teacher" {
		t.Errorf("form = %v", cap.form)
	}
}

func TestErrorBodyPassesThrough(t *testing.T) {
	// A service-level refusal is not a transport failure: the body comes
	// back verbatim for the handler to forward.
	srv, _ := newCaptureServer(t, "ERROR 403")
	c := New(srv.URL, time.Second, zerolog.Nop())

	body, err := c.ListUsers(context.Background(), "tok")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if body != "ERROR 403" {
		t.Errorf("body = %q", body)
	}
}

func TestUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Nothing listens on this address anymore.
	c := New(srv.URL, time.Second, zerolog.Nop())

	_, err := c.GetName(context.Background(), "tok", "u1")
	var unreachable *ErrUnreachable
	if !errors.As(err, &unreachable) {
		t.Fatalf("err = %T %v, want *ErrUnreachable", err, err)
	}
}
