package response

import "testing"

func TestErrorBodies(t *testing.T) {
	if got := Error(CodeUnauthenticated); got != "ERROR 401" {
		t.Errorf("Error(401) = %q", got)
	}
	if got := Errorf(CodeBlocked, "User is blocked"); got != "ERROR 418: User is blocked" {
		t.Errorf("Errorf = %q", got)
	}
	if got := Unreachable("user service"); got != "ERROR: Cannot connect to user service" {
		t.Errorf("Unreachable = %q", got)
	}
}

func TestJSONError(t *testing.T) {
	if got := JSONError("Course not found"); got != `{"error":"Course not found"}` {
		t.Errorf("JSONError = %q", got)
	}
}

func TestSuccessFieldsDeterministicOrder(t *testing.T) {
	got := SuccessFields(map[string]interface{}{
		"score":     7,
		"max_score": 10,
	})
	want := `{"status":"success","max_score":10,"score":7}`
	if got != want {
		t.Errorf("SuccessFields = %q, want %q", got, want)
	}
}

func TestSuccessFieldsEmpty(t *testing.T) {
	if got := SuccessFields(nil); got != `{"status":"success"}` {
		t.Errorf("SuccessFields(nil) = %q", got)
	}
}

func TestIsError(t *testing.T) {
	cases := map[string]bool{
		"ERROR 401":                    true,
		"ERROR 418: User is blocked":   true,
		"ERROR: Cannot connect to x":   true,
		`{"error":"Course not found"}`: false,
		`{"status":"success"}`:         false,
		"true":                         false,
	}
	for body, want := range cases {
		if got := IsError(body); got != want {
			t.Errorf("IsError(%q) = %v, want %v", body, got, want)
		}
	}
}
