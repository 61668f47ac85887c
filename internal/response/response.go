package response

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Every action responds with transport-level success; the logical outcome
// lives in the body. Callers pattern-match the body for a leading
// "ERROR <code>" prefix. This is a compatibility contract with existing
// clients and must not be replaced with HTTP status codes.

// Error codes used in bodies.
const (
	CodeValidation      = 400
	CodeUnauthenticated = 401
	CodeForbidden       = 403
	CodeBlocked         = 418
)

// Error renders a bare "ERROR <code>" body.
func Error(code int) string {
	return fmt.Sprintf("ERROR %d", code)
}

// Errorf renders an "ERROR <code>: <message>" body.
func Errorf(code int, format string, args ...interface{}) string {
	return fmt.Sprintf("ERROR %d: %s", code, fmt.Sprintf(format, args...))
}

// Unreachable reports a backend that could not be contacted. Transport
// failures are reported, never retried automatically.
func Unreachable(backend string) string {
	return "ERROR: Cannot connect to " + backend
}

// JSONError renders a {"error": "..."} body for domain-level failures
// (not found, no permission, storage errors caught in handlers).
func JSONError(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

// JSON renders an arbitrary payload body. Marshal failures degrade to a
// reported error body rather than a transport error.
func JSON(payload interface{}) string {
	b, err := json.Marshal(payload)
	if err != nil {
		return JSONError("encode response: " + err.Error())
	}
	return string(b)
}

// SuccessFields renders a {"status":"success", ...} body with the given
// extra fields in deterministic order.
func SuccessFields(fields map[string]interface{}) string {
	var sb strings.Builder
	sb.WriteString(`{"status":"success"`)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, _ := json.Marshal(fields[k])
		sb.WriteString(fmt.Sprintf(",%q:%s", k, v))
	}
	sb.WriteString("}")
	return sb.String()
}

// IsError reports whether a body carries the error prefix.
func IsError(body string) bool {
	return strings.HasPrefix(body, "ERROR")
}
