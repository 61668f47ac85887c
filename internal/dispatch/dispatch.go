package dispatch

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/auth"
	"github.com/studkit/examcore/internal/gate"
	"github.com/studkit/examcore/internal/response"
)

// HandlerFunc runs one action for an authorized caller and returns the
// response body. The transport status is always 200; outcomes live in
// the body per the error-string contract.
type HandlerFunc func(c *gin.Context, cred *auth.Credential) string

type route struct {
	capability string
	adminOnly  bool
	handler    HandlerFunc
}

// Dispatcher routes /task requests by their Action parameter. Each
// registered action carries its required capability; the gate runs once
// here, before any handler, so no handler re-implements the token,
// blocked, or permission checks.
type Dispatcher struct {
	gate   *gate.Gate
	routes map[string]route
	log    zerolog.Logger
}

// New creates an empty Dispatcher.
func New(g *gate.Gate, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		gate:   g,
		routes: make(map[string]route),
		log:    log.With().Str("component", "dispatch").Logger(),
	}
}

// Register binds an action to a required capability and handler. An
// empty capability admits any authenticated, unblocked caller.
func (d *Dispatcher) Register(action, capability string, h HandlerFunc) {
	d.routes[action] = route{capability: capability, handler: h}
}

// RegisterAdmin binds an action reserved for the Admin role.
func (d *Dispatcher) RegisterAdmin(action string, h HandlerFunc) {
	d.routes[action] = route{adminOnly: true, handler: h}
}

// Handle is the gin handler for the /task entry point. Parameters are
// flat query strings: Action selects the route, ID and JWT identify the
// caller, the rest belong to the individual handlers.
func (d *Dispatcher) Handle(c *gin.Context) {
	action := c.Query("Action")
	callerID := c.Query("ID")
	token := c.Query("JWT")

	log := d.log.With().
		Str("action", action).
		Str("caller_id", callerID).
		Str("request_id", response.RequestID(c)).
		Logger()

	rt, ok := d.routes[action]
	if !ok {
		log.Warn().Msg("unknown action")
		c.String(http.StatusOK, response.Errorf(response.CodeValidation, "Unknown action: %s", action))
		return
	}

	cred, denied := d.gate.Authorize(c.Request.Context(), callerID, token, rt.capability)
	if denied != nil {
		log.Info().Err(denied).Msg("request denied")
		c.String(http.StatusOK, denialBody(denied))
		return
	}
	if rt.adminOnly && cred.Role != auth.RoleAdmin {
		log.Info().Str("role", cred.Role).Msg("admin-only action refused")
		c.String(http.StatusOK, response.Error(response.CodeForbidden))
		return
	}

	body := rt.handler(c, cred)
	log.Debug().Bool("error_body", response.IsError(body)).Msg("action handled")
	c.String(http.StatusOK, body)
}

func denialBody(d *gate.Denied) string {
	switch d.Reason {
	case gate.DenyBlocked:
		return response.Errorf(response.CodeBlocked, "User is blocked")
	case gate.DenyForbidden:
		return response.Error(response.CodeForbidden)
	case gate.DenyStorageUnavailable:
		return response.Unreachable("storage")
	default:
		return response.Error(response.CodeUnauthenticated)
	}
}
