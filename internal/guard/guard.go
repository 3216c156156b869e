package guard

import (
	"context"
	"fmt"

	"github.com/ghaggin/classroom/internal/session"
)

const (
	PathHome         = "/"
	PathLogin        = "/login"
	PathVerifyNotice = "/verify-email-notice"
)

type Kind int

const (
	Loading Kind = iota
	Render
	Redirect
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	case NotFound:
		return "not found"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Stage int

const (
	PendingAuth Stage = iota
	PendingPermission
	Decided
)

type Reason string

const (
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonUnverified      Reason = "unverified"
	ReasonRole            Reason = "role not allowed"
	ReasonPermission      Reason = "permission denied"
)

// Request is one navigation: the requested location and its matched route.
type Request struct {
	Path    string
	Pattern string
	Params  Params
}

type Decision struct {
	Kind   Kind
	Stage  Stage
	Target string
	Reason Reason

	// From is the originally requested location, carried to the login view.
	From string
	// Email is carried to the verification notice.
	Email string

	Request Request
}

func (d Decision) String() string {
	switch d.Kind {
	case Redirect:
		return fmt.Sprintf("redirect %s -> %s (%s)", d.Request.Path, d.Target, d.Reason)
	default:
		return fmt.Sprintf("%s %s", d.Kind, d.Request.Path)
	}
}

// Auth is the view of the session the guard needs.
type Auth interface {
	State() session.State
	IsAuthenticated(ctx context.Context) bool
}

// Precheck runs every step that needs no round trip. When pending is true
// the policy's permission check is the only step left.
func Precheck(ctx context.Context, a Auth, p Policy, req Request) (d Decision, pending bool) {
	st := a.State()

	switch {
	case st.Loading:
		return Decision{Kind: Loading, Stage: PendingAuth, Request: req}, false

	// the snapshot and the store are read separately, so a login landing in
	// between can leave a token without a user
	case st.User == nil || !a.IsAuthenticated(ctx):
		return Decision{
			Kind:    Redirect,
			Stage:   Decided,
			Target:  PathLogin,
			Reason:  ReasonUnauthenticated,
			From:    req.Path,
			Request: req,
		}, false

	// verification comes before roles: an unverified user always lands on
	// the notice, whatever their role
	case p.RequireVerification && !st.User.IsVerified:
		return Decision{
			Kind:    Redirect,
			Stage:   Decided,
			Target:  PathVerifyNotice,
			Reason:  ReasonUnverified,
			Email:   st.User.Email,
			Request: req,
		}, false

	case !p.allows(st.User.Role):
		return Decision{Kind: Redirect, Stage: Decided, Target: PathHome, Reason: ReasonRole, Request: req}, false

	case p.Check != nil:
		return Decision{Kind: Loading, Stage: PendingPermission, Request: req}, true
	}

	return Decision{Kind: Render, Stage: Decided, Request: req}, false
}

// Permit runs the policy's permission check and returns the final decision.
// Errors fail closed.
func Permit(ctx context.Context, p Policy, req Request) (Decision, error) {
	allowed, err := p.Check.Allowed(ctx, req.Params)
	if err != nil || !allowed {
		return Decision{Kind: Redirect, Stage: Decided, Target: PathHome, Reason: ReasonPermission, Request: req}, err
	}
	return Decision{Kind: Render, Stage: Decided, Request: req}, nil
}

// Evaluate decides a navigation synchronously, waiting for the permission
// check when one is configured.
func Evaluate(ctx context.Context, a Auth, p Policy, req Request) Decision {
	d, pending := Precheck(ctx, a, p, req)
	if !pending {
		return d
	}
	d, _ = Permit(ctx, p, req)
	return d
}
