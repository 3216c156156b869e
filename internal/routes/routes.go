package routes

import (
	"net/http"
	"strings"

	"github.com/ghaggin/classroom/internal/guard"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const (
	CheckCourseOwner = "course-owner"
)

var (
	ErrNotFound = errors.New("no route")
)

// Declaration is one row of the static route table. Guarded routes name
// their permission check, if any, by key.
type Declaration struct {
	Name    string
	Pattern string
	Guarded bool

	RequireVerification bool
	Roles               []model.Role
	Check               string
}

var staff = []model.Role{model.RoleTeacher, model.RoleAdmin}

// Declarations lists every view of the client.
var Declarations = []Declaration{
	{Name: "home", Pattern: "/"},
	{Name: "login", Pattern: "/login"},
	{Name: "signup", Pattern: "/signup"},
	{Name: "courses", Pattern: "/courses"},
	{Name: "verify-email", Pattern: "/verify-email/{token}"},
	{Name: "verify-email-notice", Pattern: "/verify-email-notice"},

	{Name: "profile", Pattern: "/profile", Guarded: true, RequireVerification: true},
	{Name: "dashboard", Pattern: "/dashboard", Guarded: true, RequireVerification: true},
	{Name: "course", Pattern: "/courses/{id}", Guarded: true, RequireVerification: true},
	{Name: "course-create", Pattern: "/courses/create", Guarded: true, RequireVerification: true, Roles: staff},
	{Name: "course-edit", Pattern: "/courses/{id}/edit", Guarded: true, RequireVerification: true, Roles: staff, Check: CheckCourseOwner},
	{Name: "categories", Pattern: "/categories", Guarded: true, RequireVerification: true},
	{Name: "category", Pattern: "/categories/{id}", Guarded: true, RequireVerification: true},
}

type Route struct {
	Name    string
	Pattern string
	// Policy is nil for public routes.
	Policy *guard.Policy
}

// Table resolves locations against the declared routes.
type Table struct {
	mux    *chi.Mux
	routes map[string]Route
	order  []string
}

var _ guard.Resolver = (*Table)(nil)

// New builds the table from decls, failing on duplicate patterns or names,
// invalid roles, and checks missing from checks.
func New(decls []Declaration, checks map[string]guard.PermissionCheck) (*Table, error) {
	t := &Table{
		mux:    chi.NewRouter(),
		routes: map[string]Route{},
	}

	names := map[string]bool{}
	for _, d := range decls {
		if d.Pattern == "" || !strings.HasPrefix(d.Pattern, "/") {
			return nil, errors.Errorf("route %q: pattern must start with /", d.Name)
		}
		if _, dup := t.routes[d.Pattern]; dup {
			return nil, errors.Errorf("route %q: duplicate pattern %s", d.Name, d.Pattern)
		}
		if names[d.Name] {
			return nil, errors.Errorf("duplicate route name %q", d.Name)
		}
		names[d.Name] = true

		r := Route{Name: d.Name, Pattern: d.Pattern}
		if d.Guarded {
			p := guard.Policy{
				RequireVerification: d.RequireVerification,
				AllowedRoles:        d.Roles,
			}
			if d.Check != "" {
				check, ok := checks[d.Check]
				if !ok || check == nil {
					return nil, errors.Errorf("route %q: unknown permission check %q", d.Name, d.Check)
				}
				p.Check = check
			}
			if err := p.Validate(); err != nil {
				return nil, errors.Wrapf(err, "route %q", d.Name)
			}
			r.Policy = &p
		} else if len(d.Roles) > 0 || d.Check != "" || d.RequireVerification {
			return nil, errors.Errorf("route %q: public route with a policy", d.Name)
		}

		t.routes[d.Pattern] = r
		t.order = append(t.order, d.Pattern)
		t.mux.Get(d.Pattern, http.NotFound)
	}

	return t, nil
}

// Routes returns the routes in declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, 0, len(t.order))
	for _, p := range t.order {
		out = append(out, t.routes[p])
	}
	return out
}

func (t *Table) Lookup(name string) (Route, bool) {
	for _, r := range t.routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// Match finds the route for location, which may carry a query string.
func (t *Table) Match(location string) (Route, guard.Params, bool) {
	path := location
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		path = "/"
	}

	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, http.MethodGet, path) {
		return Route{}, nil, false
	}

	r, ok := t.routes[rctx.RoutePattern()]
	if !ok {
		return Route{}, nil, false
	}

	params := make(guard.Params, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		params[k] = rctx.URLParams.Values[i]
	}
	return r, params, true
}

func (t *Table) Resolve(location string) (guard.Target, error) {
	r, params, ok := t.Match(location)
	if !ok {
		return guard.Target{}, errors.Wrap(ErrNotFound, location)
	}
	return guard.Target{
		Request: guard.Request{Path: location, Pattern: r.Pattern, Params: params},
		Policy:  r.Policy,
	}, nil
}
