package guard

import (
	"context"

	"github.com/ghaggin/classroom/internal/model"
	"github.com/ghaggin/classroom/internal/validation"
)

// Params are the named path parameters of a navigation, e.g. {"id": "42"}.
type Params map[string]string

func (p Params) Equal(o Params) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// PermissionCheck is a per-resource predicate evaluated after the auth,
// verification and role steps pass. An error counts as a denial.
type PermissionCheck interface {
	Allowed(ctx context.Context, params Params) (bool, error)
}

type CheckFunc func(ctx context.Context, params Params) (bool, error)

func (f CheckFunc) Allowed(ctx context.Context, params Params) (bool, error) {
	return f(ctx, params)
}

// Policy is the static guard configuration of one route.
type Policy struct {
	RequireVerification bool
	AllowedRoles        []model.Role    `json:"allowedRoles" validate:"role"`
	Check               PermissionCheck `validate:"-"`
}

func (p Policy) Validate() error {
	return validation.Check(p)
}

func (p Policy) allows(r model.Role) bool {
	if len(p.AllowedRoles) == 0 {
		return true
	}
	for _, allowed := range p.AllowedRoles {
		if allowed == r {
			return true
		}
	}
	return false
}
