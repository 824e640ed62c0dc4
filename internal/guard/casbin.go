package guard

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = r.sub == p.sub && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Rule allows, or denies, role on a keyMatch2 path pattern for methods matching a regexp.
type Rule struct {
	Role    string
	Path    string
	Methods string
	Deny    bool
}

// DefaultRules open the whole console to both admin roles. keyMatch2 does not let
// "/admin/*" match "/admin" itself, so the console root has its own rule.
var DefaultRules = []Rule{
	{Role: "SUPER_ADMIN", Path: "/admin", Methods: ".*"},
	{Role: "SUPER_ADMIN", Path: "/admin/*", Methods: ".*"},
	{Role: "ADMIN", Path: "/admin", Methods: ".*"},
	{Role: "ADMIN", Path: "/admin/*", Methods: ".*"},
}

// CasbinAuthorizer is an Authorizer backed by an in-memory Casbin policy.
type CasbinAuthorizer struct {
	enforcer *casbin.Enforcer
}

func NewCasbinAuthorizer(rules []Rule) (*CasbinAuthorizer, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("casbin model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}

	for _, r := range rules {
		eft := "allow"
		if r.Deny {
			eft = "deny"
		}
		if _, err := e.AddPolicy("role_"+r.Role, r.Path, r.Methods, eft); err != nil {
			return nil, fmt.Errorf("add policy %s %s: %w", r.Role, r.Path, err)
		}
	}
	return &CasbinAuthorizer{enforcer: e}, nil
}

func (a *CasbinAuthorizer) Allowed(role, path, method string) (bool, error) {
	if role == "" {
		return false, nil
	}
	return a.enforcer.Enforce("role_"+role, path, method)
}
