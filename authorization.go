package auth

import (
	"net/http"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// AccessKind is the requirement a rule places on a request
type AccessKind int

const (
	AccessAuthenticated AccessKind = iota
	AccessPublic
	AccessRole
)

// Access is the requirement attached to a Rule.
type Access struct {
	Kind AccessKind
	Role Role
}

var (
	// Public allows anonymous requests
	Public = Access{Kind: AccessPublic}
	// Authenticated requires any verified principal
	Authenticated = Access{Kind: AccessAuthenticated}
)

// RequireRole requires a principal whose token role satisfies role.
func RequireRole(role Role) Access {
	return Access{Kind: AccessRole, Role: role}
}

func (a Access) String() string {
	switch a.Kind {
	case AccessPublic:
		return "public"
	case AccessRole:
		return "role:" + string(a.Role)
	default:
		return "authenticated"
	}
}

// Rule matches a path pattern and optional method set. Patterns support
// "*" for one segment and "**" for any depth. "/x/**" also matches "/x".
type Rule struct {
	Pattern string
	Methods []string
	Access  Access
}

func (r Rule) matches(method, path string) bool {
	if len(r.Methods) > 0 {
		found := false
		for _, m := range r.Methods {
			if strings.EqualFold(m, method) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return matchPattern(r.Pattern, path)
}

func matchPattern(pattern, path string) bool {
	pattern = strings.ToLower(pattern)
	if pattern == path {
		return true
	}
	if base, ok := strings.CutSuffix(pattern, "/**"); ok && path == base {
		return true
	}
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}

// Decision is the outcome of evaluating a request
type Decision int

const (
	Allow Decision = iota
	Unauthorized
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthorized:
		return "unauthorized"
	default:
		return "forbidden"
	}
}

// Err maps the decision to ErrUnauthorized or ErrForbidden.
func (d Decision) Err() error {
	switch d {
	case Allow:
		return nil
	case Unauthorized:
		return ErrUnauthorized
	default:
		return ErrForbidden
	}
}

// Policy is an ordered rule table. The first matching rule decides,
// unmatched requests fall back to Default.
type Policy struct {
	Rules   []Rule
	Default Access
}

// NewPolicy builds a policy whose default requires authentication.
func NewPolicy(rules ...Rule) *Policy {
	return &Policy{Rules: rules, Default: Authenticated}
}

// Match returns the access requirement for method and path. Paths are
// compared cleaned and case-folded.
func (p *Policy) Match(method, path string) Access {
	path = cleanPath(path)
	for _, rule := range p.Rules {
		if rule.matches(method, path) {
			return rule.Access
		}
	}
	return p.Default
}

// Evaluate decides a request. It is pure: the role used is the one carried
// by ac (taken from the token).
func (p *Policy) Evaluate(method, path string, ac AuthContext) Decision {
	access := p.Match(method, path)

	switch access.Kind {
	case AccessPublic:
		return Allow
	case AccessRole:
		if !ac.IsAuthenticated() {
			return Unauthorized
		}
		if !ac.HasRole(access.Role) {
			return Forbidden
		}
		return Allow
	default:
		if !ac.IsAuthenticated() {
			return Unauthorized
		}
		return Allow
	}
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.ToLower(path.Clean(p))
}

// DefaultPolicy is the storefront route table.
func DefaultPolicy() *Policy {
	return NewPolicy(
		Rule{Pattern: "/api/v1/admin/**", Access: RequireRole(RoleAdmin)},
		Rule{Pattern: "/api/v1/auth/edit/password", Access: Authenticated},
		Rule{Pattern: "/api/v1/auth/**", Access: Public},
		Rule{Pattern: "/api/v1/registration/**", Access: Public},
		Rule{Pattern: "/api/v1/perfumes/**", Access: Public},
		Rule{Pattern: "/api/v1/users/cart", Access: Public},
		Rule{Pattern: "/api/v1/order/**", Access: Public},
		Rule{Pattern: "/api/v1/review/**", Access: Public},
		Rule{Pattern: "/websocket/**", Access: Public},
		Rule{Pattern: "/img/**", Methods: []string{http.MethodGet}, Access: Public},
		Rule{Pattern: "/static/**", Methods: []string{http.MethodGet}, Access: Public},
		Rule{Pattern: "/auth/**", Access: Public},
		Rule{Pattern: "/oauth2/**", Access: Public},
		Rule{Pattern: "/metrics", Methods: []string{http.MethodGet}, Access: Public},
		Rule{Pattern: "/health", Methods: []string{http.MethodGet}, Access: Public},
	)
}
