package core

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

// MatchMode decides how a rule's role set is evaluated.
type MatchMode string

const (
	// MatchAny allows when the identity holds at least one required role.
	MatchAny MatchMode = "any"
	// MatchAll allows only when the identity holds every required role.
	MatchAll MatchMode = "all"
)

// AccessRule maps a path pattern and method set to a role requirement.
// A pattern is either an exact path or a prefix ending in "/**", which also
// matches the bare prefix itself. An empty method set matches every method.
type AccessRule struct {
	Pattern string
	Methods []string
	Roles   []Role
	Mode    MatchMode
	Public  bool
}

// AccessPolicy is an ordered rule table evaluated top to bottom; the first
// matching rule governs. The final catch-all demands authentication for any
// route no earlier rule claimed.
type AccessPolicy struct {
	rules []AccessRule
}

func NewAccessPolicy(rules []AccessRule) *AccessPolicy {
	return &AccessPolicy{rules: rules}
}

// DefaultAccessPolicy mirrors the store's route -> role matrix.
func DefaultAccessPolicy() *AccessPolicy {
	anyAuth := []Role{RoleUser, RoleAdmin}
	adminOnly := []Role{RoleAdmin}
	return NewAccessPolicy([]AccessRule{
		{Pattern: "/api/login", Public: true},
		{Pattern: "/api/register", Public: true},
		{Pattern: "/healthz", Public: true},
		{Pattern: "/error", Public: true},
		{Pattern: "/api/carPart/**", Methods: []string{http.MethodGet}, Roles: anyAuth, Mode: MatchAny},
		{Pattern: "/api/carPart/**", Roles: adminOnly, Mode: MatchAny},
		{Pattern: "/api/suppliers/**", Roles: adminOnly, Mode: MatchAny},
		{Pattern: "/api/user/all", Roles: adminOnly, Mode: MatchAny},
		{Pattern: "/api/user", Methods: []string{http.MethodPost}, Roles: adminOnly, Mode: MatchAny},
		{Pattern: "/api/user/**", Roles: anyAuth, Mode: MatchAny},
		{Pattern: "/api/orders/all", Roles: adminOnly, Mode: MatchAny},
		{Pattern: "/api/orders/**", Roles: anyAuth, Mode: MatchAny},
		{Pattern: "/api/admin/**", Roles: adminOnly, Mode: MatchAny},
		// catch-all: any valid identity, no specific role
		{Pattern: "/**"},
	})
}

// IsPublic reports whether the first matching rule marks the route public.
func (p *AccessPolicy) IsPublic(method, path string) bool {
	for _, r := range p.rules {
		if r.matches(method, path) {
			return r.Public
		}
	}
	return false
}

// Evaluate returns nil when the identity may access the route,
// ErrUnauthenticated when a rule requires an identity and none exists, and
// ErrForbidden when the identity's roles do not satisfy the matched rule.
func (p *AccessPolicy) Evaluate(method, path string, id *Identity) error {
	for _, r := range p.rules {
		if !r.matches(method, path) {
			continue
		}
		if r.Public {
			return nil
		}
		if id == nil {
			return ErrUnauthenticated
		}
		if !r.satisfiedBy(id.Roles) {
			return ErrForbidden
		}
		return nil
	}
	// No rule matched: demand authentication, same as the catch-all.
	if id == nil {
		return ErrUnauthenticated
	}
	return nil
}

// Middleware enforces the policy after authentication has run.
func (p *AccessPolicy) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := p.Evaluate(c.Request.Method, c.Request.URL.Path, GetIdentity(c))
		switch err {
		case nil:
			c.Next()
		case ErrUnauthenticated:
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			c.Abort()
		case ErrForbidden:
			respondError(c, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			c.Abort()
		default:
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "policy evaluation failed")
			c.Abort()
		}
	}
}

func (r AccessRule) matches(method, path string) bool {
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

func (r AccessRule) satisfiedBy(roles []Role) bool {
	if len(r.Roles) == 0 {
		return true
	}
	switch r.Mode {
	case MatchAll:
		for _, want := range r.Roles {
			if !HasRole(roles, want) {
				return false
			}
		}
		return true
	default:
		for _, want := range r.Roles {
			if HasRole(roles, want) {
				return true
			}
		}
		return false
	}
}

// matchPattern matches path patterns of the form "/exact" or "/prefix/**".
// "/prefix/**" matches "/prefix" and anything below it.
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/**") {
		base := strings.TrimSuffix(pattern, "/**")
		if base == "" {
			return true
		}
		return path == base || strings.HasPrefix(path, base+"/")
	}
	return pattern == path
}

// policyFile is the YAML shape for an externally configured rule table.
type policyFile struct {
	Rules []struct {
		Pattern string   `yaml:"pattern"`
		Methods []string `yaml:"methods"`
		Roles   []string `yaml:"roles"`
		Mode    string   `yaml:"mode"`
		Public  bool     `yaml:"public"`
	} `yaml:"rules"`
}

// LoadAccessPolicy reads a rule table from a YAML file. Role names are
// validated against the closed role set at load time.
func LoadAccessPolicy(path string) (*AccessPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read access policy %s: %w", path, err)
	}
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse access policy %s: %w", path, err)
	}
	rules := make([]AccessRule, 0, len(pf.Rules))
	for i, fr := range pf.Rules {
		if fr.Pattern == "" {
			return nil, fmt.Errorf("access policy rule %d: empty pattern", i)
		}
		roles, err := ParseRoles(fr.Roles)
		if err != nil {
			return nil, fmt.Errorf("access policy rule %d: %w", i, err)
		}
		mode := MatchMode(strings.ToLower(fr.Mode))
		switch mode {
		case "", MatchAny, MatchAll:
		default:
			return nil, fmt.Errorf("access policy rule %d: unknown mode %q", i, fr.Mode)
		}
		rules = append(rules, AccessRule{
			Pattern: fr.Pattern,
			Methods: fr.Methods,
			Roles:   roles,
			Mode:    mode,
			Public:  fr.Public,
		})
	}
	return NewAccessPolicy(rules), nil
}
