package core

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestAccessPolicyEvaluate(t *testing.T) {
	policy := DefaultAccessPolicy()
	user := &Identity{Subject: "alice", Roles: []Role{RoleUser}}
	admin := &Identity{Subject: "root", Roles: []Role{RoleAdmin}}

	cases := []struct {
		name   string
		method string
		path   string
		id     *Identity
		want   error
	}{
		{"login public anonymous", http.MethodPost, "/api/login", nil, nil},
		{"register public anonymous", http.MethodPost, "/api/register", nil, nil},
		{"health public anonymous", http.MethodGet, "/healthz", nil, nil},
		{"parts read as user", http.MethodGet, "/api/carPart", user, nil},
		{"parts read as admin", http.MethodGet, "/api/carPart", admin, nil},
		{"parts read anonymous", http.MethodGet, "/api/carPart", nil, ErrUnauthenticated},
		{"parts write as user", http.MethodPost, "/api/carPart/1", user, ErrForbidden},
		{"parts write as admin", http.MethodPost, "/api/carPart/1", admin, nil},
		{"parts delete as user", http.MethodDelete, "/api/carPart/9", user, ErrForbidden},
		{"suppliers as user", http.MethodGet, "/api/suppliers", user, ErrForbidden},
		{"suppliers as admin", http.MethodGet, "/api/suppliers", admin, nil},
		{"suppliers anonymous", http.MethodGet, "/api/suppliers", nil, ErrUnauthenticated},
		{"own profile as user", http.MethodGet, "/api/user", user, nil},
		{"user list as user", http.MethodGet, "/api/user/all", user, ErrForbidden},
		{"user list as admin", http.MethodGet, "/api/user/all", admin, nil},
		{"create user as user", http.MethodPost, "/api/user", user, ErrForbidden},
		{"orders as user", http.MethodPost, "/api/orders", user, nil},
		{"all orders as user", http.MethodGet, "/api/orders/all", user, ErrForbidden},
		{"all orders as admin", http.MethodGet, "/api/orders/all", admin, nil},
		{"admin status as user", http.MethodGet, "/api/admin/status", user, ErrForbidden},
		{"catch-all anonymous", http.MethodGet, "/api/unknown", nil, ErrUnauthenticated},
		{"catch-all authenticated", http.MethodGet, "/api/unknown", user, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Evaluate(tc.method, tc.path, tc.id)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Evaluate(%s %s) = %v, want %v", tc.method, tc.path, err, tc.want)
			}
		})
	}
}

func TestAccessPolicyFirstMatchGoverns(t *testing.T) {
	// A broad later rule must not win over a narrower earlier one.
	policy := NewAccessPolicy([]AccessRule{
		{Pattern: "/api/reports/export", Roles: []Role{RoleAdmin}, Mode: MatchAny},
		{Pattern: "/api/reports/**", Roles: []Role{RoleUser}, Mode: MatchAny},
		{Pattern: "/**"},
	})
	user := &Identity{Subject: "alice", Roles: []Role{RoleUser}}

	if err := policy.Evaluate(http.MethodGet, "/api/reports/export", user); !errors.Is(err, ErrForbidden) {
		t.Fatalf("narrow rule should govern, got %v", err)
	}
	if err := policy.Evaluate(http.MethodGet, "/api/reports/weekly", user); err != nil {
		t.Fatalf("broad rule should allow, got %v", err)
	}
}

func TestAccessPolicyMatchAll(t *testing.T) {
	policy := NewAccessPolicy([]AccessRule{
		{Pattern: "/api/audit", Roles: []Role{RoleUser, RoleAdmin}, Mode: MatchAll},
	})
	both := &Identity{Subject: "root", Roles: []Role{RoleUser, RoleAdmin}}
	adminOnly := &Identity{Subject: "svc", Roles: []Role{RoleAdmin}}

	if err := policy.Evaluate(http.MethodGet, "/api/audit", both); err != nil {
		t.Fatalf("identity with all roles rejected: %v", err)
	}
	if err := policy.Evaluate(http.MethodGet, "/api/audit", adminOnly); !errors.Is(err, ErrForbidden) {
		t.Fatalf("identity missing a required role passed: %v", err)
	}
}

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"/api/login", "/api/login", true},
		{"/api/login", "/api/login2", false},
		{"/api/carPart/**", "/api/carPart", true},
		{"/api/carPart/**", "/api/carPart/42", true},
		{"/api/carPart/**", "/api/carParts", false},
		{"/**", "/anything/at/all", true},
	}
	for _, tc := range cases {
		if got := matchPattern(tc.pattern, tc.path); got != tc.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}

func TestLoadAccessPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	data := `rules:
  - pattern: /api/login
    public: true
  - pattern: /api/reports/**
    methods: [GET]
    roles: [ADMIN]
    mode: any
  - pattern: /**
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	policy, err := LoadAccessPolicy(path)
	if err != nil {
		t.Fatalf("LoadAccessPolicy error: %v", err)
	}
	if !policy.IsPublic(http.MethodPost, "/api/login") {
		t.Error("login not public")
	}
	admin := &Identity{Subject: "root", Roles: []Role{RoleAdmin}}
	if err := policy.Evaluate(http.MethodGet, "/api/reports/1", admin); err != nil {
		t.Errorf("admin rejected: %v", err)
	}
	user := &Identity{Subject: "alice", Roles: []Role{RoleUser}}
	if err := policy.Evaluate(http.MethodGet, "/api/reports/1", user); !errors.Is(err, ErrForbidden) {
		t.Errorf("user should be forbidden, got %v", err)
	}
}

func TestLoadAccessPolicyRejectsUnknownRole(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	data := `rules:
  - pattern: /api/x
    roles: [WIZARD]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := LoadAccessPolicy(path); err == nil {
		t.Fatal("unknown role accepted at load time")
	}
}
