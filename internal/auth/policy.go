package auth

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/spec-kit/portal-auth/internal/domain"
)

// Rule grants access to every path under Prefix. Public rules admit
// unauthenticated requests and attach no identity.
type Rule struct {
	Prefix  string
	Allowed domain.DomainSet
	Public  bool
}

// Access is the resolved policy for one path. The zero value denies everything.
type Access struct {
	Prefix  string
	Allowed domain.DomainSet
	Public  bool
}

// DenyAll reports whether no caller can reach the path.
func (a Access) DenyAll() bool {
	return !a.Public && a.Allowed.Empty()
}

// PolicyMatrix maps path prefixes to the domains allowed to reach them.
// It is immutable once built.
type PolicyMatrix struct {
	rules []Rule // longest prefix first
}

// DefaultRules is the route table of the portal.
func DefaultRules() []Rule {
	support := domain.NewDomainSet(domain.DomainSupport)
	customer := domain.NewDomainSet(domain.DomainCustomer)
	return []Rule{
		{Prefix: "/health", Public: true},
		{Prefix: "/metrics", Public: true},
		{Prefix: "/support/api/auth", Public: true},
		{Prefix: "/api/auth", Public: true},
		{Prefix: "/support/api/admin", Allowed: support},
		{Prefix: "/support/api", Allowed: support},
		{Prefix: "/api", Allowed: customer},
	}
}

// NewPolicyMatrix validates and indexes the rules.
func NewPolicyMatrix(rules ...Rule) (*PolicyMatrix, error) {
	seen := make(map[string]struct{}, len(rules))
	indexed := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("policy prefix %q must be absolute", r.Prefix)
		}
		prefix := normalizePrefix(r.Prefix)
		if _, dup := seen[prefix]; dup {
			return nil, fmt.Errorf("duplicate policy prefix %q", prefix)
		}
		if r.Public == !r.Allowed.Empty() {
			return nil, fmt.Errorf("policy prefix %q must be either public or allow at least one domain", prefix)
		}
		seen[prefix] = struct{}{}
		indexed = append(indexed, Rule{Prefix: prefix, Allowed: r.Allowed, Public: r.Public})
	}
	sort.SliceStable(indexed, func(i, j int) bool {
		return len(indexed[i].Prefix) > len(indexed[j].Prefix)
	})
	return &PolicyMatrix{rules: indexed}, nil
}

// MustPolicyMatrix is NewPolicyMatrix for static tables.
func MustPolicyMatrix(rules ...Rule) *PolicyMatrix {
	pm, err := NewPolicyMatrix(rules...)
	if err != nil {
		panic(err)
	}
	return pm
}

// Resolve returns the access granted for p by the longest matching rule.
func (pm *PolicyMatrix) Resolve(p string) Access {
	clean := cleanPath(p)
	for _, r := range pm.rules {
		if matches(r.Prefix, clean) {
			return Access{Prefix: r.Prefix, Allowed: r.Allowed, Public: r.Public}
		}
	}
	return Access{}
}

// matches is segment aware: /api covers /api and /api/x but not /apiary.
func matches(prefix, p string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func normalizePrefix(prefix string) string {
	return cleanPath(strings.TrimSuffix(prefix, "/*"))
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
