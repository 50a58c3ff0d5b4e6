package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/portal-auth/internal/domain"
)

func TestPolicyMatrix_DefaultRules(t *testing.T) {
	pm := MustPolicyMatrix(DefaultRules()...)
	support := domain.NewDomainSet(domain.DomainSupport)
	customer := domain.NewDomainSet(domain.DomainCustomer)

	cases := []struct {
		path    string
		public  bool
		allowed domain.DomainSet
	}{
		{"/support/api/admin/users", false, support},
		{"/support/api/admin", false, support},
		{"/support/api/me", false, support},
		{"/support/api/auth/login", true, 0},
		{"/api/auth/login", true, 0},
		{"/api/auth", true, 0},
		{"/api/customers", false, customer},
		{"/api/jobs/42", false, customer},
		{"/api/quotes", false, customer},
		{"/api/invoices", false, customer},
		{"/api/members", false, customer},
		{"/api/equipment", false, customer},
		{"/health/ready", true, 0},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			access := pm.Resolve(tc.path)
			assert.Equal(t, tc.public, access.Public)
			assert.Equal(t, tc.allowed, access.Allowed)
		})
	}
}

func TestPolicyMatrix_DefaultDeny(t *testing.T) {
	pm := MustPolicyMatrix(DefaultRules()...)

	for _, p := range []string{"/", "/admin", "/apiary", "/support", "/support/apix", "/internal/debug", ""} {
		access := pm.Resolve(p)
		assert.True(t, access.DenyAll(), p)
	}
}

func TestPolicyMatrix_LongestPrefixWins(t *testing.T) {
	pm := MustPolicyMatrix(
		Rule{Prefix: "/api", Allowed: domain.NewDomainSet(domain.DomainCustomer)},
		Rule{Prefix: "/api/shared/status", Allowed: domain.NewDomainSet(domain.DomainCustomer, domain.DomainSupport)},
		Rule{Prefix: "/api/shared", Allowed: domain.NewDomainSet(domain.DomainSupport)},
	)

	assert.Equal(t, "/api/shared/status", pm.Resolve("/api/shared/status/x").Prefix)
	assert.Equal(t, "/api/shared", pm.Resolve("/api/shared/other").Prefix)
	assert.Equal(t, "/api", pm.Resolve("/api/sharedx").Prefix)
}

func TestPolicyMatrix_CleansPath(t *testing.T) {
	pm := MustPolicyMatrix(DefaultRules()...)

	assert.Equal(t, "/support/api/admin", pm.Resolve("/api/auth/../../support/api/admin/users").Prefix)
	assert.Equal(t, "/api", pm.Resolve("//api//jobs/").Prefix)
	assert.False(t, pm.Resolve("/api/auth/../jobs").Public)
}

func TestPolicyMatrix_WildcardSuffix(t *testing.T) {
	pm := MustPolicyMatrix(Rule{Prefix: "/support/api/admin/*", Allowed: domain.NewDomainSet(domain.DomainSupport)})
	assert.Equal(t, "/support/api/admin", pm.Resolve("/support/api/admin/users").Prefix)
}

func TestNewPolicyMatrix_Validation(t *testing.T) {
	customer := domain.NewDomainSet(domain.DomainCustomer)

	_, err := NewPolicyMatrix(Rule{Prefix: "api", Allowed: customer})
	assert.Error(t, err)

	_, err = NewPolicyMatrix(Rule{Prefix: "/api", Allowed: customer}, Rule{Prefix: "/api/", Allowed: customer})
	assert.Error(t, err)

	_, err = NewPolicyMatrix(Rule{Prefix: "/api"})
	assert.Error(t, err)

	_, err = NewPolicyMatrix(Rule{Prefix: "/api", Allowed: customer, Public: true})
	assert.Error(t, err)

	_, err = NewPolicyMatrix(DefaultRules()...)
	require.NoError(t, err)
}
