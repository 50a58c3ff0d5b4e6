package domain

import (
	"fmt"
	"strings"
	"time"
)

// Domain identifies one of the two disjoint identity universes.
type Domain uint8

const (
	domainInvalid Domain = iota
	DomainSupport
	DomainCustomer
)

// Domains lists every valid domain.
func Domains() []Domain {
	return []Domain{DomainSupport, DomainCustomer}
}

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	switch d {
	case DomainSupport, DomainCustomer:
		return true
	case domainInvalid:
		return false
	}
	return false
}

func (d Domain) String() string {
	switch d {
	case DomainSupport:
		return "support"
	case DomainCustomer:
		return "customer"
	case domainInvalid:
		return "invalid"
	}
	return fmt.Sprintf("domain(%d)", uint8(d))
}

// ParseDomain converts the textual form back into a Domain.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(s) {
	case "support":
		return DomainSupport, nil
	case "customer":
		return DomainCustomer, nil
	}
	return domainInvalid, fmt.Errorf("unknown domain %q", s)
}

// DomainSet is a set of domains.
type DomainSet uint8

// NewDomainSet builds a set from the given members. Invalid domains are ignored.
func NewDomainSet(domains ...Domain) DomainSet {
	var s DomainSet
	for _, d := range domains {
		s = s.Add(d)
	}
	return s
}

// Add returns a copy of s that also contains d.
func (s DomainSet) Add(d Domain) DomainSet {
	if !d.Valid() {
		return s
	}
	return s | 1<<d
}

// Has reports whether d is a member of s.
func (s DomainSet) Has(d Domain) bool {
	return d.Valid() && s&(1<<d) != 0
}

// Empty reports whether no domain is a member.
func (s DomainSet) Empty() bool {
	return s == 0
}

// Members returns members in declaration order.
func (s DomainSet) Members() []Domain {
	var out []Domain
	for _, d := range Domains() {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s DomainSet) String() string {
	members := s.Members()
	names := make([]string, 0, len(members))
	for _, d := range members {
		names = append(names, d.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Session is the server-held record of one login within one domain.
type Session struct {
	ID             string    `json:"id"`
	IdentityID     string    `json:"identity_id"`
	Role           string    `json:"role"`
	Domain         Domain    `json:"domain"`
	OrganizationID string    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// RequestIdentity is the verified caller attached to a single request.
type RequestIdentity struct {
	Domain         Domain
	IdentityID     string
	Role           string
	OrganizationID string
	SessionID      string
}

// MarshalText encodes the domain by name.
func (d Domain) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes a domain name.
func (d *Domain) UnmarshalText(text []byte) error {
	parsed, err := ParseDomain(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
