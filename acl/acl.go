// Package acl decides which clients may use the proxy.
package acl

import (
	"fmt"
	"net/netip"
	"strings"
)

const (
	Allow = "allow"
	Deny  = "deny"
)

// Rule matches clients by Location, which is a single address ("192.0.2.1"), a prefix
// ("10.0.0.0/8") or an inclusive range ("10.0.0.1-10.0.0.9").
type Rule struct {
	Name     string
	Location string
	// Action is "allow" or "deny". Empty means allow.
	Action string `json:",omitempty"`
}

type rule struct {
	Rule
	allow bool
	match func(netip.Addr) bool
}

// ACL is an ordered list of rules. The first matching rule decides; clients matching no rule get
// the default policy, unless there are no rules at all in which case everyone is allowed.
type ACL struct {
	rules []rule
	deny  bool
}

// New compiles rules. Policy is the default action, "allow" or "deny".
func New(rules []Rule, policy string) (*ACL, error) {
	a := &ACL{}
	switch strings.ToLower(policy) {
	case "", Allow:
	case Deny:
		a.deny = true
	default:
		return nil, fmt.Errorf("invalid policy %q", policy)
	}
	for _, r := range rules {
		match, err := parseLocation(r.Location)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		compiled := rule{Rule: r, match: match}
		switch strings.ToLower(r.Action) {
		case "", Allow:
			compiled.allow = true
		case Deny:
		default:
			return nil, fmt.Errorf("rule %q: invalid action %q", r.Name, r.Action)
		}
		a.rules = append(a.rules, compiled)
	}
	return a, nil
}

func parseLocation(s string) (func(netip.Addr) bool, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, err
		}
		p = p.Masked()
		return p.Contains, nil
	}
	if from, to, ok := strings.Cut(s, "-"); ok {
		lo, err := netip.ParseAddr(strings.TrimSpace(from))
		if err != nil {
			return nil, err
		}
		hi, err := netip.ParseAddr(strings.TrimSpace(to))
		if err != nil {
			return nil, err
		}
		lo, hi = lo.Unmap(), hi.Unmap()
		if lo.BitLen() != hi.BitLen() || hi.Less(lo) {
			return nil, fmt.Errorf("invalid range %q", s)
		}
		return func(a netip.Addr) bool {
			return a.BitLen() == lo.BitLen() && lo.Compare(a) <= 0 && a.Compare(hi) <= 0
		}, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil, err
	}
	addr = addr.Unmap()
	return func(a netip.Addr) bool { return a == addr }, nil
}

// Check reports whether the client at addr, given as "host:port" or a bare address, is allowed.
// The name of the deciding rule is returned, or the empty string when no rule matched.
func (a *ACL) Check(addr string) (bool, string) {
	ip, err := parseAddr(addr)
	if err != nil {
		return false, ""
	}
	if len(a.rules) == 0 {
		return true, ""
	}
	for _, r := range a.rules {
		if r.match(ip) {
			return r.allow, r.Name
		}
	}
	return !a.deny, ""
}

// Allow is Check without the rule name.
func (a *ACL) Allow(addr string) bool {
	ok, _ := a.Check(addr)
	return ok
}

func parseAddr(s string) (netip.Addr, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap(), nil
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	return ip.Unmap(), nil
}
