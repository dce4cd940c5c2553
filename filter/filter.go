// Package filter blocks requests by the host name they are sent to.
package filter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const (
	Allow = "allow"
	Deny  = "deny"
)

// Rule is a host pattern that applies to the clients matched by the access rule named ACL. An
// empty ACL applies to clients that matched no named access rule.
type Rule struct {
	ACL string
	// Action is "allow" or "deny". Empty means deny.
	Action string `json:",omitempty"`
	// Pattern is a regular expression searched for in the host name.
	Pattern string `json:",omitempty"`
	// File names a list of further patterns, one "allow PATTERN" or "deny PATTERN" per line.
	File string `json:",omitempty"`
}

type pattern struct {
	re    *regexp.Regexp
	allow bool
}

// Filter holds the compiled patterns of each access rule. Patterns are tried in order and the
// first match decides. Hosts matching no pattern get the default policy.
type Filter struct {
	lists map[string][]pattern
	deny  bool
}

// New compiles rules. Policy is the default action, "allow" or "deny". Patterns ignore case unless
// caseSensitive is set.
func New(rules []Rule, policy string, caseSensitive bool) (*Filter, error) {
	f := &Filter{lists: make(map[string][]pattern)}
	switch strings.ToLower(policy) {
	case "", Allow:
	case Deny:
		f.deny = true
	default:
		return nil, fmt.Errorf("invalid filter policy %q", policy)
	}
	for _, r := range rules {
		if r.File != "" {
			fileRules, err := readFile(r.File, r.ACL)
			if err != nil {
				return nil, err
			}
			for _, fr := range fileRules {
				if err := f.add(fr, caseSensitive); err != nil {
					return nil, fmt.Errorf("%s: %w", r.File, err)
				}
			}
		}
		if r.Pattern == "" {
			continue
		}
		if err := f.add(r, caseSensitive); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Filter) add(r Rule, caseSensitive bool) error {
	p := pattern{}
	switch strings.ToLower(r.Action) {
	case Allow:
		p.allow = true
	case "", Deny:
	default:
		return fmt.Errorf("filter %q: invalid action %q", r.Pattern, r.Action)
	}
	expr := r.Pattern
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("filter %q: %w", r.Pattern, err)
	}
	p.re = re
	f.lists[r.ACL] = append(f.lists[r.ACL], p)
	return nil
}

// Check reports whether clients matched by the access rule named acl may reach host. The pattern
// that decided is returned, or the empty string when the default policy applied.
func (f *Filter) Check(host, acl string) (bool, string) {
	if f == nil {
		return true, ""
	}
	for _, p := range f.lists[acl] {
		if p.re.MatchString(host) {
			return p.allow, p.re.String()
		}
	}
	return !f.deny, ""
}

func readFile(name, acl string) ([]Rule, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readRules(file, acl)
}

// readRules reads one rule per line. Lines not starting with an action are ignored, as is
// everything after the pattern. A "#" ends the pattern unless it is escaped.
func readRules(r io.Reader, acl string) ([]Rule, error) {
	var rules []Rule
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		action, rest, ok := strings.Cut(scanner.Text(), " ")
		if !ok {
			continue
		}
		switch action {
		case Allow, Deny:
		case "ofcd":
			return nil, fmt.Errorf("line %d: category rules are not supported", n)
		default:
			continue
		}
		pat := cutPattern(strings.TrimLeft(rest, " \t"))
		if pat == "" {
			continue
		}
		rules = append(rules, Rule{ACL: acl, Action: action, Pattern: pat})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func cutPattern(s string) string {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r':
			return s[:i]
		case '#':
			if i == 0 || s[i-1] != '\\' {
				return s[:i]
			}
		}
	}
	return s
}
