// internal/rules/rules.go
package rules

import (
	"slices"
	"strings"
)

// Set is a set of query parameter names. Membership is case-sensitive.
type Set map[string]struct{}

// NewSet builds a Set from the given names, skipping empty ones.
func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether key is in the set. A nil Set contains nothing.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the members in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// RuleSet categorizes parameter names into a blocklist, a referral list and
// per-domain allowlists. It is never modified after construction and may be
// shared between goroutines without locking.
type RuleSet struct {
	blocklist Set
	referral  Set
	allowlist map[string]Set
}

// Stats summarizes the size of a RuleSet.
type Stats struct {
	Blocked  int `json:"blocked" yaml:"blocked"`
	Referral int `json:"referral" yaml:"referral"`
	Domains  int `json:"domains" yaml:"domains"`
}

// New creates a RuleSet. Allowlist domain keys are normalized with
// NormalizeDomain; entries that normalize to the same domain are merged.
func New(blocklist, referral []string, allowlist map[string][]string) *RuleSet {
	rs := &RuleSet{
		blocklist: NewSet(blocklist...),
		referral:  NewSet(referral...),
		allowlist: make(map[string]Set, len(allowlist)),
	}
	for domain, keys := range allowlist {
		d := NormalizeDomain(domain)
		if d == "" {
			continue
		}
		existing, ok := rs.allowlist[d]
		if !ok {
			existing = make(Set, len(keys))
			rs.allowlist[d] = existing
		}
		for _, k := range keys {
			if k != "" {
				existing[k] = struct{}{}
			}
		}
	}
	return rs
}

// NormalizeDomain lowercases a rule-table domain key and strips one leading
// "www." label.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(d, "www.")
}

// Blocked reports whether key is an unconditional tracking parameter.
func (rs *RuleSet) Blocked(key string) bool {
	return rs.blocklist.Has(key)
}

// Referral reports whether key is a referral parameter.
func (rs *RuleSet) Referral(key string) bool {
	return rs.referral.Has(key)
}

// DomainAllowed reports whether key must be kept for domain. The domain is
// looked up exactly as given.
func (rs *RuleSet) DomainAllowed(domain, key string) bool {
	return rs.allowlist[domain].Has(key)
}

// DomainAllowlist returns the allowlist for domain, or nil when there is none.
// The returned Set must not be modified.
func (rs *RuleSet) DomainAllowlist(domain string) Set {
	return rs.allowlist[domain]
}

// Domains returns every domain with an allowlist entry, sorted.
func (rs *RuleSet) Domains() []string {
	domains := make([]string, 0, len(rs.allowlist))
	for d := range rs.allowlist {
		domains = append(domains, d)
	}
	slices.Sort(domains)
	return domains
}

// Blocklist returns the blocklisted names, sorted.
func (rs *RuleSet) Blocklist() []string { return rs.blocklist.Keys() }

// ReferralList returns the referral names, sorted.
func (rs *RuleSet) ReferralList() []string { return rs.referral.Keys() }

// Stats returns the number of entries in each category.
func (rs *RuleSet) Stats() Stats {
	return Stats{
		Blocked:  len(rs.blocklist),
		Referral: len(rs.referral),
		Domains:  len(rs.allowlist),
	}
}

// Warnings reports entries that are legal but probably unintended. A name
// listed as both blocked and referral is still handled by priority order.
func Warnings(rs *RuleSet) []string {
	var warnings []string
	for _, k := range rs.blocklist.Keys() {
		if rs.referral.Has(k) {
			warnings = append(warnings, "parameter "+k+" is in both blocklist and referral list; blocklist wins")
		}
	}
	return warnings
}
