// internal/sanitize/classify.go
package sanitize

import (
	"strings"

	"github.com/colebrumley/nope/internal/rules"
)

// Disposition is the classification of a single query parameter.
type Disposition int

const (
	KeepDefault Disposition = iota
	KeepUser
	KeepDomain
	RemoveBlocked
	RemoveReferral
)

// Removed reports whether the parameter is dropped from the cleaned URL.
func (d Disposition) Removed() bool {
	return d == RemoveBlocked || d == RemoveReferral
}

func (d Disposition) String() string {
	switch d {
	case KeepUser:
		return "user-allowed"
	case KeepDomain:
		return "domain-allowed"
	case RemoveBlocked:
		return "blocked"
	case RemoveReferral:
		return "referral"
	default:
		return "kept-by-default"
	}
}

// MarshalText lets dispositions appear by name in JSON and YAML output.
func (d Disposition) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Classify decides what happens to key. domainAllow is the allowlist for the
// URL's host and may be nil.
func Classify(key string, domainAllow rules.Set, allow Allowlist, rs *rules.RuleSet) Disposition {
	if rs == nil {
		rs = emptyRules
	}
	switch {
	case allow != nil && allow.Has(key):
		return KeepUser
	case domainAllow.Has(key):
		return KeepDomain
	case rs.Blocked(key):
		return RemoveBlocked
	case rs.Referral(key):
		return RemoveReferral
	default:
		return KeepDefault
	}
}

// Decision pairs a parameter with its disposition.
type Decision struct {
	Param
	Disposition Disposition `json:"disposition"`
}

// Explain classifies every parameter of rawURL in order without rebuilding
// the URL. It returns nil for input Sanitize would pass through and an empty
// slice for a URL without query parameters.
func Explain(rawURL string, allow Allowlist, rs *rules.RuleSet) []Decision {
	u, ok := parse(rawURL)
	if !ok {
		return nil
	}
	if rs == nil {
		rs = emptyRules
	}

	rest, _, _ := strings.Cut(rawURL, "#")
	_, query, _ := strings.Cut(rest, "?")
	domainAllow := rs.DomainAllowlist(HostKey(u))

	decisions := []Decision{}
	for _, p := range splitQuery(query) {
		decisions = append(decisions, Decision{
			Param:       p.Param,
			Disposition: Classify(p.Key, domainAllow, allow, rs),
		})
	}
	return decisions
}
