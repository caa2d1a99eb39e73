// Package sanitize removes tracking and referral parameters from URLs.
//
// The engine is a pure function of its inputs: a URL string, the user's
// allowlist and a rules.RuleSet. It performs no I/O and keeps no state, so it
// can be called from any number of goroutines at once. Callers resolve the
// user's allowlist before calling in; loading it is never the engine's job.
//
// Each query parameter is classified with the first matching rule:
//
//  1. named in the user allowlist: kept
//  2. named in the domain allowlist for the URL's host: kept
//  3. blocklisted: removed
//  4. a referral parameter: removed
//  5. anything else: kept
//
// Input that does not parse as an absolute URL is returned unchanged with an
// empty removal list.
package sanitize

import (
	"net/url"
	"strings"

	"github.com/colebrumley/nope/internal/rules"
)

// Allowlist is the set of parameter names the user always keeps.
type Allowlist interface {
	Has(key string) bool
}

// Param is a single query parameter, decoded.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Result is the outcome of sanitizing one URL.
type Result struct {
	OriginalURL string  `json:"original_url"`
	CleanedURL  string  `json:"cleaned_url"`
	Removed     []Param `json:"removed_params"`
}

// Changed reports whether any parameter was removed.
func (r Result) Changed() bool {
	return r.CleanedURL != r.OriginalURL
}

// RemovedKeys returns the names of the removed parameters in order.
func (r Result) RemovedKeys() []string {
	keys := make([]string, len(r.Removed))
	for i, p := range r.Removed {
		keys[i] = p.Key
	}
	return keys
}

var emptyRules = rules.New(nil, nil, nil)

// specialSchemes must carry a host to be a usable URL.
var specialSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ws":    true,
	"wss":   true,
	"ftp":   true,
}

type queryParam struct {
	raw string
	Param
}

// Sanitize cleans rawURL. allow may be nil, meaning no user overrides apply.
// A nil rs behaves like an empty rule table.
func Sanitize(rawURL string, allow Allowlist, rs *rules.RuleSet) Result {
	passthrough := Result{OriginalURL: rawURL, CleanedURL: rawURL, Removed: []Param{}}

	u, ok := parse(rawURL)
	if !ok {
		return passthrough
	}
	if rs == nil {
		rs = emptyRules
	}

	// Split on the raw string rather than re-serializing u so that every
	// byte outside the query survives untouched.
	rest, fragment, hasFragment := strings.Cut(rawURL, "#")
	base, query, _ := strings.Cut(rest, "?")

	domainAllow := rs.DomainAllowlist(HostKey(u))
	var kept []string
	removed := []Param{}
	for _, p := range splitQuery(query) {
		if Classify(p.Key, domainAllow, allow, rs).Removed() {
			removed = append(removed, p.Param)
			continue
		}
		kept = append(kept, p.raw)
	}

	if len(removed) == 0 {
		return passthrough
	}

	var b strings.Builder
	b.WriteString(base)
	if len(kept) > 0 {
		b.WriteByte('?')
		b.WriteString(strings.Join(kept, "&"))
	}
	if hasFragment {
		b.WriteByte('#')
		b.WriteString(fragment)
	}

	return Result{
		OriginalURL: rawURL,
		CleanedURL:  b.String(),
		Removed:     removed,
	}
}

// Link is the context-free variant used for copy-link actions. It applies the
// same classification but only returns the cleaned URL. A nil allow means no
// user overrides apply.
func Link(rawURL string, allow Allowlist, rs *rules.RuleSet) string {
	return Sanitize(rawURL, allow, rs).CleanedURL
}

// HostKey returns the key used for domain allowlist lookups: the URL's host
// with one leading "www." label removed. Case and port are left alone.
func HostKey(u *url.URL) string {
	return strings.TrimPrefix(u.Host, "www.")
}

func parse(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	if u.Scheme == "" {
		return nil, false
	}
	if specialSchemes[strings.ToLower(u.Scheme)] && u.Host == "" {
		return nil, false
	}
	return u, true
}

// splitQuery splits a raw query into parameters, keeping order and
// duplicates. Empty segments are dropped.
func splitQuery(query string) []queryParam {
	if query == "" {
		return nil
	}
	var params []queryParam
	for _, seg := range strings.Split(query, "&") {
		if seg == "" {
			continue
		}
		k, v, _ := strings.Cut(seg, "=")
		params = append(params, queryParam{
			raw:   seg,
			Param: Param{Key: unescape(k), Value: unescape(v)},
		})
	}
	return params
}

func unescape(s string) string {
	if d, err := url.QueryUnescape(s); err == nil {
		return d
	}
	return s
}
