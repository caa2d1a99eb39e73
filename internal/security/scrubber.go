// internal/security/scrubber.go
package security

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

var (
	bearerPattern = regexp.MustCompile(`Bearer\s+\S{20,}`)
	// Long hex strings (32+ chars) are likely API keys.
	hexKeyPattern = regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`)
	jwtPattern    = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
)

// sensitiveKeys are query parameter names whose values are never logged.
// Matching is case-insensitive.
var sensitiveKeys = map[string]bool{
	"access_token":    true,
	"api_key":         true,
	"apikey":          true,
	"auth":            true,
	"code":            true,
	"id_token":        true,
	"key":             true,
	"passwd":          true,
	"password":        true,
	"refresh_token":   true,
	"secret":          true,
	"session":         true,
	"sig":             true,
	"signature":       true,
	"token":           true,
	"x-amz-signature": true,
	"x-plex-token":    true,
}

// ScrubText redacts bearer tokens, JWTs and long hex keys in free text.
func ScrubText(s string) string {
	s = bearerPattern.ReplaceAllString(s, "Bearer "+redacted)
	s = jwtPattern.ReplaceAllString(s, redacted)
	s = hexKeyPattern.ReplaceAllString(s, redacted)
	return s
}

// ScrubURL returns a form of rawURL safe to write to logs: userinfo is
// dropped and credential-like query values are replaced. Parameter order is
// kept. Strings that do not parse as URLs are scrubbed as text.
func ScrubURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return ScrubText(rawURL)
	}

	u.User = nil
	if u.RawQuery != "" {
		segments := strings.Split(u.RawQuery, "&")
		for i, seg := range segments {
			key, value, found := strings.Cut(seg, "=")
			if !found || value == "" {
				continue
			}
			name, err := url.QueryUnescape(key)
			if err != nil {
				name = key
			}
			if sensitiveKeys[strings.ToLower(name)] {
				segments[i] = key + "=" + redacted
				continue
			}
			segments[i] = key + "=" + ScrubText(value)
		}
		u.RawQuery = strings.Join(segments, "&")
	}
	u.Fragment = ScrubText(u.Fragment)
	u.RawFragment = ""
	return u.String()
}
