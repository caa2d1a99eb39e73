// internal/daemon/types.go
package daemon

import (
	"github.com/colebrumley/nope/internal/rules"
	"github.com/colebrumley/nope/internal/sanitize"
)

// Session states reported to display surfaces.
const (
	StateClean   = "clean"
	StateCleaned = "cleaned"
)

// Health is the /health response.
type Health struct {
	Status        string      `json:"status"`
	Uptime        string      `json:"uptime"`
	Rules         rules.Stats `json:"rules"`
	AllowlistSize int         `json:"allowlist_size"`
	Sessions      int         `json:"sessions"`
}

// SanitizeRequest is the body of POST /api/sanitize.
type SanitizeRequest struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

// SanitizeResponse tells the navigation interceptor whether to redirect.
type SanitizeResponse struct {
	SessionID string `json:"session_id,omitempty"`
	Redirect  bool   `json:"redirect"`
	sanitize.Result
}

// LinkRequest is the body of POST /api/link.
type LinkRequest struct {
	URL string `json:"url"`
}

// LinkResponse carries the cleaned link.
type LinkResponse struct {
	CleanedURL string `json:"cleaned_url"`
}

// SessionView is what a display surface shows for a session.
type SessionView struct {
	State       string           `json:"state"`
	Count       int              `json:"count"`
	OriginalURL string           `json:"original_url,omitempty"`
	CleanedURL  string           `json:"cleaned_url,omitempty"`
	Removed     []sanitize.Param `json:"removed"`
}

// AllowRequest is the body of POST /api/allowlist.
type AllowRequest struct {
	Key string `json:"key"`
}

// AllowlistResponse lists the user allowlist. Added is set on POST.
type AllowlistResponse struct {
	Keys  []string `json:"keys"`
	Added *bool    `json:"added,omitempty"`
}

// RulesResponse describes the active rule table.
type RulesResponse struct {
	Stats     rules.Stats         `json:"stats"`
	Blocklist []string            `json:"blocklist"`
	Referral  []string            `json:"referral"`
	Domains   map[string][]string `json:"domains"`
}
