// internal/daemon/http.go
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/colebrumley/nope/internal/logging"
	"github.com/colebrumley/nope/internal/prefs"
	"github.com/colebrumley/nope/internal/rules"
	"github.com/colebrumley/nope/internal/sanitize"
	"github.com/colebrumley/nope/internal/security"
	"github.com/colebrumley/nope/internal/session"
)

// maxBodyBytes caps request bodies; a URL plus a session id fits easily.
const maxBodyBytes = 64 << 10

// newDaemon assembles a daemon from already opened parts.
func newDaemon(logger *slog.Logger, rs *rules.RuleSet, store *prefs.Store, cache *prefs.Cache, sessions *session.Store) *Daemon {
	return &Daemon{
		logger:    logger,
		rules:     rs,
		prefs:     store,
		cache:     cache,
		sessions:  sessions,
		startTime: time.Now(),
	}
}

func (d *Daemon) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", rateLimitHandler(60, d.handleHealth))

	// Navigation interception runs once per page load; allow bursts.
	mux.HandleFunc("/api/sanitize", rateLimitHandler(600, d.handleSanitize))
	mux.HandleFunc("/api/link", rateLimitHandler(300, d.handleLink))
	mux.HandleFunc("/api/sessions/{id}", rateLimitHandler(600, d.handleSession))

	mux.HandleFunc("/api/allowlist", rateLimitHandler(30, d.handleAllowlist))
	mux.HandleFunc("/api/rules", rateLimitHandler(30, d.handleRules))

	return mux
}

// handleHealth returns daemon health status.
func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions, err := d.sessions.Count(r.Context())
	if err != nil {
		d.logger.Warn("counting sessions", "error", err)
	}

	writeJSON(w, http.StatusOK, Health{
		Status:        "ok",
		Uptime:        time.Since(d.startTime).Truncate(time.Second).String(),
		Rules:         d.rules.Stats(),
		AllowlistSize: d.cache.Current().Len(),
		Sessions:      sessions,
	})
}

// handleSanitize is the navigation interceptor. A changed result is stored
// for the session so the display surface can show it; an unchanged result
// clears whatever the session showed before.
func (d *Daemon) handleSanitize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SanitizeRequest
	if err := readJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	result := sanitize.Sanitize(req.URL, d.cache.Current(), d.rules)
	resp := SanitizeResponse{SessionID: req.SessionID, Redirect: result.Changed(), Result: result}

	if result.Changed() {
		if resp.SessionID == "" {
			resp.SessionID = session.NewID()
		}
		logger := logging.WithSession(d.logger, resp.SessionID)
		if err := d.sessions.Put(r.Context(), resp.SessionID, result); err != nil {
			logger.Warn("storing session result", "error", err)
		}
		logger.Info("url sanitized",
			"url", security.ScrubURL(result.OriginalURL),
			"removed", len(result.Removed),
		)
	} else if req.SessionID != "" {
		if err := d.sessions.Delete(r.Context(), req.SessionID); err != nil {
			logging.WithSession(d.logger, req.SessionID).Warn("clearing session result", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLink cleans a link without touching session state.
func (d *Daemon) handleLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LinkRequest
	if err := readJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, LinkResponse{
		CleanedURL: sanitize.Link(req.URL, d.cache.Current(), d.rules),
	})
}

// handleSession serves the display surface. Missing or unreadable session
// data is shown as a clean state rather than an error.
func (d *Daemon) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, d.sessionView(r.Context(), id))

	case http.MethodDelete:
		if err := d.sessions.Delete(r.Context(), id); err != nil {
			http.Error(w, fmt.Sprintf("ending session: %v", err), http.StatusInternalServerError)
			return
		}
		logging.WithSession(d.logger, id).Debug("session ended")
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (d *Daemon) sessionView(ctx context.Context, id string) SessionView {
	clean := SessionView{State: StateClean, Removed: []sanitize.Param{}}

	result, err := d.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return clean
	}
	if err != nil {
		logging.WithSession(d.logger, id).Warn("reading session result", "error", err)
		return clean
	}
	if !result.Changed() {
		return clean
	}

	removed := make([]sanitize.Param, len(result.Removed))
	for i, p := range result.Removed {
		removed[i] = sanitize.Param{
			Key:   security.SanitizeValue(p.Key),
			Value: security.SanitizeValue(p.Value),
		}
	}
	return SessionView{
		State:       StateCleaned,
		Count:       len(removed),
		OriginalURL: result.OriginalURL,
		CleanedURL:  result.CleanedURL,
		Removed:     removed,
	}
}

// handleAllowlist lists the user allowlist or records a new key.
func (d *Daemon) handleAllowlist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, AllowlistResponse{Keys: d.cache.Current().Keys()})

	case http.MethodPost:
		var req AllowRequest
		if err := readJSON(w, r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		added, err := d.prefs.Allow(r.Context(), req.Key)
		if errors.Is(err, prefs.ErrEmptyKey) {
			http.Error(w, "key is required", http.StatusBadRequest)
			return
		}
		if err != nil {
			d.logger.Error("recording allowed parameter", "key", req.Key, "error", err)
			http.Error(w, "preference store unavailable", http.StatusServiceUnavailable)
			return
		}
		if added {
			d.logger.Info("parameter allowed", "key", req.Key)
		}
		writeJSON(w, http.StatusOK, AllowlistResponse{Keys: d.cache.Current().Keys(), Added: &added})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRules describes the active rule table.
func (d *Daemon) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	domains := make(map[string][]string)
	for _, domain := range d.rules.Domains() {
		domains[domain] = d.rules.DomainAllowlist(domain).Keys()
	}

	writeJSON(w, http.StatusOK, RulesResponse{
		Stats:     d.rules.Stats(),
		Blocklist: d.rules.Blocklist(),
		Referral:  d.rules.ReferralList(),
		Domains:   domains,
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// rateLimitHandler wraps an HTTP handler with a simple token-bucket rate limiter.
func rateLimitHandler(requestsPerMinute int, handler http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	tokens := requestsPerMinute
	lastRefill := time.Now()

	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		now := time.Now()
		refill := int(now.Sub(lastRefill).Minutes() * float64(requestsPerMinute))
		if refill > 0 {
			tokens = min(tokens+refill, requestsPerMinute)
			lastRefill = now
		}

		if tokens <= 0 {
			mu.Unlock()
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		tokens--
		mu.Unlock()

		handler(w, r)
	}
}
