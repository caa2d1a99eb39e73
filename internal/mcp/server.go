// internal/mcp/server.go
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/colebrumley/nope/internal/prefs"
	"github.com/colebrumley/nope/internal/rules"
	"github.com/colebrumley/nope/internal/sanitize"
)

// Server exposes the sanitizer and the user allowlist as MCP tools
type Server struct {
	store       *prefs.Store
	cache       *prefs.Cache
	unsubscribe func()
	rules       *rules.RuleSet
	logger      *slog.Logger
	server      *mcp.Server
}

// URLInput is the input schema for the URL tools
type URLInput struct {
	URL string `json:"url" jsonschema:"The URL to clean"`
}

// SanitizeOutput is the output schema for the sanitize_url tool
type SanitizeOutput struct {
	OriginalURL string           `json:"original_url"`
	CleanedURL  string           `json:"cleaned_url"`
	Removed     []sanitize.Param `json:"removed_params"`
	Changed     bool             `json:"changed"`
}

// LinkOutput is the output schema for the clean_link tool
type LinkOutput struct {
	CleanedURL string `json:"cleaned_url"`
}

// ExplainOutput is the output schema for the explain_url tool
type ExplainOutput struct {
	Params []ParamDecision `json:"params"`
}

// ParamDecision is the fate of a single query parameter
type ParamDecision struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Disposition string `json:"disposition"`
	Removed     bool   `json:"removed"`
}

// AllowInput is the input schema for the allow_parameter tool
type AllowInput struct {
	Key string `json:"key" jsonschema:"Query parameter name to keep on every site (case-sensitive)"`
}

// AllowOutput is the output schema for the allow_parameter tool
type AllowOutput struct {
	Added   bool   `json:"added"`
	Message string `json:"message"`
}

// ListInput is the input schema for the list_allowed_parameters tool
type ListInput struct{}

// ListOutput is the output schema for the list_allowed_parameters tool
type ListOutput struct {
	Keys  []string `json:"keys"`
	Count int      `json:"count"`
}

// NewServer creates a new MCP server backed by the preference database at
// prefsPath and the rule table rs.
func NewServer(ctx context.Context, prefsPath string, rs *rules.RuleSet, logger *slog.Logger) (*Server, error) {
	store, err := prefs.Open(prefsPath)
	if err != nil {
		return nil, fmt.Errorf("opening preference database: %w", err)
	}

	cache, unsubscribe := prefs.LoadCache(ctx, store, logger)
	s := &Server{
		store:       store,
		cache:       cache,
		unsubscribe: unsubscribe,
		rules:       rs,
		logger:      logger,
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "nope",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sanitize_url",
		Description: "Remove tracking and referral query parameters from a URL. Returns the cleaned URL and every removed parameter with its value. Parameters the site needs, and any the user has allowed, are kept. Strings that are not absolute URLs are returned unchanged.",
	}, s.handleSanitize)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clean_link",
		Description: "Clean a link before sharing it. Returns only the cleaned URL.",
	}, s.handleLink)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "explain_url",
		Description: "Show, for each query parameter of a URL, whether it would be kept or removed and why.",
	}, s.handleExplain)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "allow_parameter",
		Description: "Permanently keep a query parameter on every site, overriding the tracking rules. Use only when the user asks to keep a parameter that was removed.",
	}, s.handleAllow)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_allowed_parameters",
		Description: "List the query parameters the user has chosen to always keep.",
	}, s.handleList)

	s.server = server
	return s, nil
}

func (s *Server) handleSanitize(ctx context.Context, req *mcp.CallToolRequest, input URLInput) (*mcp.CallToolResult, SanitizeOutput, error) {
	r := sanitize.Sanitize(input.URL, s.cache.Current(), s.rules)
	return nil, SanitizeOutput{
		OriginalURL: r.OriginalURL,
		CleanedURL:  r.CleanedURL,
		Removed:     r.Removed,
		Changed:     r.Changed(),
	}, nil
}

func (s *Server) handleLink(ctx context.Context, req *mcp.CallToolRequest, input URLInput) (*mcp.CallToolResult, LinkOutput, error) {
	return nil, LinkOutput{
		CleanedURL: sanitize.Link(input.URL, s.cache.Current(), s.rules),
	}, nil
}

func (s *Server) handleExplain(ctx context.Context, req *mcp.CallToolRequest, input URLInput) (*mcp.CallToolResult, ExplainOutput, error) {
	decisions := sanitize.Explain(input.URL, s.cache.Current(), s.rules)
	params := make([]ParamDecision, len(decisions))
	for i, d := range decisions {
		params[i] = ParamDecision{
			Key:         d.Key,
			Value:       d.Value,
			Disposition: d.Disposition.String(),
			Removed:     d.Disposition.Removed(),
		}
	}
	return nil, ExplainOutput{Params: params}, nil
}

func (s *Server) handleAllow(ctx context.Context, req *mcp.CallToolRequest, input AllowInput) (*mcp.CallToolResult, AllowOutput, error) {
	added, err := s.store.Allow(ctx, input.Key)
	if err != nil {
		if errors.Is(err, prefs.ErrEmptyKey) {
			return nil, AllowOutput{}, fmt.Errorf("key must not be empty")
		}
		return nil, AllowOutput{}, fmt.Errorf("failed to record allowed parameter: %w", err)
	}

	msg := fmt.Sprintf("%q is now kept on every site", input.Key)
	if !added {
		msg = fmt.Sprintf("%q was already allowed", input.Key)
	} else {
		s.logger.Info("parameter allowed", "key", input.Key, "via", "mcp")
	}
	return nil, AllowOutput{Added: added, Message: msg}, nil
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	keys := s.cache.Current().Keys()
	return nil, ListOutput{Keys: keys, Count: len(keys)}, nil
}

// Run serves MCP on stdio until ctx is cancelled. Allowlist changes made by
// other processes are picked up while it runs.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watcher := prefs.NewWatcher(s.store, s.cache, s.logger, prefs.DefaultDebounce)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("preference watcher stopped", "error", err)
		}
	}()

	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close closes the preference database
func (s *Server) Close() error {
	s.unsubscribe()
	return s.store.Close()
}
