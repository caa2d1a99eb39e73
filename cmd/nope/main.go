// cmd/nope/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/colebrumley/nope/internal/clipboard"
	"github.com/colebrumley/nope/internal/config"
	"github.com/colebrumley/nope/internal/daemon"
	"github.com/colebrumley/nope/internal/prefs"
	"github.com/colebrumley/nope/internal/rules"
	"github.com/colebrumley/nope/internal/sanitize"
	"github.com/colebrumley/nope/internal/security"
	"github.com/colebrumley/nope/internal/template"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = cmdInit()
	case "clean":
		err = cmdClean(args)
	case "link":
		err = cmdLink(args)
	case "copy":
		err = cmdCopy(args)
	case "explain":
		err = cmdExplain(args)
	case "allow":
		err = cmdAllow(args)
	case "allowlist":
		err = cmdAllowlist()
	case "show":
		err = cmdShow(args)
	case "forget":
		err = cmdForget(args)
	case "status":
		err = cmdStatus()
	case "rules":
		err = cmdRules(args)
	case "validate":
		err = cmdValidate(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`nope - Strip tracking parameters from URLs

Usage: nope <command> [options]

Commands:
  init                       Create the data directory and default config
  clean [-format tmpl] [url...]
                             Clean URLs (reads stdin when none are given)
  link <url>                 Print the cleaned form of a link
  copy <url>                 Copy the cleaned link to the clipboard
  explain <url>              Show why each parameter is kept or removed
  allow <key>...             Always keep these parameters
  allowlist                  List always-kept parameters
  show <session-id>          Show what the daemon removed for a session
  forget <session-id>        End a session in the daemon
  status                     Show daemon status
  rules [-domain d]          Show the rule table
  validate [rules-file]      Validate config and rule table

Format variables: {{cleaned_url}} {{original_url}} {{removed_count}} {{removed_keys}}`)
}

func loadConfig() (*config.Global, error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// engine holds what a local sanitize call needs.
type engine struct {
	rules *rules.RuleSet
	allow *prefs.Allowlist
}

// loadEngine loads the rule table and the user allowlist. An unreadable
// preference database means no user overrides, not a failed command.
func loadEngine(ctx context.Context) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	rs, err := rules.Load(cfg.Rules.File)
	if err != nil {
		return nil, err
	}

	e := &engine{rules: rs, allow: prefs.NewAllowlist()}
	if _, err := os.Stat(cfg.Storage.PreferencesDB); err != nil {
		return e, nil
	}

	store, err := prefs.Open(cfg.Storage.PreferencesDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: preference store unavailable, user allowlist not applied: %v\n", err)
		return e, nil
	}
	defer store.Close()

	a, err := store.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: preference store unavailable, user allowlist not applied: %v\n", err)
		return e, nil
	}
	e.allow = a
	return e, nil
}

func openStore() (*prefs.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := prefs.Open(cfg.Storage.PreferencesDB)
	if err != nil {
		return nil, fmt.Errorf("opening preference store: %w", err)
	}
	return store, nil
}

func cmdInit() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dataDir := cfg.Storage.DataDir
	if err := security.EnsureDataDir(dataDir); err != nil {
		return err
	}
	if err := security.ValidateDirectoryPermissions(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	fmt.Printf("Data directory: %s\n", dataDir)

	configPath := config.DefaultPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(configPath, data, 0600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("Created config: %s\n", configPath)
	} else {
		fmt.Printf("Config exists: %s\n", configPath)
	}

	store, err := prefs.Open(cfg.Storage.PreferencesDB)
	if err != nil {
		return fmt.Errorf("creating preference store: %w", err)
	}
	store.Close()
	fmt.Printf("Preferences: %s\n", cfg.Storage.PreferencesDB)
	return nil
}

func cmdClean(args []string) error {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	format := fs.String("format", template.DefaultFormat, "output template")
	fs.Parse(args)

	ctx := context.Background()
	e, err := loadEngine(ctx)
	if err != nil {
		return err
	}

	emit := func(raw string) {
		r := sanitize.Sanitize(raw, e.allow, e.rules)
		fmt.Println(template.Format(*format, r))
	}

	if fs.NArg() > 0 {
		for _, raw := range fs.Args() {
			emit(raw)
		}
		return nil
	}
	return eachLine(os.Stdin, emit)
}

// eachLine calls fn for every non-blank line of r.
func eachLine(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fn(line)
	}
	return scanner.Err()
}

func cmdLink(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: nope link <url>")
	}
	e, err := loadEngine(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(sanitize.Link(args[0], e.allow, e.rules))
	return nil
}

func cmdCopy(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: nope copy <url>")
	}
	ctx := context.Background()
	e, err := loadEngine(ctx)
	if err != nil {
		return err
	}

	cleaned := sanitize.Link(args[0], e.allow, e.rules)
	fmt.Println(cleaned)
	if err := clipboard.Copy(ctx, cleaned); err != nil {
		return fmt.Errorf("copying to clipboard: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Copied to clipboard")
	return nil
}

func cmdExplain(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: nope explain <url>")
	}
	e, err := loadEngine(context.Background())
	if err != nil {
		return err
	}

	decisions := sanitize.Explain(args[0], e.allow, e.rules)
	if decisions == nil {
		fmt.Println("Not an absolute URL; it would be left unchanged")
		return nil
	}
	if len(decisions) == 0 {
		fmt.Println("No query parameters")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tACTION\tREASON")
	for _, d := range decisions {
		action := "keep"
		if d.Disposition.Removed() {
			action = "remove"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Key, truncate(security.SanitizeValue(d.Value), 40), action, d.Disposition)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%s\n", sanitize.Link(args[0], e.allow, e.rules))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func cmdAllow(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: nope allow <key>...")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	for _, key := range args {
		added, err := store.Allow(ctx, key)
		if err != nil {
			return fmt.Errorf("allowing %q: %w", key, err)
		}
		if added {
			fmt.Printf("Allowed %s\n", key)
		} else {
			fmt.Printf("%s was already allowed\n", key)
		}
	}
	return nil
}

func cmdAllowlist() error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	a, err := store.Load(context.Background())
	if err != nil {
		return err
	}
	if a.Len() == 0 {
		fmt.Println("No allowed parameters")
		return nil
	}
	for _, k := range a.Keys() {
		fmt.Println(k)
	}
	return nil
}

func daemonClient() (*daemon.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return daemon.NewClient(cfg.Addr()), nil
}

func cmdShow(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: nope show <session-id>")
	}
	c, err := daemonClient()
	if err != nil {
		return err
	}

	view, err := c.Session(context.Background(), args[0])
	if err != nil {
		return err
	}

	if view.State == daemon.StateClean {
		fmt.Println("Clean: nothing was removed")
		return nil
	}
	fmt.Printf("Cleaned: %d parameter(s) removed\n", view.Count)
	fmt.Printf("  %s\n  -> %s\n\n", view.OriginalURL, view.CleanedURL)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, p := range view.Removed {
		fmt.Fprintf(tw, "  %s\t%s\n", p.Key, p.Value)
	}
	return tw.Flush()
}

func cmdForget(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: nope forget <session-id>")
	}
	c, err := daemonClient()
	if err != nil {
		return err
	}
	return c.Forget(context.Background(), args[0])
}

func cmdStatus() error {
	c, err := daemonClient()
	if err != nil {
		return err
	}

	h, err := c.Health(context.Background())
	if err != nil {
		fmt.Println("Daemon is not running")
		return nil
	}
	fmt.Printf("Daemon is running (uptime %s)\n", h.Uptime)
	fmt.Printf("  rules:     %d blocked, %d referral, %d domains\n", h.Rules.Blocked, h.Rules.Referral, h.Rules.Domains)
	fmt.Printf("  allowlist: %d\n", h.AllowlistSize)
	fmt.Printf("  sessions:  %d\n", h.Sessions)
	return nil
}

func cmdRules(args []string) error {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	domain := fs.String("domain", "", "show the allowlist for one domain")
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rs, err := rules.Load(cfg.Rules.File)
	if err != nil {
		return err
	}

	if *domain != "" {
		d := rules.NormalizeDomain(*domain)
		keys := rs.DomainAllowlist(d).Keys()
		if len(keys) == 0 {
			fmt.Printf("No parameters allowed for %s\n", d)
			return nil
		}
		fmt.Printf("%s keeps: %s\n", d, strings.Join(keys, ", "))
		return nil
	}

	stats := rs.Stats()
	fmt.Printf("Blocked (%d):\n  %s\n\n", stats.Blocked, strings.Join(rs.Blocklist(), " "))
	fmt.Printf("Referral (%d):\n  %s\n\n", stats.Referral, strings.Join(rs.ReferralList(), " "))
	fmt.Printf("Domain allowlists (%d):\n", stats.Domains)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, d := range rs.Domains() {
		fmt.Fprintf(tw, "  %s\t%s\n", d, strings.Join(rs.DomainAllowlist(d).Keys(), " "))
	}
	return tw.Flush()
}

func cmdValidate(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Println("Config is valid")

	path := cfg.Rules.File
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		fmt.Println("Using built-in rule table")
		return nil
	}

	f, err := rules.LoadFile(path)
	if err != nil {
		return fmt.Errorf("invalid rule file %s: %w", path, err)
	}
	if err := security.ValidateFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	rs := rules.FromFile(f)
	for _, w := range rules.Warnings(rs) {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	stats := rs.Stats()
	fmt.Printf("Rule file %s is valid (%s): %d blocked, %d referral, %d domains\n",
		path, f.Mode, stats.Blocked, stats.Referral, stats.Domains)
	return nil
}
