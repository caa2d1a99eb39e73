// internal/daemon/daemon.go
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/colebrumley/nope/internal/config"
	"github.com/colebrumley/nope/internal/logging"
	"github.com/colebrumley/nope/internal/prefs"
	"github.com/colebrumley/nope/internal/rules"
	"github.com/colebrumley/nope/internal/security"
	"github.com/colebrumley/nope/internal/session"
)

// Daemon serves the sanitization engine to browser integrations over HTTP
type Daemon struct {
	configPath  string
	config      *config.Global
	logger      *slog.Logger
	logCloser   io.Closer
	rules       *rules.RuleSet
	prefs       *prefs.Store
	cache       *prefs.Cache
	unsubscribe func()
	sessions    *session.Store
	httpServer  *http.Server
	startTime   time.Time
	wg          sync.WaitGroup
}

// New creates a new daemon instance
func New(configPath string) *Daemon {
	return &Daemon{configPath: configPath}
}

// Run starts the daemon and blocks until ctx is cancelled or the HTTP
// listener fails.
func (d *Daemon) Run(ctx context.Context) error {
	d.startTime = time.Now()

	if err := d.loadConfig(); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	d.initLogger()
	defer d.logCloser.Close()

	d.logger.Info("starting daemon", "config", d.configPath, "data_dir", d.config.Storage.DataDir)

	if err := d.open(ctx); err != nil {
		d.shutdown()
		return err
	}

	sweeper, err := session.NewSweeper(d.sessions, d.config.SessionTTL(), d.config.Session.CleanupSchedule,
		logging.WithComponent(d.logger, "sweeper"))
	if err != nil {
		d.shutdown()
		return fmt.Errorf("starting session sweeper: %w", err)
	}
	watcher := prefs.NewWatcher(d.prefs, d.cache, logging.WithComponent(d.logger, "watcher"), prefs.DefaultDebounce)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		if err := watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("preference watcher stopped, cross-process allowlist changes will not be seen", "error", err)
		}
	}()
	go func() {
		defer d.wg.Done()
		sweeper.Run(runCtx)
	}()

	d.httpServer = &http.Server{
		Addr:              d.config.Addr(),
		Handler:           d.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := d.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	d.logger.Info("daemon started",
		"address", d.config.Addr(),
		"allowlist_size", d.cache.Current().Len(),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	d.logger.Info("daemon stopping")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("http shutdown incomplete", "error", err)
	}

	d.wg.Wait()
	if err := d.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (d *Daemon) loadConfig() error {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		return err
	}
	d.config = cfg
	return nil
}

// initLogger opens the configured log file, falling back to stderr.
func (d *Daemon) initLogger() {
	cfg := d.config
	logger, closer, err := logging.Open(cfg.Logging.Format, cfg.Daemon.LogLevel, cfg.Logging.File, cfg.Logging.MaxSizeMB)
	if err != nil {
		d.logger = logging.NewLogger(cfg.Logging.Format, cfg.Daemon.LogLevel, os.Stderr)
		d.logCloser = io.NopCloser(nil)
		d.logger.Warn("failed to open log file, using stderr", "error", err, "path", cfg.Logging.File)
		return
	}
	d.logger = logger
	d.logCloser = closer
}

// open loads the rule table and opens both stores.
func (d *Daemon) open(ctx context.Context) error {
	dataDir := d.config.Storage.DataDir
	if err := security.EnsureDataDir(dataDir); err != nil {
		return err
	}
	if err := security.ValidateDirectoryPermissions(dataDir); err != nil {
		d.logger.Warn("data directory has unsafe permissions", "error", err, "path", dataDir)
	}

	rs, err := d.loadRules()
	if err != nil {
		return err
	}
	d.rules = rs

	store, err := prefs.Open(d.config.Storage.PreferencesDB)
	if err != nil {
		return fmt.Errorf("opening preference store: %w", err)
	}
	d.prefs = store
	d.cache, d.unsubscribe = prefs.LoadCache(ctx, store, d.logger)

	sessions, err := session.Open(d.config.Storage.SessionsDB, d.config.Session.MaxEntries)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	d.sessions = sessions
	return nil
}

func (d *Daemon) loadRules() (*rules.RuleSet, error) {
	path := d.config.Rules.File
	if path != "" {
		if err := security.ValidateFilePermissions(path); err != nil {
			d.logger.Warn("rule file has unsafe permissions", "error", err)
		}
	}

	rs, err := rules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	for _, w := range rules.Warnings(rs) {
		d.logger.Warn("rule table", "warning", w)
	}

	stats := rs.Stats()
	d.logger.Info("rules loaded",
		"file", path,
		"blocked", stats.Blocked,
		"referral", stats.Referral,
		"domains", stats.Domains,
	)
	return rs, nil
}

func (d *Daemon) shutdown() error {
	var errs []error
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
	if d.sessions != nil {
		errs = append(errs, d.sessions.Close())
	}
	if d.prefs != nil {
		errs = append(errs, d.prefs.Close())
	}
	return errors.Join(errs...)
}
