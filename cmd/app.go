package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/config"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/session"
)

// globalFlags are the persistent flags of the root command. Empty values
// leave the configured setting alone.
type globalFlags struct {
	apiURL     string
	configPath string
	store      string
	storePath  string
	logLevel   string
	logFormat  string
	logFile    string
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.apiURL, "api-url", "", "Backend base URL (env: "+config.EnvBackendURL+", default: "+config.DefaultBackendURL+")")
	pf.StringVar(&f.configPath, "config", "", "Config file (default: "+config.DefaultPath()+")")
	pf.StringVar(&f.store, "store", "", "Session store: file, sqlite or memory (default: file)")
	pf.StringVar(&f.storePath, "store-path", "", "Session store location (default: under the user cache dir)")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error (default: info)")
	pf.StringVar(&f.logFormat, "log-format", "", "Log format: text or json (default: text)")
	pf.StringVar(&f.logFile, "log-file", "", "Write logs to this file instead of stderr")
}

// apply overlays the flags that were set onto cfg.
func (f *globalFlags) apply(cfg *config.Config) {
	set := func(v string, dst *string) {
		if v != "" {
			*dst = v
		}
	}
	set(f.apiURL, &cfg.BackendURL)
	set(f.store, &cfg.StoreType)
	set(f.storePath, &cfg.StorePath)
	set(f.logLevel, &cfg.LogLevel)
	set(f.logFormat, &cfg.LogFormat)
	set(f.logFile, &cfg.LogFile)
}

// loadConfig resolves the configuration for one command run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app is the wiring shared by every command: config, logger, telemetry,
// session and backend client.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	instrConfig instrumentation.Config
	provider    *instrumentation.Provider
	session     *session.Session
	client      *gateway.Client

	closers []func() error
}

type appOptions struct {
	// interactive keeps log output off the terminal unless a log file is
	// configured.
	interactive bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if err := a.initLogger(opts.interactive); err != nil {
		return nil, err
	}

	a.instrConfig = instrumentation.DefaultConfig()
	a.instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, a.instrConfig)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	a.provider = provider

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.session = session.New(store,
		session.WithLogger(a.logger),
		session.WithMetrics(provider.Metrics()),
	)
	a.client = gateway.New(cfg.APIURL(), a.session,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(a.logger),
		gateway.WithMetrics(provider.Metrics()),
	)
	return a, nil
}

func (a *app) initLogger(interactive bool) error {
	level, err := logging.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stderr
	switch {
	case a.cfg.LogFile != "":
		if err := os.MkdirAll(filepath.Dir(a.cfg.LogFile), 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(a.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		w = f
	case interactive:
		a.logger = logging.Discard()
		return nil
	}

	a.logger = logging.New(w, level, a.cfg.LogFormat)
	return nil
}

func (a *app) openStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.StoreType {
	case config.StoreSQLite:
		store, err := session.OpenSQLite(ctx, storePath(a.cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.StoreMemory:
		a.logger.Warn("using in-memory session store, the sign-in will not outlive this process")
		return session.NewMemoryStore(), nil
	default:
		return session.NewFileStore(storePath(a.cfg)), nil
	}
}

// storePath returns where the configured store keeps the credential, or ""
// for the memory store.
func storePath(cfg *config.Config) string {
	switch {
	case cfg.StoreType == config.StoreMemory:
		return ""
	case cfg.StorePath != "":
		return cfg.StorePath
	case cfg.StoreType == config.StoreSQLite:
		return session.DefaultDatabasePath()
	default:
		return session.DefaultTokenPath()
	}
}

// metrics returns the tool and backend metrics, or nil when telemetry is off.
func (a *app) metrics() *instrumentation.Metrics {
	if a.provider == nil || !a.provider.Enabled() {
		return nil
	}
	return a.provider.Metrics()
}

// requireSession fails fast when no credential is stored.
func (a *app) requireSession() error {
	if !a.session.Authenticated() {
		return errors.New("not signed in, run `inboxchat login` first")
	}
	return nil
}

// shutdown flushes telemetry and releases the store and log file.
func (a *app) shutdown(ctx context.Context) {
	if a.provider != nil {
		if err := a.provider.Shutdown(ctx); err != nil {
			a.logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}
	a.close()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

// withApp runs fn with a fresh app and shuts it down afterwards.
func withApp(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.shutdown(context.Background())
	return fn(ctx, a)
}
