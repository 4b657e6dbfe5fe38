// Package app wires the host together: configuration, the plugin
// registry, the rule engine, the web server, and the process monitor.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"modeswitch/internal/config"
	"modeswitch/internal/monitor"
	"modeswitch/internal/plugin"
	"modeswitch/internal/plugin/api"
	"modeswitch/internal/rules"
	"modeswitch/internal/web"
)

// Options configure application startup.
type Options struct {
	// ConfigPath locates the TOML configuration file.
	ConfigPath string

	// LogLevel overrides the default info level.
	LogLevel string

	// Debug forces debug logging.
	Debug bool
}

// Application is the assembled host.
type Application struct {
	log      *Logger
	store    *config.Store
	registry *plugin.Registry
	rulesSvc *rules.Service
	watcher  *plugin.Watcher
	cfgWatch *config.Watcher
	server   *web.Server
	monitor  *monitor.Monitor

	serveErr <-chan error

	mu      sync.Mutex
	started bool
}

// New builds the application from options. Nothing runs yet; Start does.
func New(opts Options) (*Application, error) {
	logCfg := DefaultLoggerConfig()
	if opts.LogLevel != "" {
		logCfg.Level = ParseLogLevel(opts.LogLevel)
	}
	if opts.Debug {
		logCfg.Level = LogLevelDebug
	}
	log := NewLogger(logCfg)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	store := config.NewStore(cfg)

	rulesSvc := &rules.Service{
		Dir:     filepath.Join(cfg.BaseDir, "data"),
		BaseDir: cfg.BaseDir,
		Log:     log.WithComponent("rules"),
		Vars:    func() map[string]string { return api.TemplateVars(store) },
	}

	a := &Application{
		log:      log,
		store:    store,
		rulesSvc: rulesSvc,
	}

	if cfg.Plugins.Enabled {
		pluginsDir := cfg.Plugins.Dir
		if !filepath.IsAbs(pluginsDir) {
			pluginsDir = filepath.Join(cfg.BaseDir, pluginsDir)
		}

		modules := api.Default()
		var reg *plugin.Registry
		setup := func(L *lua.LState, meta plugin.Meta) error {
			return modules.InjectAll(L, &api.Context{
				Log:        log,
				Plugin:     meta.ID,
				Dir:        meta.Dir,
				PluginsDir: pluginsDir,
				BaseDir:    cfg.BaseDir,
				Config:     store,
				Rules:      rulesSvc,
				Plugins:    reg.Handle(),
			})
		}
		reg = plugin.NewRegistry(pluginsDir, setup, log)

		a.registry = reg
		a.watcher = plugin.NewWatcher(a.registry, log)

		if cfg.Web.Enabled {
			addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
			a.server = web.NewServer(addr, a.registry, log)
		}
	}

	var sw monitor.Switcher = &monitor.LogSwitcher{Log: log}
	if cfg.SwitchCommand != "" {
		sw = &monitor.CommandSwitcher{Command: cfg.SwitchCommand, Args: cfg.SwitchCommandArgs}
	}
	a.monitor = monitor.New(store, sw, &monitor.ProcScanner{}, log)

	if opts.ConfigPath != "" {
		w := config.NewWatcher(opts.ConfigPath, store)
		w.OnReload(func(cfg config.Config) {
			log.Info("configuration reloaded from %s", opts.ConfigPath)
		})
		a.cfgWatch = w
	}

	return a, nil
}

// Logger returns the application logger.
func (a *Application) Logger() *Logger { return a.log }

// Store returns the live configuration store.
func (a *Application) Store() *config.Store { return a.store }

// Rules returns the rule engine service.
func (a *Application) Rules() *rules.Service { return a.rulesSvc }

// Registry returns the plugin registry, nil when plugins are disabled.
func (a *Application) Registry() *plugin.Registry { return a.registry }

// Start brings every subsystem up: plugins load and start, the web
// server listens, the watchers begin. Start is idempotent.
func (a *Application) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}

	if a.registry != nil {
		if err := a.registry.LoadAll(); err != nil {
			return err
		}
		a.registry.StartAll()

		if err := a.watcher.Start(); err != nil {
			a.log.Warn("plugin watcher unavailable: %v", err)
		}
	}

	if a.server != nil {
		errCh, err := a.server.Start()
		if err != nil {
			return err
		}
		a.serveErr = errCh
	}

	if a.cfgWatch != nil {
		a.cfgWatch.Start()
	}

	a.started = true
	return nil
}

// Run starts the application and blocks in the monitor loop until ctx is
// canceled or the web server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	monErr := make(chan error, 1)
	go func() {
		monErr <- a.monitor.Run(runCtx)
	}()

	var err error
	monDone := false
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case serveErr := <-a.serveErr:
		if serveErr != nil {
			err = fmt.Errorf("web server: %w", serveErr)
		}
	case err = <-monErr:
		monDone = true
	}

	cancel()
	if !monDone {
		<-monErr
	}
	a.Shutdown()
	return err
}

// Shutdown stops everything in reverse start order. Safe to call more
// than once.
func (a *Application) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}
	a.started = false

	if a.cfgWatch != nil {
		a.cfgWatch.Stop()
	}

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn("web server shutdown: %v", err)
		}
		cancel()
	}

	if a.watcher != nil {
		a.watcher.Stop()
	}

	if a.registry != nil {
		a.registry.Close()
	}

	a.log.Info("shutdown complete")
}
