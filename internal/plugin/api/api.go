// Package api defines the host API surface injected into plugin
// interpreters. Each Module registers one global table of functions; the
// Registry injects every module into a fresh state before the plugin
// script runs.
package api

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"modeswitch/internal/config"
	"modeswitch/internal/logging"
	"modeswitch/internal/plugin"
	"modeswitch/internal/rules"
)

// PluginLister is the registry view exposed to plugins, satisfied by
// plugin.Handle.
type PluginLister interface {
	Units() []plugin.Meta
}

// Context carries the host handles a module implementation works with.
type Context struct {
	Log *logging.Logger

	// Plugin is the sanitized id of the plugin being injected.
	Plugin string

	// Dir is the plugin's own directory.
	Dir string

	// PluginsDir is the plugins root.
	PluginsDir string

	// BaseDir anchors relative paths for the rule engine.
	BaseDir string

	Config *config.Store
	Rules  *rules.Service

	// Plugins lists the loaded plugins, nil when the host exposes none.
	Plugins PluginLister
}

// Module is one injectable API table.
type Module interface {
	// Name is the global the module registers itself under.
	Name() string

	Register(L *lua.LState, ctx *Context) error
}

// Registry holds the modules offered to plugins.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	order   []string
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds a module. Registering the same name twice is an error.
func (r *Registry) Register(mod Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[mod.Name()]; exists {
		return fmt.Errorf("module %q already registered", mod.Name())
	}
	r.modules[mod.Name()] = mod
	r.order = append(r.order, mod.Name())
	return nil
}

// List returns the registered module names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// InjectAll registers every module into the state.
func (r *Registry) InjectAll(L *lua.LState, ctx *Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if err := r.modules[name].Register(L, ctx); err != nil {
			return fmt.Errorf("registering module %q: %w", name, err)
		}
	}
	return nil
}

// Default builds the registry with the standard host modules.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(&LogModule{})
	_ = r.Register(&HostModule{})
	_ = r.Register(&RulesModule{})
	return r
}

// pushError is the shared error convention: functions return nil plus a
// message instead of raising, so plugin code can decide how to react.
func pushError(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}
