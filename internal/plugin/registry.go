// Package plugin implements the Lua plugin registry: discovery of plugin
// directories, script loading with capability probing, lifecycle
// start/stop with per-plugin failure isolation, and web action dispatch.
package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"modeswitch/internal/logging"
	"modeswitch/internal/plugin/luart"
)

// ScriptName is the entry script every plugin directory must carry.
const ScriptName = "init.lua"

// Capabilities records which optional hooks a plugin's script defined.
// They are probed once at load time; the contract is purely behavioral,
// a plugin opts in by defining the global.
type Capabilities struct {
	Stop      bool
	WebModule bool
	WebAction bool
}

// Unit is one loaded plugin: its identity, its capabilities, and its
// private interpreter.
type Unit struct {
	Name string
	ID   string
	Dir  string
	Caps Capabilities

	state   *luart.State
	bridge  *luart.Bridge
	started bool
}

// Meta is the identity handed to the API injector before a plugin script
// runs.
type Meta struct {
	Name string
	ID   string
	Dir  string
}

// Setup injects host API modules into a plugin interpreter before its
// script executes.
type Setup func(L *lua.LState, meta Meta) error

// WebModule is one plugin's control panel descriptor, normalized for the
// web layer.
type WebModule struct {
	ID    string
	Title string

	// Plugin is the display name of the unit the descriptor came from.
	Plugin string

	Data map[string]any
}

// Registry owns every loaded plugin. One mutex serializes all operations;
// plugin scripts run while it is held, so a slow plugin delays its peers
// but never interleaves with them.
type Registry struct {
	mu sync.Mutex

	dir   string
	log   *logging.Logger
	setup Setup
	units []*Unit
}

// NewRegistry creates a registry over the given plugins root. setup may
// be nil when no host API is exposed.
func NewRegistry(dir string, setup Setup, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.NullLogger
	}
	return &Registry{dir: dir, log: log.WithComponent("plugin"), setup: setup}
}

// Dir returns the plugins root.
func (r *Registry) Dir() string { return r.dir }

// Discover lists the immediate subdirectories of the plugins root in
// lexicographic order. A missing root is an empty registry, not an error.
func (r *Registry) Discover() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plugins dir %s: %w", r.dir, err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(r.dir, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// LoadAll discovers and loads every plugin, replacing whatever was loaded
// before. It is the only place plugin identity is assigned: the script's
// plugin_id (or its directory name) is sanitized and made unique with
// numeric suffixes in load order. A script that fails to run, or that
// defines no start function, is skipped with a warning.
func (r *Registry) LoadAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeAllLocked()

	dirs, err := r.Discover()
	if err != nil {
		return err
	}

	taken := make(map[string]bool)
	for _, dir := range dirs {
		unit, err := r.loadOne(dir, taken)
		if err != nil {
			r.log.Warn("skipping plugin %s: %v", filepath.Base(dir), err)
			continue
		}
		taken[unit.ID] = true
		r.units = append(r.units, unit)
		r.log.Info("loaded plugin %q (id=%s)", unit.Name, unit.ID)
	}

	r.log.Info("loaded %d plugins from %s", len(r.units), r.dir)
	return nil
}

// loadOne runs one plugin script and builds its Unit.
func (r *Registry) loadOne(dir string, taken map[string]bool) (*Unit, error) {
	script := filepath.Join(dir, ScriptName)
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("no %s", ScriptName)
	}

	name := filepath.Base(dir)
	id := r.uniqueID(SanitizeID(name), taken)

	state := luart.NewState()

	if r.setup != nil {
		if err := r.setup(state.LuaState(), Meta{Name: name, ID: id, Dir: dir}); err != nil {
			state.Close()
			return nil, fmt.Errorf("api injection: %w", err)
		}
	}

	if err := state.DoFile(script); err != nil {
		state.Close()
		return nil, err
	}

	if !state.HasFunction("start") {
		state.Close()
		return nil, fmt.Errorf("script defines no start function")
	}

	// The script may override its display name and identifier.
	if v := state.GetGlobal("plugin_name"); v.Type() == lua.LTString {
		if s := strings.TrimSpace(v.String()); s != "" {
			name = s
		}
	}
	if v := state.GetGlobal("plugin_id"); v.Type() == lua.LTString || v.Type() == lua.LTNumber {
		if s := SanitizeID(v.String()); s != "" {
			id = r.uniqueID(s, taken)
		}
	}

	return &Unit{
		Name:   name,
		ID:     id,
		Dir:    dir,
		state:  state,
		bridge: luart.NewBridge(state.LuaState()),
		Caps: Capabilities{
			Stop:      state.HasFunction("stop"),
			WebModule: state.HasFunction("get_web_module"),
			WebAction: state.HasFunction("handle_web_action"),
		},
	}, nil
}

// uniqueID resolves collisions by appending -2, -3, and so on. An empty
// base falls through to FallbackID.
func (r *Registry) uniqueID(base string, taken map[string]bool) string {
	if base == "" {
		base = FallbackID
	}
	if !taken[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

// StartAll calls every plugin's start hook. A failing plugin is logged
// and left stopped; its peers still start.
func (r *Registry) StartAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.units {
		if u.started {
			continue
		}
		if _, err := u.state.Call("start"); err != nil {
			r.log.Error("plugin %s start failed: %v", u.ID, err)
			continue
		}
		u.started = true
		r.log.Info("plugin %s started", u.ID)
	}
}

// StopAll calls stop on every started plugin that defined one, in reverse
// load order, best-effort. Every plugin is considered stopped afterwards
// regardless of hook errors.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.units) - 1; i >= 0; i-- {
		u := r.units[i]
		if u.started && u.Caps.Stop {
			if _, err := u.state.Call("stop"); err != nil {
				r.log.Error("plugin %s stop failed: %v", u.ID, err)
			}
		}
		u.started = false
	}
}

// Close stops and releases every plugin.
func (r *Registry) Close() {
	r.StopAll()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeAllLocked()
}

func (r *Registry) closeAllLocked() {
	for _, u := range r.units {
		u.state.Close()
	}
	r.units = nil
}

// Handle is the registry view handed back to plugins through the host
// API. Plugin hooks run while the registry mutex is held, so Handle
// reads the unit list without taking it.
type Handle struct {
	r *Registry
}

// Handle returns the registry view for API injection.
func (r *Registry) Handle() *Handle { return &Handle{r: r} }

// Units returns the identities of the currently loaded plugins.
func (h *Handle) Units() []Meta {
	metas := make([]Meta, 0, len(h.r.units))
	for _, u := range h.r.units {
		metas = append(metas, Meta{Name: u.Name, ID: u.ID, Dir: u.Dir})
	}
	return metas
}

// Units returns a snapshot of the loaded plugins' identities.
func (r *Registry) Units() []Meta {
	r.mu.Lock()
	defer r.mu.Unlock()

	metas := make([]Meta, 0, len(r.units))
	for _, u := range r.units {
		metas = append(metas, Meta{Name: u.Name, ID: u.ID, Dir: u.Dir})
	}
	return metas
}

// ListWebModules collects the control panel descriptors of every plugin
// that exposes one. Descriptor ids are re-sanitized and de-duplicated on
// every listing so a misbehaving plugin cannot shadow another's panel. A
// plugin whose hook fails or returns a non-table is skipped.
func (r *Registry) ListWebModules() []WebModule {
	r.mu.Lock()
	defer r.mu.Unlock()

	taken := make(map[string]bool)
	var modules []WebModule

	for _, u := range r.units {
		if !u.Caps.WebModule {
			continue
		}

		results, err := u.state.Call("get_web_module")
		if err != nil {
			r.log.Error("plugin %s get_web_module failed: %v", u.ID, err)
			continue
		}
		if len(results) == 0 {
			continue
		}

		data, ok := u.bridge.ToGoValue(results[0]).(map[string]any)
		if !ok {
			r.log.Warn("plugin %s returned a non-table web module", u.ID)
			continue
		}

		id := ""
		if raw, ok := data["id"].(string); ok {
			id = SanitizeID(raw)
		}
		if id == "" {
			id = u.ID
		}
		id = r.uniqueID(id, taken)
		taken[id] = true

		title := u.Name
		if t, ok := data["title"].(string); ok && strings.TrimSpace(t) != "" {
			title = t
		}

		data["id"] = id
		modules = append(modules, WebModule{ID: id, Title: title, Plugin: u.Name, Data: data})
	}

	return modules
}

// Dispatch routes a web action to the named plugin. The target id is
// sanitized before lookup so the web layer and the registry agree on the
// identifier form. An empty or whitespace result from the plugin is
// replaced with a generic completion message.
func (r *Registry) Dispatch(pluginID, action string, payload map[string]any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := SanitizeID(pluginID)
	var unit *Unit
	for _, u := range r.units {
		if u.ID == id {
			unit = u
			break
		}
	}
	if unit == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !unit.Caps.WebAction {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAction, id)
	}

	args := []lua.LValue{lua.LString(action), unit.bridge.ToLuaValue(payload)}
	results, err := unit.state.Call("handle_web_action", args...)
	if err != nil {
		return "", err
	}

	msg := ""
	if len(results) > 0 {
		if s, ok := unit.bridge.ToGoValue(results[0]).(string); ok {
			msg = s
		}
	}
	if strings.TrimSpace(msg) == "" {
		msg = "operation completed"
	}
	return msg, nil
}
