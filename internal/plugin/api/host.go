package api

import (
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"modeswitch/internal/config"
	"modeswitch/internal/rules"
)

// HostModule exposes host paths and the live resolution config to
// plugins as the host global.
type HostModule struct{}

func (m *HostModule) Name() string { return "host" }

// TemplateVars builds the rule template variables from the currently
// enabled resolution. Without one the map is empty and templates pass
// through verbatim.
func TemplateVars(store *config.Store) map[string]string {
	if store == nil {
		return nil
	}
	res, ok := store.EnabledResolution()
	if !ok {
		return nil
	}
	return map[string]string{
		rules.VarEnabledWidth:   strconv.Itoa(res.Width),
		rules.VarEnabledHeight:  strconv.Itoa(res.Height),
		rules.VarEnabledRefresh: strconv.Itoa(res.Refresh),
	}
}

func (m *HostModule) Register(L *lua.LState, ctx *Context) error {
	mod := L.NewTable()

	L.SetField(mod, "plugin_dir", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(ctx.Dir))
		return 1
	}))
	L.SetField(mod, "plugins_dir", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(ctx.PluginsDir))
		return 1
	}))
	L.SetField(mod, "base_dir", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(ctx.BaseDir))
		return 1
	}))

	L.SetField(mod, "enabled_resolution", L.NewFunction(func(L *lua.LState) int {
		if ctx.Config == nil {
			L.Push(lua.LNil)
			return 1
		}
		res, ok := ctx.Config.EnabledResolution()
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(resolutionTable(L, res))
		return 1
	}))

	L.SetField(mod, "default_resolution", L.NewFunction(func(L *lua.LState) int {
		if ctx.Config == nil {
			L.Push(lua.LNil)
			return 1
		}
		cfg := ctx.Config.Get()
		if cfg.Default.IsZero() {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(resolutionTable(L, cfg.Default))
		return 1
	}))

	L.SetField(mod, "plugins", L.NewFunction(func(L *lua.LState) int {
		list := L.NewTable()
		if ctx.Plugins != nil {
			for _, meta := range ctx.Plugins.Units() {
				t := L.NewTable()
				t.RawSetString("name", lua.LString(meta.Name))
				t.RawSetString("id", lua.LString(meta.ID))
				t.RawSetString("dir", lua.LString(meta.Dir))
				list.Append(t)
			}
		}
		L.Push(list)
		return 1
	}))

	L.SetField(mod, "vars", L.NewFunction(func(L *lua.LState) int {
		t := L.NewTable()
		for k, v := range TemplateVars(ctx.Config) {
			t.RawSetString(k, lua.LString(v))
		}
		L.Push(t)
		return 1
	}))

	L.SetGlobal("host", mod)
	return nil
}

func resolutionTable(L *lua.LState, res config.Resolution) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("width", lua.LNumber(res.Width))
	t.RawSetString("height", lua.LNumber(res.Height))
	t.RawSetString("refresh", lua.LNumber(res.Refresh))
	t.RawSetString("label", lua.LString(res.String()))
	return t
}
