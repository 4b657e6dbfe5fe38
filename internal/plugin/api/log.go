package api

import (
	lua "github.com/yuin/gopher-lua"

	"modeswitch/internal/logging"
)

// LogModule exposes the host logger to plugins as the log global.
type LogModule struct{}

func (m *LogModule) Name() string { return "log" }

func (m *LogModule) Register(L *lua.LState, ctx *Context) error {
	logger := ctx.Log
	if logger == nil {
		logger = logging.NullLogger
	}
	logger = logger.WithField("plugin", ctx.Plugin)

	mod := L.NewTable()
	L.SetField(mod, "debug", L.NewFunction(func(L *lua.LState) int {
		logger.Debug("%s", L.CheckString(1))
		return 0
	}))
	L.SetField(mod, "info", L.NewFunction(func(L *lua.LState) int {
		logger.Info("%s", L.CheckString(1))
		return 0
	}))
	L.SetField(mod, "warn", L.NewFunction(func(L *lua.LState) int {
		logger.Warn("%s", L.CheckString(1))
		return 0
	}))
	L.SetField(mod, "error", L.NewFunction(func(L *lua.LState) int {
		logger.Error("%s", L.CheckString(1))
		return 0
	}))

	L.SetGlobal("log", mod)
	return nil
}
