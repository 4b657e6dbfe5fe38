package api

import (
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"modeswitch/internal/rules"
)

// RulesModule exposes the batch edit engine to plugins as the rules
// global. All functions follow a result-or-nil-plus-message convention;
// nothing raises into the plugin.
type RulesModule struct{}

func (m *RulesModule) Name() string { return "rules" }

func (m *RulesModule) Register(L *lua.LState, ctx *Context) error {
	svc := ctx.Rules

	mod := L.NewTable()

	// run(force) -> {total, succeeded, failed, skipped, dry_run} | nil, err
	L.SetField(mod, "run", L.NewFunction(func(L *lua.LState) int {
		if svc == nil {
			return pushError(L, errNoEngine)
		}
		force := L.OptBool(1, false)

		report, err := svc.Execute(force)
		if err != nil {
			return pushError(L, err)
		}

		t := L.NewTable()
		t.RawSetString("total", lua.LNumber(report.Total))
		t.RawSetString("succeeded", lua.LNumber(report.Succeeded))
		t.RawSetString("failed", lua.LNumber(report.Failed))
		t.RawSetString("skipped", lua.LNumber(report.Skipped()))
		t.RawSetString("dry_run", lua.LBool(report.DryRun))
		L.Push(t)
		return 1
	}))

	// load_settings() -> {enabled, dry_run, stop_on_error, backup_before_write}
	L.SetField(mod, "load_settings", L.NewFunction(func(L *lua.LState) int {
		if svc == nil {
			return pushError(L, errNoEngine)
		}
		s := svc.Settings()

		t := L.NewTable()
		t.RawSetString("enabled", lua.LBool(s.Enabled))
		t.RawSetString("dry_run", lua.LBool(s.DryRun))
		t.RawSetString("stop_on_error", lua.LBool(s.StopOnError))
		t.RawSetString("backup_before_write", lua.LBool(s.BackupBeforeWrite))
		L.Push(t)
		return 1
	}))

	// save_settings(tbl) -> path | nil, err
	L.SetField(mod, "save_settings", L.NewFunction(func(L *lua.LState) int {
		if svc == nil {
			return pushError(L, errNoEngine)
		}
		tbl := L.CheckTable(1)

		// Checkbox form semantics: an absent flag is unchecked.
		s := rules.Settings{
			Enabled:           tableBool(tbl, "enabled"),
			DryRun:            tableBool(tbl, "dry_run"),
			StopOnError:       tableBool(tbl, "stop_on_error"),
			BackupBeforeWrite: tableBool(tbl, "backup_before_write"),
		}

		path, err := svc.SaveSettings(s)
		if err != nil {
			return pushError(L, err)
		}
		L.Push(lua.LString(path))
		return 1
	}))

	// tasks_json() -> string | nil, err
	L.SetField(mod, "tasks_json", L.NewFunction(func(L *lua.LState) int {
		if svc == nil {
			return pushError(L, errNoEngine)
		}
		data, err := svc.RawTasks()
		if err != nil {
			return pushError(L, err)
		}
		L.Push(lua.LString(data))
		return 1
	}))

	// save_tasks(json) -> message | nil, err
	L.SetField(mod, "save_tasks", L.NewFunction(func(L *lua.LState) int {
		if svc == nil {
			return pushError(L, errNoEngine)
		}
		raw := L.CheckString(1)

		path, count, err := svc.SaveTasks([]byte(raw))
		if err != nil {
			return pushError(L, err)
		}
		L.Push(lua.LString(fmt.Sprintf("saved %d rules to %s", count, path)))
		return 1
	}))

	// grouped_tasks() -> json string | nil, err
	L.SetField(mod, "grouped_tasks", L.NewFunction(func(L *lua.LState) int {
		if svc == nil {
			return pushError(L, errNoEngine)
		}
		tasks, err := svc.EditorTasks()
		if err != nil {
			return pushError(L, err)
		}
		data, err := json.Marshal(tasks)
		if err != nil {
			return pushError(L, err)
		}
		L.Push(lua.LString(data))
		return 1
	}))

	// save_grouped(json) -> message | nil, err
	L.SetField(mod, "save_grouped", L.NewFunction(func(L *lua.LState) int {
		if svc == nil {
			return pushError(L, errNoEngine)
		}
		raw := L.CheckString(1)

		path, taskCount, ruleCount, err := svc.SaveGrouped([]byte(raw))
		if err != nil {
			return pushError(L, err)
		}
		L.Push(lua.LString(fmt.Sprintf("saved %d tasks (%d rules) to %s", taskCount, ruleCount, path)))
		return 1
	}))

	// summary() -> short status line for panels
	L.SetField(mod, "summary", L.NewFunction(func(L *lua.LState) int {
		if svc == nil {
			return pushError(L, errNoEngine)
		}
		doc, err := svc.Document()
		if err != nil {
			L.Push(lua.LString("task document invalid: " + err.Error()))
			return 1
		}
		s := svc.Settings()
		state := "disabled"
		if s.Enabled {
			state = "enabled"
		}
		if s.DryRun {
			state += ", dry-run"
		}
		L.Push(lua.LString(fmt.Sprintf("%d rules (%s)", len(doc.Edits), state)))
		return 1
	}))

	L.SetGlobal("rules", mod)
	return nil
}

var errNoEngine = fmt.Errorf("rule engine not available")

// tableBool reads a boolean field. Absent or non-boolean values are
// false. String values follow the persisted-document convention so form
// fields like "true" round-trip.
func tableBool(t *lua.LTable, key string) bool {
	switch v := t.RawGetString(key).(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return rules.ParseBoolString(string(v), false)
	default:
		return false
	}
}
