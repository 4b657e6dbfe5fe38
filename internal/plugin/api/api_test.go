package api

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"modeswitch/internal/config"
	"modeswitch/internal/plugin"
	"modeswitch/internal/plugin/luart"
	"modeswitch/internal/rules"
)

type staticLister []plugin.Meta

func (l staticLister) Units() []plugin.Meta { return l }

func newTestContext(t *testing.T) (*Context, string) {
	t.Helper()
	base := t.TempDir()

	store := config.NewStore(config.Default())
	svc := &rules.Service{
		Dir:     filepath.Join(base, "data"),
		BaseDir: base,
		Vars:    func() map[string]string { return TemplateVars(store) },
	}

	return &Context{
		Plugin:     "test-plugin",
		Dir:        filepath.Join(base, "plugins", "test-plugin"),
		PluginsDir: filepath.Join(base, "plugins"),
		BaseDir:    base,
		Config:     store,
		Rules:      svc,
	}, base
}

func newInjectedState(t *testing.T, ctx *Context) *luart.State {
	t.Helper()
	s := luart.NewState()
	t.Cleanup(s.Close)

	if err := Default().InjectAll(s.LuaState(), ctx); err != nil {
		t.Fatalf("InjectAll() error = %v", err)
	}
	return s
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&LogModule{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&LogModule{}); err == nil {
		t.Error("Register() accepted a duplicate module")
	}
}

func TestDefaultRegistryModules(t *testing.T) {
	got := Default().List()
	want := []string{"log", "host", "rules"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List() = %v, want %v", got, want)
			break
		}
	}
}

func TestLogModule(t *testing.T) {
	ctx, _ := newTestContext(t)
	s := newInjectedState(t, ctx)

	err := s.DoString(`
		log.debug("d"); log.info("i"); log.warn("w"); log.error("e")
	`)
	if err != nil {
		t.Fatalf("log calls failed: %v", err)
	}
}

func TestHostModule(t *testing.T) {
	ctx, base := newTestContext(t)
	s := newInjectedState(t, ctx)

	err := s.DoString(`
		res = host.enabled_resolution()
		def = host.default_resolution()
		vars = host.vars()
		basedir = host.base_dir()
	`)
	if err != nil {
		t.Fatalf("host calls failed: %v", err)
	}

	b := luart.NewBridge(s.LuaState())
	res, ok := b.ToGoValue(s.GetGlobal("res")).(map[string]any)
	if !ok {
		t.Fatalf("enabled_resolution() = %T, want table", b.ToGoValue(s.GetGlobal("res")))
	}
	if res["width"] != int64(1280) || res["height"] != int64(720) || res["refresh"] != int64(144) {
		t.Errorf("enabled_resolution() = %#v", res)
	}

	vars, ok := b.ToGoValue(s.GetGlobal("vars")).(map[string]any)
	if !ok || vars[rules.VarEnabledWidth] != "1280" {
		t.Errorf("vars() = %#v", b.ToGoValue(s.GetGlobal("vars")))
	}

	if got := s.GetGlobal("basedir").String(); got != base {
		t.Errorf("base_dir() = %q, want %q", got, base)
	}
}

func TestHostModuleNoEnabledResolution(t *testing.T) {
	ctx, _ := newTestContext(t)
	cfg := ctx.Config.Get()
	cfg.Enabled = config.Resolution{}
	ctx.Config.Set(cfg)

	s := newInjectedState(t, ctx)
	if err := s.DoString(`res = host.enabled_resolution()`); err != nil {
		t.Fatal(err)
	}
	if got := s.GetGlobal("res"); got != lua.LNil {
		t.Errorf("enabled_resolution() = %v, want nil", got)
	}
}

func TestHostModulePlugins(t *testing.T) {
	ctx, _ := newTestContext(t)
	ctx.Plugins = staticLister{
		{Name: "Panel", ID: "panel", Dir: "/tmp/panel"},
		{Name: "Other", ID: "other", Dir: "/tmp/other"},
	}

	s := newInjectedState(t, ctx)
	if err := s.DoString(`list = host.plugins()`); err != nil {
		t.Fatal(err)
	}

	b := luart.NewBridge(s.LuaState())
	list, ok := b.ToGoValue(s.GetGlobal("list")).([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("plugins() = %#v, want 2 entries", b.ToGoValue(s.GetGlobal("list")))
	}
	first, ok := list[0].(map[string]any)
	if !ok || first["id"] != "panel" || first["name"] != "Panel" {
		t.Errorf("plugins()[1] = %#v", list[0])
	}
}

func TestHostModulePluginsWithoutLister(t *testing.T) {
	ctx, _ := newTestContext(t)
	s := newInjectedState(t, ctx)

	if err := s.DoString(`n = #host.plugins()`); err != nil {
		t.Fatal(err)
	}
	if got := s.GetGlobal("n"); got != lua.LNumber(0) {
		t.Errorf("#plugins() = %v, want 0", got)
	}
}

func TestRulesModuleSettingsRoundTrip(t *testing.T) {
	ctx, _ := newTestContext(t)
	s := newInjectedState(t, ctx)

	err := s.DoString(`
		path, err = rules.save_settings({enabled = true, dry_run = "on"})
		loaded = rules.load_settings()
	`)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.GetGlobal("err"); got != lua.LNil {
		t.Fatalf("save_settings error = %v", got)
	}

	b := luart.NewBridge(s.LuaState())
	loaded := b.ToGoValue(s.GetGlobal("loaded")).(map[string]any)
	if loaded["enabled"] != true || loaded["dry_run"] != true {
		t.Errorf("load_settings() = %#v", loaded)
	}
	// Checkbox semantics: a flag missing from the form is unchecked.
	if loaded["backup_before_write"] != false {
		t.Errorf("backup_before_write = %v, want false for absent flag", loaded["backup_before_write"])
	}
}

func TestRulesModuleTasksAndRun(t *testing.T) {
	ctx, base := newTestContext(t)
	target := filepath.Join(base, "conf.ini")
	if err := os.WriteFile(target, []byte("width=800"), 0644); err != nil {
		t.Fatal(err)
	}

	s := newInjectedState(t, ctx)

	doc, err := json.Marshal(map[string]any{
		"edits": []map[string]any{{
			"file":        "conf.ini",
			"mode":        "regex",
			"pattern":     `width=\d+`,
			"replacement": "width={{enabled_width}}",
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	s.SetGlobal("payload", lua.LString(doc))
	err = s.DoString(`
		msg, err = rules.save_tasks(payload)
		report, rerr = rules.run(true)
	`)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.GetGlobal("err"); got != lua.LNil {
		t.Fatalf("save_tasks error = %v", got)
	}
	if got := s.GetGlobal("rerr"); got != lua.LNil {
		t.Fatalf("run error = %v", got)
	}

	b := luart.NewBridge(s.LuaState())
	report := b.ToGoValue(s.GetGlobal("report")).(map[string]any)
	if report["total"] != int64(1) || report["succeeded"] != int64(1) {
		t.Errorf("run report = %#v", report)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "width=1280" {
		t.Errorf("target = %q, want template-expanded width", data)
	}
}

func TestRulesModuleRejectsBadDocument(t *testing.T) {
	ctx, _ := newTestContext(t)
	s := newInjectedState(t, ctx)

	err := s.DoString(`msg, err = rules.save_tasks("{\"edits\": [{\"mode\": \"regex\"}]}")`)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.GetGlobal("msg"); got != lua.LNil {
		t.Errorf("save_tasks succeeded on invalid document: %v", got)
	}
	if got := s.GetGlobal("err"); got == lua.LNil || got.String() == "" {
		t.Error("save_tasks returned no error message")
	}
}

func TestRulesModuleGrouped(t *testing.T) {
	ctx, _ := newTestContext(t)
	s := newInjectedState(t, ctx)

	err := s.DoString(`
		msg, err = rules.save_grouped('{"tasks": [{"file": "a.txt", "edits": [{"from": "x", "to": "y", "action": "z"}]}]}')
		grouped, gerr = rules.grouped_tasks()
		summary = rules.summary()
	`)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.GetGlobal("err"); got != lua.LNil {
		t.Fatalf("save_grouped error = %v", got)
	}

	var tasks []rules.Task
	if err := json.Unmarshal([]byte(s.GetGlobal("grouped").String()), &tasks); err != nil {
		t.Fatalf("grouped_tasks() not valid JSON: %v", err)
	}
	if len(tasks) != 1 || tasks[0].File != "a.txt" {
		t.Errorf("grouped tasks = %+v", tasks)
	}

	if got := s.GetGlobal("summary").String(); !strings.Contains(got, "1 rules") {
		t.Errorf("summary() = %q", got)
	}
}
